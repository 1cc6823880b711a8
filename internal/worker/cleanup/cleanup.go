// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れセッションと保持期間（デフォルト90日）を超過したお知らせを
// 定期バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionCleaner は期限切れセッション削除のインターフェース。
type SessionCleaner interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// AnnouncementCleaner は古いお知らせ削除のインターフェース。
type AnnouncementCleaner interface {
	DeleteOlderThan(ctx context.Context, days int) (int, error)
}

// Job は期限切れセッションと古いお知らせの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type Job struct {
	sessions      SessionCleaner
	announcements AnnouncementCleaner
	logger        *slog.Logger
	RetentionDays int // お知らせの保持日数（デフォルト: 90）
}

// NewJob は新しいJobを生成する。
// デフォルトの保持日数は90日。
func NewJob(sessions SessionCleaner, announcements AnnouncementCleaner, logger *slog.Logger) *Job {
	return &Job{
		sessions:      sessions,
		announcements: announcements,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Start は指定間隔のティッカーでジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Run は期限切れセッションと保持期間超過のお知らせを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	expiredSessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	oldAnnouncements, err := j.announcements.DeleteOlderThan(ctx, j.RetentionDays)
	if err != nil {
		j.logger.Error("古いお知らせの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("failed to delete old announcements: %w", err)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int("expired_sessions", expiredSessions),
		slog.Int("old_announcements", oldAnnouncements),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
