package newsfetch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/gamebox/internal/model"
	"github.com/hitoshi/gamebox/internal/repository"
)

// GameFeedFetcher はゲームフィードフェッチの実行インターフェース。
type GameFeedFetcher interface {
	// Fetch は指定ゲームのフィードをフェッチし、お知らせを保存する。
	Fetch(ctx context.Context, game *model.Game) error
}

// Runner はフィード取得のスケジューリングと並列制御を行う。
// ティッカーで公開中ゲームを取得し、semaphoreパターンで
// 最大並列数を制御しながらフェッチを実行する。
type Runner struct {
	gameRepo       repository.GameRepository
	fetcher        GameFeedFetcher
	logger         *slog.Logger
	maxConcurrency int
}

// NewRunner はRunnerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewRunner(
	gameRepo repository.GameRepository,
	fetcher GameFeedFetcher,
	logger *slog.Logger,
	maxConcurrency int,
) *Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Runner{
		gameRepo:       gameRepo,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでランナーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Runner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("フィード取得ランナーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", r.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("フィード取得サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("フィード取得ランナーを停止しました")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("フィード取得サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は公開中ゲームのうちフィードURLを持つものを1回フェッチする。
// semaphoreパターンで最大並列数を制御する。
func (r *Runner) RunOnce(ctx context.Context) error {
	start := time.Now()

	games, err := r.gameRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	targets := make([]*model.Game, 0, len(games))
	for _, g := range games {
		if g.NewsFeedURL != "" {
			targets = append(targets, g)
		}
	}

	if len(targets) == 0 {
		r.logger.Info("フィード取得対象のゲームはありません")
		return nil
	}

	r.logger.Info("フィード取得サイクルを開始します",
		slog.Int("game_count", len(targets)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, r.maxConcurrency)
	var wg sync.WaitGroup

	for _, game := range targets {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(g *model.Game) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := r.fetcher.Fetch(ctx, g); err != nil {
				r.logger.Error("フィード取得に失敗しました",
					slog.String("game_id", g.ID),
					slog.String("feed_url", g.NewsFeedURL),
					slog.String("error", err.Error()),
				)
			}
		}(game)
	}

	wg.Wait()

	r.logger.Info("フィード取得サイクルが完了しました",
		slog.Int("game_count", len(targets)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
