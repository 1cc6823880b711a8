// Package catalogsync はゲームカタログマニフェストの定期同期を提供する。
// 外部のカタログマニフェスト（JSON）を取得し、ゲームテーブルへ冪等に反映する。
// マニフェストから消えたゲームは削除せず非公開化する（進捗の外部キーを保つ）。
package catalogsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/gamebox/internal/model"
	"github.com/hitoshi/gamebox/internal/repository"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// TextSanitizer はテキストサニタイズのインターフェース。
type TextSanitizer interface {
	SanitizeText(input string) string
}

// IconFetcher はゲームアイコン取得のインターフェース。
type IconFetcher interface {
	FetchIcon(ctx context.Context, iconURL string) (data []byte, mimeType string, err error)
	FetchIconForPage(ctx context.Context, pageURL string) (data []byte, mimeType string, err error)
}

// Metrics はカタログ同期のメトリクス記録インターフェース。
type Metrics interface {
	RecordCatalogSyncSuccess()
	RecordCatalogSyncFailure()
}

// ManifestEntry はカタログマニフェストの1エントリ。
type ManifestEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Difficulty  string `json:"difficulty"`
	PageURL     string `json:"page_url"`
	IconURL     string `json:"icon_url"`
	NewsFeedURL string `json:"news_feed_url"`
	Active      *bool  `json:"active"` // 省略時はtrue
}

// Syncer はカタログマニフェストの取得とゲームテーブルへの反映を行う。
type Syncer struct {
	gameRepo    repository.GameRepository
	sanitizer   TextSanitizer
	iconFetcher IconFetcher
	ssrfGuard   SSRFValidator
	metrics     Metrics
	logger      *slog.Logger
	catalogURL  string
	timeout     time.Duration
	maxBodySize int64
}

// NewSyncer はSyncerの新しいインスタンスを生成する。
func NewSyncer(
	gameRepo repository.GameRepository,
	sanitizer TextSanitizer,
	iconFetcher IconFetcher,
	ssrfGuard SSRFValidator,
	metrics Metrics,
	logger *slog.Logger,
	catalogURL string,
	timeout time.Duration,
	maxBodySize int64,
) *Syncer {
	return &Syncer{
		gameRepo:    gameRepo,
		sanitizer:   sanitizer,
		iconFetcher: iconFetcher,
		ssrfGuard:   ssrfGuard,
		metrics:     metrics,
		logger:      logger,
		catalogURL:  catalogURL,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Start は指定間隔のティッカーで同期を起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Syncer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("カタログ同期を開始しました",
		slog.String("catalog_url", s.catalogURL),
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("カタログ同期の実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("カタログ同期を停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("カタログ同期の実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はカタログマニフェストを1回取得し、ゲームテーブルへ反映する。
func (s *Syncer) RunOnce(ctx context.Context) error {
	if s.catalogURL == "" {
		s.logger.Info("カタログURLが未設定のため同期をスキップします")
		return nil
	}

	start := time.Now()

	entries, err := s.fetchManifest(ctx)
	if err != nil {
		s.recordFailure()
		return err
	}

	presentIDs := make([]string, 0, len(entries))
	upserted := 0

	for _, entry := range entries {
		game, err := s.buildGame(entry)
		if err != nil {
			s.logger.Warn("不正なカタログエントリをスキップします",
				slog.String("game_id", entry.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := s.gameRepo.Upsert(ctx, game); err != nil {
			s.logger.Error("ゲームのUPSERTに失敗しました",
				slog.String("game_id", game.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		presentIDs = append(presentIDs, game.ID)
		upserted++

		s.syncIcon(ctx, game.ID, entry)
	}

	if len(presentIDs) == 0 {
		// マニフェストが空または全件不正の場合は既存ゲームを巻き添えにしない
		s.recordFailure()
		return fmt.Errorf("catalog manifest yielded no valid entries")
	}

	deactivated, err := s.gameRepo.DeactivateMissing(ctx, presentIDs)
	if err != nil {
		s.recordFailure()
		return fmt.Errorf("failed to deactivate missing games: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCatalogSyncSuccess()
	}

	s.logger.Info("カタログ同期が完了しました",
		slog.Int("entry_count", len(entries)),
		slog.Int("upserted", upserted),
		slog.Int("deactivated", deactivated),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// fetchManifest はカタログマニフェストを取得してパースする。
func (s *Syncer) fetchManifest(ctx context.Context) ([]ManifestEntry, error) {
	if err := s.ssrfGuard.ValidateURL(s.catalogURL); err != nil {
		return nil, fmt.Errorf("catalog URL rejected: %w", err)
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.catalogURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("User-Agent", "Gamebox/1.0 Game Portal")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog manifest returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog manifest: %w", err)
	}

	var entries []ManifestEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog manifest: %w", err)
	}

	return entries, nil
}

// buildGame はマニフェストエントリを検証・サニタイズしてGameに変換する。
func (s *Syncer) buildGame(entry ManifestEntry) (*model.Game, error) {
	if entry.ID == "" {
		return nil, fmt.Errorf("entry has empty id")
	}
	if entry.Name == "" {
		return nil, fmt.Errorf("entry has empty name")
	}

	difficulty := model.Difficulty(entry.Difficulty)
	if !difficulty.IsValid() {
		return nil, fmt.Errorf("invalid difficulty %q", entry.Difficulty)
	}

	active := true
	if entry.Active != nil {
		active = *entry.Active
	}

	// 名前と説明はHTMLを除去したプレーンテキストとして保存する
	game := &model.Game{
		ID:          entry.ID,
		Name:        s.sanitizer.SanitizeText(entry.Name),
		Description: s.sanitizer.SanitizeText(entry.Description),
		Category:    s.sanitizer.SanitizeText(entry.Category),
		Difficulty:  difficulty,
		Active:      active,
		NewsFeedURL: entry.NewsFeedURL,
	}

	return game, nil
}

// syncIcon はエントリのアイコンを取得してゲームに保存する。
// アイコンは装飾のため、取得失敗は同期全体を失敗させない。
func (s *Syncer) syncIcon(ctx context.Context, gameID string, entry ManifestEntry) {
	if s.iconFetcher == nil {
		return
	}

	var (
		data []byte
		mime string
	)

	switch {
	case entry.IconURL != "":
		data, mime, _ = s.iconFetcher.FetchIcon(ctx, entry.IconURL)
	case entry.PageURL != "":
		data, mime, _ = s.iconFetcher.FetchIconForPage(ctx, entry.PageURL)
	default:
		return
	}

	if data == nil {
		return
	}

	if err := s.gameRepo.UpdateIcon(ctx, gameID, data, mime); err != nil {
		s.logger.Warn("アイコンの保存に失敗しました",
			slog.String("game_id", gameID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Syncer) recordFailure() {
	if s.metrics != nil {
		s.metrics.RecordCatalogSyncFailure()
	}
}
