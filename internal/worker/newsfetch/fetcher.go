// Package newsfetch はゲーム更新情報フィードのバックグラウンド取得を提供する。
// 公開中でフィードURLを持つゲームを対象に、条件付きGET（ETag/Last-Modified）で
// RSS/Atomフィードを取得し、サニタイズ済みのお知らせとして保存する。
package newsfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/gamebox/internal/model"
	"github.com/hitoshi/gamebox/internal/repository"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Sanitizer はお知らせ本文のサニタイズインターフェース。
type Sanitizer interface {
	SanitizeText(input string) string
	SanitizeAnnouncementHTML(input string) string
}

// Metrics はフィード取得のメトリクス記録インターフェース。
type Metrics interface {
	RecordNewsFetchSuccess(gameID string)
	RecordNewsFetchFailure(gameID string, reason string)
	RecordNewsFetchLatency(duration time.Duration)
	RecordAnnouncementsUpserted(count int)
}

// Fetcher は個別ゲームのフィードのHTTPフェッチとパースを行う。
// ETag/Last-Modifiedを使用した条件付きGET、SSRF検証、
// gofeedによるパース、お知らせのUPSERTを実行する。
type Fetcher struct {
	gameRepo         repository.GameRepository
	announcementRepo repository.AnnouncementRepository
	sanitizer        Sanitizer
	ssrfGuard        SSRFValidator
	metrics          Metrics
	logger           *slog.Logger
	timeout          time.Duration
	maxBodySize      int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	gameRepo repository.GameRepository,
	announcementRepo repository.AnnouncementRepository,
	sanitizer Sanitizer,
	ssrfGuard SSRFValidator,
	metrics Metrics,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		gameRepo:         gameRepo,
		announcementRepo: announcementRepo,
		sanitizer:        sanitizer,
		ssrfGuard:        ssrfGuard,
		metrics:          metrics,
		logger:           logger,
		timeout:          timeout,
		maxBodySize:      maxBodySize,
	}
}

// Fetch はゲームのフィードをフェッチし、お知らせを保存する。
func (f *Fetcher) Fetch(ctx context.Context, game *model.Game) error {
	start := time.Now()

	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(game.NewsFeedURL); err != nil {
		f.logger.Error("フィードURLのSSRF検証に失敗しました",
			slog.String("game_id", game.ID),
			slog.String("feed_url", game.NewsFeedURL),
			slog.String("error", err.Error()),
		)
		f.recordFailure(game.ID, "ssrf_blocked")
		return fmt.Errorf("feed URL rejected: %w", err)
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, game.NewsFeedURL, nil)
	if err != nil {
		f.recordFailure(game.ID, "request_build")
		return fmt.Errorf("failed to build feed request: %w", err)
	}

	req.Header.Set("User-Agent", "Gamebox/1.0 Game Portal")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	// 条件付きGET: ETag
	if game.NewsETag != "" {
		req.Header.Set("If-None-Match", game.NewsETag)
	}
	// 条件付きGET: Last-Modified
	if game.NewsLastModified != "" {
		req.Header.Set("If-Modified-Since", game.NewsLastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		f.logger.Error("フィードのHTTPリクエストに失敗しました",
			slog.String("game_id", game.ID),
			slog.String("feed_url", game.NewsFeedURL),
			slog.String("error", err.Error()),
		)
		f.recordFailure(game.ID, "http_error")
		return fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	if f.metrics != nil {
		f.metrics.RecordNewsFetchLatency(duration)
	}

	result := ClassifyHTTPStatus(resp.StatusCode)

	switch result {
	case FetchResultNotModified:
		// 304: コンテンツ未変更
		f.logger.Info("フィードは未変更です（304）",
			slog.String("game_id", game.ID),
			slog.Int("http_status", resp.StatusCode),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		if f.metrics != nil {
			f.metrics.RecordNewsFetchSuccess(game.ID)
		}
		return nil

	case FetchResultStop, FetchResultBackoff, FetchResultUnknown:
		f.logger.Warn("フィード取得を見送ります",
			slog.String("game_id", game.ID),
			slog.String("feed_url", game.NewsFeedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		f.recordFailure(game.ID, result.Reason())
		return nil

	case FetchResultOK:
		// 200: 以下で処理を続行
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		f.logger.Error("フィードレスポンスの読み取りに失敗しました",
			slog.String("game_id", game.ID),
			slog.String("error", err.Error()),
		)
		f.recordFailure(game.ID, "read_error")
		return nil
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		f.logger.Error("フィードのパースに失敗しました",
			slog.String("game_id", game.ID),
			slog.String("feed_url", game.NewsFeedURL),
			slog.String("error", err.Error()),
		)
		f.recordFailure(game.ID, "parse_error")
		return nil // パース失敗はサイクルを止めない
	}

	upserted := 0
	for _, item := range parsedFeed.Items {
		announcement := f.convertItem(game.ID, item)
		if announcement == nil {
			continue
		}
		if err := f.announcementRepo.Upsert(ctx, announcement); err != nil {
			f.logger.Error("お知らせのUPSERTに失敗しました",
				slog.String("game_id", game.ID),
				slog.String("guid", announcement.GUID),
				slog.String("error", err.Error()),
			)
			continue
		}
		upserted++
	}

	// ETag/Last-Modifiedを次回の条件付きGET用に保存
	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")
	if etag != "" || lastModified != "" {
		if err := f.gameRepo.UpdateNewsFetchState(ctx, game.ID, etag, lastModified); err != nil {
			f.logger.Error("フィード取得状態の更新に失敗しました",
				slog.String("game_id", game.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if f.metrics != nil {
		f.metrics.RecordNewsFetchSuccess(game.ID)
		f.metrics.RecordAnnouncementsUpserted(upserted)
	}

	f.logger.Info("フィード取得が完了しました",
		slog.String("game_id", game.ID),
		slog.String("feed_url", game.NewsFeedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("announcements_upserted", upserted),
		slog.Int("items_total", len(parsedFeed.Items)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// convertItem はgofeedの記事をお知らせに変換する。
// GUIDを持たない記事はリンクをGUIDとして使用し、どちらもない記事は捨てる。
func (f *Fetcher) convertItem(gameID string, item *gofeed.Item) *model.Announcement {
	if item == nil {
		return nil
	}

	guid := item.GUID
	if guid == "" {
		guid = item.Link
	}
	if guid == "" {
		return nil
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}

	announcement := &model.Announcement{
		GameID: gameID,
		GUID:   guid,
		Title:  f.sanitizer.SanitizeText(item.Title),
		Link:   item.Link,
		Body:   f.sanitizer.SanitizeAnnouncementHTML(body),
	}

	// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
	if announcement.Link == "" &&
		(strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://")) {
		announcement.Link = guid
	}

	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		announcement.PublishedAt = &t
	} else if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		announcement.PublishedAt = &t
	}

	return announcement
}

func (f *Fetcher) recordFailure(gameID, reason string) {
	if f.metrics != nil {
		f.metrics.RecordNewsFetchFailure(gameID, reason)
	}
}
