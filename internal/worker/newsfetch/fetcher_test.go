package newsfetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/gamebox/internal/model"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Puzzle 2048 News</title>
    <link>https://games.example.com/puzzle-2048</link>
    <item>
      <title>v1.2 リリース</title>
      <link>https://games.example.com/puzzle-2048/news/1</link>
      <guid>news-1</guid>
      <description>&lt;p&gt;新しいボードサイズを追加しました&lt;/p&gt;</description>
      <pubDate>Mon, 03 Aug 2026 10:00:00 +0900</pubDate>
    </item>
    <item>
      <title>メンテナンスのお知らせ</title>
      <link>https://games.example.com/puzzle-2048/news/2</link>
      <guid>news-2</guid>
      <description>メンテナンスを実施します</description>
    </item>
  </channel>
</rss>`

type mockGameRepo struct {
	mu           sync.Mutex
	games        []*model.Game
	etag         string
	lastModified string
	stateUpdated bool
}

func (m *mockGameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) { return nil, nil }

func (m *mockGameRepo) ListActive(ctx context.Context) ([]*model.Game, error) {
	return m.games, nil
}

func (m *mockGameRepo) ListAll(ctx context.Context) ([]*model.Game, error) { return m.games, nil }

func (m *mockGameRepo) Upsert(ctx context.Context, game *model.Game) error { return nil }

func (m *mockGameRepo) DeactivateMissing(ctx context.Context, presentIDs []string) (int, error) {
	return 0, nil
}

func (m *mockGameRepo) UpdateNewsFetchState(ctx context.Context, gameID, etag, lastModified string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.etag = etag
	m.lastModified = lastModified
	m.stateUpdated = true
	return nil
}

func (m *mockGameRepo) UpdateIcon(ctx context.Context, gameID string, iconData []byte, iconMime string) error {
	return nil
}

type mockAnnouncementRepo struct {
	mu        sync.Mutex
	upserted  []*model.Announcement
	upsertErr error
}

func (m *mockAnnouncementRepo) FindByGameAndGUID(ctx context.Context, gameID, guid string) (*model.Announcement, error) {
	return nil, nil
}

func (m *mockAnnouncementRepo) ListByGame(ctx context.Context, gameID string, limit int) ([]*model.Announcement, error) {
	return nil, nil
}

func (m *mockAnnouncementRepo) Upsert(ctx context.Context, announcement *model.Announcement) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, announcement)
	return nil
}

func (m *mockAnnouncementRepo) DeleteOlderThan(ctx context.Context, days int) (int, error) {
	return 0, nil
}

type mockSanitizer struct{}

func (m *mockSanitizer) SanitizeText(input string) string {
	return strings.TrimSpace(input)
}

func (m *mockSanitizer) SanitizeAnnouncementHTML(input string) string {
	return strings.ReplaceAll(input, "<script>", "")
}

type mockSSRFGuard struct {
	blockAll bool
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	if m.blockAll {
		return fmt.Errorf("blocked by SSRF guard")
	}
	return nil
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

type mockMetrics struct {
	mu        sync.Mutex
	successes []string
	failures  map[string]string // gameID -> reason
	upserted  int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{failures: make(map[string]string)}
}

func (m *mockMetrics) RecordNewsFetchSuccess(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, gameID)
}

func (m *mockMetrics) RecordNewsFetchFailure(gameID string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[gameID] = reason
}

func (m *mockMetrics) RecordNewsFetchLatency(duration time.Duration) {}

func (m *mockMetrics) RecordAnnouncementsUpserted(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted += count
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestFetcher(gameRepo *mockGameRepo, annRepo *mockAnnouncementRepo, metrics *mockMetrics) *Fetcher {
	return NewFetcher(
		gameRepo,
		annRepo,
		&mockSanitizer{},
		&mockSSRFGuard{},
		metrics,
		testLogger(),
		5*time.Second,
		1024*1024,
	)
}

// TestFetch_UpsertsAnnouncements はフィードの記事がお知らせとして保存されることをテストする。
func TestFetch_UpsertsAnnouncements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, testRSS)
	}))
	defer server.Close()

	gameRepo := &mockGameRepo{}
	annRepo := &mockAnnouncementRepo{}
	metrics := newMockMetrics()
	fetcher := newTestFetcher(gameRepo, annRepo, metrics)

	game := &model.Game{ID: "puzzle-2048", NewsFeedURL: server.URL}
	if err := fetcher.Fetch(context.Background(), game); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(annRepo.upserted) != 2 {
		t.Fatalf("expected 2 announcements upserted, got %d", len(annRepo.upserted))
	}

	first := annRepo.upserted[0]
	if first.GameID != "puzzle-2048" {
		t.Errorf("expected game_id puzzle-2048, got %q", first.GameID)
	}
	if first.GUID != "news-1" {
		t.Errorf("expected guid news-1, got %q", first.GUID)
	}
	if first.PublishedAt == nil {
		t.Error("expected published_at to be parsed")
	}
	if metrics.upserted != 2 {
		t.Errorf("expected 2 announcements recorded in metrics, got %d", metrics.upserted)
	}
	if len(metrics.successes) != 1 {
		t.Errorf("expected 1 success metric, got %d", len(metrics.successes))
	}
}

// TestFetch_SavesConditionalGetState はETag/Last-Modifiedが保存されることをテストする。
func TestFetch_SavesConditionalGetState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Mon, 03 Aug 2026 10:00:00 GMT")
		fmt.Fprint(w, testRSS)
	}))
	defer server.Close()

	gameRepo := &mockGameRepo{}
	fetcher := newTestFetcher(gameRepo, &mockAnnouncementRepo{}, newMockMetrics())

	game := &model.Game{ID: "puzzle-2048", NewsFeedURL: server.URL}
	if err := fetcher.Fetch(context.Background(), game); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if gameRepo.etag != `"abc123"` {
		t.Errorf("expected ETag to be saved, got %q", gameRepo.etag)
	}
	if gameRepo.lastModified != "Mon, 03 Aug 2026 10:00:00 GMT" {
		t.Errorf("expected Last-Modified to be saved, got %q", gameRepo.lastModified)
	}
}

// TestFetch_SendsConditionalGetHeaders は保存済みのETag/Last-Modifiedが送信されることをテストする。
func TestFetch_SendsConditionalGetHeaders(t *testing.T) {
	var gotETag, gotLastModified string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotLastModified = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	fetcher := newTestFetcher(&mockGameRepo{}, &mockAnnouncementRepo{}, newMockMetrics())

	game := &model.Game{
		ID:               "puzzle-2048",
		NewsFeedURL:      server.URL,
		NewsETag:         `"abc123"`,
		NewsLastModified: "Mon, 03 Aug 2026 10:00:00 GMT",
	}
	if err := fetcher.Fetch(context.Background(), game); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if gotETag != `"abc123"` {
		t.Errorf("expected If-None-Match header, got %q", gotETag)
	}
	if gotLastModified != "Mon, 03 Aug 2026 10:00:00 GMT" {
		t.Errorf("expected If-Modified-Since header, got %q", gotLastModified)
	}
}

// TestFetch_NotModifiedSkipsUpsert は304応答でお知らせが保存されないことをテストする。
func TestFetch_NotModifiedSkipsUpsert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	annRepo := &mockAnnouncementRepo{}
	metrics := newMockMetrics()
	fetcher := newTestFetcher(&mockGameRepo{}, annRepo, metrics)

	game := &model.Game{ID: "puzzle-2048", NewsFeedURL: server.URL}
	if err := fetcher.Fetch(context.Background(), game); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(annRepo.upserted) != 0 {
		t.Errorf("expected no announcements upserted on 304, got %d", len(annRepo.upserted))
	}
	// 304は成功として扱う
	if len(metrics.successes) != 1 {
		t.Errorf("expected 1 success metric on 304, got %d", len(metrics.successes))
	}
}

// TestFetch_StopStatuses は404等の応答でフェッチが見送られることをテストする。
func TestFetch_StopStatuses(t *testing.T) {
	for _, status := range []int{404, 410, 401, 403} {
		t.Run(fmt.Sprintf("status_%d", status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			annRepo := &mockAnnouncementRepo{}
			metrics := newMockMetrics()
			fetcher := newTestFetcher(&mockGameRepo{}, annRepo, metrics)

			game := &model.Game{ID: "g1", NewsFeedURL: server.URL}
			if err := fetcher.Fetch(context.Background(), game); err != nil {
				t.Fatalf("Fetch should not return error on status %d: %v", status, err)
			}
			if len(annRepo.upserted) != 0 {
				t.Errorf("expected no upserts on status %d", status)
			}
			if metrics.failures["g1"] != "stop" {
				t.Errorf("expected failure reason 'stop', got %q", metrics.failures["g1"])
			}
		})
	}
}

// TestFetch_BackoffStatuses は429/5xx応答で失敗として記録されることをテストする。
func TestFetch_BackoffStatuses(t *testing.T) {
	for _, status := range []int{429, 500, 503} {
		t.Run(fmt.Sprintf("status_%d", status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			metrics := newMockMetrics()
			fetcher := newTestFetcher(&mockGameRepo{}, &mockAnnouncementRepo{}, metrics)

			game := &model.Game{ID: "g1", NewsFeedURL: server.URL}
			if err := fetcher.Fetch(context.Background(), game); err != nil {
				t.Fatalf("Fetch should not return error on status %d: %v", status, err)
			}
			if metrics.failures["g1"] != "backoff" {
				t.Errorf("expected failure reason 'backoff', got %q", metrics.failures["g1"])
			}
		})
	}
}

// TestFetch_ParseFailureContinues はパース失敗がエラーにならず失敗として記録されることをテストする。
func TestFetch_ParseFailureContinues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer server.Close()

	metrics := newMockMetrics()
	fetcher := newTestFetcher(&mockGameRepo{}, &mockAnnouncementRepo{}, metrics)

	game := &model.Game{ID: "g1", NewsFeedURL: server.URL}
	if err := fetcher.Fetch(context.Background(), game); err != nil {
		t.Fatalf("parse failure should not return error: %v", err)
	}
	if metrics.failures["g1"] != "parse_error" {
		t.Errorf("expected failure reason 'parse_error', got %q", metrics.failures["g1"])
	}
}

// TestFetch_SSRFBlocked はSSRFガードにブロックされた場合にエラーを返すことをテストする。
func TestFetch_SSRFBlocked(t *testing.T) {
	fetcher := NewFetcher(
		&mockGameRepo{},
		&mockAnnouncementRepo{},
		&mockSanitizer{},
		&mockSSRFGuard{blockAll: true},
		newMockMetrics(),
		testLogger(),
		5*time.Second,
		1024*1024,
	)

	game := &model.Game{ID: "g1", NewsFeedURL: "http://169.254.169.254/feed"}
	if err := fetcher.Fetch(context.Background(), game); err == nil {
		t.Fatal("expected error when SSRF guard blocks the URL")
	}
}

// TestClassifyHTTPStatus はステータスコード分類をテストする。
func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FetchResult
	}{
		{200, FetchResultOK},
		{304, FetchResultNotModified},
		{404, FetchResultStop},
		{410, FetchResultStop},
		{401, FetchResultStop},
		{403, FetchResultStop},
		{429, FetchResultBackoff},
		{500, FetchResultBackoff},
		{503, FetchResultBackoff},
		{302, FetchResultUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// TestRunner_RunOnce_FetchesActiveGamesWithFeeds はフィードURLを持つ公開中ゲームのみ対象となることをテストする。
func TestRunner_RunOnce_FetchesActiveGamesWithFeeds(t *testing.T) {
	gameRepo := &mockGameRepo{
		games: []*model.Game{
			{ID: "with-feed", Active: true, NewsFeedURL: "https://games.example.com/feed1"},
			{ID: "no-feed", Active: true},
			{ID: "with-feed-2", Active: true, NewsFeedURL: "https://games.example.com/feed2"},
		},
	}

	fetched := &fetchRecorder{}
	runner := NewRunner(gameRepo, fetched, testLogger(), 2)

	if err := runner.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce returned error: %v", err)
	}

	ids := fetched.ids()
	if len(ids) != 2 {
		t.Fatalf("expected 2 games fetched, got %d", len(ids))
	}
	for _, id := range ids {
		if id == "no-feed" {
			t.Error("game without feed URL should not be fetched")
		}
	}
}

type fetchRecorder struct {
	mu      sync.Mutex
	fetched []string
}

func (f *fetchRecorder) Fetch(ctx context.Context, game *model.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, game.ID)
	return nil
}

func (f *fetchRecorder) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}
