package icon

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type mockSSRFGuard struct {
	blockAll bool
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(rawURL string) error {
	if m.blockAll {
		return fmt.Errorf("blocked by SSRF guard")
	}
	return nil
}

// TestFetcher_ImplementsInterface はFetcherがインターフェースを満たすことを検証する。
func TestFetcher_ImplementsInterface(t *testing.T) {
	var _ FetcherService = (*Fetcher)(nil)
}

// TestFetcher_FetchIcon_Success はアイコン取得成功時にデータとMIMEタイプを返すことをテストする。
func TestFetcher_FetchIcon_Success(t *testing.T) {
	// PNG画像のヘッダー（最小限のテストデータ）
	pngData := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/icon.png" {
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngData)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFGuard{})

	data, mimeType, err := fetcher.FetchIcon(context.Background(), server.URL+"/icon.png")
	if err != nil {
		t.Fatalf("FetchIcon returned error: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty icon data")
	}
	if mimeType != "image/png" {
		t.Errorf("expected MIME type 'image/png', got %q", mimeType)
	}
}

// TestFetcher_FetchIcon_404 は404時にnilデータを返すことをテストする。
func TestFetcher_FetchIcon_404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFGuard{})

	data, mimeType, err := fetcher.FetchIcon(context.Background(), server.URL+"/icon.png")
	// 取得失敗はエラーではなくnilデータとして扱う
	if err != nil {
		t.Fatalf("FetchIcon should not return error on 404, got: %v", err)
	}
	if data != nil {
		t.Error("expected nil icon data on 404")
	}
	if mimeType != "" {
		t.Errorf("expected empty MIME type on 404, got %q", mimeType)
	}
}

// TestFetcher_FetchIcon_EmptyURL は空URLの場合にnilデータを返すことをテストする。
func TestFetcher_FetchIcon_EmptyURL(t *testing.T) {
	fetcher := NewFetcher(&mockSSRFGuard{})

	data, mimeType, err := fetcher.FetchIcon(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchIcon should not return error on empty URL, got: %v", err)
	}
	if data != nil {
		t.Error("expected nil icon data for empty URL")
	}
	if mimeType != "" {
		t.Errorf("expected empty MIME type for empty URL, got %q", mimeType)
	}
}

// TestFetcher_FetchIcon_SSRFBlocked はSSRFガードにブロックされた場合にnilデータを返すことをテストする。
func TestFetcher_FetchIcon_SSRFBlocked(t *testing.T) {
	fetcher := NewFetcher(&mockSSRFGuard{blockAll: true})

	data, _, err := fetcher.FetchIcon(context.Background(), "http://169.254.169.254/icon.png")
	if err != nil {
		t.Fatalf("FetchIcon should not return error when blocked, got: %v", err)
	}
	if data != nil {
		t.Error("expected nil icon data when SSRF guard blocks the URL")
	}
}

// TestFetcher_FetchIcon_NonImageContentType は画像以外のContent-Typeの場合にnilデータを返すことをテストする。
func TestFetcher_FetchIcon_NonImageContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not an icon</html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFGuard{})

	data, _, err := fetcher.FetchIcon(context.Background(), server.URL+"/icon.png")
	if err != nil {
		t.Fatalf("FetchIcon returned error: %v", err)
	}
	if data != nil {
		t.Error("expected nil icon data for non-image Content-Type")
	}
}

// TestFetcher_FetchIconForPage_LinkTag は<link rel="icon">からアイコンを検出して取得することをテストする。
func TestFetcher_FetchIconForPage_LinkTag(t *testing.T) {
	pngData := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><link rel="icon" href="/assets/game-icon.png"></head><body></body></html>`)
		case "/assets/game-icon.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngData)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFGuard{})

	data, mimeType, err := fetcher.FetchIconForPage(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("FetchIconForPage returned error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty icon data")
	}
	if mimeType != "image/png" {
		t.Errorf("expected MIME type 'image/png', got %q", mimeType)
	}
}

// TestFetcher_FetchIconForPage_Fallback はlink要素がない場合に/favicon.icoへフォールバックすることをテストする。
func TestFetcher_FetchIconForPage_Fallback(t *testing.T) {
	icoData := []byte{0x00, 0x00, 0x01, 0x00}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><title>game</title></head><body></body></html>`)
		case "/favicon.ico":
			w.Header().Set("Content-Type", "image/x-icon")
			w.Write(icoData)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFGuard{})

	data, mimeType, err := fetcher.FetchIconForPage(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("FetchIconForPage returned error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty icon data from /favicon.ico fallback")
	}
	if mimeType != "image/x-icon" {
		t.Errorf("expected MIME type 'image/x-icon', got %q", mimeType)
	}
}

// TestDetectIconURL はHTMLからのアイコンURL検出をテストする。
func TestDetectIconURL(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		baseURL string
		want    string
	}{
		{
			name:    "rel=iconの相対パス",
			html:    `<html><head><link rel="icon" href="/fav.png"></head></html>`,
			baseURL: "https://games.example.com/puzzle/",
			want:    "https://games.example.com/fav.png",
		},
		{
			name:    "rel=shortcut iconも対象",
			html:    `<html><head><link rel="shortcut icon" href="icon.ico"></head></html>`,
			baseURL: "https://games.example.com/puzzle/",
			want:    "https://games.example.com/puzzle/icon.ico",
		},
		{
			name:    "絶対URLはそのまま",
			html:    `<html><head><link rel="icon" href="https://cdn.example.com/i.png"></head></html>`,
			baseURL: "https://games.example.com/",
			want:    "https://cdn.example.com/i.png",
		},
		{
			name:    "link要素なし",
			html:    `<html><head><title>game</title></head></html>`,
			baseURL: "https://games.example.com/",
			want:    "",
		},
		{
			name:    "rel=stylesheetは無視",
			html:    `<html><head><link rel="stylesheet" href="/style.css"></head></html>`,
			baseURL: "https://games.example.com/",
			want:    "",
		},
		{
			name:    "head終了後のlinkは無視",
			html:    `<html><head></head><body><link rel="icon" href="/late.png"></body></html>`,
			baseURL: "https://games.example.com/",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectIconURL([]byte(tt.html), tt.baseURL)
			if got != tt.want {
				t.Errorf("DetectIconURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestExtractMimeType はContent-Typeヘッダーの解析をテストする。
func TestExtractMimeType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/png", "image/png"},
		{"image/png; charset=binary", "image/png"},
		{"IMAGE/SVG+XML", "image/svg+xml"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := extractMimeType(tt.contentType); got != tt.want {
			t.Errorf("extractMimeType(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

// TestGuessDefaultIconURL はデフォルトfavicon URLの推測をテストする。
func TestGuessDefaultIconURL(t *testing.T) {
	got := guessDefaultIconURL("https://games.example.com/puzzle/play?level=3")
	want := "https://games.example.com/favicon.ico"
	if got != want {
		t.Errorf("guessDefaultIconURL() = %q, want %q", got, want)
	}

	if got := guessDefaultIconURL(""); got != "" {
		t.Errorf("expected empty result for empty URL, got %q", got)
	}
}

// TestFetcher_FetchIcon_SizeLimit はサイズ超過時にnilデータを返すことをテストする。
func TestFetcher_FetchIcon_SizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte(strings.Repeat("x", maxIconSize+1)))
	}))
	defer server.Close()

	fetcher := NewFetcher(&mockSSRFGuard{})

	data, _, err := fetcher.FetchIcon(context.Background(), server.URL+"/big.png")
	if err != nil {
		t.Fatalf("FetchIcon returned error: %v", err)
	}
	if data != nil {
		t.Error("expected nil icon data when size limit exceeded")
	}
}
