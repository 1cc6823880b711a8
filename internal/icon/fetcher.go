// Package icon はゲームアイコンの取得と検出を提供する。
package icon

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// maxIconSize はアイコンの最大サイズ（2MB）。
const maxIconSize = 2 * 1024 * 1024

// iconTimeout はアイコン取得のタイムアウト。
const iconTimeout = 5 * time.Second

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// FetcherService はゲームアイコン取得のインターフェース。
type FetcherService interface {
	// FetchIcon は指定URLからアイコンを取得する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	FetchIcon(ctx context.Context, iconURL string) (data []byte, mimeType string, err error)

	// FetchIconForPage はゲームページのHTMLからアイコンURLを検出して取得する。
	// <link rel="icon">を探し、見つからない場合は/favicon.icoを試行する。
	FetchIconForPage(ctx context.Context, pageURL string) (data []byte, mimeType string, err error)
}

// Fetcher はアイコン取得機能の実装。
type Fetcher struct {
	ssrfGuard SSRFValidator
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator) *Fetcher {
	return &Fetcher{
		ssrfGuard: ssrfGuard,
	}
}

// FetchIcon は指定URLからアイコンを取得する。
// アイコンは装飾であり、取得失敗はゲーム自体の公開を妨げない。
func (f *Fetcher) FetchIcon(ctx context.Context, iconURL string) ([]byte, string, error) {
	if iconURL == "" {
		return nil, "", nil
	}

	// SSRF検証
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(iconURL); err != nil {
			slog.Warn("アイコン取得: SSRFブロック", "url", iconURL, "error", err)
			return nil, "", nil
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		slog.Warn("アイコン取得: リクエスト作成失敗", "url", iconURL, "error", err)
		return nil, "", nil
	}
	req.Header.Set("User-Agent", "Gamebox/1.0 Game Portal")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("アイコン取得: HTTPリクエスト失敗", "url", iconURL, "error", err)
		return nil, "", nil
	}
	defer resp.Body.Close()

	// 2xx以外は取得失敗として扱う
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("アイコン取得: HTTPステータス異常", "url", iconURL, "status", resp.StatusCode)
		return nil, "", nil
	}

	// レスポンスボディを読み込み（最大2MB）
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIconSize+1))
	if err != nil {
		slog.Warn("アイコン取得: レスポンス読み取り失敗", "url", iconURL, "error", err)
		return nil, "", nil
	}

	if int64(len(body)) > maxIconSize {
		slog.Warn("アイコン取得: サイズ超過", "url", iconURL, "size", len(body))
		return nil, "", nil
	}

	mimeType := extractMimeType(resp.Header.Get("Content-Type"))
	if !isImageMime(mimeType) {
		slog.Warn("アイコン取得: 画像以外のContent-Type", "url", iconURL, "contentType", mimeType)
		return nil, "", nil
	}

	return body, mimeType, nil
}

// FetchIconForPage はゲームページのHTMLからアイコンURLを検出して取得する。
func (f *Fetcher) FetchIconForPage(ctx context.Context, pageURL string) ([]byte, string, error) {
	if pageURL == "" {
		return nil, "", nil
	}

	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(pageURL); err != nil {
			slog.Warn("アイコン検出: SSRFブロック", "url", pageURL, "error", err)
			return nil, "", nil
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", nil
	}
	req.Header.Set("User-Agent", "Gamebox/1.0 Game Portal")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("アイコン検出: ページ取得失敗", "url", pageURL, "error", err)
		return f.FetchIcon(ctx, guessDefaultIconURL(pageURL))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIconSize))
	if err != nil {
		return f.FetchIcon(ctx, guessDefaultIconURL(pageURL))
	}

	if iconURL := DetectIconURL(body, pageURL); iconURL != "" {
		if data, mime, _ := f.FetchIcon(ctx, iconURL); data != nil {
			return data, mime, nil
		}
	}

	// <link rel="icon">が見つからない・取得できない場合は/favicon.icoを試行
	return f.FetchIcon(ctx, guessDefaultIconURL(pageURL))
}

// getHTTPClient はHTTPクライアントを取得する。
func (f *Fetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(iconTimeout, maxIconSize)
	}
	return &http.Client{Timeout: iconTimeout}
}

// DetectIconURL はHTMLのhead内から<link rel="icon">のhrefを検出し、
// 絶対URLに解決して返す。見つからない場合は空文字列を返す。
func DetectIconURL(htmlBody []byte, baseURL string) string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			if string(tn) != "link" || !hasAttr {
				continue
			}

			// link要素の属性を解析
			var rel, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			// rel="icon"または"shortcut icon"のリンクのみ対象
			if href == "" || (rel != "icon" && rel != "shortcut icon" && rel != "apple-touch-icon") {
				continue
			}

			if resolved := resolveURL(baseU, href); resolved != "" {
				return resolved
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return ""
			}
		}
	}
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// guessDefaultIconURL はページURLからデフォルトのfavicon URLを推測する。
func guessDefaultIconURL(pageURL string) string {
	if pageURL == "" {
		return ""
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	u.Path = "/favicon.ico"
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// compile-time interface check
var _ FetcherService = (*Fetcher)(nil)
