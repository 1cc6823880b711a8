package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
// カタログ同期が取り込むゲーム説明文と、ニュースフィード由来のお知らせ本文に使用される。
type ContentSanitizerService interface {
	// SanitizeText は入力から全てのHTMLタグを除去し、プレーンテキストを返す。
	// ゲームの説明文はマークアップを一切許可しない。
	SanitizeText(raw string) string

	// SanitizeAnnouncementHTML はお知らせ本文を限定的なHTMLにサニタイズする。
	// 許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeAnnouncementHTML(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	textPolicy *bluemonday.Policy
	htmlPolicy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayの2つのポリシーを構築する。
//   - textPolicy: 全タグ除去（ゲーム説明文用）
//   - htmlPolicy: 限定タグのみ許可（お知らせ本文用）
func NewContentSanitizer() *contentSanitizer {
	html := bluemonday.NewPolicy()

	// 許可タグの設定（属性なしのシンプルなタグ）
	// script, iframe, style等は許可リストに含めないことで自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されない
	html.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	// aタグの設定:
	// - href属性を許可、相対URLは不許可
	// - target="_blank"とrel="noreferrer noopener"を強制付与
	html.AllowAttrs("href").OnElements("a")
	html.AllowRelativeURLs(false)
	html.AddTargetBlankToFullyQualifiedLinks(true)
	html.RequireNoReferrerOnLinks(true)
	html.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &contentSanitizer{
		textPolicy: bluemonday.StrictPolicy(),
		htmlPolicy: html,
	}
}

// SanitizeText は入力から全てのHTMLタグを除去し、前後の空白を整えたテキストを返す。
func (s *contentSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.textPolicy.Sanitize(raw))
}

// SanitizeAnnouncementHTML はお知らせ本文を限定的なHTMLにサニタイズする。
func (s *contentSanitizer) SanitizeAnnouncementHTML(rawHTML string) string {
	return s.htmlPolicy.Sanitize(rawHTML)
}
