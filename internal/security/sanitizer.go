// Package security は入力テキストの無害化を提供する。
//
// TodoやPriorityの文字列フィールドは保存前にここを通す。
// タイトルや名前はマークアップを持たないプレーンテキストとして、
// 説明文は限られた書式タグのみを許可するHTMLとして扱う。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力のテキストを無害化する。
// 実装はスレッドセーフで、同一入力に対して常に同一出力を返す。
type TextSanitizer interface {
	// PlainText は全てのタグを除去し、前後の空白を取り除いたテキストを返す。
	PlainText(s string) string

	// RichText は許可タグ以外を除去したHTMLを返す。
	RichText(s string) string
}

type textSanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
// 説明文の許可タグ: p, br, ul, ol, li, blockquote, pre, code, strong, em, a(href)
// リンクは絶対URLのみ許可し、target="_blank"とrel="noopener noreferrer"を付与する。
func NewTextSanitizer() TextSanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowURLSchemes("https", "http", "mailto")
	rich.AllowRelativeURLs(false)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)

	return &textSanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

// PlainText はタグを除去する。StrictPolicyがエスケープした文字実体は元に戻し、
// JSONでそのまま返せる形にする。
func (s *textSanitizer) PlainText(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(in)))
}

func (s *textSanitizer) RichText(in string) string {
	if in == "" {
		return ""
	}
	return strings.TrimSpace(s.rich.Sanitize(in))
}
