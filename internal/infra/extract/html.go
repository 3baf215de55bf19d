package extract

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

// HTMLParser はHTMLファイルのパーサー
// マークアップを取り除き、本文テキストのみを残す
type HTMLParser struct{}

// NewHTMLParser は新しい HTMLParser を作成する
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// Extensions は対応する拡張子を返す
func (p *HTMLParser) Extensions() []string {
	return []string{".html", ".htm"}
}

var (
	htmlStripRe = regexp.MustCompile(`(?is)<(script|style|noscript|head)[^>]*>.*?</(script|style|noscript|head)>`)
	htmlCommentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlBlockRe   = regexp.MustCompile(`(?i)</?(p|div|br|li|ul|ol|h[1-6]|tr|table|section|article|header|footer|nav)[^>]*>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
)

// Parse はHTMLからテキストを抽出する
func (p *HTMLParser) Parse(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read html: %w", err)
	}

	return StripHTML(string(data)), nil
}

// StripHTML はHTML文字列から本文テキストを取り出す
// ブロック要素は改行に置き換え、残りのタグを落としてエンティティを展開する
func StripHTML(content string) string {
	content = htmlStripRe.ReplaceAllString(content, " ")
	content = htmlCommentRe.ReplaceAllString(content, " ")
	content = htmlBlockRe.ReplaceAllString(content, "\n")
	content = htmlTagRe.ReplaceAllString(content, " ")
	content = html.UnescapeString(content)

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
