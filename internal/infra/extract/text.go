package extract

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// TextParser はプレーンテキスト系ファイルのパーサー
type TextParser struct{}

// NewTextParser は新しい TextParser を作成する
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Extensions は対応する拡張子を返す
func (p *TextParser) Extensions() []string {
	return []string{".txt", ".md", ".log"}
}

// Parse はテキストを読み込む
// UTF-8でないバイト列はLatin-1として救済する（文字化けよりも取り込み優先）
func (p *TextParser) Parse(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read text: %w", err)
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	return sb.String(), nil
}
