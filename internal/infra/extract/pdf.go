package extract

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dslipak/pdf"
)

// PDFParser はPDFファイルのパーサー
// 一部のページの抽出に失敗しても残りのページで続行する
type PDFParser struct{}

// NewPDFParser は新しい PDFParser を作成する
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Extensions は対応する拡張子を返す
func (p *PDFParser) Extensions() []string {
	return []string{".pdf"}
}

// Parse はPDFからページごとにテキストを抽出する
func (p *PDFParser) Parse(r io.Reader) (string, error) {
	// pdf.NewReaderはReaderAtを要求するため全体を読み込む
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("PDFページの抽出に失敗。スキップ", "page", i, "error", err)
			continue
		}

		sb.WriteString(text)
		sb.WriteString("\n")
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", ErrEmptyDocument
	}
	return content, nil
}
