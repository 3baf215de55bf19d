package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

// DocxParser はWord文書（.docx）のパーサー
// .docxはZIPアーカイブで、本文は word/document.xml に入っている
type DocxParser struct{}

// NewDocxParser は新しい DocxParser を作成する
func NewDocxParser() *DocxParser {
	return &DocxParser{}
}

// Extensions は対応する拡張子を返す
func (p *DocxParser) Extensions() []string {
	return []string{".docx"}
}

var (
	docxParagraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>|<w:p/>`)
	docxTextRe      = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
)

// Parse はdocxから段落単位でテキストを抽出する
func (p *DocxParser) Parse(r io.Reader) (string, error) {
	// zip.NewReaderはReaderAtを要求するため全体を読み込む
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read docx: %w", err)
	}

	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx archive: %w", err)
	}

	var documentXML []byte
	for _, file := range zipReader.File {
		if file.Name == "word/document.xml" {
			rc, err := file.Open()
			if err != nil {
				return "", fmt.Errorf("failed to open document.xml: %w", err)
			}
			documentXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", fmt.Errorf("failed to read document.xml: %w", err)
			}
			break
		}
	}
	if documentXML == nil {
		return "", fmt.Errorf("invalid docx: word/document.xml not found")
	}

	return extractDocxText(documentXML), nil
}

// extractDocxText は段落（w:p）ごとにテキスト要素（w:t）を連結する
func extractDocxText(xmlData []byte) string {
	content := string(xmlData)

	var sb strings.Builder
	for _, para := range docxParagraphRe.FindAllString(content, -1) {
		var paraText strings.Builder
		for _, m := range docxTextRe.FindAllStringSubmatch(para, -1) {
			paraText.WriteString(html.UnescapeString(m[1]))
		}

		text := strings.TrimSpace(paraText.String())
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}
	return sb.String()
}
