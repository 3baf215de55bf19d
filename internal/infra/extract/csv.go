package extract

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// maxCSVRows はCSVから取り込む最大行数
// 巨大なデータファイルを丸ごと埋め込んでも検索品質は上がらない
const maxCSVRows = 100

// CSVParser はCSVファイルのパーサー
// ヘッダー行と各レコードを「列名: 値」の行に展開する
type CSVParser struct{}

// NewCSVParser は新しい CSVParser を作成する
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Extensions は対応する拡張子を返す
func (p *CSVParser) Extensions() []string {
	return []string{".csv"}
}

// Parse はCSVをテキストに展開する
func (p *CSVParser) Parse(r io.Reader) (string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return "", ErrEmptyDocument
	}
	if err != nil {
		return "", fmt.Errorf("failed to read csv header: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Columns: ")
	sb.WriteString(strings.Join(header, ", "))
	sb.WriteString("\n")

	rows := 0
	for rows < maxCSVRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read csv row: %w", err)
		}

		sb.WriteString("\n")
		for i, value := range record {
			name := fmt.Sprintf("column%d", i+1)
			if i < len(header) {
				name = header[i]
			}
			sb.WriteString(fmt.Sprintf("%s: %s\n", name, value))
		}
		rows++
	}

	return sb.String(), nil
}
