package chunk

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultBoundaryLookback は境界調整で遡る最大文字数
const DefaultBoundaryLookback = 80

// Chunk は1つのソースから切り出されたテキスト窓を表す
type Chunk struct {
	Index int    // ソース内での順序（0始まり）
	Text  string // 正規化済みテキストの部分文字列
}

// Splitter はテキストをオーバーラップ付きの窓に分割します
type Splitter struct {
	size     int // 窓の最大文字数
	overlap  int // 連続する窓が共有する文字数
	lookback int // 単語を切らないために遡る最大文字数
}

// NewSplitter は新しいSplitterを作成します
// 事前条件: 0 <= overlap < size
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive: %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must satisfy 0 <= overlap < size: overlap=%d size=%d", overlap, size)
	}

	lookback := DefaultBoundaryLookback
	if lookback > size/4 {
		lookback = size / 4
	}

	return &Splitter{
		size:     size,
		overlap:  overlap,
		lookback: lookback,
	}, nil
}

// Split は正規化済みテキストをオーバーラップ付きの窓に分割する
// 空文字列（正規化後）の入力は「取り込むものがない」を意味し、nilを返す
//
// 各窓の先頭から overlap 文字を除いて連結すると元の正規化テキストが
// 復元できることを保証する（境界調整は窓の終端のみを動かすため）。
func (s *Splitter) Split(text string) []Chunk {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	var chunks []Chunk

	start := 0
	index := 0
	for start < len(runes) {
		end := start + s.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// 単語の途中で切らないよう、直前の空白まで遡る
			if cut := s.boundaryBefore(runes, start, end); cut > 0 {
				end = cut
			}
		}

		chunks = append(chunks, Chunk{
			Index: index,
			Text:  string(runes[start:end]),
		})

		if end == len(runes) {
			break
		}
		start = end - s.overlap
		index++
	}

	return chunks
}

// boundaryBefore は end の直前 lookback 文字以内にある空白位置を返す
// 見つからない場合、または窓の前進が止まる位置しかない場合は 0 を返す（ハードカット）
func (s *Splitter) boundaryBefore(runes []rune, start, end int) int {
	limit := end - s.lookback
	if limit < start+1 {
		limit = start + 1
	}
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			// 次の窓の開始位置（cut - overlap）が前進しない調整は採用しない
			if i-s.overlap <= start {
				return 0
			}
			return i
		}
	}
	return 0
}

// Normalize は取り込みテキストを正規化する
// 連続する空白類を1つのスペースに畳み、制御文字を取り除く
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	inSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			inSpace = true
		case unicode.IsControl(r):
			// 制御文字は区切りにもしない
		default:
			if inSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			inSpace = false
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
