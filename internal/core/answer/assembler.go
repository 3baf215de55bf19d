package answer

import (
	"fmt"
	"strings"

	"github.com/jinford/doc-chat/internal/core/retrieval"
)

// ブロック間の区切り
const blockSeparator = "\n\n"

// Assemble は検索結果から文脈を貪欲に組み立てる
// 入力はスコア降順を前提とし、(ソース名, チャンク番号) の重複を除いたうえで
// maxLen 文字に収まるまでブロックを追加する
//
// 収まりきらないブロックは、残り枠内の文末（. ! ?）まで切り詰めて採用する。
// 1文も収まらない場合はそのブロックを捨て、以降の追加を打ち切る。
// 返る文脈の文字数は常に maxLen 以下になる。
func Assemble(results []retrieval.Result, maxLen int) Context {
	var (
		blocks    []string
		used      int
		citations []Citation
		bestScore = map[string]int{} // ソース名 -> citationsのインデックス
		seen      = map[string]struct{}{}
	)

	addCitation := func(r retrieval.Result) {
		if idx, ok := bestScore[r.SourceName]; ok {
			if r.Score > citations[idx].Score {
				citations[idx].Score = r.Score
			}
			return
		}
		bestScore[r.SourceName] = len(citations)
		citations = append(citations, Citation{SourceName: r.SourceName, Score: r.Score})
	}

	for _, r := range results {
		key := fmt.Sprintf("%s#%d", r.SourceName, r.ChunkIndex)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		block := fmt.Sprintf("[Source: %s]\n%s", r.SourceName, r.Content)

		sepLen := 0
		if len(blocks) > 0 {
			sepLen = len([]rune(blockSeparator))
		}
		remaining := maxLen - used - sepLen

		blockLen := len([]rune(block))
		if blockLen <= remaining {
			blocks = append(blocks, block)
			used += sepLen + blockLen
			addCitation(r)
			continue
		}

		// 枠を超えるブロックは文末で切り詰める
		header := fmt.Sprintf("[Source: %s]\n", r.SourceName)
		room := remaining - len([]rune(header))
		if truncated, ok := truncateAtSentence(r.Content, room); ok {
			blocks = append(blocks, header+truncated)
			addCitation(r)
		}
		// 切り詰めの成否にかかわらず、枠は尽きたとみなして打ち切る
		break
	}

	return Context{
		Text:      strings.Join(blocks, blockSeparator),
		Citations: citations,
	}
}

// truncateAtSentence は limit 文字以内で最後の文末に切り詰める
// 文末（. ! ?）が1つも収まらない場合は ok=false を返す
func truncateAtSentence(text string, limit int) (string, bool) {
	if limit <= 0 {
		return "", false
	}

	runes := []rune(text)
	if len(runes) > limit {
		runes = runes[:limit]
	}

	for i := len(runes) - 1; i >= 0; i-- {
		switch runes[i] {
		case '.', '!', '?', '。', '！', '？':
			return strings.TrimSpace(string(runes[:i+1])), true
		}
	}
	return "", false
}
