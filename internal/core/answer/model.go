package answer

import "errors"

// ErrLLMUnavailable はLLMプロバイダへの到達失敗
// このエラーとともに返る AnswerResult には引用情報が残っており、
// 呼び出し側は検索結果だけを提示して縮退運転できる
var ErrLLMUnavailable = errors.New("llm provider unavailable")

// Citation は回答の根拠となったソースの引用
type Citation struct {
	SourceName string
	Score      float64 // そのソースの最高スコア
}

// Context はLLMに渡す組み立て済みの文脈
type Context struct {
	Text      string
	Citations []Citation
}

// AnswerResult は質問応答の結果
type AnswerResult struct {
	Answer     string
	Citations  []Citation
	Sourceless bool // 検索結果なしで回答した場合 true
}
