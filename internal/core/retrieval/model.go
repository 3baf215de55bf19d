package retrieval

// Result は類似検索で得られた1件のチャンク
// 検索のたびに組み立てられる一時的な値で、永続化されない
type Result struct {
	Content    string
	SourceName string
	SourceType string
	ChunkIndex int
	Score      float64 // コサイン類似度（高いほど近い）
}

// Filter は検索対象を絞り込む条件
type Filter struct {
	SessionID  string
	SourceType string // 空文字列は種別で絞り込まない
}

// Params は検索パラメータ
// TopK と Threshold が未設定（ゼロ値/負値）の場合はサービスのデフォルトが適用される
type Params struct {
	Query      string
	SessionID  string
	SourceType string
	TopK       int
	Threshold  float64
}
