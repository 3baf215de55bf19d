package retrieval

import "context"

// Embedder はクエリをベクトルに変換するインターフェース
// テスト時のモック用に消費者側で定義
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher はベクトルストアの類似検索インターフェース
// スコア降順で返し、同点は新しく取り込まれたレコードを先にする
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, filter Filter, topK int, threshold float64) ([]Result, error)
}
