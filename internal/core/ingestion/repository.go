package ingestion

import (
	"context"
	"errors"

	"github.com/samber/mo"
)

// 取り込みパイプラインのエラー分類
var (
	// ErrEmbeddingUnavailable は埋め込みプロバイダへの到達失敗
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrQuotaExceeded はストレージ上限超過
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrVectorStoreUnavailable はベクトルストアへの到達失敗
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
)

// VectorStore は取り込み側が必要とするベクトルストア操作
// テスト時のモック用に消費者側で定義
type VectorStore interface {
	// EnsureCollection はコレクションを冪等に初期化する
	// 既存コレクションの次元が dim と異なる場合はエラーを返す
	EnsureCollection(ctx context.Context, dim int) error
	// Upsert はレコード群をIDベースで挿入または置換する
	Upsert(ctx context.Context, records []Record) error
	// FindKnownSource はフィンガープリントが一致する登録済みソースを探す
	FindKnownSource(ctx context.Context, fingerprint string, sessionID string) (mo.Option[KnownSource], error)
	// CountRecords は全セッションのレコード総数を返す
	CountRecords(ctx context.Context) (int, error)
}

// Embedder はテキストをベクトルに変換するインターフェース
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension は生成されるベクトルの次元数
	Dimension() int
	// MaxBatchSize は1回のBatchEmbedで送れる最大テキスト数
	MaxBatchSize() int
}
