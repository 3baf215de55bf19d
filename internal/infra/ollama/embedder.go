package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jinford/doc-chat/internal/core/ingestion"
	"github.com/jinford/doc-chat/internal/core/retrieval"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "nomic-embed-text"
	// DefaultEmbeddingDimension はnomic-embed-textの次元数
	DefaultEmbeddingDimension = 768

	// embedTimeout は埋め込み1件あたりのタイムアウト
	embedTimeout = 30 * time.Second
)

// Embedder はOllamaの/api/embeddingsを使用してテキストをベクトルに変換する
// OllamaのAPIは1件ずつしか受け付けないため、バッチは逐次呼び出しになる
type Embedder struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

type embedderOptions struct {
	model     string
	dimension int
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(baseURL string, opts ...EmbedderOption) *Embedder {
	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Embedder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     options.model,
		dimension: options.dimension,
		client:    &http.Client{Timeout: embedTimeout},
	}
}

// Embed は単一テキストの Embedding を生成する
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]any{
		"model":  e.model,
		"prompt": text,
	}

	var resp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := postJSON(ctx, e.client, e.baseURL+"/api/embeddings", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("ollama embeddings failed: %w", err)
	}

	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding")
	}
	return resp.Embedding, nil
}

// BatchEmbed は複数テキストの Embedding を逐次生成する
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	embeddings := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		embeddings = append(embeddings, vector)
	}
	return embeddings, nil
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// MaxBatchSize はバッチ処理の最大サイズを返す
// APIが1件ずつのため逐次処理だが、進捗の区切りとして32件ごとに扱う
func (e *Embedder) MaxBatchSize() int {
	return 32
}

// インターフェース実装の確認
var (
	_ ingestion.Embedder = (*Embedder)(nil)
	_ retrieval.Embedder = (*Embedder)(nil)
)
