package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// デフォルトの検索パラメータ
const (
	DefaultTopK      = 5
	DefaultThreshold = 0.3
)

// Service は類似検索のユースケースを提供する
type Service struct {
	searcher  VectorSearcher
	embedder  Embedder
	topK      int
	threshold float64
	logger    *slog.Logger
}

type serviceOptions struct {
	topK      int
	threshold float64
	logger    *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithRetrieveLogger は Service にロガーを設定する
func WithRetrieveLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithDefaultTopK はデフォルトの取得件数を設定する
func WithDefaultTopK(topK int) ServiceOption {
	return func(o *serviceOptions) {
		o.topK = topK
	}
}

// WithDefaultThreshold はデフォルトのスコア下限を設定する
func WithDefaultThreshold(threshold float64) ServiceOption {
	return func(o *serviceOptions) {
		o.threshold = threshold
	}
}

// NewService は新しいServiceを作成する
func NewService(searcher VectorSearcher, embedder Embedder, opts ...ServiceOption) *Service {
	options := serviceOptions{
		topK:      DefaultTopK,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Service{
		searcher:  searcher,
		embedder:  embedder,
		topK:      options.topK,
		threshold: options.threshold,
		logger:    options.logger,
	}
}

// Retrieve はクエリを埋め込み、セッション内の類似チャンクを検索する
// 該当なしはエラーではなく空スライスを返す
func (s *Service) Retrieve(ctx context.Context, params Params) ([]Result, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	if strings.TrimSpace(params.SessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}

	topK := params.TopK
	if topK <= 0 {
		topK = s.topK
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = s.threshold
	}

	vector, err := s.embedder.Embed(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	filter := Filter{
		SessionID:  params.SessionID,
		SourceType: params.SourceType,
	}

	results, err := s.searcher.Search(ctx, vector, filter, topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	s.logger.Debug("検索が完了",
		"sessionID", params.SessionID,
		"topK", topK,
		"threshold", threshold,
		"hits", len(results),
	)

	return results, nil
}
