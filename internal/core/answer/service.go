package answer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/doc-chat/internal/core/retrieval"
)

// DefaultMaxContextLength は文脈の最大文字数のデフォルト
const DefaultMaxContextLength = 15000

// Retriever は類似検索のインターフェース
// テスト時のモック用に消費者側で定義
type Retriever interface {
	Retrieve(ctx context.Context, params retrieval.Params) ([]retrieval.Result, error)
}

// LLMClient は回答生成のインターフェース
type LLMClient interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// Service は質問応答のユースケースを提供する
type Service struct {
	retriever     Retriever
	llmClient     LLMClient
	maxContextLen int
	logger        *slog.Logger
}

type serviceOptions struct {
	maxContextLen int
	logger        *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithAnswerLogger は Service にロガーを設定する
func WithAnswerLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithMaxContextLength は文脈の最大文字数を設定する
func WithMaxContextLength(maxLen int) ServiceOption {
	return func(o *serviceOptions) {
		o.maxContextLen = maxLen
	}
}

// NewService は新しいServiceを作成する
func NewService(retriever Retriever, llmClient LLMClient, opts ...ServiceOption) *Service {
	options := serviceOptions{
		maxContextLen: DefaultMaxContextLength,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Service{
		retriever:     retriever,
		llmClient:     llmClient,
		maxContextLen: options.maxContextLen,
		logger:        options.logger,
	}
}

// Answer は質問に対する回答を生成する
// 検索結果が空でもLLMは呼び出し、根拠なしで回答したことを Sourceless で示す
// LLM呼び出しに失敗した場合も引用情報を残した結果を ErrLLMUnavailable とともに返す
func (s *Service) Answer(ctx context.Context, params retrieval.Params) (*AnswerResult, error) {
	results, err := s.retriever.Retrieve(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	assembled := Assemble(results, s.maxContextLen)
	sourceless := len(results) == 0

	s.logger.Info("文脈を組み立て",
		"sessionID", params.SessionID,
		"hits", len(results),
		"citations", len(assembled.Citations),
		"contextChars", len([]rune(assembled.Text)),
		"sourceless", sourceless,
	)

	prompt := BuildAnswerPrompt(params.Query, assembled.Text)

	completion, err := s.llmClient.GenerateCompletion(ctx, prompt)
	if err != nil {
		return &AnswerResult{
			Citations:  assembled.Citations,
			Sourceless: sourceless,
		}, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	return &AnswerResult{
		Answer:     completion,
		Citations:  assembled.Citations,
		Sourceless: sourceless,
	}, nil
}
