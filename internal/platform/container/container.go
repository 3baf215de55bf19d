package container

import (
	"context"
	"fmt"
	"log/slog"

	coreanswer "github.com/jinford/doc-chat/internal/core/answer"
	coreingestion "github.com/jinford/doc-chat/internal/core/ingestion"
	"github.com/jinford/doc-chat/internal/core/ingestion/chunk"
	coreretrieval "github.com/jinford/doc-chat/internal/core/retrieval"
	coresession "github.com/jinford/doc-chat/internal/core/session"
	"github.com/jinford/doc-chat/internal/infra/extract"
	"github.com/jinford/doc-chat/internal/infra/memory"
	"github.com/jinford/doc-chat/internal/infra/ollama"
	"github.com/jinford/doc-chat/internal/infra/openai"
	"github.com/jinford/doc-chat/internal/infra/postgres"
	"github.com/jinford/doc-chat/internal/infra/qdrant"
	"github.com/jinford/doc-chat/internal/platform/config"
)

// VectorStore は全サービスが必要とするベクトルストア操作の合併
// postgres / qdrant / memory の各実装がこれを満たす
type VectorStore interface {
	coreingestion.VectorStore
	coreretrieval.VectorSearcher
	coresession.Store
}

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	IngestService   *coreingestion.Service
	RetrieveService *coreretrieval.Service
	AnswerService   *coreanswer.Service
	SessionService  *coresession.Service

	Registry   *extract.Registry
	WebFetcher *extract.WebFetcher
	DirLoader  *extract.DirLoader

	logger   *slog.Logger
	database *postgres.DB // VectorBackend=postgres のときのみ非nil
}

type containerOptions struct {
	logger    *slog.Logger
	store     VectorStore
	embedder  coreingestion.Embedder
	llmClient coreanswer.LLMClient
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerStore はベクトルストアを差し替える
func WithContainerStore(store VectorStore) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder coreingestion.Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerLLMClient は LLM クライアントを差し替える
func WithContainerLLMClient(client coreanswer.LLMClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.llmClient = client
	}
}

// NewContainer は設定からコンテナを生成する
// コレクションはここで初期化され、次元不一致は起動エラーになる
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &ServiceContainer{logger: options.logger}

	// Embedder / LLMClient（プロバイダ選択）
	embedder := options.embedder
	llmClient := options.llmClient
	if embedder == nil || llmClient == nil {
		builtEmbedder, builtLLM, err := buildProvider(cfg)
		if err != nil {
			return nil, err
		}
		if embedder == nil {
			embedder = builtEmbedder
		}
		if llmClient == nil {
			llmClient = builtLLM
		}
	}

	// VectorStore（バックエンド選択）
	store := options.store
	if store == nil {
		var err error
		store, err = c.buildStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	if err := store.EnsureCollection(ctx, cfg.EmbeddingDimension()); err != nil {
		c.Close()
		return nil, fmt.Errorf("コレクションの初期化に失敗: %w", err)
	}

	// Chunker / TokenCounter
	splitter, err := chunk.NewSplitter(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("Chunker 初期化に失敗しました: %w", err)
	}
	tokenCounter, err := chunk.NewTokenCounter()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("TokenCounter 初期化に失敗しました: %w", err)
	}

	// コアサービス
	c.IngestService = coreingestion.NewService(
		store,
		embedder,
		splitter,
		tokenCounter,
		coreingestion.WithIngestLogger(options.logger),
		coreingestion.WithStorageQuota(cfg.RAG.StorageQuota),
	)
	c.RetrieveService = coreretrieval.NewService(
		store,
		embedder,
		coreretrieval.WithRetrieveLogger(options.logger),
		coreretrieval.WithDefaultTopK(cfg.RAG.TopK),
		coreretrieval.WithDefaultThreshold(cfg.RAG.ScoreThreshold),
	)
	c.AnswerService = coreanswer.NewService(
		c.RetrieveService,
		llmClient,
		coreanswer.WithAnswerLogger(options.logger),
		coreanswer.WithMaxContextLength(cfg.RAG.MaxContextLength),
	)
	c.SessionService = coresession.NewService(
		store,
		coresession.WithSessionLogger(options.logger),
		coresession.WithQuota(cfg.RAG.StorageQuota),
	)

	// 抽出系
	c.Registry = extract.NewRegistry()
	c.WebFetcher = extract.NewWebFetcher()
	c.DirLoader = extract.NewDirLoader(c.Registry)

	return c, nil
}

// buildProvider は設定に応じた Embedder と LLMClient を組み立てる
func buildProvider(cfg *config.Config) (coreingestion.Embedder, coreanswer.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		embedder := openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
		)
		llmClient, err := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.LLMModel)
		if err != nil {
			return nil, nil, fmt.Errorf("OpenAI LLMクライアント初期化に失敗しました: %w", err)
		}
		return embedder, llmClient, nil

	case config.ProviderOllama:
		embedder := ollama.NewEmbedder(
			cfg.Ollama.BaseURL,
			ollama.WithEmbeddingModel(cfg.Ollama.EmbeddingModel),
			ollama.WithEmbeddingDimension(cfg.Ollama.EmbeddingDimension),
		)
		llmClient := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Model)
		return embedder, llmClient, nil

	default:
		return nil, nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
	}
}

// buildStore は設定に応じたベクトルストアを組み立てる
func (c *ServiceContainer) buildStore(ctx context.Context, cfg *config.Config) (VectorStore, error) {
	switch cfg.VectorBackend {
	case config.BackendPostgres:
		db, err := postgres.New(ctx, postgres.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.database = db
		return postgres.NewStore(db.Pool, cfg.RAG.Collection), nil

	case config.BackendQdrant:
		return qdrant.NewStore(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.RAG.Collection,
		}), nil

	case config.BackendMemory:
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown vector backend: %q", cfg.VectorBackend)
	}
}

// Close は内部リソースを解放する
func (c *ServiceContainer) Close() {
	if c != nil && c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
