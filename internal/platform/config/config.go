package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ベクトルストアバックエンドの識別子
const (
	BackendPostgres = "postgres"
	BackendQdrant   = "qdrant"
	BackendMemory   = "memory"
)

// LLM / Embedding プロバイダの識別子
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// ベクトルストアの選択（postgres / qdrant / memory）
	VectorBackend string

	// Database設定（VectorBackend=postgres のとき使用）
	Database DatabaseConfig

	// Qdrant設定（VectorBackend=qdrant のとき使用）
	Qdrant QdrantConfig

	// LLM / Embedding プロバイダの選択（ollama / openai）
	Provider string

	// Ollama設定
	Ollama OllamaConfig

	// OpenAI設定
	OpenAI OpenAIConfig

	// RAGパイプライン設定
	RAG RAGConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// QdrantConfig はQdrant接続設定
type QdrantConfig struct {
	URL    string
	APIKey string
}

// OllamaConfig はOllamaサーバ設定（LLM + Embeddings）
type OllamaConfig struct {
	BaseURL            string
	Model              string
	EmbeddingModel     string
	EmbeddingDimension int
}

// OpenAIConfig はOpenAI API設定（LLM + Embeddings）
type OpenAIConfig struct {
	APIKey             string
	LLMModel           string
	EmbeddingModel     string
	EmbeddingDimension int
}

// RAGConfig は検索・文脈組み立ての設定
type RAGConfig struct {
	Collection       string  // コレクション（テーブル）名
	ChunkSize        int     // チャンクの最大文字数
	ChunkOverlap     int     // 連続チャンク間の重複文字数
	TopK             int     // 検索結果の上限件数
	ScoreThreshold   float64 // 類似度スコアの下限
	MaxContextLength int     // LLMに渡す文脈の最大文字数
	StorageQuota     int     // ベクトル件数の上限（0は無制限）
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		VectorBackend: getEnv("VECTOR_BACKEND", BackendPostgres),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docchat"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docchat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Qdrant: QdrantConfig{
			URL:    getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey: getEnv("QDRANT_API_KEY", ""),
		},
		Provider: getEnv("LLM_PROVIDER", ProviderOllama),
		Ollama: OllamaConfig{
			BaseURL:            getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			Model:              getEnv("OLLAMA_MODEL", "mistral"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
		},
		RAG: RAGConfig{
			Collection:       getEnv("COLLECTION_NAME", "rag_documents"),
			ChunkSize:        getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:     getEnvAsInt("CHUNK_OVERLAP", 200),
			TopK:             getEnvAsInt("TOP_K_RESULTS", 5),
			ScoreThreshold:   getEnvAsFloat("SIMILARITY_THRESHOLD", 0.3),
			MaxContextLength: getEnvAsInt("MAX_CONTEXT_LENGTH", 15000),
			StorageQuota:     getEnvAsInt("STORAGE_QUOTA", 0),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は起動時に設定の整合性を検証します
func (c *Config) validate() error {
	switch c.VectorBackend {
	case BackendPostgres, BackendQdrant, BackendMemory:
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND: %q", c.VectorBackend)
	}

	switch c.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER: %q", c.Provider)
	}

	if c.Provider == ProviderOpenAI && c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set when LLM_PROVIDER=openai")
	}

	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive: %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must satisfy 0 <= overlap < chunk size: %d", c.RAG.ChunkOverlap)
	}
	if c.RAG.ScoreThreshold < 0 || c.RAG.ScoreThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in [0, 1]: %f", c.RAG.ScoreThreshold)
	}
	if c.RAG.MaxContextLength <= 0 {
		return fmt.Errorf("MAX_CONTEXT_LENGTH must be positive: %d", c.RAG.MaxContextLength)
	}

	return nil
}

// EmbeddingDimension は選択中のプロバイダのベクトル次元を返します
func (c *Config) EmbeddingDimension() int {
	if c.Provider == ProviderOpenAI {
		return c.OpenAI.EmbeddingDimension
	}
	return c.Ollama.EmbeddingDimension
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
