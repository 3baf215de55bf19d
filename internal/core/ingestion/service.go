package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jinford/doc-chat/internal/core/ingestion/chunk"
)

// Service は取り込みのユースケースを提供する
type Service struct {
	store        VectorStore
	embedder     Embedder
	splitter     *chunk.Splitter
	tokenCounter *chunk.TokenCounter
	quota        int // レコード総数の上限（0は無制限）
	logger       *slog.Logger
}

type serviceOptions struct {
	quota  int
	logger *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithIngestLogger は Service にロガーを設定する
func WithIngestLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithStorageQuota はレコード総数の上限を設定する（0は無制限）
func WithStorageQuota(quota int) ServiceOption {
	return func(o *serviceOptions) {
		o.quota = quota
	}
}

// NewService は新しいServiceを作成する
func NewService(
	store VectorStore,
	embedder Embedder,
	splitter *chunk.Splitter,
	tokenCounter *chunk.TokenCounter,
	opts ...ServiceOption,
) *Service {
	options := serviceOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Service{
		store:        store,
		embedder:     embedder,
		splitter:     splitter,
		tokenCounter: tokenCounter,
		quota:        options.quota,
		logger:       options.logger,
	}
}

// Ingest はソースを取り込み、チャンク化・埋め込み・格納まで行う
// 同一フィンガープリントのソースが同じセッションに既にある場合は
// 埋め込みを呼ばずにスキップする
func (s *Service) Ingest(ctx context.Context, source Source, sessionID string) (*IngestStats, error) {
	startTime := time.Now()

	if err := validateSource(source, sessionID); err != nil {
		return nil, err
	}

	s.logger.Info("取り込みを開始",
		"sourceType", source.Type,
		"sourceName", source.Name,
		"sessionID", sessionID,
	)

	fingerprint, err := Fingerprint(source)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint source: %w", err)
	}

	// 重複チェック
	knownOpt, err := s.store.FindKnownSource(ctx, fingerprint, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check known sources: %w", err)
	}
	if knownOpt.IsPresent() {
		known := knownOpt.MustGet()
		s.logger.Info("重複ソースのためスキップ",
			"sourceName", source.Name,
			"existingSource", known.SourceName,
			"fingerprint", fingerprint,
		)
		return &IngestStats{Skipped: true}, nil
	}

	chunks := s.splitter.Split(source.Text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("source %q has no ingestible content", source.Name)
	}

	// 埋め込み前にストレージ上限を検査する
	if err := s.checkQuota(ctx, len(chunks)); err != nil {
		return nil, err
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(chunks))
	totalTokens := 0
	for i, c := range chunks {
		tokenCount := s.tokenCounter.Count(c.Text)
		totalTokens += tokenCount
		records = append(records, Record{
			ID:     NewRecordID(fingerprint, c.Index),
			Vector: vectors[i],
			Payload: Payload{
				SourceType:        source.Type,
				SourceName:        source.Name,
				SourceFingerprint: fingerprint,
				SessionID:         sessionID,
				ChunkIndex:        c.Index,
				Content:           c.Text,
				TokenCount:        tokenCount,
			},
		})
	}

	if err := s.store.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to store records: %w", err)
	}

	s.logger.Info("取り込みが完了",
		"sourceName", source.Name,
		"chunks", len(records),
		"tokens", totalTokens,
		"duration", time.Since(startTime),
	)

	return &IngestStats{
		ChunksCreated: len(records),
		TokenCount:    totalTokens,
	}, nil
}

// Usage は現在のストレージ使用状況を返す
func (s *Service) Usage(ctx context.Context) (*StorageUsage, error) {
	count, err := s.store.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	return &StorageUsage{
		RecordCount: count,
		Limit:       s.quota,
	}, nil
}

// checkQuota は追加レコード数を含めて上限を超えないか検査する
func (s *Service) checkQuota(ctx context.Context, additional int) error {
	if s.quota <= 0 {
		return nil
	}
	count, err := s.store.CountRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}
	if count+additional > s.quota {
		return fmt.Errorf("%w: %d stored + %d new > limit %d",
			ErrQuotaExceeded, count, additional, s.quota)
	}
	return nil
}

// embedChunks はチャンク群をバッチで埋め込む
// バッチ単位の失敗は要素ごとの再試行に切り替え、それでも失敗したら中断する
func (s *Service) embedChunks(ctx context.Context, chunks []chunk.Chunk) ([][]float32, error) {
	batchSize := s.embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		batch, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			s.logger.Warn("バッチ埋め込みに失敗。要素ごとに再試行",
				"batchStart", start,
				"batchSize", len(texts),
				"error", err,
			)
			batch, err = s.embedOneByOne(ctx, texts)
			if err != nil {
				return nil, fmt.Errorf("%w: batch at offset %d: %v",
					ErrEmbeddingUnavailable, start, err)
			}
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts",
				ErrEmbeddingUnavailable, len(batch), len(texts))
		}

		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// embedOneByOne はバッチ失敗時のフォールバックとして1件ずつ埋め込む
func (s *Service) embedOneByOne(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vector, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

// validateSource は取り込みパラメータをバリデートする
func validateSource(source Source, sessionID string) error {
	if source.Type != SourceTypeDocument && source.Type != SourceTypeWeb {
		return fmt.Errorf("unknown source type: %q", source.Type)
	}
	if strings.TrimSpace(source.Name) == "" {
		return fmt.Errorf("source name is required")
	}
	if source.Type == SourceTypeDocument && strings.TrimSpace(source.Text) == "" {
		return fmt.Errorf("source %q has no text", source.Name)
	}
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return nil
}
