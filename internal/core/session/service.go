package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SourceInfo はセッション内の登録済みソースの要約
type SourceInfo struct {
	SourceName string
	SourceType string
	ChunkCount int
}

// Status はコレクションの使用状況
type Status struct {
	RecordCount int
	Quota       int // 0は無制限
}

// UsagePercent は上限に対する使用率を返す（上限なしの場合は0）
func (s Status) UsagePercent() float64 {
	if s.Quota <= 0 {
		return 0
	}
	return float64(s.RecordCount) / float64(s.Quota) * 100
}

// Store はセッション管理が必要とするベクトルストア操作
// テスト時のモック用に消費者側で定義
type Store interface {
	// ListSources はセッション内の登録済みソースを列挙する
	ListSources(ctx context.Context, sessionID string) ([]SourceInfo, error)
	// DeleteSession はセッションの全レコードを削除する
	DeleteSession(ctx context.Context, sessionID string) error
	// DeleteAll は全セッションの全レコードを削除する
	DeleteAll(ctx context.Context) error
	// CountRecords は全セッションのレコード総数を返す
	CountRecords(ctx context.Context) (int, error)
}

// Service はセッション管理のユースケースを提供する
type Service struct {
	store  Store
	quota  int
	logger *slog.Logger
}

type serviceOptions struct {
	quota  int
	logger *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithSessionLogger は Service にロガーを設定する
func WithSessionLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithQuota は表示用のレコード上限を設定する（0は無制限）
func WithQuota(quota int) ServiceOption {
	return func(o *serviceOptions) {
		o.quota = quota
	}
}

// NewService は新しいServiceを作成する
func NewService(store Store, opts ...ServiceOption) *Service {
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
		store:  store,
		quota:  options.quota,
		logger: options.logger,
	}
}

// ListSources はセッション内の登録済みソースを列挙する
func (s *Service) ListSources(ctx context.Context, sessionID string) ([]SourceInfo, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	sources, err := s.store.ListSources(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// Clear はセッションの全レコードを削除する
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Info("セッションを削除", "sessionID", sessionID)
	return nil
}

// Reset は全セッションの全レコードを削除する
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to reset collection: %w", err)
	}
	s.logger.Info("コレクションを初期化")
	return nil
}

// Status はコレクションの使用状況を返す
func (s *Service) Status(ctx context.Context) (*Status, error) {
	count, err := s.store.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	return &Status{
		RecordCount: count,
		Quota:       s.quota,
	}, nil
}
