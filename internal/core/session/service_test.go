package session

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	sources        []SourceInfo
	count          int
	clearedSession string
	deletedAll     bool
}

func (s *stubStore) ListSources(ctx context.Context, sessionID string) ([]SourceInfo, error) {
	return s.sources, nil
}

func (s *stubStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.clearedSession = sessionID
	return nil
}

func (s *stubStore) DeleteAll(ctx context.Context) error {
	s.deletedAll = true
	return nil
}

func (s *stubStore) CountRecords(ctx context.Context) (int, error) {
	return s.count, nil
}

func newTestService(store *stubStore, opts ...ServiceOption) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]ServiceOption{WithSessionLogger(logger)}, opts...)
	return NewService(store, opts...)
}

func TestListSourcesRequiresSessionID(t *testing.T) {
	svc := newTestService(&stubStore{})
	_, err := svc.ListSources(context.Background(), "  ")
	assert.Error(t, err)
}

func TestClearDeletesOnlyTargetSession(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(store)

	require.NoError(t, svc.Clear(context.Background(), "session-1"))
	assert.Equal(t, "session-1", store.clearedSession)
	assert.False(t, store.deletedAll)
}

func TestResetDeletesEverything(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(store)

	require.NoError(t, svc.Reset(context.Background()))
	assert.True(t, store.deletedAll)
}

func TestStatusReportsUsage(t *testing.T) {
	store := &stubStore{count: 250}
	svc := newTestService(store, WithQuota(1000))

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, status.RecordCount)
	assert.Equal(t, 1000, status.Quota)
	assert.InDelta(t, 25.0, status.UsagePercent(), 0.001)
}

func TestStatusUnlimitedQuota(t *testing.T) {
	store := &stubStore{count: 42}
	svc := newTestService(store)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Zero(t, status.UsagePercent())
}
