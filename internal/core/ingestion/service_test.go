package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-chat/internal/core/ingestion/chunk"
)

type stubVectorStore struct {
	known    mo.Option[KnownSource]
	count    int
	upserted []Record
}

func (s *stubVectorStore) EnsureCollection(ctx context.Context, dim int) error {
	return nil
}

func (s *stubVectorStore) Upsert(ctx context.Context, records []Record) error {
	s.upserted = append(s.upserted, records...)
	return nil
}

func (s *stubVectorStore) FindKnownSource(ctx context.Context, fingerprint string, sessionID string) (mo.Option[KnownSource], error) {
	return s.known, nil
}

func (s *stubVectorStore) CountRecords(ctx context.Context) (int, error) {
	return s.count, nil
}

type stubEmbedder struct {
	dim         int
	batchSize   int
	batchErr    error
	batchCalls  int
	singleCalls int
	singleErr   error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.singleCalls++
	if e.singleErr != nil {
		return nil, e.singleErr
	}
	return make([]float32, e.dim), nil
}

func (e *stubEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls++
	if e.batchErr != nil {
		return nil, e.batchErr
	}
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, e.dim)
	}
	return vectors, nil
}

func (e *stubEmbedder) Dimension() int { return e.dim }

func (e *stubEmbedder) MaxBatchSize() int { return e.batchSize }

func newTestService(store *stubVectorStore, embedder *stubEmbedder, opts ...ServiceOption) *Service {
	splitter, err := NewTestSplitter()
	if err != nil {
		panic(err)
	}
	counter, err := chunk.NewTokenCounter()
	if err != nil {
		panic(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]ServiceOption{WithIngestLogger(logger)}, opts...)
	return NewService(store, embedder, splitter, counter, opts...)
}

// NewTestSplitter はテスト用の小さめの分割設定を返す
func NewTestSplitter() (*chunk.Splitter, error) {
	return chunk.NewSplitter(100, 20)
}

func TestIngestStoresChunkedRecords(t *testing.T) {
	store := &stubVectorStore{known: mo.None[KnownSource]()}
	embedder := &stubEmbedder{dim: 4, batchSize: 16}
	svc := newTestService(store, embedder)

	source := Source{
		Type: SourceTypeDocument,
		Name: "notes.txt",
		Text: strings.Repeat("every day brings something new to learn. ", 12),
	}

	stats, err := svc.Ingest(context.Background(), source, "session-1")
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
	assert.Greater(t, stats.ChunksCreated, 1)
	assert.Greater(t, stats.TokenCount, 0)
	require.Len(t, store.upserted, stats.ChunksCreated)

	fingerprint, err := Fingerprint(source)
	require.NoError(t, err)
	for i, rec := range store.upserted {
		assert.Equal(t, NewRecordID(fingerprint, i), rec.ID)
		assert.Equal(t, i, rec.Payload.ChunkIndex)
		assert.Equal(t, "session-1", rec.Payload.SessionID)
		assert.Equal(t, fingerprint, rec.Payload.SourceFingerprint)
		assert.Equal(t, "notes.txt", rec.Payload.SourceName)
		assert.Len(t, rec.Vector, 4)
	}
}

func TestIngestSkipsKnownFingerprint(t *testing.T) {
	store := &stubVectorStore{
		known: mo.Some(KnownSource{
			Fingerprint: "abc",
			SourceName:  "earlier.txt",
			ChunkCount:  3,
		}),
	}
	embedder := &stubEmbedder{dim: 4, batchSize: 16}
	svc := newTestService(store, embedder)

	stats, err := svc.Ingest(context.Background(), Source{
		Type: SourceTypeDocument,
		Name: "duplicate.txt",
		Text: "same content as before",
	}, "session-1")
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	assert.Zero(t, stats.ChunksCreated)
	assert.Zero(t, embedder.batchCalls, "no embedding calls for a duplicate")
	assert.Empty(t, store.upserted)
}

func TestIngestQuotaExceeded(t *testing.T) {
	store := &stubVectorStore{known: mo.None[KnownSource](), count: 99}
	embedder := &stubEmbedder{dim: 4, batchSize: 16}
	svc := newTestService(store, embedder, WithStorageQuota(100))

	_, err := svc.Ingest(context.Background(), Source{
		Type: SourceTypeDocument,
		Name: "big.txt",
		Text: strings.Repeat("too much text for the remaining quota. ", 20),
	}, "session-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Zero(t, embedder.batchCalls, "quota is checked before embedding")
	assert.Empty(t, store.upserted)
}

func TestIngestRetriesFailedBatchItemByItem(t *testing.T) {
	store := &stubVectorStore{known: mo.None[KnownSource]()}
	embedder := &stubEmbedder{
		dim:       4,
		batchSize: 16,
		batchErr:  errors.New("batch endpoint down"),
	}
	svc := newTestService(store, embedder)

	stats, err := svc.Ingest(context.Background(), Source{
		Type: SourceTypeDocument,
		Name: "notes.txt",
		Text: strings.Repeat("fallback path exercises single embeds. ", 12),
	}, "session-1")
	require.NoError(t, err)
	assert.Equal(t, stats.ChunksCreated, embedder.singleCalls)
}

func TestIngestEmbeddingUnavailable(t *testing.T) {
	store := &stubVectorStore{known: mo.None[KnownSource]()}
	embedder := &stubEmbedder{
		dim:       4,
		batchSize: 16,
		batchErr:  errors.New("batch endpoint down"),
		singleErr: errors.New("still down"),
	}
	svc := newTestService(store, embedder)

	_, err := svc.Ingest(context.Background(), Source{
		Type: SourceTypeDocument,
		Name: "notes.txt",
		Text: "some content",
	}, "session-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Empty(t, store.upserted)
}

func TestUsageReportsCountAndQuota(t *testing.T) {
	store := &stubVectorStore{known: mo.None[KnownSource](), count: 42}
	embedder := &stubEmbedder{dim: 4, batchSize: 16}
	svc := newTestService(store, embedder, WithStorageQuota(100))

	usage, err := svc.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, usage.RecordCount)
	assert.Equal(t, 100, usage.Limit)
}

func TestIngestValidatesParams(t *testing.T) {
	store := &stubVectorStore{known: mo.None[KnownSource]()}
	embedder := &stubEmbedder{dim: 4, batchSize: 16}
	svc := newTestService(store, embedder)

	_, err := svc.Ingest(context.Background(), Source{Type: "git", Name: "x", Text: "y"}, "s")
	assert.Error(t, err)

	_, err = svc.Ingest(context.Background(), Source{Type: SourceTypeDocument, Name: "", Text: "y"}, "s")
	assert.Error(t, err)

	_, err = svc.Ingest(context.Background(), Source{Type: SourceTypeDocument, Name: "x", Text: "  "}, "s")
	assert.Error(t, err)

	_, err = svc.Ingest(context.Background(), Source{Type: SourceTypeDocument, Name: "x", Text: "y"}, "")
	assert.Error(t, err)
}
