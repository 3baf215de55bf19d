package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-chat/internal/core/ingestion"
	"github.com/jinford/doc-chat/internal/core/retrieval"
)

// pgvector入りのPostgreSQLコンテナを起動して一連の操作を検証する
// DOCCHAT_PG_INTEGRATION が未設定の場合はスキップする
func TestStoreIntegration(t *testing.T) {
	if os.Getenv("DOCCHAT_PG_INTEGRATION") == "" {
		t.Skip("set DOCCHAT_PG_INTEGRATION to run the postgres integration test")
	}

	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	require.NoError(t, pool.Client.Ping())

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "pgvector/pgvector",
		Tag:        "pg16",
		Env: []string{
			"POSTGRES_USER=docchat",
			"POSTGRES_PASSWORD=docchat",
			"POSTGRES_DB=docchat",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pool.Purge(resource)
	})

	ctx := context.Background()
	var db *DB
	pool.MaxWait = 60 * time.Second
	require.NoError(t, pool.Retry(func() error {
		var err error
		db, err = New(ctx, ConnectionParams{
			Host:     "localhost",
			Port:     mustAtoi(resource.GetPort("5432/tcp")),
			User:     "docchat",
			Password: "docchat",
			DBName:   "docchat",
			SSLMode:  "disable",
		})
		return err
	}))
	t.Cleanup(db.Close)

	store := NewStore(db.Pool, "rag_documents_test")
	require.NoError(t, store.EnsureCollection(ctx, 3))
	require.NoError(t, store.EnsureCollection(ctx, 3), "idempotent")
	assert.Error(t, store.EnsureCollection(ctx, 4), "dimension mismatch")

	records := []ingestion.Record{
		testRecord("fp1", 0, "s1", "a.txt", "alpha content", []float32{1, 0, 0}),
		testRecord("fp1", 1, "s1", "a.txt", "beta content", []float32{0.9, 0.1, 0}),
		testRecord("fp2", 0, "s2", "b.txt", "other session", []float32{1, 0, 0}),
	}
	require.NoError(t, store.Upsert(ctx, records))

	// 同一IDのupsertは件数を増やさない
	require.NoError(t, store.Upsert(ctx, records[:1]))
	count, err := store.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// セッション境界を越えない
	results, err := store.Search(ctx, []float32{1, 0, 0}, retrieval.Filter{SessionID: "s1"}, 10, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha content", results[0].Content)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	// 重複チェック
	known, err := store.FindKnownSource(ctx, "fp1", "s1")
	require.NoError(t, err)
	require.True(t, known.IsPresent())
	assert.Equal(t, 2, known.MustGet().ChunkCount)

	missing, err := store.FindKnownSource(ctx, "fp1", "s2")
	require.NoError(t, err)
	assert.True(t, missing.IsAbsent())

	// ソース一覧
	sources, err := store.ListSources(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "a.txt", sources[0].SourceName)
	assert.Equal(t, 2, sources[0].ChunkCount)

	// セッション削除と全削除
	require.NoError(t, store.DeleteSession(ctx, "s1"))
	count, err = store.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.DeleteAll(ctx))
	count, err = store.CountRecords(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func testRecord(fingerprint string, index int, sessionID, name, content string, vector []float32) ingestion.Record {
	return ingestion.Record{
		ID:     ingestion.NewRecordID(fingerprint, index),
		Vector: vector,
		Payload: ingestion.Payload{
			SourceType:        ingestion.SourceTypeDocument,
			SourceName:        name,
			SourceFingerprint: fingerprint,
			SessionID:         sessionID,
			ChunkIndex:        index,
			Content:           content,
			TokenCount:        2,
		},
	}
}

func mustAtoi(s string) int {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		panic(err)
	}
	return n
}
