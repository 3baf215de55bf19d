package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-chat/internal/core/ingestion"
	"github.com/jinford/doc-chat/internal/core/retrieval"
)

func newTestStore(handler http.Handler) (*Store, *httptest.Server) {
	server := httptest.NewServer(handler)
	store := NewStore(Config{
		URL:        server.URL,
		Collection: "rag_documents",
	})
	return store, server
}

func TestEnsureCollectionCreatesWhenMissing(t *testing.T) {
	var created map[string]any
	store, server := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	require.NoError(t, store.EnsureCollection(context.Background(), 768))
	vectors := created["vectors"].(map[string]any)
	assert.Equal(t, float64(768), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestEnsureCollectionDimensionMismatch(t *testing.T) {
	store, server := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"config":{"params":{"vectors":{"size":1536}}}}}`))
	}))
	defer server.Close()

	err := store.EnsureCollection(context.Background(), 768)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestUpsertSendsPointsWithPayload(t *testing.T) {
	var body struct {
		Points []struct {
			ID      string    `json:"id"`
			Vector  []float32 `json:"vector"`
			Payload payload   `json:"payload"`
		} `json:"points"`
	}
	store, server := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rec := ingestion.Record{
		ID:     ingestion.NewRecordID("fp1", 0),
		Vector: []float32{0.1, 0.2},
		Payload: ingestion.Payload{
			SourceType:        ingestion.SourceTypeDocument,
			SourceName:        "a.txt",
			SourceFingerprint: "fp1",
			SessionID:         "s1",
			Content:           "hello",
			TokenCount:        1,
		},
	}
	require.NoError(t, store.Upsert(context.Background(), []ingestion.Record{rec}))

	require.Len(t, body.Points, 1)
	assert.Equal(t, rec.ID.String(), body.Points[0].ID)
	assert.Equal(t, "s1", body.Points[0].Payload.SessionID)
	assert.Equal(t, "fp1", body.Points[0].Payload.SourceFingerprint)
	assert.NotZero(t, body.Points[0].Payload.IngestedAt)
}

func TestSearchBuildsSessionFilter(t *testing.T) {
	var req map[string]any
	store, server := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.8,"payload":{"content":"older","source_name":"a.txt","ingested_at":1}},
			{"score":0.8,"payload":{"content":"newer","source_name":"b.txt","ingested_at":2}},
			{"score":0.9,"payload":{"content":"best","source_name":"c.txt","ingested_at":1}}
		]}`))
	}))
	defer server.Close()

	results, err := store.Search(context.Background(), []float32{1, 0},
		retrieval.Filter{SessionID: "s1", SourceType: "web"}, 5, 0.3)
	require.NoError(t, err)

	filter := req["filter"].(map[string]any)
	must := filter["must"].([]any)
	require.Len(t, must, 2)
	assert.Equal(t, float64(0.3), req["score_threshold"])
	assert.Equal(t, float64(5), req["limit"])

	// スコア降順、同点は新しい順
	require.Len(t, results, 3)
	assert.Equal(t, "best", results[0].Content)
	assert.Equal(t, "newer", results[1].Content)
	assert.Equal(t, "older", results[2].Content)
}

func TestCountRecords(t *testing.T) {
	store, server := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"count":42}}`))
	}))
	defer server.Close()

	count, err := store.CountRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestFindKnownSourceAbsent(t *testing.T) {
	store, server := newTestStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"count":0}}`))
	}))
	defer server.Close()

	known, err := store.FindKnownSource(context.Background(), "fp1", "s1")
	require.NoError(t, err)
	assert.True(t, known.IsAbsent())
}
