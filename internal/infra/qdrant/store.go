package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/doc-chat/internal/core/ingestion"
	"github.com/jinford/doc-chat/internal/core/retrieval"
	"github.com/jinford/doc-chat/internal/core/session"
)

// リトライポリシー。読み取り系は3回、書き込み系は2回まで試行する
const (
	readAttempts  = 3
	writeAttempts = 2
	retryBaseWait = 100 * time.Millisecond

	defaultTimeout = 15 * time.Second
	scrollPageSize = 256
)

// Store はQdrantのREST APIを使ったベクトルストア実装
// コサイン距離を前提とする
type Store struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

// Config はQdrant接続設定
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// インターフェース実装の検証
var (
	_ ingestion.VectorStore    = (*Store)(nil)
	_ retrieval.VectorSearcher = (*Store)(nil)
	_ session.Store            = (*Store)(nil)
)

// NewStore は新しいStoreを作成する
func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Store{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// EnsureCollection はコレクションを冪等に初期化する
// 既存コレクションの次元が dim と異なる場合はエラーを返す
func (s *Store) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive: %d", dim)
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := s.doJSON(ctx, http.MethodGet, s.collectionURL(""), nil, &info)
	if err != nil {
		return fmt.Errorf("%w: failed to inspect collection: %v", ingestion.ErrVectorStoreUnavailable, err)
	}
	if status == http.StatusOK {
		if have := info.Result.Config.Params.Vectors.Size; have != dim {
			return fmt.Errorf("collection dimension mismatch: have %d, want %d", have, dim)
		}
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	status, err = s.doJSON(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create collection: %v", ingestion.ErrVectorStoreUnavailable, err)
	}
	if status >= 300 {
		return fmt.Errorf("failed to create collection: status %d", status)
	}
	return nil
}

// Upsert はレコード群をIDベースで挿入または置換する
func (s *Store) Upsert(ctx context.Context, records []ingestion.Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UnixNano()
	points := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		p := rec.Payload
		points = append(points, map[string]any{
			"id":     rec.ID.String(),
			"vector": rec.Vector,
			"payload": map[string]any{
				"source_type":        string(p.SourceType),
				"source_name":        p.SourceName,
				"source_fingerprint": p.SourceFingerprint,
				"session_id":         p.SessionID,
				"chunk_index":        p.ChunkIndex,
				"content":            p.Content,
				"token_count":        p.TokenCount,
				"ingested_at":        now,
			},
		})
	}

	return s.withRetry(ctx, writeAttempts, "upsert points", func(ctx context.Context) error {
		status, err := s.doJSON(ctx, http.MethodPut,
			s.collectionURL("/points?wait=true"),
			map[string]any{"points": points}, nil)
		if err != nil {
			return err
		}
		if status >= 300 {
			return fmt.Errorf("status %d", status)
		}
		return nil
	})
}

// Search はコサイン類似度で近いレコードを検索する
// スコア降順、同点は新しく取り込まれたレコードが先
func (s *Store) Search(ctx context.Context, vector []float32, filter retrieval.Filter, topK int, threshold float64) ([]retrieval.Result, error) {
	must := []map[string]any{
		{"key": "session_id", "match": map[string]any{"value": filter.SessionID}},
	}
	if filter.SourceType != "" {
		must = append(must, map[string]any{
			"key": "source_type", "match": map[string]any{"value": filter.SourceType},
		})
	}

	req := map[string]any{
		"vector":          vector,
		"limit":           topK,
		"score_threshold": threshold,
		"with_payload":    true,
		"filter":          map[string]any{"must": must},
	}

	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}

	err := s.withRetry(ctx, readAttempts, "search points", func(ctx context.Context) error {
		status, err := s.doJSON(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp)
		if err != nil {
			return err
		}
		if status >= 300 {
			return fmt.Errorf("status %d", status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	type hit struct {
		result     retrieval.Result
		ingestedAt int64
	}
	hits := make([]hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, hit{
			result: retrieval.Result{
				Content:    r.Payload.Content,
				SourceName: r.Payload.SourceName,
				SourceType: r.Payload.SourceType,
				ChunkIndex: r.Payload.ChunkIndex,
				Score:      r.Score,
			},
			ingestedAt: r.Payload.IngestedAt,
		})
	}

	// Qdrantはスコア順のみ保証するため、同点の新しい順はクライアント側で揃える
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].result.Score != hits[j].result.Score {
			return hits[i].result.Score > hits[j].result.Score
		}
		return hits[i].ingestedAt > hits[j].ingestedAt
	})

	results := make([]retrieval.Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, h.result)
	}
	return results, nil
}

// FindKnownSource はフィンガープリントが一致する登録済みソースを探す
func (s *Store) FindKnownSource(ctx context.Context, fingerprint string, sessionID string) (mo.Option[ingestion.KnownSource], error) {
	filter := map[string]any{
		"must": []map[string]any{
			{"key": "source_fingerprint", "match": map[string]any{"value": fingerprint}},
			{"key": "session_id", "match": map[string]any{"value": sessionID}},
		},
	}

	count, err := s.countWithFilter(ctx, filter)
	if err != nil {
		return mo.None[ingestion.KnownSource](), err
	}
	if count == 0 {
		return mo.None[ingestion.KnownSource](), nil
	}

	points, _, err := s.scroll(ctx, filter, 1, nil)
	if err != nil {
		return mo.None[ingestion.KnownSource](), err
	}
	known := ingestion.KnownSource{
		Fingerprint: fingerprint,
		ChunkCount:  count,
	}
	if len(points) > 0 {
		known.SourceName = points[0].Payload.SourceName
	}
	return mo.Some(known), nil
}

// CountRecords は全セッションのレコード総数を返す
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	return s.countWithFilter(ctx, nil)
}

// ListSources はセッション内の登録済みソースを列挙する
// ペイロードをスクロールしてソース単位に集計する
func (s *Store) ListSources(ctx context.Context, sessionID string) ([]session.SourceInfo, error) {
	filter := map[string]any{
		"must": []map[string]any{
			{"key": "session_id", "match": map[string]any{"value": sessionID}},
		},
	}

	type key struct {
		name       string
		sourceType string
	}
	counts := make(map[key]int)

	var offset any
	for {
		points, next, err := s.scroll(ctx, filter, scrollPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			counts[key{name: p.Payload.SourceName, sourceType: p.Payload.SourceType}]++
		}
		if next == nil || len(points) == 0 {
			break
		}
		offset = next
	}

	keys := make([]key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].name < keys[j].name })

	sources := make([]session.SourceInfo, 0, len(keys))
	for _, k := range keys {
		sources = append(sources, session.SourceInfo{
			SourceName: k.name,
			SourceType: k.sourceType,
			ChunkCount: counts[k],
		})
	}
	return sources, nil
}

// DeleteSession はセッションの全レコードを削除する
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.deleteWithFilter(ctx, map[string]any{
		"must": []map[string]any{
			{"key": "session_id", "match": map[string]any{"value": sessionID}},
		},
	})
}

// DeleteAll は全レコードを削除する
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.deleteWithFilter(ctx, map[string]any{})
}

// payload はQdrantに格納するポイントのペイロード
type payload struct {
	SourceType        string `json:"source_type"`
	SourceName        string `json:"source_name"`
	SourceFingerprint string `json:"source_fingerprint"`
	SessionID         string `json:"session_id"`
	ChunkIndex        int    `json:"chunk_index"`
	Content           string `json:"content"`
	TokenCount        int    `json:"token_count"`
	IngestedAt        int64  `json:"ingested_at"`
}

type scrollPoint struct {
	ID      any     `json:"id"`
	Payload payload `json:"payload"`
}

// scroll は1ページぶんのポイントを取得する
func (s *Store) scroll(ctx context.Context, filter map[string]any, limit int, offset any) ([]scrollPoint, any, error) {
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if filter != nil {
		req["filter"] = filter
	}
	if offset != nil {
		req["offset"] = offset
	}

	var resp struct {
		Result struct {
			Points         []scrollPoint `json:"points"`
			NextPageOffset any           `json:"next_page_offset"`
		} `json:"result"`
	}

	err := s.withRetry(ctx, readAttempts, "scroll points", func(ctx context.Context) error {
		status, err := s.doJSON(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp)
		if err != nil {
			return err
		}
		if status >= 300 {
			return fmt.Errorf("status %d", status)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resp.Result.Points, resp.Result.NextPageOffset, nil
}

func (s *Store) countWithFilter(ctx context.Context, filter map[string]any) (int, error) {
	req := map[string]any{"exact": true}
	if filter != nil {
		req["filter"] = filter
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}

	err := s.withRetry(ctx, readAttempts, "count points", func(ctx context.Context) error {
		status, err := s.doJSON(ctx, http.MethodPost, s.collectionURL("/points/count"), req, &resp)
		if err != nil {
			return err
		}
		if status >= 300 {
			return fmt.Errorf("status %d", status)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Store) deleteWithFilter(ctx context.Context, filter map[string]any) error {
	return s.withRetry(ctx, writeAttempts, "delete points", func(ctx context.Context) error {
		status, err := s.doJSON(ctx, http.MethodPost,
			s.collectionURL("/points/delete?wait=true"),
			map[string]any{"filter": filter}, nil)
		if err != nil {
			return err
		}
		if status >= 300 {
			return fmt.Errorf("status %d", status)
		}
		return nil
	})
}

func (s *Store) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.baseURL, s.collection, suffix)
}

// doJSON はJSONリクエストを送り、レスポンスをデコードする
// ステータスコードの解釈は呼び出し側に委ねる
func (s *Store) doJSON(ctx context.Context, method, url string, body any, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// withRetry は一時的な失敗に備えて指数バックオフ付きで処理を再試行する
// 全試行が失敗した場合は ErrVectorStoreUnavailable として分類する
func (s *Store) withRetry(ctx context.Context, attempts int, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	wait := retryBaseWait

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: failed to %s after %d attempts: %v",
		ingestion.ErrVectorStoreUnavailable, op, attempts, lastErr)
}
