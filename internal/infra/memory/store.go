package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-chat/internal/core/ingestion"
	"github.com/jinford/doc-chat/internal/core/retrieval"
	"github.com/jinford/doc-chat/internal/core/session"
)

// Store はインメモリのベクトルストア実装
// テストとオフライン動作用で、プロセス終了とともに消える
type Store struct {
	mu      sync.RWMutex
	dim     int
	records map[uuid.UUID]storedRecord
	seq     int64 // 取り込み順。同点スコアのタイブレークに使う
}

type storedRecord struct {
	record ingestion.Record
	seq    int64
}

// インターフェース実装の検証
var (
	_ ingestion.VectorStore    = (*Store)(nil)
	_ retrieval.VectorSearcher = (*Store)(nil)
	_ session.Store            = (*Store)(nil)
)

// NewStore は新しいインメモリストアを作成する
func NewStore() *Store {
	return &Store{
		records: make(map[uuid.UUID]storedRecord),
	}
}

// EnsureCollection はコレクションを冪等に初期化する
func (s *Store) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive: %d", dim)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = dim
		return nil
	}
	if s.dim != dim {
		return fmt.Errorf("collection dimension mismatch: have %d, want %d", s.dim, dim)
	}
	return nil
}

// Upsert はレコード群をIDベースで挿入または置換する
func (s *Store) Upsert(ctx context.Context, records []ingestion.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if s.dim > 0 && len(rec.Vector) != s.dim {
			return fmt.Errorf("vector dimension mismatch: have %d, want %d", len(rec.Vector), s.dim)
		}
		s.seq++
		s.records[rec.ID] = storedRecord{record: rec, seq: s.seq}
	}
	return nil
}

// FindKnownSource はフィンガープリントが一致する登録済みソースを探す
func (s *Store) FindKnownSource(ctx context.Context, fingerprint string, sessionID string) (mo.Option[ingestion.KnownSource], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	known := ingestion.KnownSource{Fingerprint: fingerprint}
	for _, sr := range s.records {
		p := sr.record.Payload
		if p.SourceFingerprint == fingerprint && p.SessionID == sessionID {
			known.SourceName = p.SourceName
			known.ChunkCount++
		}
	}
	if known.ChunkCount == 0 {
		return mo.None[ingestion.KnownSource](), nil
	}
	return mo.Some(known), nil
}

// CountRecords は全セッションのレコード総数を返す
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Search はコサイン類似度で近いレコードを検索する
// スコア降順、同点は新しく取り込まれたレコードが先
func (s *Store) Search(ctx context.Context, vector []float32, filter retrieval.Filter, topK int, threshold float64) ([]retrieval.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		result retrieval.Result
		seq    int64
	}

	var hits []scored
	for _, sr := range s.records {
		p := sr.record.Payload
		if p.SessionID != filter.SessionID {
			continue
		}
		if filter.SourceType != "" && string(p.SourceType) != filter.SourceType {
			continue
		}

		score := cosineSimilarity(vector, sr.record.Vector)
		if score < threshold {
			continue
		}

		hits = append(hits, scored{
			result: retrieval.Result{
				Content:    p.Content,
				SourceName: p.SourceName,
				SourceType: string(p.SourceType),
				ChunkIndex: p.ChunkIndex,
				Score:      score,
			},
			seq: sr.seq,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].result.Score != hits[j].result.Score {
			return hits[i].result.Score > hits[j].result.Score
		}
		return hits[i].seq > hits[j].seq
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]retrieval.Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, h.result)
	}
	return results, nil
}

// ListSources はセッション内の登録済みソースを列挙する
func (s *Store) ListSources(ctx context.Context, sessionID string) ([]session.SourceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		name       string
		sourceType string
	}
	counts := make(map[key]int)
	var order []key
	for _, sr := range s.records {
		p := sr.record.Payload
		if p.SessionID != sessionID {
			continue
		}
		k := key{name: p.SourceName, sourceType: string(p.SourceType)}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}

	sort.Slice(order, func(i, j int) bool { return order[i].name < order[j].name })

	sources := make([]session.SourceInfo, 0, len(order))
	for _, k := range order {
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
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sr := range s.records {
		if sr.record.Payload.SessionID == sessionID {
			delete(s.records, id)
		}
	}
	return nil
}

// DeleteAll は全レコードを削除する
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[uuid.UUID]storedRecord)
	return nil
}

// cosineSimilarity は2つのベクトルのコサイン類似度を計算する
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
