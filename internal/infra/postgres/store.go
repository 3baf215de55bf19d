package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
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
)

// Store はpgvectorを使ったベクトルストア実装
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// インターフェース実装の検証
var (
	_ ingestion.VectorStore    = (*Store)(nil)
	_ retrieval.VectorSearcher = (*Store)(nil)
	_ session.Store            = (*Store)(nil)
)

// NewStore は新しいStoreを作成する
func NewStore(pool *pgxpool.Pool, table string) *Store {
	return &Store{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
	}
}

// EnsureCollection はテーブルと拡張を冪等に初期化する
// 既存テーブルの埋め込み次元が dim と異なる場合はエラーを返す
func (s *Store) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive: %d", dim)
	}

	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id                 uuid PRIMARY KEY,
			embedding          vector(%d) NOT NULL,
			source_type        text NOT NULL,
			source_name        text NOT NULL,
			source_fingerprint text NOT NULL,
			session_id         text NOT NULL,
			chunk_index        int NOT NULL,
			content            text NOT NULL,
			token_count        int NOT NULL,
			created_at         timestamptz NOT NULL DEFAULT now()
		)`, s.table, dim)
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_docchat_session ON %s (session_id)", s.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_docchat_fingerprint ON %s (session_id, source_fingerprint)", s.table),
	}
	for _, stmt := range indexes {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	// 既存テーブルの次元を検証する。vector型のatttypmodは次元そのもの
	var typmod int
	err := s.pool.QueryRow(ctx,
		"SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = 'embedding'",
		s.table,
	).Scan(&typmod)
	if err != nil {
		return fmt.Errorf("failed to inspect embedding column: %w", err)
	}
	if typmod != dim {
		return fmt.Errorf("collection dimension mismatch: have %d, want %d", typmod, dim)
	}

	return nil
}

// Upsert はレコード群をIDベースで挿入または置換する
// 置換時は created_at も更新され、同点スコアのタイブレークで新しい側が勝つ
func (s *Store) Upsert(ctx context.Context, records []ingestion.Record) error {
	if len(records) == 0 {
		return nil
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (
			id, embedding, source_type, source_name, source_fingerprint,
			session_id, chunk_index, content, token_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			source_type = EXCLUDED.source_type,
			source_name = EXCLUDED.source_name,
			source_fingerprint = EXCLUDED.source_fingerprint,
			session_id = EXCLUDED.session_id,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			token_count = EXCLUDED.token_count,
			created_at = now()`, s.table)

	return s.withRetry(ctx, writeAttempts, "upsert records", func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			p := rec.Payload
			batch.Queue(stmt,
				rec.ID,
				pgvector.NewVector(rec.Vector),
				string(p.SourceType),
				p.SourceName,
				p.SourceFingerprint,
				p.SessionID,
				p.ChunkIndex,
				p.Content,
				p.TokenCount,
			)
		}
		return s.pool.SendBatch(ctx, batch).Close()
	})
}

// FindKnownSource はフィンガープリントが一致する登録済みソースを探す
func (s *Store) FindKnownSource(ctx context.Context, fingerprint string, sessionID string) (mo.Option[ingestion.KnownSource], error) {
	query := fmt.Sprintf(`
		SELECT source_name, count(*)
		FROM %s
		WHERE source_fingerprint = $1 AND session_id = $2
		GROUP BY source_name
		LIMIT 1`, s.table)

	var known ingestion.KnownSource
	known.Fingerprint = fingerprint

	err := s.withRetry(ctx, readAttempts, "find known source", func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, query, fingerprint, sessionID).
			Scan(&known.SourceName, &known.ChunkCount)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[ingestion.KnownSource](), nil
		}
		return mo.None[ingestion.KnownSource](), err
	}

	return mo.Some(known), nil
}

// CountRecords は全セッションのレコード総数を返す
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var count int
	err := s.withRetry(ctx, readAttempts, "count records", func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Search はコサイン類似度で近いレコードを検索する
// スコア降順、同点は新しく取り込まれたレコードが先
func (s *Store) Search(ctx context.Context, vector []float32, filter retrieval.Filter, topK int, threshold float64) ([]retrieval.Result, error) {
	query := fmt.Sprintf(`
		SELECT content, source_name, source_type, chunk_index,
		       1 - (embedding <=> $1) AS score
		FROM %s
		WHERE session_id = $2
		  AND ($3 = '' OR source_type = $3)
		  AND 1 - (embedding <=> $1) >= $4
		ORDER BY embedding <=> $1 ASC, created_at DESC
		LIMIT $5`, s.table)

	var results []retrieval.Result
	err := s.withRetry(ctx, readAttempts, "search records", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, query,
			pgvector.NewVector(vector),
			filter.SessionID,
			filter.SourceType,
			threshold,
			topK,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		results = results[:0]
		for rows.Next() {
			var r retrieval.Result
			if err := rows.Scan(&r.Content, &r.SourceName, &r.SourceType, &r.ChunkIndex, &r.Score); err != nil {
				return err
			}
			results = append(results, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// ListSources はセッション内の登録済みソースを列挙する
func (s *Store) ListSources(ctx context.Context, sessionID string) ([]session.SourceInfo, error) {
	query := fmt.Sprintf(`
		SELECT source_name, source_type, count(*)
		FROM %s
		WHERE session_id = $1
		GROUP BY source_name, source_type
		ORDER BY source_name`, s.table)

	var sources []session.SourceInfo
	err := s.withRetry(ctx, readAttempts, "list sources", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, query, sessionID)
		if err != nil {
			return err
		}
		defer rows.Close()

		sources = sources[:0]
		for rows.Next() {
			var info session.SourceInfo
			if err := rows.Scan(&info.SourceName, &info.SourceType, &info.ChunkCount); err != nil {
				return err
			}
			sources = append(sources, info)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return sources, nil
}

// DeleteSession はセッションの全レコードを削除する
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.withRetry(ctx, writeAttempts, "delete session", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE session_id = $1", s.table), sessionID)
		return err
	})
}

// DeleteAll は全レコードを削除する
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.withRetry(ctx, writeAttempts, "delete all records", func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", s.table))
		return err
	})
}

// withRetry は一時的な失敗に備えて指数バックオフ付きで処理を再試行する
// 全試行が失敗した場合は ErrVectorStoreUnavailable として分類する
// pgx.ErrNoRows は「結果なし」でありリトライしない
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
		if errors.Is(lastErr, pgx.ErrNoRows) || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
	}

	return fmt.Errorf("%w: failed to %s after %d attempts: %v",
		ingestion.ErrVectorStoreUnavailable, op, attempts, lastErr)
}
