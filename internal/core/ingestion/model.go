package ingestion

import (
	"fmt"

	"github.com/google/uuid"
)

// SourceType はソースの種別を表す
type SourceType string

const (
	// SourceTypeDocument はローカルファイル由来のソース
	SourceTypeDocument SourceType = "document"
	// SourceTypeWeb はWebページ由来のソース
	SourceTypeWeb SourceType = "web"
)

// Source は取り込み対象の1ソース（ファイルまたはWebページ）を表す
type Source struct {
	Type SourceType
	Name string // ファイル名またはURL
	Text string // 抽出済みの生テキスト
}

// Payload はベクトルレコードに付随するメタデータ
type Payload struct {
	SourceType        SourceType
	SourceName        string
	SourceFingerprint string
	SessionID         string
	ChunkIndex        int
	Content           string
	TokenCount        int
}

// Record はベクトルストアに格納する1レコード
type Record struct {
	ID      uuid.UUID
	Vector  []float32
	Payload Payload
}

// KnownSource は登録済みソースの要約情報
type KnownSource struct {
	Fingerprint string
	SourceName  string
	ChunkCount  int
}

// IngestStats は1回の取り込み処理の結果
type IngestStats struct {
	ChunksCreated int  // 作成されたチャンク数
	TokenCount    int  // 取り込んだテキストの総トークン数
	Skipped       bool // 重複により処理をスキップした場合 true
}

// StorageUsage はベクトルストアの使用状況
type StorageUsage struct {
	RecordCount int // 現在のレコード総数
	Limit       int // 上限（0は無制限）
}

// recordNamespace はレコードID生成用のUUID名前空間
// 同一のフィンガープリントとチャンク番号は常に同一IDになる
var recordNamespace = uuid.MustParse("8f1c9d2a-5e47-4b63-9a0e-7d21c4f8b356")

// NewRecordID はフィンガープリントとチャンク番号から決定的なレコードIDを生成する
// 同一ソースの再取り込みは同じIDへのupsertとなり、重複レコードを生まない
func NewRecordID(fingerprint string, chunkIndex int) uuid.UUID {
	return uuid.NewSHA1(recordNamespace, []byte(fmt.Sprintf("%s:%d", fingerprint, chunkIndex)))
}
