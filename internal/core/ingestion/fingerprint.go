package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/jinford/doc-chat/internal/core/ingestion/chunk"
)

// Fingerprint はソースの同一性を判定するフィンガープリントを計算する
// ドキュメントは正規化済み本文のハッシュ、Webページは正規化済みURLのハッシュを使う
// 同じ内容を別名で取り込んでも同一フィンガープリントになる（内容ベースの重複排除）
func Fingerprint(source Source) (string, error) {
	switch source.Type {
	case SourceTypeDocument:
		return hashString(chunk.Normalize(source.Text)), nil
	case SourceTypeWeb:
		canonical, err := CanonicalizeURL(source.Name)
		if err != nil {
			return "", fmt.Errorf("failed to canonicalize url: %w", err)
		}
		return hashString(canonical), nil
	default:
		return "", fmt.Errorf("unknown source type: %q", source.Type)
	}
}

// CanonicalizeURL はURLを正規化する
// スキームとホストを小文字化し、デフォルトポート・フラグメント・末尾スラッシュを取り除く
func CanonicalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url has no host: %q", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	// デフォルトポートは省略形に揃える
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Path = strings.TrimRight(u.Path, "/")

	return u.String(), nil
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
