package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDocumentIgnoresWhitespaceDifferences(t *testing.T) {
	a, err := Fingerprint(Source{Type: SourceTypeDocument, Name: "a.txt", Text: "hello   world"})
	require.NoError(t, err)
	b, err := Fingerprint(Source{Type: SourceTypeDocument, Name: "b.txt", Text: " hello\nworld "})
	require.NoError(t, err)

	// 名前が違っても正規化後の内容が同じなら同一フィンガープリント
	assert.Equal(t, a, b)
}

func TestFingerprintDocumentDiffersByContent(t *testing.T) {
	a, err := Fingerprint(Source{Type: SourceTypeDocument, Name: "a.txt", Text: "hello world"})
	require.NoError(t, err)
	b, err := Fingerprint(Source{Type: SourceTypeDocument, Name: "a.txt", Text: "goodbye world"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestFingerprintWebUsesCanonicalURL(t *testing.T) {
	a, err := Fingerprint(Source{Type: SourceTypeWeb, Name: "https://Example.com:443/docs/#section"})
	require.NoError(t, err)
	b, err := Fingerprint(Source{Type: SourceTypeWeb, Name: "https://example.com/docs"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestFingerprintUnknownType(t *testing.T) {
	_, err := Fingerprint(Source{Type: "git", Name: "x"})
	assert.Error(t, err)
}

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"lowercases scheme and host", "HTTPS://EXAMPLE.COM/Path", "https://example.com/Path", false},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a", false},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a", false},
		{"keeps non-default port", "http://example.com:8080/a", "http://example.com:8080/a", false},
		{"strips fragment", "https://example.com/a#top", "https://example.com/a", false},
		{"trims trailing slash", "https://example.com/a/", "https://example.com/a", false},
		{"rejects ftp", "ftp://example.com/a", "", true},
		{"rejects missing host", "https:///a", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalizeURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRecordIDIsDeterministic(t *testing.T) {
	a := NewRecordID("fp1", 0)
	b := NewRecordID("fp1", 0)
	c := NewRecordID("fp1", 1)
	d := NewRecordID("fp2", 0)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}
