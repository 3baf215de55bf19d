package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchExtractsMainContent(t *testing.T) {
	page := `<html><head><title>Example Page</title></head><body>
		<nav><a href="/">Home</a><a href="/about">About</a></nav>
		<article>
			<h1>Interesting article heading text</h1>
			<p>This is the main body of the article with enough length to keep.</p>
			<p>ok</p>
		</article>
		<footer>Copyright notice that lives in the footer area</footer>
		</body></html>`

	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	fetcher := NewWebFetcher()
	got, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Example Page", got.Title)
	assert.Contains(t, got.Text, "Title: Example Page")
	assert.Contains(t, got.Text, "URL: "+server.URL)
	assert.Contains(t, got.Text, "main body of the article")
	// ナビゲーションと短い行は本文に含めない
	assert.NotContains(t, got.Text, "Home")
	assert.NotContains(t, got.Text, "\nok\n")
	assert.Contains(t, gotUA, "Mozilla")
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	fetcher := NewWebFetcher()

	_, err := fetcher.Fetch(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)

	_, err = fetcher.Fetch(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestFetchNon200Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := NewWebFetcher()
	_, err := fetcher.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchEmptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>hi</p></body></html>"))
	}))
	defer server.Close()

	fetcher := NewWebFetcher()
	_, err := fetcher.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}
