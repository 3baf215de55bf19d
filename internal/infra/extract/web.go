package extract

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	// fetchTimeout はWebページ取得のタイムアウト
	fetchTimeout = 15 * time.Second
	// maxFetchBytes はレスポンス本文の上限
	maxFetchBytes = 5 << 20
	// minContentLineRunes は本文とみなす行の最小文字数
	minContentLineRunes = 20

	// ボット扱いで弾くサイトが多いため、ブラウザ相当のUAを名乗る
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Page は取得したWebページ
type Page struct {
	URL   string
	Title string
	Text  string // Title/URLヘッダー付きの本文
}

// WebFetcher はWebページを取得して本文を抽出する
type WebFetcher struct {
	client *http.Client
}

// NewWebFetcher は新しい WebFetcher を作成する
func NewWebFetcher() *WebFetcher {
	return &WebFetcher{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	chromeRe = regexp.MustCompile(`(?is)<(nav|header|footer|aside|form)[^>]*>.*?</(nav|header|footer|aside|form)>`)

	// 本文領域の候補。先に見つかったものを優先する
	mainContentRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<article[^>]*>(.*?)</article>`),
		regexp.MustCompile(`(?is)<main[^>]*>(.*?)</main>`),
		regexp.MustCompile(`(?is)<div[^>]+(?:id|class)="content"[^>]*>(.*?)</div>`),
		regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`),
	}
)

// Fetch はURLのページを取得して本文を抽出する
func (f *WebFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read page body: %w", err)
	}

	content := string(body)
	title := extractTitle(content)
	text := extractMainText(content)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	var sb strings.Builder
	if title != "" {
		sb.WriteString("Title: " + title + "\n")
	}
	sb.WriteString("URL: " + rawURL + "\n\nContent:\n")
	sb.WriteString(text)

	return &Page{
		URL:   rawURL,
		Title: title,
		Text:  sb.String(),
	}, nil
}

// validateURL は取り込み可能なURLかを検査する
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %q", rawURL)
	}
	return nil
}

func extractTitle(content string) string {
	m := titleRe.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.Join(strings.Fields(html.UnescapeString(m[1])), " ")
}

// extractMainText はナビゲーション類を除去し、本文領域のテキストを取り出す
// 短すぎる行はメニューやボタンのラベルとみなして落とす
func extractMainText(content string) string {
	content = chromeRe.ReplaceAllString(content, " ")

	region := content
	for _, re := range mainContentRes {
		if m := re.FindStringSubmatch(content); m != nil {
			region = m[1]
			break
		}
	}

	text := StripHTML(region)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if len([]rune(line)) >= minContentLineRunes {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
