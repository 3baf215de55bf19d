package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jinford/doc-chat/internal/core/answer"
)

// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
// ローカルLLMの生成は遅いため長めに取る
const DefaultTimeout = 120 * time.Second

// Client はOllamaサーバのREST APIクライアント
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient は新しい Client を作成する
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// GenerateCompletion はOllamaの/api/generateでテキストを生成する
func (c *Client) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}

	var resp struct {
		Response string `json:"response"`
	}
	if err := postJSON(ctx, c.client, c.baseURL+"/api/generate", reqBody, &resp); err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}

	return resp.Response, nil
}

// postJSON はJSONリクエストを送り、レスポンスをデコードする
func postJSON(ctx context.Context, client *http.Client, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// インターフェース実装の確認
var _ answer.LLMClient = (*Client)(nil)
