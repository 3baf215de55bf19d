package chunk

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter はテキストのトークン数を数える
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
}

// NewTokenCounter は新しいTokenCounterを作成します
// cl100k_baseエンコーダを使用（text-embedding-3-small / nomic-embed-text と近似互換）
func NewTokenCounter() (*TokenCounter, error) {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}
	return &TokenCounter{encoder: encoder}, nil
}

// Count はテキストのトークン数を返す
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.encoder.Encode(text, nil, nil))
}
