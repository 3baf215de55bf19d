package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchEmbedValidatesInput(t *testing.T) {
	embedder := NewEmbedder("test-key")

	_, err := embedder.BatchEmbed(context.Background(), nil)
	assert.Error(t, err)

	tooMany := make([]string, maxBatchSize+1)
	_, err = embedder.BatchEmbed(context.Background(), tooMany)
	assert.Error(t, err)
}

func TestEmbedderOptions(t *testing.T) {
	embedder := NewEmbedder("test-key",
		WithEmbeddingModel("text-embedding-3-large"),
		WithEmbeddingDimension(3072),
	)

	assert.Equal(t, "text-embedding-3-large", embedder.ModelName())
	assert.Equal(t, 3072, embedder.Dimension())
	assert.Equal(t, maxBatchSize, embedder.MaxBatchSize())
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("", "gpt-4o-mini")
	assert.ErrorIs(t, err, ErrAPIKeyNotSet)

	client, err := NewClient("test-key", "")
	assert.NoError(t, err)
	assert.Equal(t, DefaultModel, client.ModelName())
}
