package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder maps text to a fixed-dimension vector. Implementations are
// deterministic for a given model and input, and safe for concurrent
// use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// OpenAIEmbedder embeds through the hosted embeddings endpoint.
type OpenAIEmbedder struct {
	cli   *openai.Client
	model string
	dim   int
}

func NewOpenAIEmbedder(cli *openai.Client, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{cli: cli, model: model, dim: 1536}
}

func (e *OpenAIEmbedder) Dim() int { return e.dim }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	vec := resp.Data[0].Embedding
	if len(vec) != e.dim {
		return nil, fmt.Errorf("embedding dimension %d does not match the configured %d", len(vec), e.dim)
	}
	return vec, nil
}

// MockEmbedder is a deterministic hashed bag-of-words embedding with a
// small fixed dimension. It keeps retrieval meaningful without any API
// access: shared terms land in shared buckets, so cosine similarity
// still ranks related texts first.
type MockEmbedder struct {
	Dimension int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dimension: 256}
}

func (m *MockEmbedder) Dim() int { return m.Dimension }

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, m.Dimension)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(tok, ".,!?;:\"'")))
		vec[h.Sum32()%uint32(m.Dimension)]++
	}
	// L2 normalize so cosine reduces to a dot product.
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		norm := float32(math.Sqrt(sum))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
