package storage

import (
	"context"
	"fmt"
	"math"
	"sort"

	"videoTranscriptQA/core"
)

// VectorIndex is a read-only nearest-neighbor index over one
// transcript's chunks. It is built fresh for a single request, never
// mutated after construction, and never shared across requests. Close
// releases whatever the backend allocated for it.
type VectorIndex interface {
	// Search returns the top-k chunks by similarity, descending, with
	// ties broken by original sequence order. At most k hits come back,
	// each one a chunk that went into the index.
	Search(ctx context.Context, query string, k int) ([]core.Hit, error)
	Len() int
	Close(ctx context.Context) error
}

// IndexBuilder constructs a per-request VectorIndex from an ordered
// chunk sequence.
type IndexBuilder interface {
	Build(ctx context.Context, chunks []core.Chunk) (VectorIndex, error)
}

// embedChunks computes one embedding per chunk, in order. A rejected
// chunk is reported by its sequence index rather than dropped.
func embedChunks(ctx context.Context, emb Embedder, chunks []core.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, core.NewIndexBuildError(fmt.Errorf("cannot build an index from zero chunks"))
	}
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		vec, err := emb.Embed(ctx, ch.Text)
		if err != nil {
			return nil, core.NewIndexBuildError(fmt.Errorf("embed chunk %d: %w", ch.SequenceIndex, err))
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// rankHits orders scored chunks by similarity descending, breaking ties
// by sequence index, and truncates to k.
func rankHits(hits []core.Hit, k int) []core.Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.SequenceIndex < hits[j].Chunk.SequenceIndex
	})
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// ---------------- Memory implementation (default) ----------------

// MemoryIndexBuilder builds exact cosine-similarity indexes held in
// process memory. This is the default backend and the one tests use.
type MemoryIndexBuilder struct {
	Embedder Embedder
}

func NewMemoryIndexBuilder(emb Embedder) *MemoryIndexBuilder {
	return &MemoryIndexBuilder{Embedder: emb}
}

type memoryIndex struct {
	emb     Embedder
	chunks  []core.Chunk
	vectors [][]float32
}

func (b *MemoryIndexBuilder) Build(ctx context.Context, chunks []core.Chunk) (VectorIndex, error) {
	vectors, err := embedChunks(ctx, b.Embedder, chunks)
	if err != nil {
		return nil, err
	}
	idx := &memoryIndex{emb: b.Embedder, chunks: make([]core.Chunk, len(chunks)), vectors: vectors}
	copy(idx.chunks, chunks)
	return idx, nil
}

func (m *memoryIndex) Len() int { return len(m.chunks) }

func (m *memoryIndex) Search(ctx context.Context, query string, k int) ([]core.Hit, error) {
	qv, err := m.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits := make([]core.Hit, len(m.chunks))
	for i, ch := range m.chunks {
		hits[i] = core.Hit{Chunk: ch, Score: cosine(qv, m.vectors[i])}
	}
	return rankHits(hits, k), nil
}

func (m *memoryIndex) Close(context.Context) error {
	m.chunks, m.vectors = nil, nil
	return nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
