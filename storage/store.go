// Package storage provides the per-request vector index backends and
// the embedding engines behind them.
package storage

import (
	"context"
	"strings"

	"videoTranscriptQA/config"
	"videoTranscriptQA/logging"
)

// NewIndexBuilder selects the nearest-neighbor backend from config.
// Backends that need infrastructure fall back to the in-memory index
// with a warning rather than failing startup; retrieval semantics are
// identical across backends.
func NewIndexBuilder(ctx context.Context, cfg *config.Config, emb Embedder) IndexBuilder {
	logger := logging.WithComponent("storage")

	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "pgvector":
		b, err := NewPgVectorIndexBuilder(ctx, cfg.PostgresURL, emb)
		if err != nil {
			logger.Warn().Err(err).Msg("pgvector backend unavailable, falling back to memory index")
			return NewMemoryIndexBuilder(emb)
		}
		logger.Info().Msg("pgvector index backend initialized")
		return b
	case "milvus":
		b, err := NewMilvusIndexBuilder(ctx, cfg.MilvusAddr, "", emb)
		if err != nil {
			logger.Warn().Err(err).Msg("milvus backend unavailable, falling back to memory index")
			return NewMemoryIndexBuilder(emb)
		}
		logger.Info().Msg("milvus index backend initialized")
		return b
	default:
		return NewMemoryIndexBuilder(emb)
	}
}
