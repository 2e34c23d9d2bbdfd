package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"videoTranscriptQA/core"
)

// PgVectorIndexBuilder keeps per-request indexes in a Postgres table
// with pgvector similarity search. Rows are keyed by a fresh index id
// and deleted when the index closes, so nothing survives the request.
type PgVectorIndexBuilder struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

func NewPgVectorIndexBuilder(ctx context.Context, dbURL string, emb Embedder) (*PgVectorIndexBuilder, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	b := &PgVectorIndexBuilder{pool: pool, embedder: emb}
	if err := b.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PgVectorIndexBuilder) ensureTable(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS transcript_chunks (
			id SERIAL PRIMARY KEY,
			index_id UUID NOT NULL,
			sequence_index INT NOT NULL,
			start_offset INT NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transcript_chunks_index_id
			ON transcript_chunks (index_id);
	`, b.embedder.Dim())
	if _, err := b.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create transcript_chunks table: %w", err)
	}
	return nil
}

// Close releases the connection pool at process shutdown.
func (b *PgVectorIndexBuilder) Close() {
	b.pool.Close()
}

type pgVectorIndex struct {
	pool    *pgxpool.Pool
	emb     Embedder
	indexID uuid.UUID
	size    int
}

func (b *PgVectorIndexBuilder) Build(ctx context.Context, chunks []core.Chunk) (VectorIndex, error) {
	vectors, err := embedChunks(ctx, b.embedder, chunks)
	if err != nil {
		return nil, err
	}

	indexID := uuid.New()
	for i, ch := range chunks {
		_, err := b.pool.Exec(ctx, `
			INSERT INTO transcript_chunks (index_id, sequence_index, start_offset, text, embedding)
			VALUES ($1, $2, $3, $4, $5)
		`, indexID, ch.SequenceIndex, ch.StartOffset, ch.Text, pgvector.NewVector(vectors[i]))
		if err != nil {
			// Abandon the half-written index before reporting.
			_, _ = b.pool.Exec(context.WithoutCancel(ctx), "DELETE FROM transcript_chunks WHERE index_id = $1", indexID)
			return nil, core.NewIndexBuildError(fmt.Errorf("insert chunk %d: %w", ch.SequenceIndex, err))
		}
	}
	return &pgVectorIndex{pool: b.pool, emb: b.embedder, indexID: indexID, size: len(chunks)}, nil
}

func (p *pgVectorIndex) Len() int { return p.size }

func (p *pgVectorIndex) Search(ctx context.Context, query string, k int) ([]core.Hit, error) {
	qv, err := p.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if k <= 0 || k > p.size {
		k = p.size
	}
	vec := pgvector.NewVector(qv)
	rows, err := p.pool.Query(ctx, `
		SELECT sequence_index, start_offset, text, 1 - (embedding <=> $1) AS similarity
		FROM transcript_chunks
		WHERE index_id = $2
		ORDER BY embedding <=> $1, sequence_index
		LIMIT $3
	`, vec, p.indexID, k)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	var hits []core.Hit
	for rows.Next() {
		var seq, off int
		var text string
		var score float64
		if err := rows.Scan(&seq, &off, &text, &score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, core.Hit{
			Chunk: core.Chunk{Text: text, StartOffset: off, SequenceIndex: seq},
			Score: score,
		})
	}
	return hits, rows.Err()
}

// Close deletes this index's rows. Runs even when the request context
// is already canceled; the index must not outlive its request.
func (p *pgVectorIndex) Close(ctx context.Context) error {
	_, err := p.pool.Exec(context.WithoutCancel(ctx), "DELETE FROM transcript_chunks WHERE index_id = $1", p.indexID)
	if err != nil {
		return fmt.Errorf("drop pgvector index rows: %w", err)
	}
	return nil
}
