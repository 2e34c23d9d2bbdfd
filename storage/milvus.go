package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"videoTranscriptQA/core"
)

// MilvusIndexBuilder keeps per-request indexes as partitions of one
// Milvus collection. A request gets its own partition, searched in
// isolation and dropped when the index closes.
type MilvusIndexBuilder struct {
	mc       client.Client
	coll     string
	embedder Embedder
}

func NewMilvusIndexBuilder(ctx context.Context, addr, collection string, emb Embedder) (*MilvusIndexBuilder, error) {
	if collection == "" {
		collection = "transcript_chunks"
	}
	mc, err := client.NewClient(ctx, client.Config{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	b := &MilvusIndexBuilder{mc: mc, coll: collection, embedder: emb}
	if err := b.ensureCollection(ctx); err != nil {
		mc.Close()
		return nil, err
	}
	return b, nil
}

func (b *MilvusIndexBuilder) ensureCollection(ctx context.Context) error {
	has, err := b.mc.HasCollection(ctx, b.coll)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if !has {
		schema := entity.NewSchema()
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("sequence_index").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("start_offset").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(b.embedder.Dim())))
		if err := b.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
		if err != nil {
			return fmt.Errorf("new hnsw index: %w", err)
		}
		if err := b.mc.CreateIndex(ctx, b.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	if err := b.mc.LoadCollection(ctx, b.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

// Close disconnects from Milvus at process shutdown.
func (b *MilvusIndexBuilder) Close() {
	_ = b.mc.Close()
}

type milvusIndex struct {
	mc        client.Client
	coll      string
	emb       Embedder
	partition string
	size      int
}

func (b *MilvusIndexBuilder) Build(ctx context.Context, chunks []core.Chunk) (VectorIndex, error) {
	vectors, err := embedChunks(ctx, b.embedder, chunks)
	if err != nil {
		return nil, err
	}

	partition := "idx_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := b.mc.CreatePartition(ctx, b.coll, partition); err != nil {
		return nil, core.NewIndexBuildError(fmt.Errorf("create partition: %w", err))
	}

	seqs := make([]int64, len(chunks))
	offs := make([]int64, len(chunks))
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		seqs[i] = int64(ch.SequenceIndex)
		offs[i] = int64(ch.StartOffset)
		texts[i] = ch.Text
	}

	_, err = b.mc.Insert(ctx, b.coll, partition,
		entity.NewColumnInt64("sequence_index", seqs),
		entity.NewColumnInt64("start_offset", offs),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("vector", b.embedder.Dim(), vectors),
	)
	if err != nil {
		_ = b.mc.DropPartition(context.WithoutCancel(ctx), b.coll, partition)
		return nil, core.NewIndexBuildError(fmt.Errorf("insert chunks: %w", err))
	}
	if err := b.mc.Flush(ctx, b.coll, false); err != nil {
		_ = b.mc.DropPartition(context.WithoutCancel(ctx), b.coll, partition)
		return nil, core.NewIndexBuildError(fmt.Errorf("flush collection: %w", err))
	}

	return &milvusIndex{mc: b.mc, coll: b.coll, emb: b.embedder, partition: partition, size: len(chunks)}, nil
}

func (m *milvusIndex) Len() int { return m.size }

func (m *milvusIndex) Search(ctx context.Context, query string, k int) ([]core.Hit, error) {
	qv, err := m.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if k <= 0 || k > m.size {
		k = m.size
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := m.mc.Search(ctx, m.coll, []string{m.partition}, "",
		[]string{"sequence_index", "start_offset", "text"},
		[]entity.Vector{entity.FloatVector(qv)}, "vector", entity.COSINE, k, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	var hits []core.Hit
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			var seq, off int64
			var text string
			if c, ok := cols["sequence_index"].(*entity.ColumnInt64); ok && i < len(c.Data()) {
				seq = c.Data()[i]
			}
			if c, ok := cols["start_offset"].(*entity.ColumnInt64); ok && i < len(c.Data()) {
				off = c.Data()[i]
			}
			if c, ok := cols["text"].(*entity.ColumnVarChar); ok && i < len(c.Data()) {
				text = c.Data()[i]
			}
			hits = append(hits, core.Hit{
				Chunk: core.Chunk{Text: text, StartOffset: int(off), SequenceIndex: int(seq)},
				Score: float64(r.Scores[i]),
			})
		}
	}
	// Milvus orders by score already; re-rank for the sequence-index
	// tie-break the retrieval contract promises.
	return rankHits(hits, k), nil
}

// Close drops this index's partition. Runs even when the request
// context is already canceled.
func (m *milvusIndex) Close(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	_ = m.mc.ReleasePartitions(ctx, m.coll, []string{m.partition})
	if err := m.mc.DropPartition(ctx, m.coll, m.partition); err != nil {
		return fmt.Errorf("drop milvus partition: %w", err)
	}
	return nil
}
