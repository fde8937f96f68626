package ranking

import (
	"context"
	"fmt"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

// DenseRanker scores chunks by the dot product of their embeddings with the query embedding.
type DenseRanker struct {
	embedder ports.Embedder
}

func NewDenseRanker(embedder ports.Embedder) *DenseRanker {
	return &DenseRanker{embedder: embedder}
}

func (r *DenseRanker) Strategy() domain.RankingStrategy {
	return domain.StrategyDense
}

func (r *DenseRanker) Rank(ctx context.Context, query string, chunks []string, k int) ([]domain.RankedChunk, error) {
	if len(chunks) == 0 || k <= 0 {
		return []domain.RankedChunk{}, nil
	}

	chunkVectors, err := r.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRanking, "embed chunks", err)
	}
	if len(chunkVectors) != len(chunks) {
		return nil, domain.WrapError(domain.ErrRanking, "embed chunks", fmt.Errorf("got %d vectors for %d chunks", len(chunkVectors), len(chunks)))
	}
	queryVectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, domain.WrapError(domain.ErrRanking, "embed query", err)
	}
	if len(queryVectors) != 1 {
		return nil, domain.WrapError(domain.ErrRanking, "embed query", fmt.Errorf("got %d vectors for 1 query", len(queryVectors)))
	}
	queryVector := queryVectors[0]

	scored := make([]domain.RankedChunk, 0, len(chunks))
	for i, vector := range chunkVectors {
		if len(vector) != len(queryVector) {
			return nil, domain.WrapError(domain.ErrRanking, "score chunks", fmt.Errorf("chunk %d has dimension %d, query has %d", i, len(vector), len(queryVector)))
		}
		scored = append(scored, domain.RankedChunk{
			Index: i,
			Text:  chunks[i],
			Score: dot(vector, queryVector),
		})
	}
	return topK(scored, k), nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
