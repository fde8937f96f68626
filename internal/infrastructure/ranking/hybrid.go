package ranking

import (
	"context"
	"strings"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

// HybridRanker keeps chunks that literally mention any query word, in document
// order. When nothing matches it defers to the fallback ranker.
type HybridRanker struct {
	fallback ports.Ranker
}

func NewHybridRanker(fallback ports.Ranker) *HybridRanker {
	return &HybridRanker{fallback: fallback}
}

func (r *HybridRanker) Strategy() domain.RankingStrategy {
	return domain.StrategyHybrid
}

func (r *HybridRanker) Rank(ctx context.Context, query string, chunks []string, k int) ([]domain.RankedChunk, error) {
	if len(chunks) == 0 || k <= 0 {
		return []domain.RankedChunk{}, nil
	}

	words := queryWords(query)
	out := make([]domain.RankedChunk, 0, k)
	if len(words) > 0 {
		for i, chunk := range chunks {
			lowered := strings.ToLower(chunk)
			hits := 0
			for _, word := range words {
				if strings.Contains(lowered, word) {
					hits++
				}
			}
			if hits == 0 {
				continue
			}
			out = append(out, domain.RankedChunk{
				Index: i,
				Text:  chunk,
				Score: float64(hits) / float64(len(words)),
			})
			if len(out) == k {
				break
			}
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	return r.fallback.Rank(ctx, query, chunks, k)
}
