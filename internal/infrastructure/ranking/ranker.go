package ranking

import (
	"fmt"
	"sort"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

// NewRanker builds the ranker for a configured strategy. Dense ranking needs an embedder.
func NewRanker(strategy domain.RankingStrategy, embedder ports.Embedder) (ports.Ranker, error) {
	switch strategy {
	case domain.StrategyDense:
		if embedder == nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "new ranker", fmt.Errorf("dense ranking requires an embedder"))
		}
		return NewDenseRanker(embedder), nil
	case domain.StrategySparse:
		return NewSparseRanker(), nil
	case domain.StrategyHybrid:
		return NewHybridRanker(NewSparseRanker()), nil
	default:
		return nil, domain.WrapError(domain.ErrConfiguration, "new ranker", fmt.Errorf("unknown ranking strategy %q", strategy))
	}
}

// topK orders scored chunks by descending score, breaking ties by lower index,
// and keeps at most k of them.
func topK(scored []domain.RankedChunk, k int) []domain.RankedChunk {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
