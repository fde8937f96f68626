package ranking

import (
	"context"
	"math"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

// SparseRanker scores chunks by TF-IDF cosine similarity. The vocabulary and
// document frequencies are fitted over the chunks plus the query itself.
type SparseRanker struct{}

func NewSparseRanker() *SparseRanker {
	return &SparseRanker{}
}

func (r *SparseRanker) Strategy() domain.RankingStrategy {
	return domain.StrategySparse
}

func (r *SparseRanker) Rank(_ context.Context, query string, chunks []string, k int) ([]domain.RankedChunk, error) {
	if len(chunks) == 0 || k <= 0 {
		return []domain.RankedChunk{}, nil
	}

	termFreqs := make([]map[string]float64, 0, len(chunks)+1)
	for _, chunk := range chunks {
		termFreqs = append(termFreqs, countTerms(tokenizeTerms(chunk)))
	}
	termFreqs = append(termFreqs, countTerms(tokenizeTerms(query)))

	docFreq := make(map[string]int, 128)
	for _, tf := range termFreqs {
		for term := range tf {
			docFreq[term]++
		}
	}

	n := float64(len(termFreqs))
	idf := make(map[string]float64, len(docFreq))
	for term, df := range docFreq {
		idf[term] = math.Log((1+n)/(1+float64(df))) + 1
	}

	vectors := make([]map[string]float64, len(termFreqs))
	for i, tf := range termFreqs {
		vectors[i] = weightAndNormalize(tf, idf)
	}
	queryVector := vectors[len(vectors)-1]

	scored := make([]domain.RankedChunk, 0, len(chunks))
	for i, chunk := range chunks {
		scored = append(scored, domain.RankedChunk{
			Index: i,
			Text:  chunk,
			Score: sparseDot(vectors[i], queryVector),
		})
	}
	return topK(scored, k), nil
}

func countTerms(tokens []string) map[string]float64 {
	out := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		out[token]++
	}
	return out
}

func weightAndNormalize(tf map[string]float64, idf map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(tf))
	var norm float64
	for term, count := range tf {
		weight := count * idf[term]
		out[term] = weight
		norm += weight * weight
	}
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for term := range out {
		out[term] /= norm
	}
	return out
}

func sparseDot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, weight := range a {
		sum += weight * b[term]
	}
	return sum
}
