package domain

type RankingStrategy string

const (
	StrategyDense  RankingStrategy = "dense"
	StrategySparse RankingStrategy = "sparse"
	StrategyHybrid RankingStrategy = "hybrid"
)

func ParseRankingStrategy(raw string) (RankingStrategy, bool) {
	switch RankingStrategy(raw) {
	case StrategyDense, StrategySparse, StrategyHybrid:
		return RankingStrategy(raw), true
	default:
		return "", false
	}
}

// RankedChunk is one entry of a ranking; Index is the chunk's position in the loaded set.
type RankedChunk struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

func ChunkTexts(ranked []RankedChunk) []string {
	out := make([]string, 0, len(ranked))
	for _, chunk := range ranked {
		out = append(out, chunk.Text)
	}
	return out
}

type PipelineConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	Strategy       RankingStrategy
	RequireContext bool
	NoContextReply string
}

type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)
