package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/core/ports"
)

type PromptTemplate struct {
	Role            string
	SystemPrompt    string
	MinSentences    int
	MaxSentences    int
	FallbackContact string
	// MaxContextTokens caps the context block; zero or less means no cap.
	MaxContextTokens int
}

func DefaultPromptTemplate() PromptTemplate {
	return PromptTemplate{
		Role:             "You are a helpful CRM assistant.",
		SystemPrompt:     "You are a helpful CRM assistant.",
		MinSentences:     2,
		MaxSentences:     4,
		MaxContextTokens: 3000,
	}
}

type PromptComposer struct {
	tmpl    PromptTemplate
	counter ports.TokenCounter
}

func NewPromptComposer(tmpl PromptTemplate, counter ports.TokenCounter) *PromptComposer {
	def := DefaultPromptTemplate()
	if strings.TrimSpace(tmpl.Role) == "" {
		tmpl.Role = def.Role
	}
	if strings.TrimSpace(tmpl.SystemPrompt) == "" {
		tmpl.SystemPrompt = def.SystemPrompt
	}
	if tmpl.MinSentences <= 0 {
		tmpl.MinSentences = def.MinSentences
	}
	if tmpl.MaxSentences < tmpl.MinSentences {
		tmpl.MaxSentences = max(def.MaxSentences, tmpl.MinSentences)
	}
	return &PromptComposer{tmpl: tmpl, counter: counter}
}

// Compose renders the instruction block for one query. It performs no I/O.
func (c *PromptComposer) Compose(query string, ranked []string) string {
	var b strings.Builder
	b.WriteString(c.tmpl.Role)
	b.WriteString(" Answer the customer's query based only on this context.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(c.contextBlock(ranked))
	b.WriteString("\n\nQuery:\n")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\nInstructions:\n")
	fmt.Fprintf(&b, "- Keep the answer short and clear (%d-%d sentences max).\n", c.tmpl.MinSentences, c.tmpl.MaxSentences)
	b.WriteString("- Do NOT repeat the customer's question.\n")
	b.WriteString("- Reply professionally and helpfully.\n")
	if contact := strings.TrimSpace(c.tmpl.FallbackContact); contact != "" {
		fmt.Fprintf(&b, "- If the context does not contain the answer, say so and ask the customer to contact %s.\n", contact)
	}
	b.WriteString("\nAnswer:")
	return b.String()
}

// Messages wraps a composed prompt into the system + user chat request.
func (c *PromptComposer) Messages(prompt string) []domain.PromptMessage {
	return []domain.PromptMessage{
		{Role: domain.RoleSystem, Content: c.tmpl.SystemPrompt},
		{Role: domain.RoleUser, Content: prompt},
	}
}

// Tokens measures a composed prompt; zero when no counter is configured.
func (c *PromptComposer) Tokens(prompt string) int {
	if c.counter == nil {
		return 0
	}
	return c.counter.Count(prompt)
}

// Fit returns the chunks that fit the context budget, in ranked order. Whole
// chunks are kept while they fit; a first chunk that alone exceeds the budget
// is cut to its longest word prefix that fits, so non-empty input never yields
// an empty context.
func (c *PromptComposer) Fit(ranked []string) []string {
	if c.tmpl.MaxContextTokens <= 0 || c.counter == nil {
		return ranked
	}
	kept := make([]string, 0, len(ranked))
	used := 0
	for _, chunk := range ranked {
		cost := c.counter.Count(chunk)
		if used+cost > c.tmpl.MaxContextTokens {
			if len(kept) == 0 {
				if head := c.truncate(chunk, c.tmpl.MaxContextTokens); head != "" {
					kept = append(kept, head)
				}
			}
			break
		}
		used += cost
		kept = append(kept, chunk)
	}
	return kept
}

// truncate keeps the longest word prefix of text whose cost is within budget.
func (c *PromptComposer) truncate(text string, budget int) string {
	words := strings.Fields(text)
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.counter.Count(strings.Join(words[:mid], " ")) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		// A single word over budget still beats an empty context.
		lo = min(1, len(words))
	}
	return strings.Join(words[:lo], " ")
}

func (c *PromptComposer) contextBlock(ranked []string) string {
	return strings.Join(c.Fit(ranked), "\n")
}
