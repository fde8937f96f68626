package tokenizer

import "testing"

func TestWordCounterApproximatesTokens(t *testing.T) {
	cases := map[string]int{
		"":                            0,
		"refund":                      2,
		"our refund window":           4,
		"one two three four five six": 8,
	}
	for text, want := range cases {
		if got := (WordCounter{}).Count(text); got != want {
			t.Fatalf("Count(%q) = %d, want %d", text, got, want)
		}
	}
}

func TestNewCounterAlwaysReturnsUsableCounter(t *testing.T) {
	counter := NewCounter("", nil)
	if counter.Count("Our refund window is 30 days.") <= 0 {
		t.Fatalf("expected positive token count")
	}
	if counter.Count("") != 0 {
		t.Fatalf("expected zero tokens for empty text")
	}
}

func TestNewCounterWordsEncodingSkipsTiktoken(t *testing.T) {
	counter := NewCounter(WordsEncoding, nil)
	if _, ok := counter.(WordCounter); !ok {
		t.Fatalf("expected WordCounter, got %T", counter)
	}
}
