package tokenizer

import "testing"

func TestEstimatorRoundsUp(t *testing.T) {
	cases := map[string]int{
		"":          0,
		"a":         1,
		"abcd":      1,
		"abcde":     2,
		"héllo wor": 3,
	}
	var est Estimator
	for text, want := range cases {
		if got := est.Count(text); got != want {
			t.Fatalf("Count(%q) = %d, want %d", text, got, want)
		}
	}
}

func TestEstimatorDeterministic(t *testing.T) {
	var est Estimator
	text := "the quick brown fox jumps over the lazy dog"
	if est.Count(text) != est.Count(text) {
		t.Fatalf("estimator must be deterministic")
	}
}

func TestNewSelectsImplementation(t *testing.T) {
	tok, err := New("estimate", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := tok.(Estimator); !ok {
		t.Fatalf("expected Estimator, got %T", tok)
	}
	if _, err := New("words", ""); err == nil {
		t.Fatalf("expected error for unknown tokenizer")
	}
}

func TestTiktokenCounts(t *testing.T) {
	tok, err := NewTiktoken("cl100k_base")
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}
	if tok.Count("") != 0 {
		t.Fatalf("empty text should count zero")
	}
	n := tok.Count("hello world")
	if n != 2 {
		t.Fatalf("expected 2 tokens for \"hello world\", got %d", n)
	}
	if tok.Count("hello world") != n {
		t.Fatalf("tiktoken count must be deterministic")
	}
}
