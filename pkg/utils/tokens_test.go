package utils

import (
	"testing"
)

func TestNewTokenCounter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		encoding string
	}{
		{"encoding name", "cl100k_base", "cl100k_base"},
		{"GPT-4 model", "gpt-4", "cl100k_base"},
		{"GPT-4o mini model", "gpt-4o-mini", "o200k_base"},
		{"unknown model falls back", "some-local-model", DefaultEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter, err := NewTokenCounter(tt.input)
			if err != nil {
				t.Fatalf("NewTokenCounter() error = %v", err)
			}
			if counter.Encoding() != tt.encoding {
				t.Errorf("Encoding() = %v, want %v", counter.Encoding(), tt.encoding)
			}
		})
	}
}

func TestTokenCounter_Count(t *testing.T) {
	counter, err := NewTokenCounter("cl100k_base")
	if err != nil {
		t.Fatalf("Failed to create token counter: %v", err)
	}

	if got := counter.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
	if got := counter.Count("hello"); got != 1 {
		t.Errorf("Count(\"hello\") = %d, want 1", got)
	}
	short := counter.Count("Paris in June")
	long := counter.Count("Paris in June, then Rome in July, then Lisbon in August")
	if short >= long {
		t.Errorf("expected longer text to have more tokens: %d >= %d", short, long)
	}
}
