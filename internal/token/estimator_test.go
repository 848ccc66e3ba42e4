package token

import "testing"

func TestHeuristicEstimate(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"abcd", 1},
		{"abcdefg", 1},
		{"abcdefgh", 2},
	}
	for _, tt := range tests {
		got := Heuristic{}.Estimate(tt.text)
		if got != tt.want {
			t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestHeuristicMonotonic(t *testing.T) {
	e := Heuristic{}
	prev := 0
	s := ""
	for i := 0; i < 100; i++ {
		s += "word "
		got := e.Estimate(s)
		if got < prev {
			t.Fatalf("estimate shrank from %d to %d at length %d", prev, got, len(s))
		}
		prev = got
	}
}
