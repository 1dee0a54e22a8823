package resolver

import "testing"

func TestSequenceRatio_Identical(t *testing.T) {
	if r := sequenceRatio("bitcoin", "bitcoin"); r != 1.0 {
		t.Errorf("expected ratio 1.0 for identical strings, got %v", r)
	}
}

func TestSequenceRatio_Empty(t *testing.T) {
	if r := sequenceRatio("", ""); r != 1.0 {
		t.Errorf("expected ratio 1.0 for two empty strings, got %v", r)
	}
}

func TestSequenceRatio_Disjoint(t *testing.T) {
	r := sequenceRatio("abc", "xyz")
	if r != 0.0 {
		t.Errorf("expected ratio 0.0 for wholly disjoint strings, got %v", r)
	}
}

func TestSequenceRatio_CloseNames(t *testing.T) {
	// "bitcoin cash" vs "bitcoin" shares a long common run; the ratio
	// should clear NameSimilarityThreshold even though lengths differ.
	r := sequenceRatio("bitcoin cash", "bitcoin")
	if r <= NameSimilarityThreshold {
		t.Errorf("expected ratio above %.1f for a clear substring match, got %v", NameSimilarityThreshold, r)
	}
}

func TestSequenceRatio_UnrelatedSharedTicker(t *testing.T) {
	// Two different coins that happen to collide on a ticker symbol
	// shouldn't read as similar by name.
	r := sequenceRatio("zyx quny", "gold token")
	if r > NameSimilarityThreshold {
		t.Errorf("expected unrelated names with a shared ticker to score low, got %v", r)
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Bitcoin", "bitcoin"},
		{"Binance Coin", "binance-coin"},
		{"Terra Luna Classic", "terra-luna-classic"},
		{"USD Coin", "usd-coin"},
		{"Wrapped BTC (bc.io)", "wrapped-btc-(bcio)"},
	}
	for _, tt := range tests {
		if got := canonicalize(tt.in); got != tt.want {
			t.Errorf("canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
