package analysis

import (
	"math"
	"testing"
)

func TestRubricWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, c := range Rubric() {
		if c.Weight <= 0 {
			t.Errorf("criterion %q has non-positive weight %v", c.Key, c.Weight)
		}
		sum += c.Weight
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("weights sum to %v, want 1", sum)
	}
}

func TestLanguages(t *testing.T) {
	langs := Languages()
	if len(langs) == 0 {
		t.Fatal("no languages")
	}

	seen := make(map[string]bool)
	for _, l := range langs {
		if l.Code == "" || l.Name == "" {
			t.Errorf("incomplete language %+v", l)
		}
		if seen[l.Code] {
			t.Errorf("duplicate code %q", l.Code)
		}
		seen[l.Code] = true
	}

	// returned slice is a copy
	langs[0].Code = "xx"
	if Languages()[0].Code == "xx" {
		t.Fatal("Languages must not expose internal state")
	}
}

func TestSupported(t *testing.T) {
	if !Supported("en") {
		t.Fatal("en must be supported")
	}
	if Supported("tlh") {
		t.Fatal("tlh must not be supported")
	}
	if Supported("") {
		t.Fatal("empty code must not be supported")
	}
}

func TestScore(t *testing.T) {
	if got := Score(nil); got != 0 {
		t.Fatalf("Score(nil) = %v", got)
	}

	perfect := make(map[string]float64)
	for _, c := range Rubric() {
		perfect[c.Key] = 1
	}
	if got := Score(perfect); math.Abs(got-1) > 1e-9 {
		t.Fatalf("perfect score = %v, want 1", got)
	}

	// out-of-range values clamp, unknown keys are ignored
	got := Score(map[string]float64{"clarity": 5, "bogus": 1})
	if math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("clamped score = %v, want 0.25", got)
	}
}
