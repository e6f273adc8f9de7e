package template

import (
	"math"
	"testing"
)

func TestFragmentScoreUniqueCandidateIsHigh(t *testing.T) {
	// a single, overwhelmingly likely candidate should score high: the
	// rest-of-genome correction is tiny for a 150-base read, so the
	// unclamped score is far above 40.
	logProbs := []float64{0}
	score := fragmentScore(logProbs, 0, 3_100_000_000, 150)
	if score < 40 {
		t.Errorf("fragmentScore for a lone unique candidate = %d, want a high score", score)
	}
}

func TestFragmentScoreTiedCandidatesIsLow(t *testing.T) {
	// two candidates with identical probability: neither is distinguishable,
	// so the score should sit near zero.
	logProbs := []float64{0, 0}
	score := fragmentScore(logProbs, 0, 3_100_000_000, 150)
	if score > 5 {
		t.Errorf("fragmentScore for two tied candidates = %d, want near 0", score)
	}
}

func TestIsUniqueAlignment(t *testing.T) {
	if isUniqueAlignment(3) {
		t.Error("isUniqueAlignment(3) = true, want false (threshold is exclusive)")
	}
	if !isUniqueAlignment(4) {
		t.Error("isUniqueAlignment(4) = false, want true")
	}
}

func TestMapqProperPairClampsAt60(t *testing.T) {
	if got := mapqProperPair(100, 100, 100); got != 60 {
		t.Errorf("mapqProperPair = %d, want clamped to 60", got)
	}
	if got := mapqProperPair(10, 50, 5); got != 10 {
		t.Errorf("mapqProperPair(10,50,5) = %d, want max(10, min(50,5))=10", got)
	}
}

func TestMapqSolo(t *testing.T) {
	if got := mapqSolo(30); got != 30 {
		t.Errorf("mapqSolo(30) = %d, want 30", got)
	}
	if got := mapqSolo(100); got != 60 {
		t.Errorf("mapqSolo(100) = %d, want clamped to 60", got)
	}
}

func TestMapqShadow(t *testing.T) {
	if got := mapqShadow(100, 20); got != 20 {
		t.Errorf("mapqShadow(100, 20) = %d, want 20 (mate mapq limits it)", got)
	}
	if got := mapqShadow(10, 50); got != 10 {
		t.Errorf("mapqShadow(10, 50) = %d, want 10", got)
	}
}

func TestDodgyScore(t *testing.T) {
	score, unaligned := dodgyScore(3, false)
	if unaligned || score != 3 {
		t.Errorf("dodgyScore(3, false) = %d,%v, want 3,false", score, unaligned)
	}
	score, unaligned = dodgyScore(3, true)
	if !unaligned || score != 0 {
		t.Errorf("dodgyScore(3, true) = %d,%v, want 0,true", score, unaligned)
	}
}

func TestScatterChoiceInRange(t *testing.T) {
	for _, id := range []int64{0, 1, -1, 12345, math.MaxInt64} {
		got := scatterChoice(id, 7)
		if got < 0 || got >= 7 {
			t.Errorf("scatterChoice(%d, 7) = %d, out of range [0,7)", id, got)
		}
	}
}

func TestScatterChoiceZeroCount(t *testing.T) {
	if got := scatterChoice(42, 0); got != 0 {
		t.Errorf("scatterChoice(42, 0) = %d, want 0", got)
	}
}

func TestScatterChoiceDeterministic(t *testing.T) {
	a := scatterChoice(777, 5)
	b := scatterChoice(777, 5)
	if a != b {
		t.Errorf("scatterChoice is not deterministic for the same cluster id: %d != %d", a, b)
	}
}
