package binmerge

import (
	"testing"

	"github.com/seqalign/alignpipe/template"
)

func TestCombineGapsSingleCandidateSizeOne(t *testing.T) {
	cands := []gapCandidate{{refOffset: 10, length: -3}, {refOffset: 20, length: 2}}
	combos := combineGaps(cands, 1)
	if len(combos) != 2 {
		t.Fatalf("combineGaps(size=1) = %d combos, want 2 (one per candidate)", len(combos))
	}
	for _, c := range combos {
		if len(c) != 1 {
			t.Errorf("combo %v has length %d, want 1", c, len(c))
		}
	}
}

func TestCombineGapsEnumeratesSubsetsUpToSize(t *testing.T) {
	cands := []gapCandidate{{refOffset: 1}, {refOffset: 2}, {refOffset: 3}}
	combos := combineGaps(cands, 2)
	// subsets of size 1 (3) plus subsets of size 2 (3) = 6
	if len(combos) != 6 {
		t.Fatalf("combineGaps(size=2) over 3 candidates = %d combos, want 6", len(combos))
	}
	var sawPair bool
	for _, c := range combos {
		if len(c) == 2 {
			sawPair = true
		}
		if len(c) > 2 {
			t.Errorf("combo %v has length %d, want at most 2", c, len(c))
		}
	}
	if !sawPair {
		t.Error("expected at least one size-2 combination")
	}
}

func TestCombineGapsSizeAboveCandidateCountClamps(t *testing.T) {
	cands := []gapCandidate{{refOffset: 1}, {refOffset: 2}}
	combos := combineGaps(cands, 5)
	for _, c := range combos {
		if len(c) > 2 {
			t.Errorf("combo %v longer than candidate list", c)
		}
	}
	// subsets of size 1 (2) + size 2 (1) = 3
	if len(combos) != 3 {
		t.Errorf("combineGaps(size=5) over 2 candidates = %d combos, want 3", len(combos))
	}
}

func TestCombineGapsZeroCandidates(t *testing.T) {
	if combos := combineGaps(nil, 3); len(combos) != 0 {
		t.Errorf("combineGaps(nil) = %v, want empty", combos)
	}
}

func TestCombineGapsRespectsMaxCombinationsCap(t *testing.T) {
	cands := make([]gapCandidate, 30)
	for i := range cands {
		cands[i] = gapCandidate{refOffset: int32(i)}
	}
	combos := combineGaps(cands, 3)
	if len(combos) > maxRealignCombinations {
		t.Errorf("combineGaps produced %d combos, want at most %d", len(combos), maxRealignCombinations)
	}
}

func TestRelevantCandidatesFiltersByRange(t *testing.T) {
	cands := []gapCandidate{{refOffset: 5}, {refOffset: 15}, {refOffset: 25}}
	got := relevantCandidates(cands, 10, 20)
	if len(got) != 1 || got[0].refOffset != 15 {
		t.Errorf("relevantCandidates(10,20) = %v, want just the offset-15 candidate", got)
	}
}

func TestCigarRefLenCountsMatchAndDeleteNotInsert(t *testing.T) {
	cigar := []template.CigarOp{
		{Length: 10, Op: 'M'},
		{Length: 3, Op: 'I'},
		{Length: 2, Op: 'D'},
	}
	if got := cigarRefLen(cigar); got != 12 {
		t.Errorf("cigarRefLen() = %d, want 12 (M+D, not I)", got)
	}
}
