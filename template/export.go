package template

// BandedSW is the exported handle to the banded affine-gap
// Smith-Waterman aligner, for consumers outside this package that
// need to re-run alignment against a new window (binmerge's
// realigner).
type BandedSW = bandedSW

// NewBandedSW builds a BandedSW from the given Params.
func NewBandedSW(p Params) *BandedSW {
	return newBandedSW(p)
}

// Align aligns query against ref and returns the best CIGAR within
// sw's configured band and its score.
func (s *BandedSW) Align(ref, query []byte) ([]CigarOp, int32) {
	return s.align(ref, query)
}

// ScoreAlignment walks cigar against bases/quality/refWindow and
// returns its mismatch count and alignment log-probability (spec.md
// §4.4), for consumers that need to re-score
// a CIGAR produced outside the normal fragment-construction path
// (binmerge's realigner).
func ScoreAlignment(cigar []CigarOp, bases, quality, refWindow []byte) (mismatches int, logProb float64) {
	m, _, lp := scoreCigar(cigar, bases, quality, refWindow)
	return m, lp
}
