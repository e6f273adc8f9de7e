package template

import (
	"math"

	"github.com/seqalign/alignpipe/internal"
)

// bandedSW is a banded affine-gap Smith-Waterman aligner, adapted
// from the teacher's runSmithWaterman (filters/sw.go): same
// best-gap/gap-size running-maximum trick to get O(n*band) affine-gap
// DP instead of the textbook O(n^2*band), generalized with a
// bandwidth limit and a minimum gap-extend penalty floor (spec.md
// §4.4 stage A).
type bandedSW struct {
	params Params
}

func newBandedSW(p Params) *bandedSW { return &bandedSW{params: p} }

const lowInitValue = math.MinInt32 / 2

// align aligns query against ref, both byte slices, returning the
// best-scoring CIGAR within params.BandWidth of the main diagonal and
// its score. ref is expected to be somewhat longer than query so the
// band has room to express insertions/deletions.
func (s *bandedSW) align(ref, query []byte) ([]CigarOp, int32) {
	p := s.params
	nrow := int32(len(ref)) + 1
	ncol := int32(len(query)) + 1
	band := p.BandWidth
	if band < 1 {
		band = 1
	}

	sw := make([][]int32, nrow)
	backtrack := make([][]int8, nrow)
	for i := range sw {
		sw[i] = make([]int32, ncol)
		backtrack[i] = make([]int8, ncol)
	}

	bestGapV := make([]int32, ncol+1)
	gapSizeV := make([]int32, ncol+1)
	bestGapH := make([]int32, nrow+1)
	gapSizeH := make([]int32, nrow+1)
	for j := range bestGapV {
		bestGapV[j] = lowInitValue
	}
	for i := range bestGapH {
		bestGapH[i] = lowInitValue
	}

	for i := int32(1); i < nrow; i++ {
		loJ := internal.Max(int32(1), i-band)
		hiJ := internal.Min(ncol-1, i+band)
		for j := loJ; j <= hiJ; j++ {
			stepDiag := sw[i-1][j-1]
			if ref[i-1] == query[j-1] && ref[i-1] != 'N' {
				stepDiag += p.MatchScore
			} else {
				stepDiag += p.MismatchPenalty
			}

			prevGap := sw[i-1][j] + p.GapOpenPenalty
			ext := bestGapV[j] + gapExtend(p, gapSizeV[j])
			if prevGap > ext {
				bestGapV[j] = prevGap
				gapSizeV[j] = 1
			} else {
				bestGapV[j] = ext
				gapSizeV[j]++
			}
			stepDown := bestGapV[j]
			kd := gapSizeV[j]

			prevGap = sw[i][j-1] + p.GapOpenPenalty
			ext = bestGapH[i] + gapExtend(p, gapSizeH[i])
			if prevGap > ext {
				bestGapH[i] = prevGap
				gapSizeH[i] = 1
			} else {
				bestGapH[i] = ext
				gapSizeH[i]++
			}
			stepRight := bestGapH[i]
			ki := gapSizeH[i]

			switch {
			case stepDiag >= stepDown && stepDiag >= stepRight:
				sw[i][j] = stepDiag
				backtrack[i][j] = 0
			case stepRight >= stepDown:
				sw[i][j] = stepRight
				backtrack[i][j] = int8(internal.Clamp(-ki, int32(-127), int32(127)))
			default:
				sw[i][j] = stepDown
				backtrack[i][j] = int8(internal.Clamp(kd, int32(-127), int32(127)))
			}
		}
	}

	var p1, p2 int32 = nrow - 1, 0
	maxScore := int32(math.MinInt32)
	lastRow := sw[nrow-1]
	loJ := internal.Max(int32(1), (nrow-1)-band)
	hiJ := internal.Min(ncol-1, (nrow-1)+band)
	for j := loJ; j <= hiJ; j++ {
		if lastRow[j] > maxScore {
			maxScore = lastRow[j]
			p2 = j
		}
	}

	var ops []CigarOp
	state := byte('M')
	segLen := int32(0)
	for p1 > 0 && p2 > 0 {
		btr := backtrack[p1][p2]
		var newState byte
		step := int32(1)
		switch {
		case btr > 0:
			newState = 'D'
			step = int32(btr)
			p1 -= step
		case btr < 0:
			newState = 'I'
			step = int32(-btr)
			p2 -= step
		default:
			newState = 'M'
			p1--
			p2--
		}
		if newState == state {
			segLen += step
		} else {
			if segLen > 0 {
				ops = append(ops, CigarOp{Length: segLen, Op: state})
			}
			state = newState
			segLen = step
		}
	}
	if segLen > 0 {
		ops = append(ops, CigarOp{Length: segLen, Op: state})
	}
	if p1 > 0 {
		ops = append(ops, CigarOp{Length: p1, Op: 'D'})
	} else if p2 > 0 {
		ops = append(ops, CigarOp{Length: p2, Op: 'I'})
	}
	reverseCigar(ops)
	return mergeCigar(ops), maxScore
}

func gapExtend(p Params, size int32) int32 {
	e := p.GapExtendPenalty
	if size > p.SplitGapLength {
		if p.MinGapExtendPenalty > e {
			e = p.MinGapExtendPenalty
		}
	}
	return e
}

func reverseCigar(ops []CigarOp) {
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
}

func mergeCigar(ops []CigarOp) []CigarOp {
	out := ops[:0]
	for _, op := range ops {
		if len(out) > 0 && out[len(out)-1].Op == op.Op {
			out[len(out)-1].Length += op.Length
			continue
		}
		out = append(out, op)
	}
	return out
}

