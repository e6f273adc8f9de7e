package template

import (
	"github.com/seqalign/alignpipe/internal"
	"github.com/seqalign/alignpipe/refidx"
	"github.com/seqalign/alignpipe/refpos"
)

// buildFragment runs spec.md §4.4 stage A for one candidate: try the
// ungapped fast path first, fall back to banded Smith-Waterman when
// the ungapped mismatch count exceeds gappedMismatchesMax (or, in
// smart-gapped mode, only when the mismatches look gap-shaped). bases
// and quality must already be revcomp'd by the caller when strand==1,
// matching the convention seedmatch.anchorPosition establishes: pos
// is always the leftmost reference base of the fragment's footprint.
func buildFragment(idx *refidx.Index, pos refpos.Position, strand int8, readIndex int, bases, quality []byte, sw *bandedSW, p Params) Fragment {
	contig := &idx.Contigs[pos.Contig]
	readLen := int32(len(bases))

	tightEnd := pos.Offset + readLen
	if tightEnd <= contig.Length && pos.Offset >= 0 {
		tight := contig.Bases(pos.Offset, tightEnd)
		ungapped := ungappedAlign(bases, quality, tight)
		useGapped := ungapped.Mismatches > p.GappedMismatchesMax
		if useGapped && p.SmartGapped {
			useGapped = hasSuspiciousMismatchRun(bases, tight, 3)
		}
		if !useGapped {
			ungapped.Position = pos
			ungapped.Strand = strand
			ungapped.ReadIndex = readIndex
			return ungapped
		}
	}

	band := p.BandWidth
	start := internal.Max(int32(0), pos.Offset-band)
	end := internal.Min(contig.Length, pos.Offset+readLen+band)
	if end-start < readLen {
		return Fragment{Position: pos, Strand: strand, ReadIndex: readIndex, Unaligned: true}
	}
	window := contig.Bases(start, end)
	cigar, _ := sw.align(window, bases)
	mismatches, gaps, logProb := scoreCigar(cigar, bases, quality, window)

	shift := int32(0)
	if len(cigar) > 0 && cigar[0].Op == 'D' {
		shift = cigar[0].Length
	}
	return Fragment{
		Position:   refpos.Position{Contig: pos.Contig, Offset: start + shift},
		Strand:     strand,
		ReadIndex:  readIndex,
		Cigar:      cigar,
		Mismatches: mismatches,
		Gaps:       gaps,
		LogProb:    logProb,
		Bases:      bases,
		Quality:    quality,
	}
}

// scoreCigar walks a CIGAR against bases/quality/refWindow, counting
// mismatches, gap operations, and the alignment log-probability
// (spec.md §4.4: match/mismatch per-base log-probability; gap bases
// contribute nothing beyond the aligner's own gap penalties, which
// already account for them in the aligner's score).
func scoreCigar(cigar []CigarOp, bases, quality, refWindow []byte) (mismatches, gaps int, logProb float64) {
	var readPos, refPos int32
	for _, op := range cigar {
		switch op.Op {
		case 'M':
			for i := int32(0); i < op.Length; i++ {
				b := bases[readPos+i]
				r := refWindow[refPos+i]
				q := qualityIndex(quality[readPos+i])
				if b == r && b != 'N' {
					logProb += logMatch[q]
				} else {
					mismatches++
					logProb += logMismatch[q]
				}
			}
			readPos += op.Length
			refPos += op.Length
		case 'I':
			gaps++
			readPos += op.Length
		case 'D':
			gaps++
			refPos += op.Length
		case 'S':
			readPos += op.Length
		}
	}
	return
}
