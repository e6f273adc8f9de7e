package template

import (
	"github.com/seqalign/alignpipe/refidx"
	"github.com/seqalign/alignpipe/refpos"
	"github.com/seqalign/alignpipe/tls"
)

// rescueShadow implements stage C: given an anchor fragment whose
// mate had no seed-matcher candidates, searches a reference window
// extending on both sides of the anchor by the barcode's frozen TLS
// median plus matchFinderShadowSplitRepeats standard deviations (before
// the TLS is frozen, by that many read lengths, and never by less than
// two read lengths when the span comes out shorter than one), and
// aligns the shadow read within it with banded Smith-Waterman
// (spec.md §4.4 stage C).
func rescueShadow(anchor *Fragment, shadowBases, shadowQuality []byte, idx *refidx.Index, barcode string, tracker *tls.Tracker, splitRepeats float64, sw *bandedSW, readIndex int) (Fragment, bool) {
	st, haveStats := tracker.Snapshot(barcode)
	mean, stdev := 0.0, float64(len(shadowBases))
	if haveStats {
		mean, stdev = st.Median, st.StdDev()
	}
	span := int32(mean + splitRepeats*stdev)
	if span < int32(len(shadowBases)) {
		span = int32(len(shadowBases)) * 2
	}

	contig := &idx.Contigs[anchor.Position.Contig]
	start := anchor.Position.Offset - span
	if start < 0 {
		start = 0
	}
	end := anchor.Position.Offset + span
	if end > contig.Length {
		end = contig.Length
	}
	if end-start < int32(len(shadowBases)) {
		return Fragment{}, false
	}

	window := contig.Bases(start, end)
	cigar, score := sw.align(window, shadowBases)
	if score <= 0 {
		return Fragment{}, false
	}
	mismatches, gaps, logProb := scoreCigar(cigar, shadowBases, shadowQuality, window)

	offsetInWindow := int32(0)
	if len(cigar) > 0 && cigar[0].Op == 'D' {
		offsetInWindow = cigar[0].Length
	}
	return Fragment{
		Position:   refpos.Position{Contig: anchor.Position.Contig, Offset: start + offsetInWindow},
		Strand:     anchor.Strand,
		ReadIndex:  readIndex,
		Cigar:      cigar,
		Mismatches: mismatches,
		Gaps:       gaps,
		LogProb:    logProb,
		Bases:      shadowBases,
		Quality:    shadowQuality,
	}, true
}
