package template

import (
	"math"

	"github.com/seqalign/alignpipe/internal"
	"github.com/seqalign/alignpipe/tls"
)

// Pair is a candidate template for paired-end data: two fragments
// (one per mate) that are mutually consistent with the barcode's TLS,
// or a best-effort "anomalous" pairing when no TLS-consistent
// combination exists (spec.md §4.4 stage B).
type Pair struct {
	F1, F2    *Fragment
	LogProb   float64
	Anomalous bool
}

// signedInsertSize computes f2's position relative to f1 along the
// reference, positive when f2 is downstream, consistent with how TLS
// samples are recorded by Observe.
func signedInsertSize(f1, f2 *Fragment) int64 {
	end1 := f1.Position.Offset + f1.ReferenceLength()
	return int64(f2.Position.Offset) - int64(end1) + int64(f1.ReferenceLength())
}

// enumeratePairs implements stage B: for every (f1, f2) combination
// on the same contig, keep those within driftRange standard
// deviations of the TLS median (provisional while the barcode is
// still training; no drift filter before its first sample), and score
// them by combined log-probability. If none qualify, fall back to the
// single best-scoring solo fragment from each read, flagged anomalous.
func enumeratePairs(reads1, reads2 []Fragment, barcode string, tracker *tls.Tracker, anomalousPairHandicap int32) []Pair {
	st, frozen := tracker.Snapshot(barcode)
	haveStats := frozen || st != (tls.Stats{})
	driftRange := tracker.DriftRange(barcode)

	var pairs []Pair
	for i := range reads1 {
		for j := range reads2 {
			f1, f2 := &reads1[i], &reads2[j]
			if f1.Position.Contig != f2.Position.Contig {
				continue
			}
			if haveStats {
				insert := float64(signedInsertSize(f1, f2))
				dev := math.Abs(insert-st.Median) / internal.Max(st.StdDev(), 1)
				if dev > driftRange {
					continue
				}
			}
			pairs = append(pairs, Pair{F1: f1, F2: f2, LogProb: f1.LogProb + f2.LogProb})
		}
	}
	if len(pairs) > 0 {
		return pairs
	}

	best1 := bestFragment(reads1)
	best2 := bestFragment(reads2)
	if best1 == nil && best2 == nil {
		return nil
	}
	anomalous := Pair{F1: best1, F2: best2, Anomalous: true}
	if best1 != nil {
		anomalous.LogProb += best1.LogProb
	}
	if best2 != nil {
		anomalous.LogProb += best2.LogProb
	}
	anomalous.LogProb -= float64(anomalousPairHandicap)
	return []Pair{anomalous}
}

func bestFragment(frags []Fragment) *Fragment {
	var best *Fragment
	for i := range frags {
		if best == nil || frags[i].LogProb > best.LogProb {
			best = &frags[i]
		}
	}
	return best
}
