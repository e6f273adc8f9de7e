package binmerge

import (
	"github.com/exascience/pargo/parallel"

	"github.com/seqalign/alignpipe/binio"
	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/internal"
	"github.com/seqalign/alignpipe/knownsites"
	"github.com/seqalign/alignpipe/refidx"
	"github.com/seqalign/alignpipe/template"
)

// gapCandidate is one indel a fragment overlapping its span could be
// re-aligned around: a gap starting at reference offset refOffset,
// an insertion when length is positive and a deletion of -length
// bases when it is negative (spec.md §4.6: "the union of gaps present in (a)
// overlapping fragments in this bin and (b) known indels from the
// VCF").
type gapCandidate struct {
	refOffset int32 // reference position the gap starts at
	length    int32 // positive: insertion; negative: deletion
}

// realignBin implements spec.md §4.6's gap realignment: for each
// fragment with MapQ >= cfg.RealignMapqMin, build the candidate gap
// list from the bin's own fragments (cfg.RealignGaps == sample) or
// also from known indels (cohort), then re-align the read over a
// reference window padded by each combination's total gap length and
// keep whichever result has the highest log-probability among those
// that also reduce the mismatch count — or, in Vigorous mode, among
// all of them. The candidate gaps are not forced into the alignment:
// they only size the window, and the aligner places gaps itself.
func realignBin(records []binio.RawRecord, idx *refidx.Index, sites *knownsites.Set, cfg *config.Config) {
	if idx == nil {
		return
	}
	candidates := collectCandidateGaps(records)
	if cfg.RealignGaps == config.RealignCohort && sites != nil {
		candidates = append(candidates, candidatesFromKnownSites(records, idx, sites)...)
	}
	if len(candidates) == 0 {
		return
	}

	params := template.ParamsFromConfig(cfg)
	sw := template.NewBandedSW(params)

	for i := range records {
		rec := &records[i]
		if rec.Unaligned || rec.MapQ < cfg.RealignMapqMin || len(rec.Bases) == 0 {
			continue
		}
		local := relevantCandidates(candidates, rec.Offset, rec.Offset+referenceSpan(rec))
		if len(local) == 0 {
			continue
		}
		tryRealign(rec, local, idx, sw, cfg)
	}
}

func referenceSpan(rec *binio.RawRecord) int32 {
	var n int32
	for _, op := range rec.Cigar {
		if op.Op == 'M' || op.Op == 'D' || op.Op == 'N' {
			n += op.Length
		}
	}
	return n
}

// collectCandidateGaps extracts one gapCandidate per I/D run found in
// any record's CIGAR, deduplicated by (refOffset, length).
func collectCandidateGaps(records []binio.RawRecord) []gapCandidate {
	seen := make(map[gapCandidate]bool)
	var out []gapCandidate
	for i := range records {
		rec := &records[i]
		refPos := rec.Offset
		for _, op := range rec.Cigar {
			switch op.Op {
			case 'M', 'N':
				refPos += op.Length
			case 'D':
				g := gapCandidate{refOffset: refPos, length: -op.Length}
				if !seen[g] {
					seen[g] = true
					out = append(out, g)
				}
				refPos += op.Length
			case 'I':
				g := gapCandidate{refOffset: refPos, length: op.Length}
				if !seen[g] {
					seen[g] = true
					out = append(out, g)
				}
			}
		}
	}
	return out
}

func candidatesFromKnownSites(records []binio.RawRecord, idx *refidx.Index, sites *knownsites.Set) []gapCandidate {
	if len(records) == 0 {
		return nil
	}
	contig := &idx.Contigs[records[0].Contig]
	var lo, hi int32 = 1<<31 - 1, 0
	for i := range records {
		if records[i].Contig != contig.Index {
			continue
		}
		if records[i].Offset < lo {
			lo = records[i].Offset
		}
		end := records[i].Offset + referenceSpan(&records[i])
		if end > hi {
			hi = end
		}
	}
	if lo > hi {
		return nil
	}
	var out []gapCandidate
	for _, ind := range sites.Overlapping(contig.Name, lo, hi) {
		out = append(out, gapCandidate{refOffset: ind.Pos, length: ind.Length()})
	}
	return out
}

func relevantCandidates(candidates []gapCandidate, start, end int32) []gapCandidate {
	var out []gapCandidate
	for _, c := range candidates {
		if c.refOffset >= start && c.refOffset < end {
			out = append(out, c)
		}
	}
	return out
}

// maxRealignCombinations bounds the number of candidate-gap subsets
// tryRealign will evaluate for a single fragment, regardless of how
// many subsets combineGaps enumerates, so a bin with an unusually
// large local candidate list can't make realignment unbounded.
const maxRealignCombinations = 256

// combineGaps enumerates every non-empty subset of candidates of size
// 1..max(1, size), smallest first, capped at maxRealignCombinations
// (spec.md §4.6: "each combination of up to realignedGapsPerFragment
// gaps").
func combineGaps(candidates []gapCandidate, size int) [][]gapCandidate {
	if size < 1 {
		size = 1
	}
	if size > len(candidates) {
		size = len(candidates)
	}
	var combos [][]gapCandidate
	var rec func(start, k int, cur []gapCandidate)
	rec = func(start, k int, cur []gapCandidate) {
		if len(combos) >= maxRealignCombinations {
			return
		}
		if len(cur) == k {
			combos = append(combos, append([]gapCandidate(nil), cur...))
			return
		}
		for i := start; i < len(candidates) && len(combos) < maxRealignCombinations; i++ {
			rec(i+1, k, append(cur, candidates[i]))
		}
	}
	for k := 1; k <= size; k++ {
		rec(0, k, nil)
	}
	return combos
}

// realignTrial is one candidate-gap combination's Smith-Waterman
// result, scored independently of every other trial so the search
// over combos can run concurrently.
type realignTrial struct {
	ok         bool
	cigar      []template.CigarOp
	mismatches int
	logProb    float64
	offset     int32
}

// tryRealign considers every combination of up to
// cfg.RealignedGapsPerFragment of the candidate gaps overlapping rec
// (spec.md §4.6), re-running Smith-Waterman over a window wide enough
// to express each combination, and keeps the best-scoring result that
// clears the acceptance rule. The combinations are independent of one
// another (each re-aligns the same read against its own window of the
// reference), so they are evaluated in parallel.
func tryRealign(rec *binio.RawRecord, candidates []gapCandidate, idx *refidx.Index, sw *template.BandedSW, cfg *config.Config) {
	contig := &idx.Contigs[rec.Contig]
	readLen := int32(len(rec.Bases))
	origMismatches := int(rec.Mismatches)
	_, origLogProb := template.ScoreAlignment(rec.Cigar, rec.Bases, rec.Quality, contig.Bases(rec.Offset, rec.Offset+referenceSpan(rec)))

	combos := combineGaps(candidates, cfg.RealignedGapsPerFragment)
	trials := make([]realignTrial, len(combos))

	parallel.Range(0, len(combos), 0, func(low, high int) {
		for i := low; i < high; i++ {
			trials[i] = evaluateCombo(rec, combos[i], contig, readLen, sw)
		}
	})

	bestCigar := rec.Cigar
	bestMismatches := origMismatches
	bestLogProb := origLogProb
	bestOffset := rec.Offset
	for _, tr := range trials {
		if !tr.ok {
			continue
		}
		improves := tr.mismatches < origMismatches && tr.logProb > bestLogProb
		if cfg.Vigorous {
			improves = tr.logProb > bestLogProb
		}
		if improves {
			bestCigar, bestMismatches, bestLogProb, bestOffset = tr.cigar, tr.mismatches, tr.logProb, tr.offset
		}
	}

	// spec.md §4.6: keep the combination with the highest
	// log-probability that also reduces mismatch count; Vigorous mode
	// relaxes the mismatch-reduction requirement. A tie with the
	// original is kept as the original (spec.md §9 Open Question).
	accept := bestMismatches < origMismatches && bestLogProb > origLogProb
	if cfg.Vigorous {
		accept = bestLogProb > origLogProb
	}
	if accept {
		rec.Cigar = bestCigar
		rec.Mismatches = int32(bestMismatches)
		rec.Offset = bestOffset
	}
}

// evaluateCombo re-aligns rec over a window wide enough to express
// every gap in combo at once, sized by their total padding.
func evaluateCombo(rec *binio.RawRecord, combo []gapCandidate, contig *refidx.Contig, readLen int32, sw *template.BandedSW) realignTrial {
	var pad int32
	for _, cand := range combo {
		if cand.length < 0 {
			pad += -cand.length
		} else {
			pad += cand.length
		}
	}
	start := internal.Max(int32(0), rec.Offset-pad-2)
	end := internal.Min(contig.Length, rec.Offset+readLen+pad+2)
	if end-start < readLen {
		return realignTrial{}
	}
	window := contig.Bases(start, end)
	cigar, _ := sw.Align(window, rec.Bases)

	shift := int32(0)
	if len(cigar) > 0 && cigar[0].Op == 'D' {
		shift = cigar[0].Length
	}
	offset := start + shift
	refEnd := offset + cigarRefLen(cigar)
	if refEnd > contig.Length {
		return realignTrial{}
	}
	mismatches, logProb := template.ScoreAlignment(cigar, rec.Bases, rec.Quality, contig.Bases(offset, refEnd))
	return realignTrial{ok: true, cigar: cigar, mismatches: mismatches, logProb: logProb, offset: offset}
}

func cigarRefLen(cigar []template.CigarOp) int32 {
	var n int32
	for _, op := range cigar {
		if op.Op == 'M' || op.Op == 'D' || op.Op == 'N' {
			n += op.Length
		}
	}
	return n
}
