package template

import (
	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/refidx"
	"github.com/seqalign/alignpipe/seedmatch"
	"github.com/seqalign/alignpipe/tls"
)

// State is a cluster's position in the per-cluster state machine
// spec.md §4.4 defines: {NoCandidates, Unaligned} -> {SoloAligned,
// ShadowRescued, ProperPair, AnomalousPair}, terminal once a Template
// is emitted.
type State int

const (
	NoCandidates State = iota
	Unaligned
	SoloAligned
	ShadowRescued
	ProperPair
	AnomalousPair
)

// Template is the final per-cluster outcome (spec.md §3).
type Template struct {
	State          State
	Fragments      []Fragment
	ProperPair     bool
	TemplateLength int64
	Score          int32
}

// MateInput is one mate's extracted bases/quality plus the candidate
// positions the seed matcher found for it.
type MateInput struct {
	Bases, Quality []byte
	Candidates     []seedmatch.Candidate
}

// Build runs the full template-builder pipeline (spec.md §4.4 stages
// A-E) for one cluster. mates has length 1 for single-end data, 2 for
// paired-end.
func Build(clusterID int64, barcode string, mates []MateInput, idx *refidx.Index, tracker *tls.Tracker, cfg *config.Config) Template {
	params := ParamsFromConfig(cfg)
	sw := newBandedSW(params)

	perMate := make([][]Fragment, len(mates))
	for m, mate := range mates {
		perMate[m] = constructFragments(idx, mate, m, sw, params)
	}

	if len(mates) == 1 {
		return buildSolo(clusterID, perMate[0], cfg)
	}
	return buildPaired(clusterID, barcode, mates, perMate, idx, tracker, sw, cfg)
}

func constructFragments(idx *refidx.Index, mate MateInput, readIndex int, sw *bandedSW, params Params) []Fragment {
	frags := make([]Fragment, 0, len(mate.Candidates))
	for _, c := range mate.Candidates {
		bases, quality := mate.Bases, mate.Quality
		if c.Strand == 1 {
			bases, quality = revcompBytes(bases), reverseBytes(quality)
		}
		if int(c.Position.Contig) < 0 || int(c.Position.Contig) >= len(idx.Contigs) {
			continue
		}
		frags = append(frags, buildFragment(idx, c.Position, c.Strand, readIndex, bases, quality, sw, params))
	}
	return frags
}

func buildSolo(clusterID int64, frags []Fragment, cfg *config.Config) Template {
	if len(frags) == 0 {
		return Template{State: NoCandidates}
	}
	logProbs := make([]float64, len(frags))
	for i, f := range frags {
		logProbs[i] = f.LogProb
	}
	best := bestIndex(logProbs, clusterID, cfg.ScatterRepeats)
	score := fragmentScore(logProbs, best, cfg.GenomeLength, cfg.ReadLength)
	frag := frags[best]

	if allTied(logProbs) && len(logProbs) > 1 {
		s, unaligned := dodgyScore(cfg.DodgyAlignmentScore, cfg.MarkDodgyAsUnaligned)
		if unaligned {
			return Template{State: Unaligned}
		}
		score = s
	}
	frag.Score = score
	frag.MapQ = mapqSolo(score)
	return Template{State: SoloAligned, Fragments: []Fragment{frag}, Score: score}
}

func buildPaired(clusterID int64, barcode string, mates []MateInput, perMate [][]Fragment, idx *refidx.Index, tracker *tls.Tracker, sw *bandedSW, cfg *config.Config) Template {
	frags1, frags2 := perMate[0], perMate[1]

	switch {
	case len(frags1) == 0 && len(frags2) == 0:
		return Template{State: NoCandidates}

	case len(frags1) == 0 || len(frags2) == 0:
		if !cfg.RescueShadows {
			return soloFromOneMate(clusterID, frags1, frags2, cfg)
		}
		anchorFrags, shadowMate, shadowIdx, anchorMate := frags1, mates[1], 1, 0
		if len(frags2) != 0 {
			anchorFrags, shadowMate, shadowIdx, anchorMate = frags2, mates[0], 0, 1
		}
		anchor := bestFragment(anchorFrags)
		if anchor == nil {
			return Template{State: NoCandidates}
		}
		rescued, ok := rescueShadow(anchor, shadowMate.Bases, shadowMate.Quality, idx, barcode, tracker, cfg.MatchFinderShadowSplitRepeats, sw, shadowIdx)
		if !ok {
			return soloFromOneMate(clusterID, frags1, frags2, cfg)
		}
		logProbsAnchor := logProbsOf(anchorFrags)
		anchorScore := fragmentScore(logProbsAnchor, indexOf(anchorFrags, anchor), cfg.GenomeLength, cfg.ReadLength)
		templateScore := anchorScore
		rescued.Score = anchorScore
		anchorCopy := *anchor
		anchorCopy.Score = anchorScore
		anchorCopy.MapQ = mapqSolo(anchorScore)
		rescued.MapQ = mapqShadow(templateScore, anchorCopy.MapQ)

		fragments := make([]Fragment, 2)
		fragments[anchorMate] = anchorCopy
		fragments[shadowIdx] = rescued
		insert := signedInsertSize(&anchorCopy, &rescued)
		tracker.Observe(barcode, insert, true)
		return Template{State: ShadowRescued, Fragments: fragments, Score: templateScore, TemplateLength: insert}
	}

	pairs := enumeratePairs(frags1, frags2, barcode, tracker, cfg.AnomalousPairHandicap)
	if len(pairs) == 0 {
		return Template{State: Unaligned}
	}
	best, bestPairIdx := bestPair(pairs)
	logProbs1 := logProbsOf(frags1)
	logProbs2 := logProbsOf(frags2)
	score1 := fragmentScore(logProbs1, indexOf(frags1, best.F1), cfg.GenomeLength, cfg.ReadLength)
	score2 := fragmentScore(logProbs2, indexOf(frags2, best.F2), cfg.GenomeLength, cfg.ReadLength)
	templateLogProbs := pairLogProbs(pairs)
	templateScore := fragmentScore(templateLogProbs, bestPairIdx, cfg.GenomeLength, cfg.ReadLength)

	f1, f2 := *best.F1, *best.F2
	f1.Score, f2.Score = score1, score2

	state := ProperPair
	if best.Anomalous {
		state = AnomalousPair
		f1.MapQ = mapqSolo(score1)
		f2.MapQ = mapqSolo(score2)
	} else {
		f1.MapQ = mapqProperPair(score1, templateScore, score2)
		f2.MapQ = mapqProperPair(score2, templateScore, score1)
		insert := signedInsertSize(&f1, &f2)
		tracker.Observe(barcode, insert, true)
		return Template{State: state, Fragments: []Fragment{f1, f2}, ProperPair: true, Score: templateScore, TemplateLength: insert}
	}
	return Template{State: state, Fragments: []Fragment{f1, f2}, Score: templateScore}
}

func soloFromOneMate(clusterID int64, frags1, frags2 []Fragment, cfg *config.Config) Template {
	if len(frags1) == 0 && len(frags2) == 0 {
		return Template{State: NoCandidates}
	}
	frags := frags1
	if len(frags) == 0 {
		frags = frags2
	}
	t := buildSolo(clusterID, frags, cfg)
	if t.State == SoloAligned {
		return Template{State: SoloAligned, Fragments: t.Fragments, Score: t.Score}
	}
	return t
}

func bestIndex(logProbs []float64, clusterID int64, scatter bool) int {
	best := 0
	for i := 1; i < len(logProbs); i++ {
		if logProbs[i] > logProbs[best] {
			best = i
		}
	}
	if !scatter {
		return best
	}
	var tied []int
	for i, lp := range logProbs {
		if lp == logProbs[best] {
			tied = append(tied, i)
		}
	}
	if len(tied) <= 1 {
		return best
	}
	return tied[scatterChoice(clusterID, len(tied))]
}

func allTied(logProbs []float64) bool {
	for _, lp := range logProbs {
		if lp != logProbs[0] {
			return false
		}
	}
	return true
}

func logProbsOf(frags []Fragment) []float64 {
	out := make([]float64, len(frags))
	for i, f := range frags {
		out[i] = f.LogProb
	}
	return out
}

func indexOf(frags []Fragment, target *Fragment) int {
	for i := range frags {
		if &frags[i] == target {
			return i
		}
	}
	return 0
}

func bestPair(pairs []Pair) (Pair, int) {
	best, bestIdx := pairs[0], 0
	for i, p := range pairs[1:] {
		if p.LogProb > best.LogProb {
			best, bestIdx = p, i+1
		}
	}
	return best, bestIdx
}

func pairLogProbs(pairs []Pair) []float64 {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = p.LogProb
	}
	return out
}

func revcompBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		var r byte
		switch c {
		case 'A':
			r = 'T'
		case 'C':
			r = 'G'
		case 'G':
			r = 'C'
		case 'T':
			r = 'A'
		default:
			r = 'N'
		}
		out[len(b)-1-i] = r
	}
	return out
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
