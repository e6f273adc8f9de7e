// Package template implements the template builder (spec.md §4.4),
// the subsystem that turns a read's candidate positions into a final
// per-cluster Template: fragment construction, pair enumeration,
// shadow rescue, scoring, and repeat scattering.
package template

import (
	"math"

	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/refpos"
)

// CigarOp is one run-length CIGAR element (spec.md §3, "Fragment
// metadata"): match/mismatch, insertion, deletion, soft-clip, or
// split.
type CigarOp struct {
	Length int32
	Op     byte // 'M', 'I', 'D', 'S', 'N' (split)
}

// Fragment is a proposed alignment of one read (spec.md §3).
type Fragment struct {
	Position   refpos.Position
	Strand     int8
	Cigar      []CigarOp
	Mismatches int
	Gaps       int
	LogProb    float64
	Score      int32
	MapQ       byte
	ReadIndex  int // index into the cluster's reads (0 or 1)
	Unaligned  bool
	Duplicate  bool

	// Bases and Quality are the read as aligned: already
	// reverse-complemented for strand==1 fragments, so they read
	// left-to-right against the reference the same way Cigar does.
	// Persisted through bins so the realigner (binmerge/realign.go)
	// can re-score candidate gap placements without re-deriving the
	// read from the cluster.
	Bases   []byte
	Quality []byte
}

// ReferenceLength returns the number of reference bases f's CIGAR
// consumes (M, D and N operations).
func (f *Fragment) ReferenceLength() int32 {
	var n int32
	for _, op := range f.Cigar {
		if op.Op == 'M' || op.Op == 'D' || op.Op == 'N' {
			n += op.Length
		}
	}
	return n
}

// logMatch[q] and logMismatch[q] are log(1-p_err) and log(p_err/3)
// for p_err = 10^(-q/10), precomputed for q in [0,63] (spec.md §4.4).
var logMatch, logMismatch [64]float64

func init() {
	for q := 0; q < 64; q++ {
		pErr := math.Pow(10, -float64(q)/10)
		if pErr >= 1 {
			pErr = 1 - 1e-9
		}
		logMatch[q] = math.Log(1 - pErr)
		logMismatch[q] = math.Log(pErr / 3)
	}
}

func qualityIndex(q byte) byte {
	if q > 63 {
		return 63
	}
	return q
}

// Params bundles the template-builder configuration knobs a fragment
// construction call needs, factored out of *config.Config so tests
// can build one without a full Config.
type Params struct {
	GappedMismatchesMax     int
	BandWidth               int32
	MatchScore              int32
	MismatchPenalty         int32
	GapOpenPenalty          int32
	GapExtendPenalty        int32
	MinGapExtendPenalty     int32
	SplitGapLength          int32
	SmartGapped             bool
}

// ParamsFromConfig extracts Params from a full Config.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		GappedMismatchesMax: cfg.GappedMismatchesMax,
		BandWidth:           cfg.SmithWatermanGapSizeMax,
		MatchScore:          cfg.MatchScore,
		MismatchPenalty:      cfg.MismatchPenalty,
		GapOpenPenalty:       cfg.GapOpenPenalty,
		GapExtendPenalty:     cfg.GapExtendPenalty,
		MinGapExtendPenalty:  cfg.MinGapExtendPenalty,
		SplitGapLength:       cfg.SplitGapLength,
		SmartGapped:          cfg.SmartGapped,
	}
}
