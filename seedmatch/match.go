package seedmatch

import (
	"sort"

	psort "github.com/exascience/pargo/sort"

	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/refidx"
	"github.com/seqalign/alignpipe/refpos"
)

// seedClass is the four-way classification spec.md §4.3 step 2 makes
// for each looked-up seed.
type seedClass int

const (
	classNoMatch seedClass = iota
	classUnique
	classRepeat
	classTooManyRepeats
	classWayTooMany
)

// Matcher holds the per-run state the seed matcher needs: the
// reference index and the resolved algorithm parameters. It has no
// per-read mutable state, so one Matcher is shared across every
// worker goroutine, mirroring how the teacher shares a read-only
// *Header across pipeline filters.
type Matcher struct {
	idx        *refidx.Index
	cfg        *config.Config
	seedLength int32
	offsets    []int32
}

// New builds a Matcher for one seed length, using idx and cfg's
// matcher parameters.
func New(idx *refidx.Index, cfg *config.Config, seedLength int32) *Matcher {
	return &Matcher{
		idx:        idx,
		cfg:        cfg,
		seedLength: seedLength,
		offsets:    DefaultOffsets(cfg.ReadLength, seedLength, seedLength),
	}
}

// Match runs the full seed-matcher algorithm (spec.md §4.3, steps
// 1-4) against one read and returns its deduplicated, capped
// candidate set plus the per-tile statistics increments it produced.
func (m *Matcher) Match(bases, quality []byte) ([]Candidate, Stats) {
	var stats Stats
	var candidates []Candidate

	for strand := int8(0); strand < 2; strand++ {
		b, q := bases, quality
		if strand == 1 {
			b, q = revcomp(bases), reverse(quality)
		}
		seeds := ExtractSeeds(b, q, m.offsets, m.seedLength, m.cfg.SeedBaseQualityMin)
		bestRankSeenAny := false
		for _, s := range seeds {
			if !s.Valid {
				stats.NoMatch++
				continue
			}
			result, err := m.idx.Lookup(m.seedLength, s.Kmer)
			if err != nil {
				continue
			}
			class, count := m.classify(result)
			switch class {
			case classNoMatch:
				stats.NoMatch++
			case classUnique:
				stats.Unique++
			case classRepeat:
				stats.Repeat++
			case classTooManyRepeats:
				stats.TooManyRepeats++
			case classWayTooMany:
				stats.WayTooMany++
				continue
			}
			if class == classTooManyRepeats && bestRankSeenAny {
				// "keep only if no better seed available for this
				// read" (spec.md §4.3 step 2): skip once we already
				// have a unique or repeat seed for this strand.
				continue
			}
			if class == classUnique || class == classRepeat {
				bestRankSeenAny = true
			}
			rank := count
			if class == classTooManyRepeats {
				rank = m.cfg.MatchFinderTooManyRepeats + count
			}
			for _, pos := range result.Positions {
				anchor := anchorPosition(pos, s.Offset, int32(len(b)))
				candidates = append(candidates, Candidate{Position: anchor, Strand: strand, repeatRank: rank})
			}
			if !m.cfg.IgnoreNeighbors {
				stats.NeighborExpansions += int64(m.expandNeighbors(result, s, strand, int32(len(b)), &candidates))
			}
		}
	}

	candidates = dedupe(candidates)
	candidates = capCandidates(candidates, m.cfg.CandidateMatchesMax)
	return candidates, stats
}

// classify implements spec.md §4.3 step 2's four-way classification
// against the matcher's configured thresholds. A build-time
// "too many repeats" flag from the mask file itself (spec.md §4.1) is
// treated as this step's too-many-repeats class, since no count is
// available for it.
func (m *Matcher) classify(result refidx.LookupResult) (seedClass, int) {
	if result.TooManyRepeats {
		return classTooManyRepeats, m.cfg.MatchFinderTooManyRepeats
	}
	count := len(result.Positions)
	switch {
	case count == 0:
		return classNoMatch, 0
	case count == 1:
		return classUnique, count
	case count <= m.cfg.MatchFinderTooManyRepeats:
		return classRepeat, count
	case count <= m.cfg.MatchFinderWayTooManyRepeats:
		return classTooManyRepeats, count
	default:
		return classWayTooMany, count
	}
}

// expandNeighbors adds, for each exact-match position of a seed whose
// k-uniqueness annotation value is at most the seed length, the two
// candidates anchored one base to the left and one base to the right
// of that position (spec.md §4.3 step 3). It does not look up k-mers
// that differ from the seed by one mismatch. Seeds with no positions,
// or flagged too-many-repeats by the mask file, are not expanded.
func (m *Matcher) expandNeighbors(result refidx.LookupResult, s Seed, strand int8, readLen int32, out *[]Candidate) int {
	if result.TooManyRepeats || len(result.Positions) == 0 {
		return 0
	}
	expansions := 0
	for _, pos := range result.Positions {
		offset := m.idx.GenomicOffset(pos)
		uniqueAt, ok := m.idx.KUniqueness(offset)
		if !ok || uniqueAt > m.seedLength {
			continue
		}
		for delta := int32(-1); delta <= 1; delta += 2 {
			neighbor := pos.Add(delta)
			anchor := anchorPosition(neighbor, s.Offset, readLen)
			*out = append(*out, Candidate{Position: anchor, Strand: strand, repeatRank: m.cfg.MatchFinderTooManyRepeats + 1})
			expansions++
		}
	}
	return expansions
}

// anchorPosition converts a seed match at refPos (where the seed
// itself matched) into the reference position of the read's leftmost
// base, for both orientations: the revcomp trick for the reverse
// strand means the same offset arithmetic applies regardless of
// strand, since the caller already reverse-complemented the read
// before extracting seeds.
func anchorPosition(refPos refpos.Position, seedOffset, readLen int32) refpos.Position {
	return refpos.Position{Contig: refPos.Contig, Offset: refPos.Offset - seedOffset}
}

func dedupe(cands []Candidate) []Candidate {
	seen := make(map[refpos.Position]struct{}, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		key := c.Position
		key.Offset = key.Offset*2 + int32(c.Strand) // fold strand into the dedup key
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// candidateSorter orders Candidates by repeat rank, then contig, then
// offset (spec.md §4.3 step 4), implementing pargo/sort's
// StableSorter so capCandidates' sort can run in parallel over a
// large (4096 or more) deduplicated candidate set.
type candidateSorter []Candidate

func candidateLess(a, b Candidate) bool {
	if a.repeatRank != b.repeatRank {
		return a.repeatRank < b.repeatRank
	}
	if a.Position.Contig != b.Position.Contig {
		return a.Position.Contig < b.Position.Contig
	}
	return a.Position.Offset < b.Position.Offset
}

func (s candidateSorter) Len() int           { return len(s) }
func (s candidateSorter) Less(i, j int) bool { return candidateLess(s[i], s[j]) }

func (s candidateSorter) SequentialSort(i, j int) {
	sub := s[i:j]
	sort.Slice(sub, func(a, b int) bool { return candidateLess(sub[a], sub[b]) })
}

func (s candidateSorter) NewTemp() psort.StableSorter {
	return make(candidateSorter, len(s))
}

func (s candidateSorter) Assign(p psort.StableSorter) func(i, j, length int) {
	src := p.(candidateSorter)
	return func(i, j, length int) {
		copy(s[i:i+length], src[j:j+length])
	}
}

// capCandidates retains at most max candidates, preferring the lowest-repeat
// seeds (spec.md §4.3 step 4), tie-broken by lower contig index then
// lower offset.
func capCandidates(cands []Candidate, max int) []Candidate {
	if len(cands) <= max {
		return cands
	}
	if len(cands) < 4096 {
		sort.Slice(cands, func(i, j int) bool { return candidateLess(cands[i], cands[j]) })
		return cands[:max]
	}
	psort.StableSort(candidateSorter(cands))
	return cands[:max]
}

func revcomp(bases []byte) []byte {
	out := make([]byte, len(bases))
	for i, b := range bases {
		var c byte
		switch b {
		case 'A':
			c = 'T'
		case 'C':
			c = 'G'
		case 'G':
			c = 'C'
		case 'T':
			c = 'A'
		default:
			c = 'N'
		}
		out[len(bases)-1-i] = c
	}
	return out
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
