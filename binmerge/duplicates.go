package binmerge

import (
	"github.com/seqalign/alignpipe/binio"
	"github.com/seqalign/alignpipe/config"
)

// fragmentKey groups fragments that would be duplicates of each other
// in isolation (spec.md §4.6: "contig, 5'-clipped-start, strand").
// Library is not part of the key and cfg.SingleLibrarySamples is not
// consulted: bin records don't carry the originating barcode, only the
// cluster id, so every fragment in a bin is grouped as if it came from
// a single library — noted as an Open Question resolution in DESIGN.md.
type fragmentKey struct {
	contig   int32
	start    int32
	reversed bool
}

// pairKey groups whole pairs by both mates' unclipped starts (spec.md
// §4.6: "... mate-5'-start, mate-strand").
type pairKey struct {
	contig1, contig2     int32
	start1, start2       int32
	reversed1, reversed2 bool
}

// markDuplicates implements spec.md §4.6's duplicate marking within
// one bin's records: fragments/pairs sharing a key form a duplicate
// set; the representative (highest summed base quality over the
// first half of the read, tie-broken by lowest cluster id) is kept
// unmarked. cfg.KeepDuplicates suppresses the flag write but the
// grouping still runs so statistics stay consistent; this function
// has no effect if cfg.MarkDuplicates is off (callers gate on that).
//
// Unlike the teacher's MarkDuplicates, which races many goroutines
// over one pipeline-wide concurrent map, one bin's records are
// already resident in a single slice processed by one goroutine, so
// a plain map replaces the teacher's pargo/sync.Map + atomic-pointer
// CAS loop — the concurrency machinery bought nothing here that a
// single pass over a local map doesn't already give for free.
func markDuplicates(records []binio.RawRecord, cfg *config.Config) {
	byCluster := make(map[int64][2]*binio.RawRecord)
	for i := range records {
		rec := &records[i]
		if rec.Unaligned {
			continue
		}
		pair := byCluster[rec.ClusterID]
		pair[rec.Mate] = rec
		byCluster[rec.ClusterID] = pair
	}

	fragmentWinners := make(map[fragmentKey]*binio.RawRecord)
	pairWinners := make(map[pairKey]*binio.RawRecord)
	pairOther := make(map[pairKey]*binio.RawRecord)

	for clusterID, mates := range byCluster {
		r1, r2 := mates[0], mates[1]
		switch {
		case r1 != nil && r2 != nil:
			k1 := fragKeyOf(r1)
			k2 := fragKeyOf(r2)
			pk := pairKey{
				contig1: k1.contig, start1: k1.start, reversed1: k1.reversed,
				contig2: k2.contig, start2: k2.start, reversed2: k2.reversed,
			}
			if k2.contig < k1.contig || (k2.contig == k1.contig && k2.start < k1.start) {
				pk = pairKey{
					contig1: k2.contig, start1: k2.start, reversed1: k2.reversed,
					contig2: k1.contig, start2: k1.start, reversed2: k1.reversed,
				}
			}
			currentR1, ok := pairWinners[pk]
			if !ok || betterPair(r1, r2, currentR1, pairOther[pk], clusterID, currentR1.ClusterID) {
				if ok {
					markLoser(currentR1, cfg)
					markLoser(pairOther[pk], cfg)
				}
				pairWinners[pk] = r1
				pairOther[pk] = r2
			} else {
				markLoser(r1, cfg)
				markLoser(r2, cfg)
			}
		case r1 != nil:
			markFragment(r1, fragmentWinners, clusterID, cfg)
		case r2 != nil:
			markFragment(r2, fragmentWinners, clusterID, cfg)
		}
	}
}

func fragKeyOf(r *binio.RawRecord) fragmentKey {
	return fragmentKey{
		contig:   r.Contig,
		start:    unclippedStart(r),
		reversed: r.Strand != 0,
	}
}

func markFragment(r *binio.RawRecord, winners map[fragmentKey]*binio.RawRecord, clusterID int64, cfg *config.Config) {
	k := fragKeyOf(r)
	current, ok := winners[k]
	if !ok {
		winners[k] = r
		return
	}
	if betterRepresentative(r, current, clusterID) {
		markLoser(current, cfg)
		winners[k] = r
	} else {
		markLoser(r, cfg)
	}
}

// betterRepresentative reports whether candidate should replace
// current as the kept (non-duplicate) record: higher summed quality
// wins, ties broken by lower cluster id (spec.md §4.6).
func betterRepresentative(candidate, current *binio.RawRecord, candidateClusterID int64) bool {
	cs := pairSumQuality(candidate)
	bs := pairSumQuality(current)
	if cs != bs {
		return cs > bs
	}
	return candidateClusterID < current.ClusterID
}

// betterPair is betterRepresentative's pair-level counterpart: it
// compares the summed quality of both mates together, since a pair's
// representative is chosen as a unit (spec.md §4.6).
func betterPair(candidate1, candidate2, current1, current2 *binio.RawRecord, candidateClusterID, currentClusterID int64) bool {
	cs := pairSumQuality(candidate1) + pairSumQuality(candidate2)
	bs := pairSumQuality(current1) + pairSumQuality(current2)
	if cs != bs {
		return cs > bs
	}
	return candidateClusterID < currentClusterID
}

func markLoser(r *binio.RawRecord, cfg *config.Config) {
	if r == nil {
		return
	}
	r.Duplicate = !cfg.KeepDuplicates
}

// pairSumQuality sums base quality over the first half of the read —
// the half least affected by 3' quality decay — as the representative
// selection criterion (spec.md §4.6).
func pairSumQuality(r *binio.RawRecord) int {
	half := len(r.Quality) / 2
	if half == 0 {
		half = len(r.Quality)
	}
	sum := 0
	for _, q := range r.Quality[:half] {
		sum += int(q)
	}
	return sum
}

// unclippedStart computes the 5' unclipped reference position,
// adapted from the teacher's Alignment.ComputeUnclippedPosition
// (sam/mark-duplicates.go): for a forward-strand read this subtracts
// any leading soft clip; for a reverse-strand read it walks to the
// alignment's right edge and adds a trailing soft clip. Hard clips
// are not accounted for.
func unclippedStart(r *binio.RawRecord) int32 {
	if r.Strand == 0 {
		pos := r.Offset
		for _, op := range r.Cigar {
			if op.Op != 'S' {
				break
			}
			pos -= op.Length
		}
		return pos
	}
	pos := r.Offset
	for _, op := range r.Cigar {
		if op.Op == 'M' || op.Op == 'D' || op.Op == 'N' {
			pos += op.Length
		}
	}
	if len(r.Cigar) > 0 {
		last := r.Cigar[len(r.Cigar)-1]
		if last.Op == 'S' {
			pos += last.Length
		}
	}
	return pos
}
