// Package tileio streams raw clusters for one tile (rawinput.Source)
// into memory-resident batches, applying PF masking and quality
// trimming along the way (spec.md §4.2). It is grounded on the
// teacher's BGZF reader (sam/bgzf-files.go): a pipeline.Source that
// fetches one unit of work per call, feeding a pargo pipeline that
// does the per-batch transformation in parallel.
package tileio

import (
	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/rawinput"
)

// Read is one read of a cluster after loading: trimmed bases,
// trimmed qualities, and the PF bit inherited from its cluster.
// ClusterID is an index unique within the tile, used downstream for
// duplicate tie-breaks and repeat scattering (spec.md §4.4 stage E).
type Read struct {
	ClusterID int64
	Mate      int8 // 0 for single-end or first-of-pair, 1 for second-of-pair
	Bases     []byte
	Quality   []byte
	PF        bool
}

// Batch is one chunk of loaded reads, at most clustersAtATimeMax
// clusters large (spec.md §4.2), fully resident until the seed
// matcher and template builder finish with it.
type Batch struct {
	TileID string
	Reads  []Read
}

// PairedEnd reports whether batch b carries two reads per cluster.
func (b *Batch) PairedEnd() bool {
	for _, r := range b.Reads {
		if r.Mate == 1 {
			return true
		}
	}
	return false
}

// classify turns a raw rawinput.Cluster plus its tile-relative
// identity into a trimmed Read, applying the PF mask and the
// trailing-quality trim from trim.go.
func classify(clusterID int64, mate int8, c rawinput.Cluster, cfg *config.Config) Read {
	bases, quality := c.Bases, c.Quality
	if cfg.ApplyPFFilter && !c.PF {
		// PF-failed clusters are still emitted (so counters stay
		// accurate) but carry no usable bases downstream.
		bases = nil
		quality = nil
	} else {
		bases, quality = trimTrailingLowQuality(bases, quality, cfg.BaseQualityCutoff)
	}
	return Read{ClusterID: clusterID, Mate: mate, Bases: bases, Quality: quality, PF: c.PF}
}
