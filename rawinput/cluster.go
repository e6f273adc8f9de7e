// Package rawinput defines the opaque boundary between instrument-
// specific raw data (per-tile base-call and filter files, spec.md §6:
// "exact byte layout defined externally") and the rest of the
// pipeline. Parsing that external byte layout is out of scope
// (spec.md §1); this package only defines the stream contract the
// tile loader (tileio) consumes.
package rawinput

// Cluster is one sequencing event as read off the instrument: a
// sequence of bases, a per-base PHRED quality, and whether the
// instrument's own filter marked it passing (spec.md §3, "Cluster").
// Paired-end layouts hand the tile loader one Cluster per mate, each
// from that mate's own Source; this type itself carries no
// mate-pairing, matching the instrument-level
// reality that pairing is an index-position convention, not data
// carried in the cluster bytes.
type Cluster struct {
	Bases   []byte // A/C/G/T/N, upper case
	Quality []byte // PHRED score per base, 0-63
	PF      bool   // passing-filter bit
}

// Source streams Clusters for one tile. Implementations wrap the
// instrument-specific byte layout (BCL-style base-call files plus
// filter files, or any other external format); none of that layout
// knowledge crosses this interface.
type Source interface {
	// TileID identifies the tile this Source reads, used to name
	// on-disk temporaries (spec.md §6).
	TileID() string

	// Next returns the next cluster, or ok=false when the tile is
	// exhausted. A Source streams a single mate: for paired-end data
	// the tile loader reads one Source per mate in lockstep, so the
	// n-th cluster of each belongs to the same read index.
	Next() (Cluster, bool, error)

	Close() error
}

// MissingFilePolicy controls how a Source reacts to a missing
// base-call or filter file (spec.md §4.2).
type MissingFilePolicy struct {
	IgnoreMissingBcls    bool
	IgnoreMissingFilters bool
}

// PlaceholderCluster is substituted for a read whose underlying file
// is missing and tolerated by policy: an all-N sequence of quality 0,
// matching spec.md §4.2's "treated as all-N with quality 0."
func PlaceholderCluster(readLength int32) Cluster {
	bases := make([]byte, readLength)
	quality := make([]byte, readLength)
	for i := range bases {
		bases[i] = 'N'
	}
	return Cluster{Bases: bases, Quality: quality, PF: false}
}
