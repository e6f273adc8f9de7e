// Package refpos defines the reference-position type shared by every
// stage of the alignment pipeline, from seed matching through bin
// output. Keeping it dependency-free avoids import cycles between
// refidx, seedmatch, template, binio, binmerge and outwriter, all of
// which need to compare and order positions without depending on each
// other.
package refpos

import "fmt"

// Position identifies a single base in the reference genome: a contig
// index plus an offset within that contig. Contigs are indexed 0..N-1
// with no gaps, so contig index alone totally orders contigs.
type Position struct {
	Contig int32
	Offset int32
}

// None is the sentinel Position denoting "no match". It sorts after
// every real position in Less, matching the SAM convention that
// unmapped reads (REFID < 0) sort last.
var None = Position{Contig: -1, Offset: -1}

// IsNone reports whether p is the "no match" sentinel.
func (p Position) IsNone() bool {
	return p.Contig < 0
}

// Less orders positions by (Contig, Offset), with None sorting last.
func Less(a, b Position) bool {
	switch {
	case a.Contig != b.Contig:
		if a.IsNone() {
			return false
		}
		if b.IsNone() {
			return true
		}
		return a.Contig < b.Contig
	default:
		return a.Offset < b.Offset
	}
}

// Add returns the position offset by delta bases along the same
// contig. It does not clamp to the contig length; callers that need
// bounds checking consult the contig's refidx.Contig.Length.
func (p Position) Add(delta int32) Position {
	if p.IsNone() {
		return p
	}
	return Position{Contig: p.Contig, Offset: p.Offset + delta}
}

func (p Position) String() string {
	if p.IsNone() {
		return "*"
	}
	return fmt.Sprintf("%d:%d", p.Contig, p.Offset)
}

// Range is a half-open reference-position range [Start, End) on a
// single contig, the unit a Bin partitions fragments into.
type Range struct {
	Contig     int32
	Start, End int32
}

// Contains reports whether p falls within r. A None position is never
// contained in any range; callers route those to the dedicated
// unmapped bin instead.
func (r Range) Contains(p Position) bool {
	return !p.IsNone() && p.Contig == r.Contig && p.Offset >= r.Start && p.Offset < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("%d:[%d,%d)", r.Contig, r.Start, r.End)
}
