package seedmatch

// Stats accumulates the per-tile seed classification counters spec.md
// §4.3 requires for reporting: counts of seeds classified unique /
// no-match / repeat / too-many-repeats, and total repeat-match
// (neighbor) expansions.
type Stats struct {
	Unique             int64
	NoMatch            int64
	Repeat             int64
	TooManyRepeats     int64
	WayTooMany         int64
	NeighborExpansions int64
}

// Add accumulates other into s, for combining per-read Stats into a
// per-tile total.
func (s *Stats) Add(other Stats) {
	s.Unique += other.Unique
	s.NoMatch += other.NoMatch
	s.Repeat += other.Repeat
	s.TooManyRepeats += other.TooManyRepeats
	s.WayTooMany += other.WayTooMany
	s.NeighborExpansions += other.NeighborExpansions
}
