package seedmatch

import "testing"

func TestStatsAdd(t *testing.T) {
	a := Stats{Unique: 1, NoMatch: 2, Repeat: 3}
	b := Stats{Unique: 10, TooManyRepeats: 5, WayTooMany: 1, NeighborExpansions: 2}
	a.Add(b)
	want := Stats{Unique: 11, NoMatch: 2, Repeat: 3, TooManyRepeats: 5, WayTooMany: 1, NeighborExpansions: 2}
	if a != want {
		t.Errorf("Add result = %+v, want %+v", a, want)
	}
}
