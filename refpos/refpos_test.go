package refpos

import "testing"

func TestIsNone(t *testing.T) {
	if !None.IsNone() {
		t.Error("None.IsNone() = false, want true")
	}
	if (Position{Contig: 0, Offset: 0}).IsNone() {
		t.Error("a real position reported IsNone() = true")
	}
}

func TestLessOrdersByContigThenOffset(t *testing.T) {
	a := Position{Contig: 0, Offset: 100}
	b := Position{Contig: 0, Offset: 200}
	c := Position{Contig: 1, Offset: 0}
	if !Less(a, b) {
		t.Error("Less(a, b) = false, want true (same contig, lower offset)")
	}
	if Less(b, a) {
		t.Error("Less(b, a) = true, want false")
	}
	if !Less(b, c) {
		t.Error("Less(b, c) = false, want true (lower contig)")
	}
}

func TestLessSortsNoneLast(t *testing.T) {
	real := Position{Contig: 5, Offset: 0}
	if !Less(real, None) {
		t.Error("Less(real, None) = false, want true (None sorts last)")
	}
	if Less(None, real) {
		t.Error("Less(None, real) = true, want false")
	}
	if Less(None, None) {
		t.Error("Less(None, None) = true, want false")
	}
}

func TestPositionAdd(t *testing.T) {
	p := Position{Contig: 2, Offset: 50}
	got := p.Add(10)
	want := Position{Contig: 2, Offset: 60}
	if got != want {
		t.Errorf("Add(10) = %+v, want %+v", got, want)
	}
	if got := None.Add(10); !got.IsNone() {
		t.Errorf("None.Add(10) = %+v, want still None", got)
	}
}

func TestPositionString(t *testing.T) {
	if got := None.String(); got != "*" {
		t.Errorf("None.String() = %q, want %q", got, "*")
	}
	if got := (Position{Contig: 3, Offset: 7}).String(); got != "3:7" {
		t.Errorf("Position{3,7}.String() = %q, want %q", got, "3:7")
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{Contig: 1, Start: 100, End: 200}
	cases := []struct {
		p    Position
		want bool
	}{
		{Position{Contig: 1, Offset: 100}, true},
		{Position{Contig: 1, Offset: 199}, true},
		{Position{Contig: 1, Offset: 200}, false}, // half-open: End excluded
		{Position{Contig: 1, Offset: 99}, false},
		{Position{Contig: 2, Offset: 150}, false},
		{None, false},
	}
	for _, c := range cases {
		if got := r.Contains(c.p); got != c.want {
			t.Errorf("Range%v.Contains(%v) = %v, want %v", r, c.p, got, c.want)
		}
	}
}

func TestRangeString(t *testing.T) {
	r := Range{Contig: 4, Start: 10, End: 20}
	if got := r.String(); got != "4:[10,20)" {
		t.Errorf("Range.String() = %q, want %q", got, "4:[10,20)")
	}
}
