package knownsites

import (
	"strings"
	"testing"

	"github.com/seqalign/alignpipe/utils"
)

const sample = `##fileformat=VCFv4.3
##contig=<ID=chr1,length=1000000>
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
chr1	100	.	A	AT	.	PASS	.
chr1	200	.	AGG	A	.	PASS	.
chr1	300	.	A	G	.	PASS	.
chr1	150	.	C	CA,CAA	.	PASS	.
`

func TestParseSkipsHeaderAndSNVs(t *testing.T) {
	set, err := parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	chr1 := utils.Intern("chr1")
	indels := set.byContig[chr1]
	if len(indels) != 4 {
		t.Fatalf("got %d indels, want 4 (insertion, deletion, and both alts of the multi-allelic site)", len(indels))
	}
	for i := 1; i < len(indels); i++ {
		if indels[i-1].Pos > indels[i].Pos {
			t.Errorf("indels not sorted by position: %+v", indels)
		}
	}
}

func TestOverlapping(t *testing.T) {
	set, err := parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	chr1 := utils.Intern("chr1")

	got := set.Overlapping(chr1, 90, 160)
	if len(got) != 3 {
		t.Fatalf("Overlapping(90,160) returned %d indels, want 3 (pos 99, and both alts at pos 149)", len(got))
	}

	if got := set.Overlapping(chr1, 1000, 2000); len(got) != 0 {
		t.Errorf("Overlapping outside range returned %d indels, want 0", len(got))
	}
}

func TestOverlappingNilSet(t *testing.T) {
	var set *Set
	if got := set.Overlapping(utils.Intern("chr1"), 0, 100); got != nil {
		t.Errorf("nil Set.Overlapping = %v, want nil", got)
	}
}

func TestIndelLength(t *testing.T) {
	ins := Indel{Ref: "A", Alt: "AT"}
	if ins.Length() != 1 {
		t.Errorf("insertion length = %d, want 1", ins.Length())
	}
	del := Indel{Ref: "AGG", Alt: "A"}
	if del.Length() != -2 {
		t.Errorf("deletion length = %d, want -2", del.Length())
	}
}
