package binio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/refpos"
	"github.com/seqalign/alignpipe/template"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.TargetBinSizeFragments = 1000
	cfg.EstimatedFragmentSize = 200
	cfg.ExpectedCoverage = 10
	cfg.MaxReadLength = 100
	return cfg
}

func TestBoundariesCoversEveryContigAndUnmapped(t *testing.T) {
	cfg := testConfig()
	ranges := Boundaries([]int32{1000, 350}, cfg)

	var sawUnmapped bool
	covered := map[int32]int32{0: 0, 1: 0}
	for _, r := range ranges {
		if r.Contig == unmappedContig {
			sawUnmapped = true
			continue
		}
		if r.Start != covered[r.Contig] {
			t.Fatalf("gap in contig %d coverage: expected start %d, got %d", r.Contig, covered[r.Contig], r.Start)
		}
		covered[r.Contig] = r.End
	}
	if !sawUnmapped {
		t.Error("Boundaries did not include the unmapped range")
	}
	if covered[0] != 1000 {
		t.Errorf("contig 0 covered to %d, want 1000", covered[0])
	}
	if covered[1] != 350 {
		t.Errorf("contig 1 covered to %d, want 350", covered[1])
	}
}

func TestBoundariesNeverBelowMaxReadLength(t *testing.T) {
	cfg := testConfig()
	cfg.TargetBinSizeFragments = 1
	cfg.ExpectedCoverage = 1000
	ranges := Boundaries([]int32{500}, cfg)
	for _, r := range ranges {
		if r.Contig == unmappedContig || r.End == 500 {
			continue // the final, possibly-short bin in a contig is allowed to be truncated
		}
		if r.End-r.Start < cfg.MaxReadLength {
			t.Errorf("bin length %d below MaxReadLength %d", r.End-r.Start, cfg.MaxReadLength)
		}
	}
}

func TestPartitionerRoutesByLeftmostBase(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	ranges := []refpos.Range{
		{Contig: 0, Start: 0, End: 500},
		{Contig: 0, Start: 500, End: 1000},
		{Contig: unmappedContig},
	}
	p := NewPartitioner(dir, ranges, cfg)

	tmpl := &template.Template{Fragments: []template.Fragment{
		{Position: refpos.Position{Contig: 0, Offset: 10}, ReadIndex: 0, Cigar: []template.CigarOp{{Length: 10, Op: 'M'}}},
		{Position: refpos.Position{Contig: 0, Offset: 600}, ReadIndex: 1, Cigar: []template.CigarOp{{Length: 10, Op: 'M'}}},
		{Unaligned: true, ReadIndex: 0},
	}}
	if err := p.Route(1, tmpl); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, name := range []string{"bin-0-0-500.bin", "bin-0-500-1000.bin", "unmapped.bin"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected bin file %s to exist: %v", name, err)
		}
	}
}

func TestPartitionerPreSortOrdersWithinBin(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.PreSortBins = true
	ranges := []refpos.Range{{Contig: 0, Start: 0, End: 1000}}
	p := NewPartitioner(dir, ranges, cfg)

	offsets := []int32{300, 50, 700, 10}
	for i, off := range offsets {
		tmpl := &template.Template{Fragments: []template.Fragment{
			{Position: refpos.Position{Contig: 0, Offset: off}, ReadIndex: 0, Cigar: []template.CigarOp{{Length: 10, Op: 'M'}}},
		}}
		if err := p.Route(int64(i), tmpl); err != nil {
			t.Fatalf("Route: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "bin-0-0-1000.bin"))
	if err != nil {
		t.Fatalf("open bin: %v", err)
	}
	defer f.Close()
	records, err := ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].Offset > records[i].Offset {
			t.Errorf("pre-sort queue did not order by offset: %v", records)
			break
		}
	}
}
