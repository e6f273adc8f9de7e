package binmerge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/seqalign/alignpipe/binio"
	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/refpos"
	"github.com/seqalign/alignpipe/template"
)

func writeBin(t *testing.T, path string, recs []struct {
	cluster int64
	mate    int8
	f       *template.Fragment
}) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	for _, r := range recs {
		if err := binio.WriteRecord(f, r.cluster, r.mate, r.f); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
}

func TestMergeBinSortsByContigOffsetStrand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bin-0-0-1000.bin")

	writeBin(t, path, []struct {
		cluster int64
		mate    int8
		f       *template.Fragment
	}{
		{1, 0, &template.Fragment{Position: toPos(0, 500), Strand: 0, Cigar: mCigar(10)}},
		{2, 0, &template.Fragment{Position: toPos(0, 100), Strand: 1, Cigar: mCigar(10)}},
		{3, 0, &template.Fragment{Position: toPos(0, 100), Strand: 0, Cigar: mCigar(10)}},
		{4, 0, &template.Fragment{Position: toPos(1, 50), Strand: 0, Cigar: mCigar(10)}},
	})

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.RealignGaps = config.RealignOff
	cfg.MarkDuplicates = false

	m := New(cfg, nil, nil)
	records, err := m.MergeBin(path)
	if err != nil {
		t.Fatalf("MergeBin: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}

	wantOrder := []int64{3, 2, 1, 4} // (0,100,fwd) < (0,100,rev) < (0,500,fwd) < (1,50,fwd)
	for i, want := range wantOrder {
		if records[i].ClusterID != want {
			t.Errorf("position %d: clusterID = %d, want %d (order: %v)", i, records[i].ClusterID, want, recordClusterIDs(records))
		}
	}
}

func TestMergeBinMissingFileReturnsNoRecordsNoError(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	m := New(cfg, nil, nil)
	records, err := m.MergeBin(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	if err != nil {
		t.Fatalf("MergeBin on missing file: %v", err)
	}
	if records != nil {
		t.Errorf("got %v, want nil", records)
	}
}

func toPos(contig, offset int32) refpos.Position {
	return refpos.Position{Contig: contig, Offset: offset}
}

func mCigar(n int32) []template.CigarOp {
	return []template.CigarOp{{Length: n, Op: 'M'}}
}

func recordClusterIDs(records []Record) []int64 {
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ClusterID
	}
	return ids
}
