package binmerge

import (
	"testing"

	"github.com/seqalign/alignpipe/binio"
	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/template"
)

func highQual(n int, q byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = q
	}
	return out
}

func TestMarkDuplicatesKeepsHighestQualityFragment(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cigar := []template.CigarOp{{Length: 10, Op: 'M'}}
	records := []binio.RawRecord{
		{ClusterID: 1, Mate: 0, Contig: 0, Offset: 100, Cigar: cigar, Quality: highQual(10, 20)},
		{ClusterID: 2, Mate: 0, Contig: 0, Offset: 100, Cigar: cigar, Quality: highQual(10, 35)},
		{ClusterID: 3, Mate: 0, Contig: 0, Offset: 500, Cigar: cigar, Quality: highQual(10, 10)},
	}

	markDuplicates(records, cfg)

	if records[1].Duplicate {
		t.Error("cluster 2 (highest quality at position 100) should not be marked duplicate")
	}
	if !records[0].Duplicate {
		t.Error("cluster 1 (lower quality at position 100) should be marked duplicate")
	}
	if records[2].Duplicate {
		t.Error("cluster 3, the only fragment at position 500, should not be marked duplicate")
	}
}

func TestMarkDuplicatesKeepDuplicatesSuppressesFlag(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.KeepDuplicates = true
	cigar := []template.CigarOp{{Length: 10, Op: 'M'}}
	records := []binio.RawRecord{
		{ClusterID: 1, Mate: 0, Contig: 0, Offset: 100, Cigar: cigar, Quality: highQual(10, 20)},
		{ClusterID: 2, Mate: 0, Contig: 0, Offset: 100, Cigar: cigar, Quality: highQual(10, 35)},
	}

	markDuplicates(records, cfg)

	for i, r := range records {
		if r.Duplicate {
			t.Errorf("record %d marked duplicate despite KeepDuplicates", i)
		}
	}
}

func TestMarkDuplicatesTiebreaksByClusterID(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cigar := []template.CigarOp{{Length: 10, Op: 'M'}}
	records := []binio.RawRecord{
		{ClusterID: 50, Mate: 0, Contig: 0, Offset: 100, Cigar: cigar, Quality: highQual(10, 20)},
		{ClusterID: 5, Mate: 0, Contig: 0, Offset: 100, Cigar: cigar, Quality: highQual(10, 20)},
	}

	markDuplicates(records, cfg)

	if records[1].Duplicate {
		t.Error("lower cluster id should win the quality tie")
	}
	if !records[0].Duplicate {
		t.Error("higher cluster id should lose the quality tie")
	}
}

func TestMarkDuplicatesPairsGroupByBothMates(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cigar := []template.CigarOp{{Length: 10, Op: 'M'}}
	records := []binio.RawRecord{
		{ClusterID: 1, Mate: 0, Contig: 0, Offset: 100, Cigar: cigar, Quality: highQual(10, 20)},
		{ClusterID: 1, Mate: 1, Contig: 0, Offset: 400, Cigar: cigar, Quality: highQual(10, 20)},
		{ClusterID: 2, Mate: 0, Contig: 0, Offset: 100, Cigar: cigar, Quality: highQual(10, 39)},
		{ClusterID: 2, Mate: 1, Contig: 0, Offset: 400, Cigar: cigar, Quality: highQual(10, 39)},
	}

	markDuplicates(records, cfg)

	if !records[0].Duplicate || !records[1].Duplicate {
		t.Error("cluster 1 should be marked duplicate (lower combined quality)")
	}
	// records[0]/[1] belong to cluster 1, which loses; check by cluster id.
	byCluster := map[int64]bool{}
	for _, r := range records {
		if r.Duplicate {
			byCluster[r.ClusterID] = true
		}
	}
	if !byCluster[1] {
		t.Error("cluster 1's pair should be marked duplicate")
	}
	if byCluster[2] {
		t.Error("cluster 2's pair (higher combined quality) should not be marked duplicate")
	}
}

func TestUnclippedStartAccountsForSoftClip(t *testing.T) {
	fwd := &binio.RawRecord{Offset: 100, Strand: 0, Cigar: []template.CigarOp{{Length: 5, Op: 'S'}, {Length: 95, Op: 'M'}}}
	if got := unclippedStart(fwd); got != 95 {
		t.Errorf("forward unclipped start = %d, want 95", got)
	}

	rev := &binio.RawRecord{Offset: 100, Strand: 1, Cigar: []template.CigarOp{{Length: 90, Op: 'M'}, {Length: 5, Op: 'S'}}}
	if got := unclippedStart(rev); got != 195 {
		t.Errorf("reverse unclipped start = %d, want 195", got)
	}
}
