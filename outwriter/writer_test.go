package outwriter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/seqalign/alignpipe/binmerge"
	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/refidx"
	"github.com/seqalign/alignpipe/refpos"
	"github.com/seqalign/alignpipe/template"
	"github.com/seqalign/alignpipe/utils"
)

func testIndex() *refidx.Index {
	name1, name2 := "chr1", "chr2"
	return &refidx.Index{Contigs: []refidx.Contig{
		{Index: 0, Name: utils.Symbol(&name1), Length: 1000},
		{Index: 1, Name: utils.Symbol(&name2), Length: 500},
	}}
}

func TestHeaderWriteTo(t *testing.T) {
	idx := testIndex()
	hdr := BuildHeader(idx, []ReadGroup{{ID: "rg1", Sample: "sample1", Barcode: "ACGT"}}, "alignpipe -ref ref.meta")
	var buf bytes.Buffer
	if _, err := hdr.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"@HD\tVN:", "SO:coordinate", "@SQ", "SN:chr1", "LN:1000", "SN:chr2", "@RG", "ID:rg1", "SM:sample1", "BC:ACGT", "@PG", "ID:alignpipe"} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q, got:\n%s", want, out)
		}
	}
}

func fragRecord(cluster int64, mate int8, contig, offset int32, strand int8) binmerge.Record {
	return binmerge.Record{
		ClusterID: cluster,
		Mate:      mate,
		Fragment: template.Fragment{
			Position: refpos.Position{Contig: contig, Offset: offset},
			Strand:   strand,
			Cigar:    []template.CigarOp{{Length: 10, Op: 'M'}},
			MapQ:     60,
			Bases:    []byte("ACGTACGTAC"),
			Quality:  []byte{30, 30, 30, 30, 30, 30, 30, 30, 30, 30},
		},
	}
}

func TestWriteBinRendersAlignmentLines(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{}
	cfg.SetDefaults()
	idx := testIndex()
	hdr := BuildHeader(idx, nil, "alignpipe")
	w, err := New(&buf, hdr, "rg1", cfg, idx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	records := []binmerge.Record{
		fragRecord(1, 0, 0, 99, 0),
		fragRecord(1, 1, 0, 299, 1),
	}
	if err := w.WriteBin(records); err != nil {
		t.Fatalf("WriteBin: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewBGZFReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewBGZFReader: %v", err)
	}
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		t.Fatalf("decompress: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	var alnLines []string
	for _, l := range lines {
		if !strings.HasPrefix(l, "@") {
			alnLines = append(alnLines, l)
		}
	}
	if len(alnLines) != 2 {
		t.Fatalf("got %d alignment lines, want 2:\n%s", len(alnLines), out.String())
	}
	fields := strings.Split(alnLines[0], "\t")
	if fields[2] != "chr1" || fields[3] != "100" {
		t.Errorf("first alignment RNAME/POS = %s/%s, want chr1/100", fields[2], fields[3])
	}
	if !strings.Contains(alnLines[0], "RG:Z:rg1") {
		t.Errorf("missing RG tag in %q", alnLines[0])
	}
	// mates resolved within the bin get RNEXT "=" and a nonzero TLEN.
	if fields[6] != "=" {
		t.Errorf("RNEXT = %q, want =", fields[6])
	}
}

func TestPairUp(t *testing.T) {
	records := []binmerge.Record{
		fragRecord(1, 0, 0, 100, 0),
		fragRecord(2, 0, 0, 200, 0), // no mate in this bin
		fragRecord(1, 1, 0, 400, 1),
	}
	mates := pairUp(records)
	if mates[0] != 2 || mates[2] != 0 {
		t.Errorf("cluster 1's mates = %v, want [2,_,0]", mates)
	}
	if mates[1] != -1 {
		t.Errorf("cluster 2 has no mate in this bin, got %d", mates[1])
	}
}

func TestMD5SumTracksUncompressedBytes(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.BamProduceMd5 = true
	idx := testIndex()
	hdr := BuildHeader(idx, nil, "alignpipe")
	w, err := New(&buf, hdr, "", cfg, idx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.WriteBin([]binmerge.Record{fragRecord(1, 0, 0, 10, 0)}); err != nil {
		t.Fatalf("WriteBin: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	sum, ok := w.MD5Sum()
	if !ok || len(sum) != 32 {
		t.Errorf("MD5Sum() = %q, %v; want a 32-hex-char digest", sum, ok)
	}
}
