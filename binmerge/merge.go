// Package binmerge re-reads each bin's fragments, optionally
// realigns gaps and marks duplicates, and produces the final
// position-sorted fragment stream the output writer consumes
// (spec.md §4.6).
package binmerge

import (
	"os"
	"sort"

	psort "github.com/exascience/pargo/sort"

	"github.com/seqalign/alignpipe/binio"
	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/knownsites"
	"github.com/seqalign/alignpipe/refidx"
	"github.com/seqalign/alignpipe/template"
)

// Record is one merged fragment, ready for output.
type Record struct {
	ClusterID int64
	Mate      int8
	Fragment  template.Fragment
}

// Merger re-reads and finalizes one bin at a time.
type Merger struct {
	cfg   *config.Config
	idx   *refidx.Index
	sites *knownsites.Set
}

// New builds a Merger. sites may be nil if no known-indels file was
// configured.
func New(cfg *config.Config, idx *refidx.Index, sites *knownsites.Set) *Merger {
	return &Merger{cfg: cfg, idx: idx, sites: sites}
}

// MergeBin reads every record from the bin file at path, realigns and
// duplicate-marks according to configuration, and returns them sorted
// by (contigIndex, leftmost reference base, strand) — spec.md §4.6's
// ordering guarantee.
func (m *Merger) MergeBin(path string) ([]Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := binio.ReadAll(f)
	if err != nil {
		return nil, err
	}

	if m.cfg.RealignGaps != config.RealignOff {
		realignBin(records, m.idx, m.sites, m.cfg)
	}
	if m.cfg.MarkDuplicates {
		markDuplicates(records, m.cfg)
	}

	sortRecords(records)
	return toRecords(records), nil
}

func sortRecords(recs []binio.RawRecord) {
	by := func(a, b *binio.RawRecord) bool {
		if a.Contig != b.Contig {
			return a.Contig < b.Contig
		}
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return a.Strand < b.Strand
	}
	if len(recs) < 4096 {
		sort.Slice(recs, func(i, j int) bool { return by(&recs[i], &recs[j]) })
		return
	}
	psort.StableSort(rawRecordSorter{recs: recs, by: by})
}

type rawRecordSorter struct {
	recs []binio.RawRecord
	by   func(a, b *binio.RawRecord) bool
}

func (s rawRecordSorter) SequentialSort(i, j int) {
	recs, by := s.recs[i:j], s.by
	sort.Slice(recs, func(i, j int) bool { return by(&recs[i], &recs[j]) })
}
func (s rawRecordSorter) Len() int { return len(s.recs) }
func (s rawRecordSorter) Less(i, j int) bool {
	return s.by(&s.recs[i], &s.recs[j])
}
func (s rawRecordSorter) NewTemp() psort.StableSorter {
	return rawRecordSorter{recs: make([]binio.RawRecord, len(s.recs)), by: s.by}
}
func (s rawRecordSorter) Assign(p psort.StableSorter) func(i, j, len int) {
	dst, src := s.recs, p.(rawRecordSorter).recs
	return func(i, j, length int) {
		copy(dst[i:i+length], src[j:j+length])
	}
}

func toRecords(recs []binio.RawRecord) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = Record{ClusterID: r.ClusterID, Mate: r.Mate, Fragment: r.ToFragment()}
	}
	return out
}
