package binio

import (
	"container/heap"
	"fmt"
	"os"
	"sync"

	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/internal"
	"github.com/seqalign/alignpipe/refpos"
	"github.com/seqalign/alignpipe/template"
)

// Boundaries computes the bin ranges to partition a reference of the
// given per-contig lengths into, from target bin size and expected
// coverage (spec.md §4.5):
//
//	targetFragmentsPerBin = targetBinSizeFragments / estimatedFragmentSize
//	targetBinLengthBases  = targetFragmentsPerBin / expectedCoverage * maxReadLength
func Boundaries(contigLengths []int32, cfg *config.Config) []refpos.Range {
	targetFragmentsPerBin := float64(cfg.TargetBinSizeFragments) / float64(internal.Max(cfg.EstimatedFragmentSize, 1))
	binLength := int32(targetFragmentsPerBin / internal.Max(cfg.ExpectedCoverage, 1) * float64(cfg.MaxReadLength))
	if binLength < cfg.MaxReadLength {
		binLength = cfg.MaxReadLength
	}

	var ranges []refpos.Range
	for contig, length := range contigLengths {
		for start := int32(0); start < length; start += binLength {
			end := start + binLength
			if end > length {
				end = length
			}
			ranges = append(ranges, refpos.Range{Contig: int32(contig), Start: start, End: end})
		}
	}
	ranges = append(ranges, refpos.Range{Contig: unmappedContig, Start: 0, End: 0})
	return ranges
}

// Partitioner routes fragments to the bin file covering their
// leftmost aligned base (spec.md §4.5: "every aligned fragment
// belongs to exactly one bin ... unaligned fragments go to a
// dedicated unmapped bin"), optionally pre-sorting each bin's
// fragments with an in-memory heap to amortize the merger's later
// sort.
//
// No priority-queue library appears anywhere in the retrieval pack,
// so this uses the standard library's container/heap: a bin-local,
// bounded-lifetime ordering structure like this is exactly the case
// container/heap is meant for, and is the one place in this repo
// where the idiomatic choice genuinely is the standard library.
type Partitioner struct {
	dir       string
	ranges    []refpos.Range
	cfg       *config.Config
	mu        sync.Mutex
	files     map[string]*os.File
	sortQueue map[string]*recordHeap
}

// NewPartitioner builds a Partitioner that writes bin files under
// dir, covering the given ranges.
func NewPartitioner(dir string, ranges []refpos.Range, cfg *config.Config) *Partitioner {
	p := &Partitioner{
		dir:    dir,
		ranges: ranges,
		cfg:    cfg,
		files:  make(map[string]*os.File),
	}
	if cfg.PreSortBins {
		p.sortQueue = make(map[string]*recordHeap)
	}
	return p
}

// Route writes t's fragments to the bin covering each fragment's
// leftmost aligned base, or the unmapped bin for unaligned fragments.
func (p *Partitioner) Route(clusterID int64, t *template.Template) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range t.Fragments {
		f := &t.Fragments[i]
		r := p.rangeFor(f)
		if err := p.write(r, clusterID, int8(f.ReadIndex), f); err != nil {
			return internal.Wrap("bin partitioner", err)
		}
	}
	return nil
}

func (p *Partitioner) rangeFor(f *template.Fragment) refpos.Range {
	if f.Unaligned {
		return refpos.Range{Contig: unmappedContig}
	}
	for _, r := range p.ranges {
		if r.Contig == f.Position.Contig && f.Position.Offset >= r.Start && f.Position.Offset < r.End {
			return r
		}
	}
	return refpos.Range{Contig: unmappedContig}
}

func (p *Partitioner) write(r refpos.Range, clusterID int64, mate int8, f *template.Fragment) error {
	if p.cfg.PreSortBins {
		name := FileName(r)
		q := p.sortQueue[name]
		if q == nil {
			q = &recordHeap{}
			p.sortQueue[name] = q
		}
		heap.Push(q, sortable{clusterID: clusterID, mate: mate, frag: *f})
		return nil
	}
	f2, err := p.fileFor(r)
	if err != nil {
		return err
	}
	return WriteRecord(f2, clusterID, mate, f)
}

func (p *Partitioner) fileFor(r refpos.Range) (*os.File, error) {
	name := FileName(r)
	if f, ok := p.files[name]; ok {
		return f, nil
	}
	f, err := Open(p.dir, r)
	if err != nil {
		return nil, err
	}
	p.files[name] = f
	return f, nil
}

// Close flushes any pre-sort queues (draining them in position order)
// and closes every open bin file.
func (p *Partitioner) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, q := range p.sortQueue {
		path := name
		r := rangeFromFileName(path)
		f, err := Open(p.dir, r)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for q.Len() > 0 {
			s := heap.Pop(q).(sortable)
			if err := WriteRecord(f, s.clusterID, s.mate, &s.frag); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, f := range p.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func rangeFromFileName(name string) refpos.Range {
	if name == "unmapped.bin" {
		return refpos.Range{Contig: unmappedContig}
	}
	var contig, start, end int32
	_, _ = fmt.Sscanf(name, "bin-%d-%d-%d.bin", &contig, &start, &end)
	return refpos.Range{Contig: contig, Start: start, End: end}
}

type sortable struct {
	clusterID int64
	mate      int8
	frag      template.Fragment
}

// recordHeap orders sortables by (leftmost reference base), the key
// the merger will ultimately sort by (spec.md §4.6).
type recordHeap []sortable

func (h recordHeap) Len() int { return len(h) }
func (h recordHeap) Less(i, j int) bool {
	return h[i].frag.Position.Offset < h[j].frag.Position.Offset
}
func (h recordHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *recordHeap) Push(x interface{}) { *h = append(*h, x.(sortable)) }
func (h *recordHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
