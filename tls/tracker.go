// Package tls maintains the per-barcode template length statistics
// (spec.md §3) the template builder uses to judge whether a pair is
// "proper" and to size the shadow-rescue search window.
package tls

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	psync "github.com/exascience/pargo/sync"

	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/internal"
)

// state is Training while a barcode has not yet accumulated
// cfg.TLSTrainingSize confidently aligned pairs; Frozen afterward
// (spec.md §3: "learned from the first K confidently aligned pairs").
type state int

const (
	training state = iota
	frozen
)

// Stats is one barcode's learned insert-size distribution.
type Stats struct {
	Median      float64
	LowQuantile float64
	HighQuantile float64
	// Forward reports whether mate 1 upstream-of mate 2 is the
	// dominant orientation for this barcode.
	Forward bool
}

// entry is the mutable per-barcode tracking state, guarded by its own
// mutex: gonum/stat's quantile functions need a sorted slice, which
// would be expensive to keep fully concurrent, so each barcode serializes
// its own updates while different barcodes proceed independently
// through the sharded pargo/sync.Map that owns the entries.
type entry struct {
	mu       sync.Mutex
	st       state
	samples  []float64
	forwardN int
	reverseN int
	frozen   Stats
}

func barcodeHash(barcode string) uint64 {
	return internal.StringHash(barcode)
}

type barcodeKey string

func (k barcodeKey) Hash() uint64 { return barcodeHash(string(k)) }

// Tracker is the run-wide, concurrency-safe TLS state: one entry per
// barcode, held in a sharded pargo/sync.Map exactly as the teacher
// shards its duplicate-marking fragment maps (mark-duplicates.go).
type Tracker struct {
	cfg     *config.Config
	entries *psync.Map
}

// New builds a Tracker sized for concurrent access by splits
// goroutines, the way mark-duplicates.go sizes its maps from
// runtime.GOMAXPROCS.
func New(cfg *config.Config, splits int) *Tracker {
	return &Tracker{cfg: cfg, entries: psync.NewMap(splits)}
}

func (t *Tracker) entryFor(barcode string) *entry {
	e, _ := t.entries.LoadOrStore(barcodeKey(barcode), &entry{})
	return e.(*entry)
}

// Observe records one confidently aligned pair's signed insert size
// and orientation for barcode. Safe to call concurrently for
// different barcodes; serialized per barcode.
func (t *Tracker) Observe(barcode string, insertSize int64, forward bool) {
	e := t.entryFor(barcode)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st == frozen {
		return
	}
	e.samples = append(e.samples, float64(insertSize))
	if forward {
		e.forwardN++
	} else {
		e.reverseN++
	}
	if len(e.samples) >= t.cfg.TLSTrainingSize {
		e.freeze()
	}
}

// freeze computes the frozen Stats from accumulated samples. Callers
// must hold e.mu.
func (e *entry) freeze() {
	sorted := append([]float64(nil), e.samples...)
	sort.Float64s(sorted)
	e.frozen = Stats{
		Median:       stat.Quantile(0.5, stat.Empirical, sorted, nil),
		LowQuantile:  stat.Quantile(0.05, stat.Empirical, sorted, nil),
		HighQuantile: stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Forward:      e.forwardN >= e.reverseN,
	}
	e.st = frozen
	e.samples = nil
}

// Snapshot returns barcode's current Stats and whether they are
// frozen. While the barcode is still training the bool is false and
// Stats reflects provisional estimates computed from whatever samples
// have been seen so far (zero Stats before the first sample).
func (t *Tracker) Snapshot(barcode string) (Stats, bool) {
	e := t.entryFor(barcode)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st == frozen {
		return e.frozen, true
	}
	if len(e.samples) == 0 {
		return Stats{}, false
	}
	sorted := append([]float64(nil), e.samples...)
	sort.Float64s(sorted)
	return Stats{
		Median:       stat.Quantile(0.5, stat.Empirical, sorted, nil),
		LowQuantile:  stat.Quantile(0.05, stat.Empirical, sorted, nil),
		HighQuantile: stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Forward:      e.forwardN >= e.reverseN,
	}, false
}

// DriftRange returns the configured mate-drift range in standard
// deviations, widened during training per spec.md's supplemented
// barcode-scoped behavior: early pairs, before the distribution has
// stabilized, are matched more permissively.
func (t *Tracker) DriftRange(barcode string) float64 {
	_, frozen := t.Snapshot(barcode)
	if frozen {
		return t.cfg.MateDriftRange
	}
	return t.cfg.MateDriftRangeDuringTraining
}

// StdDev approximates the standard deviation implied by st's
// quantiles, assuming a roughly normal insert-size distribution: the
// interval [LowQuantile, HighQuantile] spans the central 90%, i.e.
// about 3.29 standard deviations.
func (st Stats) StdDev() float64 {
	return (st.HighQuantile - st.LowQuantile) / 3.29
}
