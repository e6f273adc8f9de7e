package tileio

import (
	"context"
	"fmt"

	"github.com/exascience/pargo/pipeline"

	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/internal"
	"github.com/seqalign/alignpipe/rawinput"
)

// Loader is a pargo pipeline.Source that reads one or two
// rawinput.Sources (single-end, or paired mates) in lockstep and
// yields Batches of at most cfg.ClustersAtATimeMax clusters, exactly
// the way the teacher's internalBGZFReader fetches one block of work
// per Fetch call (sam/bgzf-files.go).
type Loader struct {
	tileID  string
	mates   []rawinput.Source // length 1 (single-end) or 2 (paired)
	cfg     *config.Config
	nextID  int64
	err     error
	batch   *Batch
	readLen int32
}

// NewLoader builds a Loader for one tile. mates holds one
// rawinput.Source for single-end data, or two for paired-end (mate 0
// and mate 1, read in lockstep).
func NewLoader(tileID string, mates []rawinput.Source, cfg *config.Config) *Loader {
	return &Loader{tileID: tileID, mates: mates, cfg: cfg, readLen: cfg.ReadLength}
}

// Err implements pipeline.Source.
func (l *Loader) Err() error { return l.err }

// Prepare implements pipeline.Source. The tile loader has no
// upfront count of clusters (rawinput.Source is a pull stream), so,
// like internalBGZFReader, it reports an unknown size.
func (l *Loader) Prepare(_ context.Context) int { return -1 }

// Fetch implements pipeline.Source: reads up to ClustersAtATimeMax
// clusters from every mate source in lockstep and stores the
// resulting Batch for Data to return.
func (l *Loader) Fetch(_ int) int {
	if l.err != nil {
		return 0
	}
	max := l.cfg.ClustersAtATimeMax
	reads := make([]Read, 0, max*len(l.mates))
	count := 0
	for count < max {
		clusters, done, err := l.nextClusterSet()
		if err != nil {
			l.err = internal.Wrap("tile loader", err)
			return 0
		}
		if done {
			break
		}
		id := l.nextID
		l.nextID++
		for mate, c := range clusters {
			reads = append(reads, classify(id, int8(mate), c, l.cfg))
		}
		count++
	}
	if count == 0 {
		l.batch = nil
		return 0
	}
	l.batch = &Batch{TileID: l.tileID, Reads: reads}
	return 1
}

// Data implements pipeline.Source.
func (l *Loader) Data() interface{} { return l.batch }

// nextClusterSet reads one cluster from every mate source, applying
// the missing-file substitution policy (spec.md §4.2) per mate. done
// is true once any mate source is exhausted; paired mate sources are
// assumed to have equal cluster counts, as the tile's own cluster
// count is shared across mates.
func (l *Loader) nextClusterSet() (clusters []rawinput.Cluster, done bool, err error) {
	clusters = make([]rawinput.Cluster, len(l.mates))
	for i, src := range l.mates {
		c, ok, err := src.Next()
		if err != nil {
			if isMissingFileErr(err) && l.tolerateMissing(i) {
				clusters[i] = rawinput.PlaceholderCluster(l.readLen)
				continue
			}
			return nil, false, fmt.Errorf("reading tile %s mate %d: %w", l.tileID, i, err)
		}
		if !ok {
			return nil, true, nil
		}
		clusters[i] = c
	}
	return clusters, false, nil
}

func (l *Loader) tolerateMissing(mate int) bool {
	return l.cfg.IgnoreMissingBcls || l.cfg.IgnoreMissingFilters
}

// missingFileError marks an error a Source returns when its
// underlying base-call or filter file could not be opened, so the
// loader can distinguish "missing" from any other read failure.
type missingFileError struct{ Err error }

func (e *missingFileError) Error() string { return e.Err.Error() }
func (e *missingFileError) Unwrap() error { return e.Err }

func isMissingFileErr(err error) bool {
	_, ok := err.(*missingFileError)
	return ok
}

// MissingFileError wraps err as a missing-file condition a Loader
// with IgnoreMissingBcls/IgnoreMissingFilters set will tolerate.
func MissingFileError(err error) error {
	if err == nil {
		return nil
	}
	return &missingFileError{Err: err}
}

// LoadAll runs a Loader to completion and returns every batch, for
// tests and for small tools that don't need a streaming pipeline.
// Production use feeds the Loader into a larger pargo pipeline
// instead (p.Source(loader)), the way NewBGZFReader does.
func LoadAll(l *Loader) ([]*Batch, error) {
	var batches []*Batch
	p := new(pipeline.Pipeline)
	p.Source(l)
	p.Add(pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
		if b, ok := data.(*Batch); ok && b != nil {
			batches = append(batches, b)
		}
		return data
	})))
	p.Run()
	return batches, p.Err()
}
