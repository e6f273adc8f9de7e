package workflow

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/exascience/pargo/pipeline"

	"github.com/seqalign/alignpipe/binio"
	"github.com/seqalign/alignpipe/binmerge"
	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/internal"
	"github.com/seqalign/alignpipe/knownsites"
	"github.com/seqalign/alignpipe/outwriter"
	"github.com/seqalign/alignpipe/rawinput"
	"github.com/seqalign/alignpipe/refidx"
	"github.com/seqalign/alignpipe/refpos"
	"github.com/seqalign/alignpipe/seedmatch"
	"github.com/seqalign/alignpipe/template"
	"github.com/seqalign/alignpipe/tileio"
	"github.com/seqalign/alignpipe/tls"
)

// PreconditionError marks err as spec.md §7's "Precondition (missing
// file, bad config)" error kind: fatal at startup. cmd/align.go maps
// it to exit code 2; any other error from Run maps to exit code 1.
type PreconditionError struct{ Err error }

func (e *PreconditionError) Error() string { return e.Err.Error() }
func (e *PreconditionError) Unwrap() error  { return e.Err }

func precondition(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &PreconditionError{Err: internal.Wrap(stage, err)}
}

// TileInput names one tile for the workflow to process: its id and
// the rawinput.Sources that stream it. Resolving tile ids and
// constructing their Sources from instrument-specific byte layouts is
// out of scope (spec.md §1); callers (cmd/align.go) hand this package
// finished Sources.
type TileInput struct {
	TileID string
	Mates  []rawinput.Source
}

// Project is one output file's worth of work: every tile sharing one
// barcode/read-group, which therefore shares one alignment file
// (spec.md §6's "per-project...per-barcode read-group line";
// outwriter.New takes a single read group per output, so a
// multi-barcode run is expressed as multiple Projects).
type Project struct {
	Name      string
	ReadGroup outwriter.ReadGroup
	Tiles     []TileInput
}

// projectState is the per-project working data carried between the
// Aligned, Reported and Written phases of Run: the directory its bin
// files live under and the bin boundaries that were used to route
// fragments into them.
type projectState struct {
	project    Project
	binsDir    string
	boundaries []refpos.Range
}

// Run executes the full pipeline for every project against one shared
// reference index: tile loading, seed matching, template building and
// bin partitioning (Aligned); a statistics snapshot (Reported); bin
// merge, realignment, duplicate marking and output writing (Written);
// optional temp cleanup (Done). invocation is recorded in each
// output's @PG line. State transitions are persisted under
// cfg.TempDirectory so a crashed run resumes from its last completed
// phase (spec.md §7).
func Run(cfg *config.Config, projects []Project, invocation string) error {
	fsm, err := Resume(cfg.TempDirectory)
	if err != nil {
		return precondition("workflow", err)
	}

	states := make([]*projectState, len(projects))
	for i, p := range projects {
		states[i] = &projectState{project: p, binsDir: filepath.Join(cfg.TempDirectory, "bins", p.Name)}
	}
	statsPath := filepath.Join(cfg.TempDirectory, "stats.json")

	cleanup := func(to State) error {
		if to < Aligned {
			for _, ps := range states {
				if err := os.RemoveAll(ps.binsDir); err != nil {
					return err
				}
			}
		}
		if to < Reported {
			if err := os.Remove(statsPath); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		if to < Written {
			for _, ps := range states {
				if err := os.RemoveAll(outputDir(cfg, ps.project)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := fsm.Rewind(fsm.State(), cleanup); err != nil {
		return internal.Wrap("workflow", err)
	}

	idx, err := refidx.Open(cfg.ReferenceMetadataPath, cfg)
	if err != nil {
		return precondition("reference index", err)
	}
	defer idx.Close()

	var sites *knownsites.Set
	if cfg.KnownIndelsPath != "" {
		sites, err = knownsites.Load(cfg.KnownIndelsPath)
		if err != nil {
			return precondition("known indels", err)
		}
	}

	contigLengths := make([]int32, len(idx.Contigs))
	for _, c := range idx.Contigs {
		contigLengths[c.Index] = c.Length
	}
	boundaries := binio.Boundaries(contigLengths, cfg)
	for _, ps := range states {
		ps.boundaries = boundaries
	}

	stats := newAggregator()

	if fsm.State() < Aligned {
		if err := alignPhase(cfg, idx, states, stats); err != nil {
			return internal.Wrap("seed matching / template building", err)
		}
		if err := fsm.Advance(Aligned); err != nil {
			return err
		}
	}

	if fsm.State() < Reported {
		if err := writeSnapshot(statsPath, stats.snapshot()); err != nil {
			return internal.Wrap("statistics snapshot", err)
		}
		if err := fsm.Advance(Reported); err != nil {
			return err
		}
	}

	if fsm.State() < Written {
		for _, ps := range states {
			if err := writeProject(cfg, idx, sites, ps, invocation); err != nil {
				return internal.Wrap("output writer", err)
			}
		}
		if err := fsm.Advance(Written); err != nil {
			return err
		}
	}

	if fsm.State() < Done {
		if cfg.CleanupIntermediary {
			for _, ps := range states {
				if err := os.RemoveAll(ps.binsDir); err != nil {
					return internal.Wrap("cleanup", err)
				}
			}
			if err := os.Remove(statsPath); err != nil && !os.IsNotExist(err) {
				return internal.Wrap("cleanup", err)
			}
		}
		if err := fsm.Advance(Done); err != nil {
			return err
		}
	}

	return nil
}

func outputDir(cfg *config.Config, p Project) string {
	return filepath.Join(cfg.OutputDirectory, p.Name)
}

// buildMatchers returns one seedmatch.Matcher per seed length the
// reference was pre-processed for (spec.md §4.3 allows more than one
// seed length to trade sensitivity for specificity).
func buildMatchers(idx *refidx.Index, cfg *config.Config) []*seedmatch.Matcher {
	lengths := idx.SeedLengths()
	matchers := make([]*seedmatch.Matcher, len(lengths))
	for i, l := range lengths {
		matchers[i] = seedmatch.New(idx, cfg, l)
	}
	return matchers
}

// alignPhase runs every project's tiles through the seed matcher and
// template builder, routing resulting fragments into that project's
// bins. Each tile is staged as a pargo pipeline (DOMAIN STACK: "align
// per-tile matcher+builder stage — staged as pargo pipeline nodes"),
// mirroring sam.InputFile.RunPipeline's Source/LimitedPar/Receive
// shape.
func alignPhase(cfg *config.Config, idx *refidx.Index, states []*projectState, stats *aggregator) error {
	matchers := buildMatchers(idx, cfg)
	tracker := tls.New(cfg, internal.Max(cfg.CoresMax, 1))

	for _, ps := range states {
		partitioner := binio.NewPartitioner(ps.binsDir, ps.boundaries, cfg)
		for _, tile := range ps.project.Tiles {
			loader := tileio.NewLoader(tile.TileID, tile.Mates, cfg)
			p := new(pipeline.Pipeline)
			p.Source(loader)
			p.Add(pipeline.LimitedPar(cfg.CoresMax, matchAndBuild(cfg, idx, matchers, tracker, partitioner, ps.project.ReadGroup.Barcode, stats)))
			p.Run()
			if err := p.Err(); err != nil {
				_ = partitioner.Close()
				return fmt.Errorf("tile %s: %w", tile.TileID, err)
			}
		}
		if err := partitioner.Close(); err != nil {
			return err
		}
	}
	return nil
}

// matchAndBuild returns the pargo pipeline.Filter that turns one
// loaded tileio.Batch into routed bin writes: group its reads by
// cluster, seed-match and template-build each cluster, then hand the
// result to partitioner.Route. Grounded on sam.AlignmentToBytes's
// shape (a Filter closing over the state its receiver needs).
func matchAndBuild(cfg *config.Config, idx *refidx.Index, matchers []*seedmatch.Matcher, tracker *tls.Tracker, partitioner *binio.Partitioner, barcode string, stats *aggregator) pipeline.Filter {
	return func(p *pipeline.Pipeline, _ pipeline.NodeKind, _ *int) (receiver pipeline.Receiver, _ pipeline.Finalizer) {
		receiver = func(_ int, data interface{}) interface{} {
			batch, ok := data.(*tileio.Batch)
			if !ok || batch == nil {
				return data
			}
			for _, reads := range groupByCluster(batch.Reads) {
				mates := make([]template.MateInput, len(reads))
				for i, r := range reads {
					var cands []seedmatch.Candidate
					for _, m := range matchers {
						c, s := m.Match(r.Bases, r.Quality)
						stats.addSeedStats(s)
						cands = append(cands, c...)
					}
					mates[i] = template.MateInput{Bases: r.Bases, Quality: r.Quality, Candidates: dedupeCandidates(cands)}
				}
				t := template.Build(reads[0].ClusterID, barcode, mates, idx, tracker, cfg)
				stats.addTemplateState(t.State)
				if err := partitioner.Route(reads[0].ClusterID, &t); err != nil {
					p.SetErr(err)
					return data
				}
			}
			return data
		}
		return
	}
}

// groupByCluster splits a batch's reads into per-cluster slices,
// preserving the mate ordering (0, then 1) each cluster's reads were
// read in. Batches are tile-local and at most clustersAtATimeMax
// clusters, so an in-memory map is cheap.
func groupByCluster(reads []tileio.Read) [][]tileio.Read {
	order := make([]int64, 0, len(reads))
	byCluster := make(map[int64][]tileio.Read, len(reads))
	for _, r := range reads {
		if _, seen := byCluster[r.ClusterID]; !seen {
			order = append(order, r.ClusterID)
		}
		byCluster[r.ClusterID] = append(byCluster[r.ClusterID], r)
	}
	out := make([][]tileio.Read, len(order))
	for i, id := range order {
		out[i] = byCluster[id]
	}
	return out
}

// dedupeCandidates removes exact (position, strand) duplicates that
// arise when more than one configured seed length's matcher finds the
// same reference position, compacting in place the way
// sam.ComposeFilters compacts its alignment slice in place.
func dedupeCandidates(cands []seedmatch.Candidate) []seedmatch.Candidate {
	if len(cands) < 2 {
		return cands
	}
	type key struct {
		pos    refpos.Position
		strand int8
	}
	seen := make(map[key]bool, len(cands))
	out := cands[:0]
	for _, c := range cands {
		k := key{c.Position, c.Strand}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

func writeSnapshot(path string, snap Snapshot) error {
	return writeJSON(path, snap)
}

// writeProject merges every bin belonging to ps's project and streams
// the result into its final compressed alignment file plus a
// position index (spec.md §4.6, §4.7). Bins are visited in bin-id
// order, which is already (contigIndex, start) order except for where
// the unmapped bin sits; spec.md §4.6 lets an implementer choose
// whether unaligned fragments trail the file (putUnalignedInTheBack)
// or are emitted inline as a dedicated bin, so this repo always
// treats "inline" as "first", immediately after the header, since
// unaligned fragments carry no reference position to interleave by.
func writeProject(cfg *config.Config, idx *refidx.Index, sites *knownsites.Set, ps *projectState, invocation string) error {
	merger := binmerge.New(cfg, idx, sites)

	bins := make([]refpos.Range, len(ps.boundaries))
	copy(bins, ps.boundaries)
	if !cfg.PutUnalignedInTheBack && len(bins) > 0 {
		last := bins[len(bins)-1]
		copy(bins[1:], bins[:len(bins)-1])
		bins[0] = last
	}

	dir := outputDir(cfg, ps.project)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	outPath := filepath.Join(dir, ps.project.Name+".alp")
	idxPath := outPath + ".idx"

	outFile, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	header := outwriter.BuildHeader(idx, []outwriter.ReadGroup{ps.project.ReadGroup}, invocation)
	writer, err := outwriter.New(outFile, header, ps.project.ReadGroup.ID, cfg, idx)
	if err != nil {
		return err
	}

	outIndex := &outwriter.Index{}
	var duplicates int64
	for _, r := range bins {
		records, err := merger.MergeBin(filepath.Join(ps.binsDir, binio.FileName(r)))
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}
		for _, rec := range records {
			if rec.Fragment.Duplicate {
				duplicates++
			}
		}
		if err := writer.Flush(); err != nil {
			return err
		}
		outIndex.Add(r.Contig, r.Start, writer.FileOffset())
		if err := writer.WriteBin(records); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if duplicates > 0 {
		log.Printf("%s: marked %d duplicate fragments", ps.project.Name, duplicates)
	}

	idxFile, err := os.Create(idxPath)
	if err != nil {
		return err
	}
	defer idxFile.Close()
	if _, err := outIndex.WriteTo(idxFile); err != nil {
		return err
	}

	if cfg.BamProduceMd5 {
		sum, ok := writer.MD5Sum()
		if ok {
			if err := os.WriteFile(outPath+".md5", []byte(sum+"\n"), 0600); err != nil {
				return err
			}
		}
	}
	return nil
}
