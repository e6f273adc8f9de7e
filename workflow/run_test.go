package workflow

import (
	"errors"
	"testing"

	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/refpos"
	"github.com/seqalign/alignpipe/seedmatch"
	"github.com/seqalign/alignpipe/template"
	"github.com/seqalign/alignpipe/tileio"
)

func TestGroupByClusterPreservesFirstSeenOrder(t *testing.T) {
	reads := []tileio.Read{
		{ClusterID: 5, Mate: 0},
		{ClusterID: 2, Mate: 0},
		{ClusterID: 5, Mate: 1},
		{ClusterID: 2, Mate: 1},
	}
	groups := groupByCluster(reads)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0][0].ClusterID != 5 || len(groups[0]) != 2 {
		t.Errorf("group 0 = %+v, want cluster 5 with 2 reads", groups[0])
	}
	if groups[1][0].ClusterID != 2 || len(groups[1]) != 2 {
		t.Errorf("group 1 = %+v, want cluster 2 with 2 reads", groups[1])
	}
	if groups[0][0].Mate != 0 || groups[0][1].Mate != 1 {
		t.Errorf("group 0 mate order = %d,%d, want 0,1", groups[0][0].Mate, groups[0][1].Mate)
	}
}

func TestGroupByClusterEmptyInput(t *testing.T) {
	if got := groupByCluster(nil); len(got) != 0 {
		t.Errorf("groupByCluster(nil) = %+v, want empty", got)
	}
}

func TestDedupeCandidatesRemovesExactDuplicates(t *testing.T) {
	p1 := refpos.Position{Contig: 0, Offset: 100}
	p2 := refpos.Position{Contig: 0, Offset: 200}
	cands := []seedmatch.Candidate{
		{Position: p1, Strand: 0},
		{Position: p1, Strand: 0}, // exact duplicate, from a second seed length
		{Position: p1, Strand: 1}, // same position, different strand: distinct
		{Position: p2, Strand: 0},
	}
	got := dedupeCandidates(cands)
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3: %+v", len(got), got)
	}
	seen := map[seedmatch.Candidate]bool{}
	for _, c := range got {
		key := seedmatch.Candidate{Position: c.Position, Strand: c.Strand}
		if seen[key] {
			t.Errorf("duplicate survived dedupe: %+v", c)
		}
		seen[key] = true
	}
}

func TestDedupeCandidatesShortInputUnchanged(t *testing.T) {
	none := dedupeCandidates(nil)
	if len(none) != 0 {
		t.Errorf("dedupeCandidates(nil) = %+v, want empty", none)
	}
	one := []seedmatch.Candidate{{Position: refpos.Position{Contig: 1, Offset: 1}}}
	got := dedupeCandidates(one)
	if len(got) != 1 {
		t.Errorf("dedupeCandidates(single) = %+v, want unchanged single-element slice", got)
	}
}

func TestPreconditionErrorWrapsAndUnwraps(t *testing.T) {
	base := errors.New("reference metadata not found")
	err := precondition("opening reference", base)
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("precondition() did not produce a *PreconditionError: %v", err)
	}
	if !errors.Is(err, base) {
		t.Errorf("errors.Is(err, base) = false, want true (Unwrap chain broken)")
	}
}

func TestPreconditionNilError(t *testing.T) {
	if err := precondition("opening reference", nil); err != nil {
		t.Errorf("precondition(stage, nil) = %v, want nil", err)
	}
}

func TestAggregatorSnapshotIsIndependentCopy(t *testing.T) {
	a := newAggregator()
	a.addSeedStats(seedmatch.Stats{Unique: 3, NoMatch: 1})
	a.addTemplateState(template.ProperPair)
	a.addTemplateState(template.ProperPair)
	a.addTemplateState(template.Unaligned)

	snap := a.snapshot()
	if snap.Seeds.Unique != 3 || snap.Seeds.NoMatch != 1 {
		t.Errorf("snapshot seed stats = %+v, want Unique=3 NoMatch=1", snap.Seeds)
	}
	if snap.States[template.ProperPair] != 2 {
		t.Errorf("snapshot States[ProperPair] = %d, want 2", snap.States[template.ProperPair])
	}
	if snap.States[template.Unaligned] != 1 {
		t.Errorf("snapshot States[Unaligned] = %d, want 1", snap.States[template.Unaligned])
	}

	// mutating the returned snapshot's map must not affect the aggregator's
	// internal state, since snapshot() is documented to deep-copy it.
	snap.States[template.ProperPair] = 999
	again := a.snapshot()
	if again.States[template.ProperPair] != 2 {
		t.Errorf("aggregator state leaked through a mutated snapshot: got %d, want 2", again.States[template.ProperPair])
	}
}

func TestAggregatorConcurrentUpdates(t *testing.T) {
	a := newAggregator()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				a.addSeedStats(seedmatch.Stats{Unique: 1})
				a.addTemplateState(template.ProperPair)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	snap := a.snapshot()
	if snap.Seeds.Unique != 800 {
		t.Errorf("Seeds.Unique = %d, want 800", snap.Seeds.Unique)
	}
	if snap.States[template.ProperPair] != 800 {
		t.Errorf("States[ProperPair] = %d, want 800", snap.States[template.ProperPair])
	}
}

func TestOutputDirIsPerProject(t *testing.T) {
	cfg := &config.Config{OutputDirectory: "/out"}
	got := outputDir(cfg, Project{Name: "sample1"})
	want := "/out/sample1"
	if got != want {
		t.Errorf("outputDir = %q, want %q", got, want)
	}
}
