// Package workflow drives one alignment run through its four-phase
// pipeline (spec.md §2): loading tiles, matching seeds and building
// templates, partitioning into bins (Aligned); finalizing run
// statistics (Reported); merging and writing the final output files
// (Written); and optional temp cleanup (Done). It is grounded on
// spec.md §9's redesign note for the original's "stateful workflow
// class with step()/rewind()": "model as an explicit finite state
// machine with named transitions and a persisted on-disk marker of
// the last completed state."
package workflow

import "fmt"

// State is a run's position in the pipeline (spec.md §2).
type State int

const (
	Start State = iota
	Aligned
	Reported
	Written
	Done
)

func (s State) String() string {
	switch s {
	case Start:
		return "Start"
	case Aligned:
		return "Aligned"
	case Reported:
		return "Reported"
	case Written:
		return "Written"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// legalNext names the only state a forward transition from a given
// state may reach; the workflow never skips a phase.
var legalNext = map[State]State{
	Start:    Aligned,
	Aligned:  Reported,
	Reported: Written,
	Written:  Done,
}

// FSM tracks one run's current state, persisting it to an on-disk
// marker after every transition so a crashed run can resume from the
// last completed state (spec.md §7, "On restart, workflow rewinds to
// last completed state; partial bin files are discarded").
type FSM struct {
	dir    string
	marker *Marker
}

// Resume loads (or creates, for a fresh run) the marker under dir and
// returns an FSM positioned at its recorded state. It does not
// discard any on-disk artifacts itself; callers that know where those
// artifacts live call Rewind with a cleanup function once resumed, to
// cover the case where a previous run crashed mid-transition and left
// artifacts for a state beyond the one the marker recorded.
func Resume(dir string) (*FSM, error) {
	m, err := LoadMarker(dir)
	if err != nil {
		return nil, err
	}
	return &FSM{dir: dir, marker: m}, nil
}

// State reports the FSM's current, persisted state.
func (f *FSM) State() State { return f.marker.State }

// RunID reports the run id embedded in the FSM's marker.
func (f *FSM) RunID() string { return f.marker.RunID }

// Advance transitions the FSM to the only state legally reachable
// from its current one, persisting the marker. Advancing to the
// state the FSM is already at is a no-op, making Advance idempotent
// across a resumed run that re-executes a phase whose output already
// exists on disk.
func (f *FSM) Advance(to State) error {
	if f.marker.State == to {
		return nil
	}
	if want, ok := legalNext[f.marker.State]; !ok || want != to {
		return fmt.Errorf("workflow: cannot advance from %s to %s", f.marker.State, to)
	}
	f.marker.State = to
	return f.marker.Save(f.dir)
}

// Rewind resets the FSM to an earlier (or equal) state, first calling
// cleanup(to) so the caller can discard whatever on-disk artifacts
// belong to states after to — the partial-bin-file discard spec.md §7
// requires on restart. cleanup may be nil if there is nothing to
// discard (a fresh run rewinding Start to Start).
func (f *FSM) Rewind(to State, cleanup func(to State) error) error {
	if cleanup != nil {
		if err := cleanup(to); err != nil {
			return err
		}
	}
	f.marker.State = to
	return f.marker.Save(f.dir)
}
