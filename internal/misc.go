package internal

import (
	"fmt"

	"github.com/exascience/pargo/pipeline"
)

// RunPipeline runs p and turns a pipeline error into a panic, the way
// the teacher's internal.RunPipeline does for its own pargo pipelines.
// Stage code that cannot itself recover from an error (spec.md §7,
// "Arithmetic/assertion violation") uses this instead of threading an
// error return through call sites that have no way to act on it.
func RunPipeline(p *pipeline.Pipeline) {
	p.Run()
	if err := p.Err(); err != nil {
		panic(err)
	}
}

// StageError wraps an error with the pipeline stage it occurred in,
// matching the user-visible diagnostic line required by spec.md §7:
// "Aligner failed at <stage>: <reason>".
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("Aligner failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Wrap returns err annotated with the stage it happened in, or nil if
// err is nil.
func Wrap(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
