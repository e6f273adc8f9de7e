package internal

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// SetLogOutput redirects the default logger to a file named
// <prefix>.log inside dir, or leaves it on stderr if dir is empty.
// Mirrors the teacher's cmd.setLogOutput: every subcommand gets its
// own log file so concurrent runs in the same temp directory don't
// interleave.
func SetLogOutput(dir, prefix string) (io.Closer, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(dir, prefix+".log"))
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return f, nil
}

// Fatalf is log.Fatalf, isolated so tests can replace it and so
// "Arithmetic/assertion violation" failures (spec.md error taxonomy)
// have one call site to audit.
var Fatalf = log.Fatalf

// Panicf is log.Panicf under the same rationale as Fatalf.
var Panicf = log.Panicf
