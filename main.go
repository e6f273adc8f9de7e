package main

import (
	"fmt"
	"os"

	"github.com/seqalign/alignpipe/cmd"
)

const usage = "Usage: alignpipe align [options]\n"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	switch os.Args[1] {
	case "align":
		cmd.Align(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}
