// Package cmd implements the thin CLI surface spec.md §1 and §6 call
// for: flag parsing, YAML config loading, and tile/project resolution
// are command-line concerns the core pipeline package (workflow) does
// not own.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/internal"
	"github.com/seqalign/alignpipe/outwriter"
	"github.com/seqalign/alignpipe/rawinput"
	"github.com/seqalign/alignpipe/workflow"
)

// AlignHelp is the help string for the align command, grouped the way
// spec.md §6 groups the CLI surface: input, reference, algorithm
// (left to -config, since there are dozens of knobs), resources,
// output.
const AlignHelp = "Align parameters:\n" +
	"align -base-calls-dir dir -reference metadata.xml -output-dir dir\n" +
	"[-config config.yaml]\n" +
	"[-tile-ranges 1-8,12]\n" +
	"[-decoy-regex regex]\n" +
	"[-known-indels path]\n" +
	"[-temp-dir dir]\n" +
	"[-cores-max n]\n" +
	"[-paired-end]\n" +
	"[-read-group-id id] [-sample name] [-library name] [-barcode barcode]\n" +
	"[-log-path dir]\n"

// Align implements the align command: load configuration, resolve
// tiles named by -tile-ranges into rawinput.Sources, and hand one
// Project to workflow.Run. Exit codes follow spec.md §6: 0 success, 1
// unrecoverable error, 2 precondition failure.
func Align(args []string) {
	flags := flag.NewFlagSet("align", flag.ContinueOnError)

	var (
		configPath     string
		baseCallsDir   string
		tileRanges     string
		referencePath  string
		decoyRegex     string
		knownIndels    string
		tempDir        string
		outputDir      string
		coresMax       int
		pairedEnd      bool
		readGroupID    string
		sample         string
		library        string
		barcode        string
		logPath        string
	)

	flags.StringVar(&configPath, "config", "", "YAML file with algorithm/resource parameters")
	flags.StringVar(&baseCallsDir, "base-calls-dir", "", "directory containing per-tile raw input files")
	flags.StringVar(&tileRanges, "tile-ranges", "", "tile ids/ranges to process, e.g. 1-8,12")
	flags.StringVar(&referencePath, "reference", "", "reference metadata file")
	flags.StringVar(&decoyRegex, "decoy-regex", "", "regex matching decoy contig names")
	flags.StringVar(&knownIndels, "known-indels", "", "known-indels variant file used by the realigner")
	flags.StringVar(&tempDir, "temp-dir", "", "temporary directory for tile fragments and bins")
	flags.StringVar(&outputDir, "output-dir", "", "output directory for per-project alignment files")
	flags.IntVar(&coresMax, "cores-max", 0, "maximum worker goroutines (0 = GOMAXPROCS)")
	flags.BoolVar(&pairedEnd, "paired-end", false, "treat input tiles as paired-end")
	flags.StringVar(&readGroupID, "read-group-id", "", "read group id for the output @RG line")
	flags.StringVar(&sample, "sample", "", "sample name for the output @RG line")
	flags.StringVar(&library, "library", "", "library name for the output @RG line")
	flags.StringVar(&barcode, "barcode", "", "barcode for the output @RG line")
	flags.StringVar(&logPath, "log-path", "", "directory to redirect logging output to")

	if err := flags.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, AlignHelp)
		os.Exit(1)
	}

	if closer, err := internal.SetLogOutput(logPath, "align"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	} else if closer != nil {
		defer closer.Close()
	}

	var sanityChecksFailed bool
	if baseCallsDir == "" {
		log.Println("Error: -base-calls-dir is required")
		sanityChecksFailed = true
	}
	if referencePath == "" {
		log.Println("Error: -reference is required")
		sanityChecksFailed = true
	}
	if outputDir == "" {
		log.Println("Error: -output-dir is required")
		sanityChecksFailed = true
	}
	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, AlignHelp)
		os.Exit(2)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Println(err)
		os.Exit(2)
	}
	overrideConfig(cfg, referencePath, decoyRegex, knownIndels, tempDir, outputDir, coresMax, tileRanges)

	projects, err := buildProjects(cfg, baseCallsDir, pairedEnd, readGroupID, sample, library, barcode)
	if err != nil {
		log.Println(err)
		os.Exit(2)
	}

	invocation := "align " + strings.Join(args, " ")
	runErr := workflow.Run(cfg, projects, invocation)
	if runErr == nil {
		os.Exit(0)
	}

	var precondition *workflow.PreconditionError
	if errors.As(runErr, &precondition) {
		log.Println(runErr)
		os.Exit(2)
	}
	log.Println(runErr)
	os.Exit(1)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := &config.Config{}
		cfg.SetDefaults()
		return cfg, nil
	}
	return config.Load(path)
}

func overrideConfig(cfg *config.Config, referencePath, decoyRegex, knownIndels, tempDir, outputDir string, coresMax int, tileRanges string) {
	if referencePath != "" {
		cfg.ReferenceMetadataPath = referencePath
	}
	if decoyRegex != "" {
		cfg.DecoyRegex = decoyRegex
	}
	if knownIndels != "" {
		cfg.KnownIndelsPath = knownIndels
	}
	if tempDir != "" {
		cfg.TempDirectory = tempDir
	}
	if outputDir != "" {
		cfg.OutputDirectory = outputDir
	}
	if coresMax != 0 {
		cfg.CoresMax = coresMax
	}
	if tileRanges != "" {
		cfg.TileRanges = tileRanges
	}
}

// buildProjects resolves -tile-ranges into tile ids and opens one
// rawinput.Source per tile per mate from baseCallsDir, using this
// repo's own FlatFile adapter (rawinput.OpenFlatFile) since resolving
// a real instrument's byte layout is out of scope (spec.md §1). A
// single barcode/read-group is taken from flags, matching the "one
// output file per barcode" model workflow.Project assumes; a run
// covering more than one barcode calls Align once per barcode.
func buildProjects(cfg *config.Config, baseCallsDir string, pairedEnd bool, readGroupID, sample, library, barcode string) ([]workflow.Project, error) {
	tileIDs, err := parseTileRanges(cfg.TileRanges)
	if err != nil {
		return nil, err
	}
	policy := rawinput.MissingFilePolicy{
		IgnoreMissingBcls:    cfg.IgnoreMissingBcls,
		IgnoreMissingFilters: cfg.IgnoreMissingFilters,
	}

	tiles := make([]workflow.TileInput, 0, len(tileIDs))
	for _, id := range tileIDs {
		mate0, err := rawinput.OpenFlatFile(id, filepath.Join(baseCallsDir, id+".r1"), policy)
		if err != nil {
			return nil, err
		}
		mates := []rawinput.Source{mate0}
		if pairedEnd {
			mate1, err := rawinput.OpenFlatFile(id, filepath.Join(baseCallsDir, id+".r2"), policy)
			if err != nil {
				return nil, err
			}
			mates = append(mates, mate1)
		}
		tiles = append(tiles, workflow.TileInput{TileID: id, Mates: mates})
	}

	if readGroupID == "" {
		readGroupID = barcode
	}
	project := workflow.Project{
		Name: readGroupID,
		ReadGroup: outwriter.ReadGroup{
			ID:      readGroupID,
			Sample:  sample,
			Library: library,
			Barcode: barcode,
		},
		Tiles: tiles,
	}
	return []workflow.Project{project}, nil
}

// parseTileRanges parses a comma-separated list of tile ids or
// inclusive dash-ranges ("1-8,12") into zero-padded four-digit ids,
// which buildProjects uses to name each tile's input files
// (<id>.r1, <id>.r2).
func parseTileRanges(spec string) ([]string, error) {
	if spec == "" {
		return nil, fmt.Errorf("no tile ranges given (-tile-ranges)")
	}
	var ids []string
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		lo, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid tile range %q: %w", part, err)
		}
		hi := lo
		if len(bounds) == 2 {
			hi, err = strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid tile range %q: %w", part, err)
			}
		}
		if hi < lo {
			return nil, fmt.Errorf("invalid tile range %q: end before start", part)
		}
		for n := lo; n <= hi; n++ {
			ids = append(ids, fmt.Sprintf("%04d", n))
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("tile ranges %q resolved to no tiles", spec)
	}
	return ids, nil
}
