// Package config holds the alignment workflow's algorithm and
// resource parameters. The CLI (cmd/align.go) covers a handful of
// these as flags; everything else is read from a YAML file, the way
// svync's ReadConfig decodes its pipeline configuration with
// gopkg.in/yaml.v2 and then fills in any field the file left zero.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v2"
)

// RealignMode selects the gap-realignment strategy used by the bin
// merger (spec.md §4.6).
type RealignMode string

const (
	RealignOff    RealignMode = "off"
	RealignSample RealignMode = "sample"
	RealignCohort RealignMode = "cohort"
)

// Tag names that may be requested on output alignments (spec.md §6).
const (
	TagAS = "AS"
	TagBC = "BC"
	TagNM = "NM"
	TagOC = "OC"
	TagRG = "RG"
	TagSM = "SM"
	TagZX = "ZX"
	TagZY = "ZY"
)

// Config collects every named knob in spec.md §4-§6. Zero-value fields
// left unset by a YAML file are filled in by SetDefaults.
type Config struct {
	// Input / tile loader (§4.2)
	ClustersAtATimeMax   int    `yaml:"clustersAtATimeMax"`
	IgnoreMissingBcls    bool   `yaml:"ignoreMissingBcls"`
	IgnoreMissingFilters bool   `yaml:"ignoreMissingFilters"`
	BaseQualityCutoff    byte   `yaml:"baseQualityCutoff"`
	ApplyPFFilter        bool   `yaml:"applyPFFilter"`
	TileRanges           string `yaml:"tileRanges"`

	// Reference (§4.1, §6)
	ReferenceMetadataPath string `yaml:"referenceMetadataPath"`
	DecoyRegex            string `yaml:"decoyRegex"`

	// Seed matcher (§4.3)
	SeedBaseQualityMin         byte  `yaml:"seedBaseQualityMin"`
	MatchFinderTooManyRepeats  int   `yaml:"matchFinderTooManyRepeats"`
	MatchFinderWayTooManyRepeats int `yaml:"matchFinderWayTooManyRepeats"`
	IgnoreNeighbors            bool  `yaml:"ignoreNeighbors"`
	CandidateMatchesMax        int   `yaml:"candidateMatchesMax"`

	// Template builder (§4.4)
	GappedMismatchesMax          int     `yaml:"gappedMismatchesMax"`
	SmithWatermanGapSizeMax      int32   `yaml:"smithWatermanGapSizeMax"`
	MatchScore                   int32   `yaml:"matchScore"`
	MismatchPenalty              int32   `yaml:"mismatchPenalty"`
	GapOpenPenalty                int32  `yaml:"gapOpenPenalty"`
	GapExtendPenalty              int32  `yaml:"gapExtendPenalty"`
	MinGapExtendPenalty           int32  `yaml:"minGapExtendPenalty"`
	SplitGapLength                 int32 `yaml:"splitGapLength"`
	SmartGapped                   bool   `yaml:"smartGapped"`
	TrimPEAdapters                 bool  `yaml:"trimPEAdapters"`
	ClipSemialigned                bool  `yaml:"clipSemialigned"`
	MateDriftRange                 float64 `yaml:"mateDriftRange"`
	MateDriftRangeDuringTraining    float64 `yaml:"mateDriftRangeDuringTraining"`
	AnomalousPairHandicap           int32  `yaml:"anomalousPairHandicap"`
	RescueShadows                   bool   `yaml:"rescueShadows"`
	MatchFinderShadowSplitRepeats   float64 `yaml:"matchFinderShadowSplitRepeats"`
	ScatterRepeats                  bool   `yaml:"scatterRepeats"`
	DodgyAlignmentScore             int32  `yaml:"dodgyAlignmentScore"`
	MarkDodgyAsUnaligned            bool   `yaml:"markDodgyAsUnaligned"`
	SplitAlignments                 bool   `yaml:"splitAlignments"`
	GenomeLength                    int64  `yaml:"genomeLength"`
	ReadLength                      int32  `yaml:"readLength"`

	// TLS (§3)
	TLSTrainingSize int `yaml:"tlsTrainingSize"`

	// Bin partitioner (§4.5)
	TargetBinSizeFragments int     `yaml:"targetBinSizeFragments"`
	EstimatedFragmentSize  int     `yaml:"estimatedFragmentSize"`
	ExpectedCoverage       float64 `yaml:"expectedCoverage"`
	MaxReadLength          int32   `yaml:"maxReadLength"`
	PreSortBins            bool    `yaml:"preSortBins"`

	// Bin merger / realigner (§4.6)
	RealignGaps             RealignMode `yaml:"realignGaps"`
	RealignMapqMin          byte        `yaml:"realignMapqMin"`
	RealignedGapsPerFragment int        `yaml:"realignedGapsPerFragment"`
	Vigorous                bool        `yaml:"vigorous"`
	MarkDuplicates          bool        `yaml:"markDuplicates"`
	SingleLibrarySamples    bool        `yaml:"singleLibrarySamples"`
	KeepDuplicates          bool        `yaml:"keepDuplicates"`
	PutUnalignedInTheBack   bool        `yaml:"putUnalignedInTheBack"`
	KnownIndelsPath         string      `yaml:"knownIndelsPath"`

	// Output writer (§4.7)
	BamGzipLevel   int  `yaml:"bamGzipLevel"`
	BamProduceMd5  bool `yaml:"bamProduceMd5"`
	OutputTags     []string `yaml:"outputTags"`

	// Resources / concurrency (§5)
	CoresMax         int `yaml:"coresMax"`
	InputLoadersMax  int `yaml:"inputLoadersMax"`
	TempSaversMax    int `yaml:"tempSaversMax"`
	TempLoadersMax   int `yaml:"tempLoadersMax"`
	OutputSaversMax  int `yaml:"outputSaversMax"`
	MemoryBudgetMB   int `yaml:"memoryBudgetMB"`

	// Paths / housekeeping (§6, §7)
	TempDirectory       string `yaml:"tempDirectory"`
	OutputDirectory     string `yaml:"outputDirectory"`
	CleanupIntermediary bool   `yaml:"cleanupIntermediary"`
	LogPath             string `yaml:"logPath"`

	decoyPattern *regexp.Regexp
}

// Load reads a YAML configuration file and fills in unset fields with
// SetDefaults, the way svync_api.ReadConfig decodes then calls
// defineMissing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	cfg.SetDefaults()
	if err := cfg.compile(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every zero-valued field with the defaults implied
// by spec.md. Exported so the CLI can build a Config purely from flags
// in the absence of a -config file.
func (c *Config) SetDefaults() {
	setDefault(&c.ClustersAtATimeMax, 100000)
	setDefault(&c.BaseQualityCutoff, byte(2))
	setDefault(&c.SeedBaseQualityMin, byte(10))
	setDefault(&c.MatchFinderTooManyRepeats, 16)
	setDefault(&c.MatchFinderWayTooManyRepeats, 256)
	setDefault(&c.CandidateMatchesMax, 32)
	setDefault(&c.GappedMismatchesMax, 3)
	setDefault(&c.SmithWatermanGapSizeMax, int32(7))
	setDefault(&c.MatchScore, int32(2))
	setDefault(&c.MismatchPenalty, int32(-6))
	setDefault(&c.GapOpenPenalty, int32(-15))
	setDefault(&c.GapExtendPenalty, int32(-3))
	setDefault(&c.MinGapExtendPenalty, int32(-1))
	setDefault(&c.SplitGapLength, int32(10))
	setDefault(&c.MateDriftRange, 3.0)
	setDefault(&c.MateDriftRangeDuringTraining, 6.0)
	setDefault(&c.AnomalousPairHandicap, int32(20))
	setDefault(&c.MatchFinderShadowSplitRepeats, 3.0)
	setDefault(&c.DodgyAlignmentScore, int32(3))
	setDefault(&c.GenomeLength, int64(3_100_000_000))
	setDefault(&c.ReadLength, int32(150))
	setDefault(&c.TLSTrainingSize, 10000)
	setDefault(&c.TargetBinSizeFragments, 5_000_000)
	setDefault(&c.EstimatedFragmentSize, 200)
	setDefault(&c.ExpectedCoverage, 30.0)
	setDefault(&c.MaxReadLength, c.ReadLength)
	setDefault(&c.RealignGaps, RealignSample)
	setDefault(&c.RealignMapqMin, byte(20))
	setDefault(&c.RealignedGapsPerFragment, 2)
	setDefault(&c.BamGzipLevel, 6)
	setDefault(&c.CoresMax, 0)
	setDefault(&c.InputLoadersMax, 2)
	setDefault(&c.TempSaversMax, 4)
	setDefault(&c.TempLoadersMax, 4)
	setDefault(&c.OutputSaversMax, 2)
	setDefault(&c.TempDirectory, os.TempDir())
	if len(c.OutputTags) == 0 {
		c.OutputTags = []string{TagRG, TagNM, TagAS}
	}
	// TrimPEAdapters, ClipSemialigned, RescueShadows, ScatterRepeats,
	// MarkDuplicates, PreSortBins, SmartGapped and MarkDodgyAsUnaligned
	// default to false, matching the teacher's convention that
	// best-practice toggles are opt-in flags rather than implicit
	// behavior (cmd/filter.go: every bool flag defaults false).
}

// setDefault assigns def to *field only if *field is the zero value.
func setDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

func (c *Config) compile() error {
	if c.DecoyRegex != "" {
		re, err := regexp.Compile(c.DecoyRegex)
		if err != nil {
			return fmt.Errorf("invalid decoyRegex %q: %w", c.DecoyRegex, err)
		}
		c.decoyPattern = re
	}
	return nil
}

// IsDecoy reports whether contigName matches the configured decoy
// regex. An empty DecoyRegex never matches. A DecoyRegex set after
// Load compiled it (e.g. from -decoy-regex) is matched directly; an
// invalid one never matches.
func (c *Config) IsDecoy(contigName string) bool {
	if c.DecoyRegex == "" {
		return false
	}
	if c.decoyPattern == nil || c.decoyPattern.String() != c.DecoyRegex {
		matched, err := regexp.MatchString(c.DecoyRegex, contigName)
		return err == nil && matched
	}
	return c.decoyPattern.MatchString(contigName)
}

// HasTag reports whether tag was requested in OutputTags.
func (c *Config) HasTag(tag string) bool {
	for _, t := range c.OutputTags {
		if t == tag {
			return true
		}
	}
	return false
}
