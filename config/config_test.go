package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetDefaultsFillsZeroFields(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.ClustersAtATimeMax != 100000 {
		t.Errorf("ClustersAtATimeMax = %d, want 100000", cfg.ClustersAtATimeMax)
	}
	if cfg.RealignGaps != RealignSample {
		t.Errorf("RealignGaps = %q, want %q", cfg.RealignGaps, RealignSample)
	}
	if len(cfg.OutputTags) != 3 {
		t.Errorf("OutputTags = %v, want 3 default tags", cfg.OutputTags)
	}
	if cfg.MaxReadLength != cfg.ReadLength {
		t.Errorf("MaxReadLength = %d, want it to default to ReadLength (%d)", cfg.MaxReadLength, cfg.ReadLength)
	}
}

func TestSetDefaultsDoesNotOverrideExplicitValues(t *testing.T) {
	cfg := Config{ClustersAtATimeMax: 42, RealignGaps: RealignOff}
	cfg.SetDefaults()
	if cfg.ClustersAtATimeMax != 42 {
		t.Errorf("ClustersAtATimeMax = %d, want unchanged 42", cfg.ClustersAtATimeMax)
	}
	if cfg.RealignGaps != RealignOff {
		t.Errorf("RealignGaps = %q, want unchanged %q", cfg.RealignGaps, RealignOff)
	}
}

func TestSetDefaultsExplicitOutputTagsSurvive(t *testing.T) {
	cfg := Config{OutputTags: []string{TagZX}}
	cfg.SetDefaults()
	if len(cfg.OutputTags) != 1 || cfg.OutputTags[0] != TagZX {
		t.Errorf("OutputTags = %v, want unchanged [%q]", cfg.OutputTags, TagZX)
	}
}

func TestHasTag(t *testing.T) {
	cfg := Config{OutputTags: []string{TagRG, TagNM}}
	if !cfg.HasTag(TagRG) {
		t.Error("HasTag(TagRG) = false, want true")
	}
	if cfg.HasTag(TagAS) {
		t.Error("HasTag(TagAS) = true, want false")
	}
}

func TestIsDecoyWithoutPattern(t *testing.T) {
	cfg := Config{}
	if cfg.IsDecoy("chrUn_gl000220") {
		t.Error("IsDecoy with no configured regex should never match")
	}
}

func TestIsDecoyWithPattern(t *testing.T) {
	cfg := Config{DecoyRegex: `^chrUn`}
	if err := cfg.compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !cfg.IsDecoy("chrUn_gl000220") {
		t.Error("IsDecoy(\"chrUn_gl000220\") = false, want true")
	}
	if cfg.IsDecoy("chr1") {
		t.Error("IsDecoy(\"chr1\") = true, want false")
	}
}

func TestCompileRejectsInvalidRegex(t *testing.T) {
	cfg := Config{DecoyRegex: "("}
	if err := cfg.compile(); err == nil {
		t.Error("expected an error compiling an invalid decoyRegex")
	}
}

func TestLoadReadsYAMLAndAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "clustersAtATimeMax: 500\noutputDirectory: /out\n"
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ClustersAtATimeMax != 500 {
		t.Errorf("ClustersAtATimeMax = %d, want 500 (from YAML)", cfg.ClustersAtATimeMax)
	}
	if cfg.OutputDirectory != "/out" {
		t.Errorf("OutputDirectory = %q, want \"/out\"", cfg.OutputDirectory)
	}
	// a field left unset in the YAML should still get its default.
	if cfg.BamGzipLevel != 6 {
		t.Errorf("BamGzipLevel = %d, want default 6", cfg.BamGzipLevel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error loading a nonexistent config file")
	}
}
