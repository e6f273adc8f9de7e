package cmd

import (
	"reflect"
	"testing"

	"github.com/seqalign/alignpipe/config"
)

func TestParseTileRangesSingleAndRange(t *testing.T) {
	got, err := parseTileRanges("1-3,7")
	if err != nil {
		t.Fatalf("parseTileRanges: %v", err)
	}
	want := []string{"0001", "0002", "0003", "0007"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseTileRanges(\"1-3,7\") = %v, want %v", got, want)
	}
}

func TestParseTileRangesEmptySpec(t *testing.T) {
	if _, err := parseTileRanges(""); err == nil {
		t.Error("expected an error for an empty tile range spec")
	}
}

func TestParseTileRangesRejectsBackwardsRange(t *testing.T) {
	if _, err := parseTileRanges("9-3"); err == nil {
		t.Error("expected an error for a range whose end precedes its start")
	}
}

func TestParseTileRangesRejectsGarbage(t *testing.T) {
	if _, err := parseTileRanges("abc"); err == nil {
		t.Error("expected an error for a non-numeric tile range")
	}
}

func TestOverrideConfigOnlyTouchesNonEmptyFields(t *testing.T) {
	cfg := &config.Config{ReferenceMetadataPath: "original.xml", CoresMax: 4}
	overrideConfig(cfg, "", "decoy.*", "", "", "/out", 0, "1-2")
	if cfg.ReferenceMetadataPath != "original.xml" {
		t.Errorf("ReferenceMetadataPath = %q, want unchanged \"original.xml\"", cfg.ReferenceMetadataPath)
	}
	if cfg.DecoyRegex != "decoy.*" {
		t.Errorf("DecoyRegex = %q, want \"decoy.*\"", cfg.DecoyRegex)
	}
	if cfg.OutputDirectory != "/out" {
		t.Errorf("OutputDirectory = %q, want \"/out\"", cfg.OutputDirectory)
	}
	if cfg.CoresMax != 4 {
		t.Errorf("CoresMax = %d, want unchanged 4", cfg.CoresMax)
	}
	if cfg.TileRanges != "1-2" {
		t.Errorf("TileRanges = %q, want \"1-2\"", cfg.TileRanges)
	}
}

func TestLoadConfigWithoutPathUsesDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\"): %v", err)
	}
	if cfg.ClustersAtATimeMax == 0 {
		t.Error("loadConfig(\"\") should have applied defaults, ClustersAtATimeMax is still 0")
	}
}
