package rawinput

import (
	"path/filepath"
	"testing"
)

func TestFlatFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0001.r1")
	w, err := CreateFlatFile(path, 4)
	if err != nil {
		t.Fatalf("CreateFlatFile: %v", err)
	}
	clusters := []Cluster{
		{Bases: []byte("ACGT"), Quality: []byte{30, 30, 30, 30}, PF: true},
		{Bases: []byte("TTTT"), Quality: []byte{2, 2, 2, 2}, PF: false},
	}
	for _, c := range clusters {
		if err := w.WriteCluster(c); err != nil {
			t.Fatalf("WriteCluster: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src, err := OpenFlatFile("0001", path, MissingFilePolicy{})
	if err != nil {
		t.Fatalf("OpenFlatFile: %v", err)
	}
	defer src.Close()

	if src.TileID() != "0001" {
		t.Errorf("TileID() = %q, want \"0001\"", src.TileID())
	}

	for i, want := range clusters {
		got, ok, err := src.Next()
		if err != nil {
			t.Fatalf("Next() at %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("Next() at %d: ok=false, want a cluster", i)
		}
		if string(got.Bases) != string(want.Bases) {
			t.Errorf("cluster %d bases = %q, want %q", i, got.Bases, want.Bases)
		}
		if got.PF != want.PF {
			t.Errorf("cluster %d PF = %v, want %v", i, got.PF, want.PF)
		}
	}

	if _, ok, err := src.Next(); ok || err != nil {
		t.Errorf("Next() past end = ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}

func TestFlatFileWriteClusterWrongLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "0002.r1")
	w, err := CreateFlatFile(path, 4)
	if err != nil {
		t.Fatalf("CreateFlatFile: %v", err)
	}
	defer w.Close()
	err = w.WriteCluster(Cluster{Bases: []byte("AC"), Quality: []byte{1, 2}})
	if err == nil {
		t.Error("expected an error writing a cluster shorter than the configured read length")
	}
}

func TestOpenFlatFileMissingWithoutPolicyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.r1")
	if _, err := OpenFlatFile("0003", path, MissingFilePolicy{}); err == nil {
		t.Error("expected an error opening a missing tile file with no ignore policy set")
	}
}

func TestOpenFlatFileMissingWithPolicyYieldsEmptyTile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.r1")
	src, err := OpenFlatFile("0003", path, MissingFilePolicy{IgnoreMissingBcls: true})
	if err != nil {
		t.Fatalf("OpenFlatFile with ignore policy: %v", err)
	}
	defer src.Close()
	if _, ok, err := src.Next(); ok || err != nil {
		t.Errorf("Next() on a tolerated missing tile = ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}
