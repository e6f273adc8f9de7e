package seedmatch

import "testing"

func TestDefaultOffsetsTilesReadLength(t *testing.T) {
	offsets := DefaultOffsets(20, 5, 5)
	want := []int32{0, 5, 10, 15}
	if len(offsets) != len(want) {
		t.Fatalf("got %d offsets, want %d: %v", len(offsets), len(want), offsets)
	}
	for i, o := range want {
		if offsets[i] != o {
			t.Errorf("offsets[%d] = %d, want %d", i, offsets[i], o)
		}
	}
}

func TestDefaultOffsetsZeroStrideDefaultsToSeedLength(t *testing.T) {
	got := DefaultOffsets(10, 5, 0)
	want := DefaultOffsets(10, 5, 5)
	if len(got) != len(want) {
		t.Fatalf("stride=0 produced %v, want same as stride=seedLength %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("offsets[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDefaultOffsetsReadShorterThanSeed(t *testing.T) {
	if got := DefaultOffsets(3, 5, 5); len(got) != 0 {
		t.Errorf("DefaultOffsets with readLen < seedLength = %v, want empty", got)
	}
}

func TestExtractSeedsValidSeed(t *testing.T) {
	bases := []byte("ACGTACGT")
	quality := make([]byte, len(bases))
	for i := range quality {
		quality[i] = 30
	}
	seeds := ExtractSeeds(bases, quality, []int32{0, 4}, 4, 10)
	if len(seeds) != 2 {
		t.Fatalf("got %d seeds, want 2", len(seeds))
	}
	if !seeds[0].Valid || !seeds[1].Valid {
		t.Errorf("seeds = %+v, want both valid", seeds)
	}
	if seeds[0].Kmer != seeds[1].Kmer {
		t.Errorf("seed kmers = %d, %d, want equal (ACGT repeated)", seeds[0].Kmer, seeds[1].Kmer)
	}
}

func TestExtractSeedsRejectsAmbiguousBase(t *testing.T) {
	bases := []byte("ACNT")
	quality := []byte{30, 30, 30, 30}
	seeds := ExtractSeeds(bases, quality, []int32{0}, 4, 10)
	if seeds[0].Valid {
		t.Error("a seed spanning an N should be invalid")
	}
}

func TestExtractSeedsRejectsLowQuality(t *testing.T) {
	bases := []byte("ACGT")
	quality := []byte{30, 30, 5, 30}
	seeds := ExtractSeeds(bases, quality, []int32{0}, 4, 10)
	if seeds[0].Valid {
		t.Error("a seed with a below-threshold-quality base should be invalid")
	}
}

func TestExtractSeedsOutOfBounds(t *testing.T) {
	bases := []byte("ACGT")
	quality := []byte{30, 30, 30, 30}
	seeds := ExtractSeeds(bases, quality, []int32{2}, 4, 10)
	if seeds[0].Valid {
		t.Error("a seed extending past the end of the read should be invalid")
	}
}

func TestExtractSeedsDistinguishesKmers(t *testing.T) {
	bases := []byte("AAAA")
	quality := []byte{30, 30, 30, 30}
	a := ExtractSeeds(bases, quality, []int32{0}, 4, 10)[0]
	bases2 := []byte("TTTT")
	b := ExtractSeeds(bases2, quality, []int32{0}, 4, 10)[0]
	if a.Kmer == b.Kmer {
		t.Error("distinct base sequences produced the same packed kmer")
	}
}
