// Package seedmatch implements the seed matcher (spec.md §4.3): it
// extracts k-mers from reads at configured offsets, looks them up in
// the reference index, classifies and caps the result, and emits a
// deduplicated set of candidate positions per read.
package seedmatch

import "github.com/seqalign/alignpipe/refpos"

// baseCode maps A/C/G/T to a 2-bit code; any other byte (N, lower
// case, ambiguity codes) is rejected by encodeKmer.
var baseCode = [256]int8{}

func init() {
	for i := range baseCode {
		baseCode[i] = -1
	}
	baseCode['A'] = 0
	baseCode['C'] = 1
	baseCode['G'] = 2
	baseCode['T'] = 3
}

// Seed is one extracted k-mer: its offset within the read and its
// 2-bit-packed value. A seed with Valid=false had an ambiguous base
// or a below-threshold quality somewhere in its span and was never
// looked up (spec.md §4.3 step 1).
type Seed struct {
	Offset int32
	Kmer   uint64
	Valid  bool
}

// ExtractSeeds extracts one seed per offset in offsets, each
// seedLength bases long, skipping (Valid=false) any seed containing
// an N or a base with quality < qualityMin.
func ExtractSeeds(bases, quality []byte, offsets []int32, seedLength int32, qualityMin byte) []Seed {
	seeds := make([]Seed, len(offsets))
	for i, off := range offsets {
		seeds[i] = extractOne(bases, quality, off, seedLength, qualityMin)
	}
	return seeds
}

// DefaultOffsets returns evenly spaced seed offsets covering readLen
// with seedLength-base seeds and the given stride, the simplest
// tiling that still satisfies spec.md §4.3's "at configured offsets."
func DefaultOffsets(readLen, seedLength, stride int32) []int32 {
	if stride <= 0 {
		stride = seedLength
	}
	var offsets []int32
	for off := int32(0); off+seedLength <= readLen; off += stride {
		offsets = append(offsets, off)
	}
	return offsets
}

func extractOne(bases, quality []byte, offset, seedLength int32, qualityMin byte) Seed {
	if offset < 0 || offset+seedLength > int32(len(bases)) {
		return Seed{Offset: offset, Valid: false}
	}
	var kmer uint64
	for i := int32(0); i < seedLength; i++ {
		b := bases[offset+i]
		code := baseCode[b]
		if code < 0 || quality[offset+i] < qualityMin {
			return Seed{Offset: offset, Valid: false}
		}
		kmer = kmer<<2 | uint64(code)
	}
	return Seed{Offset: offset, Kmer: kmer, Valid: true}
}

// Candidate is one candidate alignment position for a read, produced
// by the matcher and consumed by the template builder (spec.md §3,
// "Seed match").
type Candidate struct {
	Position refpos.Position
	Strand   int8 // 0 forward, 1 reverse complement
	// repeatRank orders candidates by how repetitive the seed that
	// found them was (1 = found via a unique seed; the position count
	// for repeat seeds; higher still for too-many-repeats seeds and
	// neighbor expansions). It is the primary sort key when capping at
	// candidateMatchesMax.
	repeatRank int
}
