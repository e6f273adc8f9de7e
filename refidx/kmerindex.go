package refidx

import (
	"encoding/binary"
	"fmt"

	"github.com/exascience/pargo/parallel"

	"github.com/seqalign/alignpipe/refformat"
	"github.com/seqalign/alignpipe/refpos"
)

// Mask-file binary layout (little-endian), one mask file per
// MaskDescriptor:
//
//	magic       [8]byte  "ALNMASK1"
//	seedLength  int32
//	bucketCount int32
//	positionCount int64
//	bucket table: bucketCount entries of (positionOffset int64, length int32, tooManyRepeats byte, _pad [3]byte)
//	position array: positionCount entries of (contig int32, offset int32)
//
// This is the two-level structure spec.md §4.1 calls for: "a dense
// array indexed by (k-mer mod bucketCount) yielding a slice into a
// flat position array." Reference pre-processing that produces this
// file is out of scope (spec.md §1); only the reader lives here.
var maskMagic = [8]byte{'A', 'L', 'N', 'M', 'A', 'S', 'K', '1'}

const bucketEntrySize = 8 + 4 + 1 + 3 // positionOffset, length, tooManyRepeats, pad
const positionEntrySize = 4 + 4       // contig, offset

// maskTable is the decoded, in-memory k-mer -> positions table for
// one seed length. Multiple on-disk mask files sharing the same seed
// length (spec.md §3: "partitioned across mask files keyed by a
// prefix of the k-mer") are merged into a single logical table at
// load time, since the partitioning is an on-disk sharding detail,
// not something lookups need to reason about.
type maskTable struct {
	seedLength  int32
	bucketCount uint64
	buckets     []bucketEntry
	positions   []refpos.Position
}

type bucketEntry struct {
	start          int32
	length         int32
	tooManyRepeats bool
}

// LookupResult classifies what a k-mer lookup found, per spec.md
// §4.3's seed classification.
type LookupResult struct {
	Positions      []refpos.Position
	TooManyRepeats bool // lookup returns a distinguished empty result
}

// lookup returns the reference positions for kmer, or TooManyRepeats
// if the k-mer's bucket was flagged as exceeding the build-time
// repeat threshold (spec.md §4.1 contract).
func (t *maskTable) lookup(kmer uint64) LookupResult {
	b := t.buckets[kmer%t.bucketCount]
	if b.tooManyRepeats {
		return LookupResult{TooManyRepeats: true}
	}
	if b.length == 0 {
		return LookupResult{}
	}
	return LookupResult{Positions: t.positions[b.start : b.start+b.length]}
}

func loadMaskFile(desc refformat.MaskDescriptor, mf *mappedFile) (*maskTable, error) {
	data := mf.data
	if len(data) < len(maskMagic)+16 {
		return nil, fmt.Errorf("mask file %s: truncated header", desc.Path)
	}
	var magic [8]byte
	copy(magic[:], data[:8])
	if magic != maskMagic {
		return nil, fmt.Errorf("mask file %s: bad magic (corrupt or wrong format)", desc.Path)
	}
	seedLength := int32(binary.LittleEndian.Uint32(data[8:12]))
	bucketCount := binary.LittleEndian.Uint32(data[12:16])
	positionCount := binary.LittleEndian.Uint64(data[16:24])

	bucketsStart := 24
	bucketsEnd := bucketsStart + int(bucketCount)*bucketEntrySize
	if bucketsEnd > len(data) {
		return nil, fmt.Errorf("mask file %s: truncated bucket table", desc.Path)
	}
	// Each bucket's bytes live at a fixed, independent offset, so the
	// decode loop is run across goroutines via parallel.Range rather
	// than sequentially, the way the teacher parallelizes per-record
	// decode work over large flat arrays.
	buckets := make([]bucketEntry, bucketCount)
	parallel.Range(0, len(buckets), 0, func(low, high int) {
		for i := low; i < high; i++ {
			off := bucketsStart + i*bucketEntrySize
			buckets[i] = bucketEntry{
				start:          int32(binary.LittleEndian.Uint64(data[off : off+8])),
				length:         int32(binary.LittleEndian.Uint32(data[off+8 : off+12])),
				tooManyRepeats: data[off+12] != 0,
			}
		}
	})

	positionsStart := bucketsEnd
	positionsEnd := positionsStart + int(positionCount)*positionEntrySize
	if positionsEnd > len(data) {
		return nil, fmt.Errorf("mask file %s: truncated position array", desc.Path)
	}
	positions := make([]refpos.Position, positionCount)
	parallel.Range(0, len(positions), 0, func(low, high int) {
		for i := low; i < high; i++ {
			off := positionsStart + i*positionEntrySize
			positions[i] = refpos.Position{
				Contig: int32(binary.LittleEndian.Uint32(data[off : off+4])),
				Offset: int32(binary.LittleEndian.Uint32(data[off+4 : off+8])),
			}
		}
	})

	if seedLength != desc.SeedLength {
		return nil, fmt.Errorf("mask file %s: seed length %d does not match descriptor %d", desc.Path, seedLength, desc.SeedLength)
	}

	return &maskTable{
		seedLength:  seedLength,
		bucketCount: uint64(bucketCount),
		buckets:     buckets,
		positions:   positions,
	}, nil
}

// mergedMaskTable combines same-seed-length shards into one logical
// table per seed length without concatenating them: each shard keeps
// its own bucketCount, and a lookup queries every shard and returns the
// union of their positions, or TooManyRepeats as soon as any shard
// flags the k-mer; this mirrors how the teacher's InputFile
// abstraction composes multiple underlying readers behind one
// interface without forcing a single contiguous backing array.
type mergedMaskTable struct {
	seedLength int32
	shards     []*maskTable
}

func (m *mergedMaskTable) lookup(kmer uint64) LookupResult {
	var union LookupResult
	for _, shard := range m.shards {
		r := shard.lookup(kmer)
		if r.TooManyRepeats {
			return LookupResult{TooManyRepeats: true}
		}
		union.Positions = append(union.Positions, r.Positions...)
	}
	return union
}
