package outwriter

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// IndexEntry records the compressed byte offset in the output file at
// which the first alignment of a bin begins (spec.md §4.7: "Produces
// an index enabling random access by reference position"). Offsets
// only land on BGZF block boundaries because Writer.Flush is called
// between bins before recording them.
type IndexEntry struct {
	Contig     int32
	Start      int32 // the bin's leftmost reference base
	FileOffset int64 // compressed byte offset of the bin's first block
}

// Index is the in-memory position index for one output file, built
// incrementally as bins are written and persisted to a sidecar file.
type Index struct {
	Entries []IndexEntry
}

// Add records a new bin boundary. Bins are written in sorted order
// (spec.md §8 property 4), so entries accumulate already sorted.
func (idx *Index) Add(contig, start int32, offset int64) {
	idx.Entries = append(idx.Entries, IndexEntry{Contig: contig, Start: start, FileOffset: offset})
}

const indexMagic = "ALPX"

// WriteTo persists idx in the same length-prefixed binary style as
// binio's bin records: a 4-byte magic, an entry count, then one
// (contig, start, offset) triple per entry.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	var written int64
	n, err := io.WriteString(w, indexMagic)
	written += int64(n)
	if err != nil {
		return written, err
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(len(idx.Entries)))
	nn, err := w.Write(hdr[:])
	written += int64(nn)
	if err != nil {
		return written, err
	}
	buf := make([]byte, 16)
	for _, e := range idx.Entries {
		binary.LittleEndian.PutUint32(buf[0:4], uint32(e.Contig))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(e.Start))
		binary.LittleEndian.PutUint64(buf[8:16], uint64(e.FileOffset))
		nn, err := w.Write(buf)
		written += int64(nn)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// ReadIndex reads back an Index written by WriteTo.
func ReadIndex(r io.Reader) (*Index, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("reading index magic: %w", err)
	}
	if string(magic[:]) != indexMagic {
		return nil, fmt.Errorf("not an alignment index file (bad magic %q)", magic)
	}
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("reading index entry count: %w", err)
	}
	count := binary.LittleEndian.Uint64(hdr[:])
	idx := &Index{Entries: make([]IndexEntry, count)}
	buf := make([]byte, 16)
	for i := range idx.Entries {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading index entry %d: %w", i, err)
		}
		idx.Entries[i] = IndexEntry{
			Contig:     int32(binary.LittleEndian.Uint32(buf[0:4])),
			Start:      int32(binary.LittleEndian.Uint32(buf[4:8])),
			FileOffset: int64(binary.LittleEndian.Uint64(buf[8:16])),
		}
	}
	return idx, nil
}

// Lookup returns the compressed byte offset of the last bin boundary
// at or before (contig, pos), the starting point for a linear scan
// that reaches pos. It returns false if pos precedes every indexed
// bin on that contig.
func (idx *Index) Lookup(contig, pos int32) (int64, bool) {
	entries := idx.Entries
	// entries is sorted by (Contig, Start) because bins are written in
	// that order; find the last entry with Contig == contig and
	// Start <= pos via sort.Search over the suffix starting at the
	// contig's first entry.
	lo := sort.Search(len(entries), func(i int) bool { return entries[i].Contig >= contig })
	hi := sort.Search(len(entries), func(i int) bool { return entries[i].Contig > contig })
	if lo == hi {
		return 0, false
	}
	section := entries[lo:hi]
	i := sort.Search(len(section), func(i int) bool { return section[i].Start > pos })
	if i == 0 {
		return 0, false
	}
	return section[i-1].FileOffset, true
}
