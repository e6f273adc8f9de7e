// Package binio partitions emitted templates into reference-position
// bins and writes them to temporary on-disk files for the merger to
// re-read (spec.md §4.5). Bin files are named by (contigIndex,
// startOffset, endOffset), per spec.md §6's on-disk temporaries.
package binio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/seqalign/alignpipe/refpos"
	"github.com/seqalign/alignpipe/template"
)

// Bin is a half-open reference-position range plus the on-disk file
// backing it (spec.md §3, "Bin"). The dedicated unmapped bin uses
// Range.Contig == unmappedContig.
type Bin struct {
	Range refpos.Range
	Path  string
}

// unmappedContig is the sentinel contig index naming the dedicated
// bin for unaligned fragments (spec.md §3).
const unmappedContig = -1

// FileName returns the on-disk name for a bin covering r, matching
// spec.md §6's "Bin files named by (contigIndex, startOffset,
// endOffset)".
func FileName(r refpos.Range) string {
	if r.Contig == unmappedContig {
		return "unmapped.bin"
	}
	return fmt.Sprintf("bin-%d-%d-%d.bin", r.Contig, r.Start, r.End)
}

// RawRecord is one fragment as written to a bin file: a
// length-prefixed, reflection-free fixed layout, the way elprep's own
// binary formats (.elsites, the mask-file table in refidx/kmerindex.go)
// avoid encoding/gob for hot-path I/O. Bases and Quality are carried
// through so the merger's realigner (binmerge/realign.go) can
// re-score candidate gap placements against the original read, and so
// its duplicate marker (binmerge/duplicates.go) can compare
// summed base quality without re-deriving the read from the cluster.
type RawRecord struct {
	ClusterID  int64
	Mate       int8
	Contig     int32
	Offset     int32
	Strand     int8
	Mismatches int32
	Gaps       int32
	Score      int32
	MapQ       byte
	Unaligned  bool
	Duplicate  bool
	Cigar      []template.CigarOp
	Bases      []byte
	Quality    []byte
}

// ToFragment converts r to a template.Fragment for downstream
// consumers that want the richer type.
func (r *RawRecord) ToFragment() template.Fragment {
	return template.Fragment{
		Position:   refpos.Position{Contig: r.Contig, Offset: r.Offset},
		Strand:     r.Strand,
		Cigar:      r.Cigar,
		Mismatches: int(r.Mismatches),
		Gaps:       int(r.Gaps),
		Score:      r.Score,
		MapQ:       r.MapQ,
		ReadIndex:  int(r.Mate),
		Unaligned:  r.Unaligned,
		Duplicate:  r.Duplicate,
		Bases:      r.Bases,
		Quality:    r.Quality,
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// WriteRecord appends one fragment to a bin file.
func WriteRecord(w io.Writer, clusterID int64, mate int8, f *template.Fragment) error {
	var hdr [32]byte
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(clusterID))
	hdr[8] = byte(mate)
	binary.LittleEndian.PutUint32(hdr[9:13], uint32(f.Position.Contig))
	binary.LittleEndian.PutUint32(hdr[13:17], uint32(f.Position.Offset))
	hdr[17] = byte(f.Strand)
	binary.LittleEndian.PutUint32(hdr[18:22], uint32(f.Mismatches))
	binary.LittleEndian.PutUint32(hdr[22:26], uint32(f.Gaps))
	binary.LittleEndian.PutUint32(hdr[26:30], uint32(f.Score))
	hdr[30] = f.MapQ
	hdr[31] = boolByte(f.Unaligned)<<1 | boolByte(f.Duplicate)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	var cigarLen [4]byte
	binary.LittleEndian.PutUint32(cigarLen[:], uint32(len(f.Cigar)))
	if _, err := w.Write(cigarLen[:]); err != nil {
		return err
	}
	for _, op := range f.Cigar {
		var buf [5]byte
		binary.LittleEndian.PutUint32(buf[0:4], uint32(op.Length))
		buf[4] = op.Op
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}

	if err := writeByteSlice(w, f.Bases); err != nil {
		return err
	}
	return writeByteSlice(w, f.Quality)
}

func writeByteSlice(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

func readByteSlice(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readRecord(r io.Reader) (RawRecord, error) {
	var hdr [32]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return RawRecord{}, err
	}
	rec := RawRecord{
		ClusterID:  int64(binary.LittleEndian.Uint64(hdr[0:8])),
		Mate:       int8(hdr[8]),
		Contig:     int32(binary.LittleEndian.Uint32(hdr[9:13])),
		Offset:     int32(binary.LittleEndian.Uint32(hdr[13:17])),
		Strand:     int8(hdr[17]),
		Mismatches: int32(binary.LittleEndian.Uint32(hdr[18:22])),
		Gaps:       int32(binary.LittleEndian.Uint32(hdr[22:26])),
		Score:      int32(binary.LittleEndian.Uint32(hdr[26:30])),
		MapQ:       hdr[30],
		Unaligned:  hdr[31]>>1&1 != 0,
		Duplicate:  hdr[31]&1 != 0,
	}

	var cigarLenBuf [4]byte
	if _, err := io.ReadFull(r, cigarLenBuf[:]); err != nil {
		return RawRecord{}, err
	}
	n := binary.LittleEndian.Uint32(cigarLenBuf[:])
	rec.Cigar = make([]template.CigarOp, n)
	for i := range rec.Cigar {
		var buf [5]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return RawRecord{}, err
		}
		rec.Cigar[i] = template.CigarOp{Length: int32(binary.LittleEndian.Uint32(buf[0:4])), Op: buf[4]}
	}

	bases, err := readByteSlice(r)
	if err != nil {
		return RawRecord{}, err
	}
	rec.Bases = bases
	quality, err := readByteSlice(r)
	if err != nil {
		return RawRecord{}, err
	}
	rec.Quality = quality

	return rec, nil
}

// ReadAll reads every record from a bin file opened for reading.
func ReadAll(r io.Reader) ([]RawRecord, error) {
	var out []RawRecord
	for {
		rec, err := readRecord(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// Open opens (creating if necessary) the bin file for r under dir.
func Open(dir string, r refpos.Range) (*os.File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, FileName(r)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}
