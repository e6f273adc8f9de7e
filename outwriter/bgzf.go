// Package outwriter assembles the merged, sorted bins into the final
// per-project alignment file: a SAM-compatible header followed by one
// line per fragment, block-gzip compressed, plus a position index for
// random access (spec.md §4.7).
//
// The block format below is grounded on the teacher's BGZF framing
// (utils/bgzf/bgzf-files.go): same magic header bytes, same "BC" extra
// subfield, same CRC-32/ISIZE trailer, same EOF marker. It is written
// synchronously rather than through the teacher's pargo/pipeline
// parallel block compressor, because the random-access index
// (index.go) needs an exact compressed byte offset at each bin
// boundary; the teacher's version buffers and reorders blocks across
// goroutines, which would require extra synchronization to recover
// that offset. Parallelism across output files is still provided at
// the coarser grain spec.md §5 describes (`outputSaversMax` workers,
// one project file apiece), so this file trades away only
// within-file block parallelism, not the pipeline model itself.
package outwriter

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const maxBGZFBlockSize = 65536

var bgzfEOF = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00,
	0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// BGZFWriter writes a stream of BGZF blocks, each no larger than
// maxBGZFBlockSize before compression. Write buffers into the current
// block and only emits a block once it's full; Flush forces out
// whatever is pending, which is what lets callers record a compressed
// byte offset that lands exactly on a block boundary.
type BGZFWriter struct {
	w       io.Writer
	level   int
	pending []byte
	written int64 // compressed bytes written to w so far
	closed  bool
}

// NewBGZFWriter returns a BGZFWriter over w at the given compression
// level (compress/flate levels, -2..9).
func NewBGZFWriter(w io.Writer, level int) *BGZFWriter {
	return &BGZFWriter{w: w, level: level, pending: make([]byte, 0, maxBGZFBlockSize)}
}

// Offset reports the number of compressed bytes written to the
// underlying writer so far, not counting any buffered-but-unflushed
// data. It is only a meaningful block boundary immediately after
// Flush.
func (bw *BGZFWriter) Offset() int64 { return bw.written }

// Write implements io.Writer, splitting p across as many full blocks
// as needed and buffering the remainder.
func (bw *BGZFWriter) Write(p []byte) (int, error) {
	n := len(p)
	for {
		room := maxBGZFBlockSize - len(bw.pending)
		if len(p) < room {
			bw.pending = append(bw.pending, p...)
			return n, nil
		}
		bw.pending = append(bw.pending, p[:room]...)
		p = p[room:]
		if err := bw.emitBlock(bw.pending); err != nil {
			return n - len(p), err
		}
		bw.pending = bw.pending[:0]
	}
}

// Flush emits the current pending bytes (if any) as a short final
// block, leaving bw.Offset() at the start of the next block.
func (bw *BGZFWriter) Flush() error {
	if len(bw.pending) == 0 {
		return nil
	}
	if err := bw.emitBlock(bw.pending); err != nil {
		return err
	}
	bw.pending = bw.pending[:0]
	return nil
}

func (bw *BGZFWriter) emitBlock(data []byte) error {
	var buf bytes.Buffer
	buf.Write([]byte{
		0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
		0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
		0x42, 0x43, 0x02, 0x00, 0x00, 0x00,
	})
	fw, err := flate.NewWriter(&buf, bw.level)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := fw.Close(); err != nil {
		return err
	}
	block := buf.Bytes()
	index := len(block)
	block = append(block, make([]byte, 8)...)
	binary.LittleEndian.PutUint32(block[index:index+4], crc32.ChecksumIEEE(data))
	binary.LittleEndian.PutUint32(block[index+4:index+8], uint32(len(data)))
	binary.LittleEndian.PutUint16(block[16:18], uint16(len(block)-1))
	n, err := bw.w.Write(block)
	bw.written += int64(n)
	return err
}

// Close flushes any pending data and writes the BGZF EOF marker.
func (bw *BGZFWriter) Close() error {
	if bw.closed {
		return nil
	}
	bw.closed = true
	if err := bw.Flush(); err != nil {
		return err
	}
	n, err := bw.w.Write(bgzfEOF)
	bw.written += int64(n)
	return err
}

// BGZFReader decompresses a BGZF stream written by BGZFWriter (or any
// conforming producer, including the teacher's own). It reads and
// inflates one block at a time; spec.md's round-trip property (§8,
// property 5) only needs correctness, not read-side parallelism.
type BGZFReader struct {
	gz    *gzip.Reader
	r     io.Reader
	block []byte
	index int
	err   error
}

// NewBGZFReader returns a BGZFReader over r.
func NewBGZFReader(r io.Reader) (*BGZFReader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w in NewBGZFReader", err)
	}
	return &BGZFReader{gz: gz, r: r}, nil
}

func (br *BGZFReader) readBlock() ([]byte, error) {
	var slen int
	for i := 0; i < len(br.gz.Extra); i += 4 + slen {
		if br.gz.Extra[i] != 66 || br.gz.Extra[i+1] != 67 {
			continue
		}
		slen = int(binary.LittleEndian.Uint16(br.gz.Extra[i+2 : i+4]))
		if slen != 2 {
			continue
		}
		bsize := int(binary.LittleEndian.Uint16(br.gz.Extra[i+4 : i+6]))
		compressed := make([]byte, bsize-len(br.gz.Extra)-19)
		if _, err := io.ReadFull(br.r, compressed); err != nil {
			return nil, err
		}
		var tail [8]byte
		if _, err := io.ReadFull(br.r, tail[:]); err != nil {
			return nil, err
		}
		wantCRC := binary.LittleEndian.Uint32(tail[0:4])
		size := binary.LittleEndian.Uint32(tail[4:8])

		fr := flate.NewReader(bytes.NewReader(compressed))
		data := make([]byte, size)
		if _, err := io.ReadFull(fr, data); err != nil && err != io.EOF {
			return nil, err
		}
		if err := fr.Close(); err != nil {
			return nil, err
		}
		if crc32.ChecksumIEEE(data) != wantCRC {
			return nil, errors.New("invalid CRC-32 value for a data block in a BGZF file")
		}
		// Resetting onto the next member's header also tells us
		// whether the block just decoded was itself the trailing EOF
		// marker: that member decodes to empty data, and nothing
		// follows it, so Reset hits true end of file. The teacher's
		// reader (utils/bgzf/bgzf-files.go) discards that block
		// rather than delivering it; do the same here.
		if err := br.gz.Reset(br.r); err == io.EOF {
			return nil, io.EOF
		} else if err != nil {
			return nil, fmt.Errorf("%w in readBlock", err)
		}
		return data, nil
	}
	return nil, errors.New("missing BC extra subfield in BGZF header")
}

// Read implements io.Reader.
func (br *BGZFReader) Read(p []byte) (int, error) {
	if br.err != nil {
		return 0, br.err
	}
	if br.block == nil || br.index == len(br.block) {
		block, err := br.readBlock()
		if err != nil {
			br.err = err
			return 0, err
		}
		br.block = block
		br.index = 0
	}
	n := copy(p, br.block[br.index:])
	br.index += n
	return n, nil
}
