package rawinput

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// FlatFile is a minimal, self-describing on-disk tile format used by
// this repository's own CLI (cmd/align.go) as a concrete Source when
// no instrument-specific adapter is available. It is deliberately not
// a model of any real instrument's byte layout (that layout is
// external per spec.md §1); it exists only so the pipeline has one
// runnable end-to-end Source without inventing a fictional BCL
// reader. A header records the fixed read length for every cluster in
// the file, followed by one record per cluster: readLength base
// bytes, readLength quality bytes, and one PF byte, matching the
// length-prefixed record style binio/bins.go already uses for its own
// on-disk format.
type flatFileSource struct {
	tileID     string
	file       *os.File
	r          *bufio.Reader
	readLength int32
	policy     MissingFilePolicy
	missing    bool
}

// CreateFlatFile writes a FlatFile header for readLength-base clusters
// to path, returning a writer callers use to append clusters before
// closing. It is the counterpart OpenFlatFile reads back.
type FlatFileWriter struct {
	w          *bufio.Writer
	f          *os.File
	readLength int32
}

func CreateFlatFile(path string, readLength int32) (*FlatFileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(f)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(readLength))
	if _, err := w.Write(hdr[:]); err != nil {
		f.Close()
		return nil, err
	}
	return &FlatFileWriter{w: w, f: f, readLength: readLength}, nil
}

// WriteCluster appends one cluster record. len(bases) and len(quality)
// must equal the writer's configured read length.
func (w *FlatFileWriter) WriteCluster(c Cluster) error {
	if int32(len(c.Bases)) != w.readLength || int32(len(c.Quality)) != w.readLength {
		return fmt.Errorf("flatfile: cluster length %d/%d does not match read length %d", len(c.Bases), len(c.Quality), w.readLength)
	}
	if _, err := w.w.Write(c.Bases); err != nil {
		return err
	}
	if _, err := w.w.Write(c.Quality); err != nil {
		return err
	}
	pf := byte(0)
	if c.PF {
		pf = 1
	}
	return w.w.WriteByte(pf)
}

func (w *FlatFileWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// OpenFlatFile opens a FlatFile written by FlatFileWriter as a Source
// for tileID. A missing file is tolerated when policy allows it,
// yielding zero clusters rather than an error (spec.md §4.2 tolerates
// missing files by substituting placeholders per cluster; this
// adapter has no independent cluster count when the whole file is
// absent, so it substitutes the empty tile instead).
func OpenFlatFile(tileID, path string, policy MissingFilePolicy) (Source, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) && (policy.IgnoreMissingBcls || policy.IgnoreMissingFilters) {
		return &flatFileSource{tileID: tileID, policy: policy, missing: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening tile file %s: %w", path, err)
	}
	r := bufio.NewReader(f)
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading tile file header %s: %w", path, err)
	}
	readLength := int32(binary.LittleEndian.Uint32(hdr[:]))
	return &flatFileSource{tileID: tileID, file: f, r: r, readLength: readLength, policy: policy}, nil
}

func (s *flatFileSource) TileID() string { return s.tileID }

func (s *flatFileSource) Next() (Cluster, bool, error) {
	if s.missing {
		return Cluster{}, false, nil
	}
	bases := make([]byte, s.readLength)
	if _, err := io.ReadFull(s.r, bases); err != nil {
		if err == io.EOF {
			return Cluster{}, false, nil
		}
		return Cluster{}, false, fmt.Errorf("reading tile %s: %w", s.tileID, err)
	}
	quality := make([]byte, s.readLength)
	if _, err := io.ReadFull(s.r, quality); err != nil {
		return Cluster{}, false, fmt.Errorf("reading tile %s: truncated quality record: %w", s.tileID, err)
	}
	pf, err := s.r.ReadByte()
	if err != nil {
		return Cluster{}, false, fmt.Errorf("reading tile %s: truncated PF byte: %w", s.tileID, err)
	}
	return Cluster{Bases: bases, Quality: quality, PF: pf != 0}, true, nil
}

func (s *flatFileSource) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
