package outwriter

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/seqalign/alignpipe/binmerge"
	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/refidx"
	"github.com/seqalign/alignpipe/template"
	"github.com/seqalign/alignpipe/utils"
)

const fileFormatVersion = "1.6"

// SAM FLAG bits (spec.md §6; field names follow the teacher's
// sam.Alignment constants).
const (
	flagMultiple      = 0x1
	flagProper        = 0x2
	flagUnmapped      = 0x4
	flagNextUnmapped  = 0x8
	flagReversed      = 0x10
	flagNextReversed  = 0x20
	flagFirst         = 0x40
	flagLast          = 0x80
	flagSecondary     = 0x100
	flagDuplicate     = 0x400
	flagSupplementary = 0x800
)

// ReadGroup is one barcode's worth of SAM @RG header metadata
// (spec.md §6, "a per-barcode read-group line").
type ReadGroup struct {
	ID      string
	Sample  string
	Library string
	Barcode string
}

// Header is the SAM-compatible header spec.md §4.7/§6 requires: one
// @SQ line per reference contig, one @RG line per configured read
// group, and a @PG line recording the invocation.
type Header struct {
	SQ []utils.StringMap
	RG []utils.StringMap
	PG utils.StringMap
}

// BuildHeader assembles a Header from the loaded reference, the
// read groups the workflow knows about, and the command line the run
// was invoked with.
func BuildHeader(idx *refidx.Index, groups []ReadGroup, invocation string) *Header {
	hdr := &Header{
		PG: utils.StringMap{"ID": "alignpipe", "PN": "alignpipe", "CL": invocation, "VN": fileFormatVersion},
	}
	for _, c := range idx.Contigs {
		hdr.SQ = append(hdr.SQ, utils.StringMap{"SN": string(*c.Name), "LN": strconv.Itoa(int(c.Length))})
	}
	for _, g := range groups {
		rg := utils.StringMap{"ID": g.ID}
		if g.Sample != "" {
			rg["SM"] = g.Sample
		}
		if g.Library != "" {
			rg["LB"] = g.Library
		}
		if g.Barcode != "" {
			rg["BC"] = g.Barcode
		}
		hdr.RG = append(hdr.RG, rg)
	}
	return hdr
}

// WriteTo renders h as SAM header text.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	n, err := fmt.Fprintf(bw, "@HD\tVN:%s\tSO:coordinate\n", fileFormatVersion)
	written += int64(n)
	if err != nil {
		return written, err
	}
	for _, sq := range h.SQ {
		nn, err := writeHeaderLine(bw, "@SQ", sq, "SN", "LN")
		written += int64(nn)
		if err != nil {
			return written, err
		}
	}
	for _, rg := range h.RG {
		nn, err := writeHeaderLine(bw, "@RG", rg, "ID")
		written += int64(nn)
		if err != nil {
			return written, err
		}
	}
	if len(h.PG) > 0 {
		nn, err := writeHeaderLine(bw, "@PG", h.PG, "ID", "PN", "CL")
		written += int64(nn)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// writeHeaderLine writes code followed by rec's entries, listing
// first the tags in first (in that order, if present), then every
// other tag sorted for determinism (spec.md §8 property 7).
func writeHeaderLine(w io.Writer, code string, rec utils.StringMap, first ...string) (int, error) {
	var b strings.Builder
	b.WriteString(code)
	seen := make(map[string]bool, len(rec))
	for _, tag := range first {
		if v, ok := rec[tag]; ok {
			fmt.Fprintf(&b, "\t%s:%s", tag, v)
			seen[tag] = true
		}
	}
	rest := make([]string, 0, len(rec))
	for tag := range rec {
		if !seen[tag] {
			rest = append(rest, tag)
		}
	}
	sort.Strings(rest)
	for _, tag := range rest {
		fmt.Fprintf(&b, "\t%s:%s", tag, rec[tag])
	}
	b.WriteByte('\n')
	return io.WriteString(w, b.String())
}

// Writer emits one project's compressed, sorted alignment file
// (spec.md §4.7): a SAM header followed by one line per fragment,
// block-gzip compressed, optionally digested for bamProduceMd5.
type Writer struct {
	dest    io.Writer // the caller's underlying sink, e.g. an *os.File
	bgzf    *BGZFWriter
	digest  hash.Hash
	cfg     *config.Config
	idx     *refidx.Index
	defRG   string // read-group ID stamped on every alignment (see doc below)
	written int64  // logical (uncompressed) bytes written; Index entries use FileOffset instead
}

// New opens a Writer over w: writes hdr immediately, then is ready
// for WriteBin calls. defaultReadGroup is stamped on every alignment's
// RG tag. Bin records don't carry the originating barcode (binio's
// on-disk format only persists what the realigner and duplicate
// marker need, spec.md §4.5/§4.6), so this repo's output writer
// supports one read group per output file rather than a per-alignment
// lookup; a run with multiple barcodes routes each to its own project
// file, which is consistent with spec.md §6's "per-project" framing.
func New(w io.Writer, hdr *Header, defaultReadGroup string, cfg *config.Config, idx *refidx.Index) (*Writer, error) {
	var digest hash.Hash
	if cfg.BamProduceMd5 {
		digest = md5.New()
	}
	ww := &Writer{dest: w, cfg: cfg, idx: idx, defRG: defaultReadGroup, digest: digest}
	ww.bgzf = NewBGZFWriter(w, cfg.BamGzipLevel)
	if _, err := hdr.WriteTo(ww); err != nil {
		return nil, fmt.Errorf("writing alignment file header: %w", err)
	}
	return ww, nil
}

// Write implements io.Writer: every uncompressed byte passes through
// the optional MD5 digest before being handed to the BGZF compressor.
func (w *Writer) Write(p []byte) (int, error) {
	if w.digest != nil {
		w.digest.Write(p)
	}
	w.written += int64(len(p))
	return w.bgzf.Write(p)
}

// MD5Sum returns the hex MD5 digest of every uncompressed byte
// written so far, and true, if bamProduceMd5 was configured;
// otherwise ("", false).
func (w *Writer) MD5Sum() (string, bool) {
	if w.digest == nil {
		return "", false
	}
	return hex.EncodeToString(w.digest.Sum(nil)), true
}

// Flush forces out any buffered BGZF data, landing the underlying
// writer's byte count on a block boundary. FileOffset reports that
// boundary, suitable for an Index entry.
func (w *Writer) Flush() error { return w.bgzf.Flush() }

// FileOffset returns the compressed byte offset of the underlying
// file immediately after the last Flush.
func (w *Writer) FileOffset() int64 { return w.bgzf.Offset() }

// Close flushes and writes the BGZF EOF marker.
func (w *Writer) Close() error { return w.bgzf.Close() }

// WriteBin renders one bin's already-merged, already-sorted records
// as SAM alignment lines and writes them out. Records appear in the
// order binmerge.MergeBin returned them, which is also the file
// order spec.md §8 property 4 requires.
//
// RNEXT/PNEXT/TLEN and the proper-pair FLAG bit can only be resolved
// when both mates of a cluster landed in the same bin — a pair split
// across a bin boundary has no way to look its partner up here. That
// mirrors the same bin-scoped limitation duplicate marking accepts
// (binmerge/duplicates.go); unresolved mates are written with
// RNEXT="*", PNEXT=0, TLEN=0 and without the proper-pair bit.
func (w *Writer) WriteBin(records []binmerge.Record) error {
	mates := pairUp(records)
	for i := range records {
		var mate *binmerge.Record
		if j := mates[i]; j >= 0 {
			mate = &records[j]
		}
		if err := w.writeAlignment(&records[i], mate); err != nil {
			return err
		}
	}
	return nil
}

// pairUp returns, for each index in records, the index of its mate
// within the same slice, or -1 if no mate is present.
func pairUp(records []binmerge.Record) []int {
	mates := make([]int, len(records))
	for i := range mates {
		mates[i] = -1
	}
	byCluster := make(map[int64][2]int)
	for i, r := range records {
		pair := byCluster[r.ClusterID]
		pair[r.Mate] = i + 1 // 1-based so the zero value means "absent"
		byCluster[r.ClusterID] = pair
	}
	for _, pair := range byCluster {
		if pair[0] != 0 && pair[1] != 0 {
			mates[pair[0]-1] = pair[1] - 1
			mates[pair[1]-1] = pair[0] - 1
		}
	}
	return mates
}

func (w *Writer) writeAlignment(rec *binmerge.Record, mate *binmerge.Record) error {
	f := &rec.Fragment
	var flag uint16
	if f.Unaligned {
		flag |= flagUnmapped
	}
	if f.Strand == 1 {
		flag |= flagReversed
	}
	if f.Duplicate {
		flag |= flagDuplicate
	}
	if mate != nil {
		// Multiple/First/Last are only set when the mate was resolved
		// within this bin (see the doc comment on WriteBin): a
		// cluster whose pair straddles a bin boundary is written as
		// if it were single-ended, since nothing here can tell the
		// two cases apart.
		flag |= flagMultiple
		if mate.Fragment.Unaligned {
			flag |= flagNextUnmapped
		}
		if mate.Fragment.Strand == 1 {
			flag |= flagNextReversed
		}
		if rec.Mate == 1 {
			flag |= flagLast
		} else {
			flag |= flagFirst
		}
	}

	rname, pos := "*", int32(0)
	if !f.Unaligned && f.Position.Contig >= 0 && int(f.Position.Contig) < len(w.idx.Contigs) {
		rname = string(*w.idx.Contigs[f.Position.Contig].Name)
		pos = f.Position.Offset + 1 // SAM POS is 1-based
	}

	rnext, pnext, tlen := "*", int32(0), int32(0)
	if mate != nil && !mate.Fragment.Unaligned && !f.Unaligned {
		rnext = "="
		if mate.Fragment.Position.Contig != f.Position.Contig {
			rnext = string(*w.idx.Contigs[mate.Fragment.Position.Contig].Name)
		}
		pnext = mate.Fragment.Position.Offset + 1
		if mate.Fragment.Position.Contig == f.Position.Contig {
			tlen = mate.Fragment.Position.Offset + mate.Fragment.ReferenceLength() - f.Position.Offset
			if tlen < 0 {
				tlen = f.Position.Offset + f.ReferenceLength() - mate.Fragment.Position.Offset
				tlen = -tlen
			}
			flag |= flagProper
		}
	}

	mapq := f.MapQ
	if f.Unaligned {
		mapq = 255
	}

	line := fmt.Sprintf("%d\t%d\t%s\t%d\t%d\t%s\t%s\t%d\t%d\t%s\t%s",
		rec.ClusterID, flag, rname, pos, mapq, cigarString(f.Cigar),
		rnext, pnext, tlen, basesString(f.Bases), qualString(f.Quality))

	var tags strings.Builder
	if w.cfg.HasTag(config.TagRG) && w.defRG != "" {
		fmt.Fprintf(&tags, "\tRG:Z:%s", w.defRG)
	}
	if w.cfg.HasTag(config.TagNM) && !f.Unaligned {
		fmt.Fprintf(&tags, "\tNM:i:%d", f.Mismatches)
	}
	if w.cfg.HasTag(config.TagAS) && !f.Unaligned {
		fmt.Fprintf(&tags, "\tAS:i:%d", f.Score)
	}
	if w.cfg.HasTag(config.TagZX) {
		fmt.Fprintf(&tags, "\tZX:i:%d", f.Gaps)
	}

	if _, err := fmt.Fprintf(w, "%s%s\n", line, tags.String()); err != nil {
		return err
	}
	return nil
}

func cigarString(ops []template.CigarOp) string {
	if len(ops) == 0 {
		return "*"
	}
	var b strings.Builder
	for _, op := range ops {
		fmt.Fprintf(&b, "%d%c", op.Length, op.Op)
	}
	return b.String()
}

func basesString(bases []byte) string {
	if len(bases) == 0 {
		return "*"
	}
	return string(bases)
}

func qualString(quality []byte) string {
	if len(quality) == 0 {
		return "*"
	}
	out := make([]byte, len(quality))
	for i, q := range quality {
		out[i] = q + 33
	}
	return string(out)
}
