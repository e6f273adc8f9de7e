package refidx

import (
	"encoding/binary"
	"fmt"

	"github.com/seqalign/alignpipe/refformat"
)

// Annotation files store one int32 value per genomic offset: for
// KUniqueness, the minimum seed extension length at which the k-mer
// anchored there becomes genome-unique; for KRepeatness, the same for
// zero-neighbor positions (spec.md §3). Binary layout (little-endian):
//
//	magic [8]byte "ALNANN1\0"
//	k     int32
//	values: one int32 per genomic offset, for every contig concatenated
//	        in genomic-offset order
var annotationMagic = [8]byte{'A', 'L', 'N', 'A', 'N', 'N', '1', 0}

type annotationTable struct {
	kind   refformat.AnnotationType
	k      int32
	values []byte // raw mmap'd bytes after the header, 4 bytes per value
}

func loadAnnotation(desc refformat.AnnotationDescriptor, mf *mappedFile) (*annotationTable, error) {
	data := mf.data
	if len(data) < 12 {
		return nil, fmt.Errorf("annotation file %s: truncated header", desc.Path)
	}
	var magic [8]byte
	copy(magic[:], data[:8])
	if magic != annotationMagic {
		return nil, fmt.Errorf("annotation file %s: bad magic", desc.Path)
	}
	k := int32(binary.LittleEndian.Uint32(data[8:12]))
	if k != desc.K {
		return nil, fmt.Errorf("annotation file %s: k=%d does not match descriptor k=%d", desc.Path, k, desc.K)
	}
	return &annotationTable{kind: desc.Type, k: k, values: data[12:]}, nil
}

// at returns the annotation value at genomic offset, or ok=false if
// the offset is beyond the end of the table.
func (t *annotationTable) at(genomicOffset int64) (int32, bool) {
	off := int(genomicOffset) * 4
	if off < 0 || off+4 > len(t.values) {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(t.values[off : off+4])), true
}

// KUniqueness returns the minimum extension length at which the
// k-mer anchored at genomicOffset becomes genome-unique, if a
// k-uniqueness annotation was loaded for this reference.
func (idx *Index) KUniqueness(genomicOffset int64) (int32, bool) {
	if idx.kUniqueness == nil {
		return 0, false
	}
	return idx.kUniqueness.at(genomicOffset)
}
