// Package refformat parses the reference metadata file that
// describes a pre-processed reference genome: the contig table, the
// k-mer mask-file descriptors, and the optional k-uniqueness /
// k-repeatness annotation descriptors (spec.md §6, "Reference format
// (input)"). Reference pre-processing itself is out of scope
// (spec.md §1); this package only reads the format that process
// produces.
//
// There is no third-party XML library anywhere in the retrieval pack
// (the teacher reads its own elfasta/elsites formats with hand-rolled
// scanners, never XML), so this package uses the standard library's
// encoding/xml: the format itself is specified as "XML or
// FASTA-header-derived" by spec.md §6, and no ecosystem library
// beyond the standard one is idiomatic for a one-off metadata schema
// like this.
package refformat

import (
	"encoding/xml"
	"fmt"
	"os"
)

const (
	// OldestSupportedVersion and CurrentVersion bound the reference
	// format versions this package accepts (spec.md §4.1).
	OldestSupportedVersion = 3
	CurrentVersion         = 9
)

// ContigDescriptor describes one reference contig entry in the
// metadata file.
type ContigDescriptor struct {
	Index      int32  `xml:"index,attr"`
	Name       string `xml:"name,attr"`
	Path       string `xml:"path,attr"`
	ByteOffset int64  `xml:"byteOffset,attr"`
	ByteSize   int64  `xml:"byteSize,attr"`
	TotalBases int64  `xml:"totalBases,attr"`
	ACGTCount  int64  `xml:"acgtCount,attr"`
	Decoy      bool   `xml:"decoy,attr"`
	MD5        string `xml:"md5,attr,omitempty"`
}

// MaskDescriptor describes one k-mer mask file backing the reference
// index (spec.md §3, "K-mer index (mask files)").
type MaskDescriptor struct {
	SeedLength int32  `xml:"seedLength,attr"`
	MaskWidth  int32  `xml:"maskWidth,attr"`
	MaskValue  uint64 `xml:"maskValue,attr"`
	Path       string `xml:"path,attr"`
	KmerCount  int64  `xml:"kmerCount,attr"`
}

// AnnotationType distinguishes the two optional per-position
// annotations spec.md §3 allows a mask file to carry.
type AnnotationType string

const (
	KUniqueness AnnotationType = "KUniqueness"
	KRepeatness AnnotationType = "KRepeatness"
)

// AnnotationDescriptor describes one optional annotation file.
type AnnotationDescriptor struct {
	Type AnnotationType `xml:"type,attr"`
	K    int32          `xml:"k,attr"`
	Path string         `xml:"path,attr"`
}

// Metadata is the fully parsed contents of a reference metadata file.
type Metadata struct {
	XMLName     xml.Name               `xml:"reference"`
	Version     int                    `xml:"version,attr"`
	Contigs     []ContigDescriptor     `xml:"contigs>contig"`
	Masks       []MaskDescriptor       `xml:"masks>mask"`
	Annotations []AnnotationDescriptor `xml:"annotations>annotation"`
}

// Parse reads and validates a reference metadata file at path.
// Missing or corrupt files, and versions outside
// [OldestSupportedVersion, CurrentVersion], are fatal at load time per
// spec.md §4.1.
func Parse(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reference metadata %s: %w", path, err)
	}
	var m Metadata
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("reference metadata %s: corrupt: %w", path, err)
	}
	if m.Version < OldestSupportedVersion || m.Version > CurrentVersion {
		return nil, fmt.Errorf("reference metadata %s: unsupported format version %d (supported: [%d,%d])",
			path, m.Version, OldestSupportedVersion, CurrentVersion)
	}
	if err := m.validateContigs(); err != nil {
		return nil, fmt.Errorf("reference metadata %s: %w", path, err)
	}
	return &m, nil
}

// validateContigs enforces spec.md §3's invariant: contigs are
// indexed 0..N-1 with no gaps, and cumulative genomic offsets are
// monotone (checked by the caller once byte sizes are known; here we
// only check the index sequence, since offsets are derived, not
// stored).
func (m *Metadata) validateContigs() error {
	for i, c := range m.Contigs {
		if int(c.Index) != i {
			return fmt.Errorf("contig %q has index %d, expected %d (contigs must be indexed 0..N-1 with no gaps)", c.Name, c.Index, i)
		}
	}
	return nil
}
