// Package refidx loads a pre-processed reference genome into memory:
// the contig table (mmap'd sequence bytes, spec.md §4.1) and the
// k-mer mask files that back seed lookups (spec.md §4.3's
// MatchFinder). Reference pre-processing that produces these files is
// out of scope (spec.md §1); this package only consumes them.
package refidx

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/seqalign/alignpipe/config"
	"github.com/seqalign/alignpipe/refformat"
	"github.com/seqalign/alignpipe/refpos"
	"github.com/seqalign/alignpipe/utils"
)

// Index is the full in-memory reference: contigs plus one merged
// k-mer table per seed length present in the metadata. A run may use
// more than one seed length (spec.md §4.3, "the matcher may be
// configured with more than one seed length to trade sensitivity for
// specificity"), so tables are keyed by seed length rather than
// assuming exactly one.
type Index struct {
	Contigs []Contig
	decoys  *bitset.BitSet // indexed by Contig.Index

	tables map[int32]*mergedMaskTable

	kUniqueness *annotationTable

	files []*mappedFile
	masks []*mappedFile
	annos []*mappedFile
}

// Open loads the reference described by metadataPath: mmaps every
// contig sequence file and every mask file it references, and
// prepares the decoy bitset from cfg's decoy pattern combined with
// any decoy="true" contig in the metadata itself.
func Open(metadataPath string, cfg *config.Config) (*Index, error) {
	meta, err := refformat.Parse(metadataPath)
	if err != nil {
		return nil, err
	}

	contigs, contigFiles, err := loadContigs(meta.Contigs, cfg.IsDecoy)
	if err != nil {
		return nil, fmt.Errorf("loading reference contigs: %w", err)
	}

	idx := &Index{
		Contigs: contigs,
		decoys:  bitset.New(uint(len(contigs))),
		tables:  make(map[int32]*mergedMaskTable),
		files:   contigFiles,
	}
	for _, c := range contigs {
		if c.Decoy {
			idx.decoys.Set(uint(c.Index))
		}
	}

	byLength := make(map[int32][]refformat.MaskDescriptor)
	for _, m := range meta.Masks {
		byLength[m.SeedLength] = append(byLength[m.SeedLength], m)
	}

	for seedLength, descs := range byLength {
		merged := &mergedMaskTable{seedLength: seedLength}
		for _, d := range descs {
			mf, err := openMappedFile(d.Path)
			if err != nil {
				idx.Close()
				return nil, fmt.Errorf("loading mask file for seed length %d: %w", seedLength, err)
			}
			idx.masks = append(idx.masks, mf)
			table, err := loadMaskFile(d, mf)
			if err != nil {
				idx.Close()
				return nil, err
			}
			merged.shards = append(merged.shards, table)
		}
		idx.tables[seedLength] = merged
	}

	for _, a := range meta.Annotations {
		if a.Type != refformat.KUniqueness {
			continue
		}
		mf, err := openMappedFile(a.Path)
		if err != nil {
			idx.Close()
			return nil, fmt.Errorf("loading k-uniqueness annotation: %w", err)
		}
		idx.annos = append(idx.annos, mf)
		table, err := loadAnnotation(a, mf)
		if err != nil {
			idx.Close()
			return nil, err
		}
		idx.kUniqueness = table
	}

	return idx, nil
}

// Close unmaps every contig sequence file and mask file this Index
// holds open. Safe to call once after Open returns a non-nil Index,
// including on the error path, where already-opened files must still
// be released.
func (idx *Index) Close() error {
	var err error
	for _, mf := range idx.files {
		if cerr := mf.close(); err == nil {
			err = cerr
		}
	}
	for _, mf := range idx.masks {
		if cerr := mf.close(); err == nil {
			err = cerr
		}
	}
	for _, mf := range idx.annos {
		if cerr := mf.close(); err == nil {
			err = cerr
		}
	}
	return err
}

// SeedLengths reports the seed lengths this reference was
// pre-processed for.
func (idx *Index) SeedLengths() []int32 {
	lengths := make([]int32, 0, len(idx.tables))
	for l := range idx.tables {
		lengths = append(lengths, l)
	}
	return lengths
}

// Lookup resolves kmer (of the given seed length) to the reference
// positions the mask file recorded for it, per spec.md §4.3's seed
// classification contract (unique / repeat / too-many-repeats).
func (idx *Index) Lookup(seedLength int32, kmer uint64) (LookupResult, error) {
	table, ok := idx.tables[seedLength]
	if !ok {
		return LookupResult{}, fmt.Errorf("reference has no mask file for seed length %d", seedLength)
	}
	return table.lookup(kmer), nil
}

// IsDecoy reports whether a contig, identified by index, was flagged
// as a decoy sequence (spec.md §3: decoy contigs are eligible
// alignment targets but excluded from primary reporting).
func (idx *Index) IsDecoy(contigIndex int32) bool {
	return idx.decoys.Test(uint(contigIndex))
}

// ContigByName finds a contig by its interned name, or returns ok=false.
func (idx *Index) ContigByName(name utils.Symbol) (*Contig, bool) {
	for i := range idx.Contigs {
		if idx.Contigs[i].Name == name {
			return &idx.Contigs[i], true
		}
	}
	return nil, false
}

// Resolve converts a genomic offset (as used by bin partitioning,
// spec.md §4.5) back into a contig-relative Position.
func (idx *Index) Resolve(genomicOffset int64) (refpos.Position, bool) {
	for i := range idx.Contigs {
		c := &idx.Contigs[i]
		if genomicOffset >= c.GenomicOffset && genomicOffset < c.GenomicOffset+int64(c.Length) {
			return refpos.Position{Contig: c.Index, Offset: int32(genomicOffset - c.GenomicOffset)}, true
		}
	}
	return refpos.None, false
}

// GenomicOffset converts a contig-relative Position into the flat
// genomic offset used to index annotation tables.
func (idx *Index) GenomicOffset(p refpos.Position) int64 {
	return idx.Contigs[p.Contig].GenomicOffset + int64(p.Offset)
}
