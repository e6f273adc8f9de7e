package refidx

import (
	"fmt"
	"os"

	"github.com/exascience/pargo/parallel"
	"golang.org/x/sys/unix"

	"github.com/seqalign/alignpipe/refformat"
	"github.com/seqalign/alignpipe/utils"
)

// Contig is one reference contig, memory-resident for the lifetime of
// the alignment run (spec.md §3: "Contigs are memory-resident during
// alignment").
type Contig struct {
	Index         int32
	Name          utils.Symbol
	Length        int32
	GenomicOffset int64
	Decoy         bool
	seq           []byte // slice into a mmap'd packed-sequence file
}

// Bases returns the upper-cased A/C/G/T/N sequence for [start,end) on
// this contig. Callers must keep the owning Index alive; Bases does
// not copy.
func (c *Contig) Bases(start, end int32) []byte {
	return c.seq[start:end]
}

// mappedFile is one mmap'd packed-sequence file backing one or more
// contigs, modeled on the teacher's MappedFasta
// (fasta/fasta-files.go): read-only mmap, closed once at shutdown.
type mappedFile struct {
	file *os.File
	data []byte
}

func openMappedFile(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if stat.Size() == 0 {
		// unix.Mmap rejects zero-length mappings; an empty packed
		// sequence file can't back any contig anyway.
		_ = f.Close()
		return nil, fmt.Errorf("%s: empty reference sequence file", path)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &mappedFile{file: f, data: data}, nil
}

func (m *mappedFile) close() error {
	err := unix.Munmap(m.data)
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// pathGroup is every contig descriptor index sharing one backing
// packed-sequence file.
type pathGroup struct {
	path    string
	indices []int
}

// loadContigs mmaps every distinct packed-sequence file referenced by
// desc and slices out each contig's byte range, exactly as
// OpenElfasta slices per-contig ranges out of one mmap'd .elfasta
// file. Distinct contig files are opened concurrently via
// parallel.Range, mirroring OpenElfasta's background goroutine load;
// each group writes only to its own slot in per-group result slices,
// so no shared lock is needed across groups.
func loadContigs(desc []refformat.ContigDescriptor, decoy func(name string) bool) ([]Contig, []*mappedFile, error) {
	byPath := make(map[string][]int)
	var order []string
	for i, c := range desc {
		if _, ok := byPath[c.Path]; !ok {
			order = append(order, c.Path)
		}
		byPath[c.Path] = append(byPath[c.Path], i)
	}
	groups := make([]pathGroup, len(order))
	for i, path := range order {
		groups[i] = pathGroup{path: path, indices: byPath[path]}
	}

	contigs := make([]Contig, len(desc))
	groupFiles := make([]*mappedFile, len(groups))
	groupErrs := make([]error, len(groups))

	parallel.Range(0, len(groups), 0, func(low, high int) {
		for gi := low; gi < high; gi++ {
			g := groups[gi]
			mf, err := openMappedFile(g.path)
			if err != nil {
				groupErrs[gi] = err
				continue
			}
			groupFiles[gi] = mf
			for _, i := range g.indices {
				c := desc[i]
				if c.ByteOffset+c.ByteSize > int64(len(mf.data)) {
					groupErrs[gi] = fmt.Errorf("%s: contig %q range [%d,%d) exceeds file size %d", g.path, c.Name, c.ByteOffset, c.ByteOffset+c.ByteSize, len(mf.data))
					break
				}
				contigs[i] = Contig{
					Index:  c.Index,
					Name:   utils.Intern(c.Name),
					Length: int32(c.TotalBases),
					Decoy:  c.Decoy || decoy(c.Name),
					seq:    mf.data[c.ByteOffset : c.ByteOffset+c.ByteSize],
				}
			}
		}
	})

	var firstErr error
	files := make([]*mappedFile, 0, len(groups))
	for i, mf := range groupFiles {
		if mf != nil {
			files = append(files, mf)
		}
		if groupErrs[i] != nil && firstErr == nil {
			firstErr = groupErrs[i]
		}
	}
	if firstErr != nil {
		for _, mf := range files {
			_ = mf.close()
		}
		return nil, nil, firstErr
	}

	var offset int64
	for i := range contigs {
		contigs[i].GenomicOffset = offset
		offset += int64(contigs[i].Length)
	}
	return contigs, files, nil
}
