// Package knownsites reads the position-sorted known-indel file the
// realigner consults (spec.md §6, "Known indels (input)"). Only the
// columns the realigner needs (contig, position, reference allele,
// alternate alleles) are kept; this is not a general VCF parser.
package knownsites

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/seqalign/alignpipe/internal"
	"github.com/seqalign/alignpipe/utils"
)

// Indel is one known insertion or deletion at a reference position
// (spec.md §6).
type Indel struct {
	Contig utils.Symbol
	Pos    int32 // 0-based, VCF POS - 1
	Ref    string
	Alt    string
}

// Length returns the signed reference-length delta Ref->Alt
// contributes: negative for a deletion, positive for an insertion,
// zero for anything else (SNVs are not realignment candidates).
func (i Indel) Length() int32 {
	return int32(len(i.Alt)) - int32(len(i.Ref))
}

// Set is a position-sorted, contig-bucketed collection of known
// indels, queried by the realigner for gap candidates overlapping a
// bin's reference span.
type Set struct {
	byContig map[utils.Symbol][]Indel
}

// Load reads a known-indels file in the VCF-derived layout
// (tab-separated CHROM, POS, ID, REF, ALT, ... — vcf.DefaultHeaderColumns
// in the teacher's vcf package), keeping only the fields the realigner
// uses and skipping header/meta lines beginning with '#'.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, internal.Wrap("loading known indels", err)
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (*Set, error) {
	set := &Set{byContig: make(map[utils.Symbol][]Indel)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 5 {
			return nil, fmt.Errorf("known indels file line %d: expected at least 5 tab-separated fields, got %d", line, len(fields))
		}
		pos, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("known indels file line %d: invalid POS %q: %w", line, fields[1], err)
		}
		contig := utils.Intern(fields[0])
		ref := fields[3]
		for _, alt := range strings.Split(fields[4], ",") {
			if alt == "" || alt == "." {
				continue
			}
			ind := Indel{Contig: contig, Pos: int32(pos - 1), Ref: ref, Alt: alt}
			if ind.Length() == 0 {
				continue // not an indel; nothing for the realigner to do with it
			}
			set.byContig[contig] = append(set.byContig[contig], ind)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for contig := range set.byContig {
		indels := set.byContig[contig]
		sort.Slice(indels, func(i, j int) bool { return indels[i].Pos < indels[j].Pos })
		set.byContig[contig] = indels
	}
	return set, nil
}

// Overlapping returns every known indel on contig whose position lies
// within [start, end).
func (s *Set) Overlapping(contig utils.Symbol, start, end int32) []Indel {
	if s == nil {
		return nil
	}
	indels := s.byContig[contig]
	lo := sort.Search(len(indels), func(i int) bool { return indels[i].Pos >= start })
	hi := sort.Search(len(indels), func(i int) bool { return indels[i].Pos >= end })
	if lo >= hi {
		return nil
	}
	return indels[lo:hi]
}
