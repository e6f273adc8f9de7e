package template

// ungappedAlign slides bases against a reference window of the same
// length, counting mismatches and an N as always-mismatching, and
// computing the fragment's alignment log-probability (spec.md §4.4
// stage A). It never returns an indel; callers decide whether the
// mismatch count is low enough to accept this fast path or whether to
// fall back to Smith-Waterman.
func ungappedAlign(bases, quality, refWindow []byte) Fragment {
	n := len(bases)
	if len(refWindow) < n {
		return Fragment{Unaligned: true}
	}
	mismatches := 0
	logProb := 0.0
	for i := 0; i < n; i++ {
		q := qualityIndex(quality[i])
		if bases[i] == refWindow[i] && bases[i] != 'N' {
			logProb += logMatch[q]
		} else {
			mismatches++
			logProb += logMismatch[q]
		}
	}
	return Fragment{
		Cigar:      []CigarOp{{Length: int32(n), Op: 'M'}},
		Mismatches: mismatches,
		LogProb:    logProb,
		Bases:      bases,
		Quality:    quality,
	}
}

// hasSuspiciousMismatchRun reports whether bases shows a run of
// consecutive mismatches against refWindow at least runLen long,
// the heuristic the "smart" gapped mode (spec.md §4.4 stage A) uses to
// decide whether an ungapped fragment's mismatches are more likely a
// gap than scattered substitutions.
func hasSuspiciousMismatchRun(bases, refWindow []byte, runLen int) bool {
	run := 0
	n := len(bases)
	if len(refWindow) < n {
		n = len(refWindow)
	}
	for i := 0; i < n; i++ {
		if bases[i] != refWindow[i] {
			run++
			if run >= runLen {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}
