package tileio

// trimTrailingLowQuality removes trailing bases whose quality is
// below cutoff, stopping at the first base (from the end) that meets
// the cutoff, and never trimming past half the read's length
// (spec.md §4.2). bases and quality must be the same length.
func trimTrailingLowQuality(bases, quality []byte, cutoff byte) ([]byte, []byte) {
	if len(bases) == 0 {
		return bases, quality
	}
	minKeep := len(bases) / 2
	end := len(bases)
	for end > minKeep && quality[end-1] < cutoff {
		end--
	}
	return bases[:end], quality[:end]
}
