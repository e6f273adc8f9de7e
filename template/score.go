package template

import (
	"math"

	"github.com/seqalign/alignpipe/internal"
)

// restOfGenomeCorrection is R in spec.md §4.4 stage D: a small prior
// probability mass that represents "aligns somewhere else in the
// genome we didn't examine," preventing the score formula from
// dividing by zero when a read has exactly one candidate.
func restOfGenomeCorrection(genomeLength int64, readLength int32) float64 {
	denom := math.Pow(4, float64(readLength))
	if math.IsInf(denom, 1) || denom == 0 {
		return 0
	}
	return 2 * float64(genomeLength) / denom
}

// fragmentScore computes spec.md §4.4 stage D's per-fragment
// alignment score: floor(-10*log10((sumOthers+R)/(sumAll+R))), over
// the probabilities (not log-probabilities) of every candidate
// alignment of the read that produced logProbs[chosen].
func fragmentScore(logProbs []float64, chosen int, genomeLength int64, readLength int32) int32 {
	r := restOfGenomeCorrection(genomeLength, readLength)
	sumAll := r
	for _, lp := range logProbs {
		sumAll += math.Exp(lp)
	}
	sumOthers := sumAll - math.Exp(logProbs[chosen])
	if sumAll <= 0 {
		return 0
	}
	ratio := sumOthers / sumAll
	if ratio <= 0 {
		return 60
	}
	return int32(math.Floor(-10 * math.Log10(ratio)))
}

// repeatAlignmentScoreThreshold is REPEAT_ALIGNMENT_SCORE from
// spec.md §4.4 stage D's uniqueness threshold (score > 3 is "unique").
const repeatAlignmentScoreThreshold = 3

// isUniqueAlignment reports whether score clears the uniqueness
// threshold.
func isUniqueAlignment(score int32) bool {
	return score > repeatAlignmentScoreThreshold
}

// mapq computes a fragment's mapping quality per spec.md §4.4 stage D:
//   - proper pair: min(60, max(fragmentScore, min(templateScore, mateFragmentScore)))
//   - solo: min(60, fragmentScore)
//   - shadow: min(min(60, templateScore), mateMapQ)
func mapqProperPair(fragmentScore, templateScore, mateFragmentScore int32) byte {
	return byte(internal.Min(int32(60), internal.Max(fragmentScore, internal.Min(templateScore, mateFragmentScore))))
}

func mapqSolo(fragmentScore int32) byte {
	return byte(internal.Min(int32(60), fragmentScore))
}

func mapqShadow(templateScore int32, mateMapQ byte) byte {
	return byte(internal.Min(internal.Min(int32(60), templateScore), int32(mateMapQ)))
}

// dodgyScore resolves a fragment with no probabilistic distinction
// among its candidates (spec.md §4.4 stage D): either a fixed score,
// or unaligned, per configuration.
func dodgyScore(dodgyAlignmentScore int32, markAsUnaligned bool) (score int32, unaligned bool) {
	if markAsUnaligned {
		return 0, true
	}
	return dodgyAlignmentScore, false
}

// scatterChoice implements stage E: among count equally-scoring tied
// positions, pick index hash(clusterID) mod count, giving uniform coverage
// of repeats without bias (spec.md §4.4 stage E).
func scatterChoice(clusterID int64, count int) int {
	if count <= 0 {
		return 0
	}
	h := uint64(clusterID)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return int(h % uint64(count))
}
