package threshold

import (
	"math/rand"

	"github.com/raptor-ibf/raptor"
)

// monteCarloSeed is the fixed RNG seed so two runs on the same
// (k, w, span, L) produce byte-identical distributions, ported
// verbatim from destroyed_indirectly_by_error.cpp's std::mt19937_64
// seed.
const monteCarloSeed = 0x1D2B8284D988C4D0

const monteCarloIterations = 10_000

var bases = [4]byte{'A', 'C', 'G', 'T'}

// DestroyedIndirectlyByError estimates, for a pattern of length
// patternSize scanned with window width w under shape, the empirical
// distribution P[N_destroyed = j] of how many minimiser begin
// positions change when a single random substitution error is
// introduced outside the affected k-mer's own span. Ported from
// destroyed_indirectly_by_error.cpp: generate a random DNA4 sequence,
// compute its minimiser begin-position set, introduce one
// substitution at a uniformly random position (guaranteed to change
// the base), recompute, and count positions i where membership
// flipped AND the error lies strictly outside [i, i+k). Repeated for
// 10,000 iterations with a fixed seed.
func DestroyedIndirectlyByError(patternSize, w int, shape raptor.Shape) []float64 {
	k := int(shape.K())
	maxMinimisers := patternSize - w + 1
	if maxMinimisers <= 0 {
		return []float64{1}
	}

	rng := rand.New(rand.NewSource(monteCarloSeed))
	result := make([]float64, maxMinimisers+1)

	sequence := make([]byte, patternSize)
	ranks := make([]uint8, patternSize)
	mutated := make([]byte, patternSize)

	originalPositions := make([]bool, maxMinimisers)
	errorPositions := make([]bool, maxMinimisers)

	for iter := 0; iter < monteCarloIterations; iter++ {
		for i := range ranks {
			r := uint8(rng.Intn(4))
			ranks[i] = r
			sequence[i] = bases[r]
		}

		for i := range originalPositions {
			originalPositions[i] = false
		}
		for i := range errorPositions {
			errorPositions[i] = false
		}

		const seed = 0 // the fixed avalanche seed XOR is applied internally
		stream := raptor.NewStream(raptor.NewSliceSource(sequence), shape, w, seed)
		for {
			m, ok := stream.Next()
			if !ok {
				break
			}
			if m.Begin < len(originalPositions) {
				originalPositions[m.Begin] = true
			}
		}

		errorPosition := rng.Intn(patternSize)
		originalRank := ranks[errorPosition]
		newRank := originalRank
		for newRank == originalRank {
			newRank = uint8(rng.Intn(4))
		}

		copy(mutated, sequence)
		mutated[errorPosition] = bases[newRank]

		stream2 := raptor.NewStream(raptor.NewSliceSource(mutated), shape, w, seed)
		for {
			m, ok := stream2.Next()
			if !ok {
				break
			}
			if m.Begin < len(errorPositions) {
				errorPositions[m.Begin] = true
			}
		}

		affected := 0
		for i := 0; i < maxMinimisers; i++ {
			changed := originalPositions[i] != errorPositions[i]
			outsideKmer := errorPosition < i || errorPosition >= i+k
			if changed && outsideKmer {
				affected++
			}
		}
		result[affected]++
	}

	for i := range result {
		result[i] /= float64(monteCarloIterations)
	}
	return result
}
