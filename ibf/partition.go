package ibf

import "math"

// HashPartition maps x into one of P partitions by taking its top
// bits, used to split a single large IBF build into P independent
// interleaved filters so a build can be sharded across machines/runs
// without changing which partition any given hash lands in.
// P must be a power of two; callers validate this at the driver layer
// (spec.md: "non-power-of-two parts" is an InvalidArgument edge case).
func HashPartition(x uint64, parts uint64) uint64 {
	if parts <= 1 {
		return 0
	}
	shift := 64 - bitLen(parts-1)
	return x >> uint(shift)
}

func bitLen(n uint64) int {
	l := 0
	for n > 0 {
		l++
		n >>= 1
	}
	return l
}

// CorrectionFactor computes the per-partition bin-size correction so a
// P-way split build's observed false positive rate still matches the
// single-filter target f. Ported term-for-term from the original
// ibf_fpr tool's compute_fp_correction (the "// New" variant, not the
// superseded "// Old" one left commented out alongside it), using
// math.Log1p for every (1-x) term to avoid catastrophic cancellation
// as f approaches 0, exactly as that implementation does.
func CorrectionFactor(f float64, h uint32, parts uint64) float64 {
	if parts <= 1 {
		return 1
	}
	hh := float64(h)
	pp := float64(parts)

	numerator := math.Log1p(-math.Exp(math.Log(f) / hh))
	logTargetFPR := math.Log1p(-math.Exp(math.Log1p(-f) / pp))
	denominator := math.Log1p(-math.Exp(logTargetFPR / hh))

	return numerator / denominator
}

// BinSizeInBits returns the bits-per-bin needed to hold n elements at
// false positive rate f with h hash functions, ported from
// bin_size_in_bits in the original ibf_fpr tool.
func BinSizeInBits(n uint64, f float64, h uint32) uint64 {
	hh := float64(h)
	numerator := -float64(n) * hh
	denominator := math.Log(1.0 - math.Exp(math.Log(f)/hh))
	return uint64(math.Ceil(numerator / denominator))
}

// EstimatedFPP estimates the per-bin false positive probability of the
// filter given the number of elements n inserted per bin, following
// the standard Bloom filter FPR approximation
// (1 - e^(-h*n/s))^h, evaluated with the filter's own s and h.
func (f *IBF) EstimatedFPP(n uint64) float64 {
	s := float64(f.bitsPerBin)
	h := float64(f.hashCount)
	exponent := -h * float64(n) / s
	base := 1 - math.Exp(exponent)
	return math.Pow(base, h)
}
