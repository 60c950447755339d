package ibf

import "math/rand"

// FPRReport summarizes an empirical false-positive-rate measurement
// produced by EstimateFPR, mirroring the fp_count/fp_rate pair the
// original ibf_fpr tool printed per run.
type FPRReport struct {
	FalsePositives uint64
	TrialCount     uint64
	Rate           float64
}

// EstimateFPR empirically measures a filter's false positive rate by
// inserting n distinct random hashes into bin and probing trials
// distinct random hashes not among the inserted set, counting how many
// are falsely reported as members. Ported from single_tb in the
// original ibf_fpr tool, generalized from "all 2^k possible k-mer
// values" to a bounded random sample so it stays cheap for large
// bit-per-bin filters where exhaustive enumeration is infeasible.
func EstimateFPR(f *IBF, bin uint64, n, trials uint64, rng *rand.Rand) FPRReport {
	inserted := make(map[uint64]struct{}, n)
	for uint64(len(inserted)) < n {
		v := rng.Uint64()
		if _, ok := inserted[v]; ok {
			continue
		}
		inserted[v] = struct{}{}
		_ = f.Emplace(v, bin)
	}

	agent := f.NewAgent()
	defer agent.Close()

	var fp uint64
	var checked uint64
	for checked < trials {
		v := rng.Uint64()
		if _, ok := inserted[v]; ok {
			continue
		}
		checked++
		occ := agent.BulkContains(v)
		if ContainsBin(occ, bin) {
			fp++
		}
	}

	return FPRReport{
		FalsePositives: fp,
		TrialCount:     checked,
		Rate:           float64(fp) / float64(checked),
	}
}
