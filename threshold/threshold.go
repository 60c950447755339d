package threshold

import (
	"math"
	"sync"

	"github.com/raptor-ibf/raptor"
)

// Params identifies one threshold model instance: the shape and
// window width the minimiser stream runs under, plus the tolerated
// substitution error count and the confidence level used to pick a
// cutoff from the destruction distribution.
type Params struct {
	Shape   raptor.Shape
	Window  int
	Errors  uint8
	Alpha   float64 // confidence; values <= 0 fall back to 0.01 (not derived from the index's target FPR)
	Override float64 // if > 0, bypasses the model: tau(L) = ceil(Override * kmerCount(L))
}

// Table is a threshold engine bound to one Params, lazily computing
// and caching tau(L) for every pattern length L actually queried.
type Table struct {
	params Params

	mu         sync.Mutex
	cache      map[int]int
	perErrorMC map[int][]float64 // cached Monte-Carlo distribution, keyed by L
}

// NewTable constructs a Table for the given parameters. All results
// are computed lazily and cached in a map keyed by pattern length L.
func NewTable(p Params) *Table {
	return &Table{params: p, cache: make(map[int]int), perErrorMC: make(map[int][]float64)}
}

// kmerCount returns M = L - w + 1, the number of minimisers a clean
// pattern of length L produces.
func kmerCount(L, w int) int {
	m := L - w + 1
	if m < 0 {
		return 0
	}
	return m
}

// Tau returns tau(L): the minimum number of shared minimisers that
// makes a bin a "hit" for a pattern of length L, under this table's
// parameters. Cached after first computation.
func (t *Table) Tau(L int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if v, ok := t.cache[L]; ok {
		return v
	}

	M := kmerCount(L, t.params.Window)

	var tau int
	if t.params.Override > 0 {
		tau = int(math.Ceil(t.params.Override * float64(M)))
	} else {
		tau = t.computeModelTau(L, M)
	}

	t.cache[L] = tau
	return tau
}

// computeModelTau implements the combining step of spec.md 4.D:
// convolve e independent copies of the per-error destruction
// distribution to obtain P[X = j], the number of minimisers destroyed
// by e errors, then pick the largest t such that
// P[X > M - t] <= alpha.
func (t *Table) computeModelTau(L, M int) int {
	p := t.params
	if p.Errors == 0 || M <= 0 {
		return M
	}

	dist := t.perErrorDistribution(L, M)

	combined := dist
	for e := uint8(1); e < p.Errors; e++ {
		combined = convolve(combined, dist)
	}

	alpha := p.Alpha
	if alpha <= 0 {
		alpha = 0.01
	}

	// tail[j] = P[X > j], computed from the combined destruction-count
	// distribution (whose support may exceed M after convolution; any
	// mass beyond M is clamped into the M bucket since a pattern
	// cannot lose more than its M minimisers).
	clamped := make([]float64, M+1)
	for j, pr := range combined {
		idx := j
		if idx > M {
			idx = M
		}
		clamped[idx] += pr
	}

	tail := make([]float64, M+2)
	for j := M - 1; j >= 0; j-- {
		tail[j] = tail[j+1] + clamped[j+1]
	}

	for tau := M; tau >= 0; tau-- {
		if tail[M-tau] <= alpha {
			return tau
		}
	}
	return 0
}

// perErrorDistribution builds the single-error destruction
// distribution over {0..M} by combining the direct destruction
// probability (an error inside the k-mer) with the indirect
// Monte-Carlo distribution (an error outside the k-mer that still
// perturbs the window minimum). A single error destroys exactly one
// minimiser directly (probability p_direct, from the k-mer containing
// the error position) plus, independently, the indirectly-destroyed
// count drawn from the Monte-Carlo model.
func (t *Table) perErrorDistribution(L, M int) []float64 {
	if dist, ok := t.perErrorMC[L]; ok {
		return dist
	}

	indirect := DestroyedIndirectlyByError(L, t.params.Window, t.params.Shape)
	pDirect := DirectDestructionProbability(t.params.Shape.K(), t.params.Shape.Span())

	// Shift the indirect distribution by one destroyed minimiser with
	// probability p_direct (direct hit), and leave it unshifted with
	// probability 1 - p_direct (the error landed outside every k-mer
	// span entirely, a possibility the Monte-Carlo sample already
	// reflects for the indirect-only case).
	out := make([]float64, M+2)
	for j, pr := range indirect {
		if j > M {
			j = M
		}
		out[j] += pr * (1 - pDirect)
		shifted := j + 1
		if shifted > M {
			shifted = M
		}
		out[shifted] += pr * pDirect
	}
	if M+1 < len(out) {
		out = out[:M+1]
	}

	t.perErrorMC[L] = out
	return out
}

// convolve returns the distribution of the sum of two independent
// random variables with distributions a and b.
func convolve(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, pa := range a {
		if pa == 0 {
			continue
		}
		for j, pb := range b {
			out[i+j] += pa * pb
		}
	}
	return out
}
