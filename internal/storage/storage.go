// Package storage provides the pooled scratch buffers the IBF's
// hot paths reuse across calls instead of allocating per-query: a
// fixed-width probe-position buffer (at most 5 positions, one per
// hash function) and a word-wide occupancy accumulator sized to the
// filter's bin count. Both are backed by sync.Pool so concurrent
// query agents don't contend on a shared buffer.
package storage

import "sync"

// MaxHashCount bounds the number of hash functions an IBF can use
// (spec: h in 1..5), letting the probe buffer live on the stack of
// the sync.Pool item rather than escape to a fresh heap slice.
const MaxHashCount = 5

// Probes holds the per-hash-function bit positions computed for one
// emplace or bulk_contains call.
type Probes struct {
	Positions [MaxHashCount]uint64
}

var probesPool = sync.Pool{
	New: func() any { return new(Probes) },
}

// GetProbes returns a Probes from the pool. A reused item is not
// zeroed; callers overwrite the positions they read.
func GetProbes() *Probes { return probesPool.Get().(*Probes) }

// PutProbes returns p to the pool.
func PutProbes(p *Probes) { probesPool.Put(p) }

// Occupancy is a reusable word-wide accumulator for bulk_contains: one
// uint64 per 64 bins, sized ceil(B/64) as required by the resource
// model. It is owned by exactly one MembershipAgent at a time.
type Occupancy struct {
	Words []uint64
}

var occupancyPool sync.Pool

// GetOccupancy returns an Occupancy with at least n words, either
// reused from the pool (reset to zero) or freshly allocated.
func GetOccupancy(n int) *Occupancy {
	if v := occupancyPool.Get(); v != nil {
		o := v.(*Occupancy)
		if cap(o.Words) >= n {
			o.Words = o.Words[:n]
			for i := range o.Words {
				o.Words[i] = 0
			}
			return o
		}
		// Too small for this filter; fall through to a fresh allocation
		// and let the undersized one be garbage collected.
	}
	return &Occupancy{Words: make([]uint64, n)}
}

// PutOccupancy returns o to the pool.
func PutOccupancy(o *Occupancy) { occupancyPool.Put(o) }
