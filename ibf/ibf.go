// Package ibf implements the Interleaved Bloom Filter: a bit-sliced
// variant of the Bloom filter that stores B filters side by side so a
// single membership query returns a B-bit occupancy vector in one
// pass. Adapted from shaia-BloomFilter's cache-line-aligned,
// atomically-updated bit vector (bloomfilter.go), generalized from a
// single filter to B interleaved ones addressed per the layout in
// spec.md §3: logical bit (bin b, position p) lives at physical index
// p*B_pad + b, where B_pad = round_up(B, 64).
package ibf

import (
	"sync/atomic"
	"unsafe"

	"github.com/raptor-ibf/raptor"
	"github.com/raptor-ibf/raptor/internal/hash"
	"github.com/raptor-ibf/raptor/internal/simd"
	"github.com/raptor-ibf/raptor/internal/storage"
	"github.com/raptor-ibf/raptor/raptorerr"
)

// MaxHashCount is the largest number of hash functions the filter
// supports (spec: h in 1..5).
const MaxHashCount = 5

// seeds are the fixed position-function constants ("seed_i are fixed
// constants" in spec.md §3); position i uses seeds[i]. They are odd
// 64-bit values chosen for good avalanche mixing, pinned so two builds
// of the same parameters produce byte-identical filters.
var seeds = [MaxHashCount]uint64{
	0x9E3779B97F4A7C15,
	0xBF58476D1CE4E5B9,
	0x94D049BB133111EB,
	0xD6E8FEB86659FD93,
	0xA24BAED4963EE407,
}

// IBF is an immutable-once-built Interleaved Bloom Filter. Zero value
// is not usable; construct with New.
type IBF struct {
	bins       uint64 // B
	binsPad    uint64 // B_pad = round_up(B, 64)
	bitsPerBin uint64 // s, rounded up to a multiple of 64
	hashCount  uint32 // h
	wpp        uint64 // words per position = binsPad / 64

	words   []uint64 // flat bit vector, len = bitsPerBin * wpp
	simdOps simd.Operations
}

func roundUp64(n uint64) uint64 { return (n + 63) &^ 63 }

// New allocates a zeroed IBF for B bins, s bits per bin (rounded up to
// a multiple of 64) and h hash functions (1..5).
func New(bins, bitsPerBin uint64, hashCount uint32) (*IBF, error) {
	if bins == 0 {
		return nil, raptorerr.New(raptorerr.InvalidArgument, "bin count must be > 0")
	}
	if hashCount < 1 || hashCount > MaxHashCount {
		return nil, raptorerr.New(raptorerr.InvalidArgument, "hash count must be in [1,5]")
	}
	if bitsPerBin == 0 {
		return nil, raptorerr.New(raptorerr.InvalidArgument, "bits per bin must be > 0")
	}

	binsPad := roundUp64(bins)
	s := roundUp64(bitsPerBin)
	wpp := binsPad / 64

	totalWords := s * wpp
	// 64 bits per word; guard against an allocation request that
	// cannot plausibly be addressed (spec: OutOfResources when
	// bin count * bits exceeds addressable memory).
	const maxWords = 1 << 34 // 128 GiB of bit vector
	if totalWords == 0 || totalWords > maxWords {
		return nil, raptorerr.New(raptorerr.OutOfResources, "requested IBF size exceeds addressable memory")
	}

	return &IBF{
		bins:       bins,
		binsPad:    binsPad,
		bitsPerBin: s,
		hashCount:  hashCount,
		wpp:        wpp,
		words:      make([]uint64, totalWords),
		simdOps:    simd.Get(),
	}, nil
}

// Bins returns B.
func (f *IBF) Bins() uint64 { return f.bins }

// BitsPerBin returns s.
func (f *IBF) BitsPerBin() uint64 { return f.bitsPerBin }

// HashCount returns h.
func (f *IBF) HashCount() uint32 { return f.hashCount }

// position computes p_i(x) = seeded_mix(x, seed_i) mod s.
func (f *IBF) position(x uint64, i uint32) uint64 {
	return raptor.Avalanche(x, seeds[i]) % f.bitsPerBin
}

// wordRange returns the slice of words holding all B_pad bins at
// position p.
func (f *IBF) wordRange(p uint64) []uint64 {
	base := p * f.wpp
	return f.words[base : base+f.wpp]
}

// Emplace sets the h bits for hash x in bin b. Idempotent, O(h).
// Safe to call concurrently from distinct goroutines, including
// concurrently with other Emplace calls for different bins: writes
// are 64-bit atomic fetch-or and OR is commutative, so interleaving
// order never affects the final bit pattern. Emplace must not be
// called concurrently with BulkContains/NewAgent reads (build and
// query are distinct, non-overlapping phases).
func (f *IBF) Emplace(x uint64, bin uint64) error {
	if bin >= f.bins {
		return raptorerr.New(raptorerr.InvalidArgument, "bin index out of range")
	}

	probes := storage.GetProbes()
	defer storage.PutProbes(probes)

	for i := uint32(0); i < f.hashCount; i++ {
		probes.Positions[i] = f.position(x, i)
	}
	for i := uint32(0); i < f.hashCount; i++ {
		p := probes.Positions[i]
		words := f.wordRange(p)
		wordIdx := bin / 64
		bitOffset := bin % 64
		mask := uint64(1) << bitOffset
		ptr := &words[wordIdx]
		for {
			old := atomic.LoadUint64(ptr)
			next := old | mask
			if old == next || atomic.CompareAndSwapUint64(ptr, old, next) {
				break
			}
		}
	}
	return nil
}

// EmplaceBytes hashes data with two independent byte hashes (adapted
// from shaia-BloomFilter's byte-oriented Add path), combines them into
// one 64-bit key as h1 ^ (h2 << 1), and emplaces that key; a
// convenience for callers inserting raw keys rather than precomputed
// minimiser hashes.
func (f *IBF) EmplaceBytes(data []byte, bin uint64) error {
	h1 := hash.Optimized1(data)
	h2 := hash.Optimized2(data)
	return f.Emplace(h1^(h2<<1), bin)
}

// MembershipAgent is a per-goroutine scratch holder for BulkContains:
// "small scratch buffer holding the per-position occupancy vector",
// reused across reads, never shared between threads.
type MembershipAgent struct {
	f   *IBF
	occ *storage.Occupancy
}

// NewAgent returns a MembershipAgent bound to f. Callers should create
// one per query worker goroutine and reuse it across reads.
func (f *IBF) NewAgent() *MembershipAgent {
	return &MembershipAgent{f: f, occ: storage.GetOccupancy(int(f.wpp))}
}

// Close returns the agent's scratch buffer to the pool. Not required
// for correctness, just avoids pool churn under high agent turnover.
func (a *MembershipAgent) Close() { storage.PutOccupancy(a.occ) }

// BulkContains computes the AND of the h occupancy vectors for x and
// returns the result as wpp little-endian words: bit b of the result
// is set iff bin b may contain x. The returned slice is owned by the
// agent and invalidated by the next BulkContains call.
func (a *MembershipAgent) BulkContains(x uint64) []uint64 {
	f := a.f
	occ := a.occ.Words

	p0 := f.position(x, 0)
	copy(occ, f.wordRange(p0))

	for i := uint32(1); i < f.hashCount; i++ {
		p := f.position(x, i)
		src := f.wordRange(p)
		if f.wpp == 0 {
			continue
		}
		f.simdOps.VectorAnd(unsafe.Pointer(&occ[0]), unsafe.Pointer(&src[0]), int(f.wpp)*8)
	}
	return occ
}

// ContainsBin reports whether BulkContains(x) indicates bin may
// contain x. A thin convenience over bit-testing the raw word slice.
func ContainsBin(occupancy []uint64, bin uint64) bool {
	word := occupancy[bin/64]
	return word&(uint64(1)<<(bin%64)) != 0
}

// Contains is a single-bin convenience wrapping BulkContains; prefer
// BulkContains directly when checking many/all bins for the same x.
func (f *IBF) Contains(x uint64, bin uint64) bool {
	a := f.NewAgent()
	defer a.Close()
	occ := a.BulkContains(x)
	return ContainsBin(occ, bin)
}

// IncreaseBinTo grows the filter to B' bins, preserving every existing
// bin's bits at the same logical position and zero-filling new bins.
// Fails if B' < B. Because B_pad can change (crossing a 64 boundary
// changes the stride p*B_pad+b), this reallocates the full bit vector
// and recopies every set bit at its new logical position.
func (f *IBF) IncreaseBinTo(newBins uint64) error {
	if newBins < f.bins {
		return raptorerr.New(raptorerr.InvalidArgument, "increase_bin_to requires a larger bin count")
	}
	if newBins == f.bins {
		return nil
	}

	newBinsPad := roundUp64(newBins)
	newWpp := newBinsPad / 64
	newWords := make([]uint64, f.bitsPerBin*newWpp)

	if newBinsPad == f.binsPad {
		// Stride unchanged: a straight copy preserves every position's
		// word group verbatim.
		copy(newWords, f.words)
	} else {
		for p := uint64(0); p < f.bitsPerBin; p++ {
			oldRange := f.words[p*f.wpp : p*f.wpp+f.wpp]
			for b := uint64(0); b < f.bins; b++ {
				if oldRange[b/64]&(uint64(1)<<(b%64)) == 0 {
					continue
				}
				idx := p*newWpp + b/64
				newWords[idx] |= uint64(1) << (b % 64)
			}
		}
	}

	f.bins = newBins
	f.binsPad = newBinsPad
	f.wpp = newWpp
	f.words = newWords
	return nil
}

// PopCount returns the total number of set bits in the bit vector.
func (f *IBF) PopCount() uint64 {
	if len(f.words) == 0 {
		return 0
	}
	return uint64(f.simdOps.PopCount(unsafe.Pointer(&f.words[0]), len(f.words)*8))
}

// Union OR's other's bit vector into f in place. Both filters must
// share identical dimensions (bins, bitsPerBin, hashCount); mismatched
// filters cannot be meaningfully combined since their positions would
// not line up.
func (f *IBF) Union(other *IBF) error {
	if err := f.requireSameShape(other); err != nil {
		return err
	}
	if len(f.words) == 0 {
		return nil
	}
	f.simdOps.VectorOr(unsafe.Pointer(&f.words[0]), unsafe.Pointer(&other.words[0]), len(f.words)*8)
	return nil
}

// Intersection AND's other's bit vector into f in place, same shape
// requirement as Union.
func (f *IBF) Intersection(other *IBF) error {
	if err := f.requireSameShape(other); err != nil {
		return err
	}
	if len(f.words) == 0 {
		return nil
	}
	f.simdOps.VectorAnd(unsafe.Pointer(&f.words[0]), unsafe.Pointer(&other.words[0]), len(f.words)*8)
	return nil
}

func (f *IBF) requireSameShape(other *IBF) error {
	if f.bins != other.bins || f.bitsPerBin != other.bitsPerBin || f.hashCount != other.hashCount {
		return raptorerr.New(raptorerr.InvalidArgument, "filters must share identical dimensions")
	}
	return nil
}

// Seeds exposes the fixed position-function seeds so the compressed
// view's Contains can reproduce f.position without depending on the
// unexported seeds array directly.
func Seeds() [MaxHashCount]uint64 { return seeds }

// Position is the exported form of position, for callers that need to
// recompute a bin position outside the IBF itself.
func (f *IBF) Position(x uint64, i uint32) uint64 { return f.position(x, i) }

// Clear zeroes the entire bit vector (not part of the query-time
// surface).
func (f *IBF) Clear() {
	if len(f.words) == 0 {
		return
	}
	f.simdOps.VectorClear(unsafe.Pointer(&f.words[0]), len(f.words)*8)
}

// RawWords exposes the flat bit vector for the index writer
// (indexfile package); callers must not mutate it after the IBF has
// left the build phase.
func (f *IBF) RawWords() []uint64 { return f.words }

// WordsPerPosition exposes wpp so the index writer/reader can compute
// on-disk layout without duplicating the round-up logic.
func (f *IBF) WordsPerPosition() uint64 { return f.wpp }

// FromRawWords reconstructs an IBF from a previously serialized bit
// vector (used by the index loader). The caller guarantees words was
// produced by a layout-compatible New(bins, bitsPerBin, hashCount).
func FromRawWords(bins, bitsPerBin uint64, hashCount uint32, words []uint64) (*IBF, error) {
	f, err := New(bins, bitsPerBin, hashCount)
	if err != nil {
		return nil, err
	}
	if len(words) != len(f.words) {
		return nil, raptorerr.New(raptorerr.IndexCorrupt, "bit vector length does not match header dimensions")
	}
	copy(f.words, words)
	return f, nil
}
