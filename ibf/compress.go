package ibf

import (
	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/raptor-ibf/raptor/raptorerr"
)

// Compressed is a read-only, succinct view of an IBF's bit vector,
// grounded on sourcegraph-zoekt's use of RoaringBitmap for compact
// posting-list storage: at query time an interleaved filter is
// typically 90%+ zero bits outside of its populated positions, so a
// roaring bitmap over the set-bit indices is frequently far smaller
// than the raw word slice while still answering single-bit and
// bulk-AND style queries in bounded time.
type Compressed struct {
	bins       uint64
	binsPad    uint64
	bitsPerBin uint64
	hashCount  uint32
	wpp        uint64
	bitmap     *roaring64.Bitmap
}

// Compress builds a succinct read-only view of f. The original
// f remains usable for further Emplace calls; Compress does not
// mutate f, it snapshots it.
func (f *IBF) Compress() (*Compressed, error) {
	bm := roaring64.New()
	for wordIdx, w := range f.words {
		if w == 0 {
			continue
		}
		base := uint64(wordIdx) * 64
		for w != 0 {
			bit := trailingZeros64(w)
			bm.Add(base + uint64(bit))
			w &= w - 1
		}
	}
	bm.RunOptimize()

	return &Compressed{
		bins:       f.bins,
		binsPad:    f.binsPad,
		bitsPerBin: f.bitsPerBin,
		hashCount:  f.hashCount,
		wpp:        f.wpp,
		bitmap:     bm,
	}, nil
}

func trailingZeros64(w uint64) int {
	n := 0
	for w&1 == 0 {
		w >>= 1
		n++
	}
	return n
}

// Contains reports whether bin may contain x, evaluated directly
// against the roaring bitmap without ever materializing a full word
// slice.
func (c *Compressed) Contains(avalanche func(x, seed uint64) uint64, seeds [MaxHashCount]uint64, x uint64, bin uint64) bool {
	if bin >= c.bins {
		return false
	}
	for i := uint32(0); i < c.hashCount; i++ {
		p := avalanche(x, seeds[i]) % c.bitsPerBin
		idx := p*c.binsPad + bin
		if !c.bitmap.Contains(idx) {
			return false
		}
	}
	return true
}

// Cardinality returns the number of set bits, mirroring IBF.PopCount
// for the compressed representation.
func (c *Compressed) Cardinality() uint64 { return c.bitmap.GetCardinality() }

// Decompress rebuilds a mutable IBF from the succinct view, for
// callers that need the word-sliced representation back for
// IncreaseBinTo or further Emplace calls. The index loader does not
// call it; it keeps the compressed view as is.
func (c *Compressed) Decompress() (*IBF, error) {
	f, err := New(c.bins, c.bitsPerBin, c.hashCount)
	if err != nil {
		return nil, err
	}
	it := c.bitmap.Iterator()
	for it.HasNext() {
		idx := it.Next()
		wordIdx := idx / 64
		bitOff := idx % 64
		if int(wordIdx) >= len(f.words) {
			return nil, raptorerr.New(raptorerr.IndexCorrupt, "compressed bitmap index out of range")
		}
		f.words[wordIdx] |= uint64(1) << bitOff
	}
	return f, nil
}

// MarshalBinary serializes the roaring bitmap payload for the index
// writer; dimensions (bins/bitsPerBin/hashCount) are carried
// separately in the index header, not inside this payload.
func (c *Compressed) MarshalBinary() ([]byte, error) {
	return c.bitmap.ToBytes()
}

// NewCompressedFromHeader reconstructs a Compressed view from a
// previously serialized payload plus the dimensions recorded in the
// index header.
func NewCompressedFromHeader(bins, bitsPerBin uint64, hashCount uint32, payload []byte) (*Compressed, error) {
	bm := roaring64.New()
	if _, err := bm.FromBuffer(payload); err != nil {
		return nil, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "decoding compressed IBF payload")
	}
	binsPad := roundUp64(bins)
	return &Compressed{
		bins:       bins,
		binsPad:    binsPad,
		bitsPerBin: roundUp64(bitsPerBin),
		hashCount:  hashCount,
		wpp:        binsPad / 64,
		bitmap:     bm,
	}, nil
}
