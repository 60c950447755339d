package ibf

import (
	"testing"

	"github.com/raptor-ibf/raptor"
)

func TestCompressPreservesMembership(t *testing.T) {
	f, err := New(16, 4096, 3)
	if err != nil {
		t.Fatal(err)
	}

	values := []struct {
		x   uint64
		bin uint64
	}{
		{1, 0}, {2, 1}, {999, 15}, {123456, 7},
	}
	for _, v := range values {
		if err := f.Emplace(v.x, v.bin); err != nil {
			t.Fatal(err)
		}
	}

	c, err := f.Compress()
	if err != nil {
		t.Fatal(err)
	}

	seeds := Seeds()
	for _, v := range values {
		if !c.Contains(raptor.Avalanche, seeds, v.x, v.bin) {
			t.Fatalf("compressed view lost membership for %d in bin %d", v.x, v.bin)
		}
	}
}

func TestCompressCardinalityMatchesPopCount(t *testing.T) {
	f, _ := New(8, 1024, 2)
	_ = f.Emplace(5, 0)
	_ = f.Emplace(10, 3)

	c, err := f.Compress()
	if err != nil {
		t.Fatal(err)
	}
	if c.Cardinality() != f.PopCount() {
		t.Fatalf("cardinality %d != popcount %d", c.Cardinality(), f.PopCount())
	}
}

func TestDecompressRoundTrips(t *testing.T) {
	f, _ := New(8, 1024, 2)
	_ = f.Emplace(42, 5)

	c, err := f.Compress()
	if err != nil {
		t.Fatal(err)
	}
	f2, err := c.Decompress()
	if err != nil {
		t.Fatal(err)
	}
	if !f2.Contains(42, 5) {
		t.Fatal("decompressed filter lost membership")
	}
}
