package ibf

import (
	"math/rand"
	"testing"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(0, 1024, 2); err == nil {
		t.Fatal("expected error for zero bins")
	}
	if _, err := New(4, 1024, 0); err == nil {
		t.Fatal("expected error for zero hash count")
	}
	if _, err := New(4, 1024, 6); err == nil {
		t.Fatal("expected error for hash count > 5")
	}
	if _, err := New(4, 0, 2); err == nil {
		t.Fatal("expected error for zero bits per bin")
	}
}

func TestNewRoundsUp(t *testing.T) {
	f, err := New(10, 100, 2)
	if err != nil {
		t.Fatal(err)
	}
	if f.binsPad != 64 {
		t.Fatalf("expected binsPad 64, got %d", f.binsPad)
	}
	if f.bitsPerBin != 128 {
		t.Fatalf("expected bitsPerBin rounded to 128, got %d", f.bitsPerBin)
	}
}

func TestEmplaceAndContains(t *testing.T) {
	f, err := New(16, 8192, 3)
	if err != nil {
		t.Fatal(err)
	}

	values := []uint64{1, 2, 3, 42, 1000, 99999}
	for i, v := range values {
		bin := uint64(i % 16)
		if err := f.Emplace(v, bin); err != nil {
			t.Fatal(err)
		}
	}

	for i, v := range values {
		bin := uint64(i % 16)
		if !f.Contains(v, bin) {
			t.Fatalf("expected bin %d to contain %d after emplace", bin, v)
		}
	}
}

func TestEmplaceRejectsOutOfRangeBin(t *testing.T) {
	f, err := New(4, 1024, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Emplace(1, 4); err == nil {
		t.Fatal("expected error for bin index == bins")
	}
}

func TestBulkContainsMatchesPerBinContains(t *testing.T) {
	f, err := New(20, 4096, 4)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(7))
	inserted := make(map[uint64]uint64)
	for i := 0; i < 50; i++ {
		v := rng.Uint64()
		bin := uint64(i) % 20
		inserted[v] = bin
		if err := f.Emplace(v, bin); err != nil {
			t.Fatal(err)
		}
	}

	agent := f.NewAgent()
	defer agent.Close()

	for v, bin := range inserted {
		occ := agent.BulkContains(v)
		if !ContainsBin(occ, bin) {
			t.Fatalf("bulk_contains missed inserted value %d in bin %d", v, bin)
		}
		if f.Contains(v, bin) != ContainsBin(occ, bin) {
			t.Fatalf("bulk_contains and Contains disagree for value %d in bin %d", v, bin)
		}
	}
}

func TestIncreaseBinToPreservesExistingBits(t *testing.T) {
	f, err := New(4, 1024, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Emplace(123, 2); err != nil {
		t.Fatal(err)
	}

	if err := f.IncreaseBinTo(200); err != nil {
		t.Fatal(err)
	}
	if f.Bins() != 200 {
		t.Fatalf("expected 200 bins, got %d", f.Bins())
	}
	if !f.Contains(123, 2) {
		t.Fatal("expected bin 2 to still contain 123 after growth")
	}
	for b := uint64(4); b < 200; b++ {
		if f.Contains(123, b) {
			t.Fatalf("new bin %d unexpectedly reports membership", b)
		}
	}
}

func TestIncreaseBinToRejectsShrink(t *testing.T) {
	f, err := New(8, 1024, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.IncreaseBinTo(4); err == nil {
		t.Fatal("expected error shrinking bin count")
	}
}

func TestUnionRequiresSameShape(t *testing.T) {
	a, _ := New(4, 1024, 2)
	b, _ := New(8, 1024, 2)
	if err := a.Union(b); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestUnionCombinesMembership(t *testing.T) {
	a, _ := New(4, 1024, 2)
	b, _ := New(4, 1024, 2)
	_ = a.Emplace(10, 0)
	_ = b.Emplace(20, 1)

	if err := a.Union(b); err != nil {
		t.Fatal(err)
	}
	if !a.Contains(10, 0) {
		t.Fatal("union lost original membership")
	}
	if !a.Contains(20, 1) {
		t.Fatal("union did not absorb other's membership")
	}
}

func TestIntersectionNarrowsMembership(t *testing.T) {
	a, _ := New(4, 1024, 2)
	b, _ := New(4, 1024, 2)
	_ = a.Emplace(10, 0)
	_ = a.Emplace(10, 1)
	_ = b.Emplace(10, 0)

	if err := a.Intersection(b); err != nil {
		t.Fatal(err)
	}
	if !a.Contains(10, 0) {
		t.Fatal("intersection should keep bin present in both")
	}
	if a.Contains(10, 1) {
		t.Fatal("intersection should drop bin present only in a")
	}
}

func TestPopCountReflectsEmplaces(t *testing.T) {
	f, _ := New(4, 1024, 2)
	if f.PopCount() != 0 {
		t.Fatal("fresh filter must have zero popcount")
	}
	_ = f.Emplace(5, 0)
	if f.PopCount() == 0 {
		t.Fatal("popcount should be nonzero after an emplace")
	}
}

func TestFromRawWordsRejectsLengthMismatch(t *testing.T) {
	if _, err := FromRawWords(4, 1024, 2, []uint64{1, 2, 3}); err == nil {
		t.Fatal("expected error for mismatched raw word length")
	}
}

func TestRoundTripThroughRawWords(t *testing.T) {
	f, _ := New(8, 1024, 2)
	_ = f.Emplace(77, 3)

	f2, err := FromRawWords(f.Bins(), f.BitsPerBin(), f.HashCount(), f.RawWords())
	if err != nil {
		t.Fatal(err)
	}
	if !f2.Contains(77, 3) {
		t.Fatal("round-tripped filter lost membership")
	}
}
