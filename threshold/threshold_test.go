package threshold

import (
	"testing"

	"github.com/raptor-ibf/raptor"
)

func TestTauWithOverrideBypassesModel(t *testing.T) {
	shape, _ := raptor.NewUngappedShape(12)
	table := NewTable(Params{Shape: shape, Window: 20, Errors: 2, Override: 0.5})

	// L=100, w=20 -> M=81; override: ceil(0.5*81) = 41
	if tau := table.Tau(100); tau != 41 {
		t.Fatalf("expected overridden tau 41, got %d", tau)
	}
}

func TestTauIsCachedPerLength(t *testing.T) {
	shape, _ := raptor.NewUngappedShape(12)
	table := NewTable(Params{Shape: shape, Window: 20, Errors: 1, Alpha: 0.05})

	first := table.Tau(100)
	if _, ok := table.cache[100]; !ok {
		t.Fatal("expected tau to be cached after first computation")
	}
	second := table.Tau(100)
	if first != second {
		t.Fatalf("cached tau changed between calls: %d vs %d", first, second)
	}
}

func TestTauDecreasesAsErrorsIncrease(t *testing.T) {
	shape, _ := raptor.NewUngappedShape(12)

	low := NewTable(Params{Shape: shape, Window: 20, Errors: 1, Alpha: 0.05})
	high := NewTable(Params{Shape: shape, Window: 20, Errors: 4, Alpha: 0.05})

	if high.Tau(150) > low.Tau(150) {
		t.Fatalf("tolerating more errors should not require a higher threshold: e=1 tau=%d, e=4 tau=%d",
			low.Tau(150), high.Tau(150))
	}
}

func TestTauZeroErrorsEqualsFullMinimiserCount(t *testing.T) {
	shape, _ := raptor.NewUngappedShape(12)
	table := NewTable(Params{Shape: shape, Window: 20, Errors: 0, Alpha: 0.05})

	L := 100
	M := kmerCount(L, 20)
	if tau := table.Tau(L); tau != M {
		t.Fatalf("zero tolerated errors should require all %d minimisers, got %d", M, tau)
	}
}

func TestKmerCountNeverNegative(t *testing.T) {
	if m := kmerCount(5, 20); m != 0 {
		t.Fatalf("expected 0 for a pattern shorter than the window, got %d", m)
	}
}
