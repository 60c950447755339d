package threshold

import (
	"testing"

	"github.com/raptor-ibf/raptor"
)

func TestDestroyedIndirectlyByErrorIsAProbabilityDistribution(t *testing.T) {
	shape, err := raptor.NewUngappedShape(12)
	if err != nil {
		t.Fatal(err)
	}
	dist := DestroyedIndirectlyByError(100, 20, shape)

	var sum float64
	for _, p := range dist {
		if p < 0 {
			t.Fatal("distribution entries must be non-negative")
		}
		sum += p
	}
	if sum < 0.99 || sum > 1.01 {
		t.Fatalf("distribution should sum to ~1, got %f", sum)
	}
}

func TestDestroyedIndirectlyByErrorIsDeterministic(t *testing.T) {
	shape, _ := raptor.NewUngappedShape(10)
	a := DestroyedIndirectlyByError(60, 15, shape)
	b := DestroyedIndirectlyByError(60, 15, shape)

	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("fixed-seed run diverged at index %d: %f vs %f", i, a[i], b[i])
		}
	}
}
