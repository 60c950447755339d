package driver

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raptor-ibf/raptor"
)

func buildTestIndex(t *testing.T, dir string) (string, raptor.Shape) {
	t.Helper()

	bin0 := writeFASTA(t, dir, "bin0.fa", ">r0\n"+
		strings.Repeat("ACGT", 20)+"\n")
	bin1 := writeFASTA(t, dir, "bin1.fa", ">r1\n"+
		strings.Repeat("TGCA", 20)+"\n")

	shape, err := raptor.NewUngappedShape(8)
	if err != nil {
		t.Fatalf("NewUngappedShape: %v", err)
	}

	out := filepath.Join(dir, "search.rix")
	cfg := BuildConfig{
		BinPaths:  [][]string{{bin0}, {bin1}},
		Shape:     shape,
		Window:    12,
		FPR:       0.01,
		HashCount: 3,
		Threads:   2,
		Parts:     1,
		Output:    out,
	}
	if err := Build(cfg, NewCancelToken()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return out, shape
}

func TestSearchFindsMatchingBin(t *testing.T) {
	dir := t.TempDir()
	indexPath, _ := buildTestIndex(t, dir)

	queryPath := writeFASTA(t, dir, "query.fa", ">q0\n"+strings.Repeat("ACGT", 20)+"\n")

	var buf bytes.Buffer
	cfg := SearchConfig{
		IndexPath: indexPath,
		QueryPath: queryPath,
		Errors:    0,
		Alpha:     0.05,
		Threads:   1,
	}
	if err := Search(cfg, NewCancelToken(), &buf); err != nil {
		t.Fatalf("Search: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "q0\t") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "0") {
		t.Errorf("expected bin 0 to be reported as a hit, got %q", out)
	}
}

func TestSearchEmptyHitsStillEmitsLine(t *testing.T) {
	dir := t.TempDir()
	indexPath, _ := buildTestIndex(t, dir)

	// A query sequence that shares no k-mers with either reference bin.
	queryPath := writeFASTA(t, dir, "query.fa", ">miss\n"+strings.Repeat("GGGG", 20)+"\n")

	var buf bytes.Buffer
	cfg := SearchConfig{
		IndexPath: indexPath,
		QueryPath: queryPath,
		Errors:    0,
		Alpha:     0.01,
		Threads:   1,
	}
	if err := Search(cfg, NewCancelToken(), &buf); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if !strings.HasPrefix(buf.String(), "miss\t") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestSearchOverrideThreshold(t *testing.T) {
	dir := t.TempDir()
	indexPath, _ := buildTestIndex(t, dir)

	queryPath := writeFASTA(t, dir, "query.fa", ">q1\n"+strings.Repeat("ACGT", 20)+"\n")

	var buf bytes.Buffer
	cfg := SearchConfig{
		IndexPath: indexPath,
		QueryPath: queryPath,
		Errors:    0,
		Override:  1.0, // require every minimiser to hit
		Threads:   1,
	}
	if err := Search(cfg, NewCancelToken(), &buf); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "q1\t") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
