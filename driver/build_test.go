package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/raptor-ibf/raptor"
	"github.com/raptor-ibf/raptor/indexfile"
)

func writeFASTA(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

func TestBuildWritesReadableIndex(t *testing.T) {
	dir := t.TempDir()

	bin0 := writeFASTA(t, dir, "bin0.fa", ">r0\nACGTACGTACGTACGTACGTACGT\n")
	bin1 := writeFASTA(t, dir, "bin1.fa", ">r1\nTTTTGGGGCCCCAAAATTTTGGGG\n")

	shape, err := raptor.NewUngappedShape(8)
	if err != nil {
		t.Fatalf("NewUngappedShape: %v", err)
	}

	out := filepath.Join(dir, "out.rix")
	cfg := BuildConfig{
		BinPaths:  [][]string{{bin0}, {bin1}},
		Shape:     shape,
		Window:    12,
		FPR:       0.05,
		HashCount: 2,
		Threads:   2,
		Parts:     1,
		Output:    out,
		Seed:      0,
	}

	if err := Build(cfg, NewCancelToken()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	idx, err := indexfile.Open(out)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if idx.Manifest.BinCount != 2 {
		t.Errorf("BinCount = %d, want 2", idx.Manifest.BinCount)
	}
	if idx.Manifest.KmerSize != 8 {
		t.Errorf("KmerSize = %d, want 8", idx.Manifest.KmerSize)
	}

	stream := raptor.NewStream(raptor.NewSliceSource([]byte("ACGTACGTACGTACGTACGTACGT")), shape, 12, 0)
	m, ok := stream.Next()
	if !ok {
		t.Fatal("expected at least one minimiser from bin0's sequence")
	}
	if !idx.Filter.Contains(m.Hash, 0) {
		t.Errorf("expected bin 0 to contain minimiser %x inserted during build", m.Hash)
	}
}

func TestBuildRejectsEmptyBinList(t *testing.T) {
	cfg := BuildConfig{Parts: 1}
	if err := Build(cfg, NewCancelToken()); err == nil {
		t.Fatal("expected error for empty bin list")
	}
}

func TestBuildRejectsNonPowerOfTwoParts(t *testing.T) {
	dir := t.TempDir()
	bin0 := writeFASTA(t, dir, "bin0.fa", ">r0\nACGTACGTACGTACGT\n")
	shape, _ := raptor.NewUngappedShape(4)

	cfg := BuildConfig{
		BinPaths: [][]string{{bin0}},
		Shape:    shape,
		Window:   6,
		Parts:    3,
	}
	if err := Build(cfg, NewCancelToken()); err == nil {
		t.Fatal("expected error for non-power-of-two part count")
	}
}

func TestBuildPartitioned(t *testing.T) {
	dir := t.TempDir()
	bin0 := writeFASTA(t, dir, "bin0.fa", ">r0\n"+
		"ACGTACGTACGTACGTACGTACGTACGTACGTACGTACGT\n")

	shape, _ := raptor.NewUngappedShape(6)
	out := filepath.Join(dir, "part.rix")
	cfg := BuildConfig{
		BinPaths:  [][]string{{bin0}},
		Shape:     shape,
		Window:    10,
		FPR:       0.05,
		HashCount: 2,
		Threads:   1,
		Parts:     2,
		Output:    out,
	}
	if err := Build(cfg, NewCancelToken()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	paths, err := indexfile.ReadManifest(out)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("got %d parts, want 2", len(paths))
	}
}
