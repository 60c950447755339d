package driver

import (
	"bytes"
	"strings"
	"testing"

	"github.com/raptor-ibf/raptor"
)

func TestLayoutOrdersBinsBySize(t *testing.T) {
	dir := t.TempDir()
	small := writeFASTA(t, dir, "small.fa", ">s\n"+strings.Repeat("ACGT", 4)+"\n")
	large := writeFASTA(t, dir, "large.fa", ">l\n"+strings.Repeat("ACGT", 40)+"\n")

	shape, err := raptor.NewUngappedShape(6)
	if err != nil {
		t.Fatalf("NewUngappedShape: %v", err)
	}

	cfg := LayoutConfig{
		BinPaths:  [][]string{{small}, {large}},
		Shape:     shape,
		Window:    8,
		FPR:       0.05,
		HashCount: 2,
		Threads:   2,
	}

	var buf bytes.Buffer
	if err := Layout(cfg, NewCancelToken(), &buf); err != nil {
		t.Fatalf("Layout: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	// Bin 1 (large) should be listed first since it has more minimisers.
	if !strings.HasPrefix(lines[0], "1\t") {
		t.Errorf("expected bin 1 first, got %q", lines[0])
	}
}

func TestLayoutRejectsEmptyBinList(t *testing.T) {
	cfg := LayoutConfig{}
	var buf bytes.Buffer
	if err := Layout(cfg, NewCancelToken(), &buf); err == nil {
		t.Fatal("expected error for empty bin list")
	}
}
