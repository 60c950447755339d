package indexfile

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/raptor-ibf/raptor"
)

func sampleManifest(t *testing.T) Manifest {
	t.Helper()
	shape, err := raptor.NewShape("11011")
	if err != nil {
		t.Fatal(err)
	}
	return Manifest{
		Version:       Version,
		KmerSize:      shape.K(),
		WindowSize:    20,
		Shape:         shape,
		HashCount:     3,
		BinCount:      64,
		BitsPerBin:    4096,
		FPRCorrection: 1.25,
		BinPaths:      [][]string{{"a.fasta", "b.fasta"}, {"c.fasta"}},
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	m := sampleManifest(t)

	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if err := WriteHeader(bw, m); err != nil {
		t.Fatal(err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatal(err)
	}

	decoded, err := ReadHeader(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if decoded.KmerSize != m.KmerSize ||
		decoded.WindowSize != m.WindowSize ||
		decoded.HashCount != m.HashCount ||
		decoded.BinCount != m.BinCount ||
		decoded.BitsPerBin != m.BitsPerBin ||
		decoded.FPRCorrection != m.FPRCorrection {
		t.Fatalf("round-tripped scalar fields mismatch: got %+v, want %+v", decoded, m)
	}
	if decoded.Shape.String() != m.Shape.String() {
		t.Fatalf("shape mismatch: got %s, want %s", decoded.Shape, m.Shape)
	}
	if len(decoded.BinPaths) != len(m.BinPaths) {
		t.Fatalf("bin path count mismatch: got %d, want %d", len(decoded.BinPaths), len(m.BinPaths))
	}
	for i := range m.BinPaths {
		if len(decoded.BinPaths[i]) != len(m.BinPaths[i]) {
			t.Fatalf("bin %d path count mismatch", i)
		}
		for j := range m.BinPaths[i] {
			if decoded.BinPaths[i][j] != m.BinPaths[i][j] {
				t.Fatalf("bin %d path %d mismatch: got %q, want %q", i, j, decoded.BinPaths[i][j], m.BinPaths[i][j])
			}
		}
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("NOTRAPTR" + strings.Repeat("\x00", 40))
	if _, err := ReadHeader(buf); err == nil {
		t.Fatal("expected error for bad magic")
	}
}
