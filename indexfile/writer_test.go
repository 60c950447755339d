package indexfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/raptor-ibf/raptor/ibf"
)

func buildTestFilter(t *testing.T) *ibf.IBF {
	t.Helper()
	f, err := ibf.New(16, 4096, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range []uint64{1, 2, 42, 99999} {
		if err := f.Emplace(v, uint64(i)); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestWriteFileAndOpenRawRoundTrip(t *testing.T) {
	m := sampleManifest(t)
	m.BinCount = 16
	m.BitsPerBin = 4096
	filter := buildTestFilter(t)

	path := filepath.Join(t.TempDir(), "test.raptor")
	if err := WriteFile(path, m, filter); err != nil {
		t.Fatal(err)
	}

	idx, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if idx.Manifest.Compressed {
		t.Fatal("raw write should not be inferred as compressed")
	}
	if idx.Filter == nil {
		t.Fatal("expected a raw filter")
	}
	if !idx.Filter.Contains(1, 0) || !idx.Filter.Contains(42, 2) {
		t.Fatal("round-tripped filter lost membership")
	}
}

func TestWriteFileAndOpenCompressedRoundTrip(t *testing.T) {
	m := sampleManifest(t)
	m.BinCount = 16
	m.BitsPerBin = 4096
	m.Compressed = true
	filter := buildTestFilter(t)

	path := filepath.Join(t.TempDir(), "test.raptor.cmp")
	if err := WriteFile(path, m, filter); err != nil {
		t.Fatal(err)
	}

	idx, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if !idx.Manifest.Compressed {
		t.Fatal("compressed write should be inferred as compressed")
	}
	if idx.Compressed == nil {
		t.Fatal("expected a compressed view")
	}
}

func TestOpenRejectsCorruptedChecksum(t *testing.T) {
	m := sampleManifest(t)
	m.BinCount = 16
	m.BitsPerBin = 4096
	filter := buildTestFilter(t)

	path := filepath.Join(t.TempDir(), "test.raptor")
	if err := WriteFile(path, m, filter); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteAt([]byte{0xFF}, 5); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("expected checksum mismatch error after corrupting header bytes")
	}
}

func TestOpenRejectsMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error opening missing file")
	}
}
