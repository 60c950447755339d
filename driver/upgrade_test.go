package driver

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"

	"github.com/raptor-ibf/raptor/indexfile"
)

func writeLegacyFixture(t *testing.T, path string, hashCount uint8, binCount, bitsPerBin uint64, words []uint64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating legacy fixture: %v", err)
	}
	defer f.Close()

	digest := xxhash.New()
	write := func(p []byte) {
		if _, err := f.Write(p); err != nil {
			t.Fatalf("writing legacy fixture: %v", err)
		}
		digest.Write(p)
	}

	write([]byte(indexfile.Magic))
	var u32buf [4]byte
	binary.LittleEndian.PutUint32(u32buf[:], 0) // legacy version
	write(u32buf[:])
	write([]byte{hashCount})

	var u64buf [8]byte
	binary.LittleEndian.PutUint64(u64buf[:], binCount)
	write(u64buf[:])
	binary.LittleEndian.PutUint64(u64buf[:], bitsPerBin)
	write(u64buf[:])
	for _, w := range words {
		binary.LittleEndian.PutUint64(u64buf[:], w)
		write(u64buf[:])
	}

	var checksumBuf [8]byte
	binary.LittleEndian.PutUint64(checksumBuf[:], digest.Sum64())
	f.Write(checksumBuf[:])
}

func TestUpgradeProducesReadableIndex(t *testing.T) {
	dir := t.TempDir()

	legacyPath := filepath.Join(dir, "legacy.rix")
	words := make([]uint64, 128) // (binsPad/64=1) * bitsPerBin words
	writeLegacyFixture(t, legacyPath, 2, 64, 128, words)

	binListPath := filepath.Join(dir, "bins.txt")
	bin0 := writeFASTA(t, dir, "bin0.fa", ">r0\nACGTACGT\n")
	if err := os.WriteFile(binListPath, []byte(bin0+"\n"), 0o644); err != nil {
		t.Fatalf("writing bin list: %v", err)
	}

	outPath := filepath.Join(dir, "upgraded.rix")
	cfg := UpgradeConfig{
		BinListPath: binListPath,
		InputPath:   legacyPath,
		OutputPath:  outPath,
		Window:      10,
		Kmer:        8,
		Parts:       1,
	}
	if err := Upgrade(cfg); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	idx, err := indexfile.Open(outPath)
	if err != nil {
		t.Fatalf("Open upgraded index: %v", err)
	}
	defer idx.Close()

	if idx.Manifest.BinCount != 64 {
		t.Errorf("BinCount = %d, want 64", idx.Manifest.BinCount)
	}
	if idx.Manifest.KmerSize != 8 {
		t.Errorf("KmerSize = %d, want 8", idx.Manifest.KmerSize)
	}
	if len(idx.Manifest.BinPaths) != 1 {
		t.Errorf("BinPaths len = %d, want 1", len(idx.Manifest.BinPaths))
	}
}

func TestUpgradeRejectsNonPowerOfTwoParts(t *testing.T) {
	cfg := UpgradeConfig{Parts: 3}
	if err := Upgrade(cfg); err == nil {
		t.Fatal("expected error for non-power-of-two part count")
	}
}
