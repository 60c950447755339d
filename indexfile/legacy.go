package indexfile

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/raptor-ibf/raptor/raptorerr"
)

// LegacyManifest is everything a version-0 index file carries. Older
// builds predate the shape/window/fpr_correction/bin_paths fields
// (those were introduced with Version 1); upgrade.go supplies the
// missing pieces from CLI flags the way the original upgrade tool's
// "--bins/--window/--kmer/--parts/--compressed" options do, since the
// legacy file itself has nowhere to store them.
type LegacyManifest struct {
	HashCount  uint8
	BinCount   uint64
	BitsPerBin uint64
}

// legacyVersion is the on-disk version tag a pre-shape index carries.
const legacyVersion uint32 = 0

// ReadLegacyFile reads a version-0 index file in full: magic, version,
// hash_count, bin_count, bits_per_bin, the raw bit vector, and a
// trailing xxhash64 checksum over everything preceding it. Unlike
// Open, this reads the whole bit vector into memory rather than
// mmapping it — upgrade is a one-shot migration, not a hot query path.
func ReadLegacyFile(path string) (LegacyManifest, []uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return LegacyManifest{}, nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "opening legacy index file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return LegacyManifest{}, nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "statting legacy index file")
	}
	if err := verifyChecksum(f, info.Size()); err != nil {
		return LegacyManifest{}, nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return LegacyManifest{}, nil, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "seeking legacy index file")
	}

	var magic [8]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return LegacyManifest{}, nil, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading legacy magic")
	}
	if string(magic[:]) != Magic {
		return LegacyManifest{}, nil, raptorerr.New(raptorerr.IndexCorrupt, "legacy index magic mismatch")
	}

	version, err := readU32(f)
	if err != nil {
		return LegacyManifest{}, nil, err
	}
	if version != legacyVersion {
		return LegacyManifest{}, nil, raptorerr.New(raptorerr.IndexCorrupt, "not a version-0 legacy index")
	}

	hashCount, err := readByte(f)
	if err != nil {
		return LegacyManifest{}, nil, err
	}
	binCount, err := readU64(f)
	if err != nil {
		return LegacyManifest{}, nil, err
	}
	bitsPerBin, err := readU64(f)
	if err != nil {
		return LegacyManifest{}, nil, err
	}

	headerEnd, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return LegacyManifest{}, nil, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "determining legacy header length")
	}

	payloadLen := info.Size() - 8 - headerEnd
	if payloadLen < 0 || payloadLen%8 != 0 {
		return LegacyManifest{}, nil, raptorerr.New(raptorerr.IndexCorrupt, "legacy bit vector length is not word-aligned")
	}

	raw := make([]byte, payloadLen)
	if _, err := io.ReadFull(f, raw); err != nil {
		return LegacyManifest{}, nil, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading legacy bit vector")
	}
	words := make([]uint64, len(raw)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
	}

	return LegacyManifest{HashCount: hashCount, BinCount: binCount, BitsPerBin: bitsPerBin}, words, nil
}
