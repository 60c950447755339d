// Package indexfile implements the on-disk index container: a
// versioned header describing the shape/window/hash parameters and
// bin paths, followed by the IBF bit vector (raw or succinctly
// compressed) and a trailing checksum. Grounded on spec.md §6's
// byte-layout table; the buffered-writer/xxhash-checksum idiom
// follows entreya-csvquery's sidecar-file pattern (see
// minimiser_sidecar.go), generalized here to a full random-access
// container opened read-only via mmap at query time.
package indexfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"

	"github.com/raptor-ibf/raptor"
	"github.com/raptor-ibf/raptor/raptorerr"
)

// Magic is the fixed 8-byte file identifier.
const Magic = "RAPTORIX"

// Version is the current on-disk format version.
const Version uint32 = 1

// Manifest is the fully decoded header plus bin paths, everything
// needed to interpret the index except the bit vector itself (which
// the reader keeps as a raw byte range for mmap).
type Manifest struct {
	Version        uint32
	KmerSize       uint8
	WindowSize     uint32
	Shape          raptor.Shape
	HashCount      uint8
	BinCount       uint64
	BitsPerBin     uint64
	FPRCorrection  float64
	BinPaths       [][]string // BinPaths[b] = contributing file paths for technical bin b

	// Compressed selects the write-time encoding (Write/WriteFile);
	// the binary format carries no separate on-disk flag for it per
	// spec.md §6 ("Same header; bit vector replaced by..."), so Open
	// infers it at read time by comparing the stored payload length
	// against the raw length bin_count/bits_per_bin would produce.
	Compressed bool
}

// WriteHeader encodes everything up to and including bin_paths, per
// spec.md §6's field table (magic through the length-prefixed bin
// path lists). The IBF bit vector and trailing checksum are written
// separately by the caller (writer.go) since the checksum covers the
// whole file.
func WriteHeader(w *bufio.Writer, m Manifest) error {
	if _, err := w.WriteString(Magic); err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing magic")
	}
	if err := writeU32(w, m.Version); err != nil {
		return err
	}
	if err := w.WriteByte(m.KmerSize); err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing kmer_size")
	}
	if err := writeU32(w, m.WindowSize); err != nil {
		return err
	}

	shapeStr := m.Shape.String()
	if err := writeU32(w, uint32(len(shapeStr))); err != nil {
		return err
	}
	shapeBits := packShapeBits(shapeStr)
	if _, err := w.Write(shapeBits); err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing shape bits")
	}

	if err := w.WriteByte(m.HashCount); err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing hash_count")
	}
	if err := writeU64(w, m.BinCount); err != nil {
		return err
	}
	if err := writeU64(w, m.BitsPerBin); err != nil {
		return err
	}
	if err := writeF64(w, m.FPRCorrection); err != nil {
		return err
	}

	if err := writeU64(w, uint64(len(m.BinPaths))); err != nil {
		return err
	}
	for _, paths := range m.BinPaths {
		if err := writeU64(w, uint64(len(paths))); err != nil {
			return err
		}
		for _, p := range paths {
			if err := writeU32(w, uint32(len(p))); err != nil {
				return err
			}
			if _, err := w.WriteString(p); err != nil {
				return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing bin path")
			}
		}
	}

	return nil
}

// packShapeBits packs a "1011" style bitstring MSB-first into
// ceil(len/8) bytes, matching spec.md §6's "shape bits" field.
func packShapeBits(shapeStr string) []byte {
	out := make([]byte, (len(shapeStr)+7)/8)
	for i, c := range shapeStr {
		if c == '1' {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func unpackShapeBits(data []byte, length int) string {
	b := make([]byte, length)
	for i := range b {
		bit := data[i/8] & (1 << uint(7-i%8))
		if bit != 0 {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}

// ReadHeader decodes the fixed-plus-bin-paths prefix from r, leaving
// r positioned at the start of the IBF bit vector.
func ReadHeader(r io.Reader) (Manifest, error) {
	var m Manifest

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return m, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading magic")
	}
	if string(magic) != Magic {
		return m, raptorerr.New(raptorerr.IndexCorrupt, "magic mismatch")
	}

	version, err := readU32(r)
	if err != nil {
		return m, err
	}
	if version != Version {
		return m, raptorerr.New(raptorerr.IndexCorrupt, "unsupported index version")
	}
	m.Version = version

	kmerSize, err := readByte(r)
	if err != nil {
		return m, err
	}
	m.KmerSize = kmerSize

	windowSize, err := readU32(r)
	if err != nil {
		return m, err
	}
	m.WindowSize = windowSize

	shapeLen, err := readU32(r)
	if err != nil {
		return m, err
	}
	shapeBytes := make([]byte, (shapeLen+7)/8)
	if _, err := io.ReadFull(r, shapeBytes); err != nil {
		return m, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading shape bits")
	}
	shapeStr := unpackShapeBits(shapeBytes, int(shapeLen))
	shape, err := raptor.NewShape(shapeStr)
	if err != nil {
		return m, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "decoding shape")
	}
	m.Shape = shape

	hashCount, err := readByte(r)
	if err != nil {
		return m, err
	}
	m.HashCount = hashCount

	binCount, err := readU64(r)
	if err != nil {
		return m, err
	}
	m.BinCount = binCount

	bitsPerBin, err := readU64(r)
	if err != nil {
		return m, err
	}
	m.BitsPerBin = bitsPerBin

	fprCorrection, err := readF64(r)
	if err != nil {
		return m, err
	}
	m.FPRCorrection = fprCorrection

	numBins, err := readU64(r)
	if err != nil {
		return m, err
	}
	m.BinPaths = make([][]string, numBins)
	for i := range m.BinPaths {
		numPaths, err := readU64(r)
		if err != nil {
			return m, err
		}
		paths := make([]string, numPaths)
		for j := range paths {
			plen, err := readU32(r)
			if err != nil {
				return m, err
			}
			buf := make([]byte, plen)
			if _, err := io.ReadFull(r, buf); err != nil {
				return m, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading bin path")
			}
			paths[j] = string(buf)
		}
		m.BinPaths[i] = paths
	}

	return m, nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing u32")
	}
	return nil
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing u64")
	}
	return nil
}

func writeF64(w io.Writer, v float64) error {
	return writeU64(w, math.Float64bits(v))
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading byte")
	}
	return buf[0], nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading u32")
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading u64")
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readF64(r io.Reader) (float64, error) {
	bits, err := readU64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}
