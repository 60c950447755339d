package indexfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	"github.com/raptor-ibf/raptor/ibf"
	"github.com/raptor-ibf/raptor/raptorerr"
)

// Index is an opened, read-only index file: the decoded manifest plus
// either a live IBF (raw variant, whose words are copied out of an
// mmap'd byte range into heap memory) or a Compressed view (compressed
// variant). Close must be called to release the mmap.
type Index struct {
	Manifest   Manifest
	Filter     *ibf.IBF
	Compressed *ibf.Compressed

	file *os.File
	mm   mmap.MMap
}

// Open opens the index file at path, verifies its checksum, decodes
// the header, and mmaps the file to copy the bit vector into an IBF
// (or decodes the compressed payload, which is small enough to read
// fully into memory). The IBF does not reference the mapping.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "opening index file")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "statting index file")
	}
	if info.Size() < 8 {
		f.Close()
		return nil, raptorerr.New(raptorerr.IndexCorrupt, "index file too small")
	}

	if err := verifyChecksum(f, info.Size()); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "seeking index file")
	}

	br := bufio.NewReader(f)
	manifest, err := ReadHeader(br)
	if err != nil {
		f.Close()
		return nil, err
	}

	headerEnd, err := currentOffset(f, br)
	if err != nil {
		f.Close()
		return nil, err
	}

	idx := &Index{Manifest: manifest, file: f}

	binsPad := roundUp64(manifest.BinCount)
	bitsPerBin := roundUp64(manifest.BitsPerBin)
	expectedRawBytes := int64(bitsPerBin) * int64(binsPad/64) * 8
	bitVectorEnd := info.Size() - 8 // trailing checksum
	actualPayloadBytes := bitVectorEnd - headerEnd

	// The compressed variant carries the same header (spec.md §6); the
	// only way to tell it apart from the raw layout is that its
	// on-disk span differs from what bin_count/bits_per_bin would
	// produce raw. A raw file with a matching span is read via mmap
	// with no payload-length prefix to parse.
	manifest.Compressed = actualPayloadBytes != expectedRawBytes
	idx.Manifest = manifest

	if manifest.Compressed {
		payload, err := readCompressedPayload(f, headerEnd, info.Size())
		if err != nil {
			f.Close()
			return nil, err
		}
		compressed, err := ibf.NewCompressedFromHeader(manifest.BinCount, manifest.BitsPerBin, uint32(manifest.HashCount), payload)
		if err != nil {
			f.Close()
			return nil, err
		}
		idx.Compressed = compressed
		return idx, nil
	}

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "mmapping index file")
	}
	idx.mm = mm

	if int64(headerEnd) > bitVectorEnd {
		mm.Unmap()
		f.Close()
		return nil, raptorerr.New(raptorerr.IndexCorrupt, "header overruns file length")
	}
	raw := []byte(mm)[headerEnd:bitVectorEnd]
	if len(raw)%8 != 0 {
		mm.Unmap()
		f.Close()
		return nil, raptorerr.New(raptorerr.IndexCorrupt, "bit vector length is not word-aligned")
	}
	words := make([]uint64, len(raw)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
	}

	filter, err := ibf.FromRawWords(manifest.BinCount, manifest.BitsPerBin, uint32(manifest.HashCount), words)
	if err != nil {
		mm.Unmap()
		f.Close()
		return nil, err
	}
	idx.Filter = filter

	return idx, nil
}

// Close releases the mmap and closes the underlying file descriptor.
func (idx *Index) Close() error {
	var err error
	if idx.mm != nil {
		err = idx.mm.Unmap()
	}
	if cerr := idx.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "closing index file")
	}
	return nil
}

func roundUp64(n uint64) uint64 { return (n + 63) &^ 63 }

func verifyChecksum(f *os.File, size int64) error {
	body := io.NewSectionReader(f, 0, size-8)
	digest := xxhash.New()
	if _, err := io.Copy(digest, body); err != nil {
		return raptorerr.Wrap(err, raptorerr.IndexCorrupt, "computing checksum")
	}

	var trailer [8]byte
	if _, err := f.ReadAt(trailer[:], size-8); err != nil {
		return raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading trailing checksum")
	}
	want := binary.LittleEndian.Uint64(trailer[:])
	if digest.Sum64() != want {
		return raptorerr.New(raptorerr.IndexCorrupt, "checksum mismatch")
	}
	return nil
}

func currentOffset(f *os.File, br *bufio.Reader) (int64, error) {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "determining header length")
	}
	return pos - int64(br.Buffered()), nil
}

func readCompressedPayload(f *os.File, headerEnd, fileSize int64) ([]byte, error) {
	// Layout: [8 bytes uncompressed byte length][8 bytes payload length][payload]
	lenBuf := make([]byte, 16)
	if _, err := f.ReadAt(lenBuf, headerEnd); err != nil {
		return nil, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading compressed payload lengths")
	}
	payloadLen := binary.LittleEndian.Uint64(lenBuf[8:16])

	payload := make([]byte, payloadLen)
	if _, err := f.ReadAt(payload, headerEnd+16); err != nil {
		return nil, raptorerr.Wrap(err, raptorerr.IndexCorrupt, "reading compressed payload")
	}

	expectedEnd := headerEnd + 16 + int64(payloadLen) + 8
	if expectedEnd != fileSize {
		return nil, raptorerr.New(raptorerr.IndexCorrupt, "compressed payload length does not match file size")
	}
	return payload, nil
}
