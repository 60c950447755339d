package indexfile

import (
	"bufio"
	"encoding/binary"
	"hash"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/raptor-ibf/raptor/ibf"
	"github.com/raptor-ibf/raptor/raptorerr"
)

// checksumWriter tees every write through an xxhash64 digest so the
// trailing checksum field can be computed in one streaming pass
// instead of re-reading the whole file.
type checksumWriter struct {
	w      io.Writer
	digest hash.Hash64
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	return &checksumWriter{w: w, digest: xxhash.New()}
}

func (c *checksumWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		c.digest.Write(p[:n])
	}
	return n, err
}

// Write serializes a full index file to w: header, bin paths, the IBF
// bit vector (raw or roaring-compressed per m.Compressed), and a
// trailing xxhash64 checksum of everything preceding it.
func Write(w io.Writer, m Manifest, filter *ibf.IBF) error {
	cw := newChecksumWriter(w)
	bw := bufio.NewWriter(cw)

	if err := WriteHeader(bw, m); err != nil {
		return err
	}

	if m.Compressed {
		compressed, err := filter.Compress()
		if err != nil {
			return raptorerr.Wrap(err, raptorerr.IoExhausted, "compressing IBF for write")
		}
		serialized, err := compressed.MarshalBinary()
		if err != nil {
			return raptorerr.Wrap(err, raptorerr.IoExhausted, "serializing compressed IBF")
		}
		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], filter.WordsPerPosition()*filter.BitsPerBin()*8)
		if _, err := bw.Write(lenBuf[:]); err != nil {
			return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing uncompressed length")
		}
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(serialized)))
		if _, err := bw.Write(lenBuf[:]); err != nil {
			return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing compressed payload length")
		}
		if _, err := bw.Write(serialized); err != nil {
			return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing compressed payload")
		}
	} else {
		words := filter.RawWords()
		buf := make([]byte, 8)
		for _, word := range words {
			binary.LittleEndian.PutUint64(buf, word)
			if _, err := bw.Write(buf); err != nil {
				return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing bit vector")
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "flushing index writer")
	}

	var checksumBuf [8]byte
	binary.LittleEndian.PutUint64(checksumBuf[:], cw.digest.Sum64())
	if _, err := cw.w.Write(checksumBuf[:]); err != nil {
		return raptorerr.Wrap(err, raptorerr.IoExhausted, "writing checksum")
	}
	return nil
}

// WriteFile writes the index to a new file at path, removing the
// partial file best-effort on any failure (IoExhausted per spec.md
// §4.E's failure model).
func WriteFile(path string, m Manifest, filter *ibf.IBF) (err error) {
	f, createErr := os.Create(path)
	if createErr != nil {
		return raptorerr.Wrap(createErr, raptorerr.IoExhausted, "creating index file")
	}
	defer func() {
		closeErr := f.Close()
		if err != nil {
			os.Remove(path)
			return
		}
		if closeErr != nil {
			err = raptorerr.Wrap(closeErr, raptorerr.IoExhausted, "closing index file")
			os.Remove(path)
		}
	}()

	if err = Write(f, m, filter); err != nil {
		return err
	}
	return nil
}
