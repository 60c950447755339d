package raptor

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pierrec/lz4/v4"
)

// SidecarWriter persists the minimisers extracted from a reference
// file to a `.minimiser` sidecar so a later build can skip re-scanning
// (and so per-bin minimiser counts can be estimated cheaply ahead of
// allocating the IBF). It uses LZ4 frame compression over a buffered
// writer, following the temp-chunk pattern of compressing small
// fixed-width records during a bulk sort/merge pass.
type SidecarWriter struct {
	lz *lz4.Writer
	bw *bufio.Writer
}

// NewSidecarWriter wraps w for sequential minimiser writes.
func NewSidecarWriter(w io.Writer) *SidecarWriter {
	lz := lz4.NewWriter(w)
	return &SidecarWriter{lz: lz, bw: bufio.NewWriterSize(lz, 64*1024)}
}

// Write appends one minimiser (16 bytes: hash, then begin position).
func (s *SidecarWriter) Write(m Minimiser) error {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], m.Hash)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(m.Begin))
	_, err := s.bw.Write(buf[:])
	return err
}

// Close flushes the buffered writer and the LZ4 frame.
func (s *SidecarWriter) Close() error {
	if err := s.bw.Flush(); err != nil {
		return err
	}
	return s.lz.Close()
}

// SidecarReader reads back minimisers written by SidecarWriter. It is
// a pull-style iterator whose Next mirrors Stream.Next with an added
// error result; the build driver does not read sidecars (Build always
// rescans the reference files).
type SidecarReader struct {
	br *bufio.Reader
}

// NewSidecarReader wraps r for sequential minimiser reads.
func NewSidecarReader(r io.Reader) *SidecarReader {
	return &SidecarReader{br: bufio.NewReaderSize(lz4.NewReader(r), 64*1024)}
}

// Next reads the next minimiser; ok is false at EOF.
func (s *SidecarReader) Next() (Minimiser, bool, error) {
	var buf [16]byte
	if _, err := io.ReadFull(s.br, buf[:]); err != nil {
		if err == io.EOF {
			return Minimiser{}, false, nil
		}
		return Minimiser{}, false, err
	}
	return Minimiser{
		Hash:  binary.LittleEndian.Uint64(buf[0:8]),
		Begin: int(binary.LittleEndian.Uint64(buf[8:16])),
	}, true, nil
}
