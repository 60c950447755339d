package driver

import (
	"bufio"
	"os"

	"github.com/raptor-ibf/raptor/raptorerr"
)

// FASTABaseSource adapts a FASTA/FASTQ file to raptor.BaseSource: it
// is the external reader/decoder boundary spec.md's component A
// deliberately leaves out of scope ("sequence-file decoding external
// to this package; callers adapt their reader to this interface").
// Header lines ('>' for FASTA, '@'/'+' for FASTQ at every 4th line)
// and quality lines are skipped; only sequence bytes are surfaced.
type FASTABaseSource struct {
	r       *bufio.Reader
	file    *os.File
	lineBuf []byte
	linePos int
	fastq   bool
	lineNum int
}

// OpenFASTABaseSource opens path and returns a BaseSource over its
// sequence bytes, auto-detecting FASTQ by a leading '@' byte.
func OpenFASTABaseSource(path string) (*FASTABaseSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "opening sequence file")
	}
	r := bufio.NewReaderSize(f, 64*1024)
	first, err := r.Peek(1)
	fastq := err == nil && len(first) > 0 && first[0] == '@'

	return &FASTABaseSource{r: r, file: f, fastq: fastq}, nil
}

// Close releases the underlying file handle.
func (s *FASTABaseSource) Close() error {
	if err := s.file.Close(); err != nil {
		return raptorerr.Wrap(err, raptorerr.InputUnreadable, "closing sequence file")
	}
	return nil
}

// NextBase implements raptor.BaseSource.
func (s *FASTABaseSource) NextBase() (byte, bool) {
	for {
		if s.lineBuf != nil && s.linePos < len(s.lineBuf) {
			b := s.lineBuf[s.linePos]
			s.linePos++
			return b, true
		}

		line, err := s.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return 0, false
		}
		for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
			line = line[:len(line)-1]
		}
		s.lineNum++

		if s.fastq {
			// FASTQ record = 4 lines: @id, sequence, +, quality.
			switch s.lineNum % 4 {
			case 1, 3, 0:
				s.lineBuf = nil
				s.linePos = 0
				continue
			}
		} else if len(line) > 0 && (line[0] == '>' || line[0] == ';') {
			s.lineBuf = nil
			s.linePos = 0
			continue
		}

		s.lineBuf = line
		s.linePos = 0
		if len(line) == 0 {
			continue
		}
	}
}
