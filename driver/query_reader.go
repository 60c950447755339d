package driver

import (
	"bufio"
	"os"
	"strings"

	"github.com/raptor-ibf/raptor/raptorerr"
)

// QueryRecord is one query sequence read in full: an identifier (the
// FASTA/FASTQ header line, sans leading '>'/'@' and anything after the
// first whitespace run) and its raw base bytes.
type QueryRecord struct {
	ID       string
	Sequence []byte
}

// QueryReader reads whole query records from a FASTA/FASTQ file.
// Unlike FASTABaseSource (built/streamed lazily for the reference
// side, where sequences can be enormous), query reads are short
// enough to buffer entirely, and search needs the id/sequence pair
// together rather than a flat base stream.
type QueryReader struct {
	r       *bufio.Reader
	file    *os.File
	fastq   bool
	pending []byte // a header line read while closing out the previous FASTA record
}

// OpenQueryReader opens path and auto-detects FASTQ exactly as
// OpenFASTABaseSource does.
func OpenQueryReader(path string) (*QueryReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, raptorerr.Wrap(err, raptorerr.InputUnreadable, "opening query file")
	}
	r := bufio.NewReaderSize(f, 64*1024)
	first, err := r.Peek(1)
	fastq := err == nil && len(first) > 0 && first[0] == '@'
	return &QueryReader{r: r, file: f, fastq: fastq}, nil
}

// Close releases the underlying file handle.
func (q *QueryReader) Close() error {
	if err := q.file.Close(); err != nil {
		return raptorerr.Wrap(err, raptorerr.InputUnreadable, "closing query file")
	}
	return nil
}

func trimHeaderLine(line []byte) string {
	s := string(line[1:])
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		s = s[:i]
	}
	return s
}

// Next returns the next query record, or ok=false at EOF.
func (q *QueryReader) Next() (QueryRecord, bool, error) {
	if q.fastq {
		return q.nextFASTQ()
	}
	return q.nextFASTA()
}

func (q *QueryReader) nextFASTA() (QueryRecord, bool, error) {
	var id string
	var seq []byte
	started := false

	for {
		trimmed, err := q.readLineOrPending()

		if len(trimmed) > 0 && trimmed[0] == '>' {
			if started {
				// A new header starts while a record is already held;
				// stash it for the next call.
				q.pending = append([]byte(nil), trimmed...)
				return QueryRecord{ID: id, Sequence: seq}, true, nil
			}
			id = trimHeaderLine(trimmed)
			started = true
		} else if len(trimmed) > 0 {
			seq = append(seq, trimmed...)
		}

		if err != nil {
			if !started {
				return QueryRecord{}, false, nil
			}
			return QueryRecord{ID: id, Sequence: seq}, true, nil
		}
	}
}

func (q *QueryReader) nextFASTQ() (QueryRecord, bool, error) {
	headerLine, err := q.readLineOrPending()
	if len(headerLine) == 0 && err != nil {
		return QueryRecord{}, false, nil
	}
	if len(headerLine) == 0 || headerLine[0] != '@' {
		return QueryRecord{}, false, raptorerr.New(raptorerr.InputUnreadable, "malformed FASTQ record: missing '@' header")
	}
	id := trimHeaderLine(headerLine)

	seqLine, err := q.readLineOrPending()
	if err != nil && len(seqLine) == 0 {
		return QueryRecord{}, false, raptorerr.New(raptorerr.InputUnreadable, "truncated FASTQ record: missing sequence line")
	}

	plusLine, err := q.readLineOrPending()
	if err != nil && len(plusLine) == 0 {
		return QueryRecord{}, false, raptorerr.New(raptorerr.InputUnreadable, "truncated FASTQ record: missing '+' line")
	}

	// Quality scores are not part of the search surface.
	if qualLine, err := q.readLineOrPending(); err != nil && len(qualLine) == 0 {
		return QueryRecord{}, false, raptorerr.New(raptorerr.InputUnreadable, "truncated FASTQ record: missing quality line")
	}

	return QueryRecord{ID: id, Sequence: seqLine}, true, nil
}

func (q *QueryReader) readLineOrPending() ([]byte, error) {
	if q.pending != nil {
		line := q.pending
		q.pending = nil
		return trimTrailingNewline(line), nil
	}
	line, err := q.r.ReadBytes('\n')
	return trimTrailingNewline(line), err
}

func trimTrailingNewline(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
