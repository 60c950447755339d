package raptor

// Base ranks for the DNA4 alphabet, matching the 2-bit encoding the
// hash and shape machinery operates on.
const (
	RankA uint8 = 0
	RankC uint8 = 1
	RankG uint8 = 2
	RankT uint8 = 3
)

// baseRank maps an ASCII nucleotide byte to its 2-bit rank. ok is false
// for anything outside {A,C,G,T} (case-insensitive), which callers
// treat as an invalid base that breaks the current k-mer window.
func baseRank(b byte) (rank uint8, ok bool) {
	switch b {
	case 'A', 'a':
		return RankA, true
	case 'C', 'c':
		return RankC, true
	case 'G', 'g':
		return RankG, true
	case 'T', 't':
		return RankT, true
	default:
		return 0, false
	}
}

// complementRank returns the Watson-Crick complement of a 2-bit rank:
// A<->T (0<->3), C<->G (1<->2).
func complementRank(r uint8) uint8 { return 3 - r }

// BaseSource is the opaque producer of DNA4 bases a minimiser Stream
// consumes. Sequence-file decoding (FASTA/FASTQ parsing) is external
// to this package; callers adapt their reader to this interface.
type BaseSource interface {
	// NextBase returns the next base in the sequence. ok is false once
	// the source is exhausted. A byte outside {A,C,G,T} (e.g. 'N') is
	// still returned with ok true; the caller is responsible for
	// recognizing it as invalid via baseRank.
	NextBase() (b byte, ok bool)
}

// SliceSource adapts a raw in-memory byte slice (e.g. already read
// into memory by an external FASTA reader) to BaseSource.
type SliceSource struct {
	data []byte
	pos  int
}

// NewSliceSource wraps data for sequential consumption.
func NewSliceSource(data []byte) *SliceSource {
	return &SliceSource{data: data}
}

// NextBase implements BaseSource.
func (s *SliceSource) NextBase() (byte, bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	b := s.data[s.pos]
	s.pos++
	return b, true
}

// ReverseComplement returns the reverse complement of a DNA4 sequence.
// ACGT bases keep their case; anything that is not ACGT is copied
// unchanged (not complemented) to its reversed position, so the result
// is only meaningful for strict ACGT sequences.
func ReverseComplement(seq []byte) []byte {
	out := make([]byte, len(seq))
	for i, b := range seq {
		j := len(seq) - 1 - i
		if r, ok := baseRank(b); ok {
			c := complementRank(r)
			out[j] = rankToBase(c, b)
		} else {
			out[j] = b
		}
	}
	return out
}

func rankToBase(r uint8, like byte) byte {
	upper := like >= 'A' && like <= 'Z'
	var b byte
	switch r {
	case RankA:
		b = 'A'
	case RankC:
		b = 'C'
	case RankG:
		b = 'G'
	default:
		b = 'T'
	}
	if !upper {
		b += 'a' - 'A'
	}
	return b
}
