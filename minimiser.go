package raptor

// Minimiser is one element of a minimiser stream: the canonical hash
// of the locally smallest k-mer in a window, together with the
// 0-based base offset where that k-mer begins.
type Minimiser struct {
	Hash  uint64
	Begin int
}

// candidate is an entry in the sliding-window monotonic deque: the
// canonical hash of the k-mer beginning at Begin, plus its hash value.
type candidate struct {
	hash  uint64
	begin int
}

// Stream produces a lazy, single-pass, finite sequence of (k,w)
// minimisers from a BaseSource under a Shape. It is not restartable:
// callers that need to re-scan must construct a new Stream.
type Stream struct {
	shape Shape
	w     int
	seed  uint64
	src   BaseSource

	deque       []candidate // monotonic increasing by hash; front = min
	windowWidth int         // number of k-mer placements per w-wide base window (w - span + 1)

	packed   uint64
	mask     uint64
	validRun int // consecutive valid bases seen so far
	pos      int // index of the next base to be read (0-based)
	filled   int // k-mer placements pushed since the last reset, capped at windowWidth

	lastEmittedBegin int
	haveEmitted      bool

	done bool
}

// NewStream constructs a minimiser stream over src with window width w
// (in bases, w >= shape.Span()) and a fixed hashing seed.
func NewStream(src BaseSource, shape Shape, w int, seed uint64) *Stream {
	span := int(shape.Span())
	if w < span {
		w = span
	}
	return &Stream{
		shape:            shape,
		w:                w,
		seed:             seed,
		src:              src,
		windowWidth:      w - span + 1,
		mask:             uint64(1)<<uint(2*span) - 1,
		lastEmittedBegin: -1,
	}
}

// pushCandidate inserts the newly completed k-mer into the monotonic
// deque, evicting any back entries whose hash is strictly larger (they
// can never again be the window minimum) and any front entries that
// have scrolled out of the current window.
func (s *Stream) pushCandidate(c candidate) {
	// Evict expired front entries.
	lowWater := c.begin - s.windowWidth + 1
	for len(s.deque) > 0 && s.deque[0].begin < lowWater {
		s.deque = s.deque[1:]
	}
	// Evict back entries that can never win against c.
	for len(s.deque) > 0 && s.deque[len(s.deque)-1].hash > c.hash {
		s.deque = s.deque[:len(s.deque)-1]
	}
	s.deque = append(s.deque, c)
}

// Next advances the stream and returns the next distinct-position
// minimiser. ok is false once the source is exhausted.
func (s *Stream) Next() (Minimiser, bool) {
	if s.done {
		return Minimiser{}, false
	}

	span := int(s.shape.Span())

	for {
		b, has := s.src.NextBase()
		if !has {
			s.done = true
			return Minimiser{}, false
		}

		rank, valid := baseRank(b)
		curPos := s.pos
		s.pos++

		if !valid {
			// Non-ACGT base: skip this k-mer, restart the window.
			s.validRun = 0
			s.packed = 0
			s.deque = s.deque[:0]
			s.filled = 0
			s.haveEmitted = false
			continue
		}

		s.packed = ((s.packed << 2) | uint64(rank)) & s.mask
		s.validRun++

		if s.validRun < span {
			continue
		}

		begin := curPos - span + 1
		h := CanonicalHash(s.packed, s.shape, s.seed)
		s.pushCandidate(candidate{hash: h, begin: begin})
		if s.filled < s.windowWidth {
			s.filled++
		}

		// Not enough k-mer placements buffered yet to know the true
		// window minimum (still filling the first window).
		if s.filled < s.windowWidth {
			continue
		}

		front := s.deque[0]
		if !s.haveEmitted || front.begin != s.lastEmittedBegin {
			s.haveEmitted = true
			s.lastEmittedBegin = front.begin
			return Minimiser{Hash: front.hash, Begin: front.begin}, true
		}
		// Front unchanged: keep scanning for the next new minimum.
	}
}

// Collect drains the stream into a slice; useful for tests and for the
// property that minimiser sets are compared as multisets.
func Collect(s *Stream) []Minimiser {
	var out []Minimiser
	for {
		m, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, m)
	}
}
