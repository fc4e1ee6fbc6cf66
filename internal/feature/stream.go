package feature

import (
	"fmt"

	"kepler/internal/domain"
)

// Stream is a lazy, finite, restartable cursor over an extraction. Each call
// to Next computes the vector for the next bar past warm-up; Reset rewinds to
// the first emittable bar. Stream and Extract produce identical sequences.
type Stream struct {
	bars   []domain.Bar
	params Params
	warm   int
	index  int
}

// NewStream validates params and input length and positions the cursor at
// the first bar past warm-up.
func NewStream(bars []domain.Bar, p Params) (*Stream, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	warm := p.WarmUp()
	if len(bars) < warm {
		return nil, fmt.Errorf("%w: have %d bars, need %d", domain.ErrInsufficientHistory, len(bars), warm)
	}
	return &Stream{bars: bars, params: p, warm: warm, index: warm - 1}, nil
}

// Next returns the next vector, or false when the stream is exhausted.
func (s *Stream) Next() (Vector, bool) {
	if s.index >= len(s.bars) {
		return Vector{}, false
	}
	v := vectorAt(s.bars, s.index, s.params)
	s.index++
	return v, true
}

// AtEnd reports whether the stream is exhausted.
func (s *Stream) AtEnd() bool { return s.index >= len(s.bars) }

// Reset rewinds the stream to the first emittable bar.
func (s *Stream) Reset() { s.index = s.warm - 1 }
