package transcript

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidSegment = errors.New("invalid segment")

// Segment is a contiguous span of transcribed speech.
type Segment struct {
	Start float64 `json:"start_time"` // sec
	End   float64 `json:"end_time"`   // sec
	Text  string  `json:"text"`
	// Score is nil until the segment has been scored.
	Score *float64 `json:"relevance_score,omitempty"`
}

// Scored reports the relevance score and whether one is set.
func (s Segment) Scored() (float64, bool) {
	if s.Score == nil {
		return 0, false
	}
	return *s.Score, true
}

// WithScore returns a copy of s carrying score.
func (s Segment) WithScore(score float64) Segment {
	v := score
	s.Score = &v
	return s
}

// Transcript is the ordered segment sequence of one recording. It is not
// modified after New returns; Segments hands out copies.
type Transcript struct {
	segments []Segment
	fullText string
	language string
}

// New validates segs and builds a Transcript. Segments must have non-empty
// text, start before they end, and be ordered without overlap.
func New(segs []Segment, language string) (*Transcript, error) {
	out := make([]Segment, 0, len(segs))
	for i, s := range segs {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			return nil, fmt.Errorf("%w: segment %d has empty text", ErrInvalidSegment, i)
		}
		if !(s.Start < s.End) {
			return nil, fmt.Errorf("%w: segment %d start %.3f not before end %.3f", ErrInvalidSegment, i, s.Start, s.End)
		}
		if i > 0 && s.Start < out[i-1].End {
			return nil, fmt.Errorf("%w: segment %d starts at %.3f before previous end %.3f", ErrInvalidSegment, i, s.Start, out[i-1].End)
		}
		s.Score = nil
		out = append(out, s)
	}

	texts := make([]string, len(out))
	for i, s := range out {
		texts[i] = s.Text
	}
	return &Transcript{segments: out, fullText: strings.Join(texts, " "), language: language}, nil
}

// Segments returns a copy of the segments in chronological order.
func (t *Transcript) Segments() []Segment {
	cp := make([]Segment, len(t.segments))
	copy(cp, t.segments)
	return cp
}

func (t *Transcript) Len() int         { return len(t.segments) }
func (t *Transcript) FullText() string { return t.fullText }
func (t *Transcript) Language() string { return t.language }

// Duration is the end time of the last segment.
func (t *Transcript) Duration() float64 {
	if len(t.segments) == 0 {
		return 0
	}
	return t.segments[len(t.segments)-1].End
}
