package scoring

import (
	"math"

	"github.com/maastricht-university/upsot-pipeline/transcript"
)

// Weights for the script-less heuristic.
const (
	lengthWeight   = 0.7
	positionWeight = 0.3
)

// Matcher scores segments against an optional reference script. A Matcher
// holds one session's script and is not safe for concurrent use; the
// session that owns it serializes access.
type Matcher struct {
	maxLength int
	script    *Script
}

func NewMatcher(maxLength int) *Matcher {
	return &Matcher{maxLength: maxLength}
}

// SetReferenceScript replaces the current script. On error the previous
// script is kept.
func (m *Matcher) SetReferenceScript(text string) (ScriptInfo, error) {
	s, err := NewScript(text, m.maxLength)
	if err != nil {
		return ScriptInfo{}, err
	}
	m.script = s
	return s.Info(), nil
}

// Script returns the current script, or nil.
func (m *Matcher) Script() *Script { return m.script }

// ScoreSegments returns copies of segs with a relevance score in [0,1].
func (m *Matcher) ScoreSegments(segs []transcript.Segment) []transcript.Segment {
	return Score(segs, m.script)
}

// Score is the pure scoring function behind Matcher. With a nil script
// segments are scored on length and position instead.
func Score(segs []transcript.Segment, script *Script) []transcript.Segment {
	if script == nil {
		return heuristic(segs)
	}
	out := make([]transcript.Segment, len(segs))
	for i, s := range segs {
		score, _ := script.Match(Tokenize(s.Text))
		out[i] = s.WithScore(clamp(score))
	}
	return out
}

// heuristic favours segments at least as long as the transcript average
// and away from the very start or end of the recording.
func heuristic(segs []transcript.Segment) []transcript.Segment {
	out := make([]transcript.Segment, len(segs))
	if len(segs) == 0 {
		return out
	}

	words := make([]int, len(segs))
	total := 0
	for i, s := range segs {
		words[i] = len(Tokenize(s.Text))
		total += words[i]
	}
	avg := float64(total) / float64(len(segs))

	for i, s := range segs {
		length := 0.0
		if avg > 0 {
			length = math.Min(float64(words[i])/avg, 1)
		}
		position := 1.0
		if n := len(segs); n > 1 {
			p := float64(i) / float64(n-1)
			position = 1 - math.Abs(2*p-1)
		}
		out[i] = s.WithScore(clamp(lengthWeight*length + positionWeight*position))
	}
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
