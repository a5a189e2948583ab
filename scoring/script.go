package scoring

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxScriptLength bounds reference scripts, in characters.
const DefaultMaxScriptLength = 100_000

const previewLen = 120

var ErrInvalidScript = errors.New("invalid script")

// Script is a normalized reference script.
type Script struct {
	raw    string
	tokens []string
}

// ScriptInfo describes a script accepted by SetReferenceScript.
type ScriptInfo struct {
	Characters  int    `json:"characters"`
	Words       int    `json:"words"`
	UniqueWords int    `json:"unique_words"`
	Preview     string `json:"preview"`
}

// NewScript normalizes text. maxLength <= 0 means DefaultMaxScriptLength.
func NewScript(text string, maxLength int) (*Script, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxScriptLength
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: script is empty", ErrInvalidScript)
	}
	if n := utf8.RuneCountInString(text); n > maxLength {
		return nil, fmt.Errorf("%w: script has %d characters, limit is %d", ErrInvalidScript, n, maxLength)
	}
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: script contains no words", ErrInvalidScript)
	}
	return &Script{raw: text, tokens: tokens}, nil
}

func (s *Script) Text() string { return s.raw }

func (s *Script) Info() ScriptInfo {
	preview := s.raw
	if utf8.RuneCountInString(preview) > previewLen {
		preview = string([]rune(preview)[:previewLen]) + "…"
	}
	return ScriptInfo{
		Characters:  utf8.RuneCountInString(s.raw),
		Words:       len(s.tokens),
		UniqueWords: len(uniq(s.tokens)),
		Preview:     preview,
	}
}

// Match slides a window as long as tokens over the script and returns the
// share of distinct tokens found in the best window, with that window's
// offset. Equal windows resolve to the earliest one.
func (s *Script) Match(tokens []string) (score float64, offset int) {
	want := uniq(tokens)
	if len(want) == 0 || len(s.tokens) == 0 {
		return 0, 0
	}
	w := len(tokens)
	if w > len(s.tokens) {
		w = len(s.tokens)
	}

	counts := make(map[string]int, w)
	hits := 0
	add := func(t string) {
		if _, ok := want[t]; !ok {
			return
		}
		counts[t]++
		if counts[t] == 1 {
			hits++
		}
	}
	drop := func(t string) {
		if _, ok := want[t]; !ok {
			return
		}
		counts[t]--
		if counts[t] == 0 {
			hits--
		}
	}

	for _, t := range s.tokens[:w] {
		add(t)
	}
	best, bestAt := hits, 0
	for i := w; i < len(s.tokens) && best < len(want); i++ {
		drop(s.tokens[i-w])
		add(s.tokens[i])
		if hits > best {
			best, bestAt = hits, i-w+1
		}
	}
	return float64(best) / float64(len(want)), bestAt
}
