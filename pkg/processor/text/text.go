// Package text implements the text processor: sequence splitting and
// stagger timing for text animations.
package text

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"task-offload/pkg/processor"
)

const (
	// Name is the processor name.
	Name = "text"

	// ContextKey is the conventional dispatcher key for this processor.
	ContextKey = "textProcessor"

	// EntryPoint is the entry point the processor registers under.
	EntryPoint = "processors/text"
)

// Operation names.
const (
	OpSplitText                = "splitText"
	OpCalculateStaggerDelays   = "calculateStaggerDelays"
	OpProcessAnimationSequence = "processAnimationSequence"
)

// SplitMode selects how text is broken into elements.
type SplitMode string

const (
	SplitWords      SplitMode = "words"
	SplitLines      SplitMode = "lines"
	SplitCharacters SplitMode = "characters"
)

// ErrUnknownSplitMode is returned for an unsupported split mode.
var ErrUnknownSplitMode = errors.New("unknown split mode")

// New creates the text processor.
func New() processor.Processor {
	return processor.New(Name, processor.Table{
		OpSplitText:                processor.Bind(splitText),
		OpCalculateStaggerDelays:   processor.Bind(staggerDelays),
		OpProcessAnimationSequence: processor.Bind(Sequence),
	})
}

// SplitRequest is the payload of splitText.
type SplitRequest struct {
	Text    string    `json:"text"`
	SplitBy SplitMode `json:"splitBy"`
}

func splitText(req SplitRequest) ([]string, error) {
	return Split(req.Text, req.SplitBy)
}

// Split breaks s into elements according to mode.
func Split(s string, mode SplitMode) ([]string, error) {
	switch mode {
	case SplitWords:
		return nonNil(strings.Fields(s)), nil
	case SplitLines:
		return strings.Split(s, "\n"), nil
	case SplitCharacters:
		return Characters(s), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplitMode, mode)
	}
}

// Characters splits s into user-perceived characters (grapheme clusters).
// Invalid UTF-8 has no cluster boundaries, so it is split by code point.
func Characters(s string) []string {
	if !utf8.ValidString(s) {
		return codePoints(s)
	}
	chars := make([]string, 0, len(s))
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		chars = append(chars, g.Str())
	}
	return chars
}

func codePoints(s string) []string {
	chars := make([]string, 0, len(s))
	for _, r := range s {
		chars = append(chars, string(r))
	}
	return chars
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// StaggerFrom is the origin of a stagger: "first", "last", "center",
// "random" or a numeric element index.
type StaggerFrom struct {
	Keyword string
	Index   int
}

// Stagger origins.
var (
	FromFirst  = StaggerFrom{Keyword: "first"}
	FromLast   = StaggerFrom{Keyword: "last"}
	FromCenter = StaggerFrom{Keyword: "center"}
	FromRandom = StaggerFrom{Keyword: "random"}
)

// FromIndex returns an origin fixed at index i.
func FromIndex(i int) StaggerFrom {
	return StaggerFrom{Index: i}
}

// IsRandom reports whether the origin is drawn at random per call.
func (f StaggerFrom) IsRandom() bool {
	return f.Keyword == "random"
}

// MarshalJSON encodes keywords as strings and indices as numbers.
func (f StaggerFrom) MarshalJSON() ([]byte, error) {
	if f.Keyword != "" {
		return json.Marshal(f.Keyword)
	}
	return json.Marshal(f.Index)
}

// UnmarshalJSON accepts either a keyword string or a number.
func (f *StaggerFrom) UnmarshalJSON(data []byte) error {
	var kw string
	if err := json.Unmarshal(data, &kw); err == nil {
		switch kw {
		case "first", "last", "center", "random":
			*f = StaggerFrom{Keyword: kw}
			return nil
		default:
			return fmt.Errorf("unknown stagger origin %q", kw)
		}
	}

	var idx float64
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("stagger origin must be a keyword or index: %w", err)
	}
	*f = StaggerFrom{Index: int(idx)}
	return nil
}

// origin resolves f to an element index for a sequence of total elements.
func (f StaggerFrom) origin(total int) int {
	switch f.Keyword {
	case "first":
		return 0
	case "last":
		return total - 1
	case "center":
		return total / 2
	case "random":
		if total <= 0 {
			return 0
		}
		return rand.IntN(total)
	default:
		return f.Index
	}
}

// StaggerRequest is the payload of calculateStaggerDelays.
type StaggerRequest struct {
	Total           int         `json:"total"`
	StaggerFrom     StaggerFrom `json:"staggerFrom"`
	StaggerDuration float64     `json:"staggerDuration"`
}

func staggerDelays(req StaggerRequest) ([]float64, error) {
	return StaggerDelays(req.Total, req.StaggerFrom, req.StaggerDuration), nil
}

// StaggerDelays returns the delay of each of total elements: the distance
// from the resolved origin multiplied by duration. A random origin is drawn
// once for the whole call.
func StaggerDelays(total int, from StaggerFrom, duration float64) []float64 {
	if total <= 0 {
		return []float64{}
	}
	origin := from.origin(total)
	delays := make([]float64, total)
	for i := range delays {
		d := origin - i
		if d < 0 {
			d = -d
		}
		delays[i] = float64(d) * duration
	}
	return delays
}

// SequenceRequest is the payload of processAnimationSequence.
type SequenceRequest struct {
	Text            string      `json:"text"`
	SplitBy         SplitMode   `json:"splitBy"`
	StaggerFrom     StaggerFrom `json:"staggerFrom"`
	StaggerDuration float64     `json:"staggerDuration"`
}

// Step pairs an element with its animation delay.
type Step struct {
	Index   int     `json:"index"`
	Content string  `json:"content"`
	Delay   float64 `json:"delay"`
}

// AnimationSequence is the composed result of splitting and staggering.
type AnimationSequence struct {
	Elements   []string  `json:"elements"`
	Delays     []float64 `json:"delays"`
	Animations []Step    `json:"animations"`
}

// Sequence splits the text and pairs every element with its stagger delay.
func Sequence(req SequenceRequest) (AnimationSequence, error) {
	elements, err := Split(req.Text, req.SplitBy)
	if err != nil {
		return AnimationSequence{}, err
	}

	delays := StaggerDelays(len(elements), req.StaggerFrom, req.StaggerDuration)
	steps := make([]Step, len(elements))
	for i, el := range elements {
		steps[i] = Step{Index: i, Content: el, Delay: delays[i]}
	}

	return AnimationSequence{
		Elements:   elements,
		Delays:     delays,
		Animations: steps,
	}, nil
}
