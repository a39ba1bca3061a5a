package text

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-offload/pkg/processor"
	"task-offload/pkg/protocol"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		text string
		mode SplitMode
		want []string
	}{
		{"words", "build  faster\tsoftware", SplitWords, []string{"build", "faster", "software"}},
		{"empty words", "", SplitWords, []string{}},
		{"lines", "one\ntwo\n", SplitLines, []string{"one", "two", ""}},
		{"ascii characters", "abc", SplitCharacters, []string{"a", "b", "c"}},
		{"combining mark", "e\u0301x", SplitCharacters, []string{"e\u0301", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.text, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplit_UnknownMode(t *testing.T) {
	_, err := Split("abc", "sentences")
	assert.True(t, errors.Is(err, ErrUnknownSplitMode))
}

func TestCharacters_MultiCodePointEmoji(t *testing.T) {
	family := "\U0001F468\u200d\U0001F469\u200d\U0001F467" // man, ZWJ, woman, ZWJ, girl
	flag := "\U0001F1F3\U0001F1F4"                         // regional indicators N, O

	got := Characters("hi" + family + flag)

	require.Len(t, got, 4)
	assert.Equal(t, family, got[2])
	assert.Equal(t, flag, got[3])
}

func TestCharacters_InvalidUTF8FallsBackToCodePoints(t *testing.T) {
	got := Characters("a\xffb")
	assert.Equal(t, []string{"a", "\uFFFD", "b"}, got)
}

func TestStaggerDelays(t *testing.T) {
	tests := []struct {
		name string
		from StaggerFrom
		want []float64
	}{
		{"first", FromFirst, []float64{0, 10, 20, 30, 40}},
		{"last", FromLast, []float64{40, 30, 20, 10, 0}},
		{"center", FromCenter, []float64{20, 10, 0, 10, 20}},
		{"index", FromIndex(1), []float64{10, 0, 10, 20, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StaggerDelays(5, tt.from, 10))
		})
	}
}

func TestStaggerDelays_Random(t *testing.T) {
	for range 50 {
		delays := StaggerDelays(5, FromRandom, 10)
		require.Len(t, delays, 5)

		// Exactly one element sits at the drawn origin.
		zeros := 0
		for _, d := range delays {
			assert.GreaterOrEqual(t, d, 0.0)
			assert.LessOrEqual(t, d, 40.0)
			if d == 0 {
				zeros++
			}
		}
		assert.Equal(t, 1, zeros)
	}
}

func TestStaggerDelays_Empty(t *testing.T) {
	assert.Equal(t, []float64{}, StaggerDelays(0, FromCenter, 10))
}

func TestStaggerFrom_JSON(t *testing.T) {
	tests := []struct {
		in      string
		want    StaggerFrom
		wantErr bool
	}{
		{`"first"`, FromFirst, false},
		{`"center"`, FromCenter, false},
		{`3`, FromIndex(3), false},
		{`"middle"`, StaggerFrom{}, true},
		{`true`, StaggerFrom{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got StaggerFrom
			err := json.Unmarshal([]byte(tt.in), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			out, err := json.Marshal(got)
			require.NoError(t, err)
			assert.JSONEq(t, tt.in, string(out))
		})
	}
}

func TestSequence(t *testing.T) {
	seq, err := Sequence(SequenceRequest{
		Text:            "we ship code",
		SplitBy:         SplitWords,
		StaggerFrom:     FromLast,
		StaggerDuration: 0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"we", "ship", "code"}, seq.Elements)
	assert.Equal(t, []float64{1, 0.5, 0}, seq.Delays)
	assert.Equal(t, Step{Index: 1, Content: "ship", Delay: 0.5}, seq.Animations[1])
}

func TestProcessor_ServesOperations(t *testing.T) {
	p := New()
	assert.Equal(t, Name, p.Name())

	resp := processor.Handle(p, protocol.Request{
		ID:        "1",
		Operation: OpCalculateStaggerDelays,
		Data:      json.RawMessage(`{"total":5,"staggerFrom":"center","staggerDuration":10}`),
	})
	require.True(t, resp.Success, resp.Error)
	assert.JSONEq(t, `[20,10,0,10,20]`, string(resp.Result))

	resp = processor.Handle(p, protocol.Request{
		ID:        "2",
		Operation: OpSplitText,
		Data:      json.RawMessage(`{"text":"a b","splitBy":"paragraphs"}`),
	})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown split mode")
}
