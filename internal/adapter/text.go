package adapter

import (
	"context"

	"task-offload/pkg/processor/text"
)

// Text offloads text splitting and stagger timing.
type Text struct {
	*base
}

// NewText creates a text adapter on d, or on the default dispatcher when
// d is nil.
func NewText(ctx context.Context, d Dispatcher, opts Options) *Text {
	t := &Text{base: newBase(d, text.Name, text.ContextKey, text.EntryPoint, opts)}
	t.autoInitialize(ctx, opts)
	return t
}

// SplitText splits s into words, lines or grapheme clusters.
func (t *Text) SplitText(ctx context.Context, s string, mode text.SplitMode) ([]string, error) {
	req := text.SplitRequest{Text: s, SplitBy: mode}
	return run(ctx, t.base, text.OpSplitText, req, true, func() ([]string, error) {
		return text.Split(s, mode)
	})
}

// StaggerDelays returns the start delay of each of total elements.
// Random origins are never served from the cache.
func (t *Text) StaggerDelays(ctx context.Context, total int, from text.StaggerFrom, duration float64) ([]float64, error) {
	req := text.StaggerRequest{Total: total, StaggerFrom: from, StaggerDuration: duration}
	return run(ctx, t.base, text.OpCalculateStaggerDelays, req, !from.IsRandom(), func() ([]float64, error) {
		return text.StaggerDelays(total, from, duration), nil
	})
}

// AnimationSequence splits text and pairs every element with its delay.
func (t *Text) AnimationSequence(ctx context.Context, req text.SequenceRequest) (text.AnimationSequence, error) {
	return run(ctx, t.base, text.OpProcessAnimationSequence, req, !req.StaggerFrom.IsRandom(), func() (text.AnimationSequence, error) {
		return text.Sequence(req)
	})
}
