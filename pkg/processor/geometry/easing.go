package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Easing maps normalized time t in [0,1] to progress.
type Easing func(t float64) float64

// ErrUnknownEasing is returned for an unsupported easing name.
var ErrUnknownEasing = errors.New("unknown easing")

var easings = map[string]Easing{
	"linear":    func(t float64) float64 { return t },
	"easeIn":    func(t float64) float64 { return t * t },
	"easeOut":   func(t float64) float64 { return t * (2 - t) },
	"easeInOut": easeInOut,
	"bounce":    bounce,
	"elastic":   elastic,
}

// LookupEasing returns the easing registered under name; "" is linear.
func LookupEasing(name string) (Easing, error) {
	if name == "" {
		name = "linear"
	}
	e, ok := easings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEasing, name)
	}
	return e, nil
}

func easeInOut(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

func bounce(t float64) float64 {
	const n1, d1 = 7.5625, 2.75
	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

func elastic(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	const c4 = 2 * math.Pi / 3
	return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*c4) + 1
}

// DefaultFPS is used when a frame request names no frame rate.
const DefaultFPS = 60

// MaxFrames bounds the number of frame intervals one request may produce.
const MaxFrames = 100_000

// ErrTooManyFrames is returned when duration and frame rate exceed MaxFrames.
var ErrTooManyFrames = errors.New("too many frames")

// FramesRequest is the payload of generateAnimationFrames.
type FramesRequest struct {
	// Duration is the animation length in milliseconds.
	Duration float64 `json:"duration"`
	FPS      float64 `json:"fps,omitempty"`
	Easing   string  `json:"easing,omitempty"`
}

// Frame is the eased progress at one frame.
type Frame struct {
	Frame    int     `json:"frame"`
	Time     float64 `json:"time"`
	Progress float64 `json:"progress"`
}

// Frames samples the easing once per frame, including both endpoints.
func Frames(req FramesRequest) ([]Frame, error) {
	ease, err := LookupEasing(req.Easing)
	if err != nil {
		return nil, err
	}
	if req.Duration < 0 || math.IsNaN(req.Duration) {
		return nil, fmt.Errorf("invalid duration %v", req.Duration)
	}
	fps := req.FPS
	if fps <= 0 || math.IsNaN(fps) {
		fps = DefaultFPS
	}

	count := math.Ceil(req.Duration * fps / 1000)
	if !(count <= MaxFrames) {
		return nil, fmt.Errorf("%w: %v ms at %v fps exceeds %d", ErrTooManyFrames, req.Duration, fps, MaxFrames)
	}
	n := int(count)
	if n == 0 {
		return []Frame{{Frame: 0, Time: 0, Progress: ease(1)}}, nil
	}

	frames := make([]Frame, n+1)
	for i := range frames {
		t := float64(i) / float64(n)
		frames[i] = Frame{
			Frame:    i,
			Time:     t * req.Duration,
			Progress: ease(t),
		}
	}
	return frames, nil
}
