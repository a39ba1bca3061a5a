package adapter

import (
	"context"

	"task-offload/pkg/processor/geometry"
)

// Geometry offloads map projection, arc paths, distances and animation
// frame timing.
type Geometry struct {
	*base
}

// NewGeometry creates a geometry adapter on d, or on the default
// dispatcher when d is nil.
func NewGeometry(ctx context.Context, d Dispatcher, opts Options) *Geometry {
	g := &Geometry{base: newBase(d, geometry.Name, geometry.ContextKey, geometry.EntryPoint, opts)}
	g.autoInitialize(ctx, opts)
	return g
}

// ProjectPoint maps c onto a width by height equirectangular canvas.
func (g *Geometry) ProjectPoint(ctx context.Context, c geometry.LatLng, width, height float64) (geometry.Point, error) {
	req := geometry.ProjectRequest{LatLng: c, Width: width, Height: height}
	return run(ctx, g.base, geometry.OpProjectPoint, req, true, func() (geometry.Point, error) {
		return geometry.Project(c, width, height)
	})
}

// ArcPath returns the SVG quadratic curve from start to end.
func (g *Geometry) ArcPath(ctx context.Context, start, end geometry.Point) (string, error) {
	req := geometry.ArcRequest{Start: start, End: end}
	return run(ctx, g.base, geometry.OpCreateArcPath, req, true, func() (string, error) {
		return geometry.ArcPath(start, end), nil
	})
}

// Distance returns the great-circle distance between a and b in kilometres.
func (g *Geometry) Distance(ctx context.Context, a, b geometry.LatLng) (float64, error) {
	req := geometry.DistanceRequest{Start: a, End: b}
	return run(ctx, g.base, geometry.OpCalculateDistance, req, true, func() (float64, error) {
		return geometry.Distance(a, b), nil
	})
}

// AnimationFrames samples the named easing once per frame.
func (g *Geometry) AnimationFrames(ctx context.Context, req geometry.FramesRequest) ([]geometry.Frame, error) {
	return run(ctx, g.base, geometry.OpGenerateAnimationFrames, req, true, func() ([]geometry.Frame, error) {
		return geometry.Frames(req)
	})
}

// MapData projects each arc and assigns its path, distance and delay.
func (g *Geometry) MapData(ctx context.Context, req geometry.MapRequest) ([]geometry.DrawableArc, error) {
	return run(ctx, g.base, geometry.OpProcessMapData, req, true, func() ([]geometry.DrawableArc, error) {
		return geometry.MapData(req)
	})
}
