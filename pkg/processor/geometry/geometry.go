// Package geometry implements the geometry processor: map projection, arc
// paths, great-circle distance and eased animation timing.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"task-offload/pkg/processor"
)

const (
	// Name is the processor name.
	Name = "geometry"

	// ContextKey is the conventional dispatcher key for this processor.
	ContextKey = "geometryProcessor"

	// EntryPoint is the entry point the processor registers under.
	EntryPoint = "processors/geometry"
)

// Operation names.
const (
	OpProjectPoint            = "projectPoint"
	OpCreateArcPath           = "createArcPath"
	OpCalculateDistance       = "calculateDistance"
	OpGenerateAnimationFrames = "generateAnimationFrames"
	OpProcessMapData          = "processMapData"
)

const (
	// EarthRadiusKm is the mean Earth radius used by Distance.
	EarthRadiusKm = 6371.0

	// ArcLift is how far above the higher endpoint an arc's control point sits.
	ArcLift = 50.0

	// DefaultStaggerDelay spaces successive arcs in MapData.
	DefaultStaggerDelay = 0.5
)

// ErrInvalidCanvas is returned for a non-positive projection canvas.
var ErrInvalidCanvas = errors.New("canvas width and height must be positive")

// New creates the geometry processor.
func New() processor.Processor {
	return processor.New(Name, processor.Table{
		OpProjectPoint: processor.Bind(func(req ProjectRequest) (Point, error) {
			return Project(req.LatLng, req.Width, req.Height)
		}),
		OpCreateArcPath: processor.Bind(func(req ArcRequest) (string, error) {
			return ArcPath(req.Start, req.End), nil
		}),
		OpCalculateDistance: processor.Bind(func(req DistanceRequest) (float64, error) {
			return Distance(req.Start, req.End), nil
		}),
		OpGenerateAnimationFrames: processor.Bind(Frames),
		OpProcessMapData:          processor.Bind(MapData),
	})
}

// LatLng is a geographic coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point is a canvas position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ProjectRequest is the payload of projectPoint.
type ProjectRequest struct {
	LatLng
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ArcRequest is the payload of createArcPath.
type ArcRequest struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// DistanceRequest is the payload of calculateDistance.
type DistanceRequest struct {
	Start LatLng `json:"start"`
	End   LatLng `json:"end"`
}

// Project maps c onto a width x height canvas with an equirectangular projection.
func Project(c LatLng, width, height float64) (Point, error) {
	if width <= 0 || height <= 0 {
		return Point{}, ErrInvalidCanvas
	}
	return Point{
		X: (c.Lng + 180) * (width / 360),
		Y: (90 - c.Lat) * (height / 180),
	}, nil
}

// ArcPath returns an SVG quadratic Bézier path from start to end whose
// control point is lifted ArcLift above the higher endpoint.
func ArcPath(start, end Point) string {
	cx := (start.X + end.X) / 2
	cy := math.Min(start.Y, end.Y) - ArcLift
	return fmt.Sprintf("M %s %s Q %s %s %s %s",
		num(start.X), num(start.Y), num(cx), num(cy), num(end.X), num(end.Y))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Distance returns the great-circle distance in kilometres (haversine).
func Distance(a, b LatLng) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Arc is a route between two coordinates.
type Arc struct {
	Start LatLng `json:"start"`
	End   LatLng `json:"end"`
}

// MapRequest is the payload of processMapData.
type MapRequest struct {
	Dots         []Arc    `json:"dots"`
	Width        float64  `json:"width"`
	Height       float64  `json:"height"`
	StaggerDelay *float64 `json:"staggerDelay,omitempty"`
}

// DrawableArc is an Arc projected and annotated for drawing.
type DrawableArc struct {
	Index    int     `json:"index"`
	Start    Point   `json:"start"`
	End      Point   `json:"end"`
	Path     string  `json:"path"`
	Distance float64 `json:"distance"`
	Delay    float64 `json:"delay"`
}

// MapData projects every arc onto the canvas and attaches its path,
// distance and stagger delay.
func MapData(req MapRequest) ([]DrawableArc, error) {
	stagger := DefaultStaggerDelay
	if req.StaggerDelay != nil {
		stagger = *req.StaggerDelay
	}

	out := make([]DrawableArc, len(req.Dots))
	for i, dot := range req.Dots {
		start, err := Project(dot.Start, req.Width, req.Height)
		if err != nil {
			return nil, err
		}
		end, err := Project(dot.End, req.Width, req.Height)
		if err != nil {
			return nil, err
		}
		out[i] = DrawableArc{
			Index:    i,
			Start:    start,
			End:      end,
			Path:     ArcPath(start, end),
			Distance: Distance(dot.Start, dot.End),
			Delay:    float64(i) * stagger,
		}
	}
	return out, nil
}
