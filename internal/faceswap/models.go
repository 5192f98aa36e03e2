package faceswap

import (
	"image"
	"math"
	"time"
)

// Point is an image-space coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between two points
func (p Point) Dist(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Rect is an axis-aligned box in image space
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the box center
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Area returns box area
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Expand grows the box about its center so each dimension is multiplied by factor
func (r Rect) Expand(factor float64) Rect {
	c := r.Center()
	w, h := r.Width*factor, r.Height*factor
	return Rect{X: c.X - w/2, Y: c.Y - h/2, Width: w, Height: h}
}

// Pad grows the box by ratio of its size on each side
func (r Rect) Pad(ratio float64) Rect {
	dx, dy := r.Width*ratio, r.Height*ratio
	return Rect{X: r.X - dx, Y: r.Y - dy, Width: r.Width + 2*dx, Height: r.Height + 2*dy}
}

// Bounds rounds the box outward to integer pixel bounds
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.Width)),
		int(math.Ceil(r.Y+r.Height)),
	)
}

// Landmarks is a provider's landmark set partitioned into named subsets.
// Left and right follow the provider's naming.
type Landmarks struct {
	LeftEye   []Point `json:"left_eye"`
	RightEye  []Point `json:"right_eye"`
	Nose      []Point `json:"nose,omitempty"`
	Mouth     []Point `json:"mouth,omitempty"`
	Jaw       []Point `json:"jaw,omitempty"`
	LeftBrow  []Point `json:"left_brow,omitempty"`
	RightBrow []Point `json:"right_brow,omitempty"`
}

// All returns every landmark in provider order
func (l Landmarks) All() []Point {
	n := len(l.LeftEye) + len(l.RightEye) + len(l.Nose) + len(l.Mouth) + len(l.Jaw) + len(l.LeftBrow) + len(l.RightBrow)
	out := make([]Point, 0, n)
	for _, set := range [][]Point{l.Jaw, l.LeftBrow, l.RightBrow, l.Nose, l.LeftEye, l.RightEye, l.Mouth} {
		out = append(out, set...)
	}
	return out
}

// FaceDetection is one face returned by a landmark provider
type FaceDetection struct {
	BoundingBox Rect      `json:"bounding_box"`
	Landmarks   Landmarks `json:"landmarks"`
	Confidence  float64   `json:"confidence"`
}

// FaceOrientation is derived once per detection
type FaceOrientation struct {
	Center           Point   `json:"center"`
	InterEyeDistance float64 `json:"inter_eye_distance"`
	RotationRadians  float64 `json:"rotation_radians"`
}

// AlignmentTransform maps source face space onto target face space
type AlignmentTransform struct {
	Scale           float64 `json:"scale"`
	RotationRadians float64 `json:"rotation_radians"`
	Translation     Point   `json:"translation"`
}

// Channels holds one value per colour channel
type Channels struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Luminance returns the Rec.601 weighted sum of the channels
func (c Channels) Luminance() float64 {
	return 0.299*c.R + 0.587*c.G + 0.114*c.B
}

// ColorStatistics are first and second order colour statistics of a sampled region
type ColorStatistics struct {
	Mean     Channels `json:"mean"`
	Variance Channels `json:"variance"`
	StdDev   Channels `json:"std_dev"`
	Count    int      `json:"count"`
}

// Contrast approximates luminance spread from the per-channel deviations
func (s ColorStatistics) Contrast() float64 {
	return s.StdDev.Luminance()
}

// Placement pairs a processed crop with the destination rectangle it covers
type Placement struct {
	Index  int // destination face index
	Region image.Rectangle
	Crop   *image.NRGBA
}

// StageTiming records wall time spent per stage across all regions
type StageTiming struct {
	Align     time.Duration `json:"align"`
	Mask      time.Duration `json:"mask"`
	Normalize time.Duration `json:"normalize"`
	Composite time.Duration `json:"composite"`
	Total     time.Duration `json:"total"`
}

// CompositeResult is the final raster plus provenance
type CompositeResult struct {
	Image             *image.NRGBA `json:"-"`
	SourceFaces       int          `json:"source_faces"`
	DestinationFaces  int          `json:"destination_faces"`
	CompositedRegions []int        `json:"composited_regions"`
	Timing            StageTiming  `json:"timing"`
}
