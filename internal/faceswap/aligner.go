package faceswap

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
)

// AlignedCrop is the source face rendered into destination face space.
// The canvas is sized to Padded; the compositor re-samples it into Target.
type AlignedCrop struct {
	Image     *image.NRGBA
	Padded    image.Rectangle // destination box grown by CanvasPadding
	Target    image.Rectangle // exact destination box
	Transform AlignmentTransform
}

// ComputeTransform returns the similarity transform taking the source face onto the target face.
// Translation is chosen so the source eye midpoint lands on the target eye midpoint.
func ComputeTransform(src, dst FaceOrientation) (AlignmentTransform, error) {
	if src.InterEyeDistance < minEyeDistance || !isFinite(src.InterEyeDistance) {
		return AlignmentTransform{}, apperrors.NewDegenerateFaceError(
			"source inter-eye distance is zero",
			fmt.Errorf("distance %g", src.InterEyeDistance),
		)
	}
	if dst.InterEyeDistance < minEyeDistance || !isFinite(dst.InterEyeDistance) {
		return AlignmentTransform{}, apperrors.NewDegenerateFaceError(
			"target inter-eye distance is zero",
			fmt.Errorf("distance %g", dst.InterEyeDistance),
		)
	}

	scale := dst.InterEyeDistance / src.InterEyeDistance
	if scale <= 0 || !isFinite(scale) {
		return AlignmentTransform{}, apperrors.NewDegenerateFaceError(
			"alignment scale is not a positive finite number",
			fmt.Errorf("scale %g", scale),
		)
	}
	rotation := normalizeAngle(dst.RotationRadians - src.RotationRadians)

	sin, cos := math.Sincos(rotation)
	mx := scale * (cos*src.Center.X - sin*src.Center.Y)
	my := scale * (sin*src.Center.X + cos*src.Center.Y)

	return AlignmentTransform{
		Scale:           scale,
		RotationRadians: rotation,
		Translation:     Point{X: dst.Center.X - mx, Y: dst.Center.Y - my},
	}, nil
}

// Apply maps a source image point into destination image space
func (t AlignmentTransform) Apply(p Point) Point {
	sin, cos := math.Sincos(t.RotationRadians)
	return Point{
		X: t.Scale*(cos*p.X-sin*p.Y) + t.Translation.X,
		Y: t.Scale*(sin*p.X+cos*p.Y) + t.Translation.Y,
	}
}

// AlignFace renders the padded source face crop onto a transparent canvas sized
// to the padded destination box. The source face center is drawn at the canvas
// center, rotated and scaled about that point.
func AlignFace(src *image.NRGBA, srcFace FaceDetection, srcOrient FaceOrientation,
	dstFace FaceDetection, dstOrient FaceOrientation, opts Options) (*AlignedCrop, error) {

	transform, err := ComputeTransform(srcOrient, dstOrient)
	if err != nil {
		return nil, err
	}

	if dstFace.BoundingBox.Width <= 0 || dstFace.BoundingBox.Height <= 0 {
		return nil, apperrors.NewDegenerateFaceError("destination bounding box has zero area", nil)
	}
	padded := dstFace.BoundingBox.Expand(opts.CanvasPadding).Bounds()
	if err := checkDimensions("aligned canvas", padded.Dx(), padded.Dy(), opts.MaxDimension); err != nil {
		return nil, err
	}

	crop := srcFace.BoundingBox.Pad(opts.CropPadding).Bounds().Intersect(src.Bounds())
	if crop.Empty() {
		return nil, apperrors.NewDegenerateFaceError(
			"source face lies outside the image",
			fmt.Errorf("box %+v, image %v", srcFace.BoundingBox, src.Bounds()),
		)
	}

	canvas, err := newRGBACanvas(image.Rect(0, 0, padded.Dx(), padded.Dy()))
	if err != nil {
		return nil, err
	}

	// T(canvas center) · R · S · T(-source face center)
	cx, cy := float64(padded.Dx())/2, float64(padded.Dy())/2
	center := srcFace.BoundingBox.Center()
	ox, oy := center.X, center.Y

	sin, cos := math.Sincos(transform.RotationRadians)
	a := transform.Scale * cos
	b := -transform.Scale * sin
	d := transform.Scale * sin
	e := transform.Scale * cos
	s2d := f64.Aff3{
		a, b, cx - (a*ox + b*oy),
		d, e, cy - (d*ox + e*oy),
	}

	draw.BiLinear.Transform(canvas, s2d, src, crop, draw.Src, nil)

	out, err := toNRGBA(canvas)
	if err != nil {
		return nil, err
	}
	return &AlignedCrop{
		Image:     out,
		Padded:    padded,
		Target:    dstFace.BoundingBox.Bounds(),
		Transform: transform,
	}, nil
}

func newRGBACanvas(r image.Rectangle) (img *image.RGBA, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			img = nil
			err = apperrors.NewAllocationError("raster allocation failed", fmt.Errorf("%v", rec))
		}
	}()
	return image.NewRGBA(r), nil
}
