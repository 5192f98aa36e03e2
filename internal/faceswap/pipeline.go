package faceswap

import (
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
	"github.com/anime-shed/jersey-faceswap-go/internal/logger"
)

// Pipeline aligns, masks, normalizes and composites a source face onto every
// face of a destination image. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	opts Options
}

// NewPipeline validates opts and returns a pipeline bound to them
func NewPipeline(opts Options) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid pipeline options", err)
	}
	return &Pipeline{opts: opts}, nil
}

// Options returns the configuration the pipeline runs with
func (p *Pipeline) Options() Options {
	return p.opts
}

type regionTimings struct {
	align, mask, normalize int64
}

func addSince(dst *int64, since time.Time) {
	atomic.AddInt64(dst, int64(time.Since(since)))
}

// AlignAndComposite returns a new raster with the source face placed over each
// destination face, processed in the order given. On error no image is returned.
func (p *Pipeline) AlignAndComposite(dst image.Image, dstFaces []FaceDetection, src image.Image, srcFace FaceDetection) (*CompositeResult, error) {
	start := time.Now()

	if dst == nil || src == nil {
		return nil, apperrors.NewValidationError("source and destination images are required", nil)
	}
	if err := checkDimensions("destination image", dst.Bounds().Dx(), dst.Bounds().Dy(), p.opts.MaxDimension); err != nil {
		return nil, err
	}
	if err := checkDimensions("source image", src.Bounds().Dx(), src.Bounds().Dy(), p.opts.MaxDimension); err != nil {
		return nil, err
	}
	if len(dstFaces) == 0 {
		return nil, apperrors.NewNoFaceDetectedError("destination image has no faces", nil)
	}

	srcOrient, err := ComputeOrientation(srcFace)
	if err != nil {
		return nil, fmt.Errorf("source face: %w", err)
	}
	dstOrients := make([]FaceOrientation, len(dstFaces))
	for i, face := range dstFaces {
		if dstOrients[i], err = ComputeOrientation(face); err != nil {
			return nil, fmt.Errorf("destination face %d: %w", i, err)
		}
	}

	srcImg, err := toNRGBA(src)
	if err != nil {
		return nil, err
	}
	dstImg, err := toNRGBA(dst)
	if err != nil {
		return nil, err
	}

	// detections are in caller coordinates; the buffers are zero-origin
	srcFace = shiftFace(srcFace, src.Bounds().Min)
	srcOrient = shiftOrientation(srcOrient, src.Bounds().Min)
	faces := make([]FaceDetection, len(dstFaces))
	for i := range dstFaces {
		faces[i] = shiftFace(dstFaces[i], dst.Bounds().Min)
		dstOrients[i] = shiftOrientation(dstOrients[i], dst.Bounds().Min)
	}

	placements := make([]Placement, len(faces))
	errs := make([]error, len(faces))
	var timings regionTimings

	workers := p.opts.MaxWorkers
	if workers <= 0 || workers > len(faces) {
		workers = len(faces)
	}
	pool := NewWorkerPool(workers)
	pool.Start()
	defer pool.Close()

	for i := range faces {
		i := i
		pool.Submit(func() {
			placements[i], errs[i] = p.processRegion(i, srcImg, srcFace, srcOrient, dstImg, faces[i], dstOrients[i], &timings)
		})
	}
	pool.Wait()

	for i, e := range errs {
		if e != nil {
			return nil, fmt.Errorf("destination face %d: %w", i, e)
		}
	}

	compositeStart := time.Now()
	compositor := NewCompositor(dstImg)
	for _, pl := range placements {
		if err := compositor.Place(pl); err != nil {
			return nil, err
		}
	}
	out, placed := compositor.Result()

	result := &CompositeResult{
		Image:             out,
		SourceFaces:       1,
		DestinationFaces:  len(faces),
		CompositedRegions: placed,
		Timing: StageTiming{
			Align:     time.Duration(atomic.LoadInt64(&timings.align)),
			Mask:      time.Duration(atomic.LoadInt64(&timings.mask)),
			Normalize: time.Duration(atomic.LoadInt64(&timings.normalize)),
			Composite: time.Since(compositeStart),
			Total:     time.Since(start),
		},
	}

	logger.WithFields(logrus.Fields{
		"destination_faces": result.DestinationFaces,
		"regions":           result.CompositedRegions,
		"align_ms":          result.Timing.Align.Milliseconds(),
		"mask_ms":           result.Timing.Mask.Milliseconds(),
		"normalize_ms":      result.Timing.Normalize.Milliseconds(),
		"total_ms":          result.Timing.Total.Milliseconds(),
	}).Debug("Composite completed")

	return result, nil
}

func (p *Pipeline) processRegion(index int, src *image.NRGBA, srcFace FaceDetection, srcOrient FaceOrientation,
	dst *image.NRGBA, dstFace FaceDetection, dstOrient FaceOrientation, timings *regionTimings) (Placement, error) {

	t := time.Now()
	aligned, err := AlignFace(src, srcFace, srcOrient, dstFace, dstOrient, p.opts)
	if err != nil {
		return Placement{}, err
	}
	addSince(&timings.align, t)

	t = time.Now()
	masked := MaskRegion(aligned.Image, p.opts)
	addSince(&timings.mask, t)

	t = time.Now()
	destStats := ComputeStatistics(dst, dstFace.BoundingBox.Bounds(), p.opts)
	normalized := Normalize(masked, destStats, p.opts)
	addSince(&timings.normalize, t)

	return Placement{Index: index, Region: dstFace.BoundingBox.Bounds(), Crop: normalized}, nil
}

func shiftFace(face FaceDetection, origin image.Point) FaceDetection {
	if origin == (image.Point{}) {
		return face
	}
	dx, dy := float64(origin.X), float64(origin.Y)
	shift := func(pts []Point) []Point {
		if pts == nil {
			return nil
		}
		out := make([]Point, len(pts))
		for i, pt := range pts {
			out[i] = Point{X: pt.X - dx, Y: pt.Y - dy}
		}
		return out
	}
	face.BoundingBox.X -= dx
	face.BoundingBox.Y -= dy
	face.Landmarks = Landmarks{
		LeftEye:   shift(face.Landmarks.LeftEye),
		RightEye:  shift(face.Landmarks.RightEye),
		Nose:      shift(face.Landmarks.Nose),
		Mouth:     shift(face.Landmarks.Mouth),
		Jaw:       shift(face.Landmarks.Jaw),
		LeftBrow:  shift(face.Landmarks.LeftBrow),
		RightBrow: shift(face.Landmarks.RightBrow),
	}
	return face
}

func shiftOrientation(o FaceOrientation, origin image.Point) FaceOrientation {
	o.Center.X -= float64(origin.X)
	o.Center.Y -= float64(origin.Y)
	return o
}
