package landmark

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	pigo "github.com/esimov/pigo/core"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
	"github.com/anime-shed/jersey-faceswap-go/internal/faceswap"
	"github.com/anime-shed/jersey-faceswap-go/internal/logger"
)

const (
	faceFinderFile = "facefinder"
	puplocFile     = "puploc"
	landmarkDir    = "lps"
)

// mouthCascades are the facial landmark point cascades around the mouth
var mouthCascades = []string{"lp93", "lp84", "lp82", "lp81"}

// PigoConfig controls cascade location and detection sensitivity
type PigoConfig struct {
	CascadeDir   string
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
	Perturbs     int
}

// DefaultPigoConfig returns detection parameters suited to portrait photos
func DefaultPigoConfig(cascadeDir string) PigoConfig {
	return PigoConfig{
		CascadeDir:   cascadeDir,
		MinSize:      40,
		MaxSize:      2000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
		Perturbs:     50,
	}
}

// PigoProvider detects faces, pupils and mouth points with the pigo cascades.
// Cascades are loaded once; the provider is safe for concurrent use until Close.
type PigoProvider struct {
	mu        sync.RWMutex
	cfg       PigoConfig
	faces     *pigo.Pigo
	pupils    *pigo.PuplocCascade
	landmarks map[string][]*pigo.FlpCascade
	closed    bool
}

// NewPigoProvider unpacks the face and pupil cascades from cfg.CascadeDir.
// Landmark point cascades under lps/ are optional.
func NewPigoProvider(cfg PigoConfig) (*PigoProvider, error) {
	faceData, err := os.ReadFile(filepath.Join(cfg.CascadeDir, faceFinderFile))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read face cascade", err)
	}
	faces, err := pigo.NewPigo().Unpack(faceData)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to unpack face cascade", err)
	}

	pupilData, err := os.ReadFile(filepath.Join(cfg.CascadeDir, puplocFile))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read pupil cascade", err)
	}
	pl := pigo.NewPuplocCascade()
	pupils, err := pl.UnpackCascade(pupilData)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to unpack pupil cascade", err)
	}

	var landmarks map[string][]*pigo.FlpCascade
	lpsDir := filepath.Join(cfg.CascadeDir, landmarkDir)
	if info, statErr := os.Stat(lpsDir); statErr == nil && info.IsDir() {
		if landmarks, err = pupils.ReadCascadeDir(lpsDir); err != nil {
			return nil, apperrors.NewInternalError("failed to read landmark cascades", err)
		}
	} else {
		logger.WithField("dir", lpsDir).Warn("Landmark point cascades not found, mouth points disabled")
	}

	logger.WithFields(logrus.Fields{
		"cascade_dir":       cfg.CascadeDir,
		"landmark_cascades": len(landmarks),
		"min_face_size":     cfg.MinSize,
		"min_quality":       cfg.MinQuality,
	}).Info("Pigo landmark provider loaded")

	return &PigoProvider{
		cfg:       cfg,
		faces:     faces,
		pupils:    pupils,
		landmarks: landmarks,
	}, nil
}

// DetectFaces returns one detection per face whose pupils were both located
func (p *PigoProvider) DetectFaces(ctx context.Context, img image.Image) ([]faceswap.FaceDetection, error) {
	if img == nil {
		return nil, apperrors.NewValidationError("image is required for face detection", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("face detection cancelled", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, apperrors.NewInternalError("landmark provider is closed", nil)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, apperrors.NewValidationError("image has no pixels", fmt.Errorf("bounds %v", b))
	}
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	cols, rows := b.Dx(), b.Dy()
	maxSize := p.cfg.MaxSize
	if m := min(cols, rows); maxSize <= 0 || maxSize > m {
		maxSize = m
	}
	params := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(nrgba),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}

	dets := p.faces.RunCascade(pigo.CascadeParams{
		MinSize:     p.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: p.cfg.ShiftFactor,
		ScaleFactor: p.cfg.ScaleFactor,
		ImageParams: params,
	}, 0.0)
	dets = p.faces.ClusterDetections(dets, p.cfg.IoUThreshold)

	var faces []faceswap.FaceDetection
	for _, det := range dets {
		if det.Q < p.cfg.MinQuality {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewTimeoutError("face detection cancelled", err)
		}
		face, ok := p.locate(det, params)
		if !ok {
			logger.WithFields(logrus.Fields{
				"row":   det.Row,
				"col":   det.Col,
				"scale": det.Scale,
			}).Debug("Dropping face without both pupils")
			continue
		}
		// back to caller coordinates
		faces = append(faces, offsetFace(face, b.Min))
	}

	SortReadingOrder(faces)
	return faces, nil
}

// locate runs pupil localisation and the mouth point cascades for one detection
func (p *PigoProvider) locate(det pigo.Detection, params pigo.ImageParams) (faceswap.FaceDetection, bool) {
	scale := float32(det.Scale)

	left := p.pupils.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: p.cfg.Perturbs,
	}, params, 0.0, false)
	right := p.pupils.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: p.cfg.Perturbs,
	}, params, 0.0, false)

	if left == nil || right == nil || left.Row <= 0 || left.Col <= 0 || right.Row <= 0 || right.Col <= 0 {
		return faceswap.FaceDetection{}, false
	}

	half := float64(det.Scale) / 2
	face := faceswap.FaceDetection{
		BoundingBox: faceswap.Rect{
			X:      float64(det.Col) - half,
			Y:      float64(det.Row) - half,
			Width:  float64(det.Scale),
			Height: float64(det.Scale),
		},
		Landmarks: faceswap.Landmarks{
			LeftEye:  []faceswap.Point{{X: float64(left.Col), Y: float64(left.Row)}},
			RightEye: []faceswap.Point{{X: float64(right.Col), Y: float64(right.Row)}},
		},
		Confidence: confidence(det.Q),
	}

	for _, name := range mouthCascades {
		for _, flpc := range p.landmarks[name] {
			for _, flipV := range []bool{false, true} {
				pt := flpc.GetLandmarkPoint(left, right, params, p.cfg.Perturbs, flipV)
				if pt != nil && pt.Row > 0 && pt.Col > 0 {
					face.Landmarks.Mouth = append(face.Landmarks.Mouth, faceswap.Point{X: float64(pt.Col), Y: float64(pt.Row)})
				}
			}
		}
	}
	return face, true
}

// Close releases the cascades. Subsequent detections fail.
func (p *PigoProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.faces = nil
	p.pupils = nil
	p.landmarks = nil
	return nil
}

// confidence squashes pigo's unbounded detection score into [0,1)
func confidence(q float32) float64 {
	if q <= 0 {
		return 0
	}
	return float64(q) / (float64(q) + 10)
}

// offsetFace shifts landmark slices in place
func offsetFace(face faceswap.FaceDetection, origin image.Point) faceswap.FaceDetection {
	if origin == (image.Point{}) {
		return face
	}
	dx, dy := float64(origin.X), float64(origin.Y)
	face.BoundingBox.X += dx
	face.BoundingBox.Y += dy
	for _, set := range [][]faceswap.Point{face.Landmarks.LeftEye, face.Landmarks.RightEye, face.Landmarks.Mouth} {
		for i := range set {
			set[i].X += dx
			set[i].Y += dy
		}
	}
	return face
}
