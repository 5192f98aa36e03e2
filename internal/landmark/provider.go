package landmark

import (
	"context"
	"image"
	"sort"
	"sync"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
	"github.com/anime-shed/jersey-faceswap-go/internal/faceswap"
)

// Provider finds faces and their landmarks in an image.
// Zero detections is a valid result, not an error.
type Provider interface {
	DetectFaces(ctx context.Context, img image.Image) ([]faceswap.FaceDetection, error)
	Close() error
}

// Best returns the detection with the highest confidence
func Best(faces []faceswap.FaceDetection) (faceswap.FaceDetection, bool) {
	if len(faces) == 0 {
		return faceswap.FaceDetection{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Confidence > best.Confidence {
			best = f
		}
	}
	return best, true
}

// SortReadingOrder orders detections top-to-bottom, then left-to-right, by box center
func SortReadingOrder(faces []faceswap.FaceDetection) {
	sort.SliceStable(faces, func(i, j int) bool {
		ci, cj := faces[i].BoundingBox.Center(), faces[j].BoundingBox.Center()
		// same row when the centers are within half a box of each other
		if d := ci.Y - cj.Y; d < -faces[i].BoundingBox.Height/2 || d > faces[i].BoundingBox.Height/2 {
			return ci.Y < cj.Y
		}
		return ci.X < cj.X
	})
}

// StaticProvider returns detections computed elsewhere, e.g. by the client.
type StaticProvider struct {
	mu     sync.RWMutex
	faces  []faceswap.FaceDetection
	closed bool
}

// NewStaticProvider creates a provider that always reports faces
func NewStaticProvider(faces ...faceswap.FaceDetection) *StaticProvider {
	cp := make([]faceswap.FaceDetection, len(faces))
	copy(cp, faces)
	return &StaticProvider{faces: cp}
}

// DetectFaces ignores the image and returns a copy of the configured detections
func (s *StaticProvider) DetectFaces(ctx context.Context, img image.Image) ([]faceswap.FaceDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("face detection cancelled", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, apperrors.NewInternalError("landmark provider is closed", nil)
	}

	out := make([]faceswap.FaceDetection, len(s.faces))
	copy(out, s.faces)
	return out, nil
}

// Close marks the provider as released
func (s *StaticProvider) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
