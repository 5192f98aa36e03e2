package faceswap

import (
	"fmt"
	"math"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
)

// minEyeDistance is the smallest inter-eye distance treated as a real face
const minEyeDistance = 1e-6

// EyeCenter returns the arithmetic mean of an eye's landmark subset
func EyeCenter(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(points))
	return Point{X: sx / n, Y: sy / n}, true
}

// ComputeOrientation derives center, inter-eye distance and roll from a detection.
// The result is deterministic and depends only on the eye subsets.
func ComputeOrientation(face FaceDetection) (FaceOrientation, error) {
	if !face.BoundingBox.finite() {
		return FaceOrientation{}, apperrors.NewDegenerateFaceError(
			"bounding box is not finite", fmt.Errorf("box %+v", face.BoundingBox))
	}
	if face.BoundingBox.Width <= 0 || face.BoundingBox.Height <= 0 {
		return FaceOrientation{}, apperrors.NewDegenerateFaceError(
			"bounding box has zero area",
			fmt.Errorf("box %.1fx%.1f", face.BoundingBox.Width, face.BoundingBox.Height),
		)
	}

	left, ok := EyeCenter(face.Landmarks.LeftEye)
	if !ok {
		return FaceOrientation{}, apperrors.NewDegenerateFaceError("left eye landmarks missing", nil)
	}
	right, ok := EyeCenter(face.Landmarks.RightEye)
	if !ok {
		return FaceOrientation{}, apperrors.NewDegenerateFaceError("right eye landmarks missing", nil)
	}

	if !left.finite() || !right.finite() {
		return FaceOrientation{}, apperrors.NewDegenerateFaceError(
			"eye landmarks are not finite",
			fmt.Errorf("left=(%g,%g) right=(%g,%g)", left.X, left.Y, right.X, right.Y),
		)
	}

	dist := left.Dist(right)
	if dist < minEyeDistance || !isFinite(dist) {
		return FaceOrientation{}, apperrors.NewDegenerateFaceError(
			"eye landmarks coincide",
			fmt.Errorf("left=(%.2f,%.2f) right=(%.2f,%.2f)", left.X, left.Y, right.X, right.Y),
		)
	}

	return FaceOrientation{
		Center:           Point{X: (left.X + right.X) / 2, Y: (left.Y + right.Y) / 2},
		InterEyeDistance: dist,
		RotationRadians:  normalizeAngle(math.Atan2(right.Y-left.Y, right.X-left.X)),
	}, nil
}

// normalizeAngle folds an angle into (-π, π]
func normalizeAngle(a float64) float64 {
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (p Point) finite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

func (r Rect) finite() bool {
	return isFinite(r.X) && isFinite(r.Y) && isFinite(r.Width) && isFinite(r.Height)
}
