package validation

import (
	"fmt"
	"image"

	"github.com/anime-shed/jersey-faceswap-go/internal/faceswap"
)

// InputThresholds bounds the images and detections accepted for a swap
type InputThresholds struct {
	MinWidth  int
	MinHeight int

	// MaxDimension mirrors the pipeline cap so oversize inputs are
	// rejected before detection runs
	MaxDimension int

	MinFaceSize         float64 // shorter bounding box side, in pixels
	MinInterEyeDistance float64
	MinConfidence       float64
}

// DefaultInputThresholds returns the default thresholds
func DefaultInputThresholds() InputThresholds {
	return InputThresholds{
		MinWidth:            64,
		MinHeight:           64,
		MaxDimension:        4096,
		MinFaceSize:         32,
		MinInterEyeDistance: 8,
		MinConfidence:       0.3,
	}
}

// InputIssue represents one validation finding
type InputIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// InputValidator checks swap inputs ahead of the pipeline
type InputValidator struct {
	thresholds InputThresholds
}

// NewInputValidator creates an input validator with default thresholds
func NewInputValidator() *InputValidator {
	return &InputValidator{thresholds: DefaultInputThresholds()}
}

// NewInputValidatorWithThresholds creates an input validator with custom thresholds
func NewInputValidatorWithThresholds(thresholds InputThresholds) *InputValidator {
	return &InputValidator{thresholds: thresholds}
}

// Thresholds returns the active thresholds
func (v *InputValidator) Thresholds() InputThresholds {
	return v.thresholds
}

// ValidateImage checks raster dimensions. what names the image in messages.
func (v *InputValidator) ValidateImage(what string, bounds image.Rectangle) []InputIssue {
	var issues []InputIssue
	w, h := bounds.Dx(), bounds.Dy()

	if w < v.thresholds.MinWidth || h < v.thresholds.MinHeight {
		issues = append(issues, InputIssue{
			Type:        "low_resolution",
			Message:     fmt.Sprintf("%s is too small (%dx%d).", what, w, h),
			Severity:    "error",
			ActualValue: float64(min(w, h)),
			Threshold:   float64(min(v.thresholds.MinWidth, v.thresholds.MinHeight)),
		})
	}
	if v.thresholds.MaxDimension > 0 && (w > v.thresholds.MaxDimension || h > v.thresholds.MaxDimension) {
		issues = append(issues, InputIssue{
			Type:        "too_large",
			Message:     fmt.Sprintf("%s exceeds %dx%d.", what, v.thresholds.MaxDimension, v.thresholds.MaxDimension),
			Severity:    "error",
			ActualValue: float64(max(w, h)),
			Threshold:   float64(v.thresholds.MaxDimension),
		})
	}
	return issues
}

// ValidateFace checks that a detection is large and confident enough to swap.
// Small faces still composite, so they are reported as warnings.
func (v *InputValidator) ValidateFace(face faceswap.FaceDetection) []InputIssue {
	var issues []InputIssue

	side := face.BoundingBox.Width
	if face.BoundingBox.Height < side {
		side = face.BoundingBox.Height
	}
	if side < v.thresholds.MinFaceSize {
		issues = append(issues, InputIssue{
			Type:        "small_face",
			Message:     "Face is very small; the swap may look blurry.",
			Severity:    "warning",
			ActualValue: side,
			Threshold:   v.thresholds.MinFaceSize,
		})
	}

	if o, err := faceswap.ComputeOrientation(face); err == nil && o.InterEyeDistance < v.thresholds.MinInterEyeDistance {
		issues = append(issues, InputIssue{
			Type:        "narrow_eyes",
			Message:     "Eyes are too close together to align reliably.",
			Severity:    "warning",
			ActualValue: o.InterEyeDistance,
			Threshold:   v.thresholds.MinInterEyeDistance,
		})
	}

	if face.Confidence < v.thresholds.MinConfidence {
		issues = append(issues, InputIssue{
			Type:        "low_confidence",
			Message:     "Face detection confidence is low.",
			Severity:    "warning",
			ActualValue: face.Confidence,
			Threshold:   v.thresholds.MinConfidence,
		})
	}
	return issues
}

// ConvertIssuesToMessages flattens issues to their messages
func (v *InputValidator) ConvertIssuesToMessages(issues []InputIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any error severity issues
func (v *InputValidator) HasCriticalIssues(issues []InputIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}
