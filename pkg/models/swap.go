package models

import (
	"time"

	"github.com/anime-shed/jersey-faceswap-go/internal/faceswap"
)

// SwapRequest is one face-swap job. Exactly one of Template and TemplateRef
// must be set. Nil detections are computed by the landmark provider.
type SwapRequest struct {
	RequestID   string
	Source      []byte
	Template    []byte
	TemplateRef string
	Mode        string

	SourceFace    *faceswap.FaceDetection
	TemplateFaces []faceswap.FaceDetection
}

// SwapResponse carries the encoded result and its provenance
type SwapResponse struct {
	RequestID         string               `json:"request_id"`
	Mode              string               `json:"mode"`
	PNG               []byte               `json:"-"`
	Width             int                  `json:"width"`
	Height            int                  `json:"height"`
	SourceFaces       int                  `json:"source_faces"`
	TemplateFaces     int                  `json:"template_faces"`
	CompositedRegions []int                `json:"composited_regions"`
	Degraded          bool                 `json:"degraded"`
	DegradedReason    string               `json:"degraded_reason,omitempty"`
	Warnings          []string             `json:"warnings,omitempty"`
	Timing            faceswap.StageTiming `json:"timing"`
	ProcessingTime    time.Duration        `json:"processing_time"`
}
