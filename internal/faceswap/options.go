package faceswap

import "fmt"

// Options parameterises every stage of the pipeline. The historical
// variants of the pipeline differ only in these values.
type Options struct {
	// Resource bounds
	MaxDimension int

	// Geometric alignment
	CanvasPadding float64 // output canvas = destination box * CanvasPadding
	CropPadding   float64 // source crop padding per side, as a fraction of the box

	// Region masking
	EdgeSamples           int // samples per border edge
	StrongThreshold       float64
	WeakThreshold         float64
	FalloffStart          float64
	FalloffWidth          float64
	SkipBackgroundRemoval bool

	// Photometric normalization
	SampleStride      int
	AlphaCutoff       uint8
	BrightnessDamping float64
	MinContrastRatio  float64
	MaxContrastRatio  float64
	LocalMeanSigma    float64 // blur radius for the local average contrast pivot; 0 pivots on the region mean
	SkinPreservation  float64
	SkipNormalization bool

	// Performance options
	MaxWorkers int
}

// DefaultOptions returns the canonical pipeline configuration
func DefaultOptions() Options {
	return Options{
		MaxDimension:          4096,
		CanvasPadding:         1.5,
		CropPadding:           0.2,
		EdgeSamples:           24,
		StrongThreshold:       80,
		WeakThreshold:         160,
		FalloffStart:          0.8,
		FalloffWidth:          0.2,
		SkipBackgroundRemoval: false,
		SampleStride:          4,
		AlphaCutoff:           128,
		BrightnessDamping:     0.3,
		MinContrastRatio:      0.5,
		MaxContrastRatio:      2.0,
		LocalMeanSigma:        4,
		SkinPreservation:      0.7,
		SkipNormalization:     false,
		MaxWorkers:            0, // Use default CPU count
	}
}

// AggressiveMaskOptions removes more background and feathers earlier
func AggressiveMaskOptions() Options {
	opts := DefaultOptions()
	opts.StrongThreshold = 110
	opts.WeakThreshold = 200
	opts.FalloffStart = 0.7
	opts.FalloffWidth = 0.3
	return opts
}

// GentleMaskOptions trusts the crop and only feathers the rim
func GentleMaskOptions() Options {
	opts := DefaultOptions()
	opts.StrongThreshold = 40
	opts.WeakThreshold = 90
	opts.FalloffStart = 0.85
	opts.FalloffWidth = 0.15
	return opts
}

// FullCorrectionOptions applies the undamped brightness correction
func FullCorrectionOptions() Options {
	opts := DefaultOptions()
	opts.BrightnessDamping = 1.0
	return opts
}

// WithMaskThresholds overrides the background removal thresholds
func (opts Options) WithMaskThresholds(strong, weak float64) Options {
	opts.StrongThreshold = strong
	opts.WeakThreshold = weak
	return opts
}

// WithFalloff overrides the radial falloff start and width
func (opts Options) WithFalloff(start, width float64) Options {
	opts.FalloffStart = start
	opts.FalloffWidth = width
	return opts
}

// WithPadding overrides canvas and crop padding
func (opts Options) WithPadding(canvas, crop float64) Options {
	opts.CanvasPadding = canvas
	opts.CropPadding = crop
	return opts
}

// WithMaxDimension overrides the raster size cap
func (opts Options) WithMaxDimension(limit int) Options {
	opts.MaxDimension = limit
	return opts
}

// WithoutNormalization disables the photometric stage
func (opts Options) WithoutNormalization() Options {
	opts.SkipNormalization = true
	return opts
}

// WithoutBackgroundRemoval keeps only the radial falloff in the masker
func (opts Options) WithoutBackgroundRemoval() Options {
	opts.SkipBackgroundRemoval = true
	return opts
}

// Validate rejects configurations the stages cannot honour
func (opts Options) Validate() error {
	switch {
	case opts.MaxDimension <= 0:
		return fmt.Errorf("max dimension must be > 0 (got %d)", opts.MaxDimension)
	case opts.CanvasPadding < 1:
		return fmt.Errorf("canvas padding must be >= 1 (got %g)", opts.CanvasPadding)
	case opts.CropPadding < 0:
		return fmt.Errorf("crop padding must be >= 0 (got %g)", opts.CropPadding)
	case opts.EdgeSamples <= 0:
		return fmt.Errorf("edge samples must be > 0 (got %d)", opts.EdgeSamples)
	case opts.StrongThreshold < 0 || opts.WeakThreshold <= opts.StrongThreshold:
		return fmt.Errorf("mask thresholds must satisfy 0 <= strong < weak (got %g, %g)", opts.StrongThreshold, opts.WeakThreshold)
	case opts.FalloffStart <= 0 || opts.FalloffWidth <= 0:
		return fmt.Errorf("falloff start and width must be > 0 (got %g, %g)", opts.FalloffStart, opts.FalloffWidth)
	case opts.SampleStride <= 0:
		return fmt.Errorf("sample stride must be > 0 (got %d)", opts.SampleStride)
	case opts.BrightnessDamping < 0 || opts.BrightnessDamping > 1:
		return fmt.Errorf("brightness damping must be in [0,1] (got %g)", opts.BrightnessDamping)
	case opts.MinContrastRatio <= 0 || opts.MaxContrastRatio < opts.MinContrastRatio:
		return fmt.Errorf("contrast ratio range invalid (got %g..%g)", opts.MinContrastRatio, opts.MaxContrastRatio)
	case opts.LocalMeanSigma < 0:
		return fmt.Errorf("local mean sigma must be >= 0 (got %g)", opts.LocalMeanSigma)
	case opts.SkinPreservation < 0 || opts.SkinPreservation > 1:
		return fmt.Errorf("skin preservation must be in [0,1] (got %g)", opts.SkinPreservation)
	}
	return nil
}
