package strategy

import (
	"fmt"
	"image"
	"sort"
	"strings"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
	"github.com/anime-shed/jersey-faceswap-go/internal/faceswap"
)

// Preset names accepted by Lookup
const (
	Standard       = "standard"
	Aggressive     = "aggressive"
	Gentle         = "gentle"
	FullCorrection = "full-correction"
)

// SwapStrategy supplies the pipeline parameters for one named preset
type SwapStrategy interface {
	Options() faceswap.Options
	GetStrategyName() string
}

type presetStrategy struct {
	name  string
	build func() faceswap.Options
}

func (s *presetStrategy) Options() faceswap.Options {
	return s.build()
}

func (s *presetStrategy) GetStrategyName() string {
	return s.name
}

// NewStandardStrategy uses the canonical thresholds and 0.3 brightness damping
func NewStandardStrategy() SwapStrategy {
	return &presetStrategy{name: Standard, build: faceswap.DefaultOptions}
}

// NewAggressiveStrategy removes more of the source background
func NewAggressiveStrategy() SwapStrategy {
	return &presetStrategy{name: Aggressive, build: faceswap.AggressiveMaskOptions}
}

// NewGentleStrategy keeps more of the source crop and feathers less
func NewGentleStrategy() SwapStrategy {
	return &presetStrategy{name: Gentle, build: faceswap.GentleMaskOptions}
}

// NewFullCorrectionStrategy applies the full luminance shift
func NewFullCorrectionStrategy() SwapStrategy {
	return &presetStrategy{name: FullCorrection, build: faceswap.FullCorrectionOptions}
}

var registry = map[string]func() SwapStrategy{
	Standard:       NewStandardStrategy,
	Aggressive:     NewAggressiveStrategy,
	Gentle:         NewGentleStrategy,
	FullCorrection: NewFullCorrectionStrategy,
}

// Lookup resolves a preset name. The empty name selects Standard.
func Lookup(name string) (SwapStrategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = Standard
	}
	ctor, ok := registry[key]
	if !ok {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("unknown mode %q", name),
			fmt.Errorf("supported modes: %s", strings.Join(Names(), ", ")))
	}
	return ctor(), nil
}

// Names lists the registered presets in sorted order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SwapContext runs the pipeline with the current strategy and
// deployment-wide resource limits
type SwapContext struct {
	strategy     SwapStrategy
	maxDimension int
	maxWorkers   int
}

// NewSwapContext creates a context; zero limits keep the preset's values
func NewSwapContext(strategy SwapStrategy, maxDimension, maxWorkers int) *SwapContext {
	return &SwapContext{
		strategy:     strategy,
		maxDimension: maxDimension,
		maxWorkers:   maxWorkers,
	}
}

// SetStrategy changes the preset
func (c *SwapContext) SetStrategy(strategy SwapStrategy) {
	c.strategy = strategy
}

// GetCurrentStrategy returns the preset name
func (c *SwapContext) GetCurrentStrategy() string {
	return c.strategy.GetStrategyName()
}

// Options returns the preset options with the context limits applied
func (c *SwapContext) Options() faceswap.Options {
	opts := c.strategy.Options()
	if c.maxDimension > 0 {
		opts = opts.WithMaxDimension(c.maxDimension)
	}
	if c.maxWorkers > 0 {
		opts.MaxWorkers = c.maxWorkers
	}
	return opts
}

// ExecuteSwap composites srcFace from src onto every face in dst
func (c *SwapContext) ExecuteSwap(dst image.Image, dstFaces []faceswap.FaceDetection, src image.Image, srcFace faceswap.FaceDetection) (*faceswap.CompositeResult, error) {
	pipeline, err := faceswap.NewPipeline(c.Options())
	if err != nil {
		return nil, err
	}
	return pipeline.AlignAndComposite(dst, dstFaces, src, srcFace)
}
