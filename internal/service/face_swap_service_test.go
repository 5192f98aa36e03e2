package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
	"github.com/anime-shed/jersey-faceswap-go/internal/faceswap"
	"github.com/anime-shed/jersey-faceswap-go/internal/landmark"
	"github.com/anime-shed/jersey-faceswap-go/internal/observer"
	"github.com/anime-shed/jersey-faceswap-go/pkg/models"
)

var testFace = faceswap.FaceDetection{
	BoundingBox: faceswap.Rect{X: 60, Y: 60, Width: 80, Height: 80},
	Landmarks: faceswap.Landmarks{
		LeftEye:  []faceswap.Point{{X: 85, Y: 90}},
		RightEye: []faceswap.Point{{X: 115, Y: 90}},
	},
	Confidence: 0.9,
}

// portrait paints an ellipse of skin over a flat background
func portrait(bg, skin color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			dx, dy := (float64(x)-100)/35, (float64(y)-100)/40
			if dx*dx+dy*dy <= 1 {
				img.SetNRGBA(x, y, skin)
			} else {
				img.SetNRGBA(x, y, bg)
			}
		}
	}
	return img
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeTemplates struct {
	img image.Image
	err error
}

func (f *fakeTemplates) FetchTemplate(ctx context.Context, ref string) (image.Image, error) {
	return f.img, f.err
}

func (f *fakeTemplates) ValidateTemplateRef(ref string) error {
	if ref == "bad" {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}
	return nil
}

type fixture struct {
	svc     FaceSwapService
	metrics *observer.MetricsObserver
	events  *observer.EventPublisher
}

func newFixture(templates *fakeTemplates, provider landmark.Provider, cfg Config) fixture {
	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(metrics)
	if templates == nil {
		templates = &fakeTemplates{}
	}
	return fixture{
		svc:     NewFaceSwapService(templates, provider, events, nil, cfg),
		metrics: metrics,
		events:  events,
	}
}

func defaultConfig() Config {
	return Config{DefaultMode: "standard", MaxDimension: 4096, MaxImageBytes: 20 << 20}
}

var (
	sourceColors   = [2]color.NRGBA{{R: 30, G: 160, B: 60, A: 255}, {R: 210, G: 160, B: 130, A: 255}}
	templateColors = [2]color.NRGBA{{R: 20, G: 40, B: 150, A: 255}, {R: 150, G: 100, B: 80, A: 255}}
)

func TestSwap_Success(t *testing.T) {
	f := newFixture(nil, landmark.NewStaticProvider(testFace), defaultConfig())

	resp, err := f.svc.Swap(context.Background(), models.SwapRequest{
		Source:   encode(t, portrait(sourceColors[0], sourceColors[1])),
		Template: encode(t, portrait(templateColors[0], templateColors[1])),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "standard", resp.Mode)
	assert.Equal(t, 1, resp.SourceFaces)
	assert.Equal(t, 1, resp.TemplateFaces)
	assert.Equal(t, []int{0}, resp.CompositedRegions)
	assert.False(t, resp.Degraded)

	out, err := png.Decode(bytes.NewReader(resp.PNG))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 200), out.Bounds())
	assert.Equal(t, 200, resp.Width)

	// corners lie outside the canvas and keep the template background
	r, g, b, a := out.At(2, 2).RGBA()
	assert.Equal(t, [4]uint32{20, 40, 150, 255}, [4]uint32{r >> 8, g >> 8, b >> 8, a >> 8})

	f.events.Wait()
	m := f.metrics.GetMetrics()
	assert.Equal(t, int64(1), m.TotalSwaps)
	assert.Equal(t, int64(1), m.SuccessfulSwaps)
}

func TestSwap_TemplateRef(t *testing.T) {
	templates := &fakeTemplates{img: portrait(templateColors[0], templateColors[1])}
	f := newFixture(templates, landmark.NewStaticProvider(testFace), defaultConfig())

	resp, err := f.svc.Swap(context.Background(), models.SwapRequest{
		RequestID:   "req-42",
		Source:      encode(t, portrait(sourceColors[0], sourceColors[1])),
		TemplateRef: "https://cdn.example.com/kits/home.png",
		Mode:        "gentle",
	})
	require.NoError(t, err)
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, "gentle", resp.Mode)
}

func TestSwap_TemplateFetchFailure(t *testing.T) {
	templates := &fakeTemplates{err: apperrors.NewNotFoundError("template not found", nil)}
	f := newFixture(templates, landmark.NewStaticProvider(testFace), defaultConfig())

	_, err := f.svc.Swap(context.Background(), models.SwapRequest{
		Source:      encode(t, portrait(sourceColors[0], sourceColors[1])),
		TemplateRef: "kits/missing.png",
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound), "got %v", err)

	f.events.Wait()
	m := f.metrics.GetMetrics()
	assert.Equal(t, int64(1), m.TemplateFetchFailure)
	assert.Equal(t, int64(1), m.FailedSwaps)
}

func TestSwap_NoSourceFace(t *testing.T) {
	f := newFixture(nil, landmark.NewStaticProvider(), defaultConfig())

	_, err := f.svc.Swap(context.Background(), models.SwapRequest{
		Source:        encode(t, portrait(sourceColors[0], sourceColors[1])),
		Template:      encode(t, portrait(templateColors[0], templateColors[1])),
		TemplateFaces: []faceswap.FaceDetection{testFace},
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNoFace), "got %v", err)
}

func TestSwap_NoTemplateFaceIsNotDegraded(t *testing.T) {
	cfg := defaultConfig()
	cfg.FallbackToTemplate = true
	f := newFixture(nil, landmark.NewStaticProvider(), cfg)

	src := testFace
	_, err := f.svc.Swap(context.Background(), models.SwapRequest{
		Source:     encode(t, portrait(sourceColors[0], sourceColors[1])),
		Template:   encode(t, portrait(templateColors[0], templateColors[1])),
		SourceFace: &src,
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNoFace), "got %v", err)
}

func TestSwap_DegenerateFace(t *testing.T) {
	degenerate := testFace
	degenerate.Landmarks = faceswap.Landmarks{
		LeftEye:  []faceswap.Point{{X: 100, Y: 90}},
		RightEye: []faceswap.Point{{X: 100, Y: 90}},
	}
	req := func() models.SwapRequest {
		return models.SwapRequest{
			Source:     encode(t, portrait(sourceColors[0], sourceColors[1])),
			Template:   encode(t, portrait(templateColors[0], templateColors[1])),
			SourceFace: &degenerate,
		}
	}

	t.Run("without fallback", func(t *testing.T) {
		f := newFixture(nil, landmark.NewStaticProvider(testFace), defaultConfig())
		_, err := f.svc.Swap(context.Background(), req())
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDegenerate), "got %v", err)
	})

	t.Run("with fallback", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.FallbackToTemplate = true
		f := newFixture(nil, landmark.NewStaticProvider(testFace), cfg)

		resp, err := f.svc.Swap(context.Background(), req())
		require.NoError(t, err)
		assert.True(t, resp.Degraded)
		assert.Contains(t, resp.DegradedReason, "degenerate_face")
		assert.Empty(t, resp.CompositedRegions)

		out, err := png.Decode(bytes.NewReader(resp.PNG))
		require.NoError(t, err)
		r, g, b, _ := out.At(100, 100).RGBA()
		assert.Equal(t, [3]uint32{150, 100, 80}, [3]uint32{r >> 8, g >> 8, b >> 8}, "template face must be untouched")

		f.events.Wait()
		assert.Equal(t, int64(1), f.metrics.GetMetrics().DegradedSwaps)
	})
}

func TestSwap_Validation(t *testing.T) {
	src := encode(t, portrait(sourceColors[0], sourceColors[1]))
	tmpl := encode(t, portrait(templateColors[0], templateColors[1]))
	tiny := encode(t, image.NewNRGBA(image.Rect(0, 0, 16, 16)))

	tests := []struct {
		name string
		req  models.SwapRequest
		want apperrors.ErrorType
	}{
		{"missing source", models.SwapRequest{Template: tmpl}, apperrors.ErrorTypeValidation},
		{"missing template", models.SwapRequest{Source: src}, apperrors.ErrorTypeValidation},
		{"both templates", models.SwapRequest{Source: src, Template: tmpl, TemplateRef: "x.png"}, apperrors.ErrorTypeValidation},
		{"rejected ref", models.SwapRequest{Source: src, TemplateRef: "bad"}, apperrors.ErrorTypeValidation},
		{"unknown mode", models.SwapRequest{Source: src, Template: tmpl, Mode: "cartoon"}, apperrors.ErrorTypeValidation},
		{"garbage source", models.SwapRequest{Source: []byte("nope"), Template: tmpl}, apperrors.ErrorTypeValidation},
		{"tiny source", models.SwapRequest{Source: tiny, Template: tmpl}, apperrors.ErrorTypeValidation},
	}

	f := newFixture(nil, landmark.NewStaticProvider(testFace), defaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Swap(context.Background(), tt.req)
			assert.True(t, apperrors.IsType(err, tt.want), "got %v", err)
		})
	}
}

func TestSwap_TooLarge(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxDimension = 100
	f := newFixture(nil, landmark.NewStaticProvider(testFace), cfg)

	_, err := f.svc.Swap(context.Background(), models.SwapRequest{
		Source:   encode(t, portrait(sourceColors[0], sourceColors[1])),
		Template: encode(t, portrait(templateColors[0], templateColors[1])),
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTooLarge), "got %v", err)

	cfg = defaultConfig()
	cfg.MaxImageBytes = 10
	f = newFixture(nil, landmark.NewStaticProvider(testFace), cfg)
	_, err = f.svc.Swap(context.Background(), models.SwapRequest{
		Source:   encode(t, portrait(sourceColors[0], sourceColors[1])),
		Template: encode(t, portrait(templateColors[0], templateColors[1])),
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTooLarge), "got %v", err)
}

func TestSwap_Cancelled(t *testing.T) {
	f := newFixture(nil, landmark.NewStaticProvider(testFace), defaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Swap(ctx, models.SwapRequest{
		Source:   encode(t, portrait(sourceColors[0], sourceColors[1])),
		Template: encode(t, portrait(templateColors[0], templateColors[1])),
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTimeout), "got %v", err)
}
