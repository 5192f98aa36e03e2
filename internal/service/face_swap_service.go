package service

import (
	"bytes"
	"context"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
	"github.com/anime-shed/jersey-faceswap-go/internal/faceswap"
	"github.com/anime-shed/jersey-faceswap-go/internal/landmark"
	"github.com/anime-shed/jersey-faceswap-go/internal/logger"
	"github.com/anime-shed/jersey-faceswap-go/internal/observer"
	"github.com/anime-shed/jersey-faceswap-go/internal/repository"
	"github.com/anime-shed/jersey-faceswap-go/internal/storage"
	"github.com/anime-shed/jersey-faceswap-go/internal/strategy"
	"github.com/anime-shed/jersey-faceswap-go/pkg/models"
	"github.com/anime-shed/jersey-faceswap-go/pkg/validation"
)

// FaceSwapService composites a user's face onto jersey templates
type FaceSwapService interface {
	Swap(ctx context.Context, req models.SwapRequest) (*models.SwapResponse, error)
	ValidateTemplateRef(ref string) error
}

// Config holds the service-level knobs
type Config struct {
	DefaultMode        string
	MaxDimension       int
	MaxImageBytes      int64
	MaxWorkers         int
	FallbackToTemplate bool
}

type faceSwapService struct {
	templates repository.TemplateRepository
	provider  landmark.Provider
	events    observer.Subject
	validator *validation.InputValidator
	cfg       Config
}

// NewFaceSwapService creates a new face swap service
func NewFaceSwapService(
	templates repository.TemplateRepository,
	provider landmark.Provider,
	events observer.Subject,
	validator *validation.InputValidator,
	cfg Config,
) FaceSwapService {
	if validator == nil {
		validator = validation.NewInputValidator()
	}
	return &faceSwapService{
		templates: templates,
		provider:  provider,
		events:    events,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *faceSwapService) ValidateTemplateRef(ref string) error {
	return s.templates.ValidateTemplateRef(ref)
}

// input is one decoded image and the faces found in it
type input struct {
	img   image.Image
	faces []faceswap.FaceDetection
}

// Swap decodes both images, detects faces in parallel and runs the pipeline.
// With FallbackToTemplate set, pipeline failures return the template unchanged.
func (s *faceSwapService) Swap(ctx context.Context, req models.SwapRequest) (*models.SwapResponse, error) {
	start := time.Now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	log := logger.ForRequest(req.RequestID)

	mode := req.Mode
	if strings.TrimSpace(mode) == "" {
		mode = s.cfg.DefaultMode
	}
	strat, err := strategy.Lookup(mode)
	if err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	event := observer.SwapEvent{
		RequestID:   req.RequestID,
		TemplateRef: req.TemplateRef,
		Mode:        strat.GetStrategyName(),
	}
	s.publish(ctx, event, observer.SwapStarted)

	src, tmpl, err := s.loadInputs(ctx, req)
	if err != nil {
		s.fail(ctx, event, start, err)
		return nil, err
	}

	srcFace, ok := pickSourceFace(req, src.faces)
	if !ok {
		err := apperrors.NewNoFaceDetectedError("source image has no faces", nil)
		s.fail(ctx, event, start, err)
		return nil, err
	}

	var warnings []string
	warnings = append(warnings, s.validator.ConvertIssuesToMessages(s.validator.ValidateFace(srcFace))...)
	for _, f := range tmpl.faces {
		warnings = append(warnings, s.validator.ConvertIssuesToMessages(s.validator.ValidateFace(f))...)
	}

	s.publishWith(ctx, event, observer.FacesDetected, map[string]interface{}{
		"source_faces":   len(src.faces),
		"template_faces": len(tmpl.faces),
	})

	if err := ctx.Err(); err != nil {
		err = apperrors.NewTimeoutError("request cancelled before compositing", err)
		s.fail(ctx, event, start, err)
		return nil, err
	}

	resp := &models.SwapResponse{
		RequestID:     req.RequestID,
		Mode:          strat.GetStrategyName(),
		SourceFaces:   len(src.faces),
		TemplateFaces: len(tmpl.faces),
		Warnings:      warnings,
	}

	swapCtx := strategy.NewSwapContext(strat, s.cfg.MaxDimension, s.cfg.MaxWorkers)
	result, err := swapCtx.ExecuteSwap(tmpl.img, tmpl.faces, src.img, srcFace)

	var out image.Image
	switch {
	case err == nil:
		out = result.Image
		resp.CompositedRegions = result.CompositedRegions
		resp.Timing = result.Timing
	case s.cfg.FallbackToTemplate && apperrors.IsPipelineError(err):
		log.WithError(err).Warn("Pipeline failed, returning template unchanged")
		out = tmpl.img
		resp.Degraded = true
		resp.DegradedReason = err.Error()
		resp.CompositedRegions = []int{}
	default:
		s.fail(ctx, event, start, err)
		return nil, err
	}

	var buf bytes.Buffer
	if err := storage.EncodePNG(&buf, out); err != nil {
		s.fail(ctx, event, start, err)
		return nil, err
	}
	resp.PNG = buf.Bytes()
	resp.Width = out.Bounds().Dx()
	resp.Height = out.Bounds().Dy()
	resp.ProcessingTime = time.Since(start)

	event.ProcessingTime = resp.ProcessingTime
	event.Success = true
	if resp.Degraded {
		event.ErrorMessage = resp.DegradedReason
		s.publish(ctx, event, observer.SwapDegraded)
	} else {
		s.publishWith(ctx, event, observer.SwapCompleted, map[string]interface{}{
			"regions": len(resp.CompositedRegions),
		})
	}

	log.WithFields(logrus.Fields{
		"mode":               resp.Mode,
		"source_faces":       resp.SourceFaces,
		"template_faces":     resp.TemplateFaces,
		"degraded":           resp.Degraded,
		"processing_time_ms": resp.ProcessingTime.Milliseconds(),
	}).Debug("Swap finished")

	return resp, nil
}

func (s *faceSwapService) validateRequest(req models.SwapRequest) error {
	if len(req.Source) == 0 {
		return apperrors.NewValidationError("source image is required", nil)
	}
	hasTemplate := len(req.Template) > 0
	hasRef := strings.TrimSpace(req.TemplateRef) != ""
	if hasTemplate == hasRef {
		return apperrors.NewValidationError("exactly one of template or template_ref is required", nil)
	}
	if hasRef {
		return s.templates.ValidateTemplateRef(req.TemplateRef)
	}
	return nil
}

// loadInputs decodes and detects the source and template concurrently
func (s *faceSwapService) loadInputs(ctx context.Context, req models.SwapRequest) (input, input, error) {
	var src, tmpl input
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		img, err := s.decode("source image", req.Source)
		if err != nil {
			return err
		}
		src.img = img
		if req.SourceFace != nil {
			src.faces = []faceswap.FaceDetection{*req.SourceFace}
			return nil
		}
		src.faces, err = s.provider.DetectFaces(gctx, img)
		return err
	})

	g.Go(func() error {
		var (
			img image.Image
			err error
		)
		if len(req.Template) > 0 {
			img, err = s.decode("template image", req.Template)
		} else {
			img, err = s.fetchTemplate(gctx, req)
		}
		if err != nil {
			return err
		}
		tmpl.img = img
		if req.TemplateFaces != nil {
			tmpl.faces = req.TemplateFaces
			return nil
		}
		tmpl.faces, err = s.provider.DetectFaces(gctx, img)
		return err
	})

	if err := g.Wait(); err != nil {
		return input{}, input{}, err
	}
	return src, tmpl, nil
}

func (s *faceSwapService) decode(what string, data []byte) (image.Image, error) {
	if s.cfg.MaxImageBytes > 0 && int64(len(data)) > s.cfg.MaxImageBytes {
		return nil, apperrors.NewImageTooLargeError(what+" payload is too large", nil)
	}
	img, _, err := storage.DecodeBytes(data, s.cfg.MaxDimension)
	if err != nil {
		return nil, err
	}

	issues := s.validator.ValidateImage(what, img.Bounds())
	if s.validator.HasCriticalIssues(issues) {
		msg := strings.Join(s.validator.ConvertIssuesToMessages(issues), " ")
		if issues[0].Type == "too_large" {
			return nil, apperrors.NewImageTooLargeError(msg, nil)
		}
		return nil, apperrors.NewValidationError(msg, nil)
	}
	return img, nil
}

func (s *faceSwapService) fetchTemplate(ctx context.Context, req models.SwapRequest) (image.Image, error) {
	start := time.Now()
	img, err := s.templates.FetchTemplate(ctx, req.TemplateRef)
	event := observer.SwapEvent{
		RequestID:      req.RequestID,
		TemplateRef:    req.TemplateRef,
		ProcessingTime: time.Since(start),
		Success:        err == nil,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
		s.publish(ctx, event, observer.TemplateFetchFailed)
		return nil, err
	}
	s.publish(ctx, event, observer.TemplateFetched)
	return img, nil
}

// pickSourceFace prefers caller-supplied landmarks, then the most confident detection
func pickSourceFace(req models.SwapRequest, faces []faceswap.FaceDetection) (faceswap.FaceDetection, bool) {
	if req.SourceFace != nil {
		return *req.SourceFace, true
	}
	return landmark.Best(faces)
}

func (s *faceSwapService) fail(ctx context.Context, event observer.SwapEvent, start time.Time, err error) {
	event.ProcessingTime = time.Since(start)
	event.ErrorMessage = err.Error()
	s.publish(ctx, event, observer.SwapFailed)
}

func (s *faceSwapService) publish(ctx context.Context, event observer.SwapEvent, t observer.EventType) {
	s.publishWith(ctx, event, t, nil)
}

func (s *faceSwapService) publishWith(ctx context.Context, event observer.SwapEvent, t observer.EventType, metadata map[string]interface{}) {
	if s.events == nil {
		return
	}
	event.EventType = t
	event.Timestamp = time.Now()
	event.Metadata = metadata
	s.events.NotifyObservers(context.WithoutCancel(ctx), event)
}
