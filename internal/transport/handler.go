package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/jersey-faceswap-go/internal/config"
	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
	"github.com/anime-shed/jersey-faceswap-go/internal/faceswap"
	"github.com/anime-shed/jersey-faceswap-go/internal/logger"
	"github.com/anime-shed/jersey-faceswap-go/internal/observer"
	"github.com/anime-shed/jersey-faceswap-go/internal/service"
	"github.com/anime-shed/jersey-faceswap-go/internal/strategy"
	"github.com/anime-shed/jersey-faceswap-go/pkg/models"
)

const requestIDHeader = "X-Request-ID"

func NewHandler(svc service.FaceSwapService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestID(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck(cfg))
	r.GET("/stats", stats(metrics))
	r.POST("/swap", swapFaces(svc, cfg))

	return r
}

func swapFaces(svc service.FaceSwapService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.ForRequest(c.GetString("request_id")).WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing face swap request")

		req, err := bindSwapRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}
		req.RequestID = c.GetString("request_id")

		resp, err := svc.Swap(ctx, req)
		if err != nil {
			respondError(c, err)
			return
		}

		h := c.Writer.Header()
		h.Set("X-Faces-Source", strconv.Itoa(resp.SourceFaces))
		h.Set("X-Faces-Template", strconv.Itoa(resp.TemplateFaces))
		h.Set("X-Regions-Composited", joinInts(resp.CompositedRegions))
		h.Set("X-Degraded", strconv.FormatBool(resp.Degraded))
		h.Set("X-Mode", resp.Mode)
		h.Set("X-Processing-Time-Ms", strconv.FormatInt(resp.ProcessingTime.Milliseconds(), 10))
		if len(resp.Warnings) > 0 {
			h.Set("X-Warnings", strings.Join(resp.Warnings, " | "))
		}

		c.Data(http.StatusOK, "image/png", resp.PNG)
	}
}

// bindSwapRequest reads the multipart form: source and template files,
// template_ref, mode and optional precomputed landmarks as JSON
func bindSwapRequest(c *gin.Context) (models.SwapRequest, error) {
	var req models.SwapRequest

	src, err := formFile(c, "source")
	if err != nil {
		return req, err
	}
	if src == nil {
		return req, apperrors.NewValidationError("source file is required", nil)
	}
	req.Source = src

	if req.Template, err = formFile(c, "template"); err != nil {
		return req, err
	}
	req.TemplateRef = strings.TrimSpace(c.PostForm("template_ref"))
	req.Mode = c.PostForm("mode")

	if raw := strings.TrimSpace(c.PostForm("source_face")); raw != "" {
		var face faceswap.FaceDetection
		if err := json.Unmarshal([]byte(raw), &face); err != nil {
			return req, apperrors.NewValidationError("invalid source_face JSON", err)
		}
		req.SourceFace = &face
	}
	if raw := strings.TrimSpace(c.PostForm("template_faces")); raw != "" {
		var faces []faceswap.FaceDetection
		if err := json.Unmarshal([]byte(raw), &faces); err != nil {
			return req, apperrors.NewValidationError("invalid template_faces JSON", err)
		}
		if faces == nil {
			faces = []faceswap.FaceDetection{}
		}
		req.TemplateFaces = faces
	}
	return req, nil
}

// formFile returns nil without error when the field is absent
func formFile(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, bodyError(err)
	}
	return readPart(fh)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("failed to open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, bodyError(err)
	}
	return data, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.NewImageTooLargeError(
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), err)
	}
	return apperrors.NewValidationError("invalid multipart request", err)
}

func healthCheck(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   "available",
			Version:  "1.0.0",
			Time:     time.Now().UTC().Format(time.RFC3339),
			Provider: cfg.LandmarkProvider,
			Storage:  cfg.TemplateStorage,
		})
	}
}

func stats(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := metrics.GetMetrics()
		c.JSON(http.StatusOK, models.StatsResponse{
			TotalSwaps:            m.TotalSwaps,
			SuccessfulSwaps:       m.SuccessfulSwaps,
			DegradedSwaps:         m.DegradedSwaps,
			FailedSwaps:           m.FailedSwaps,
			TemplateFetchFailures: m.TemplateFetchFailure,
			AvgProcessingTimeMs:   m.AvgProcessingTimeMs,
			Modes:                 strategy.Names(),
		})
	}
}

// Middleware and helper functions
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)
	resp := models.ErrorResponse{
		Error:     http.StatusText(code),
		Message:   err.Error(),
		RequestID: c.GetString("request_id"),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Type = string(appErr.Type)
		resp.Message = appErr.Message
	}

	entry := logger.ForRequest(resp.RequestID).WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, resp)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
