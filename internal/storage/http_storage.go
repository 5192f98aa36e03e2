package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
	"github.com/anime-shed/jersey-faceswap-go/internal/logger"
)

const maxFetchAttempts = 3

// ImageFetcher resolves a template reference to a decoded image
type ImageFetcher interface {
	FetchImage(ctx context.Context, ref string) (image.Image, error)
}

// HTTPConfig tunes the HTTP fetcher
type HTTPConfig struct {
	Timeout    time.Duration
	RetryDelay time.Duration // multiplied by the attempt number
	Limits     Limits
}

// DefaultHTTPConfig returns the production fetch settings
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:    30 * time.Second,
		RetryDelay: time.Second,
		Limits:     DefaultLimits(),
	}
}

// HTTPImageFetcher downloads templates over HTTP(S), retrying transient failures
type HTTPImageFetcher struct {
	client *http.Client
	cfg    HTTPConfig
}

// NewHTTPImageFetcher creates an HTTP image fetcher
func NewHTTPImageFetcher(cfg HTTPConfig) ImageFetcher {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageFetcher{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

// FetchImage downloads and decodes the image at ref. 5xx responses and
// transport errors are retried; 4xx responses are not.
func (h *HTTPImageFetcher) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid template URL", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/webp, */*")
	req.Header.Set("User-Agent", "Jersey-Faceswap/1.0")

	var lastErr error
	for attempt := 0; attempt < maxFetchAttempts; attempt++ {
		if attempt > 0 {
			logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"error":   lastErr.Error(),
			}).Warn("Retrying template fetch")

			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("template fetch cancelled", ctx.Err())
			case <-time.After(time.Duration(attempt) * h.cfg.RetryDelay):
			}
		}

		img, retry, err := h.fetchOnce(req)
		if err == nil {
			return img, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, apperrors.NewNetworkError(
		fmt.Sprintf("failed to fetch template after %d attempts", maxFetchAttempts), lastErr)
}

// fetchOnce performs one request and reports whether a failure is worth retrying
func (h *HTTPImageFetcher) fetchOnce(req *http.Request) (image.Image, bool, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, apperrors.NewTimeoutError("template fetch timed out", err)
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		img, _, err := DecodeImage(resp.Body, h.cfg.Limits)
		return img, false, err
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, apperrors.NewNotFoundError("template not found",
			fmt.Errorf("client error: status code %d", resp.StatusCode))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, apperrors.NewNetworkError("template request rejected",
			fmt.Errorf("client error: status code %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	}
	return nil, false, apperrors.NewNetworkError("unexpected template response",
		fmt.Errorf("status code %d", resp.StatusCode))
}
