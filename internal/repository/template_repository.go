package repository

import (
	"context"
	"image"
	"strings"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
	"github.com/anime-shed/jersey-faceswap-go/internal/storage"
)

// RefValidator checks a template reference before it reaches storage
type RefValidator interface {
	ValidateTemplateRef(ref string) error
}

// TemplateRepository defines access to jersey template images
type TemplateRepository interface {
	// FetchTemplate resolves ref through the configured storage backend
	FetchTemplate(ctx context.Context, ref string) (image.Image, error)

	// ValidateTemplateRef rejects references the backend should never see
	ValidateTemplateRef(ref string) error
}

type templateRepository struct {
	fetcher   storage.ImageFetcher
	validator RefValidator
}

// NewTemplateRepository creates a repository over a storage backend.
// validator may be nil, in which case only empty references are rejected.
func NewTemplateRepository(fetcher storage.ImageFetcher, validator RefValidator) TemplateRepository {
	return &templateRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

func (r *templateRepository) FetchTemplate(ctx context.Context, ref string) (image.Image, error) {
	if r.fetcher == nil {
		return nil, apperrors.NewInternalError("template storage is not configured", ErrRepositoryUnavailable)
	}
	if err := r.ValidateTemplateRef(ref); err != nil {
		return nil, err
	}
	return r.fetcher.FetchImage(ctx, strings.TrimSpace(ref))
}

func (r *templateRepository) ValidateTemplateRef(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return apperrors.NewValidationError("template reference cannot be empty", ErrInvalidTemplateRef)
	}
	if r.validator != nil {
		return r.validator.ValidateTemplateRef(ref)
	}
	return nil
}
