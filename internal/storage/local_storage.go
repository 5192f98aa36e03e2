package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
)

type localStorage struct {
	root   string
	limits Limits
}

// NewLocalStorage serves templates from a directory on disk
func NewLocalStorage(root string, limits Limits) (ImageFetcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, apperrors.NewValidationError("template directory is not accessible", err)
	}
	if !info.IsDir() {
		return nil, apperrors.NewValidationError("template path is not a directory", fmt.Errorf("%s", root))
	}
	return &localStorage{root: root, limits: limits}, nil
}

// FetchImage reads a template by its path relative to the root. Paths that
// would escape the root are rejected.
func (s *localStorage) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("template read cancelled", err)
	}

	name := filepath.FromSlash(strings.TrimSpace(ref))
	if name == "" || filepath.IsAbs(name) || !filepath.IsLocal(name) {
		return nil, apperrors.NewValidationError("invalid template name", fmt.Errorf("ref %q", ref))
	}

	f, err := os.Open(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("template not found", err)
		}
		return nil, apperrors.NewInternalError("failed to open template", err)
	}
	defer f.Close()

	img, _, err := DecodeImage(f, s.limits)
	return img, err
}
