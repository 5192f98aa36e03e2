package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
)

// Limits bounds what a fetcher will read and decode
type Limits struct {
	MaxBytes     int64
	MaxDimension int
}

// DefaultLimits allows 20MB payloads up to 4096x4096
func DefaultLimits() Limits {
	return Limits{MaxBytes: 20 << 20, MaxDimension: 4096}
}

// ReadLimited reads at most limit bytes and fails if the stream is longer
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to read image payload", err)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.NewImageTooLargeError(
			fmt.Sprintf("image payload exceeds %d bytes", limit), nil)
	}
	return data, nil
}

// DecodeImage reads an encoded JPEG, PNG or WebP image. The header is checked
// against limits before the full raster is decoded; EXIF orientation is applied.
func DecodeImage(r io.Reader, limits Limits) (image.Image, string, error) {
	data, err := ReadLimited(r, limits.MaxBytes)
	if err != nil {
		return nil, "", err
	}
	return DecodeBytes(data, limits.MaxDimension)
}

// DecodeBytes is DecodeImage for an in-memory payload
func DecodeBytes(data []byte, maxDim int) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.NewValidationError("unsupported or corrupt image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", apperrors.NewValidationError("image has no pixels",
			fmt.Errorf("%dx%d", cfg.Width, cfg.Height))
	}
	if maxDim > 0 && (cfg.Width > maxDim || cfg.Height > maxDim) {
		return nil, "", apperrors.NewImageTooLargeError(
			fmt.Sprintf("image exceeds %dx%d", maxDim, maxDim),
			fmt.Errorf("%dx%d", cfg.Width, cfg.Height))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", apperrors.NewValidationError("failed to decode image", err)
	}
	return img, format, nil
}

// EncodePNG writes img losslessly
func EncodePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return apperrors.NewInternalError("failed to encode PNG", err)
	}
	return nil
}
