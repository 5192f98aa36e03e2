package faceswap

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
)

// checkDimensions rejects rasters above the configured cap before anything is allocated
func checkDimensions(what string, w, h, limit int) error {
	if w <= 0 || h <= 0 {
		return apperrors.NewProcessingError(fmt.Sprintf("%s has no pixels", what), fmt.Errorf("%dx%d", w, h))
	}
	if w > limit || h > limit {
		return apperrors.NewImageTooLargeError(
			fmt.Sprintf("%s exceeds %dx%d", what, limit, limit),
			fmt.Errorf("%dx%d", w, h),
		)
	}
	return nil
}

// newCanvas allocates a transparent buffer, turning allocation panics into errors
func newCanvas(r image.Rectangle) (img *image.NRGBA, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			img = nil
			err = apperrors.NewAllocationError("raster allocation failed", fmt.Errorf("%v", rec))
		}
	}()
	return image.NewNRGBA(r), nil
}

// toNRGBA copies any image into a fresh zero-origin NRGBA buffer
func toNRGBA(src image.Image) (*image.NRGBA, error) {
	b := src.Bounds()
	dst, err := newCanvas(image.Rect(0, 0, b.Dx(), b.Dy()))
	if err != nil {
		return nil, err
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}

// cloneNRGBA returns an independent copy of img with the same bounds
func cloneNRGBA(img *image.NRGBA) *image.NRGBA {
	cp := &image.NRGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(cp.Pix, img.Pix)
	return cp
}

func clamp255(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
