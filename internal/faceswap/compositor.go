package faceswap

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"

	apperrors "github.com/anime-shed/jersey-faceswap-go/internal/errors"
)

// Compositor owns the output raster. Place may be called from several
// goroutines; writes are serialized.
type Compositor struct {
	mu     sync.Mutex
	out    *image.NRGBA
	placed []int
}

// NewCompositor copies base into a fresh output raster
func NewCompositor(base *image.NRGBA) *Compositor {
	return &Compositor{out: cloneNRGBA(base)}
}

// Place resamples the crop to exactly cover p.Region and blends it over the
// output with the "over" operator. Parts outside the output are clipped.
func (c *Compositor) Place(p Placement) error {
	if p.Crop == nil || p.Crop.Rect.Empty() {
		return apperrors.NewProcessingError("placement has no pixels", fmt.Errorf("region %d", p.Index))
	}
	if p.Region.Empty() {
		return apperrors.NewProcessingError("placement region is empty", fmt.Errorf("region %d", p.Index))
	}

	patch, err := resampleTo(p.Crop, p.Region.Size())
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	blendOver(c.out, patch, p.Region.Min)
	c.placed = append(c.placed, p.Index)
	return nil
}

// Result returns the output raster and the indices placed so far, in placement order
func (c *Compositor) Result() (*image.NRGBA, []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	placed := make([]int, len(c.placed))
	copy(placed, c.placed)
	return c.out, placed
}

// Composite draws dst unmodified and places every crop on top of it in order.
// dst is not modified.
func Composite(dst *image.NRGBA, placements []Placement) (*image.NRGBA, error) {
	c := NewCompositor(dst)
	for _, p := range placements {
		if err := c.Place(p); err != nil {
			return nil, err
		}
	}
	out, _ := c.Result()
	return out, nil
}

// resampleTo returns a zero-origin copy of src scaled to size with bilinear filtering
func resampleTo(src *image.NRGBA, size image.Point) (*image.NRGBA, error) {
	dst, err := newCanvas(image.Rectangle{Max: size})
	if err != nil {
		return nil, err
	}
	if src.Rect.Size() == size {
		draw.Draw(dst, dst.Rect, src, src.Rect.Min, draw.Src)
		return dst, nil
	}
	draw.BiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst, nil
}

// blendOver composites patch (zero-origin) onto dst at offset using integer
// non-premultiplied "over" arithmetic. Every result is a weighted average of
// in-range values, so channels stay within [0,255].
func blendOver(dst, patch *image.NRGBA, offset image.Point) {
	area := patch.Rect.Add(offset).Intersect(dst.Rect)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		di := dst.PixOffset(area.Min.X, y)
		si := patch.PixOffset(area.Min.X-offset.X, y-offset.Y)
		for x := area.Min.X; x < area.Max.X; x, di, si = x+1, di+4, si+4 {
			sa := uint32(patch.Pix[si+3])
			if sa == 0 {
				continue
			}
			if sa == 255 {
				copy(dst.Pix[di:di+4], patch.Pix[si:si+4])
				continue
			}

			da := uint32(dst.Pix[di+3])
			sw := sa * 255
			dw := da * (255 - sa)
			total := sw + dw
			for ch := 0; ch < 3; ch++ {
				s := uint32(patch.Pix[si+ch])
				d := uint32(dst.Pix[di+ch])
				dst.Pix[di+ch] = uint8((s*sw + d*dw + total/2) / total)
			}
			dst.Pix[di+3] = uint8((total + 127) / 255)
		}
	}
}
