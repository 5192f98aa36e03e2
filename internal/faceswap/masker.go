package faceswap

import (
	"image"
	"math"
)

// MaskRegion rewrites the alpha channel of an aligned crop so only the face
// region stays opaque. RGB is never modified. The input is left untouched.
func MaskRegion(crop *image.NRGBA, opts Options) *image.NRGBA {
	out := cloneNRGBA(crop)
	if out.Rect.Empty() {
		return out
	}

	if !opts.SkipBackgroundRemoval {
		if bg, ok := estimateBackground(crop, opts.EdgeSamples); ok {
			removeBackground(out, bg, opts.StrongThreshold, opts.WeakThreshold)
		}
	}
	applyRadialFalloff(out, opts.FalloffStart, opts.FalloffWidth)
	return out
}

// estimateBackground averages evenly spaced samples along the four borders.
// Transparent samples carry no colour and are ignored; ok is false when every
// sample is transparent.
func estimateBackground(img *image.NRGBA, samples int) (Channels, bool) {
	b := img.Rect
	if samples < 1 {
		samples = 1
	}

	var sum Channels
	n := 0
	add := func(x, y int) {
		i := img.PixOffset(x, y)
		if img.Pix[i+3] == 0 {
			return
		}
		sum.R += float64(img.Pix[i])
		sum.G += float64(img.Pix[i+1])
		sum.B += float64(img.Pix[i+2])
		n++
	}

	for i := 0; i < samples; i++ {
		x := b.Min.X + spread(i, samples, b.Dx())
		y := b.Min.Y + spread(i, samples, b.Dy())
		add(x, b.Min.Y)
		add(x, b.Max.Y-1)
		add(b.Min.X, y)
		add(b.Max.X-1, y)
	}

	if n == 0 {
		return Channels{}, false
	}
	fn := float64(n)
	return Channels{R: sum.R / fn, G: sum.G / fn, B: sum.B / fn}, true
}

// spread returns the i-th of n evenly spaced offsets across length pixels
func spread(i, n, length int) int {
	if n == 1 || length == 1 {
		return length / 2
	}
	return i * (length - 1) / (n - 1)
}

func removeBackground(img *image.NRGBA, bg Channels, strong, weak float64) {
	b := img.Rect
	span := weak - strong
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, i = x+1, i+4 {
			a := img.Pix[i+3]
			if a == 0 {
				continue
			}
			dr := float64(img.Pix[i]) - bg.R
			dg := float64(img.Pix[i+1]) - bg.G
			db := float64(img.Pix[i+2]) - bg.B
			dist := math.Sqrt(dr*dr + dg*dg + db*db)

			switch {
			case dist < strong:
				img.Pix[i+3] = 0
			case dist < weak:
				img.Pix[i+3] = clamp255(float64(a) * (dist - strong) / span)
			}
		}
	}
}

// applyRadialFalloff fades alpha outside start (in units of the inscribed
// ellipse radius) down to zero at start+width.
func applyRadialFalloff(img *image.NRGBA, start, width float64) {
	b := img.Rect
	rx := float64(b.Dx()) / 2
	ry := float64(b.Dy()) / 2
	cx := float64(b.Min.X) + rx
	cy := float64(b.Min.Y) + ry

	for y := b.Min.Y; y < b.Max.Y; y++ {
		ny := (float64(y) + 0.5 - cy) / ry
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, i = x+1, i+4 {
			a := img.Pix[i+3]
			if a == 0 {
				continue
			}
			nx := (float64(x) + 0.5 - cx) / rx
			d := math.Sqrt(nx*nx + ny*ny)
			if d <= start {
				continue
			}
			f := 1 - (d-start)/width
			if f <= 0 {
				img.Pix[i+3] = 0
				continue
			}
			img.Pix[i+3] = clamp255(float64(a) * f)
		}
	}
}
