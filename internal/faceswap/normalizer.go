package faceswap

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// ComputeStatistics samples every opts.SampleStride-th pixel of region and
// returns per-channel population mean and variance over pixels whose alpha
// exceeds opts.AlphaCutoff. Count is zero when nothing qualifies.
func ComputeStatistics(img *image.NRGBA, region image.Rectangle, opts Options) ColorStatistics {
	region = region.Intersect(img.Rect)
	if region.Empty() {
		return ColorStatistics{}
	}
	stride := opts.SampleStride
	if stride < 1 {
		stride = 1
	}

	capacity := region.Dx()*region.Dy()/stride + 1
	rs := make([]float64, 0, capacity)
	gs := make([]float64, 0, capacity)
	bs := make([]float64, 0, capacity)

	k := 0
	for y := region.Min.Y; y < region.Max.Y; y++ {
		i := img.PixOffset(region.Min.X, y)
		for x := region.Min.X; x < region.Max.X; x, i, k = x+1, i+4, k+1 {
			if k%stride != 0 || img.Pix[i+3] <= opts.AlphaCutoff {
				continue
			}
			rs = append(rs, float64(img.Pix[i]))
			gs = append(gs, float64(img.Pix[i+1]))
			bs = append(bs, float64(img.Pix[i+2]))
		}
	}

	if len(rs) == 0 {
		return ColorStatistics{}
	}

	var s ColorStatistics
	s.Count = len(rs)
	s.Mean.R, s.Variance.R = stat.PopMeanVariance(rs, nil)
	s.Mean.G, s.Variance.G = stat.PopMeanVariance(gs, nil)
	s.Mean.B, s.Variance.B = stat.PopMeanVariance(bs, nil)
	s.StdDev = Channels{
		R: math.Sqrt(s.Variance.R),
		G: math.Sqrt(s.Variance.G),
		B: math.Sqrt(s.Variance.B),
	}
	return s
}

// Normalize recolours a masked crop toward the destination statistics.
// Alpha is preserved. When either population is empty the crop passes through unchanged.
func Normalize(crop *image.NRGBA, dest ColorStatistics, opts Options) *image.NRGBA {
	out := cloneNRGBA(crop)
	if opts.SkipNormalization {
		return out
	}

	src := ComputeStatistics(crop, crop.Rect, opts)
	if src.Count == 0 || dest.Count == 0 {
		return out
	}

	transferColor(out, src, dest)

	post := ComputeStatistics(out, out.Rect, opts)
	if post.Count > 0 {
		adjustBrightnessContrast(out, post, dest, opts)
	}

	if opts.SkinPreservation > 0 {
		preserveSkin(out, crop, opts.SkinPreservation)
	}
	return out
}

// transferColor matches per-channel mean and deviation (Reinhard-style)
func transferColor(img *image.NRGBA, src, dest ColorStatistics) {
	scale := Channels{
		R: dest.StdDev.R / math.Max(src.StdDev.R, 1),
		G: dest.StdDev.G / math.Max(src.StdDev.G, 1),
		B: dest.StdDev.B / math.Max(src.StdDev.B, 1),
	}
	offset := Channels{
		R: dest.Mean.R - src.Mean.R*scale.R,
		G: dest.Mean.G - src.Mean.G*scale.G,
		B: dest.Mean.B - src.Mean.B*scale.B,
	}

	eachVisible(img, func(p []uint8) {
		p[0] = clamp255(float64(p[0])*scale.R + offset.R)
		p[1] = clamp255(float64(p[1])*scale.G + offset.G)
		p[2] = clamp255(float64(p[2])*scale.B + offset.B)
	})
}

// adjustBrightnessContrast applies a damped luminance shift and scales each
// pixel's distance from its local average by the clamped contrast ratio.
// The local average is an alpha-weighted Gaussian blur of the crop; with
// LocalMeanSigma zero the region mean is used instead.
func adjustBrightnessContrast(img *image.NRGBA, src, dest ColorStatistics, opts Options) {
	shift := opts.BrightnessDamping * (dest.Mean.Luminance() - src.Mean.Luminance())

	ratio := 1.0
	if c := src.Contrast(); c >= 1 {
		ratio = dest.Contrast() / c
	}
	ratio = math.Max(opts.MinContrastRatio, math.Min(opts.MaxContrastRatio, ratio))

	if shift == 0 && ratio == 1 {
		return
	}

	if opts.LocalMeanSigma <= 0 {
		eachVisible(img, func(p []uint8) {
			p[0] = clamp255(src.Mean.R + shift + (float64(p[0])-src.Mean.R)*ratio)
			p[1] = clamp255(src.Mean.G + shift + (float64(p[1])-src.Mean.G)*ratio)
			p[2] = clamp255(src.Mean.B + shift + (float64(p[2])-src.Mean.B)*ratio)
		})
		return
	}

	local := imaging.Blur(img, opts.LocalMeanSigma)
	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		j := (y - b.Min.Y) * local.Stride
		for x := b.Min.X; x < b.Max.X; x, i, j = x+1, i+4, j+4 {
			if img.Pix[i+3] == 0 {
				continue
			}
			for ch := 0; ch < 3; ch++ {
				m := float64(local.Pix[j+ch])
				img.Pix[i+ch] = clamp255(m + shift + (float64(img.Pix[i+ch])-m)*ratio)
			}
		}
	}
}

// preserveSkin pulls skin-toned pixels back toward their original colour.
// Classification uses the original, pre-normalization colour.
func preserveSkin(img, original *image.NRGBA, weight float64) {
	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		j := original.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, i, j = x+1, i+4, j+4 {
			if img.Pix[i+3] == 0 {
				continue
			}
			or, og, ob := original.Pix[j], original.Pix[j+1], original.Pix[j+2]
			if !IsSkinTone(or, og, ob) {
				continue
			}
			img.Pix[i] = clamp255(float64(img.Pix[i])*(1-weight) + float64(or)*weight)
			img.Pix[i+1] = clamp255(float64(img.Pix[i+1])*(1-weight) + float64(og)*weight)
			img.Pix[i+2] = clamp255(float64(img.Pix[i+2])*(1-weight) + float64(ob)*weight)
		}
	}
}

// IsSkinTone is a heuristic RGB-ratio classifier with bands for light,
// medium and dark skin. It is not a segmentation model.
func IsSkinTone(r, g, b uint8) bool {
	if r <= g || r <= b {
		return false
	}
	rg := int(r) - int(g)
	rb := int(r) - int(b)

	switch {
	// uniform daylight, medium tones
	case r > 95 && g > 40 && b > 20 && rg > 15 && rb > 15:
		return true
	// very light skin under flash
	case r > 200 && g > 170 && b > 140 && rg > 5 && rg <= 15 && rb > 15:
		return true
	// dark tones
	case r > 45 && g > 25 && b > 10 && r < 140 && rg > 10 && rg < 90 && float64(r)/float64(g) < 2.5:
		return true
	}
	return false
}

// eachVisible calls fn with the RGBA slice of every pixel whose alpha is non-zero
func eachVisible(img *image.NRGBA, fn func(p []uint8)) {
	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := b.Min.X; x < b.Max.X; x, i = x+1, i+4 {
			if img.Pix[i+3] == 0 {
				continue
			}
			fn(img.Pix[i : i+4 : i+4])
		}
	}
}
