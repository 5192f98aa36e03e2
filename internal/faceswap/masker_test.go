package faceswap

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestMaskRegion_TransparentBorderStaysTransparent(t *testing.T) {
	crop := image.NewNRGBA(image.Rect(0, 0, 60, 60))
	fillRect(crop, image.Rect(20, 20, 40, 40), color.NRGBA{R: 200, G: 150, B: 120, A: 255})

	once := MaskRegion(crop, DefaultOptions())
	twice := MaskRegion(once, DefaultOptions())

	for _, img := range []*image.NRGBA{once, twice} {
		b := img.Bounds()
		for x := b.Min.X; x < b.Max.X; x++ {
			for _, y := range []int{b.Min.Y, b.Max.Y - 1} {
				if a := img.NRGBAAt(x, y).A; a != 0 {
					t.Fatalf("border pixel (%d,%d) alpha = %d, want 0", x, y, a)
				}
			}
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if img.NRGBAAt(x, y).A > crop.NRGBAAt(x, y).A {
					t.Fatalf("pixel (%d,%d) alpha increased", x, y)
				}
			}
		}
	}

	// the opaque centre has no background estimate to compare against
	if a := once.NRGBAAt(30, 30).A; a != 255 {
		t.Errorf("centre alpha = %d, want 255", a)
	}
}

func TestMaskRegion_RemovesFlatBackground(t *testing.T) {
	crop := createTestImage(100, 100, color.NRGBA{G: 200, A: 255})
	fillEllipse(crop, Rect{X: 25, Y: 25, Width: 50, Height: 50}, color.NRGBA{R: 220, G: 60, B: 50, A: 255})

	masked := MaskRegion(crop, DefaultOptions())

	if a := masked.NRGBAAt(30, 10).A; a != 0 {
		t.Errorf("background alpha = %d, want 0", a)
	}
	if a := masked.NRGBAAt(50, 50).A; a != 255 {
		t.Errorf("face alpha = %d, want 255", a)
	}
}

func TestMaskRegion_PartialBand(t *testing.T) {
	crop := createTestImage(100, 100, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	// RGB distance 120 from the background, halfway between 80 and 160
	crop.SetNRGBA(50, 50, color.NRGBA{R: 220, G: 100, B: 100, A: 255})

	masked := MaskRegion(crop, DefaultOptions())

	if a := masked.NRGBAAt(50, 50).A; a != 128 {
		t.Errorf("partial band alpha = %d, want 128", a)
	}
	if a := masked.NRGBAAt(40, 40).A; a != 0 {
		t.Errorf("background alpha = %d, want 0", a)
	}
}

func TestMaskRegion_RadialFalloff(t *testing.T) {
	crop := createTestImage(100, 100, color.NRGBA{R: 180, G: 120, B: 90, A: 255})
	opts := DefaultOptions().WithoutBackgroundRemoval()

	masked := MaskRegion(crop, opts)

	tests := []struct {
		name     string
		x, y     int
		min, max uint8
	}{
		{"centre", 50, 50, 255, 255},
		{"inside start radius", 70, 50, 255, 255},
		{"corner", 0, 0, 0, 0},
		{"edge midpoint", 0, 50, 1, 40},
		{"far corner", 99, 99, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := masked.NRGBAAt(tt.x, tt.y).A
			if a < tt.min || a > tt.max {
				t.Errorf("alpha = %d, want in [%d,%d]", a, tt.min, tt.max)
			}
		})
	}
}

func TestMaskRegion_PreservesRGBAndInput(t *testing.T) {
	crop := createGradientImage(64, 48)
	before := append([]uint8(nil), crop.Pix...)

	masked := MaskRegion(crop, AggressiveMaskOptions())

	if !bytes.Equal(before, crop.Pix) {
		t.Fatal("input buffer was modified")
	}
	for i := 0; i < len(masked.Pix); i += 4 {
		if !bytes.Equal(masked.Pix[i:i+3], crop.Pix[i:i+3]) {
			t.Fatalf("RGB changed at byte %d", i)
		}
	}
}

func TestMaskRegion_Presets(t *testing.T) {
	crop := createTestImage(100, 100, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	// distance 100 from the background
	fillRect(crop, image.Rect(45, 45, 55, 55), color.NRGBA{R: 200, G: 100, B: 100, A: 255})

	gentle := MaskRegion(crop, GentleMaskOptions()).NRGBAAt(50, 50).A
	standard := MaskRegion(crop, DefaultOptions()).NRGBAAt(50, 50).A
	aggressive := MaskRegion(crop, AggressiveMaskOptions()).NRGBAAt(50, 50).A

	if gentle != 255 {
		t.Errorf("gentle alpha = %d, want 255", gentle)
	}
	if !(standard < gentle && standard > 0) {
		t.Errorf("standard alpha = %d, want partial", standard)
	}
	if aggressive != 0 {
		t.Errorf("aggressive alpha = %d, want 0", aggressive)
	}
}
