package faceswap

import (
	"bytes"
	"image"
	"image/color"
	"sync"
	"testing"
)

func TestComposite_HalfAlphaOverOpaque(t *testing.T) {
	dst := createTestImage(10, 10, color.NRGBA{A: 255})
	crop := createTestImage(4, 4, color.NRGBA{R: 200, G: 100, B: 50, A: 128})

	out, err := Composite(dst, []Placement{{Region: image.Rect(2, 2, 6, 6), Crop: crop}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c := out.NRGBAAt(3, 3); c != (color.NRGBA{R: 100, G: 50, B: 25, A: 255}) {
		t.Errorf("blended pixel = %+v, want {100 50 25 255}", c)
	}
	if c := out.NRGBAAt(0, 0); c != (color.NRGBA{A: 255}) {
		t.Errorf("untouched pixel = %+v", c)
	}
}

func TestComposite_ResamplesToRegion(t *testing.T) {
	dst := createTestImage(40, 40, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	crop := createTestImage(10, 10, color.NRGBA{R: 250, G: 200, B: 150, A: 255})
	region := image.Rect(5, 8, 25, 28)

	out, err := Composite(dst, []Placement{{Region: region, Crop: crop}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			want := color.NRGBA{R: 10, G: 10, B: 10, A: 255}
			if (image.Point{x, y}).In(region) {
				want = color.NRGBA{R: 250, G: 200, B: 150, A: 255}
			}
			if c := out.NRGBAAt(x, y); c != want {
				t.Fatalf("pixel (%d,%d) = %+v, want %+v", x, y, c, want)
			}
		}
	}
}

func TestComposite_ClipsToDestination(t *testing.T) {
	dst := createTestImage(20, 20, color.NRGBA{A: 255})
	crop := createTestImage(10, 10, color.NRGBA{R: 255, A: 255})

	out, err := Composite(dst, []Placement{{Region: image.Rect(-5, 15, 5, 25), Crop: crop}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c := out.NRGBAAt(0, 19); c.R != 255 {
		t.Errorf("clipped corner = %+v, want red", c)
	}
	if out.Bounds() != dst.Bounds() {
		t.Errorf("bounds = %v, want %v", out.Bounds(), dst.Bounds())
	}
}

func TestComposite_AlphaBounds(t *testing.T) {
	dst := createGradientImage(50, 50)
	// semi-transparent destination corner
	fillRect(dst, image.Rect(0, 0, 20, 20), color.NRGBA{R: 255, G: 255, B: 255, A: 30})

	var placements []Placement
	for i, a := range []uint8{1, 64, 127, 200, 254, 255} {
		crop := createTestImage(12, 12, color.NRGBA{R: 255, G: uint8(40 * i), B: 0, A: a})
		placements = append(placements, Placement{Index: i, Region: image.Rect(i*6, i*6, i*6+20, i*6+20), Crop: crop})
	}

	out, err := Composite(dst, placements)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < len(out.Pix); i += 4 {
		a := out.Pix[i+3]
		if a < dst.Pix[i+3] {
			t.Fatalf("alpha decreased at byte %d: %d -> %d", i, dst.Pix[i+3], a)
		}
	}
}

func TestComposite_LeavesDestinationUntouched(t *testing.T) {
	dst := createGradientImage(30, 30)
	before := append([]uint8(nil), dst.Pix...)
	crop := createTestImage(10, 10, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	if _, err := Composite(dst, []Placement{{Region: image.Rect(0, 0, 10, 10), Crop: crop}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(before, dst.Pix) {
		t.Error("destination buffer was modified")
	}
}

func TestComposite_RejectsEmptyPlacement(t *testing.T) {
	dst := createTestImage(10, 10, color.NRGBA{A: 255})

	if _, err := Composite(dst, []Placement{{Region: image.Rect(0, 0, 5, 5)}}); err == nil {
		t.Error("expected error for nil crop")
	}
	crop := createTestImage(2, 2, color.NRGBA{A: 255})
	if _, err := Composite(dst, []Placement{{Region: image.Rectangle{}, Crop: crop}}); err == nil {
		t.Error("expected error for empty region")
	}
}

func TestCompositor_ConcurrentPlace(t *testing.T) {
	dst := createTestImage(100, 10, color.NRGBA{A: 255})
	c := NewCompositor(dst)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			crop := createTestImage(10, 10, color.NRGBA{R: uint8(20 * (i + 1)), A: 255})
			if err := c.Place(Placement{Index: i, Region: image.Rect(i*10, 0, i*10+10, 10), Crop: crop}); err != nil {
				t.Errorf("place %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	out, placed := c.Result()
	if len(placed) != 10 {
		t.Fatalf("placed %d regions, want 10", len(placed))
	}
	for i := 0; i < 10; i++ {
		if r := out.NRGBAAt(i*10+5, 5).R; r != uint8(20*(i+1)) {
			t.Errorf("region %d red = %d, want %d", i, r, 20*(i+1))
		}
	}
}
