package faceswap

import (
	"image"
	"image/color"
)

// createTestImage creates a solid test image
func createTestImage(width, height int, fill color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	return img
}

// createGradientImage creates an opaque image whose channels vary independently
func createGradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(60 + x*150/width),
				G: uint8(40 + y*120/height),
				B: uint8(30 + (x+y)*100/(width+height)),
				A: 255,
			})
		}
	}
	return img
}

func fillRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func fillEllipse(img *image.NRGBA, box Rect, c color.NRGBA) {
	center := box.Center()
	rx, ry := box.Width/2, box.Height/2
	b := box.Bounds().Intersect(img.Rect)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			nx := (float64(x) + 0.5 - center.X) / rx
			ny := (float64(y) + 0.5 - center.Y) / ry
			if nx*nx+ny*ny <= 1 {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

func makeFace(box Rect, left, right Point) FaceDetection {
	return FaceDetection{
		BoundingBox: box,
		Landmarks: Landmarks{
			LeftEye:  []Point{left},
			RightEye: []Point{right},
		},
		Confidence: 0.9,
	}
}

// paintFace draws a skin ellipse with two dark square eyes
func paintFace(img *image.NRGBA, face FaceDetection, skin color.NRGBA) {
	fillEllipse(img, face.BoundingBox, skin)
	eye := color.NRGBA{R: 40, G: 30, B: 30, A: 255}
	for _, set := range [][]Point{face.Landmarks.LeftEye, face.Landmarks.RightEye} {
		c, _ := EyeCenter(set)
		fillRect(img, image.Rect(int(c.X)-4, int(c.Y)-3, int(c.X)+4, int(c.Y)+3), eye)
	}
}

// hugeImage reports large bounds without backing pixels
type hugeImage struct {
	w, h int
}

func (h hugeImage) ColorModel() color.Model { return color.NRGBAModel }
func (h hugeImage) Bounds() image.Rectangle { return image.Rect(0, 0, h.w, h.h) }
func (h hugeImage) At(x, y int) color.Color { return color.NRGBA{A: 255} }

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
