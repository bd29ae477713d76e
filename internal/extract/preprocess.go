package extract

import (
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

// Contrast stretch applied after normalization: v' = contrastGain*v + contrastOffset.
const (
	contrastGain   = 1.5
	contrastOffset = -(128 * contrastGain) + 128
)

// Preprocess prepares a floor plan for text recognition: resize to width
// (aspect preserved), grayscale, min/max normalize, sharpen, then raise
// contrast.
func Preprocess(img image.Image, width int) *image.Gray {
	resized := resize.Resize(uint(width), 0, img, resize.Lanczos3)

	gray := toGray(resized)
	normalize(gray)
	gray = sharpen(gray)
	linear(gray, contrastGain, contrastOffset)
	return gray
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// normalize stretches the intensity range to the full 0..255 span.
func normalize(g *image.Gray) {
	lo, hi := uint8(255), uint8(0)
	for _, v := range g.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return
	}
	scale := 255 / float64(hi-lo)
	for i, v := range g.Pix {
		g.Pix[i] = clamp8(float64(v-lo) * scale)
	}
}

// sharpen applies a 3x3 Laplacian sharpening kernel; border pixels are copied.
func sharpen(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	copy(out.Pix, g.Pix)
	w, h := b.Dx(), b.Dy()
	at := func(x, y int) float64 { return float64(g.Pix[y*g.Stride+x]) }
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := 5*at(x, y) - at(x-1, y) - at(x+1, y) - at(x, y-1) - at(x, y+1)
			out.Pix[y*out.Stride+x] = clamp8(v)
		}
	}
	return out
}

func linear(g *image.Gray, a, b float64) {
	for i, v := range g.Pix {
		g.Pix[i] = clamp8(a*float64(v) + b)
	}
}

func clamp8(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
