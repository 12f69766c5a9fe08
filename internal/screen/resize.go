// File: internal/screen/resize.go
package screen

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// FitWithin returns the largest aspect-preserving dimensions for a w x h image
// whose pixel area does not exceed maxPixels. Images already within the
// ceiling keep their dimensions; this never upscales.
func FitWithin(w, h, maxPixels int) (int, int) {
	if w*h <= maxPixels {
		return w, h
	}
	s := math.Sqrt(float64(maxPixels) / float64(w*h))
	fw := int(float64(w) * s)
	fh := int(float64(h) * s)
	if fw < 1 {
		fw = 1
	}
	if fh < 1 {
		fh = 1
	}
	return fw, fh
}

// Resize scales src to exactly w x h using Catmull-Rom interpolation, which
// keeps small UI text legible after downscaling.
func Resize(src image.Image, w, h int) *image.RGBA {
	bounds := src.Bounds()
	if bounds.Dx() == w && bounds.Dy() == h {
		return toRGBA(src)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)
	return dst
}
