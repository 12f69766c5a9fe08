// File: internal/screen/marker.go
package screen

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	markerRed    = color.RGBA{R: 0xff, A: 0xff}
	markerYellow = color.RGBA{R: 0xff, G: 0xff, A: 0xff}
)

const (
	markerRadius      = 20
	markerInnerRadius = 8
)

// MarkDisplayPoint overlays a click marker at the given display-space
// coordinate, labeled with that coordinate so the collaborator can compare
// where its click landed against where it aimed.
func (f *Frame) MarkDisplayPoint(x, y int) {
	ix, iy := f.FromDisplay(x, y)
	drawCrosshair(f.Image, ix, iy)
	drawLabel(f.Image, ix+markerRadius+5, iy-5, fmt.Sprintf("CLICK: (%d, %d)", x, y))
}

// drawCrosshair renders concentric circles with crosshair lines. All writes
// are bounds-checked so markers near edges degrade instead of panicking.
func drawCrosshair(img *image.RGBA, cx, cy int) {
	drawCircle(img, cx, cy, markerRadius, markerRed)
	drawCircle(img, cx, cy, markerRadius-1, markerRed)
	drawCircle(img, cx, cy, markerInnerRadius, markerYellow)

	for d := -markerRadius - 5; d <= markerRadius+5; d++ {
		setPixel(img, cx+d, cy, markerRed)
		setPixel(img, cx+d, cy+1, markerRed)
		setPixel(img, cx, cy+d, markerRed)
		setPixel(img, cx+1, cy+d, markerRed)
	}
}

// drawCircle plots a circle outline with the midpoint algorithm.
func drawCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	x, y := r, 0
	err := 1 - r
	for x >= y {
		setPixel(img, cx+x, cy+y, c)
		setPixel(img, cx-x, cy+y, c)
		setPixel(img, cx+x, cy-y, c)
		setPixel(img, cx-x, cy-y, c)
		setPixel(img, cx+y, cy+x, c)
		setPixel(img, cx-y, cy+x, c)
		setPixel(img, cx+y, cy-x, c)
		setPixel(img, cx-y, cy-x, c)
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

// drawLabel renders small bitmap text at (x, y).
func drawLabel(img *image.RGBA, x, y int, text string) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(markerRed),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}
