// File: internal/screen/capture.go
package screen

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"time"

	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"

	"github.com/trainingloop/coursepilot/api/schemas"
)

// Frame is a single captured view: the resized image the collaborator sees,
// plus the scale metadata needed to translate its coordinates back to the
// display. The scale factor is recomputed per capture because display
// configuration can change between runs.
type Frame struct {
	// Image is the resized view, mutated in place by marker overlays.
	Image *image.RGBA

	// Width and Height are the resized image dimensions.
	Width  int
	Height int

	// NativeWidth and NativeHeight are the raw capture dimensions in
	// physical pixels.
	NativeWidth  int
	NativeHeight int

	// DisplayWidth and DisplayHeight span the pointer coordinate space the
	// OS input layer consumes. On HiDPI displays this differs from the
	// native pixel resolution.
	DisplayWidth  int
	DisplayHeight int

	// Scale converts resized-image coordinates to display coordinates:
	// display = round(image * Scale). The single correctness-critical
	// arithmetic relation in the system.
	Scale float64

	CapturedAt time.Time
}

// NewFrame builds a Frame from a raw capture, downscaling it to the largest
// aspect-preserving size within maxPixels. It never upscales.
func NewFrame(src image.Image, displayW, displayH, maxPixels int) (*Frame, error) {
	bounds := src.Bounds()
	nativeW, nativeH := bounds.Dx(), bounds.Dy()
	if nativeW <= 0 || nativeH <= 0 {
		return nil, fmt.Errorf("capture has empty bounds %v", bounds)
	}
	if displayW <= 0 || displayH <= 0 {
		return nil, fmt.Errorf("invalid display size %dx%d", displayW, displayH)
	}

	targetW, targetH := FitWithin(nativeW, nativeH, maxPixels)

	return &Frame{
		Image:         Resize(src, targetW, targetH),
		Width:         targetW,
		Height:        targetH,
		NativeWidth:   nativeW,
		NativeHeight:  nativeH,
		DisplayWidth:  displayW,
		DisplayHeight: displayH,
		Scale:         float64(displayW) / float64(targetW),
		CapturedAt:    time.Now(),
	}, nil
}

// ToDisplay converts a resized-image coordinate to display space.
func (f *Frame) ToDisplay(p schemas.Point) (int, int) {
	return int(float64(p.X)*f.Scale + 0.5), int(float64(p.Y)*f.Scale + 0.5)
}

// FromDisplay converts a display coordinate back into resized-image space,
// clamped to the image bounds.
func (f *Frame) FromDisplay(x, y int) (int, int) {
	ix := int(float64(x)/f.Scale + 0.5)
	iy := int(float64(y)/f.Scale + 0.5)
	return clamp(ix, 0, f.Width-1), clamp(iy, 0, f.Height-1)
}

// PNG encodes the current image content.
func (f *Frame) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Image); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64PNG encodes the current image content for an inline image block.
func (f *Frame) Base64PNG() (string, error) {
	data, err := f.PNG()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Hash returns a short content digest, used to detect whether a scroll
// actually changed what is on screen.
func (f *Frame) Hash() string {
	sum := sha256.Sum256(f.Image.Pix)
	return hex.EncodeToString(sum[:8])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Capturer produces the current visual state of the display.
type Capturer interface {
	Capture(ctx context.Context) (*Frame, error)
}

// RobotgoCapturer is the production Capturer backed by OS screen capture.
type RobotgoCapturer struct {
	maxPixels int
	logger    *zap.Logger
}

// NewRobotgoCapturer creates a capturer bounded by the given pixel ceiling.
func NewRobotgoCapturer(maxPixels int, logger *zap.Logger) *RobotgoCapturer {
	return &RobotgoCapturer{
		maxPixels: maxPixels,
		logger:    logger.Named("screen"),
	}
}

var _ Capturer = (*RobotgoCapturer)(nil)

// Capture grabs the primary display. A nil capture means the OS denied screen
// recording permission; that is terminal for the run, not retryable.
func (c *RobotgoCapturer) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _ := robotgo.CaptureImg()
	if img == nil {
		return nil, schemas.Fatalf(nil, "screen capture failed; check screen recording permission")
	}

	displayW, displayH := robotgo.GetScreenSize()
	frame, err := NewFrame(img, displayW, displayH, c.maxPixels)
	if err != nil {
		return nil, schemas.Fatalf(err, "screen capture produced unusable image")
	}

	c.logger.Debug("Captured view",
		zap.Int("native_w", frame.NativeWidth),
		zap.Int("native_h", frame.NativeHeight),
		zap.Int("resized_w", frame.Width),
		zap.Int("resized_h", frame.Height),
		zap.Float64("scale", frame.Scale),
	)
	return frame, nil
}

// toRGBA normalizes any image to RGBA for in-place drawing.
func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return dst
}
