// File: internal/permissions/permissions.go

// Package permissions probes the OS capabilities the agent depends on before
// the decision loop starts. A denied permission discovered mid-run would
// waste collaborator turns; probing up front turns it into a clear startup
// failure with remediation hints.
package permissions

import (
	"context"

	"go.uber.org/zap"

	"github.com/trainingloop/coursepilot/api/schemas"
	"github.com/trainingloop/coursepilot/internal/input"
	"github.com/trainingloop/coursepilot/internal/screen"
)

// Check verifies screen capture and pointer control. Any failure is a
// schemas.FatalError; the run must not start.
func Check(ctx context.Context, capturer screen.Capturer, driver input.Driver, logger *zap.Logger) error {
	log := logger.Named("permissions")
	log.Info("Checking OS permissions...")

	if err := checkScreenCapture(ctx, capturer, log); err != nil {
		return err
	}
	if err := checkPointerControl(driver, log); err != nil {
		return err
	}
	return nil
}

func checkScreenCapture(ctx context.Context, capturer screen.Capturer, log *zap.Logger) error {
	frame, err := capturer.Capture(ctx)
	if err != nil {
		log.Error("Screen recording: DISABLED")
		log.Error("Grant screen recording permission to this terminal (System Settings > Privacy & Security > Screen Recording), then restart it.")
		return schemas.Fatalf(err, "screen recording permission check failed")
	}
	log.Info("Screen recording: enabled",
		zap.Int("width", frame.NativeWidth),
		zap.Int("height", frame.NativeHeight),
	)
	return nil
}

// checkPointerControl nudges the pointer by one pixel and verifies it moved.
// A silently ignored move is how a missing accessibility permission presents.
func checkPointerControl(driver input.Driver, log *zap.Logger) error {
	startX, startY := driver.Location()

	if err := driver.MoveTo(startX+1, startY+1); err != nil {
		return deniedPointer(log, err)
	}
	newX, newY := driver.Location()
	if newX == startX && newY == startY {
		return deniedPointer(log, nil)
	}

	// Put the pointer back where the operator left it.
	if err := driver.MoveTo(startX, startY); err != nil {
		return deniedPointer(log, err)
	}

	log.Info("Pointer control: working")
	return nil
}

func deniedPointer(log *zap.Logger, err error) error {
	log.Error("Pointer control: DISABLED")
	log.Error("Grant accessibility permission to this terminal (System Settings > Privacy & Security > Accessibility), then restart it.")
	return schemas.Fatalf(err, "pointer control permission check failed")
}
