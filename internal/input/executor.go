// File: internal/input/executor.go
package input

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trainingloop/coursepilot/api/schemas"
	"github.com/trainingloop/coursepilot/internal/config"
)

// scrollStep converts a requested scroll amount into wheel deltas.
const scrollStep = 100

// dragPause separates the press-move-release phases of a drag so the target
// UI's event detection registers each one.
const dragPause = 100 * time.Millisecond

// Result is the outcome of one executed action.
type Result struct {
	// Text is the acknowledgement rendered into the tool result.
	Text string
	// AttachView tells the loop to include a fresh capture with the result.
	AttachView bool
}

// Executor performs validated UI actions through the OS input layer. It owns
// the one correctness-critical arithmetic operation in the system: every
// image-space coordinate is multiplied by the frame's scale factor before it
// reaches the OS. An off-by-factor error here silently misdirects every click.
type Executor struct {
	driver Driver
	cfg    config.InputConfig
	logger *zap.Logger

	scrollCount int
	lastClick   schemas.Point
	hasClick    bool
}

// NewExecutor creates an executor over the given driver.
func NewExecutor(driver Driver, cfg config.InputConfig, logger *zap.Logger) *Executor {
	return &Executor{
		driver: driver,
		cfg:    cfg,
		logger: logger.Named("input"),
	}
}

// ScrollCount reports how many scroll actions have run; monotonically
// increasing, telemetry only.
func (e *Executor) ScrollCount() int {
	return e.scrollCount
}

// LastClick returns the display-space position of the most recent click, if
// any. The capture path uses it to overlay the verification marker.
func (e *Executor) LastClick() (schemas.Point, bool) {
	return e.lastClick, e.hasClick
}

// ClearLastClick drops the marker state, used at shutdown.
func (e *Executor) ClearLastClick() {
	e.hasClick = false
}

func (e *Executor) recordClick(x, y int) {
	e.lastClick = schemas.Point{X: x, Y: y}
	e.hasClick = true
}

// toDisplay applies the frame scale factor to an image-space point.
func toDisplay(p schemas.Point, scale float64) (int, int) {
	return int(float64(p.X)*scale + 0.5), int(float64(p.Y)*scale + 0.5)
}

// Execute dispatches one action. Driver failures are fatal for the run, not
// per-action: an input layer that rejects events (e.g. missing accessibility
// permission) will reject every subsequent one too.
func (e *Executor) Execute(ctx context.Context, action schemas.UIAction, scale float64) (*Result, error) {
	if scale <= 0 {
		return nil, fmt.Errorf("invalid scale factor %g", scale)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Info("Executing action", zap.String("action", action.String()), zap.Float64("scale", scale))

	switch action.Kind {
	case schemas.ActionScreenshot:
		return &Result{AttachView: true}, nil

	case schemas.ActionLeftClick, schemas.ActionRightClick, schemas.ActionDoubleClick:
		x, y := toDisplay(action.Coordinate, scale)
		button := ButtonLeft
		if action.Kind == schemas.ActionRightClick {
			button = ButtonRight
		}
		e.recordClick(x, y)
		if err := e.driver.Click(x, y, button, action.Kind == schemas.ActionDoubleClick); err != nil {
			return nil, schemas.Fatalf(err, "OS input layer rejected click")
		}
		if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
			return nil, err
		}
		return &Result{
			Text:       fmt.Sprintf("%s at (%d, %d) - the red marker on the screenshot shows where the click landed", verb(action.Kind), action.Coordinate.X, action.Coordinate.Y),
			AttachView: true,
		}, nil

	case schemas.ActionMouseMove:
		x, y := toDisplay(action.Coordinate, scale)
		if err := e.driver.MoveTo(x, y); err != nil {
			return nil, schemas.Fatalf(err, "OS input layer rejected pointer move")
		}
		return &Result{Text: fmt.Sprintf("Moved pointer to (%d, %d)", action.Coordinate.X, action.Coordinate.Y)}, nil

	case schemas.ActionType:
		if err := e.driver.TypeText(action.Text); err != nil {
			return nil, schemas.Fatalf(err, "OS input layer rejected typed text")
		}
		if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
			return nil, err
		}
		preview := action.Text
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		return &Result{Text: fmt.Sprintf("Typed: %s", preview), AttachView: true}, nil

	case schemas.ActionKey:
		key, modifiers := splitCombo(action.Text)
		if err := e.driver.KeyTap(key, modifiers...); err != nil {
			return nil, schemas.Fatalf(err, "OS input layer rejected key press")
		}
		if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
			return nil, err
		}
		return &Result{Text: fmt.Sprintf("Pressed: %s", action.Text), AttachView: true}, nil

	case schemas.ActionScroll:
		return e.executeScroll(ctx, action, scale)

	case schemas.ActionDrag:
		return e.executeDrag(ctx, action, scale)

	case schemas.ActionWait:
		if err := e.sleep(ctx, time.Duration(action.Duration*float64(time.Second))); err != nil {
			return nil, err
		}
		return &Result{Text: fmt.Sprintf("Waited %gs", action.Duration), AttachView: true}, nil

	default:
		// ParseUIAction closes the set; reaching this is a programming error
		// in a new action kind, not collaborator input.
		return nil, fmt.Errorf("unhandled action kind %q", action.Kind)
	}
}

// ClickDisplay clicks an already display-space coordinate, bypassing scale
// reconciliation. Used for cached named locations.
func (e *Executor) ClickDisplay(ctx context.Context, x, y int) error {
	e.recordClick(x, y)
	if err := e.driver.Click(x, y, ButtonLeft, false); err != nil {
		return schemas.Fatalf(err, "OS input layer rejected click")
	}
	return e.sleep(ctx, e.cfg.SettleDelay)
}

func (e *Executor) executeScroll(ctx context.Context, action schemas.UIAction, scale float64) (*Result, error) {
	x, y := toDisplay(action.Coordinate, scale)
	if err := e.driver.MoveTo(x, y); err != nil {
		return nil, schemas.Fatalf(err, "OS input layer rejected pointer move")
	}

	var dx, dy int
	delta := action.ScrollAmount * scrollStep
	switch action.ScrollDirection {
	case schemas.ScrollUp:
		dy = delta
	case schemas.ScrollDown:
		dy = -delta
	case schemas.ScrollLeft:
		dx = -delta
	case schemas.ScrollRight:
		dx = delta
	}
	if err := e.driver.Scroll(dx, dy); err != nil {
		return nil, schemas.Fatalf(err, "OS input layer rejected scroll")
	}
	e.scrollCount++

	if err := e.sleep(ctx, e.cfg.ScrollSettle); err != nil {
		return nil, err
	}
	return &Result{
		Text:       fmt.Sprintf("Scrolled %s by %d.", action.ScrollDirection, action.ScrollAmount),
		AttachView: true,
	}, nil
}

// executeDrag decomposes a drag into press-move-release with intermediate
// pauses so the target UI's event detection keeps up.
func (e *Executor) executeDrag(ctx context.Context, action schemas.UIAction, scale float64) (*Result, error) {
	startX, startY := toDisplay(action.Start, scale)
	endX, endY := toDisplay(action.Coordinate, scale)

	if err := e.driver.MoveTo(startX, startY); err != nil {
		return nil, schemas.Fatalf(err, "OS input layer rejected pointer move")
	}
	if err := e.sleep(ctx, dragPause); err != nil {
		return nil, err
	}
	if err := e.driver.Toggle(ButtonLeft, true); err != nil {
		return nil, schemas.Fatalf(err, "OS input layer rejected button press")
	}
	if err := e.sleep(ctx, dragPause); err != nil {
		return nil, err
	}
	if err := e.driver.MoveSmooth(endX, endY); err != nil {
		return nil, schemas.Fatalf(err, "OS input layer rejected drag movement")
	}
	if err := e.sleep(ctx, e.cfg.DragDuration); err != nil {
		return nil, err
	}
	if err := e.driver.Toggle(ButtonLeft, false); err != nil {
		return nil, schemas.Fatalf(err, "OS input layer rejected button release")
	}

	// Mark the drop point so the next capture shows where the drag ended.
	e.recordClick(endX, endY)

	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		return nil, err
	}
	return &Result{
		Text: fmt.Sprintf("Dragged from (%d, %d) to (%d, %d) - the red marker shows the end position",
			action.Start.X, action.Start.Y, action.Coordinate.X, action.Coordinate.Y),
		AttachView: true,
	}, nil
}

// sleep pauses without outliving the run context.
func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// splitCombo parses "cmd+shift+r" into the key ("r") and held modifiers.
func splitCombo(combo string) (string, []string) {
	parts := strings.Split(combo, "+")
	if len(parts) == 1 {
		return parts[0], nil
	}
	return parts[len(parts)-1], parts[:len(parts)-1]
}

func verb(kind schemas.UIActionKind) string {
	switch kind {
	case schemas.ActionRightClick:
		return "Right clicked"
	case schemas.ActionDoubleClick:
		return "Double clicked"
	default:
		return "Clicked"
	}
}
