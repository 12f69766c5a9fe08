// File: internal/agent/helper_test.go
package agent

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trainingloop/coursepilot/api/schemas"
	"github.com/trainingloop/coursepilot/internal/config"
	"github.com/trainingloop/coursepilot/internal/input"
	"github.com/trainingloop/coursepilot/internal/progress"
	"github.com/trainingloop/coursepilot/internal/screen"
)

// stubDriver accepts every input call without touching the OS.
type stubDriver struct {
	clicks []string
}

func (d *stubDriver) ScreenSize() (int, int) { return 800, 600 }
func (d *stubDriver) Location() (int, int)   { return 0, 0 }
func (d *stubDriver) MoveTo(x, y int) error  { return nil }
func (d *stubDriver) MoveSmooth(x, y int) error {
	return nil
}
func (d *stubDriver) Click(x, y int, button input.Button, double bool) error {
	d.clicks = append(d.clicks, fmt.Sprintf("click(%d,%d,%s,double=%t)", x, y, button, double))
	return nil
}
func (d *stubDriver) Toggle(button input.Button, down bool) error { return nil }
func (d *stubDriver) TypeText(text string) error                  { return nil }
func (d *stubDriver) KeyTap(key string, modifiers ...string) error {
	return nil
}
func (d *stubDriver) Scroll(dx, dy int) error { return nil }

// fakeCapturer produces in-memory frames. Each capture varies one pixel so
// consecutive frames hash differently unless frozen.
type fakeCapturer struct {
	serial int
	frozen bool
	err    error
}

func (c *fakeCapturer) Capture(ctx context.Context) (*screen.Frame, error) {
	if c.err != nil {
		return nil, c.err
	}
	if !c.frozen {
		c.serial++
	}
	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	img.Pix[0] = uint8(c.serial)
	return screen.NewFrame(img, 800, 600, 1_000_000)
}

// scriptedCollaborator replays a fixed sequence of decisions.
type scriptedCollaborator struct {
	script   []func() (*schemas.Decision, error)
	requests []schemas.DecisionRequest
}

func (s *scriptedCollaborator) Decide(ctx context.Context, req schemas.DecisionRequest) (*schemas.Decision, error) {
	s.requests = append(s.requests, req)
	if len(s.script) == 0 {
		return decide(), nil
	}
	next := s.script[0]
	s.script = s.script[1:]
	return next()
}

func (s *scriptedCollaborator) Close() error { return nil }

// decide builds an assistant decision from tool calls; zero calls signals
// completion.
func decide(calls ...schemas.ToolCall) *schemas.Decision {
	content := []schemas.ContentBlock{schemas.TextBlock("working")}
	for _, call := range calls {
		content = append(content, schemas.ContentBlock{
			Type:  schemas.BlockToolUse,
			ID:    call.ID,
			Name:  call.Name,
			Input: call.Input,
		})
	}
	stop := "end_turn"
	if len(calls) > 0 {
		stop = "tool_use"
	}
	return &schemas.Decision{
		Message:    schemas.Message{Role: schemas.RoleAssistant, Content: content},
		ToolCalls:  calls,
		StopReason: stop,
		Commentary: "working",
	}
}

func call(id, name, inputJSON string) schemas.ToolCall {
	return schemas.ToolCall{ID: id, Name: name, Input: []byte(inputJSON)}
}

type testRig struct {
	agent    *Agent
	store    *progress.Store
	driver   *stubDriver
	capturer *fakeCapturer
	toolbox  *Toolbox
}

func newTestRig(t *testing.T, collab schemas.Collaborator, mutate func(*config.RunConfig)) *testRig {
	t.Helper()

	cfg := config.RunConfig{
		Duration:             time.Minute,
		MaxIterations:        50,
		MaxAssessmentRetries: 3,
		KeepRecentViews:      3,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zap.NewNop()
	store := progress.NewStore(filepath.Join(t.TempDir(), "training_progress.json"), logger)
	driver := &stubDriver{}
	executor := input.NewExecutor(driver, config.InputConfig{}, logger)
	toolbox := NewToolbox(store, input.NewLocations(), progress.NewConfusionLog(logger), executor, logger)
	capturer := &fakeCapturer{}

	return &testRig{
		agent:    New(collab, capturer, executor, toolbox, cfg, logger),
		store:    store,
		driver:   driver,
		capturer: capturer,
		toolbox:  toolbox,
	}
}

// testFrame builds a frame with an exact 2.0 scale (400x300 image over an
// 800x600 display).
func testFrame(t *testing.T) *screen.Frame {
	t.Helper()
	frame, err := screen.NewFrame(image.NewRGBA(image.Rect(0, 0, 400, 300)), 800, 600, 1_000_000)
	require.NoError(t, err)
	return frame
}
