// File: internal/agent/agent.go

// Package agent runs the decision loop: capture a view, consult the reasoning
// collaborator, execute whatever it asked for, feed the results back, repeat
// until the collaborator stops asking or a run bound is hit.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trainingloop/coursepilot/api/schemas"
	"github.com/trainingloop/coursepilot/internal/config"
	"github.com/trainingloop/coursepilot/internal/input"
	"github.com/trainingloop/coursepilot/internal/screen"
)

// State is the terminal condition a run ended in.
type State string

const (
	// StateCompleted: the collaborator returned a turn with zero tool calls,
	// the sole normal-completion signal.
	StateCompleted    State = "COMPLETED_BY_COLLABORATOR"
	StateDeadline     State = "DEADLINE_EXCEEDED"
	StateIterationCap State = "ITERATION_CAP_REACHED"
	StateFatal        State = "FATAL_ERROR"
	StateInterrupted  State = "INTERRUPTED_BY_OPERATOR"
)

// Outcome summarizes a finished run.
type Outcome struct {
	State      State
	Iterations int
	// Err is set only for StateFatal.
	Err error
}

// Agent owns one sequential run. It is strictly single-threaded: one
// outstanding collaborator request at a time, and every dispatched action
// settles fully before the next capture, because input simulation and screen
// capture share the one real display.
type Agent struct {
	collaborator schemas.Collaborator
	capturer     screen.Capturer
	executor     *input.Executor
	toolbox      *Toolbox
	budgeter     Budgeter
	cfg          config.RunConfig
	logger       *zap.Logger
	clock        func() time.Time

	history    []schemas.Message
	frame      *screen.Frame
	iterations int
}

// New assembles an agent over its collaborators.
func New(collab schemas.Collaborator, capturer screen.Capturer, executor *input.Executor, toolbox *Toolbox, cfg config.RunConfig, logger *zap.Logger) *Agent {
	return &Agent{
		collaborator: collab,
		capturer:     capturer,
		executor:     executor,
		toolbox:      toolbox,
		budgeter:     Budgeter{KeepRecent: cfg.KeepRecentViews},
		cfg:          cfg,
		logger:       logger.Named("agent"),
		clock:        time.Now,
	}
}

// Iterations reports how many decision turns ran.
func (a *Agent) Iterations() int {
	return a.iterations
}

// Run executes the decision loop until a terminal state. The returned Outcome
// always describes how the run ended; Outcome.Err carries the cause for
// StateFatal.
func (a *Agent) Run(ctx context.Context) Outcome {
	start := a.clock()
	deadline := start.Add(a.cfg.Duration)
	instructions := buildInstructions(a.cfg, start)

	frame, err := a.captureView(ctx)
	if err != nil {
		return a.finish(StateFatal, err)
	}
	a.frame = frame

	view, err := frame.Base64PNG()
	if err != nil {
		return a.finish(StateFatal, err)
	}
	a.history = append(a.history, schemas.UserMessage(
		schemas.TextBlock("Here is the current state of the training platform. Analyze it and begin working through the training.\n\n"+a.toolbox.ProgressSummary()),
		schemas.PNGBlock(view),
	))

	for {
		// Run bounds are checked once per turn boundary, never mid-action;
		// an action in flight always settles before the loop stops.
		if ctx.Err() != nil {
			return a.finish(StateInterrupted, nil)
		}
		if a.clock().After(deadline) {
			return a.finish(StateDeadline, nil)
		}
		if a.iterations >= a.cfg.MaxIterations {
			return a.finish(StateIterationCap, nil)
		}
		a.iterations++

		a.logger.Info("Turn",
			zap.Int("iteration", a.iterations),
			zap.Duration("remaining", deadline.Sub(a.clock()).Round(time.Second)),
			zap.Int("scrolls", a.executor.ScrollCount()),
		)

		decision, err := a.collaborator.Decide(ctx, schemas.DecisionRequest{
			Instructions: instructions,
			Tools:        a.tools(),
			Messages:     a.budgeter.Trim(a.history),
		})
		if err != nil {
			if ctx.Err() != nil {
				return a.finish(StateInterrupted, nil)
			}
			if schemas.IsFatal(err) {
				return a.finish(StateFatal, err)
			}
			// Transient fault: fold it into history as an observation and let
			// the collaborator route around it. The iteration cap and the
			// deadline are the only bounds on repeated failures.
			a.logger.Warn("Collaborator request failed, continuing", zap.Error(err))
			a.history = append(a.history, schemas.UserText(
				fmt.Sprintf("The previous request failed: %v. Take a screenshot and try again.", err)))
			continue
		}

		if decision.Commentary != "" {
			a.logger.Info("Collaborator", zap.String("commentary", truncate(decision.Commentary, 300)))
		}
		a.history = append(a.history, decision.Message)

		if len(decision.ToolCalls) == 0 {
			return a.finish(StateCompleted, nil)
		}

		results, err := a.dispatch(ctx, decision.ToolCalls)
		if err != nil {
			if ctx.Err() != nil {
				return a.finish(StateInterrupted, nil)
			}
			return a.finish(StateFatal, err)
		}
		// All results of a turn land in one batched message; the collaborator
		// never sees partial per-action results mid-turn.
		a.history = append(a.history, schemas.UserMessage(results...))
	}
}

// tools builds the per-turn operation catalog. The computer tool advertises
// the current frame's resized dimensions, so the collaborator's coordinates
// always refer to the image it was just shown.
func (a *Agent) tools() []schemas.ToolSpec {
	specs := []schemas.ToolSpec{{
		Type:            "computer_20250124",
		Name:            "computer",
		DisplayWidthPX:  a.frame.Width,
		DisplayHeightPX: a.frame.Height,
		DisplayNumber:   1,
	}}
	return append(specs, a.toolbox.Specs()...)
}

// dispatch executes the turn's tool calls in returned order and collects one
// tool_result block per call. A non-nil error aborts the run.
func (a *Agent) dispatch(ctx context.Context, calls []schemas.ToolCall) ([]schemas.ContentBlock, error) {
	results := make([]schemas.ContentBlock, 0, len(calls))
	for _, call := range calls {
		block, err := a.dispatchOne(ctx, call)
		if err != nil {
			return nil, err
		}
		results = append(results, block)
	}
	return results, nil
}

func (a *Agent) dispatchOne(ctx context.Context, call schemas.ToolCall) (schemas.ContentBlock, error) {
	if call.Name == "computer" {
		return a.dispatchComputer(ctx, call)
	}
	if a.toolbox.Handles(call.Name) {
		text, attachView, err := a.toolbox.Dispatch(ctx, call, a.frame)
		if err != nil {
			return schemas.ContentBlock{}, err
		}
		blocks := []schemas.ContentBlock{schemas.TextBlock(text)}
		if attachView {
			viewBlocks, err := a.refreshView(ctx, false)
			if err != nil {
				return schemas.ContentBlock{}, err
			}
			blocks = append(blocks, viewBlocks...)
		}
		return schemas.ToolResultBlock(call.ID, false, blocks...), nil
	}
	return schemas.ToolResultBlock(call.ID, true,
		schemas.TextBlock(fmt.Sprintf("Unknown tool: %s", call.Name))), nil
}

// dispatchComputer validates and executes one UI action. Validation failures
// and executor faults that are not fatal come back as error tool results so
// the collaborator can self-correct.
func (a *Agent) dispatchComputer(ctx context.Context, call schemas.ToolCall) (schemas.ContentBlock, error) {
	action, err := schemas.ParseUIAction(call.Input)
	if err != nil {
		return schemas.ToolResultBlock(call.ID, true,
			schemas.TextBlock(fmt.Sprintf("Invalid action: %v", err))), nil
	}

	beforeHash := a.frame.Hash()
	result, err := a.executor.Execute(ctx, action, a.frame.Scale)
	if err != nil {
		if ctx.Err() != nil || schemas.IsFatal(err) {
			return schemas.ContentBlock{}, err
		}
		return schemas.ToolResultBlock(call.ID, true,
			schemas.TextBlock(fmt.Sprintf("Action failed: %v", err))), nil
	}

	blocks := make([]schemas.ContentBlock, 0, 2)
	text := result.Text
	if result.AttachView {
		viewBlocks, err := a.refreshView(ctx, true)
		if err != nil {
			return schemas.ContentBlock{}, err
		}
		// A scroll that changed nothing usually means the end of the page.
		if action.Kind == schemas.ActionScroll && a.frame.Hash() == beforeHash {
			text += " Screen content unchanged - may be at the end of the page."
		}
		if text != "" {
			blocks = append(blocks, schemas.TextBlock(text))
		}
		blocks = append(blocks, viewBlocks...)
	} else if text != "" {
		blocks = append(blocks, schemas.TextBlock(text))
	}
	return schemas.ToolResultBlock(call.ID, false, blocks...), nil
}

// refreshView captures a fresh frame, replacing the agent's current one, and
// returns it as an image block. When marker is set and a click was recorded,
// the click marker is drawn onto the capture first.
func (a *Agent) refreshView(ctx context.Context, marker bool) ([]schemas.ContentBlock, error) {
	frame, err := a.captureView(ctx)
	if err != nil {
		return nil, err
	}
	if marker {
		if click, ok := a.executor.LastClick(); ok {
			frame.MarkDisplayPoint(click.X, click.Y)
		}
	}
	a.frame = frame

	view, err := frame.Base64PNG()
	if err != nil {
		return nil, err
	}
	return []schemas.ContentBlock{schemas.PNGBlock(view)}, nil
}

func (a *Agent) captureView(ctx context.Context) (*screen.Frame, error) {
	frame, err := a.capturer.Capture(ctx)
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// finish logs the terminal state and assembles the outcome. The progress
// store has already persisted on every mutation; nothing is flushed here.
func (a *Agent) finish(state State, err error) Outcome {
	a.executor.ClearLastClick()
	fields := []zap.Field{
		zap.String("state", string(state)),
		zap.Int("iterations", a.iterations),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	a.logger.Info("Run finished", fields...)
	return Outcome{State: state, Iterations: a.iterations, Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
