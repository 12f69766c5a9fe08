// File: internal/agent/toolbox.go
package agent

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/trainingloop/coursepilot/api/schemas"
	"github.com/trainingloop/coursepilot/internal/input"
	"github.com/trainingloop/coursepilot/internal/progress"
	"github.com/trainingloop/coursepilot/internal/screen"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Toolbox dispatches the bookkeeping operations exposed to the collaborator
// alongside UI control. Faulty inputs (unknown cached name, missing field)
// come back as descriptive error text rather than Go errors; the collaborator
// is expected to read the text and self-correct.
type Toolbox struct {
	store     *progress.Store
	locations *input.Locations
	confusion *progress.ConfusionLog
	executor  *input.Executor
	logger    *zap.Logger
}

// NewToolbox wires the bookkeeping operations to their backing state.
func NewToolbox(store *progress.Store, locations *input.Locations, confusion *progress.ConfusionLog, executor *input.Executor, logger *zap.Logger) *Toolbox {
	return &Toolbox{
		store:     store,
		locations: locations,
		confusion: confusion,
		executor:  executor,
		logger:    logger.Named("toolbox"),
	}
}

// Specs returns the bookkeeping tool catalog sent to the collaborator.
func (t *Toolbox) Specs() []schemas.ToolSpec {
	return []schemas.ToolSpec{
		{
			Name:        "mark_video_watched",
			Description: "Mark a training video as watched after it finishes playing.",
			InputSchema: schemaObject(`{
				"module_id": {"type": "string", "description": "Stable module identifier"},
				"module_name": {"type": "string", "description": "Human-readable module name"}
			}`, "module_id"),
		},
		{
			Name:        "record_assessment_result",
			Description: "Record an assessment attempt after seeing the results screen.",
			InputSchema: schemaObject(`{
				"module_id": {"type": "string", "description": "Stable module identifier"},
				"passed": {"type": "boolean", "description": "Whether the assessment passed"},
				"questions_total": {"type": "integer", "description": "Total questions"},
				"questions_correct": {"type": "integer", "description": "Correct answers"}
			}`, "module_id", "passed"),
		},
		{
			Name:        "get_progress",
			Description: "Get the training progress summary.",
			InputSchema: schemaObject(`{}`),
		},
		{
			Name:        "get_failed_assessments",
			Description: "List failed assessments that need another attempt.",
			InputSchema: schemaObject(`{}`),
		},
		{
			Name:        "cache_action",
			Description: "Remember a UI element's coordinates under a name for reuse.",
			InputSchema: schemaObject(`{
				"action_name": {"type": "string", "description": "Name for the cached location"},
				"x": {"type": "integer", "description": "X coordinate on the screenshot"},
				"y": {"type": "integer", "description": "Y coordinate on the screenshot"}
			}`, "action_name", "x", "y"),
		},
		{
			Name:        "use_cached_action",
			Description: "Click a previously cached location by name.",
			InputSchema: schemaObject(`{
				"action_name": {"type": "string", "description": "Cached location name"}
			}`, "action_name"),
		},
		{
			Name:        "list_cached_actions",
			Description: "List all cached UI locations.",
			InputSchema: schemaObject(`{}`),
		},
		{
			Name:        "note_confusion",
			Description: "Log a confusing or broken part of the platform.",
			InputSchema: schemaObject(`{
				"description": {"type": "string", "description": "What was confusing"},
				"location": {"type": "string", "description": "Where it occurred"},
				"severity": {"type": "string", "enum": ["minor", "moderate", "blocking"]}
			}`, "description"),
		},
	}
}

// Handles reports whether name is one of the bookkeeping operations.
func (t *Toolbox) Handles(name string) bool {
	switch name {
	case "mark_video_watched", "record_assessment_result", "get_progress",
		"get_failed_assessments", "cache_action", "use_cached_action",
		"list_cached_actions", "note_confusion":
		return true
	}
	return false
}

// ProgressSummary exposes the store summary for instructions and shutdown.
func (t *Toolbox) ProgressSummary() string {
	return t.store.Summary()
}

// Dispatch runs one bookkeeping call. The frame supplies the scale needed to
// pin cached locations in display space. attachView is set when the call
// physically changed the screen and the result should carry a fresh capture.
func (t *Toolbox) Dispatch(ctx context.Context, call schemas.ToolCall, frame *screen.Frame) (text string, attachView bool, err error) {
	t.logger.Info("Bookkeeping call", zap.String("tool", call.Name))

	switch call.Name {
	case "mark_video_watched":
		var in struct {
			ModuleID   string `json:"module_id"`
			ModuleName string `json:"module_name"`
		}
		if msg, ok := decode(call.Input, &in); !ok {
			return msg, false, nil
		}
		if in.ModuleID == "" {
			return "Error: module_id is required", false, nil
		}
		m := t.store.GetOrCreate(in.ModuleID, in.ModuleName)
		t.store.MarkVideoWatched(in.ModuleID)
		return fmt.Sprintf("Video marked as watched for module: %s", m.ModuleName), false, nil

	case "record_assessment_result":
		var in struct {
			ModuleID         string `json:"module_id"`
			Passed           bool   `json:"passed"`
			QuestionsTotal   int    `json:"questions_total"`
			QuestionsCorrect int    `json:"questions_correct"`
		}
		if msg, ok := decode(call.Input, &in); !ok {
			return msg, false, nil
		}
		if in.ModuleID == "" {
			return "Error: module_id is required", false, nil
		}
		t.store.RecordAttempt(in.ModuleID, in.Passed, in.QuestionsTotal, in.QuestionsCorrect)
		status := "FAILED"
		if in.Passed {
			status = "PASSED"
		}
		return fmt.Sprintf("Assessment result recorded: %s (%d/%d)", status, in.QuestionsCorrect, in.QuestionsTotal), false, nil

	case "get_progress":
		return t.store.Summary(), false, nil

	case "get_failed_assessments":
		failed := t.store.FailedNeedingRetry()
		if len(failed) == 0 {
			return "No failed assessments. All completed assessments have passed!", false, nil
		}
		var b strings.Builder
		b.WriteString("Failed assessments that need retry:\n")
		for _, item := range failed {
			fmt.Fprintf(&b, "  - %s (ID: %s, attempts: %d)\n", item.Name, item.ID, item.Attempts)
		}
		return b.String(), false, nil

	case "cache_action":
		var in struct {
			ActionName string `json:"action_name"`
			X          int    `json:"x"`
			Y          int    `json:"y"`
		}
		if msg, ok := decode(call.Input, &in); !ok {
			return msg, false, nil
		}
		if in.ActionName == "" {
			return "Error: action_name is required", false, nil
		}
		// Pin the location in display space so it stays valid even if a
		// later capture resizes differently.
		x, y := frame.ToDisplay(schemas.Point{X: in.X, Y: in.Y})
		t.locations.Put(in.ActionName, x, y)
		return fmt.Sprintf("Cached location '%s' at (%d, %d)", in.ActionName, in.X, in.Y), false, nil

	case "use_cached_action":
		var in struct {
			ActionName string `json:"action_name"`
		}
		if msg, ok := decode(call.Input, &in); !ok {
			return msg, false, nil
		}
		pt, ok := t.locations.Get(in.ActionName)
		if !ok {
			return fmt.Sprintf("Error: No cached action named '%s'. Available: %s",
				in.ActionName, strings.Join(t.locations.Names(), ", ")), false, nil
		}
		if err := t.executor.ClickDisplay(ctx, pt.X, pt.Y); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Clicked cached location '%s'.", in.ActionName), true, nil

	case "list_cached_actions":
		names := t.locations.Names()
		if len(names) == 0 {
			return "No cached actions yet.", false, nil
		}
		var b strings.Builder
		b.WriteString("Cached UI locations:\n")
		for _, name := range names {
			pt, _ := t.locations.Get(name)
			fmt.Fprintf(&b, "  - %s: (%d, %d)\n", name, pt.X, pt.Y)
		}
		return b.String(), false, nil

	case "note_confusion":
		var in struct {
			Description string `json:"description"`
			Location    string `json:"location"`
			Severity    string `json:"severity"`
		}
		if msg, ok := decode(call.Input, &in); !ok {
			return msg, false, nil
		}
		if in.Description == "" {
			return "Error: description is required", false, nil
		}
		t.confusion.Note(in.Description, in.Location, progress.Severity(in.Severity))
		return fmt.Sprintf("Confusion noted: %s", in.Description), false, nil

	default:
		return fmt.Sprintf("Unknown tool: %s", call.Name), false, nil
	}
}

// decode unmarshals a tool payload, turning malformed input into error text
// for the collaborator.
func decode(raw []byte, out any) (string, bool) {
	if len(raw) == 0 {
		return "", true
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Sprintf("Error: malformed tool input: %v", err), false
	}
	return "", true
}

// schemaObject assembles a JSON schema for an object tool input.
func schemaObject(properties string, required ...string) []byte {
	req := "[]"
	if len(required) > 0 {
		req = `["` + strings.Join(required, `", "`) + `"]`
	}
	return []byte(fmt.Sprintf(`{"type": "object", "properties": %s, "required": %s}`, properties, req))
}
