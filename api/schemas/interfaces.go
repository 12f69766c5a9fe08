// File: api/schemas/interfaces.go
package schemas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ToolSpec describes one operation in the catalog sent to the collaborator
// every turn. Built-in tools (the computer tool) set Type and the display
// dimensions; custom bookkeeping tools set Description and InputSchema.
type ToolSpec struct {
	Type            string          `json:"type,omitempty"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	InputSchema     json.RawMessage `json:"input_schema,omitempty"`
	DisplayWidthPX  int             `json:"display_width_px,omitempty"`
	DisplayHeightPX int             `json:"display_height_px,omitempty"`
	DisplayNumber   int             `json:"display_number,omitempty"`
}

// ToolCall is one structured action request extracted from a collaborator
// response.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// DecisionRequest is everything the collaborator sees for one turn: the
// static operating instructions, the operation catalog, and the ordered
// history (whose most recent entry carries the current view).
type DecisionRequest struct {
	Instructions string
	Tools        []ToolSpec
	Messages     []Message
}

// Decision is the collaborator's answer for one turn. Zero ToolCalls is the
// normal-completion signal for the decision loop.
type Decision struct {
	// Message is the raw assistant message, appended verbatim to history.
	Message Message
	// ToolCalls are the tool_use blocks of Message, in returned order.
	ToolCalls []ToolCall
	// StopReason as reported by the collaborator ("tool_use", "end_turn", ...).
	StopReason string
	// Commentary is the concatenated natural-language text, for logging.
	Commentary string
}

// Collaborator is the external vision-and-language decision service consulted
// each turn. It is a black box: the loop only guarantees that whatever it
// returns is faithfully executed and accounted for.
type Collaborator interface {
	Decide(ctx context.Context, req DecisionRequest) (*Decision, error)
	Close() error
}

// FatalError marks faults the decision loop must not route around: denied OS
// permissions, rejected credentials, OS-level input failure. Everything else
// is transient and becomes an error observation in history.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatalf wraps err as a FatalError with a formatted reason.
func Fatalf(err error, format string, args ...any) error {
	return &FatalError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
