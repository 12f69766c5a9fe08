// File: api/schemas/actions.go
package schemas

import (
	"encoding/json"
	"fmt"
)

// UIActionKind enumerates the closed set of screen-control actions the
// collaborator may request. Anything outside this set is rejected at the
// boundary instead of deep inside execution.
type UIActionKind string

const (
	ActionScreenshot  UIActionKind = "screenshot"
	ActionLeftClick   UIActionKind = "left_click"
	ActionRightClick  UIActionKind = "right_click"
	ActionDoubleClick UIActionKind = "double_click"
	ActionMouseMove   UIActionKind = "mouse_move"
	ActionType        UIActionKind = "type"
	ActionKey         UIActionKind = "key"
	ActionScroll      UIActionKind = "scroll"
	ActionDrag        UIActionKind = "left_click_drag"
	ActionWait        UIActionKind = "wait"
)

// ScrollDirection constrains scroll requests to the four axes.
type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// Point is a coordinate pair. Inside a UIAction it is expressed in
// resized-image space; the executor owns the conversion to display space.
type Point struct {
	X int
	Y int
}

// UIAction is the validated, strongly-typed form of a screen-control request.
// It is transient: produced per turn, consumed immediately, never persisted.
type UIAction struct {
	Kind UIActionKind

	// Coordinate is the target for clicks, moves and scrolls, and the end
	// point of a drag.
	Coordinate Point
	// Start is the origin of a drag.
	Start Point

	// Text holds the text to type, or the key combo for key presses.
	Text string

	ScrollDirection ScrollDirection
	ScrollAmount    int

	// Duration is the wait time in seconds.
	Duration float64
}

const (
	defaultScrollAmount = 3
	maxWaitSeconds      = 30
)

// uiActionWire mirrors the loosely-typed tool input produced by the
// collaborator's computer tool.
type uiActionWire struct {
	Action          string   `json:"action"`
	Coordinate      []int    `json:"coordinate"`
	StartCoordinate []int    `json:"start_coordinate"`
	Text            string   `json:"text"`
	ScrollDirection string   `json:"scroll_direction"`
	ScrollAmount    *int     `json:"scroll_amount"`
	Duration        *float64 `json:"duration"`
}

func pointFrom(coord []int, field string) (Point, error) {
	if len(coord) != 2 {
		return Point{}, fmt.Errorf("%s must be a [x, y] pair, got %v", field, coord)
	}
	if coord[0] < 0 || coord[1] < 0 {
		return Point{}, fmt.Errorf("%s must be non-negative, got (%d, %d)", field, coord[0], coord[1])
	}
	return Point{X: coord[0], Y: coord[1]}, nil
}

// ParseUIAction validates raw computer-tool input into a UIAction. It is the
// single choke point where the collaborator's untyped payloads enter the
// typed world.
func ParseUIAction(raw json.RawMessage) (UIAction, error) {
	var wire uiActionWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return UIAction{}, fmt.Errorf("malformed computer action payload: %w", err)
	}

	action := UIAction{Kind: UIActionKind(wire.Action)}

	switch action.Kind {
	case ActionScreenshot:
		return action, nil

	case ActionLeftClick, ActionRightClick, ActionDoubleClick, ActionMouseMove:
		pt, err := pointFrom(wire.Coordinate, "coordinate")
		if err != nil {
			return UIAction{}, err
		}
		action.Coordinate = pt
		return action, nil

	case ActionDrag:
		start, err := pointFrom(wire.StartCoordinate, "start_coordinate")
		if err != nil {
			return UIAction{}, err
		}
		end, err := pointFrom(wire.Coordinate, "coordinate")
		if err != nil {
			return UIAction{}, err
		}
		action.Start = start
		action.Coordinate = end
		return action, nil

	case ActionType, ActionKey:
		if wire.Text == "" {
			return UIAction{}, fmt.Errorf("%s action requires non-empty text", wire.Action)
		}
		action.Text = wire.Text
		return action, nil

	case ActionScroll:
		pt, err := pointFrom(wire.Coordinate, "coordinate")
		if err != nil {
			return UIAction{}, err
		}
		action.Coordinate = pt

		dir := ScrollDirection(wire.ScrollDirection)
		if dir == "" {
			dir = ScrollDown
		}
		switch dir {
		case ScrollUp, ScrollDown, ScrollLeft, ScrollRight:
			action.ScrollDirection = dir
		default:
			return UIAction{}, fmt.Errorf("invalid scroll_direction %q", wire.ScrollDirection)
		}

		amount := defaultScrollAmount
		if wire.ScrollAmount != nil {
			amount = *wire.ScrollAmount
		}
		if amount <= 0 {
			return UIAction{}, fmt.Errorf("scroll_amount must be positive, got %d", amount)
		}
		action.ScrollAmount = amount
		return action, nil

	case ActionWait:
		duration := 1.0
		if wire.Duration != nil {
			duration = *wire.Duration
		}
		if duration <= 0 || duration > maxWaitSeconds {
			return UIAction{}, fmt.Errorf("wait duration must be in (0, %d] seconds, got %g", maxWaitSeconds, duration)
		}
		action.Duration = duration
		return action, nil

	default:
		return UIAction{}, fmt.Errorf("unknown computer action %q", wire.Action)
	}
}

// String renders a compact human-readable form for logs and tool results.
func (a UIAction) String() string {
	switch a.Kind {
	case ActionLeftClick, ActionRightClick, ActionDoubleClick, ActionMouseMove:
		return fmt.Sprintf("%s(%d, %d)", a.Kind, a.Coordinate.X, a.Coordinate.Y)
	case ActionDrag:
		return fmt.Sprintf("%s(%d, %d -> %d, %d)", a.Kind, a.Start.X, a.Start.Y, a.Coordinate.X, a.Coordinate.Y)
	case ActionType:
		text := a.Text
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		return fmt.Sprintf("type(%q)", text)
	case ActionKey:
		return fmt.Sprintf("key(%s)", a.Text)
	case ActionScroll:
		return fmt.Sprintf("scroll(%s x%d at %d, %d)", a.ScrollDirection, a.ScrollAmount, a.Coordinate.X, a.Coordinate.Y)
	case ActionWait:
		return fmt.Sprintf("wait(%gs)", a.Duration)
	default:
		return string(a.Kind)
	}
}
