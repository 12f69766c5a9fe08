// File: internal/input/driver.go
package input

import (
	"github.com/go-vgo/robotgo"
)

// Button identifies a pointer button.
type Button string

const (
	ButtonLeft  Button = "left"
	ButtonRight Button = "right"
)

// Driver abstracts the OS input layer so executor logic can be tested without
// touching the real pointer and keyboard. The production implementation wraps
// robotgo; side effects are irreversible and not transactional.
type Driver interface {
	// ScreenSize returns the pointer coordinate space dimensions.
	ScreenSize() (int, int)
	// Location returns the current pointer position.
	Location() (int, int)
	// MoveTo warps the pointer to display coordinates.
	MoveTo(x, y int) error
	// MoveSmooth moves the pointer along an interpolated path, used during
	// drags so the target UI registers intermediate move events.
	MoveSmooth(x, y int) error
	// Click presses and releases a button at display coordinates.
	Click(x, y int, button Button, double bool) error
	// Toggle presses (down=true) or releases a button at the current position.
	Toggle(button Button, down bool) error
	// TypeText types a string through the OS keyboard layer.
	TypeText(text string) error
	// KeyTap presses a single key with optional modifiers held.
	KeyTap(key string, modifiers ...string) error
	// Scroll scrolls by wheel deltas; positive y scrolls up, positive x right.
	Scroll(dx, dy int) error
}

// RobotgoDriver is the production Driver.
type RobotgoDriver struct{}

// NewRobotgoDriver returns the OS-backed input driver.
func NewRobotgoDriver() *RobotgoDriver {
	return &RobotgoDriver{}
}

var _ Driver = (*RobotgoDriver)(nil)

func (d *RobotgoDriver) ScreenSize() (int, int) {
	return robotgo.GetScreenSize()
}

func (d *RobotgoDriver) Location() (int, int) {
	return robotgo.Location()
}

func (d *RobotgoDriver) MoveTo(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (d *RobotgoDriver) MoveSmooth(x, y int) error {
	robotgo.MoveSmooth(x, y)
	return nil
}

func (d *RobotgoDriver) Click(x, y int, button Button, double bool) error {
	robotgo.Move(x, y)
	robotgo.Click(string(button), double)
	return nil
}

func (d *RobotgoDriver) Toggle(button Button, down bool) error {
	direction := "up"
	if down {
		direction = "down"
	}
	return robotgo.Toggle(string(button), direction)
}

func (d *RobotgoDriver) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}

func (d *RobotgoDriver) KeyTap(key string, modifiers ...string) error {
	args := make([]interface{}, len(modifiers))
	for i, m := range modifiers {
		args[i] = m
	}
	return robotgo.KeyTap(key, args...)
}

func (d *RobotgoDriver) Scroll(dx, dy int) error {
	robotgo.Scroll(dx, dy)
	return nil
}
