// flight/input.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flight

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Control identifies one of the pilot's inputs. Each is either held or
// released; there are no analog axes.
type Control int

const (
	PitchDown Control = iota
	PitchUp
	RollLeft
	RollRight
	YawLeft
	YawRight
	ThrottleUp
	ThrottleDown
	EngineRestart
	NumControls
)

var controlNames = [NumControls]string{
	PitchDown:     "pitch-down",
	PitchUp:       "pitch-up",
	RollLeft:      "roll-left",
	RollRight:     "roll-right",
	YawLeft:       "yaw-left",
	YawRight:      "yaw-right",
	ThrottleUp:    "throttle-up",
	ThrottleDown:  "throttle-down",
	EngineRestart: "restart",
}

func (c Control) String() string {
	if c < 0 || c >= NumControls {
		return fmt.Sprintf("Control(%d)", int(c))
	}
	return controlNames[c]
}

// ParseControl returns the Control with the given name, as returned by
// Control.String.
func ParseControl(s string) (Control, error) {
	if i := slices.Index(controlNames[:], strings.ToLower(s)); i != -1 {
		return Control(i), nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidControl)
}

// KeyBindings maps physical key codes, as reported by browsers'
// KeyboardEvent.code, to the controls they operate.
var KeyBindings = map[string]Control{
	"KeyW":        PitchDown,
	"KeyS":        PitchUp,
	"KeyA":        RollLeft,
	"KeyD":        RollRight,
	"KeyQ":        YawLeft,
	"KeyE":        YawRight,
	"ShiftLeft":   ThrottleUp,
	"ControlLeft": ThrottleDown,
	"KeyR":        EngineRestart,
}

// InputState records which controls are currently held. The zero value
// has nothing held.
type InputState struct {
	held [NumControls]bool
}

func (in *InputState) Set(c Control, down bool) {
	if c >= 0 && c < NumControls {
		in.held[c] = down
	}
}

func (in InputState) Held(c Control) bool {
	return c >= 0 && c < NumControls && in.held[c]
}

// SetCode updates the control bound to the given key code. It returns
// false, leaving the input unchanged, if the code isn't bound.
func (in *InputState) SetCode(code string, down bool) bool {
	c, ok := KeyBindings[code]
	if !ok {
		return false
	}
	in.Set(c, down)
	return true
}

// Any reports whether any control is held.
func (in InputState) Any() bool {
	return slices.Contains(in.held[:], true)
}

// Names returns the names of the held controls; it's used for logging and
// for the JSON form of the input.
func (in InputState) Names() []string {
	var s []string
	for c := range NumControls {
		if in.held[c] {
			s = append(s, c.String())
		}
	}
	return s
}

func (in InputState) MarshalJSON() ([]byte, error) {
	names := in.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}
