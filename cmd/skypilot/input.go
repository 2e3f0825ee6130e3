// cmd/skypilot/input.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"github.com/mmp/skypilot/flight"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// keyCodes gives the key code, as used by flight.KeyBindings, for each
// ebiten key that flies the aircraft.
var keyCodes = map[ebiten.Key]string{
	ebiten.KeyW:           "KeyW",
	ebiten.KeyS:           "KeyS",
	ebiten.KeyA:           "KeyA",
	ebiten.KeyD:           "KeyD",
	ebiten.KeyQ:           "KeyQ",
	ebiten.KeyE:           "KeyE",
	ebiten.KeyShiftLeft:   "ShiftLeft",
	ebiten.KeyControlLeft: "ControlLeft",
	ebiten.KeyR:           "KeyR",
}

// pollKeys returns the controls held on the keyboard.
func pollKeys() flight.InputState {
	var in flight.InputState
	for key, code := range keyCodes {
		if ebiten.IsKeyPressed(key) {
			in.SetCode(code, true)
		}
	}
	return in
}

// pointerPositions returns the positions of all active touches and of
// the mouse cursor if the left button is down.
func pointerPositions(touchIDs []ebiten.TouchID) [][2]float32 {
	var pts [][2]float32
	for _, id := range touchIDs {
		x, y := ebiten.TouchPosition(id)
		pts = append(pts, [2]float32{float32(x), float32(y)})
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		pts = append(pts, [2]float32{float32(x), float32(y)})
	}
	return pts
}

// merge returns the controls held in either a or b.
func merge(a, b flight.InputState) flight.InputState {
	for c := range flight.NumControls {
		if b.Held(c) {
			a.Set(c, true)
		}
	}
	return a
}

// textEntry collects a line of typed text for the radio.
type textEntry struct {
	active bool
	runes  []rune
}

func (te *textEntry) Open() {
	te.active = true
	te.runes = te.runes[:0]
}

func (te *textEntry) Close() {
	te.active = false
	te.runes = te.runes[:0]
}

func (te *textEntry) String() string {
	return string(te.runes)
}

func (te *textEntry) Insert(r ...rune) {
	te.runes = append(te.runes, r...)
}

func (te *textEntry) Backspace() {
	if n := len(te.runes); n > 0 {
		te.runes = te.runes[:n-1]
	}
}

// update handles this frame's typing. It returns the entered text when
// Enter is pressed; Escape abandons the entry.
func (te *textEntry) update() (string, bool) {
	te.Insert(ebiten.AppendInputChars(nil)...)

	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		te.Backspace()
	} else if d := inpututil.KeyPressDuration(ebiten.KeyBackspace); d > 30 && d%3 == 0 {
		te.Backspace()
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		te.Close()
		return "", false
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter) {
		s := te.String()
		te.Close()
		return s, true
	}
	return "", false
}
