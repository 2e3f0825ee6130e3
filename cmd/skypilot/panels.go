// cmd/skypilot/panels.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/intel"
	"github.com/mmp/skypilot/renderer"
	"github.com/mmp/skypilot/scene"
	"github.com/mmp/skypilot/sim"
)

const (
	panelMargin  = 16
	panelPadding = 10
	panelText    = 12
	panelLine    = 16

	missionPanelWidth = 300
	radioPanelWidth   = 380
	radioLines        = 8
	controlsWidth     = 220

	noticeDuration = 4 * time.Second
)

var (
	panelBackground = renderer.RGBAFromUInt8(0, 24, 69, 0.6)
	panelTextColor  = renderer.White.Opaque()
	panelDimColor   = renderer.White.RGBA(0.7)
	panelAccent     = scene.PrimaryColor.Opaque()
	panelWarning    = scene.WarningColor.Opaque()
	panelDanger     = scene.DangerColor.Opaque()
)

// The bitmap font is monospaced with glyphs half as wide as they are
// tall.
func charsPerLine(width, size float32) int {
	return max(1, int(width/(size/2)))
}

// wrapText breaks s into lines of at most n characters, breaking at
// spaces where possible.
func wrapText(s string, n int) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		var line []rune
		for _, word := range strings.Fields(para) {
			w := []rune(word)
			for len(w) > n {
				if len(line) > 0 {
					lines = append(lines, string(line))
					line = nil
				}
				lines = append(lines, string(w[:n]))
				w = w[n:]
			}
			switch {
			case len(line) == 0:
				line = w
			case len(line)+1+len(w) <= n:
				line = append(append(line, ' '), w...)
			default:
				lines = append(lines, string(line))
				line = w
			}
		}
		if len(line) > 0 || len(lines) == 0 {
			lines = append(lines, string(line))
		}
	}
	return lines
}

func textStyle(c renderer.RGBA) renderer.TextStyle {
	return renderer.TextStyle{Color: c, Size: panelText}
}

// textBlock draws lines top-down starting at (x, y) and returns the y
// coordinate below the last one.
func textBlock(cb *renderer.CommandBuffer, lines []string, x, y float32, c renderer.RGBA) float32 {
	for _, l := range lines {
		y += panelLine
		cb.Text(l, [2]float32{x, y}, textStyle(c))
	}
	return y
}

func panelFrame(cb *renderer.CommandBuffer, x, y, w, h float32, border renderer.RGBA) {
	cb.FillRect(x, y, w, h, panelBackground)
	cb.StrokeRect(x, y, w, h, 1, border)
}

type missionView struct {
	Mission *intel.Mission
	Loading bool
	Err     error
}

func missionLines(mv missionView, n int) ([]string, renderer.RGBA) {
	switch {
	case mv.Loading:
		return []string{"Receiving orders..."}, panelDimColor
	case mv.Mission == nil && mv.Err != nil:
		return wrapText("No orders: "+mv.Err.Error()+". Press N to retry.", n), panelWarning
	case mv.Mission == nil:
		return []string{"No orders. Press N to request."}, panelDimColor
	}

	m := mv.Mission
	lines := wrapText(strings.ToUpper(m.Title), n)
	lines = append(lines, wrapText(m.Description, n)...)
	lines = append(lines, wrapText("OBJ: "+m.Objective, n)...)
	if m.Completed {
		lines = append(lines, "COMPLETE")
	}
	return lines, panelTextColor
}

// drawMissionPanel draws the current orders in the top right corner.
func drawMissionPanel(cb *renderer.CommandBuffer, vp scene.Viewport, mv missionView) {
	x := vp.Width - missionPanelWidth - panelMargin
	y := float32(panelMargin)
	n := charsPerLine(missionPanelWidth-2*panelPadding, panelText)

	lines, c := missionLines(mv, n)
	h := float32(len(lines)+1)*panelLine + 2*panelPadding

	panelFrame(cb, x, y, missionPanelWidth, h, panelAccent)
	ty := textBlock(cb, []string{"MISSION ORDERS"}, x+panelPadding, y+panelPadding-4, panelAccent)
	textBlock(cb, lines, x+panelPadding, ty, c)
}

type radioView struct {
	Transcript []intel.Message
	Typing     bool
	Entering   bool
	Entry      string
}

// transcriptLines formats the tail of the transcript to fit in the panel.
func transcriptLines(rv radioView, n, maxLines int) []string {
	var lines []string
	for _, m := range rv.Transcript {
		lines = append(lines, wrapText(m.Role.Speaker()+": "+m.Content, n)...)
	}
	if rv.Typing {
		lines = append(lines, "Control is typing...")
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

// drawRadioPanel draws the radio transcript and the entry line in the
// bottom left corner.
func drawRadioPanel(cb *renderer.CommandBuffer, vp scene.Viewport, rv radioView) {
	n := charsPerLine(radioPanelWidth-2*panelPadding, panelText)
	lines := transcriptLines(rv, n, radioLines)

	h := float32(radioLines+2)*panelLine + 2*panelPadding
	x, y := float32(panelMargin), vp.Height-h-panelMargin

	border := panelDimColor
	if rv.Entering {
		border = panelAccent
	}
	panelFrame(cb, x, y, radioPanelWidth, h, border)
	ty := textBlock(cb, []string{"RADIO"}, x+panelPadding, y+panelPadding-4, panelAccent)
	textBlock(cb, lines, x+panelPadding, ty, panelTextColor)

	prompt := "T: talk to Control"
	if rv.Entering {
		prompt = "> " + rv.Entry + "_"
		if r := []rune(prompt); len(r) > n {
			prompt = string(r[len(r)-n:])
		}
	}
	cb.Text(prompt, [2]float32{x + panelPadding, y + h - panelPadding}, textStyle(panelAccent))
}

var controlsHelp = []string{
	"W/S    pitch",
	"A/D    roll",
	"Q/E    yaw",
	"SHIFT  throttle up",
	"CTRL   throttle down",
	"R      restart engine",
	"N      new orders",
	"T      radio",
}

func drawControls(cb *renderer.CommandBuffer, vp scene.Viewport) {
	h := float32(len(controlsHelp))*panelLine + 2*panelPadding
	x, y := vp.Width-controlsWidth-panelMargin, vp.Height-h-panelMargin

	panelFrame(cb, x, y, controlsWidth, h, panelDimColor)
	textBlock(cb, controlsHelp, x+panelPadding, y+panelPadding-4, panelDimColor)
}

// notice is a transient message shown below the heading readout.
type notice struct {
	Text  string
	Color renderer.RGBA
	Until time.Time
}

// noticeFor returns the notice to show for an event, if any. Crashes
// and radio traffic are already visible elsewhere.
func noticeFor(ev sim.Event) (notice, bool) {
	switch ev.Type {
	case sim.EngineStatusChangedEvent:
		switch ev.To {
		case flight.EngineWarning:
			return notice{Text: "ENGINE OVERSTRESS", Color: panelWarning}, true
		case flight.EngineFailed:
			return notice{Text: "ENGINE FAILURE", Color: panelDanger}, true
		case flight.EngineRunning:
			return notice{Text: "ENGINE NORMAL", Color: panelAccent}, true
		}
	case sim.EngineRestartedEvent:
		return notice{Text: "ENGINE RESTARTED", Color: panelAccent}, true
	case sim.MissionUpdatedEvent:
		if ev.Mission != nil {
			return notice{Text: fmt.Sprintf("NEW ORDERS: %s", strings.ToUpper(ev.Mission.Title)), Color: panelAccent}, true
		}
	}
	return notice{}, false
}

func drawNotices(cb *renderer.CommandBuffer, vp scene.Viewport, notices []notice) {
	y := float32(80)
	for _, n := range notices {
		cb.Text(n.Text, [2]float32{vp.Width / 2, y}, renderer.TextStyle{Color: n.Color, Size: 16, Align: renderer.AlignCenter})
		y += 22
	}
}

// pad is an on-screen button for touch and mouse input.
type pad struct {
	Control    flight.Control
	Label      string
	X, Y, W, H float32
}

func (p pad) Contains(x, y float32) bool {
	return x >= p.X && x < p.X+p.W && y >= p.Y && y < p.Y+p.H
}

const padSize = 48

// layoutPads places the stick pads above the radio panel and the
// throttle pads above the controls help.
func layoutPads(vp scene.Viewport) []pad {
	const s, g = padSize, 6
	radioTop := vp.Height - panelMargin - (float32(radioLines+2)*panelLine + 2*panelPadding)
	controlsTop := vp.Height - panelMargin - (float32(len(controlsHelp))*panelLine + 2*panelPadding)

	// Stick: a plus of pitch and roll with yaw on the bottom corners.
	cx, by := float32(panelMargin)+s+g, radioTop-g-s
	stick := []pad{
		{flight.PitchDown, "W", cx, by - 2*(s+g), s, s},
		{flight.RollLeft, "A", cx - s - g, by - (s + g), s, s},
		{flight.RollRight, "D", cx + s + g, by - (s + g), s, s},
		{flight.PitchUp, "S", cx, by - (s + g), s, s},
		{flight.YawLeft, "Q", cx - s - g, by, s, s},
		{flight.YawRight, "E", cx + s + g, by, s, s},
	}

	rx, ry := vp.Width-panelMargin-s, controlsTop-g-s
	throttle := []pad{
		{flight.ThrottleUp, "+", rx, ry - 2*(s+g), s, s},
		{flight.ThrottleDown, "-", rx, ry - (s + g), s, s},
		{flight.EngineRestart, "R", rx, ry, s, s},
	}

	return append(stick, throttle...)
}

// heldPads returns the controls whose pads contain any of the points.
func heldPads(pads []pad, points [][2]float32) flight.InputState {
	var in flight.InputState
	for _, p := range pads {
		for _, pt := range points {
			if p.Contains(pt[0], pt[1]) {
				in.Set(p.Control, true)
			}
		}
	}
	return in
}

func drawPads(cb *renderer.CommandBuffer, pads []pad, held flight.InputState) {
	for _, p := range pads {
		bg := panelBackground
		if held.Held(p.Control) {
			bg = scene.PrimaryColor.RGBA(0.8)
		}
		cb.FillRect(p.X, p.Y, p.W, p.H, bg)
		cb.StrokeRect(p.X, p.Y, p.W, p.H, 1, panelDimColor)
		cb.Text(p.Label, [2]float32{p.X + p.W/2, p.Y + p.H/2 + 8},
			renderer.TextStyle{Color: panelTextColor, Size: 16, Align: renderer.AlignCenter})
	}
}
