// hud/hud.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package hud draws the heads-up display: the instruments overlaid on the
// outside view. Everything is derived from the aircraft state passed in;
// the HUD keeps no state of its own between frames.
package hud

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/math"
	"github.com/mmp/skypilot/renderer"
	"github.com/mmp/skypilot/scene"
)

const (
	ReticleRadius = 40

	TapeWidth  = 60
	TapeHeight = 300
	TapeInset  = 40 // speed tape from the left edge
	TapeMargin = 100

	// The attitude ladder has a rung every 10 degrees. Rungs are offset
	// by LadderSpread pixels per degree of rung value and shifted by
	// LadderPitch pixels per radian of pitch; only those within
	// LadderExtent of the center are drawn.
	LadderStep   = 10
	LadderSpread = 20
	LadderPitch  = 200
	LadderExtent = 150

	StressBarWidth = 100
	// Stress levels at which the stress bar changes color.
	StressWarning = 40
	StressDanger  = 70

	lineWidth     = 2
	thinLineWidth = 1
	labelSize     = 14
	ladderSize    = 10
	engineSize    = 12
)

func style(c renderer.RGBA, size float32) renderer.TextStyle {
	return renderer.TextStyle{Color: c, Size: size}
}

// HeadingDegrees converts yaw in radians to a compass heading in [0,360).
func HeadingDegrees(yaw float32) float32 {
	return math.NormalizeHeading(math.Degrees(yaw))
}

// Draw adds the HUD for the given state to the command buffer, followed by
// banners for any active alerts.
func Draw(cb *renderer.CommandBuffer, s flight.AircraftState, vp scene.Viewport) {
	drawReticle(cb, vp)
	drawTapes(cb, s, vp)
	drawLadder(cb, s, vp)
	drawThrottle(cb, s, vp)
	drawEngine(cb, s)
	cb.Text(fmt.Sprintf("HDG: %.0f°", HeadingDegrees(s.Rotation.Y)), [2]float32{vp.Width/2 - 40, 40},
		style(scene.HUDColor, labelSize))

	drawAlerts(cb, Alerts(s), vp)
}

func drawReticle(cb *renderer.CommandBuffer, vp scene.Viewport) {
	c := vp.Center()
	cb.StrokeCircle(c, ReticleRadius, lineWidth, scene.HUDColor)
	for _, d := range [][2]float32{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		cb.StrokeLine(math.Add2f(c, math.Scale2f(d, 60)), math.Add2f(c, math.Scale2f(d, 20)), lineWidth, scene.HUDColor)
	}
}

func drawTapes(cb *renderer.CommandBuffer, s flight.AircraftState, vp scene.Viewport) {
	top := vp.Height/2 - TapeHeight/2
	st := style(scene.HUDColor, labelSize)

	altX := vp.Width - TapeMargin
	cb.StrokeRect(altX, top, TapeWidth, TapeHeight, lineWidth, scene.HUDColor)
	cb.Text("ALT", [2]float32{altX + 15, top - 10}, st)
	cb.Text(fmt.Sprintf("%.0f FT", s.Altitude), [2]float32{altX - 10, top + TapeHeight + 25}, st)

	spdX := float32(TapeInset)
	cb.StrokeRect(spdX, top, TapeWidth, TapeHeight, lineWidth, scene.HUDColor)
	cb.Text("SPD", [2]float32{spdX + 15, top - 10}, st)
	cb.Text(fmt.Sprintf("%.1f KTS", s.Airspeed), [2]float32{spdX - 10, top + TapeHeight + 25}, st)
}

// LadderRungs returns the pitch values of the rungs visible for the
// given pitch, along with their y offsets from the center of the HUD.
func LadderRungs(pitch float32) (rungs []int, ys []float32) {
	offset := -pitch * LadderPitch
	for p := -90; p <= 90; p += LadderStep {
		y := offset + float32(p)*LadderSpread
		if math.Abs(y) < LadderExtent {
			rungs = append(rungs, p)
			ys = append(ys, y)
		}
	}
	return
}

func drawLadder(cb *renderer.CommandBuffer, s flight.AircraftState, vp scene.Viewport) {
	c := vp.Center()
	cb.PushTransform(math.Identity3x3().Translate(c[0], c[1]).Rotate(s.Rotation.Z))
	defer cb.PopTransform()

	st := style(scene.HUDColor, ladderSize)
	rungs, ys := LadderRungs(s.Rotation.X)
	for i, p := range rungs {
		y := ys[i]
		cb.StrokeLine([2]float32{-30, y}, [2]float32{30, y}, thinLineWidth, scene.HUDColor)
		label := strconv.Itoa(p)
		cb.Text(label, [2]float32{35, y + 4}, st)
		cb.Text(label, [2]float32{-50, y + 4}, st)
	}
}

func drawThrottle(cb *renderer.CommandBuffer, s flight.AircraftState, vp scene.Viewport) {
	h := vp.Height
	cb.Text("PWR", [2]float32{40, h - 100}, style(scene.HUDColor, labelSize))
	cb.StrokeRect(40, h-90, 20, 50, lineWidth, scene.HUDColor)
	cb.FillRect(40, h-40, 20, -s.Throttle*50, scene.HUDColor)
}

// StatusColor returns the color used to show the engine status.
func StatusColor(status flight.EngineStatus) renderer.RGBA {
	switch status {
	case flight.EngineWarning:
		return scene.WarningColor.Opaque()
	case flight.EngineFailed:
		return scene.DangerColor.Opaque()
	default:
		return scene.HUDColor
	}
}

// StressColor returns the fill color for the stress bar.
func StressColor(stress float32) renderer.RGBA {
	if stress > StressDanger {
		return scene.DangerColor.Opaque()
	} else if stress > StressWarning {
		return scene.WarningColor.Opaque()
	}
	return scene.PrimaryColor.Opaque()
}

func drawEngine(cb *renderer.CommandBuffer, s flight.AircraftState) {
	const x, y = 40, 120
	cb.Text("ENGINE STATUS", [2]float32{x, y}, style(scene.HUDColor, engineSize))
	cb.Text(strings.ToUpper(s.EngineStatus.String()), [2]float32{x, y + 20},
		style(StatusColor(s.EngineStatus), engineSize))

	cb.StrokeRect(x, y+30, StressBarWidth, 8, lineWidth, renderer.Black.RGBA(0.1))
	// The bar is as many pixels long as the stress value, limited to the
	// width of its frame.
	cb.FillRect(x, y+30, math.Clamp(s.EngineStress, 0, StressBarWidth), 8, StressColor(s.EngineStress))
}
