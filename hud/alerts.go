// hud/alerts.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package hud

import (
	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/renderer"
	"github.com/mmp/skypilot/scene"
)

type AlertKind int

const (
	AlertPullUp AlertKind = iota
	AlertImpact
	AlertEngineFailure
)

func (k AlertKind) String() string {
	switch k {
	case AlertPullUp:
		return "pull-up"
	case AlertImpact:
		return "impact"
	case AlertEngineFailure:
		return "engine-failure"
	default:
		return "unknown"
	}
}

type Alert struct {
	Kind AlertKind `json:"kind"`
	Text string    `json:"text"`
}

const (
	// The pull-up warning sounds between these altitudes.
	PullUpFloor   = 10
	PullUpCeiling = 100
	// Touching the ground faster than this is an impact.
	ImpactAirspeed = 5
)

// Alerts returns the warnings that apply to the given state.
func Alerts(s flight.AircraftState) []Alert {
	var a []Alert
	if s.EngineStatus == flight.EngineFailed {
		a = append(a, Alert{Kind: AlertEngineFailure, Text: "ENGINE FAILURE - PRESS [R] TO RESTART"})
	}
	if s.Altitude > PullUpFloor && s.Altitude < PullUpCeiling {
		a = append(a, Alert{Kind: AlertPullUp, Text: "PULL UP!"})
	}
	if s.Altitude <= 0 && s.Airspeed > ImpactAirspeed {
		a = append(a, Alert{Kind: AlertImpact, Text: "CRITICAL IMPACT"})
	}
	return a
}

var (
	pullUpColor       = renderer.RGBFromHex(0xdc2626)
	impactColor       = renderer.RGBFromHex(0xb91c1c)
	impactWashColor   = renderer.RGBAFromUInt8(220, 38, 38, 0.2)
	engineBannerColor = renderer.RGBFromHex(0xef4444)
)

func drawAlerts(cb *renderer.CommandBuffer, alerts []Alert, vp scene.Viewport) {
	c := vp.Center()
	for _, a := range alerts {
		switch a.Kind {
		case AlertEngineFailure:
			const bw, bh = 380, 36
			x := vp.Width - 32 - bw
			cb.FillRect(x, 32, bw, bh, engineBannerColor.Opaque())
			cb.Text(a.Text, [2]float32{x + bw/2, 32 + 23}, renderer.TextStyle{
				Color: renderer.White.Opaque(), Size: labelSize, Align: renderer.AlignCenter})

		case AlertPullUp:
			cb.Text(a.Text, [2]float32{c[0], c[1] + 16}, renderer.TextStyle{
				Color: pullUpColor.Opaque(), Size: 48, Align: renderer.AlignCenter})

		case AlertImpact:
			const bw, bh = 600, 100
			cb.FillRect(0, 0, vp.Width, vp.Height, impactWashColor)
			cb.FillRect(c[0]-bw/2, c[1]-bh/2, bw, bh, renderer.White.RGBA(0.9))
			cb.StrokeRect(c[0]-bw/2, c[1]-bh/2, bw, bh, 4, impactColor.Opaque())
			cb.Text(a.Text, [2]float32{c[0], c[1] + 20}, renderer.TextStyle{
				Color: impactColor.Opaque(), Size: 56, Align: renderer.AlignCenter})
		}
	}
}
