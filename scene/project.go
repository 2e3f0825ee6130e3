// scene/project.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package scene turns the landmark field into screen-space drawables
// relative to the aircraft and paints them, back to front, over the sky
// and ground.
package scene

import (
	"slices"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/math"
	"github.com/mmp/skypilot/world"
)

const (
	// ViewDistance is the perspective scale factor: a landmark at this
	// depth is drawn at its true size.
	ViewDistance = 1200
	// NearClip is the depth at or below which landmarks are discarded.
	NearClip = 10
	// HorizonPitchScale converts pitch in radians to the horizon's pixel
	// offset from the center of the screen.
	HorizonPitchScale = 300
	// CullFactor times the viewport width bounds |ScreenX| for landmarks
	// to be drawn.
	CullFactor = 1.5
	// WindowScaleThreshold is the scale above which building windows
	// are drawn.
	WindowScaleThreshold = 0.4
)

type Viewport struct {
	Width, Height float32
}

func (vp Viewport) Center() [2]float32 {
	return [2]float32{vp.Width / 2, vp.Height / 2}
}

// Projected is a landmark placed in camera space and on the screen.
// Screen coordinates are relative to the center of the viewport before
// the roll rotation is applied.
type Projected struct {
	Landmark world.Landmark
	// Camera space: RX is lateral offset and RZ is depth.
	RX, RZ     float32
	Scale      float32
	ScreenX    float32
	ScreenY    float32
	DrawSize   float32
	DrawHeight float32
}

// Horizon returns the y offset of the horizon from the center of the
// screen for the given aircraft state.
func Horizon(s flight.AircraftState) float32 {
	return s.Rotation.X * HorizonPitchScale
}

// Project places the field's landmarks relative to the aircraft. The
// result is sorted by decreasing depth, so drawing it in order paints
// nearer landmarks over farther ones. Landmarks behind the near clip
// plane or too far off to the side are omitted. The result is appended
// to buf[:0], allowing its storage to be reused across frames.
func Project(s flight.AircraftState, f *world.Field, vp Viewport, buf []Projected) []Projected {
	buf = buf[:0]

	// The camera rotates the world by the negative of the aircraft's
	// heading.
	sin, cos := math.Sin(-s.Rotation.Y), math.Cos(-s.Rotation.Y)
	for lm := range f.All() {
		dx, dz := lm.X-s.Position.X, lm.Z-s.Position.Z
		p := Projected{
			Landmark: lm,
			RX:       dx*cos - dz*sin,
			RZ:       dx*sin + dz*cos,
		}
		if p.RZ > NearClip {
			buf = append(buf, p)
		}
	}

	slices.SortStableFunc(buf, func(a, b Projected) int {
		if a.RZ > b.RZ {
			return -1
		} else if a.RZ < b.RZ {
			return 1
		}
		return 0
	})

	horizon := Horizon(s)
	limit := vp.Width * CullFactor
	n := 0
	for _, p := range buf {
		p.Scale = ViewDistance / p.RZ
		p.ScreenX = p.RX * p.Scale
		p.ScreenY = horizon - s.Position.Y*p.Scale
		p.DrawSize = p.Landmark.Size * p.Scale
		p.DrawHeight = p.Landmark.Height * p.Scale

		if math.Abs(p.ScreenX) < limit {
			buf[n] = p
			n++
		}
	}
	return buf[:n]
}
