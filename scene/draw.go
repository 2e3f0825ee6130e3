// scene/draw.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scene

import (
	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/math"
	"github.com/mmp/skypilot/renderer"
	"github.com/mmp/skypilot/world"
)

// Building window grid layout, in unscaled units.
const (
	windowRows    = 5
	windowCols    = 2
	windowInset   = 5
	windowTop     = 10
	windowXStride = 15
	windowYStride = 30
	windowWidth   = 5
	windowHeight  = 10
)

// Draw paints the sky, ground, and the projected landmarks, which should
// be in the order returned by Project.
func Draw(cb *renderer.CommandBuffer, s flight.AircraftState, projected []Projected, vp Viewport) {
	w, h := vp.Width, vp.Height

	cb.FillVerticalGradient(0, 0, w, h,
		renderer.GradientStop{Offset: 0, Color: SkyTopColor.Opaque()},
		renderer.GradientStop{Offset: 0.5, Color: SkyBottomColor.Opaque()},
		renderer.GradientStop{Offset: 1, Color: renderer.White.Opaque()})

	// Everything else banks with the aircraft.
	c := vp.Center()
	cb.PushTransform(math.Identity3x3().Translate(c[0], c[1]).Rotate(s.Rotation.Z))
	defer cb.PopTransform()

	// The ground is oversized so that it still covers the bottom of the
	// screen when rotated.
	cb.FillRect(-2*w, Horizon(s), 4*w, 2*h, GroundColor.Opaque())

	for _, p := range projected {
		switch p.Landmark.Type {
		case world.Mountain:
			drawMountain(cb, p)
		case world.Building:
			drawBuilding(cb, p)
		default:
			drawForest(cb, p)
		}
	}
}

func drawMountain(cb *renderer.CommandBuffer, p Projected) {
	pts := [][2]float32{
		{p.ScreenX - p.DrawSize, p.ScreenY},
		{p.ScreenX, p.ScreenY - p.DrawHeight},
		{p.ScreenX + p.DrawSize, p.ScreenY},
	}
	cb.FillTriangle(pts[0], pts[1], pts[2], p.Landmark.Color.Opaque())
	cb.StrokePolygon(pts, 1, OutlineColor)
}

func drawBuilding(cb *renderer.CommandBuffer, p Projected) {
	x0, y0 := p.ScreenX-p.DrawSize/2, p.ScreenY-p.DrawHeight
	cb.FillRect(x0, y0, p.DrawSize, p.DrawHeight, FacadeColor.Opaque())
	cb.FillRect(x0, y0, p.DrawSize*0.8, p.DrawHeight, p.Landmark.Color.Opaque())

	if p.Scale <= WindowScaleThreshold {
		return
	}
	sc := p.Scale
	for wy := range windowRows {
		for wx := range windowCols {
			cb.FillRect(x0+windowInset*sc+float32(wx)*windowXStride*sc,
				y0+windowTop*sc+float32(wy)*windowYStride*sc,
				windowWidth*sc, windowHeight*sc, WindowColor)
		}
	}
}

func drawForest(cb *renderer.CommandBuffer, p Projected) {
	cb.FillEllipse([2]float32{p.ScreenX, p.ScreenY}, p.DrawSize, p.DrawSize/2, p.Landmark.Color.Opaque())
}
