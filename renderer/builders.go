// renderer/builders.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"github.com/mmp/skypilot/math"
)

///////////////////////////////////////////////////////////////////////////
// Shape helpers

// The following helpers tessellate common 2D shapes into the triangles and
// line segments that a CommandBuffer stores. Coordinates are in pixels
// with y increasing downward, as in a canvas.

// Tessellation rate used for circles and ellipses.
const CircleSegments = 48

func (cb *CommandBuffer) FillTriangle(p0, p1, p2 [2]float32, c RGBA) {
	cb.Triangles(Vertex{P: p0, C: c}, Vertex{P: p1, C: c}, Vertex{P: p2, C: c})
}

// FillQuad fills the quadrilateral with the given vertices, which should
// be specified in order around it.
func (cb *CommandBuffer) FillQuad(p0, p1, p2, p3 [2]float32, c RGBA) {
	cb.Triangles(
		Vertex{P: p0, C: c}, Vertex{P: p1, C: c}, Vertex{P: p2, C: c},
		Vertex{P: p0, C: c}, Vertex{P: p2, C: c}, Vertex{P: p3, C: c})
}

// FillRect fills the rectangle with upper-left corner (x, y). Negative
// widths and heights extend the rectangle left or up, as with a canvas.
func (cb *CommandBuffer) FillRect(x, y, w, h float32, c RGBA) {
	if w == 0 || h == 0 {
		return
	}
	cb.FillQuad([2]float32{x, y}, [2]float32{x + w, y}, [2]float32{x + w, y + h}, [2]float32{x, y + h}, c)
}

func (cb *CommandBuffer) FillEllipse(center [2]float32, rx, ry float32, c RGBA) {
	if rx <= 0 || ry <= 0 {
		return
	}
	circle := math.CirclePoints(CircleSegments)
	v := make([]Vertex, 0, 3*len(circle))
	for i := range circle {
		p0, p1 := circle[i], circle[(i+1)%len(circle)]
		v = append(v,
			Vertex{P: center, C: c},
			Vertex{P: [2]float32{center[0] + rx*p0[0], center[1] + ry*p0[1]}, C: c},
			Vertex{P: [2]float32{center[0] + rx*p1[0], center[1] + ry*p1[1]}, C: c})
	}
	cb.Triangles(v...)
}

func (cb *CommandBuffer) FillCircle(center [2]float32, r float32, c RGBA) {
	cb.FillEllipse(center, r, r, c)
}

type GradientStop struct {
	Offset float32 // [0,1] from top to bottom
	Color  RGBA
}

// FillVerticalGradient fills the rectangle with a linear gradient running
// from its top edge to its bottom edge. Stops must be sorted by offset.
func (cb *CommandBuffer) FillVerticalGradient(x, y, w, h float32, stops ...GradientStop) {
	if len(stops) == 0 || w == 0 || h == 0 {
		return
	}

	// Pad out to the edges with the first and last colors.
	if stops[0].Offset > 0 {
		stops = append([]GradientStop{{Offset: 0, Color: stops[0].Color}}, stops...)
	}
	if last := stops[len(stops)-1]; last.Offset < 1 {
		stops = append(stops, GradientStop{Offset: 1, Color: last.Color})
	}

	for i := 0; i+1 < len(stops); i++ {
		s0, s1 := stops[i], stops[i+1]
		y0, y1 := y+s0.Offset*h, y+s1.Offset*h
		if y0 == y1 {
			continue
		}
		cb.Triangles(
			Vertex{P: [2]float32{x, y0}, C: s0.Color}, Vertex{P: [2]float32{x + w, y0}, C: s0.Color},
			Vertex{P: [2]float32{x + w, y1}, C: s1.Color},
			Vertex{P: [2]float32{x, y0}, C: s0.Color}, Vertex{P: [2]float32{x + w, y1}, C: s1.Color},
			Vertex{P: [2]float32{x, y1}, C: s1.Color})
	}
}

func (cb *CommandBuffer) StrokeLine(p0, p1 [2]float32, width float32, c RGBA) {
	cb.Lines(width, Vertex{P: p0, C: c}, Vertex{P: p1, C: c})
}

// StrokePolygon draws the closed outline through the given points.
func (cb *CommandBuffer) StrokePolygon(p [][2]float32, width float32, c RGBA) {
	if len(p) < 2 {
		return
	}
	v := make([]Vertex, 0, 2*len(p))
	for i := range p {
		v = append(v, Vertex{P: p[i], C: c}, Vertex{P: p[(i+1)%len(p)], C: c})
	}
	cb.Lines(width, v...)
}

func (cb *CommandBuffer) StrokeRect(x, y, w, h float32, width float32, c RGBA) {
	cb.StrokePolygon([][2]float32{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}, width, c)
}

func (cb *CommandBuffer) StrokeCircle(center [2]float32, r float32, width float32, c RGBA) {
	circle := math.CirclePoints(CircleSegments)
	p := make([][2]float32, len(circle))
	for i, pt := range circle {
		p[i] = math.Add2f(center, math.Scale2f(pt, r))
	}
	cb.StrokePolygon(p, width, c)
}
