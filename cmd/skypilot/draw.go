// cmd/skypilot/draw.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"image"
	"image/color"
	"sync"

	"github.com/mmp/skypilot/math"
	"github.com/mmp/skypilot/renderer"

	"github.com/hajimehoshi/bitmapfont/v4"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

var (
	whiteImage    = ebiten.NewImage(3, 3)
	whiteSubImage *ebiten.Image

	textDrawOptsPool = sync.Pool{New: func() any { return &text.DrawOptions{} }}
)

func init() {
	whiteImage.Fill(color.White)
	// Sampling from the interior avoids bleeding at the edges.
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
}

// fontSize is the pixel height the bitmap font is drawn at without
// scaling.
const fontSize = 12

// ebitenRenderer executes CommandBuffers on an ebiten image. Triangles go
// through DrawTriangles with per-vertex color, lines through the vector
// package, and text through text/v2 with the bitmap font scaled to the
// requested size.
type ebitenRenderer struct {
	dst     *ebiten.Image
	face    *text.GoXFace
	ascent  float64
	verts   []ebiten.Vertex
	indices []uint16
}

func newEbitenRenderer() *ebitenRenderer {
	face := text.NewGoXFace(bitmapfont.Face)
	return &ebitenRenderer{
		face:   face,
		ascent: face.Metrics().HAscent,
	}
}

func (r *ebitenRenderer) RenderCommandBuffer(cb *renderer.CommandBuffer) renderer.RendererStats {
	var stats renderer.RendererStats

	cb.Walk(func(cmd renderer.Command, xf math.Matrix3) {
		switch cmd.Kind {
		case renderer.CommandTriangles:
			v := cb.Verts(cmd)
			r.drawTriangles(v, xf)
			stats.DrawCalls += (len(v) + maxBatchVertices - 1) / maxBatchVertices
			stats.Vertices += len(v)
			stats.Triangles += len(v) / 3

		case renderer.CommandLines:
			v := cb.Verts(cmd)
			for i := 0; i+1 < len(v); i += 2 {
				p0, p1 := xf.TransformPoint(v[i].P), xf.TransformPoint(v[i+1].P)
				vector.StrokeLine(r.dst, p0[0], p0[1], p1[0], p1[1], cmd.Width, toColor(v[i].C), true)
				stats.DrawCalls++
			}
			stats.Vertices += len(v)
			stats.Lines += len(v) / 2

		case renderer.CommandText:
			r.drawText(cmd, xf)
			stats.DrawCalls++
			stats.Strings++
		}
	})

	return stats
}

// DrawTriangles takes 16-bit indices, so large commands are split.
const maxBatchVertices = 65535 / 3 * 3

func (r *ebitenRenderer) drawTriangles(v []renderer.Vertex, xf math.Matrix3) {
	identity := xf.IsIdentity()

	for len(v) > 0 {
		n := min(len(v), maxBatchVertices)
		r.verts, r.indices = r.verts[:0], r.indices[:0]
		for i, vtx := range v[:n] {
			p := vtx.P
			if !identity {
				p = xf.TransformPoint(p)
			}
			r.verts = append(r.verts, ebiten.Vertex{
				DstX:   p[0],
				DstY:   p[1],
				SrcX:   1,
				SrcY:   1,
				ColorR: vtx.C.R,
				ColorG: vtx.C.G,
				ColorB: vtx.C.B,
				ColorA: vtx.C.A,
			})
			r.indices = append(r.indices, uint16(i))
		}

		r.dst.DrawTriangles(r.verts, r.indices, whiteSubImage, &ebiten.DrawTrianglesOptions{
			ColorScaleMode: ebiten.ColorScaleModeStraightAlpha,
			AntiAlias:      true,
		})
		v = v[n:]
	}
}

func (r *ebitenRenderer) drawText(cmd renderer.Command, xf math.Matrix3) {
	op := textDrawOptsPool.Get().(*text.DrawOptions)
	defer textDrawOptsPool.Put(op)
	*op = text.DrawOptions{}

	switch cmd.Style.Align {
	case renderer.AlignCenter:
		op.PrimaryAlign = text.AlignCenter
	case renderer.AlignRight:
		op.PrimaryAlign = text.AlignEnd
	default:
		op.PrimaryAlign = text.AlignStart
	}

	// Text positions are baselines while text/v2 draws from the top of
	// the line.
	scale := 1.0
	if cmd.Style.Size > 0 {
		scale = float64(cmd.Style.Size) / fontSize
	}
	op.GeoM.Translate(0, -r.ascent)
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(float64(cmd.Pos[0]), float64(cmd.Pos[1]))
	op.GeoM.Concat(toGeoM(xf))
	op.ColorScale.ScaleWithColor(toColor(cmd.Style.Color))

	text.Draw(r.dst, cmd.Text, r.face, op)
}

func toGeoM(m math.Matrix3) ebiten.GeoM {
	var g ebiten.GeoM
	for i := range 2 {
		for j := range 3 {
			g.SetElement(i, j, float64(m[i][j]))
		}
	}
	return g
}

func toColor(c renderer.RGBA) color.NRGBA {
	u8 := func(v float32) uint8 {
		return uint8(math.Clamp(v, 0, 1)*255 + 0.5)
	}
	return color.NRGBA{R: u8(c.R), G: u8(c.G), B: u8(c.B), A: u8(c.A)}
}
