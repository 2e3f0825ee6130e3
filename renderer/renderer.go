// renderer/renderer.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"fmt"
	"log/slog"

	"github.com/mmp/skypilot/math"
)

// Renderer is implemented by the backends that turn a CommandBuffer into
// pixels. The windowed client has an ebiten implementation; headless
// clients fetch CommandBuffers over HTTP and draw them however they like.
type Renderer interface {
	// RenderCommandBuffer executes all of the commands encoded in the
	// provided command buffer, returning statistics about what was
	// rendered.
	RenderCommandBuffer(*CommandBuffer) RendererStats
}

// RendererStats encapsulates assorted statistics from rendering.
type RendererStats struct {
	DrawCalls int
	Vertices  int
	Triangles int
	Lines     int
	Strings   int
}

func (rs *RendererStats) String() string {
	return fmt.Sprintf("%d draw calls, %d vertices: %d tris, %d lines, %d strings",
		rs.DrawCalls, rs.Vertices, rs.Triangles, rs.Lines, rs.Strings)
}

func (rs *RendererStats) Merge(s RendererStats) {
	rs.DrawCalls += s.DrawCalls
	rs.Vertices += s.Vertices
	rs.Triangles += s.Triangles
	rs.Lines += s.Lines
	rs.Strings += s.Strings
}

func (rs RendererStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("draw_calls", rs.DrawCalls),
		slog.Int("vertices", rs.Vertices),
		slog.Int("tris", rs.Triangles),
		slog.Int("lines", rs.Lines),
		slog.Int("strings", rs.Strings),
	)
}

// Stats returns the statistics that rendering cb would produce with one
// draw call per command.
func (cb *CommandBuffer) Stats() RendererStats {
	var rs RendererStats
	cb.Walk(func(cmd Command, _ math.Matrix3) {
		rs.DrawCalls++
		switch cmd.Kind {
		case CommandTriangles:
			rs.Vertices += cmd.Count
			rs.Triangles += cmd.Count / 3
		case CommandLines:
			rs.Vertices += cmd.Count
			rs.Lines += cmd.Count / 2
		case CommandText:
			rs.Strings++
		}
	})
	return rs
}
