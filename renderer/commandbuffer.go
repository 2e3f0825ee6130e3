// renderer/commandbuffer.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"sync"

	"github.com/mmp/skypilot/math"
)

// The command buffer stores a series of rendering commands. Geometry for
// all of the commands is stored in a single vertex array owned by the
// CommandBuffer; the draw commands refer to a range of it. Comments after
// each command briefly describe what it uses.
type CommandKind int

const (
	CommandPushTransform CommandKind = iota // Transform: composed with the current one
	CommandPopTransform                     // no args
	CommandTriangles                        // Start, Count: 3 vertices per triangle
	CommandLines                            // Start, Count, Width: 2 vertices per segment
	CommandText                             // Text, Pos, Style
)

func (k CommandKind) String() string {
	switch k {
	case CommandPushTransform:
		return "push"
	case CommandPopTransform:
		return "pop"
	case CommandTriangles:
		return "triangles"
	case CommandLines:
		return "lines"
	case CommandText:
		return "text"
	default:
		return "unknown"
	}
}

type Vertex struct {
	P [2]float32 `json:"p" msgpack:"p"`
	C RGBA       `json:"c" msgpack:"c"`
}

type TextAlign int

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
)

// TextStyle specifies how a string is drawn. Text positions give the left
// end (or center or right end, per Align) of the baseline.
type TextStyle struct {
	Color RGBA      `json:"color" msgpack:"color"`
	Size  float32   `json:"size" msgpack:"size"` // pixels
	Align TextAlign `json:"align,omitempty" msgpack:"align,omitempty"`
}

type Command struct {
	Kind      CommandKind  `json:"kind" msgpack:"kind"`
	Transform math.Matrix3 `json:"transform,omitzero" msgpack:"transform,omitempty"`
	Start     int          `json:"start,omitempty" msgpack:"start,omitempty"`
	Count     int          `json:"count,omitempty" msgpack:"count,omitempty"`
	Width     float32      `json:"width,omitempty" msgpack:"width,omitempty"`
	Text      string       `json:"text,omitempty" msgpack:"text,omitempty"`
	Pos       [2]float32   `json:"pos,omitzero" msgpack:"pos,omitempty"`
	Style     TextStyle    `json:"style,omitzero" msgpack:"style,omitempty"`
}

// CommandBuffer encodes a sequence of rendering commands in an
// API-agnostic manner. The simulation paints into one each frame and a
// Renderer (the ebiten window or an HTTP client) turns it into pixels.
type CommandBuffer struct {
	Commands []Command `json:"commands" msgpack:"commands"`
	Vertices []Vertex  `json:"vertices" msgpack:"vertices"`

	depth int
}

// CommandBuffers are managed using a sync.Pool so that their slice
// allocations persist across multiple uses.
var commandBufferPool = sync.Pool{New: func() any { return &CommandBuffer{} }}

func GetCommandBuffer() *CommandBuffer {
	return commandBufferPool.Get().(*CommandBuffer)
}

func ReturnCommandBuffer(cb *CommandBuffer) {
	cb.Reset()
	commandBufferPool.Put(cb)
}

// Reset resets the command buffer's length to zero so that it can be
// reused.
func (cb *CommandBuffer) Reset() {
	cb.Commands = cb.Commands[:0]
	cb.Vertices = cb.Vertices[:0]
	cb.depth = 0
}

// PushTransform composes m with the current transformation for all
// subsequent commands until the matching PopTransform.
func (cb *CommandBuffer) PushTransform(m math.Matrix3) {
	cb.Commands = append(cb.Commands, Command{Kind: CommandPushTransform, Transform: m})
	cb.depth++
}

func (cb *CommandBuffer) PopTransform() {
	if cb.depth == 0 {
		panic("renderer: PopTransform without matching PushTransform")
	}
	cb.Commands = append(cb.Commands, Command{Kind: CommandPopTransform})
	cb.depth--
}

// Depth returns the number of transforms currently pushed.
func (cb *CommandBuffer) Depth() int {
	return cb.depth
}

// Triangles adds the given vertices, taken three at a time, as filled
// triangles. Consecutive triangle commands are merged into one.
func (cb *CommandBuffer) Triangles(v ...Vertex) {
	if len(v) == 0 {
		return
	}
	if len(v)%3 != 0 {
		panic("renderer: triangle vertex count must be a multiple of 3")
	}
	cb.appendDraw(Command{Kind: CommandTriangles}, v)
}

// Lines adds the given vertices, taken two at a time, as line segments of
// the given width. Consecutive line commands with the same width are
// merged into one.
func (cb *CommandBuffer) Lines(width float32, v ...Vertex) {
	if len(v) == 0 {
		return
	}
	if len(v)%2 != 0 {
		panic("renderer: line vertex count must be even")
	}
	cb.appendDraw(Command{Kind: CommandLines, Width: width}, v)
}

func (cb *CommandBuffer) appendDraw(cmd Command, v []Vertex) {
	if n := len(cb.Commands); n > 0 {
		last := &cb.Commands[n-1]
		if last.Kind == cmd.Kind && last.Width == cmd.Width && last.Start+last.Count == len(cb.Vertices) {
			cb.Vertices = append(cb.Vertices, v...)
			last.Count += len(v)
			return
		}
	}

	cmd.Start = len(cb.Vertices)
	cmd.Count = len(v)
	cb.Vertices = append(cb.Vertices, v...)
	cb.Commands = append(cb.Commands, cmd)
}

// Text adds a command to draw the string s at p.
func (cb *CommandBuffer) Text(s string, p [2]float32, style TextStyle) {
	if s == "" {
		return
	}
	cb.Commands = append(cb.Commands, Command{Kind: CommandText, Text: s, Pos: p, Style: style})
}

// Verts returns the vertices used by a draw command.
func (cb *CommandBuffer) Verts(cmd Command) []Vertex {
	return cb.Vertices[cmd.Start : cmd.Start+cmd.Count]
}

// Walk calls fn for each draw command in order along with the
// transformation that applies to it, resolving the push/pop commands.
func (cb *CommandBuffer) Walk(fn func(cmd Command, xf math.Matrix3)) {
	stack := []math.Matrix3{math.Identity3x3()}
	for _, cmd := range cb.Commands {
		switch cmd.Kind {
		case CommandPushTransform:
			stack = append(stack, stack[len(stack)-1].PostMultiply(cmd.Transform))
		case CommandPopTransform:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		default:
			fn(cmd, stack[len(stack)-1])
		}
	}
}
