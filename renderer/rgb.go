// renderer/rgb.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"github.com/mmp/skypilot/math"
)

///////////////////////////////////////////////////////////////////////////
// RGB

type RGB struct {
	R, G, B float32
}

type RGBA struct {
	R, G, B, A float32
}

func LerpRGB(x float32, a, b RGB) RGB {
	return RGB{R: math.Lerp(x, a.R, b.R), G: math.Lerp(x, a.G, b.G), B: math.Lerp(x, a.B, b.B)}
}

func LerpRGBA(x float32, a, b RGBA) RGBA {
	return RGBA{R: math.Lerp(x, a.R, b.R), G: math.Lerp(x, a.G, b.G), B: math.Lerp(x, a.B, b.B),
		A: math.Lerp(x, a.A, b.A)}
}

func (r RGB) Equals(other RGB) bool {
	return r.R == other.R && r.G == other.G && r.B == other.B
}

func (r RGB) Scale(v float32) RGB {
	return RGB{R: r.R * v, G: r.G * v, B: r.B * v}
}

// RGBA returns the color with the given opacity.
func (r RGB) RGBA(alpha float32) RGBA {
	return RGBA{R: r.R, G: r.G, B: r.B, A: alpha}
}

// Opaque is shorthand for r.RGBA(1).
func (r RGB) Opaque() RGBA {
	return RGBA{R: r.R, G: r.G, B: r.B, A: 1}
}

// RGBFromHex converts a packed integer color value to an RGB where the low
// 8 bits give blue, the next 8 give green, and then the next 8 give red.
func RGBFromHex(c int) RGB {
	r, g, b := (c>>16)&255, (c>>8)&255, c&255
	return RGB{R: float32(r) / 255, G: float32(g) / 255, B: float32(b) / 255}
}

func RGBFromUInt8(r uint8, g uint8, b uint8) RGB {
	return RGB{R: float32(r) / 255, G: float32(g) / 255, B: float32(b) / 255}
}

// RGBAFromUInt8 matches CSS rgba(): 8-bit channels and a [0,1] alpha.
func RGBAFromUInt8(r, g, b uint8, a float32) RGBA {
	return RGBFromUInt8(r, g, b).RGBA(a)
}

var (
	White = RGB{R: 1, G: 1, B: 1}
	Black = RGB{}
)
