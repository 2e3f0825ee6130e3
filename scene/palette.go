// scene/palette.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scene

import "github.com/mmp/skypilot/renderer"

// The cockpit palette; the HUD and the client panels use it as well.
var (
	PrimaryColor   = renderer.RGBFromHex(0x0077b6)
	WarningColor   = renderer.RGBFromHex(0xf77f00)
	DangerColor    = renderer.RGBFromHex(0xd62828)
	SkyTopColor    = renderer.RGBFromHex(0x90e0ef)
	SkyBottomColor = renderer.RGBFromHex(0xcaf0f8)
	HUDColor       = renderer.RGBAFromUInt8(0, 24, 69, 0.85)
	GroundColor    = renderer.RGBFromHex(0xe9ecef)

	FacadeColor  = renderer.RGBFromHex(0xdee2e6)
	OutlineColor = renderer.RGBAFromUInt8(0, 0, 0, 0.05)
	WindowColor  = renderer.White.RGBA(0.6)
)
