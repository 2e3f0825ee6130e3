// world/errors.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package world

import "errors"

var ErrInvalidLandmarkType = errors.New("invalid landmark type")
