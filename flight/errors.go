// flight/errors.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flight

import "errors"

var (
	ErrInvalidEngineStatus = errors.New("invalid engine status")
	ErrInvalidControl      = errors.New("invalid control")
)
