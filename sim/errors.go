// sim/errors.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
)

var (
	ErrInvalidEventType = errors.New("Invalid event type")
	ErrUnknownInputCode = errors.New("Unknown input code")
)
