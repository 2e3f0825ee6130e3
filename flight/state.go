// flight/state.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flight

import (
	"fmt"
	"log/slog"
)

type Vector3 struct {
	X float32 `json:"x" msgpack:"x"`
	Y float32 `json:"y" msgpack:"y"`
	Z float32 `json:"z" msgpack:"z"`
}

type EngineStatus int

const (
	EngineRunning EngineStatus = iota
	EngineWarning
	EngineFailed
)

func (s EngineStatus) String() string {
	switch s {
	case EngineRunning:
		return "running"
	case EngineWarning:
		return "warning"
	case EngineFailed:
		return "failed"
	default:
		return fmt.Sprintf("EngineStatus(%d)", int(s))
	}
}

func (s EngineStatus) MarshalText() ([]byte, error) {
	if s < EngineRunning || s > EngineFailed {
		return nil, fmt.Errorf("%d: %w", int(s), ErrInvalidEngineStatus)
	}
	return []byte(s.String()), nil
}

func (s *EngineStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "running":
		*s = EngineRunning
	case "warning":
		*s = EngineWarning
	case "failed":
		*s = EngineFailed
	default:
		return fmt.Errorf("%q: %w", string(b), ErrInvalidEngineStatus)
	}
	return nil
}

// AircraftState is everything there is to know about the aircraft at a
// single instant. Rotation holds pitch (X), yaw (Y), and roll (Z) in
// radians.
type AircraftState struct {
	Position     Vector3      `json:"position" msgpack:"position"`
	Velocity     Vector3      `json:"velocity" msgpack:"velocity"`
	Rotation     Vector3      `json:"rotation" msgpack:"rotation"`
	Throttle     float32      `json:"throttle" msgpack:"throttle"` // [0,1]
	Airspeed     float32      `json:"airspeed" msgpack:"airspeed"`
	Altitude     float32      `json:"altitude" msgpack:"altitude"`
	Fuel         float32      `json:"fuel" msgpack:"fuel"` // not consumed
	EngineStatus EngineStatus `json:"engineStatus" msgpack:"engineStatus"`
	EngineStress float32      `json:"engineStress" msgpack:"engineStress"`
}

// InitialState returns the state that every flight starts from: level at
// 1000 ft, heading along +x at 50 knots with half throttle.
func InitialState() AircraftState {
	return AircraftState{
		Position:     Vector3{X: 0, Y: 1000, Z: 0},
		Velocity:     Vector3{X: 50, Y: 0, Z: 0},
		Throttle:     0.5,
		Airspeed:     50,
		Altitude:     1000,
		Fuel:         100,
		EngineStatus: EngineRunning,
	}
}

func (s AircraftState) Pitch() float32 { return s.Rotation.X }
func (s AircraftState) Yaw() float32   { return s.Rotation.Y }
func (s AircraftState) Roll() float32  { return s.Rotation.Z }

func (s AircraftState) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("position", [3]float32{s.Position.X, s.Position.Y, s.Position.Z}),
		slog.Any("rotation", [3]float32{s.Rotation.X, s.Rotation.Y, s.Rotation.Z}),
		slog.Float64("throttle", float64(s.Throttle)),
		slog.Float64("airspeed", float64(s.Airspeed)),
		slog.Float64("altitude", float64(s.Altitude)),
		slog.String("engine", s.EngineStatus.String()),
		slog.Float64("stress", float64(s.EngineStress)),
	)
}
