// intel/intel.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package intel provides the generated flavor text around a flight: mission
// orders and the "Control" radio operator. Both come from a generative
// language model and run asynchronously alongside the simulation.
package intel

import (
	"context"
	"errors"
	"time"

	"github.com/mmp/skypilot/flight"

	"github.com/google/uuid"
)

var (
	ErrNoCredentials = errors.New("no API key configured")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrRadioBusy     = errors.New("waiting for a reply from Control")
	ErrEmptyResponse = errors.New("model returned no text")
)

type Mission struct {
	ID          string `json:"id" msgpack:"id"`
	Title       string `json:"title" msgpack:"title"`
	Description string `json:"description" msgpack:"description"`
	Objective   string `json:"objective" msgpack:"objective"`
	Completed   bool   `json:"isCompleted" msgpack:"isCompleted"`
}

// FallbackMission is issued when the model's reply can't be understood.
var FallbackMission = Mission{
	ID:          "fallback-01",
	Title:       "Routine Patrol",
	Description: "The skies are quiet today. Perform a routine check of the sector boundaries.",
	Objective:   "Maintain altitude above 2000ft for 30 seconds.",
}

type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Speaker returns the name shown for the role in the radio transcript.
func (r Role) Speaker() string {
	switch r {
	case RoleUser:
		return "Pilot"
	case RoleModel:
		return "Control"
	default:
		return "Sys"
	}
}

type Message struct {
	ID        string    `json:"id" msgpack:"id"`
	Role      Role      `json:"role" msgpack:"role"`
	Content   string    `json:"content" msgpack:"content"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// MissionGenerator produces new mission orders suited to the aircraft's
// current situation.
type MissionGenerator interface {
	GenerateMission(ctx context.Context, s flight.AircraftState) (Mission, error)
}

// ControlResponder produces Control's reply to the last message in the
// conversation.
type ControlResponder interface {
	ControlResponse(ctx context.Context, history []Message, s flight.AircraftState) (string, error)
}

// Offline stands in for the model when no credentials are available.
// Every request fails, which the mission tracker and radio handle as they
// would a network failure.
type Offline struct{}

func (Offline) GenerateMission(context.Context, flight.AircraftState) (Mission, error) {
	return Mission{}, ErrNoCredentials
}

func (Offline) ControlResponse(context.Context, []Message, flight.AircraftState) (string, error) {
	return "", ErrNoCredentials
}
