// flight/integrator.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flight

import (
	"github.com/mmp/skypilot/math"
	"github.com/mmp/skypilot/rand"
)

const (
	Gravity         = 9.81
	DragCoefficient = 0.05
	LiftCoefficient = 0.15
	ThrustPower     = 40.0
	// RotationSpeed is applied once per tick while a rotation control is
	// held, independent of the tick's duration.
	RotationSpeed = 0.05
	// MinAirspeed is the stall floor; the aircraft never flies slower.
	MinAirspeed = 10

	ThrottleStep = 0.01

	pitchRollDamping = 0.95
	yawDamping       = 0.98

	// Engine stress thresholds and rates.
	stressThrottleThreshold = 0.85
	stressGrowthRate        = 5
	stressDecayRate         = 2
	warningStress           = 40
	recoveredStress         = 30
	failureRiskStress       = 20
	failureRiskDivisor      = 5000
	criticalStress          = 90
	criticalFailureChance   = 0.01
	sputterChance           = 0.1
	sputterThrustFactor     = 0.3

	restartThrottleLimit = 0.2
	restartStressRelief  = 40

	bankTurnRate       = 0.5
	groundImpactFactor = 0.5
)

// StepEvents summarizes the discrete things that happened during a single
// Step, beyond the continuous change of the state.
type StepEvents struct {
	// StatusChanged is set when the engine status at the end of the step
	// differs from the one at its start; From and To give the two.
	StatusChanged bool
	From, To      EngineStatus
	// Restarted is set when the restart control brought a stopped engine
	// back to running.
	Restarted bool
	// Impact is set when the aircraft was clamped to the ground.
	Impact bool
}

// Integrator advances an AircraftState through time. Its only state is the
// random source used for engine failures; tests provide a scripted one.
type Integrator struct {
	r rand.Source
}

func NewIntegrator(r rand.Source) *Integrator {
	if r == nil {
		r = rand.New()
	}
	return &Integrator{r: r}
}

// Step advances s by dt seconds given the held controls. The order of the
// updates matters: for example, lift uses the airspeed from the start of
// the step while the climb rate uses the updated one.
func (ig *Integrator) Step(s *AircraftState, in InputState, dt float32) StepEvents {
	ev := StepEvents{From: s.EngineStatus}

	// Attitude. These are per-tick increments.
	if in.Held(PitchDown) {
		s.Rotation.X -= RotationSpeed
	}
	if in.Held(PitchUp) {
		s.Rotation.X += RotationSpeed
	}
	if in.Held(RollLeft) {
		s.Rotation.Z += RotationSpeed
	}
	if in.Held(RollRight) {
		s.Rotation.Z -= RotationSpeed
	}
	if in.Held(YawLeft) {
		s.Rotation.Y += RotationSpeed
	}
	if in.Held(YawRight) {
		s.Rotation.Y -= RotationSpeed
	}

	if in.Held(EngineRestart) && s.EngineStatus != EngineRunning && s.Throttle < restartThrottleLimit {
		s.EngineStatus = EngineRunning
		s.EngineStress = max(0, s.EngineStress-restartStressRelief)
		ev.Restarted = true
	}

	s.Rotation.X *= pitchRollDamping
	s.Rotation.Z *= pitchRollDamping
	s.Rotation.Y *= yawDamping

	if in.Held(ThrottleUp) {
		s.Throttle = min(1, s.Throttle+ThrottleStep)
	}
	if in.Held(ThrottleDown) {
		s.Throttle = max(0, s.Throttle-ThrottleStep)
	}

	ig.updateEngine(s, dt)

	lift := max(0, s.Airspeed*LiftCoefficient*math.Cos(s.Rotation.X))
	drag := s.Airspeed * s.Airspeed * DragCoefficient * 0.01
	thrust := float32(s.Throttle * ThrustPower)
	switch s.EngineStatus {
	case EngineFailed:
		thrust = 0
	case EngineWarning:
		if ig.r.Float32() < sputterChance {
			thrust *= sputterThrustFactor
		}
	}
	s.Airspeed = max(MinAirspeed, s.Airspeed+(thrust-drag)*dt)

	s.Velocity.Y = (lift-Gravity)*math.Cos(s.Rotation.Z) + math.Sin(s.Rotation.X)*s.Airspeed
	s.Position.Y += s.Velocity.Y * dt
	s.Altitude = s.Position.Y

	// Banking turns the aircraft.
	s.Rotation.Y += math.Sin(s.Rotation.Z) * bankTurnRate * dt
	s.Position.X += math.Cos(s.Rotation.Y) * s.Airspeed * dt
	s.Position.Z += math.Sin(s.Rotation.Y) * s.Airspeed * dt

	if s.Position.Y < 0 {
		s.Position.Y = 0
		s.Altitude = 0
		s.Airspeed *= groundImpactFactor
		ev.Impact = true
	}

	ev.To = s.EngineStatus
	ev.StatusChanged = ev.From != ev.To
	return ev
}

func (ig *Integrator) updateEngine(s *AircraftState, dt float32) {
	switch s.EngineStatus {
	case EngineRunning:
		ig.updateStress(s, dt)
		if s.EngineStress > warningStress {
			s.EngineStatus = EngineWarning
		}
		if s.EngineStress > failureRiskStress && ig.r.Float32() < s.EngineStress/failureRiskDivisor {
			s.EngineStatus = EngineFailed
		}

	case EngineWarning:
		if s.EngineStress > criticalStress && ig.r.Float32() < criticalFailureChance {
			s.EngineStatus = EngineFailed
		}
		if s.EngineStress < recoveredStress {
			s.EngineStatus = EngineRunning
		}
		ig.updateStress(s, dt)

	case EngineFailed:
		// Only the restart control gets out of here.
	}
}

// updateStress grows stress when the engine is pushed past the throttle
// threshold and otherwise lets it cool off.
func (ig *Integrator) updateStress(s *AircraftState, dt float32) {
	if s.Throttle > stressThrottleThreshold {
		s.EngineStress += dt * s.Throttle * stressGrowthRate
	} else {
		s.EngineStress = max(0, s.EngineStress-dt*stressDecayRate)
	}
}
