// sim/sim.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package sim owns the aircraft and the world it flies over. It advances
// the flight model from the wall clock, turns the committed state into a
// display list for the window or the HTTP server, and reports what
// happened along the way through an EventStream.
package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/hud"
	"github.com/mmp/skypilot/intel"
	"github.com/mmp/skypilot/log"
	"github.com/mmp/skypilot/rand"
	"github.com/mmp/skypilot/renderer"
	"github.com/mmp/skypilot/scene"
	"github.com/mmp/skypilot/world"

	"github.com/goforj/godump"
	"github.com/prometheus/client_golang/prometheus"
)

// snapshot pairs a committed state with the tick count that produced it.
type snapshot struct {
	State flight.AircraftState
	Tick  uint64
}

type Config struct {
	// Seed for the landmark field and engine failures; zero picks one
	// from the clock.
	Seed int64
	// MaxDelta caps the time step taken by a single Update. Zero means
	// no cap, so a long stall is integrated as one big step.
	MaxDelta time.Duration
	// Registerer, if non-nil, is where the sim's metrics are registered.
	Registerer prometheus.Registerer
}

type Sim struct {
	lg          *log.Logger
	field       *world.Field
	eventStream *EventStream
	metrics     *Metrics

	// The committed state. Update is the only writer; everyone else
	// loads a snapshot.
	state atomic.Pointer[snapshot]

	inputMu sync.Mutex
	input   flight.InputState

	// mu serializes Update and Step and guards what follows.
	mu         sync.Mutex
	integrator *flight.Integrator
	lastTick   time.Time
	maxDelta   float32
	grounded   bool

	// *[]scene.Projected reused across Paint calls.
	projected sync.Pool
}

func NewSim(config Config, lg *log.Logger) *Sim {
	r := rand.New()
	if config.Seed != 0 {
		r = rand.NewSeeded(config.Seed)
	}

	s := &Sim{
		lg:          lg,
		field:       world.Generate(r),
		eventStream: NewEventStream(lg),
		metrics:     NewMetrics(config.Registerer),
		integrator:  flight.NewIntegrator(r),
		maxDelta:    float32(config.MaxDelta.Seconds()),
		projected: sync.Pool{New: func() any {
			return &[]scene.Projected{}
		}},
	}

	st := flight.InitialState()
	s.state.Store(&snapshot{State: st})
	s.metrics.observe(st)

	lg.Info("new sim", slog.Int("landmarks", s.field.Len()), slog.Int64("seed", config.Seed),
		slog.Duration("max_delta", config.MaxDelta))

	return s
}

// Update advances the simulation to now. The first call only establishes
// the reference time and integrates with a zero time step.
func (s *Sim) Update(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dt float32
	if !s.lastTick.IsZero() {
		dt = float32(now.Sub(s.lastTick).Seconds())
	}
	s.lastTick = now

	s.step(dt)
}

// Step advances the simulation by dt seconds, independent of the clock.
func (s *Sim) Step(dt float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step(dt)
}

func (s *Sim) step(dt float32) {
	dt = max(dt, 0)
	if s.maxDelta > 0 {
		dt = min(dt, s.maxDelta)
	}

	in := s.Input()
	prev := s.state.Load()
	st := prev.State
	ev := s.integrator.Step(&st, in, dt)
	s.state.Store(&snapshot{State: st, Tick: prev.Tick + 1})

	s.metrics.Ticks.Inc()
	s.metrics.observe(st)

	if ev.StatusChanged {
		s.lg.Info("engine status changed", slog.String("from", ev.From.String()),
			slog.String("to", ev.To.String()), slog.Any("state", st))
		s.eventStream.Post(Event{Type: EngineStatusChangedEvent, From: ev.From, To: ev.To})
		if ev.To == flight.EngineFailed {
			s.metrics.EngineFailures.Inc()
		}
	}
	if ev.Restarted {
		s.lg.Info("engine restarted", slog.Float64("stress", float64(st.EngineStress)))
		s.eventStream.Post(Event{Type: EngineRestartedEvent})
	}

	// Report touching down once rather than on every tick spent on the
	// ground.
	if ev.Impact && !s.grounded {
		s.lg.Info("ground impact", slog.Any("state", st))
		s.eventStream.Post(Event{Type: GroundImpactEvent, Airspeed: st.Airspeed})
		s.metrics.GroundImpacts.Inc()
	}
	s.grounded = ev.Impact
}

// RunPhysics calls Update at the given interval until ctx is done. It's
// used when there's no window to drive the updates.
func (s *Sim) RunPhysics(ctx context.Context, interval time.Duration) error {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	s.Update(time.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-tick.C:
			s.Update(now)
		}
	}
}

// State returns the most recently committed aircraft state.
func (s *Sim) State() flight.AircraftState {
	return s.state.Load().State
}

// Ticks returns the number of updates so far.
func (s *Sim) Ticks() uint64 {
	return s.state.Load().Tick
}

// Snapshot returns the committed state together with the tick that
// produced it.
func (s *Sim) Snapshot() (flight.AircraftState, uint64) {
	snap := s.state.Load()
	return snap.State, snap.Tick
}

func (s *Sim) Landmarks() *world.Field {
	return s.field
}

// SetKey updates the held controls given a keyboard code such as "KeyW".
func (s *Sim) SetKey(code string, down bool) error {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()

	if !s.input.SetCode(code, down) {
		return fmt.Errorf("%q: %w", code, ErrUnknownInputCode)
	}
	return nil
}

func (s *Sim) SetControl(c flight.Control, down bool) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()

	s.input.Set(c, down)
}

// Input returns a copy of the currently held controls.
func (s *Sim) Input() flight.InputState {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()

	return s.input
}

// Paint draws the out-the-window view and the HUD for a single snapshot
// of the aircraft state into cb.
func (s *Sim) Paint(cb *renderer.CommandBuffer, vp scene.Viewport) {
	s.PaintState(cb, vp, s.State())
}

// PaintState draws the view for the given state, which callers
// typically get from Snapshot.
func (s *Sim) PaintState(cb *renderer.CommandBuffer, vp scene.Viewport, st flight.AircraftState) {
	buf := s.projected.Get().(*[]scene.Projected)
	*buf = scene.Project(st, s.field, vp, *buf)
	scene.Draw(cb, st, *buf, vp)
	s.projected.Put(buf)

	hud.Draw(cb, st, vp)
}

func (s *Sim) Subscribe() *EventsSubscription {
	return s.eventStream.Subscribe()
}

func (s *Sim) PostEvent(e Event) {
	s.eventStream.Post(e)
}

// MissionUpdated posts the arrival of new orders; it matches the callback
// signature intel.MissionTracker expects.
func (s *Sim) MissionUpdated(m intel.Mission) {
	s.lg.Info("mission updated", slog.String("id", m.ID), slog.String("title", m.Title))
	s.eventStream.Post(Event{Type: MissionUpdatedEvent, Mission: &m})
}

// RadioMessage posts a transcript entry; it matches the callback signature
// intel.Radio expects.
func (s *Sim) RadioMessage(m intel.Message) {
	s.lg.Info("radio", slog.String("role", string(m.Role)), slog.String("content", m.Content))
	s.eventStream.Post(Event{Type: RadioMessageEvent, Message: &m})
}

func (s *Sim) Metrics() *Metrics {
	return s.metrics
}

// Dump writes a human-readable rendition of the current state to w.
func (s *Sim) Dump(w io.Writer) {
	godump.Fdump(w, s.State())
}

func (s *Sim) Destroy() {
	s.eventStream.Destroy()
}
