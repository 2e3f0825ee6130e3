// sim/sim_test.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/intel"
	"github.com/mmp/skypilot/renderer"
	"github.com/mmp/skypilot/scene"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestSim(t *testing.T, config Config) *Sim {
	t.Helper()
	if config.Seed == 0 {
		config.Seed = 1234
	}
	s := NewSim(config, nil)
	t.Cleanup(s.Destroy)
	return s
}

func countEvents(events []Event, et EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == et {
			n++
		}
	}
	return n
}

func TestFirstUpdateHasZeroStep(t *testing.T) {
	s := newTestSim(t, Config{})
	s.Update(time.Now())

	st, init := s.State(), flight.InitialState()
	if st.Position != init.Position || st.Airspeed != init.Airspeed {
		t.Errorf("first update moved the aircraft: %+v", st)
	}
	if n := testutil.ToFloat64(s.Metrics().Ticks); n != 1 {
		t.Errorf("expected one tick, got %f", n)
	}
}

func TestMaxDelta(t *testing.T) {
	clamped := newTestSim(t, Config{MaxDelta: 50 * time.Millisecond})
	stepped := newTestSim(t, Config{})

	t0 := time.Now()
	clamped.Update(t0)
	clamped.Update(t0.Add(10 * time.Second))

	stepped.Step(0)
	stepped.Step(0.05)

	if clamped.State() != stepped.State() {
		t.Errorf("clamped update gave %+v, expected %+v", clamped.State(), stepped.State())
	}

	// Clocks going backwards don't run the sim in reverse.
	before := clamped.State()
	clamped.Update(t0)
	if after := clamped.State(); after.Position.X != before.Position.X {
		t.Errorf("negative step moved the aircraft from %f to %f", before.Position.X, after.Position.X)
	}
}

func TestUpdateUsesElapsedTime(t *testing.T) {
	// Without a MaxDelta, a stall is integrated as the time that passed.
	updated := newTestSim(t, Config{})
	stepped := newTestSim(t, Config{})

	t0 := time.Now()
	updated.Update(t0)
	updated.Update(t0.Add(2 * time.Second))

	stepped.Step(0)
	stepped.Step(2)

	if updated.State() != stepped.State() {
		t.Errorf("update gave %+v, expected %+v", updated.State(), stepped.State())
	}
}

func TestSeedDeterminesField(t *testing.T) {
	a := newTestSim(t, Config{Seed: 99})
	b := newTestSim(t, Config{Seed: 99})
	c := newTestSim(t, Config{Seed: 100})

	if a.Landmarks().Len() != 300 {
		t.Errorf("expected 300 landmarks, got %d", a.Landmarks().Len())
	}
	same, differ := true, false
	for i := range a.Landmarks().Len() {
		same = same && a.Landmarks().At(i) == b.Landmarks().At(i)
		differ = differ || a.Landmarks().At(i) != c.Landmarks().At(i)
	}
	if !same {
		t.Errorf("same seed gave different fields")
	}
	if !differ {
		t.Errorf("different seeds gave the same field")
	}
}

func TestSetKey(t *testing.T) {
	s := newTestSim(t, Config{})

	if err := s.SetKey("KeyW", true); err != nil {
		t.Errorf("KeyW: %v", err)
	}
	if err := s.SetKey("F13", true); !errors.Is(err, ErrUnknownInputCode) {
		t.Errorf("expected ErrUnknownInputCode, got %v", err)
	}
	s.SetControl(flight.ThrottleUp, true)

	in := s.Input()
	if !in.Held(flight.PitchDown) || !in.Held(flight.ThrottleUp) || in.Held(flight.PitchUp) {
		t.Errorf("unexpected input %v", in.Names())
	}

	s.Step(0)
	if st := s.State(); st.Rotation.X >= 0 || st.Throttle <= 0.5 {
		t.Errorf("held controls were not applied: %+v", st)
	}

	s.SetKey("KeyW", false)
	s.SetControl(flight.ThrottleUp, false)
	if s.Input().Any() {
		t.Errorf("controls still held after release: %v", s.Input().Names())
	}
}

func TestGroundImpactReportedOnce(t *testing.T) {
	s := newTestSim(t, Config{})
	sub := s.Subscribe()

	s.SetControl(flight.PitchDown, true)
	for range 1000 {
		s.Step(0.1)
	}

	st := s.State()
	if st.Altitude != 0 || st.Position.Y != 0 {
		t.Errorf("expected the aircraft on the ground: %+v", st)
	}
	events := sub.Get()
	if n := countEvents(events, GroundImpactEvent); n != 1 {
		t.Errorf("expected one impact event, got %d", n)
	}
	if n := testutil.ToFloat64(s.Metrics().GroundImpacts); n != 1 {
		t.Errorf("expected one impact counted, got %f", n)
	}
}

func TestEngineEvents(t *testing.T) {
	s := newTestSim(t, Config{})
	sub := s.Subscribe()

	// Push the engine until it's in trouble.
	s.SetControl(flight.ThrottleUp, true)
	for i := 0; s.State().EngineStatus == flight.EngineRunning; i++ {
		if i == 10000 {
			t.Fatalf("engine never left the running state: %+v", s.State())
		}
		s.Step(0.1)
	}
	s.SetControl(flight.ThrottleUp, false)

	events := sub.Get()
	if len(events) == 0 || events[len(events)-1].Type != EngineStatusChangedEvent {
		t.Fatalf("expected an engine status event, got %v", events)
	}
	if ev := events[len(events)-1]; ev.From != flight.EngineRunning || ev.To != s.State().EngineStatus {
		t.Errorf("unexpected transition %s", ev)
	}
	if g := testutil.ToFloat64(s.Metrics().EngineStatus); g != float64(s.State().EngineStatus) {
		t.Errorf("engine status gauge %f doesn't match %s", g, s.State().EngineStatus)
	}

	// Zero-length steps bring the throttle down without changing stress.
	s.SetControl(flight.ThrottleDown, true)
	for range 110 {
		s.Step(0)
	}
	s.SetControl(flight.ThrottleDown, false)
	if st := s.State(); st.Throttle != 0 || st.EngineStatus == flight.EngineRunning {
		t.Fatalf("unexpected state after idling the engine: %+v", st)
	}

	s.SetControl(flight.EngineRestart, true)
	s.Step(0)
	if s.State().EngineStatus != flight.EngineRunning {
		t.Errorf("restart didn't bring the engine back: %+v", s.State())
	}
	events = sub.Get()
	if countEvents(events, EngineRestartedEvent) != 1 || countEvents(events, EngineStatusChangedEvent) != 1 {
		t.Errorf("expected restart and status events, got %v", events)
	}
}

func TestPaint(t *testing.T) {
	s := newTestSim(t, Config{})
	s.Update(time.Now())

	cb := renderer.GetCommandBuffer()
	defer renderer.ReturnCommandBuffer(cb)

	s.Paint(cb, scene.Viewport{Width: 800, Height: 600})
	if cb.Depth() != 0 {
		t.Errorf("unbalanced transforms after Paint")
	}
	stats := cb.Stats()
	if stats.Triangles == 0 || stats.Strings == 0 {
		t.Errorf("expected scene and HUD, got %s", stats.String())
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestSim(t, Config{})
	s.SetKey("KeyW", true)

	for i := range 5 {
		st, tick := s.Snapshot()
		if tick != uint64(i) {
			t.Errorf("step %d: tick %d", i, tick)
		}
		if st != s.State() || tick != s.Ticks() {
			t.Errorf("step %d: snapshot disagrees with State/Ticks", i)
		}
		s.Step(0.1)
	}

	st, _ := s.Snapshot()
	painted, fromState := renderer.GetCommandBuffer(), renderer.GetCommandBuffer()
	defer renderer.ReturnCommandBuffer(painted)
	defer renderer.ReturnCommandBuffer(fromState)

	vp := scene.Viewport{Width: 800, Height: 600}
	s.Paint(painted, vp)
	s.PaintState(fromState, vp, st)
	paintedStats, fromStateStats := painted.Stats(), fromState.Stats()
	if paintedStats != fromStateStats || len(painted.Commands) != len(fromState.Commands) {
		t.Errorf("Paint and PaintState of the same state differ: %s vs %s",
			paintedStats.String(), fromStateStats.String())
	}
}

func TestConcurrentReaders(t *testing.T) {
	s := newTestSim(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunPhysics(ctx, time.Millisecond)
	}()

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb := renderer.GetCommandBuffer()
			defer renderer.ReturnCommandBuffer(cb)
			for range 20 {
				cb.Reset()
				s.Paint(cb, scene.Viewport{Width: 640, Height: 480})
				s.SetKey("KeyA", true)
				_ = s.State()
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	if testutil.ToFloat64(s.Metrics().Ticks) == 0 {
		t.Errorf("RunPhysics didn't update the sim")
	}
}

func TestIntelCallbacks(t *testing.T) {
	s := newTestSim(t, Config{})
	sub := s.Subscribe()

	s.MissionUpdated(intel.FallbackMission)
	s.RadioMessage(intel.NewMessage(intel.RoleUser, "Control, Eagle One, request vectors."))

	events := sub.Get()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != MissionUpdatedEvent || events[0].Mission.ID != intel.FallbackMission.ID {
		t.Errorf("unexpected mission event %v", events[0])
	}
	if events[1].Type != RadioMessageEvent || events[1].Message.Role != intel.RoleUser {
		t.Errorf("unexpected radio event %v", events[1])
	}
	if !strings.Contains(events[1].String(), "Pilot: Control, Eagle One") {
		t.Errorf("unexpected event string %q", events[1].String())
	}
}

func TestDump(t *testing.T) {
	s := newTestSim(t, Config{})
	var b bytes.Buffer
	s.Dump(&b)
	if !strings.Contains(b.String(), "Airspeed") {
		t.Errorf("dump is missing fields: %s", b.String())
	}
}

type scriptedMissions struct {
	mission intel.Mission
	err     error
}

func (s scriptedMissions) GenerateMission(context.Context, flight.AircraftState) (intel.Mission, error) {
	return s.mission, s.err
}

type scriptedResponder struct {
	err error
}

func (s scriptedResponder) ControlResponse(context.Context, []intel.Message, flight.AircraftState) (string, error) {
	return "Roger.", s.err
}

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newTestSim(t, Config{Registerer: reg})
	s.Step(0.1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, n := range []string{"skypilot_airspeed", "skypilot_altitude", "skypilot_engine_status", "skypilot_ticks_total"} {
		if !names[n] {
			t.Errorf("%s not registered", n)
		}
	}
	if g := testutil.ToFloat64(s.Metrics().Altitude); g != float64(s.State().Altitude) {
		t.Errorf("altitude gauge %f, state %f", g, s.State().Altitude)
	}
}

func TestAIRequestMetrics(t *testing.T) {
	m := NewMetrics(nil)
	ctx := context.Background()

	for _, tc := range []struct {
		gen     scriptedMissions
		outcome string
	}{
		{scriptedMissions{mission: intel.Mission{ID: "m-1"}}, "ok"},
		{scriptedMissions{mission: intel.FallbackMission}, "fallback"},
		{scriptedMissions{err: intel.ErrNoCredentials}, "offline"},
		{scriptedMissions{err: context.Canceled}, "cancelled"},
		{scriptedMissions{err: errors.New("502")}, "error"},
	} {
		m.MissionGenerator(tc.gen).GenerateMission(ctx, flight.InitialState())
		if n := testutil.ToFloat64(m.AIRequests.WithLabelValues("mission", tc.outcome)); n != 1 {
			t.Errorf("%s: expected 1 request, got %f", tc.outcome, n)
		}
	}

	r := m.ControlResponder(scriptedResponder{})
	if reply, err := r.ControlResponse(ctx, nil, flight.InitialState()); reply != "Roger." || err != nil {
		t.Errorf("wrapper changed the reply: %q %v", reply, err)
	}
	m.ControlResponder(scriptedResponder{err: errors.New("boom")}).ControlResponse(ctx, nil, flight.InitialState())
	if n := testutil.ToFloat64(m.AIRequests.WithLabelValues("radio", "ok")); n != 1 {
		t.Errorf("expected 1 ok radio request, got %f", n)
	}
	if n := testutil.ToFloat64(m.AIRequests.WithLabelValues("radio", "error")); n != 1 {
		t.Errorf("expected 1 failed radio request, got %f", n)
	}
}
