// server/server_test.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/intel"
	"github.com/mmp/skypilot/renderer"
	"github.com/mmp/skypilot/scene"
	"github.com/mmp/skypilot/sim"

	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vmihailenco/msgpack/v5"
)

type fixedMissions struct {
	mission intel.Mission
}

func (f fixedMissions) GenerateMission(context.Context, flight.AircraftState) (intel.Mission, error) {
	return f.mission, nil
}

// gatedResponder replies once release is closed.
type gatedResponder struct {
	release chan struct{}
}

func (g gatedResponder) ControlResponse(ctx context.Context, _ []intel.Message, _ flight.AircraftState) (string, error) {
	select {
	case <-g.release:
		return "Roger, Eagle One.", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type fixture struct {
	sim      *sim.Sim
	missions *intel.MissionTracker
	radio    *intel.Radio
	release  chan struct{}
	srv      *Server
	ts       *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	f := &fixture{
		sim:     sim.NewSim(sim.Config{Seed: 7, Registerer: reg}, nil),
		release: make(chan struct{}),
	}
	f.missions = intel.NewMissionTracker(fixedMissions{mission: intel.Mission{ID: "m-7", Title: "Ridge Run"}},
		nil, f.sim.MissionUpdated)
	f.radio = intel.NewRadio(gatedResponder{release: f.release}, nil, f.sim.RadioMessage)
	f.srv = New(f.sim, f.missions, f.radio, Config{StreamInterval: 10 * time.Millisecond, Gatherer: reg}, nil)
	f.ts = httptest.NewServer(f.srv.Handler())

	t.Cleanup(func() {
		f.ts.Close()
		f.srv.Close()
		f.missions.Wait()
		f.radio.Wait()
		f.sim.Destroy()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, f.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, b := f.do(t, "GET", "/health", "")
	if resp.StatusCode != http.StatusOK || string(b) != "ok\n" {
		t.Errorf("health: %d %q", resp.StatusCode, b)
	}
}

func TestState(t *testing.T) {
	f := newFixture(t)
	f.sim.Step(0.1)

	resp, b := f.do(t, "GET", "/state", "")
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var st flight.AircraftState
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("%s: %v", b, err)
	}
	if st != f.sim.State() {
		t.Errorf("got %+v, expected %+v", st, f.sim.State())
	}

	resp, b = f.do(t, "GET", "/state", "", "Accept", "application/msgpack")
	if ct := resp.Header.Get("Content-Type"); ct != "application/msgpack" {
		t.Errorf("unexpected content type %q", ct)
	}
	var mst flight.AircraftState
	if err := msgpack.Unmarshal(b, &mst); err != nil {
		t.Fatal(err)
	}
	if mst != f.sim.State() {
		t.Errorf("msgpack: got %+v, expected %+v", mst, f.sim.State())
	}
}

func TestInput(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		method, body string
		status       int
	}{
		{"POST", `{"code": "KeyW", "down": true}`, http.StatusOK},
		{"POST", `{"control": "throttle-up", "down": true}`, http.StatusOK},
		{"POST", `{"code": "KeyP", "down": true}`, http.StatusBadRequest},
		{"POST", `{"control": "eject", "down": true}`, http.StatusBadRequest},
		{"POST", `{"down": true}`, http.StatusBadRequest},
		{"POST", `{"code": `, http.StatusBadRequest},
		{"GET", "", http.StatusMethodNotAllowed},
	} {
		if resp, b := f.do(t, tc.method, "/input", tc.body); resp.StatusCode != tc.status {
			t.Errorf("%s %s: got %d, expected %d (%s)", tc.method, tc.body, resp.StatusCode, tc.status, b)
		}
	}

	in := f.sim.Input()
	if names := in.Names(); len(names) != 2 || !in.Held(flight.PitchDown) || !in.Held(flight.ThrottleUp) {
		t.Errorf("unexpected held controls %v", names)
	}

	_, b := f.do(t, "POST", "/input", `{"code": "KeyW", "down": false}`)
	if strings.TrimSpace(string(b)) != `[
  "throttle-up"
]` {
		t.Errorf("unexpected response %s", b)
	}
}

func TestFrame(t *testing.T) {
	f := newFixture(t)

	_, b := f.do(t, "GET", "/frame?w=640&h=480", "")
	var cb renderer.CommandBuffer
	if err := json.Unmarshal(b, &cb); err != nil {
		t.Fatal(err)
	}
	if stats := cb.Stats(); stats.Triangles == 0 || stats.Strings == 0 {
		t.Errorf("frame is missing the scene or HUD: %s", stats.String())
	}

	_, b = f.do(t, "GET", "/frame", "", "Accept", "application/msgpack")
	var mcb renderer.CommandBuffer
	if err := msgpack.Unmarshal(b, &mcb); err != nil {
		t.Fatal(err)
	}
	if len(mcb.Commands) == 0 {
		t.Errorf("empty msgpack frame")
	}

	for _, q := range []string{"w=0", "h=abc", "w=100000"} {
		if resp, _ := f.do(t, "GET", "/frame?"+q, ""); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

func TestFrameZstd(t *testing.T) {
	f := newFixture(t)

	_, plain := f.do(t, "GET", "/frame?w=320&h=200", "")
	resp, b := f.do(t, "GET", "/frame?w=320&h=200", "", "Accept-Encoding", "gzip, zstd;q=0.9")
	if ce := resp.Header.Get("Content-Encoding"); ce != "zstd" {
		t.Fatalf("Content-Encoding %q, want zstd", ce)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	got, err := dec.DecodeAll(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	// No ticks have run, so both requests see the same state.
	if !bytes.Equal(got, plain) {
		t.Errorf("decompressed frame differs from the uncompressed one")
	}
}

func TestFrameCacheTick(t *testing.T) {
	f := newFixture(t)
	fc := newFrameCache(f.sim)
	f.sim.SetKey("KeyW", true)

	for i := range 4 {
		st, tick := f.sim.Snapshot()
		b, err := fc.Get(frameKey{Width: 320, Height: 200})
		if err != nil {
			t.Fatal(err)
		}

		// The entry is stored under the tick whose state was drawn.
		cached, ok := fc.cache.Peek(frameKey{Width: 320, Height: 200, Tick: tick})
		if !ok {
			t.Fatalf("step %d: no frame cached for tick %d", i, tick)
		}
		if !bytes.Equal(cached, b) {
			t.Errorf("step %d: cached frame differs from the returned one", i)
		}

		cb := renderer.GetCommandBuffer()
		f.sim.PaintState(cb, scene.Viewport{Width: 320, Height: 200}, st)
		var want bytes.Buffer
		enc := json.NewEncoder(&want)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cb); err != nil {
			t.Fatal(err)
		}
		renderer.ReturnCommandBuffer(cb)
		if !bytes.Equal(b, want.Bytes()) {
			t.Errorf("step %d: frame for tick %d doesn't match that tick's state", i, tick)
		}

		f.sim.Step(0.1)
	}
}

func TestAcceptsZstd(t *testing.T) {
	for _, test := range []struct {
		header string
		want   bool
	}{
		{"", false},
		{"gzip", false},
		{"zstd", true},
		{"gzip, deflate, zstd", true},
		{"br;q=1.0, zstd;q=0.5", true},
		{"zstdx", false},
	} {
		if got := acceptsZstd(test.header); got != test.want {
			t.Errorf("acceptsZstd(%q) = %v, want %v", test.header, got, test.want)
		}
	}
}

func TestMission(t *testing.T) {
	f := newFixture(t)

	var mr missionResponse
	_, b := f.do(t, "GET", "/mission", "")
	if err := json.Unmarshal(b, &mr); err != nil {
		t.Fatal(err)
	}
	if mr.Mission != nil || mr.Loading {
		t.Errorf("expected no mission yet, got %s", b)
	}

	if resp, b := f.do(t, "POST", "/mission/refresh", ""); resp.StatusCode != http.StatusAccepted {
		t.Errorf("refresh: %d %s", resp.StatusCode, b)
	}
	f.missions.Wait()

	_, b = f.do(t, "GET", "/mission", "")
	mr = missionResponse{}
	if err := json.Unmarshal(b, &mr); err != nil {
		t.Fatal(err)
	}
	if mr.Mission == nil || mr.Mission.ID != "m-7" || mr.Loading || mr.Error != "" {
		t.Errorf("unexpected mission response %s", b)
	}
}

func TestRadio(t *testing.T) {
	f := newFixture(t)

	if resp, _ := f.do(t, "POST", "/radio", `{"message": "   "}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty message: expected 400, got %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, "POST", "/radio", `{"message": "Request vectors."}`); resp.StatusCode != http.StatusAccepted {
		t.Errorf("transmit: expected 202, got %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, "POST", "/radio", `{"message": "Hello?"}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("busy radio: expected 409, got %d", resp.StatusCode)
	}

	var rr radioResponse
	_, b := f.do(t, "GET", "/radio", "")
	if err := json.Unmarshal(b, &rr); err != nil {
		t.Fatal(err)
	}
	if !rr.Typing || len(rr.Transcript) != 2 {
		t.Errorf("expected pending reply, got %s", b)
	}

	close(f.release)
	f.radio.Wait()

	rr = radioResponse{}
	_, b = f.do(t, "GET", "/radio", "", "Accept", "application/msgpack")
	if err := msgpack.Unmarshal(b, &rr); err != nil {
		t.Fatal(err)
	}
	if rr.Typing || len(rr.Transcript) != 3 || rr.Transcript[2].Role != intel.RoleModel {
		t.Errorf("expected Control's reply, got %+v", rr)
	}

	if resp, _ := f.do(t, "DELETE", "/radio", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear: expected 204, got %d", resp.StatusCode)
	}
	if tr := f.radio.Transcript(); len(tr) != 1 {
		t.Errorf("expected only the greeting after clearing, got %d messages", len(tr))
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.sim.Step(0.1)

	var stats map[string]any
	_, b := f.do(t, "GET", "/sup", "")
	if err := json.Unmarshal(b, &stats); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"uptime", "allocMemoryMB", "numGoroutines", "cpuUsage", "ticks", "engineStatus"} {
		if _, ok := stats[k]; !ok {
			t.Errorf("stats missing %q: %s", k, b)
		}
	}
	if stats["ticks"] != float64(1) {
		t.Errorf("expected 1 tick, got %v", stats["ticks"])
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.sim.Step(0.1)

	_, b := f.do(t, "GET", "/metrics", "")
	for _, m := range []string{"skypilot_ticks_total 1", "skypilot_altitude", "skypilot_engine_status 0"} {
		if !strings.Contains(string(b), m) {
			t.Errorf("metrics missing %q", m)
		}
	}
}

// readEvent returns the next server-sent event's type and data.
func readEvent(t *testing.T, sc *bufio.Scanner) (string, string) {
	t.Helper()

	var typ, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			typ = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && typ != "":
			return typ, data
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return "", ""
}

func openStream(t *testing.T, f *fixture, path string) *bufio.Scanner {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, "GET", f.ts.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	return bufio.NewScanner(resp.Body)
}

func TestStreamState(t *testing.T) {
	f := newFixture(t)
	sc := openStream(t, f, "/stream")

	typ, data := readEvent(t, sc)
	if typ != "state" {
		t.Fatalf("expected a state event, got %q", typ)
	}
	var st flight.AircraftState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		t.Fatalf("%s: %v", data, err)
	}
	if st.Fuel != 100 {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestStreamEvents(t *testing.T) {
	f := newFixture(t)
	sc := openStream(t, f, "/events")

	// The subscription exists once the headers have arrived.
	f.sim.MissionUpdated(intel.FallbackMission)

	typ, data := readEvent(t, sc)
	if typ != "mission-updated" {
		t.Fatalf("expected a mission event, got %q", typ)
	}
	var ev sim.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Mission == nil || ev.Mission.ID != intel.FallbackMission.ID {
		t.Errorf("unexpected event %s", data)
	}
}

func TestServeShutdown(t *testing.T) {
	f := newFixture(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- f.srv.Serve(ctx, listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Serve didn't return after cancellation")
	}
}
