// server/handlers.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/intel"

	"github.com/shirou/gopsutil/cpu"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultFrameWidth  = 800
	defaultFrameHeight = 600
	maxFrameDimension  = 8192
	maxBodyBytes       = 64 * 1024
)

type serverStats struct {
	Uptime           time.Duration `json:"uptime"`
	AllocMemory      uint64        `json:"allocMemoryMB"`
	TotalAllocMemory uint64        `json:"totalAllocMemoryMB"`
	SysMemory        uint64        `json:"sysMemoryMB"`
	NumGC            uint32        `json:"numGC"`
	NumGoRoutines    int           `json:"numGoroutines"`
	CPUUsage         int           `json:"cpuUsage"`

	Ticks        uint64              `json:"ticks"`
	EngineStatus flight.EngineStatus `json:"engineStatus"`
	Altitude     float32             `json:"altitude"`
}

func (srv *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (srv *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	// Usage since the previous request; the first one may report zero.
	var usage int
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		usage = int(pct[0] + 0.5)
	}

	st := srv.sim.State()
	stats := serverStats{
		Uptime:           time.Since(srv.startTime).Round(time.Second),
		AllocMemory:      m.Alloc / (1024 * 1024),
		TotalAllocMemory: m.TotalAlloc / (1024 * 1024),
		SysMemory:        m.Sys / (1024 * 1024),
		NumGC:            m.NumGC,
		NumGoRoutines:    runtime.NumGoroutine(),
		CPUUsage:         usage,
		Ticks:            srv.sim.Ticks(),
		EngineStatus:     st.EngineStatus,
		Altitude:         st.Altitude,
	}

	writeJSON(w, stats)
	srv.lg.Infof("%s: served stats request", r.URL.String())
}

func (srv *Server) state(w http.ResponseWriter, r *http.Request) {
	writeEncoded(w, r, srv.sim.State())
}

// streamState sends a state snapshot as a server-sent event each stream
// interval until the client goes away.
func (srv *Server) streamState(w http.ResponseWriter, r *http.Request) {
	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	tick := time.NewTicker(srv.streamInterval)
	defer tick.Stop()

	ctx := r.Context()
	for {
		b, _ := json.Marshal(srv.sim.State())
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", b)
		flusher.Flush()

		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// streamEvents forwards everything posted to the sim's event stream from
// the time of the request onward.
func (srv *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	sub := srv.sim.Subscribe()
	defer sub.Unsubscribe()

	flusher, ok := startSSE(w)
	if !ok {
		return
	}

	tick := time.NewTicker(srv.streamInterval)
	defer tick.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		for _, ev := range sub.Get() {
			b, err := json.Marshal(ev)
			if err != nil {
				srv.lg.Errorf("%s: %v", ev, err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, b)
		}
		flusher.Flush()
	}
}

func startSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	return flusher, true
}

type inputRequest struct {
	// Either a key code ("KeyW") or a control name ("pitch-down").
	Code    string `json:"code,omitempty"`
	Control string `json:"control,omitempty"`
	Down    bool   `json:"down"`
}

func (srv *Server) input(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	switch {
	case req.Control != "":
		c, err := flight.ParseControl(req.Control)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		srv.sim.SetControl(c, req.Down)

	case req.Code != "":
		if err := srv.sim.SetKey(req.Code, req.Down); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

	default:
		http.Error(w, "code or control required", http.StatusBadRequest)
		return
	}

	writeJSON(w, srv.sim.Input())
}

func (srv *Server) frame(w http.ResponseWriter, r *http.Request) {
	width, err := dimension(r, "w", defaultFrameWidth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := dimension(r, "h", defaultFrameHeight)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := frameKey{
		Width:   width,
		Height:  height,
		Msgpack: wantsMsgpack(r),
		Zstd:    acceptsZstd(r.Header.Get("Accept-Encoding")),
	}
	b, err := srv.frames.Get(key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if key.Msgpack {
		w.Header().Set("Content-Type", "application/msgpack")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if key.Zstd {
		w.Header().Set("Content-Encoding", "zstd")
	}
	w.Header().Add("Vary", "Accept, Accept-Encoding")
	_, _ = w.Write(b)
}

func dimension(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	d, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 || d > maxFrameDimension {
		return 0, fmt.Errorf("%s: %d out of range", key, d)
	}
	return d, nil
}

type missionResponse struct {
	Mission *intel.Mission `json:"mission" msgpack:"mission"`
	Loading bool           `json:"loading" msgpack:"loading"`
	Error   string         `json:"error,omitempty" msgpack:"error,omitempty"`
}

func (srv *Server) mission(w http.ResponseWriter, r *http.Request) {
	resp := missionResponse{
		Mission: srv.missions.Active(),
		Loading: srv.missions.Loading(),
	}
	if err := srv.missions.Err(); err != nil {
		resp.Error = err.Error()
	}
	writeEncoded(w, r, resp)
}

func (srv *Server) refreshMission(w http.ResponseWriter, r *http.Request) {
	srv.missions.Refresh(srv.ctx, srv.sim.State())

	writeJSONStatus(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

type radioResponse struct {
	Typing     bool            `json:"typing" msgpack:"typing"`
	Transcript []intel.Message `json:"transcript" msgpack:"transcript"`
}

func (srv *Server) getRadio(w http.ResponseWriter, r *http.Request) {
	writeEncoded(w, r, radioResponse{
		Typing:     srv.radio.Typing(),
		Transcript: srv.radio.Transcript(),
	})
}

func (srv *Server) transmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	err := srv.radio.Transmit(srv.ctx, req.Message, srv.sim.State())
	switch {
	case errors.Is(err, intel.ErrEmptyMessage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, intel.ErrRadioBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSONStatus(w, http.StatusAccepted, map[string]any{"status": "accepted"})
	}
}

func (srv *Server) clearRadio(w http.ResponseWriter, r *http.Request) {
	srv.radio.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func wantsMsgpack(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/msgpack") || strings.Contains(accept, "application/x-msgpack")
}

// writeEncoded writes v as msgpack if the client asked for it and as JSON
// otherwise.
func writeEncoded(w http.ResponseWriter, r *http.Request, v any) {
	if !wantsMsgpack(r) {
		writeJSON(w, v)
		return
	}

	b, err := msgpack.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/msgpack")
	_, _ = w.Write(b)
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
