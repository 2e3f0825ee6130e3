// server/server.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package server exposes a running sim over HTTP: its state, its event
// stream, rendered frames, and the mission and radio collaborators. It
// is the only interface to the sim when running headless.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mmp/skypilot/intel"
	"github.com/mmp/skypilot/log"
	"github.com/mmp/skypilot/sim"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultStreamInterval = 100 * time.Millisecond

type Config struct {
	// StreamInterval is the period between state snapshots on /stream
	// and between event polls on /events.
	StreamInterval time.Duration
	// Gatherer provides /metrics; prometheus.DefaultGatherer is used if
	// it is nil.
	Gatherer prometheus.Gatherer
}

type Server struct {
	sim      *sim.Sim
	missions *intel.MissionTracker
	radio    *intel.Radio
	lg       *log.Logger

	frames         *frameCache
	mux            *http.ServeMux
	startTime      time.Time
	streamInterval time.Duration

	// Requests started on behalf of a client outlive the HTTP request,
	// so they run under the server's context instead.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(s *sim.Sim, missions *intel.MissionTracker, radio *intel.Radio, config Config, lg *log.Logger) *Server {
	if config.StreamInterval == 0 {
		config.StreamInterval = DefaultStreamInterval
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	srv := &Server{
		sim:            s,
		missions:       missions,
		radio:          radio,
		lg:             lg,
		frames:         newFrameCache(s),
		mux:            http.NewServeMux(),
		startTime:      time.Now(),
		streamInterval: config.StreamInterval,
	}
	srv.ctx, srv.cancel = context.WithCancel(context.Background())

	srv.mux.HandleFunc("GET /health", srv.health)
	srv.mux.HandleFunc("GET /sup", srv.statsHandler)
	srv.mux.HandleFunc("GET /state", srv.state)
	srv.mux.HandleFunc("GET /stream", srv.streamState)
	srv.mux.HandleFunc("GET /events", srv.streamEvents)
	srv.mux.HandleFunc("POST /input", srv.input)
	srv.mux.HandleFunc("GET /frame", srv.frame)
	srv.mux.HandleFunc("GET /mission", srv.mission)
	srv.mux.HandleFunc("POST /mission/refresh", srv.refreshMission)
	srv.mux.HandleFunc("GET /radio", srv.getRadio)
	srv.mux.HandleFunc("POST /radio", srv.transmit)
	srv.mux.HandleFunc("DELETE /radio", srv.clearRadio)
	srv.mux.Handle("GET /metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))

	return srv
}

func (srv *Server) Handler() http.Handler {
	return srv.mux
}

// ListenAndServe serves HTTP on addr until ctx is cancelled, at which
// point the server is shut down gracefully.
func (srv *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s: %w", addr, err)
	}
	return srv.Serve(ctx, listener)
}

func (srv *Server) Serve(ctx context.Context, listener net.Listener) error {
	hs := &http.Server{
		Handler:           srv.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	srv.lg.Infof("Launching HTTP server on %s", listener.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- hs.Serve(listener)
	}()

	select {
	case err := <-errc:
		srv.Close()
		return err
	case <-ctx.Done():
	}

	srv.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close abandons any mission or radio requests that clients started.
func (srv *Server) Close() {
	srv.cancel()
}
