// cmd/skypilot/main.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/mmp/skypilot/config"
	"github.com/mmp/skypilot/intel"
	"github.com/mmp/skypilot/log"
	"github.com/mmp/skypilot/server"
	"github.com/mmp/skypilot/sim"

	"github.com/apenwarr/fixconsole"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

var (
	logLevel  = flag.String("loglevel", "", "logging level: debug, info, warn, error (default from SKYPILOT_LOGLEVEL or info)")
	logDir    = flag.String("logdir", "", "log file directory")
	headless  = flag.Bool("headless", false, "run the simulation without a window")
	httpAddr  = flag.String("http", "", "address for the HTTP server (default from SKYPILOT_HTTP_ADDR)")
	seed      = flag.Int64("seed", 0, "seed for the landmark field and engine failures")
	width     = flag.Int("width", 1280, "window width")
	height    = flag.Int("height", 800, "window height")
	openUI    = flag.Bool("open", false, "open the HTTP server's status page in a browser")
	dumpState = flag.Bool("dumpstate", false, "print the initial aircraft state and exit")
	maxDelta  = flag.Duration("maxdelta", 0, "largest time step taken by one update; 0 for no limit")
	tick      = flag.Duration("tick", 16*time.Millisecond, "update interval when running headless")
)

func init() {
	// The window's event loop must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	flag.Parse()

	if err := fixconsole.FixConsoleIfNeeded(); err != nil {
		fmt.Printf("FixConsole: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *headless && cfg.HTTPAddr == "" {
		cfg.HTTPAddr = net.JoinHostPort("localhost", "8080")
	}

	lg := log.New(*headless, cfg.LogLevel, *logDir)
	defer lg.CatchAndReportCrash()

	lg.Info("starting", slog.Any("config", cfg), slog.Bool("headless", *headless))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := sim.NewSim(sim.Config{
		Seed:       *seed,
		MaxDelta:   *maxDelta,
		Registerer: reg,
	}, lg)
	defer s.Destroy()

	if *dumpState {
		s.Dump(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	missionGen, responder := aiBackends(ctx, cfg, lg)
	missions := intel.NewMissionTracker(s.Metrics().MissionGenerator(missionGen), lg, s.MissionUpdated)
	radio := intel.NewRadio(s.Metrics().ControlResponder(responder), lg, s.RadioMessage)
	defer func() {
		missions.Close()
		radio.Close()
		missions.Wait()
		radio.Wait()
	}()

	missions.Refresh(ctx, s.State())

	eg, ctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		srv := server.New(s, missions, radio, server.Config{Gatherer: reg}, lg)
		defer srv.Close()

		eg.Go(func() error {
			defer lg.CatchAndReportCrash()
			return srv.ListenAndServe(ctx, cfg.HTTPAddr)
		})

		if *openUI {
			url := "http://" + cfg.HTTPAddr + "/sup"
			if err := browser.OpenURL(url); err != nil {
				lg.Warn("unable to open browser", slog.String("url", url), slog.Any("error", err))
			}
		}
	}

	if *headless {
		eg.Go(func() error {
			defer lg.CatchAndReportCrash()
			return s.RunPhysics(ctx, *tick)
		})
	} else {
		game := NewGame(ctx, s, missions, radio, lg)
		defer game.Close()

		ebiten.SetWindowSize(*width, *height)
		ebiten.SetWindowTitle("Skypilot")
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
		ebiten.SetTPS(ebiten.SyncWithFPS)

		if err := ebiten.RunGame(game); err != nil {
			lg.Error("game", slog.Any("error", err))
		}
		// Closing the window ends the run.
		stop()
	}

	if err := eg.Wait(); err != nil {
		lg.Error("shutdown", slog.Any("error", err))
		return
	}
	lg.Info("exiting")
}

// aiBackends returns the mission generator and Control responder. Without
// credentials, or if the client can't be created, both run offline.
func aiBackends(ctx context.Context, cfg *config.Config, lg *log.Logger) (intel.MissionGenerator, intel.ControlResponder) {
	if !cfg.HasCredentials() {
		lg.Warn("no API key; mission orders and radio are offline")
		return intel.Offline{}, intel.Offline{}
	}

	g, err := intel.NewGemini(ctx, cfg.APIKey, cfg.Model, lg)
	if err != nil {
		lg.Error("unable to create model client", slog.Any("error", err))
		return intel.Offline{}, intel.Offline{}
	}
	return g, g
}
