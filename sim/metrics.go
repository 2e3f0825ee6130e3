// sim/metrics.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"errors"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/intel"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports the aircraft's instruments and a few counters for
// scraping. Each Sim has its own set; they are only registered if a
// Registerer is provided.
type Metrics struct {
	Airspeed     prometheus.Gauge
	Altitude     prometheus.Gauge
	Throttle     prometheus.Gauge
	Fuel         prometheus.Gauge
	EngineStress prometheus.Gauge
	EngineStatus prometheus.Gauge

	Ticks          prometheus.Counter
	EngineFailures prometheus.Counter
	GroundImpacts  prometheus.Counter
	AIRequests     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Airspeed:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "skypilot_airspeed"}),
		Altitude:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "skypilot_altitude"}),
		Throttle:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "skypilot_throttle_ratio"}),
		Fuel:         prometheus.NewGauge(prometheus.GaugeOpts{Name: "skypilot_fuel_percent"}),
		EngineStress: prometheus.NewGauge(prometheus.GaugeOpts{Name: "skypilot_engine_stress"}),
		EngineStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "skypilot_engine_status",
			Help: "Engine status: 0 running, 1 warning, 2 failed",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skypilot_ticks_total",
			Help: "Number of physics updates",
		}),
		EngineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skypilot_engine_failures_total",
			Help: "Number of transitions into the failed engine state",
		}),
		GroundImpacts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skypilot_ground_impacts_total",
			Help: "Number of times the aircraft hit the ground",
		}),
		AIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skypilot_ai_requests_total",
				Help: "Requests to the language model by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Airspeed, m.Altitude, m.Throttle, m.Fuel, m.EngineStress,
			m.EngineStatus, m.Ticks, m.EngineFailures, m.GroundImpacts, m.AIRequests)
	}
	return m
}

func (m *Metrics) observe(s flight.AircraftState) {
	m.Airspeed.Set(float64(s.Airspeed))
	m.Altitude.Set(float64(s.Altitude))
	m.Throttle.Set(float64(s.Throttle))
	m.Fuel.Set(float64(s.Fuel))
	m.EngineStress.Set(float64(s.EngineStress))
	m.EngineStatus.Set(float64(s.EngineStatus))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, intel.ErrNoCredentials):
		return "offline"
	default:
		return "error"
	}
}

// MissionGenerator wraps g so that its requests are counted.
func (m *Metrics) MissionGenerator(g intel.MissionGenerator) intel.MissionGenerator {
	return &countedMissions{g: g, m: m}
}

// ControlResponder wraps r so that its requests are counted.
func (m *Metrics) ControlResponder(r intel.ControlResponder) intel.ControlResponder {
	return &countedResponder{r: r, m: m}
}

type countedMissions struct {
	g intel.MissionGenerator
	m *Metrics
}

func (c *countedMissions) GenerateMission(ctx context.Context, s flight.AircraftState) (intel.Mission, error) {
	mission, err := c.g.GenerateMission(ctx, s)
	o := outcome(err)
	if err == nil && mission.ID == intel.FallbackMission.ID {
		o = "fallback"
	}
	c.m.AIRequests.WithLabelValues("mission", o).Inc()
	return mission, err
}

type countedResponder struct {
	r intel.ControlResponder
	m *Metrics
}

func (c *countedResponder) ControlResponse(ctx context.Context, history []intel.Message, s flight.AircraftState) (string, error) {
	reply, err := c.r.ControlResponse(ctx, history, s)
	c.m.AIRequests.WithLabelValues("radio", outcome(err)).Inc()
	return reply, err
}
