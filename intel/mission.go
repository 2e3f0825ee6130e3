// intel/mission.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package intel

import (
	"context"
	"sync"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/log"

	"github.com/brunoga/deep"
)

// MissionTracker holds the active mission and fetches replacements on
// request. Only the most recent request matters: starting a new one
// cancels any that is outstanding and a stale reply is dropped.
type MissionTracker struct {
	gen      MissionGenerator
	lg       *log.Logger
	onUpdate func(Mission)

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	loading    bool
	active     *Mission
	err        error
	wg         sync.WaitGroup
}

// NewMissionTracker returns a tracker with no active mission. If onUpdate
// is non-nil, it is called with each mission that becomes active; it
// must not call back into the tracker.
func NewMissionTracker(gen MissionGenerator, lg *log.Logger, onUpdate func(Mission)) *MissionTracker {
	return &MissionTracker{gen: gen, lg: lg, onUpdate: onUpdate}
}

// Refresh requests new orders for the given state and returns
// immediately. The request is abandoned when ctx is cancelled or another
// Refresh supersedes it.
func (mt *MissionTracker) Refresh(ctx context.Context, s flight.AircraftState) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.cancel != nil {
		mt.cancel()
	}
	mt.generation++
	gen := mt.generation
	ctx, cancel := context.WithCancel(ctx)
	mt.cancel = cancel
	mt.loading = true

	mt.wg.Add(1)
	go func() {
		defer mt.wg.Done()
		defer cancel()
		defer mt.lg.CatchAndReportCrash()

		m, err := mt.gen.GenerateMission(ctx, s)
		mt.settle(gen, m, err)
	}()
}

func (mt *MissionTracker) settle(gen uint64, m Mission, err error) {
	mt.mu.Lock()
	if gen != mt.generation {
		mt.mu.Unlock()
		mt.lg.Debug("dropping stale mission", "generation", gen, "current", mt.generation)
		return
	}

	mt.loading = false
	mt.cancel = nil
	mt.err = err
	if err != nil {
		mt.mu.Unlock()
		// The previous mission, if any, stays active.
		mt.lg.Warn("mission request failed", "error", err)
		return
	}
	mt.active = &m
	mt.mu.Unlock()

	mt.lg.Info("new mission", "id", m.ID, "title", m.Title)
	if mt.onUpdate != nil {
		mt.onUpdate(m)
	}
}

// Loading reports whether a request is outstanding.
func (mt *MissionTracker) Loading() bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.loading
}

// Active returns a copy of the active mission, or nil if none has
// arrived yet.
func (mt *MissionTracker) Active() *Mission {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.active == nil {
		return nil
	}
	return deep.MustCopy(mt.active)
}

// Err returns the error from the most recent settled request.
func (mt *MissionTracker) Err() error {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.err
}

// Close cancels any outstanding request.
func (mt *MissionTracker) Close() {
	mt.mu.Lock()
	if mt.cancel != nil {
		mt.cancel()
	}
	mt.mu.Unlock()
}

// Wait blocks until all requests started so far have returned.
func (mt *MissionTracker) Wait() {
	mt.wg.Wait()
}
