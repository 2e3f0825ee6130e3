// intel/mission_test.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package intel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mmp/skypilot/flight"
)

func TestMissionRefresh(t *testing.T) {
	gen := newScripted()
	var mu sync.Mutex
	var updates []Mission
	mt := NewMissionTracker(gen, nil, func(m Mission) {
		mu.Lock()
		updates = append(updates, m)
		mu.Unlock()
	})

	if mt.Active() != nil || mt.Loading() {
		t.Fatalf("new tracker should be idle with no mission")
	}

	mt.Refresh(context.Background(), flight.InitialState())
	<-gen.started
	if !mt.Loading() {
		t.Errorf("expected loading while the request is outstanding")
	}

	m := Mission{ID: "a", Title: "Alpha"}
	gen.answer(0, result{mission: m})
	mt.Wait()

	if mt.Loading() {
		t.Errorf("expected loading to clear once settled")
	}
	if got := mt.Active(); got == nil || *got != m {
		t.Errorf("got active mission %+v", got)
	}
	if len(updates) != 1 || updates[0] != m {
		t.Errorf("unexpected updates %+v", updates)
	}

	// The returned mission is a copy.
	mt.Active().Title = "changed"
	if mt.Active().Title != "Alpha" {
		t.Errorf("Active returned shared storage")
	}
}

func TestMissionFailureKeepsPrevious(t *testing.T) {
	gen := newScripted()
	mt := NewMissionTracker(gen, nil, nil)

	// A failure with no mission yet leaves none.
	mt.Refresh(context.Background(), flight.InitialState())
	<-gen.started
	gen.answer(0, result{err: errors.New("network down")})
	mt.Wait()
	if mt.Active() != nil || mt.Loading() || mt.Err() == nil {
		t.Errorf("expected no mission and an error after failure")
	}

	mt.Refresh(context.Background(), flight.InitialState())
	<-gen.started
	gen.answer(1, result{mission: FallbackMission})
	mt.Wait()
	if got := mt.Active(); got == nil || *got != FallbackMission || mt.Err() != nil {
		t.Errorf("expected fallback mission to become active, got %+v", got)
	}

	mt.Refresh(context.Background(), flight.InitialState())
	<-gen.started
	gen.answer(2, result{err: errors.New("rate limited")})
	mt.Wait()
	if got := mt.Active(); got == nil || *got != FallbackMission {
		t.Errorf("failure replaced the previous mission: %+v", got)
	}
}

func TestMissionSupersede(t *testing.T) {
	gen := newScripted()
	mt := NewMissionTracker(gen, nil, nil)

	mt.Refresh(context.Background(), flight.InitialState())
	<-gen.started
	mt.Refresh(context.Background(), flight.InitialState())
	<-gen.started

	// The first request was cancelled; it settles with an error that
	// must not clear loading or record a failure.
	if !mt.Loading() {
		t.Errorf("expected loading with the second request outstanding")
	}

	second := Mission{ID: "second"}
	gen.answer(1, result{mission: second})
	mt.Wait()

	if mt.Loading() {
		t.Errorf("expected loading to clear")
	}
	if got := mt.Active(); got == nil || *got != second {
		t.Errorf("expected second mission, got %+v", got)
	}
	if mt.Err() != nil {
		t.Errorf("stale cancellation recorded as error: %v", mt.Err())
	}
}

func TestMissionStaleReplyDropped(t *testing.T) {
	// A generator that ignores cancellation still can't clobber a newer
	// mission.
	gen := newScripted()
	stubborn := generatorFunc(func(ctx context.Context, s flight.AircraftState) (Mission, error) {
		return gen.GenerateMission(context.WithoutCancel(ctx), s)
	})
	mt := NewMissionTracker(stubborn, nil, nil)

	mt.Refresh(context.Background(), flight.InitialState())
	<-gen.started
	mt.Refresh(context.Background(), flight.InitialState())
	<-gen.started

	gen.answer(1, result{mission: Mission{ID: "new"}})
	gen.answer(0, result{mission: Mission{ID: "old"}})
	mt.Wait()

	if got := mt.Active(); got == nil || got.ID != "new" {
		t.Errorf("stale mission became active: %+v", got)
	}
}

func TestMissionOffline(t *testing.T) {
	mt := NewMissionTracker(Offline{}, nil, nil)
	mt.Refresh(context.Background(), flight.InitialState())
	mt.Wait()
	if !errors.Is(mt.Err(), ErrNoCredentials) || mt.Active() != nil || mt.Loading() {
		t.Errorf("expected offline failure, got err %v", mt.Err())
	}
}

func TestMissionClose(t *testing.T) {
	gen := newScripted()
	mt := NewMissionTracker(gen, nil, nil)
	mt.Refresh(context.Background(), flight.InitialState())
	<-gen.started
	mt.Close()
	mt.Wait()
	if !errors.Is(mt.Err(), context.Canceled) {
		t.Errorf("expected cancellation, got %v", mt.Err())
	}
}

type generatorFunc func(context.Context, flight.AircraftState) (Mission, error)

func (f generatorFunc) GenerateMission(ctx context.Context, s flight.AircraftState) (Mission, error) {
	return f(ctx, s)
}
