// intel/fakes_test.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package intel

import (
	"context"
	"sync"

	"github.com/mmp/skypilot/flight"
)

type result struct {
	mission Mission
	reply   string
	err     error
}

// scripted answers each request with whatever is sent on its channel,
// letting tests control the order in which requests complete.
type scripted struct {
	mu       sync.Mutex
	pending  []chan result
	started  chan int
	requests int
}

func newScripted() *scripted {
	return &scripted{started: make(chan int, 16)}
}

func (s *scripted) next() chan result {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan result, 1)
	s.pending = append(s.pending, ch)
	s.requests++
	s.started <- s.requests - 1
	return ch
}

// answer completes request i.
func (s *scripted) answer(i int, r result) {
	s.mu.Lock()
	ch := s.pending[i]
	s.mu.Unlock()
	ch <- r
}

func (s *scripted) GenerateMission(ctx context.Context, _ flight.AircraftState) (Mission, error) {
	ch := s.next()
	select {
	case r := <-ch:
		return r.mission, r.err
	case <-ctx.Done():
		return Mission{}, ctx.Err()
	}
}

func (s *scripted) ControlResponse(ctx context.Context, _ []Message, _ flight.AircraftState) (string, error) {
	ch := s.next()
	select {
	case r := <-ch:
		return r.reply, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
