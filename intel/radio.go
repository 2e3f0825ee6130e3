// intel/radio.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package intel

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/log"
)

const (
	radioGreeting = "Gemini Control established. Ready for telemetry. Over."
	signalLost    = "Interference detected. Signal lost."
)

// Radio is the pilot's channel to Control. One transmission may be
// awaiting a reply at a time.
type Radio struct {
	resp      ControlResponder
	lg        *log.Logger
	onMessage func(Message)

	mu         sync.Mutex
	generation uint64
	transcript []Message
	typing     bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewRadio returns a radio whose transcript holds Control's greeting. If
// onMessage is non-nil, it is called with every message added to the
// transcript after that; it must not call back into the radio.
func NewRadio(resp ControlResponder, lg *log.Logger, onMessage func(Message)) *Radio {
	return &Radio{
		resp:       resp,
		lg:         lg,
		onMessage:  onMessage,
		transcript: []Message{NewMessage(RoleModel, radioGreeting)},
	}
}

// Transmit sends text to Control. The pilot's message is added to the
// transcript immediately and Control's reply, or a note that the signal
// was lost, is added when the request completes.
func (r *Radio) Transmit(ctx context.Context, text string, s flight.AircraftState) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	r.mu.Lock()
	if r.typing {
		r.mu.Unlock()
		return ErrRadioBusy
	}

	msg := NewMessage(RoleUser, text)
	r.transcript = append(r.transcript, msg)
	history := slices.Clone(r.transcript)
	r.typing = true
	gen := r.generation
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	r.notify(msg)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		defer r.lg.CatchAndReportCrash()

		reply, err := r.resp.ControlResponse(ctx, history, s)

		var m Message
		if err != nil {
			r.lg.Warn("radio request failed", "error", err)
			m = NewMessage(RoleSystem, signalLost)
		} else {
			m = NewMessage(RoleModel, reply)
		}

		r.mu.Lock()
		if gen != r.generation {
			r.mu.Unlock()
			r.lg.Debug("dropping stale radio reply", "generation", gen)
			return
		}
		r.transcript = append(r.transcript, m)
		r.typing = false
		r.cancel = nil
		r.mu.Unlock()

		r.notify(m)
	}()

	return nil
}

func (r *Radio) notify(m Message) {
	if r.onMessage != nil {
		r.onMessage(m)
	}
}

// Typing reports whether a reply from Control is pending.
func (r *Radio) Typing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typing
}

// Transcript returns a copy of all of the messages so far.
func (r *Radio) Transcript() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.transcript)
}

// Clear resets the transcript to the greeting and abandons any pending
// reply.
func (r *Radio) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.generation++
	r.typing = false
	r.transcript = []Message{NewMessage(RoleModel, radioGreeting)}
}

// Close abandons any pending reply.
func (r *Radio) Close() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
}

// Wait blocks until all outstanding requests have returned.
func (r *Radio) Wait() {
	r.wg.Wait()
}
