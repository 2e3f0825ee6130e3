// sim/eventstream.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/intel"
	"github.com/mmp/skypilot/log"
)

// EventStream provides a basic pub/sub event interface that allows any
// part of the system to post an event to the stream and other parts to
// subscribe and receive messages from the stream. The window, the HTTP
// server's /events endpoint, and the logs all learn about engine trouble,
// crashes, and radio traffic this way.
type EventStream struct {
	mu            sync.Mutex
	events        []Event
	subscriptions map[*EventsSubscription]any
	lastPost      time.Time
	warnedLong    bool
	done          chan struct{}
	lg            *log.Logger
}

type EventsSubscription struct {
	stream *EventStream
	// offset is offset in the EventStream stream array up to which the
	// subscriber has consumed events so far.
	offset      int
	source      string
	lastGet     time.Time
	warnedNoGet bool
}

func (e *EventsSubscription) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("offset", e.offset),
		slog.String("source", e.source),
		slog.Time("last_get", e.lastGet))
}

func NewEventStream(lg *log.Logger) *EventStream {
	es := &EventStream{
		subscriptions: make(map[*EventsSubscription]any),
		lastPost:      time.Now(),
		done:          make(chan struct{}),
		lg:            lg,
	}
	go es.monitor()
	return es
}

// Subscribe registers a new subscriber to the stream. Only events posted
// after the call are reported to it.
func (e *EventStream) Subscribe() *EventsSubscription {
	// Record the subscriber's callsite, so that we can more easily debug
	// subscribers that aren't consuming events.
	_, fn, line, _ := runtime.Caller(1)

	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &EventsSubscription{
		stream:  e,
		offset:  len(e.events),
		source:  fmt.Sprintf("%s:%d", fn, line),
		lastGet: time.Now(),
	}
	e.subscriptions[sub] = nil
	return sub
}

func (e *EventStream) monitor() {
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-tick.C:
		}

		e.mu.Lock()

		e.compact()

		if len(e.events) > 1000 && !e.warnedLong {
			// Most likely one of the subscribers has stopped calling Get.
			e.lg.Warn("Long EventStream", slog.Int("length", len(e.events)),
				slog.Int("subscribers", len(e.subscriptions)))
			e.warnedLong = true
		}

		// Only complain about idle subscribers while events are actually
		// arriving.
		if time.Since(e.lastPost) < 5*time.Second {
			for sub := range e.subscriptions {
				if d := time.Since(sub.lastGet); d > 10*time.Second && !sub.warnedNoGet {
					e.lg.Warn("Subscriber has not called Get() recently",
						slog.Duration("duration", d), slog.Any("subscriber", sub))
					sub.warnedNoGet = true
				}
			}
		}

		e.mu.Unlock()
	}
}

// Unsubscribe removes a subscriber from the subscriber list.
func (e *EventsSubscription) Unsubscribe() {
	if e.stream == nil {
		return
	}

	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	if _, ok := e.stream.subscriptions[e]; !ok {
		e.stream.lg.Errorf("Attempted to unsubscribe invalid subscription: %+v", e)
	}
	delete(e.stream.subscriptions, e)
	e.stream = nil
}

// Post adds an event to the event stream.
func (e *EventStream) Post(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	e.lg.Debug("posted event", slog.Any("event", event))

	// Ignore the event if no one's paying attention.
	if len(e.subscriptions) > 0 {
		e.lastPost = time.Now()
		e.events = append(e.events, event)
	}
}

// Get returns all of the events from the stream since the last time Get
// was called on the subscription.
func (e *EventsSubscription) Get() []Event {
	if e.stream == nil {
		return nil
	}

	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	if _, ok := e.stream.subscriptions[e]; !ok {
		e.stream.lg.Errorf("Attempted to get with unregistered subscription: %+v", e)
		return nil
	}

	events := slices.Clone(e.stream.events[e.offset:])
	e.offset = len(e.stream.events)
	e.lastGet = time.Now()
	e.warnedNoGet = false

	return events
}

func (e *EventStream) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.done:
		return
	default:
	}

	close(e.done)
	clear(e.subscriptions)
}

// compact reclaims storage for events that all subscribers have seen; it
// is called periodically so that EventStream memory usage doesn't grow
// without bound.
func (e *EventStream) compact() {
	minOffset := len(e.events)
	for sub := range e.subscriptions {
		minOffset = min(minOffset, sub.offset)
	}

	if minOffset > cap(e.events)/2 {
		n := len(e.events) - minOffset
		copy(e.events, e.events[minOffset:])
		e.events = e.events[:n]
		for sub := range e.subscriptions {
			sub.offset -= minOffset
		}

		// A stream that drained is allowed to warn again if it grows.
		e.warnedLong = false
	}
}

func (e *EventStream) LogValue() slog.Value {
	e.mu.Lock()
	defer e.mu.Unlock()

	return slog.GroupValue(
		slog.Int("events", len(e.events)),
		slog.Int("subscribers", len(e.subscriptions)),
		slog.Time("last_post", e.lastPost))
}

///////////////////////////////////////////////////////////////////////////
// Event

type EventType int

const (
	EngineStatusChangedEvent EventType = iota
	EngineRestartedEvent
	GroundImpactEvent
	MissionUpdatedEvent
	RadioMessageEvent
	NumEventTypes
)

var eventTypeNames = [NumEventTypes]string{
	"engine-status-changed",
	"engine-restarted",
	"ground-impact",
	"mission-updated",
	"radio-message",
}

func (t EventType) String() string {
	if t < 0 || t >= NumEventTypes {
		return fmt.Sprintf("EventType(%d)", int(t))
	}
	return eventTypeNames[t]
}

func (t EventType) MarshalText() ([]byte, error) {
	if t < 0 || t >= NumEventTypes {
		return nil, fmt.Errorf("%d: %w", int(t), ErrInvalidEventType)
	}
	return []byte(eventTypeNames[t]), nil
}

func (t *EventType) UnmarshalText(b []byte) error {
	if i := slices.Index(eventTypeNames[:], string(b)); i != -1 {
		*t = EventType(i)
		return nil
	}
	return fmt.Errorf("%q: %w", string(b), ErrInvalidEventType)
}

type Event struct {
	Type EventType `json:"type" msgpack:"type"`
	Time time.Time `json:"time" msgpack:"time"`

	// Engine status transitions. Running is the zero value, so these are
	// always encoded.
	From flight.EngineStatus `json:"from" msgpack:"from"`
	To   flight.EngineStatus `json:"to" msgpack:"to"`

	// Airspeed at the moment of a ground impact.
	Airspeed float32 `json:"airspeed,omitzero" msgpack:"airspeed,omitempty"`

	Mission *intel.Mission `json:"mission,omitempty" msgpack:"mission,omitempty"`
	Message *intel.Message `json:"message,omitempty" msgpack:"message,omitempty"`
}

func (e Event) String() string {
	switch e.Type {
	case EngineStatusChangedEvent:
		return fmt.Sprintf("%s: %s -> %s", e.Type, e.From, e.To)
	case GroundImpactEvent:
		return fmt.Sprintf("%s: airspeed %.1f", e.Type, e.Airspeed)
	case MissionUpdatedEvent:
		if e.Mission != nil {
			return fmt.Sprintf("%s: %s", e.Type, e.Mission.Title)
		}
	case RadioMessageEvent:
		if e.Message != nil {
			return fmt.Sprintf("%s: %s: %s", e.Type, e.Message.Role.Speaker(), e.Message.Content)
		}
	}
	return e.Type.String()
}

func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("type", e.Type.String())}
	switch e.Type {
	case EngineStatusChangedEvent:
		attrs = append(attrs, slog.String("from", e.From.String()), slog.String("to", e.To.String()))
	case GroundImpactEvent:
		attrs = append(attrs, slog.Float64("airspeed", float64(e.Airspeed)))
	case MissionUpdatedEvent:
		if e.Mission != nil {
			attrs = append(attrs, slog.String("mission", e.Mission.ID))
		}
	case RadioMessageEvent:
		if e.Message != nil {
			attrs = append(attrs, slog.String("role", string(e.Message.Role)))
		}
	}
	return slog.GroupValue(attrs...)
}
