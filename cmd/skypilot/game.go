// cmd/skypilot/game.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmp/skypilot/flight"
	"github.com/mmp/skypilot/intel"
	"github.com/mmp/skypilot/log"
	"github.com/mmp/skypilot/renderer"
	"github.com/mmp/skypilot/scene"
	"github.com/mmp/skypilot/sim"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// Game adapts the sim to ebiten's Update/Draw/Layout loop.
type Game struct {
	ctx      context.Context
	sim      *sim.Sim
	missions *intel.MissionTracker
	radio    *intel.Radio
	lg       *log.Logger

	r      *ebitenRenderer
	events *sim.EventsSubscription

	width, height int
	pads          []pad
	held          flight.InputState
	entry         textEntry
	notices       []notice
	touchIDs      []ebiten.TouchID
}

func NewGame(ctx context.Context, s *sim.Sim, missions *intel.MissionTracker, radio *intel.Radio, lg *log.Logger) *Game {
	return &Game{
		ctx:      ctx,
		sim:      s,
		missions: missions,
		radio:    radio,
		lg:       lg,
		r:        newEbitenRenderer(),
		events:   s.Subscribe(),
	}
}

func (g *Game) viewport() scene.Viewport {
	return scene.Viewport{Width: float32(g.width), Height: float32(g.height)}
}

func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}

	if g.entry.active {
		// While typing, the stick is released so letters don't fly the
		// aircraft.
		g.setHeld(flight.InputState{})
		if text, ok := g.entry.update(); ok {
			g.transmit(text)
		}
	} else {
		g.touchIDs = ebiten.AppendTouchIDs(g.touchIDs[:0])
		g.setHeld(merge(pollKeys(), heldPads(g.pads, pointerPositions(g.touchIDs))))

		if inpututil.IsKeyJustPressed(ebiten.KeyN) {
			g.missions.Refresh(g.ctx, g.sim.State())
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyT) || inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			g.entry.Open()
		}
	}

	now := time.Now()
	g.sim.Update(now)

	for _, ev := range g.events.Get() {
		if n, ok := noticeFor(ev); ok {
			n.Until = now.Add(noticeDuration)
			g.notices = append(g.notices, n)
		}
	}
	g.expireNotices(now)

	return nil
}

// setHeld forwards the controls that changed since the last frame to the
// sim.
func (g *Game) setHeld(in flight.InputState) {
	for c := range flight.NumControls {
		if in.Held(c) != g.held.Held(c) {
			g.sim.SetControl(c, in.Held(c))
		}
	}
	g.held = in
}

func (g *Game) transmit(text string) {
	err := g.radio.Transmit(g.ctx, text, g.sim.State())
	switch {
	case err == nil:
	case errors.Is(err, intel.ErrEmptyMessage):
	case errors.Is(err, intel.ErrRadioBusy):
		g.notices = append(g.notices, notice{Text: "STAND BY, CONTROL IS TRANSMITTING", Color: panelWarning,
			Until: time.Now().Add(noticeDuration)})
	default:
		g.lg.Warn("radio transmit", slog.Any("error", err))
	}
}

func (g *Game) expireNotices(now time.Time) {
	live := g.notices[:0]
	for _, n := range g.notices {
		if now.Before(n.Until) {
			live = append(live, n)
		}
	}
	g.notices = live
}

func (g *Game) Draw(screen *ebiten.Image) {
	vp := g.viewport()

	cb := renderer.GetCommandBuffer()
	defer renderer.ReturnCommandBuffer(cb)

	g.sim.Paint(cb, vp)
	g.paintOverlay(cb, vp)

	g.r.dst = screen
	g.r.RenderCommandBuffer(cb)
	g.r.dst = nil
}

// paintOverlay draws the panels that sit over the cockpit view.
func (g *Game) paintOverlay(cb *renderer.CommandBuffer, vp scene.Viewport) {
	drawMissionPanel(cb, vp, missionView{
		Mission: g.missions.Active(),
		Loading: g.missions.Loading(),
		Err:     g.missions.Err(),
	})
	drawRadioPanel(cb, vp, radioView{
		Transcript: g.radio.Transcript(),
		Typing:     g.radio.Typing(),
		Entering:   g.entry.active,
		Entry:      g.entry.String(),
	})
	drawControls(cb, vp)
	drawNotices(cb, vp, g.notices)
	drawPads(cb, g.pads, g.held)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.width || outsideHeight != g.height {
		g.width, g.height = outsideWidth, outsideHeight
		g.pads = layoutPads(g.viewport())
	}
	return outsideWidth, outsideHeight
}

func (g *Game) Close() {
	g.events.Unsubscribe()
}
