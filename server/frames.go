// server/frames.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/mmp/skypilot/renderer"
	"github.com/mmp/skypilot/scene"
	"github.com/mmp/skypilot/sim"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// frameKey identifies an encoded frame. The sim only changes between
// ticks, so clients polling at the same size within a tick share one
// encoding.
type frameKey struct {
	Width, Height int
	Tick          uint64
	Msgpack       bool
	Zstd          bool
}

type frameCache struct {
	sim   *sim.Sim
	cache *expirable.LRU[frameKey, []byte]
	enc   *zstd.Encoder
}

func newFrameCache(s *sim.Sim) *frameCache {
	// With a nil writer the encoder is only used through EncodeAll.
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	return &frameCache{
		sim:   s,
		cache: expirable.NewLRU[frameKey, []byte](16, nil, time.Second),
		enc:   enc,
	}
}

// Get returns the encoded CommandBuffer for the current state drawn at
// the given size.
func (fc *frameCache) Get(key frameKey) ([]byte, error) {
	// The state and its tick come from one snapshot so a frame is never
	// cached under another tick's key.
	st, tick := fc.sim.Snapshot()
	key.Tick = tick
	if b, ok := fc.cache.Get(key); ok {
		return b, nil
	}

	cb := renderer.GetCommandBuffer()
	defer renderer.ReturnCommandBuffer(cb)
	fc.sim.PaintState(cb, scene.Viewport{Width: float32(key.Width), Height: float32(key.Height)}, st)

	var b []byte
	var err error
	if key.Msgpack {
		b, err = msgpack.Marshal(cb)
	} else {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		err = enc.Encode(cb)
		b = buf.Bytes()
	}
	if err != nil {
		return nil, err
	}

	if key.Zstd {
		b = fc.enc.EncodeAll(b, nil)
	}

	fc.cache.Add(key, b)
	return b, nil
}

func acceptsZstd(accept string) bool {
	for enc := range strings.SplitSeq(accept, ",") {
		name, _, _ := strings.Cut(enc, ";")
		if strings.TrimSpace(name) == "zstd" {
			return true
		}
	}
	return false
}
