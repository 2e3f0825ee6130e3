// world/world.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package world holds the static scenery that the aircraft flies over: a
// field of landmarks scattered over a square patch of ground.
package world

import (
	"fmt"
	"iter"

	"github.com/mmp/skypilot/rand"
	"github.com/mmp/skypilot/renderer"
)

const (
	// FieldSize is the number of landmarks in a field.
	FieldSize = 300
	// WorldExtent is the side length of the square, centered at the
	// origin, that landmarks are scattered over.
	WorldExtent = 10000
)

type LandmarkType int

const (
	Mountain LandmarkType = iota
	Building
	Forest
)

func (t LandmarkType) String() string {
	switch t {
	case Mountain:
		return "mountain"
	case Building:
		return "building"
	case Forest:
		return "forest"
	default:
		return fmt.Sprintf("LandmarkType(%d)", int(t))
	}
}

func (t LandmarkType) MarshalText() ([]byte, error) {
	if t < Mountain || t > Forest {
		return nil, fmt.Errorf("%d: %w", int(t), ErrInvalidLandmarkType)
	}
	return []byte(t.String()), nil
}

func (t *LandmarkType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "mountain":
		*t = Mountain
	case "building":
		*t = Building
	case "forest":
		*t = Forest
	default:
		return fmt.Errorf("%q: %w", string(b), ErrInvalidLandmarkType)
	}
	return nil
}

// Landmark is a single piece of scenery. X and Z give its position on the
// ground plane; Size is its footprint and Height how tall it stands.
type Landmark struct {
	X      float32      `json:"x" msgpack:"x"`
	Z      float32      `json:"z" msgpack:"z"`
	Type   LandmarkType `json:"type" msgpack:"type"`
	Size   float32      `json:"size" msgpack:"size"`
	Height float32      `json:"height" msgpack:"height"`
	Color  renderer.RGB `json:"color" msgpack:"color"`
}

var (
	MountainColor = renderer.RGBFromHex(0xced4da)
	BuildingColor = renderer.RGBFromHex(0xadb5bd)
	ForestColor   = renderer.RGBFromHex(0x99c1b9)
)

// Field is an immutable set of landmarks.
type Field struct {
	landmarks []Landmark
}

// Generate returns a new field of FieldSize landmarks. Each landmark
// consumes values from r in order: the type roll, size, height, x, and z.
// Forests have a fixed height and skip that draw.
func Generate(r rand.Source) *Field {
	f := &Field{landmarks: make([]Landmark, 0, FieldSize)}
	for range FieldSize {
		f.landmarks = append(f.landmarks, generateLandmark(r))
	}
	return f
}

func generateLandmark(r rand.Source) Landmark {
	var lm Landmark
	switch u := r.Float32(); {
	case u > 0.7:
		lm.Type = Mountain
		lm.Size = 400 + r.Float32()*800
		lm.Height = 300 + r.Float32()*1200
		lm.Color = MountainColor
	case u > 0.4:
		lm.Type = Building
		lm.Size = 40 + r.Float32()*80
		lm.Height = 100 + r.Float32()*400
		lm.Color = BuildingColor
	default:
		lm.Type = Forest
		lm.Size = 100 + r.Float32()*200
		lm.Height = 10
		lm.Color = ForestColor
	}
	lm.X = (r.Float32() - 0.5) * WorldExtent
	lm.Z = (r.Float32() - 0.5) * WorldExtent
	return lm
}

// NewField returns a field holding a copy of the given landmarks; it's
// mostly useful for tests that need specific scenery.
func NewField(lm ...Landmark) *Field {
	return &Field{landmarks: append([]Landmark(nil), lm...)}
}

func (f *Field) Len() int {
	if f == nil {
		return 0
	}
	return len(f.landmarks)
}

func (f *Field) At(i int) Landmark {
	return f.landmarks[i]
}

// All returns an iterator over copies of the field's landmarks.
func (f *Field) All() iter.Seq[Landmark] {
	return func(yield func(Landmark) bool) {
		if f == nil {
			return
		}
		for _, lm := range f.landmarks {
			if !yield(lm) {
				return
			}
		}
	}
}

// Landmarks returns a copy of the field's landmarks.
func (f *Field) Landmarks() []Landmark {
	if f == nil {
		return nil
	}
	return append([]Landmark(nil), f.landmarks...)
}
