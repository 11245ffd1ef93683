// Package reward turns consecutive RAM snapshots into a shaped scalar reward.
package reward

import (
	"github.com/leanke/puffer-red/internal/env/visit"
	"github.com/leanke/puffer-red/internal/game/ram"
)

// Weights are shared read-only by every environment of a run.
type Weights struct {
	Badge       float32 `yaml:"badge" json:"badge"`
	Pokemon     float32 `yaml:"pokemon" json:"pokemon"`
	UniqueCoord float32 `yaml:"unique_coord" json:"unique_coord"`
	Level       float32 `yaml:"level" json:"level"`
	Event       float32 `yaml:"event" json:"event"`
}

func DefaultWeights() Weights {
	return Weights{
		Badge:       1.0,
		Pokemon:     0.5,
		UniqueCoord: 0.0025,
		Level:       0.25,
		Event:       0.1,
	}
}

// Breakdown is one step's reward split by signal. Every term is >= 0.
type Breakdown struct {
	Badge   float32 `json:"badge"`
	Pokemon float32 `json:"pokemon"`
	Explore float32 `json:"explore"`
	Memory  float32 `json:"memory"`
	Level   float32 `json:"level"`
	Event   float32 `json:"event"`
}

// Total sums the terms in a fixed order so float32 rounding is reproducible.
func (b Breakdown) Total() float32 {
	var r float32
	r += b.Badge
	r += b.Pokemon
	r += b.Explore
	r += b.Memory
	r += b.Level
	r += b.Event
	return r
}

// Engine holds the previous step's snapshot and event sum.
type Engine struct {
	W Weights

	prev         ram.Snapshot
	prevEventSum int
}

func NewEngine(w Weights) *Engine { return &Engine{W: w} }

// Reset rebases the engine so the next Step sees no spurious delta.
func (e *Engine) Reset(cur ram.Snapshot, eventSum int) {
	e.prev = cur
	e.prevEventSum = eventSum
}

func (e *Engine) Prev() ram.Snapshot { return e.prev }

func (e *Engine) PrevEventSum() int { return e.prevEventSum }

// Step scores cur against the previous step, marks the current cell in both
// visitation maps, then makes cur the new baseline.
func (e *Engine) Step(cur ram.Snapshot, eventSum int, t *visit.Tracker) Breakdown {
	var b Breakdown
	prev := e.prev

	if cur.Badges > prev.Badges {
		b.Badge = e.W.Badge
	}
	if cur.PartyCount > prev.PartyCount && cur.PartyCount <= ram.MaxParty {
		b.Pokemon = e.W.Pokemon
	}

	idx := visit.Pack(cur.Map, cur.X, cur.Y)
	if t.VisitEpisode(idx) {
		b.Explore = e.W.UniqueCoord
	}
	// Counted independently of the episode map: a cell new to both pays twice.
	if t.VisitPersistent(idx) {
		b.Memory = e.W.UniqueCoord
	}

	levelSum, prevLevelSum := cur.LevelSum(), prev.LevelSum()
	if levelSum > prevLevelSum && cur.PartyCount >= prev.PartyCount {
		b.Level = e.W.Level * float32(levelSum-prevLevelSum)
	}

	if eventSum > e.prevEventSum {
		b.Event = float32(eventSum-e.prevEventSum) * e.W.Event
	}

	e.prevEventSum = eventSum
	e.prev = cur
	return b
}
