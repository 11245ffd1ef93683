// Package env runs one Pokemon Red episode loop on top of an emulator core:
// batched frame stepping, reward shaping, observations and auto-reset.
package env

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/leanke/puffer-red/internal/emu"
	"github.com/leanke/puffer-red/internal/env/obs"
	"github.com/leanke/puffer-red/internal/env/reward"
	"github.com/leanke/puffer-red/internal/env/visit"
	"github.com/leanke/puffer-red/internal/game/events"
	"github.com/leanke/puffer-red/internal/game/ram"
	"github.com/leanke/puffer-red/internal/romloader"
)

var (
	ErrROMRequired   = errors.New("rom_path is required")
	ErrROMUnreadable = errors.New("rom file not readable")
	ErrCoreInit      = errors.New("emulator core failed to initialize")
	ErrNotReady      = errors.New("environment not reset")
	ErrClosed        = errors.New("environment closed")
)

type State int

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Env owns one core, its visitation maps and its output buffers. It is not
// safe for concurrent use; distinct Envs share nothing mutable.
type Env struct {
	cfg    Config
	log    *log.Logger
	core   emu.Core
	events events.Table

	visits *visit.Tracker
	engine *reward.Engine

	ram    ram.Snapshot
	battle ram.Battle

	obs       []float32
	reward    float32
	breakdown reward.Breakdown
	terminal  bool
	truncated bool

	stepCount     int
	frameCount    int
	score         float32
	episodes      int
	initialLoaded bool

	state State
}

// New loads the cartridge and starts a core. The environment must be Reset
// before the first Step.
func New(cfg Config) (*Env, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	rom, err := romloader.Load(cfg.ROMPath, romloader.GameBoyExtensions)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrROMUnreadable, cfg.ROMPath, err)
	}
	core, err := cfg.Registry.Open(cfg.Core, emu.Options{
		ROM:      rom.Data,
		ROMName:  rom.Name,
		Headless: cfg.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCoreInit, err)
	}
	logger.Printf("env %d: core=%s rom=%s title=%q", cfg.ID, cfg.Core, rom.Name, rom.Title())

	return &Env{
		cfg:    cfg,
		log:    logger,
		core:   core,
		events: cfg.Events,
		visits: visit.NewTracker(),
		engine: reward.NewEngine(cfg.Weights),
		obs:    make([]float32, obs.Size),
	}, nil
}

// Close releases the core and both bitmaps. It is safe to call more than once
// and on a nil Env.
func (e *Env) Close() error {
	if e == nil || e.state == StateClosed {
		return nil
	}
	e.state = StateClosed
	e.visits.Release()
	e.obs = nil
	var err error
	if e.core != nil {
		err = e.core.Close()
		e.core = nil
	}
	return err
}

func (e *Env) ID() int { return e.cfg.ID }

func (e *Env) State() State {
	if e == nil {
		return StateClosed
	}
	return e.state
}

// Observation returns the live observation buffer. It is overwritten by the
// next Reset or Step.
func (e *Env) Observation() []float32 { return e.obs }

func (e *Env) RAM() ram.Snapshot { return e.ram }

func (e *Env) Battle() ram.Battle { return e.battle }

// Position is the agent's current cell.
func (e *Env) Position() Position {
	return Position{X: e.ram.X, Y: e.ram.Y, Map: e.ram.Map}
}

func (e *Env) StepCount() int  { return e.stepCount }
func (e *Env) FrameCount() int { return e.frameCount }
func (e *Env) Score() float32  { return e.score }
func (e *Env) Episodes() int   { return e.episodes }

func (e *Env) UniqueCoords() int { return e.visits.Unique() }

func (e *Env) EventSum() int { return e.engine.PrevEventSum() }

func (e *Env) LastReward() reward.Breakdown { return e.breakdown }

// Visits exposes the visitation maps for persistence.
func (e *Env) Visits() *visit.Tracker { return e.visits }

// Position is a (x, y, map) triple.
type Position struct {
	X   uint8 `json:"x"`
	Y   uint8 `json:"y"`
	Map uint8 `json:"map"`
}

func (p Position) IsZero() bool { return p == Position{} }
