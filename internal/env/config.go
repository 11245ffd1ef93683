package env

import (
	"fmt"
	"log"

	"github.com/leanke/puffer-red/internal/emu"
	"github.com/leanke/puffer-red/internal/env/reward"
	"github.com/leanke/puffer-red/internal/game/events"
)

// Defaults used when a Config field is left zero.
const (
	DefaultFrameSkip        = 4
	DefaultMaxEpisodeLength = 20480
	DefaultCore             = "mgba"

	// WarmupFrames run with no input after every reset.
	WarmupFrames = 4
)

type Config struct {
	ROMPath   string
	StatePath string

	FrameSkip        int
	MaxEpisodeLength int
	FullReset        bool
	Headless         bool

	Core     string
	Registry *emu.Registry

	// Zero Weights mean reward.DefaultWeights unless ZeroWeights is set.
	Weights     reward.Weights
	ZeroWeights bool
	Events      events.Table

	// ID tags log lines when several environments share a logger.
	ID     int
	Logger *log.Logger
}

// DefaultConfig mirrors the training defaults.
func DefaultConfig() Config {
	return Config{
		FrameSkip:        DefaultFrameSkip,
		MaxEpisodeLength: DefaultMaxEpisodeLength,
		FullReset:        true,
		Headless:         true,
		Core:             DefaultCore,
		Weights:          reward.DefaultWeights(),
	}
}

// normalize fills unset fields. FrameSkip below one means one frame per step.
func (c *Config) normalize() {
	if c.FrameSkip < 1 {
		c.FrameSkip = 1
	}
	if c.Core == "" {
		c.Core = DefaultCore
	}
	if c.Registry == nil {
		c.Registry = emu.Default()
	}
	if c.Events == nil {
		c.Events = events.Default()
	}
	if c.Weights == (reward.Weights{}) && !c.ZeroWeights {
		c.Weights = reward.DefaultWeights()
	}
}

func (c Config) validate() error {
	if c.ROMPath == "" {
		return ErrROMRequired
	}
	if c.MaxEpisodeLength < 1 {
		return fmt.Errorf("max_episode_length must be >= 1 (got %d)", c.MaxEpisodeLength)
	}
	return c.Events.Validate()
}
