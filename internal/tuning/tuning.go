// Package tuning loads pokered.yaml and the key-value construction surface.
package tuning

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leanke/puffer-red/internal/env"
	"github.com/leanke/puffer-red/internal/env/reward"
	"github.com/leanke/puffer-red/internal/game/events"
)

const (
	DefaultStreamURL   = "ws://localhost:3344/broadcast"
	DefaultStreamUser  = "User"
	DefaultStreamColor = "#800080"
	DefaultDataDir     = "./data"
)

type Config struct {
	Env         EnvSection         `yaml:"env"`
	Reward      reward.Weights     `yaml:"reward"`
	Vec         VecSection         `yaml:"vec"`
	Stream      StreamSection      `yaml:"stream"`
	Persistence PersistenceSection `yaml:"persistence"`
}

type EnvSection struct {
	ROMPath          string `yaml:"rom_path"`
	StatePath        string `yaml:"state_path"`
	EventsPath       string `yaml:"events_path,omitempty"`
	FrameSkip        int    `yaml:"frameskip"`
	MaxEpisodeLength int    `yaml:"max_episode_length"`
	FullReset        bool   `yaml:"full_reset"`
	Headless         bool   `yaml:"headless"`
	Core             string `yaml:"core"`
}

type VecSection struct {
	NumEnvs     int `yaml:"num_envs"`
	LogInterval int `yaml:"log_interval"`
}

type StreamSection struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Color    string `yaml:"color"`
	Extra    string `yaml:"extra"`
	Interval int    `yaml:"interval"`
}

type PersistenceSection struct {
	DataDir               string `yaml:"data_dir"`
	DisableDB             bool   `yaml:"disable_db"`
	SnapshotEveryEpisodes int    `yaml:"snapshot_every_episodes"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	c := defaults()
	c.Normalize()
	return c
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("pokered.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("pokered.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Env: EnvSection{
			FrameSkip:        env.DefaultFrameSkip,
			MaxEpisodeLength: env.DefaultMaxEpisodeLength,
			FullReset:        true,
			Headless:         true,
			Core:             env.DefaultCore,
		},
		Reward: reward.DefaultWeights(),
		Vec: VecSection{
			NumEnvs:     1,
			LogInterval: 128,
		},
		Stream: StreamSection{
			URL:      DefaultStreamURL,
			User:     DefaultStreamUser,
			Color:    DefaultStreamColor,
			Interval: 500,
		},
		Persistence: PersistenceSection{
			DataDir: DefaultDataDir,
		},
	}
}

// Normalize trims paths and fills empty strings. Numeric fields are left for
// Validate so a bad file is reported rather than silently repaired.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Env.ROMPath = strings.TrimSpace(c.Env.ROMPath)
	c.Env.StatePath = strings.TrimSpace(c.Env.StatePath)
	c.Env.EventsPath = strings.TrimSpace(c.Env.EventsPath)
	c.Env.Core = strings.TrimSpace(c.Env.Core)
	if c.Env.Core == "" {
		c.Env.Core = env.DefaultCore
	}
	c.Stream.URL = strings.TrimSpace(c.Stream.URL)
	if c.Stream.URL == "" {
		c.Stream.URL = DefaultStreamURL
	}
	if c.Stream.User == "" {
		c.Stream.User = DefaultStreamUser
	}
	if c.Stream.Color == "" {
		c.Stream.Color = DefaultStreamColor
	}
	c.Persistence.DataDir = strings.TrimSpace(c.Persistence.DataDir)
	if c.Persistence.DataDir == "" {
		c.Persistence.DataDir = DefaultDataDir
	}
}

func (c Config) Validate() error {
	if c.Env.FrameSkip < 1 {
		return fmt.Errorf("env frameskip must be >= 1 (got %d)", c.Env.FrameSkip)
	}
	if c.Env.MaxEpisodeLength < 1 {
		return fmt.Errorf("env max_episode_length must be >= 1 (got %d)", c.Env.MaxEpisodeLength)
	}
	w := c.Reward
	for name, v := range map[string]float32{
		"badge":        w.Badge,
		"pokemon":      w.Pokemon,
		"unique_coord": w.UniqueCoord,
		"level":        w.Level,
		"event":        w.Event,
	} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return fmt.Errorf("reward %s must be a finite value >= 0 (got %v)", name, v)
		}
	}
	if c.Vec.NumEnvs < 1 {
		return fmt.Errorf("vec num_envs must be >= 1 (got %d)", c.Vec.NumEnvs)
	}
	if c.Vec.LogInterval < 1 {
		return fmt.Errorf("vec log_interval must be >= 1 (got %d)", c.Vec.LogInterval)
	}
	if c.Stream.Interval < 1 {
		return fmt.Errorf("stream interval must be >= 1 (got %d)", c.Stream.Interval)
	}
	if c.Stream.Enabled && !strings.HasPrefix(c.Stream.URL, "ws://") && !strings.HasPrefix(c.Stream.URL, "wss://") {
		return fmt.Errorf("stream url must be ws:// or wss:// (got %q)", c.Stream.URL)
	}
	if c.Persistence.SnapshotEveryEpisodes < 0 {
		return fmt.Errorf("persistence snapshot_every_episodes must be >= 0 (got %d)", c.Persistence.SnapshotEveryEpisodes)
	}
	return nil
}

// EnvConfig builds the per-environment configuration. The event table is
// loaded from EventsPath when set.
func (c Config) EnvConfig() (env.Config, error) {
	ec := env.DefaultConfig()
	ec.ROMPath = c.Env.ROMPath
	ec.StatePath = c.Env.StatePath
	ec.FrameSkip = c.Env.FrameSkip
	ec.MaxEpisodeLength = c.Env.MaxEpisodeLength
	ec.FullReset = c.Env.FullReset
	ec.Headless = c.Env.Headless
	ec.Core = c.Env.Core
	ec.Weights = c.Reward
	ec.ZeroWeights = c.Reward == (reward.Weights{})
	if c.Env.EventsPath != "" {
		t, err := events.LoadTable(c.Env.EventsPath)
		if err != nil {
			return ec, err
		}
		ec.Events = t
	}
	return ec, nil
}
