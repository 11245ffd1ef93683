package tuning

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/leanke/puffer-red/internal/env"
)

// kvConfig lists the keys a host may pass when constructing one environment.
// Pointers tell absent keys apart from zero values.
type kvConfig struct {
	FrameSkip        *int    `yaml:"frameskip"`
	MaxEpisodeLength *int    `yaml:"max_episode_length"`
	Headless         *bool   `yaml:"headless"`
	FullReset        *bool   `yaml:"full_reset"`
	StatePath        *string `yaml:"state_path"`
	ROMPath          *string `yaml:"rom_path"`
}

// FromKV overlays a key-value map onto env.DefaultConfig. Values go through a
// YAML round trip, so any Go numeric kind holding a whole number is accepted.
// Unknown keys are rejected.
func FromKV(kv map[string]any) (env.Config, error) {
	cfg := env.DefaultConfig()
	raw, err := yaml.Marshal(kv)
	if err != nil {
		return cfg, fmt.Errorf("env kwargs: %w", err)
	}
	var k kvConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&k); err != nil {
		return cfg, fmt.Errorf("env kwargs: %w", err)
	}
	if k.FrameSkip != nil {
		cfg.FrameSkip = *k.FrameSkip
	}
	if k.MaxEpisodeLength != nil {
		cfg.MaxEpisodeLength = *k.MaxEpisodeLength
	}
	if k.Headless != nil {
		cfg.Headless = *k.Headless
	}
	if k.FullReset != nil {
		cfg.FullReset = *k.FullReset
	}
	if k.StatePath != nil {
		cfg.StatePath = *k.StatePath
	}
	if k.ROMPath != nil {
		cfg.ROMPath = *k.ROMPath
	}
	return cfg, nil
}
