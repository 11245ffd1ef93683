// Package vec drives a fixed set of independent environments as one batch.
package vec

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/leanke/puffer-red/internal/emu"
	"github.com/leanke/puffer-red/internal/env"
)

// Episode is one finished episode as reported to sinks.
type Episode struct {
	Env     int            `json:"env"`
	Episode int            `json:"episode"`
	Tick    uint64         `json:"tick"`
	Log     env.EpisodeLog `json:"log"`
}

// EpisodeSink receives every finished episode in env order.
type EpisodeSink interface {
	WriteEpisode(Episode) error
}

type Vec struct {
	envs []*env.Env
	sink EpisodeSink

	tick       uint64
	episodes   uint64
	sinkErrors uint64
	acc        env.EpisodeLog

	stats   *Stats
	metrics atomic.Value
}

// New creates n environments from one configuration; env i gets ID i. On
// failure the environments created so far are closed.
func New(cfg env.Config, n int) (*Vec, error) {
	if n < 1 {
		return nil, fmt.Errorf("num_envs must be >= 1 (got %d)", n)
	}
	v := &Vec{
		envs:  make([]*env.Env, 0, n),
		stats: NewStats(128, 128*16),
	}
	for i := 0; i < n; i++ {
		c := cfg
		c.ID = i
		e, err := env.New(c)
		if err != nil {
			_ = v.Close()
			return nil, fmt.Errorf("env %d: %w", i, err)
		}
		v.envs = append(v.envs, e)
	}
	v.publishMetrics(0)
	return v, nil
}

// SetEpisodeSink must be called before the first Step.
func (v *Vec) SetEpisodeSink(s EpisodeSink) { v.sink = s }

func (v *Vec) Len() int { return len(v.envs) }

func (v *Vec) Env(i int) *env.Env { return v.envs[i] }

func (v *Vec) Tick() uint64 { return v.tick }

func (v *Vec) Reset() ([]env.Result, error) {
	out := make([]env.Result, len(v.envs))
	for i, e := range v.envs {
		r, err := e.Reset()
		if err != nil {
			return nil, fmt.Errorf("env %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

// Step advances every environment by one action. Each finished episode is
// folded into the aggregate log and handed to the sink; sink failures are
// counted in Metrics and never fail the step. Either every environment
// steps or none does.
func (v *Vec) Step(actions []emu.Action) ([]env.Result, error) {
	if len(actions) != len(v.envs) {
		return nil, fmt.Errorf("got %d actions for %d envs", len(actions), len(v.envs))
	}
	for i, e := range v.envs {
		switch e.State() {
		case env.StateReady:
		case env.StateClosed:
			return nil, fmt.Errorf("env %d: %w", i, env.ErrClosed)
		default:
			return nil, fmt.Errorf("env %d: %w", i, env.ErrNotReady)
		}
	}
	start := time.Now()
	v.tick++

	out := make([]env.Result, len(v.envs))
	var reward float64
	for i, e := range v.envs {
		r, err := e.Step(actions[i])
		if err != nil {
			return nil, fmt.Errorf("env %d: %w", i, err)
		}
		out[i] = r
		reward += float64(r.Reward)
		if r.Log == nil {
			continue
		}
		v.episodes++
		v.acc.Add(*r.Log)
		v.stats.RecordEpisode(v.tick, *r.Log)
		if v.sink != nil {
			if err := v.sink.WriteEpisode(Episode{Env: i, Episode: e.Episodes(), Tick: v.tick, Log: *r.Log}); err != nil {
				v.sinkErrors++
			}
		}
	}
	v.stats.RecordStep(v.tick, len(v.envs), reward)
	v.publishMetrics(time.Since(start))
	return out, nil
}

// Positions reports every environment's current cell in env order.
func (v *Vec) Positions() []env.Position {
	out := make([]env.Position, len(v.envs))
	for i, e := range v.envs {
		out[i] = e.Position()
	}
	return out
}

// Log returns the mean of all episodes finished since the previous call, with
// N holding the episode count, and clears the accumulator. N is zero when no
// episode finished.
func (v *Vec) Log() env.EpisodeLog {
	l := v.acc.Mean()
	v.acc = env.EpisodeLog{}
	return l
}

func (v *Vec) Close() error {
	if v == nil {
		return nil
	}
	var errs []error
	for _, e := range v.envs {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("env %d: %w", e.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func (v *Vec) publishMetrics(stepDur time.Duration) {
	v.metrics.Store(Metrics{
		Tick:             v.tick,
		Envs:             len(v.envs),
		Episodes:         v.episodes,
		SinkErrors:       v.sinkErrors,
		StepMS:           float64(stepDur.Microseconds()) / 1000,
		StatsWindowTicks: v.stats.WindowTicks(),
		StatsWindow:      v.stats.Window(v.tick),
	})
}
