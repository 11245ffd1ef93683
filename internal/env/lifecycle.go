package env

import (
	"github.com/leanke/puffer-red/internal/emu"
	"github.com/leanke/puffer-red/internal/env/obs"
	"github.com/leanke/puffer-red/internal/env/reward"
	"github.com/leanke/puffer-red/internal/env/visit"
	"github.com/leanke/puffer-red/internal/game/ram"
)

// Result is what one Reset or Step hands back to the host. Obs aliases the
// environment's buffer.
//
// When Terminal is set, the episode ended inside this call and the
// environment has already been reset: Obs is the first observation of the
// next episode, Reward belongs to the finished one and Log summarizes it.
type Result struct {
	Obs       []float32
	Reward    float32
	Breakdown reward.Breakdown
	Terminal  bool
	Truncated bool
	Log       *EpisodeLog
}

// Done reports whether an episode ended for any reason.
func (r Result) Done() bool { return r.Terminal || r.Truncated }

// Reset starts a new episode.
func (e *Env) Reset() (Result, error) {
	if e == nil || e.state == StateClosed {
		return Result{}, ErrClosed
	}
	e.reset()
	return e.result(), nil
}

// Step applies one action for FrameSkip frames, scores the move and refreshes
// the observation. Reaching MaxEpisodeLength ends the episode and resets
// within the same call.
func (e *Env) Step(a emu.Action) (Result, error) {
	if e == nil || e.state == StateClosed {
		return Result{}, ErrClosed
	}
	if e.state != StateReady {
		return Result{}, ErrNotReady
	}

	e.reward = 0
	e.terminal = false
	e.truncated = false
	e.stepCount++

	emu.RunFrames(e.core, a.Keys(), e.cfg.FrameSkip)
	e.frameCount += e.cfg.FrameSkip

	e.ram = ram.Read(e.core)
	e.battle = ram.ReadBattle(e.core)
	e.breakdown = e.engine.Step(e.ram, e.events.Sum(e.core), e.visits)
	e.reward = e.breakdown.Total()
	obs.Build(e.obs, e.core.Framebuffer(), e.ram)
	e.score += e.reward

	if e.stepCount >= e.cfg.MaxEpisodeLength {
		e.terminal = true
	}
	if !e.terminal && !e.truncated {
		return e.result(), nil
	}
	return e.finishEpisode(), nil
}

// finishEpisode closes out the current episode and starts the next one. The
// returned Result keeps the final step's reward and flags.
func (e *Env) finishEpisode() Result {
	l := e.episodeLog()
	e.episodes++
	e.visits.Commit()
	e.log.Printf("env %d: episode %d done steps=%d return=%.4f unique=%d badges=%#02x events=%d",
		e.cfg.ID, e.episodes, e.stepCount, e.score, e.visits.Unique(), e.ram.Badges, e.engine.PrevEventSum())

	rew, br, term, trunc := e.reward, e.breakdown, e.terminal, e.truncated
	e.reset()

	r := e.result()
	r.Reward, r.Breakdown, r.Terminal, r.Truncated = rew, br, term, trunc
	r.Log = &l
	return r
}

func (e *Env) reset() {
	if e.cfg.FullReset || !e.initialLoaded {
		e.loadInitialState()
	}

	e.ram = ram.Read(e.core)
	e.battle = ram.ReadBattle(e.core)
	obs.Build(e.obs, e.core.Framebuffer(), e.ram)

	e.visits.ResetEpisode()
	e.visits.Start(visit.Pack(e.ram.Map, e.ram.X, e.ram.Y))

	e.reward = 0
	e.breakdown = reward.Breakdown{}
	e.terminal = false
	e.truncated = false
	e.stepCount = 0
	e.frameCount = 0
	e.score = 0
	e.engine.Reset(e.ram, e.events.Sum(e.core))

	emu.RunFrames(e.core, 0, WarmupFrames)
	e.state = StateReady
}

// loadInitialState is best effort: without a usable state file the core keeps
// whatever it is currently running.
func (e *Env) loadInitialState() {
	e.initialLoaded = true
	if e.cfg.StatePath == "" {
		return
	}
	if err := e.core.LoadState(e.cfg.StatePath); err != nil {
		e.log.Printf("env %d: warning: load state %s: %v", e.cfg.ID, e.cfg.StatePath, err)
	}
}

func (e *Env) result() Result {
	return Result{
		Obs:       e.obs,
		Reward:    e.reward,
		Breakdown: e.breakdown,
		Terminal:  e.terminal,
		Truncated: e.truncated,
	}
}

func (e *Env) episodeLog() EpisodeLog {
	s := e.ram
	return EpisodeLog{
		EpisodeLength: float32(e.stepCount),
		LevelSum:      float32(s.LevelSum()),
		EpisodeReturn: e.score,
		Pkmn1Lvl:      float32(s.Levels[0]),
		Pkmn2Lvl:      float32(s.Levels[1]),
		Pkmn3Lvl:      float32(s.Levels[2]),
		Pkmn4Lvl:      float32(s.Levels[3]),
		Pkmn5Lvl:      float32(s.Levels[4]),
		Pkmn6Lvl:      float32(s.Levels[5]),
		Money:         float32(s.Money),
		EventSum:      float32(e.engine.PrevEventSum()),
		UniqueCoords:  float32(e.visits.Unique()),
		PartyCount:    float32(s.PartyCount),
		Badges:        float32(s.Badges),
		N:             1,
	}
}
