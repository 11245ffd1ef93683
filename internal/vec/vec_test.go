package vec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanke/puffer-red/internal/emu"
	"github.com/leanke/puffer-red/internal/emu/emutest"
	"github.com/leanke/puffer-red/internal/env"
	"github.com/leanke/puffer-red/internal/game/ram"
)

type recordingSink struct {
	got []Episode
}

func (s *recordingSink) WriteEpisode(ep Episode) error {
	s.got = append(s.got, ep)
	return nil
}

// newTestVec builds n envs, each on its own fake core.
func newTestVec(t *testing.T, n int, mutate func(*env.Config)) (*Vec, []*emutest.Core) {
	t.Helper()
	rom := filepath.Join(t.TempDir(), "red.gb")
	if err := os.WriteFile(rom, make([]byte, 0x8000), 0o644); err != nil {
		t.Fatal(err)
	}

	var cores []*emutest.Core
	reg := emu.NewRegistry()
	reg.Register("fake", func(emu.Options) (emu.Core, error) {
		c := emutest.New()
		cores = append(cores, c)
		return c, nil
	})

	cfg := env.DefaultConfig()
	cfg.ROMPath = rom
	cfg.Core = "fake"
	cfg.Registry = reg
	cfg.MaxEpisodeLength = 2
	if mutate != nil {
		mutate(&cfg)
	}
	v, err := New(cfg, n)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = v.Close() })
	return v, cores
}

func TestNew_AssignsIDs(t *testing.T) {
	v, cores := newTestVec(t, 3, nil)
	if v.Len() != 3 || len(cores) != 3 {
		t.Fatalf("len=%d cores=%d want=3", v.Len(), len(cores))
	}
	for i := 0; i < v.Len(); i++ {
		if v.Env(i).ID() != i {
			t.Fatalf("env %d id=%d", i, v.Env(i).ID())
		}
	}
	if m := v.Metrics(); m.Envs != 3 || m.Tick != 0 {
		t.Fatalf("metrics=%+v", m)
	}
}

func TestNew_FailureClosesCreatedEnvs(t *testing.T) {
	rom := filepath.Join(t.TempDir(), "red.gb")
	if err := os.WriteFile(rom, make([]byte, 0x8000), 0o644); err != nil {
		t.Fatal(err)
	}
	var cores []*emutest.Core
	reg := emu.NewRegistry()
	reg.Register("flaky", func(emu.Options) (emu.Core, error) {
		if len(cores) == 2 {
			return nil, errors.New("out of cores")
		}
		c := emutest.New()
		cores = append(cores, c)
		return c, nil
	})
	cfg := env.DefaultConfig()
	cfg.ROMPath = rom
	cfg.Core = "flaky"
	cfg.Registry = reg

	if _, err := New(cfg, 4); !errors.Is(err, env.ErrCoreInit) {
		t.Fatalf("err=%v want ErrCoreInit", err)
	}
	for i, c := range cores {
		if c.Closed != 1 {
			t.Fatalf("core %d closed=%d want=1", i, c.Closed)
		}
	}
	if _, err := New(cfg, 0); err == nil {
		t.Fatalf("expected error for zero envs")
	}
}

func TestStep_ActionCountMismatch(t *testing.T) {
	v, _ := newTestVec(t, 2, nil)
	if _, err := v.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Step([]emu.Action{emu.ActionA}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestStep_EnvsAreIndependent(t *testing.T) {
	v, cores := newTestVec(t, 2, func(c *env.Config) { c.MaxEpisodeLength = 100 })
	cores[0].Mem[ram.AddrMap] = 1
	cores[1].Mem[ram.AddrMap] = 2
	if _, err := v.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Step([]emu.Action{emu.ActionUp, emu.ActionLeft}); err != nil {
		t.Fatal(err)
	}
	if cores[0].Keys != emu.KeyUp || cores[1].Keys != emu.KeyLeft {
		t.Fatalf("keys=%#x,%#x", cores[0].Keys, cores[1].Keys)
	}
	pos := v.Positions()
	if len(pos) != 2 || pos[0].Map != 1 || pos[1].Map != 2 {
		t.Fatalf("positions=%+v", pos)
	}
}

func TestLog_AggregatesFinishedEpisodes(t *testing.T) {
	v, cores := newTestVec(t, 2, nil)
	cores[0].Mem[ram.AddrBadges] = 1
	cores[1].Mem[ram.AddrBadges] = 3
	sink := &recordingSink{}
	v.SetEpisodeSink(sink)
	if _, err := v.Reset(); err != nil {
		t.Fatal(err)
	}

	if l := v.Log(); l.N != 0 {
		t.Fatalf("empty log N=%v", l.N)
	}
	acts := []emu.Action{emu.ActionNoop, emu.ActionNoop}
	for i := 0; i < 2; i++ {
		if _, err := v.Step(acts); err != nil {
			t.Fatal(err)
		}
	}
	l := v.Log()
	if l.N != 2 || l.Badges != 2 || l.EpisodeLength != 2 {
		t.Fatalf("log=%+v", l)
	}
	if again := v.Log(); again.N != 0 {
		t.Fatalf("accumulator not cleared: %+v", again)
	}
	if len(sink.got) != 2 || sink.got[1].Env != 1 || sink.got[1].Episode != 1 || sink.got[1].Tick != 2 {
		t.Fatalf("sink=%+v", sink.got)
	}

	m := v.Metrics()
	if m.Tick != 2 || m.Episodes != 2 || m.StatsWindow.Steps != 4 || m.StatsWindow.Episodes != 2 {
		t.Fatalf("metrics=%+v", m)
	}
}

type failingSink struct{ calls int }

func (s *failingSink) WriteEpisode(Episode) error {
	s.calls++
	return errors.New("disk full")
}

func TestStep_SinkFailuresAreCounted(t *testing.T) {
	v, _ := newTestVec(t, 2, func(c *env.Config) { c.MaxEpisodeLength = 1 })
	sink := &failingSink{}
	v.SetEpisodeSink(sink)
	if _, err := v.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Step([]emu.Action{emu.ActionNoop, emu.ActionNoop}); err != nil {
		t.Fatalf("sink failure must not fail Step: %v", err)
	}
	if m := v.Metrics(); sink.calls != 2 || m.SinkErrors != 2 || m.Episodes != 2 {
		t.Fatalf("calls=%d metrics=%+v", sink.calls, m)
	}
}

func TestStep_NotReadyEnvStepsNothing(t *testing.T) {
	v, cores := newTestVec(t, 2, nil)
	if _, err := v.Env(0).Reset(); err != nil {
		t.Fatal(err)
	}
	frames := cores[0].Frames
	if _, err := v.Step([]emu.Action{emu.ActionA, emu.ActionA}); !errors.Is(err, env.ErrNotReady) {
		t.Fatalf("err=%v want ErrNotReady", err)
	}
	if cores[0].Frames != frames || v.Env(0).StepCount() != 0 || v.Tick() != 0 {
		t.Fatalf("env 0 advanced: frames=%d->%d steps=%d tick=%d", frames, cores[0].Frames, v.Env(0).StepCount(), v.Tick())
	}
}

func TestStats_RotatesOldBuckets(t *testing.T) {
	s := NewStats(10, 30)
	s.RecordStep(1, 4, 1.5)
	s.RecordEpisode(5, env.EpisodeLog{EpisodeReturn: 2})
	if w := s.Window(9); w.Steps != 4 || w.Episodes != 1 || w.Return != 2 {
		t.Fatalf("window=%+v", w)
	}
	s.RecordStep(25, 1, 0)
	if w := s.Window(25); w.Steps != 5 {
		t.Fatalf("window=%+v want steps=5", w)
	}
	if w := s.Window(35); w.Steps != 1 {
		t.Fatalf("window after rotation=%+v want steps=1", w)
	}
	if w := s.Window(1000); w != (StatsBucket{}) {
		t.Fatalf("window after gap=%+v", w)
	}
}
