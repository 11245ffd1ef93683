package reward

import (
	"math"
	"testing"

	"github.com/leanke/puffer-red/internal/env/visit"
	"github.com/leanke/puffer-red/internal/game/ram"
)

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-6 }

// freshTracker returns a tracker whose persistent map no longer has the
// seeded "everything visited" state, as after a first episode that only saw
// the start cell.
func freshTracker(start uint32) *visit.Tracker {
	tr := visit.NewTracker()
	tr.ResetEpisode()
	tr.Start(start)
	tr.Commit()
	tr.ResetEpisode()
	tr.Start(start)
	return tr
}

func TestStep_NoChangeIsZero(t *testing.T) {
	s := ram.Snapshot{X: 3, Y: 4, Map: 1, Badges: 1, PartyCount: 1, Levels: [6]uint8{5}}
	tr := freshTracker(visit.Pack(s.Map, s.X, s.Y))
	e := NewEngine(DefaultWeights())
	e.Reset(s, 7)

	b := e.Step(s, 7, tr)
	if b != (Breakdown{}) || b.Total() != 0 {
		t.Fatalf("breakdown=%+v want zero", b)
	}
}

func TestStep_NewCellPaysTwiceThenOnce(t *testing.T) {
	w := DefaultWeights()
	start := ram.Snapshot{X: 1, Y: 1}
	tr := freshTracker(visit.Pack(0, 1, 1))
	e := NewEngine(w)
	e.Reset(start, 0)

	moved := start
	moved.X = 2
	b := e.Step(moved, 0, tr)
	if !near(b.Total(), 2*w.UniqueCoord) || b.Explore != w.UniqueCoord || b.Memory != w.UniqueCoord {
		t.Fatalf("first visit breakdown=%+v want explore+memory", b)
	}

	// Next episode: persistent already knows the cell.
	tr.Commit()
	tr.ResetEpisode()
	tr.Start(visit.Pack(0, 1, 1))
	e.Reset(start, 0)
	b = e.Step(moved, 0, tr)
	if !near(b.Total(), w.UniqueCoord) || b.Memory != 0 {
		t.Fatalf("second episode breakdown=%+v want explore only", b)
	}
	if tr.Unique() != 2 {
		t.Fatalf("unique=%d want=2", tr.Unique())
	}
}

func TestStep_SeededPersistentPaysOnce(t *testing.T) {
	w := DefaultWeights()
	tr := visit.NewTracker()
	tr.ResetEpisode()
	tr.Start(visit.Pack(0, 0, 0))
	e := NewEngine(w)
	e.Reset(ram.Snapshot{}, 0)

	b := e.Step(ram.Snapshot{X: 1}, 0, tr)
	if b.Explore != w.UniqueCoord || b.Memory != 0 {
		t.Fatalf("breakdown=%+v", b)
	}
}

func TestStep_BadgeOncePerIncrease(t *testing.T) {
	w := DefaultWeights()
	tr := freshTracker(0)
	e := NewEngine(w)
	e.Reset(ram.Snapshot{}, 0)

	b := e.Step(ram.Snapshot{Badges: 0b0000_0011}, 0, tr)
	if b.Badge != w.Badge {
		t.Fatalf("Badge=%v want=%v", b.Badge, w.Badge)
	}
	b = e.Step(ram.Snapshot{Badges: 0b0000_0011}, 0, tr)
	if b.Badge != 0 {
		t.Fatalf("unchanged badges paid %v", b.Badge)
	}
}

func TestStep_PartyGuards(t *testing.T) {
	w := DefaultWeights()
	tr := freshTracker(0)
	e := NewEngine(w)
	e.Reset(ram.Snapshot{PartyCount: 6}, 0)

	if b := e.Step(ram.Snapshot{PartyCount: 7}, 0, tr); b.Pokemon != 0 {
		t.Fatalf("party count above 6 paid %v", b.Pokemon)
	}
	e.Reset(ram.Snapshot{PartyCount: 1}, 0)
	if b := e.Step(ram.Snapshot{PartyCount: 2}, 0, tr); b.Pokemon != w.Pokemon {
		t.Fatalf("Pokemon=%v want=%v", b.Pokemon, w.Pokemon)
	}
}

func TestStep_LevelSumDelta(t *testing.T) {
	w := DefaultWeights()
	tr := freshTracker(0)
	e := NewEngine(w)
	e.Reset(ram.Snapshot{PartyCount: 1, Levels: [6]uint8{5}}, 0)

	b := e.Step(ram.Snapshot{PartyCount: 1, Levels: [6]uint8{7}}, 0, tr)
	if !near(b.Level, w.Level*2) {
		t.Fatalf("Level=%v want=%v", b.Level, w.Level*2)
	}

	// A smaller party with a higher sum pays nothing.
	e.Reset(ram.Snapshot{PartyCount: 2, Levels: [6]uint8{7, 3}}, 0)
	if b := e.Step(ram.Snapshot{PartyCount: 1, Levels: [6]uint8{7, 9}}, 0, tr); b.Level != 0 {
		t.Fatalf("shrinking party paid level %v", b.Level)
	}

	// Catching a new member pays on the sum delta, with the capture bonus.
	e.Reset(ram.Snapshot{PartyCount: 1, Levels: [6]uint8{7}}, 0)
	b = e.Step(ram.Snapshot{PartyCount: 2, Levels: [6]uint8{7, 3}}, 0, tr)
	if !near(b.Level, w.Level*3) || b.Pokemon != w.Pokemon {
		t.Fatalf("capture breakdown=%+v", b)
	}
}

func TestStep_EventDeltaAndBaseline(t *testing.T) {
	w := DefaultWeights()
	tr := freshTracker(0)
	e := NewEngine(w)
	e.Reset(ram.Snapshot{}, 10)

	b := e.Step(ram.Snapshot{}, 13, tr)
	if !near(b.Event, 3*w.Event) {
		t.Fatalf("Event=%v want=%v", b.Event, 3*w.Event)
	}
	if e.PrevEventSum() != 13 {
		t.Fatalf("PrevEventSum=%d want=13", e.PrevEventSum())
	}
	if b := e.Step(ram.Snapshot{}, 12, tr); b.Event != 0 {
		t.Fatalf("event decrease paid %v", b.Event)
	}
	if e.PrevEventSum() != 12 {
		t.Fatalf("baseline must follow decreases, got %d", e.PrevEventSum())
	}
}
