package visit

import "testing"

func TestPack_Injective(t *testing.T) {
	seen := NewBitmap()
	for m := 0; m < 256; m += 17 {
		for x := 0; x < 256; x++ {
			for y := 0; y < 256; y += 3 {
				i := Pack(uint8(m), uint8(x), uint8(y))
				if i >= Cells {
					t.Fatalf("Pack(%d,%d,%d)=%d out of range", m, x, y, i)
				}
				if seen.Has(i) {
					t.Fatalf("Pack(%d,%d,%d)=%d collides", m, x, y, i)
				}
				seen.Set(i)
			}
		}
	}
	if Pack(0xFF, 0xFF, 0xFF) != Cells-1 || Pack(1, 2, 3) != 0x010203 {
		t.Fatalf("unexpected packing layout")
	}
}

func TestBitmap_OutOfRangeIsNoop(t *testing.T) {
	b := NewBitmap()
	b.Set(Cells)
	b.Set(Cells + 12345)
	if b.Has(Cells) || b.Count() != 0 {
		t.Fatalf("out-of-range index must be ignored")
	}

	var nilMap *Bitmap
	nilMap.Set(1)
	nilMap.Clear()
	if nilMap.Has(1) || nilMap.Count() != 0 {
		t.Fatalf("nil bitmap must read empty")
	}
}

func TestBitmap_FillClearCopy(t *testing.T) {
	a := NewBitmap()
	a.Fill()
	if a.Count() != Cells {
		t.Fatalf("Count=%d want=%d", a.Count(), Cells)
	}
	b := NewBitmap()
	b.Set(Pack(1, 2, 3))
	a.CopyFrom(b)
	if a.Count() != 1 || !a.Has(Pack(1, 2, 3)) {
		t.Fatalf("CopyFrom count=%d", a.Count())
	}
	a.Clear()
	if a.Count() != 0 {
		t.Fatalf("Clear count=%d", a.Count())
	}
	if err := a.SetWords(make([]uint64, 3)); err == nil {
		t.Fatalf("SetWords should reject short input")
	}
}

func TestTracker_EpisodeLifecycle(t *testing.T) {
	tr := NewTracker()
	start := Pack(0, 5, 6)
	tr.ResetEpisode()
	for _, i := range []uint32{0, start, Pack(9, 9, 9)} {
		if tr.Episode.Has(i) {
			t.Fatalf("cell %d visited after reset", i)
		}
	}
	tr.Start(start)
	if tr.Unique() != 1 || !tr.Episode.Has(start) {
		t.Fatalf("after Start unique=%d", tr.Unique())
	}
	if tr.VisitEpisode(start) {
		t.Fatalf("start cell must not be new")
	}
	next := Pack(0, 5, 7)
	if !tr.VisitEpisode(next) || tr.Unique() != 2 {
		t.Fatalf("next cell should be new, unique=%d", tr.Unique())
	}
	if tr.VisitEpisode(Cells + 1) {
		t.Fatalf("out-of-range cell reported new")
	}

	// Persistent is seeded full: nothing is new to it before the first commit.
	if tr.VisitPersistent(next) {
		t.Fatalf("seeded persistent map reported a new cell")
	}
	tr.Commit()
	if tr.Persistent.Count() != 2 {
		t.Fatalf("persistent count=%d want=2", tr.Persistent.Count())
	}
	tr.ResetEpisode()
	if tr.Persistent.Count() != 2 || tr.Unique() != 0 {
		t.Fatalf("ResetEpisode must not touch persistent")
	}
	far := Pack(3, 3, 3)
	if !tr.VisitPersistent(far) || tr.VisitPersistent(far) {
		t.Fatalf("far cell should be new exactly once")
	}
}

func TestTracker_ReleaseIdempotent(t *testing.T) {
	tr := NewTracker()
	tr.Release()
	tr.Release()
	if tr.VisitEpisode(1) || tr.VisitPersistent(1) || tr.Unique() != 0 {
		t.Fatalf("released tracker must be inert")
	}
	var nilTracker *Tracker
	nilTracker.Release()
	nilTracker.Commit()
}
