package visit

// Tracker pairs the episode-local bitmap with the cross-episode one.
//
// Persistent starts fully marked and is overwritten with the episode bitmap
// each time an episode ends, so it remembers the previous episode's path.
type Tracker struct {
	Episode    *Bitmap
	Persistent *Bitmap

	unique int
}

func NewTracker() *Tracker {
	t := &Tracker{Episode: NewBitmap(), Persistent: NewBitmap()}
	t.Persistent.Fill()
	return t
}

// Unique is the number of distinct cells seen this episode.
func (t *Tracker) Unique() int {
	if t == nil {
		return 0
	}
	return t.unique
}

// ResetEpisode clears the episode bitmap and leaves Persistent alone.
func (t *Tracker) ResetEpisode() {
	if t == nil {
		return
	}
	t.Episode.Clear()
	t.unique = 0
}

// Start marks the spawn cell; it counts as already seen.
func (t *Tracker) Start(idx uint32) {
	if t == nil || t.Episode == nil {
		return
	}
	t.Episode.Set(idx)
	t.unique = 1
}

// VisitEpisode marks idx and reports whether it was new this episode.
func (t *Tracker) VisitEpisode(idx uint32) bool {
	if t == nil || t.Episode == nil || idx >= Cells || t.Episode.Has(idx) {
		return false
	}
	t.Episode.Set(idx)
	t.unique++
	return true
}

// VisitPersistent marks idx and reports whether the long-term map lacked it.
func (t *Tracker) VisitPersistent(idx uint32) bool {
	if t == nil || t.Persistent == nil || idx >= Cells || t.Persistent.Has(idx) {
		return false
	}
	t.Persistent.Set(idx)
	return true
}

// Commit overwrites Persistent with the finished episode's bitmap.
func (t *Tracker) Commit() {
	if t == nil {
		return
	}
	t.Persistent.CopyFrom(t.Episode)
}

// Release drops both bitmaps. The tracker reads as empty afterwards.
func (t *Tracker) Release() {
	if t == nil {
		return
	}
	t.Episode, t.Persistent = nil, nil
	t.unique = 0
}
