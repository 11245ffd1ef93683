package vec

import "github.com/leanke/puffer-red/internal/env"

type StatsBucket struct {
	Steps    int     `json:"steps"`
	Reward   float64 `json:"reward"`
	Episodes int     `json:"episodes"`
	Return   float64 `json:"return"`
	Unique   float64 `json:"unique_coords"`
	Badges   float64 `json:"badges"`
	Events   float64 `json:"event_sum"`
}

func (b *StatsBucket) add(o StatsBucket) {
	b.Steps += o.Steps
	b.Reward += o.Reward
	b.Episodes += o.Episodes
	b.Return += o.Return
	b.Unique += o.Unique
	b.Badges += o.Badges
	b.Events += o.Events
}

// Stats is a ring of per-tick-range buckets covering the last windowTicks.
type Stats struct {
	bucketTicks uint64
	windowTicks uint64

	buckets []StatsBucket
	curIdx  int
	curBase uint64 // first tick of the current bucket
}

func NewStats(bucketTicks, windowTicks uint64) *Stats {
	if bucketTicks == 0 {
		bucketTicks = 128
	}
	if windowTicks < bucketTicks {
		windowTicks = bucketTicks
	}
	n := int(windowTicks / bucketTicks)
	if n < 1 {
		n = 1
	}
	return &Stats{
		bucketTicks: bucketTicks,
		windowTicks: uint64(n) * bucketTicks,
		buckets:     make([]StatsBucket, n),
	}
}

func (s *Stats) rotate(nowTick uint64) {
	if s == nil {
		return
	}
	// Skip whole windows at once after long gaps.
	if nowTick >= s.curBase+s.windowTicks+s.bucketTicks {
		for i := range s.buckets {
			s.buckets[i] = StatsBucket{}
		}
		s.curBase = nowTick - nowTick%s.bucketTicks
		return
	}
	for nowTick >= s.curBase+s.bucketTicks {
		s.curIdx = (s.curIdx + 1) % len(s.buckets)
		s.buckets[s.curIdx] = StatsBucket{}
		s.curBase += s.bucketTicks
	}
}

func (s *Stats) RecordStep(nowTick uint64, steps int, reward float64) {
	if s == nil {
		return
	}
	s.rotate(nowTick)
	s.buckets[s.curIdx].Steps += steps
	s.buckets[s.curIdx].Reward += reward
}

func (s *Stats) RecordEpisode(nowTick uint64, l env.EpisodeLog) {
	if s == nil {
		return
	}
	s.rotate(nowTick)
	b := &s.buckets[s.curIdx]
	b.Episodes++
	b.Return += float64(l.EpisodeReturn)
	b.Unique += float64(l.UniqueCoords)
	b.Badges += float64(l.Badges)
	b.Events += float64(l.EventSum)
}

// Window sums every bucket in the ring.
func (s *Stats) Window(nowTick uint64) StatsBucket {
	if s == nil {
		return StatsBucket{}
	}
	s.rotate(nowTick)
	var out StatsBucket
	for i := range s.buckets {
		out.add(s.buckets[i])
	}
	return out
}

func (s *Stats) WindowTicks() uint64 {
	if s == nil {
		return 0
	}
	return s.windowTicks
}
