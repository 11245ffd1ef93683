package env

// EpisodeLog is the end-of-episode summary. A single episode has N == 1;
// sums built with Add carry the episode count in N.
type EpisodeLog struct {
	EpisodeLength float32 `json:"episode_length"`
	LevelSum      float32 `json:"level_sum"`
	EpisodeReturn float32 `json:"episode_return"`
	Pkmn1Lvl      float32 `json:"pkmn1_lvl"`
	Pkmn2Lvl      float32 `json:"pkmn2_lvl"`
	Pkmn3Lvl      float32 `json:"pkmn3_lvl"`
	Pkmn4Lvl      float32 `json:"pkmn4_lvl"`
	Pkmn5Lvl      float32 `json:"pkmn5_lvl"`
	Pkmn6Lvl      float32 `json:"pkmn6_lvl"`
	Money         float32 `json:"money"`
	EventSum      float32 `json:"event_sum"`
	UniqueCoords  float32 `json:"unique_coords"`
	PartyCount    float32 `json:"party_count"`
	Badges        float32 `json:"badges"`
	N             float32 `json:"n"`
}

func (l *EpisodeLog) fields() []*float32 {
	return []*float32{
		&l.EpisodeLength, &l.LevelSum, &l.EpisodeReturn,
		&l.Pkmn1Lvl, &l.Pkmn2Lvl, &l.Pkmn3Lvl, &l.Pkmn4Lvl, &l.Pkmn5Lvl, &l.Pkmn6Lvl,
		&l.Money, &l.EventSum, &l.UniqueCoords, &l.PartyCount, &l.Badges,
	}
}

// Add accumulates o into l.
func (l *EpisodeLog) Add(o EpisodeLog) {
	dst, src := l.fields(), o.fields()
	for i := range dst {
		*dst[i] += *src[i]
	}
	l.N += o.N
}

// Mean divides every field but N by N. A log with N == 0 is returned as is.
func (l EpisodeLog) Mean() EpisodeLog {
	if l.N <= 0 {
		return l
	}
	out := l
	for _, f := range out.fields() {
		*f /= l.N
	}
	return out
}

// Map returns the log as named floats.
func (l EpisodeLog) Map() map[string]float32 {
	return map[string]float32{
		"episode_length": l.EpisodeLength,
		"level_sum":      l.LevelSum,
		"episode_return": l.EpisodeReturn,
		"pkmn1_lvl":      l.Pkmn1Lvl,
		"pkmn2_lvl":      l.Pkmn2Lvl,
		"pkmn3_lvl":      l.Pkmn3Lvl,
		"pkmn4_lvl":      l.Pkmn4Lvl,
		"pkmn5_lvl":      l.Pkmn5Lvl,
		"pkmn6_lvl":      l.Pkmn6Lvl,
		"money":          l.Money,
		"event_sum":      l.EventSum,
		"unique_coords":  l.UniqueCoords,
		"party_count":    l.PartyCount,
		"badges":         l.Badges,
		"n":              l.N,
	}
}
