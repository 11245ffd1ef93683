package vec

// Metrics is a read-only view of the vector's runtime signals. It is
// published after every Step and may be read from other goroutines.
type Metrics struct {
	Tick       uint64 `json:"tick"`
	Envs       int    `json:"envs"`
	Episodes   uint64 `json:"episodes"`
	SinkErrors uint64 `json:"sink_errors"`

	StepMS float64 `json:"step_ms"`

	StatsWindowTicks uint64      `json:"stats_window_ticks"`
	StatsWindow      StatsBucket `json:"stats_window"`
}

// MeanStepReward is the average per-env reward over the stats window.
func (m Metrics) MeanStepReward() float64 {
	if m.StatsWindow.Steps == 0 {
		return 0
	}
	return m.StatsWindow.Reward / float64(m.StatsWindow.Steps)
}

// MeanReturn is the average episode return over the stats window.
func (m Metrics) MeanReturn() float64 {
	if m.StatsWindow.Episodes == 0 {
		return 0
	}
	return m.StatsWindow.Return / float64(m.StatsWindow.Episodes)
}

func (v *Vec) Metrics() Metrics {
	if v == nil {
		return Metrics{}
	}
	m, ok := v.metrics.Load().(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}
