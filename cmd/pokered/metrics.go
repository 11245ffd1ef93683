package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/leanke/puffer-red/internal/transport/stream"
	"github.com/leanke/puffer-red/internal/vec"
)

func metricsMux(run string, v *vec.Vec, idx runtimeIndex, pub *stream.Publisher) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeVecMetrics(rw, run, v.Metrics())
		if idx != nil {
			s := idx.Stats()
			fmt.Fprintf(rw, "# HELP pokered_index_queue_depth Episode index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE pokered_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "pokered_index_queue_depth{run=%q} %d\n", run, s.QueueDepth)
			fmt.Fprintf(rw, "# HELP pokered_index_dropped_total Index writes dropped on a full queue.\n")
			fmt.Fprintf(rw, "# TYPE pokered_index_dropped_total counter\n")
			fmt.Fprintf(rw, "pokered_index_dropped_total{run=%q,kind=%q} %d\n", run, "episode", s.DropEpisodeTotal)
			fmt.Fprintf(rw, "pokered_index_dropped_total{run=%q,kind=%q} %d\n", run, "snapshot", s.DropSnapshotTotal)
		}
		if pub != nil {
			s := pub.Stats()
			fmt.Fprintf(rw, "# HELP pokered_stream_batches_total Coordinate batches by outcome.\n")
			fmt.Fprintf(rw, "# TYPE pokered_stream_batches_total counter\n")
			fmt.Fprintf(rw, "pokered_stream_batches_total{run=%q,outcome=%q} %d\n", run, "sent", s.Sent)
			fmt.Fprintf(rw, "pokered_stream_batches_total{run=%q,outcome=%q} %d\n", run, "dropped", s.Dropped)
			fmt.Fprintf(rw, "# HELP pokered_stream_reconnects_total Relay reconnect attempts.\n")
			fmt.Fprintf(rw, "# TYPE pokered_stream_reconnects_total counter\n")
			fmt.Fprintf(rw, "pokered_stream_reconnects_total{run=%q} %d\n", run, s.Reconnects)
		}
	})
	mux.HandleFunc("/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			Run     string                 `json:"run"`
			Metrics vec.Metrics            `json:"metrics"`
			Stream  *stream.PublisherStats `json:"stream,omitempty"`
		}{Run: run, Metrics: v.Metrics()}
		if pub != nil {
			s := pub.Stats()
			resp.Stream = &s
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	return mux
}

func writeVecMetrics(w io.Writer, run string, m vec.Metrics) {
	fmt.Fprintf(w, "# HELP pokered_vec_tick Vector steps taken.\n")
	fmt.Fprintf(w, "# TYPE pokered_vec_tick counter\n")
	fmt.Fprintf(w, "pokered_vec_tick{run=%q} %d\n", run, m.Tick)

	fmt.Fprintf(w, "# HELP pokered_vec_envs Environments in the vector.\n")
	fmt.Fprintf(w, "# TYPE pokered_vec_envs gauge\n")
	fmt.Fprintf(w, "pokered_vec_envs{run=%q} %d\n", run, m.Envs)

	fmt.Fprintf(w, "# HELP pokered_vec_episodes_total Episodes completed.\n")
	fmt.Fprintf(w, "# TYPE pokered_vec_episodes_total counter\n")
	fmt.Fprintf(w, "pokered_vec_episodes_total{run=%q} %d\n", run, m.Episodes)

	fmt.Fprintf(w, "# HELP pokered_vec_sink_errors_total Finished episodes a sink failed to record.\n")
	fmt.Fprintf(w, "# TYPE pokered_vec_sink_errors_total counter\n")
	fmt.Fprintf(w, "pokered_vec_sink_errors_total{run=%q} %d\n", run, m.SinkErrors)

	fmt.Fprintf(w, "# HELP pokered_vec_step_ms Last vector step duration in milliseconds.\n")
	fmt.Fprintf(w, "# TYPE pokered_vec_step_ms gauge\n")
	fmt.Fprintf(w, "pokered_vec_step_ms{run=%q} %.3f\n", run, m.StepMS)

	fmt.Fprintf(w, "# HELP pokered_stats_window Rolling window stats.\n")
	fmt.Fprintf(w, "# TYPE pokered_stats_window gauge\n")
	fmt.Fprintf(w, "pokered_stats_window{run=%q,metric=%q} %.6f\n", run, "mean_step_reward", m.MeanStepReward())
	fmt.Fprintf(w, "pokered_stats_window{run=%q,metric=%q} %.6f\n", run, "mean_return", m.MeanReturn())
	fmt.Fprintf(w, "pokered_stats_window{run=%q,metric=%q} %d\n", run, "episodes", m.StatsWindow.Episodes)
	fmt.Fprintf(w, "pokered_stats_window{run=%q,metric=%q} %.6f\n", run, "unique_coords", m.StatsWindow.Unique)
	fmt.Fprintf(w, "pokered_stats_window{run=%q,metric=%q} %.6f\n", run, "badges", m.StatsWindow.Badges)
	fmt.Fprintf(w, "pokered_stats_window{run=%q,metric=%q} %.6f\n", run, "event_sum", m.StatsWindow.Events)

	fmt.Fprintf(w, "# HELP pokered_stats_window_ticks Rolling window size in ticks.\n")
	fmt.Fprintf(w, "# TYPE pokered_stats_window_ticks gauge\n")
	fmt.Fprintf(w, "pokered_stats_window_ticks{run=%q} %d\n", run, m.StatsWindowTicks)
}
