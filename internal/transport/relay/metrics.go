package relay

import (
	"fmt"
	"net/http"
	"sort"
)

type Stats struct {
	Publishers int               `json:"publishers"`
	Viewers    int               `json:"viewers"`
	Received   uint64            `json:"received"`
	Forwarded  uint64            `json:"forwarded"`
	Dropped    map[string]uint64 `json:"dropped"`
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	viewers := len(s.viewers)
	s.mu.Unlock()
	out := Stats{
		Publishers: int(s.publishers.Load()),
		Viewers:    viewers,
		Received:   s.received.Load(),
		Forwarded:  s.forwarded.Load(),
		Dropped:    make(map[string]uint64, len(s.dropped)),
	}
	for r, c := range s.dropped {
		out.Dropped[r] = c.Load()
	}
	return out
}

func (s *Server) MetricsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		st := s.Stats()

		fmt.Fprintf(rw, "# HELP pokered_relay_publishers Connected publishers.\n")
		fmt.Fprintf(rw, "# TYPE pokered_relay_publishers gauge\n")
		fmt.Fprintf(rw, "pokered_relay_publishers %d\n", st.Publishers)

		fmt.Fprintf(rw, "# HELP pokered_relay_viewers Connected viewers.\n")
		fmt.Fprintf(rw, "# TYPE pokered_relay_viewers gauge\n")
		fmt.Fprintf(rw, "pokered_relay_viewers %d\n", st.Viewers)

		fmt.Fprintf(rw, "# HELP pokered_relay_received_total Batches received from publishers.\n")
		fmt.Fprintf(rw, "# TYPE pokered_relay_received_total counter\n")
		fmt.Fprintf(rw, "pokered_relay_received_total %d\n", st.Received)

		fmt.Fprintf(rw, "# HELP pokered_relay_forwarded_total Batches queued to viewers.\n")
		fmt.Fprintf(rw, "# TYPE pokered_relay_forwarded_total counter\n")
		fmt.Fprintf(rw, "pokered_relay_forwarded_total %d\n", st.Forwarded)

		reasons := make([]string, 0, len(st.Dropped))
		for r := range st.Dropped {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		fmt.Fprintf(rw, "# HELP pokered_relay_dropped_total Batches dropped by reason.\n")
		fmt.Fprintf(rw, "# TYPE pokered_relay_dropped_total counter\n")
		for _, r := range reasons {
			fmt.Fprintf(rw, "pokered_relay_dropped_total{reason=%q} %d\n", r, st.Dropped[r])
		}
	}
}
