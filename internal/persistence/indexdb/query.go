package indexdb

import "context"

// EnvSummary aggregates one environment's indexed episodes within a run.
type EnvSummary struct {
	Env        int     `json:"env"`
	Episodes   int     `json:"episodes"`
	MeanReturn float64 `json:"mean_return"`
	MeanLength float64 `json:"mean_length"`
	MaxUnique  float64 `json:"max_unique_coords"`
	MaxBadges  float64 `json:"max_badges"`
	MaxEvents  float64 `json:"max_event_sum"`
}

// Runs lists run ids with indexed episodes, most recent first.
func (s *SQLiteIndex) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run FROM episodes GROUP BY run ORDER BY MAX(recorded_at) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary aggregates a run's episodes per environment.
func (s *SQLiteIndex) Summary(ctx context.Context, run string) ([]EnvSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT env, COUNT(*), AVG(episode_return), AVG(length),
			MAX(unique_coords), MAX(badges), MAX(event_sum)
		FROM episodes WHERE run = ? GROUP BY env ORDER BY env`, run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EnvSummary
	for rows.Next() {
		var e EnvSummary
		if err := rows.Scan(&e.Env, &e.Episodes, &e.MeanReturn, &e.MeanLength, &e.MaxUnique, &e.MaxBadges, &e.MaxEvents); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
