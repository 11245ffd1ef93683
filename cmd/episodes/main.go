package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/leanke/puffer-red/internal/env"
	"github.com/leanke/puffer-red/internal/persistence/indexdb"
	persistlog "github.com/leanke/puffer-red/internal/persistence/log"
)

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		run     = flag.String("run", "", "only this run id (optional)")
		envID   = flag.Int("env", -1, "only this environment (optional)")
		verbose = flag.Bool("v", false, "print one line per episode")
		useDB   = flag.Bool("db", false, "summarize from the sqlite index instead of the logs")
	)
	flag.Parse()

	if *useDB {
		if err := summarizeIndex(os.Stdout, filepath.Join(*dataDir, "index", "episodes.sqlite"), *run); err != nil {
			fmt.Fprintln(os.Stderr, "index:", err)
			os.Exit(1)
		}
		return
	}

	dir := filepath.Join(*dataDir, "episodes")
	files, err := persistlog.ListFiles(dir, "episodes")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list episodes:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no episode files found in", dir)
		os.Exit(1)
	}

	agg := newAggregate(*run, *envID)
	for _, path := range files {
		err := persistlog.ReadEpisodes(path, func(rec persistlog.EpisodeRecord) error {
			if agg.add(rec) && *verbose {
				fmt.Printf("%s run=%s env=%d episode=%d tick=%d %s\n",
					rec.TS.Format(time.RFC3339), rec.Run, rec.Env, rec.Episode, rec.Tick, formatLog(rec.Log))
			}
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}
	agg.print(os.Stdout)
}

// aggregate sums episode logs per (run, env).
type aggregate struct {
	run string
	env int

	byKey map[aggKey]*env.EpisodeLog
}

type aggKey struct {
	run string
	env int
}

func newAggregate(run string, envID int) *aggregate {
	return &aggregate{run: run, env: envID, byKey: map[aggKey]*env.EpisodeLog{}}
}

// add reports whether rec passed the filters.
func (a *aggregate) add(rec persistlog.EpisodeRecord) bool {
	if a.run != "" && rec.Run != a.run {
		return false
	}
	if a.env >= 0 && rec.Env != a.env {
		return false
	}
	k := aggKey{run: rec.Run, env: rec.Env}
	l := a.byKey[k]
	if l == nil {
		l = &env.EpisodeLog{}
		a.byKey[k] = l
	}
	l.Add(rec.Log)
	return true
}

func (a *aggregate) keys() []aggKey {
	keys := make([]aggKey, 0, len(a.byKey))
	for k := range a.byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].run != keys[j].run {
			return keys[i].run < keys[j].run
		}
		return keys[i].env < keys[j].env
	})
	return keys
}

func (a *aggregate) print(w io.Writer) {
	var total env.EpisodeLog
	for _, k := range a.keys() {
		l := *a.byKey[k]
		total.Add(l)
		fmt.Fprintf(w, "run=%s env=%d episodes=%.0f %s\n", k.run, k.env, l.N, formatLog(l.Mean()))
	}
	fmt.Fprintf(w, "total episodes=%.0f %s\n", total.N, formatLog(total.Mean()))
}

func formatLog(l env.EpisodeLog) string {
	return fmt.Sprintf("return=%.4f length=%.1f unique=%.1f badges=%.2f events=%.1f levels=%.1f money=%.0f",
		l.EpisodeReturn, l.EpisodeLength, l.UniqueCoords, l.Badges, l.EventSum, l.LevelSum, l.Money)
}

func summarizeIndex(w io.Writer, path, run string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	idx, err := indexdb.OpenSQLite(path, "")
	if err != nil {
		return err
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	runs := []string{run}
	if run == "" {
		if runs, err = idx.Runs(ctx); err != nil {
			return err
		}
	}
	for _, r := range runs {
		sums, err := idx.Summary(ctx, r)
		if err != nil {
			return err
		}
		for _, s := range sums {
			fmt.Fprintf(w, "run=%s env=%d episodes=%d mean_return=%.4f mean_length=%.1f max_unique=%.0f max_badges=%.0f max_events=%.0f\n",
				r, s.Env, s.Episodes, s.MeanReturn, s.MeanLength, s.MaxUnique, s.MaxBadges, s.MaxEvents)
		}
	}
	return nil
}
