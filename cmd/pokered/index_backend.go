package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leanke/puffer-red/internal/persistence/indexdb"
	"github.com/leanke/puffer-red/internal/persistence/snapshot"
	"github.com/leanke/puffer-red/internal/vec"
)

type runtimeIndex interface {
	vec.EpisodeSink
	Close() error
	UpsertRun(cfg any) error
	RecordSnapshot(path string, h snapshot.Header)
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir, run string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("POKERED_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "episodes.sqlite"), run)
	default:
		return nil, fmt.Errorf("unsupported POKERED_INDEX_BACKEND: %s", backend)
	}
}

// episodeFanout forwards every finished episode to each sink. A failing sink
// does not stop the others; failures are logged and returned joined.
type episodeFanout struct {
	sinks []vec.EpisodeSink
	log   *log.Logger
	// due collects envs whose persistent map should be snapshotted after the
	// current Step returns.
	every int
	due   []int
}

func (f *episodeFanout) WriteEpisode(ep vec.Episode) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.WriteEpisode(ep); err != nil {
			errs = append(errs, err)
		}
	}
	if f.every > 0 && ep.Episode%f.every == 0 {
		f.due = append(f.due, ep.Env)
	}
	err := errors.Join(errs...)
	if err != nil && f.log != nil {
		f.log.Printf("episode sink: env=%d episode=%d: %v", ep.Env, ep.Episode, err)
	}
	return err
}

func (f *episodeFanout) takeDue() []int {
	d := f.due
	f.due = nil
	return d
}
