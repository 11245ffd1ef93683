package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	mrand "math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/leanke/puffer-red/internal/emu"
	"github.com/leanke/puffer-red/internal/env"
	"github.com/leanke/puffer-red/internal/env/obs"
	persistlog "github.com/leanke/puffer-red/internal/persistence/log"
	"github.com/leanke/puffer-red/internal/persistence/snapshot"
	"github.com/leanke/puffer-red/internal/transport/stream"
	"github.com/leanke/puffer-red/internal/tuning"
	"github.com/leanke/puffer-red/internal/vec"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/pokered.yaml", "path to pokered.yaml (empty for defaults)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides persistence.data_dir)")
		romPath    = flag.String("rom", "", "cartridge path (overrides env.rom_path)")
		numEnvs    = flag.Int("envs", 0, "number of environments (overrides vec.num_envs)")
		steps      = flag.Uint64("steps", 0, "stop after this many vector steps (0 runs until interrupted)")
		addr       = flag.String("addr", "", "metrics listen address (empty to disable)")
		runID      = flag.String("run", "", "run id (default: random)")
		proc       = flag.Int("proc", 0, "process index used in stream env ids")
		seed       = flag.Int64("seed", 1, "random policy seed")
		dumpObs    = flag.String("dump_obs", "", "write env 0's first observation as PNG to this path")
		loadVisits = flag.Bool("load_visits", true, "restore persistent visitation maps from the data dir")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[pokered] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := tuning.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if v := strings.TrimSpace(*dataDir); v != "" {
		cfg.Persistence.DataDir = v
	}
	if v := strings.TrimSpace(*romPath); v != "" {
		cfg.Env.ROMPath = v
	}
	if *numEnvs > 0 {
		cfg.Vec.NumEnvs = *numEnvs
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	run := strings.TrimSpace(*runID)
	if run == "" {
		run = newRunID()
	}

	ecfg, err := cfg.EnvConfig()
	if err != nil {
		logger.Fatalf("env config: %v", err)
	}
	ecfg.Logger = log.New(os.Stdout, "[env] ", log.LstdFlags|log.Lmicroseconds)

	v, err := vec.New(ecfg, cfg.Vec.NumEnvs)
	if err != nil {
		if errors.Is(err, emu.ErrUnknownCore) {
			logger.Fatalf("vec: %v (registered cores: %v)", err, emu.Cores())
		}
		logger.Fatalf("vec: %v", err)
	}
	defer v.Close()

	if *loadVisits {
		restoreVisits(v, cfg.Persistence.DataDir, logger)
	}

	// Optional: episode index (does not affect stepping).
	idx, err := openRuntimeIndex(cfg.Persistence.DataDir, run, cfg.Persistence.DisableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertRun(cfg); err != nil {
			logger.Printf("index backend: upsert run: %v", err)
		}
	}

	episodeLog := persistlog.NewEpisodeLogger(cfg.Persistence.DataDir, run)
	defer episodeLog.Close()
	fanout := &episodeFanout{sinks: []vec.EpisodeSink{episodeLog}, log: logger, every: cfg.Persistence.SnapshotEveryEpisodes}
	if idx != nil {
		fanout.sinks = append(fanout.sinks, idx)
	}
	v.SetEpisodeSink(fanout)

	var (
		collector *stream.Collector
		publisher *stream.Publisher
	)
	if cfg.Stream.Enabled {
		collector = stream.NewCollector(stream.CollectorConfig{
			Run:      run,
			Proc:     *proc,
			User:     cfg.Stream.User,
			Color:    cfg.Stream.Color,
			Extra:    cfg.Stream.Extra,
			Interval: cfg.Stream.Interval,
		}, v.Len())
		publisher = stream.NewPublisher(cfg.Stream.URL, 16, log.New(os.Stdout, "[stream] ", log.LstdFlags|log.Lmicroseconds))
		defer publisher.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	if strings.TrimSpace(*addr) != "" {
		srv := &http.Server{
			Addr:              *addr,
			Handler:           metricsMux(run, v, idx, publisher),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			_ = srv.Shutdown(ctx2)
		}()
		go func() {
			logger.Printf("metrics listening on %s", *addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	if _, err := v.Reset(); err != nil {
		logger.Fatalf("reset: %v", err)
	}
	if p := strings.TrimSpace(*dumpObs); p != "" {
		if err := writeObsPNG(p, v.Env(0).Observation()); err != nil {
			logger.Printf("dump obs: %v", err)
		} else {
			logger.Printf("observation written to %s", p)
		}
	}

	logger.Printf("run=%s envs=%d core=%s rom=%s", run, v.Len(), ecfg.Core, ecfg.ROMPath)

	rng := mrand.New(mrand.NewSource(*seed))
	actions := make([]emu.Action, v.Len())
	for {
		if ctx.Err() != nil {
			break
		}
		if *steps != 0 && v.Tick() >= *steps {
			break
		}
		for i := range actions {
			actions[i] = emu.Action(rng.Intn(emu.NumActions))
		}
		if _, err := v.Step(actions); err != nil {
			logger.Printf("step: %v", err)
			break
		}

		for _, i := range fanout.takeDue() {
			writeVisits(v, i, cfg.Persistence.DataDir, idx, logger)
		}
		if collector != nil {
			publisher.Publish(collector.Observe(v.Positions()))
		}
		if v.Tick()%uint64(cfg.Vec.LogInterval) == 0 {
			if l := v.Log(); l.N > 0 {
				logger.Printf("tick=%d episodes=%.0f %s", v.Tick(), l.N, formatLog(l))
			}
		}
	}

	if collector != nil {
		publisher.Publish(collector.Flush())
	}
	if cfg.Persistence.SnapshotEveryEpisodes > 0 {
		for i := 0; i < v.Len(); i++ {
			writeVisits(v, i, cfg.Persistence.DataDir, idx, logger)
		}
	}
	m := v.Metrics()
	logger.Printf("stopped: tick=%d episodes=%d mean_return=%.4f", m.Tick, m.Episodes, m.MeanReturn())
}

func restoreVisits(v *vec.Vec, dataDir string, logger *log.Logger) {
	for i := 0; i < v.Len(); i++ {
		path := snapshot.Path(dataDir, i)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		h, words, err := snapshot.ReadVisits(path)
		if err != nil {
			logger.Printf("read visits %s: %v", path, err)
			continue
		}
		if err := v.Env(i).RestorePersistent(words); err != nil {
			logger.Printf("restore visits env %d: %v", i, err)
			continue
		}
		logger.Printf("restored visits env=%d episodes=%d set_bits=%d", i, h.Episodes, h.SetBits)
	}
}

func writeVisits(v *vec.Vec, i int, dataDir string, idx runtimeIndex, logger *log.Logger) {
	e := v.Env(i)
	path := snapshot.Path(dataDir, i)
	h := snapshot.Header{Env: i, Episodes: e.Episodes()}
	if err := snapshot.WriteVisits(path, h, e.Visits().Persistent); err != nil {
		logger.Printf("snapshot write: %v", err)
		return
	}
	if idx != nil {
		h.Version = snapshot.Version
		h.SetBits = e.Visits().Persistent.Count()
		idx.RecordSnapshot(path, h)
	}
}

func writeObsPNG(path string, o []float32) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := obs.WritePNG(f, o, 4); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func formatLog(l env.EpisodeLog) string {
	return fmt.Sprintf("return=%.4f length=%.1f unique=%.1f badges=%.2f events=%.1f levels=%.1f",
		l.EpisodeReturn, l.EpisodeLength, l.UniqueCoords, l.Badges, l.EventSum, l.LevelSum)
}

func newRunID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
