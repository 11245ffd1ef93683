package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/leanke/puffer-red/internal/persistence/snapshot"
	"github.com/leanke/puffer-red/internal/vec"
)

const schemaVersion = "1"

// SQLiteIndex is a secondary, queryable index of finished episodes. Writes go
// through a buffered channel and are dropped when the writer falls behind; the
// JSONL episode log stays the source of truth.
type SQLiteIndex struct {
	db  *sql.DB
	run string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropEpisode  atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqEpisode reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	episode  episodeRow
	snapshot snapshotRow
}

type episodeRow struct {
	Env        int
	Episode    int
	Length     float32
	Return     float32
	LevelSum   float32
	Money      float32
	EventSum   float32
	Unique     float32
	PartyCount float32
	Badges     float32
	RecordedAt string
}

type snapshotRow struct {
	Env        int
	Episodes   int
	SetBits    int
	Path       string
	RecordedAt string
}

// Stats reports queue pressure on the async writer.
type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropEpisodeTotal  uint64 `json:"drop_episode_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

// OpenSQLite opens (or creates) the index at path. Rows written through this
// handle are tagged with run.
func OpenSQLite(path, run string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		run: run,
		ch:  make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			config_json TEXT NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS episodes (
			run TEXT NOT NULL,
			env INTEGER NOT NULL,
			episode INTEGER NOT NULL,
			length REAL NOT NULL,
			episode_return REAL NOT NULL,
			level_sum REAL NOT NULL,
			money REAL NOT NULL,
			event_sum REAL NOT NULL,
			unique_coords REAL NOT NULL,
			party_count REAL NOT NULL,
			badges REAL NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run, env, episode)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_run_recorded ON episodes(run, recorded_at);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			run TEXT NOT NULL,
			env INTEGER NOT NULL,
			episodes INTEGER NOT NULL,
			set_bits INTEGER NOT NULL,
			path TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run, env, episodes)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion)
	return err
}

func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		if s.ch != nil {
			close(s.ch)
		}
		s.wg.Wait()
		if s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropEpisodeTotal:  s.dropEpisode.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// WriteEpisode queues one finished episode. It never blocks.
func (s *SQLiteIndex) WriteEpisode(ep vec.Episode) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	l := ep.Log
	r := episodeRow{
		Env:        ep.Env,
		Episode:    ep.Episode,
		Length:     l.EpisodeLength,
		Return:     l.EpisodeReturn,
		LevelSum:   l.LevelSum,
		Money:      l.Money,
		EventSum:   l.EventSum,
		Unique:     l.UniqueCoords,
		PartyCount: l.PartyCount,
		Badges:     l.Badges,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqEpisode, episode: r}:
	default:
		s.dropEpisode.Add(1)
	}
	return nil
}

// RecordSnapshot queues a row for a visitation snapshot written to path.
func (s *SQLiteIndex) RecordSnapshot(path string, h snapshot.Header) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Env:        h.Env,
		Episodes:   h.Episodes,
		SetBits:    h.SetBits,
		Path:       path,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// UpsertRun stores the configuration the run actually applies, as canonical
// JSON with its digest. It writes synchronously.
func (s *SQLiteIndex) UpsertRun(cfg any) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	_, err = s.db.Exec(`INSERT OR REPLACE INTO runs(run,digest,config_json,started_at) VALUES(?,?,?,?)`,
		s.run, hex.EncodeToString(sum[:]), string(b), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertEpisode, _ := s.db.Prepare(`INSERT OR REPLACE INTO episodes(run,env,episode,length,episode_return,level_sum,money,event_sum,unique_coords,party_count,badges,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(run,env,episodes,set_bits,path,recorded_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertEpisode != nil {
			_ = insertEpisode.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 512
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	// An idle writer still commits so readers sharing the connection are not
	// blocked behind an open transaction.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		case <-ticker.C:
			flushIfNeeded()
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqEpisode:
			e := r.episode
			if insertEpisode != nil {
				if _, err := tx.Stmt(insertEpisode).Exec(
					s.run,
					e.Env,
					e.Episode,
					e.Length,
					e.Return,
					e.LevelSum,
					e.Money,
					e.EventSum,
					e.Unique,
					e.PartyCount,
					e.Badges,
					e.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					s.run,
					sn.Env,
					sn.Episodes,
					sn.SetBits,
					sn.Path,
					sn.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}
}
