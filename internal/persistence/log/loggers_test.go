package log

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/leanke/puffer-red/internal/env"
	"github.com/leanke/puffer-red/internal/vec"
)

func TestEpisodeLogger_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	l := NewEpisodeLogger(dir, "run1")
	for i := 1; i <= 3; i++ {
		ep := vec.Episode{Env: i - 1, Episode: i, Tick: uint64(10 * i), Log: env.EpisodeLog{EpisodeLength: float32(i), Badges: 1, N: 1}}
		if err := l.WriteEpisode(ep); err != nil {
			t.Fatalf("WriteEpisode: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(filepath.Join(dir, "episodes"), "episodes")
	if err != nil {
		t.Fatal(err)
	}
	// An hour boundary during the test splits the writes across two files.
	if len(files) == 0 || len(files) > 2 {
		t.Fatalf("files=%v", files)
	}
	var got []EpisodeRecord
	for _, f := range files {
		if err := ReadEpisodes(f, func(r EpisodeRecord) error {
			got = append(got, r)
			return nil
		}); err != nil {
			t.Fatalf("ReadEpisodes: %v", err)
		}
	}
	if len(got) != 3 {
		t.Fatalf("records=%d want=3", len(got))
	}
	if got[2].Run != "run1" || got[2].Env != 2 || got[2].Episode != 3 || got[2].Tick != 30 || got[2].Log.EpisodeLength != 3 {
		t.Fatalf("record=%+v", got[2])
	}
	if got[0].TS.IsZero() {
		t.Fatalf("missing timestamp")
	}
}

func TestJSONLZstdWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "episodes")
		if err := w.Write(EpisodeRecord{Run: "r", Episode: i}); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}
	files, err := ListFiles(dir, "episodes")
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, f := range files {
		if err := ReadEpisodes(f, func(EpisodeRecord) error { n++; return nil }); err != nil {
			t.Fatal(err)
		}
	}
	if n != 2 {
		t.Fatalf("records=%d want=2", n)
	}
}

func TestReadEpisodes_StopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "episodes")
	for i := 0; i < 3; i++ {
		if err := w.Write(EpisodeRecord{Episode: i}); err != nil {
			t.Fatal(err)
		}
	}
	_ = w.Close()
	files, _ := ListFiles(dir, "episodes")
	if len(files) == 0 {
		t.Fatalf("no files")
	}
	stop := errors.New("stop")
	seen := 0
	err := ReadEpisodes(files[0], func(EpisodeRecord) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) || seen != 1 {
		t.Fatalf("err=%v seen=%d", err, seen)
	}
	if _, err := ListFiles(filepath.Join(dir, "missing"), "episodes"); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
