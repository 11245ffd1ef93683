// Package snapshot stores persistent visitation bitmaps between runs.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/leanke/puffer-red/internal/encoding"
	"github.com/leanke/puffer-red/internal/env/visit"
)

const Version = 1

type Header struct {
	Version  int `json:"version"`
	Env      int `json:"env"`
	Episodes int `json:"episodes"`
	SetBits  int `json:"set_bits"`
}

// VisitsV1 is the on-disk form of one environment's persistent bitmap.
type VisitsV1 struct {
	Header Header
	Words  int    // decoded word count
	RLE    []byte // encoding.EncodeRLE of the bitmap words
}

// Path returns <dataDir>/visits/env-<i>.visit.zst.
func Path(dataDir string, envID int) string {
	return filepath.Join(dataDir, "visits", fmt.Sprintf("env-%d.visit.zst", envID))
}

// WriteVisits writes b atomically: the file is built under a temporary name
// and renamed into place.
func WriteVisits(path string, h Header, b *visit.Bitmap) error {
	words := b.Words()
	if words == nil {
		return fmt.Errorf("write visits: bitmap released")
	}
	h.Version = Version
	h.SetBits = b.Count()
	snap := VisitsV1{Header: h, Words: len(words), RLE: encoding.EncodeRLE(words)}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap VisitsV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadVisits returns the header and decoded bitmap words.
func ReadVisits(path string) (Header, []uint64, error) {
	var snap VisitsV1
	f, err := os.Open(path)
	if err != nil {
		return snap.Header, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap.Header, nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The header line duplicates the gob header; it is there for tools.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap.Header, nil, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap.Header, nil, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap.Header, nil, fmt.Errorf("unsupported visit snapshot version %d", snap.Header.Version)
	}
	if snap.Words != visit.Words {
		return snap.Header, nil, fmt.Errorf("visit snapshot has %d words, want %d", snap.Words, visit.Words)
	}
	words, err := encoding.DecodeRLE(snap.RLE, visit.Words)
	if err != nil {
		return snap.Header, nil, err
	}
	if len(words) != visit.Words {
		return snap.Header, nil, fmt.Errorf("visit snapshot decoded %d words, want %d", len(words), visit.Words)
	}
	return snap.Header, words, nil
}
