// Package encoding holds compact encodings for bitmap words.
package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeRLE encodes words as varint pairs (word, run_len) repeated. Sparse and
// full visitation bitmaps collapse to a handful of pairs.
func EncodeRLE(words []uint64) []byte {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(words) {
		w := words[i]
		run := 1
		for j := i + 1; j < len(words) && words[j] == w && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], w)
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}
	return buf.Bytes()
}

// DecodeRLE reverses EncodeRLE. Output longer than limit words is rejected
// before it is allocated; limit <= 0 disables the check.
func DecodeRLE(raw []byte, limit int) ([]uint64, error) {
	var out []uint64
	for i := 0; i < len(raw); {
		w, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if run == 0 {
			return nil, fmt.Errorf("zero run at %d", i)
		}
		if limit > 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("decoded length exceeds %d words", limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, w)
		}
	}
	return out, nil
}
