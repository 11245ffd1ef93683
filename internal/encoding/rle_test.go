package encoding

import "testing"

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint64, 0, 200)
	in = append(in, 1, 1, 1, 0xFFFFFFFFFFFFFFFF, 0xFFFFFFFFFFFFFFFF, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 0)
	}
	in = append(in, 9, 1<<63, 1<<63, 1<<63)

	enc := EncodeRLE(in)
	out, err := DecodeRLE(enc, 0)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %#x want %#x", i, out[i], in[i])
		}
	}
}

func TestRLE_FullBitmapIsSmall(t *testing.T) {
	in := make([]uint64, 1<<18)
	for i := range in {
		in[i] = ^uint64(0)
	}
	enc := EncodeRLE(in)
	if len(enc) > 16 {
		t.Fatalf("encoded len=%d want <= 16", len(enc))
	}
	out, err := DecodeRLE(enc, len(in))
	if err != nil || len(out) != len(in) {
		t.Fatalf("len=%d err=%v", len(out), err)
	}
}

func TestRLE_Rejects(t *testing.T) {
	enc := EncodeRLE([]uint64{5, 5, 5, 5})
	if _, err := DecodeRLE(enc, 3); err == nil {
		t.Fatalf("expected limit error")
	}
	if _, err := DecodeRLE([]byte{0x80}, 0); err == nil {
		t.Fatalf("expected truncated varint error")
	}
	if _, err := DecodeRLE([]byte{0x01, 0x00}, 0); err == nil {
		t.Fatalf("expected zero run error")
	}
	out, err := DecodeRLE(nil, 0)
	if err != nil || len(out) != 0 {
		t.Fatalf("empty: out=%v err=%v", out, err)
	}
}
