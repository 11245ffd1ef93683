package emu

import (
	"errors"
	"testing"
)

type flatMem [0x10000]uint8

func (m *flatMem) Peek(addr uint16) uint8    { return m[addr] }
func (m *flatMem) Poke(addr uint16, v uint8) { m[addr] = v }

type countingCore struct {
	flatMem
	keys     uint16
	setKeys  int
	frames   int
	closeErr error
}

func (c *countingCore) SetKeys(keys uint16)         { c.keys = keys; c.setKeys++ }
func (c *countingCore) RunFrame()                   { c.frames++ }
func (c *countingCore) Framebuffer() []uint32       { return nil }
func (c *countingCore) SaveState(path string) error { return nil }
func (c *countingCore) LoadState(path string) error { return nil }
func (c *countingCore) Close() error                { return c.closeErr }

func TestReadBCD(t *testing.T) {
	var m flatMem
	m[0xD347], m[0xD348], m[0xD349] = 0x01, 0x23, 0x45
	if got := ReadBCD(&m, 0xD347); got != 12345 {
		t.Fatalf("ReadBCD=%d want=12345", got)
	}
	m[0xD347], m[0xD348], m[0xD349] = 0x99, 0x99, 0x99
	if got := ReadBCD(&m, 0xD347); got != 999999 {
		t.Fatalf("ReadBCD=%d want=999999", got)
	}
}

func TestWriteBCD_RoundTripAndClamp(t *testing.T) {
	var m flatMem
	WriteBCD(&m, 0xD347, 3000)
	if m[0xD347] != 0x00 || m[0xD348] != 0x30 || m[0xD349] != 0x00 {
		t.Fatalf("bytes=%02x %02x %02x want=00 30 00", m[0xD347], m[0xD348], m[0xD349])
	}
	if got := ReadBCD(&m, 0xD347); got != 3000 {
		t.Fatalf("ReadBCD=%d want=3000", got)
	}
	WriteBCD(&m, 0xD347, 5_000_000)
	if got := ReadBCD(&m, 0xD347); got != MaxBCD {
		t.Fatalf("clamped=%d want=%d", got, MaxBCD)
	}
}

func TestReadU16_LittleEndian(t *testing.T) {
	var m flatMem
	m[0xC000], m[0xC001] = 0x34, 0x12
	if got := ReadU16(&m, 0xC000); got != 0x1234 {
		t.Fatalf("ReadU16=%#x want=0x1234", got)
	}
}

func TestReads_NilMemoryReturnZero(t *testing.T) {
	if ReadU8(nil, 0xD362) != 0 || ReadU16(nil, 0xD362) != 0 || ReadBCD(nil, 0xD347) != 0 {
		t.Fatalf("nil memory reads must be zero")
	}
	WriteBCD(nil, 0xD347, 10)
}

func TestActionKeys(t *testing.T) {
	want := map[Action]uint16{
		ActionNoop:   0,
		ActionA:      KeyA,
		ActionB:      KeyB,
		ActionSelect: KeySelect,
		ActionStart:  KeyStart,
		ActionRight:  KeyRight,
		ActionLeft:   KeyLeft,
		ActionUp:     KeyUp,
		ActionDown:   KeyDown,
		Action(9):    0,
		Action(-3):   0,
	}
	for a, k := range want {
		if got := a.Keys(); got != k {
			t.Fatalf("%v.Keys()=%#x want=%#x", a, got, k)
		}
	}
	if ActionDown.Keys() != 0x80 {
		t.Fatalf("down=%#x want=0x80", ActionDown.Keys())
	}
}

func TestRunFrames_LatchesInputOnce(t *testing.T) {
	c := &countingCore{}
	RunFrames(c, KeyUp, 4)
	if c.setKeys != 1 || c.frames != 4 || c.keys != KeyUp {
		t.Fatalf("setKeys=%d frames=%d keys=%#x want=1 4 %#x", c.setKeys, c.frames, c.keys, KeyUp)
	}
	RunFrames(c, 0, 0)
	if c.frames != 5 {
		t.Fatalf("frames=%d want=5 (minimum one frame)", c.frames)
	}
	RunFrames(nil, KeyA, 3)
}

func TestRegistry_OpenUnknownAndDuplicate(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", func(opts Options) (Core, error) { return &countingCore{}, nil })

	if _, err := r.Open("missing", Options{}); !errors.Is(err, ErrUnknownCore) {
		t.Fatalf("Open(missing) err=%v want ErrUnknownCore", err)
	}
	c, err := r.Open("fake", Options{})
	if err != nil || c == nil {
		t.Fatalf("Open(fake): core=%v err=%v", c, err)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "fake" {
		t.Fatalf("Names=%v want=[fake]", names)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate Register should panic")
		}
	}()
	r.Register("fake", func(opts Options) (Core, error) { return nil, nil })
}
