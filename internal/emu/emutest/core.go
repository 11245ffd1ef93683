// Package emutest provides a deterministic in-memory core for tests.
package emutest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leanke/puffer-red/internal/emu"
)

// Core is a flat 64 KiB address space with a fixed framebuffer. OnFrame runs
// after every RunFrame so tests can script memory changes.
type Core struct {
	Mem   [0x10000]uint8
	Frame []uint32

	Keys      uint16
	KeyWrites int
	Frames    int
	Saves     int
	Loads     int
	Closed    int

	OnFrame func(c *Core)
}

func New() *Core {
	return &Core{Frame: make([]uint32, emu.ScreenPixels)}
}

// Factory returns a factory that always hands out c.
func Factory(c *Core) emu.Factory {
	return func(opts emu.Options) (emu.Core, error) {
		if c == nil {
			return nil, fmt.Errorf("emutest: nil core")
		}
		return c, nil
	}
}

// FailingFactory returns a factory that never initializes.
func FailingFactory(err error) emu.Factory {
	return func(opts emu.Options) (emu.Core, error) { return nil, err }
}

func (c *Core) Peek(addr uint16) uint8    { return c.Mem[addr] }
func (c *Core) Poke(addr uint16, v uint8) { c.Mem[addr] = v }

func (c *Core) SetKeys(keys uint16) {
	c.Keys = keys
	c.KeyWrites++
}

func (c *Core) RunFrame() {
	c.Frames++
	if c.OnFrame != nil {
		c.OnFrame(c)
	}
}

func (c *Core) Framebuffer() []uint32 { return c.Frame }

// Fill paints the whole framebuffer with one packed RGB value.
func (c *Core) Fill(rgb uint32) {
	for i := range c.Frame {
		c.Frame[i] = rgb
	}
}

// SaveState writes the address space verbatim.
func (c *Core) SaveState(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, c.Mem[:], 0o644); err != nil {
		return err
	}
	c.Saves++
	return nil
}

func (c *Core) LoadState(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(b) != len(c.Mem) {
		return fmt.Errorf("emutest: state %s has %d bytes want %d", path, len(b), len(c.Mem))
	}
	copy(c.Mem[:], b)
	c.Loads++
	return nil
}

func (c *Core) Close() error {
	c.Closed++
	return nil
}

var _ emu.Core = (*Core)(nil)
