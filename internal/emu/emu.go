// Package emu defines the boundary between an environment and the Game Boy
// emulator core that runs the cartridge.
package emu

import "errors"

// LCD geometry shared by every DMG/CGB core.
const (
	ScreenWidth  = 160
	ScreenHeight = 144
	ScreenPixels = ScreenWidth * ScreenHeight
)

var ErrUnknownCore = errors.New("unknown emulator core")

// Memory is read access to the CPU address space.
type Memory interface {
	Peek(addr uint16) uint8
}

// MemoryWriter is write access to the CPU address space.
type MemoryWriter interface {
	Poke(addr uint16, v uint8)
}

// Core is a running emulator instance bound to one cartridge.
//
// Framebuffer returns ScreenPixels row-major pixels packed as 0x00RRGGBB.
// The slice is owned by the core and is valid until the next RunFrame.
type Core interface {
	Memory
	MemoryWriter

	SetKeys(keys uint16)
	RunFrame()
	Framebuffer() []uint32

	SaveState(path string) error
	LoadState(path string) error

	Close() error
}

// Options configure a core at creation time.
type Options struct {
	ROM      []byte
	ROMName  string
	Headless bool
}

// Factory creates a core for one cartridge image.
type Factory func(opts Options) (Core, error)

// RunFrames holds keys constant and advances n frames. Input is latched once
// for the whole batch.
func RunFrames(c Core, keys uint16, n int) {
	if c == nil {
		return
	}
	if n < 1 {
		n = 1
	}
	c.SetKeys(keys)
	for i := 0; i < n; i++ {
		c.RunFrame()
	}
}
