// Package events counts story progress flags set in work RAM.
package events

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leanke/puffer-red/internal/emu"
)

// The game keeps its event flags as a packed bit array at wEventFlags.
const (
	FlagsStart uint16 = 0xD747
	FlagsEnd   uint16 = 0xD886 // inclusive
)

// Flag probes one bit of one byte.
type Flag struct {
	Addr uint16 `yaml:"addr" json:"addr"`
	Bit  uint8  `yaml:"bit" json:"bit"`
}

// Table is an ordered list of probes.
type Table []Flag

var defaultTable = func() Table {
	t := make(Table, 0, int(FlagsEnd-FlagsStart+1)*8)
	for addr := FlagsStart; addr <= FlagsEnd; addr++ {
		for bit := uint8(0); bit < 8; bit++ {
			t = append(t, Flag{Addr: addr, Bit: bit})
		}
	}
	return t
}()

// Default returns every bit of wEventFlags. The slice is shared and must not
// be modified.
func Default() Table { return defaultTable }

// Sum counts the probes whose bit is set.
func (t Table) Sum(m emu.Memory) int {
	if m == nil {
		return 0
	}
	sum := 0
	for _, f := range t {
		sum += int(m.Peek(f.Addr)>>f.Bit) & 1
	}
	return sum
}

func (t Table) Validate() error {
	for i, f := range t {
		if f.Bit > 7 {
			return fmt.Errorf("event %d (addr %#04x): bit %d out of range", i, f.Addr, f.Bit)
		}
	}
	return nil
}

// LoadTable reads a YAML probe list:
//
//	flags:
//	  - {addr: 0xD747, bit: 0}
func LoadTable(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Flags Table `yaml:"flags"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("events.yaml: %w", err)
	}
	if len(doc.Flags) == 0 {
		return nil, fmt.Errorf("events.yaml: no flags")
	}
	if err := doc.Flags.Validate(); err != nil {
		return nil, fmt.Errorf("events.yaml: %w", err)
	}
	return doc.Flags, nil
}
