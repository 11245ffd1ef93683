// Package ram reads Pokemon Red game state out of work RAM.
package ram

import "github.com/leanke/puffer-red/internal/emu"

const (
	AddrX          uint16 = 0xD362
	AddrY          uint16 = 0xD361
	AddrMap        uint16 = 0xD35E
	AddrBadges     uint16 = 0xD356
	AddrMoney      uint16 = 0xD347
	AddrPartyCount uint16 = 0xD163
)

// MaxParty is the number of party slots.
const MaxParty = 6

// LevelAddrs holds the level byte of each party slot.
var LevelAddrs = [MaxParty]uint16{0xD18C, 0xD1B8, 0xD1E4, 0xD210, 0xD23C, 0xD268}

// Snapshot is one step's readout of the tracked variables. Levels beyond
// PartyCount are whatever the game left in memory.
type Snapshot struct {
	X          uint8           `json:"x"`
	Y          uint8           `json:"y"`
	Map        uint8           `json:"map"`
	Badges     uint8           `json:"badges"`
	Money      uint32          `json:"money"`
	PartyCount uint8           `json:"party_count"`
	Levels     [MaxParty]uint8 `json:"levels"`
}

// Read never touches emulator state. A nil m yields the zero Snapshot.
func Read(m emu.Memory) Snapshot {
	s := Snapshot{
		X:          emu.ReadU8(m, AddrX),
		Y:          emu.ReadU8(m, AddrY),
		Map:        emu.ReadU8(m, AddrMap),
		Badges:     emu.ReadU8(m, AddrBadges),
		Money:      emu.ReadBCD(m, AddrMoney),
		PartyCount: emu.ReadU8(m, AddrPartyCount),
	}
	for i, addr := range LevelAddrs {
		s.Levels[i] = emu.ReadU8(m, addr)
	}
	return s
}

// LevelSum adds all six slots, occupied or not.
func (s Snapshot) LevelSum() int {
	sum := 0
	for _, l := range s.Levels {
		sum += int(l)
	}
	return sum
}
