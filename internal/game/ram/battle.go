package ram

import "github.com/leanke/puffer-red/internal/emu"

const (
	AddrBattleFlag     uint16 = 0xD057
	AddrBattleType     uint16 = 0xD05A
	AddrGymBattleMusic uint16 = 0xD05C
	AddrTurnCount      uint16 = 0xCCD5
)

// Battle flag values.
const (
	BattleNone    int8 = 0
	BattleWild    int8 = 1
	BattleTrainer int8 = 2
	BattleLost    int8 = -1
)

// Battle type values.
const (
	BattleTypeNormal uint8 = 0
	BattleTypeOldMan uint8 = 1
	BattleTypeSafari uint8 = 2
)

type Battle struct {
	Flag      int8  `json:"flag"`
	Type      uint8 `json:"type"`
	GymMusic  bool  `json:"gym_music"`
	TurnCount uint8 `json:"turn_count"`
}

func ReadBattle(m emu.Memory) Battle {
	return Battle{
		Flag:      int8(emu.ReadU8(m, AddrBattleFlag)),
		Type:      emu.ReadU8(m, AddrBattleType),
		GymMusic:  emu.ReadU8(m, AddrGymBattleMusic) != 0,
		TurnCount: emu.ReadU8(m, AddrTurnCount),
	}
}

// Active reports a wild or trainer battle in progress.
func (b Battle) Active() bool { return b.Flag == BattleWild || b.Flag == BattleTrainer }

func (b Battle) Lost() bool { return b.Flag == BattleLost }

func (b Battle) JustStarted(prev Battle) bool { return b.Active() && !prev.Active() }

func (b Battle) JustEnded(prev Battle) bool { return !b.Active() && prev.Active() }
