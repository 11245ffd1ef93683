package emu

// Joypad bits as latched by the core.
const (
	KeyA uint16 = 1 << iota
	KeyB
	KeySelect
	KeyStart
	KeyRight
	KeyLeft
	KeyUp
	KeyDown
)

// Action is the discrete action space exposed to a policy.
type Action int

const (
	ActionNoop Action = iota
	ActionA
	ActionB
	ActionSelect
	ActionStart
	ActionRight
	ActionLeft
	ActionUp
	ActionDown

	NumActions = int(ActionDown) + 1
)

var actionNames = [...]string{"noop", "a", "b", "select", "start", "right", "left", "up", "down"}

func (a Action) String() string {
	if a < 0 || int(a) >= NumActions {
		return "invalid"
	}
	return actionNames[a]
}

// Keys maps an action to its joypad bitmask. No-op and out-of-range actions
// press nothing.
func (a Action) Keys() uint16 {
	if a <= ActionNoop || int(a) >= NumActions {
		return 0
	}
	return uint16(1) << uint(a-1)
}
