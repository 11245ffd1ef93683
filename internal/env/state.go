package env

import (
	"fmt"

	"github.com/leanke/puffer-red/internal/emu"
	"github.com/leanke/puffer-red/internal/game/ram"
)

// SaveState writes the core's full state to path.
func (e *Env) SaveState(path string) error {
	if e == nil || e.state == StateClosed {
		return ErrClosed
	}
	if err := e.core.SaveState(path); err != nil {
		return fmt.Errorf("save state %s: %w", path, err)
	}
	return nil
}

// LoadState restores a state file mid-episode. A failed load is logged and
// leaves the environment running from its current state.
func (e *Env) LoadState(path string) error {
	if e == nil || e.state == StateClosed {
		return ErrClosed
	}
	if err := e.core.LoadState(path); err != nil {
		e.log.Printf("env %d: warning: load state %s: %v", e.cfg.ID, path, err)
		return fmt.Errorf("load state %s: %w", path, err)
	}
	e.ram = ram.Read(e.core)
	e.battle = ram.ReadBattle(e.core)
	return nil
}

// SetMoney overwrites the player's money. The next Step sees it as part of
// the snapshot; money carries no reward.
func (e *Env) SetMoney(v uint32) error {
	if e == nil || e.state == StateClosed {
		return ErrClosed
	}
	emu.WriteBCD(e.core, ram.AddrMoney, v)
	e.ram.Money = emu.ReadBCD(e.core, ram.AddrMoney)
	return nil
}

// RestorePersistent replaces the long-term visitation map, e.g. from a
// snapshot written by an earlier run.
func (e *Env) RestorePersistent(words []uint64) error {
	if e == nil || e.state == StateClosed {
		return ErrClosed
	}
	return e.visits.Persistent.SetWords(words)
}
