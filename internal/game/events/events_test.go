package events

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leanke/puffer-red/internal/emu/emutest"
)

func TestDefault_CoversEventFlagRegion(t *testing.T) {
	tab := Default()
	if len(tab) != 320*8 {
		t.Fatalf("len=%d want=%d", len(tab), 320*8)
	}
	if tab[0] != (Flag{Addr: FlagsStart, Bit: 0}) || tab[len(tab)-1] != (Flag{Addr: FlagsEnd, Bit: 7}) {
		t.Fatalf("bounds first=%+v last=%+v", tab[0], tab[len(tab)-1])
	}
}

func TestSum(t *testing.T) {
	c := emutest.New()
	tab := Default()
	if got := tab.Sum(c); got != 0 {
		t.Fatalf("Sum=%d want=0", got)
	}
	c.Mem[FlagsStart] = 0b1000_0001
	c.Mem[FlagsEnd] = 0xFF
	c.Mem[FlagsEnd+1] = 0xFF
	if got := tab.Sum(c); got != 10 {
		t.Fatalf("Sum=%d want=10", got)
	}
	if got := tab.Sum(nil); got != 0 {
		t.Fatalf("nil Sum=%d want=0", got)
	}

	only := Table{{Addr: 0xD750, Bit: 3}}
	c.Mem[0xD750] = 0b0000_0100
	if got := only.Sum(c); got != 0 {
		t.Fatalf("Sum bit3=%d want=0", got)
	}
	c.Mem[0xD750] = 0b0000_1000
	if got := only.Sum(c); got != 1 {
		t.Fatalf("Sum bit3=%d want=1", got)
	}
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.yaml")
	if err := os.WriteFile(path, []byte("flags:\n  - {addr: 0xD747, bit: 0}\n  - {addr: 0xD751, bit: 6}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tab, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if len(tab) != 2 || tab[1] != (Flag{Addr: 0xD751, Bit: 6}) {
		t.Fatalf("table=%+v", tab)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("flags:\n  - {addr: 0xD747, bit: 9}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTable(bad); err == nil {
		t.Fatalf("bit 9 should be rejected")
	}
}
