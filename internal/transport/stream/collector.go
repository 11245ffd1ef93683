// Package stream publishes agent positions to a coordinate relay.
package stream

import (
	"fmt"

	"github.com/leanke/puffer-red/internal/env"
	"github.com/leanke/puffer-red/internal/protocol"
)

type CollectorConfig struct {
	Run      string
	Proc     int
	User     string
	Color    string
	Extra    string
	Interval int
}

// Collector buffers per-env positions between flushes. It is driven from the
// stepping goroutine and never blocks.
type Collector struct {
	cfg    CollectorConfig
	tick   uint64
	coords [][]protocol.Coord
}

func NewCollector(cfg CollectorConfig, numEnvs int) *Collector {
	if cfg.Interval < 1 {
		cfg.Interval = 1
	}
	return &Collector{cfg: cfg, coords: make([][]protocol.Coord, numEnvs)}
}

// Observe records one position per env; the origin cell (0, 0, 0) means "not
// in the overworld yet" and is skipped. Every Interval calls it returns the
// buffered batches, one per env with samples, and clears the buffers.
func (c *Collector) Observe(pos []env.Position) []protocol.CoordsBatch {
	for i, p := range pos {
		if i >= len(c.coords) || p.IsZero() {
			continue
		}
		c.coords[i] = append(c.coords[i], protocol.Coord{p.X, p.Y, p.Map})
	}
	c.tick++
	if c.tick%uint64(c.cfg.Interval) != 0 {
		return nil
	}
	return c.Flush()
}

// Flush returns whatever is buffered and clears it.
func (c *Collector) Flush() []protocol.CoordsBatch {
	var out []protocol.CoordsBatch
	for i, cs := range c.coords {
		if len(cs) == 0 {
			continue
		}
		out = append(out, protocol.CoordsBatch{
			Metadata: protocol.Metadata{
				User:  c.cfg.User + "\n",
				Color: c.cfg.Color,
				Extra: c.cfg.Extra + "\n",
				EnvID: fmt.Sprintf("%s:%d:%d\n", c.cfg.Run, c.cfg.Proc, i+1),
			},
			Coords: cs,
		})
		c.coords[i] = nil
	}
	return out
}

// Reset restarts the flush cadence without dropping buffered samples.
func (c *Collector) Reset() { c.tick = 0 }
