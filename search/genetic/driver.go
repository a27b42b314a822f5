// Copyright (C) 2024 Hash Prospector Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package genetic

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/slices"

	"github.com/mixlab/prospector/bias"
	"github.com/mixlab/prospector/rng"
	"github.com/mixlab/prospector/workerpool"
)

// Config overrides the tunable knobs of a Driver. The zero value of every
// field means "use the package constant". PoolSize is not overridable: the
// pool is a fixed-size array for the same no-shared-mutable-state reason
// the per-gene rng streams are, so -config only reaches the
// scoring/selection knobs, not the population shape.
type Config struct {
	Threshold float64 `json:"threshold"`
	DontCare  float64 `json:"dontCare"`
	Quality   int     `json:"quality"`
	ResetMins int     `json:"resetMins"`
}

// Driver owns the pool and the per-gene RNG state the reference
// implementation keeps as rng[POOL][4]; every gene scores against its own
// stream so the parallel scoring phase shares no mutable state.
type Driver struct {
	pool    [PoolSize]*Gene
	streams [PoolSize]*rng.Xoshiro256SS
	shared  *rng.Xoshiro256SS
	cross   CrossFunc
	out     *bufio.Writer

	threshold float64
	dontCare  float64
	quality   int
	resetMins int

	best     float64
	bestTime time.Time
}

// NewDriver seeds a fresh pool from seed, deriving one independent stream
// per gene plus a shared stream for crossover/mutation/reset, and wires
// cross as the selection-stage crossover strategy.
func NewDriver(seed [4]uint64, cross CrossFunc, out *bufio.Writer) *Driver {
	return NewDriverWithConfig(seed, cross, out, Config{})
}

// NewDriverWithConfig is NewDriver with every zero field in cfg replaced
// by the matching package default.
func NewDriverWithConfig(seed [4]uint64, cross CrossFunc, out *bufio.Writer, cfg Config) *Driver {
	d := &Driver{
		shared:    rng.NewXoshiro256SS(seed),
		cross:     cross,
		out:       out,
		best:      math.Inf(1),
		threshold: orFloat(cfg.Threshold, Threshold),
		dontCare:  orFloat(cfg.DontCare, DontCare),
		quality:   orInt(cfg.Quality, Quality),
		resetMins: orInt(cfg.ResetMins, ResetMins),
	}
	for i := range d.pool {
		s := d.shared.Uint64()
		d.streams[i] = rng.NewXoshiro256SS([4]uint64{s, s ^ 0x9e3779b97f4a7c15, s * 0xff51afd7ed558ccd, s ^ uint64(i)})
		d.pool[i] = Generate(d.streams[i])
	}
	d.bestTime = time.Now()
	return d
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Step runs one generation: parallel sampled scoring of unscored genes,
// sequential exact re-scoring of promising genes, sort, print newly
// interesting genes, stagnation check, selection+crossover, and undup —
// exactly the seven stages of the original algorithm, in the same order as
// genetic.c's main loop body.
func (d *Driver) Step(ctx context.Context, workers *workerpool.Pool) {
	if ctx.Err() != nil {
		return
	}
	for i := range d.pool {
		g := d.pool[i]
		if g.Flags&FlagScored != 0 {
			continue
		}
		stream := d.streams[i]
		workers.Submit(func() {
			g.Score = bias.Sampled[uint32](g.Hash, stream, d.quality)
			g.Flags |= FlagScored
		})
	}
	workers.Wait()

	for _, g := range d.pool {
		if g.Flags&FlagExact == 0 && g.Score < d.threshold {
			g.Score = bias.Exact32(g.Hash)
			g.Flags |= FlagExact
		}
	}

	slices.SortFunc(d.pool[:], func(a, b *Gene) bool { return a.Score < b.Score })

	for _, g := range d.pool {
		if g.Flags&FlagPrinted == 0 && g.Score < d.dontCare {
			fmt.Fprintf(d.out, "%s = %.17g\n", g, g.Score)
			d.out.Flush()
			g.Flags |= FlagPrinted
		}
	}

	now := time.Now()
	if d.pool[0].Score < d.best {
		d.best = d.pool[0].Score
		d.bestTime = now
	} else if now.Sub(d.bestTime) > time.Duration(d.resetMins)*time.Minute {
		d.best = math.Inf(1)
		d.bestTime = now
		for i := range d.pool {
			d.pool[i] = Generate(d.streams[i])
		}
	}

	quarter := PoolSize / 4
	c := quarter
	for a := 0; c < PoolSize && a < quarter; a++ {
		for b := a + 1; c < PoolSize && b < quarter; b++ {
			d.pool[c] = d.cross(d.pool[a], d.pool[b], d.shared)
			c++
		}
	}

	undupPool := make([]*Gene, len(d.pool))
	copy(undupPool, d.pool[:])
	Undup(undupPool, d.shared)
}

// Best returns the current leading gene.
func (d *Driver) Best() *Gene { return d.pool[0] }
