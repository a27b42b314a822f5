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

// Package random implements the simplest of the three search drivers
// repeatedly build a candidate program of random length, JIT
// it, estimate its bias, and report strict improvements.
package random

import (
	"bufio"
	"context"
	"fmt"
	"math"

	"github.com/mixlab/prospector/bias"
	"github.com/mixlab/prospector/mix"
	"github.com/mixlab/prospector/mixjit"
)

// Generator selects which of mix's three shapes a driver
// iteration builds.
type Generator int

const (
	GenUniform Generator = iota
	GenSmart
	GenXormul
)

// Driver runs the random-search loop. A non-nil Template locks specific
// op positions: Build only re-randomizes the constants of ops not named
// in Locked, letting a user "prospect around" a promising program.
type Driver[W mix.Word] struct {
	Gen      Generator
	MinLen   int
	MaxLen   int
	Mask     mix.KindMask
	Template mix.Program[W]
	Locked   []bool
	Quality  int

	Best float64
	out  *bufio.Writer
	jit  *mixjit.Compiled[W]
}

// NewDriver constructs a driver with the length range [min,max] (inclusive)
// and progress written to out.
func NewDriver[W mix.Word](minLen, maxLen int, out *bufio.Writer) *Driver[W] {
	return &Driver[W]{MinLen: minLen, MaxLen: maxLen, Quality: 18, Best: math.Inf(1), out: out}
}

// Close releases the driver's JIT page, if one was ever mapped.
func (d *Driver[W]) Close() error {
	if d.jit == nil {
		return nil
	}
	return d.jit.Close()
}

// Build produces one candidate program: either a fresh program from
// scratch (no Template set), or the template with every unlocked op's
// constant re-randomized in place.
func (d *Driver[W]) Build(r mix.Rng) (mix.Program[W], error) {
	if d.Template != nil {
		prog := make(mix.Program[W], len(d.Template))
		copy(prog, d.Template)
		for i, op := range prog {
			if i < len(d.Locked) && d.Locked[i] {
				continue
			}
			prog[i] = mix.Generate[W](op.Kind, r)
		}
		return prog, nil
	}

	n := d.MinLen
	if d.MaxLen > d.MinLen {
		n += int(r.Uint64() % uint64(d.MaxLen-d.MinLen+1))
	}
	switch d.Gen {
	case GenSmart:
		return mix.GenerateSmart[W](n, d.Mask, r)
	case GenXormul:
		pairs := (n - 1) / 2
		if pairs < 0 {
			pairs = 0
		}
		return mix.GenerateXormul[W](pairs, r), nil
	default:
		return mix.GenerateUniform[W](n, d.Mask, r)
	}
}

// Step builds one candidate, scores it with the sampled estimator via the
// JIT (falling back to the interpreter where the JIT is unavailable), and
// prints+adopts it as the new best on strict improvement.
func (d *Driver[W]) Step(ctx context.Context, r mix.Rng, rb bias.Rng) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	prog, err := d.Build(r)
	if err != nil {
		return err
	}
	if err := prog.Validate(32); err != nil {
		return nil // an invalid draw is simply discarded, not fatal
	}

	fn := d.JIT(prog)
	score := bias.Sampled[W](fn, rb, d.Quality)
	if score < d.Best {
		d.Best = score
		typed := mix.Typed[W]{Prog: prog}
		fmt.Fprintf(d.out, "%s = %.17g\n", typed.String(), score)
		d.out.Flush()
	}
	return nil
}

// JIT compiles prog when possible, and silently falls back to the
// portable interpreter when compilation fails (non-amd64/linux hosts, or
// any Assemble error). As in the reference implementation, the
// executable page is mapped once (on the first JIT call) and rewritten for
// every later candidate: d.jit persists across calls (Step's and any
// caller evaluating candidates outside the sampled estimator, e.g. an
// exact-scoring override), and each call patches the new candidate into
// the same page via Reassemble (unlock, rewrite, lock) instead of
// mapping and unmapping a fresh one. If a candidate's code no longer
// fits the page (rare; op kinds vary in encoded size), the page is
// closed and a fresh one mapped in its place.
func (d *Driver[W]) JIT(prog mix.Program[W]) mix.Func[W] {
	if mix.BitsOf[W]() == 16 {
		return mixjit.NewInterpreted(prog)
	}
	if d.jit == nil {
		c, err := mixjit.New(prog)
		if err != nil {
			return mixjit.NewInterpreted(prog)
		}
		d.jit = c
		return c.Func()
	}
	if err := d.jit.Reassemble(prog); err != nil {
		d.jit.Close()
		c, err := mixjit.New(prog)
		if err != nil {
			d.jit = nil
			return mixjit.NewInterpreted(prog)
		}
		d.jit = c
	}
	return d.jit.Func()
}
