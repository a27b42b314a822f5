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

package hillclimb

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mixlab/prospector/bias"
	"github.com/mixlab/prospector/rng"
)

// GenerateStrict regenerates candidates until one scores at or below
// Threshold under the sampled estimator, matching hash_gen_strict.
func GenerateStrict(r rng.Source) *Candidate {
	for {
		c := Generate(r)
		if bias.Sampled[uint32](c.Hash, r, Quality) <= Threshold {
			return c
		}
	}
}

// Driver runs the steepest-descent loop: from the current
// point, score every shift/constant neighbor with the exact evaluator,
// move to the best strict improvement found, or stop/reseed at a local
// minimum.
type Driver struct {
	Cur      *Candidate
	last     *Candidate
	curScore float64
	Quiet    int
	OneShot  bool
	out      *bufio.Writer
}

// NewDriver starts a driver at cur (or a freshly-generated candidate if
// cur is nil).
func NewDriver(cur *Candidate, r rng.Source, out *bufio.Writer) *Driver {
	if cur == nil {
		cur = GenerateStrict(r)
	}
	return &Driver{Cur: cur, curScore: -1, out: out}
}

// Reset replaces the current candidate (e.g. after Step reports a local
// minimum) and clears the cached score and oscillation guard so the next
// Step recomputes everything from scratch.
func (d *Driver) Reset(cur *Candidate) {
	d.Cur = cur
	d.curScore = -1
	d.last = nil
}

// Step runs one outer-loop iteration: evaluate the current point exactly,
// explore every shift and constant neighbor, and move to the best strict
// improvement. It returns false when the search has reached a local
// minimum (report this to the caller so a one-shot run can stop, or a
// continuous run can reseed).
func (d *Driver) Step(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if d.Quiet < 2 {
		fmt.Fprintf(d.out, "%s", d.Cur)
	}
	if d.curScore < 0 {
		d.curScore = bias.Exact32(d.Cur.Hash)
	}
	if d.Quiet < 2 {
		fmt.Fprintf(d.out, " = %.17g\n", d.curScore)
		d.out.Flush()
	}

	best := *d.Cur
	bestScore := d.curScore
	found := false

	try := func(tmp *Candidate) {
		if d.last != nil && tmp.Equal(d.last) {
			return
		}
		if d.Quiet <= 0 {
			fmt.Fprintf(d.out, "  %s", tmp)
		}
		score := bias.Exact32(tmp.Hash)
		if d.Quiet <= 0 {
			fmt.Fprintf(d.out, " = %.17g\n", score)
			d.out.Flush()
		}
		if score < bestScore {
			bestScore = score
			best = *tmp
			found = true
		}
	}

	for i := 0; i <= HashN; i++ {
		for delta := -ShiftRange; delta <= ShiftRange; delta++ {
			if delta == 0 {
				continue
			}
			tmp := *d.Cur
			tmp.S[i] += delta
			try(&tmp)
		}
	}

	for i := 0; i < HashN; i++ {
		for step := 1; step <= ConstRange; step++ {
			for _, delta := range [2]int{-2 * step, 2 * step} {
				tmp := *d.Cur
				tmp.C[i] = uint32(int64(tmp.C[i]) + int64(delta))
				try(&tmp)
			}
		}
	}

	if found {
		if d.Quiet < 1 {
			fmt.Fprintln(d.out, "CLIMB")
			d.out.Flush()
		}
		prev := *d.Cur
		d.last = &prev
		d.Cur = &best
		d.curScore = bestScore
		return true
	}
	if d.Quiet < 1 {
		fmt.Fprintln(d.out, "DONE")
		d.out.Flush()
	}
	return false
}
