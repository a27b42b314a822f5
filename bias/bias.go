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

// Package bias computes the avalanche-bias statistic the search drivers
// optimize against: for every (input bit, output bit) pair, how far the
// empirical flip probability departs from one half. One reduce helper
// backs all four evaluator entry points (Sampled, Exact32, Exact16,
// SampledSeeded), and the three single-argument ones also share one
// accumulate helper, rather than the reference implementation's four
// near-duplicated C routines. SampledSeeded accumulates its seed and
// index rows in its own loop.
package bias

import (
	"math"

	"github.com/mixlab/prospector/mix"
	"github.com/mixlab/prospector/workerpool"
)

// ExactSplit (EXACT_SPLIT in the C sources) is the number of equal ranges the 2^32 exact evaluator
// splits its enumeration across, one workerpool.ForkJoin task per range,
// matching original_source/genetic.c and hillclimb.c.
const ExactSplit = 32

// Rng is the minimal interface the sampled estimators need.
type Rng interface {
	Uint64() uint64
}

// Matrix accumulates per-(input-bit, output-bit) flip counts. It is sized
// to cover the widest supported word (64 bits); callers only read the
// top-left bits×bits submatrix.
type Matrix [64][64]int64

// add merges src into m in place, for combining per-worker private
// accumulators after a parallel exact enumeration.
func (m *Matrix) add(src *Matrix) {
	for j := range src {
		for k := range src[j] {
			m[j][k] += src[j][k]
		}
	}
}

// accumulate folds one sample's bit-flip pattern into m: for every input
// bit j, flips it in x, calls f, and records which output bits differ
// from f(x).
func accumulate[W mix.Word](m *Matrix, f mix.Func[W], x W) {
	bits := mix.BitsOf[W]()
	h0 := f(x)
	for j := 0; j < bits; j++ {
		bit := W(1) << uint(j)
		h1 := f(x ^ bit)
		diff := h0 ^ h1
		for k := 0; k < bits; k++ {
			if (diff>>uint(k))&1 != 0 {
				m[j][k]++
			}
		}
	}
}

// reduce computes the RMS-deviation-from-half statistic over the
// rows×cols submatrix of m, given n samples per cell, scaled by scale
// (1000 for 32/64-bit, 1 for 16-bit, per spec's documented asymmetry).
func reduce(m *Matrix, rows, cols int, n float64, scale float64) float64 {
	half := n / 2
	var mean float64
	total := float64(rows * cols)
	for j := 0; j < rows; j++ {
		for k := 0; k < cols; k++ {
			d := (float64(m[j][k]) - half) / half
			mean += (d * d) / total
		}
	}
	return math.Sqrt(mean) * scale
}

// Sampled draws N = 2^q random inputs from r and reports the bias
// statistic over them, scaled by 1000 for 32/64-bit words and left
// unscaled for 16-bit words. q is typically in [12, 30].
func Sampled[W mix.Word](f mix.Func[W], r Rng, q int) float64 {
	bits := mix.BitsOf[W]()
	n := int64(1) << uint(q)
	var m Matrix
	for i := int64(0); i < n; i++ {
		accumulate(&m, f, W(r.Uint64()))
	}
	return reduce(&m, bits, bits, float64(n), scaleFor(bits))
}

func scaleFor(bits int) float64 {
	if bits == 16 {
		return 1
	}
	return 1000
}

// Exact32 enumerates all 2^32 inputs, split across ExactSplit equal
// ranges run in parallel on a workerpool.ForkJoin barrier. Each range
// owns a private Matrix; the driver merges them once after every range
// has finished, so no worker ever touches another's accumulator.
func Exact32(f mix.Func[uint32]) float64 {
	const total = int64(1) << 32
	const perRange = total / ExactSplit

	partials := make([]Matrix, ExactSplit)
	workerpool.ForkJoin(ExactSplit, 0, func(i int) {
		start := int64(i) * perRange
		end := start + perRange
		m := &partials[i]
		for v := start; v < end; v++ {
			accumulate(m, f, uint32(v))
		}
	})

	var merged Matrix
	for i := range partials {
		merged.add(&partials[i])
	}
	return reduce(&merged, 32, 32, float64(total), 1000)
}

// Exact16 enumerates all 2^16 inputs single-threaded: cheap enough that
// splitting it across a worker pool would cost more in synchronization
// than it saves, unlike Exact32. By design, the
// result is left unscaled (no ×1000).
func Exact16(f mix.Func[uint16]) float64 {
	const total = int64(1) << 16
	var m Matrix
	x := uint16(0)
	for {
		accumulate(&m, f, x)
		if x == ^uint16(0) {
			break
		}
		x++
	}
	return reduce(&m, 16, 16, float64(total), 1)
}

// SeededFunc is the signature used by permutation-hash mixers under
// test: the output depends on an index, a mask of the index's live
// bits, and a seed, matching evalpow2's `hash(idx, mask, seed)` shape.
type SeededFunc func(idx, mask, seed uint64) uint64

// SampledSeeded implements the seed-sensitive variant used by evalpow2
// for each of 2^q samples it perturbs seedRange
// seed bits and bits index bits independently. Matrix rows are
// seed_bits||index_bits (seedRange + bits rows total, which callers must
// keep at or below 64 — the evaluator's default nbits=32 configuration
// does, per spec), columns are output_bits (bits columns). seedRange is
// nbits when the caller wants the "full seed" comparison (`-f`) and bits
// (the current power-of-two under test) otherwise.
func SampledSeeded(f SeededFunc, bits, seedRange int, r Rng, q int) float64 {
	n := int64(1) << uint(q)
	var m Matrix
	mask := uint64(1)<<uint(bits) - 1
	if bits == 64 {
		mask = ^uint64(0)
	}

	for i := int64(0); i < n; i++ {
		seed := r.Uint64()
		idx := r.Uint64() & mask
		h0 := f(idx, mask, seed)

		for j := 0; j < seedRange; j++ {
			h1 := f(idx, mask, seed^(uint64(1)<<uint(j)))
			diff := h0 ^ h1
			for k := 0; k < bits; k++ {
				if (diff>>uint(k))&1 != 0 {
					m[j][k]++
				}
			}
		}

		for j := 0; j < bits; j++ {
			h1 := f(idx^(uint64(1)<<uint(j)), mask, seed)
			diff := h0 ^ h1
			row := seedRange + j
			for k := 0; k < bits; k++ {
				if (diff>>uint(k))&1 != 0 {
					m[row][k]++
				}
			}
		}
	}
	return reduce(&m, seedRange+bits, bits, float64(n), 1000)
}
