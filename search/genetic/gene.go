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

// Package genetic evolves a pool of fixed-shape "xorshift-multiply-xorshift"
// mixers (three right-shift-xors interleaved with two odd multiplies)
// toward low avalanche bias, reproducing original_source/genetic.c's
// algorithm: parallel sampled scoring, exact re-scoring of promising
// genes, selection, crossover, mutation of duplicates, and a stagnation
// reset.
package genetic

import (
	"fmt"

	"github.com/mixlab/prospector/mix"
	"github.com/mixlab/prospector/rng"
)

// Pool size, exact-rescoring threshold, print threshold, sample quality,
// and stagnation-reset window: identical constants and meaning to the
// reference implementation.
const (
	PoolSize  = 40
	Threshold = 2.0
	DontCare  = 0.3
	Quality   = 18
	ResetMins = 90
)

// Flag bits recording a Gene's scoring state across generations.
type Flag uint8

const (
	FlagScored Flag = 1 << iota
	FlagExact
	FlagPrinted
)

// Gene is the fixed five-field mixer schema the genetic driver searches
// over: x ^= x>>s0; x *= c0; x ^= x>>s1; x *= c1; x ^= x>>s2. Shift fields
// are plain ints rather than mix.Op values because crossover and mutation
// operate directly on these five fields, not on a generic op list.
type Gene struct {
	S0, S1, S2 int
	C0, C1     uint32
	Score      float64
	Flags      Flag
}

// Hash evaluates the gene's mixer at x. Shift counts are taken mod 32
// explicitly (Go's own >> on a uint32 would yield 0 for counts >= 32, and
// the reference C implementation leaves shift>=width undefined). gene_gen
// produces shifts in [10,19], but Mutate moves them by ±{1,2,3} with no
// bound, so the mod keeps the function total for any shift value.
func (g *Gene) Hash(x uint32) uint32 {
	x ^= x >> (uint(g.S0) % 32)
	x *= g.C0
	x ^= x >> (uint(g.S1) % 32)
	x *= g.C1
	x ^= x >> (uint(g.S2) % 32)
	return x
}

// Program renders the gene as an equivalent mix.Program, for printing
// through the same Typed[uint32].PrintFunc every other 32-bit candidate
// uses.
func (g *Gene) Program() mix.Program[uint32] {
	return mix.Program[uint32]{
		{Kind: mix.XORR, C1: uint64(uint(g.S0) % 32)},
		{Kind: mix.MUL, C1: uint64(g.C0)},
		{Kind: mix.XORR, C1: uint64(uint(g.S1) % 32)},
		{Kind: mix.MUL, C1: uint64(g.C1)},
		{Kind: mix.XORR, C1: uint64(uint(g.S2) % 32)},
	}
}

func (g *Gene) String() string {
	return fmt.Sprintf("[%2d %08x %2d %08x %2d]", g.S0, g.C0, g.S1, g.C1, g.S2)
}

// Generate produces a fresh random gene, shifts in [10,19] and constants
// forced odd, matching gene_gen.
func Generate(r rng.Source) *Gene {
	s := r.Uint64()
	c := r.Uint64()
	return &Gene{
		S0: 10 + int((s>>0)%10),
		S1: 10 + int((s>>24)%10),
		S2: 10 + int((s>>48)%10),
		C0: uint32(c) | 1,
		C1: uint32(c>>32) | 1,
	}
}

var smallDeltas = [6]int{-3, -2, -1, 1, 2, 3}

func small(r uint64) int {
	return smallDeltas[r%6]
}

// Mutate perturbs a single field: a shift by one of ±{1,2,3}, or a
// constant by a uniform value in [-32768, 32767], matching gene_mutate
// bit-for-bit (including the uint16-truncate-then-sign-extend arithmetic
// on the constant perturbation).
func Mutate(g *Gene, r rng.Source) {
	v := r.Uint64()
	field := v % 5
	v >>= 3
	switch field {
	case 0:
		g.S0 += small(v)
	case 1:
		g.S1 += small(v)
	case 2:
		g.S2 += small(v)
	case 3:
		g.C0 += uint32(int32(v&0xffff) - 32768)
	case 4:
		g.C1 += uint32(int32(v&0xffff) - 32768)
	}
	g.Flags = 0
}

// Same reports whether a and b share every field crossover/mutation can
// touch (used by Undup to find duplicates in the pool).
func Same(a, b *Gene) bool {
	return a.S0 == b.S0 && a.S1 == b.S1 && a.S2 == b.S2 && a.C0 == b.C0 && a.C1 == b.C1
}

// CrossQuirky reproduces gene_cross's switch on (r&2) exactly, including
// its fallthrough quirk: since r&2 only ever evaluates to 0 or 2, case 1
// and case 3 are unreachable as switch *entries* and only ever run via
// fallthrough. The practical effect is binary, not the four-way blend the
// field grouping suggests: r&2==0 copies c0,s1,c1,s2 from b, r&2==2
// copies only c1,s2 from b. s0 always stays a's.
func CrossQuirky(a, b *Gene, r rng.Source) *Gene {
	v := r.Uint64()
	g := *a
	switch v & 2 {
	case 0:
		g.C0 = b.C0
		fallthrough
	case 1:
		g.S1 = b.S1
		fallthrough
	case 2:
		g.C1 = b.C1
		fallthrough
	case 3:
		g.S2 = b.S2
	}
	g.Flags = 0
	return &g
}

// CrossFull is the four-way blend the field grouping in gene_cross's
// switch appears to have intended: switching on r&3 (not r&2) so all four
// cases are actually reachable. Each case falls through to the later
// ones, so b contributes a variable-length tail of the fields
// (c0,s1,c1,s2 / s1,c1,s2 / c1,s2 / s2 only); s0 always stays a's.
func CrossFull(a, b *Gene, r rng.Source) *Gene {
	v := r.Uint64()
	g := *a
	switch v & 3 {
	case 0:
		g.C0 = b.C0
		fallthrough
	case 1:
		g.S1 = b.S1
		fallthrough
	case 2:
		g.C1 = b.C1
		fallthrough
	case 3:
		g.S2 = b.S2
	}
	g.Flags = 0
	return &g
}

// CrossFunc selects between CrossQuirky and CrossFull, the driver flag
// exposing both behaviors per the documented open question rather than
// guessing which one the original intended.
type CrossFunc func(a, b *Gene, r rng.Source) *Gene

// Undup scans the pool for duplicate genes (by Same) and mutates the
// later one in each duplicate pair, matching undup's O(POOL^2) scan.
func Undup(pool []*Gene, r rng.Source) {
	for i := range pool {
		for j := i + 1; j < len(pool); j++ {
			if Same(pool[i], pool[j]) {
				Mutate(pool[j], r)
			}
		}
	}
}
