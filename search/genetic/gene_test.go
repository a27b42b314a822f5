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
	"testing"

	"github.com/mixlab/prospector/mix"
	"github.com/mixlab/prospector/rng"
)

func TestGeneHashMatchesProgram(t *testing.T) {
	g := &Gene{S0: 13, S1: 17, S2: 11, C0: 0x2c1b3c6d, C1: 0x9e3779b9}
	prog := mix.Program[uint32](g.Program())
	for _, x := range []uint32{0, 1, 0x12345678, 0xffffffff} {
		want := prog.Apply(x)
		if got := g.Hash(x); got != want {
			t.Fatalf("Gene.Hash(%#x) = %#x, want %#x (via Program)", x, got, want)
		}
	}
}

func TestCrossQuirkyOnlyTwoOutcomes(t *testing.T) {
	a := &Gene{S0: 10, S1: 11, S2: 12, C0: 1, C1: 3}
	b := &Gene{S0: 20, S1: 21, S2: 22, C0: 5, C1: 7}
	r := rng.NewXoshiro256SS([4]uint64{1, 2, 3, 4})
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		g := CrossQuirky(a, b, r)
		if g.S0 != a.S0 {
			t.Fatalf("CrossQuirky must never touch s0")
		}
		seen[g.String()] = true
	}
	if len(seen) > 2 {
		t.Fatalf("CrossQuirky produced %d distinct outcomes, want at most 2 (quirk collapses 4 cases to 2)", len(seen))
	}
}

func TestCrossFullCanReachAllFourCases(t *testing.T) {
	a := &Gene{S0: 10, S1: 11, S2: 12, C0: 1, C1: 3}
	b := &Gene{S0: 20, S1: 21, S2: 22, C0: 5, C1: 7}
	r := rng.NewXoshiro256SS([4]uint64{9, 8, 7, 6})
	seen := map[string]bool{}
	for i := 0; i < 256; i++ {
		g := CrossFull(a, b, r)
		seen[g.String()] = true
	}
	if len(seen) < 3 {
		t.Fatalf("CrossFull produced only %d distinct outcomes over 256 draws, expected to see more than CrossQuirky's 2", len(seen))
	}
}

func TestUndupRemovesDuplicates(t *testing.T) {
	r := rng.NewXoshiro256SS([4]uint64{1, 1, 1, 1})
	pool := []*Gene{
		{S0: 1, S1: 2, S2: 3, C0: 5, C1: 7},
		{S0: 1, S1: 2, S2: 3, C0: 5, C1: 7},
	}
	Undup(pool, r)
	if Same(pool[0], pool[1]) {
		t.Fatalf("Undup left a duplicate pair unmutated")
	}
}

func TestGenerateProducesOddConstants(t *testing.T) {
	r := rng.NewXoshiro256SS([4]uint64{42, 43, 44, 45})
	for i := 0; i < 10; i++ {
		g := Generate(r)
		if g.C0&1 == 0 || g.C1&1 == 0 {
			t.Fatalf("Generate produced even constant: c0=%#x c1=%#x", g.C0, g.C1)
		}
		if g.S0 < 10 || g.S0 > 19 || g.S1 < 10 || g.S1 > 19 || g.S2 < 10 || g.S2 > 19 {
			t.Fatalf("Generate produced shift outside [10,19]: %+v", g)
		}
	}
}
