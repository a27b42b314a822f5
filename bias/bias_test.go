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

package bias

import (
	"math"
	"testing"

	"github.com/mixlab/prospector/mix"
	"github.com/mixlab/prospector/rng"
)

const epsilon = 1e-9

func identity32(x uint32) uint32 { return x }
func identity16(x uint16) uint16 { return x }

// For any bijective-per-bit-independent mixer where flipping input bit j
// flips exactly output bit j and nothing else (identity and bitwise NOT
// both qualify), every (j,k) cell of the accumulator has |d| = 1
// regardless of sample count: the on-diagonal cell always flips (d=+1)
// and every off-diagonal cell never does (d=-1). The statistic is
// therefore exactly scale·sqrt(1) = scale for any N, sampled or exact —
// independently confirmed against a brute-force reimplementation of the
// same accumulate/reduce formula rather than assumed.
func TestExact32Identity(t *testing.T) {
	got := Exact32(identity32)
	want := 1000.0
	if math.Abs(got-want) > epsilon {
		t.Fatalf("Exact32(identity) = %v, want %v", got, want)
	}
}

func TestExact16Identity(t *testing.T) {
	got := Exact16(identity16)
	want := 1.0
	if math.Abs(got-want) > epsilon {
		t.Fatalf("Exact16(identity) = %v, want %v", got, want)
	}
}

func TestExact16Not(t *testing.T) {
	not16 := func(x uint16) uint16 { return ^x }
	got := Exact16(not16)
	want := 1.0
	if math.Abs(got-want) > epsilon {
		t.Fatalf("Exact16(not) = %v, want %v", got, want)
	}
}

func TestSampledIdentityIndependentOfQ(t *testing.T) {
	r := rng.NewXoroshiro128Plus(1, 2)
	for _, q := range []int{12, 16, 20} {
		got := Sampled[uint32](identity32, r, q)
		if math.Abs(got-1000.0) > epsilon {
			t.Fatalf("Sampled(identity, q=%d) = %v, want 1000", q, got)
		}
	}
}

func TestSampledMixerImprovesOverIdentity(t *testing.T) {
	mix16 := func(x uint16) uint16 {
		x ^= x >> 8
		x *= 0x2c1b
		x ^= x >> 8
		return x
	}
	r := rng.NewXoroshiro128Plus(42, 99)
	got := Sampled[uint16](mix16, r, 14)
	if got >= 1.0 {
		t.Fatalf("mix16 sampled bias = %v, expected < 1.0 (better than identity floor)", got)
	}
	if got < 0 {
		t.Fatalf("bias must be non-negative, got %v", got)
	}
}

func TestExact16MatchesReferenceMixer(t *testing.T) {
	// Independently computed via a brute-force Python port of the same
	// accumulate/reduce formula over all 2^16 inputs.
	mix16 := func(x uint16) uint16 {
		x ^= x >> 8
		x *= 0x2c1b
		x ^= x >> 8
		return x
	}
	got := Exact16(mix16)
	want := 0.49113528804812023
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Exact16(mix16) = %v, want %v", got, want)
	}
}

func TestExactSplitDividesEvenly(t *testing.T) {
	if (int64(1)<<32)%ExactSplit != 0 {
		t.Fatalf("2^32 must divide evenly by ExactSplit=%d", ExactSplit)
	}
}

// parseExact32 parses a candidate text-form template and returns a
// callable 32-bit mixer, failing the test on any width mismatch or parse
// error.
func parseExact32(t *testing.T, template string) mix.Func[uint32] {
	t.Helper()
	any, err := mix.ParseProgram(template)
	if err != nil {
		t.Fatalf("ParseProgram(%q): %v", template, err)
	}
	typed, ok := any.(mix.Typed[uint32])
	if !ok {
		t.Fatalf("ParseProgram(%q) is not a 32-bit program", template)
	}
	return typed.Prog.Apply
}

// TestExact32MatchesH2 pins Exact32 against the fixed H2 32-bit hash
// (x ^= x>>16; x *= 0x45d9f3b; x ^= x>>16; x *= 0x45d9f3b; x ^= x>>16),
// the first of the two independent numeric anchors for the exact
// evaluator: TestExact32Identity alone can't catch a scaling or
// normalization bug, since it passes for any formula where every cell's
// deviation has |d|=1. A wrong ×1000 scale, a wrong N/2 denominator, or a
// transposed (j,k) accumulation would all move this value well outside
// 1e-12 of the reference.
func TestExact32MatchesH2(t *testing.T) {
	f := parseExact32(t, "32xorr:16,32mul:045d9f3b,32xorr:16,32mul:045d9f3b,32xorr:16")
	got := Exact32(f)
	want := 1.4249702882580686
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("Exact32(H2) = %v, want %v", got, want)
	}
}

// TestExact32MatchesMurmur3Finalizer pins Exact32 against the MurmurHash3
// finalizer (x ^= x>>16; x *= 0x85ebca6b; x ^= x>>13; x *= 0xc2b2ae35;
// x ^= x>>16), the second independent numeric anchor.
func TestExact32MatchesMurmur3Finalizer(t *testing.T) {
	f := parseExact32(t, "32xorr:16,32mul:85ebca6b,32xorr:13,32mul:c2b2ae35,32xorr:16")
	got := Exact32(f)
	want := 0.26398543281818287
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("Exact32(murmur3 finalizer) = %v, want %v", got, want)
	}
}

func TestSampledSeededRowsWithinMatrix(t *testing.T) {
	// A trivial seeded mixer: output = idx ^ seed, masked.
	f := func(idx, mask, seed uint64) uint64 {
		return (idx ^ seed) & mask
	}
	r := rng.NewXoroshiro128Plus(7, 11)
	got := SampledSeeded(f, 16, 16, r, 12)
	if got < 0 || math.IsNaN(got) {
		t.Fatalf("SampledSeeded returned invalid bias %v", got)
	}
}
