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

package mix

import "testing"

// Reference outputs below were independently computed (not by running this
// package) by mirroring each op's definition in a throwaway script, so they
// pin the interpreter's bit-for-bit behavior rather than merely reflect it.

func TestApplyByteswap(t *testing.T) {
	prog := Program[uint32]{{Kind: BSWAP}}
	got := prog.Apply(0x12345678)
	want := uint32(0x78563412)
	if got != want {
		t.Fatalf("byteswap(0x12345678) = %#08x, want %#08x", got, want)
	}
}

func TestApplyShfFullReverse(t *testing.T) {
	// src[i] = 3-i for i in 0..3, packed one index per byte: c = 0x00010203
	prog := Program[uint32]{{Kind: SHF, C1: 0x00010203}}
	got := prog.Apply(0x12345678)
	want := uint32(0x78563412)
	if got != want {
		t.Fatalf("shf(reverse, 0x12345678) = %#08x, want %#08x", got, want)
	}
}

func TestApplyClmul(t *testing.T) {
	prog := Program[uint32]{{Kind: CLMUL, C1: 0x9e3779b9}}
	got := prog.Apply(0x12345678)
	want := uint32(0xeb494938)
	if got != want {
		t.Fatalf("clmul(0x12345678, 0x9e3779b9) = %#08x, want %#08x", got, want)
	}
}

func TestApplyXrot2(t *testing.T) {
	prog := Program[uint32]{{Kind: XROT2, C1: 5, C2: 13}}
	got := prog.Apply(0x12345678)
	want := uint32(0xde719b3c)
	if got != want {
		t.Fatalf("xrot2(0x12345678, 5, 13) = %#08x, want %#08x", got, want)
	}
}

func TestApplyMultiStepProgram(t *testing.T) {
	prog := Program[uint32]{
		{Kind: XOR, C1: 0xdeadbeef},
		{Kind: MUL, C1: 0x2c1b3c6d},
		{Kind: XORR, C1: 15},
	}
	got := prog.Apply(0x12345678)
	want := uint32(0xabf93bbb)
	if got != want {
		t.Fatalf("multi-step program = %#08x, want %#08x", got, want)
	}
}

func TestApplyOverflowWraps(t *testing.T) {
	// ADD must wrap modulo 2^32 like the reference implementation, not
	// promote to a wider Go integer.
	prog := Program[uint32]{{Kind: ADD, C1: 1}}
	got := prog.Apply(0xffffffff)
	if got != 0 {
		t.Fatalf("add overflow: got %#08x, want 0", got)
	}
}

func TestProgramValidateRejectsEmpty(t *testing.T) {
	var p Program[uint32]
	if err := p.Validate(0); err == nil {
		t.Fatal("expected error for empty program")
	}
}

func TestProgramValidateRejectsTooLong(t *testing.T) {
	p := Program[uint32]{
		{Kind: XOR, C1: 1},
		{Kind: ADD, C1: 1},
		{Kind: NOT},
	}
	if err := p.Validate(2); err == nil {
		t.Fatal("expected error for program exceeding op-count ceiling")
	}
	if err := p.Validate(3); err != nil {
		t.Fatalf("program at the ceiling rejected: %v", err)
	}
	if err := p.Validate(0); err != nil {
		t.Fatalf("zero ceiling should mean unlimited, got: %v", err)
	}
}

func TestProgramValidateRejectsBadAdjacency(t *testing.T) {
	p := Program[uint32]{
		{Kind: XOR, C1: 1},
		{Kind: XOR, C1: 2},
	}
	if err := p.Validate(0); err == nil {
		t.Fatal("expected error for XOR immediately following XOR")
	}
}

func TestProgramValidateRejectsBadOp(t *testing.T) {
	p := Program[uint32]{{Kind: MUL, C1: 2}}
	if err := p.Validate(0); err == nil {
		t.Fatal("expected error for even MUL constant")
	}
}

func TestProgramStringParseRoundTrip(t *testing.T) {
	p := Program[uint32]{
		{Kind: XOR, C1: 0xdeadbeef},
		{Kind: MUL, C1: 0x2c1b3c6d},
		{Kind: XORR, C1: 15},
		{Kind: XROT2, C1: 5, C2: 13},
		{Kind: NOT},
		{Kind: SHF, C1: 0x00010203},
	}
	s := p.String()
	any, err := ParseProgram(s)
	if err != nil {
		t.Fatalf("ParseProgram(%q): %v", s, err)
	}
	if any.Width() != 32 {
		t.Fatalf("parsed width = %d, want 32", any.Width())
	}
	const x = 0x12345678
	got, err := any.ApplyU64(x)
	if err != nil {
		t.Fatalf("ApplyU64: %v", err)
	}
	if want := uint64(p.Apply(x)); got != want {
		t.Fatalf("round-tripped program disagrees with original: %#x != %#x", got, want)
	}
	if any.String() != s {
		t.Fatalf("round-tripped string %q != original %q", any.String(), s)
	}
}

func TestParseProgramRejectsMixedWidths(t *testing.T) {
	if _, err := ParseProgram("32xor:1,64add:1"); err == nil {
		t.Fatal("expected error for mixed-width program")
	}
}

func TestParseProgramRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"xor:1",
		"99xor:1",
		"32mul:2", // even constant
		"32xrot2:5",
	}
	for _, c := range cases {
		if _, err := ParseProgram(c); err == nil {
			t.Fatalf("ParseProgram(%q): expected error", c)
		}
	}
}

func TestTypedApplyU64MatchesWidth(t *testing.T) {
	p16 := Program[uint16]{{Kind: NOT}}
	typed := Typed[uint16]{Prog: p16}
	got, err := typed.ApplyU64(0x00ff)
	if err != nil {
		t.Fatalf("ApplyU64: %v", err)
	}
	if got != uint64(uint16(0xff00)) {
		t.Fatalf("16-bit NOT via AnyProgram = %#x, want %#x", got, uint16(0xff00))
	}
}

func TestTypedApplyU64RejectsSBox(t *testing.T) {
	p16 := Program[uint16]{{Kind: SBOX}}
	typed := Typed[uint16]{Prog: p16}
	if _, err := typed.ApplyU64(0); err == nil {
		t.Fatal("expected error applying sbox op through ApplyU64")
	}
}
