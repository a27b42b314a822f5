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

//go:build linux && amd64

package mixjit

import (
	"testing"

	"github.com/mixlab/prospector/mix"
)

// jitMatchesInterpreter compiles p, runs it over a handful of inputs, and
// checks every result against the portable interpreter. This is the same
// equivalence property the reference implementation leans on to trust its
// JIT: the interpreter is the oracle, the JIT only has to agree with it.
func jitMatchesInterpreter[W mix.Word](t *testing.T, p mix.Program[W], inputs []W) {
	t.Helper()
	c, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	fn := c.Func()
	for _, x := range inputs {
		want := p.Apply(x)
		if got := fn(x); got != want {
			t.Errorf("jit(%#x) = %#x, want %#x (program %s)", x, got, want, p.String())
		}
	}
}

func TestJITMatchesInterpreter32(t *testing.T) {
	inputs := []uint32{0, 1, 0x12345678, 0xdeadbeef, 0xffffffff}
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.XOR, C1: 0x9e3779b9}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.MUL, C1: 0x2c1b3c6d}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.ADD, C1: 0x01020304}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.ROT, C1: 13}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.NOT}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.BSWAP}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.XORL, C1: 7}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.XORR, C1: 11}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.ADDL, C1: 3}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.SUBL, C1: 5}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.XROT2, C1: 5, C2: 13}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint32]{
		{Kind: mix.XOR, C1: 0x9e3779b9},
		{Kind: mix.MUL, C1: 0x2c1b3c6d},
		{Kind: mix.XORR, C1: 15},
	}, inputs)
}

func TestJITMatchesInterpreter64(t *testing.T) {
	inputs := []uint64{0, 1, 0x123456789abcdef0, 0xdeadbeefcafebabe, 0xffffffffffffffff}
	jitMatchesInterpreter(t, mix.Program[uint64]{{Kind: mix.XOR, C1: 0x9e3779b97f4a7c15}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint64]{{Kind: mix.MUL, C1: 0xff51afd7ed558ccd}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint64]{{Kind: mix.ROT, C1: 31}}, inputs)
	jitMatchesInterpreter(t, mix.Program[uint64]{{Kind: mix.BSWAP}}, inputs)
}

func TestJITMatchesInterpreterSHFAndCLMUL(t *testing.T) {
	inputs := []uint32{0, 1, 0x12345678, 0xdeadbeef}
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.SHF, C1: 0x00010203}}, inputs) // full reverse
	jitMatchesInterpreter(t, mix.Program[uint32]{{Kind: mix.CLMUL, C1: 0x9e3779b9}}, inputs)
}

// TestReassembleReusesPage patches a sequence of distinct programs into
// the same Compiled's page and checks each one against the interpreter,
// confirming the page's entry address (and thus the closure c.Func()
// returns) survives repeated Unlock/Rewrite/Lock cycles rather than
// needing a fresh mmap per candidate.
func TestReassembleReusesPage(t *testing.T) {
	progs := []mix.Program[uint32]{
		{{Kind: mix.XOR, C1: 0x9e3779b9}},
		{{Kind: mix.MUL, C1: 0x2c1b3c6d}},
		{{Kind: mix.XOR, C1: 0x9e3779b9}, {Kind: mix.MUL, C1: 0x2c1b3c6d}, {Kind: mix.XORR, C1: 15}},
		{{Kind: mix.ROT, C1: 13}},
	}
	c, err := New(progs[0])
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()
	fn := c.Func()
	inputs := []uint32{0, 1, 0x12345678, 0xdeadbeef, 0xffffffff}

	for _, p := range progs {
		if err := c.Reassemble(p); err != nil {
			t.Fatalf("Reassemble(%s): %v", p.String(), err)
		}
		for _, x := range inputs {
			want := p.Apply(x)
			if got := fn(x); got != want {
				t.Errorf("after Reassemble(%s): jit(%#x) = %#x, want %#x", p.String(), x, got, want)
			}
		}
	}
}

// TestPageLockUnlockCycle exercises the Unlock/Lock toggle directly
// (rather than only through Reassemble), matching the page-lifecycle
// contract: a driver unlocks for writes, rewrites, and locks again
// before invoking the compiled function.
func TestPageLockUnlockCycle(t *testing.T) {
	p := mix.Program[uint32]{{Kind: mix.XOR, C1: 0x1}}
	code, err := Assemble(p)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	page, err := NewPage(code)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	defer page.Close()

	p2 := mix.Program[uint32]{{Kind: mix.XOR, C1: 0x2}}
	code2, err := Assemble(p2)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := page.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := page.Rewrite(code2); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if err := page.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	fn, err := bind[uint32](page)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got, want := fn(0), p2.Apply(0); got != want {
		t.Fatalf("after rewrite: fn(0) = %#x, want %#x", got, want)
	}
}
