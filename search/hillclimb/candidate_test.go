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
	"testing"
)

func TestCandidateHashMatchesProgram(t *testing.T) {
	c := &Candidate{
		C: [HashN]uint32{0x2c1b3c6d, 0x9e3779b9, 0xff51afd7},
		S: [HashN + 1]int{13, 17, 11, 19},
	}
	prog := c.Program()
	for _, x := range []uint32{0, 1, 0x12345678, 0xffffffff} {
		want := prog.Apply(x)
		if got := c.Hash(x); got != want {
			t.Fatalf("Candidate.Hash(%#x) = %#x, want %#x", x, got, want)
		}
	}
}

func TestCandidateStringParseRoundTrip(t *testing.T) {
	c := &Candidate{
		C: [HashN]uint32{0x2c1b3c6d, 0x9e3779b9, 0xff51afd7},
		S: [HashN + 1]int{13, 17, 11, 19},
	}
	got, err := Parse(c.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !got.Equal(c) {
		t.Fatalf("round-trip mismatch: got %s, want %s", got, c)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"[1 2 3]",
		"13 2c1b3c6d 17 9e3779b9 11 ff51afd7 19",
		"[0 2c1b3c6d 17 9e3779b9 11 ff51afd7 19]",
	}
	for _, s := range cases {
		if _, err := Parse(s); err == nil {
			t.Fatalf("Parse(%q) should have failed", s)
		}
	}
}
