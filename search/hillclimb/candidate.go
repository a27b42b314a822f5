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

// Package hillclimb implements steepest-ascent (steepest-descent, in bias
// terms) search over the fixed HASHN-multiply/HASHN+1-shift mixer schema,
// reproducing original_source/hillclimb.c's lattice exploration:
// neighbor shifts by ±d, neighbor constants by ±2d (preserving oddness),
// skipping the immediately previous position to avoid oscillation.
package hillclimb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mixlab/prospector/internal/inverse"
	"github.com/mixlab/prospector/mix"
	"github.com/mixlab/prospector/rng"
)

// HashN is the number of multiplies in the candidate; it carries HashN+1
// right-shift-xors. ShiftRange and ConstRange are the neighbor search
// radii, and Threshold gates the strict random candidate generator.
const (
	HashN      = 3
	ShiftRange = 1
	ConstRange = 2
	Quality    = 18
	Threshold  = 1.95
)

// Candidate is a HashN-multiply mixer: x ^= x>>S[i]; x *= C[i]; ...;
// x ^= x>>S[HashN].
type Candidate struct {
	C [HashN]uint32
	S [HashN + 1]int
}

// Hash evaluates the candidate at x.
func (c *Candidate) Hash(x uint32) uint32 {
	for i := 0; i < HashN; i++ {
		x ^= x >> uint(c.S[i])
		x *= c.C[i]
	}
	x ^= x >> uint(c.S[HashN])
	return x
}

// Program renders the candidate as an equivalent mix.Program.
func (c *Candidate) Program() mix.Program[uint32] {
	p := make(mix.Program[uint32], 0, HashN*2+1)
	for i := 0; i < HashN; i++ {
		p = append(p, mix.Op[uint32]{Kind: mix.XORR, C1: uint64(c.S[i])})
		p = append(p, mix.Op[uint32]{Kind: mix.MUL, C1: uint64(c.C[i])})
	}
	p = append(p, mix.Op[uint32]{Kind: mix.XORR, C1: uint64(c.S[HashN])})
	return p
}

// Equal reports whether a and b have identical constants and shifts
// (used to skip re-visiting the immediately previous lattice position).
func (c *Candidate) Equal(o *Candidate) bool {
	return *c == *o
}

// Generate produces a fresh candidate: every shift fixed at 16 (the
// reference implementation's gene_gen equivalent always starts there,
// letting the shift-neighbor search walk away from it), constants odd
// random words.
func Generate(r rng.Source) *Candidate {
	var c Candidate
	for i := 0; i < HashN; i++ {
		c.C[i] = uint32(r.Uint64()>>32) | 1
	}
	for i := range c.S {
		c.S[i] = 16
	}
	return &c
}

// Inverse converts c to the shape internal/inverse.EmitInverse expects.
func (c *Candidate) Inverse() inverse.Candidate {
	return inverse.Candidate{C: c.C[:], S: c.S[:]}
}

func (c *Candidate) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < HashN; i++ {
		fmt.Fprintf(&b, "%2d %08x ", c.S[i], c.C[i])
	}
	fmt.Fprintf(&b, "%2d]", c.S[HashN])
	return b.String()
}

// Parse reads the bracketed "[s0 c0hex s1 c1hex s2 c2hex s3]" text form
// Candidate.String produces, matching hash_parse's -p flag contract.
func Parse(s string) (*Candidate, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("hillclimb: candidate must be bracketed, got %q", s)
	}
	fields := strings.Fields(s[1 : len(s)-1])
	if len(fields) != HashN*2+1 {
		return nil, fmt.Errorf("hillclimb: expected %d fields, got %d", HashN*2+1, len(fields))
	}
	var c Candidate
	for i := 0; i < HashN; i++ {
		sv, err := strconv.Atoi(fields[2*i])
		if err != nil || sv < 1 || sv > 31 {
			return nil, fmt.Errorf("hillclimb: invalid shift %q", fields[2*i])
		}
		cv, err := strconv.ParseUint(fields[2*i+1], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("hillclimb: invalid constant %q", fields[2*i+1])
		}
		c.S[i] = sv
		c.C[i] = uint32(cv)
	}
	sv, err := strconv.Atoi(fields[HashN*2])
	if err != nil || sv < 1 || sv > 31 {
		return nil, fmt.Errorf("hillclimb: invalid trailing shift %q", fields[HashN*2])
	}
	c.S[HashN] = sv
	return &c, nil
}
