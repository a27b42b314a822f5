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

// Command evalpow2 evaluates a seed-sensitive mixer's bias across every
// power-of-two input width (original_source/
// evalpow2.c). With no -l, it evaluates a siphash-based reference mixer
// as a self-test.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/dchest/siphash"

	"github.com/mixlab/prospector/bias"
	"github.com/mixlab/prospector/internal/dynload"
	"github.com/mixlab/prospector/rng"
)

var (
	dashf bool
	dashv bool
	dashl string
	dashn int
	dashq int
)

func init() {
	flag.BoolVar(&dashf, "f", false, "evaluate the full seed rather than just the current power-of-two")
	flag.BoolVar(&dashv, "v", false, "print the bias for every power-of-two tested")
	flag.StringVar(&dashl, "l", "", "load HashSeeded from a Go plugin instead of the siphash reference mixer")
	flag.IntVar(&dashn, "n", 32, "test all powers of two up to 2^n")
	flag.IntVar(&dashq, "q", 16, "score quality knob (12-30)")
}

func main() {
	flag.Parse()

	if dashq < 12 || dashq > 30 {
		fmt.Fprintf(os.Stderr, "evalpow2: invalid quality: %d\n", dashq)
		os.Exit(1)
	}

	hash := siphashReference
	if dashl != "" {
		h, err := dynload.LoadSeededMixer(dashl)
		if err != nil {
			fmt.Fprintln(os.Stderr, "evalpow2:", err)
			os.Exit(1)
		}
		hash = h
	}

	seed, err := rng.SeedFromEntropy()
	if err != nil {
		fmt.Fprintln(os.Stderr, "evalpow2:", err)
		os.Exit(1)
	}
	r := rng.NewXoroshiro128Plus(seed[0], seed[1])

	var total float64
	for i := 1; i < dashn; i++ {
		seedRange := i
		if dashf {
			seedRange = dashn
		}
		b := bias.SampledSeeded(hash, i, seedRange, r, dashq)
		if dashv {
			fmt.Printf("bias %2d: %.17g\n", i, b)
		}
		total += b
	}

	fmt.Printf("total bias = %.17g\n", total)
	fmt.Printf("avr bias   = %.17g\n", total/float64(dashn))
}

// siphashReference is the default self-test mixer: a SipHash-2-4 keyed by
// seed (as k0, with k1 fixed at zero) over idx's 8-byte little-endian
// encoding, standing in for a dlopen'd external `hash()` symbol the way
// the dynamic-load collaborator's own self-test uses it.
func siphashReference(idx, mask, seed uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], idx)
	return siphash.Hash(seed, 0, buf[:]) & mask
}
