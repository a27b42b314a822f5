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

// Command hp16 runs the fully-portable 16-bit search driver (grounded on
// original_source/hp16.c), including the s-box prospector mode.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/klauspost/compress/zstd"

	"github.com/mixlab/prospector/bias"
	"github.com/mixlab/prospector/mix"
	"github.com/mixlab/prospector/mixjit"
	"github.com/mixlab/prospector/rng"
)

var (
	dashH bool
	dashI bool
	dashX bool
	dashS bool
	dashm bool
	dashr bool
	dashn int
	dasho string
	dashs string
)

func init() {
	flag.BoolVar(&dashH, "H", false, "mode: random hash prospector (default)")
	flag.BoolVar(&dashI, "I", false, "mode: smarter hash prospector")
	flag.BoolVar(&dashX, "X", false, "mode: xorshift-multiply prospector")
	flag.BoolVar(&dashS, "S", false, "mode: s-box prospector")
	flag.BoolVar(&dashm, "m", false, "exclude multiplication")
	flag.BoolVar(&dashr, "r", false, "exclude rotation")
	flag.IntVar(&dashn, "n", 0, "number of operations (0 = mode default)")
	flag.StringVar(&dasho, "o", "", "write the winning s-box to FILE.zst (s-box mode only)")
	flag.StringVar(&dashs, "s", "", "seed the PRNG from a string")
}

type mode int

const (
	modeHash mode = iota
	modeSmart
	modeXormul
	modeSbox
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()

	m := modeHash
	switch {
	case dashS:
		m = modeSbox
	case dashX:
		m = modeXormul
	case dashI:
		m = modeSmart
	case dashH:
		m = modeHash
	}

	n := dashn
	switch m {
	case modeHash, modeSmart:
		if n == 0 {
			n = 7
		}
	case modeXormul:
		if n == 0 {
			n = 5
		}
	case modeSbox:
		n = 1
	}

	var mask mix.KindMask
	if dashm {
		mask = mask.With(mix.MUL)
	}
	if dashr {
		mask = mask.With(mix.ROT)
	}

	seed, err := seedFromFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hp16:", err)
		os.Exit(1)
	}
	r := rng.NewXoshiro256SS(seed)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	if m == modeSbox {
		if err := runSbox(ctx, r, out, dasho); err != nil {
			fmt.Fprintln(os.Stderr, "hp16:", err)
			os.Exit(1)
		}
		return
	}
	if err := runOps(ctx, m, n, mask, r, out); err != nil {
		fmt.Fprintln(os.Stderr, "hp16:", err)
		os.Exit(1)
	}
}

func runOps(ctx context.Context, m mode, n int, mask mix.KindMask, r rng.Source, out *bufio.Writer) error {
	best := 1.0
	for ctx.Err() == nil {
		prog, err := generate(m, n, mask, r)
		if err != nil {
			return err
		}
		fn := mixjit.NewInterpreted[uint16](prog)
		score := bias.Exact16(fn)
		if score < best {
			best = score
			typed := mix.Typed[uint16]{Prog: prog}
			typed.PrintFunc(out, score)
			fmt.Fprintln(out)
			out.Flush()
		}
	}
	return ctx.Err()
}

func generate(m mode, n int, mask mix.KindMask, r rng.Source) (mix.Program[uint16], error) {
	switch m {
	case modeSmart:
		return mix.GenerateSmart[uint16](n, mask, r)
	case modeXormul:
		pairs := (n - 1) / 2
		if pairs < 0 {
			pairs = 0
		}
		return mix.GenerateXormul[uint16](pairs, r), nil
	default:
		return mix.GenerateUniform[uint16](n, mask, r)
	}
}

// runSbox implements hp16's -S mode: repeatedly Fisher-Yates shuffle a
// 64Ki-entry table and keep it only on strict bias improvement.
func runSbox(ctx context.Context, r rng.Source, out *bufio.Writer, path string) error {
	var table [1 << 16]uint16
	for i := range table {
		table[i] = uint16(i)
	}
	fn := func(x uint16) uint16 { return mix.SBoxApply(&table, x) }

	best := 1.0
	for ctx.Err() == nil {
		shuffle(&table, r)
		score := bias.Exact16(fn)
		if score < best {
			best = score
			fmt.Fprintf(out, "// bias = %.17g\n", score)
			printSbox(out, &table)
			fmt.Fprintln(out)
			out.Flush()
			fmt.Fprintf(os.Stderr, "// bias = %.17g\n", score)
			if path != "" {
				if err := writeSboxZstd(path, &table); err != nil {
					return err
				}
			}
		}
	}
	return ctx.Err()
}

// shuffle performs an in-place Fisher-Yates shuffle of table, matching
// original_source/hp16.c's sbox_shuffle.
func shuffle(table *[1 << 16]uint16, r rng.Source) {
	for i := 0xffff; i > 0; i-- {
		j := int(r.Uint64() % uint64(i+1))
		table[i], table[j] = table[j], table[i]
	}
}

func printSbox(out *bufio.Writer, table *[1 << 16]uint16) {
	for i, v := range table {
		fmt.Fprintf(out, "%04x", v)
		if i%16 == 15 {
			fmt.Fprintln(out)
		} else {
			out.WriteByte(' ')
		}
	}
}

func writeSboxZstd(path string, table *[1 << 16]uint16) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("hp16: creating %s: %w", path, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("hp16: starting zstd encoder: %w", err)
	}
	defer enc.Close()

	bw := bufio.NewWriter(enc)
	printSbox(bw, table)
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("hp16: flushing %s: %w", path, err)
	}
	return nil
}

func seedFromFlags() ([4]uint64, error) {
	if dashs != "" {
		return rng.SeedFromString(dashs)
	}
	return rng.SeedFromEntropy()
}
