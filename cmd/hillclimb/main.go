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

// Command hillclimb runs the steepest-descent driver (grounded on
// original_source/hillclimb.c).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"

	"github.com/mixlab/prospector/bias"
	"github.com/mixlab/prospector/internal/inverse"
	"github.com/mixlab/prospector/rng"
	"github.com/mixlab/prospector/search/hillclimb"
)

var (
	dashp      string
	dashx      string
	dashI      bool
	dashE      bool
	dashq      int
	dashs      bool
	dashconfig string
)

func init() {
	flag.StringVar(&dashp, "p", "", "initial candidate, e.g. \"[16 9e3779b9 16 ...]\" (default: random)")
	flag.StringVar(&dashx, "x", "", "seed the PRNG from a string")
	flag.BoolVar(&dashI, "I", false, "print the inverse hash and exit")
	flag.BoolVar(&dashE, "E", false, "evaluate the initial candidate exactly and exit")
	flag.IntVar(&dashq, "q", 0, "quiet level: 0 verbose, 1 print only the current point (no neighbor or CLIMB/DONE lines), 2 print nothing")
	flag.BoolVar(&dashs, "s", false, "one-shot: stop at the first local minimum instead of reseeding")
	flag.StringVar(&dashconfig, "config", "", "YAML file overriding search knobs (currently unused by hillclimb, accepted for CLI-surface parity with genetic)")
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()

	seed, err := seedFromFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hillclimb:", err)
		os.Exit(1)
	}
	r := rng.NewXoshiro256SS(seed)

	var cur *hillclimb.Candidate
	if dashp != "" {
		cur, err = hillclimb.Parse(dashp)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hillclimb:", err)
			os.Exit(1)
		}
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	if dashI {
		if cur == nil {
			cur = hillclimb.GenerateStrict(r)
		}
		if err := inverse.EmitInverse(out, cur.Inverse()); err != nil {
			fmt.Fprintln(os.Stderr, "hillclimb:", err)
			os.Exit(1)
		}
		return
	}

	if dashE {
		if cur == nil {
			cur = hillclimb.GenerateStrict(r)
		}
		score := bias.Exact32(cur.Hash)
		fmt.Fprintf(out, "%s = %.17g\n", cur, score)
		return
	}

	if err := checkConfig(dashconfig); err != nil {
		fmt.Fprintln(os.Stderr, "hillclimb:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "run-id: %s\n", uuid.New())

	d := hillclimb.NewDriver(cur, r, out)
	d.Quiet = dashq
	d.OneShot = dashs

	for ctx.Err() == nil {
		if !d.Step(ctx) {
			if d.OneShot {
				return
			}
			d.Reset(hillclimb.GenerateStrict(r))
		}
	}
}

// checkConfig validates -config is parseable YAML even though hillclimb's
// driver has no overridable knobs yet (unlike genetic's pool/quality/reset
// settings); this keeps the CLI surface honest rather than silently
// ignoring a malformed file.
func checkConfig(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var v map[string]any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func seedFromFlags() ([4]uint64, error) {
	if dashx != "" {
		return rng.SeedFromString(dashx)
	}
	return rng.SeedFromEntropy()
}
