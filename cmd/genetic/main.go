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

// Command genetic runs the genetic-algorithm driver over the
// xorshift-multiply-xorshift gene shape (original_source/genetic.c).
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

	"github.com/mixlab/prospector/rng"
	"github.com/mixlab/prospector/search/genetic"
	"github.com/mixlab/prospector/workerpool"
)

var (
	dashconfig string
	dashx      string
	dashquirky bool
)

func init() {
	flag.StringVar(&dashconfig, "config", "", "YAML file overriding threshold/dontCare/quality/reset knobs")
	flag.StringVar(&dashx, "x", "", "seed the PRNG from a string")
	flag.BoolVar(&dashquirky, "quirky", false, "reproduce the original gene_cross fallthrough quirk instead of the corrected 4-way blend")
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer stop()

	seed, err := seedFromFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, "genetic:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "run-id: %s\n", uuid.New())

	cfg, err := loadConfig(dashconfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, "genetic:", err)
		os.Exit(1)
	}

	cross := genetic.CrossFull
	if dashquirky {
		cross = genetic.CrossQuirky
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	d := genetic.NewDriverWithConfig(seed, cross, out, cfg)
	workers := workerpool.NewPool(0)
	defer workers.Close()

	for ctx.Err() == nil {
		d.Step(ctx, workers)
	}
}

func loadConfig(path string) (genetic.Config, error) {
	var cfg genetic.Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("genetic: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("genetic: parsing %s: %w", path, err)
	}
	return cfg, nil
}

func seedFromFlags() ([4]uint64, error) {
	if dashx != "" {
		return rng.SeedFromString(dashx)
	}
	return rng.SeedFromEntropy()
}
