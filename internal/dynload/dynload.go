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

// Package dynload loads an externally supplied mixer from a compiled Go
// plugin, the Go-native analogue of the reference implementation's
// dlopen/dlsym of a shared object exporting a hash symbol: a 32-bit
// `Hash` (LoadMixer32, used by prospector -l) or a seeded `HashSeeded`
// (LoadSeededMixer, used by evalpow2 -l).
package dynload

import (
	"fmt"
	"plugin"
)

// LoadMixer32 opens the plugin at path and resolves its exported `Hash
// func(uint32) uint32` symbol.
func LoadMixer32(path string) (func(uint32) uint32, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dynload: opening %s: %w", path, err)
	}
	sym, err := p.Lookup("Hash")
	if err != nil {
		return nil, fmt.Errorf("dynload: looking up Hash in %s: %w", path, err)
	}
	switch h := sym.(type) {
	case func(uint32) uint32:
		return h, nil
	case *func(uint32) uint32:
		return *h, nil
	default:
		return nil, fmt.Errorf("dynload: %s exports Hash as %T, want func(uint32) uint32", path, sym)
	}
}

// LoadSeededMixer opens the plugin at path and resolves its exported
// `HashSeeded func(idx, mask, seed uint64) uint64` symbol, the shape
// evalpow2 -l needs (the Go analogue of the reference implementation's
// `uint64_t hash(uint64_t idx, uint64_t mask, uint64_t seed)`).
func LoadSeededMixer(path string) (func(idx, mask, seed uint64) uint64, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dynload: opening %s: %w", path, err)
	}
	sym, err := p.Lookup("HashSeeded")
	if err != nil {
		return nil, fmt.Errorf("dynload: looking up HashSeeded in %s: %w", path, err)
	}
	switch h := sym.(type) {
	case func(idx, mask, seed uint64) uint64:
		return h, nil
	case *func(idx, mask, seed uint64) uint64:
		return *h, nil
	default:
		return nil, fmt.Errorf("dynload: %s exports HashSeeded as %T, want func(idx, mask, seed uint64) uint64", path, sym)
	}
}
