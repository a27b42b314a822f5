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

//go:build !(linux && amd64)

package dynload

import "errors"

// LoadMixer32 always fails: Go's plugin package only supports linux/amd64
// (and a handful of other ELF platforms the standard toolchain does not
// build this package for), matching the JIT's own platform story (its
// interpreter fallback exists for exactly the same reason).
func LoadMixer32(path string) (func(uint32) uint32, error) {
	return nil, errors.New("dynamic loading is not supported on this platform")
}

// LoadSeededMixer is the evalpow2 -l analogue of LoadMixer32; see that
// function's doc comment for why this is unsupported here.
func LoadSeededMixer(path string) (func(idx, mask, seed uint64) uint64, error) {
	return nil, errors.New("dynamic loading is not supported on this platform")
}
