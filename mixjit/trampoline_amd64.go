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

// callJIT32 and callJIT64 bridge Go's calling convention to a JIT page's
// bare SysV entry point: load x into the argument register, CALL the
// page's first byte, and return whatever comes back in the result
// register. Mirrors the //go:noescape/go:nosplit declaration style the
// reference implementation uses for its own assembly-backed hash
// functions (internal/aes).
//
//go:noescape
//go:nosplit
func callJIT32(entry uintptr, x uint32) uint32

//go:noescape
//go:nosplit
func callJIT64(entry uintptr, x uint64) uint64
