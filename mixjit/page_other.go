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

package mixjit

import "fmt"

// Page is the non-amd64/non-linux stand-in: every JIT entry point on this
// platform returns an error instead of mapping executable memory, and
// callers fall back to NewInterpreted.
type Page struct{}

func NewPage(code []byte) (*Page, error) {
	return nil, fmt.Errorf("mixjit: JIT compilation is only supported on linux/amd64")
}

func (p *Page) Lock() error   { return fmt.Errorf("mixjit: unsupported platform") }
func (p *Page) Unlock() error { return fmt.Errorf("mixjit: unsupported platform") }
func (p *Page) Rewrite(code []byte) error {
	return fmt.Errorf("mixjit: unsupported platform")
}
func (p *Page) Close() error { return nil }
func (p *Page) entry() uintptr { return 0 }
