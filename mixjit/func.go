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

package mixjit

import (
	"fmt"

	"github.com/mixlab/prospector/mix"
)

// Compiled holds a JIT-backed Page alongside the mix.Func closure that
// calls into it, so the caller can Close the page once the search loop is
// done scoring candidates against it.
type Compiled[W mix.Word] struct {
	page *Page
	fn   mix.Func[W]
}

// Func returns the callable mixer. It is only valid until Close.
func (c *Compiled[W]) Func() mix.Func[W] { return c.fn }

// Close releases the underlying executable page.
func (c *Compiled[W]) Close() error { return c.page.Close() }

// New assembles p and maps it into a fresh executable page, returning a
// mix.Func that invokes the compiled code directly. 16-bit programs have
// no JIT encoding (the reference implementation never JITs its 16-bit
// s-box search either, since the whole point of the 16-bit path is
// exhaustive exact enumeration over a table, not native-speed sampling);
// callers should use NewInterpreted for those instead.
func New[W mix.Word](p mix.Program[W]) (*Compiled[W], error) {
	bits := mix.BitsOf[W]()
	if bits == 16 {
		return nil, fmt.Errorf("mixjit: no JIT encoding for 16-bit programs, use NewInterpreted")
	}
	code, err := Assemble(p)
	if err != nil {
		return nil, err
	}
	page, err := NewPage(code)
	if err != nil {
		return nil, err
	}
	fn, err := bind[W](page)
	if err != nil {
		page.Close()
		return nil, err
	}
	return &Compiled[W]{page: page, fn: fn}, nil
}

// Reassemble re-encodes p and patches it into the Compiled's existing
// page in place: unlock, rewrite, lock. bind's returned closure captures
// the page's entry address once at New time, and that address never
// moves across Rewrites of the same mmap'd region, so c.fn stays valid
// and does not need to be rebuilt. This is the path a search driver
// should use for every candidate after the first: the page is created
// once at driver startup and its W^X state toggled per evaluation,
// rather than mapping and unmapping a fresh page per candidate.
func (c *Compiled[W]) Reassemble(p mix.Program[W]) error {
	code, err := Assemble(p)
	if err != nil {
		return err
	}
	if err := c.page.Unlock(); err != nil {
		return err
	}
	if err := c.page.Rewrite(code); err != nil {
		return err
	}
	return c.page.Lock()
}

// NewInterpreted wraps p's own Apply method as a mix.Func, the portable
// fallback used for all 16-bit evaluation and whenever New fails (e.g. on
// non-amd64/non-linux hosts, or on any Assemble error).
func NewInterpreted[W mix.Word](p mix.Program[W]) mix.Func[W] {
	return p.Apply
}
