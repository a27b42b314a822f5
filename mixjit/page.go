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

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// wxPolicy is the process-wide answer to "does this host allow a page to
// be mapped read+write+execute simultaneously, or does it enforce W^X and
// require toggling between read+write and read+execute". It is decided
// once, by the first Page any driver ever locks, and every later Page
// reuses the cached answer instead of probing again — the one piece of
// global mutable state the JIT layer keeps.
type wxPolicy int32

const (
	wxUnprobed wxPolicy = iota
	wxDisabled          // a single R+W+X mapping succeeded; no toggling needed
	wxEnforced          // R+W+X was refused; toggle R+W <-> R+X per lock/unlock
)

var wxProbe int32 // atomic wxPolicy; 0 (wxUnprobed) until the first Lock

// resolveWX returns the cached policy, or — on the very first call
// process-wide — probes it directly against mem (sparing a second
// mprotect call on the common case where R+W+X succeeds). probed reports
// whether this call ran the probe, i.e. whether mem itself was touched.
func resolveWX(mem []byte) (policy wxPolicy, probed bool) {
	if p := wxPolicy(atomic.LoadInt32(&wxProbe)); p != wxUnprobed {
		return p, false
	}
	policy = wxEnforced
	if unix.Mprotect(mem, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC) == nil {
		policy = wxDisabled
	} else {
		unix.Mprotect(mem, unix.PROT_READ|unix.PROT_WRITE)
	}
	atomic.StoreInt32(&wxProbe, int32(policy))
	return policy, true
}

// Page is an anonymous page holding one compiled program's machine code.
// Its content is rewritten in place across candidates instead of mapping
// a fresh page each time: Unlock opens it for writes, Rewrite patches in
// new code, Lock flips it back to executable before any Func built on it
// is invoked again.
type Page struct {
	mem    []byte
	policy wxPolicy
	rwx    bool // true once this page itself has been mapped R+W+X (wxDisabled only)
	locked bool
}

// NewPage mmaps a page-sized (rounded up) anonymous region, writes code
// into it, and locks it read+execute. Equivalent to the reference
// implementation's execbuf_alloc followed by an initial execbuf_lock. The
// page is always rounded up to at least 4096 bytes, so later Rewrites of
// other small programs have ample headroom without resizing.
func NewPage(code []byte) (*Page, error) {
	size := pageRoundUp(len(code))
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mixjit: mmap: %w", err)
	}
	copy(mem, code)
	p := &Page{mem: mem}
	if err := p.Lock(); err != nil {
		unix.Munmap(mem)
		return nil, err
	}
	return p, nil
}

// Lock makes the page executable. Under the disabled policy this is a
// one-time transition per page (to R+W+X, reused for every later
// Rewrite with no further toggling); under the enforced policy every
// call actually mprotects R+W -> R+X.
func (p *Page) Lock() error {
	if p.policy == wxUnprobed {
		var probed bool
		p.policy, probed = resolveWX(p.mem)
		if p.policy == wxDisabled && probed {
			p.rwx = true // resolveWX's own probe already left mem R+W+X
			p.locked = true
			return nil
		}
	}
	if p.policy == wxDisabled {
		if !p.rwx {
			if err := unix.Mprotect(p.mem, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC); err != nil {
				return fmt.Errorf("mixjit: mprotect(rwx): %w", err)
			}
			p.rwx = true
		}
		p.locked = true
		return nil
	}
	if err := unix.Mprotect(p.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("mixjit: mprotect(r-x): %w", err)
	}
	p.locked = true
	return nil
}

// Unlock makes the page read+write and non-executable, for patching code
// into an already-allocated page across generations of a search loop
// instead of mapping a fresh one each time. Under the disabled policy
// this is a no-op: the page is already R+W+X and stays that way.
func (p *Page) Unlock() error {
	if p.policy == wxDisabled {
		p.locked = false
		return nil
	}
	if err := unix.Mprotect(p.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("mixjit: mprotect(rw-): %w", err)
	}
	p.locked = false
	return nil
}

// Rewrite replaces the page's code. The page must be unlocked first,
// except under the disabled policy where the page is always writable.
func (p *Page) Rewrite(code []byte) error {
	if p.locked && p.policy != wxDisabled {
		return fmt.Errorf("mixjit: page is locked, call Unlock first")
	}
	if len(code) > len(p.mem) {
		return fmt.Errorf("mixjit: code (%d bytes) exceeds page capacity (%d bytes)", len(code), len(p.mem))
	}
	copy(p.mem, code)
	return nil
}

// entry returns the address of the page's first byte, the JIT function's
// entry point.
func (p *Page) entry() uintptr {
	return uintptr(unsafe.Pointer(&p.mem[0]))
}

// Close unmaps the page.
func (p *Page) Close() error {
	return unix.Munmap(p.mem)
}

func pageRoundUp(n int) int {
	const pageSize = 4096
	if n == 0 {
		n = 1
	}
	return (n + pageSize - 1) &^ (pageSize - 1)
}
