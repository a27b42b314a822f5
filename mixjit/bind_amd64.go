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

	"github.com/mixlab/prospector/mix"
)

// bind returns a mix.Func that calls through page's entry point via the
// width-appropriate trampoline. any(x).(type) dispatches on W's dynamic
// type the same way mix.Program's own interpreter does for byteswap/rotate.
func bind[W mix.Word](page *Page) (mix.Func[W], error) {
	entry := page.entry()
	var zero W
	switch any(zero).(type) {
	case uint32:
		return func(x W) W {
			return W(callJIT32(entry, uint32(x)))
		}, nil
	case uint64:
		return func(x W) W {
			return W(callJIT64(entry, uint64(x)))
		}, nil
	default:
		return nil, fmt.Errorf("mixjit: no trampoline for width %d", mix.BitsOf[W]())
	}
}
