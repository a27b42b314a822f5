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

// Package workerpool provides two concurrency shapes shared by the bias
// evaluator and the genetic search driver: a one-shot fork-join barrier
// (ForkJoin) and a long-lived request-queue pool (Pool), the latter
// generalizing the condition-variable dispatch loop the teacher built for
// parallel sorting.
package workerpool

import "sync"

// ForkJoin runs fn(0), fn(1), ..., fn(n-1) across up to workers goroutines
// and blocks until every call has returned. It is the shape
// bias.Exact32 uses to split the 2^32 enumeration into EXACT_SPLIT private
// ranges: each call to fn owns its index exclusively, so fn is free to
// accumulate into a private Matrix with no locking and the caller merges
// once after ForkJoin returns.
//
// workers <= 0 means "use runtime.GOMAXPROCS(0)". n <= 0 is a no-op.
func ForkJoin(n, workers int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = defaultWorkers()
	}
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	i := 0

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				if i >= n {
					mu.Unlock()
					return
				}
				idx := i
				i++
				mu.Unlock()
				fn(idx)
			}
		}()
	}
	wg.Wait()
}
