package coherence

import (
	"runtime"
	"sync"
)

// ForEachGroup calls fn once for every group in [0, n). Groups are handed to
// a pool of GOMAXPROCS goroutines, so fn must only write state owned by its
// group.
func ForEachGroup(n int, fn func(group int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}

	groups := make(chan int, workers)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for g := range groups {
				fn(g)
			}
		}()
	}

	for g := range n {
		groups <- g
	}

	close(groups)
	wg.Wait()
}
