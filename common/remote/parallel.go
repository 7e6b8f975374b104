package remote

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// RunParallel runs cmd on every host concurrently and returns one result per
// host. A failure on one host never affects the others.
func (e *Executor) RunParallel(hosts []string, cmd string) map[string]Result {
	results := make(map[string]Result, len(hosts))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.opts.Parallelism)
	for _, host := range hosts {
		host := host
		g.Go(func() error {
			res := e.Run(host, cmd)
			mu.Lock()
			results[host] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// AllOk reports whether every result in a parallel run succeeded.
func AllOk(results map[string]Result) bool {
	for _, r := range results {
		if !r.Ok() {
			return false
		}
	}
	return true
}
