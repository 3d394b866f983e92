// Package flight coalesces concurrent optimization sweeps so that at most
// one runs at a time; callers arriving while a sweep is in progress wait
// for it and share its result instead of starting another.
package flight

import "sync"

// Group serializes sweep execution. The zero value is ready to use.
//
// Concurrency notes:
//   - The first caller becomes the leader and runs fn.
//   - Followers wait on run.done. Publishing (health, err) happens-before
//     close(done), so reads after <-done observe the final values.
type Group struct {
	mu  sync.Mutex
	cur *run
}

type run struct {
	done   chan struct{} // closed when health/err are published
	health float64
	err    error
}

// Do executes fn unless a sweep is already in flight, in which case it
// waits for that sweep and returns its result.
func (g *Group) Do(fn func() (float64, error)) (float64, error) {
	g.mu.Lock()
	if c := g.cur; c != nil {
		g.mu.Unlock()
		<-c.done
		return c.health, c.err
	}

	// We are the leader.
	c := &run{done: make(chan struct{})}
	g.cur = c
	g.mu.Unlock()

	// Execute fn outside the lock.
	c.health, c.err = fn()
	close(c.done)

	g.mu.Lock()
	g.cur = nil
	g.mu.Unlock()

	return c.health, c.err
}
