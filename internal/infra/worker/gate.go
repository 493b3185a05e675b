package worker

import "context"

// Gate is the bounded admission control for pipeline runs: at most n
// slots process-wide, injected explicitly so tests can build isolated
// instances. Waiters are admitted first-available, not FIFO.
type Gate struct {
	sem chan struct{}
}

func NewGate(n int) *Gate {
	if n <= 0 {
		n = 1
	}
	return &Gate{sem: make(chan struct{}, n)}
}

// Acquire blocks until a slot frees or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot. Must be paired with a successful Acquire.
func (g *Gate) Release() {
	<-g.sem
}

// Active reports how many slots are currently held.
func (g *Gate) Active() int {
	return len(g.sem)
}
