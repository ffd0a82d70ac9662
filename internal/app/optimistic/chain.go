package optimistic

import "sync"

// Chain runs background work so that work for one id executes in the
// order it was submitted, while work for different ids runs concurrently.
// Remote writes for one id therefore reach the store in toggle order.
type Chain struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
	wg    sync.WaitGroup
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{tails: make(map[string]chan struct{})}
}

// Go schedules fn after every earlier fn for id and returns a channel that
// is closed once fn has returned.
func (c *Chain) Go(id string, fn func()) <-chan struct{} {
	done := make(chan struct{})

	c.mu.Lock()
	prev := c.tails[id]
	c.tails[id] = done
	c.mu.Unlock()

	c.wg.Go(func() {
		defer c.finish(id, done)

		if prev != nil {
			<-prev
		}

		fn()
	})

	return done
}

func (c *Chain) finish(id string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	close(done)

	if c.tails[id] == done {
		delete(c.tails, id)
	}
}

// Idle returns a channel that is closed once every fn scheduled so far for
// id has returned.
func (c *Chain) Idle(id string) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tail, ok := c.tails[id]; ok {
		return tail
	}

	return idle
}

var idle = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}()

// Wait blocks until all scheduled work has finished.
func (c *Chain) Wait() {
	c.wg.Wait()
}
