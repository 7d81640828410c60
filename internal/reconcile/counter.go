package reconcile

import "sync/atomic"

// atomicCounter — счётчик для воркеров тика.
type atomicCounter struct {
	n atomic.Int64
}

func (c *atomicCounter) Inc() {
	c.n.Add(1)
}

func (c *atomicCounter) Get() int {
	return int(c.n.Load())
}
