package websocket

import (
	"sync/atomic"
	"time"
)

const (
	defaultSendTimeout = time.Second
)

// conn adapts the per-session outbound channel to model.Conn. The sender
// goroutine drains tx; once it stops, done unblocks every pending Send.
type conn struct {
	tx     chan any
	done   chan struct{}
	closed atomic.Bool
}

func newConn() *conn {
	return &conn{
		tx:   make(chan any),
		done: make(chan struct{}),
	}
}

func (c *conn) Send(v any) bool {
	t := time.NewTimer(defaultSendTimeout)
	defer t.Stop()
	select {
	case c.tx <- v:
		return true
	case <-c.done:
		return false
	case <-t.C:
		return false
	}
}

func (c *conn) Open() bool {
	return !c.closed.Load()
}

// shutdown marks the conn dead; called when the sender loop exits.
func (c *conn) shutdown() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
}
