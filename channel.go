package multibar

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed reports a send or receive on a channel whose run has ended.
var ErrClosed = errors.New("progress channel closed")

// Channel carries updates from many producers to one consumer in FIFO
// order per producer. Send blocks while the buffer is full, giving slow
// consumers backpressure instead of unbounded memory growth.
type Channel interface {
	Send(ctx context.Context, u Update) error
	Receive(ctx context.Context) (Update, error)
	Close()
}

// BufferedChannel is the bounded in-memory Channel used by default.
// Closing wakes blocked senders with ErrClosed; the consumer may keep
// receiving until the buffer is drained.
type BufferedChannel struct {
	ch      chan Update
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// NewBufferedChannel constructs a channel with the provided capacity.
func NewBufferedChannel(capacity int) *BufferedChannel {
	if capacity <= 0 {
		capacity = 1
	}
	return &BufferedChannel{
		ch:   make(chan Update, capacity),
		done: make(chan struct{}),
	}
}

// Send enqueues an update or returns if the context ends or the channel
// closes. It never panics after Close.
func (c *BufferedChannel) Send(ctx context.Context, u Update) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("send canceled: %w", ctx.Err())
	case <-c.done:
		return ErrClosed
	case c.ch <- u:
		return nil
	}
}

// Receive pops the next update, respecting context cancellation. After
// Close it drains the remaining buffer before returning ErrClosed.
func (c *BufferedChannel) Receive(ctx context.Context) (Update, error) {
	select {
	case <-ctx.Done():
		return Update{}, fmt.Errorf("receive canceled: %w", ctx.Err())
	case u := <-c.ch:
		return u, nil
	case <-c.done:
		select {
		case u := <-c.ch:
			return u, nil
		default:
			return Update{}, ErrClosed
		}
	}
}

// Close marks the channel closed for shutdown. It is safe to call more
// than once and safe to call while senders are blocked.
func (c *BufferedChannel) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
