// Package pubsub provides a single-writer, multi-reader value cell.
//
// Every subscriber receives the current value on subscribe and then each
// published value. A subscriber that falls behind only ever holds the latest
// value, so Publish never blocks.
package pubsub

import (
	"context"
	"sync"
)

// Cell holds the latest value of T and fans it out to subscribers.
type Cell[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[int]chan T
	nextID int
	closed bool
	done   chan struct{}
}

// NewCell returns an open cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value: initial,
		subs:  make(map[int]chan T),
		done:  make(chan struct{}),
	}
}

// Get returns the latest published value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Publish stores v and offers it to every subscriber.
func (c *Cell[T]) Publish(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.value = v
	for _, ch := range c.subs {
		offer(ch, v)
	}
}

// Subscribe returns a channel that yields the current value immediately and
// every later value. The channel is closed when ctx is done or the cell is
// closed.
func (c *Cell[T]) Subscribe(ctx context.Context) <-chan T {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan T, 1)
	if c.closed {
		close(ch)
		return ch
	}

	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.value

	go func() {
		select {
		case <-ctx.Done():
			c.unsubscribe(id)
		case <-c.done:
		}
	}()

	return ch
}

// Subscribers returns the number of live subscriptions.
func (c *Cell[T]) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close closes every subscriber channel. Later publishes are dropped.
func (c *Cell[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

func (c *Cell[T]) unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
	}
}

// offer replaces any unread value in ch with v.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
