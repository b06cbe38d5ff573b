package supervisor

import "sync"

// Broker fans lifecycle events out to any number of subscribers without
// ever blocking a publisher: a subscriber that has fallen behind loses its
// oldest pending event instead of stalling a waiter goroutine.
type Broker[T any] struct {
	mu          sync.Mutex
	subscribers map[chan T]struct{}
	closed      bool
}

// NewBroker creates an empty broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subscribers: make(map[chan T]struct{})}
}

// Subscribe registers a buffered channel of the given capacity. Subscribing
// to a closed broker returns an already-closed channel.
func (b *Broker[T]) Subscribe(capacity int) <-chan T {
	ch := make(chan T, capacity)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = struct{}{}
	return ch
}

// Publish delivers ev to every subscriber, dropping the oldest buffered
// event of any subscriber whose channel is full.
func (b *Broker[T]) Publish(ev T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Close ends delivery and closes every subscriber channel. Idempotent.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
