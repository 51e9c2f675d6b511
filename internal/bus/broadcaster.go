package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrReceive is returned by Recv (and by issuer methods in Client) when the
// bus is shut down before a matching message arrives, or after a
// subscriber has fallen behind capacity and lost messages.
var ErrReceive = errors.New("bus: message receive error")

// ErrSend is the bus's send-failure error. Send has no error result and
// does not check whether the broadcaster is closed, so nothing in this
// package returns ErrSend.
var ErrSend = errors.New("bus: message send error")

// defaultCapacity is the per-subscription channel capacity. A slow
// subscriber beyond this causes the broadcaster to drop its oldest
// undelivered message rather than block the sender.
const defaultCapacity = 64

// Broadcaster fans a stream of messages of type T out to every live
// subscription. It is process-wide state: created once at startup, closed
// once at shutdown.
type Broadcaster[T any] struct {
	mu       sync.RWMutex
	subs     map[*Subscription[T]]struct{}
	capacity int
	closed   bool
}

// NewBroadcaster builds a Broadcaster whose subscriptions buffer up to
// capacity messages before the oldest is dropped.
func NewBroadcaster[T any](capacity int) *Broadcaster[T] {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Broadcaster[T]{
		subs:     make(map[*Subscription[T]]struct{}),
		capacity: capacity,
	}
}

// Subscription is one subscriber's view of a Broadcaster's message stream.
type Subscription[T any] struct {
	broadcaster *Broadcaster[T]
	ch          chan T
	lagged      chan struct{}
	closed      chan struct{}
	closeOnce   sync.Once
}

// Subscribe registers a new subscription. Per the issuer protocol (§4.7),
// callers must subscribe before sending any command whose response they
// need to observe.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		broadcaster: b,
		ch:          make(chan T, b.capacity),
		lagged:      make(chan struct{}, 1),
		closed:      make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.closed)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub from the broadcaster. Safe to call more than
// once.
func (sub *Subscription[T]) Unsubscribe() {
	b := sub.broadcaster
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Recv blocks until a message is available, the subscription lags (the
// broadcaster dropped a message this subscriber hadn't yet received), or
// the broadcaster is closed.
func (sub *Subscription[T]) Recv() (T, error) {
	var zero T
	// A pending lag or close takes precedence over buffered messages.
	select {
	case <-sub.lagged:
		return zero, ErrReceive
	case <-sub.closed:
		return zero, ErrReceive
	default:
	}
	select {
	case <-sub.lagged:
		return zero, ErrReceive
	case msg, ok := <-sub.ch:
		if !ok {
			return zero, ErrReceive
		}
		return msg, nil
	case <-sub.closed:
		return zero, ErrReceive
	}
}

// RecvCtx is Recv, but also returns ctx.Err() if ctx is canceled before a
// message, lag, or close is observed. Subsystem loops that must react to
// process shutdown use this instead of Recv.
func (sub *Subscription[T]) RecvCtx(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-sub.lagged:
		return zero, ErrReceive
	case <-sub.closed:
		return zero, ErrReceive
	default:
	}
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-sub.lagged:
		return zero, ErrReceive
	case msg, ok := <-sub.ch:
		if !ok {
			return zero, ErrReceive
		}
		return msg, nil
	case <-sub.closed:
		return zero, ErrReceive
	}
}

// Send broadcasts msg to every live subscription. A subscription whose
// buffer is full has its oldest undelivered message dropped, and is marked
// lagged so its next Recv reports ErrReceive instead of silently skipping
// ahead.
func (b *Broadcaster[T]) Send(msg T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- msg:
			continue
		default:
		}

		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.lagged <- struct{}{}:
		default:
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// Close shuts the broadcaster down: every live subscription observes
// channel closure on its next Recv and exits its loop.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.closeOnce.Do(func() { close(sub.closed) })
	}
}
