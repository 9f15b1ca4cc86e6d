// Package eventbus is an in-process broadcast stream of notifications.
//
// One Bus is created at startup and shared by every producer (schedulers) and every consumer
// (delivery loops). Producers are serialized by the bus lock, so all subscribers observe
// notifications in the same order they were accepted. Each subscriber owns an unbounded queue
// drained by its own goroutine: a slow consumer never blocks Send and never loses an item.
package eventbus

import (
	"errors"
	"sync"

	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

// ErrClosed Send was called after Shutdown
var ErrClosed = errors.New("event bus is closed")

// Bus multicast, replay-free notification stream
type Bus struct {
	mu          sync.Mutex
	closed      bool
	nextID      uint64
	subscribers map[uint64]*subscriber
}

// New creates an open bus with no subscribers
func New() *Bus {
	return &Bus{subscribers: make(map[uint64]*subscriber)}
}

// Send hands n to every current subscriber. After Shutdown it returns ErrClosed and n is dropped.
func (b *Bus) Send(n entity.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	for _, s := range b.subscribers {
		s.push(n)
	}
	return nil
}

// Subscribe attaches a new subscriber that sees every notification sent from now on.
// Subscribing to a closed bus yields an already completed stream.
func (b *Bus) Subscribe() *Subscription {
	s := newSubscriber()
	go s.pump()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.finish()
		return &Subscription{sub: s}
	}

	b.nextID++
	id := b.nextID
	b.subscribers[id] = s
	return &Subscription{bus: b, id: id, sub: s}
}

// Shutdown completes the stream: subscribers drain what was already accepted and then see their
// channel closed. Safe to call more than once.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subscribers {
		s.finish()
		delete(b.subscribers, id)
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Subscription one consumer's view of the bus
type Subscription struct {
	bus *Bus
	id  uint64
	sub *subscriber
}

// C notification stream; closed on bus shutdown or Close
func (s *Subscription) C() <-chan entity.Notification {
	return s.sub.out
}

// Close detaches the subscriber and discards anything it has not read yet
func (s *Subscription) Close() {
	if s.bus != nil {
		s.bus.remove(s.id)
	}
	s.sub.abandon()
}

type subscriber struct {
	mu    sync.Mutex
	queue []entity.Notification
	done  bool

	wake     chan struct{}
	out      chan entity.Notification
	stop     chan struct{}
	stopOnce sync.Once
}

func newSubscriber() *subscriber {
	return &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan entity.Notification),
		stop: make(chan struct{}),
	}
}

func (s *subscriber) push(n entity.Notification) {
	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()
	s.signal()
}

// finish no more pushes will follow
func (s *subscriber) finish() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) abandon() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		done := s.done
		s.mu.Unlock()

		for _, n := range batch {
			select {
			case s.out <- n:
			case <-s.stop:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}
		if done {
			return
		}

		select {
		case <-s.wake:
		case <-s.stop:
			return
		}
	}
}
