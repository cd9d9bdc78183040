package auth

import (
	"sync"
	"time"
)

// ChangeKind identifies a session transition.
type ChangeKind string

const (
	SignedIn  ChangeKind = "signed_in"
	SignedOut ChangeKind = "signed_out"
)

// Change is delivered to Broker subscribers.
type Change struct {
	Kind    ChangeKind
	Session Session
	At      time.Time
}

// Broker fans session changes out to subscribers. Handlers run synchronously
// on the publishing goroutine and must not block.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Change)
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]func(Change))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broker) Subscribe(fn func(Change)) (unsubscribe func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers c to every current subscriber.
func (b *Broker) Publish(c Change) {
	if b == nil {
		return
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	b.mu.RLock()
	fns := make([]func(Change), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
