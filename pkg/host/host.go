package host

import (
	"context"
	"errors"
	"sync"
)

// Sentinel errors returned by hosts.
var (
	// ErrNotFound is returned by Read when the artifact no longer exists.
	ErrNotFound = errors.New("artifact not found")

	// ErrUnknownSubscription is returned by Unsubscribe for a handle that is
	// not (or no longer) registered.
	ErrUnknownSubscription = errors.New("unknown subscription")
)

// Host is the editor boundary bpdoc reads from.
type Host interface {
	// Enumerate lists every artifact in the corpus in a stable order.
	Enumerate(ctx context.Context) ([]ArtifactRef, error)

	// Read returns a snapshot of one artifact, or ErrNotFound.
	Read(ctx context.Context, path string) (*Artifact, error)

	// Subscribe registers lifecycle callbacks. Callbacks may run on any
	// goroutine and must not block.
	Subscribe(h Handlers) (Subscription, error)

	// Unsubscribe removes callbacks registered by Subscribe.
	Unsubscribe(s Subscription) error
}

// Handlers are the lifecycle callbacks a subscriber receives. Nil fields are
// skipped.
type Handlers struct {
	OnAdded   func(Event)
	OnUpdated func(Event)
	OnRemoved func(Event)
}

// Subscription is an opaque handle returned by Subscribe.
type Subscription uint64

type eventKind int

const (
	added eventKind = iota
	updated
	removed
)

func (k eventKind) String() string {
	switch k {
	case added:
		return "added"
	case updated:
		return "updated"
	default:
		return "removed"
	}
}

// registry holds subscriptions for the in-tree hosts.
type registry struct {
	mu   sync.RWMutex
	next Subscription
	subs map[Subscription]Handlers
}

func (r *registry) subscribe(h Handlers) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs == nil {
		r.subs = make(map[Subscription]Handlers)
	}
	r.next++
	r.subs[r.next] = h
	return r.next
}

func (r *registry) unsubscribe(s Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[s]; !ok {
		return ErrUnknownSubscription
	}
	delete(r.subs, s)
	return nil
}

// fire delivers ev to every subscriber. It must be called without the host's
// own lock held, since handlers may call back into the host.
func (r *registry) fire(kind eventKind, ev Event) {
	r.mu.RLock()
	handlers := make([]Handlers, 0, len(r.subs))
	for _, h := range r.subs {
		handlers = append(handlers, h)
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		var fn func(Event)
		switch kind {
		case added:
			fn = h.OnAdded
		case updated:
			fn = h.OnUpdated
		case removed:
			fn = h.OnRemoved
		}
		if fn != nil {
			fn(ev)
		}
	}
}
