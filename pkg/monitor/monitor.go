// Package monitor turns host lifecycle callbacks into change records.
//
// Hosts deliver notifications on their own goroutine and must never be
// blocked by bpdoc. A [Monitor] therefore does nothing in its callbacks but
// stamp the event and hand it off: records go into a buffered channel, and
// when the channel is full they are coalesced into a per-path backlog
// instead of waiting. The consumer (a watch session) drains both on its own
// schedule.
//
// Only events for the configured artifact kind are recorded.
package monitor

import (
	"sync"
	"time"

	"github.com/matzehuels/bpdoc/pkg/clock"
	"github.com/matzehuels/bpdoc/pkg/errors"
	"github.com/matzehuels/bpdoc/pkg/host"
)

// DefaultCapacity is the channel size used when New is given capacity <= 0.
const DefaultCapacity = 256

// Kind is the kind of change.
type Kind string

// Change kinds.
const (
	Added   Kind = "added"
	Updated Kind = "updated"
	Removed Kind = "removed"
)

// Record is one observed change.
type Record struct {
	Path string
	Kind Kind
	At   time.Time
}

// Monitor subscribes to a host and queues change records.
type Monitor struct {
	host  host.Host
	kind  string
	clock clock.Clock
	queue chan Record

	mu      sync.Mutex
	sub     host.Subscription
	active  bool
	backlog map[string]Record
	order   []string // backlog paths, first-seen order
}

// New returns a stopped monitor for artifacts of the given kind. An empty
// kind records every class; a nil clock uses the wall clock.
func New(h host.Host, kind string, clk clock.Clock, capacity int) *Monitor {
	if clk == nil {
		clk = clock.Real{}
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Monitor{
		host:    h,
		kind:    kind,
		clock:   clk,
		queue:   make(chan Record, capacity),
		backlog: make(map[string]Record),
	}
}

// Start subscribes to the host. Starting an active monitor returns a
// SCHEDULER_MISUSE error.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return errors.New(errors.ErrCodeSchedulerMisuse, "monitor already started")
	}
	sub, err := m.host.Subscribe(host.Handlers{
		OnAdded:   m.handler(Added),
		OnUpdated: m.handler(Updated),
		OnRemoved: m.handler(Removed),
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "subscribe to host")
	}
	m.sub = sub
	m.active = true
	return nil
}

// Stop unsubscribes from the host. Records already queued stay available to
// Drain. Stopping an inactive monitor returns a SCHEDULER_MISUSE error.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return errors.New(errors.ErrCodeSchedulerMisuse, "monitor not started")
	}
	m.active = false
	if err := m.host.Unsubscribe(m.sub); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "unsubscribe from host")
	}
	return nil
}

// Active reports whether the monitor is subscribed.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Monitor) handler(kind Kind) func(host.Event) {
	return func(ev host.Event) {
		if m.kind != "" && ev.Class != m.kind {
			return
		}
		m.push(Record{Path: ev.Path, Kind: kind, At: m.clock.Now()})
	}
}

func (m *Monitor) push(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	// Once the backlog holds records, new ones join it so per-path order is
	// preserved across the channel and the backlog.
	if len(m.order) == 0 {
		select {
		case m.queue <- r:
			return
		default:
		}
	}
	if _, ok := m.backlog[r.Path]; !ok {
		m.order = append(m.order, r.Path)
	}
	m.backlog[r.Path] = r
}

// Drain returns every queued record without blocking: channel contents
// first, then the coalesced backlog in first-seen order.
func (m *Monitor) Drain() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for {
		select {
		case r := <-m.queue:
			out = append(out, r)
			continue
		default:
		}
		break
	}
	for _, p := range m.order {
		out = append(out, m.backlog[p])
	}
	m.order = nil
	clear(m.backlog)
	return out
}

// Pending returns the number of queued records.
func (m *Monitor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue) + len(m.order)
}
