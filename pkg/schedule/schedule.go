// Package schedule decides when changed artifacts are re-exported.
//
// A [Scheduler] holds the pending export set: every artifact that changed
// since its last export, with the time of its most recent change. An
// artifact becomes eligible once it has been quiet for the debounce window,
// so a burst of saves produces a single export after the burst ends.
//
// # Batch Extension
//
// When many artifacts change together (a source control sync, a bulk
// rename) the pending set grows past BatchThreshold and the window is
// extended by BatchExtension, letting the burst settle before anything is
// exported:
//
//	effective = Window                   if pending < BatchThreshold
//	effective = Window + BatchExtension  otherwise
//
// Time is supplied by the caller, so tests drive the scheduler with a
// virtual clock.
package schedule

import (
	"time"

	"github.com/matzehuels/bpdoc/pkg/errors"
	"github.com/matzehuels/bpdoc/pkg/monitor"
)

// Default option values.
const (
	DefaultWindow         = 2 * time.Second
	DefaultBatchThreshold = 32
)

// Options configures a Scheduler.
type Options struct {
	// Window is the quiet time required after the last change.
	Window time.Duration

	// BatchThreshold is the pending-set size at which BatchExtension applies.
	// Zero uses DefaultBatchThreshold; a negative value disables extension.
	BatchThreshold int

	// BatchExtension is added to Window for large pending sets. Zero uses
	// Window.
	BatchExtension time.Duration
}

// SetDefaults fills in zero values.
func (o *Options) SetDefaults() {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.BatchThreshold == 0 {
		o.BatchThreshold = DefaultBatchThreshold
	}
	if o.BatchExtension <= 0 {
		o.BatchExtension = o.Window
	}
}

// Eligible is an artifact ready for re-export.
type Eligible struct {
	Path       string
	LastChange time.Time
	Due        time.Time // LastChange plus the effective window
	ExportedAt time.Time // The pulse that released it
}

// Scheduler holds the pending export set. It is not safe for concurrent use;
// one watch session owns it and calls it from a single goroutine.
type Scheduler struct {
	opts       Options
	pending    map[string]time.Time // path -> last change
	order      []string
	exported   map[string]time.Time // path -> last release
	lastExport time.Time
}

// New returns an empty scheduler.
func New(opts Options) *Scheduler {
	opts.SetDefaults()
	return &Scheduler{
		opts:     opts,
		pending:  make(map[string]time.Time),
		exported: make(map[string]time.Time),
	}
}

// Options returns the effective options.
func (s *Scheduler) Options() Options { return s.opts }

// Observe applies one change record. It returns true for a removal: the
// artifact is dropped from the pending set and the caller should retire
// its document.
func (s *Scheduler) Observe(r monitor.Record) bool {
	if r.Kind == monitor.Removed {
		if _, ok := s.pending[r.Path]; ok {
			delete(s.pending, r.Path)
			s.order = removeFirst(s.order, r.Path)
		}
		delete(s.exported, r.Path)
		return true
	}
	if _, ok := s.pending[r.Path]; !ok {
		s.order = append(s.order, r.Path)
	}
	s.pending[r.Path] = r.At
	return false
}

// Window returns the effective debounce window for the current pending set.
func (s *Scheduler) Window() time.Duration {
	if s.Batched() {
		return s.opts.Window + s.opts.BatchExtension
	}
	return s.opts.Window
}

// Batched reports whether the batch extension currently applies.
func (s *Scheduler) Batched() bool {
	return s.opts.BatchThreshold > 0 && len(s.pending) >= s.opts.BatchThreshold
}

// Pulse releases every pending artifact whose last change is at least the
// effective window before now, in the order artifacts entered the pending
// set. A SCHEDULER_CORRUPTED error means the pending set is inconsistent and
// the scheduler must not be used further.
func (s *Scheduler) Pulse(now time.Time) ([]Eligible, error) {
	if len(s.order) != len(s.pending) {
		return nil, errors.New(errors.ErrCodeSchedulerCorrupted,
			"pending set has %d ordered paths but %d entries", len(s.order), len(s.pending))
	}

	window := s.Window()
	var out []Eligible
	keep := s.order[:0]
	for _, p := range s.order {
		last, ok := s.pending[p]
		if !ok {
			return nil, errors.New(errors.ErrCodeSchedulerCorrupted, "pending path %s has no entry", p)
		}
		if now.Sub(last) < window {
			keep = append(keep, p)
			continue
		}
		out = append(out, Eligible{Path: p, LastChange: last, Due: last.Add(window), ExportedAt: now})
		delete(s.pending, p)
		s.exported[p] = now
	}
	s.order = keep
	if len(out) > 0 {
		s.lastExport = now
	}
	return out, nil
}

// Len returns the size of the pending set.
func (s *Scheduler) Len() int { return len(s.pending) }

// LastExport returns the time of the last pulse that released anything.
func (s *Scheduler) LastExport() time.Time { return s.lastExport }

// LastExportOf returns the time path was last released. It is false for
// paths never released since the last Reset, and for removed paths.
func (s *Scheduler) LastExportOf(path string) (time.Time, bool) {
	t, ok := s.exported[path]
	return t, ok
}

// Pending returns the pending paths in insertion order.
func (s *Scheduler) Pending() []string {
	return append([]string(nil), s.order...)
}

// Reset empties the pending set.
func (s *Scheduler) Reset() {
	s.pending = make(map[string]time.Time)
	s.order = nil
	s.exported = make(map[string]time.Time)
	s.lastExport = time.Time{}
}

func removeFirst(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
