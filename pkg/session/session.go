package session

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/bpdoc/pkg/clock"
	"github.com/matzehuels/bpdoc/pkg/errors"
	"github.com/matzehuels/bpdoc/pkg/export"
	"github.com/matzehuels/bpdoc/pkg/host"
	"github.com/matzehuels/bpdoc/pkg/monitor"
	"github.com/matzehuels/bpdoc/pkg/observability"
	"github.com/matzehuels/bpdoc/pkg/schedule"
)

// Options configures a Session.
type Options struct {
	// Kind is the artifact class to monitor. Empty monitors every class.
	Kind string

	// Capacity is the monitor's queue size. Zero uses monitor.DefaultCapacity.
	Capacity int

	// Schedule configures the debounce window and batch extension.
	Schedule schedule.Options
}

// Report describes one pulse.
type Report struct {
	Changes  int                 // Records drained from the monitor
	Eligible []schedule.Eligible // Artifacts released for export
	Retired  *export.Result      // Nil when nothing was removed
	Exported *export.Result      // Nil when nothing was eligible
}

// Session is one monitoring session. Start, Stop, Pulse and Run must be
// called from a single goroutine; Status and Handler are safe to use
// concurrently with them.
type Session struct {
	ID string

	monitor *monitor.Monitor
	sched   *schedule.Scheduler
	coord   *export.Coordinator
	clock   clock.Clock
	logger  *log.Logger

	mu     sync.RWMutex
	active bool
	status Status
}

// New returns a stopped session. A nil clock uses the wall clock and a nil
// logger uses log.Default().
func New(h host.Host, coord *export.Coordinator, opts Options, clk clock.Clock, logger *log.Logger) *Session {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = log.Default()
	}
	id := uuid.NewString()
	s := &Session{
		ID:      id,
		monitor: monitor.New(h, opts.Kind, clk, opts.Capacity),
		sched:   schedule.New(opts.Schedule),
		coord:   coord,
		clock:   clk,
		logger:  logger.With("session", id[:8]),
	}
	s.status = Status{ID: id}
	s.snapshot()
	return s
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start resets the pending set and subscribes to the host.
func (s *Session) Start() error {
	if s.Active() {
		err := errors.New(errors.ErrCodeSchedulerMisuse, "session already started")
		s.logger.Warn("ignoring start", "error", err)
		return err
	}
	s.sched.Reset()
	s.monitor.Drain()
	if err := s.monitor.Start(); err != nil {
		s.logger.Warn("ignoring start", "error", err)
		return err
	}

	s.mu.Lock()
	s.active = true
	s.status.StartedAt = s.clock.Now()
	s.status.Error = ""
	s.mu.Unlock()
	s.snapshot()
	s.logger.Info("monitoring started",
		"window", s.sched.Options().Window,
		"batch_threshold", s.sched.Options().BatchThreshold)
	return nil
}

// Stop unsubscribes from the host. Pending artifacts are discarded on the
// next Start.
func (s *Session) Stop() error {
	if !s.Active() {
		err := errors.New(errors.ErrCodeSchedulerMisuse, "session not started")
		s.logger.Warn("ignoring stop", "error", err)
		return err
	}
	s.deactivate()
	if err := s.monitor.Stop(); err != nil {
		return err
	}
	s.logger.Info("monitoring stopped", "pending", s.sched.Len())
	return nil
}

// Active reports whether the session is monitoring.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// =============================================================================
// Pulses
// =============================================================================

// Pulse drains queued changes and exports every artifact that has been
// quiet for the debounce window. An inactive session returns an empty
// report. Per-artifact failures are in the report; the error is non-nil
// only for cancellation, index write failures or a corrupted scheduler.
func (s *Session) Pulse(ctx context.Context) (*Report, error) {
	rep := &Report{}
	if !s.Active() {
		return rep, nil
	}
	defer s.snapshot()
	s.mu.Lock()
	s.status.Pulses++
	s.status.LastPulse = s.clock.Now()
	s.mu.Unlock()

	records := s.monitor.Drain()
	rep.Changes = len(records)
	var removed []string
	for _, r := range records {
		observability.Scheduler().OnChange(ctx, r.Path, string(r.Kind))
		if s.sched.Observe(r) {
			removed = append(removed, r.Path)
		}
	}
	if len(removed) > 0 {
		res, err := s.coord.Retire(ctx, removed...)
		rep.Retired = res
		s.count(res)
		if err != nil {
			return rep, err
		}
	}

	eligible, err := s.sched.Pulse(s.clock.Now())
	if err != nil {
		s.logger.Error("scheduler state is inconsistent, ending session", "error", err)
		s.fail(err)
		return rep, err
	}
	rep.Eligible = eligible
	observability.Scheduler().OnPulse(ctx, s.sched.Len(), len(eligible), s.sched.Batched())
	if len(eligible) == 0 {
		return rep, nil
	}

	paths := make([]string, len(eligible))
	for i, e := range eligible {
		paths[i] = e.Path
	}
	s.logger.Debug("pulse", "eligible", len(paths), "pending", s.sched.Len(), "batched", s.sched.Batched())
	res, err := s.coord.ExportIncremental(ctx, paths)
	rep.Exported = res
	s.count(res)
	return rep, err
}

// Run pulses every interval until ctx is done. If tick is non-nil it is
// called before each pulse; hosts that poll for changes (host.Dir) pass
// their scan function here. Errors from tick are logged and the loop
// continues. Run returns nil when ctx is cancelled, or the pulse error that
// ended the session.
func (s *Session) Run(ctx context.Context, interval time.Duration, tick func(context.Context) error) error {
	if interval <= 0 {
		interval = s.sched.Options().Window / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if tick != nil {
			if err := tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("change scan failed", "error", err)
			}
		}
		if _, err := s.Pulse(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, errors.ErrCodeSchedulerCorrupted) {
				return err
			}
			s.logger.Warn("pulse failed", "error", err)
		}
		if !s.Active() {
			return nil
		}
	}
}

// =============================================================================
// Internal Implementation
// =============================================================================

func (s *Session) deactivate() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.snapshot()
}

// fail ends the session after an unrecoverable scheduler error.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.status.Error = err.Error()
	s.mu.Unlock()
	s.deactivate()
	if stopErr := s.monitor.Stop(); stopErr != nil {
		s.logger.Warn("unsubscribe failed", "error", stopErr)
	}
}

func (s *Session) count(res *export.Result) {
	if res == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Exported += res.Exported
	s.status.Removed += res.Removed
	s.status.Failed += res.Failed()
	s.status.Warnings += len(res.Warnings)
}

// snapshot copies scheduler state into the status view. The scheduler is
// only touched from the pulse goroutine, so handlers read the copy.
func (s *Session) snapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Active = s.active
	s.status.Pending = s.sched.Pending()
	s.status.Window = s.sched.Window()
	s.status.Batched = s.sched.Batched()
	s.status.LastExport = s.sched.LastExport()
}
