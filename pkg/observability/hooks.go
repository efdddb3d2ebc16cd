// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about exports, monitoring pulses, and sink writes.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, never by libraries, so library packages stay
// free of observability backends and import cycles.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetExportHooks(&myExportHooks{})
//	    observability.SetSinkHooks(&mySinkHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Export().OnExportStart(ctx, "full", 0)
//	// ... export artifacts ...
//	observability.Export().OnExportComplete(ctx, "full", exported, failed, duration)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Export Hooks
// =============================================================================

// ExportHooks receives events from the export coordinator.
type ExportHooks interface {
	// OnExportStart is called before a full or incremental run begins.
	// total is the number of artifacts the run intends to process (0 if unknown).
	OnExportStart(ctx context.Context, mode string, total int)

	// OnArtifactExported is called once per artifact, successful or not.
	OnArtifactExported(ctx context.Context, path string, duration time.Duration, err error)

	// OnExportComplete is called when a run finishes or is cancelled.
	OnExportComplete(ctx context.Context, mode string, exported, failed int, duration time.Duration)
}

// =============================================================================
// Scheduler Hooks
// =============================================================================

// SchedulerHooks receives events from the monitoring session.
type SchedulerHooks interface {
	// OnChange records one change notification accepted by the monitor.
	OnChange(ctx context.Context, path, kind string)

	// OnPulse records one scheduling opportunity.
	OnPulse(ctx context.Context, pending, eligible int, batched bool)
}

// =============================================================================
// Sink Hooks
// =============================================================================

// SinkHooks receives events from document sinks.
type SinkHooks interface {
	// OnWrite records a document or index write.
	OnWrite(ctx context.Context, sink, path string, size int, err error)

	// OnSkip records a write skipped because the content was unchanged.
	OnSkip(ctx context.Context, sink, path string)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopExportHooks is a no-op implementation of ExportHooks.
type NoopExportHooks struct{}

func (NoopExportHooks) OnExportStart(context.Context, string, int)                        {}
func (NoopExportHooks) OnArtifactExported(context.Context, string, time.Duration, error)  {}
func (NoopExportHooks) OnExportComplete(context.Context, string, int, int, time.Duration) {}

// NoopSchedulerHooks is a no-op implementation of SchedulerHooks.
type NoopSchedulerHooks struct{}

func (NoopSchedulerHooks) OnChange(context.Context, string, string) {}
func (NoopSchedulerHooks) OnPulse(context.Context, int, int, bool)  {}

// NoopSinkHooks is a no-op implementation of SinkHooks.
type NoopSinkHooks struct{}

func (NoopSinkHooks) OnWrite(context.Context, string, string, int, error) {}
func (NoopSinkHooks) OnSkip(context.Context, string, string)              {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	exportHooks    ExportHooks    = NoopExportHooks{}
	schedulerHooks SchedulerHooks = NoopSchedulerHooks{}
	sinkHooks      SinkHooks      = NoopSinkHooks{}
	hooksMu        sync.RWMutex
)

// SetExportHooks registers custom export hooks.
// This should be called once at application startup before any export runs.
func SetExportHooks(h ExportHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		exportHooks = h
	}
}

// SetSchedulerHooks registers custom scheduler hooks.
// This should be called once at application startup before a session starts.
func SetSchedulerHooks(h SchedulerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		schedulerHooks = h
	}
}

// SetSinkHooks registers custom sink hooks.
// This should be called once at application startup before any sink writes.
func SetSinkHooks(h SinkHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		sinkHooks = h
	}
}

// Export returns the registered export hooks.
func Export() ExportHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return exportHooks
}

// Scheduler returns the registered scheduler hooks.
func Scheduler() SchedulerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return schedulerHooks
}

// Sink returns the registered sink hooks.
func Sink() SinkHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return sinkHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	exportHooks = NoopExportHooks{}
	schedulerHooks = NoopSchedulerHooks{}
	sinkHooks = NoopSinkHooks{}
}
