// Package session runs one monitoring session over a host.
//
// A [Session] ties together the pieces of incremental export: a
// [monitor.Monitor] subscribed to the host, a [schedule.Scheduler] holding
// the pending export set, and an [export.Coordinator] that writes
// documents. It is an explicit object rather than process-wide state, and a
// process runs at most one.
//
// # Lifecycle
//
//	sess := session.New(h, coord, session.Options{Kind: host.DefaultKind}, nil, logger)
//	if err := sess.Start(); err != nil {
//	    return err
//	}
//	defer sess.Stop()
//
//	err := sess.Run(ctx, 500*time.Millisecond, dir.Scan)
//
// Start resets the pending set. Starting an active session or stopping an
// inactive one is logged and otherwise ignored; the returned error carries
// the SCHEDULER_MISUSE code for callers that care.
//
// # Pulses
//
// Each [Session.Pulse] drains the monitor, retires removed artifacts,
// releases every pending artifact that has been quiet for the debounce
// window and exports those incrementally. The export reads the artifact as
// it is at that moment. A change that lands while the export is running
// reaches the monitor as a new notification and is picked up by a later
// pulse.
//
// A SCHEDULER_CORRUPTED error from the scheduler ends the session: the
// monitor is unsubscribed and further pulses do nothing.
//
// # Status
//
// [Session.Handler] returns a chi router serving /healthz and /status, so a
// long-running watch can be inspected over HTTP. Status is a read-only view
// of counters and never exposes document contents.
package session
