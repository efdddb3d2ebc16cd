// Package export runs full and incremental exports.
//
// A [Coordinator] ties the pieces together: it reads snapshots from a
// host.Host, serializes them, writes the documents to a sink.Sink and keeps
// the index in step with what the sink holds.
//
// # Full Export
//
// [Coordinator.ExportAll] enumerates the corpus and processes it in chunks.
// Within a chunk, snapshots are read and serialized by a small worker pool;
// documents are then written strictly in enumeration order. The coordinator
// yields between chunks and checks for cancellation between artifacts, so a
// large corpus never monopolises the caller. The index is rebuilt from
// scratch and written once, at the end. A cancelled run returns what it
// managed to export and leaves the previous index in place.
//
// # Incremental Export
//
// [Coordinator.ExportIncremental] re-exports a given set of paths, normally
// the eligible set released by a watch session's scheduler. Artifacts that
// no longer exist are retired: their document is removed and their index
// entry dropped. The index is written once, and only if an entry changed.
//
// # Failures
//
// One artifact failing never stops a run. Failures and warnings are
// collected in the [Result]; the returned error is reserved for problems
// that stop the run as a whole (enumeration failure, cancellation).
//
//	c, _ := export.NewCoordinator(h, out, export.Options{}, logger)
//	res, err := c.ExportAll(ctx)
//	logger.Info(res.Summary())
package export
