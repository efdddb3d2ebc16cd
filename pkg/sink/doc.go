// Package sink writes canonical documents and the index to their
// destination.
//
// # Sinks
//
// Every destination implements [Sink]. Paths passed to a sink are artifact
// paths; each sink maps them to its own keys, normally with
// document.OutputPath so every backend lays documents out the same way:
//
//   - [File]: a directory tree, written atomically (temp file + rename)
//   - [Memory]: in-process, for tests and dry runs
//   - [S3]: an S3-compatible bucket via minio-go
//   - [Postgres]: one row per document via the pgx database/sql driver
//   - [Mongo]: one MongoDB document per artifact, stored structurally
//
// [Cached] wraps any sink and skips writes whose content hash matches the
// last successful write, as recorded in a pkg/cache backend.
//
// # Index
//
// Sinks that can return the index they last wrote implement [IndexReader].
// A watch session uses it to resume with the index of a previous run
// instead of re-exporting the whole corpus.
//
// # Retries
//
// Sinks mark transient failures (network errors, 5xx responses) with
// [Retryable]. Callers wrap writes in [RetryWithBackoff], which retries only
// those.
package sink
