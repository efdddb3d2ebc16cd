// Package pkg provides the core libraries for bpdoc, which exports visual
// scripting artifacts (Blueprints) as canonical JSON documents.
//
// # Overview
//
// An artifact is a node graph with typed pins and links, plus variables,
// functions and a component hierarchy. bpdoc walks each artifact into one
// deterministic document, writes it to a sink and keeps an index of every
// exported artifact. In watch mode it re-exports only what changed.
//
// # Architecture
//
// Export path:
//
//	host.Host (snapshots)
//	     ↓
//	[walker] + [deps] (graphs, connections, references)
//	     ↓
//	[serialize] (one document per artifact)
//	     ↓
//	[export] (chunked runs, index maintenance)
//	     ↓
//	[sink] (file, S3, Postgres, MongoDB; hash-skipping via [cache])
//
// Change path:
//
//	host events → [monitor] → [schedule] → [export] (incremental)
//
// A [session] owns the monitor and scheduler of one watch run and serves a
// read-only status endpoint.
//
// # Main Packages
//
// [host] - The boundary to the editor: enumerate, read and subscribe. The
// Memory host backs tests; the Dir host reads snapshot files and turns
// rescans into change notifications.
//
// [document] - The canonical document and index types, their byte-stable
// encoding, and the mapping from artifact paths to output paths.
//
// [walker] - Node classification and the graph walk: pins, defaults and
// downstream connections, tolerant of dangling and malformed links.
//
// [serialize] - Assembles a document from one artifact. Problems inside a
// graph become warnings; only an unusable artifact fails.
//
// [export] - Full and incremental export with per-artifact failure
// isolation, retries, cancellation and a single index write per run.
//
// [monitor], [schedule], [session] - Non-blocking change capture, debounce
// with batch extension, and the session that drives them.
//
// [sink], [cache] - Document destinations and the written-hash cache.
//
// [config], [errors], [observability], [clock], [buildinfo] - Ambient
// support.
//
// # Testing
//
// Run tests:
//
//	go test ./...                 # All tests
//	go test ./pkg/walker/...      # Specific package
//	go test -run Example ./pkg/... # Examples only
//
// Tests need no external services. The S3, Postgres, MongoDB and Redis
// backends are covered for argument validation and key mapping only.
package pkg
