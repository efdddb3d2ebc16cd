// Package host defines the boundary between bpdoc and the editor that owns
// the visual-scripting artifacts.
//
// The editor's object model is live and mutable; bpdoc only ever sees
// read-only snapshots of it. A snapshot stores every node and pin of a graph
// in flat, indexed slices (an arena). Links between pins are pin indices
// rather than pointers, so a graph with loops never forms an ownership cycle
// and can be copied, encoded and compared by value.
//
// # Boundary
//
// The [Host] interface lists the capabilities bpdoc consumes:
//
//	Enumerate(ctx)            // every artifact in the corpus
//	Read(ctx, path)           // one snapshot, or ErrNotFound
//	Subscribe(handlers)       // added / updated / removed callbacks
//	Unsubscribe(subscription)
//
// Two adapters ship with the package:
//
//   - [Memory]: an in-process corpus. Put and Remove fire the subscribed
//     callbacks synchronously, the way an editor delivers lifecycle events
//     on its own thread.
//   - [Dir]: a directory of snapshot JSON files written by the editor-side
//     dumper. [Dir.Scan] compares file stamps against the previous scan and
//     fires callbacks for the differences.
//
// # Snapshot Format
//
// Snapshot files are the JSON encoding of [Artifact]:
//
//	{
//	  "path": "/Game/Props/BP_Door",
//	  "name": "BP_Door",
//	  "class": "Blueprint",
//	  "event_graphs": [{
//	    "name": "EventGraph",
//	    "nodes": [{"id": "OnInteract", "class": "K2Node_Event", "pins": [0]}],
//	    "pins":  [{"owner": 0, "name": "then", "direction": "output",
//	               "type": {"category": "exec"}, "links": [1]}]
//	  }]
//	}
package host
