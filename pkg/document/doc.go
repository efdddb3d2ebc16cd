// Package document defines the canonical, portable form of an exported
// visual-scripting artifact and the index that lists every export.
//
// The document is the single wire format bpdoc produces. It is written to
// sinks, hashed to skip unchanged writes, and read back when a watch session
// resumes. Two exports of an unchanged artifact must be byte-identical, so
// this package owns every rule that affects the bytes:
//
//   - field order is fixed by the struct declarations
//   - list order is the order the serializer produced (never map order)
//   - empty lists are encoded as [] rather than null
//   - no timestamps or run-specific values are included
//   - two-space indent, no HTML escaping, trailing newline
//
// # Document Shape
//
//	{
//	  "name": "BP_Door",
//	  "path": "/Game/Props/BP_Door",
//	  "parent_class": "/Script/Engine.Actor",
//	  "graphs": [{"name": "EventGraph", "nodes": [...]}],
//	  "variables": [{"name": "IsOpen", "type": "bool", ...}],
//	  "functions": [{"name": "Open", "parameters": [...], "graph": {...}}],
//	  "components": [{"name": "DoorMesh", "class": "StaticMeshComponent"}],
//	  "dependencies": ["/Script/Engine.KismetSystemLibrary"]
//	}
//
// # Index
//
// The [Index] summarises every exported document with per-artifact counts.
// Entries are sorted by artifact path, so the index is as deterministic as
// the documents it lists:
//
//	idx := document.NewIndex(entries)
//	data, _ := document.MarshalIndex(idx)
//
// # Output Paths
//
// [OutputPath] maps an artifact path to its relative document location:
//
//	/Game/Props/BP_Door             → Props/BP_Door.json
//	/Game/Props/BP_Door.BP_Door     → Props/BP_Door.json
//	/Tools/BP_Tool                  → _mounts/Tools/BP_Tool.json
//
// Paths that still collide, such as an artifact and its object path, are
// rejected by the export coordinator rather than overwriting each other.
package document
