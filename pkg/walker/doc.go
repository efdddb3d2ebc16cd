// Package walker turns one arena graph from a host snapshot into its
// canonical document form.
//
// # Overview
//
// A host graph stores nodes and pins in flat slices with links expressed as
// pin indices. [Walk] visits nodes in declared order, serializes each node's
// pins in declared order and derives the node's downstream connections by
// following the links of its output pins. The traversal never recurses, so
// graphs with cycles (loops are common in event graphs) are walked in a
// single pass.
//
// # Node Classification
//
// [Classify] maps a node to one of a closed set of roles:
//
//   - [Event]: an entry point triggered by the runtime
//   - [FunctionEntry]: the entry node of a function graph
//   - [CallFunction]: a call, with the owning class of the callee
//   - [VariableGet], [VariableSet]: member variable access
//   - [Other]: anything else, reported by its raw class name
//
// A node is classified by its own class or the nearest class in its
// superclass chain that has a known role, so a custom event node derived
// from K2Node_Event is still an [Event].
//
// # Malformed Graphs
//
// Snapshots are produced by a live editor and can be inconsistent. Walk
// never fails on bad elements; it skips them and reports a warning:
//
//	DANGLING_LINK            link to a pin or owner that does not exist
//	MALFORMED_GRAPH_ELEMENT  duplicate node ID, bad pin index, a link
//	                         joining two pins of the same direction, or a
//	                         link that is not mirrored by its target
//
// Asymmetric links are kept; every other problem drops the element.
package walker
