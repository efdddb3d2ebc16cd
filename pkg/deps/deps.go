// Package deps collects the external references of an artifact.
//
// The scan is best effort: it records what the graphs name directly and does
// not resolve reachability or transitive references. Two kinds of reference
// are recorded:
//
//   - the owning class of every called function
//   - the default object of every object-typed pin (object, class,
//     softobject, softclass and interface categories)
//
// Event graphs are scanned before function graphs, each in declaration
// order, nodes and pins in arena order. The result is an ordered set: each
// path appears once, at the position of its first occurrence.
package deps

import (
	"github.com/matzehuels/bpdoc/pkg/host"
	"github.com/matzehuels/bpdoc/pkg/walker"
)

// Collect returns the deduplicated references of a, in first-occurrence
// order. It never returns nil.
func Collect(a *host.Artifact) []string {
	c := collector{seen: make(map[string]bool), out: []string{}}
	if a == nil {
		return c.out
	}
	for _, g := range a.EventGraphs {
		c.graph(g)
	}
	for _, g := range a.FunctionGraphs {
		c.graph(g)
	}
	return c.out
}

type collector struct {
	seen map[string]bool
	out  []string
}

func (c *collector) add(path string) {
	if path == "" || c.seen[path] {
		return
	}
	c.seen[path] = true
	c.out = append(c.out, path)
}

func (c *collector) graph(g *host.Graph) {
	if g == nil {
		return
	}
	for _, n := range g.Nodes {
		if call, ok := walker.Classify(n).(walker.CallFunction); ok {
			c.add(call.Owner)
		}
		for _, pi := range n.Pins {
			if pi < 0 || pi >= len(g.Pins) {
				continue
			}
			if p := g.Pins[pi]; p.Type.IsObjectReference() {
				c.add(p.DefaultObject)
			}
		}
	}
}
