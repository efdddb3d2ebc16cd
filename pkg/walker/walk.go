package walker

import (
	"fmt"
	"slices"

	"github.com/matzehuels/bpdoc/pkg/document"
	"github.com/matzehuels/bpdoc/pkg/errors"
	"github.com/matzehuels/bpdoc/pkg/host"
)

// Walk serializes g. Warnings carry the graph name but no artifact path;
// callers fill that in. Walk fails only for a nil graph.
func Walk(g *host.Graph) (document.Graph, []errors.Warning, error) {
	if g == nil {
		return document.Graph{}, nil, errors.New(errors.ErrCodeInvalidArtifact, "nil graph")
	}
	w := &walk{
		g:        g,
		links:    make(map[int][]int),
		reported: make(map[[2]int]bool),
	}
	w.assignIDs()

	out := document.Graph{Name: g.Name, Nodes: make([]document.Node, 0, len(g.Nodes))}
	for i := range g.Nodes {
		out.Nodes = append(out.Nodes, w.node(i))
	}
	return out, w.warnings, nil
}

// Connected reports whether pin pi of g has at least one link that resolves
// to a pin of the opposite direction with an existing owner.
func Connected(g *host.Graph, pi int) bool {
	if g == nil || pi < 0 || pi >= len(g.Pins) {
		return false
	}
	w := &walk{
		g:        g,
		links:    make(map[int][]int),
		reported: make(map[[2]int]bool),
	}
	return len(w.validLinks(pi)) > 0
}

type walk struct {
	g        *host.Graph
	ids      []string
	links    map[int][]int   // pin index -> valid link targets
	reported map[[2]int]bool // link pairs already warned about
	warnings []errors.Warning
}

func (w *walk) warn(code errors.Code, element, format string, args ...any) {
	w.warnings = append(w.warnings, errors.Warning{
		Code:    code,
		Graph:   w.g.Name,
		Element: element,
		Message: fmt.Sprintf(format, args...),
	})
}

// assignIDs derives missing IDs and disambiguates duplicates.
func (w *walk) assignIDs() {
	w.ids = make([]string, len(w.g.Nodes))
	seen := make(map[string]bool, len(w.g.Nodes))
	for i, n := range w.g.Nodes {
		id := n.ID
		if id == "" {
			class := n.Class
			if class == "" {
				class = "Node"
			}
			id = fmt.Sprintf("%s_%d", class, i)
		}
		if seen[id] {
			orig := id
			id = fmt.Sprintf("%s_%d", orig, i)
			for seen[id] {
				id += "_"
			}
			w.warn(errors.ErrCodeMalformedGraphElement, orig,
				"duplicate node id at index %d, renamed to %s", i, id)
		}
		seen[id] = true
		w.ids[i] = id
	}
}

func (w *walk) node(i int) document.Node {
	n := w.g.Nodes[i]
	id := w.ids[i]
	kind := Classify(n)

	title := n.Title
	if title == "" {
		title = kind.TypeName()
	}
	out := document.Node{
		ID:          id,
		Type:        kind.TypeName(),
		Title:       title,
		Category:    n.Category,
		Position:    document.Position{X: n.X, Y: n.Y},
		Pins:        make([]document.Pin, 0, len(n.Pins)),
		Connections: []string{},
	}

	seen := make(map[string]bool)
	for _, pi := range n.Pins {
		if pi < 0 || pi >= len(w.g.Pins) {
			w.warn(errors.ErrCodeMalformedGraphElement, id, "pin index %d out of range", pi)
			continue
		}
		p := w.g.Pins[pi]
		if p.Owner != i {
			w.warn(errors.ErrCodeMalformedGraphElement, id+"."+p.Name,
				"pin %d is owned by node %d", pi, p.Owner)
			continue
		}
		links := w.validLinks(pi)
		out.Pins = append(out.Pins, serializePin(p, len(links) > 0))

		if p.Direction != host.Output {
			continue
		}
		for _, l := range links {
			target := w.ids[w.g.Pins[l].Owner]
			if !seen[target] {
				seen[target] = true
				out.Connections = append(out.Connections, target)
			}
		}
	}
	return out
}

func serializePin(p host.Pin, connected bool) document.Pin {
	display := p.DisplayName
	if display == "" {
		display = p.Name
	}
	out := document.Pin{
		Name:        p.Name,
		DisplayName: display,
		Direction:   p.Direction.String(),
		Type:        TypeString(p.Type),
	}
	if p.Direction == host.Input && !connected {
		out.DefaultValue = p.Default
		if out.DefaultValue == "" {
			out.DefaultValue = p.DefaultObject
		}
	}
	return out
}

// validLinks returns the links of pin pi that resolve to an existing pin of
// the opposite direction with an existing owner. Results are memoized so
// each bad link is reported once even though both ends are visited.
func (w *walk) validLinks(pi int) []int {
	if links, ok := w.links[pi]; ok {
		return links
	}
	p := w.g.Pins[pi]
	element := w.pinElement(pi)
	links := make([]int, 0, len(p.Links))
	for _, l := range p.Links {
		if l < 0 || l >= len(w.g.Pins) {
			w.warn(errors.ErrCodeDanglingLink, element, "link to missing pin %d", l)
			continue
		}
		target := w.g.Pins[l]
		if target.Owner < 0 || target.Owner >= len(w.g.Nodes) {
			w.warn(errors.ErrCodeDanglingLink, element,
				"linked pin %d has missing owner node %d", l, target.Owner)
			continue
		}
		if target.Direction == p.Direction {
			if w.firstReport(pi, l) {
				w.warn(errors.ErrCodeMalformedGraphElement, element,
					"link to pin %d joins two %s pins", l, p.Direction)
			}
			continue
		}
		if !slices.Contains(target.Links, pi) && w.firstReport(pi, l) {
			w.warn(errors.ErrCodeMalformedGraphElement, element,
				"link to pin %d is not mirrored by its target", l)
		}
		links = append(links, l)
	}
	w.links[pi] = links
	return links
}

func (w *walk) firstReport(a, b int) bool {
	key := [2]int{min(a, b), max(a, b)}
	if w.reported[key] {
		return false
	}
	w.reported[key] = true
	return true
}

func (w *walk) pinElement(pi int) string {
	p := w.g.Pins[pi]
	if p.Owner >= 0 && p.Owner < len(w.ids) {
		return w.ids[p.Owner] + "." + p.Name
	}
	return p.Name
}
