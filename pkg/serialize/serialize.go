// Package serialize assembles the canonical document for one artifact.
//
// A [Serializer] reads nothing itself: it receives a host snapshot and
// returns the document, plus warnings for portions it had to skip. Only a
// snapshot without identity (nil, or missing path or name) fails the whole
// artifact; every other problem is confined to the graph, function or
// component it affects.
package serialize

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/bpdoc/pkg/deps"
	"github.com/matzehuels/bpdoc/pkg/document"
	"github.com/matzehuels/bpdoc/pkg/errors"
	"github.com/matzehuels/bpdoc/pkg/host"
	"github.com/matzehuels/bpdoc/pkg/walker"
)

// Serializer converts host snapshots to documents.
type Serializer struct {
	Logger *log.Logger
}

// New returns a Serializer. A nil logger uses log.Default().
func New(logger *log.Logger) *Serializer {
	if logger == nil {
		logger = log.Default()
	}
	return &Serializer{Logger: logger}
}

// Serialize builds the document for a. The returned error is an
// INVALID_ARTIFACT *errors.Error; warnings carry a's path.
func (s *Serializer) Serialize(a *host.Artifact) (*document.Document, []errors.Warning, error) {
	if a == nil {
		return nil, nil, errors.New(errors.ErrCodeInvalidArtifact, "nil artifact")
	}
	if a.Path == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidArtifact, "artifact %q has no path", a.Name)
	}
	if a.Name == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidArtifact, "artifact %s has no name", a.Path)
	}

	b := &build{path: a.Path}
	doc := &document.Document{
		Name:           a.Name,
		Path:           a.Path,
		ParentClass:    a.ParentClass,
		GeneratedClass: a.GeneratedClass,
		Description:    a.Description,
		Interfaces:     a.Interfaces,
		Graphs:         []document.Graph{},
		Variables:      b.variables(a.Variables),
		Functions:      []document.Function{},
		Components:     []document.Component{},
		Dependencies:   deps.Collect(a),
	}

	for i, g := range a.EventGraphs {
		if dg, ok := b.graph(g, "event", i); ok {
			doc.Graphs = append(doc.Graphs, dg)
		}
	}
	for i, g := range a.FunctionGraphs {
		dg, ok := b.graph(g, "function", i)
		if !ok {
			continue
		}
		doc.Graphs = append(doc.Graphs, dg)
		doc.Functions = append(doc.Functions, document.Function{
			Name:       g.Name,
			Parameters: parameters(g),
			Graph:      dg,
		})
	}
	for _, c := range a.Construction {
		b.components(c, &doc.Components)
	}

	for _, w := range b.warnings {
		s.Logger.Debug("serialize warning", "path", a.Path, "warning", w.String())
	}
	return doc, b.warnings, nil
}

type build struct {
	path     string
	warnings []errors.Warning
}

func (b *build) warn(code errors.Code, graph, element, format string, args ...any) {
	b.warnings = append(b.warnings, errors.Warning{
		Code:    code,
		Path:    b.path,
		Graph:   graph,
		Element: element,
		Message: fmt.Sprintf(format, args...),
	})
}

// graph walks g. A nil graph is reported and dropped; a graph the walker
// rejects is kept with its name and no nodes.
func (b *build) graph(g *host.Graph, role string, i int) (document.Graph, bool) {
	if g == nil {
		b.warn(errors.ErrCodeMalformedGraphElement, "", "", "%s graph %d is nil", role, i)
		return document.Graph{}, false
	}
	dg, warnings, err := walker.Walk(g)
	if err != nil {
		b.warn(errors.GetCode(err), g.Name, "", "graph skipped: %s", errors.UserMessage(err))
		return document.Graph{Name: g.Name, Nodes: []document.Node{}}, true
	}
	for _, w := range warnings {
		w.Path = b.path
		b.warnings = append(b.warnings, w)
	}
	return dg, true
}

func (b *build) variables(vars []host.Variable) []document.Variable {
	out := make([]document.Variable, 0, len(vars))
	for _, v := range vars {
		if v.Name == "" {
			b.warn(errors.ErrCodeMalformedGraphElement, "", "", "variable without a name skipped")
			continue
		}
		out = append(out, document.Variable{
			Name:         v.Name,
			Type:         walker.TypeString(v.Type),
			Category:     v.Category,
			IsExposed:    v.ExposeOnSpawn,
			DefaultValue: v.Default,
		})
	}
	return out
}

// parameters returns the unconnected non-exec output pins of the graph's
// first function entry node, in pin order.
func parameters(g *host.Graph) []document.Parameter {
	params := []document.Parameter{}
	for _, n := range g.Nodes {
		if _, ok := walker.Classify(n).(walker.FunctionEntry); !ok {
			continue
		}
		for _, pi := range n.Pins {
			if pi < 0 || pi >= len(g.Pins) {
				continue
			}
			p := g.Pins[pi]
			if p.Direction != host.Output || p.Type.IsExec() || walker.Connected(g, pi) {
				continue
			}
			params = append(params, document.Parameter{Name: p.Name, Type: walker.TypeString(p.Type)})
		}
		break
	}
	return params
}

// components flattens the construction hierarchy depth first, parents
// before children.
func (b *build) components(c *host.ConstructionNode, out *[]document.Component) {
	if c == nil {
		return
	}
	if c.TemplateClass == "" {
		b.warn(errors.ErrCodeMalformedGraphElement, "", c.Name, "component without a template skipped")
	} else {
		*out = append(*out, document.Component{Name: c.Name, Class: c.TemplateClass})
	}
	for _, child := range c.Children {
		b.components(child, out)
	}
}
