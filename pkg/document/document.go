package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
)

// IndexFile is the output path of the index document.
const IndexFile = "index.json"

// =============================================================================
// Document Serialization API
// =============================================================================

// Marshal encodes a document canonically. The input is not modified.
func Marshal(d *Document) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("marshal document: nil document")
	}
	var buf bytes.Buffer
	if err := encode(&buf, normalized(*d)); err != nil {
		return nil, fmt.Errorf("marshal document %s: %w", d.Path, err)
	}
	return buf.Bytes(), nil
}

// Write encodes a document canonically to w.
func Write(d *Document, w io.Writer) error {
	data, err := Marshal(d)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Unmarshal decodes a document.
func Unmarshal(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &d, nil
}

// =============================================================================
// Index Serialization API
// =============================================================================

// NewIndex builds an index from entries, sorted by path.
func NewIndex(entries []IndexEntry) Index {
	sorted := slices.Clone(entries)
	if sorted == nil {
		sorted = []IndexEntry{}
	}
	slices.SortFunc(sorted, func(a, b IndexEntry) int {
		return strings.Compare(a.Path, b.Path)
	})
	return Index{Count: len(sorted), Artifacts: sorted}
}

// EntryFor summarises a document for the index.
func EntryFor(d *Document) IndexEntry {
	return IndexEntry{
		Name:         d.Name,
		Path:         d.Path,
		Graphs:       len(d.Graphs),
		Nodes:        d.NodeCount(),
		Variables:    len(d.Variables),
		Functions:    len(d.Functions),
		Components:   len(d.Components),
		Dependencies: len(d.Dependencies),
	}
}

// MarshalIndex encodes an index canonically.
func MarshalIndex(idx Index) ([]byte, error) {
	idx = NewIndex(idx.Artifacts)
	var buf bytes.Buffer
	if err := encode(&buf, idx); err != nil {
		return nil, fmt.Errorf("marshal index: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalIndex decodes an index.
func UnmarshalIndex(data []byte) (Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, fmt.Errorf("decode index: %w", err)
	}
	return NewIndex(idx.Artifacts), nil
}

// =============================================================================
// Output Paths
// =============================================================================

// MountsDir holds documents of artifacts outside the /Game mount.
const MountsDir = "_mounts"

// OutputPath maps an artifact path to the relative location of its document.
// A leading "/Game/" mount is stripped; any other mount keeps its name under
// MountsDir. An object suffix such as ".BP_Door" is dropped and ".json" is
// appended.
func OutputPath(artifactPath string) string {
	p := artifactPath
	switch {
	case strings.HasPrefix(p, "/Game/"):
		p = strings.TrimPrefix(p, "/Game/")
	case strings.HasPrefix(p, "/"):
		p = MountsDir + p
	}
	base := p
	dir := ""
	if i := strings.LastIndex(p, "/"); i >= 0 {
		dir, base = p[:i+1], p[i+1:]
	}
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	return dir + base + ".json"
}

// =============================================================================
// Internal Implementation
// =============================================================================

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// normalized returns a copy of d with every nil list replaced by an empty one.
func normalized(d Document) Document {
	d.Graphs = mapSlice(d.Graphs, normalizeGraph)
	d.Variables = nonNil(d.Variables)
	d.Functions = mapSlice(d.Functions, func(f Function) Function {
		f.Parameters = nonNil(f.Parameters)
		f.Graph = normalizeGraph(f.Graph)
		return f
	})
	d.Components = nonNil(d.Components)
	d.Dependencies = nonNil(d.Dependencies)
	return d
}

func normalizeGraph(g Graph) Graph {
	g.Nodes = mapSlice(g.Nodes, func(n Node) Node {
		n.Pins = nonNil(n.Pins)
		n.Connections = nonNil(n.Connections)
		return n
	})
	return g
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func mapSlice[T any](s []T, fn func(T) T) []T {
	out := make([]T, len(s))
	for i, v := range s {
		out[i] = fn(v)
	}
	return out
}
