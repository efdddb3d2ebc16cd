package host

import (
	"encoding/json"
	"fmt"
)

// DefaultKind is the asset class bpdoc exports.
const DefaultKind = "Blueprint"

// Direction is the direction of a pin.
type Direction int

const (
	// Input pins receive data or execution.
	Input Direction = iota
	// Output pins produce data or execution.
	Output
)

// String returns "input" or "output".
func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "input", "in", "":
		*d = Input
	case "output", "out":
		*d = Output
	default:
		return fmt.Errorf("unknown pin direction %q", b)
	}
	return nil
}

// Well-known pin categories.
const (
	CategoryExec       = "exec"
	CategoryObject     = "object"
	CategoryClass      = "class"
	CategorySoftObject = "softobject"
	CategorySoftClass  = "softclass"
	CategoryInterface  = "interface"
)

// PinType describes the type carried by a pin or variable.
type PinType struct {
	Category          string `json:"category"`
	SubCategoryObject string `json:"sub_category_object,omitempty"` // Name of the struct/class/enum, if any
	IsArray           bool   `json:"is_array,omitempty"`
}

// IsExec reports whether the pin carries execution flow rather than data.
func (t PinType) IsExec() bool { return t.Category == CategoryExec }

// IsObjectReference reports whether values of this type reference another object.
func (t PinType) IsObjectReference() bool {
	switch t.Category {
	case CategoryObject, CategoryClass, CategorySoftObject, CategorySoftClass, CategoryInterface:
		return true
	}
	return false
}

// Pin is one connection point of a node. Pins live in [Graph.Pins] and refer
// to their owning node and linked pins by index.
type Pin struct {
	Owner         int       `json:"owner"` // Index into Graph.Nodes
	Name          string    `json:"name"`
	DisplayName   string    `json:"display_name,omitempty"`
	Direction     Direction `json:"direction"`
	Type          PinType   `json:"type"`
	Default       string    `json:"default,omitempty"`
	DefaultObject string    `json:"default_object,omitempty"` // Path of a referenced object default
	Links         []int     `json:"links,omitempty"`          // Indices into Graph.Pins
}

// Node is one unit of behavior in a graph.
type Node struct {
	ID       string   `json:"id"`
	Class    string   `json:"class"`           // Concrete node class, e.g. "K2Node_CallFunction"
	Super    []string `json:"super,omitempty"` // Superclass chain, nearest first
	Title    string   `json:"title,omitempty"`
	Category string   `json:"category,omitempty"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Pins     []int    `json:"pins,omitempty"` // Indices into Graph.Pins, declared order

	// Role details, filled in by the editor for the node classes that carry them.
	FunctionName  string `json:"function_name,omitempty"`
	FunctionOwner string `json:"function_owner,omitempty"` // Path of the class that owns the called function
	VariableName  string `json:"variable_name,omitempty"`
}

// Graph is an arena of nodes and pins.
type Graph struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
	Pins  []Pin  `json:"pins"`
}

// Variable is a member variable declared on an artifact.
type Variable struct {
	Name          string  `json:"name"`
	Type          PinType `json:"type"`
	Category      string  `json:"category,omitempty"`
	Default       string  `json:"default,omitempty"`
	ExposeOnSpawn bool    `json:"expose_on_spawn,omitempty"`
}

// ConstructionNode is one entry of an artifact's construction hierarchy.
type ConstructionNode struct {
	Name          string              `json:"name"`
	TemplateClass string              `json:"template_class,omitempty"` // Empty when the component template is missing
	Children      []*ConstructionNode `json:"children,omitempty"`
}

// Artifact is a read-only snapshot of one exportable unit.
type Artifact struct {
	Path           string              `json:"path"`
	Name           string              `json:"name"`
	Class          string              `json:"class"`
	ParentClass    string              `json:"parent_class,omitempty"`
	GeneratedClass string              `json:"generated_class,omitempty"`
	Description    string              `json:"description,omitempty"`
	Interfaces     []string            `json:"interfaces,omitempty"`
	EventGraphs    []*Graph            `json:"event_graphs,omitempty"`
	FunctionGraphs []*Graph            `json:"function_graphs,omitempty"`
	Variables      []Variable          `json:"variables,omitempty"`
	Construction   []*ConstructionNode `json:"construction,omitempty"`
}

// Ref returns the artifact's reference.
func (a *Artifact) Ref() ArtifactRef {
	return ArtifactRef{Path: a.Path, Name: a.Name, Class: a.Class}
}

// Clone returns a deep copy, so a stored snapshot cannot be mutated through
// a value handed to a reader.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		// Artifact contains only JSON-safe fields.
		panic(fmt.Sprintf("host: clone artifact %s: %v", a.Path, err))
	}
	var out Artifact
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("host: clone artifact %s: %v", a.Path, err))
	}
	return &out
}

// ArtifactRef identifies an artifact without loading it.
type ArtifactRef struct {
	Path  string
	Name  string
	Class string
}

// Event is delivered to subscription handlers.
type Event struct {
	Path  string
	Class string
}
