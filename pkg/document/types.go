package document

// =============================================================================
// Document
// =============================================================================

// Document is the canonical export of one artifact.
type Document struct {
	Name           string      `json:"name" bson:"name"`
	Path           string      `json:"path" bson:"path"`
	ParentClass    string      `json:"parent_class,omitempty" bson:"parent_class,omitempty"`
	GeneratedClass string      `json:"generated_class,omitempty" bson:"generated_class,omitempty"`
	Description    string      `json:"description,omitempty" bson:"description,omitempty"`
	Interfaces     []string    `json:"interfaces,omitempty" bson:"interfaces,omitempty"`
	Graphs         []Graph     `json:"graphs" bson:"graphs"`
	Variables      []Variable  `json:"variables" bson:"variables"`
	Functions      []Function  `json:"functions" bson:"functions"`
	Components     []Component `json:"components" bson:"components"`
	Dependencies   []string    `json:"dependencies" bson:"dependencies"`
}

// NodeCount returns the number of nodes across all graphs.
func (d *Document) NodeCount() int {
	n := 0
	for _, g := range d.Graphs {
		n += len(g.Nodes)
	}
	return n
}

// =============================================================================
// Graph Elements
// =============================================================================

// Graph is one serialized node graph.
type Graph struct {
	Name  string `json:"name" bson:"name"`
	Nodes []Node `json:"nodes" bson:"nodes"`
}

// Node is one serialized graph node.
type Node struct {
	ID          string   `json:"id" bson:"id"`
	Type        string   `json:"type" bson:"type"` // Role name or raw node class
	Title       string   `json:"title" bson:"title"`
	Category    string   `json:"category" bson:"category"`
	Position    Position `json:"position" bson:"position"`
	Pins        []Pin    `json:"pins" bson:"pins"`
	Connections []string `json:"connections" bson:"connections"` // Downstream node IDs, first occurrence order
}

// Position is a node's editor coordinate.
type Position struct {
	X int `json:"x" bson:"x"`
	Y int `json:"y" bson:"y"`
}

// Pin is one serialized pin.
type Pin struct {
	Name         string `json:"name" bson:"name"`
	DisplayName  string `json:"display_name" bson:"display_name"`
	Direction    string `json:"direction" bson:"direction"` // "input" or "output"
	Type         string `json:"type" bson:"type"`
	DefaultValue string `json:"default_value,omitempty" bson:"default_value,omitempty"`
}

// =============================================================================
// Members
// =============================================================================

// Variable is a member variable.
type Variable struct {
	Name         string `json:"name" bson:"name"`
	Type         string `json:"type" bson:"type"`
	Category     string `json:"category" bson:"category"`
	IsExposed    bool   `json:"is_exposed" bson:"is_exposed"`
	DefaultValue string `json:"default_value,omitempty" bson:"default_value,omitempty"`
}

// Function is a user-defined function with its body graph.
type Function struct {
	Name       string      `json:"name" bson:"name"`
	Parameters []Parameter `json:"parameters" bson:"parameters"`
	Graph      Graph       `json:"graph" bson:"graph"`
}

// Parameter is a function input.
type Parameter struct {
	Name string `json:"name" bson:"name"`
	Type string `json:"type" bson:"type"`
}

// Component is one entry of the flattened construction hierarchy.
type Component struct {
	Name  string `json:"name" bson:"name"`
	Class string `json:"class" bson:"class"`
}

// =============================================================================
// Index
// =============================================================================

// Index lists every exported document.
type Index struct {
	Count     int          `json:"count" bson:"count"`
	Artifacts []IndexEntry `json:"artifacts" bson:"artifacts"`
}

// IndexEntry summarises one exported document.
type IndexEntry struct {
	Name         string `json:"name" bson:"name"`
	Path         string `json:"path" bson:"path"`
	Graphs       int    `json:"graphs" bson:"graphs"`
	Nodes        int    `json:"nodes" bson:"nodes"`
	Variables    int    `json:"variables" bson:"variables"`
	Functions    int    `json:"functions" bson:"functions"`
	Components   int    `json:"components" bson:"components"`
	Dependencies int    `json:"dependencies" bson:"dependencies"`
}
