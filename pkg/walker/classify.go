package walker

import "github.com/matzehuels/bpdoc/pkg/host"

// Known node classes.
const (
	ClassEvent         = "K2Node_Event"
	ClassFunctionEntry = "K2Node_FunctionEntry"
	ClassCallFunction  = "K2Node_CallFunction"
	ClassVariableGet   = "K2Node_VariableGet"
	ClassVariableSet   = "K2Node_VariableSet"
)

// Kind is the role of a node. The set of implementations is closed.
type Kind interface {
	// TypeName is the node's "type" in the document.
	TypeName() string
	kind()
}

// Event is an entry point triggered by the runtime.
type Event struct{}

// FunctionEntry is the entry node of a function graph.
type FunctionEntry struct{}

// CallFunction calls Function on the class at path Owner.
type CallFunction struct {
	Owner    string
	Function string
}

// VariableGet reads a member variable.
type VariableGet struct{ Variable string }

// VariableSet writes a member variable.
type VariableSet struct{ Variable string }

// Other is a node without a known role.
type Other struct{ Class string }

func (Event) TypeName() string         { return "Event" }
func (FunctionEntry) TypeName() string { return "FunctionEntry" }
func (CallFunction) TypeName() string  { return "CallFunction" }
func (VariableGet) TypeName() string   { return "VariableGet" }
func (VariableSet) TypeName() string   { return "VariableSet" }

// TypeName returns the raw class name, or "Unknown" for an empty class.
func (o Other) TypeName() string {
	if o.Class == "" {
		return "Unknown"
	}
	return o.Class
}

func (Event) kind()         {}
func (FunctionEntry) kind() {}
func (CallFunction) kind()  {}
func (VariableGet) kind()   {}
func (VariableSet) kind()   {}
func (Other) kind()         {}

// Classify returns the role of n. The node's class is checked first, then its
// superclass chain from nearest to furthest.
func Classify(n host.Node) Kind {
	chain := append([]string{n.Class}, n.Super...)
	for _, c := range chain {
		switch c {
		case ClassEvent:
			return Event{}
		case ClassFunctionEntry:
			return FunctionEntry{}
		case ClassCallFunction:
			return CallFunction{Owner: n.FunctionOwner, Function: n.FunctionName}
		case ClassVariableGet:
			return VariableGet{Variable: n.VariableName}
		case ClassVariableSet:
			return VariableSet{Variable: n.VariableName}
		}
	}
	return Other{Class: n.Class}
}

// TypeString renders a pin type as Category, Category<Sub>, or either form
// wrapped in Array<...> for collections.
func TypeString(t host.PinType) string {
	s := t.Category
	if t.SubCategoryObject != "" {
		s += "<" + t.SubCategoryObject + ">"
	}
	if t.IsArray {
		s = "Array<" + s + ">"
	}
	return s
}
