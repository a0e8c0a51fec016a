// Package endpoint generates endpoint resolution code from a rule set: the
// parameter record and its builder, the rule resolver, the helper library the
// resolver calls and the rule set's test cases.
package endpoint

import (
	"fmt"
	"strconv"

	"github.com/okra-platform/shapegen/internal/symbols"
)

// ValueKind is the type of a literal value in a rule set.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueList
	ValueMap
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueBool:
		return "boolean"
	case ValueInt:
		return "integer"
	case ValueFloat:
		return "float"
	case ValueList:
		return "list"
	case ValueMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a literal from a rule set: a parameter default, a test case input
// or an endpoint property.
type Value struct {
	Kind   ValueKind
	String string
	Bool   bool
	Int    int64
	Float  float64
	List   []Value
	// Entries keeps map entries in document order.
	Entries []Entry
}

// Entry is one key of a map value.
type Entry struct {
	Key   string
	Value Value
}

// StringValue returns a string literal.
func StringValue(s string) Value {
	return Value{Kind: ValueString, String: s}
}

// BoolValue returns a boolean literal.
func BoolValue(b bool) Value {
	return Value{Kind: ValueBool, Bool: b}
}

// Literal renders v as a Go expression. Maps and lists become map[string]any
// and []any composite literals.
func (v Value) Literal() string {
	switch v.Kind {
	case ValueString:
		return strconv.Quote(v.String)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		return "float64(" + strconv.FormatFloat(v.Float, 'g', -1, 64) + ")"
	case ValueList:
		out := "[]any{"
		for i, item := range v.List {
			if i > 0 {
				out += ", "
			}
			out += item.Literal()
		}
		return out + "}"
	case ValueMap:
		out := "map[string]any{"
		for i, e := range v.Entries {
			if i > 0 {
				out += ", "
			}
			out += strconv.Quote(e.Key) + ": " + e.Value.Literal()
		}
		return out + "}"
	default:
		panic(fmt.Sprintf("unreachable value kind %s", v.Kind))
	}
}

// Display renders v the way it appears in documentation.
func (v Value) Display() string {
	switch v.Kind {
	case ValueString:
		return v.String
	default:
		return v.Literal()
	}
}

// Parameter is a named, typed input to endpoint resolution.
type Parameter struct {
	Name          string
	Type          symbols.ScalarTag
	Required      bool
	Default       *Value
	Documentation string
	// BuiltIn names the well-known setting that populates the parameter,
	// e.g. "SDK::Endpoint".
	BuiltIn string
}

// GoType returns the Go type of the parameter's value.
func (p Parameter) GoType() string {
	d, err := symbols.ResolveScalarType(p.Type)
	if err != nil {
		panic(fmt.Sprintf("parameter %s has unchecked type %q", p.Name, p.Type))
	}
	return d.Name
}

// valueKind returns the literal kind the parameter accepts.
func (p Parameter) valueKind() ValueKind {
	if p.Type == symbols.TagBoolean {
		return ValueBool
	}
	return ValueString
}

// Optional reports whether the parameter may be unset after Build.
func (p Parameter) Optional() bool {
	return !p.Required
}

// check validates the parameter's type tag and default.
func (p *Parameter) check() error {
	d, err := symbols.ResolveScalarType(p.Type)
	if err != nil {
		return fmt.Errorf("parameter %q: %w", p.Name, err)
	}
	if d.Name == "bool" {
		p.Type = symbols.TagBoolean
	} else {
		p.Type = symbols.TagString
	}
	if p.Default != nil && p.Default.Kind != p.valueKind() {
		return fmt.Errorf("parameter %q: default %s is a %s but the parameter is a %s",
			p.Name, p.Default.Literal(), p.Default.Kind, p.valueKind())
	}
	return nil
}
