package model

import (
	"fmt"
	"strings"
)

// TraitKind names a trait that can be attached to a shape.
type TraitKind int

const (
	TraitLength TraitKind = iota
	TraitPattern
	TraitRange
	TraitUniqueItems
	TraitEnum
	TraitRequired
	TraitStreaming
	TraitDefault
)

func (k TraitKind) String() string {
	switch k {
	case TraitLength:
		return "length"
	case TraitPattern:
		return "pattern"
	case TraitRange:
		return "range"
	case TraitUniqueItems:
		return "uniqueItems"
	case TraitEnum:
		return "enum"
	case TraitRequired:
		return "required"
	case TraitStreaming:
		return "streaming"
	case TraitDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Length bounds the length of strings, collections and maps. Both bounds are inclusive.
type Length struct {
	Min *int64
	Max *int64
}

// Describe renders the bound the way constraint violation messages state it.
func (l Length) Describe() string {
	return describeBounds("have length", l.Min, l.Max)
}

// Pattern restricts strings to those matching Regex.
type Pattern struct {
	Regex string
}

// Range bounds integer values. Both bounds are inclusive.
type Range struct {
	Min *int64
	Max *int64
}

// Describe renders the bound the way constraint violation messages state it.
func (r Range) Describe() string {
	return describeBounds("be", r.Min, r.Max)
}

// EnumValue is one member of an enum trait.
type EnumValue struct {
	Name  string
	Value string
	Doc   string
}

// Enum restricts strings to a fixed set of values.
type Enum struct {
	Values []EnumValue
}

// Literals returns the allowed values in declaration order.
func (e Enum) Literals() []string {
	out := make([]string, len(e.Values))
	for i, v := range e.Values {
		out[i] = v.Value
	}
	return out
}

// Traits is the set of traits attached to a shape.
type Traits struct {
	Length      *Length
	Pattern     *Pattern
	Range       *Range
	UniqueItems bool
	Enum        *Enum
	Required    bool
	Streaming   bool
	Default     *string
}

// Has reports whether the trait of the given kind is present.
func (t Traits) Has(kind TraitKind) bool {
	switch kind {
	case TraitLength:
		return t.Length != nil
	case TraitPattern:
		return t.Pattern != nil
	case TraitRange:
		return t.Range != nil
	case TraitUniqueItems:
		return t.UniqueItems
	case TraitEnum:
		return t.Enum != nil
	case TraitRequired:
		return t.Required
	case TraitStreaming:
		return t.Streaming
	case TraitDefault:
		return t.Default != nil
	default:
		return false
	}
}

// HasAny reports whether any of the given kinds is present.
func (t Traits) HasAny(kinds ...TraitKind) bool {
	for _, k := range kinds {
		if t.Has(k) {
			return true
		}
	}
	return false
}

// Kinds lists the present traits in TraitKind order.
func (t Traits) Kinds() []TraitKind {
	var kinds []TraitKind
	for k := TraitLength; k <= TraitDefault; k++ {
		if t.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Int64 returns a pointer to v, for building Length and Range literals.
func Int64(v int64) *int64 {
	return &v
}

func describeBounds(verb string, min, max *int64) string {
	var b strings.Builder
	b.WriteString("member must ")
	b.WriteString(verb)
	switch {
	case min != nil && max != nil:
		fmt.Fprintf(&b, " between %d and %d, inclusive", *min, *max)
	case min != nil:
		fmt.Fprintf(&b, " greater than or equal to %d", *min)
	case max != nil:
		fmt.Fprintf(&b, " less than or equal to %d", *max)
	}
	return b.String()
}
