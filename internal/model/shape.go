// Package model contains the in-memory shape graph that code generation runs over.
package model

import "strings"

// ShapeID identifies a shape. Top-level shapes use "namespace#Name", member
// shapes use "namespace#Name$member".
type ShapeID string

// NewShapeID builds a top-level shape ID.
func NewShapeID(namespace, name string) ShapeID {
	return ShapeID(namespace + "#" + name)
}

// WithMember returns the ID of the member named member inside id.
func (id ShapeID) WithMember(member string) ShapeID {
	return ShapeID(string(id) + "$" + member)
}

// Namespace returns the part before '#'.
func (id ShapeID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), "#")
	return ns
}

// Name returns the shape name without namespace or member.
func (id ShapeID) Name() string {
	_, rest, found := strings.Cut(string(id), "#")
	if !found {
		rest = string(id)
	}
	name, _, _ := strings.Cut(rest, "$")
	return name
}

// Member returns the member name, or "" for top-level shapes.
func (id ShapeID) Member() string {
	_, member, _ := strings.Cut(string(id), "$")
	return member
}

// Container returns the ID of the shape owning this member ID.
func (id ShapeID) Container() ShapeID {
	container, _, _ := strings.Cut(string(id), "$")
	return ShapeID(container)
}

func (id ShapeID) String() string {
	return string(id)
}

// Kind is the closed set of shape variants.
type Kind int

const (
	KindStructure Kind = iota
	KindCollection
	KindMap
	KindString
	KindInteger // byte, short, integer and long
	KindUnion
	KindMember
	KindOther // boolean, float, double, blob, timestamp, document
)

// String returns the string representation of the shape kind.
func (k Kind) String() string {
	switch k {
	case KindStructure:
		return "structure"
	case KindCollection:
		return "collection"
	case KindMap:
		return "map"
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindUnion:
		return "union"
	case KindMember:
		return "member"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Scalar refines simple shape kinds.
type Scalar int

const (
	ScalarNone Scalar = iota
	ScalarString
	ScalarByte
	ScalarShort
	ScalarInteger
	ScalarLong
	ScalarBoolean
	ScalarFloat
	ScalarDouble
	ScalarBlob
	ScalarTimestamp
	ScalarDocument
)

// KindOf returns the shape kind a scalar belongs to.
func (s Scalar) KindOf() Kind {
	switch s {
	case ScalarString:
		return KindString
	case ScalarByte, ScalarShort, ScalarInteger, ScalarLong:
		return KindInteger
	default:
		return KindOther
	}
}

// Shape is a node in the model graph.
type Shape struct {
	ID     ShapeID
	Kind   Kind
	Scalar Scalar
	Traits Traits
	Doc    string

	// Members holds member shape IDs in declaration order. Collections have a
	// single "member", maps have "key" then "value".
	Members []ShapeID

	// Container and Target are set on member shapes only.
	Container ShapeID
	Target    ShapeID
}

// Name returns the shape's name; for members it is the member name.
func (s *Shape) Name() string {
	if s.Kind == KindMember {
		return s.ID.Member()
	}
	return s.ID.Name()
}

// IsMember reports whether the shape is a member edge.
func (s *Shape) IsMember() bool {
	return s.Kind == KindMember
}

// Service is a named group of operations.
type Service struct {
	Name       string
	Doc        string
	Operations []Operation
}

// Operation is a single service call.
type Operation struct {
	Name   string
	Doc    string
	Input  ShapeID
	Output ShapeID
}
