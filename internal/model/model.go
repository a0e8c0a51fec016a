package model

import (
	"errors"
	"fmt"
)

// PreludeNamespace holds the built-in simple shapes every model can reference.
const PreludeNamespace = "prelude"

// Prelude shape IDs.
var (
	PreludeString    = NewShapeID(PreludeNamespace, "String")
	PreludeByte      = NewShapeID(PreludeNamespace, "Byte")
	PreludeShort     = NewShapeID(PreludeNamespace, "Short")
	PreludeInteger   = NewShapeID(PreludeNamespace, "Integer")
	PreludeLong      = NewShapeID(PreludeNamespace, "Long")
	PreludeBoolean   = NewShapeID(PreludeNamespace, "Boolean")
	PreludeFloat     = NewShapeID(PreludeNamespace, "Float")
	PreludeDouble    = NewShapeID(PreludeNamespace, "Double")
	PreludeBlob      = NewShapeID(PreludeNamespace, "Blob")
	PreludeTimestamp = NewShapeID(PreludeNamespace, "Timestamp")
	PreludeDocument  = NewShapeID(PreludeNamespace, "Document")
)

var preludeScalars = []struct {
	id     ShapeID
	scalar Scalar
}{
	{PreludeString, ScalarString},
	{PreludeByte, ScalarByte},
	{PreludeShort, ScalarShort},
	{PreludeInteger, ScalarInteger},
	{PreludeLong, ScalarLong},
	{PreludeBoolean, ScalarBoolean},
	{PreludeFloat, ScalarFloat},
	{PreludeDouble, ScalarDouble},
	{PreludeBlob, ScalarBlob},
	{PreludeTimestamp, ScalarTimestamp},
	{PreludeDocument, ScalarDocument},
}

// ShapeError is a fatal generation error tied to a shape.
type ShapeError struct {
	Shape  ShapeID
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape %s: %s", e.Shape, e.Reason)
}

// Model is an immutable arena of shapes plus the services that use them.
type Model struct {
	Namespace string
	Version   string
	Services  []Service

	shapes map[ShapeID]*Shape
	order  []ShapeID
}

// Shape returns the shape with the given ID.
func (m *Model) Shape(id ShapeID) (*Shape, bool) {
	s, ok := m.shapes[id]
	return s, ok
}

// Expect returns the shape with the given ID. Build guarantees every edge
// resolves, so a miss here is a programming error.
func (m *Model) Expect(id ShapeID) *Shape {
	s, ok := m.shapes[id]
	if !ok {
		panic(fmt.Sprintf("model: shape %s not found", id))
	}
	return s
}

// Shapes returns every shape in insertion order, prelude first.
func (m *Model) Shapes() []*Shape {
	out := make([]*Shape, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.shapes[id])
	}
	return out
}

// NamespaceShapes returns the non-prelude, non-member shapes in insertion order.
func (m *Model) NamespaceShapes() []*Shape {
	var out []*Shape
	for _, id := range m.order {
		s := m.shapes[id]
		if s.Kind == KindMember || id.Namespace() == PreludeNamespace {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Members returns the member shapes of a container in declaration order.
func (m *Model) Members(s *Shape) []*Shape {
	out := make([]*Shape, 0, len(s.Members))
	for _, id := range s.Members {
		out = append(out, m.Expect(id))
	}
	return out
}

// Target returns the shape a member points to.
func (m *Model) Target(member *Shape) *Shape {
	return m.Expect(member.Target)
}

// MemberTarget returns the target of a collection's single member.
func (m *Model) MemberTarget(collection *Shape) *Shape {
	return m.Target(m.Expect(collection.Members[0]))
}

// MemberSpec describes a member while building a container shape.
type MemberSpec struct {
	Name   string
	Target ShapeID
	Traits Traits
	Doc    string
}

// Builder assembles a Model. Errors are collected and reported by Build.
type Builder struct {
	namespace string
	version   string
	shapes    map[ShapeID]*Shape
	order     []ShapeID
	services  []Service
	errs      []error
}

// NewBuilder creates a builder whose shapes live in namespace. Prelude shapes
// are always present.
func NewBuilder(namespace string) *Builder {
	b := &Builder{
		namespace: namespace,
		shapes:    make(map[ShapeID]*Shape),
	}
	for _, p := range preludeScalars {
		b.add(&Shape{ID: p.id, Kind: p.scalar.KindOf(), Scalar: p.scalar})
	}
	return b
}

// Namespace returns the builder's namespace.
func (b *Builder) Namespace() string {
	return b.namespace
}

// SetVersion records the model version.
func (b *Builder) SetVersion(version string) *Builder {
	b.version = version
	return b
}

// ID returns the ID a shape named name gets in this builder's namespace.
func (b *Builder) ID(name string) ShapeID {
	return NewShapeID(b.namespace, name)
}

// Has reports whether a shape with the given ID was already added.
func (b *Builder) Has(id ShapeID) bool {
	_, ok := b.shapes[id]
	return ok
}

// Scalar adds a simple shape.
func (b *Builder) Scalar(name string, scalar Scalar, traits Traits) ShapeID {
	id := b.ID(name)
	b.add(&Shape{ID: id, Kind: scalar.KindOf(), Scalar: scalar, Traits: traits})
	return id
}

// String adds a string shape.
func (b *Builder) String(name string, traits Traits) ShapeID {
	return b.Scalar(name, ScalarString, traits)
}

// Integer adds an integer shape.
func (b *Builder) Integer(name string, traits Traits) ShapeID {
	return b.Scalar(name, ScalarInteger, traits)
}

// List adds a collection shape whose member targets member.
func (b *Builder) List(name string, member MemberSpec, traits Traits) ShapeID {
	if member.Name == "" {
		member.Name = "member"
	}
	return b.container(name, KindCollection, traits, "", member)
}

// Map adds a map shape.
func (b *Builder) Map(name string, key, value ShapeID, traits Traits) ShapeID {
	return b.container(name, KindMap, traits, "",
		MemberSpec{Name: "key", Target: key},
		MemberSpec{Name: "value", Target: value})
}

// Structure adds a structure shape.
func (b *Builder) Structure(name, doc string, members ...MemberSpec) ShapeID {
	return b.container(name, KindStructure, Traits{}, doc, members...)
}

// Union adds a union shape.
func (b *Builder) Union(name, doc string, members ...MemberSpec) ShapeID {
	return b.container(name, KindUnion, Traits{}, doc, members...)
}

// Shape adds a fully formed shape. Member shapes referenced by s.Members must
// be added separately.
func (b *Builder) Shape(s *Shape) ShapeID {
	b.add(s)
	return s.ID
}

// Service records a service.
func (b *Builder) Service(svc Service) *Builder {
	b.services = append(b.services, svc)
	return b
}

// Document sets the doc string of an already added shape.
func (b *Builder) Document(id ShapeID, doc string) {
	if s, ok := b.shapes[id]; ok {
		s.Doc = doc
	}
}

func (b *Builder) container(name string, kind Kind, traits Traits, doc string, members ...MemberSpec) ShapeID {
	id := b.ID(name)
	s := &Shape{ID: id, Kind: kind, Traits: traits, Doc: doc}
	if !b.add(s) {
		return id
	}
	seen := make(map[string]bool, len(members))
	for _, spec := range members {
		if seen[spec.Name] {
			b.errs = append(b.errs, &ShapeError{Shape: id, Reason: fmt.Sprintf("duplicate member %q", spec.Name)})
			continue
		}
		seen[spec.Name] = true
		memberID := id.WithMember(spec.Name)
		b.add(&Shape{
			ID:        memberID,
			Kind:      KindMember,
			Traits:    spec.Traits,
			Doc:       spec.Doc,
			Container: id,
			Target:    spec.Target,
		})
		s.Members = append(s.Members, memberID)
	}
	return id
}

func (b *Builder) add(s *Shape) bool {
	if _, exists := b.shapes[s.ID]; exists {
		b.errs = append(b.errs, &ShapeError{Shape: s.ID, Reason: "shape defined more than once"})
		return false
	}
	b.shapes[s.ID] = s
	b.order = append(b.order, s.ID)
	return true
}

// Build validates every edge and returns the immutable model.
func (b *Builder) Build() (*Model, error) {
	errs := append([]error(nil), b.errs...)
	for _, id := range b.order {
		s := b.shapes[id]
		switch s.Kind {
		case KindMember:
			if _, ok := b.shapes[s.Target]; !ok {
				errs = append(errs, &ShapeError{Shape: id, Reason: fmt.Sprintf("targets unknown shape %s", s.Target)})
			}
		case KindCollection:
			if len(s.Members) != 1 {
				errs = append(errs, &ShapeError{Shape: id, Reason: "collection must have exactly one member"})
			}
		case KindMap:
			if len(s.Members) != 2 {
				errs = append(errs, &ShapeError{Shape: id, Reason: "map must have a key and a value member"})
			}
		}
	}
	for _, svc := range b.services {
		for _, op := range svc.Operations {
			for _, ref := range []ShapeID{op.Input, op.Output} {
				if ref == "" {
					continue
				}
				if _, ok := b.shapes[ref]; !ok {
					errs = append(errs, fmt.Errorf("service %s operation %s: unknown shape %s", svc.Name, op.Name, ref))
				}
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Model{
		Namespace: b.namespace,
		Version:   b.version,
		Services:  b.services,
		shapes:    b.shapes,
		order:     b.order,
	}, nil
}
