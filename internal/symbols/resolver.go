package symbols

import (
	"fmt"

	"github.com/okra-platform/shapegen/internal/model"
)

// Resolver maps a shape to the Go type that represents it.
type Resolver func(s *model.Shape) TypeDescriptor

// Layer builds the innermost resolver. self resolves through the finished
// chain, so composite shapes pick up every decorator for their elements.
type Layer func(self Resolver) Resolver

// Decorator wraps next. self is the finished chain, as for Layer.
type Decorator func(self, next Resolver) Resolver

// Chain composes base with decorators, applied inside out: the last decorator
// sees a shape first.
func Chain(base Layer, decorators ...Decorator) Resolver {
	var full Resolver
	self := func(s *model.Shape) TypeDescriptor { return full(s) }

	r := base(self)
	for _, d := range decorators {
		r = d(self, r)
	}
	full = r
	return full
}

// Base maps shapes to plain Go types. Named shapes (structures, unions,
// enums) are placed in module.
func Base(m *model.Model, module string) Layer {
	return func(self Resolver) Resolver {
		return func(s *model.Shape) TypeDescriptor {
			switch s.Kind {
			case model.KindMember:
				d := self(m.Target(s))
				d.Optional = MemberOptional(m, s)
				return d

			case model.KindCollection:
				el := self(m.MemberTarget(s)).AsRequired()
				return TypeDescriptor{Name: "[]" + el.Name, Imports: el.Imports, Nilable: true}

			case model.KindMap:
				value := self(m.Target(m.Expect(s.Members[1]))).AsRequired()
				return TypeDescriptor{Name: "map[string]" + value.Name, Imports: value.Imports, Nilable: true}

			case model.KindStructure, model.KindUnion:
				return TypeDescriptor{Name: UpperCamel(s.Name()), Module: module}

			case model.KindString:
				if s.Traits.Enum != nil {
					return TypeDescriptor{Name: UpperCamel(s.Name()), Module: module, Copy: true}
				}
				return TypeDescriptor{Name: "string", Copy: true}

			case model.KindInteger, model.KindOther:
				return scalarDescriptor(s.Scalar)

			default:
				panic(fmt.Sprintf("unreachable shape kind %s", s.Kind))
			}
		}
	}
}

// Named returns a descriptor for a generated named type in module.
func Named(name, module string) TypeDescriptor {
	return TypeDescriptor{Name: name, Module: module}
}

func scalarDescriptor(scalar model.Scalar) TypeDescriptor {
	switch scalar {
	case model.ScalarByte:
		return TypeDescriptor{Name: "int8", Copy: true}
	case model.ScalarShort:
		return TypeDescriptor{Name: "int16", Copy: true}
	case model.ScalarInteger:
		return TypeDescriptor{Name: "int32", Copy: true}
	case model.ScalarLong:
		return TypeDescriptor{Name: "int64", Copy: true}
	case model.ScalarBoolean:
		return TypeDescriptor{Name: "bool", Copy: true}
	case model.ScalarFloat:
		return TypeDescriptor{Name: "float32", Copy: true}
	case model.ScalarDouble:
		return TypeDescriptor{Name: "float64", Copy: true}
	case model.ScalarBlob:
		return TypeDescriptor{Name: "[]byte", Nilable: true}
	case model.ScalarTimestamp:
		return TypeDescriptor{Name: "time.Time", Imports: []string{"time"}, Copy: true}
	case model.ScalarDocument:
		return TypeDescriptor{Name: "any", Nilable: true}
	default:
		return TypeDescriptor{Name: "string", Copy: true}
	}
}

// MemberOptional reports whether a member may be absent. Required members and
// members targeting a streaming blob are not optional.
func MemberOptional(m *model.Model, member *model.Shape) bool {
	if member.Traits.Required {
		return false
	}
	target := m.Target(member)
	if target.Scalar == model.ScalarBlob && target.Traits.Streaming {
		return false
	}
	return true
}
