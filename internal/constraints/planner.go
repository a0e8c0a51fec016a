// Package constraints plans and generates constrained wrapper types, their
// unconstrained counterparts and the fallible conversions between them.
package constraints

import (
	"fmt"

	"github.com/okra-platform/shapegen/internal/classify"
	"github.com/okra-platform/shapegen/internal/model"
	"github.com/okra-platform/shapegen/internal/symbols"
)

// ConversionKind says how an unconstrained value becomes constrained.
type ConversionKind int

const (
	// ConversionNone means both representations are the same type and
	// nothing is checked.
	ConversionNone ConversionKind = iota
	// ConversionConstructor calls NewX(raw) (X, error).
	ConversionConstructor
	// ConversionValidate calls validateX(raw) error and keeps raw.
	ConversionValidate
	// ConversionMethod calls raw.TryConvert() (X, error).
	ConversionMethod
)

func (k ConversionKind) String() string {
	switch k {
	case ConversionNone:
		return "none"
	case ConversionConstructor:
		return "constructor"
	case ConversionValidate:
		return "validate"
	case ConversionMethod:
		return "method"
	default:
		return "unknown"
	}
}

// Conversion names the generated function performing a conversion.
type Conversion struct {
	Kind ConversionKind
	Func string
}

// Plan is the conversion contract for one shape.
type Plan struct {
	Shape         *model.Shape
	Unconstrained symbols.TypeDescriptor
	Constrained   symbols.TypeDescriptor
	Conversion    Conversion
}

// Fallible reports whether converting can fail.
func (p Plan) Fallible() bool {
	return p.Conversion.Kind != ConversionNone
}

// Planner decides wrapper types and conversions for one model.
type Planner struct {
	model         *model.Model
	classifier    *classify.Classifier
	module        string
	constrained   symbols.Resolver
	unconstrained symbols.Resolver
}

// NewPlanner creates a planner whose generated types live in module.
func NewPlanner(c *classify.Classifier, module string) *Planner {
	p := &Planner{
		model:      c.Model(),
		classifier: c,
		module:     module,
	}
	base := symbols.Base(p.model, module)
	p.constrained = symbols.Chain(base, p.constrainedLayer)
	p.unconstrained = symbols.Chain(base, p.unconstrainedLayer)
	return p
}

// Model returns the planned model.
func (p *Planner) Model() *model.Model {
	return p.model
}

// Classifier returns the classifier backing the planner.
func (p *Planner) Classifier() *classify.Classifier {
	return p.classifier
}

// Module returns the module generated types are placed in.
func (p *Planner) Module() string {
	return p.module
}

// Constrained resolves shapes to their validated Go types.
func (p *Planner) Constrained() symbols.Resolver {
	return p.constrained
}

// Unconstrained resolves shapes to the Go types that hold values before
// validation.
func (p *Planner) Unconstrained() symbols.Resolver {
	return p.unconstrained
}

// NeedsWrapperType reports whether s gets a dedicated wrapper type. Scalars
// only get one with public constrained types enabled; collections and maps
// with a supported trait always do.
func (p *Planner) NeedsWrapperType(s *model.Shape) bool {
	return p.classifier.HasPublicConstrainedWrapperType(s)
}

// HasUnconstrainedType reports whether s gets a generated Unconstrained type.
func (p *Planner) HasUnconstrainedType(s *model.Shape) bool {
	switch s.Kind {
	case model.KindCollection, model.KindMap, model.KindStructure, model.KindUnion:
		return p.classifier.CanReachConstrainedShape(s)
	default:
		return false
	}
}

// PlanConversion returns the conversion contract for s. Members are planned
// as their target.
func (p *Planner) PlanConversion(s *model.Shape) (Plan, error) {
	if s.IsMember() {
		return p.PlanConversion(p.model.Target(s))
	}
	if s.Traits.Streaming && classify.HasConstraintTrait(s) {
		return Plan{}, &model.ShapeError{Shape: s.ID, Reason: "streaming shapes cannot be constrained"}
	}
	if s.Kind == model.KindMap {
		if key := p.model.Target(p.model.Expect(s.Members[0])); key.Kind != model.KindString {
			return Plan{}, &model.ShapeError{Shape: s.ID, Reason: fmt.Sprintf("map keys must target a string shape, got %s %s", key.Kind, key.ID)}
		}
	}

	plan := Plan{
		Shape:         s,
		Unconstrained: p.unconstrained(s),
		Constrained:   p.constrained(s),
	}
	name := symbols.UpperCamel(s.Name())

	switch s.Kind {
	case model.KindString, model.KindInteger:
		switch {
		case !p.classifier.IsDirectlyConstrained(s):
		case s.Traits.Enum != nil || p.NeedsWrapperType(s):
			plan.Conversion = Conversion{Kind: ConversionConstructor, Func: "New" + name}
		default:
			plan.Conversion = Conversion{Kind: ConversionValidate, Func: "validate" + name}
		}
	case model.KindCollection, model.KindMap, model.KindStructure, model.KindUnion:
		if p.HasUnconstrainedType(s) {
			plan.Conversion = Conversion{Kind: ConversionMethod, Func: "TryConvert"}
		}
	case model.KindOther:
	default:
		panic(fmt.Sprintf("unreachable shape kind %s", s.Kind))
	}
	return plan, nil
}

func (p *Planner) constrainedLayer(_, next symbols.Resolver) symbols.Resolver {
	return func(s *model.Shape) symbols.TypeDescriptor {
		if s.IsMember() || !p.NeedsWrapperType(s) {
			d := next(s)
			if !s.IsMember() && p.classifier.TypeNameContainsNonPublicType(s) {
				d.Visibility = symbols.Private
			}
			return d
		}
		d := symbols.Named(symbols.UpperCamel(s.Name()), p.module)
		d.Copy = s.Kind == model.KindString || s.Kind == model.KindInteger
		return d
	}
}

func (p *Planner) unconstrainedLayer(_, next symbols.Resolver) symbols.Resolver {
	return func(s *model.Shape) symbols.TypeDescriptor {
		switch {
		case s.Kind == model.KindString && s.Traits.Enum != nil:
			return symbols.TypeDescriptor{Name: "string", Copy: true}
		case p.HasUnconstrainedType(s):
			d := symbols.Named(UnconstrainedName(s), p.module)
			d.Nilable = s.Kind == model.KindCollection || s.Kind == model.KindMap
			return d
		default:
			return next(s)
		}
	}
}

// UnconstrainedName is the Go type name of the unconstrained representation
// of s.
func UnconstrainedName(s *model.Shape) string {
	return "Unconstrained" + symbols.UpperCamel(s.Name())
}

// ViolationName is the name of the sealed violation interface for s.
func ViolationName(s *model.Shape) string {
	return symbols.UpperCamel(s.Name()) + "ConstraintViolation"
}
