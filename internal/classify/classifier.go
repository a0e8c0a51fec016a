// Package classify derives constraint facts about shapes: whether a shape is
// directly constrained, whether it can reach a constrained shape, and whether
// it maps to a constrained wrapper type.
package classify

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/okra-platform/shapegen/internal/model"
	"github.com/okra-platform/shapegen/internal/symbols"
)

// AllConstraintTraits is every trait that can cause a value to be rejected,
// whether generation supports it or not.
var AllConstraintTraits = []model.TraitKind{
	model.TraitLength,
	model.TraitPattern,
	model.TraitRange,
	model.TraitUniqueItems,
	model.TraitEnum,
	model.TraitRequired,
}

// SupportedStringConstraintTraits are the string traits that get a wrapper type.
var SupportedStringConstraintTraits = []model.TraitKind{model.TraitLength, model.TraitPattern}

// SupportedCollectionConstraintTraits are the collection traits that get a
// wrapper type. UniqueItems is recognised but not supported.
var SupportedCollectionConstraintTraits = []model.TraitKind{model.TraitLength}

// HasConstraintTrait reports whether s carries any recognised constraint
// trait, supported or not.
func HasConstraintTrait(s *model.Shape) bool {
	return s.Traits.HasAny(AllConstraintTraits...)
}

// Result holds the classification of a single shape.
type Result struct {
	DirectlyConstrained     bool
	TransitivelyConstrained bool
	PublicWrapper           bool
	CanReachConstrained     bool
}

// Classifier answers constraint questions about shapes of one model. Results
// are memoized per shape; the model is never mutated.
type Classifier struct {
	model                  *model.Model
	resolve                symbols.Resolver
	walker                 *model.Walker
	publicConstrainedTypes bool
	logger                 zerolog.Logger

	mu    sync.Mutex
	cache map[model.ShapeID]Result
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithPublicConstrainedTypes sets whether constrained scalars get public
// wrapper types.
func WithPublicConstrainedTypes(enabled bool) Option {
	return func(c *Classifier) {
		c.publicConstrainedTypes = enabled
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger.With().Str("component", "classify").Logger()
	}
}

// New creates a classifier over m. resolve decides member optionality for
// structures; a nil resolve uses the base resolver.
func New(m *model.Model, resolve symbols.Resolver, opts ...Option) *Classifier {
	if resolve == nil {
		resolve = symbols.Chain(symbols.Base(m, ""))
	}
	c := &Classifier{
		model:                  m,
		resolve:                resolve,
		walker:                 model.NewWalker(m),
		publicConstrainedTypes: true,
		logger:                 zerolog.Nop(),
		cache:                  make(map[model.ShapeID]Result),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the classified model.
func (c *Classifier) Model() *model.Model {
	return c.model
}

// PublicConstrainedTypes reports the configured wrapper visibility mode.
func (c *Classifier) PublicConstrainedTypes() bool {
	return c.publicConstrainedTypes
}

// IsDirectlyConstrained reports whether s itself carries a supported
// constraint. A structure is directly constrained when any member is not
// optional.
func (c *Classifier) IsDirectlyConstrained(s *model.Shape) bool {
	return c.Classify(s).DirectlyConstrained
}

// CanReachConstrainedShape reports whether any shape reachable from s,
// including s, is directly constrained.
func (c *Classifier) CanReachConstrainedShape(s *model.Shape) bool {
	return c.Classify(s).CanReachConstrained
}

// IsTransitivelyButNotDirectlyConstrained reports whether s reaches a
// constrained shape without being constrained itself.
func (c *Classifier) IsTransitivelyButNotDirectlyConstrained(s *model.Shape) bool {
	return c.Classify(s).TransitivelyConstrained
}

// MemberHasConstraintTraitOrTargetHasConstraintTrait reports whether member
// or its target is directly constrained.
func (c *Classifier) MemberHasConstraintTraitOrTargetHasConstraintTrait(member *model.Shape) bool {
	return c.directlyConstrained(member) || c.directlyConstrained(c.model.Target(member))
}

// HasPublicConstrainedWrapperType reports whether s maps to a wrapper type in
// the configured mode.
func (c *Classifier) HasPublicConstrainedWrapperType(s *model.Shape) bool {
	return c.Classify(s).PublicWrapper
}

// WouldHaveConstrainedWrapperType reports whether s would map to a wrapper
// type were public constrained types enabled.
func (c *Classifier) WouldHaveConstrainedWrapperType(s *model.Shape) bool {
	return hasWrapperType(c.model, s, true)
}

// Classify returns the memoized classification of s.
func (c *Classifier) Classify(s *model.Shape) Result {
	c.mu.Lock()
	r, ok := c.cache[s.ID]
	c.mu.Unlock()
	if ok {
		return r
	}

	r = c.compute(s)

	c.mu.Lock()
	c.cache[s.ID] = r
	c.mu.Unlock()
	return r
}

func (c *Classifier) compute(s *model.Shape) Result {
	direct := c.directlyConstrained(s)
	reach := c.canReach(s)
	return Result{
		DirectlyConstrained:     direct,
		TransitivelyConstrained: reach && !direct,
		PublicWrapper:           hasWrapperType(c.model, s, c.publicConstrainedTypes),
		CanReachConstrained:     reach,
	}
}

func (c *Classifier) directlyConstrained(s *model.Shape) bool {
	switch s.Kind {
	case model.KindStructure:
		for _, member := range c.model.Members(s) {
			if !c.resolve(member).Optional {
				return true
			}
		}
		return false
	case model.KindMap:
		return s.Traits.Has(model.TraitLength)
	case model.KindString:
		return s.Traits.Has(model.TraitEnum) || s.Traits.HasAny(SupportedStringConstraintTraits...)
	case model.KindCollection:
		return s.Traits.HasAny(SupportedCollectionConstraintTraits...)
	case model.KindInteger:
		return s.Traits.Has(model.TraitRange)
	case model.KindUnion, model.KindMember, model.KindOther:
		return false
	default:
		panic(fmt.Sprintf("unreachable shape kind %s", s.Kind))
	}
}

// canReach walks the graph from s. A walk from a member would also reach its
// container, so members delegate to their target instead.
func (c *Classifier) canReach(s *model.Shape) bool {
	if s.IsMember() {
		return c.Classify(c.model.Target(s)).CanReachConstrained
	}
	return c.walker.Any(s.ID, c.directlyConstrained)
}

func hasWrapperType(m *model.Model, s *model.Shape, public bool) bool {
	switch s.Kind {
	case model.KindCollection:
		// Collections and maps get a wrapper regardless of mode.
		return s.Traits.HasAny(SupportedCollectionConstraintTraits...)
	case model.KindMap:
		return s.Traits.Has(model.TraitLength)
	case model.KindString:
		return !s.Traits.Has(model.TraitEnum) && public && s.Traits.HasAny(SupportedStringConstraintTraits...)
	case model.KindInteger:
		return public && s.Traits.Has(model.TraitRange)
	case model.KindMember:
		return hasWrapperType(m, m.Target(s), public)
	case model.KindStructure, model.KindUnion, model.KindOther:
		return false
	default:
		panic(fmt.Sprintf("unreachable shape kind %s", s.Kind))
	}
}

// TypeNameContainsNonPublicType reports whether the Go type name of s
// mentions an unexported constrained type. It is always false when public
// constrained types are enabled.
func (c *Classifier) TypeNameContainsNonPublicType(s *model.Shape) bool {
	if c.publicConstrainedTypes {
		return false
	}
	switch s.Kind {
	case model.KindString, model.KindInteger, model.KindOther:
		return c.WouldHaveConstrainedWrapperType(s)
	case model.KindMember:
		return c.TypeNameContainsNonPublicType(c.model.Target(s))
	case model.KindCollection, model.KindMap:
		return c.CanReachConstrainedShape(s)
	case model.KindStructure, model.KindUnion:
		return false
	default:
		panic(fmt.Sprintf("unreachable shape kind %s", s.Kind))
	}
}

// ClassifyAll classifies every shape of the model, fanning out across
// goroutines. The result is identical to classifying sequentially.
func (c *Classifier) ClassifyAll(ctx context.Context) (map[model.ShapeID]Result, error) {
	shapes := c.model.Shapes()
	results := make([]Result, len(shapes))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range shapes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = c.Classify(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("classifying shapes: %w", err)
	}

	out := make(map[model.ShapeID]Result, len(shapes))
	for i, s := range shapes {
		out[s.ID] = results[i]
	}
	c.logger.Debug().Int("shapes", len(out)).Msg("classified model")
	return out, nil
}

// Row is one line of a classification report.
type Row struct {
	Shape model.ShapeID
	Kind  model.Kind
	Result
}

// Report classifies the namespace shapes and returns them sorted by ID.
func (c *Classifier) Report(ctx context.Context) ([]Row, error) {
	all, err := c.ClassifyAll(ctx)
	if err != nil {
		return nil, err
	}
	var rows []Row
	for _, s := range c.model.NamespaceShapes() {
		rows = append(rows, Row{Shape: s.ID, Kind: s.Kind, Result: all[s.ID]})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Shape < rows[j].Shape })
	return rows, nil
}
