package codegen

import (
	"github.com/okra-platform/shapegen/internal/codegen/golang"
	"github.com/okra-platform/shapegen/internal/codegen/sink"
	"github.com/okra-platform/shapegen/internal/constraints"
	"github.com/okra-platform/shapegen/internal/endpoint"
)

// Pass names registered on DefaultRegistry.
const (
	PassModel       = "model"
	PassConstraints = "constraints"
	PassEndpoint    = "endpoint"
)

// DefaultRegistry is the global registry instance with the built-in passes
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(PassModel, func(p *Project) (Generator, bool) {
		if p.Planner == nil {
			return nil, false
		}
		return golang.NewGenerator(p.Planner, sink.Module{Path: p.Package, Name: "model"}), true
	})

	DefaultRegistry.Register(PassConstraints, func(p *Project) (Generator, bool) {
		if p.Planner == nil {
			return nil, false
		}
		return constraints.NewGenerator(p.Planner, sink.Module{Path: p.Package, Name: "constraints"}, p.Logger), true
	})

	DefaultRegistry.Register(PassEndpoint, func(p *Project) (Generator, bool) {
		if p.Rules == nil {
			return nil, false
		}
		return endpoint.NewGenerator(p.Rules, p.GoModule, endpoint.WithLogger(p.Logger)), true
	})
}
