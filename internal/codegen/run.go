package codegen

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/okra-platform/shapegen/internal/classify"
	"github.com/okra-platform/shapegen/internal/codegen/sink"
	"github.com/okra-platform/shapegen/internal/constraints"
	"github.com/okra-platform/shapegen/internal/endpoint"
	"github.com/okra-platform/shapegen/internal/schema"
)

// ErrNothingToGenerate is returned when neither a model nor a rule set is
// configured.
var ErrNothingToGenerate = errors.New("no model or rule set to generate from")

// Options controls a generation run.
type Options struct {
	// ModelPath is the IDL file. Empty skips the model passes.
	ModelPath string

	// RulesPath is the endpoint rule set. Empty skips the endpoint pass.
	RulesPath string

	GoModule string
	Package  string

	PublicConstrainedTypes       bool
	IgnoreUnsupportedConstraints bool

	// Passes restricts the run to the named passes. Empty runs every
	// registered pass.
	Passes []string

	// Registry defaults to DefaultRegistry.
	Registry *Registry

	// Output receives the rendered files. Nil renders without writing.
	Output sink.Output

	Logger zerolog.Logger
}

// Result describes a successful run.
type Result struct {
	Files []sink.File

	// Passes lists the passes that ran, in order.
	Passes []string

	// Skipped lists the passes whose inputs were not configured.
	Skipped []string
}

// Load reads and validates the configured inputs and classifies the model.
func Load(ctx context.Context, opts Options) (*Project, error) {
	if opts.ModelPath == "" && opts.RulesPath == "" {
		return nil, ErrNothingToGenerate
	}
	if opts.Package == "" {
		opts.Package = schema.DefaultNamespace
	}

	p := &Project{
		GoModule: opts.GoModule,
		Package:  opts.Package,
		Logger:   opts.Logger,
	}

	if opts.ModelPath != "" {
		m, err := schema.Load(opts.ModelPath)
		if err != nil {
			return nil, err
		}
		if err := classify.Validate(m, opts.Logger, opts.IgnoreUnsupportedConstraints); err != nil {
			return nil, fmt.Errorf("validating model: %w", err)
		}

		c := classify.New(m, nil,
			classify.WithPublicConstrainedTypes(opts.PublicConstrainedTypes),
			classify.WithLogger(opts.Logger))
		if _, err := c.ClassifyAll(ctx); err != nil {
			return nil, err
		}
		p.Model = m
		p.Planner = constraints.NewPlanner(c, opts.Package)

		opts.Logger.Debug().
			Str("model", opts.ModelPath).
			Str("namespace", m.Namespace).
			Int("shapes", len(m.NamespaceShapes())).
			Msg("loaded model")
	}

	if opts.RulesPath != "" {
		rs, err := endpoint.Load(opts.RulesPath)
		if err != nil {
			return nil, err
		}
		p.Rules = rs

		opts.Logger.Debug().
			Str("rules", opts.RulesPath).
			Int("parameters", len(rs.Parameters)).
			Int("rules", len(rs.Rules)).
			Msg("loaded rule set")
	}
	return p, nil
}

// Run loads the inputs, runs every selected pass into one collector and
// writes the rendered files. Nothing is written unless every pass and the
// render succeed.
func Run(ctx context.Context, opts Options) (*Result, error) {
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry
	}
	names := opts.Passes
	if len(names) == 0 {
		names = registry.Names()
	}

	factories := make([]Factory, len(names))
	for i, name := range names {
		factory, err := registry.Get(name)
		if err != nil {
			return nil, err
		}
		factories[i] = factory
	}

	p, err := Load(ctx, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	collector := sink.NewCollector()
	for i, factory := range factories {
		gen, ok := factory(p)
		if !ok {
			opts.Logger.Debug().Str("pass", names[i]).Msg("skipping pass without inputs")
			result.Skipped = append(result.Skipped, names[i])
			continue
		}
		if err := gen.Generate(ctx, collector); err != nil {
			return nil, fmt.Errorf("%s pass: %w", names[i], err)
		}
		result.Passes = append(result.Passes, names[i])
	}

	files, err := collector.Render()
	if err != nil {
		return nil, err
	}
	result.Files = files

	if opts.Output != nil {
		if err := sink.Flush(ctx, files, opts.Output); err != nil {
			return nil, err
		}
	}

	opts.Logger.Info().
		Strs("passes", result.Passes).
		Int("files", len(files)).
		Msg("generation complete")
	return result, nil
}
