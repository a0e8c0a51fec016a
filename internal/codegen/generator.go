// Package codegen wires the loaded inputs to the generation passes and
// writes the result.
package codegen

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/okra-platform/shapegen/internal/codegen/sink"
	"github.com/okra-platform/shapegen/internal/constraints"
	"github.com/okra-platform/shapegen/internal/endpoint"
	"github.com/okra-platform/shapegen/internal/model"
)

// Generator is the interface every generation pass implements
type Generator interface {
	// Generate emits fragments into out. A pass must not write anywhere else.
	Generate(ctx context.Context, out sink.Sink) error
}

// Project holds the loaded inputs shared by the passes.
type Project struct {
	// Model is nil when no model file is configured.
	Model *model.Model

	// Planner is set whenever Model is.
	Planner *constraints.Planner

	// Rules is nil when no rule set is configured.
	Rules *endpoint.RuleSet

	// GoModule is the import path of the output root.
	GoModule string

	// Package is the directory, relative to the output root, that holds the
	// model types and their constrained variants.
	Package string

	Logger zerolog.Logger
}
