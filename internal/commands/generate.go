package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/okra-platform/shapegen/internal/codegen"
	"github.com/okra-platform/shapegen/internal/codegen/sink"
	"github.com/okra-platform/shapegen/internal/config"
)

// GenerateDependencies for the generate command
type GenerateDependencies struct {
	ConfigLoader ConfigLoader
	Runner       Runner
	Output       Output
}

// GenerateCommand writes generated code for the project in the current
// directory tree.
type GenerateCommand struct {
	deps   GenerateDependencies
	logger zerolog.Logger
}

// NewGenerateCommand creates a new generate command with default dependencies
func NewGenerateCommand(logger zerolog.Logger) *GenerateCommand {
	return &GenerateCommand{
		deps: GenerateDependencies{
			ConfigLoader: &defaultConfigLoader{},
			Runner:       RunnerFunc(codegen.Run),
			Output:       &defaultOutput{},
		},
		logger: logger,
	}
}

// WithDependencies allows injecting custom dependencies for testing
func (gc *GenerateCommand) WithDependencies(deps GenerateDependencies) *GenerateCommand {
	gc.deps = deps
	return gc
}

// Execute loads the project config and runs every generation pass.
func (gc *GenerateCommand) Execute(ctx context.Context) (*codegen.Result, error) {
	cfg, projectRoot, err := gc.deps.ConfigLoader.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load project config: %w", err)
	}

	opts, err := generateOptions(cfg, projectRoot, gc.logger)
	if err != nil {
		return nil, err
	}
	opts.Output = sink.NewFilesystemOutput(cfg.OutputDir(projectRoot))

	result, err := gc.deps.Runner.Run(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	gc.deps.Output.Printf("Generated %d files for %s in %s\n", len(result.Files), cfg.Name, cfg.OutputDir(projectRoot))
	for _, f := range result.Files {
		gc.deps.Output.Printf("  %s\n", f.Path)
	}
	return result, nil
}

// generateOptions maps a project config to generation options. Output is
// left for the caller.
func generateOptions(cfg *config.Config, projectRoot string, logger zerolog.Logger) (codegen.Options, error) {
	modelPath, rulesPath, err := cfg.Inputs(projectRoot)
	if err != nil {
		return codegen.Options{}, err
	}
	return codegen.Options{
		ModelPath:                    modelPath,
		RulesPath:                    rulesPath,
		GoModule:                     cfg.Module,
		Package:                      cfg.Package,
		PublicConstrainedTypes:       cfg.PublicConstrainedTypes,
		IgnoreUnsupportedConstraints: cfg.IgnoreUnsupportedConstraints,
		Logger:                       logger,
	}, nil
}
