package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog"

	"github.com/okra-platform/shapegen/internal/classify"
	"github.com/okra-platform/shapegen/internal/codegen"
	"github.com/okra-platform/shapegen/internal/endpoint"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// CheckDependencies for the check command
type CheckDependencies struct {
	ConfigLoader ConfigLoader
	Output       Output
}

// CheckCommand validates the project inputs and reports how shapes are
// classified and what the rule set analysis found, without writing code.
type CheckCommand struct {
	deps   CheckDependencies
	logger zerolog.Logger
}

// NewCheckCommand creates a new check command with default dependencies
func NewCheckCommand(logger zerolog.Logger) *CheckCommand {
	return &CheckCommand{
		deps: CheckDependencies{
			ConfigLoader: &defaultConfigLoader{},
			Output:       &defaultOutput{},
		},
		logger: logger,
	}
}

// WithDependencies allows injecting custom dependencies for testing
func (cc *CheckCommand) WithDependencies(deps CheckDependencies) *CheckCommand {
	cc.deps = deps
	return cc
}

// Execute runs the check.
func (cc *CheckCommand) Execute(ctx context.Context) error {
	cfg, projectRoot, err := cc.deps.ConfigLoader.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load project config: %w", err)
	}

	opts, err := generateOptions(cfg, projectRoot, cc.logger)
	if err != nil {
		return err
	}
	project, err := codegen.Load(ctx, opts)
	if err != nil {
		return err
	}

	if project.Planner != nil {
		rows, err := project.Planner.Classifier().Report(ctx)
		if err != nil {
			return err
		}
		cc.deps.Output.Printf("Model %s: %d shapes, %d services\n",
			project.Model.Namespace, len(rows), len(project.Model.Services))
		cc.deps.Output.Println(classificationTable(rows))
	}

	if project.Rules != nil {
		analysis, err := endpoint.NewGenerator(project.Rules, cfg.Module, endpoint.WithLogger(cc.logger)).Analyze()
		if err != nil {
			return fmt.Errorf("rule set: %w", err)
		}
		cc.deps.Output.Printf("Rule set: %d parameters, %d referenced, %d test cases\n",
			len(project.Rules.Parameters), len(analysis.UsedParams), len(project.Rules.TestCases))
		if len(analysis.Helpers) > 0 {
			cc.deps.Output.Printf("Helpers: %s\n", strings.Join(analysis.Helpers, ", "))
		}
		for _, w := range analysis.Warnings {
			cc.deps.Output.Printf("warning: %s\n", w)
		}
	}
	return nil
}

func classificationTable(rows []classify.Row) string {
	mark := func(b bool) string {
		if b {
			return "yes"
		}
		return "-"
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SHAPE", "KIND", "DIRECT", "TRANSITIVE", "WRAPPER", "REACHES").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range rows {
		t.Row(
			r.Shape.Name(),
			r.Kind.String(),
			mark(r.DirectlyConstrained),
			mark(r.TransitivelyConstrained),
			mark(r.PublicWrapper),
			mark(r.CanReachConstrained),
		)
	}
	return t.String()
}
