// Package commands contains the CLI commands for the application
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"

	"github.com/okra-platform/shapegen/internal/codegen"
	"github.com/okra-platform/shapegen/internal/config"
)

type Flags struct {
	LogLevel string
}

type Controller struct {
	Flags  *Flags
	Logger zerolog.Logger
}

// Interfaces for dependency injection
type ConfigLoader interface {
	LoadConfig() (*config.Config, string, error)
}

// Runner runs a generation.
type Runner interface {
	Run(ctx context.Context, opts codegen.Options) (*codegen.Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, opts codegen.Options) (*codegen.Result, error)

func (f RunnerFunc) Run(ctx context.Context, opts codegen.Options) (*codegen.Result, error) {
	return f(ctx, opts)
}

type SignalNotifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type Output interface {
	Printf(format string, a ...any)
	Println(a ...any)
}

// Default implementations
type defaultConfigLoader struct{}

func (l *defaultConfigLoader) LoadConfig() (*config.Config, string, error) {
	return config.LoadConfig()
}

type defaultSignalNotifier struct{}

func (n *defaultSignalNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (n *defaultSignalNotifier) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

type defaultOutput struct{}

func (o *defaultOutput) Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

func (o *defaultOutput) Println(a ...any) {
	fmt.Println(a...)
}

func (c *Controller) Init(ctx context.Context) error {
	return NewInitCommand().Run(ctx)
}

func (c *Controller) Generate(ctx context.Context) error {
	_, err := NewGenerateCommand(c.Logger).Execute(ctx)
	return err
}

func (c *Controller) Check(ctx context.Context) error {
	return NewCheckCommand(c.Logger).Execute(ctx)
}

func (c *Controller) Watch(ctx context.Context) error {
	return NewWatchCommand(c.Logger).Execute(ctx)
}
