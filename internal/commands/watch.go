package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/okra-platform/shapegen/internal/codegen"
	"github.com/okra-platform/shapegen/internal/codegen/sink"
	"github.com/okra-platform/shapegen/internal/dev"
)

// Watcher reports file changes below a project root.
type Watcher interface {
	AddDirectory(dir string) error
	Start(ctx context.Context) error
	Close() error
}

// WatcherFactory creates the watcher used by the watch command.
type WatcherFactory func(root string, patterns, exclude []string, onChange func(path string, op fsnotify.Op), logger zerolog.Logger) (Watcher, error)

// WatchDependencies for the watch command
type WatchDependencies struct {
	ConfigLoader   ConfigLoader
	Runner         Runner
	NewWatcher     WatcherFactory
	SignalNotifier SignalNotifier
	Output         Output
}

// WatchCommand regenerates the project whenever a watched input changes.
type WatchCommand struct {
	deps   WatchDependencies
	logger zerolog.Logger
}

// NewWatchCommand creates a new watch command with default dependencies
func NewWatchCommand(logger zerolog.Logger) *WatchCommand {
	return &WatchCommand{
		deps: WatchDependencies{
			ConfigLoader: &defaultConfigLoader{},
			Runner:       RunnerFunc(codegen.Run),
			NewWatcher: func(root string, patterns, exclude []string, onChange func(string, fsnotify.Op), logger zerolog.Logger) (Watcher, error) {
				return dev.NewFileWatcher(root, patterns, exclude, onChange, logger)
			},
			SignalNotifier: &defaultSignalNotifier{},
			Output:         &defaultOutput{},
		},
		logger: logger,
	}
}

// WithDependencies allows injecting custom dependencies for testing
func (wc *WatchCommand) WithDependencies(deps WatchDependencies) *WatchCommand {
	wc.deps = deps
	return wc
}

// Execute generates once and then after every batch of changes until ctx is
// cancelled or an interrupt arrives. Generation errors are reported and
// watching continues.
func (wc *WatchCommand) Execute(ctx context.Context) error {
	cfg, projectRoot, err := wc.deps.ConfigLoader.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load project config: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	wc.deps.SignalNotifier.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer wc.deps.SignalNotifier.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			wc.deps.Output.Println("\nStopping watch...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Changes arriving while a generation runs collapse into one rerun.
	trigger := make(chan struct{}, 1)
	onChange := func(path string, op fsnotify.Op) {
		wc.logger.Debug().Str("path", path).Stringer("op", op).Msg("input changed")
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	watcher, err := wc.deps.NewWatcher(projectRoot, cfg.Watch.Paths, cfg.Watch.Exclude, onChange, wc.logger)
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.AddDirectory(projectRoot); err != nil {
		return fmt.Errorf("failed to watch %s: %w", projectRoot, err)
	}

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- watcher.Start(ctx)
	}()

	wc.deps.Output.Printf("Watching %s for changes to %s\n", projectRoot, cfg.Name)
	generate := func() {
		opts, err := generateOptions(cfg, projectRoot, wc.logger)
		if err == nil {
			opts.Output = sink.NewFilesystemOutput(cfg.OutputDir(projectRoot))
			var result *codegen.Result
			if result, err = wc.deps.Runner.Run(ctx, opts); err == nil {
				wc.deps.Output.Printf("Generated %d files\n", len(result.Files))
				return
			}
		}
		if !errors.Is(err, context.Canceled) {
			wc.deps.Output.Printf("Generation failed: %v\n", err)
		}
	}

	generate()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		case <-trigger:
			generate()
		}
	}
}
