// Package dev holds the file watching used by watch mode.
package dev

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileWatcher watches a project tree and reports changes to files matching
// its patterns. Patterns and excludes are slash-separated and relative to
// the project root.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	patterns []string
	exclude  []string
	onChange func(path string, op fsnotify.Op)
	logger   zerolog.Logger
}

// NewFileWatcher creates a new file watcher rooted at root
func NewFileWatcher(root string, patterns []string, exclude []string, onChange func(path string, op fsnotify.Op), logger zerolog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  watcher,
		root:     root,
		patterns: cleanAll(patterns),
		exclude:  exclude,
		onChange: onChange,
		logger:   logger.With().Str("component", "watcher").Logger(),
	}, nil
}

func cleanAll(patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = path.Clean(filepath.ToSlash(p))
	}
	return out
}

// AddDirectory recursively adds a directory to the watcher, skipping
// excluded directories.
func (fw *FileWatcher) AddDirectory(dir string) error {
	return filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if rel, ok := fw.rel(p); ok && rel != "." && fw.excluded(rel+"/") {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", p, err)
		}
		return nil
	})
}

// Start begins watching for file changes and blocks until ctx is done or the
// watcher is closed.
func (fw *FileWatcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}

			if fw.shouldWatch(event.Name) {
				fw.onChange(event.Name, event.Op)
			}

			// New directories are watched too.
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.AddDirectory(event.Name); err != nil {
						fw.logger.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
					}
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			if err != nil {
				fw.logger.Warn().Err(err).Msg("watcher error")
			}
		}
	}
}

// rel returns p relative to the root in slash form.
func (fw *FileWatcher) rel(p string) (string, bool) {
	rel, err := filepath.Rel(fw.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// excluded reports whether rel matches an exclude entry. Directories are
// passed with a trailing slash; entries with a trailing slash only match
// directories and everything below them.
func (fw *FileWatcher) excluded(rel string) bool {
	base := path.Base(strings.TrimSuffix(rel, "/"))
	for _, pattern := range fw.exclude {
		if dir, ok := strings.CutSuffix(pattern, "/"); ok {
			dir = strings.TrimPrefix(dir, "./")
			if strings.HasPrefix(rel, dir+"/") || strings.Contains(rel, "/"+dir+"/") {
				return true
			}
			continue
		}
		if matched, _ := path.Match(pattern, base); matched {
			return true
		}
		if matched, _ := path.Match(pattern, strings.TrimSuffix(rel, "/")); matched {
			return true
		}
	}
	return false
}

// shouldWatch checks if a file should trigger a change event based on patterns
func (fw *FileWatcher) shouldWatch(p string) bool {
	rel, ok := fw.rel(p)
	if !ok || fw.excluded(rel) {
		return false
	}

	for _, pattern := range fw.patterns {
		if suffix, ok := strings.CutPrefix(pattern, "**/"); ok {
			if matched, _ := path.Match(suffix, path.Base(rel)); matched {
				return true
			}
			continue
		}
		if matched, _ := path.Match(pattern, rel); matched {
			return true
		}
		// A plain path names a directory to watch as a whole.
		if strings.HasPrefix(rel, pattern+"/") {
			return true
		}
	}
	return false
}

// Close stops the watcher
func (fw *FileWatcher) Close() error {
	return fw.watcher.Close()
}
