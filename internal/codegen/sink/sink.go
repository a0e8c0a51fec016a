// Package sink collects generated code fragments per module and renders them
// into formatted Go files.
package sink

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/tools/imports"
)

// Header is written at the top of every generated file.
const Header = "// Code generated by shapegen. DO NOT EDIT."

// Visibility controls where a module's file is placed.
type Visibility int

const (
	// Public modules are importable by users of the generated code.
	Public Visibility = iota
	// Private modules live under internal/.
	Private
	// Test modules are rendered as _test.go files next to their package.
	Test
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}

// Module identifies one generated file.
type Module struct {
	// Path is the slash-separated package directory relative to the output root.
	Path string
	// Name is the file name without extension.
	Name string
	// Package overrides the package clause; defaults to the last element of Path.
	Package    string
	Visibility Visibility
}

// File returns the output path of the module relative to the output root.
func (m Module) File() string {
	switch m.Visibility {
	case Private:
		return path.Join("internal", m.Path, m.Name+".go")
	case Test:
		return path.Join(m.Path, m.Name+"_test.go")
	default:
		return path.Join(m.Path, m.Name+".go")
	}
}

// PackageName returns the package clause of the module.
func (m Module) PackageName() string {
	if m.Package != "" {
		return m.Package
	}
	return path.Base(m.Path)
}

func (m Module) String() string {
	return fmt.Sprintf("%s (%s)", m.File(), m.Visibility)
}

// Fragment is a named unit of code within a module.
type Fragment struct {
	// Unit names the fragment. Each unit is emitted at most once per module.
	Unit    string
	Imports []string
	Code    string
}

// Sink accepts generated fragments.
type Sink interface {
	EmitInto(module Module, fragment Fragment) error
}

// DuplicateUnitError reports a second emission of the same unit.
type DuplicateUnitError struct {
	Module Module
	Unit   string
}

func (e *DuplicateUnitError) Error() string {
	return fmt.Sprintf("%s: unit %q emitted more than once", e.Module.File(), e.Unit)
}

type moduleState struct {
	units     map[string]bool
	fragments []Fragment
}

// Collector is an in-memory Sink. It is safe for concurrent use; fragments
// keep their emission order within a module.
type Collector struct {
	mu      sync.Mutex
	modules map[Module]*moduleState
	order   []Module
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{modules: make(map[Module]*moduleState)}
}

// EmitInto records fragment in module.
func (c *Collector) EmitInto(module Module, fragment Fragment) error {
	if fragment.Unit == "" {
		return fmt.Errorf("%s: fragment has no unit name", module.File())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.modules[module]
	if !ok {
		state = &moduleState{units: make(map[string]bool)}
		c.modules[module] = state
		c.order = append(c.order, module)
	}
	if state.units[fragment.Unit] {
		return &DuplicateUnitError{Module: module, Unit: fragment.Unit}
	}
	state.units[fragment.Unit] = true
	state.fragments = append(state.fragments, fragment)
	return nil
}

// Modules returns the modules emitted so far in first-emission order.
func (c *Collector) Modules() []Module {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Module(nil), c.order...)
}

// Units returns the unit names emitted into module in order.
func (c *Collector) Units(module Module) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.modules[module]
	if !ok {
		return nil
	}
	units := make([]string, len(state.fragments))
	for i, f := range state.fragments {
		units[i] = f.Unit
	}
	return units
}

// File is a rendered module.
type File struct {
	Path    string
	Content []byte
}

// Render assembles every module into a formatted Go file.
func (c *Collector) Render() ([]File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	files := make([]File, 0, len(c.order))
	for _, module := range c.order {
		src := assemble(module, c.modules[module].fragments)
		formatted, err := imports.Process(module.File(), src, &imports.Options{
			Comments:  true,
			TabIndent: true,
			TabWidth:  8,
		})
		if err != nil {
			return nil, &RenderError{Path: module.File(), Source: src, Err: err}
		}
		files = append(files, File{Path: module.File(), Content: formatted})
	}
	return files, nil
}

// RenderError reports generated code that does not parse.
type RenderError struct {
	Path   string
	Source []byte
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("formatting %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func assemble(module Module, fragments []Fragment) []byte {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "package %s\n\n", module.PackageName())

	importSet := make(map[string]bool)
	for _, f := range fragments {
		for _, imp := range f.Imports {
			importSet[imp] = true
		}
	}
	if len(importSet) > 0 {
		paths := make([]string, 0, len(importSet))
		for imp := range importSet {
			paths = append(paths, imp)
		}
		sort.Strings(paths)
		b.WriteString("import (\n")
		for _, imp := range paths {
			fmt.Fprintf(&b, "\t%q\n", imp)
		}
		b.WriteString(")\n\n")
	}

	for _, f := range fragments {
		b.WriteString(strings.TrimSpace(f.Code))
		b.WriteString("\n\n")
	}
	return []byte(b.String())
}
