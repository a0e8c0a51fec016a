package endpoint

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/okra-platform/shapegen/internal/codegen/sink"
	"github.com/okra-platform/shapegen/internal/codegen/writer"
)

// Generator writes the endpoint package for a rule set.
type Generator struct {
	rs       *RuleSet
	goModule string
	pkgPath  string
	funcs    *FunctionRegistry
	logger   zerolog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithFunctions replaces the built-in function registry.
func WithFunctions(funcs *FunctionRegistry) Option {
	return func(g *Generator) {
		g.funcs = funcs
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger.With().Str("component", "endpoint").Logger()
	}
}

// WithPackagePath sets the directory of the generated package relative to
// the output root. The default is "endpoint".
func WithPackagePath(p string) Option {
	return func(g *Generator) {
		g.pkgPath = p
	}
}

// NewGenerator creates a generator for rs. goModule is the import path of
// the output root; the helper library is imported from
// goModule/internal/endpointlib.
func NewGenerator(rs *RuleSet, goModule string, opts ...Option) *Generator {
	g := &Generator{
		rs:       rs,
		goModule: goModule,
		pkgPath:  "endpoint",
		funcs:    NewFunctionRegistry(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Analysis is the result of compiling a rule set without emitting code.
type Analysis struct {
	Warnings []Warning
	// Helpers lists the endpointlib helpers the resolver needs, including
	// their dependencies.
	Helpers []string
	// UsedParams lists the parameters referenced by reachable rules.
	UsedParams []string

	names      map[string]paramNames
	body       *writer.Writer
	terminates bool
}

// Analyze compiles the rule set and checks its test cases.
func (g *Generator) Analyze() (*Analysis, error) {
	names, err := nameParameters(g.rs.Parameters)
	if err != nil {
		return nil, err
	}

	c := newCompiler(g.funcs, names)
	body := writer.NewWriter("\t")
	body.Indent()
	terminates, err := c.compileRules(body, g.rs.Rules, c.rootScope(g.rs), "rules")
	if err != nil {
		return nil, err
	}

	helpers, err := helperClosure(c.usedHelpers())
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Warnings:   c.warnings,
		Helpers:    helpers,
		UsedParams: c.usedParams(g.rs),
		names:      names,
		body:       body,
		terminates: terminates,
	}
	for _, p := range g.rs.Parameters {
		if !c.used[p.Name] {
			a.Warnings = append(a.Warnings, Warning{Message: fmt.Sprintf("parameter %q is never referenced by a rule", p.Name)})
		}
	}
	for i, tc := range g.rs.TestCases {
		if err := g.checkTestCase(tc); err != nil {
			return nil, fmt.Errorf("testCases[%d]: %w", i, err)
		}
	}
	return a, nil
}

func (g *Generator) checkTestCase(tc TestCase) error {
	for _, e := range tc.Params {
		p, ok := g.rs.Parameter(e.Key)
		if !ok {
			return fmt.Errorf("unknown parameter %q", e.Key)
		}
		if e.Value.Kind != p.valueKind() {
			return fmt.Errorf("parameter %q is a %s, got %s", e.Key, p.valueKind(), e.Value.Literal())
		}
	}
	return nil
}

// Generate emits the params, resolver and test files and the helper library
// the resolver uses.
func (g *Generator) Generate(ctx context.Context, out sink.Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, err := g.Analyze()
	if err != nil {
		return err
	}
	for _, w := range a.Warnings {
		g.logger.Warn().Msg(w.String())
	}

	pg := &paramsGenerator{params: g.rs.Parameters, names: a.names}
	if err := out.EmitInto(g.module("params", sink.Public), sink.Fragment{
		Unit:    "params",
		Imports: []string{"fmt", "strings"},
		Code:    pg.generate(),
	}); err != nil {
		return err
	}

	imports := []string{"context"}
	if len(a.Helpers) > 0 {
		imports = append(imports, g.libImportPath())
	}
	if err := out.EmitInto(g.module("resolver", sink.Public), sink.Fragment{
		Unit:    "resolver",
		Imports: imports,
		Code:    g.resolver(a),
	}); err != nil {
		return err
	}

	if len(g.rs.TestCases) > 0 {
		code, err := g.tests(a)
		if err != nil {
			return err
		}
		if err := out.EmitInto(g.module("resolver", sink.Test), sink.Fragment{
			Unit:    "tests",
			Imports: []string{"context", "reflect", "testing"},
			Code:    code,
		}); err != nil {
			return err
		}
	}

	lib := sink.Module{Path: "endpointlib", Name: "endpointlib", Visibility: sink.Private}
	for _, name := range a.Helpers {
		if err := ctx.Err(); err != nil {
			return err
		}
		h := helpers[name]
		if err := out.EmitInto(lib, sink.Fragment{Unit: name, Imports: h.imports, Code: h.code}); err != nil {
			return err
		}
	}

	g.logger.Debug().
		Int("rules", len(g.rs.Rules)).
		Int("parameters", len(g.rs.Parameters)).
		Int("tests", len(g.rs.TestCases)).
		Strs("helpers", a.Helpers).
		Msg("generated endpoint resolver")
	return nil
}

func (g *Generator) module(name string, v sink.Visibility) sink.Module {
	return sink.Module{Path: g.pkgPath, Name: name, Visibility: v}
}

func (g *Generator) libImportPath() string {
	return path.Join(g.goModule, "internal", "endpointlib")
}

func (g *Generator) resolver(a *Analysis) string {
	w := writer.NewWriter("\t")
	w.WriteDocComment("Endpoint is a resolved service endpoint.")
	w.Blockf(func() {
		w.WriteLine("URL        string")
		w.WriteLine("Headers    map[string][]string")
		w.WriteLine("Properties map[string]any")
	}, "type Endpoint struct")
	w.BlankLine()

	w.WriteDocComment("Resolver resolves an endpoint from parameters.")
	w.Blockf(func() {
		w.WriteLine("ResolveEndpoint(ctx context.Context, params *Params) (Endpoint, error)")
	}, "type Resolver interface")
	w.BlankLine()

	w.WriteDocComment("ResolveEndpointError reports parameters that do not resolve to an\nendpoint.")
	w.Blockf(func() {
		w.WriteLine("Message string")
		w.WriteLine("Err     error")
	}, "type ResolveEndpointError struct")
	w.BlankLine()
	w.Blockf(func() {
		w.Blockf(func() {
			w.WriteLine(`return e.Message + ": " + e.Err.Error()`)
		}, "if e.Err != nil")
		w.WriteLine("return e.Message")
	}, "func (e *ResolveEndpointError) Error() string")
	w.BlankLine()
	w.Blockf(func() {
		w.WriteLine("return e.Err")
	}, "func (e *ResolveEndpointError) Unwrap() error")
	w.BlankLine()

	w.WriteDocComment("DefaultResolver evaluates the endpoint rules.")
	w.WriteLine("type DefaultResolver struct{}")
	w.BlankLine()
	w.WriteLine("var _ Resolver = DefaultResolver{}")
	w.BlankLine()
	w.WriteDocComment("NewDefaultResolver returns the rule-based resolver.")
	w.Blockf(func() {
		w.WriteLine("return DefaultResolver{}")
	}, "func NewDefaultResolver() DefaultResolver")
	w.BlankLine()

	w.WriteDocComment("ResolveEndpoint evaluates the rules in order and returns the endpoint or\nerror of the first rule that matches params.")
	w.WriteLine("func (DefaultResolver) ResolveEndpoint(ctx context.Context, params *Params) (Endpoint, error) {")
	w.Indent()
	w.Blockf(func() {
		w.WriteLine(`return Endpoint{}, &ResolveEndpointError{Message: "parameters must not be nil"}`)
	}, "if params == nil")
	w.Dedent()
	w.Append(a.body)
	if !a.terminates {
		w.Indent()
		w.WriteLinef("return Endpoint{}, &ResolveEndpointError{Message: %q}", noMatchMessage)
		w.Dedent()
	}
	w.WriteLine("}")
	return w.String()
}

func (g *Generator) tests(a *Analysis) (string, error) {
	c := newCompiler(g.funcs, a.names)
	w := writer.NewWriter("\t")
	var err error
	w.Blockf(func() {
		for i, tc := range g.rs.TestCases {
			name := fmt.Sprintf("case %d", i)
			if doc := strings.TrimSpace(tc.Documentation); doc != "" {
				name += ": " + doc
			}
			w.WriteBlock(fmt.Sprintf("t.Run(%s, func(t *testing.T) {", strconv.Quote(name)), "})", func() {
				if err == nil {
					err = g.writeTestCase(w, c, tc, fmt.Sprintf("testCases[%d]", i))
				}
			})
		}
	}, "func TestResolveEndpoint(t *testing.T)")
	if err != nil {
		return "", err
	}
	return w.String(), nil
}

func (g *Generator) writeTestCase(w *writer.Writer, c *compiler, tc TestCase, path string) error {
	w.Write("params, err := NewParamsBuilder()")
	for _, e := range tc.Params {
		w.Writef(".%s(%s)", c.names[e.Key].accessor, e.Value.Literal())
	}
	w.WriteLine(".Build()")

	if tc.Expect.Error != nil {
		want := strconv.Quote(*tc.Expect.Error)
		w.Blockf(func() {
			w.WriteLine("_, err = NewDefaultResolver().ResolveEndpoint(context.Background(), params)")
		}, "if err == nil")
		w.Blockf(func() {
			w.WriteLinef("t.Errorf(\"ResolveEndpoint() error = %%v, want %%q\", err, %s)", want)
		}, "if err == nil || err.Error() != %s", want)
		return nil
	}

	w.Blockf(func() {
		w.WriteLine(`t.Fatalf("Build() error = %v", err)`)
	}, "if err != nil")
	w.WriteLine("got, err := NewDefaultResolver().ResolveEndpoint(context.Background(), params)")
	w.Blockf(func() {
		w.WriteLine(`t.Fatalf("ResolveEndpoint() error = %v", err)`)
	}, "if err != nil")
	want, err := c.endpointLiteral(tc.Expect.Endpoint, nil, path)
	if err != nil {
		return err
	}
	w.WriteLinef("want := %s", want)
	w.Blockf(func() {
		w.WriteLine(`t.Errorf("ResolveEndpoint() = %#v, want %#v", got, want)`)
	}, "if !reflect.DeepEqual(got, want)")
	return nil
}
