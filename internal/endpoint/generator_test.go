package endpoint

import (
	"context"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/okra-platform/shapegen/internal/codegen/sink"
)

// render generates rs and returns the formatted files keyed by path.
func render(t *testing.T, rs *RuleSet) map[string]string {
	t.Helper()
	out := sink.NewCollector()
	require.NoError(t, NewGenerator(rs, "example.com/storage").Generate(context.Background(), out))
	files, err := out.Render()
	require.NoError(t, err)

	rendered := make(map[string]string, len(files))
	for _, f := range files {
		rendered[f.Path] = string(f.Content)
	}
	return rendered
}

// combine merges the generated non-test files into one main package, calling
// endpointlib helpers unqualified.
func combine(t *testing.T, files map[string]string) string {
	t.Helper()
	paths := make([]string, 0, len(files))
	for p := range files {
		if !strings.HasSuffix(p, "_test.go") {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	imports := make(map[string]bool)
	var bodies []string
	for _, p := range paths {
		src := files[p]
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, p, src, parser.ImportsOnly)
		require.NoError(t, err)
		for _, imp := range file.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			require.NoError(t, err)
			if !strings.HasSuffix(path, "/endpointlib") {
				imports[path] = true
			}
		}
		start := fset.Position(file.Name.End()).Offset
		if n := len(file.Decls); n > 0 {
			start = fset.Position(file.Decls[n-1].End()).Offset
		}
		bodies = append(bodies, strings.ReplaceAll(src[start:], "endpointlib.", ""))
	}

	var b strings.Builder
	b.WriteString("package main\n\nimport (\n")
	for _, imp := range sortedKeys(imports) {
		b.WriteString("\t" + strconv.Quote(imp) + "\n")
	}
	b.WriteString(")\n")
	for _, body := range bodies {
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String()
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func interpret(t *testing.T, src, driver string) *interp.Interpreter {
	t.Helper()
	i := interp.New(interp.Options{})
	require.NoError(t, i.Use(stdlib.Symbols))
	_, err := i.Eval(src + "\n" + driver)
	require.NoError(t, err, "generated source:\n%s", src)
	return i
}

func call(t *testing.T, i *interp.Interpreter, name string) string {
	t.Helper()
	v, err := i.Eval("main." + name)
	require.NoError(t, err)
	fn, ok := v.Interface().(func() string)
	require.True(t, ok, "%s is not a func() string", name)
	return fn()
}

func TestGenerate_Files(t *testing.T) {
	// Test: A rule set produces params, resolver, tests and the helper library
	files := render(t, loadStorage(t))

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	assert.Equal(t, []string{
		"endpoint/params.go",
		"endpoint/resolver.go",
		"endpoint/resolver_test.go",
		"internal/endpointlib/endpointlib.go",
	}, paths)

	for p, src := range files {
		assert.True(t, strings.HasPrefix(src, sink.Header), "%s has no header", p)
		_, err := parser.ParseFile(token.NewFileSet(), p, src, parser.AllErrors)
		assert.NoError(t, err, "%s:\n%s", p, src)
	}

	resolver := files["endpoint/resolver.go"]
	assert.Contains(t, resolver, `"example.com/storage/internal/endpointlib"`)
	assert.Contains(t, resolver, "var _ Resolver = DefaultResolver{}")
	assert.Contains(t, resolver, "if url := endpointlib.ParseURL(*params.Endpoint()); url != nil {")
	assert.Contains(t, resolver, "encoded := endpointlib.URIEncode(*params.Bucket())")
	assert.NotContains(t, resolver, noMatchMessage)

	params := files["endpoint/params.go"]
	assert.Contains(t, params, "When unset, this parameter has a default value of `false`.")
	assert.Contains(t, params, "This parameter is populated from the `SDK::Endpoint` setting.")
	assert.Contains(t, params, "// Region returns the Region parameter, or nil when it is unset. The region to send requests to.\nfunc (p *Params) Region() *string {")
	assert.Contains(t, params, "// Bucket returns the Bucket parameter. The bucket being addressed.\nfunc (p *Params) Bucket() *string {")
	assert.Contains(t, params, "// String renders the set parameters for debugging.\nfunc (p *Params) String() string {")

	tests := files["endpoint/resolver_test.go"]
	assert.Contains(t, tests, `t.Run("case 0: fips", func(t *testing.T) {`)
	assert.Contains(t, tests, `NewParamsBuilder().Region("us-east-1").Bucket("data").UseFIPS(true).Build()`)
	assert.Contains(t, tests, `"a required field was missing: `+"`bucket`"+`"`)
}

func TestGenerate_NoHelpers(t *testing.T) {
	// Test: A rule set without helper calls emits no helper library and falls back to an error
	rs, err := Parse([]byte(header + `
rules:
  - type: endpoint
    conditions:
      - fn: isSet
        argv: [{ref: Region}]
    endpoint: {url: "https://{Bucket}.{Region}.example.com"}
`))
	require.NoError(t, err)
	files := render(t, rs)

	assert.NotContains(t, files, "internal/endpointlib/endpointlib.go")
	assert.NotContains(t, files, "endpoint/resolver_test.go")
	assert.NotContains(t, files["endpoint/resolver.go"], "endpointlib")
	assert.Contains(t, files["endpoint/resolver.go"], noMatchMessage)
}

func TestGenerate_TestCaseExpectations(t *testing.T) {
	// Test: Expected endpoints are emitted as plain literals, so braces are not
	// treated as template references
	rs, err := Parse([]byte(header + `
rules:
  - type: endpoint
    endpoint:
      url: "https://{Bucket}.example.com"
      headers:
        x-tag: ["{Bucket}"]
testCases:
  - documentation: braces
    params:
      Bucket: data
    expect:
      endpoint:
        url: "https://{Region}.example.com"
        headers:
          x-tag: ["{Unknown}"]
        properties:
          note: "{literal}"
`))
	require.NoError(t, err)
	tests := render(t, rs)["endpoint/resolver_test.go"]

	assert.Regexp(t, `URL:\s+"https://\{Region\}\.example\.com",`, tests)
	assert.Regexp(t, `"x-tag":\s+\{"\{Unknown\}"\},`, tests)
	assert.Contains(t, tests, `map[string]any{"note": "{literal}"}`)
	_, err = parser.ParseFile(token.NewFileSet(), "resolver_test.go", tests, parser.AllErrors)
	assert.NoError(t, err)
}

func TestGenerate_Cancelled(t *testing.T) {
	// Test: Generation stops when the context is cancelled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewGenerator(loadStorage(t), "example.com/storage").Generate(ctx, sink.NewCollector())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_Params(t *testing.T) {
	// Test: Build applies defaults, keeps optional parameters unset and rejects a missing required parameter
	src := combine(t, render(t, loadStorage(t)))
	i := interpret(t, src, `
func OptionalUnset() string {
	p, err := NewParamsBuilder().Bucket("data").Build()
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%t|%t|%s", p.Region() == nil, *p.UseFIPS(), *p.Bucket())
}

func MissingRequired() string {
	_, err := NewParamsBuilder().Region("us-east-1").Build()
	invalid, ok := err.(*InvalidParamsError)
	if !ok {
		return fmt.Sprintf("unexpected error %v", err)
	}
	return invalid.Field + "|" + err.Error()
}

func Copies() string {
	region := "us-east-1"
	b := NewParamsBuilder().SetRegion(&region).Bucket("data")
	region = "changed"
	p, err := b.Build()
	if err != nil {
		return err.Error()
	}
	*p.Region() = "mutated"
	q, err := p.ToBuilder().Build()
	if err != nil {
		return err.Error()
	}
	r, _ := p.ToBuilder().SetRegion(nil).Build()
	return fmt.Sprintf("%s|%t|%t", *q.Region(), p.Equal(q), p.Equal(r))
}

func Render() string {
	p, _ := NewParamsBuilder().Region("us-east-1").Bucket("data").Build()
	return p.String()
}
`)

	assert.Equal(t, "true|false|data", call(t, i, "OptionalUnset"))
	assert.Equal(t, "bucket|a required field was missing: `bucket`", call(t, i, "MissingRequired"))
	assert.Equal(t, "us-east-1|true|false", call(t, i, "Copies"))
	assert.Equal(t, `Params{Region: "us-east-1", Bucket: "data", UseFIPS: false}`, call(t, i, "Render"))
}

func TestGenerate_Resolver(t *testing.T) {
	// Test: The generated resolver evaluates rules in order
	src := combine(t, render(t, loadStorage(t)))
	i := interpret(t, src, `
func resolve(b *ParamsBuilder) string {
	params, err := b.Build()
	if err != nil {
		return "build: " + err.Error()
	}
	e, err := NewDefaultResolver().ResolveEndpoint(context.Background(), params)
	if err != nil {
		return "error: " + err.Error()
	}
	out := e.URL
	if region, ok := e.Headers["x-region"]; ok {
		out += "|x-region=" + strings.Join(region, ",")
	}
	if signing, ok := e.Properties["signing"].(map[string]any); ok {
		out += "|signing=" + fmt.Sprint(signing["name"]) + "/" + fmt.Sprint(signing["region"])
	}
	return out
}

func Fips() string {
	return resolve(NewParamsBuilder().Region("us-east-1").Bucket("data").UseFIPS(true))
}

func HostLabel() string {
	return resolve(NewParamsBuilder().Region("eu-west-1").Bucket("data"))
}

func Encoded() string {
	return resolve(NewParamsBuilder().Region("eu-west-1").Bucket("my bucket"))
}

func CustomEndpoint() string {
	return resolve(NewParamsBuilder().Bucket("data").Endpoint("https://example.com:8443/base"))
}

func InvalidEndpoint() string {
	return resolve(NewParamsBuilder().Bucket("data").Endpoint("not a url"))
}

func NoRegion() string {
	return resolve(NewParamsBuilder().Bucket("data"))
}

func NilParams() string {
	_, err := NewDefaultResolver().ResolveEndpoint(context.Background(), nil)
	return err.Error()
}
`)

	assert.Equal(t, "https://data.storage-fips.us-east-1.example.com|signing=storage/us-east-1", call(t, i, "Fips"))
	assert.Equal(t, "https://data.storage.eu-west-1.example.com|x-region=eu-west-1", call(t, i, "HostLabel"))
	assert.Equal(t, "https://storage.eu-west-1.example.com/my%20bucket", call(t, i, "Encoded"))
	assert.Equal(t, "https://example.com:8443/base/data", call(t, i, "CustomEndpoint"))
	assert.Equal(t, "error: invalid endpoint: not a url", call(t, i, "InvalidEndpoint"))
	assert.Equal(t, "error: a region is required", call(t, i, "NoRegion"))
	assert.Equal(t, "parameters must not be nil", call(t, i, "NilParams"))
}
