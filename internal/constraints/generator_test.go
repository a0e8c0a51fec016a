package constraints_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/shapegen/internal/classify"
	"github.com/okra-platform/shapegen/internal/codegen/golang"
	"github.com/okra-platform/shapegen/internal/codegen/sink"
	"github.com/okra-platform/shapegen/internal/constraints"
	"github.com/okra-platform/shapegen/internal/model"
)

func inventoryModel(t *testing.T) *model.Model {
	t.Helper()
	b := model.NewBuilder("inventory")
	bucketName := b.String("BucketName", model.Traits{
		Length:  &model.Length{Min: model.Int64(3), Max: model.Int64(63)},
		Pattern: &model.Pattern{Regex: "^[a-z0-9.-]+$"},
	})
	tier := b.String("Tier", model.Traits{Enum: &model.Enum{Values: []model.EnumValue{
		{Name: "A", Value: "A"},
		{Name: "B", Value: "B"},
	}}})
	port := b.Integer("Port", model.Traits{Range: &model.Range{Min: model.Int64(1), Max: model.Int64(100)}})
	ports := b.List("Ports", model.MemberSpec{Target: port}, model.Traits{Length: &model.Length{Min: model.Int64(1), Max: model.Int64(8)}})
	labels := b.Map("Labels", model.PreludeString, bucketName, model.Traits{})
	b.Structure("Bucket", "Bucket describes a storage bucket.",
		model.MemberSpec{Name: "name", Target: bucketName, Traits: model.Traits{Required: true}},
		model.MemberSpec{Name: "ports", Target: ports},
		model.MemberSpec{Name: "tier", Target: tier},
		model.MemberSpec{Name: "labels", Target: labels},
		model.MemberSpec{Name: "note", Target: model.PreludeString},
	)
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

// generate runs the model and constraints generators into one module and
// returns the rendered source.
func generate(t *testing.T, m *model.Model, public bool) string {
	t.Helper()
	ctx := context.Background()
	c := classify.New(m, nil, classify.WithPublicConstrainedTypes(public))
	p := constraints.NewPlanner(c, "model")
	module := sink.Module{Path: "model", Name: "model"}

	out := sink.NewCollector()
	require.NoError(t, golang.NewGenerator(p, module).Generate(ctx, out))
	require.NoError(t, constraints.NewGenerator(p, module, zerolog.Nop()).Generate(ctx, out))

	files, err := out.Render()
	require.NoError(t, err)
	require.Len(t, files, 1)
	return string(files[0].Content)
}

// runGenerated compiles the generated source together with driver functions
// into a throwaway module and runs it. Each named driver function returns a
// string and the results are keyed by function name.
func runGenerated(t *testing.T, src, driver string, funcs ...string) map[string]string {
	t.Helper()
	if testing.Short() {
		t.Skip("compiles generated code with the go toolchain")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not found in PATH")
	}

	var entry strings.Builder
	entry.WriteString("package main\n\nimport \"fmt\"\n\nfunc main() {\n")
	for _, fn := range funcs {
		fmt.Fprintf(&entry, "\tfmt.Printf(\"%%s\\t%%s\\n\", %q, %s())\n", fn, fn)
	}
	entry.WriteString("}\n")

	dir := t.TempDir()
	files := map[string]string{
		"go.mod":    "module example.com/inventory\n\ngo 1.24\n",
		"model.go":  strings.Replace(src, "package model", "package main", 1),
		"driver.go": "package main\n\n" + driver,
		"main.go":   entry.String(),
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	cmd := exec.CommandContext(t.Context(), goBin, "run", ".")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GOWORK=off", "GOFLAGS=", "GOTOOLCHAIN=local")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "%s\ngenerated source:\n%s", out, src)

	results := make(map[string]string, len(funcs))
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		name, value, ok := strings.Cut(line, "\t")
		require.True(t, ok, "unexpected output line %q", line)
		results[name] = value
	}
	return results
}

func TestGenerator_CollectionReportsFirstFailingIndex(t *testing.T) {
	// Test: Converting [1, 999, 3] fails at index 1 with the inner range violation
	src := generate(t, inventoryModel(t), true)
	got := runGenerated(t, src, `import (
	"errors"
	"fmt"
)

func Index() string {
	_, err := UnconstrainedPorts{1, 999, 3}.TryConvert()
	var violation PortsMemberViolation
	if !errors.As(err, &violation) {
		return fmt.Sprintf("unexpected error %v", err)
	}
	return fmt.Sprint(violation.Index)
}

func Inner() string {
	_, err := UnconstrainedPorts{1, 999, 3}.TryConvert()
	var inner PortRangeViolation
	if !errors.As(err, &inner) {
		return fmt.Sprintf("unexpected error %v", err)
	}
	return fmt.Sprint(inner.Value)
}

func Message() string {
	_, err := UnconstrainedPorts{1, 999, 3}.TryConvert()
	return err.Error()
}

func Success() string {
	u := UnconstrainedPorts{1, 2}
	ports, err := u.TryConvert()
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%d|%d", len(ports.Value()), ports.Value()[1].Value())
}

func Empty() string {
	u := UnconstrainedPorts{}
	_, err := u.TryConvert()
	violation, ok := err.(PortsLengthViolation)
	if !ok {
		return fmt.Sprintf("unexpected error %v", err)
	}
	return fmt.Sprintf("%d|%s", violation.Length, err.Error())
}
`, "Index", "Inner", "Message", "Success", "Empty")

	assert.Equal(t, "1", got["Index"])
	assert.Equal(t, "999", got["Inner"])
	assert.Equal(t,
		"constraint violation occurred at index 1: value 999 failed to satisfy constraint: member must be between 1 and 100, inclusive",
		got["Message"])
	assert.Equal(t, "2|2", got["Success"])
	assert.Equal(t,
		"0|value with length 0 failed to satisfy constraint: member must have length between 1 and 8, inclusive",
		got["Empty"])
}

func TestGenerator_EnumConversion(t *testing.T) {
	// Test: "C" is rejected by the enum value set and "A" converts to TierA
	src := generate(t, inventoryModel(t), true)
	got := runGenerated(t, src, `import "fmt"

func Convert() string {
	_, err := NewTier("C")
	violation, ok := err.(TierEnumViolation)
	if !ok {
		return fmt.Sprintf("unexpected error %v", err)
	}
	a, err := NewTier("A")
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%s|%s|%s|%t", violation.Value, violation.Error(), a, a == TierA && a.Valid())
}
`, "Convert")

	assert.Equal(t,
		`C|value "C" failed to satisfy constraint: member must satisfy enum value set: [A, B]|A|true`,
		got["Convert"])
}

func TestGenerator_StructureConversion(t *testing.T) {
	// Test: Structures report missing required members before converting, then the first failing member
	src := generate(t, inventoryModel(t), true)
	got := runGenerated(t, src, `import "fmt"

func Missing() string {
	_, err := UnconstrainedBucket{}.TryConvert()
	return err.Error()
}

func BadMember() string {
	name := "my-bucket"
	labels := UnconstrainedLabels{"b": "ok-label", "a": "NOPE"}
	_, err := UnconstrainedBucket{Name: &name, Labels: labels}.TryConvert()
	violation, ok := err.(BucketMemberViolation)
	if !ok {
		return fmt.Sprintf("unexpected error %v", err)
	}
	return violation.Member + "|" + err.Error()
}

func Valid() string {
	name := "my-bucket"
	tier := "B"
	note := "n"
	b, err := UnconstrainedBucket{Name: &name, Tier: &tier, Note: &note, Ports: UnconstrainedPorts{80}}.TryConvert()
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%s|%s|%s|%d|%t", b.Name.Value(), *b.Tier, *b.Note, b.Ports.Value()[0].Value(), b.Labels == nil)
}
`, "Missing", "BadMember", "Valid")

	assert.Equal(t, "`name` was not provided but it is required when building `Bucket`", got["Missing"])
	assert.Equal(t,
		"labels|constraint violation occurred at member `labels`: constraint violation occurred at value of key \"a\": "+
			`value "NOPE" failed to satisfy constraint: member must satisfy regular expression pattern: ^[a-z0-9.-]+$`,
		got["BadMember"])
	assert.Equal(t, "my-bucket|B|n|80|true", got["Valid"])
}

func TestGenerator_PublicWrappers(t *testing.T) {
	// Test: Public mode emits wrapper structs for constrained scalars
	src := generate(t, inventoryModel(t), true)

	assert.Contains(t, src, "// Code generated by shapegen. DO NOT EDIT.")
	assert.Contains(t, src, "type BucketName struct {\n\tvalue string\n}")
	assert.Contains(t, src, "func NewBucketName(v string) (BucketName, error) {")
	assert.Contains(t, src, "var bucketNamePattern = regexp.MustCompile(\"^[a-z0-9.-]+$\")")
	assert.Contains(t, src, "if n := utf8.RuneCountInString(v); n < 3 || n > 63 {")
	assert.Contains(t, src, "type PortConstraintViolation interface {\n\terror\n\tisPortConstraintViolation()\n}")
	assert.Contains(t, src, "func (e PortsMemberViolation) Unwrap() error {")
	assert.Contains(t, src, "type UnconstrainedLabels map[string]string")
	assert.Regexp(t, `Name\s+BucketName\s+`+"`json:\"name\"`", src)
	assert.NotContains(t, src, "type Tier struct")
}

func TestGenerator_PrivateMode(t *testing.T) {
	// Test: Private mode validates scalars in place and keeps collection wrappers
	src := generate(t, inventoryModel(t), false)

	assert.NotContains(t, src, "type BucketName struct")
	assert.NotContains(t, src, "type Port struct")
	assert.Contains(t, src, "func validateBucketName(v string) error {")
	assert.Contains(t, src, "type Ports struct {\n\tvalue []int32\n}")
	assert.Contains(t, src, "// Values are validated against BucketName.")

	got := runGenerated(t, src, `import "fmt"

func Convert() string {
	_, err := UnconstrainedPorts{5, 0}.TryConvert()
	violation, ok := err.(PortsMemberViolation)
	if !ok {
		return fmt.Sprintf("unexpected error %v", err)
	}
	if _, ok := violation.Err.(PortRangeViolation); !ok {
		return "unexpected inner error"
	}
	return fmt.Sprint(violation.Index)
}
`, "Convert")
	assert.Equal(t, "1", got["Convert"])
}

func TestGenerator_Errors(t *testing.T) {
	// Test: Unrepresentable constraints fail generation with a shape error
	tests := []struct {
		name   string
		build  func(b *model.Builder)
		reason string
	}{
		{
			name: "invalid pattern",
			build: func(b *model.Builder) {
				b.String("Broken", model.Traits{Pattern: &model.Pattern{Regex: "(["}})
			},
			reason: `invalid @pattern "(["`,
		},
		{
			name: "range exceeds type",
			build: func(b *model.Builder) {
				b.Scalar("Small", model.ScalarByte, model.Traits{Range: &model.Range{Max: model.Int64(300)}})
			},
			reason: "@range bound 300 does not fit in int8",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := model.NewBuilder("test")
			tt.build(b)
			m, err := b.Build()
			require.NoError(t, err)

			p := constraints.NewPlanner(classify.New(m, nil), "model")
			err = constraints.NewGenerator(p, sink.Module{Path: "model", Name: "model"}, zerolog.Nop()).
				Generate(context.Background(), sink.NewCollector())

			var shapeErr *model.ShapeError
			require.True(t, errors.As(err, &shapeErr))
			assert.Contains(t, shapeErr.Reason, tt.reason)
		})
	}
}

func TestGenerator_Cancelled(t *testing.T) {
	// Test: Generation stops when the context is cancelled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := constraints.NewPlanner(classify.New(inventoryModel(t), nil), "model")
	out := sink.NewCollector()
	err := constraints.NewGenerator(p, sink.Module{Path: "model", Name: "model"}, zerolog.Nop()).Generate(ctx, out)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.Modules())
}
