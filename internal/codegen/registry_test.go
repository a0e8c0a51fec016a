package codegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/shapegen/internal/codegen/sink"
)

// stubGenerator emits a single fragment
type stubGenerator struct {
	unit string
	err  error
}

func (s *stubGenerator) Generate(ctx context.Context, out sink.Sink) error {
	if s.err != nil {
		return s.err
	}
	return out.EmitInto(sink.Module{Path: "stub", Name: "stub"}, sink.Fragment{
		Unit: s.unit,
		Code: "// " + s.unit + "\nconst " + s.unit + " = 1",
	})
}

func stubFactory(unit string, err error) Factory {
	return func(p *Project) (Generator, bool) {
		return &stubGenerator{unit: unit, err: err}, true
	}
}

func TestRegistry_NewRegistry(t *testing.T) {
	// Test: A new registry is empty
	r := NewRegistry()
	assert.Empty(t, r.Names())

	_, err := r.Get("model")
	assert.Error(t, err)
}

func TestRegistry_Register(t *testing.T) {
	// Test: A registered factory is returned by name
	r := NewRegistry()
	r.Register("stub", stubFactory("A", nil))

	factory, err := r.Get("stub")
	require.NoError(t, err)
	gen, ok := factory(&Project{})
	assert.True(t, ok)
	assert.IsType(t, &stubGenerator{}, gen)
}

func TestRegistry_UnknownPass(t *testing.T) {
	// Test: Unknown pass names are reported
	_, err := NewRegistry().Get("python")
	require.Error(t, err)
	assert.Equal(t, "unknown generation pass: python", err.Error())
}

func TestRegistry_Names(t *testing.T) {
	// Test: Names are sorted regardless of registration order
	r := NewRegistry()
	r.Register("endpoint", stubFactory("A", nil))
	r.Register("constraints", stubFactory("B", nil))
	r.Register("model", stubFactory("C", nil))

	assert.Equal(t, []string{"constraints", "endpoint", "model"}, r.Names())
}

func TestDefaultRegistry(t *testing.T) {
	// Test: The built-in passes are registered and skip projects without
	// their inputs
	assert.Equal(t, []string{PassConstraints, PassEndpoint, PassModel}, DefaultRegistry.Names())

	for _, name := range DefaultRegistry.Names() {
		factory, err := DefaultRegistry.Get(name)
		require.NoError(t, err)
		_, ok := factory(&Project{})
		assert.False(t, ok, name)
	}
}
