package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/shapegen/internal/model"
)

func TestWords(t *testing.T) {
	// Test: Identifiers split on case changes, initialisms and separators
	tests := []struct {
		in   string
		want []string
	}{
		{"Region", []string{"Region"}},
		{"UseFIPS", []string{"Use", "FIPS"}},
		{"ABoolParam", []string{"A", "Bool", "Param"}},
		{"HTTPServer", []string{"HTTP", "Server"}},
		{"endpoint_url", []string{"endpoint", "url"}},
		{"s3Express", []string{"s3", "Express"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Words(tt.in))
		})
	}
}

func TestCasing(t *testing.T) {
	// Test: Casing helpers produce valid Go identifiers
	assert.Equal(t, "region", LowerCamel("Region"))
	assert.Equal(t, "useFIPS", LowerCamel("UseFIPS"))
	assert.Equal(t, "type_", LowerCamel("Type"))
	assert.Equal(t, "x1StParam", LowerCamel("1stParam"))
	assert.Equal(t, "EndpointURL", UpperCamel("endpoint_URL"))
	assert.Equal(t, "Bucket", UpperCamel("bucket"))
	assert.Equal(t, "X2Fast", UpperCamel("2fast"))
	assert.Equal(t, "bucketName", Unexported("BucketName"))
	assert.Equal(t, "map_", Unexported("Map"))
}

func TestDescriptor_GoType(t *testing.T) {
	// Test: Optional values become pointers unless already nilable
	str := TypeDescriptor{Name: "string", Copy: true}
	list := TypeDescriptor{Name: "[]Port", Nilable: true}

	assert.Equal(t, "string", str.GoType())
	assert.Equal(t, "*string", str.AsOptional().GoType())
	assert.Equal(t, "[]Port", list.AsOptional().GoType())
	assert.Equal(t, `""`, str.ZeroValue())
	assert.Equal(t, "nil", str.AsOptional().ZeroValue())
	assert.Equal(t, "Bucket{}", Named("Bucket", "model").ZeroValue())
}

func TestResolveScalarType(t *testing.T) {
	// Test: Parameter tags map to string and bool
	d, err := ResolveScalarType("String")
	require.NoError(t, err)
	assert.Equal(t, "string", d.Name)

	d, err = ResolveScalarType(TagBoolean)
	require.NoError(t, err)
	assert.Equal(t, "bool", d.Name)

	_, err = ResolveScalarType("stringArray")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"stringArray"`)
}

func testModel(t *testing.T) *model.Model {
	t.Helper()
	b := model.NewBuilder("test")
	port := b.Integer("Port", model.Traits{Range: &model.Range{Min: model.Int64(1)}})
	ports := b.List("Ports", model.MemberSpec{Target: port}, model.Traits{})
	payload := b.Scalar("Payload", model.ScalarBlob, model.Traits{Streaming: true})
	tier := b.String("Tier", model.Traits{Enum: &model.Enum{Values: []model.EnumValue{{Name: "HOT", Value: "HOT"}}}})
	b.Map("Labels", model.PreludeString, model.PreludeTimestamp, model.Traits{})
	b.Structure("Upload", "",
		model.MemberSpec{Name: "ports", Target: ports},
		model.MemberSpec{Name: "body", Target: payload},
		model.MemberSpec{Name: "tier", Target: tier, Traits: model.Traits{Required: true}},
		model.MemberSpec{Name: "size", Target: model.PreludeLong},
	)
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestBase(t *testing.T) {
	// Test: The base resolver maps every shape kind to a Go type
	m := testModel(t)
	resolve := Chain(Base(m, "model"))
	id := func(name string) model.ShapeID { return model.NewShapeID("test", name) }

	assert.Equal(t, "int32", resolve(m.Expect(id("Port"))).Name)
	assert.Equal(t, "[]int32", resolve(m.Expect(id("Ports"))).Name)
	assert.Equal(t, "Tier", resolve(m.Expect(id("Tier"))).Name)
	assert.Equal(t, "model", resolve(m.Expect(id("Tier"))).Module)

	labels := resolve(m.Expect(id("Labels")))
	assert.Equal(t, "map[string]time.Time", labels.Name)
	assert.Equal(t, []string{"time"}, labels.Imports)

	upload := id("Upload")
	assert.Equal(t, "*int64", resolve(m.Expect(upload.WithMember("size"))).GoType())
	assert.Equal(t, "Tier", resolve(m.Expect(upload.WithMember("tier"))).GoType())
	assert.Equal(t, "[]int32", resolve(m.Expect(upload.WithMember("ports"))).GoType())
	assert.False(t, resolve(m.Expect(upload.WithMember("body"))).Optional, "streaming blob members are implicitly required")
}

func TestChain_DecoratorsSeeElements(t *testing.T) {
	// Test: A decorator's renaming reaches collection elements through self
	m := testModel(t)
	rename := func(self, next Resolver) Resolver {
		return func(s *model.Shape) TypeDescriptor {
			if s.ID == model.NewShapeID("test", "Port") {
				return Named("Port", "model")
			}
			return next(s)
		}
	}
	resolve := Chain(Base(m, "model"), rename)

	assert.Equal(t, "[]Port", resolve(m.Expect(model.NewShapeID("test", "Ports"))).Name)
	assert.Equal(t, "string", resolve(m.Expect(model.PreludeString)).Name)
}
