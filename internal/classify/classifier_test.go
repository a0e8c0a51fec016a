package classify

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okra-platform/shapegen/internal/model"
)

func id(name string) model.ShapeID {
	return model.NewShapeID("test", name)
}

// fixture builds a model covering every shape kind:
//
//	BucketName  string  @length(3, 63)
//	Tier        string  enum
//	Port        integer @range(1, 65535)
//	Ports       [Port]  @length(1, 8)
//	Tags        [String] @uniqueItems
//	Labels      map[String]BucketName
//	Sized       map[String]String @length(max 4)
//	Outer       { plain: String, name: BucketName }
//	Wrapper     { outer: Outer }
//	Plain       { a: String, b: Boolean }
//	Node        { next: Node, value: String }
//	Req         { id: String! }
//	Choice      union { port: Port, flag: Boolean }
func fixture(t *testing.T) *model.Model {
	t.Helper()
	b := model.NewBuilder("test")
	bucketName := b.String("BucketName", model.Traits{Length: &model.Length{Min: model.Int64(3), Max: model.Int64(63)}})
	b.String("Tier", model.Traits{Enum: &model.Enum{Values: []model.EnumValue{{Name: "HOT", Value: "HOT"}, {Name: "COLD", Value: "COLD"}}}})
	port := b.Integer("Port", model.Traits{Range: &model.Range{Min: model.Int64(1), Max: model.Int64(65535)}})
	b.List("Ports", model.MemberSpec{Target: port}, model.Traits{Length: &model.Length{Min: model.Int64(1), Max: model.Int64(8)}})
	b.List("Tags", model.MemberSpec{Target: model.PreludeString}, model.Traits{UniqueItems: true})
	b.Map("Labels", model.PreludeString, bucketName, model.Traits{})
	b.Map("Sized", model.PreludeString, model.PreludeString, model.Traits{Length: &model.Length{Max: model.Int64(4)}})
	outer := b.Structure("Outer", "",
		model.MemberSpec{Name: "plain", Target: model.PreludeString},
		model.MemberSpec{Name: "name", Target: bucketName},
	)
	b.Structure("Wrapper", "", model.MemberSpec{Name: "outer", Target: outer})
	b.Structure("Plain", "",
		model.MemberSpec{Name: "a", Target: model.PreludeString},
		model.MemberSpec{Name: "b", Target: model.PreludeBoolean},
	)
	b.Structure("Node", "",
		model.MemberSpec{Name: "next", Target: id("Node")},
		model.MemberSpec{Name: "value", Target: model.PreludeString},
	)
	b.Structure("Req", "", model.MemberSpec{Name: "id", Target: model.PreludeString, Traits: model.Traits{Required: true}})
	b.Union("Choice", "",
		model.MemberSpec{Name: "port", Target: port},
		model.MemberSpec{Name: "flag", Target: model.PreludeBoolean},
	)
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestClassifier_DirectlyConstrained(t *testing.T) {
	// Test: Each shape kind is directly constrained only by its supported traits
	m := fixture(t)
	c := New(m, nil)

	tests := []struct {
		shape model.ShapeID
		want  bool
	}{
		{id("BucketName"), true},
		{id("Tier"), true},
		{id("Port"), true},
		{id("Ports"), true},
		{id("Tags"), false},
		{id("Labels"), false},
		{id("Sized"), true},
		{id("Outer"), false},
		{id("Plain"), false},
		{id("Req"), true},
		{id("Choice"), false},
		{model.PreludeString, false},
		{model.PreludeBoolean, false},
		{id("Outer").WithMember("name"), false},
	}
	for _, tt := range tests {
		t.Run(tt.shape.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsDirectlyConstrained(m.Expect(tt.shape)))
		})
	}
}

func TestClassifier_UniqueItemsRecognisedButUnsupported(t *testing.T) {
	// Test: uniqueItems counts as a constraint trait but does not constrain
	m := fixture(t)
	c := New(m, nil)
	tags := m.Expect(id("Tags"))

	assert.True(t, HasConstraintTrait(tags))
	assert.False(t, c.IsDirectlyConstrained(tags))
	assert.False(t, c.CanReachConstrainedShape(tags))
	assert.Equal(t, []model.TraitKind{model.TraitUniqueItems}, UnsupportedTraits(tags))
}

func TestClassifier_Reachability(t *testing.T) {
	// Test: Reachability follows members transitively and tolerates cycles
	m := fixture(t)
	c := New(m, nil)

	assert.True(t, c.CanReachConstrainedShape(m.Expect(id("Outer"))))
	assert.True(t, c.CanReachConstrainedShape(m.Expect(id("Wrapper"))))
	assert.True(t, c.CanReachConstrainedShape(m.Expect(id("Labels"))))
	assert.True(t, c.CanReachConstrainedShape(m.Expect(id("Choice"))))
	assert.False(t, c.CanReachConstrainedShape(m.Expect(id("Plain"))))
	assert.False(t, c.CanReachConstrainedShape(m.Expect(id("Node"))))

	assert.True(t, c.IsTransitivelyButNotDirectlyConstrained(m.Expect(id("Wrapper"))))
	assert.False(t, c.IsTransitivelyButNotDirectlyConstrained(m.Expect(id("Ports"))))
}

func TestClassifier_MemberDelegatesToTarget(t *testing.T) {
	// Test: A member's reachability never includes its container
	m := fixture(t)
	c := New(m, nil)

	plain := m.Expect(id("Outer").WithMember("plain"))
	name := m.Expect(id("Outer").WithMember("name"))

	// A literal walk from the member reaches Outer and then BucketName.
	assert.True(t, model.NewWalker(m).Any(plain.ID, func(s *model.Shape) bool { return s.ID == id("BucketName") }))

	assert.False(t, c.CanReachConstrainedShape(plain))
	assert.Equal(t, c.CanReachConstrainedShape(m.Target(plain)), c.CanReachConstrainedShape(plain))
	assert.True(t, c.CanReachConstrainedShape(name))
	assert.True(t, c.MemberHasConstraintTraitOrTargetHasConstraintTrait(name))
	assert.False(t, c.MemberHasConstraintTraitOrTargetHasConstraintTrait(plain))
}

func TestClassifier_Properties(t *testing.T) {
	// Test: Classification invariants hold for every shape in the model
	m := fixture(t)
	c := New(m, nil)

	for _, s := range m.Shapes() {
		direct := c.IsDirectlyConstrained(s)
		reach := c.CanReachConstrainedShape(s)
		if direct {
			assert.True(t, reach, "%s is directly constrained but cannot reach a constrained shape", s.ID)
		}
		assert.Equal(t, !direct && reach, c.IsTransitivelyButNotDirectlyConstrained(s), s.ID.String())
		if s.IsMember() {
			assert.Equal(t, c.CanReachConstrainedShape(m.Target(s)), reach, s.ID.String())
		}
		assert.Equal(t, c.Classify(s), New(m, nil).Classify(s), "classification of %s is not deterministic", s.ID)
		assert.Equal(t, c.Classify(s), c.Classify(s))
	}
}

func TestClassifier_PublicWrapperAsymmetry(t *testing.T) {
	// Test: Scalars need wrappers only in public mode; collections and maps always do
	m := fixture(t)
	public := New(m, nil, WithPublicConstrainedTypes(true))
	private := New(m, nil, WithPublicConstrainedTypes(false))

	tests := []struct {
		shape          model.ShapeID
		public, hidden bool
	}{
		{id("BucketName"), true, false},
		{id("Port"), true, false},
		{id("Tier"), false, false},
		{id("Ports"), true, true},
		{id("Sized"), true, true},
		{id("Labels"), false, false},
		{id("Outer"), false, false},
		{id("Outer").WithMember("name"), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.shape.String(), func(t *testing.T) {
			s := m.Expect(tt.shape)
			assert.Equal(t, tt.public, public.HasPublicConstrainedWrapperType(s))
			assert.Equal(t, tt.hidden, private.HasPublicConstrainedWrapperType(s))
		})
	}
}

func TestClassifier_TypeNameContainsNonPublicType(t *testing.T) {
	// Test: Only private mode hides constrained scalars inside type names
	m := fixture(t)
	public := New(m, nil)
	private := New(m, nil, WithPublicConstrainedTypes(false))

	for _, s := range m.Shapes() {
		assert.False(t, public.TypeNameContainsNonPublicType(s))
	}
	assert.True(t, private.TypeNameContainsNonPublicType(m.Expect(id("BucketName"))))
	assert.True(t, private.TypeNameContainsNonPublicType(m.Expect(id("Labels"))))
	assert.True(t, private.TypeNameContainsNonPublicType(m.Expect(id("Outer").WithMember("name"))))
	assert.False(t, private.TypeNameContainsNonPublicType(m.Expect(id("Tier"))))
	assert.False(t, private.TypeNameContainsNonPublicType(m.Expect(id("Outer"))))
}

func TestClassifier_ClassifyAllMatchesSequential(t *testing.T) {
	// Test: Parallel classification yields the same results as sequential
	m := fixture(t)

	parallel, err := New(m, nil).ClassifyAll(context.Background())
	require.NoError(t, err)

	sequential := New(m, nil)
	want := make(map[model.ShapeID]Result)
	for _, s := range m.Shapes() {
		want[s.ID] = sequential.Classify(s)
	}

	if diff := cmp.Diff(want, parallel); diff != "" {
		t.Errorf("ClassifyAll mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifier_ClassifyAllCancelled(t *testing.T) {
	// Test: A cancelled context aborts classification
	m := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(m, nil).ClassifyAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifier_Report(t *testing.T) {
	// Test: The report lists namespace shapes sorted by ID
	m := fixture(t)
	rows, err := New(m, nil, WithLogger(zerolog.Nop())).Report(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, len(m.NamespaceShapes()))
	assert.Equal(t, id("BucketName"), rows[0].Shape)
	for i := 1; i < len(rows); i++ {
		assert.Less(t, string(rows[i-1].Shape), string(rows[i].Shape))
	}
}
