package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shapeIDs(shapes []*Shape) []ShapeID {
	ids := make([]ShapeID, len(shapes))
	for i, s := range shapes {
		ids[i] = s.ID
	}
	return ids
}

func TestWalker_RecursiveStructureTerminates(t *testing.T) {
	// Test: A self-referencing structure is walked once
	b := NewBuilder("test")
	node := b.ID("Node")
	b.Structure("Node", "",
		MemberSpec{Name: "value", Target: PreludeString},
		MemberSpec{Name: "next", Target: node},
	)
	m, err := b.Build()
	require.NoError(t, err)

	walked := shapeIDs(NewWalker(m).Walk(node))
	assert.ElementsMatch(t, []ShapeID{
		node,
		node.WithMember("value"),
		node.WithMember("next"),
		PreludeString,
	}, walked)
	assert.Equal(t, node, walked[0])
}

func TestWalker_MemberReachesContainer(t *testing.T) {
	// Test: Walking from a member also reaches its container
	b := NewBuilder("test")
	constrained := b.String("Short", Traits{Length: &Length{Max: Int64(2)}})
	outer := b.Structure("Outer", "",
		MemberSpec{Name: "plain", Target: PreludeString},
		MemberSpec{Name: "short", Target: constrained},
	)
	m, err := b.Build()
	require.NoError(t, err)

	walked := shapeIDs(NewWalker(m).Walk(outer.WithMember("plain")))
	assert.Contains(t, walked, outer)
	assert.Contains(t, walked, constrained)
}

func TestWalker_AnyStopsEarly(t *testing.T) {
	// Test: Any stops at the first matching shape
	b := NewBuilder("test")
	list := b.List("Names", MemberSpec{Target: PreludeString}, Traits{})
	m, err := b.Build()
	require.NoError(t, err)

	visits := 0
	found := NewWalker(m).Any(list, func(s *Shape) bool {
		visits++
		return s.ID == list
	})
	assert.True(t, found)
	assert.Equal(t, 1, visits)

	found = NewWalker(m).Any(list, func(s *Shape) bool { return s.ID == PreludeLong })
	assert.False(t, found)
}
