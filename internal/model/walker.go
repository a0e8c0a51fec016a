package model

// Walker traverses the shape graph. Every walk tracks visited shapes, so
// recursive structures terminate.
type Walker struct {
	model *Model
}

// NewWalker creates a walker over m.
func NewWalker(m *Model) *Walker {
	return &Walker{model: m}
}

// Neighbors returns the shapes directly connected to s. Containers connect to
// their members; a member connects to its target and back to its container.
func (w *Walker) Neighbors(s *Shape) []ShapeID {
	if s.Kind == KindMember {
		return []ShapeID{s.Target, s.Container}
	}
	return s.Members
}

// Walk returns every shape reachable from start, start included, in
// depth-first discovery order.
func (w *Walker) Walk(start ShapeID) []*Shape {
	var out []*Shape
	w.visit(start, func(s *Shape) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Any reports whether any shape reachable from start satisfies pred. The walk
// stops at the first match.
func (w *Walker) Any(start ShapeID, pred func(*Shape) bool) bool {
	found := false
	w.visit(start, func(s *Shape) bool {
		if pred(s) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (w *Walker) visit(start ShapeID, fn func(*Shape) bool) {
	visited := map[ShapeID]bool{start: true}
	stack := []ShapeID{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		s := w.model.Expect(id)
		if !fn(s) {
			return
		}

		neighbors := w.Neighbors(s)
		// Push in reverse so members are visited in declaration order.
		for i := len(neighbors) - 1; i >= 0; i-- {
			next := neighbors[i]
			if visited[next] {
				continue
			}
			visited[next] = true
			stack = append(stack, next)
		}
	}
}
