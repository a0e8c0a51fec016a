package classify

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/okra-platform/shapegen/internal/model"
)

// Validate rejects shapes whose constraint traits cannot be generated. The
// first offending shape aborts validation.
//
// A streaming shape carrying any constraint trait is always fatal. Traits
// that are recognised but unsupported on a shape are fatal unless
// ignoreUnsupported is set, in which case they are logged and skipped.
func Validate(m *model.Model, logger zerolog.Logger, ignoreUnsupported bool) error {
	for _, s := range m.Shapes() {
		if s.Traits.Streaming && HasConstraintTrait(s) {
			return &model.ShapeError{
				Shape:  s.ID,
				Reason: fmt.Sprintf("streaming shape cannot carry constraint traits %s", traitList(constraintKinds(s))),
			}
		}
		if s.IsMember() && m.Target(s).Traits.Streaming {
			if kinds := memberConstraintKinds(s); len(kinds) > 0 {
				return &model.ShapeError{
					Shape:  s.ID,
					Reason: fmt.Sprintf("member targeting a streaming shape cannot carry constraint traits %s", traitList(kinds)),
				}
			}
		}

		unsupported := UnsupportedTraits(s)
		if len(unsupported) == 0 {
			continue
		}
		reason := fmt.Sprintf("constraint traits %s are not supported on %s shapes", traitList(unsupported), s.Kind)
		if !ignoreUnsupported {
			return &model.ShapeError{Shape: s.ID, Reason: reason + " (set ignoreUnsupportedConstraints to skip them)"}
		}
		logger.Warn().Str("shape", s.ID.String()).Msg(reason + "; ignoring")
	}
	return nil
}

// UnsupportedTraits lists the recognised constraint traits on s that
// generation does not enforce.
func UnsupportedTraits(s *model.Shape) []model.TraitKind {
	var out []model.TraitKind
	for _, kind := range constraintKinds(s) {
		if !supportedOn(s, kind) {
			out = append(out, kind)
		}
	}
	return out
}

func supportedOn(s *model.Shape, kind model.TraitKind) bool {
	switch kind {
	case model.TraitRequired:
		return s.IsMember()
	case model.TraitUniqueItems:
		return false
	case model.TraitEnum:
		return s.Kind == model.KindString
	case model.TraitPattern:
		return s.Kind == model.KindString
	case model.TraitRange:
		return s.Kind == model.KindInteger
	case model.TraitLength:
		return s.Kind == model.KindString || s.Kind == model.KindCollection || s.Kind == model.KindMap
	default:
		return false
	}
}

func constraintKinds(s *model.Shape) []model.TraitKind {
	var out []model.TraitKind
	for _, kind := range AllConstraintTraits {
		if s.Traits.Has(kind) {
			out = append(out, kind)
		}
	}
	return out
}

func memberConstraintKinds(s *model.Shape) []model.TraitKind {
	var out []model.TraitKind
	for _, kind := range constraintKinds(s) {
		if kind != model.TraitRequired {
			out = append(out, kind)
		}
	}
	return out
}

func traitList(kinds []model.TraitKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = "@" + k.String()
	}
	return "[" + strings.Join(names, ", ") + "]"
}
