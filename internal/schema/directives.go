package schema

import (
	"fmt"
	"strconv"

	"github.com/wundergraph/graphql-go-tools/v2/pkg/ast"

	"github.com/okra-platform/shapegen/internal/model"
)

// Directive is a directive application with its arguments rendered as
// strings.
type Directive struct {
	Name string
	Args map[string]string
}

// scalarKinds maps kind directives on scalar definitions to the scalar they
// select. Scalars without one are strings.
var scalarKinds = map[string]model.Scalar{
	"byte":      model.ScalarByte,
	"short":     model.ScalarShort,
	"integer":   model.ScalarInteger,
	"long":      model.ScalarLong,
	"boolean":   model.ScalarBoolean,
	"float":     model.ScalarFloat,
	"double":    model.ScalarDouble,
	"blob":      model.ScalarBlob,
	"timestamp": model.ScalarTimestamp,
	"document":  model.ScalarDocument,
}

// applyTraits folds trait directives into traits and returns the directives
// that are not traits.
func applyTraits(owner string, directives []Directive, traits *model.Traits) ([]Directive, error) {
	var rest []Directive
	for _, d := range directives {
		switch d.Name {
		case "length":
			min, max, err := bounds(owner, d)
			if err != nil {
				return nil, err
			}
			traits.Length = &model.Length{Min: min, Max: max}
		case "range":
			min, max, err := bounds(owner, d)
			if err != nil {
				return nil, err
			}
			traits.Range = &model.Range{Min: min, Max: max}
		case "pattern":
			regex, ok := d.Args["regex"]
			if !ok {
				return nil, fmt.Errorf("%s: @pattern requires a regex argument", owner)
			}
			traits.Pattern = &model.Pattern{Regex: regex}
		case "uniqueItems":
			traits.UniqueItems = true
		case "streaming":
			traits.Streaming = true
		case "required":
			traits.Required = true
		case "default":
			value, ok := d.Args["value"]
			if !ok {
				return nil, fmt.Errorf("%s: @default requires a value argument", owner)
			}
			traits.Default = &value
		default:
			rest = append(rest, d)
		}
	}
	return rest, nil
}

func bounds(owner string, d Directive) (*int64, *int64, error) {
	parse := func(arg string) (*int64, error) {
		raw, ok := d.Args[arg]
		if !ok {
			return nil, nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: @%s %s %q is not an integer", owner, d.Name, arg, raw)
		}
		return &v, nil
	}
	min, err := parse("min")
	if err != nil {
		return nil, nil, err
	}
	max, err := parse("max")
	if err != nil {
		return nil, nil, err
	}
	if min == nil && max == nil {
		return nil, nil, fmt.Errorf("%s: @%s needs min, max or both", owner, d.Name)
	}
	if min != nil && max != nil && *min > *max {
		return nil, nil, fmt.Errorf("%s: @%s min %d is greater than max %d", owner, d.Name, *min, *max)
	}
	return min, max, nil
}

func parseDirectives(doc *ast.Document, directives ast.DirectiveList) []Directive {
	result := make([]Directive, 0, len(directives.Refs))
	for _, directiveRef := range directives.Refs {
		directive := doc.Directives[directiveRef]
		result = append(result, Directive{
			Name: doc.Input.ByteSliceString(directive.Name),
			Args: parseDirectiveArgs(doc, directive),
		})
	}
	return result
}

func parseDirectiveArgs(doc *ast.Document, directive ast.Directive) map[string]string {
	args := make(map[string]string)
	for _, argRef := range directive.Arguments.Refs {
		arg := doc.Arguments[argRef]
		args[doc.Input.ByteSliceString(arg.Name)] = parseValue(doc, doc.ArgumentValue(argRef))
	}
	return args
}

func parseValue(doc *ast.Document, value ast.Value) string {
	switch value.Kind {
	case ast.ValueKindString:
		return doc.StringValueContentString(value.Ref)
	case ast.ValueKindEnum:
		if value.Ref >= 0 && value.Ref < len(doc.EnumValues) {
			return doc.Input.ByteSliceString(doc.EnumValues[value.Ref].Name)
		}
	case ast.ValueKindBoolean:
		if value.Ref >= 0 && value.Ref < len(doc.BooleanValues) {
			return strconv.FormatBool(bool(doc.BooleanValues[value.Ref]))
		}
	case ast.ValueKindInteger:
		return fmt.Sprintf("%d", doc.IntValueAsInt(value.Ref))
	case ast.ValueKindFloat:
		return fmt.Sprintf("%g", doc.FloatValueAsFloat32(value.Ref))
	}
	return ""
}
