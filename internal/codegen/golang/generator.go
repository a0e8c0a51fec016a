// Package golang generates the Go model types: enums, structures, unions and
// service interfaces.
package golang

import (
	"context"
	"strings"

	"github.com/okra-platform/shapegen/internal/codegen/sink"
	"github.com/okra-platform/shapegen/internal/codegen/writer"
	"github.com/okra-platform/shapegen/internal/constraints"
	"github.com/okra-platform/shapegen/internal/model"
	"github.com/okra-platform/shapegen/internal/symbols"
)

// Generator generates Go model types from a shape model
type Generator struct {
	planner *constraints.Planner
	module  sink.Module
}

// NewGenerator creates a new Go model generator. Member types are resolved
// through the planner so constrained members use their wrapper types.
func NewGenerator(p *constraints.Planner, module sink.Module) *Generator {
	return &Generator{
		planner: p,
		module:  module,
	}
}

// Language returns the name of the target language
func (g *Generator) Language() string {
	return "go"
}

// FileExtension returns the file extension for generated files
func (g *Generator) FileExtension() string {
	return ".go"
}

// Generate emits one fragment per named shape and per service.
func (g *Generator) Generate(ctx context.Context, out sink.Sink) error {
	m := g.planner.Model()

	for _, s := range m.NamespaceShapes() {
		if err := ctx.Err(); err != nil {
			return err
		}

		w := writer.NewWriter("\t")
		imports := map[string]bool{}
		switch {
		case s.Kind == model.KindString && s.Traits.Enum != nil:
			g.generateEnum(w, s)
		case s.Kind == model.KindStructure:
			g.generateStruct(w, s, imports)
		case s.Kind == model.KindUnion:
			g.generateUnion(w, s, imports)
		default:
			continue
		}

		if err := out.EmitInto(g.module, sink.Fragment{
			Unit:    "type:" + string(s.ID),
			Imports: keys(imports),
			Code:    w.String(),
		}); err != nil {
			return err
		}
	}

	for _, svc := range m.Services {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := writer.NewWriter("\t")
		g.generateServiceInterface(w, svc)
		if err := out.EmitInto(g.module, sink.Fragment{
			Unit:    "service:" + svc.Name,
			Imports: []string{"context"},
			Code:    w.String(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// generateEnum generates a string type, one constant per value and Valid.
func (g *Generator) generateEnum(w *writer.Writer, s *model.Shape) {
	name := symbols.UpperCamel(s.Name())
	values := s.Traits.Enum.Values

	if s.Doc != "" {
		w.WriteDocComment(s.Doc)
	} else {
		w.WriteLinef("// %s is one of a fixed set of string values.", name)
	}
	w.WriteLinef("type %s string", name)
	w.BlankLine()

	w.WriteLine("const (")
	w.Indent()
	for _, value := range values {
		w.WriteDocComment(value.Doc)
		w.WriteLinef("%s %s = %q", enumConst(name, value), name, value.Value)
	}
	w.Dedent()
	w.WriteLine(")")
	w.BlankLine()

	consts := make([]string, len(values))
	for i, value := range values {
		consts[i] = enumConst(name, value)
	}
	w.WriteLinef("// Valid reports whether the %s is a member of the enum value set.", name)
	w.Blockf(func() {
		w.WriteLine("switch e {")
		w.WriteLinef("case %s:", strings.Join(consts, ", "))
		w.Indent()
		w.WriteLine("return true")
		w.Dedent()
		w.WriteLine("default:")
		w.Indent()
		w.WriteLine("return false")
		w.Dedent()
		w.WriteLine("}")
	}, "func (e %s) Valid() bool", name)
	w.BlankLine()

	w.WriteLinef("// %sValues returns every %s in declaration order.", name, name)
	w.Blockf(func() {
		w.WriteLinef("return []%s{%s}", name, strings.Join(consts, ", "))
	}, "func %sValues() []%s", name, name)
}

// generateStruct generates a Go struct for a structure shape. Required
// members are values, optional members are pointers or nil-able.
func (g *Generator) generateStruct(w *writer.Writer, s *model.Shape, imports map[string]bool) {
	name := symbols.UpperCamel(s.Name())

	w.WriteDocComment(s.Doc)
	w.Blockf(func() {
		for _, member := range g.model().Members(s) {
			g.generateField(w, member, false, imports)
		}
	}, "type %s struct", name)
}

func (g *Generator) generateField(w *writer.Writer, member *model.Shape, optional bool, imports map[string]bool) {
	d := g.planner.Constrained()(member)
	if optional {
		d = d.AsOptional()
	}
	for _, imp := range d.Imports {
		imports[imp] = true
	}

	w.WriteDocComment(member.Doc)
	if d.Visibility == symbols.Private {
		w.WriteLinef("// Values are validated against %s.", g.model().Target(member).ID.Name())
	}
	tag := member.Name()
	if d.Optional {
		tag += ",omitempty"
	}
	w.WriteLinef("%s %s `json:\"%s\"`", symbols.UpperCamel(member.Name()), d.GoType(), tag)
}

// generateUnion generates a struct holding one pointer per variant. At most
// one variant is expected to be set, so every variant is optional.
func (g *Generator) generateUnion(w *writer.Writer, s *model.Shape, imports map[string]bool) {
	name := symbols.UpperCamel(s.Name())
	members := g.model().Members(s)

	if s.Doc != "" {
		w.WriteDocComment(s.Doc)
	} else {
		w.WriteLinef("// %s holds exactly one of its variants.", name)
	}
	w.Blockf(func() {
		for _, member := range members {
			g.generateField(w, member, true, imports)
		}
	}, "type %s struct", name)
	w.BlankLine()

	w.WriteLinef("// Which returns the name of the variant that is set, or \"\" if none is.")
	w.Blockf(func() {
		w.WriteLine("switch {")
		for _, member := range members {
			field := symbols.UpperCamel(member.Name())
			w.WriteLinef("case u.%s != nil:", field)
			w.Indent()
			w.WriteLinef("return %q", member.Name())
			w.Dedent()
		}
		w.WriteLine("default:")
		w.Indent()
		w.WriteLine(`return ""`)
		w.Dedent()
		w.WriteLine("}")
	}, "func (u %s) Which() string", name)
}

// generateServiceInterface generates a Go interface for a service.
func (g *Generator) generateServiceInterface(w *writer.Writer, svc model.Service) {
	name := symbols.UpperCamel(svc.Name)
	if svc.Doc != "" {
		w.WriteDocComment(svc.Doc)
	} else {
		w.WriteLinef("// %s defines the service interface", name)
	}

	w.Blockf(func() {
		for i, op := range svc.Operations {
			w.WriteDocComment(op.Doc)
			w.WriteLinef("%s(ctx context.Context, input %s) (%s, error)",
				symbols.UpperCamel(op.Name), g.operationType(op.Input), g.operationType(op.Output))
			if i < len(svc.Operations)-1 {
				w.BlankLine()
			}
		}
	}, "type %s interface", name)
}

// operationType renders an operation's input or output. Structures are
// passed by pointer; a missing shape becomes an empty struct.
func (g *Generator) operationType(id model.ShapeID) string {
	if id == "" {
		return "struct{}"
	}
	s := g.model().Expect(id)
	d := g.planner.Constrained()(s)
	if s.Kind == model.KindStructure || s.Kind == model.KindUnion {
		return "*" + d.Name
	}
	return d.Name
}

func enumConst(typeName string, v model.EnumValue) string {
	return typeName + symbols.UpperCamel(v.Name)
}

func (g *Generator) model() *model.Model {
	return g.planner.Model()
}

func keys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
