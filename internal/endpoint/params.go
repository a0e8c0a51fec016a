package endpoint

import (
	"fmt"
	"strings"

	"github.com/okra-platform/shapegen/internal/codegen/writer"
	"github.com/okra-platform/shapegen/internal/symbols"
)

// paramNames are the Go identifiers generated for one parameter.
type paramNames struct {
	// member is the field on Params and ParamsBuilder.
	member string
	// accessor is the Params getter and the ParamsBuilder value setter.
	accessor string
	// setter is the ParamsBuilder pointer setter.
	setter string
}

// methodNames are declared on Params or ParamsBuilder and cannot be used as
// accessors.
var methodNames = map[string]bool{
	"Build":     true,
	"ToBuilder": true,
	"String":    true,
	"Equal":     true,
}

// nameParameters derives identifiers for every parameter. Two parameters
// whose identifiers collide are an error.
func nameParameters(params []Parameter) (map[string]paramNames, error) {
	out := make(map[string]paramNames, len(params))
	owners := make(map[string]string)
	claim := func(ident, param string) error {
		if other, taken := owners[ident]; taken && other != param {
			return fmt.Errorf("parameters %q and %q both normalize to %q", other, param, ident)
		}
		owners[ident] = param
		return nil
	}

	for _, p := range params {
		upper := symbols.UpperCamel(p.Name)
		names := paramNames{
			member:   symbols.LowerCamel(p.Name),
			accessor: upper,
			setter:   "Set" + upper,
		}
		if methodNames[names.accessor] {
			names.accessor += "_"
		}
		for _, ident := range []string{names.member, names.accessor, names.setter} {
			if err := claim(ident, p.Name); err != nil {
				return nil, err
			}
		}
		out[p.Name] = names
	}
	return out, nil
}

// paramsGenerator writes the Params record, its builder and
// InvalidParamsError.
type paramsGenerator struct {
	params []Parameter
	names  map[string]paramNames
}

func (g *paramsGenerator) generate() string {
	w := writer.NewWriter("\t")
	g.writeParams(w)
	w.BlankLine()
	g.writeAccessors(w)
	g.writeToBuilder(w)
	w.BlankLine()
	g.writeEqual(w)
	w.BlankLine()
	g.writeString(w)
	w.BlankLine()
	g.writeBuilder(w)
	w.BlankLine()
	g.writeBuild(w)
	w.BlankLine()
	writeInvalidParamsError(w)
	return w.String()
}

func (g *paramsGenerator) writeParams(w *writer.Writer) {
	w.WriteDocComment("Params are the inputs to endpoint resolution. Create them with\nNewParamsBuilder.")
	w.Blockf(func() {
		for _, p := range g.params {
			typ := p.GoType()
			if p.Optional() {
				typ = "*" + typ
			}
			w.WriteLinef("%s %s", g.names[p.Name].member, typ)
		}
	}, "type Params struct")
}

// paramDoc returns the doc comment of a parameter's accessor.
func paramDoc(p Parameter, ident string) string {
	doc := fmt.Sprintf("%s returns the %s parameter.", ident, p.Name)
	if p.Optional() && p.Default == nil {
		doc = fmt.Sprintf("%s returns the %s parameter, or nil when it is unset.", ident, p.Name)
	}
	if user := strings.TrimSpace(p.Documentation); user != "" {
		doc += " " + user
	}
	if p.Default != nil {
		doc += fmt.Sprintf("\n\nWhen unset, this parameter has a default value of `%s`.", p.Default.Display())
	}
	if p.BuiltIn != "" {
		doc += fmt.Sprintf("\n\nThis parameter is populated from the `%s` setting.", p.BuiltIn)
	}
	return doc
}

func (g *paramsGenerator) writeAccessors(w *writer.Writer) {
	for _, p := range g.params {
		n := g.names[p.Name]
		w.WriteDocComment(paramDoc(p, n.accessor))
		w.Blockf(func() {
			if p.Optional() {
				w.Blockf(func() {
					w.WriteLine("return nil")
				}, "if p.%s == nil", n.member)
				w.WriteLinef("v := *p.%s", n.member)
			} else {
				w.WriteLinef("v := p.%s", n.member)
			}
			w.WriteLine("return &v")
		}, "func (p *Params) %s() *%s", n.accessor, p.GoType())
		w.BlankLine()
	}
}

func (g *paramsGenerator) writeToBuilder(w *writer.Writer) {
	w.WriteDocComment("ToBuilder returns a builder holding a copy of p.")
	w.Blockf(func() {
		w.WriteLine("b := NewParamsBuilder()")
		for _, p := range g.params {
			n := g.names[p.Name]
			if p.Optional() {
				w.WriteLinef("b.%s(p.%s)", n.setter, n.member)
			} else {
				w.WriteLinef("b.%s(p.%s)", n.accessor, n.member)
			}
		}
		w.WriteLine("return b")
	}, "func (p *Params) ToBuilder() *ParamsBuilder")
}

func (g *paramsGenerator) writeEqual(w *writer.Writer) {
	w.WriteDocComment("Equal reports whether p and other hold the same values.")
	w.Blockf(func() {
		w.Blockf(func() {
			w.WriteLine("return p == other")
		}, "if p == nil || other == nil")
		for _, p := range g.params {
			m := g.names[p.Name].member
			if p.Optional() {
				w.Blockf(func() {
					w.WriteLine("return false")
				}, "if (p.%s == nil) != (other.%s == nil)", m, m)
				w.Blockf(func() {
					w.WriteLine("return false")
				}, "if p.%s != nil && *p.%s != *other.%s", m, m, m)
			} else {
				w.Blockf(func() {
					w.WriteLine("return false")
				}, "if p.%s != other.%s", m, m)
			}
		}
		w.WriteLine("return true")
	}, "func (p *Params) Equal(other *Params) bool")
}

func (g *paramsGenerator) writeString(w *writer.Writer) {
	w.WriteDocComment("String renders the set parameters for debugging.")
	w.Blockf(func() {
		w.WriteLine("var fields []string")
		for _, p := range g.params {
			m := g.names[p.Name].member
			verb := "%q"
			if p.Type == symbols.TagBoolean {
				verb = "%t"
			}
			if p.Optional() {
				w.Blockf(func() {
					w.WriteLinef("fields = append(fields, fmt.Sprintf(%q, *p.%s))", p.Name+": "+verb, m)
				}, "if p.%s != nil", m)
			} else {
				w.WriteLinef("fields = append(fields, fmt.Sprintf(%q, p.%s))", p.Name+": "+verb, m)
			}
		}
		w.WriteLine(`return "Params{" + strings.Join(fields, ", ") + "}"`)
	}, "func (p *Params) String() string")
}

func (g *paramsGenerator) writeBuilder(w *writer.Writer) {
	w.WriteDocComment("ParamsBuilder builds Params. Setters return the builder so calls can be\nchained.")
	w.Blockf(func() {
		for _, p := range g.params {
			w.WriteLinef("%s *%s", g.names[p.Name].member, p.GoType())
		}
	}, "type ParamsBuilder struct")
	w.BlankLine()
	w.WriteDocComment("NewParamsBuilder returns an empty builder.")
	w.Blockf(func() {
		w.WriteLine("return &ParamsBuilder{}")
	}, "func NewParamsBuilder() *ParamsBuilder")

	for _, p := range g.params {
		n := g.names[p.Name]
		typ := p.GoType()
		w.BlankLine()
		w.WriteDocComment(fmt.Sprintf("%s sets the %s parameter.", n.accessor, p.Name))
		w.Blockf(func() {
			w.WriteLinef("b.%s = &v", n.member)
			w.WriteLine("return b")
		}, "func (b *ParamsBuilder) %s(v %s) *ParamsBuilder", n.accessor, typ)
		w.BlankLine()
		w.WriteDocComment(fmt.Sprintf("%s sets the %s parameter from a pointer. A nil pointer unsets it.", n.setter, p.Name))
		w.Blockf(func() {
			w.Blockf(func() {
				w.WriteLinef("b.%s = nil", n.member)
				w.WriteLine("return b")
			}, "if v == nil")
			w.WriteLine("c := *v")
			w.WriteLinef("b.%s = &c", n.member)
			w.WriteLine("return b")
		}, "func (b *ParamsBuilder) %s(v *%s) *ParamsBuilder", n.setter, typ)
	}
}

func (g *paramsGenerator) writeBuild(w *writer.Writer) {
	w.WriteDocComment("Build applies defaults and returns the parameters. It fails with an\n*InvalidParamsError when a required parameter is unset.")
	w.Blockf(func() {
		w.WriteLine("p := &Params{}")
		for _, p := range g.params {
			m := g.names[p.Name].member
			set := func() {
				if p.Optional() {
					w.WriteLinef("v := *b.%s", m)
					w.WriteLinef("p.%s = &v", m)
				} else {
					w.WriteLinef("p.%s = *b.%s", m, m)
				}
			}
			switch {
			case p.Default != nil:
				w.WriteLinef("if b.%s != nil {", m)
				w.Indent()
				set()
				w.Dedent()
				w.WriteLine("} else {")
				w.Indent()
				if p.Optional() {
					w.WriteLinef("v := %s", p.Default.Literal())
					w.WriteLinef("p.%s = &v", m)
				} else {
					w.WriteLinef("p.%s = %s", m, p.Default.Literal())
				}
				w.Dedent()
				w.WriteLine("}")
			case p.Required:
				w.Blockf(func() {
					w.WriteLinef("return nil, &InvalidParamsError{Field: %q}", m)
				}, "if b.%s == nil", m)
				set()
			default:
				w.Blockf(set, "if b.%s != nil", m)
			}
		}
		w.WriteLine("return p, nil")
	}, "func (b *ParamsBuilder) Build() (*Params, error)")
}

func writeInvalidParamsError(w *writer.Writer) {
	w.WriteDocComment("InvalidParamsError reports a required parameter that was not set.")
	w.Blockf(func() {
		w.WriteLine("Field string")
	}, "type InvalidParamsError struct")
	w.BlankLine()
	w.Blockf(func() {
		w.WriteLine("return fmt.Sprintf(\"a required field was missing: `%s`\", e.Field)")
	}, "func (e *InvalidParamsError) Error() string")
}
