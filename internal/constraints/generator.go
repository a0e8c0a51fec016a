package constraints

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/okra-platform/shapegen/internal/codegen/sink"
	"github.com/okra-platform/shapegen/internal/codegen/writer"
	"github.com/okra-platform/shapegen/internal/model"
	"github.com/okra-platform/shapegen/internal/symbols"
)

// Generator emits constrained wrappers, violation types, unconstrained types
// and conversions for every shape that needs them.
type Generator struct {
	planner *Planner
	module  sink.Module
	logger  zerolog.Logger
}

// NewGenerator creates a generator emitting into module.
func NewGenerator(p *Planner, module sink.Module, logger zerolog.Logger) *Generator {
	return &Generator{
		planner: p,
		module:  module,
		logger:  logger.With().Str("component", "constraints").Logger(),
	}
}

// Generate emits one fragment per constrained shape. Generation stops at the
// first shape that cannot be generated.
func (g *Generator) Generate(ctx context.Context, out sink.Sink) error {
	for _, s := range g.planner.Model().NamespaceShapes() {
		if err := ctx.Err(); err != nil {
			return err
		}
		plan, err := g.planner.PlanConversion(s)
		if err != nil {
			return err
		}
		if !plan.Fallible() {
			continue
		}

		e := &emitter{
			g:       g,
			w:       writer.NewWriter("\t"),
			imports: map[string]bool{"fmt": true},
		}
		switch s.Kind {
		case model.KindString, model.KindInteger:
			err = e.scalar(s, plan)
		case model.KindCollection:
			err = e.collection(s, plan)
		case model.KindMap:
			err = e.mapShape(s, plan)
		case model.KindStructure, model.KindUnion:
			err = e.structure(s, plan)
		}
		if err != nil {
			return err
		}

		g.logger.Debug().
			Str("shape", s.ID.String()).
			Stringer("conversion", plan.Conversion.Kind).
			Bool("wrapper", g.planner.NeedsWrapperType(s)).
			Msg("generated constraints")

		if err := out.EmitInto(g.module, sink.Fragment{
			Unit:    "constraints:" + string(s.ID),
			Imports: e.importList(),
			Code:    e.w.String(),
		}); err != nil {
			return err
		}
	}
	return nil
}

type emitter struct {
	g       *Generator
	w       *writer.Writer
	imports map[string]bool
}

func (e *emitter) importList() []string {
	out := make([]string, 0, len(e.imports))
	for imp := range e.imports {
		out = append(out, imp)
	}
	return out
}

func (e *emitter) addImports(descriptors ...symbols.TypeDescriptor) {
	for _, d := range descriptors {
		for _, imp := range d.Imports {
			e.imports[imp] = true
		}
	}
}

func (e *emitter) violationInterface(s *model.Shape) {
	iface := ViolationName(s)
	e.w.WriteLinef("// %s is implemented by every error returned when a %s value fails validation.", iface, symbols.UpperCamel(s.Name()))
	e.w.Blockf(func() {
		e.w.WriteLine("error")
		e.w.WriteLinef("is%s()", iface)
	}, "type %s interface", iface)
	e.w.BlankLine()
}

// violation writes a violation variant of s. fields are "Name Type" lines;
// message is a fmt format and args the matching receiver expressions.
func (e *emitter) violation(s *model.Shape, variant, doc string, fields []string, message string, args ...string) {
	name := symbols.UpperCamel(s.Name()) + variant
	e.w.WriteLinef("// %s %s", name, doc)
	e.w.Blockf(func() {
		for _, f := range fields {
			e.w.WriteLine(f)
		}
	}, "type %s struct", name)
	e.w.BlankLine()

	call := strconv.Quote(message)
	if len(args) > 0 {
		call = "fmt.Sprintf(" + call + ", " + strings.Join(args, ", ") + ")"
	}
	e.w.Blockf(func() {
		e.w.WriteLinef("return %s", call)
	}, "func (e %s) Error() string", name)
	e.w.BlankLine()

	for _, f := range fields {
		if strings.HasPrefix(f, "Err ") {
			e.w.Blockf(func() {
				e.w.WriteLine("return e.Err")
			}, "func (e %s) Unwrap() error", name)
			e.w.BlankLine()
			break
		}
	}

	e.w.WriteLinef("func (%s) is%s() {}", name, ViolationName(s))
	e.w.BlankLine()
}

func (e *emitter) scalar(s *model.Shape, plan Plan) error {
	name := symbols.UpperCamel(s.Name())
	raw := plan.Unconstrained.Name
	t := s.Traits

	e.violationInterface(s)

	var checks []func()
	if t.Enum != nil {
		e.violation(s, "EnumViolation", "reports a value outside the enum value set.",
			[]string{"Value string"},
			"value %q failed to satisfy constraint: member must satisfy enum value set: ["+strings.ReplaceAll(strings.Join(t.Enum.Literals(), ", "), "%", "%%")+"]",
			"e.Value")
		checks = append(checks, func() {
			quoted := make([]string, len(t.Enum.Values))
			for i, v := range t.Enum.Literals() {
				quoted[i] = strconv.Quote(v)
			}
			e.w.WriteLine("switch v {")
			e.w.WriteLinef("case %s:", strings.Join(quoted, ", "))
			e.w.WriteLine("default:")
			e.w.Indent()
			e.w.WriteLinef("return %sEnumViolation{Value: v}", name)
			e.w.Dedent()
			e.w.WriteLine("}")
		})
	}

	if s.Kind == model.KindString && t.Length != nil {
		e.imports["unicode/utf8"] = true
		e.violation(s, "LengthViolation", "reports a value whose length is out of bounds.",
			[]string{"Length int"},
			"value with length %d failed to satisfy constraint: "+t.Length.Describe(),
			"e.Length")
		cond := boundsCondition("n", t.Length.Min, t.Length.Max, true)
		if cond != "" {
			checks = append(checks, func() {
				e.w.Blockf(func() {
					e.w.WriteLinef("return %sLengthViolation{Length: n}", name)
				}, "if n := utf8.RuneCountInString(v); %s", cond)
			})
		}
	}

	if s.Kind == model.KindString && t.Pattern != nil {
		if _, err := regexp.Compile(t.Pattern.Regex); err != nil {
			return &model.ShapeError{Shape: s.ID, Reason: fmt.Sprintf("invalid @pattern %q: %v", t.Pattern.Regex, err)}
		}
		e.imports["regexp"] = true
		pattern := symbols.Unexported(name) + "Pattern"
		e.w.WriteLinef("var %s = regexp.MustCompile(%s)", pattern, strconv.Quote(t.Pattern.Regex))
		e.w.BlankLine()
		e.violation(s, "PatternViolation", "reports a value that does not match the pattern.",
			[]string{"Value string"},
			"value %q failed to satisfy constraint: member must satisfy regular expression pattern: %s",
			"e.Value", pattern+".String()")
		checks = append(checks, func() {
			e.w.Blockf(func() {
				e.w.WriteLinef("return %sPatternViolation{Value: v}", name)
			}, "if !%s.MatchString(v)", pattern)
		})
	}

	if s.Kind == model.KindInteger && t.Range != nil {
		lo, hi, err := clampRange(s, raw)
		if err != nil {
			return err
		}
		e.violation(s, "RangeViolation", "reports a value outside the allowed range.",
			[]string{"Value " + raw},
			"value %d failed to satisfy constraint: "+t.Range.Describe(),
			"e.Value")
		if cond := boundsCondition("v", lo, hi, false); cond != "" {
			checks = append(checks, func() {
				e.w.Blockf(func() {
					e.w.WriteLinef("return %sRangeViolation{Value: v}", name)
				}, "if %s", cond)
			})
		}
	}

	validate := "validate" + name
	e.w.WriteLinef("// %s returns the first constraint of %s that v violates.", validate, name)
	e.w.Blockf(func() {
		for _, check := range checks {
			check()
		}
		e.w.WriteLine("return nil")
	}, "func %s(v %s) error", validate, raw)
	e.w.BlankLine()

	if plan.Conversion.Kind != ConversionConstructor {
		return nil
	}

	if t.Enum != nil {
		e.w.WriteLinef("// New%s returns v as a %s if it belongs to the enum value set.", name, name)
		e.w.Blockf(func() {
			e.w.Blockf(func() {
				e.w.WriteLinef("return \"\", err")
			}, "if err := %s(v); err != nil", validate)
			e.w.WriteLinef("return %s(v), nil", name)
		}, "func New%s(v string) (%s, error)", name, name)
		return nil
	}

	e.wrapper(s, name, raw, validate)
	return nil
}

// wrapper writes the wrapper struct, its constructor and accessors.
func (e *emitter) wrapper(s *model.Shape, name, raw, validate string) {
	if s.Doc != "" {
		e.w.WriteDocComment(s.Doc)
		e.w.WriteLine("//")
		e.w.WriteLinef("// Values are obtained through New%s and are always valid.", name)
	} else {
		e.w.WriteLinef("// %s holds a validated %s. Values are obtained through New%s.", name, raw, name)
	}
	e.w.Blockf(func() {
		e.w.WriteLinef("value %s", raw)
	}, "type %s struct", name)
	e.w.BlankLine()

	e.w.WriteLinef("// New%s validates v and wraps it. The returned value takes ownership of v.", name)
	e.w.Blockf(func() {
		e.w.Blockf(func() {
			e.w.WriteLinef("return %s{}, err", name)
		}, "if err := %s(v); err != nil", validate)
		e.w.WriteLinef("return %s{value: v}, nil", name)
	}, "func New%s(v %s) (%s, error)", name, raw, name)
	e.w.BlankLine()

	e.w.WriteLinef("// Value returns the validated %s.", raw)
	e.w.Blockf(func() {
		e.w.WriteLine("return x.value")
	}, "func (x %s) Value() %s", name, raw)
	e.w.BlankLine()

	e.w.Blockf(func() {
		e.w.WriteLine("return fmt.Sprint(x.value)")
	}, "func (x %s) String() string", name)
	e.w.BlankLine()
}

// lengthCheck writes the aggregate validate function for collections and maps.
func (e *emitter) lengthCheck(s *model.Shape, name, raw string) string {
	validate := "validate" + name
	e.w.WriteLinef("// %s checks the length of v.", validate)
	e.w.Blockf(func() {
		if s.Traits.Length != nil {
			if cond := boundsCondition("n", s.Traits.Length.Min, s.Traits.Length.Max, true); cond != "" {
				e.w.Blockf(func() {
					e.w.WriteLinef("return %sLengthViolation{Length: n}", name)
				}, "if n := len(v); %s", cond)
			}
		}
		e.w.WriteLine("return nil")
	}, "func %s(v %s) error", validate, raw)
	e.w.BlankLine()
	return validate
}

func (e *emitter) collection(s *model.Shape, plan Plan) error {
	p := e.g.planner
	m := p.Model()
	name := symbols.UpperCamel(s.Name())
	member := m.Expect(s.Members[0])
	elem, err := p.PlanConversion(member)
	if err != nil {
		return err
	}
	wrapped := p.NeedsWrapperType(s)
	inner := "[]" + elem.Constrained.AsRequired().Name

	e.violationInterface(s)
	if s.Traits.Length != nil {
		e.violation(s, "LengthViolation", "reports a collection whose length is out of bounds.",
			[]string{"Length int"},
			"value with length %d failed to satisfy constraint: "+s.Traits.Length.Describe(),
			"e.Length")
	}
	if elem.Fallible() {
		e.violation(s, "MemberViolation", "reports the first element that failed conversion.",
			[]string{"Index int", "Err   error"},
			"constraint violation occurred at index %d: %s",
			"e.Index", "e.Err.Error()")
	}
	if wrapped {
		validate := e.lengthCheck(s, name, inner)
		e.wrapper(s, name, inner, validate)
	}

	uname := UnconstrainedName(s)
	e.w.WriteLinef("// %s holds %s elements that have not been validated yet.", uname, name)
	e.addImports(elem.Unconstrained, elem.Constrained)
	e.w.WriteLinef("type %s []%s", uname, elem.Unconstrained.AsRequired().Name)
	e.w.BlankLine()

	zero := plan.Constrained.ZeroValue()
	e.w.WriteLine("// TryConvert converts every element in order and stops at the first")
	e.w.WriteLine("// failure, then checks the collection's own constraints.")
	e.w.Blockf(func() {
		e.w.WriteLinef("converted := make(%s, 0, len(u))", inner)
		index := "_"
		if elem.Fallible() {
			index = "i"
		}
		e.w.Blockf(func() {
			value := e.convert(elem, source{expr: "raw"}, "v", func() string {
				return fmt.Sprintf("return %s, %sMemberViolation{Index: i, Err: err}", zero, name)
			})
			e.w.WriteLinef("converted = append(converted, %s)", value)
		}, "for %s, raw := range u", index)
		if wrapped {
			e.w.WriteLinef("return New%s(converted)", name)
		} else {
			e.w.WriteLine("return converted, nil")
		}
	}, "func (u %s) TryConvert() (%s, error)", uname, plan.Constrained.AsRequired().GoType())
	return nil
}

func (e *emitter) mapShape(s *model.Shape, plan Plan) error {
	p := e.g.planner
	m := p.Model()
	name := symbols.UpperCamel(s.Name())
	keyPlan, err := p.PlanConversion(m.Expect(s.Members[0]))
	if err != nil {
		return err
	}
	valuePlan, err := p.PlanConversion(m.Expect(s.Members[1]))
	if err != nil {
		return err
	}
	wrapped := p.NeedsWrapperType(s)
	inner := "map[string]" + valuePlan.Constrained.AsRequired().Name
	e.imports["sort"] = true

	e.violationInterface(s)
	if s.Traits.Length != nil {
		e.violation(s, "LengthViolation", "reports a map whose number of entries is out of bounds.",
			[]string{"Length int"},
			"value with length %d failed to satisfy constraint: "+s.Traits.Length.Describe(),
			"e.Length")
	}
	if keyPlan.Fallible() {
		e.violation(s, "KeyViolation", "reports the first key that failed validation.",
			[]string{"Key string", "Err error"},
			"constraint violation occurred at key %q: %s",
			"e.Key", "e.Err.Error()")
	}
	if valuePlan.Fallible() {
		e.violation(s, "ValueViolation", "reports the first value that failed conversion.",
			[]string{"Key string", "Err error"},
			"constraint violation occurred at value of key %q: %s",
			"e.Key", "e.Err.Error()")
	}
	if wrapped {
		validate := e.lengthCheck(s, name, inner)
		e.wrapper(s, name, inner, validate)
	}

	uname := UnconstrainedName(s)
	e.w.WriteLinef("// %s holds %s entries that have not been validated yet.", uname, name)
	e.addImports(valuePlan.Unconstrained, valuePlan.Constrained)
	e.w.WriteLinef("type %s map[string]%s", uname, valuePlan.Unconstrained.AsRequired().Name)
	e.w.BlankLine()

	zero := plan.Constrained.ZeroValue()
	e.w.WriteLine("// TryConvert converts entries in key order and stops at the first failure,")
	e.w.WriteLine("// then checks the map's own constraints.")
	e.w.Blockf(func() {
		e.w.WriteLine("keys := make([]string, 0, len(u))")
		e.w.Blockf(func() {
			e.w.WriteLine("keys = append(keys, k)")
		}, "for k := range u")
		e.w.WriteLine("sort.Strings(keys)")
		e.w.BlankLine()
		e.w.WriteLinef("converted := make(%s, len(u))", inner)
		e.w.Blockf(func() {
			if keyPlan.Fallible() {
				keyName := symbols.UpperCamel(keyPlan.Shape.Name())
				e.w.Blockf(func() {
					e.w.WriteLinef("return %s, %sKeyViolation{Key: k, Err: err}", zero, name)
				}, "if err := validate%s(k); err != nil", keyName)
			}
			value := e.convert(valuePlan, source{expr: "u[k]"}, "v", func() string {
				return fmt.Sprintf("return %s, %sValueViolation{Key: k, Err: err}", zero, name)
			})
			e.w.WriteLinef("converted[k] = %s", value)
		}, "for _, k := range keys")
		if wrapped {
			e.w.WriteLinef("return New%s(converted)", name)
		} else {
			e.w.WriteLine("return converted, nil")
		}
	}, "func (u %s) TryConvert() (%s, error)", uname, plan.Constrained.AsRequired().GoType())
	return nil
}

func (e *emitter) structure(s *model.Shape, plan Plan) error {
	p := e.g.planner
	m := p.Model()
	name := symbols.UpperCamel(s.Name())
	members := m.Members(s)

	plans := make([]Plan, len(members))
	anyRequired, anyFallible := false, false
	for i, member := range members {
		mp, err := p.PlanConversion(member)
		if err != nil {
			return err
		}
		plans[i] = mp
		anyFallible = anyFallible || mp.Fallible()
		anyRequired = anyRequired || (s.Kind == model.KindStructure && member.Traits.Required)
	}

	e.violationInterface(s)
	if anyRequired {
		e.violation(s, "MissingMemberViolation", "reports a required member that was not set.",
			[]string{"Member string"},
			"`%s` was not provided but it is required when building `"+name+"`",
			"e.Member")
	}
	if anyFallible {
		e.violation(s, "MemberViolation", "reports the first member that failed conversion.",
			[]string{"Member string", "Err    error"},
			"constraint violation occurred at member `%s`: %s",
			"e.Member", "e.Err.Error()")
	}

	uname := UnconstrainedName(s)
	e.w.WriteLinef("// %s holds %s members that have not been validated yet. Every", uname, name)
	e.w.WriteLine("// member is optional so missing required members can be reported.")
	e.w.Blockf(func() {
		for i, member := range members {
			d := plans[i].Unconstrained.AsOptional()
			e.addImports(d)
			e.w.WriteLinef("%s %s", symbols.UpperCamel(member.Name()), d.GoType())
		}
	}, "type %s struct", uname)
	e.w.BlankLine()

	zero := plan.Constrained.ZeroValue()
	e.w.WriteLine("// TryConvert converts members in declaration order and stops at the first failure.")
	e.w.Blockf(func() {
		e.w.WriteLinef("var out %s", name)
		for i, member := range members {
			field := symbols.UpperCamel(member.Name())
			memberName := member.Name()
			uDesc := plans[i].Unconstrained.AsOptional()
			cDesc := p.Constrained()(member)
			if s.Kind == model.KindUnion {
				cDesc = cDesc.AsOptional()
			}
			src := source{expr: "u." + field, pointer: !uDesc.Nilable}
			fail := func() string {
				return fmt.Sprintf("return %s, %sMemberViolation{Member: %q, Err: err}", zero, name, memberName)
			}

			body := func() {
				value := e.convert(plans[i], src, fmt.Sprintf("v%d", i), fail)
				if cDesc.Optional && !cDesc.Nilable {
					if !isIdent(value) {
						local := fmt.Sprintf("v%d", i)
						e.w.WriteLinef("%s := %s", local, value)
						value = local
					}
					e.w.WriteLinef("out.%s = &%s", field, value)
					return
				}
				e.w.WriteLinef("out.%s = %s", field, value)
			}

			required := s.Kind == model.KindStructure && member.Traits.Required
			if required {
				e.w.Blockf(func() {
					e.w.WriteLinef("return %s, %sMissingMemberViolation{Member: %q}", zero, name, memberName)
				}, "if u.%s == nil", field)
				body()
				continue
			}
			e.w.Blockf(body, "if u.%s != nil", field)
		}
		e.w.WriteLine("return out, nil")
	}, "func (u %s) TryConvert() (%s, error)", uname, name)
	return nil
}

type source struct {
	expr    string
	pointer bool
}

func (s source) value() string {
	if s.pointer {
		return "*" + s.expr
	}
	return s.expr
}

// convert writes the statements converting src and returns the expression
// holding the converted value. fail returns the statement run on error.
func (e *emitter) convert(plan Plan, src source, v string, fail func() string) string {
	switch plan.Conversion.Kind {
	case ConversionConstructor:
		e.w.WriteLinef("%s, err := %s(%s)", v, plan.Conversion.Func, src.value())
	case ConversionMethod:
		e.w.WriteLinef("%s, err := %s.%s()", v, src.expr, plan.Conversion.Func)
	case ConversionValidate:
		e.w.Blockf(func() {
			e.w.WriteLine(fail())
		}, "if err := %s(%s); err != nil", plan.Conversion.Func, src.value())
		return src.value()
	default:
		return src.value()
	}
	e.w.Blockf(func() {
		e.w.WriteLine(fail())
	}, "if err != nil")
	return v
}

func isIdent(expr string) bool {
	for _, r := range expr {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return expr != ""
}

// boundsCondition renders the failing condition for inclusive bounds on v,
// or "" when there is nothing to check. Lengths are never negative, so a zero
// lower length bound is dropped.
func boundsCondition(v string, lo, hi *int64, length bool) string {
	var parts []string
	if lo != nil && !(length && *lo <= 0) {
		parts = append(parts, fmt.Sprintf("%s < %d", v, *lo))
	}
	if hi != nil {
		parts = append(parts, fmt.Sprintf("%s > %d", v, *hi))
	}
	return strings.Join(parts, " || ")
}

// clampRange drops range bounds that the Go type cannot exceed and rejects
// bounds it cannot represent.
func clampRange(s *model.Shape, goType string) (lo, hi *int64, err error) {
	typeMin, typeMax := int64(math.MinInt64), int64(math.MaxInt64)
	switch goType {
	case "int8":
		typeMin, typeMax = math.MinInt8, math.MaxInt8
	case "int16":
		typeMin, typeMax = math.MinInt16, math.MaxInt16
	case "int32":
		typeMin, typeMax = math.MinInt32, math.MaxInt32
	}
	r := s.Traits.Range
	for _, bound := range []*int64{r.Min, r.Max} {
		if bound != nil && (*bound < typeMin || *bound > typeMax) {
			return nil, nil, &model.ShapeError{Shape: s.ID, Reason: fmt.Sprintf("@range bound %d does not fit in %s", *bound, goType)}
		}
	}
	if r.Min != nil && *r.Min > typeMin {
		lo = r.Min
	}
	if r.Max != nil && *r.Max < typeMax {
		hi = r.Max
	}
	return lo, hi, nil
}
