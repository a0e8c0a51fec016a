package endpoint

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okra-platform/shapegen/internal/codegen/writer"
	"github.com/okra-platform/shapegen/internal/symbols"
)

// noMatchMessage is returned when resolution falls through every rule.
const noMatchMessage = "no rules matched these parameters"

// RuleError reports a rule that cannot be compiled. Rule is the path of the
// rule within the rule set, e.g. "rules[2].rules[0]".
type RuleError struct {
	Rule   string
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %s", e.Rule, e.Reason)
}

// Warning is a non-fatal finding about a rule set.
type Warning struct {
	// Rule is empty for findings about the rule set as a whole.
	Rule    string
	Message string
}

func (w Warning) String() string {
	if w.Rule == "" {
		return w.Message
	}
	return fmt.Sprintf("rule %s: %s", w.Rule, w.Message)
}

// binding is a name visible to rule expressions.
type binding struct {
	expr     string
	typ      Type
	optional bool
	// local is the Go variable holding an assigned value; empty for
	// parameters.
	local string
	used  *bool
}

type scope map[string]binding

func (s scope) clone() scope {
	out := make(scope, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// locals returns the Go variables declared in the scope.
func (s scope) locals() map[string]bool {
	out := make(map[string]bool)
	for _, b := range s {
		if b.local != "" {
			out[b.local] = true
		}
	}
	return out
}

// compiler turns rules into the body of ResolveEndpoint.
type compiler struct {
	funcs    *FunctionRegistry
	names    map[string]paramNames
	used     map[string]bool
	helpers  map[string]bool
	warnings []Warning
}

func newCompiler(funcs *FunctionRegistry, names map[string]paramNames) *compiler {
	return &compiler{
		funcs:   funcs,
		names:   names,
		used:    make(map[string]bool),
		helpers: make(map[string]bool),
	}
}

// rootScope binds every parameter to its accessor on params.
func (c *compiler) rootScope(rs *RuleSet) scope {
	sc := make(scope, len(rs.Parameters))
	for _, p := range rs.Parameters {
		typ := TypeString
		if p.Type == symbols.TagBoolean {
			typ = TypeBool
		}
		expr := "params." + c.names[p.Name].accessor + "()"
		if p.Required {
			expr = "*" + expr
		}
		sc[p.Name] = binding{expr: expr, typ: typ, optional: p.Optional()}
	}
	return sc
}

// compileRules writes rules in order and reports whether the last one
// written always returns.
func (c *compiler) compileRules(w *writer.Writer, rules []Rule, sc scope, path string) (bool, error) {
	for i, r := range rules {
		rulePath := fmt.Sprintf("%s[%d]", path, i)
		always, err := c.compileRule(w, r, sc.clone(), rulePath)
		if err != nil {
			return false, err
		}
		if always {
			for j := i + 1; j < len(rules); j++ {
				c.warn(fmt.Sprintf("%s[%d]", path, j), fmt.Sprintf("unreachable: %s always matches", rulePath))
			}
			return true, nil
		}
	}
	return false, nil
}

func (c *compiler) warn(rule, message string) {
	c.warnings = append(c.warnings, Warning{Rule: rule, Message: message})
}

// compileRule writes one rule and reports whether it always returns.
func (c *compiler) compileRule(w *writer.Writer, r Rule, sc scope, path string) (bool, error) {
	if r.Documentation != "" {
		w.WriteDocComment(r.Documentation)
	}

	// The rule is wrapped in a bare block when its first condition declares
	// a variable, so the variable does not leak into later rules.
	wrapped := len(r.Conditions) > 0 && c.isStatement(r.Conditions[0], sc, path)
	if wrapped {
		w.WriteLine("{")
		w.Indent()
	}
	always, err := c.compileConditions(w, r, r.Conditions, sc, path, 0)
	if err != nil {
		return false, err
	}
	if wrapped {
		w.Dedent()
		w.WriteLine("}")
	}
	return always, nil
}

// isStatement reports whether cond compiles to a plain declaration rather
// than an if statement.
func (c *compiler) isStatement(cond Condition, sc scope, path string) bool {
	probe := &compiler{funcs: c.funcs, names: c.names, used: make(map[string]bool), helpers: make(map[string]bool)}
	arg, err := probe.expr(cond.Call, sc, path)
	if err != nil {
		return false
	}
	return cond.Assign != "" && !arg.Optional && arg.Type != TypeBool
}

func (c *compiler) compileConditions(w *writer.Writer, r Rule, conds []Condition, sc scope, path string, index int) (bool, error) {
	if len(conds) == 0 {
		return true, c.compileBody(w, r, sc, path)
	}
	cond := conds[0]
	condPath := fmt.Sprintf("%s.conditions[%d]", path, index)
	arg, err := c.expr(cond.Call, sc, condPath)
	if err != nil {
		return false, err
	}

	var local string
	if cond.Assign != "" {
		if local, err = c.declare(cond.Assign, sc, condPath); err != nil {
			return false, err
		}
	}

	switch {
	case cond.Assign != "" && arg.Optional:
		sc[cond.Assign] = binding{expr: "*" + local, typ: arg.Type, local: local}
		return false, c.block(w, fmt.Sprintf("if %s := %s; %s != nil", local, arg.Expr, local), r, conds[1:], sc, path, index+1)

	case cond.Assign != "" && arg.Type == TypeBool:
		sc[cond.Assign] = binding{expr: "true", typ: TypeBool, local: local}
		return false, c.block(w, fmt.Sprintf("if %s := %s; %s", local, arg.Expr, local), r, conds[1:], sc, path, index+1)

	case cond.Assign != "":
		used := false
		sc[cond.Assign] = binding{expr: local, typ: arg.Type, local: local, used: &used}
		w.WriteLinef("%s := %s", local, arg.Expr)
		rest := w.Fork()
		always, err := c.compileConditions(rest, r, conds[1:], sc, path, index+1)
		if err != nil {
			return false, err
		}
		if !used {
			w.WriteLinef("_ = %s", local)
		}
		w.Append(rest)
		return always, nil

	case arg.Optional:
		return false, c.block(w, fmt.Sprintf("if %s != nil", arg.Expr), r, conds[1:], sc, path, index+1)

	case arg.Type == TypeBool:
		c.narrow(cond.Call, sc)
		return false, c.block(w, "if "+arg.Expr, r, conds[1:], sc, path, index+1)

	default:
		return false, &RuleError{Rule: condPath, Reason: fmt.Sprintf(
			"condition %s evaluates to a %s; conditions must be booleans or optional values", cond.Call.describe(), arg.Type)}
	}
}

func (c *compiler) block(w *writer.Writer, opener string, r Rule, conds []Condition, sc scope, path string, index int) error {
	var err error
	w.Blockf(func() {
		_, err = c.compileConditions(w, r, conds, sc, path, index)
	}, "%s", opener)
	return err
}

// narrow marks a reference checked by isSet as set for the rest of the rule.
func (c *compiler) narrow(call Expr, sc scope) {
	if call.Kind != ExprCall || call.Fn != "isSet" || len(call.Argv) != 1 || call.Argv[0].Kind != ExprRef {
		return
	}
	name := call.Argv[0].Ref
	b, ok := sc[name]
	if !ok || !b.optional {
		return
	}
	b.optional = false
	b.expr = "*" + b.expr
	sc[name] = b
}

// declare returns the Go variable for an assigned name.
func (c *compiler) declare(name string, sc scope, path string) (string, error) {
	if _, exists := sc[name]; exists {
		return "", &RuleError{Rule: path, Reason: fmt.Sprintf("cannot assign %q: the name is already defined", name)}
	}
	local := symbols.LowerCamel(name)
	if local == "params" || local == "endpointlib" {
		local += "_"
	}
	if sc.locals()[local] {
		return "", &RuleError{Rule: path, Reason: fmt.Sprintf("cannot assign %q: it collides with another assigned name", name)}
	}
	return local, nil
}

func (c *compiler) compileBody(w *writer.Writer, r Rule, sc scope, path string) error {
	switch r.Kind {
	case RuleKindEndpoint:
		lit, err := c.endpointLiteral(r.Endpoint, sc, path)
		if err != nil {
			return err
		}
		w.WriteLinef("return %s, nil", lit)
	case RuleKindError:
		msg, _, err := c.template(r.Error, sc, path)
		if err != nil {
			return err
		}
		w.WriteLinef("return Endpoint{}, &ResolveEndpointError{Message: %s}", msg)
	case RuleKindTree:
		always, err := c.compileRules(w, r.Rules, sc, path+".rules")
		if err != nil {
			return err
		}
		if !always {
			w.WriteLinef("return Endpoint{}, &ResolveEndpointError{Message: %q}", noMatchMessage)
		}
	default:
		return &RuleError{Rule: path, Reason: fmt.Sprintf("unknown rule kind %s", r.Kind)}
	}
	return nil
}

// endpointLiteral renders an Endpoint composite literal. String values are
// templates when sc is non-nil and plain literals otherwise.
func (c *compiler) endpointLiteral(spec *EndpointSpec, sc scope, path string) (string, error) {
	str := func(s string) (string, error) {
		if sc == nil {
			return strconv.Quote(s), nil
		}
		out, _, err := c.template(s, sc, path)
		return out, err
	}

	var b strings.Builder
	url, err := str(spec.URL)
	if err != nil {
		return "", err
	}
	b.WriteString("Endpoint{\n")
	fmt.Fprintf(&b, "URL: %s,\n", url)
	if len(spec.Headers) > 0 {
		b.WriteString("Headers: map[string][]string{\n")
		for _, h := range spec.Headers {
			values := make([]string, len(h.Values))
			for i, v := range h.Values {
				if values[i], err = str(v); err != nil {
					return "", err
				}
			}
			fmt.Fprintf(&b, "%q: {%s},\n", h.Name, strings.Join(values, ", "))
		}
		b.WriteString("},\n")
	}
	if len(spec.Properties) > 0 {
		props, err := c.valueLiteral(Value{Kind: ValueMap, Entries: spec.Properties}, str)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "Properties: %s,\n", props)
	}
	b.WriteString("}")
	return b.String(), nil
}

func (c *compiler) valueLiteral(v Value, str func(string) (string, error)) (string, error) {
	switch v.Kind {
	case ValueString:
		return str(v.String)
	case ValueList:
		items := make([]string, len(v.List))
		for i, item := range v.List {
			lit, err := c.valueLiteral(item, str)
			if err != nil {
				return "", err
			}
			items[i] = lit
		}
		return "[]any{" + strings.Join(items, ", ") + "}", nil
	case ValueMap:
		entries := make([]string, len(v.Entries))
		for i, e := range v.Entries {
			lit, err := c.valueLiteral(e.Value, str)
			if err != nil {
				return "", err
			}
			entries[i] = strconv.Quote(e.Key) + ": " + lit
		}
		return "map[string]any{" + strings.Join(entries, ", ") + "}", nil
	default:
		return v.Literal(), nil
	}
}

// expr compiles a function argument.
func (c *compiler) expr(e Expr, sc scope, path string) (Arg, error) {
	switch e.Kind {
	case ExprString:
		out, refs, err := c.template(e.String, sc, path)
		if err != nil {
			return Arg{}, err
		}
		arg := Arg{Expr: out, Type: TypeString}
		if !refs {
			s := e.String
			arg.Literal = &s
		}
		return arg, nil
	case ExprBool:
		return Arg{Expr: strconv.FormatBool(e.Bool), Type: TypeBool}, nil
	case ExprInt:
		return Arg{Expr: strconv.FormatInt(e.Int, 10), Type: TypeInt}, nil
	case ExprRef:
		b, err := c.ref(e.Ref, sc, path)
		if err != nil {
			return Arg{}, err
		}
		return Arg{Expr: b.expr, Type: b.typ, Optional: b.optional}, nil
	case ExprCall:
		return c.call(e, sc, path)
	default:
		return Arg{}, &RuleError{Rule: path, Reason: "unknown expression"}
	}
}

func (c *compiler) ref(name string, sc scope, path string) (binding, error) {
	b, ok := sc[name]
	if !ok {
		return binding{}, &RuleError{Rule: path, Reason: fmt.Sprintf("reference to undefined name %q", name)}
	}
	if b.local == "" {
		c.used[name] = true
	}
	if b.used != nil {
		*b.used = true
	}
	return b, nil
}

func (c *compiler) call(e Expr, sc scope, path string) (Arg, error) {
	fn, err := c.funcs.Resolve(e.Fn, len(e.Argv))
	if err != nil {
		return Arg{}, &RuleError{Rule: path, Reason: err.Error()}
	}

	args := make([]Arg, len(e.Argv))
	for i, a := range e.Argv {
		arg, err := c.expr(a, sc, path)
		if err != nil {
			return Arg{}, err
		}
		if want := fn.Args[i]; want != TypeAny && arg.Type != want {
			return Arg{}, &RuleError{Rule: path, Reason: fmt.Sprintf(
				"argument %d of %s must be a %s, got %s (%s)", i+1, fn.Name, want, arg.Type, a.describe())}
		}
		if arg.Optional && !fn.AcceptsOptional {
			return Arg{}, &RuleError{Rule: path, Reason: fmt.Sprintf(
				"argument %d of %s may be unset; check it with isSet or bind it with assign first", i+1, fn.Name)}
		}
		args[i] = arg
	}

	ret := fn.Return
	if fn.Returns != nil {
		if ret, err = fn.Returns(args); err != nil {
			return Arg{}, &RuleError{Rule: path, Reason: err.Error()}
		}
	}
	out, err := fn.Emit(args)
	if err != nil {
		return Arg{}, &RuleError{Rule: path, Reason: err.Error()}
	}
	if fn.Helper != "" {
		c.helpers[fn.Helper] = true
	}
	return Arg{Expr: out, Type: ret, Optional: fn.Optional}, nil
}

// template compiles a string template into a Go string expression. {name}
// reads a string, {name#attr} reads an attribute of a parsed URL, and {{
// and }} are literal braces. It reports whether the template contains
// references.
func (c *compiler) template(s string, sc scope, path string) (string, bool, error) {
	var parts []string
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, strconv.Quote(lit.String()))
			lit.Reset()
		}
	}

	refs := false
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "{{"):
			lit.WriteByte('{')
			i++
		case strings.HasPrefix(s[i:], "}}"):
			lit.WriteByte('}')
			i++
		case s[i] == '{':
			end := strings.IndexByte(s[i:], '}')
			if end < 0 {
				return "", false, &RuleError{Rule: path, Reason: fmt.Sprintf("unterminated reference in template %q", s)}
			}
			expr, err := c.templateRef(s[i+1:i+end], sc, path)
			if err != nil {
				return "", false, err
			}
			flush()
			parts = append(parts, expr)
			refs = true
			i += end
		default:
			lit.WriteByte(s[i])
		}
	}
	flush()

	if len(parts) == 0 {
		return `""`, false, nil
	}
	return strings.Join(parts, " + "), refs, nil
}

func (c *compiler) templateRef(ref string, sc scope, path string) (string, error) {
	name, attr, hasAttr := strings.Cut(ref, "#")
	b, err := c.ref(name, sc, path)
	if err != nil {
		return "", err
	}
	if b.optional {
		return "", &RuleError{Rule: path, Reason: fmt.Sprintf("template reference {%s} may be unset; check it with isSet first", ref)}
	}
	if !hasAttr {
		if b.typ != TypeString {
			return "", &RuleError{Rule: path, Reason: fmt.Sprintf("template reference {%s} is a %s, not a string", ref, b.typ)}
		}
		return b.expr, nil
	}
	if b.typ != TypeURL {
		return "", &RuleError{Rule: path, Reason: fmt.Sprintf("template reference {%s}: only urls have attributes", ref)}
	}
	field, ok := urlAttributes[attr]
	if !ok || field.typ != TypeString {
		return "", &RuleError{Rule: path, Reason: fmt.Sprintf("template reference {%s}: url has no string attribute %q", ref, attr)}
	}
	return "(" + b.expr + ")." + field.field, nil
}

// usedParams returns the referenced parameter names in rule set order.
func (c *compiler) usedParams(rs *RuleSet) []string {
	var out []string
	for _, p := range rs.Parameters {
		if c.used[p.Name] {
			out = append(out, p.Name)
		}
	}
	return out
}

func (c *compiler) usedHelpers() []string {
	out := make([]string, 0, len(c.helpers))
	for name := range c.helpers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
