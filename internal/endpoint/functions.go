package endpoint

import (
	"fmt"
	"sort"
	"strings"
)

// Type is the static type of a rule expression.
type Type int

const (
	TypeString Type = iota
	TypeBool
	TypeInt
	TypeURL
	// TypeAny is accepted by arguments that take any type.
	TypeAny
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "boolean"
	case TypeInt:
		return "integer"
	case TypeURL:
		return "url"
	case TypeAny:
		return "any"
	default:
		return "unknown"
	}
}

// Arg is a type-checked argument handed to a function's emitter.
type Arg struct {
	// Expr is the Go expression of the argument. Optional arguments are
	// pointers.
	Expr     string
	Type     Type
	Optional bool
	// Literal holds the text of a string literal argument without
	// template references.
	Literal *string
}

// Function binds a rule function name and arity to the Go code that
// implements it.
type Function struct {
	Name string
	Args []Type
	// Return is the result type. Returns refines it from the arguments when
	// set.
	Return  Type
	Returns func(args []Arg) (Type, error)
	// Optional marks functions whose result may be unset.
	Optional bool
	// AcceptsOptional allows optional arguments.
	AcceptsOptional bool
	// Helper names the endpointlib helper the emitted call uses, if any.
	Helper string
	Emit   func(args []Arg) (string, error)
}

// Arity returns the number of arguments the function takes.
func (f Function) Arity() int {
	return len(f.Args)
}

// Signature renders the function as name(arg, ...) result.
func (f Function) Signature() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	ret := f.Return.String()
	if f.Optional {
		ret = "optional " + ret
	}
	return fmt.Sprintf("%s(%s) %s", f.Name, strings.Join(args, ", "), ret)
}

// FunctionRegistry resolves rule functions by name and arity.
type FunctionRegistry struct {
	fns map[string]Function
}

// NewFunctionRegistry creates a registry holding the built-in functions.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{fns: make(map[string]Function)}
	for _, fn := range builtins() {
		if err := r.Register(fn); err != nil {
			panic(err)
		}
	}
	return r
}

func key(name string, arity int) string {
	return fmt.Sprintf("%s/%d", name, arity)
}

// Register adds a function. Registering the same name and arity twice is an
// error.
func (r *FunctionRegistry) Register(fn Function) error {
	k := key(fn.Name, fn.Arity())
	if _, exists := r.fns[k]; exists {
		return fmt.Errorf("function %s is already registered", k)
	}
	if fn.Emit == nil {
		return fmt.Errorf("function %s has no emitter", k)
	}
	r.fns[k] = fn
	return nil
}

// Resolve returns the function with the given name and arity.
func (r *FunctionRegistry) Resolve(name string, arity int) (Function, error) {
	if fn, ok := r.fns[key(name, arity)]; ok {
		return fn, nil
	}
	var arities []string
	for _, fn := range r.fns {
		if fn.Name == name {
			arities = append(arities, fmt.Sprint(fn.Arity()))
		}
	}
	if len(arities) > 0 {
		sort.Strings(arities)
		return Function{}, fmt.Errorf("function %s takes %s arguments, got %d", name, strings.Join(arities, " or "), arity)
	}
	return Function{}, fmt.Errorf("unknown function %s", name)
}

// Functions returns every registered function sorted by name and arity.
func (r *FunctionRegistry) Functions() []Function {
	out := make([]Function, 0, len(r.fns))
	for _, fn := range r.fns {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Arity() < out[j].Arity()
	})
	return out
}

// urlAttributes maps getAttr attribute names to URL fields.
var urlAttributes = map[string]struct {
	field string
	typ   Type
}{
	"scheme":         {"Scheme", TypeString},
	"authority":      {"Authority", TypeString},
	"path":           {"Path", TypeString},
	"normalizedPath": {"NormalizedPath", TypeString},
	"isIp":           {"IsIP", TypeBool},
}

func urlAttribute(args []Arg) (string, Type, error) {
	if args[1].Literal == nil {
		return "", 0, fmt.Errorf("getAttr attribute must be a string literal")
	}
	attr, ok := urlAttributes[*args[1].Literal]
	if !ok {
		return "", 0, fmt.Errorf("url has no attribute %q", *args[1].Literal)
	}
	return attr.field, attr.typ, nil
}

func helperCall(name string) func(args []Arg) (string, error) {
	return func(args []Arg) (string, error) {
		exprs := make([]string, len(args))
		for i, a := range args {
			exprs[i] = a.Expr
		}
		return fmt.Sprintf("endpointlib.%s(%s)", name, strings.Join(exprs, ", ")), nil
	}
}

func builtins() []Function {
	return []Function{
		{
			Name:            "isSet",
			Args:            []Type{TypeAny},
			Return:          TypeBool,
			AcceptsOptional: true,
			Emit: func(args []Arg) (string, error) {
				if !args[0].Optional {
					return "true", nil
				}
				return args[0].Expr + " != nil", nil
			},
		},
		{
			Name:   "not",
			Args:   []Type{TypeBool},
			Return: TypeBool,
			Emit: func(args []Arg) (string, error) {
				return "!(" + args[0].Expr + ")", nil
			},
		},
		{
			Name:   "booleanEquals",
			Args:   []Type{TypeBool, TypeBool},
			Return: TypeBool,
			Emit: func(args []Arg) (string, error) {
				return "(" + args[0].Expr + " == " + args[1].Expr + ")", nil
			},
		},
		{
			Name:   "stringEquals",
			Args:   []Type{TypeString, TypeString},
			Return: TypeBool,
			Emit: func(args []Arg) (string, error) {
				return "(" + args[0].Expr + " == " + args[1].Expr + ")", nil
			},
		},
		{
			Name:     "substring",
			Args:     []Type{TypeString, TypeInt, TypeInt, TypeBool},
			Return:   TypeString,
			Optional: true,
			Helper:   "Substring",
			Emit:     helperCall("Substring"),
		},
		{
			Name:   "uriEncode",
			Args:   []Type{TypeString},
			Return: TypeString,
			Helper: "URIEncode",
			Emit:   helperCall("URIEncode"),
		},
		{
			Name:   "isValidHostLabel",
			Args:   []Type{TypeString, TypeBool},
			Return: TypeBool,
			Helper: "IsValidHostLabel",
			Emit:   helperCall("IsValidHostLabel"),
		},
		{
			Name:     "parseURL",
			Args:     []Type{TypeString},
			Return:   TypeURL,
			Optional: true,
			Helper:   "ParseURL",
			Emit:     helperCall("ParseURL"),
		},
		{
			Name:   "getAttr",
			Args:   []Type{TypeURL, TypeString},
			Return: TypeAny,
			Returns: func(args []Arg) (Type, error) {
				_, typ, err := urlAttribute(args)
				return typ, err
			},
			Emit: func(args []Arg) (string, error) {
				field, _, err := urlAttribute(args)
				if err != nil {
					return "", err
				}
				return "(" + args[0].Expr + ")." + field, nil
			},
		},
	}
}
