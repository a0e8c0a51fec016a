package endpoint

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/okra-platform/shapegen/internal/symbols"
)

// RuleSet is a parsed endpoint rule set.
type RuleSet struct {
	Version    string
	Parameters []Parameter
	Rules      []Rule
	TestCases  []TestCase
}

// Parameter returns the parameter with the given declared name.
func (rs *RuleSet) Parameter(name string) (Parameter, bool) {
	for _, p := range rs.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// RuleKind is the closed set of rule variants.
type RuleKind int

const (
	RuleKindEndpoint RuleKind = iota
	RuleKindError
	RuleKindTree
)

func (k RuleKind) String() string {
	switch k {
	case RuleKindEndpoint:
		return "endpoint"
	case RuleKindError:
		return "error"
	case RuleKindTree:
		return "tree"
	default:
		return "unknown"
	}
}

// Rule matches when all of its conditions hold, then returns an endpoint,
// returns an error or evaluates nested rules.
type Rule struct {
	Kind          RuleKind
	Documentation string
	Conditions    []Condition
	Endpoint      *EndpointSpec
	// Error is a template for the error message of error rules.
	Error string
	Rules []Rule
}

// Condition is a function call that must evaluate to true or to a set value.
// A set value can be bound to Assign for later conditions and the rule body.
type Condition struct {
	Call   Expr
	Assign string
}

// ExprKind is the closed set of expression variants.
type ExprKind int

const (
	ExprString ExprKind = iota
	ExprBool
	ExprInt
	ExprRef
	ExprCall
)

// Expr is a function argument. String literals are templates.
type Expr struct {
	Kind   ExprKind
	String string
	Bool   bool
	Int    int64
	Ref    string
	Fn     string
	Argv   []Expr
}

func (e Expr) describe() string {
	switch e.Kind {
	case ExprString:
		return strconv.Quote(e.String)
	case ExprBool:
		return strconv.FormatBool(e.Bool)
	case ExprInt:
		return strconv.FormatInt(e.Int, 10)
	case ExprRef:
		return "{ref: " + e.Ref + "}"
	default:
		return e.Fn + "(...)"
	}
}

// EndpointSpec is the body of an endpoint rule or an expected endpoint in a
// test case. URL and header values are templates.
type EndpointSpec struct {
	URL        string
	Headers    []Header
	Properties []Entry
}

// Header is one endpoint header with its values in order.
type Header struct {
	Name   string
	Values []string
}

// TestCase is an input and expected outcome for the generated resolver.
type TestCase struct {
	Documentation string
	Params        []Entry
	Expect        Expectation
}

// Expectation is exactly one of an endpoint or an error message.
type Expectation struct {
	Endpoint *EndpointSpec
	Error    *string
}

type rawRuleSet struct {
	Version    string        `yaml:"version"`
	Parameters yaml.Node     `yaml:"parameters"`
	Rules      []rawRule     `yaml:"rules"`
	TestCases  []rawTestCase `yaml:"testCases"`
}

type rawParameter struct {
	Type          string    `yaml:"type"`
	Required      bool      `yaml:"required"`
	Default       yaml.Node `yaml:"default"`
	Documentation string    `yaml:"documentation"`
	BuiltIn       string    `yaml:"builtIn"`
}

type rawRule struct {
	Type          string         `yaml:"type"`
	Documentation string         `yaml:"documentation"`
	Conditions    []rawCondition `yaml:"conditions"`
	Endpoint      *rawEndpoint   `yaml:"endpoint"`
	Error         *string        `yaml:"error"`
	Rules         []rawRule      `yaml:"rules"`
}

type rawCondition struct {
	Fn     string      `yaml:"fn"`
	Argv   []yaml.Node `yaml:"argv"`
	Assign string      `yaml:"assign"`
}

type rawEndpoint struct {
	URL        string    `yaml:"url"`
	Headers    yaml.Node `yaml:"headers"`
	Properties yaml.Node `yaml:"properties"`
}

type rawTestCase struct {
	Documentation string    `yaml:"documentation"`
	Params        yaml.Node `yaml:"params"`
	Expect        struct {
		Endpoint *rawEndpoint `yaml:"endpoint"`
		Error    *string      `yaml:"error"`
	} `yaml:"expect"`
}

// Load reads and parses a rule set file.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse parses a JSON or YAML rule set. Parameters keep document order.
func Parse(data []byte) (*RuleSet, error) {
	var raw rawRuleSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}

	rs := &RuleSet{Version: raw.Version}

	params, err := mappingEntries(&raw.Parameters)
	if err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	for _, entry := range params {
		var rp rawParameter
		if err := entry.value.Decode(&rp); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", entry.key, err)
		}
		p := Parameter{
			Name:          entry.key,
			Type:          symbols.ScalarTag(rp.Type),
			Required:      rp.Required,
			Documentation: rp.Documentation,
			BuiltIn:       rp.BuiltIn,
		}
		if rp.Default.Kind != 0 {
			v, err := decodeValue(&rp.Default)
			if err != nil {
				return nil, fmt.Errorf("parameter %q default: %w", entry.key, err)
			}
			p.Default = &v
		}
		if err := p.check(); err != nil {
			return nil, err
		}
		rs.Parameters = append(rs.Parameters, p)
	}

	for i, r := range raw.Rules {
		rule, err := convertRule(r, fmt.Sprintf("rules[%d]", i))
		if err != nil {
			return nil, err
		}
		rs.Rules = append(rs.Rules, rule)
	}

	for i, tc := range raw.TestCases {
		testCase, err := convertTestCase(tc)
		if err != nil {
			return nil, fmt.Errorf("testCases[%d]: %w", i, err)
		}
		rs.TestCases = append(rs.TestCases, testCase)
	}
	return rs, nil
}

func convertRule(r rawRule, path string) (Rule, error) {
	rule := Rule{Documentation: r.Documentation}
	for i, c := range r.Conditions {
		call := Expr{Kind: ExprCall, Fn: c.Fn}
		for j := range c.Argv {
			arg, err := decodeExpr(&c.Argv[j])
			if err != nil {
				return Rule{}, &RuleError{Rule: fmt.Sprintf("%s.conditions[%d]", path, i), Reason: err.Error()}
			}
			call.Argv = append(call.Argv, arg)
		}
		rule.Conditions = append(rule.Conditions, Condition{Call: call, Assign: c.Assign})
	}

	switch r.Type {
	case "endpoint":
		if r.Endpoint == nil {
			return Rule{}, &RuleError{Rule: path, Reason: "endpoint rule has no endpoint"}
		}
		spec, err := convertEndpoint(r.Endpoint)
		if err != nil {
			return Rule{}, &RuleError{Rule: path, Reason: err.Error()}
		}
		rule.Kind = RuleKindEndpoint
		rule.Endpoint = spec
	case "error":
		if r.Error == nil {
			return Rule{}, &RuleError{Rule: path, Reason: "error rule has no error message"}
		}
		rule.Kind = RuleKindError
		rule.Error = *r.Error
	case "tree":
		if len(r.Rules) == 0 {
			return Rule{}, &RuleError{Rule: path, Reason: "tree rule has no rules"}
		}
		rule.Kind = RuleKindTree
		for i, child := range r.Rules {
			c, err := convertRule(child, fmt.Sprintf("%s.rules[%d]", path, i))
			if err != nil {
				return Rule{}, err
			}
			rule.Rules = append(rule.Rules, c)
		}
	default:
		return Rule{}, &RuleError{Rule: path, Reason: fmt.Sprintf("unknown rule type %q (expected endpoint, error or tree)", r.Type)}
	}
	return rule, nil
}

func convertEndpoint(r *rawEndpoint) (*EndpointSpec, error) {
	spec := &EndpointSpec{URL: r.URL}
	if spec.URL == "" {
		return nil, fmt.Errorf("endpoint has no url")
	}

	headers, err := mappingEntries(&r.Headers)
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	for _, h := range headers {
		var values []string
		if err := h.value.Decode(&values); err != nil {
			return nil, fmt.Errorf("header %q: values must be a list of strings", h.key)
		}
		spec.Headers = append(spec.Headers, Header{Name: h.key, Values: values})
	}

	if r.Properties.Kind != 0 {
		props, err := decodeValue(&r.Properties)
		if err != nil {
			return nil, fmt.Errorf("properties: %w", err)
		}
		if props.Kind != ValueMap {
			return nil, fmt.Errorf("properties must be a map")
		}
		spec.Properties = props.Entries
	}
	return spec, nil
}

func convertTestCase(tc rawTestCase) (TestCase, error) {
	out := TestCase{Documentation: tc.Documentation}
	if tc.Params.Kind != 0 {
		params, err := decodeValue(&tc.Params)
		if err != nil {
			return TestCase{}, fmt.Errorf("params: %w", err)
		}
		if params.Kind != ValueMap {
			return TestCase{}, fmt.Errorf("params must be a map")
		}
		out.Params = params.Entries
	}

	switch {
	case tc.Expect.Endpoint != nil && tc.Expect.Error != nil:
		return TestCase{}, fmt.Errorf("expect must contain either an endpoint or an error, not both")
	case tc.Expect.Endpoint != nil:
		spec, err := convertEndpoint(tc.Expect.Endpoint)
		if err != nil {
			return TestCase{}, fmt.Errorf("expect: %w", err)
		}
		out.Expect.Endpoint = spec
	case tc.Expect.Error != nil:
		out.Expect.Error = tc.Expect.Error
	default:
		return TestCase{}, fmt.Errorf("expect must contain an endpoint or an error")
	}
	return out, nil
}

type nodeEntry struct {
	key   string
	value *yaml.Node
}

// mappingEntries returns the entries of a mapping node in document order. An
// absent node has no entries.
func mappingEntries(n *yaml.Node) ([]nodeEntry, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a map", n.Line)
	}
	entries := make([]nodeEntry, 0, len(n.Content)/2)
	seen := make(map[string]bool, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if seen[key] {
			return nil, fmt.Errorf("line %d: duplicate key %q", n.Content[i].Line, key)
		}
		seen[key] = true
		entries = append(entries, nodeEntry{key: key, value: n.Content[i+1]})
	}
	return entries, nil
}

func decodeValue(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return Value{}, err
			}
			return BoolValue(b), nil
		case "!!int":
			var i int64
			if err := n.Decode(&i); err != nil {
				return Value{}, err
			}
			return Value{Kind: ValueInt, Int: i}, nil
		case "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return Value{}, err
			}
			return Value{Kind: ValueFloat, Float: f}, nil
		case "!!null":
			return Value{}, fmt.Errorf("line %d: null is not a valid value", n.Line)
		default:
			return StringValue(n.Value), nil
		}
	case yaml.SequenceNode:
		v := Value{Kind: ValueList}
		for _, item := range n.Content {
			iv, err := decodeValue(item)
			if err != nil {
				return Value{}, err
			}
			v.List = append(v.List, iv)
		}
		return v, nil
	case yaml.MappingNode:
		entries, err := mappingEntries(n)
		if err != nil {
			return Value{}, err
		}
		v := Value{Kind: ValueMap}
		for _, e := range entries {
			ev, err := decodeValue(e.value)
			if err != nil {
				return Value{}, err
			}
			v.Entries = append(v.Entries, Entry{Key: e.key, Value: ev})
		}
		return v, nil
	default:
		return Value{}, fmt.Errorf("line %d: unsupported value", n.Line)
	}
}

// decodeExpr decodes a function argument: a literal, {ref: name} or a nested
// {fn: name, argv: [...]}.
func decodeExpr(n *yaml.Node) (Expr, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := decodeValue(n)
		if err != nil {
			return Expr{}, err
		}
		switch v.Kind {
		case ValueString:
			return Expr{Kind: ExprString, String: v.String}, nil
		case ValueBool:
			return Expr{Kind: ExprBool, Bool: v.Bool}, nil
		case ValueInt:
			return Expr{Kind: ExprInt, Int: v.Int}, nil
		default:
			return Expr{}, fmt.Errorf("line %d: unsupported argument %s", n.Line, v.Literal())
		}
	case yaml.MappingNode:
		var raw struct {
			Ref  string      `yaml:"ref"`
			Fn   string      `yaml:"fn"`
			Argv []yaml.Node `yaml:"argv"`
		}
		if err := n.Decode(&raw); err != nil {
			return Expr{}, err
		}
		switch {
		case raw.Ref != "":
			return Expr{Kind: ExprRef, Ref: raw.Ref}, nil
		case raw.Fn != "":
			call := Expr{Kind: ExprCall, Fn: raw.Fn}
			for i := range raw.Argv {
				arg, err := decodeExpr(&raw.Argv[i])
				if err != nil {
					return Expr{}, err
				}
				call.Argv = append(call.Argv, arg)
			}
			return call, nil
		default:
			return Expr{}, fmt.Errorf("line %d: argument must be a literal, a ref or a function call", n.Line)
		}
	default:
		return Expr{}, fmt.Errorf("line %d: argument must be a literal, a ref or a function call", n.Line)
	}
}
