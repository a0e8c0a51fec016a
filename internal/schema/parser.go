// Package schema parses the GraphQL-flavoured shape IDL into a model.Model.
package schema

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/wundergraph/graphql-go-tools/v2/pkg/ast"
	"github.com/wundergraph/graphql-go-tools/v2/pkg/astparser"

	"github.com/okra-platform/shapegen/internal/model"
)

// DefaultNamespace is used when a document has no @shapegen directive.
const DefaultNamespace = "model"

// builtinTargets maps GraphQL and prelude type names to prelude shapes.
var builtinTargets = map[string]model.ShapeID{
	"String":    model.PreludeString,
	"ID":        model.PreludeString,
	"Int":       model.PreludeInteger,
	"Integer":   model.PreludeInteger,
	"Byte":      model.PreludeByte,
	"Short":     model.PreludeShort,
	"Long":      model.PreludeLong,
	"Boolean":   model.PreludeBoolean,
	"Float":     model.PreludeFloat,
	"Double":    model.PreludeDouble,
	"Blob":      model.PreludeBlob,
	"Timestamp": model.PreludeTimestamp,
	"Document":  model.PreludeDocument,
}

// Load reads and parses a model file.
func Load(path string) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	m, err := ParseSchema(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseSchema parses an IDL document into a model.
func ParseSchema(input string) (*model.Model, error) {
	doc, report := astparser.ParseGraphqlDocumentString(PreprocessGraphQL(input))
	if report.HasErrors() {
		return nil, fmt.Errorf("failed to parse GraphQL: %v", report)
	}

	p := &parser{doc: &doc, declared: make(map[string]bool)}
	return p.parse()
}

type parser struct {
	doc      *ast.Document
	b        *model.Builder
	declared map[string]bool
}

func (p *parser) parse() (*model.Model, error) {
	namespace, version := DefaultNamespace, ""
	for i := range p.doc.RootNodes {
		node := p.doc.RootNodes[i]
		name := p.nodeName(node)
		switch {
		case name == metadataType:
			meta := p.metadata(node.Ref)
			if ns := meta["namespace"]; ns != "" {
				namespace = ns
			}
			version = meta["version"]
		case name != "" && !strings.HasPrefix(name, servicePrefix):
			if p.declared[name] {
				return nil, fmt.Errorf("%s is defined more than once", name)
			}
			p.declared[name] = true
		}
	}

	p.b = model.NewBuilder(namespace).SetVersion(version)
	for i := range p.doc.RootNodes {
		node := p.doc.RootNodes[i]
		var err error
		switch node.Kind {
		case ast.NodeKindScalarTypeDefinition:
			err = p.scalar(node.Ref)
		case ast.NodeKindEnumTypeDefinition:
			err = p.enum(node.Ref)
		case ast.NodeKindUnionTypeDefinition:
			err = p.union(node.Ref)
		case ast.NodeKindObjectTypeDefinition:
			err = p.object(node.Ref)
		}
		if err != nil {
			return nil, err
		}
	}
	return p.b.Build()
}

func (p *parser) nodeName(node ast.Node) string {
	switch node.Kind {
	case ast.NodeKindScalarTypeDefinition:
		return p.doc.Input.ByteSliceString(p.doc.ScalarTypeDefinitions[node.Ref].Name)
	case ast.NodeKindEnumTypeDefinition:
		return p.doc.Input.ByteSliceString(p.doc.EnumTypeDefinitions[node.Ref].Name)
	case ast.NodeKindUnionTypeDefinition:
		return p.doc.Input.ByteSliceString(p.doc.UnionTypeDefinitions[node.Ref].Name)
	case ast.NodeKindObjectTypeDefinition:
		return p.doc.Input.ByteSliceString(p.doc.ObjectTypeDefinitions[node.Ref].Name)
	default:
		return ""
	}
}

func (p *parser) metadata(ref int) map[string]string {
	typeDef := p.doc.ObjectTypeDefinitions[ref]
	for _, fieldRef := range typeDef.FieldsDefinition.Refs {
		for _, d := range parseDirectives(p.doc, p.doc.FieldDefinitions[fieldRef].Directives) {
			if d.Name == "shapegen" {
				return d.Args
			}
		}
	}
	return nil
}

// target resolves a type name to a shape ID. Unknown names are left for
// Build to report.
func (p *parser) target(name string) model.ShapeID {
	if p.declared[name] {
		return p.b.ID(name)
	}
	if id, ok := builtinTargets[name]; ok {
		return id
	}
	return p.b.ID(name)
}

func (p *parser) scalar(ref int) error {
	def := p.doc.ScalarTypeDefinitions[ref]
	name := p.doc.Input.ByteSliceString(def.Name)

	var traits model.Traits
	rest, err := applyTraits(name, parseDirectives(p.doc, def.Directives), &traits)
	if err != nil {
		return err
	}

	var kind *Directive
	for i, d := range rest {
		if _, ok := scalarKinds[d.Name]; !ok && d.Name != "list" && d.Name != "map" {
			return fmt.Errorf("%s: unknown directive @%s", name, d.Name)
		}
		if kind != nil {
			return fmt.Errorf("%s: @%s conflicts with @%s", name, d.Name, kind.Name)
		}
		kind = &rest[i]
	}

	var id model.ShapeID
	switch {
	case kind == nil:
		id = p.b.String(name, traits)
	case kind.Name == "list":
		member, ok := kind.Args["member"]
		if !ok {
			return fmt.Errorf("%s: @list requires a member argument", name)
		}
		id = p.b.List(name, model.MemberSpec{Target: p.target(member)}, traits)
	case kind.Name == "map":
		key, value := kind.Args["key"], kind.Args["value"]
		if key == "" || value == "" {
			return fmt.Errorf("%s: @map requires key and value arguments", name)
		}
		id = p.b.Map(name, p.target(key), p.target(value), traits)
	default:
		id = p.b.Scalar(name, scalarKinds[kind.Name], traits)
	}
	p.b.Document(id, p.description(def.Description))
	return nil
}

func (p *parser) enum(ref int) error {
	def := p.doc.EnumTypeDefinitions[ref]
	name := p.doc.Input.ByteSliceString(def.Name)

	enum := &model.Enum{}
	for _, valueRef := range def.EnumValuesDefinition.Refs {
		valueDef := p.doc.EnumValueDefinitions[valueRef]
		v := model.EnumValue{
			Name: p.doc.Input.ByteSliceString(valueDef.EnumValue),
			Doc:  p.description(valueDef.Description),
		}
		v.Value = v.Name
		for _, d := range parseDirectives(p.doc, valueDef.Directives) {
			if d.Name != "value" {
				return fmt.Errorf("%s.%s: unknown directive @%s", name, v.Name, d.Name)
			}
			v.Value = d.Args["value"]
		}
		enum.Values = append(enum.Values, v)
	}

	id := p.b.String(name, model.Traits{Enum: enum})
	p.b.Document(id, p.description(def.Description))
	return nil
}

func (p *parser) union(ref int) error {
	def := p.doc.UnionTypeDefinitions[ref]
	name := p.doc.Input.ByteSliceString(def.Name)

	var members []model.MemberSpec
	for _, typeRef := range def.UnionMemberTypes.Refs {
		variant := p.doc.Input.ByteSliceString(p.doc.Types[typeRef].Name)
		members = append(members, model.MemberSpec{Name: lowerFirst(variant), Target: p.target(variant)})
	}
	p.b.Union(name, p.description(def.Description), members...)
	return nil
}

func (p *parser) object(ref int) error {
	def := p.doc.ObjectTypeDefinitions[ref]
	name := p.doc.Input.ByteSliceString(def.Name)
	switch {
	case name == metadataType:
		return nil
	case strings.HasPrefix(name, servicePrefix):
		return p.service(strings.TrimPrefix(name, servicePrefix), def)
	}

	var members []model.MemberSpec
	for _, fieldRef := range def.FieldsDefinition.Refs {
		fieldDef := p.doc.FieldDefinitions[fieldRef]
		fieldName := p.doc.Input.ByteSliceString(fieldDef.Name)
		owner := name + "." + fieldName

		target, required, err := p.fieldType(name, fieldName, fieldDef.Type)
		if err != nil {
			return err
		}
		traits := model.Traits{Required: required}
		rest, err := applyTraits(owner, parseDirectives(p.doc, fieldDef.Directives), &traits)
		if err != nil {
			return err
		}
		if len(rest) > 0 {
			return fmt.Errorf("%s: unknown directive @%s", owner, rest[0].Name)
		}
		members = append(members, model.MemberSpec{
			Name:   fieldName,
			Target: target,
			Traits: traits,
			Doc:    p.description(fieldDef.Description),
		})
	}
	p.b.Structure(name, p.description(def.Description), members...)
	return nil
}

// fieldType resolves a field's type. Inline list types add a collection
// shape named after the structure and field.
func (p *parser) fieldType(container, field string, typeRef int) (model.ShapeID, bool, error) {
	t := p.doc.Types[typeRef]
	required := false
	if t.TypeKind == ast.TypeKindNonNull {
		required = true
		t = p.doc.Types[t.OfType]
	}

	switch t.TypeKind {
	case ast.TypeKindList:
		name := container + upperFirst(field) + "List"
		if p.declared[name] || p.b.Has(p.b.ID(name)) {
			return "", false, fmt.Errorf("%s.%s: list shape %s is already defined", container, field, name)
		}
		member, _, err := p.fieldType(name, "member", t.OfType)
		if err != nil {
			return "", false, err
		}
		return p.b.List(name, model.MemberSpec{Target: member}, model.Traits{}), required, nil
	case ast.TypeKindNamed:
		return p.target(p.doc.Input.ByteSliceString(t.Name)), required, nil
	default:
		return "", false, fmt.Errorf("%s.%s: unsupported type", container, field)
	}
}

func (p *parser) service(name string, def ast.ObjectTypeDefinition) error {
	svc := model.Service{Name: name, Doc: p.description(def.Description)}
	for _, fieldRef := range def.FieldsDefinition.Refs {
		fieldDef := p.doc.FieldDefinitions[fieldRef]
		op := model.Operation{
			Name:   p.doc.Input.ByteSliceString(fieldDef.Name),
			Doc:    p.description(fieldDef.Description),
			Output: p.target(p.namedType(fieldDef.Type)),
		}
		if refs := fieldDef.ArgumentsDefinition.Refs; len(refs) > 0 {
			op.Input = p.target(p.namedType(p.doc.InputValueDefinitions[refs[0]].Type))
		}
		svc.Operations = append(svc.Operations, op)
	}
	p.b.Service(svc)
	return nil
}

// namedType unwraps non-null and list wrappers.
func (p *parser) namedType(typeRef int) string {
	t := p.doc.Types[typeRef]
	for t.TypeKind != ast.TypeKindNamed {
		t = p.doc.Types[t.OfType]
	}
	return p.doc.Input.ByteSliceString(t.Name)
}

func (p *parser) description(desc ast.Description) string {
	if !desc.IsDefined {
		return ""
	}
	return strings.TrimSpace(p.doc.Input.ByteSliceString(desc.Content))
}

func lowerFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func upperFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
