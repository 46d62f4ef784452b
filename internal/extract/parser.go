// Package extract turns Sequelize-style model definition files into
// schema entities. Parsing is best-effort static analysis over a
// tree-sitter expression tree: recognized call shapes produce
// structured data, everything else degrades to raw-source capture.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/vendz/NL2SQL/internal/logging"
	"github.com/vendz/NL2SQL/internal/schema"
)

// enumMarker is the textual marker a field's type expression must
// contain before the sibling `values` array is treated as an
// enumeration.
const enumMarker = "ENUM"

// ModelParser parses one model definition file into an Entity.
// It recognizes the `define` and `init` field-definition call shapes
// and the four relation calls; unrecognized constructs are ignored or
// captured as raw text, never evaluated.
type ModelParser struct {
	parser *sitter.Parser
}

// NewModelParser creates a parser for JavaScript model files.
func NewModelParser() *ModelParser {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &ModelParser{parser: p}
}

// ParseModel parses raw file text into an Entity. A file with no
// recognizable field declarations is not a model: the result is
// (nil, nil), not an error.
func (p *ModelParser) ParseModel(ctx context.Context, path string, content []byte) (*schema.Entity, error) {
	timer := logging.StartTimer(logging.CategorySchema, "ParseModel "+filepath.Base(path))
	defer timer.Stop()

	tree, err := p.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("parse %s: syntax error near line %d", filepath.Base(path), errorLine(root))
	}
	entity := &schema.Entity{Name: modelName(path)}

	fieldsObj, definedName := findFieldObject(root, content)
	if fieldsObj == nil {
		logging.SchemaDebug("%s: no field definitions, not a model", filepath.Base(path))
		return nil, nil
	}

	eachPair(fieldsObj, content, func(name string, value *sitter.Node) {
		entity.Fields = append(entity.Fields, parseField(name, value, content))
	})
	if len(entity.Fields) == 0 {
		logging.SchemaDebug("%s: empty field object, not a model", filepath.Base(path))
		return nil, nil
	}

	entity.TableName = findTableName(root, content)
	if entity.TableName == "" {
		entity.TableName = definedName
	}
	if entity.TableName == "" {
		entity.TableName = strings.ToLower(entity.Name)
	}

	visitCalls(root, func(call *sitter.Node) {
		if a, ok := parseRelationCall(call, content); ok {
			entity.AddAssociation(a)
		}
	})

	logging.SchemaDebug("%s: parsed model %s (%d fields, %d associations)",
		filepath.Base(path), entity.Name, len(entity.Fields), len(entity.Associations))
	return entity, nil
}

// modelName derives the entity name from the file name.
func modelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// errorLine returns the 1-indexed line of the first syntax error node.
func errorLine(root *sitter.Node) int {
	line := int(root.StartPoint().Row) + 1
	var walk func(n *sitter.Node) bool
	walk = func(n *sitter.Node) bool {
		if n.Type() == "ERROR" {
			line = int(n.StartPoint().Row) + 1
			return true
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if walk(n.Child(i)) {
				return true
			}
		}
		return false
	}
	walk(root)
	return line
}

// findFieldObject locates the configuration object of the first
// recognized field-definition call: `<recv>.define(name, fields, ...)`
// or `<recv>.init(fields, ...)`. The receiver is deliberately ignored
// so aliased imports and wrapper containers still match. For `define`
// the leading name argument is returned when it is a string literal.
func findFieldObject(root *sitter.Node, src []byte) (*sitter.Node, string) {
	var fields *sitter.Node
	var definedName string

	visitCalls(root, func(call *sitter.Node) {
		if fields != nil {
			return
		}
		_, method, ok := methodCall(call, src)
		if !ok {
			return
		}
		args := callArgs(call)

		switch method {
		case "define":
			// define('users', { ... }) or define({ ... })
			if len(args) >= 2 && args[1].Type() == "object" {
				fields = args[1]
				definedName, _ = stringLiteral(args[0], src)
			} else if len(args) >= 1 && args[0].Type() == "object" {
				fields = args[0]
			}
		case "init":
			if len(args) >= 1 && args[0].Type() == "object" {
				fields = args[0]
			}
		}
	})

	return fields, definedName
}

// parseField extracts one field from its per-field option object.
// A non-object value is the shorthand form where the value is the type
// expression itself.
func parseField(name string, value *sitter.Node, src []byte) schema.Field {
	field := schema.Field{
		Name:     name,
		Nullable: true, // columns are nullable unless allowNull: false
	}

	if value.Type() != "object" {
		field.Type = literalValue(value, src)
		return field
	}

	var valuesNode *sitter.Node

	eachPair(value, src, func(key string, v *sitter.Node) {
		switch key {
		case "type":
			field.Type = literalValue(v, src)
		case "primaryKey":
			if b, ok := boolLiteral(v); ok {
				field.PrimaryKey = b
			}
		case "allowNull":
			if b, ok := boolLiteral(v); ok {
				field.Nullable = b
			}
		case "unique":
			if b, ok := boolLiteral(v); ok {
				field.Unique = b
			} else if _, ok := stringLiteral(v, src); ok {
				// named composite-unique constraint
				field.Unique = true
			}
		case "defaultValue":
			dv := literalValue(v, src)
			field.Default = &dv
		case "references":
			if ref := parseReference(v, src); ref != nil {
				field.References = ref
			}
		case "values":
			valuesNode = v
		}
	})

	if valuesNode != nil && strings.Contains(field.Type.Text, enumMarker) {
		field.EnumValues = parseEnumValues(valuesNode, src)
	}

	return field
}

// parseReference extracts a `references: { model, key }` option.
func parseReference(n *sitter.Node, src []byte) *schema.Reference {
	if n.Type() != "object" {
		return nil
	}

	ref := &schema.Reference{}
	if model := objectValue(n, src, "model"); model != nil {
		if s, ok := stringLiteral(model, src); ok {
			ref.Target = s
		} else if tail, ok := tailIdentifier(model, src); ok {
			ref.Target = tail
		} else {
			ref.Target = schema.Raw(nodeText(model, src)).Text
		}
	}
	if key := objectValue(n, src, "key"); key != nil {
		if s, ok := stringLiteral(key, src); ok {
			ref.Field = s
		} else {
			ref.Field = schema.Raw(nodeText(key, src)).Text
		}
	}

	if ref.Target == "" && ref.Field == "" {
		return nil
	}
	return ref
}

// parseEnumValues scans a `values` array, accepting string literals
// and bare identifiers, and falling back to the stripped raw source of
// anything else.
func parseEnumValues(n *sitter.Node, src []byte) []string {
	if n.Type() != "array" {
		return nil
	}

	var values []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		el := n.NamedChild(i)
		switch el.Type() {
		case "comment":
			continue
		case "string", "template_string":
			if s, ok := stringLiteral(el, src); ok {
				values = append(values, s)
			}
		case "identifier":
			values = append(values, nodeText(el, src))
		default:
			values = append(values, strings.TrimSpace(nodeText(el, src)))
		}
	}
	return values
}

// parseRelationCall matches the four relation call shapes
// (hasMany, hasOne, belongsTo, belongsToMany) and extracts the target
// plus the optional foreignKey/as options.
func parseRelationCall(call *sitter.Node, src []byte) (schema.Association, bool) {
	_, method, ok := methodCall(call, src)
	if !ok || !schema.IsRelationKind(method) {
		return schema.Association{}, false
	}

	args := callArgs(call)
	if len(args) == 0 {
		return schema.Association{}, false
	}

	target, ok := tailIdentifier(args[0], src)
	if !ok {
		if s, strOK := stringLiteral(args[0], src); strOK {
			target = s
		} else {
			return schema.Association{}, false
		}
	}

	a := schema.Association{
		Kind:   schema.RelationKind(method),
		Target: target,
	}

	if len(args) >= 2 && args[1].Type() == "object" {
		if fk := objectValue(args[1], src, "foreignKey"); fk != nil {
			a.ForeignKey = optionText(fk, src)
		}
		if alias := objectValue(args[1], src, "as"); alias != nil {
			a.Alias = optionText(alias, src)
		}
	}

	return a, true
}

// optionText renders a scalar option as text: unquoted for string
// literals, the nested `name` for object forms, raw source otherwise.
func optionText(n *sitter.Node, src []byte) string {
	if s, ok := stringLiteral(n, src); ok {
		return s
	}
	if n.Type() == "object" {
		// foreignKey: { name: 'user_id', allowNull: false }
		if name := objectValue(n, src, "name"); name != nil {
			return optionText(name, src)
		}
	}
	return strings.TrimSpace(nodeText(n, src))
}

// findTableName searches the file for a `tableName: '<string>'` pair.
func findTableName(root *sitter.Node, src []byte) string {
	var table string
	visitPairs(root, src, func(key string, value *sitter.Node) {
		if table != "" || key != "tableName" {
			return
		}
		if s, ok := stringLiteral(value, src); ok {
			table = s
		}
	})
	return table
}
