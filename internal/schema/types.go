// Package schema defines the relational schema model extracted from
// Sequelize-style model definition files: entities, their fields and
// associations, and the immutable Snapshot that holds one full
// extraction result.
package schema

import (
	"fmt"
	"strings"
)

// =============================================================================
// VALUES - Literal vs raw-source option values
// =============================================================================

// ValueKind distinguishes trustworthy structured literals from opaque
// source text captured best-effort.
type ValueKind int

const (
	// ValueLiteral is a simple literal (string, number, boolean,
	// identifier) whose textual value is reliable.
	ValueLiteral ValueKind = iota

	// ValueRawExpression is the verbatim source text of an expression
	// the parser did not evaluate.
	ValueRawExpression
)

// Value is a tagged option value. Field types, defaults, and reference
// targets are captured either as literals or as raw source text.
type Value struct {
	Kind ValueKind
	Text string // literal value or raw source, depending on Kind
}

// Literal wraps a simple literal value.
func Literal(text string) Value {
	return Value{Kind: ValueLiteral, Text: text}
}

// Raw wraps unevaluated source text.
func Raw(source string) Value {
	return Value{Kind: ValueRawExpression, Text: strings.TrimSpace(source)}
}

// IsLiteral reports whether the value is a trustworthy literal.
func (v Value) IsLiteral() bool { return v.Kind == ValueLiteral }

func (v Value) String() string { return v.Text }

// =============================================================================
// FIELDS
// =============================================================================

// Reference is a foreign reference declared on a field
// (Sequelize `references: { model, key }`).
type Reference struct {
	Target string // referenced model or table name
	Field  string // referenced column
}

// Field is one column-like attribute of an Entity.
type Field struct {
	Name       string
	Type       Value // declared type expression, e.g. DataTypes.STRING
	PrimaryKey bool
	Nullable   bool
	Unique     bool
	Default    *Value
	EnumValues []string   // authoritative allowed values, if declared
	References *Reference // optional foreign reference; may dangle
}

// =============================================================================
// ASSOCIATIONS
// =============================================================================

// RelationKind is one of the four recognized Sequelize relation calls.
type RelationKind string

const (
	HasMany       RelationKind = "hasMany"
	HasOne        RelationKind = "hasOne"
	BelongsTo     RelationKind = "belongsTo"
	BelongsToMany RelationKind = "belongsToMany"
)

// IsRelationKind reports whether name is a recognized relation call.
func IsRelationKind(name string) bool {
	switch RelationKind(name) {
	case HasMany, HasOne, BelongsTo, BelongsToMany:
		return true
	}
	return false
}

// Association is a declared relationship from one entity to another.
// The target is free text and is not required to resolve.
type Association struct {
	Kind       RelationKind
	Target     string
	ForeignKey string
	Alias      string // value of the `as` option
}

// Key returns the de-duplication key. Two associations with the same
// kind, target, and alias are the same declaration regardless of where
// they were declared.
func (a Association) Key() string {
	return fmt.Sprintf("%s|%s|%s", a.Kind, a.Target, a.Alias)
}

// =============================================================================
// ENTITIES
// =============================================================================

// Entity is one extracted schema unit: a model/table definition.
type Entity struct {
	Name         string // model name, taken from the definition file name
	TableName    string // storage name
	Fields       []Field
	Associations []Association
}

// HasAssociation reports whether the entity already declares an
// association with the given de-duplication key.
func (e *Entity) HasAssociation(key string) bool {
	for _, a := range e.Associations {
		if a.Key() == key {
			return true
		}
	}
	return false
}

// AddAssociation appends the association unless a same-key declaration
// already exists. Existing declarations always win; centralized
// declarations are additive only.
func (e *Entity) AddAssociation(a Association) bool {
	if e.HasAssociation(a.Key()) {
		return false
	}
	e.Associations = append(e.Associations, a)
	return true
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the immutable result of one full extraction pass.
// It is never mutated in place: a rebuild assembles a brand-new
// Snapshot off to the side and the holder swaps the reference.
type Snapshot struct {
	Entities    []Entity
	Description string
}

// NewSnapshot assembles a snapshot from the ordered entity list and
// generates its human-readable description.
func NewSnapshot(entities []Entity) *Snapshot {
	return &Snapshot{
		Entities:    entities,
		Description: Describe(entities),
	}
}

// Entity returns the entity with the given model name.
func (s *Snapshot) Entity(name string) (*Entity, bool) {
	for i := range s.Entities {
		if s.Entities[i].Name == name {
			return &s.Entities[i], true
		}
	}
	return nil, false
}

// Names returns the entity names in snapshot order.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.Entities))
	for i := range s.Entities {
		names[i] = s.Entities[i].Name
	}
	return names
}
