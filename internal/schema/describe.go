package schema

import (
	"fmt"
	"strings"
)

// Describe renders the human-readable description of the whole schema.
// This text, together with the retrieval engine's ordered entity
// subset, is the only artifact the downstream generation step consumes.
func Describe(entities []Entity) string {
	if len(entities) == 0 {
		return "No database models found."
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Database schema (%d tables):\n", len(entities)))
	for i := range entities {
		b.WriteString("\n")
		b.WriteString(EntityText(&entities[i]))
	}
	return b.String()
}

// EntityText renders one entity's canonical text. The same rendering
// is used for the schema description, for embedding input, and as part
// of the keyword-match haystack, so all three signals see one
// consistent view of the entity.
func EntityText(e *Entity) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Table %s (model %s)\n", e.TableName, e.Name))

	for i := range e.Fields {
		f := &e.Fields[i]
		b.WriteString("  - " + f.Name)
		if f.Type.Text != "" {
			b.WriteString(": " + f.Type.Text)
		}
		var attrs []string
		if f.PrimaryKey {
			attrs = append(attrs, "primary key")
		}
		if !f.Nullable {
			attrs = append(attrs, "not null")
		}
		if f.Unique {
			attrs = append(attrs, "unique")
		}
		if f.Default != nil {
			attrs = append(attrs, "default "+f.Default.Text)
		}
		if len(f.EnumValues) > 0 {
			attrs = append(attrs, "allowed values: "+strings.Join(f.EnumValues, ", "))
		}
		if f.References != nil {
			ref := f.References.Target
			if f.References.Field != "" {
				ref += "." + f.References.Field
			}
			attrs = append(attrs, "references "+ref)
		}
		if len(attrs) > 0 {
			b.WriteString(" (" + strings.Join(attrs, ", ") + ")")
		}
		b.WriteString("\n")
	}

	for _, a := range e.Associations {
		b.WriteString("  - " + string(a.Kind) + " " + a.Target)
		var opts []string
		if a.Alias != "" {
			opts = append(opts, "as "+a.Alias)
		}
		if a.ForeignKey != "" {
			opts = append(opts, "foreign key "+a.ForeignKey)
		}
		if len(opts) > 0 {
			b.WriteString(" (" + strings.Join(opts, ", ") + ")")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// SearchText returns the lower-cased haystack an entity is matched
// against during keyword retrieval: name, storage name, field names,
// and the rendered description.
func SearchText(e *Entity) string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteString(" ")
	b.WriteString(e.TableName)
	for i := range e.Fields {
		b.WriteString(" ")
		b.WriteString(e.Fields[i].Name)
	}
	b.WriteString(" ")
	b.WriteString(EntityText(e))
	return strings.ToLower(b.String())
}
