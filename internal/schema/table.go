package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// Tier classifies how a table is populated.
type Tier int

// Table tiers.
const (
	// TierLookup holds small reference sets that rarely change.
	TierLookup Tier = iota
	// TierManual holds rows entered by hand or ingested from sheets.
	TierManual
	// TierPart holds rows owned by a master table.
	TierPart
)

func (t Tier) String() string {
	switch t {
	case TierLookup:
		return "lookup"
	case TierManual:
		return "manual"
	case TierPart:
		return "part"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Column is an attribute placed in a table heading.
type Column struct {
	Attribute
	// Key marks primary key attributes.
	Key bool
	// Ref is the index into Table.Refs the attribute was inherited through,
	// or -1 for locally declared attributes.
	Ref int
}

// ForeignKey links a table to the primary key of a parent.
type ForeignKey struct {
	Parent   *Table
	Columns  []string
	Primary  bool
	Nullable bool
}

// Table is a declared relation.
type Table struct {
	Schema  string
	Class   string
	Name    string
	Tier    Tier
	Comment string
	Master  *Table
	Columns []Column
	Refs    []ForeignKey
}

// FullName returns the physical table name under the given prefix.
func (t *Table) FullName(prefix string) string {
	return prefix + t.Schema + "_" + t.Name
}

// QualifiedClass returns the class name qualified by its schema.
func (t *Table) QualifiedClass() string {
	return t.Schema + "." + t.Class
}

func (t *Table) String() string { return t.QualifiedClass() }

// PrimaryKey returns the primary key attribute names in heading order.
func (t *Table) PrimaryKey() []string {
	var out []string
	for _, c := range t.Columns {
		if c.Key {
			out = append(out, c.Name)
		}
	}
	return out
}

// ColumnNames returns every attribute name in heading order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up an attribute by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t *Table) hasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Builder accumulates a table definition. Primary key entries must precede
// secondary attributes; definitions are static so misuse panics.
type Builder struct {
	catalog   *Catalog
	table     *Table
	secondary bool
}

// Ref inherits the parent's primary key as part of this table's primary key.
func (b *Builder) Ref(parent *Table) *Builder {
	if b.secondary {
		panic(fmt.Sprintf("schema: %s: primary reference to %s after secondary attributes", b.table.Class, parent.Class))
	}
	b.addRef(parent, true, false)
	return b
}

// Key declares a primary key attribute.
func (b *Builder) Key(a Attribute) *Builder {
	if b.secondary {
		panic(fmt.Sprintf("schema: %s: key %s after secondary attributes", b.table.Class, a.Name))
	}
	b.addColumn(Column{Attribute: a, Key: true, Ref: -1})
	return b
}

// Attr declares a secondary attribute.
func (b *Builder) Attr(a Attribute) *Builder {
	b.secondary = true
	b.addColumn(Column{Attribute: a, Ref: -1})
	return b
}

// AttrRef inherits the parent's primary key as secondary attributes.
func (b *Builder) AttrRef(parent *Table) *Builder {
	b.secondary = true
	b.addRef(parent, false, false)
	return b
}

// NullableRef is AttrRef with NULL allowed.
func (b *Builder) NullableRef(parent *Table) *Builder {
	b.secondary = true
	b.addRef(parent, false, true)
	return b
}

// Table finalises the definition and registers it with the catalog.
func (b *Builder) Table() *Table {
	if len(b.table.PrimaryKey()) == 0 {
		panic(fmt.Sprintf("schema: %s has no primary key", b.table.Class))
	}
	b.catalog.register(b.table)
	return b.table
}

func (b *Builder) addColumn(c Column) {
	if b.table.hasColumn(c.Name) {
		panic(fmt.Sprintf("schema: %s: duplicate attribute %s", b.table.Class, c.Name))
	}
	b.table.Columns = append(b.table.Columns, c)
}

func (b *Builder) addRef(parent *Table, primary, nullable bool) {
	idx := len(b.table.Refs)
	fk := ForeignKey{Parent: parent, Primary: primary, Nullable: nullable}
	for _, pc := range parent.Columns {
		if !pc.Key {
			continue
		}
		fk.Columns = append(fk.Columns, pc.Name)
		if b.table.hasColumn(pc.Name) {
			// shared ancestor attributes merge into one column
			continue
		}
		attr := pc.Attribute
		attr.Default = nil
		attr.Nullable = nullable
		b.table.Columns = append(b.table.Columns, Column{Attribute: attr, Key: primary, Ref: idx})
	}
	b.table.Refs = append(b.table.Refs, fk)
}

// className converts a CamelCase class into the snake_case physical name.
// Part classes ("Master.Part") join with a double underscore.
func className(class string) string {
	parts := strings.Split(class, ".")
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, "__")
}

func snake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
