// Package schema declares the lab, subject, genotyping, and session tables,
// resolves their foreign-key graph, and renders dialect specific SQL for them.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTable is returned when a name does not resolve to a table.
var ErrUnknownTable = errors.New("unknown table")

// Catalog holds tables in declaration order. Every table is declared after
// the tables it references, so declaration order is a valid dependency order.
type Catalog struct {
	tables []*Table
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Lookup starts a lookup table definition.
func (c *Catalog) Lookup(schemaName, class, comment string) *Builder {
	return c.define(schemaName, class, TierLookup, comment, nil)
}

// Manual starts a manual table definition.
func (c *Catalog) Manual(schemaName, class, comment string) *Builder {
	return c.define(schemaName, class, TierManual, comment, nil)
}

// Part starts a part table owned by master. The master's primary key is
// inherited first.
func (c *Catalog) Part(master *Table, class, comment string) *Builder {
	b := c.define(master.Schema, master.Class+"."+class, TierPart, comment, master)
	return b.Ref(master)
}

func (c *Catalog) define(schemaName, class string, tier Tier, comment string, master *Table) *Builder {
	return &Builder{
		catalog: c,
		table: &Table{
			Schema:  schemaName,
			Class:   class,
			Name:    className(class),
			Tier:    tier,
			Comment: comment,
			Master:  master,
		},
	}
}

func (c *Catalog) register(t *Table) {
	for _, existing := range c.tables {
		if existing.Schema == t.Schema && existing.Name == t.Name {
			panic(fmt.Sprintf("schema: duplicate table %s", t.QualifiedClass()))
		}
	}
	for _, fk := range t.Refs {
		if !c.contains(fk.Parent) {
			panic(fmt.Sprintf("schema: %s references undeclared %s", t.QualifiedClass(), fk.Parent.QualifiedClass()))
		}
	}
	c.tables = append(c.tables, t)
}

func (c *Catalog) contains(t *Table) bool {
	for _, existing := range c.tables {
		if existing == t {
			return true
		}
	}
	return false
}

// Tables returns every table in dependency order.
func (c *Catalog) Tables() []*Table {
	return append([]*Table(nil), c.tables...)
}

// Schemas returns schema names in first-declared order.
func (c *Catalog) Schemas() []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range c.tables {
		if !seen[t.Schema] {
			seen[t.Schema] = true
			out = append(out, t.Schema)
		}
	}
	return out
}

// Schema returns the tables of one schema in dependency order.
func (c *Catalog) Schema(name string) []*Table {
	var out []*Table
	for _, t := range c.tables {
		if t.Schema == name {
			out = append(out, t)
		}
	}
	return out
}

// Table resolves a qualified class ("lab.Lab", "subject.Subject.Lab"), an
// unqualified class ("SubjectDeath", "Subject.Lab") or a physical name
// ("subject__lab", "subject_subject__lab").
func (c *Catalog) Table(name string) (*Table, error) {
	name = strings.TrimSpace(name)
	var matches []*Table
	for _, t := range c.tables {
		if t.QualifiedClass() == name || t.FullName("") == name || t.Schema+"."+t.Name == name {
			return t, nil
		}
		if t.Class == name || t.Name == name {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.QualifiedClass()
		}
		return nil, fmt.Errorf("%w: %s is ambiguous (%s)", ErrUnknownTable, name, strings.Join(names, ", "))
	}
}

// MustTable is Table for static names; it panics when resolution fails.
func (c *Catalog) MustTable(name string) *Table {
	t, err := c.Table(name)
	if err != nil {
		panic(err)
	}
	return t
}

// Parents returns the tables t references, in reference order.
func (c *Catalog) Parents(t *Table) []*Table {
	var out []*Table
	seen := map[*Table]bool{}
	for _, fk := range t.Refs {
		if !seen[fk.Parent] {
			seen[fk.Parent] = true
			out = append(out, fk.Parent)
		}
	}
	return out
}

// Children returns the tables referencing t, in declaration order.
func (c *Catalog) Children(t *Table) []*Table {
	var out []*Table
	for _, candidate := range c.tables {
		for _, fk := range candidate.Refs {
			if fk.Parent == t {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

// Parts returns the part tables owned by master.
func (c *Catalog) Parts(master *Table) []*Table {
	var out []*Table
	for _, t := range c.tables {
		if t.Master == master {
			out = append(out, t)
		}
	}
	return out
}
