package schema

import (
	"fmt"
	"strings"
)

// Describe renders t as a definition block: references as "-> parent" lines,
// local attributes as "name : type # comment", with "---" separating the
// primary key from secondary attributes.
func Describe(t *Table) string {
	var b strings.Builder
	if t.Comment != "" {
		fmt.Fprintf(&b, "# %s\n", t.Comment)
	}
	emitted := make(map[int]bool, len(t.Refs))
	divider := false
	for _, c := range t.Columns {
		if !c.Key && !divider {
			b.WriteString("---\n")
			divider = true
		}
		if c.Ref >= 0 {
			if emitted[c.Ref] {
				continue
			}
			emitted[c.Ref] = true
			b.WriteString(refLine(t, t.Refs[c.Ref]))
			continue
		}
		b.WriteString(attributeLine(c.Attribute))
	}
	// references whose attributes all merged into earlier columns
	for i, fk := range t.Refs {
		if emitted[i] {
			continue
		}
		if !fk.Primary && !divider {
			b.WriteString("---\n")
			divider = true
		}
		b.WriteString(refLine(t, fk))
	}
	return b.String()
}

func refLine(t *Table, fk ForeignKey) string {
	target := fk.Parent.QualifiedClass()
	if fk.Parent == t.Master {
		target = "master"
	}
	if fk.Nullable {
		return "-> [nullable] " + target + "\n"
	}
	return "-> " + target + "\n"
}

func attributeLine(a Attribute) string {
	name := a.Name
	switch {
	case a.Default != nil:
		name += "=" + quoteLiteral(*a.Default)
	case a.Nullable:
		name += "=null"
	}
	line := fmt.Sprintf("%-20s : %s", name, a.Type())
	if a.Comment != "" {
		line = fmt.Sprintf("%-44s # %s", line, a.Comment)
	}
	return line + "\n"
}
