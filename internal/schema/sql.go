package schema

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CreateTable renders an idempotent CREATE TABLE statement for t.
func CreateTable(d Dialect, prefix string, t *Table) string {
	var lines []string
	for _, c := range t.Columns {
		lines = append(lines, "  "+columnDefinition(d, c))
	}
	lines = append(lines, fmt.Sprintf("  PRIMARY KEY (%s)", quoteList(d, t.PrimaryKey())))
	for _, fk := range t.Refs {
		lines = append(lines, fmt.Sprintf("  FOREIGN KEY (%s) REFERENCES %s (%s) ON UPDATE CASCADE ON DELETE RESTRICT",
			quoteList(d, fk.Columns), d.Quote(fk.Parent.FullName(prefix)), quoteList(d, fk.Columns)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)%s;", d.Quote(t.FullName(prefix)), strings.Join(lines, ",\n"), d.TableOptions())
}

func columnDefinition(d Dialect, c Column) string {
	def := d.Quote(c.Name) + " " + d.ColumnType(c.Attribute)
	switch {
	case c.Key || !c.Nullable:
		def += " NOT NULL"
	default:
		def += " NULL"
	}
	if c.Key {
		return def
	}
	switch {
	case c.Default != nil:
		def += " DEFAULT " + defaultLiteral(c.Attribute, *c.Default)
	case c.Nullable:
		def += " DEFAULT NULL"
	}
	return def
}

func defaultLiteral(a Attribute, v string) string {
	switch a.Kind {
	case KindBool:
		if b, err := strconv.ParseBool(v); err == nil {
			if b {
				return "1"
			}
			return "0"
		}
	case KindTinyint:
		if _, err := strconv.Atoi(v); err == nil {
			return v
		}
	}
	return quoteLiteral(v)
}

// DropTable renders an idempotent DROP TABLE statement.
func DropTable(d Dialect, prefix string, t *Table) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.Quote(t.FullName(prefix)))
}

// DDL renders a script creating tables in the given order. Each statement is
// preceded by a comment naming the class.
func DDL(d Dialect, prefix string, tables []*Table) string {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "-- %s (%s)\n", t.QualifiedClass(), t.Tier)
		b.WriteString(CreateTable(d, prefix, t))
		b.WriteString("\n")
	}
	return b.String()
}

// DropDDL renders a script dropping tables in reverse order.
func DropDDL(d Dialect, prefix string, tables []*Table) string {
	var b strings.Builder
	for i := len(tables) - 1; i >= 0; i-- {
		b.WriteString(DropTable(d, prefix, tables[i]))
		b.WriteString("\n")
	}
	return b.String()
}

// Insert renders a single-row INSERT over every column of t.
func Insert(d Dialect, prefix string, t *Table, skipDuplicates bool) string {
	names := t.ColumnNames()
	ph := make([]string, len(names))
	for i := range names {
		ph[i] = d.Placeholder(i + 1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.Quote(t.FullName(prefix)), quoteList(d, names), strings.Join(ph, ", "))
	if skipDuplicates {
		stmt += d.SkipDuplicates(t)
	}
	return stmt
}

// Where renders an equality restriction over the sorted attribute names in
// restriction, starting placeholders at offset+1. It returns the clause
// (empty when there is nothing to restrict) and the attribute order used.
func Where(d Dialect, restriction []string, offset int) (string, []string) {
	if len(restriction) == 0 {
		return "", nil
	}
	names := append([]string(nil), restriction...)
	sort.Strings(names)
	conds := make([]string, len(names))
	for i, n := range names {
		conds[i] = fmt.Sprintf("%s = %s", d.Quote(n), d.Placeholder(offset+i+1))
	}
	return " WHERE " + strings.Join(conds, " AND "), names
}

// Select renders a SELECT of columns ordered by primary key.
func Select(d Dialect, prefix string, t *Table, columns []string, where string) string {
	return fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s", quoteList(d, columns), d.Quote(t.FullName(prefix)), where, quoteList(d, t.PrimaryKey()))
}

// Count renders a SELECT COUNT(*).
func Count(d Dialect, prefix string, t *Table, where string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", d.Quote(t.FullName(prefix)), where)
}

// Delete renders a DELETE.
func Delete(d Dialect, prefix string, t *Table, where string) string {
	return fmt.Sprintf("DELETE FROM %s%s", d.Quote(t.FullName(prefix)), where)
}

func quoteList(d Dialect, names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = d.Quote(n)
	}
	return strings.Join(out, ", ")
}

// SplitStatements splits a semicolon-terminated DDL script into executable statements.
// It drops blank lines and single-line comments that start with "--".
func SplitStatements(ddl string) []string {
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	var stmts []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}

	if tail := strings.TrimSpace(current.String()); tail != "" {
		stmts = append(stmts, tail)
	}

	return stmts
}
