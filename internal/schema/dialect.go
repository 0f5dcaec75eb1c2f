package schema

import (
	"fmt"
	"strings"
)

// Dialect renders the backend specific pieces of generated SQL.
type Dialect interface {
	Name() string
	Quote(ident string) string
	Placeholder(n int) string
	ColumnType(a Attribute) string
	TableOptions() string
	// SkipDuplicates returns the INSERT suffix that turns a primary key
	// collision into a no-op without masking foreign key failures.
	SkipDuplicates(t *Table) string
}

// Dialect names.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case DialectSQLite:
		return SQLite{}, nil
	case DialectPostgres:
		return Postgres{}, nil
	case DialectMySQL:
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("unknown sql dialect %q", name)
	}
}

func doubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func enumCheck(d Dialect, a Attribute) string {
	vals := make([]string, len(a.Values))
	for i, v := range a.Values {
		vals[i] = quoteLiteral(v)
	}
	return fmt.Sprintf("CHECK (%s IN (%s))", d.Quote(a.Name), strings.Join(vals, ", "))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// SQLite stores dates and datetimes as canonical text so round trips are
// byte for byte.
type SQLite struct{}

func (SQLite) Name() string              { return DialectSQLite }
func (SQLite) Quote(ident string) string { return doubleQuote(ident) }
func (SQLite) Placeholder(int) string    { return "?" }
func (SQLite) TableOptions() string      { return "" }

func (d SQLite) ColumnType(a Attribute) string {
	switch a.Kind {
	case KindVarchar:
		return fmt.Sprintf("VARCHAR(%d)", a.Length)
	case KindEnum:
		return "TEXT " + enumCheck(d, a)
	case KindBool, KindTinyint:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (SQLite) SkipDuplicates(*Table) string { return " ON CONFLICT DO NOTHING" }

// Postgres targets PostgreSQL through pgx.
type Postgres struct{}

func (Postgres) Name() string              { return DialectPostgres }
func (Postgres) Quote(ident string) string { return doubleQuote(ident) }
func (Postgres) Placeholder(n int) string  { return fmt.Sprintf("$%d", n) }
func (Postgres) TableOptions() string      { return "" }

func (d Postgres) ColumnType(a Attribute) string {
	switch a.Kind {
	case KindVarchar:
		return fmt.Sprintf("VARCHAR(%d)", a.Length)
	case KindDate:
		return "DATE"
	case KindDatetime:
		return "TIMESTAMP"
	case KindEnum:
		return fmt.Sprintf("VARCHAR(%d) %s", enumWidth(a), enumCheck(d, a))
	case KindBool:
		return "BOOLEAN"
	case KindTinyint:
		return "SMALLINT"
	default:
		return "TEXT"
	}
}

func (Postgres) SkipDuplicates(*Table) string { return " ON CONFLICT DO NOTHING" }

// MySQL targets MySQL and MariaDB, the servers DataJoint deployments run on.
type MySQL struct{}

func (MySQL) Name() string { return DialectMySQL }

func (MySQL) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) Placeholder(int) string { return "?" }
func (MySQL) TableOptions() string   { return " ENGINE=InnoDB" }

func (MySQL) ColumnType(a Attribute) string {
	switch a.Kind {
	case KindVarchar:
		return fmt.Sprintf("VARCHAR(%d)", a.Length)
	case KindDate:
		return "DATE"
	case KindDatetime:
		return "DATETIME"
	case KindEnum:
		vals := make([]string, len(a.Values))
		for i, v := range a.Values {
			vals[i] = quoteLiteral(v)
		}
		return "ENUM(" + strings.Join(vals, ",") + ")"
	case KindBool:
		return "TINYINT(1)"
	case KindTinyint:
		return "TINYINT"
	default:
		return "TEXT"
	}
}

// SkipDuplicates assigns the first key attribute to itself; INSERT IGNORE
// would also swallow foreign key errors.
func (d MySQL) SkipDuplicates(t *Table) string {
	pk := t.PrimaryKey()
	if len(pk) == 0 {
		return ""
	}
	q := d.Quote(pk[0])
	return fmt.Sprintf(" ON DUPLICATE KEY UPDATE %s=%s", q, q)
}

func enumWidth(a Attribute) int {
	w := 1
	for _, v := range a.Values {
		if len(v) > w {
			w = len(v)
		}
	}
	return w
}
