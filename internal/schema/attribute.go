package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"sessionflow/pkg/domain"
)

// Value errors returned by Attribute.Coerce.
var (
	ErrMissingValue = errors.New("missing value")
	ErrInvalidValue = errors.New("invalid value")
)

// Kind is the declared attribute data type.
type Kind int

// Supported attribute kinds.
const (
	KindVarchar Kind = iota
	KindDate
	KindDatetime
	KindEnum
	KindBool
	KindTinyint
)

func (k Kind) String() string {
	switch k {
	case KindVarchar:
		return "varchar"
	case KindDate:
		return "date"
	case KindDatetime:
		return "datetime"
	case KindEnum:
		return "enum"
	case KindBool:
		return "boolean"
	case KindTinyint:
		return "tinyint"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Attribute declares a single table attribute.
type Attribute struct {
	Name     string
	Kind     Kind
	Length   int
	Values   []string
	Default  *string
	Nullable bool
	Comment  string
}

// Varchar declares a bounded string attribute.
func Varchar(name string, n int) Attribute {
	return Attribute{Name: name, Kind: KindVarchar, Length: n}
}

// Date declares a calendar date attribute.
func Date(name string) Attribute { return Attribute{Name: name, Kind: KindDate} }

// Datetime declares a date and time of day attribute.
func Datetime(name string) Attribute { return Attribute{Name: name, Kind: KindDatetime} }

// Enum declares an attribute restricted to the listed values.
func Enum(name string, values ...string) Attribute {
	return Attribute{Name: name, Kind: KindEnum, Values: append([]string(nil), values...)}
}

// Bool declares a boolean attribute.
func Bool(name string) Attribute { return Attribute{Name: name, Kind: KindBool} }

// Tinyint declares a small signed integer attribute.
func Tinyint(name string) Attribute { return Attribute{Name: name, Kind: KindTinyint} }

// WithDefault returns a copy carrying a literal default.
func (a Attribute) WithDefault(v string) Attribute {
	a.Default = &v
	return a
}

// Null returns a copy that defaults to NULL.
func (a Attribute) Null() Attribute {
	a.Nullable = true
	a.Default = nil
	return a
}

// Doc returns a copy with the attribute comment set.
func (a Attribute) Doc(comment string) Attribute {
	a.Comment = comment
	return a
}

// Optional reports whether the attribute may be omitted on insert.
func (a Attribute) Optional() bool { return a.Nullable || a.Default != nil }

// Type renders the declared type the way definitions are written.
func (a Attribute) Type() string {
	switch a.Kind {
	case KindVarchar:
		return fmt.Sprintf("varchar(%d)", a.Length)
	case KindEnum:
		quoted := make([]string, len(a.Values))
		for i, v := range a.Values {
			quoted[i] = "'" + v + "'"
		}
		return "enum(" + strings.Join(quoted, ",") + ")"
	default:
		return a.Kind.String()
	}
}

// Coerce converts CSV text into the value handed to the database driver.
// present is false when the source row has no such column at all. Key
// attributes never accept blanks. Varchar blanks become the empty string
// unless the attribute is nullable; other blanks fall back to the default,
// then NULL.
func (a Attribute) Coerce(raw string, present, key bool) (any, error) {
	blank := strings.TrimSpace(raw) == ""
	if !present || blank {
		if key {
			return nil, fmt.Errorf("%s: %w", a.Name, ErrMissingValue)
		}
		if present && a.Kind == KindVarchar {
			if a.Nullable {
				return nil, nil
			}
			return "", nil
		}
		switch {
		case a.Default != nil:
			return a.Coerce(*a.Default, true, false)
		case a.Nullable:
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", a.Name, ErrMissingValue)
	}

	s := strings.TrimSpace(raw)
	switch a.Kind {
	case KindVarchar:
		if a.Length > 0 && utf8.RuneCountInString(raw) > a.Length {
			return nil, fmt.Errorf("%s: %w: %d characters exceeds varchar(%d)", a.Name, ErrInvalidValue, utf8.RuneCountInString(raw), a.Length)
		}
		return raw, nil
	case KindDate:
		v, err := domain.ParseDate(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", a.Name, ErrInvalidValue, err)
		}
		return v, nil
	case KindDatetime:
		v, err := domain.ParseDatetime(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", a.Name, ErrInvalidValue, err)
		}
		return v, nil
	case KindEnum:
		for _, allowed := range a.Values {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%s: %w: %q not in %s", a.Name, ErrInvalidValue, s, a.Type())
	case KindBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %q is not a boolean", a.Name, ErrInvalidValue, s)
		}
		return v, nil
	case KindTinyint:
		v, err := strconv.ParseInt(s, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %q is not a tinyint", a.Name, ErrInvalidValue, s)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%s: %w: unsupported kind %s", a.Name, ErrInvalidValue, a.Kind)
}

// Format renders a value scanned from the database in canonical text form.
// NULL renders as the empty string; booleans render as 1 or 0.
func (a Attribute) Format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		if a.Kind == KindDate {
			return val.Format(domain.DateLayout)
		}
		return val.Format(domain.DatetimeLayout)
	case []byte:
		return a.formatText(string(val))
	case string:
		return a.formatText(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case int64:
		if a.Kind == KindBool {
			if val != 0 {
				return "1"
			}
			return "0"
		}
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func (a Attribute) formatText(s string) string {
	switch a.Kind {
	case KindDate:
		if v, err := domain.ParseDate(s); err == nil {
			return v
		}
	case KindDatetime:
		if v, err := domain.ParseDatetime(s); err == nil {
			return v
		}
	case KindBool:
		if v, err := strconv.ParseBool(s); err == nil {
			if v {
				return "1"
			}
			return "0"
		}
	}
	return s
}
