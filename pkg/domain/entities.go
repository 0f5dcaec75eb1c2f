// Package domain defines the value types, row representation, and rule
// evaluation primitives shared by the sessionflow schema, persistence, and
// ingestion layers.
package domain

import "strings"

// Row is a single table record keyed by attribute name. Values are kept in
// their canonical text form; a NULL attribute is represented by an empty
// string when fetched.
type Row map[string]string

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Project returns a row restricted to the provided attribute names. Missing
// attributes are skipped.
func (r Row) Project(names ...string) Row {
	out := make(Row, len(names))
	for _, name := range names {
		if v, ok := r[name]; ok {
			out[name] = v
		}
	}
	return out
}

// Blank reports whether the named attribute is absent or only whitespace.
func (r Row) Blank(name string) bool {
	return strings.TrimSpace(r[name]) == ""
}

// Sex identifies the recorded sex of a research subject.
type Sex string

// Subject sex values accepted by the subject table.
const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexUnknown Sex = "U"
)

// SexValues lists the enumeration in declaration order.
func SexValues() []string {
	return []string{string(SexMale), string(SexFemale), string(SexUnknown)}
}

// Zygosity records the allele state observed for a subject.
type Zygosity string

// Zygosity states.
const (
	ZygosityPresent      Zygosity = "Present"
	ZygosityAbsent       Zygosity = "Absent"
	ZygosityHomozygous   Zygosity = "Homozygous"
	ZygosityHeterozygous Zygosity = "Heterozygous"
	ZygosityHemizygous   Zygosity = "Hemizygous"
)

// ZygosityValues lists the enumeration in declaration order.
func ZygosityValues() []string {
	return []string{
		string(ZygosityPresent),
		string(ZygosityAbsent),
		string(ZygosityHomozygous),
		string(ZygosityHeterozygous),
		string(ZygosityHemizygous),
	}
}

// TestResult is the outcome of a genotype test.
type TestResult string

// Genotype test outcomes.
const (
	TestPresent TestResult = "Present"
	TestAbsent  TestResult = "Absent"
)

// TestResultValues lists the enumeration in declaration order.
func TestResultValues() []string {
	return []string{string(TestPresent), string(TestAbsent)}
}
