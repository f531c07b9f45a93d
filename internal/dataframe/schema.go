package dataframe

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	xxhash "github.com/cespare/xxhash/v2"
	"github.com/paveg/prepkit/internal/series"
	"github.com/paveg/prepkit/internal/vector"
)

// Kind groups Arrow types into the families the preprocessor cares about.
type Kind int

const (
	KindOther Kind = iota
	KindFactor
	KindNumeric
	KindVector
)

func (k Kind) String() string {
	switch k {
	case KindFactor:
		return "factor"
	case KindNumeric:
		return "numeric"
	case KindVector:
		return "vector"
	default:
		return "other"
	}
}

// KindOf classifies an Arrow data type.
func KindOf(dt arrow.DataType) Kind {
	switch {
	case dt == nil:
		return KindOther
	case dt.ID() == arrow.STRING:
		return KindFactor
	case series.IsNumericType(dt):
		return KindNumeric
	case vector.IsVectorType(dt):
		return KindVector
	default:
		return KindOther
	}
}

// Field is one named, typed column of a schema.
type Field struct {
	Name string
	Type arrow.DataType
}

// TypeName returns a short type name ("string", "int64", "vector", ...).
func (f Field) TypeName() string {
	if vector.IsVectorType(f.Type) {
		return "vector"
	}
	if f.Type == nil {
		return "unknown"
	}
	return f.Type.String()
}

// Schema is an immutable snapshot of a DataFrame's column names and types.
type Schema struct {
	fields []Field
}

// NewSchema creates a schema from fields.
func NewSchema(fields ...Field) Schema {
	return Schema{fields: append([]Field(nil), fields...)}
}

// Fields returns a copy of the fields in order.
func (s Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Len returns the number of fields.
func (s Schema) Len() int {
	return len(s.fields)
}

// Field returns the field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the column names of the given kinds in schema order.
func (s Schema) Names(kinds ...Kind) []string {
	names := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		if len(kinds) == 0 || containsKind(kinds, KindOf(f.Type)) {
			names = append(names, f.Name)
		}
	}
	return names
}

// Factors returns the string-typed columns in schema order.
func (s Schema) Factors() []string {
	return s.Names(KindFactor)
}

// Numeric returns the integer and floating point columns in schema order.
func (s Schema) Numeric() []string {
	return s.Names(KindNumeric)
}

// Equal reports whether both schemas have the same names and types in the same order.
func (s Schema) Equal(other Schema) bool {
	return len(s.Diff(other)) == 0
}

// Diff lists human-readable differences between s and other.
func (s Schema) Diff(other Schema) []string {
	var diffs []string
	if len(s.fields) != len(other.fields) {
		diffs = append(diffs, fmt.Sprintf("column count %d != %d", len(s.fields), len(other.fields)))
	}
	n := min(len(s.fields), len(other.fields))
	for i := range n {
		a, b := s.fields[i], other.fields[i]
		if a.Name != b.Name || !arrow.TypeEqual(a.Type, b.Type) {
			diffs = append(diffs, fmt.Sprintf("column %d: %s %s != %s %s",
				i, a.Name, a.TypeName(), b.Name, b.TypeName()))
		}
	}
	return diffs
}

// Fingerprint hashes the ordered name:type pairs. Equal schemas share a fingerprint.
func (s Schema) Fingerprint() uint64 {
	h := xxhash.New()
	for _, f := range s.fields {
		_, _ = h.WriteString(f.Name)
		_, _ = h.WriteString(":")
		_, _ = h.WriteString(f.TypeName())
		_, _ = h.WriteString(";")
	}
	return h.Sum64()
}

// String renders the schema as "name: type" pairs.
func (s Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Name + ": " + f.TypeName()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
