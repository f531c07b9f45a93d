package vector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Parse reads a vector from its String form: "[v0,v1,...]" for dense
// vectors and "(size,[i0,i1,...],[v0,v1,...])" for sparse ones.
func Parse(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		values, err := parseFloats(s[1 : len(s)-1])
		if err != nil {
			return Vector{}, err
		}
		return Dense(values), nil
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		return parseSparse(s[1 : len(s)-1])
	default:
		return Vector{}, fmt.Errorf("invalid vector %q", s)
	}
}

func parseSparse(body string) (Vector, error) {
	sizeText, rest, ok := strings.Cut(body, ",")
	if !ok {
		return Vector{}, fmt.Errorf("invalid sparse vector %q", body)
	}
	size, err := strconv.Atoi(strings.TrimSpace(sizeText))
	if err != nil {
		return Vector{}, fmt.Errorf("invalid sparse vector size %q: %w", sizeText, err)
	}

	rest = strings.TrimSpace(rest)
	indicesText, valuesText, ok := strings.Cut(rest, "],")
	if !ok || !strings.HasPrefix(indicesText, "[") {
		return Vector{}, fmt.Errorf("invalid sparse vector %q", body)
	}
	valuesText = strings.TrimSpace(valuesText)
	if !strings.HasPrefix(valuesText, "[") || !strings.HasSuffix(valuesText, "]") {
		return Vector{}, fmt.Errorf("invalid sparse vector %q", body)
	}

	var indices []int32
	for _, field := range splitList(indicesText[1:]) {
		i, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return Vector{}, fmt.Errorf("invalid sparse vector index %q: %w", field, err)
		}
		indices = append(indices, int32(i))
	}
	values, err := parseFloats(valuesText[1 : len(valuesText)-1])
	if err != nil {
		return Vector{}, err
	}
	return Sparse(size, indices, values)
}

func parseFloats(list string) ([]float64, error) {
	fields := splitList(list)
	values := make([]float64, 0, len(fields))
	for _, field := range fields {
		x, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector value %q: %w", field, err)
		}
		values = append(values, x)
	}
	return values, nil
}

func splitList(list string) []string {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil
	}
	fields := strings.Split(list, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// HasLayout reports whether dt has the vector field names and value types,
// regardless of list element naming or nullability.
func HasLayout(dt arrow.DataType) bool {
	st, ok := dt.(*arrow.StructType)
	if !ok || st.NumFields() != 4 {
		return false
	}
	want := []struct {
		name string
		id   arrow.Type
		elem arrow.Type
	}{
		{"type", arrow.INT8, arrow.NULL},
		{"size", arrow.INT32, arrow.NULL},
		{"indices", arrow.LIST, arrow.INT32},
		{"values", arrow.LIST, arrow.FLOAT64},
	}
	for i, w := range want {
		f := st.Field(i)
		if f.Name != w.name || f.Type.ID() != w.id {
			return false
		}
		if lt, ok := f.Type.(*arrow.ListType); ok && lt.Elem().ID() != w.elem {
			return false
		}
	}
	return true
}

// Conform returns arr with exactly DataType. Arrays that already have it are
// retained and returned as is; arrays that only share the layout are
// rebuilt with mem. The caller releases the result.
func Conform(arr arrow.Array, mem memory.Allocator) (arrow.Array, error) {
	if IsVectorType(arr.DataType()) {
		arr.Retain()
		return arr, nil
	}
	st, ok := arr.(*array.Struct)
	if !ok || !HasLayout(arr.DataType()) {
		return nil, fmt.Errorf("array of type %s is not a vector column", arr.DataType())
	}

	r := newReader(st)
	b := NewBuilder(mem)
	defer b.Release()
	for i := 0; i < r.Len(); i++ {
		if r.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(r.Value(i))
	}
	return b.NewArray(), nil
}
