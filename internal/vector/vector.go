// Package vector provides dense and sparse feature vectors and their Arrow encoding.
//
// Vectors are stored in a struct column with the same layout Spark ML uses for
// its vector type: struct<type: int8, size: int32, indices: list<int32>,
// values: list<float64>>, where type 0 is sparse and type 1 is dense. Dense
// vectors carry an empty indices list.
package vector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

const (
	sparseTag int8 = 0
	denseTag  int8 = 1

	typeField    = 0
	sizeField    = 1
	indicesField = 2
	valuesField  = 3
)

// DataType is the Arrow type of a vector column.
var DataType = arrow.StructOf(
	arrow.Field{Name: "type", Type: arrow.PrimitiveTypes.Int8},
	arrow.Field{Name: "size", Type: arrow.PrimitiveTypes.Int32},
	arrow.Field{Name: "indices", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)},
	arrow.Field{Name: "values", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
)

// IsVectorType reports whether dt is the vector struct layout.
func IsVectorType(dt arrow.DataType) bool {
	return dt != nil && arrow.TypeEqual(dt, DataType)
}

// Vector is a float64 vector in either dense or sparse form.
// Sparse indices are strictly increasing.
type Vector struct {
	size    int
	indices []int32
	values  []float64
	sparse  bool
}

// Dense creates a dense vector that takes ownership of values.
func Dense(values []float64) Vector {
	return Vector{size: len(values), values: values}
}

// Sparse creates a sparse vector. Indices must be strictly increasing and in range.
func Sparse(size int, indices []int32, values []float64) (Vector, error) {
	if len(indices) != len(values) {
		return Vector{}, fmt.Errorf("indices and values must have the same length, got %d and %d",
			len(indices), len(values))
	}
	prev := int32(-1)
	for _, idx := range indices {
		if idx <= prev || int(idx) >= size {
			return Vector{}, fmt.Errorf("invalid sparse index %d for size %d", idx, size)
		}
		prev = idx
	}
	return Vector{size: size, indices: indices, values: values, sparse: true}, nil
}

// OneHot returns a sparse vector of the given size with a single 1.0 at position.
// A position equal to size yields the all-zero vector (dropped last category).
func OneHot(size, position int) Vector {
	if position >= size {
		return Vector{size: size, sparse: true}
	}
	return Vector{size: size, indices: []int32{int32(position)}, values: []float64{1}, sparse: true}
}

// Size returns the vector length.
func (v Vector) Size() int { return v.size }

// IsSparse reports whether the vector is stored sparsely.
func (v Vector) IsSparse() bool { return v.sparse }

// NumNonzeros counts non-zero entries.
func (v Vector) NumNonzeros() int {
	n := 0
	for _, x := range v.values {
		if x != 0 {
			n++
		}
	}
	return n
}

// At returns the element at position i.
func (v Vector) At(i int) float64 {
	if !v.sparse {
		return v.values[i]
	}
	for k, idx := range v.indices {
		if int(idx) == i {
			return v.values[k]
		}
	}
	return 0
}

// ToDense returns the elements as a dense slice.
func (v Vector) ToDense() []float64 {
	if !v.sparse {
		return append([]float64(nil), v.values...)
	}
	out := make([]float64, v.size)
	for k, idx := range v.indices {
		out[idx] = v.values[k]
	}
	return out
}

// Compressed returns the cheaper representation: sparse when 1.5*(nnz+1) < size.
func (v Vector) Compressed() Vector {
	nnz := v.NumNonzeros()
	if 1.5*float64(nnz+1) < float64(v.size) {
		return v.toSparse(nnz)
	}
	if v.sparse {
		return Dense(v.ToDense())
	}
	return v
}

func (v Vector) toSparse(nnz int) Vector {
	indices := make([]int32, 0, nnz)
	values := make([]float64, 0, nnz)
	v.ForEachActive(func(i int, x float64) {
		if x != 0 {
			indices = append(indices, int32(i))
			values = append(values, x)
		}
	})
	return Vector{size: v.size, indices: indices, values: values, sparse: true}
}

// ForEachActive calls fn for every stored entry (all entries for dense vectors).
func (v Vector) ForEachActive(fn func(i int, x float64)) {
	if v.sparse {
		for k, idx := range v.indices {
			fn(int(idx), v.values[k])
		}
		return
	}
	for i, x := range v.values {
		fn(i, x)
	}
}

// String renders the vector like Spark: (size,[indices],[values]) or [values].
func (v Vector) String() string {
	if v.sparse {
		idx := make([]string, len(v.indices))
		for i, x := range v.indices {
			idx[i] = strconv.Itoa(int(x))
		}
		return fmt.Sprintf("(%d,[%s],[%s])", v.size, strings.Join(idx, ","), formatFloats(v.values))
	}
	return "[" + formatFloats(v.values) + "]"
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, x := range values {
		parts[i] = strconv.FormatFloat(x, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// Builder appends vectors to an Arrow struct array.
type Builder struct {
	sb      *array.StructBuilder
	tag     *array.Int8Builder
	size    *array.Int32Builder
	indices *array.ListBuilder
	idxVals *array.Int32Builder
	values  *array.ListBuilder
	valVals *array.Float64Builder
}

// NewBuilder creates a vector builder using mem.
func NewBuilder(mem memory.Allocator) *Builder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	sb := array.NewStructBuilder(mem, DataType)
	indices := sb.FieldBuilder(indicesField).(*array.ListBuilder)
	values := sb.FieldBuilder(valuesField).(*array.ListBuilder)
	return &Builder{
		sb:      sb,
		tag:     sb.FieldBuilder(typeField).(*array.Int8Builder),
		size:    sb.FieldBuilder(sizeField).(*array.Int32Builder),
		indices: indices,
		idxVals: indices.ValueBuilder().(*array.Int32Builder),
		values:  values,
		valVals: values.ValueBuilder().(*array.Float64Builder),
	}
}

// Append adds one vector.
func (b *Builder) Append(v Vector) {
	b.sb.Append(true)
	if v.sparse {
		b.tag.Append(sparseTag)
	} else {
		b.tag.Append(denseTag)
	}
	b.size.Append(int32(v.size))
	b.indices.Append(true)
	b.idxVals.AppendValues(v.indices, nil)
	b.values.Append(true)
	b.valVals.AppendValues(v.values, nil)
}

// AppendNull adds a null vector.
func (b *Builder) AppendNull() {
	b.sb.AppendNull()
}

// NewArray finishes the array. The builder can be reused afterwards.
func (b *Builder) NewArray() *array.Struct {
	return b.sb.NewStructArray()
}

// Release releases the builder's memory.
func (b *Builder) Release() {
	b.sb.Release()
}

// NewArray builds a vector array from vs.
func NewArray(vs []Vector, mem memory.Allocator) *array.Struct {
	b := NewBuilder(mem)
	defer b.Release()
	for _, v := range vs {
		b.Append(v)
	}
	return b.NewArray()
}

// Reader decodes vectors from a struct array.
type Reader struct {
	arr     *array.Struct
	tag     *array.Int8
	size    *array.Int32
	indices *array.List
	idxVals *array.Int32
	values  *array.List
	valVals *array.Float64
}

// NewReader validates arr's layout and returns a Reader over it.
func NewReader(arr arrow.Array) (*Reader, error) {
	st, ok := arr.(*array.Struct)
	if !ok || !IsVectorType(arr.DataType()) {
		return nil, fmt.Errorf("array of type %s is not a vector column", arr.DataType())
	}
	return newReader(st), nil
}

func newReader(st *array.Struct) *Reader {
	indices := st.Field(indicesField).(*array.List)
	values := st.Field(valuesField).(*array.List)
	return &Reader{
		arr:     st,
		tag:     st.Field(typeField).(*array.Int8),
		size:    st.Field(sizeField).(*array.Int32),
		indices: indices,
		idxVals: indices.ListValues().(*array.Int32),
		values:  values,
		valVals: values.ListValues().(*array.Float64),
	}
}

// Len returns the number of rows.
func (r *Reader) Len() int { return r.arr.Len() }

// IsNull reports whether row i is null.
func (r *Reader) IsNull(i int) bool { return r.arr.IsNull(i) }

// Value returns the vector at row i. The returned slices are copies.
func (r *Reader) Value(i int) Vector {
	v := Vector{size: int(r.size.Value(i)), sparse: r.tag.Value(i) == sparseTag}
	if v.sparse {
		start, end := r.indices.ValueOffsets(i)
		v.indices = make([]int32, end-start)
		for k := start; k < end; k++ {
			v.indices[k-start] = r.idxVals.Value(int(k))
		}
	}
	start, end := r.values.ValueOffsets(i)
	v.values = make([]float64, end-start)
	for k := start; k < end; k++ {
		v.values[k-start] = r.valVals.Value(int(k))
	}
	return v
}

// ValueAt decodes row i of a vector array without keeping a Reader around.
func ValueAt(arr arrow.Array, i int) (Vector, error) {
	r, err := NewReader(arr)
	if err != nil {
		return Vector{}, err
	}
	return r.Value(i), nil
}
