package helpers

import (
	"fmt"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
)

// CanAppend reports whether Append can copy values of the given type.
// Callers configuring output channels should check this up front, so that an
// unsupported type fails at construction instead of mid-copy.
func CanAppend(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT64, arrow.INT32, arrow.FLOAT64, arrow.STRING, arrow.BOOL:
		return true
	default:
		return false
	}
}

// Append copies the value at the given row of arr into builder, preserving
// nulls. The builder and array have to be of the same type.
func Append(builder array.Builder, arr arrow.Array, row int) {
	if arr.IsNull(row) {
		builder.AppendNull()
		return
	}
	switch builder.Type().ID() {
	case arrow.INT64:
		builder.(*array.Int64Builder).Append(arr.(*array.Int64).Value(row))
	case arrow.INT32:
		builder.(*array.Int32Builder).Append(arr.(*array.Int32).Value(row))
	case arrow.FLOAT64:
		builder.(*array.Float64Builder).Append(arr.(*array.Float64).Value(row))
	case arrow.STRING:
		builder.(*array.StringBuilder).Append(arr.(*array.String).Value(row))
	case arrow.BOOL:
		builder.(*array.BooleanBuilder).Append(arr.(*array.Boolean).Value(row))
	// TODO: Add more types.
	default:
		panic(fmt.Errorf("unsupported type for value copying: %v", builder.Type().ID()))
	}
}
