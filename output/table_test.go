package output

import (
	"strings"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/arrowpipe/execution"
)

func TestTablePrinter(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "ok", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
	}, nil)

	idBuilder := array.NewInt64Builder(memory.DefaultAllocator)
	idBuilder.Append(1)
	idBuilder.Append(2)
	nameBuilder := array.NewStringBuilder(memory.DefaultAllocator)
	nameBuilder.Append("first")
	nameBuilder.AppendNull()
	scoreBuilder := array.NewFloat64Builder(memory.DefaultAllocator)
	scoreBuilder.Append(1.5)
	scoreBuilder.Append(2)
	okBuilder := array.NewBooleanBuilder(memory.DefaultAllocator)
	okBuilder.Append(true)
	okBuilder.Append(false)
	page := execution.Page{Record: array.NewRecord(schema, []arrow.Array{
		idBuilder.NewArray(),
		nameBuilder.NewArray(),
		scoreBuilder.NewArray(),
		okBuilder.NewArray(),
	}, 2)}

	var sb strings.Builder
	printer := NewTablePrinter(&sb, schema)
	require.NoError(t, printer.Write(page))
	require.NoError(t, printer.Close())

	rendered := sb.String()
	for _, want := range []string{"id", "name", "score", "ok", "first", "<null>", "1.5", "true", "false"} {
		assert.Contains(t, rendered, want)
	}
}

func TestFormatValueFallsBackToValueStr(t *testing.T) {
	builder := array.NewDurationBuilder(memory.DefaultAllocator, &arrow.DurationType{Unit: arrow.Second})
	builder.Append(1)
	builder.AppendNull()
	arr := builder.NewArray()

	// Types outside the fast-path switch go through the array's own string
	// rendering instead of printing the column's type.
	assert.NotContains(t, formatValue(arr, 0), "duration")
	assert.NotEqual(t, "<unrenderable>", formatValue(arr, 0))
	assert.Equal(t, "<null>", formatValue(arr, 1))
}
