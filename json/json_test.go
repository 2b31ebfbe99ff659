package json

import (
	"context"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cube2222/arrowpipe/execution"
)

const sampleLines = `{"id": 1, "name": "first", "tags": ["a", "b"], "attrs": {"x": 1, "y": 2}}
{"id": 2, "name": null, "tags": [], "attrs": null}
{"id": 3, "name": "third", "tags": null, "attrs": {"z": 3}}
`

func sampleSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: true},
		{Name: "attrs", Type: arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int64), Nullable: true},
	}, nil)
}

func TestSourceReadsNestedColumns(t *testing.T) {
	source, err := NewSource(memory.DefaultAllocator, strings.NewReader(sampleLines), sampleSchema(), 0)
	require.NoError(t, err)

	page, err := source.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, page.RowCount())

	ids := page.Column(0).(*array.Int64)
	assert.Equal(t, []int64{1, 2, 3}, ids.Int64Values())

	names := page.Column(1).(*array.String)
	assert.Equal(t, "first", names.Value(0))
	assert.True(t, names.IsNull(1))

	tags := page.Column(2).(*array.List)
	start, end := tags.ValueOffsets(0)
	require.Equal(t, int64(0), start)
	require.Equal(t, int64(2), end)
	elements := tags.ListValues().(*array.String)
	assert.Equal(t, "a", elements.Value(0))
	assert.Equal(t, "b", elements.Value(1))
	startEmpty, endEmpty := tags.ValueOffsets(1)
	assert.Equal(t, startEmpty, endEmpty)
	assert.True(t, tags.IsNull(2))

	attrs := page.Column(3).(*array.Map)
	start, end = attrs.ValueOffsets(0)
	require.Equal(t, int64(0), start)
	require.Equal(t, int64(2), end)
	keys := attrs.Keys().(*array.String)
	items := attrs.Items().(*array.Int64)
	assert.Equal(t, "x", keys.Value(0))
	assert.Equal(t, int64(1), items.Value(0))
	assert.Equal(t, "y", keys.Value(1))
	assert.Equal(t, int64(2), items.Value(1))
	assert.True(t, attrs.IsNull(1))
	page.Release()

	_, err = source.Next(context.Background())
	require.ErrorIs(t, err, execution.ErrEndOfStream)
}

func TestSourceBatchesByMaxRows(t *testing.T) {
	source, err := NewSource(memory.DefaultAllocator, strings.NewReader(sampleLines), sampleSchema(), 2)
	require.NoError(t, err)

	page, err := source.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, page.RowCount())
	page.Release()

	page, err = source.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, page.RowCount())
	page.Release()

	_, err = source.Next(context.Background())
	require.ErrorIs(t, err, execution.ErrEndOfStream)
}

func TestInferSchema(t *testing.T) {
	schema, err := InferSchema([]byte(`{"id": 1, "score": 1.5, "name": "a", "ok": true, "tags": ["x"], "attrs": {"k": 2}}`))
	require.NoError(t, err)

	require.Equal(t, 6, len(schema.Fields()))
	assert.Equal(t, arrow.PrimitiveTypes.Int64, schema.Field(0).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Float64, schema.Field(1).Type)
	assert.Equal(t, arrow.BinaryTypes.String, schema.Field(2).Type)
	assert.Equal(t, arrow.FixedWidthTypes.Boolean, schema.Field(3).Type)
	assert.True(t, arrow.TypeEqual(arrow.ListOf(arrow.BinaryTypes.String), schema.Field(4).Type))
	assert.True(t, arrow.TypeEqual(arrow.MapOf(arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int64), schema.Field(5).Type))

	_, err = InferSchema([]byte(`not json`))
	require.Error(t, err)

	_, err = InferSchema([]byte(`{}`))
	require.Error(t, err)
}
