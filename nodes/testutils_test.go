package nodes

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/cube2222/arrowpipe/execution"
)

func buildInt64Column(values []int64, nulls []bool) arrow.Array {
	builder := array.NewInt64Builder(memory.DefaultAllocator)
	for i, v := range values {
		if nulls != nil && nulls[i] {
			builder.AppendNull()
		} else {
			builder.Append(v)
		}
	}
	return builder.NewArray()
}

// buildListInt64Column builds a list<int64> column, one list per entry. A nil
// entry is a null cell, an empty non-nil entry is an empty list.
func buildListInt64Column(lists [][]int64) arrow.Array {
	builder := array.NewListBuilder(memory.DefaultAllocator, arrow.PrimitiveTypes.Int64)
	valueBuilder := builder.ValueBuilder().(*array.Int64Builder)
	for _, list := range lists {
		if list == nil {
			builder.AppendNull()
			continue
		}
		builder.Append(true)
		for _, v := range list {
			valueBuilder.Append(v)
		}
	}
	return builder.NewArray()
}

func buildMapColumn(maps []map[string]int64, order [][]string) arrow.Array {
	builder := array.NewMapBuilder(memory.DefaultAllocator, arrow.BinaryTypes.String, arrow.PrimitiveTypes.Int64, false)
	keyBuilder := builder.KeyBuilder().(*array.StringBuilder)
	itemBuilder := builder.ItemBuilder().(*array.Int64Builder)
	for i, m := range maps {
		if m == nil {
			builder.AppendNull()
			continue
		}
		builder.Append(true)
		for _, key := range order[i] {
			keyBuilder.Append(key)
			itemBuilder.Append(m[key])
		}
	}
	return builder.NewArray()
}

func makePage(schema *arrow.Schema, columns []arrow.Array, rows int) execution.Page {
	return execution.Page{Record: array.NewRecord(schema, columns, int64(rows))}
}

// drain calls GetOutput until the operator reports finished and returns all
// produced pages. Finish has to have been called already.
func drain(operator execution.Operator) []execution.Page {
	var pages []execution.Page
	for !operator.IsFinished() {
		if page, ok := operator.GetOutput(); ok {
			pages = append(pages, page)
		}
	}
	return pages
}
