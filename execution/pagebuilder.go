package execution

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
)

// PageBuilder accumulates output rows across calls until it's built into a
// page. It is row-count bounded; operators observe IsFull and IsEmpty and
// flush when told to. Appending to the channel builders of a full PageBuilder
// is a bug in the appending operator.
//
// A row is produced by appending exactly one value (or null) to every channel
// builder and calling DeclareRow.
type PageBuilder struct {
	recordBuilder *array.RecordBuilder
	schema        *arrow.Schema
	rows          int
	maxRows       int
}

func NewPageBuilder(allocator memory.Allocator, schema *arrow.Schema) *PageBuilder {
	return NewPageBuilderWithBudget(allocator, schema, IdealBatchSize)
}

func NewPageBuilderWithBudget(allocator memory.Allocator, schema *arrow.Schema, maxRows int) *PageBuilder {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	return &PageBuilder{
		recordBuilder: array.NewRecordBuilder(allocator, schema),
		schema:        schema,
		maxRows:       maxRows,
	}
}

func (b *PageBuilder) Schema() *arrow.Schema {
	return b.schema
}

// Field returns the builder for the given output channel.
func (b *PageBuilder) Field(i int) array.Builder {
	return b.recordBuilder.Field(i)
}

func (b *PageBuilder) DeclareRow() {
	b.rows++
}

func (b *PageBuilder) RowCount() int {
	return b.rows
}

func (b *PageBuilder) IsFull() bool {
	return b.rows >= b.maxRows
}

func (b *PageBuilder) IsEmpty() bool {
	return b.rows == 0
}

// Build emits the accumulated rows as a page and resets the builder to empty.
func (b *PageBuilder) Build() Page {
	record := b.recordBuilder.NewRecord()
	b.rows = 0
	return Page{Record: record}
}

func (b *PageBuilder) Release() {
	b.recordBuilder.Release()
}
