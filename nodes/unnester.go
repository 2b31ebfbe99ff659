package nodes

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/pkg/errors"

	"github.com/cube2222/arrowpipe/execution"
	"github.com/cube2222/arrowpipe/helpers"
)

// An unnester produces the element rows of a single nested cell, one element
// at a time. setValue rederives the element cursor for each new source row;
// between rows no state is carried over. The cursor fields double as the
// resumption state when output production is suspended mid-row, so suspending
// is simply returning with them intact.
//
// The set of implementations is closed: arrays, maps, and arrays of rows.
type unnester interface {
	// setValue points the unnester at the cell of the given row. A null cell
	// produces zero elements.
	setValue(column arrow.Array, row int)
	hasNext() bool
	// appendNext writes the next element into channelCount() output channels
	// starting at offset and advances the cursor. Must only be called when
	// hasNext is true.
	appendNext(out *execution.PageBuilder, offset int)
	channelCount() int
}

// newUnnester picks the unnester shape for the column type. Arrays of rows
// are special-cased to flatten the row's fields into separate channels.
func newUnnester(dt arrow.DataType) (unnester, error) {
	switch t := dt.(type) {
	case *arrow.ListType:
		if structType, ok := t.Elem().(*arrow.StructType); ok {
			return &arrayOfRowsUnnester{fields: len(structType.Fields())}, nil
		}
		return &arrayUnnester{}, nil
	case *arrow.MapType:
		return &mapUnnester{}, nil
	default:
		return nil, errors.Errorf("cannot unnest type %s, only list and map columns can be unnested", dt)
	}
}

// arrayUnnester walks the elements of a list cell. One output channel.
type arrayUnnester struct {
	values arrow.Array
	pos    int
	end    int
}

func (u *arrayUnnester) setValue(column arrow.Array, row int) {
	list := column.(*array.List)
	u.pos, u.end = 0, 0
	if list.IsNull(row) {
		return
	}
	start, end := list.ValueOffsets(row)
	u.values = list.ListValues()
	u.pos, u.end = int(start), int(end)
}

func (u *arrayUnnester) hasNext() bool {
	return u.pos < u.end
}

func (u *arrayUnnester) appendNext(out *execution.PageBuilder, offset int) {
	helpers.Append(out.Field(offset), u.values, u.pos)
	u.pos++
}

func (u *arrayUnnester) channelCount() int {
	return 1
}

// mapUnnester walks the entries of a map cell in the order they're stored.
// Two output channels: key and value. Keys are never null.
type mapUnnester struct {
	keys  arrow.Array
	items arrow.Array
	pos   int
	end   int
}

func (u *mapUnnester) setValue(column arrow.Array, row int) {
	m := column.(*array.Map)
	u.pos, u.end = 0, 0
	if m.IsNull(row) {
		return
	}
	start, end := m.ValueOffsets(row)
	u.keys, u.items = m.Keys(), m.Items()
	u.pos, u.end = int(start), int(end)
}

func (u *mapUnnester) hasNext() bool {
	return u.pos < u.end
}

func (u *mapUnnester) appendNext(out *execution.PageBuilder, offset int) {
	helpers.Append(out.Field(offset), u.keys, u.pos)
	helpers.Append(out.Field(offset+1), u.items, u.pos)
	u.pos++
}

func (u *mapUnnester) channelCount() int {
	return 2
}

// arrayOfRowsUnnester walks the elements of a list-of-struct cell, flattening
// each struct into one output channel per field. A null struct element makes
// all of its field channels null.
type arrayOfRowsUnnester struct {
	fields int
	rows   *array.Struct
	pos    int
	end    int
}

func (u *arrayOfRowsUnnester) setValue(column arrow.Array, row int) {
	list := column.(*array.List)
	u.pos, u.end = 0, 0
	if list.IsNull(row) {
		return
	}
	start, end := list.ValueOffsets(row)
	u.rows = list.ListValues().(*array.Struct)
	u.pos, u.end = int(start), int(end)
}

func (u *arrayOfRowsUnnester) hasNext() bool {
	return u.pos < u.end
}

func (u *arrayOfRowsUnnester) appendNext(out *execution.PageBuilder, offset int) {
	if u.rows.IsNull(u.pos) {
		for i := 0; i < u.fields; i++ {
			out.Field(offset + i).AppendNull()
		}
	} else {
		for i := 0; i < u.fields; i++ {
			helpers.Append(out.Field(offset+i), u.rows.Field(i), u.pos)
		}
	}
	u.pos++
}

func (u *arrayOfRowsUnnester) channelCount() int {
	return u.fields
}
