package output

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"

	"github.com/cube2222/arrowpipe/execution"
)

// TablePrinter renders pages as a text table. Pages passed to Write are
// owned by the printer and released after rendering their rows.
type TablePrinter struct {
	table *tablewriter.Table
}

func NewTablePrinter(w io.Writer, schema *arrow.Schema) *TablePrinter {
	table := tablewriter.NewWriter(w)
	table.SetColWidth(24)
	table.SetRowLine(false)

	header := make([]string, len(schema.Fields()))
	for i, field := range schema.Fields() {
		header[i] = field.Name
	}
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)

	return &TablePrinter{
		table: table,
	}
}

func (p *TablePrinter) Write(page execution.Page) error {
	defer page.Release()
	for row := 0; row < page.RowCount(); row++ {
		line := make([]string, page.ColumnCount())
		for col := range line {
			line[col] = formatValue(page.Column(col), row)
		}
		p.table.Append(line)
	}
	return nil
}

func (p *TablePrinter) Close() error {
	p.table.Render()
	return nil
}

func formatValue(arr arrow.Array, row int) string {
	if arr.IsNull(row) {
		return "<null>"
	}
	switch arr := arr.(type) {
	case *array.Int64:
		return strconv.FormatInt(arr.Value(row), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(arr.Value(row)), 10)
	case *array.Float64:
		return strconv.FormatFloat(arr.Value(row), 'f', -1, 64)
	case *array.String:
		return arr.Value(row)
	case *array.Boolean:
		return strconv.FormatBool(arr.Value(row))
	default:
		if stringer, ok := arr.(interface{ ValueStr(int) string }); ok {
			return stringer.ValueStr(row)
		}
		return "<unrenderable>"
	}
}
