package execution

import (
	"context"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/pkg/errors"
)

// All operators will try to create pages of approximately this size. Different sizes are allowed.
const IdealBatchSize = 16 * 1024

// ErrEndOfStream is returned by PageSource.Next once no more pages will arrive.
var ErrEndOfStream = errors.New("end of stream")

// Page is a fixed-row-count set of parallel columns processed as a unit
// through the pipeline. Pages are immutable; ownership moves with the page,
// and whoever holds it last releases it.
type Page struct {
	arrow.Record
}

func (p Page) ColumnCount() int {
	return int(p.Record.NumCols())
}

func (p Page) RowCount() int {
	return int(p.Record.NumRows())
}

// PageSource feeds pages into a driver. Next returns ErrEndOfStream once the
// source is drained; the caller owns every returned page.
type PageSource interface {
	Next(ctx context.Context) (Page, error)
}
