package execution

import (
	"context"
	"crypto/rand"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Driver runs a single operator between a page source and a sink until the
// operator is finished. All protocol calls on the operator happen here, one
// at a time, which is what the operator contract requires.
type Driver struct {
	operator Operator
	logger   log.Logger
}

func NewDriver(operator Operator, logger log.Logger) *Driver {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Driver{
		operator: operator,
		logger:   log.With(logger, "driver", ulid.MustNew(ulid.Now(), rand.Reader).String()),
	}
}

// Run drives the operator loop: feed a page whenever the operator asks for
// one, call Finish at end of stream, and hand every produced page to the
// sink. The sink owns pages passed to it.
func (d *Driver) Run(ctx context.Context, source PageSource, sink func(Page) error) error {
	var pagesIn, rowsIn, pagesOut, rowsOut int64
	sourceDone := false
	for !d.operator.IsFinished() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !sourceDone && d.operator.NeedsInput() {
			page, err := source.Next(ctx)
			if err == ErrEndOfStream {
				sourceDone = true
				d.operator.Finish()
			} else if err != nil {
				return errors.Wrap(err, "couldn't get page from source")
			} else {
				pagesIn++
				rowsIn += int64(page.RowCount())
				if err := d.operator.AddInput(page); err != nil {
					return errors.Wrap(err, "couldn't add page to operator")
				}
			}
		}
		if page, ok := d.operator.GetOutput(); ok {
			pagesOut++
			rowsOut += int64(page.RowCount())
			level.Debug(d.logger).Log("msg", "page produced", "rows", page.RowCount())
			if err := sink(page); err != nil {
				return errors.Wrap(err, "couldn't send page to sink")
			}
		}
	}
	level.Info(d.logger).Log("msg", "driver finished", "pagesIn", pagesIn, "rowsIn", rowsIn, "pagesOut", pagesOut, "rowsOut", rowsOut)
	return nil
}

// RunPartitioned duplicates the operator factory across partitions and runs
// one driver per partition concurrently. Each partition gets its own operator
// instance, so no state is shared between them.
func RunPartitioned(ctx context.Context, factory OperatorFactory, sources []PageSource, sinks []func(Page) error, logger log.Logger) error {
	if len(sources) != len(sinks) {
		return errors.Errorf("partition sources and sinks don't match: %d sources, %d sinks", len(sources), len(sinks))
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range sources {
		i := i
		partitionFactory := factory.Duplicate()
		g.Go(func() error {
			operator, err := partitionFactory.CreateOperator()
			if err != nil {
				return errors.Wrapf(err, "couldn't create operator for partition %d", i)
			}
			if err := NewDriver(operator, log.With(logger, "partition", i)).Run(ctx, sources[i], sinks[i]); err != nil {
				return errors.Wrapf(err, "couldn't run driver for partition %d", i)
			}
			return nil
		})
	}
	return g.Wait()
}
