package nodes

import (
	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/pkg/errors"

	"github.com/cube2222/arrowpipe/execution"
	"github.com/cube2222/arrowpipe/helpers"
)

// UnnestOperatorFactory holds the configuration for unnest operators: which
// input channels to explode, which to copy onto every produced row, and
// whether to append a 1-based ordinality column. Channel indices pair up with
// equal-length field lists describing the input columns; the fields carry the
// names and types used to derive the output schema.
type UnnestOperatorFactory struct {
	allocator         memory.Allocator
	replicateChannels []int
	replicateFields   []arrow.Field
	unnestChannels    []int
	unnestFields      []arrow.Field
	withOrdinality    bool
	outputSchema      *arrow.Schema
	maxOutputRows     int
	closed            bool
}

func NewUnnestOperatorFactory(allocator memory.Allocator, replicateChannels []int, replicateFields []arrow.Field, unnestChannels []int, unnestFields []arrow.Field, withOrdinality bool) (*UnnestOperatorFactory, error) {
	if len(replicateChannels) != len(replicateFields) {
		return nil, errors.Errorf("replicate channels and fields don't match: %d channels, %d fields", len(replicateChannels), len(replicateFields))
	}
	if len(unnestChannels) != len(unnestFields) {
		return nil, errors.Errorf("unnest channels and fields don't match: %d channels, %d fields", len(unnestChannels), len(unnestFields))
	}
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}

	outputFields := make([]arrow.Field, 0, len(replicateFields)+len(unnestFields)+1)
	for _, field := range replicateFields {
		if !helpers.CanAppend(field.Type) {
			return nil, errors.Errorf("cannot replicate column %q of type %s", field.Name, field.Type)
		}
	}
	outputFields = append(outputFields, replicateFields...)
	for _, field := range unnestFields {
		unnested, err := unnestedFields(field)
		if err != nil {
			return nil, err
		}
		for _, unnestedField := range unnested {
			if !helpers.CanAppend(unnestedField.Type) {
				return nil, errors.Errorf("cannot unnest column %q, elements of type %s are not supported", field.Name, unnestedField.Type)
			}
		}
		outputFields = append(outputFields, unnested...)
	}
	if withOrdinality {
		outputFields = append(outputFields, arrow.Field{Name: "ordinality", Type: arrow.PrimitiveTypes.Int64})
	}

	return &UnnestOperatorFactory{
		allocator:         allocator,
		replicateChannels: replicateChannels,
		replicateFields:   replicateFields,
		unnestChannels:    unnestChannels,
		unnestFields:      unnestFields,
		withOrdinality:    withOrdinality,
		outputSchema:      arrow.NewSchema(outputFields, nil),
		maxOutputRows:     execution.IdealBatchSize,
	}, nil
}

// unnestedFields lists the output fields a single unnested column expands to:
// the element field for arrays, key and value fields for maps, and one field
// per struct field for arrays of rows. All of them are nullable, since
// columns unnested together may have differing element counts and the shorter
// ones get padded with nulls.
func unnestedFields(field arrow.Field) ([]arrow.Field, error) {
	switch t := field.Type.(type) {
	case *arrow.ListType:
		if structType, ok := t.Elem().(*arrow.StructType); ok {
			fields := make([]arrow.Field, len(structType.Fields()))
			for i, structField := range structType.Fields() {
				fields[i] = arrow.Field{Name: structField.Name, Type: structField.Type, Nullable: true}
			}
			return fields, nil
		}
		return []arrow.Field{{Name: field.Name, Type: t.Elem(), Nullable: true}}, nil
	case *arrow.MapType:
		return []arrow.Field{
			{Name: field.Name + ".key", Type: t.KeyType(), Nullable: true},
			{Name: field.Name + ".value", Type: t.ItemType(), Nullable: true},
		}, nil
	default:
		return nil, errors.Errorf("cannot unnest type %s, only list and map columns can be unnested", field.Type)
	}
}

// WithMaxOutputRows overrides the output page row budget.
func (f *UnnestOperatorFactory) WithMaxOutputRows(maxOutputRows int) *UnnestOperatorFactory {
	f.maxOutputRows = maxOutputRows
	return f
}

// OutputSchema is the schema of the pages the created operators produce:
// replicated fields, then the unnested element fields in declaration order,
// then the optional ordinality field.
func (f *UnnestOperatorFactory) OutputSchema() *arrow.Schema {
	return f.outputSchema
}

func (f *UnnestOperatorFactory) CreateOperator() (execution.Operator, error) {
	if f.closed {
		return nil, errors.New("unnest operator factory is already closed")
	}
	unnesters := make([]unnester, len(f.unnestFields))
	for i, field := range f.unnestFields {
		u, err := newUnnester(field.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "couldn't create unnester for column %q", field.Name)
		}
		unnesters[i] = u
	}
	return &UnnestOperator{
		replicateChannels: f.replicateChannels,
		unnestChannels:    f.unnestChannels,
		withOrdinality:    f.withOrdinality,
		unnesters:         unnesters,
		pageBuilder:       execution.NewPageBuilderWithBudget(f.allocator, f.outputSchema, f.maxOutputRows),
	}, nil
}

func (f *UnnestOperatorFactory) Duplicate() execution.OperatorFactory {
	duplicate := *f
	duplicate.closed = false
	return &duplicate
}

func (f *UnnestOperatorFactory) Close() {
	f.closed = true
}

// UnnestOperator expands each element of the configured array and map columns
// into its own output row, copying the replicated columns onto every produced
// row. It holds at most one input page at a time and suspends output
// production whenever the output buffer fills, resuming at the same source
// row (and element) on the next GetOutput call.
type UnnestOperator struct {
	replicateChannels []int
	unnestChannels    []int
	withOrdinality    bool
	unnesters         []unnester
	pageBuilder       *execution.PageBuilder

	finishing       bool
	currentPage     execution.Page
	currentPosition int
	ordinalityCount int64
}

func (o *UnnestOperator) Finish() {
	o.finishing = true
}

func (o *UnnestOperator) IsFinished() bool {
	return o.finishing && o.pageBuilder.IsEmpty() && o.currentPage.Record == nil
}

func (o *UnnestOperator) NeedsInput() bool {
	return !o.finishing && !o.pageBuilder.IsFull() && o.currentPage.Record == nil
}

func (o *UnnestOperator) AddInput(page execution.Page) error {
	if o.finishing {
		return errors.New("can't add input, operator is already finishing")
	}
	if o.currentPage.Record != nil {
		return errors.New("can't add input, a page is already being unnested")
	}
	if o.pageBuilder.IsFull() {
		return errors.New("can't add input, output page buffer is full")
	}
	if page.Record == nil {
		return errors.New("can't add input, page is nil")
	}
	if page.RowCount() == 0 {
		page.Release()
		return nil
	}

	o.currentPage = page
	o.currentPosition = 0
	o.fillUnnesters()
	return nil
}

// fillUnnesters points every unnester at the cell of the current source row
// and resets the ordinality counter. It runs exactly once per source
// position.
func (o *UnnestOperator) fillUnnesters() {
	for i, channel := range o.unnestChannels {
		o.unnesters[i].setValue(o.currentPage.Column(channel), o.currentPosition)
	}
	o.ordinalityCount = 0
}

func (o *UnnestOperator) anyUnnesterHasData() bool {
	for _, u := range o.unnesters {
		if u.hasNext() {
			return true
		}
	}
	return false
}

func (o *UnnestOperator) GetOutput() (execution.Page, bool) {
	for !o.pageBuilder.IsFull() && o.currentPage.Record != nil {
		// Advance until we find a row with data to unnest. Rows where all
		// unnested cells are null or empty produce nothing.
		for !o.anyUnnesterHasData() {
			o.currentPosition++
			if o.currentPosition == o.currentPage.RowCount() {
				o.currentPage.Release()
				o.currentPage = execution.Page{}
				o.currentPosition = 0
				break
			}
			o.fillUnnesters()
		}
		for !o.pageBuilder.IsFull() && o.anyUnnesterHasData() {
			// Copy all the channels marked for replication.
			for outputChannel, channel := range o.replicateChannels {
				helpers.Append(o.pageBuilder.Field(outputChannel), o.currentPage.Column(channel), o.currentPosition)
			}
			offset := len(o.replicateChannels)

			o.pageBuilder.DeclareRow()
			for _, u := range o.unnesters {
				if u.hasNext() {
					u.appendNext(o.pageBuilder, offset)
				} else {
					// This column has fewer elements than the longest one in
					// this row, pad its channels with nulls.
					for i := 0; i < u.channelCount(); i++ {
						o.pageBuilder.Field(offset + i).AppendNull()
					}
				}
				offset += u.channelCount()
			}

			if o.withOrdinality {
				o.ordinalityCount++
				o.pageBuilder.Field(offset).(*array.Int64Builder).Append(o.ordinalityCount)
			}
		}
	}

	if (!o.finishing && !o.pageBuilder.IsFull()) || o.pageBuilder.IsEmpty() {
		return execution.Page{}, false
	}

	return o.pageBuilder.Build(), true
}
