package json

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/valyala/fastjson"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/cube2222/arrowpipe/execution"
)

// Source reads newline-delimited JSON objects into pages of the given
// schema. Supported column types: int64, float64, string, bool, lists of
// those, and maps from string to those. Missing object fields and JSON nulls
// become null cells.
type Source struct {
	schema        *arrow.Schema
	scanner       *bufio.Scanner
	recordBuilder *array.RecordBuilder
	readRecord    ValueReaderFunc
	maxRows       int
	parser        fastjson.Parser
}

type ValueReaderFunc func(value *fastjson.Value) error

func NewSource(allocator memory.Allocator, r io.Reader, schema *arrow.Schema, maxRows int) (*Source, error) {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	if maxRows <= 0 {
		maxRows = execution.IdealBatchSize
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1024*1024*8)

	recordBuilder := array.NewRecordBuilder(allocator, schema)

	readRecord, err := recordReader(schema, recordBuilder)
	if err != nil {
		return nil, fmt.Errorf("couldn't construct record reader function: %w", err)
	}

	return &Source{
		schema:        schema,
		scanner:       scanner,
		recordBuilder: recordBuilder,
		readRecord:    readRecord,
		maxRows:       maxRows,
	}, nil
}

func (s *Source) Schema() *arrow.Schema {
	return s.schema
}

func (s *Source) Next(ctx context.Context) (execution.Page, error) {
	count := 0
	for count < s.maxRows && s.scanner.Scan() {
		value, err := s.parser.ParseBytes(s.scanner.Bytes())
		if err != nil {
			return execution.Page{}, fmt.Errorf("couldn't parse line: %w", err)
		}
		if err := s.readRecord(value); err != nil {
			return execution.Page{}, fmt.Errorf("couldn't read record: %w", err)
		}
		count++
	}
	if err := s.scanner.Err(); err != nil {
		return execution.Page{}, fmt.Errorf("couldn't read line: %w", err)
	}
	if count == 0 {
		return execution.Page{}, execution.ErrEndOfStream
	}
	return execution.Page{Record: s.recordBuilder.NewRecord()}, nil
}

func recordReader(schema *arrow.Schema, recordBuilder *array.RecordBuilder) (ValueReaderFunc, error) {
	fields := schema.Fields()
	readers := make([]ValueReaderFunc, len(fields))
	for i, field := range fields {
		var err error
		readers[i], err = valueReader(field.Type, recordBuilder.Field(i))
		if err != nil {
			return nil, fmt.Errorf("couldn't create value reader for field %v: %w", field.Name, err)
		}
	}

	return func(value *fastjson.Value) error {
		obj := value.GetObject()
		for i, field := range fields {
			if err := readers[i](obj.Get(field.Name)); err != nil {
				return fmt.Errorf("couldn't read field %v: %w", field.Name, err)
			}
		}
		return nil
	}, nil
}

func valueReader(dt arrow.DataType, builder array.Builder) (ValueReaderFunc, error) {
	switch t := dt.(type) {
	case *arrow.ListType:
		return listReader(t, builder.(*array.ListBuilder))
	case *arrow.MapType:
		return mapReader(t, builder.(*array.MapBuilder))
	}
	switch dt.ID() {
	case arrow.INT64:
		return nullableReader(intReader, builder.(*array.Int64Builder)), nil
	case arrow.FLOAT64:
		return nullableReader(floatReader, builder.(*array.Float64Builder)), nil
	case arrow.STRING:
		return nullableReader(stringReader, builder.(*array.StringBuilder)), nil
	case arrow.BOOL:
		return nullableReader(boolReader, builder.(*array.BooleanBuilder)), nil
	default:
		return nil, fmt.Errorf("unsupported type: %v", dt)
	}
}

func listReader(t *arrow.ListType, listBuilder *array.ListBuilder) (ValueReaderFunc, error) {
	elementReader, err := valueReader(t.Elem(), listBuilder.ValueBuilder())
	if err != nil {
		return nil, fmt.Errorf("couldn't create list element reader: %w", err)
	}
	return func(value *fastjson.Value) error {
		if value == nil || value.Type() == fastjson.TypeNull {
			listBuilder.AppendNull()
			return nil
		}
		elements, err := value.Array()
		if err != nil {
			return fmt.Errorf("couldn't read array: %w", err)
		}
		listBuilder.Append(true)
		for _, element := range elements {
			if err := elementReader(element); err != nil {
				return fmt.Errorf("couldn't read array element: %w", err)
			}
		}
		return nil
	}, nil
}

func mapReader(t *arrow.MapType, mapBuilder *array.MapBuilder) (ValueReaderFunc, error) {
	if t.KeyType().ID() != arrow.STRING {
		return nil, fmt.Errorf("unsupported map key type: %v, JSON object keys are strings", t.KeyType())
	}
	keyBuilder := mapBuilder.KeyBuilder().(*array.StringBuilder)
	itemReader, err := valueReader(t.ItemType(), mapBuilder.ItemBuilder())
	if err != nil {
		return nil, fmt.Errorf("couldn't create map value reader: %w", err)
	}
	return func(value *fastjson.Value) error {
		if value == nil || value.Type() == fastjson.TypeNull {
			mapBuilder.AppendNull()
			return nil
		}
		obj, err := value.Object()
		if err != nil {
			return fmt.Errorf("couldn't read object: %w", err)
		}
		mapBuilder.Append(true)
		var visitErr error
		obj.Visit(func(key []byte, v *fastjson.Value) {
			keyBuilder.Append(string(key))
			if err := itemReader(v); err != nil && visitErr == nil {
				visitErr = fmt.Errorf("couldn't read object value for key %q: %w", string(key), err)
			}
		})
		return visitErr
	}, nil
}

func intReader(builder array.Builder) ValueReaderFunc {
	intBuilder := builder.(*array.Int64Builder)
	return func(value *fastjson.Value) error {
		v, err := value.Int64()
		if err != nil {
			return fmt.Errorf("couldn't read int: %w", err)
		}
		intBuilder.Append(v)
		return nil
	}
}

func floatReader(builder array.Builder) ValueReaderFunc {
	floatBuilder := builder.(*array.Float64Builder)
	return func(value *fastjson.Value) error {
		v, err := value.Float64()
		if err != nil {
			return fmt.Errorf("couldn't read float: %w", err)
		}
		floatBuilder.Append(v)
		return nil
	}
}

func stringReader(builder array.Builder) ValueReaderFunc {
	stringBuilder := builder.(*array.StringBuilder)
	return func(value *fastjson.Value) error {
		v, err := value.StringBytes()
		if err != nil {
			return fmt.Errorf("couldn't read string: %w", err)
		}
		stringBuilder.BinaryBuilder.Append(v)
		return nil
	}
}

func boolReader(builder array.Builder) ValueReaderFunc {
	boolBuilder := builder.(*array.BooleanBuilder)
	return func(value *fastjson.Value) error {
		v, err := value.Bool()
		if err != nil {
			return fmt.Errorf("couldn't read bool: %w", err)
		}
		boolBuilder.Append(v)
		return nil
	}
}

func nullableReader(readerFuncMaker func(builder array.Builder) ValueReaderFunc, builder array.Builder) ValueReaderFunc {
	reader := readerFuncMaker(builder)
	return func(value *fastjson.Value) error {
		if value == nil || value.Type() == fastjson.TypeNull {
			builder.AppendNull()
			return nil
		}
		return reader(value)
	}
}
