package json

import (
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/apache/arrow/go/v13/arrow"
)

// InferSchema derives a schema from a single sample line. Numbers become
// int64 when they parse as integers and float64 otherwise, arrays take the
// type of their first element, and objects become maps from string to the
// type of their first value. All fields are nullable.
func InferSchema(sample []byte) (*arrow.Schema, error) {
	var p fastjson.Parser
	value, err := p.ParseBytes(sample)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse sample line: %w", err)
	}
	obj, err := value.Object()
	if err != nil {
		return nil, fmt.Errorf("couldn't read sample object: %w", err)
	}

	var fields []arrow.Field
	var visitErr error
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if visitErr != nil {
			return
		}
		dt, err := inferType(v)
		if err != nil {
			visitErr = fmt.Errorf("couldn't infer type of field %q: %w", string(key), err)
			return
		}
		fields = append(fields, arrow.Field{Name: string(key), Type: dt, Nullable: true})
	})
	if visitErr != nil {
		return nil, visitErr
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("sample object has no fields")
	}

	return arrow.NewSchema(fields, nil), nil
}

func inferType(value *fastjson.Value) (arrow.DataType, error) {
	switch value.Type() {
	case fastjson.TypeNumber:
		if _, err := value.Int64(); err == nil {
			return arrow.PrimitiveTypes.Int64, nil
		}
		return arrow.PrimitiveTypes.Float64, nil
	case fastjson.TypeString:
		return arrow.BinaryTypes.String, nil
	case fastjson.TypeTrue, fastjson.TypeFalse:
		return arrow.FixedWidthTypes.Boolean, nil
	case fastjson.TypeArray:
		elements, err := value.Array()
		if err != nil {
			return nil, err
		}
		if len(elements) == 0 {
			// No element to look at, the common case for JSON is strings.
			return arrow.ListOf(arrow.BinaryTypes.String), nil
		}
		elementType, err := inferType(elements[0])
		if err != nil {
			return nil, err
		}
		return arrow.ListOf(elementType), nil
	case fastjson.TypeObject:
		obj, err := value.Object()
		if err != nil {
			return nil, err
		}
		var itemType arrow.DataType
		var visitErr error
		obj.Visit(func(key []byte, v *fastjson.Value) {
			if itemType != nil || visitErr != nil {
				return
			}
			itemType, visitErr = inferType(v)
		})
		if visitErr != nil {
			return nil, visitErr
		}
		if itemType == nil {
			itemType = arrow.BinaryTypes.String
		}
		return arrow.MapOf(arrow.BinaryTypes.String, itemType), nil
	default:
		return nil, fmt.Errorf("can't infer type from %v", value.Type())
	}
}
