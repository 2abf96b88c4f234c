package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Operand is one side of a comparison: a column reference when Field is
// set, a literal Value otherwise.
type Operand struct {
	Field string
	Value interface{}
}

func (o Operand) resolve(row Row) (interface{}, bool) {
	if o.Field == "" {
		return o.Value, true
	}
	return row.Get(o.Field)
}

// Filter represents a filtering condition. Without a right operand it
// tests whether the left value is truthy.
type Filter struct {
	Left     Operand
	Operator string
	Right    *Operand
}

// NewFilter creates a filter comparing a column to a literal value
func NewFilter(field, operator string, value interface{}) *Filter {
	return &Filter{
		Left:     Operand{Field: field},
		Operator: operator,
		Right:    &Operand{Value: value},
	}
}

// Match checks if a row matches the filter. A column missing from the row
// never matches.
func (f *Filter) Match(row Row) bool {
	left, ok := f.Left.resolve(row)
	if !ok {
		return false
	}
	if f.Right == nil {
		return truthy(left)
	}
	right, ok := f.Right.resolve(row)
	if !ok {
		return false
	}
	return f.matchValue(left, right)
}

func (f *Filter) matchValue(value, other interface{}) bool {
	// Handle collections - if ANY element matches, the filter matches
	if v := reflect.ValueOf(value); isCollection(v) {
		for i := 0; i < v.Len(); i++ {
			if f.matchValue(v.Index(i).Interface(), other) {
				return true
			}
		}
		return false
	}

	switch f.Operator {
	case "=", "==":
		return compareEqual(value, other)
	case "!=":
		return !compareEqual(value, other)
	case ">":
		return compareGreater(value, other)
	case ">=":
		return compareGreaterEqual(value, other)
	case "<":
		return compareLess(value, other)
	case "<=":
		return compareLessEqual(value, other)
	case "contains", "~=":
		return containsValue(value, other)
	default:
		return false
	}
}

func isCollection(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array:
		return true
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8
	}
	return false
}

func truthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := numeric(v); ok {
		return f != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	}
	return true
}

func compareEqual(a, b interface{}) bool {
	af, aok := numeric(a)
	bf, bok := numeric(b)
	if aok && bok {
		return af == bf
	}
	// Try direct comparison for common types
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return av == bv
		}
	case []byte:
		if bv, ok := b.(string); ok {
			return string(av) == bv
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return av == bv
		}
	}
	// Fallback to string comparison for other types
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareGreater(a, b interface{}) bool {
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		return af > bf
	}
	return false
}

func compareGreaterEqual(a, b interface{}) bool {
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		return af >= bf
	}
	return false
}

func compareLess(a, b interface{}) bool {
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		return af < bf
	}
	return false
}

func compareLessEqual(a, b interface{}) bool {
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		return af <= bf
	}
	return false
}

func containsValue(a, b interface{}) bool {
	// Handle string types directly for efficiency
	if aStr, ok := a.(string); ok {
		if bStr, ok := b.(string); ok {
			return strings.Contains(aStr, bStr)
		}
		// If b is not a string, convert it
		bStr := fmt.Sprintf("%v", b)
		return strings.Contains(aStr, bStr)
	}
	// Fallback to string conversion for other types
	aStr := fmt.Sprintf("%v", a)
	bStr := fmt.Sprintf("%v", b)
	return strings.Contains(aStr, bStr)
}

// numeric converts Go number kinds without parsing strings.
func numeric(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	if f, ok := numeric(v); ok {
		return f, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
