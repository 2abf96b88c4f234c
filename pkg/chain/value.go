package chain

import (
	"fmt"
	"reflect"
)

// Get returns a pointer to the current value of column i. The pointer is
// nil for an engine-owned column that has not been fetched yet. Get panics
// if T is not the type column i was declared with.
func Get[T any](r *Reader, i int) *T {
	b, ok := r.table.binding(i).(typedBinding[T])
	if !ok {
		panic(fmt.Sprintf("chain: column %d (%s) is not of type %s", i, r.table.names[i], reflect.TypeFor[T]()))
	}
	return b.ptr()
}

// Value returns the current value pointer of column i as any, for callers
// that do not know the column types statically.
func (r *Reader) Value(i int) any {
	return r.table.binding(i).value()
}

// Retain returns a deep copy of *p that stays valid after the cursor moves.
// Slices, maps, arrays, pointers, interfaces and exported struct fields are
// copied; values must be acyclic. A nil p yields the zero value.
func Retain[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	out, _ := deepCopy(reflect.ValueOf(p).Elem()).Interface().(T)
	return out
}

func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			c.Index(i).Set(deepCopy(v.Index(i)))
		}
		return c
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		c := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			c.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return c
	case reflect.Array:
		c := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			c.Index(i).Set(deepCopy(v.Index(i)))
		}
		return c
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		c := reflect.New(v.Type().Elem())
		c.Elem().Set(deepCopy(v.Elem()))
		return c
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		c := reflect.New(v.Type()).Elem()
		c.Set(deepCopy(v.Elem()))
		return c
	case reflect.Struct:
		c := reflect.New(v.Type()).Elem()
		c.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if c.Field(i).CanSet() {
				c.Field(i).Set(deepCopy(v.Field(i)))
			}
		}
		return c
	default:
		return v
	}
}

func deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
