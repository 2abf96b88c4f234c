package chain

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/bisegni/jchain/pkg/storage"
)

// Ownership tells whether the reader or the engine owns a column's memory.
type Ownership = storage.Ownership

const (
	OwnedByReader = storage.OwnedByReader
	OwnedByEngine = storage.OwnedByEngine
)

// Classify returns the ownership mode for a column of type t. Fixed-layout
// types (booleans, numbers and fixed-size arrays of them) are owned by the
// reader; everything else (strings, slices, maps, pointers, interfaces,
// structs) is owned by the engine.
func Classify(t reflect.Type) Ownership {
	if fixedLayout(t) {
		return OwnedByReader
	}
	return OwnedByEngine
}

func fixedLayout(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return fixedLayout(t.Elem())
	default:
		return false
	}
}

// Decl declares one column: a value type and the name it is bound to.
type Decl interface {
	Name() string
	Type() reflect.Type
	Ownership() Ownership
	bind(s storage.Stream, tracker BufferTracker) (binding, error)
}

// Column declares a column named name holding values of type T.
func Column[T any](name string) Decl {
	return columnDecl[T]{name: name}
}

type columnDecl[T any] struct {
	name string
}

func (d columnDecl[T]) Name() string {
	return d.name
}

func (d columnDecl[T]) Type() reflect.Type {
	return reflect.TypeFor[T]()
}

func (d columnDecl[T]) Ownership() Ownership {
	return Classify(d.Type())
}

// bind resolves the column once and hands the engine its address.
func (d columnDecl[T]) bind(s storage.Stream, tracker BufferTracker) (binding, error) {
	h, err := s.ResolveColumn(d.name)
	if err == nil && nilColumn(h) {
		err = errors.Wrap(storage.ErrColumnNotFound, "engine returned a nil column")
	}
	if err != nil {
		return nil, &ResolutionError{Stream: s.Name(), Column: d.name, Err: err}
	}

	if d.Ownership() == OwnedByReader {
		b := &ownedBuffer[T]{column: h, buf: new(T)}
		tracker.Allocated(d.name)
		if err := h.Bind(b.buf, OwnedByReader); err != nil {
			b.release(tracker)
			return nil, &ResolutionError{Stream: s.Name(), Column: d.name, Err: err}
		}
		return b, nil
	}

	b := &borrowedPointer[T]{column: h}
	if err := h.Bind(&b.slot, OwnedByEngine); err != nil {
		return nil, &ResolutionError{Stream: s.Name(), Column: d.name, Err: err}
	}
	return b, nil
}

// nilColumn also catches a nil pointer wrapped in a non-nil interface.
func nilColumn(h storage.Column) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

type binding interface {
	handle() storage.Column
	ownership() Ownership
	// value returns the current value pointer as any.
	value() any
	// clear resets the value to its state before any fetch.
	clear()
}

type typedBinding[T any] interface {
	binding
	ptr() *T
}

// releaser is implemented only by bindings whose memory the reader owns.
type releaser interface {
	release(tracker BufferTracker)
}

// ownedBuffer is a reader-allocated value the engine decodes into.
type ownedBuffer[T any] struct {
	column storage.Column
	buf    *T
}

func (b *ownedBuffer[T]) handle() storage.Column { return b.column }
func (b *ownedBuffer[T]) ownership() Ownership   { return OwnedByReader }
func (b *ownedBuffer[T]) value() any             { return b.buf }
func (b *ownedBuffer[T]) ptr() *T                { return b.buf }

func (b *ownedBuffer[T]) clear() {
	if b.buf != nil {
		var zero T
		*b.buf = zero
	}
}

func (b *ownedBuffer[T]) release(tracker BufferTracker) {
	if b.buf == nil {
		return
	}
	b.buf = nil
	tracker.Released(b.column.Name())
}

// borrowedPointer is a slot the engine points at memory it owns.
type borrowedPointer[T any] struct {
	column storage.Column
	slot   *T
}

func (b *borrowedPointer[T]) handle() storage.Column { return b.column }
func (b *borrowedPointer[T]) ownership() Ownership   { return OwnedByEngine }
func (b *borrowedPointer[T]) value() any             { return b.slot }
func (b *borrowedPointer[T]) ptr() *T                { return b.slot }

// clear only forgets the engine's value; the engine fills the slot again on
// the next fetch.
func (b *borrowedPointer[T]) clear() { b.slot = nil }
