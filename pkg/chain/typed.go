package chain

import (
	"iter"

	"github.com/bisegni/jchain/pkg/storage"
)

// Tuple1 holds pointers to the current values of a one-column reader.
type Tuple1[A any] struct {
	V0 *A
}

// Values returns copies of the current values. Containers are shared with
// the engine; use Retain to copy them too.
func (t Tuple1[A]) Values() A {
	return deref(t.V0)
}

// Retain returns a tuple whose values are deep copies.
func (t Tuple1[A]) Retain() Tuple1[A] {
	a := Retain(t.V0)
	return Tuple1[A]{&a}
}

// Tuple2 holds pointers to the current values of a two-column reader.
type Tuple2[A, B any] struct {
	V0 *A
	V1 *B
}

func (t Tuple2[A, B]) Values() (A, B) {
	return deref(t.V0), deref(t.V1)
}

func (t Tuple2[A, B]) Retain() Tuple2[A, B] {
	a, b := Retain(t.V0), Retain(t.V1)
	return Tuple2[A, B]{&a, &b}
}

// Tuple3 holds pointers to the current values of a three-column reader.
type Tuple3[A, B, C any] struct {
	V0 *A
	V1 *B
	V2 *C
}

func (t Tuple3[A, B, C]) Values() (A, B, C) {
	return deref(t.V0), deref(t.V1), deref(t.V2)
}

func (t Tuple3[A, B, C]) Retain() Tuple3[A, B, C] {
	a, b, c := Retain(t.V0), Retain(t.V1), Retain(t.V2)
	return Tuple3[A, B, C]{&a, &b, &c}
}

// Tuple4 holds pointers to the current values of a four-column reader.
type Tuple4[A, B, C, D any] struct {
	V0 *A
	V1 *B
	V2 *C
	V3 *D
}

func (t Tuple4[A, B, C, D]) Values() (A, B, C, D) {
	return deref(t.V0), deref(t.V1), deref(t.V2), deref(t.V3)
}

func (t Tuple4[A, B, C, D]) Retain() Tuple4[A, B, C, D] {
	a, b, c, d := Retain(t.V0), Retain(t.V1), Retain(t.V2), Retain(t.V3)
	return Tuple4[A, B, C, D]{&a, &b, &c, &d}
}

// Reader1 reads one typed column.
type Reader1[A any] struct {
	*Reader
}

// Open1 opens a Reader1 binding column name to type A.
func Open1[A any](engine storage.Engine, files []string, stream string, names [1]string, opts ...Option) (*Reader1[A], error) {
	r, err := NewReader(engine, files, stream, []Decl{Column[A](names[0])}, opts...)
	if err != nil {
		return nil, err
	}
	return &Reader1[A]{r}, nil
}

// Current returns the current row without copying.
func (r *Reader1[A]) Current() Tuple1[A] {
	return Tuple1[A]{Get[A](r.Reader, 0)}
}

// At positions the cursor at row and returns it.
func (r *Reader1[A]) At(row int64) (Tuple1[A], error) {
	if err := r.Position(row); err != nil {
		return Tuple1[A]{}, err
	}
	return r.Current(), nil
}

// Deref positions the cursor at the iterator's row and returns it. It
// panics with the *PositionError if the row cannot be loaded.
func (r *Reader1[A]) Deref(it Iterator) Tuple1[A] {
	it.mustPosition()
	return r.Current()
}

// All yields every row in order. See Reader.Rows.
func (r *Reader1[A]) All() iter.Seq2[int64, Tuple1[A]] {
	return func(yield func(int64, Tuple1[A]) bool) {
		for row := range r.Rows() {
			if !yield(row, r.Current()) {
				return
			}
		}
	}
}

// Reader2 reads two typed columns.
type Reader2[A, B any] struct {
	*Reader
}

// Open2 opens a Reader2 binding names to A and B in order.
func Open2[A, B any](engine storage.Engine, files []string, stream string, names [2]string, opts ...Option) (*Reader2[A, B], error) {
	r, err := NewReader(engine, files, stream, []Decl{
		Column[A](names[0]),
		Column[B](names[1]),
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Reader2[A, B]{r}, nil
}

func (r *Reader2[A, B]) Current() Tuple2[A, B] {
	return Tuple2[A, B]{
		Get[A](r.Reader, 0),
		Get[B](r.Reader, 1),
	}
}

func (r *Reader2[A, B]) At(row int64) (Tuple2[A, B], error) {
	if err := r.Position(row); err != nil {
		return Tuple2[A, B]{}, err
	}
	return r.Current(), nil
}

func (r *Reader2[A, B]) Deref(it Iterator) Tuple2[A, B] {
	it.mustPosition()
	return r.Current()
}

func (r *Reader2[A, B]) All() iter.Seq2[int64, Tuple2[A, B]] {
	return func(yield func(int64, Tuple2[A, B]) bool) {
		for row := range r.Rows() {
			if !yield(row, r.Current()) {
				return
			}
		}
	}
}

// Reader3 reads three typed columns.
type Reader3[A, B, C any] struct {
	*Reader
}

// Open3 opens a Reader3 binding names to A, B and C in order.
func Open3[A, B, C any](engine storage.Engine, files []string, stream string, names [3]string, opts ...Option) (*Reader3[A, B, C], error) {
	r, err := NewReader(engine, files, stream, []Decl{
		Column[A](names[0]),
		Column[B](names[1]),
		Column[C](names[2]),
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Reader3[A, B, C]{r}, nil
}

func (r *Reader3[A, B, C]) Current() Tuple3[A, B, C] {
	return Tuple3[A, B, C]{
		Get[A](r.Reader, 0),
		Get[B](r.Reader, 1),
		Get[C](r.Reader, 2),
	}
}

func (r *Reader3[A, B, C]) At(row int64) (Tuple3[A, B, C], error) {
	if err := r.Position(row); err != nil {
		return Tuple3[A, B, C]{}, err
	}
	return r.Current(), nil
}

func (r *Reader3[A, B, C]) Deref(it Iterator) Tuple3[A, B, C] {
	it.mustPosition()
	return r.Current()
}

func (r *Reader3[A, B, C]) All() iter.Seq2[int64, Tuple3[A, B, C]] {
	return func(yield func(int64, Tuple3[A, B, C]) bool) {
		for row := range r.Rows() {
			if !yield(row, r.Current()) {
				return
			}
		}
	}
}

// Reader4 reads four typed columns. Wider rows use Reader with Get.
type Reader4[A, B, C, D any] struct {
	*Reader
}

// Open4 opens a Reader4 binding names to A, B, C and D in order.
func Open4[A, B, C, D any](engine storage.Engine, files []string, stream string, names [4]string, opts ...Option) (*Reader4[A, B, C, D], error) {
	r, err := NewReader(engine, files, stream, []Decl{
		Column[A](names[0]),
		Column[B](names[1]),
		Column[C](names[2]),
		Column[D](names[3]),
	}, opts...)
	if err != nil {
		return nil, err
	}
	return &Reader4[A, B, C, D]{r}, nil
}

func (r *Reader4[A, B, C, D]) Current() Tuple4[A, B, C, D] {
	return Tuple4[A, B, C, D]{
		Get[A](r.Reader, 0),
		Get[B](r.Reader, 1),
		Get[C](r.Reader, 2),
		Get[D](r.Reader, 3),
	}
}

func (r *Reader4[A, B, C, D]) At(row int64) (Tuple4[A, B, C, D], error) {
	if err := r.Position(row); err != nil {
		return Tuple4[A, B, C, D]{}, err
	}
	return r.Current(), nil
}

func (r *Reader4[A, B, C, D]) Deref(it Iterator) Tuple4[A, B, C, D] {
	it.mustPosition()
	return r.Current()
}

func (r *Reader4[A, B, C, D]) All() iter.Seq2[int64, Tuple4[A, B, C, D]] {
	return func(yield func(int64, Tuple4[A, B, C, D]) bool) {
		for row := range r.Rows() {
			if !yield(row, r.Current()) {
				return
			}
		}
	}
}
