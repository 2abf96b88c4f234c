package chain

import (
	"iter"
)

// Iterator is a row counter over [0, TotalRows()). Two iterators are equal
// when their counters are; comparing iterators of different readers is
// meaningless.
//
// Dereferencing an iterator moves the reader's cursor, so two live
// iterators over one reader disturb each other.
type Iterator struct {
	r   *Reader
	row int64
}

// Begin returns an iterator at row 0.
func (r *Reader) Begin() Iterator {
	return Iterator{r: r}
}

// End returns the iterator one past the last row counted at construction.
func (r *Reader) End() Iterator {
	return Iterator{r: r, row: r.total}
}

// Next advances the iterator by one row.
func (it *Iterator) Next() {
	it.row++
}

// Equal reports whether both iterators are at the same row.
func (it Iterator) Equal(other Iterator) bool {
	return it.row == other.row
}

// Row returns the iterator's row.
func (it Iterator) Row() int64 {
	return it.row
}

// mustPosition moves the reader to the iterator's row. A failure here is a
// broken iteration contract and panics with the *PositionError.
func (it Iterator) mustPosition() {
	if err := it.r.Position(it.row); err != nil {
		panic(err)
	}
}

// Rows positions the reader on every row in order and yields the row
// number. Iteration stops at the first failed position; Err reports it.
func (r *Reader) Rows() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		r.err = nil
		for it, end := r.Begin(), r.End(); !it.Equal(end); it.Next() {
			if err := r.Position(it.Row()); err != nil {
				r.err = err
				return
			}
			if !yield(it.Row()) {
				return
			}
		}
	}
}

// Err returns the error that stopped the last Rows or All iteration.
func (r *Reader) Err() error {
	return r.err
}
