package database

// Row is one row of a table, addressed by column label.
type Row interface {
	// Get returns the value of a column by label. Values read from a chain
	// reader alias the reader's column memory and are only valid until the
	// iterator that produced the row moves; copy them to keep them.
	Get(field string) (interface{}, error)
	// Primitive returns the row as an OrderedMap in column order.
	Primitive() interface{}
}

// RowIterator walks the rows of a table in order.
type RowIterator interface {
	// Next advances to the next row. It returns false at the end of the
	// range or on the first error, which Error then reports.
	Next() bool
	// Row returns the current row, or nil once Next returned false.
	Row() Row
	// Error returns the error that stopped the iteration, if any.
	Error() error
	// Close stops the iteration. It does not close the underlying reader.
	Close() error
}

// Table is a scannable range of rows.
type Table interface {
	// Iterate returns a new iterator. Iterators of a table backed by a chain
	// reader share its cursor, so only one may be live at a time.
	Iterate() (RowIterator, error)
}
