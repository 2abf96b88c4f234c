package database

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/bisegni/jchain/pkg/chain"
	"github.com/bisegni/jchain/pkg/query"
)

// ChainRow is the current row of a chain reader, keyed by column name in
// declaration order. Its values alias the reader's buffers and are valid
// until the iterator moves.
type ChainRow struct {
	number int64
	values OrderedMap
}

func (r *ChainRow) Get(field string) (interface{}, error) {
	v, ok := r.values.Get(field)
	if !ok {
		return nil, fmt.Errorf("column '%s' not found", field)
	}
	return v, nil
}

// Primitive returns the row as an OrderedMap.
func (r *ChainRow) Primitive() interface{} {
	return r.values
}

// Number returns the global row number.
func (r *ChainRow) Number() int64 {
	return r.number
}

// ChainTable adapts a chain reader to the Table interface. The table does
// not own the reader, and only one of its iterators may be live at a time
// since they share the reader's cursor.
type ChainTable struct {
	reader *chain.Reader
	labels []string
	from   int64
	limit  int64
	filter query.Expression
}

// NewChainTable creates a table over every row of r.
func NewChainTable(r *chain.Reader) *ChainTable {
	return &ChainTable{
		reader: r,
		labels: Labels(r.Columns()),
		limit:  -1,
	}
}

// Labels returns the keys rows use for columns. A name declared more than
// once is suffixed with its column index after the first use.
func Labels(names []string) []string {
	labels := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if seen[name] {
			labels[i] = fmt.Sprintf("%s#%d", name, i)
			continue
		}
		seen[name] = true
		labels[i] = name
	}
	return labels
}

// Range restricts the scan to start at row from and yield at most limit
// rows. A negative limit means no limit.
func (t *ChainTable) Range(from, limit int64) *ChainTable {
	t.from = from
	t.limit = limit
	return t
}

// Where keeps only the rows matching expr. Every column expr reads must be
// declared on the reader.
func (t *ChainTable) Where(expr query.Expression) *ChainTable {
	t.filter = expr
	return t
}

func (t *ChainTable) Iterate() (RowIterator, error) {
	total := t.reader.TotalRows()
	if t.from < 0 || t.from > total {
		return nil, errors.Errorf("start row %d outside [0, %d]", t.from, total)
	}
	if t.filter != nil {
		for _, field := range t.filter.Fields() {
			if !contains(t.labels, field) {
				return nil, errors.Errorf("filter reads undeclared column %q", field)
			}
		}
	}
	return &chainIterator{table: t, next: t.from}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type chainIterator struct {
	table   *ChainTable
	next    int64
	yielded int64
	current *ChainRow
	err     error
	done    bool
}

func (it *chainIterator) Next() bool {
	t := it.table
	for !it.done {
		if t.limit >= 0 && it.yielded >= t.limit {
			break
		}
		if it.next >= t.reader.TotalRows() {
			break
		}
		row := it.next
		it.next++
		if err := t.reader.Position(row); err != nil {
			it.err = err
			break
		}

		values := Snapshot(t.reader, t.labels)
		if t.filter != nil && !t.filter.Evaluate(values) {
			continue
		}
		it.current = &ChainRow{number: row, values: values}
		it.yielded++
		return true
	}
	it.done = true
	it.current = nil
	return false
}

// Snapshot reads the current value of every column of r, keyed by labels.
// Engine-owned columns that were never filled read as nil.
func Snapshot(r *chain.Reader, labels []string) OrderedMap {
	values := make(OrderedMap, len(labels))
	for i, label := range labels {
		values[i] = KeyVal{Key: label, Val: Deref(r.Value(i))}
	}
	return values
}

// Deref returns the value a column pointer points to, or nil.
func Deref(p interface{}) interface{} {
	v := reflect.ValueOf(p)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return nil
	}
	return v.Elem().Interface()
}

func (it *chainIterator) Row() Row {
	if it.current == nil {
		return nil
	}
	return it.current
}

func (it *chainIterator) Error() error {
	return it.err
}

func (it *chainIterator) Close() error {
	it.done = true
	it.current = nil
	return nil
}
