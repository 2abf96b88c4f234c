package chain

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/bisegni/jchain/pkg/storage"
)

// memEngine is an in-memory engine that records what the reader asks of it.
type memEngine struct {
	parts  [][]map[string]any
	stream *memStream
	events *[]string
}

func newMemEngine(events *[]string, parts ...[]map[string]any) *memEngine {
	return &memEngine{parts: parts, events: events}
}

func (e *memEngine) OpenStream(name string) (storage.Stream, error) {
	e.stream = &memStream{
		name:     name,
		parts:    e.parts,
		current:  -1,
		failPart: -1,
		resolves: map[string]int{},
		events:   e.events,
	}
	return e.stream, nil
}

type memStream struct {
	name     string
	parts    [][]map[string]any
	files    []string
	current  int
	failPart int
	resolves map[string]int
	columns  []*memColumn
	loads    int
	fetches  int
	detached bool
	events   *[]string
}

func (s *memStream) log(event string) {
	if s.events != nil {
		*s.events = append(*s.events, event)
	}
}

func (s *memStream) Name() string { return s.name }

func (s *memStream) AddFile(path string) error {
	s.files = append(s.files, path)
	return nil
}

func (s *memStream) Files() []string { return s.files }

func (s *memStream) ResolveColumn(name string) (storage.Column, error) {
	s.resolves[name]++
	if len(s.parts) == 0 || len(s.parts[0]) == 0 {
		return nil, storage.ErrColumnNotFound
	}
	if _, ok := s.parts[0][0][name]; !ok {
		return nil, errors.Wrapf(storage.ErrColumnNotFound, "%q", name)
	}
	c := &memColumn{stream: s, name: name}
	s.columns = append(s.columns, c)
	return c, nil
}

func (s *memStream) LoadPartition(row int64) (int64, error) {
	s.loads++
	if row < 0 {
		return -1, storage.ErrRowOutOfRange
	}
	offset := int64(0)
	for i, p := range s.parts {
		if row < offset+int64(len(p)) {
			if i == s.failPart {
				return -1, storage.ErrPartitionUnavailable
			}
			s.current = i
			return row - offset, nil
		}
		offset += int64(len(p))
	}
	return -1, storage.ErrRowOutOfRange
}

func (s *memStream) Partition() int { return s.current }

func (s *memStream) TotalRows() (int64, error) {
	var n int64
	for _, p := range s.parts {
		n += int64(len(p))
	}
	return n, nil
}

func (s *memStream) PartitionRows() ([]int64, error) {
	counts := make([]int64, len(s.parts))
	for i, p := range s.parts {
		counts[i] = int64(len(p))
	}
	return counts, nil
}

func (s *memStream) ResetAddresses() {
	s.log("reset")
	for _, c := range s.columns {
		if c.mode == storage.OwnedByEngine && c.addr != nil {
			reflect.ValueOf(c.addr).Elem().SetZero()
		}
		c.addr = nil
	}
}

func (s *memStream) Detach() error {
	s.log("detach")
	s.detached = true
	return nil
}

type memColumn struct {
	stream *memStream
	name   string
	addr   any
	mode   storage.Ownership
	allocs int
}

func (c *memColumn) Name() string { return c.name }

func (c *memColumn) Bind(addr any, mode storage.Ownership) error {
	c.addr = addr
	c.mode = mode
	return nil
}

// Fetch reallocates engine-owned values on every call.
func (c *memColumn) Fetch(local int64) error {
	c.stream.fetches++
	val := reflect.ValueOf(c.stream.parts[c.stream.current][local][c.name])
	dst := reflect.ValueOf(c.addr).Elem()
	if c.mode == storage.OwnedByEngine {
		fresh := reflect.New(dst.Type().Elem())
		dst.Set(fresh)
		dst = fresh.Elem()
		c.allocs++
	}
	if !val.Type().AssignableTo(dst.Type()) {
		return errors.Wrapf(storage.ErrTypeMismatch, "%s into %s", val.Type(), dst.Type())
	}
	dst.Set(val)
	return nil
}

// countingTracker counts buffer allocations per column.
type countingTracker struct {
	allocated map[string]int
	released  map[string]int
	events    *[]string
}

func newCountingTracker(events *[]string) *countingTracker {
	return &countingTracker{
		allocated: map[string]int{},
		released:  map[string]int{},
		events:    events,
	}
}

func (t *countingTracker) Allocated(column string) {
	t.allocated[column]++
}

func (t *countingTracker) Released(column string) {
	t.released[column]++
	if t.events != nil {
		*t.events = append(*t.events, fmt.Sprintf("release %s", column))
	}
}

func memRows(n int, start int64) []map[string]any {
	rows := make([]map[string]any, n)
	for i := range rows {
		x := start + int64(i)
		rows[i] = map[string]any{
			"x":    x,
			"vec":  [3]float64{float64(x), float64(x) * 2, float64(x) * 3},
			"tag":  fmt.Sprintf("r%d", x),
			"hits": []int64{x, x + 1},
		}
	}
	return rows
}
