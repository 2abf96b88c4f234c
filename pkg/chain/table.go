package chain

import (
	"github.com/bisegni/jchain/pkg/storage"
)

// bindingTable holds one binding per declared column, in declaration order.
// It is never modified after construction.
type bindingTable struct {
	bindings []binding
	handles  []storage.Column
	names    []string
}

// buildTable binds every declaration. When one fails, the bindings already
// made are released before the error is returned.
func buildTable(s storage.Stream, decls []Decl, tracker BufferTracker) (*bindingTable, error) {
	t := &bindingTable{
		bindings: make([]binding, 0, len(decls)),
		handles:  make([]storage.Column, 0, len(decls)),
		names:    make([]string, 0, len(decls)),
	}
	for _, d := range decls {
		b, err := d.bind(s, tracker)
		if err != nil {
			t.release(tracker)
			return nil, err
		}
		t.bindings = append(t.bindings, b)
		t.handles = append(t.handles, b.handle())
		t.names = append(t.names, d.Name())
	}
	return t, nil
}

// release frees the reader-owned buffers and returns how many there were.
func (t *bindingTable) release(tracker BufferTracker) int {
	n := 0
	for _, b := range t.bindings {
		if r, ok := b.(releaser); ok {
			r.release(tracker)
			n++
		}
	}
	return n
}

func (t *bindingTable) binding(i int) binding {
	return t.bindings[i]
}

func (t *bindingTable) len() int {
	return len(t.bindings)
}
