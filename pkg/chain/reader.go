// Package chain reads typed columns out of a chain of files that a storage
// engine concatenates into one ordered record stream.
//
// Columns are declared with a Go type and a name. Fixed-layout types
// (numbers, booleans and fixed-size arrays of them) are decoded into a
// buffer the reader allocates once and frees on Close. Everything else is
// decoded into memory the engine allocates and owns; the reader only keeps
// a pointer slot the engine fills.
//
// Values returned by Get, Value and the typed readers point into that
// memory. They are valid until the next cursor operation; copy them with
// Retain or TupleN.Values to keep a row.
//
// A Reader is not safe for concurrent use, and only one iteration over a
// Reader may be in progress at a time.
package chain

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/bisegni/jchain/pkg/storage"
)

// Reader is the untyped core of a chain reader. The typed readers Reader1
// to Reader4 wrap it.
type Reader struct {
	id        string
	stream    storage.Stream
	table     *bindingTable
	total     int64
	row       int64
	partition int
	err       error
	closed    bool

	logger   log.Logger
	metrics  *Metrics
	trackers trackers
}

// NewReader opens stream over files with engine and binds decls. Files are
// concatenated in the order given. A column that cannot be resolved fails
// construction with a *ResolutionError.
func NewReader(engine storage.Engine, files []string, stream string, decls []Decl, opts ...Option) (*Reader, error) {
	s, err := engine.OpenStream(stream)
	if err != nil {
		return nil, errors.Wrapf(err, "open stream %q", stream)
	}
	for _, f := range files {
		if err := s.AddFile(f); err != nil {
			s.Detach()
			return nil, errors.Wrapf(err, "add %s", f)
		}
	}
	return FromStream(s, decls, opts...)
}

// FromStream binds decls to an already opened stream. The reader takes
// over the stream and detaches it on Close, or right away if construction
// fails.
func FromStream(s storage.Stream, decls []Decl, opts ...Option) (*Reader, error) {
	cfg := newConfig(opts)
	if len(decls) == 0 {
		s.Detach()
		return nil, errors.New("no columns declared")
	}

	table, err := buildTable(s, decls, cfg.trackers)
	if err != nil {
		s.Detach()
		return nil, err
	}

	total, err := s.TotalRows()
	if err != nil {
		s.ResetAddresses()
		table.release(cfg.trackers)
		s.Detach()
		return nil, errors.Wrapf(err, "count rows of stream %q", s.Name())
	}

	r := &Reader{
		id:        cfg.id,
		stream:    s,
		table:     table,
		total:     total,
		row:       -1,
		partition: -1,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
		trackers:  cfg.trackers,
	}
	level.Debug(r.logger).Log("msg", "reader opened", "stream", s.Name(), "files", len(s.Files()), "columns", table.len(), "rows", total)
	return r, nil
}

// ID returns the id the reader logs under.
func (r *Reader) ID() string {
	return r.id
}

// Stream returns the name of the stream being read.
func (r *Reader) Stream() string {
	return r.stream.Name()
}

// Files returns the chained files.
func (r *Reader) Files() []string {
	return r.stream.Files()
}

// TotalRows returns the number of rows counted at construction.
func (r *Reader) TotalRows() int64 {
	return r.total
}

// PartitionRows returns the row count of every file in chain order.
func (r *Reader) PartitionRows() ([]int64, error) {
	return r.stream.PartitionRows()
}

// NumColumns returns the number of declared columns.
func (r *Reader) NumColumns() int {
	return r.table.len()
}

// Columns returns the column names in declaration order.
func (r *Reader) Columns() []string {
	return append([]string(nil), r.table.names...)
}

// Ownership returns who owns the memory of column i.
func (r *Reader) Ownership(i int) Ownership {
	return r.table.binding(i).ownership()
}

// Close unbinds every column from the engine, frees the reader-owned
// buffers and detaches the stream, in that order. Values obtained from the
// reader must not be used afterwards. Close is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	r.stream.ResetAddresses()
	released := r.table.release(r.trackers)
	err := r.stream.Detach()

	level.Debug(r.logger).Log("msg", "reader closed", "released", released, "err", err)
	return errors.Wrap(err, "detach stream")
}
