package storage

import (
	"io"
	"reflect"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/bisegni/jchain/pkg/parser"
)

// JSONEngine reads streams out of .json and .jsonl files, optionally
// compressed with zstd or gzip. See parser.Parser for the layouts.
//
// Column names are dotted paths into a record. A partition is loaded into
// memory whole when the cursor first enters it.
type JSONEngine struct {
	logger log.Logger
}

// NewJSONEngine creates a JSON engine. A nil logger discards output.
func NewJSONEngine(logger log.Logger) *JSONEngine {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &JSONEngine{logger: logger}
}

func (e *JSONEngine) OpenStream(name string) (Stream, error) {
	if name == "" {
		return nil, errors.New("stream name must not be empty")
	}
	return &jsonStream{
		name:      name,
		fileChain: newFileChain(),
		logger:    log.With(e.logger, "engine", "json", "stream", name),
	}, nil
}

type jsonStream struct {
	fileChain

	name    string
	logger  log.Logger
	records []parser.Record
	columns []*jsonColumn
}

func (s *jsonStream) Name() string {
	return s.name
}

func (s *jsonStream) AddFile(path string) error {
	return s.addFile(path)
}

func (s *jsonStream) count(path string) (int64, error) {
	p, err := parser.NewParser(path, s.name)
	if err != nil {
		return 0, err
	}
	defer p.Close()
	return p.Count()
}

func (s *jsonStream) readFile(path string) ([]parser.Record, error) {
	p, err := parser.NewParser(path, s.name)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.ReadAll()
}

// sample returns the first record of the chain, or nil when every file is
// empty.
func (s *jsonStream) sample() (parser.Record, error) {
	if s.current == 0 && len(s.records) > 0 {
		return s.records[0], nil
	}
	for _, path := range s.files {
		p, err := parser.NewParser(path, s.name)
		if err != nil {
			return nil, errors.Wrapf(ErrPartitionUnavailable, "open %s: %v", path, err)
		}
		record, err := p.Read()
		p.Close()
		if err == io.EOF {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(ErrPartitionUnavailable, "read %s: %v", path, err)
		}
		return record, nil
	}
	return nil, nil
}

func (s *jsonStream) ResolveColumn(name string) (Column, error) {
	if s.detached {
		return nil, ErrDetached
	}
	if len(s.files) == 0 {
		return nil, errors.Wrapf(ErrNoFiles, "stream %q", s.name)
	}
	path := parser.SplitPath(name)
	if len(path) == 0 {
		return nil, errors.Wrap(ErrColumnNotFound, "empty column name")
	}
	record, err := s.sample()
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.Wrapf(ErrColumnNotFound, "column %q: stream %q has no records", name, s.name)
	}
	if _, ok := record.Lookup(path); !ok {
		return nil, errors.Wrapf(ErrColumnNotFound, "column %q in stream %q", name, s.name)
	}

	c := &jsonColumn{stream: s, name: name, path: path}
	s.columns = append(s.columns, c)
	return c, nil
}

func (s *jsonStream) LoadPartition(row int64) (int64, error) {
	part, local, err := s.locate(row, s.count)
	if err != nil {
		return -1, err
	}
	if part == s.current {
		return local, nil
	}

	path := s.files[part]
	records, err := s.readFile(path)
	if err != nil {
		return -1, errors.Wrapf(ErrPartitionUnavailable, "load %s: %v", path, err)
	}
	if want := s.index.counts[part]; int64(len(records)) != want {
		return -1, errors.Wrapf(ErrPartitionUnavailable, "%s changed: counted %d rows, read %d", path, want, len(records))
	}
	level.Debug(s.logger).Log("msg", "loaded partition", "partition", part, "file", path, "rows", len(records))

	s.records = records
	s.current = part
	return local, nil
}

func (s *jsonStream) TotalRows() (int64, error) {
	idx, err := s.ensureIndex(s.count)
	if err != nil {
		return 0, err
	}
	return idx.total(), nil
}

func (s *jsonStream) PartitionRows() ([]int64, error) {
	return s.partitionRows(s.count)
}

func (s *jsonStream) ResetAddresses() {
	for _, c := range s.columns {
		dropSlot(c.addr, c.mode)
		c.addr = nil
	}
}

func (s *jsonStream) Detach() error {
	if s.detached {
		return nil
	}
	s.ResetAddresses()
	s.columns = nil
	s.records = nil
	s.current = -1
	s.detached = true
	level.Debug(s.logger).Log("msg", "detached")
	return nil
}

type jsonColumn struct {
	stream *jsonStream
	name   string
	path   []string
	addr   any
	mode   Ownership
}

func (c *jsonColumn) Name() string {
	return c.name
}

func (c *jsonColumn) Bind(addr any, mode Ownership) error {
	if err := checkAddress(addr, mode); err != nil {
		return errors.Wrapf(err, "bind %q", c.name)
	}
	c.addr = addr
	c.mode = mode
	return nil
}

func (c *jsonColumn) Fetch(local int64) error {
	s := c.stream
	if s.detached {
		return ErrDetached
	}
	if c.addr == nil {
		return errors.Wrapf(ErrBadAddress, "column %q is not bound", c.name)
	}
	if s.current < 0 || local < 0 || local >= int64(len(s.records)) {
		return errors.Wrapf(ErrRowOutOfRange, "local row %d", local)
	}

	raw, ok := s.records[local].Lookup(c.path)
	return decode(c.addr, c.mode, func(dst reflect.Value) error {
		if !ok || string(raw) == "null" {
			return nil
		}
		if err := json.Unmarshal(raw, dst.Addr().Interface()); err != nil {
			return errors.Wrapf(ErrTypeMismatch, "column %q into %s: %v", c.name, dst.Type(), err)
		}
		return nil
	})
}
