package storage

import (
	"io"
	"os"
	"reflect"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"

	"github.com/bisegni/jchain/pkg/parser"
)

// StreamMetadataKey is the key/value metadata entry naming the stream a
// Parquet file belongs to. Files without it match any stream name.
const StreamMetadataKey = "stream"

const readBatch = 128

// ParquetEngine reads streams out of .parquet files. Each file is one
// partition; column names are dotted leaf paths of the file schema.
type ParquetEngine struct {
	logger log.Logger
}

// NewParquetEngine creates a Parquet engine. A nil logger discards output.
func NewParquetEngine(logger log.Logger) *ParquetEngine {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &ParquetEngine{logger: logger}
}

func (e *ParquetEngine) OpenStream(name string) (Stream, error) {
	if name == "" {
		return nil, errors.New("stream name must not be empty")
	}
	return &parquetStream{
		name:      name,
		fileChain: newFileChain(),
		logger:    log.With(e.logger, "engine", "parquet", "stream", name),
	}, nil
}

type parquetStream struct {
	fileChain

	name    string
	logger  log.Logger
	rows    []parquet.Row
	columns []*parquetColumn
}

func (s *parquetStream) Name() string {
	return s.name
}

func (s *parquetStream) AddFile(path string) error {
	return s.addFile(path)
}

// open opens a file and checks it belongs to the stream. The caller closes
// the returned os.File.
func (s *parquetStream) open(path string) (*os.File, *parquet.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrapf(err, "open parquet %s", path)
	}
	if v, ok := pf.Lookup(StreamMetadataKey); ok && v != s.name {
		f.Close()
		return nil, nil, errors.Errorf("%s holds stream %q, not %q", path, v, s.name)
	}
	return f, pf, nil
}

func (s *parquetStream) count(path string) (int64, error) {
	f, pf, err := s.open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return pf.NumRows(), nil
}

func (s *parquetStream) ResolveColumn(name string) (Column, error) {
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

	f, pf, err := s.open(s.files[0])
	if err != nil {
		return nil, errors.Wrapf(ErrPartitionUnavailable, "%v", err)
	}
	defer f.Close()

	leaf, ok := pf.Schema().Lookup(path...)
	if !ok {
		return nil, errors.Wrapf(ErrColumnNotFound, "column %q in stream %q", name, s.name)
	}

	c := &parquetColumn{stream: s, name: name, path: path, leaf: leaf.ColumnIndex}
	s.columns = append(s.columns, c)
	return c, nil
}

func (s *parquetStream) LoadPartition(row int64) (int64, error) {
	part, local, err := s.locate(row, s.count)
	if err != nil {
		return -1, err
	}
	if part == s.current {
		return local, nil
	}

	path := s.files[part]
	rows, err := s.readFile(path)
	if err != nil {
		return -1, errors.Wrapf(ErrPartitionUnavailable, "load %s: %v", path, err)
	}
	if want := s.index.counts[part]; int64(len(rows)) != want {
		return -1, errors.Wrapf(ErrPartitionUnavailable, "%s changed: counted %d rows, read %d", path, want, len(rows))
	}
	level.Debug(s.logger).Log("msg", "loaded partition", "partition", part, "file", path, "rows", len(rows))

	s.rows = rows
	s.current = part
	return local, nil
}

// readFile materializes every row of a file and re-resolves the columns
// against its schema, since leaf order may differ between files.
func (s *parquetStream) readFile(path string) ([]parquet.Row, error) {
	f, pf, err := s.open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	leaves := make([]int, len(s.columns))
	for i, c := range s.columns {
		leaf, ok := pf.Schema().Lookup(c.path...)
		if !ok {
			return nil, errors.Wrapf(ErrColumnNotFound, "column %q", c.name)
		}
		leaves[i] = leaf.ColumnIndex
	}

	out := make([]parquet.Row, 0, pf.NumRows())
	buf := make([]parquet.Row, readBatch)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, r := range buf[:n] {
				out = append(out, r.Clone())
			}
			if err == io.EOF || (err == nil && n == 0) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, err
			}
		}
		rows.Close()
	}

	for i, c := range s.columns {
		c.leaf = leaves[i]
	}
	return out, nil
}

func (s *parquetStream) TotalRows() (int64, error) {
	idx, err := s.ensureIndex(s.count)
	if err != nil {
		return 0, err
	}
	return idx.total(), nil
}

func (s *parquetStream) PartitionRows() ([]int64, error) {
	return s.partitionRows(s.count)
}

func (s *parquetStream) ResetAddresses() {
	for _, c := range s.columns {
		dropSlot(c.addr, c.mode)
		c.addr = nil
	}
}

func (s *parquetStream) Detach() error {
	if s.detached {
		return nil
	}
	s.ResetAddresses()
	s.columns = nil
	s.rows = nil
	s.current = -1
	s.detached = true
	level.Debug(s.logger).Log("msg", "detached")
	return nil
}

type parquetColumn struct {
	stream *parquetStream
	name   string
	path   []string
	leaf   int
	addr   any
	mode   Ownership
}

func (c *parquetColumn) Name() string {
	return c.name
}

func (c *parquetColumn) Bind(addr any, mode Ownership) error {
	if err := checkAddress(addr, mode); err != nil {
		return errors.Wrapf(err, "bind %q", c.name)
	}
	c.addr = addr
	c.mode = mode
	return nil
}

func (c *parquetColumn) Fetch(local int64) error {
	s := c.stream
	if s.detached {
		return ErrDetached
	}
	if c.addr == nil {
		return errors.Wrapf(ErrBadAddress, "column %q is not bound", c.name)
	}
	if s.current < 0 || local < 0 || local >= int64(len(s.rows)) {
		return errors.Wrapf(ErrRowOutOfRange, "local row %d", local)
	}

	var values []parquet.Value
	for _, v := range s.rows[local] {
		if v.Column() == c.leaf && !v.IsNull() {
			values = append(values, v)
		}
	}

	return decode(c.addr, c.mode, func(dst reflect.Value) error {
		return errors.Wrapf(assignValues(dst, values), "column %q", c.name)
	})
}

// assignValues converts the non-null values of one leaf column into dst.
// Repeated leaves fill slices and arrays.
func assignValues(dst reflect.Value, values []parquet.Value) error {
	switch dst.Kind() {
	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 && len(values) == 1 && isBytes(values[0]) {
			dst.SetBytes(append([]byte(nil), values[0].ByteArray()...))
			return nil
		}
		s := reflect.MakeSlice(dst.Type(), len(values), len(values))
		for i, v := range values {
			if err := assignScalar(s.Index(i), v); err != nil {
				return err
			}
		}
		dst.Set(s)
		return nil
	case reflect.Array:
		if len(values) > dst.Len() {
			return errors.Wrapf(ErrTypeMismatch, "%d values into %s", len(values), dst.Type())
		}
		for i, v := range values {
			if err := assignScalar(dst.Index(i), v); err != nil {
				return err
			}
		}
		return nil
	}

	switch len(values) {
	case 0:
		return nil
	case 1:
		return assignScalar(dst, values[0])
	default:
		return errors.Wrapf(ErrTypeMismatch, "repeated column into %s", dst.Type())
	}
}

func isBytes(v parquet.Value) bool {
	return v.Kind() == parquet.ByteArray || v.Kind() == parquet.FixedLenByteArray
}

func assignScalar(dst reflect.Value, v parquet.Value) error {
	mismatch := func() error {
		return errors.Wrapf(ErrTypeMismatch, "%s value into %s", v.Kind(), dst.Type())
	}

	switch dst.Kind() {
	case reflect.Bool:
		if v.Kind() != parquet.Boolean {
			return mismatch()
		}
		dst.SetBool(v.Boolean())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch v.Kind() {
		case parquet.Int32:
			n = int64(v.Int32())
		case parquet.Int64:
			n = v.Int64()
		default:
			return mismatch()
		}
		if dst.OverflowInt(n) {
			return errors.Wrapf(ErrTypeMismatch, "%d overflows %s", n, dst.Type())
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		switch v.Kind() {
		case parquet.Int32:
			n = uint64(v.Uint32())
		case parquet.Int64:
			n = v.Uint64()
		default:
			return mismatch()
		}
		if dst.OverflowUint(n) {
			return errors.Wrapf(ErrTypeMismatch, "%d overflows %s", n, dst.Type())
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		switch v.Kind() {
		case parquet.Float:
			dst.SetFloat(float64(v.Float()))
		case parquet.Double:
			dst.SetFloat(v.Double())
		case parquet.Int32:
			dst.SetFloat(float64(v.Int32()))
		case parquet.Int64:
			dst.SetFloat(float64(v.Int64()))
		default:
			return mismatch()
		}
	case reflect.String:
		if !isBytes(v) {
			return mismatch()
		}
		dst.SetString(string(v.ByteArray()))
	case reflect.Interface:
		if dst.Type().NumMethod() != 0 {
			return mismatch()
		}
		dst.Set(reflect.ValueOf(plainValue(v)))
	default:
		return mismatch()
	}
	return nil
}

func plainValue(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
