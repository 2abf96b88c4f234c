package chain

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/bisegni/jchain/pkg/storage"
)

type point struct {
	X, Y float64
}

func TestClassify(t *testing.T) {
	tests := []struct {
		typ  reflect.Type
		want Ownership
	}{
		{reflect.TypeFor[bool](), OwnedByReader},
		{reflect.TypeFor[int](), OwnedByReader},
		{reflect.TypeFor[int64](), OwnedByReader},
		{reflect.TypeFor[uint8](), OwnedByReader},
		{reflect.TypeFor[float32](), OwnedByReader},
		{reflect.TypeFor[complex128](), OwnedByReader},
		{reflect.TypeFor[[3]float64](), OwnedByReader},
		{reflect.TypeFor[[2][2]int32](), OwnedByReader},
		{reflect.TypeFor[string](), OwnedByEngine},
		{reflect.TypeFor[[]int64](), OwnedByEngine},
		{reflect.TypeFor[[2]string](), OwnedByEngine},
		{reflect.TypeFor[map[string]int](), OwnedByEngine},
		{reflect.TypeFor[*int](), OwnedByEngine},
		{reflect.TypeFor[any](), OwnedByEngine},
		{reflect.TypeFor[point](), OwnedByEngine},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.typ))
		})
	}
}

func TestColumnDecl(t *testing.T) {
	d := Column[[]string]("tags")
	require.Equal(t, "tags", d.Name())
	require.Equal(t, reflect.TypeFor[[]string](), d.Type())
	require.Equal(t, OwnedByEngine, d.Ownership())
}

func TestOwnershipSplit(t *testing.T) {
	tracker := newCountingTracker(nil)
	engine := newMemEngine(nil, memRows(3, 0), memRows(2, 3))

	r, err := NewReader(engine, []string{"a", "b"}, "data", []Decl{
		Column[int64]("x"),
		Column[[3]float64]("vec"),
		Column[string]("tag"),
		Column[[]int64]("hits"),
	}, WithBufferTracker(tracker))
	require.NoError(t, err)

	require.Equal(t, map[string]int{"x": 1, "vec": 1}, tracker.allocated)
	require.Empty(t, tracker.released)
	require.Equal(t, OwnedByReader, r.Ownership(0))
	require.Equal(t, OwnedByReader, r.Ownership(1))
	require.Equal(t, OwnedByEngine, r.Ownership(2))
	require.Equal(t, OwnedByEngine, r.Ownership(3))

	// every column resolved exactly once
	for _, name := range []string{"x", "vec", "tag", "hits"} {
		require.Equal(t, 1, engine.stream.resolves[name], name)
	}

	for row := range r.Rows() {
		_ = row
	}
	require.NoError(t, r.Err())

	// iteration never allocates reader buffers
	require.Equal(t, map[string]int{"x": 1, "vec": 1}, tracker.allocated)

	require.NoError(t, r.Close())
	require.Equal(t, map[string]int{"x": 1, "vec": 1}, tracker.released)

	require.NoError(t, r.Close())
	require.Equal(t, map[string]int{"x": 1, "vec": 1}, tracker.released)
}

func TestCloseOrder(t *testing.T) {
	var events []string
	tracker := newCountingTracker(&events)
	engine := newMemEngine(&events, memRows(2, 0))

	r, err := NewReader(engine, []string{"a"}, "data", []Decl{
		Column[int64]("x"),
		Column[string]("tag"),
	}, WithBufferTracker(tracker))
	require.NoError(t, err)
	require.NoError(t, r.Position(1))

	require.NoError(t, r.Close())
	require.Equal(t, []string{"reset", "release x", "detach"}, events)
	require.True(t, engine.stream.detached)

	// the engine dropped its slot on reset
	require.Nil(t, Get[string](r, 1))
}

func TestResolutionErrorReleasesBuffers(t *testing.T) {
	tracker := newCountingTracker(nil)
	engine := newMemEngine(nil, memRows(2, 0))

	r, err := NewReader(engine, []string{"a"}, "data", []Decl{
		Column[int64]("x"),
		Column[[3]float64]("vec"),
		Column[string]("missing"),
		Column[int64]("never"),
	}, WithBufferTracker(tracker))
	require.Nil(t, r)

	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	require.Equal(t, "missing", resErr.Column)
	require.Equal(t, "data", resErr.Stream)
	require.True(t, errors.Is(err, storage.ErrColumnNotFound))

	require.Equal(t, tracker.allocated, tracker.released)
	require.Zero(t, engine.stream.resolves["never"])
	require.True(t, engine.stream.detached)
}

// nilColumnStream resolves every column to a typed nil handle.
type nilColumnStream struct {
	storage.Stream
}

func (s nilColumnStream) ResolveColumn(string) (storage.Column, error) {
	var c *memColumn
	return c, nil
}

func TestTypedNilColumnIsResolutionError(t *testing.T) {
	engine := newMemEngine(nil, memRows(2, 0))
	s, err := engine.OpenStream("data")
	require.NoError(t, err)

	r, err := FromStream(nilColumnStream{s}, []Decl{Column[int64]("x")})
	require.Nil(t, r)
	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	require.Equal(t, "x", resErr.Column)
	require.True(t, errors.Is(err, storage.ErrColumnNotFound))
	require.True(t, engine.stream.detached)
}

func TestNoColumns(t *testing.T) {
	engine := newMemEngine(nil, memRows(2, 0))
	_, err := NewReader(engine, []string{"a"}, "data", nil)
	require.Error(t, err)
}

func TestEngineOwnedSlotStartsNil(t *testing.T) {
	engine := newMemEngine(nil, memRows(2, 0))
	r, err := Open2[int64, []int64](engine, []string{"a"}, "data", [2]string{"x", "hits"})
	require.NoError(t, err)
	defer r.Close()

	require.Nil(t, r.Current().V1)
	require.NotNil(t, r.Current().V0)
	require.Equal(t, int64(-1), r.Row())
	require.Equal(t, -1, r.Partition())

	row, err := r.At(1)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, *row.V1)
}

func TestRepeatedPositionRefetches(t *testing.T) {
	engine := newMemEngine(nil, memRows(3, 0))
	r, err := Open2[int64, string](engine, []string{"a"}, "data", [2]string{"x", "tag"})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Position(2))
	require.NoError(t, r.Position(2))
	require.NoError(t, r.Position(0))
	require.Equal(t, 6, engine.stream.fetches)
	require.Equal(t, 3, engine.stream.loads)
	require.Equal(t, 3, engine.stream.columns[1].allocs)

	x, tag := r.Current().Values()
	require.Equal(t, int64(0), x)
	require.Equal(t, "r0", tag)
}

func TestNext(t *testing.T) {
	engine := newMemEngine(nil, memRows(2, 0), memRows(1, 2))
	r, err := Open1[int64](engine, []string{"a", "b"}, "data", [1]string{"x"})
	require.NoError(t, err)
	defer r.Close()

	var got []int64
	for r.Next() == nil {
		got = append(got, *r.Current().V0)
	}
	require.Equal(t, []int64{0, 1, 2}, got)
	require.Equal(t, int64(2), r.Row())
	require.Equal(t, 1, r.Partition())
}

func TestGetWrongTypePanics(t *testing.T) {
	engine := newMemEngine(nil, memRows(1, 0))
	r, err := NewReader(engine, []string{"a"}, "data", []Decl{Column[int64]("x")})
	require.NoError(t, err)
	defer r.Close()

	require.Panics(t, func() { Get[int32](r, 0) })
	require.NotPanics(t, func() { Get[int64](r, 0) })
}

func TestValueUntyped(t *testing.T) {
	engine := newMemEngine(nil, memRows(2, 0))
	r, err := NewReader(engine, []string{"a"}, "data", []Decl{
		Column[int64]("x"),
		Column[string]("tag"),
	})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Position(1))
	require.Equal(t, int64(1), *r.Value(0).(*int64))
	require.Equal(t, "r1", *r.Value(1).(*string))
	require.Equal(t, []string{"x", "tag"}, r.Columns())
	require.Equal(t, 2, r.NumColumns())
}

func TestPartitionFailureStopsIteration(t *testing.T) {
	engine := newMemEngine(nil, memRows(2, 0), memRows(2, 2))
	r, err := Open1[int64](engine, []string{"a", "b"}, "data", [1]string{"x"})
	require.NoError(t, err)
	defer r.Close()
	engine.stream.failPart = 1

	var got []int64
	for _, row := range r.All() {
		got = append(got, *row.V0)
	}
	require.Equal(t, []int64{0, 1}, got)

	var posErr *PositionError
	require.True(t, errors.As(r.Err(), &posErr))
	require.Equal(t, PartitionUnavailable, posErr.Kind)
	require.Equal(t, int64(2), posErr.Row)

	// stale row stays visible
	require.Equal(t, int64(1), r.Row())
	require.Equal(t, int64(1), *r.Current().V0)

	it := r.Begin()
	it.Next()
	it.Next()
	require.Panics(t, func() { r.Deref(it) })
}

func TestDecodeFailure(t *testing.T) {
	engine := newMemEngine(nil, memRows(2, 0))
	r, err := NewReader(engine, []string{"a"}, "data", []Decl{Column[int32]("x")})
	require.NoError(t, err)
	defer r.Close()

	err = r.Position(0)
	var posErr *PositionError
	require.True(t, errors.As(err, &posErr))
	require.Equal(t, DecodeFailed, posErr.Kind)
	require.True(t, errors.Is(err, storage.ErrTypeMismatch))
	require.Equal(t, int64(-1), r.Row())
}

func TestDecodeFailureRestoresPreviousRow(t *testing.T) {
	bad := memRows(1, 2)
	bad[0]["x"] = "two"
	engine := newMemEngine(nil, memRows(2, 0), bad)
	r, err := Open2[string, int64](engine, []string{"a", "b"}, "data", [2]string{"tag", "x"})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Position(1))
	before := r.Current().V0

	err = r.Position(2)
	var posErr *PositionError
	require.True(t, errors.As(err, &posErr))
	require.Equal(t, DecodeFailed, posErr.Kind)

	// this engine reallocates before decoding, so the reader refetches
	tag, x := r.Current().Values()
	require.Equal(t, "r1", tag)
	require.Equal(t, int64(1), x)
	require.NotSame(t, before, r.Current().V0)
	require.Equal(t, int64(1), r.Row())
	require.Equal(t, 0, r.Partition())
	require.Equal(t, 0, engine.stream.current)
}

func TestPositionAfterClose(t *testing.T) {
	engine := newMemEngine(nil, memRows(2, 0))
	r, err := Open1[int64](engine, []string{"a"}, "data", [1]string{"x"})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	err = r.Position(0)
	var posErr *PositionError
	require.True(t, errors.As(err, &posErr))
	require.Equal(t, Closed, posErr.Kind)
	require.True(t, errors.Is(err, ErrClosed))
}

func TestRetain(t *testing.T) {
	engine := newMemEngine(nil, memRows(2, 0))
	r, err := Open2[[3]float64, []int64](engine, []string{"a"}, "data", [2]string{"vec", "hits"})
	require.NoError(t, err)
	defer r.Close()

	row, err := r.At(0)
	require.NoError(t, err)
	kept := row.Retain()
	vec, hits := row.Values()

	_, err = r.At(1)
	require.NoError(t, err)

	require.Equal(t, [3]float64{0, 0, 0}, *kept.V0)
	require.Equal(t, []int64{0, 1}, *kept.V1)
	require.Equal(t, [3]float64{0, 0, 0}, vec)
	require.Equal(t, []int64{0, 1}, hits)
	require.Equal(t, [3]float64{1, 2, 3}, *r.Current().V0)
}

func TestRetainDeepCopy(t *testing.T) {
	type nested struct {
		Name  string
		Tags  []string
		Attrs map[string][]int
		Next  *nested
	}
	src := nested{
		Name:  "a",
		Tags:  []string{"x", "y"},
		Attrs: map[string][]int{"k": {1, 2}},
		Next:  &nested{Name: "b"},
	}
	cp := Retain(&src)
	src.Tags[0] = "changed"
	src.Attrs["k"][0] = 99
	src.Next.Name = "changed"

	require.Equal(t, "x", cp.Tags[0])
	require.Equal(t, 1, cp.Attrs["k"][0])
	require.Equal(t, "b", cp.Next.Name)

	var nilAny *any
	require.Nil(t, Retain(nilAny))
	var empty any
	require.Nil(t, Retain(&empty))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	engine := newMemEngine(nil, memRows(2, 0), memRows(2, 2))

	r, err := Open2[int64, string](engine, []string{"a", "b"}, "data", [2]string{"x", "tag"}, WithMetrics(m))
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(m.OwnedBuffers))

	for range r.Rows() {
	}
	require.Error(t, r.Position(4))

	require.Equal(t, float64(4), testutil.ToFloat64(m.Positions))
	require.Equal(t, float64(2), testutil.ToFloat64(m.PartitionSwitches))
	require.Equal(t, float64(1), testutil.ToFloat64(m.PositionErrors.WithLabelValues(string(OutOfRange))))

	require.NoError(t, r.Close())
	require.Equal(t, float64(0), testutil.ToFloat64(m.OwnedBuffers))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	require.True(t, names["jchain_reader_positions_total"])
	require.True(t, names["jchain_reader_partition_switches_total"])
	require.True(t, names["jchain_reader_owned_buffers"])
}

func TestWithID(t *testing.T) {
	engine := newMemEngine(nil, memRows(1, 0))
	r, err := Open1[int64](engine, []string{"a"}, "data", [1]string{"x"}, WithID("fixed"))
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, "fixed", r.ID())

	other, err := Open1[int64](newMemEngine(nil, memRows(1, 0)), []string{"a"}, "data", [1]string{"x"})
	require.NoError(t, err)
	defer other.Close()
	require.Len(t, other.ID(), 36)
}

// writeStream writes rows as a JSONL file of the data stream.
func writeStream(t *testing.T, dir, name string, rows ...map[string]any) string {
	t.Helper()
	var sb strings.Builder
	for _, row := range rows {
		line, err := json.Marshal(map[string]any{"data": row})
		require.NoError(t, err)
		sb.Write(line)
		sb.WriteByte('\n')
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0644))
	return path
}
