package chain

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/bisegni/jchain/pkg/storage"
)

// ErrClosed is wrapped by position errors on a closed reader.
var ErrClosed = errors.New("reader closed")

// ResolutionError reports a declared column that could not be resolved or
// bound. No reader is returned alongside it.
type ResolutionError struct {
	Stream string
	Column string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve column %q of stream %q: %v", e.Column, e.Stream, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// PositionErrorKind classifies a failed Position.
type PositionErrorKind string

const (
	OutOfRange           PositionErrorKind = "out_of_range"
	PartitionUnavailable PositionErrorKind = "partition_unavailable"
	DecodeFailed         PositionErrorKind = "decode"
	Closed               PositionErrorKind = "closed"
)

// PositionError reports a row the cursor could not move to. Row and
// Partition of the reader are unchanged and every column still holds the
// previous row's value. When Kind is DecodeFailed the columns fetched before
// the failing one were fetched again for the previous row; if that refetch
// also fails it is logged and those columns may hold the new row's values.
type PositionError struct {
	Row   int64
	Total int64
	Kind  PositionErrorKind
	Err   error
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position row %d of %d (%s): %v", e.Row, e.Total, e.Kind, e.Err)
}

func (e *PositionError) Unwrap() error {
	return e.Err
}

func positionKind(err error) PositionErrorKind {
	switch {
	case errors.Is(err, storage.ErrRowOutOfRange):
		return OutOfRange
	case errors.Is(err, ErrClosed):
		return Closed
	default:
		return PartitionUnavailable
	}
}
