// Package storage defines the engine a chain reader drives and ships the
// engines that back it: JSON/JSONL files and Parquet files.
//
// An engine opens a named record stream over an ordered list of files. The
// files are concatenated into one logical stream; each file is a partition
// holding a contiguous range of global row numbers. Columns are resolved by
// name, bound to an address, and filled by Fetch for a row of the loaded
// partition.
package storage

import (
	"github.com/pkg/errors"
)

var (
	// ErrColumnNotFound is returned when a column name cannot be resolved.
	ErrColumnNotFound = errors.New("column not found")
	// ErrRowOutOfRange is returned for a row outside [0, total rows).
	ErrRowOutOfRange = errors.New("row out of range")
	// ErrPartitionUnavailable is returned when a partition cannot be loaded.
	ErrPartitionUnavailable = errors.New("partition unavailable")
	// ErrDetached is returned by a stream used after Detach.
	ErrDetached = errors.New("stream detached")
	// ErrBadAddress is returned when a bound address does not match its ownership mode.
	ErrBadAddress = errors.New("bad column address")
	// ErrTypeMismatch is returned when a stored value cannot be decoded into the bound type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrNoFiles is returned when a stream or a pattern has no files.
	ErrNoFiles = errors.New("no files")
)

// Ownership tells who allocates and frees the memory behind a bound column.
type Ownership int

const (
	// OwnedByReader columns are bound to a *T the reader allocated. The
	// engine decodes into it and never frees it.
	OwnedByReader Ownership = iota
	// OwnedByEngine columns are bound to a **T. The engine points the slot
	// at memory it allocates, may reallocate it on every fetch, and drops
	// it on ResetAddresses or Detach.
	OwnedByEngine
)

func (o Ownership) String() string {
	switch o {
	case OwnedByReader:
		return "reader"
	case OwnedByEngine:
		return "engine"
	default:
		return "unknown"
	}
}

// Engine opens named record streams.
type Engine interface {
	OpenStream(name string) (Stream, error)
}

// Stream is one named record stream over an ordered list of files.
//
// Streams are not safe for concurrent use.
type Stream interface {
	// Name returns the stream name.
	Name() string
	// AddFile appends a file, or every match of a glob pattern in lexical
	// order, to the end of the chain.
	AddFile(path string) error
	// ResolveColumn resolves a column name against the stream.
	ResolveColumn(name string) (Column, error)
	// LoadPartition makes the partition holding the global row current,
	// switching files if needed, and returns the row's index within it.
	LoadPartition(row int64) (int64, error)
	// Partition returns the id of the loaded partition, or -1.
	Partition() int
	// TotalRows returns the number of rows across all files.
	TotalRows() (int64, error)
	// PartitionRows returns the row count of every file in chain order.
	PartitionRows() ([]int64, error)
	// Files returns the chained file paths after glob expansion.
	Files() []string
	// ResetAddresses unbinds every column. Engine-owned slots are set to nil.
	ResetAddresses()
	// Detach releases the stream. Further calls return ErrDetached.
	Detach() error
}

// Column is a resolved column of a stream.
type Column interface {
	Name() string
	// Bind registers the address fetched values are written to: a *T for
	// OwnedByReader, a **T for OwnedByEngine.
	Bind(addr any, mode Ownership) error
	// Fetch decodes the column's value at the partition-local row of the
	// loaded partition into the bound address.
	Fetch(local int64) error
}
