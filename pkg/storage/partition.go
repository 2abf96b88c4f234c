package storage

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// partitionIndex maps global rows onto files.
type partitionIndex struct {
	counts  []int64
	offsets []int64 // offsets[i] is the first global row of partition i
}

func newPartitionIndex(counts []int64) *partitionIndex {
	offsets := make([]int64, len(counts)+1)
	for i, n := range counts {
		offsets[i+1] = offsets[i] + n
	}
	return &partitionIndex{counts: counts, offsets: offsets}
}

func (p *partitionIndex) total() int64 {
	return p.offsets[len(p.offsets)-1]
}

// locate returns the partition holding row and the row's index within it.
// Empty partitions are never returned.
func (p *partitionIndex) locate(row int64) (int, int64, bool) {
	if row < 0 || row >= p.total() {
		return -1, 0, false
	}
	i := sort.Search(len(p.counts), func(i int) bool {
		return p.offsets[i+1] > row
	})
	return i, row - p.offsets[i], true
}

// fileChain is the bookkeeping shared by the engines: the ordered files,
// their lazily counted rows and the loaded partition.
type fileChain struct {
	files    []string
	index    *partitionIndex
	current  int
	detached bool
}

func newFileChain() fileChain {
	return fileChain{current: -1}
}

func (c *fileChain) addFile(path string) error {
	if c.detached {
		return ErrDetached
	}
	if !strings.ContainsAny(path, "*?[") {
		c.files = append(c.files, path)
		c.index = nil
		return nil
	}
	matches, err := filepath.Glob(path)
	if err != nil {
		return errors.Wrapf(err, "bad pattern %q", path)
	}
	if len(matches) == 0 {
		return errors.Wrapf(ErrNoFiles, "pattern %q matched nothing", path)
	}
	sort.Strings(matches)
	c.files = append(c.files, matches...)
	c.index = nil
	return nil
}

// ensureIndex counts every file once and caches the result until the chain
// changes.
func (c *fileChain) ensureIndex(count func(path string) (int64, error)) (*partitionIndex, error) {
	if c.detached {
		return nil, ErrDetached
	}
	if c.index != nil {
		return c.index, nil
	}
	counts := make([]int64, len(c.files))
	for i, path := range c.files {
		n, err := count(path)
		if err != nil {
			return nil, errors.Wrapf(ErrPartitionUnavailable, "count %s: %v", path, err)
		}
		counts[i] = n
	}
	c.index = newPartitionIndex(counts)
	return c.index, nil
}

func (c *fileChain) partitionRows(count func(path string) (int64, error)) ([]int64, error) {
	idx, err := c.ensureIndex(count)
	if err != nil {
		return nil, err
	}
	return append([]int64(nil), idx.counts...), nil
}

func (c *fileChain) locate(row int64, count func(path string) (int64, error)) (int, int64, error) {
	idx, err := c.ensureIndex(count)
	if err != nil {
		return -1, 0, err
	}
	part, local, ok := idx.locate(row)
	if !ok {
		return -1, 0, errors.Wrapf(ErrRowOutOfRange, "row %d of %d", row, idx.total())
	}
	return part, local, nil
}

func (c *fileChain) Files() []string {
	return append([]string(nil), c.files...)
}

func (c *fileChain) Partition() int {
	return c.current
}
