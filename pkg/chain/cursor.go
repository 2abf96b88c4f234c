package chain

import (
	"github.com/go-kit/log/level"
)

// Position moves the cursor to a global row and fetches every column for
// it. Positioning the same or an earlier row is allowed and fetches again.
//
// On failure a *PositionError is returned and the cursor stays where it
// was. When a column fails to decode, the columns already fetched for the
// new row are fetched again for the current row, so the previous row's
// values remain visible. Before the first successful Position they are
// cleared instead.
func (r *Reader) Position(row int64) error {
	if r.closed {
		return r.fail(row, Closed, ErrClosed)
	}

	local, err := r.stream.LoadPartition(row)
	if err != nil {
		return r.fail(row, positionKind(err), err)
	}

	for i, h := range r.table.handles {
		if err := h.Fetch(local); err != nil {
			r.restore(i)
			return r.fail(row, DecodeFailed, err)
		}
	}

	if p := r.stream.Partition(); p != r.partition {
		level.Debug(r.logger).Log("msg", "switched partition", "from", r.partition, "to", p, "row", row)
		r.partition = p
		if r.metrics != nil {
			r.metrics.PartitionSwitches.Inc()
		}
	}
	r.row = row
	if r.metrics != nil {
		r.metrics.Positions.Inc()
	}
	return nil
}

// restore undoes the fetches of columns 0..failed after a decode failure.
func (r *Reader) restore(failed int) {
	if r.row < 0 {
		for i := 0; i <= failed; i++ {
			r.table.binding(i).clear()
		}
		return
	}

	local, err := r.stream.LoadPartition(r.row)
	if err == nil {
		for _, h := range r.table.handles[:failed+1] {
			if err = h.Fetch(local); err != nil {
				break
			}
		}
	}
	if err != nil {
		level.Warn(r.logger).Log("msg", "could not restore previous row", "row", r.row, "err", err)
	}
}

// Next positions the cursor on the row after the current one.
func (r *Reader) Next() error {
	return r.Position(r.row + 1)
}

// Row returns the current global row, or -1 before the first successful
// Position.
func (r *Reader) Row() int64 {
	return r.row
}

// Partition returns the index of the file holding the current row, or -1.
func (r *Reader) Partition() int {
	return r.partition
}

func (r *Reader) fail(row int64, kind PositionErrorKind, err error) error {
	if r.metrics != nil {
		r.metrics.PositionErrors.WithLabelValues(string(kind)).Inc()
	}
	level.Debug(r.logger).Log("msg", "position failed", "row", row, "kind", kind, "err", err)
	return &PositionError{Row: row, Total: r.total, Kind: kind, Err: err}
}
