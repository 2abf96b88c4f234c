package chain

import (
	"github.com/go-kit/log"
	"github.com/google/uuid"
)

// BufferTracker is told about every buffer the reader allocates for a
// reader-owned column and every buffer it releases.
type BufferTracker interface {
	Allocated(column string)
	Released(column string)
}

type trackers []BufferTracker

func (ts trackers) Allocated(column string) {
	for _, t := range ts {
		t.Allocated(column)
	}
}

func (ts trackers) Released(column string) {
	for _, t := range ts {
		t.Released(column)
	}
}

type config struct {
	id       string
	logger   log.Logger
	metrics  *Metrics
	trackers trackers
}

// Option configures a Reader.
type Option func(*config)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records cursor activity and owned buffers in m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithBufferTracker adds a tracker notified of owned buffer allocation.
func WithBufferTracker(t BufferTracker) Option {
	return func(c *config) {
		c.trackers = append(c.trackers, t)
	}
}

// WithID sets the id the reader logs under. The default is a random UUID.
func WithID(id string) Option {
	return func(c *config) {
		c.id = id
	}
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.logger == nil {
		c.logger = log.NewNopLogger()
	}
	c.logger = log.With(c.logger, "reader", c.id)
	if c.metrics != nil {
		c.trackers = append(c.trackers, c.metrics)
	}
	return c
}
