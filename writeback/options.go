package writeback

import "time"

// Options tunes the pipeline. The queue itself grows without bound
// (matching the deferred-persistence model where enqueue must not block
// the caller); MaxPending is the opt-in backpressure bound.
type Options struct {
	// MaxPending caps queued-but-unpersisted records. 0 means
	// unbounded; when the cap is reached Enqueue fails with
	// ErrQueueFull instead of blocking.
	MaxPending int

	// PersistTimeout bounds each store upsert made by the worker.
	PersistTimeout time.Duration

	// QueueCapacity is the initial buffer capacity of the queue.
	QueueCapacity int
}

func (o Options) withDefaults() Options {
	if o.MaxPending < 0 {
		o.MaxPending = 0
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 64
	}
	return o
}
