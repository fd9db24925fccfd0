package analytics

import (
	"context"
	"log/slog"
	"sync"
)

// Sink receives tracked events on the collector goroutine.
type Sink interface {
	Record(event any)
}

// Collector decouples request handlers from the aggregator: Track never
// blocks and drops events when the buffer is full.
type Collector struct {
	sink    Sink
	eventCh chan any
	logger  *slog.Logger
	done    chan struct{}
	once    sync.Once
}

func NewCollector(sink Sink, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		sink:    sink,
		eventCh: make(chan any, bufferSize),
		logger:  slog.Default().With("component", "analytics-collector"),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery loop. It runs until ctx is cancelled or Close
// is called, delivering whatever is still buffered before it exits.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.sink.Record(event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

func (c *Collector) Track(event any) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops accepting events and waits for buffered ones to be delivered.
// Track must not be called after Close.
func (c *Collector) Close() {
	c.once.Do(func() { close(c.eventCh) })
	<-c.done
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.sink.Record(event)
		default:
			return
		}
	}
}
