package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"homeclimate/internal/types"
)

// ReadingSink stores one reading.
type ReadingSink interface {
	WriteReading(ctx context.Context, r types.Reading) error
}

// SinkFunc adapts a function to ReadingSink.
type SinkFunc func(ctx context.Context, r types.Reading) error

// WriteReading implements ReadingSink.
func (f SinkFunc) WriteReading(ctx context.Context, r types.Reading) error {
	return f(ctx, r)
}

// FanOut writes to Primary and then to each Secondary. Only the primary error
// is returned; secondary failures are logged.
type FanOut struct {
	Primary   ReadingSink
	Secondary []ReadingSink
	Logger    *slog.Logger
}

// WriteReading implements ReadingSink.
func (f *FanOut) WriteReading(ctx context.Context, r types.Reading) error {
	if err := f.Primary.WriteReading(ctx, r); err != nil {
		return err
	}
	for _, s := range f.Secondary {
		if err := s.WriteReading(ctx, r); err != nil && f.Logger != nil {
			f.Logger.WarnContext(ctx, "secondary reading sink failed", "device_id", r.DeviceID, "error", err)
		}
	}
	return nil
}

// BatchWriter persists readings in bulk.
type BatchWriter interface {
	WriteReadings(ctx context.Context, readings []types.Reading) error
}

// BufferedSink collects readings and flushes them to a BatchWriter when the
// buffer reaches Size or every Interval, whichever comes first. Run must be
// started for interval flushes; size flushes happen inline.
type BufferedSink struct {
	writer   BatchWriter
	size     int
	interval time.Duration
	logger   *slog.Logger

	mu  sync.Mutex
	buf []types.Reading
}

// DefaultFlushInterval is used when NewBufferedSink gets a non-positive
// interval.
const DefaultFlushInterval = 5 * time.Second

// NewBufferedSink creates a BufferedSink. size < 1 is treated as 1.
func NewBufferedSink(w BatchWriter, size int, interval time.Duration, logger *slog.Logger) *BufferedSink {
	if size < 1 {
		size = 1
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BufferedSink{writer: w, size: size, interval: interval, logger: logger}
}

// WriteReading implements ReadingSink.
func (b *BufferedSink) WriteReading(ctx context.Context, r types.Reading) error {
	b.mu.Lock()
	b.buf = append(b.buf, r)
	full := len(b.buf) >= b.size
	b.mu.Unlock()

	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes any buffered readings. On error the readings are dropped so a
// broken archive cannot grow the buffer without bound.
func (b *BufferedSink) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.buf
	b.buf = nil
	b.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := b.writer.WriteReadings(ctx, pending); err != nil {
		b.logger.WarnContext(ctx, "dropping unarchived readings", "count", len(pending), "error", err)
		return err
	}
	return nil
}

// Pending returns the number of buffered readings.
func (b *BufferedSink) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Run flushes every interval until ctx is done, then flushes once more with a
// short grace period.
func (b *BufferedSink) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			_ = b.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			_ = b.Flush(ctx)
		}
	}
}
