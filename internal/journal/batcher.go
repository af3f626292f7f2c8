package journal

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/screen-narrator/internal/trace"
)

// FlushFunc persists one batch. Batches are handed over in Add order.
type FlushFunc[T any] func(ctx context.Context, items []T) error

// Batcher accumulates journal rows and flushes them in batches.
type Batcher[T any] struct {
	name       string
	flush      FlushFunc[T]
	maxSize    int
	flushDelay time.Duration
	mu         sync.Mutex
	items      []T
	timer      *time.Timer
	stopped    bool
	flushMu    sync.Mutex // serializes flushes so batches land in order
	wg         sync.WaitGroup
}

// NewBatcher creates a batcher that calls flush when maxSize rows are queued
// or flushDelay has passed since the last Add.
func NewBatcher[T any](name string, flush FlushFunc[T], maxSize int, flushDelay time.Duration) *Batcher[T] {
	if maxSize <= 0 {
		maxSize = DefaultBatcherMaxSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultBatcherFlushDelay
	}
	return &Batcher[T]{
		name:       name,
		flush:      flush,
		maxSize:    maxSize,
		flushDelay: flushDelay,
		items:      make([]T, 0, maxSize),
	}
}

// Add queues an item. It reports false once the batcher is stopped.
func (b *Batcher[T]) Add(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return false
	}

	b.items = append(b.items, item)

	if len(b.items) >= b.maxSize {
		b.flushLocked()
		return true
	}

	// Start or reset timer for delayed flush
	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.timerFlush)
	} else {
		b.timer.Reset(b.flushDelay)
	}
	return true
}

// Pending returns the number of queued, unflushed items.
func (b *Batcher[T]) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *Batcher[T]) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Batcher[T]) flushLocked() {
	if len(b.items) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	items := b.items
	b.items = make([]T, 0, b.maxSize)

	// Taking flushMu before releasing mu keeps batches in Add order.
	b.wg.Add(1)
	ready := make(chan struct{})
	go func() {
		defer b.wg.Done()
		b.flushMu.Lock()
		close(ready)
		defer b.flushMu.Unlock()

		ctx, span := trace.StartSpan(context.Background(), "journal_batch_flush")
		defer span.End()
		span.SetAttr("batcher", b.name)
		span.SetAttr("count", len(items))

		log := trace.Logger(ctx)
		if err := b.flush(ctx, items); err != nil {
			span.Fail(err)
			log.Warn("journal batch flush failed", "batcher", b.name, "error", err, "count", len(items))
			return
		}
		log.Debug("journal batch flushed", "batcher", b.name, "count", len(items))
	}()
	<-ready
}

// Flush forces immediate flush of pending items.
func (b *Batcher[T]) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Sync flushes pending items and waits until every started flush finishes.
func (b *Batcher[T]) Sync() {
	b.Flush()
	b.wg.Wait()
}

// Stop stops the batcher, flushes remaining items, and waits for in-flight flushes.
func (b *Batcher[T]) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		b.wg.Wait()
		return
	}
	b.stopped = true
	b.flushLocked()
	b.mu.Unlock()
	b.wg.Wait()
}
