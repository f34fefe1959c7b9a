// Package processor defines the Processor interface the ledger hands each
// committed transaction to, plus combinators for composing processors.
//
// Processors run synchronously after the commit they observe, so anything
// slow belongs behind a BatchProcessor or in its own goroutine.
package processor

import (
	"context"
	"sync"

	"github.com/lugondev/fixed-ratio-trading/internal/metrics"
)

// Processor handles one item of type T.
type Processor[T any] interface {
	// Process handles the given data. The metrics collection may be nil.
	Process(ctx context.Context, data T, metrics *metrics.Collection) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc[T any] func(ctx context.Context, data T, metrics *metrics.Collection) error

func (f ProcessorFunc[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	return f(ctx, data, metrics)
}

// NoopProcessor discards its input.
type NoopProcessor[T any] struct{}

func NewNoopProcessor[T any]() *NoopProcessor[T] {
	return &NoopProcessor[T]{}
}

func (p *NoopProcessor[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	return nil
}

// ChainedProcessor calls each processor in order and stops at the first
// error.
type ChainedProcessor[T any] struct {
	processors []Processor[T]
}

func NewChainedProcessor[T any](processors ...Processor[T]) *ChainedProcessor[T] {
	return &ChainedProcessor[T]{processors: processors}
}

// Add appends p to the chain. It must not be called concurrently with
// Process.
func (c *ChainedProcessor[T]) Add(p Processor[T]) {
	c.processors = append(c.processors, p)
}

func (c *ChainedProcessor[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	for _, p := range c.processors {
		if err := p.Process(ctx, data, metrics); err != nil {
			return err
		}
	}
	return nil
}

// ConditionalProcessor forwards only items for which condition holds.
type ConditionalProcessor[T any] struct {
	processor Processor[T]
	condition func(T) bool
}

func NewConditionalProcessor[T any](processor Processor[T], condition func(T) bool) *ConditionalProcessor[T] {
	return &ConditionalProcessor[T]{
		processor: processor,
		condition: condition,
	}
}

func (c *ConditionalProcessor[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	if c.condition(data) {
		return c.processor.Process(ctx, data, metrics)
	}
	return nil
}

// ErrorHandlingProcessor passes the wrapped processor's errors through
// errorHandler, which may swallow them by returning nil.
type ErrorHandlingProcessor[T any] struct {
	processor    Processor[T]
	errorHandler func(error) error
}

func NewErrorHandlingProcessor[T any](processor Processor[T], errorHandler func(error) error) *ErrorHandlingProcessor[T] {
	return &ErrorHandlingProcessor[T]{
		processor:    processor,
		errorHandler: errorHandler,
	}
}

func (e *ErrorHandlingProcessor[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	err := e.processor.Process(ctx, data, metrics)
	if err != nil && e.errorHandler != nil {
		return e.errorHandler(err)
	}
	return err
}

// BatchProcessor buffers items and hands them to the wrapped processor
// batchSize at a time. It is safe for concurrent use; Flush drains a
// partial batch.
type BatchProcessor[T any] struct {
	processor Processor[[]T]
	batchSize int

	mu     sync.Mutex
	buffer []T
}

func NewBatchProcessor[T any](processor Processor[[]T], batchSize int) *BatchProcessor[T] {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchProcessor[T]{
		processor: processor,
		batchSize: batchSize,
		buffer:    make([]T, 0, batchSize),
	}
}

func (b *BatchProcessor[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	b.mu.Lock()
	b.buffer = append(b.buffer, data)
	var batch []T
	if len(b.buffer) >= b.batchSize {
		batch = b.take()
	}
	b.mu.Unlock()

	if batch == nil {
		return nil
	}
	return b.processor.Process(ctx, batch, metrics)
}

// Flush processes whatever is buffered.
func (b *BatchProcessor[T]) Flush(ctx context.Context, metrics *metrics.Collection) error {
	b.mu.Lock()
	batch := b.take()
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return b.processor.Process(ctx, batch, metrics)
}

// take hands off the buffer; the caller holds mu.
func (b *BatchProcessor[T]) take() []T {
	if len(b.buffer) == 0 {
		return nil
	}
	batch := b.buffer
	b.buffer = make([]T, 0, b.batchSize)
	return batch
}

// Buffered returns the number of items waiting for the next batch.
func (b *BatchProcessor[T]) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}
