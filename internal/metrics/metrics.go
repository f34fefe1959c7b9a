// Package metrics collects ledger and program counters: committed and failed
// transactions, compute usage, per-instruction counts, swap volume and fee
// balances. Backends implement Metrics; a Collection fans calls out to all of them.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Metrics is a metrics backend.
type Metrics interface {
	Initialize(ctx context.Context) error
	// Flush reports whatever the backend has buffered.
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error

	// UpdateGauge sets a value that moves both ways, such as a treasury balance.
	UpdateGauge(ctx context.Context, name string, value float64) error
	// IncrementCounter adds to a monotonically growing total.
	IncrementCounter(ctx context.Context, name string, value uint64) error
	// RecordHistogram adds one sample, such as the compute units of a transaction.
	RecordHistogram(ctx context.Context, name string, value float64) error
}

// Collection fans every call out to its backends. A nil Collection
// discards everything.
type Collection struct {
	backends []Metrics
}

func NewCollection(backends ...Metrics) *Collection {
	return &Collection{backends: backends}
}

// each calls fn on every backend. One failing backend does not stop the
// others; their errors are joined.
func (c *Collection) each(fn func(Metrics) error) error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, m := range c.backends {
		if err := fn(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Collection) Initialize(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Initialize(ctx) })
}

func (c *Collection) Flush(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Flush(ctx) })
}

func (c *Collection) Shutdown(ctx context.Context) error {
	return c.each(func(m Metrics) error { return m.Shutdown(ctx) })
}

func (c *Collection) UpdateGauge(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.UpdateGauge(ctx, name, value) })
}

func (c *Collection) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return c.each(func(m Metrics) error { return m.IncrementCounter(ctx, name, value) })
}

func (c *Collection) RecordHistogram(ctx context.Context, name string, value float64) error {
	return c.each(func(m Metrics) error { return m.RecordHistogram(ctx, name, value) })
}

// LogError reports a failed update of metric on logger. A nil err is ignored.
func LogError(logger *slog.Logger, metric string, err error) {
	if err == nil || logger == nil {
		return
	}
	logger.Warn("metrics update failed", "metric", metric, "error", err)
}

// LogMetrics keeps running totals in memory and writes them to slog on Flush.
// Tests read the totals back through Counter, Gauge and Histogram.
type LogMetrics struct {
	logger     *slog.Logger
	mu         sync.RWMutex
	gauges     map[string]float64
	counters   map[string]uint64
	histograms map[string]HistogramSummary
}

// HistogramSummary aggregates the values recorded under one histogram name.
type HistogramSummary struct {
	Count uint64
	Sum   float64
	Min   float64
	Max   float64
}

func (h HistogramSummary) add(v float64) HistogramSummary {
	if h.Count == 0 || v < h.Min {
		h.Min = v
	}
	if h.Count == 0 || v > h.Max {
		h.Max = v
	}
	h.Count++
	h.Sum += v
	return h
}

// NewLogMetrics creates a new LogMetrics with the given logger.
// If logger is nil, the default logger is used.
func NewLogMetrics(logger *slog.Logger) *LogMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMetrics{
		logger:     logger,
		gauges:     make(map[string]float64),
		counters:   make(map[string]uint64),
		histograms: make(map[string]HistogramSummary),
	}
}

func (l *LogMetrics) Initialize(ctx context.Context) error {
	l.logger.Info("metrics initialized")
	return nil
}

func (l *LogMetrics) Flush(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	l.logger.Info("metrics flush",
		"gauges", l.gauges,
		"counters", l.counters,
		"histograms", l.histograms,
	)
	return nil
}

func (l *LogMetrics) Shutdown(ctx context.Context) error {
	l.logger.Info("metrics shutdown")
	return nil
}

func (l *LogMetrics) UpdateGauge(ctx context.Context, name string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gauges[name] = value
	l.logger.Debug("gauge updated", "name", name, "value", value)
	return nil
}

func (l *LogMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counters[name] += value
	l.logger.Debug("counter incremented", "name", name, "value", value, "total", l.counters[name])
	return nil
}

func (l *LogMetrics) RecordHistogram(ctx context.Context, name string, value float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.histograms[name] = l.histograms[name].add(value)
	l.logger.Debug("histogram recorded", "name", name, "value", value)
	return nil
}

// Counter returns the current total of a counter.
func (l *LogMetrics) Counter(name string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counters[name]
}

// Gauge returns the last value of a gauge.
func (l *LogMetrics) Gauge(name string) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.gauges[name]
	return v, ok
}

// Histogram returns the aggregate of a histogram.
func (l *LogMetrics) Histogram(name string) HistogramSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.histograms[name]
}

// Metric names.
const (
	MetricTransactionsCommitted = "ledger.transactions.committed"
	MetricTransactionsFailed    = "ledger.transactions.failed"
	MetricTransactionsConflicts = "ledger.transactions.account_in_use"
	MetricComputeUnits          = "ledger.compute_units"
	MetricAccountsPersisted     = "storage.accounts.persisted"
	MetricStorageFailures       = "storage.failures"
	MetricLedgerSlot            = "ledger.slot"
	MetricInstructionsFailed    = "fixedratio.instructions.failed"
	MetricSwapAmountIn          = "fixedratio.swap.amount_in"
	MetricTreasuryBalance       = "fixedratio.treasury.balance"
	MetricPoolsCreated          = "fixedratio.pools.created"
)

// InstructionCounter names the per-instruction success counter.
func InstructionCounter(instruction string) string {
	return "fixedratio.instructions." + instruction
}
