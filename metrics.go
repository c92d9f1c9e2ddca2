package codearc

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/codearc/format"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    storeCounter  prometheus.Counter
//	    loadHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordStore(kind format.Kind, duration time.Duration, err error) {
//	    p.storeCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordStore is called after each store operation.
	// duration is the total time taken, err is nil if successful.
	RecordStore(kind format.Kind, duration time.Duration, err error)

	// RecordLoad is called after each load operation. A miss reports
	// ErrNotFound; hit and miss both count as loads.
	RecordLoad(kind format.Kind, duration time.Duration, err error)

	// RecordInvalidate is called after each entry invalidation.
	RecordInvalidate()

	// RecordFinalize is called once when a write session finalizes.
	// entries and size describe the finished archive.
	RecordFinalize(entries, size int, duration time.Duration, err error)

	// RecordTransfer is called after each publish or fetch through a blob
	// store. direction is "publish" or "fetch".
	RecordTransfer(direction string, bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStore(format.Kind, time.Duration, error)    {}
func (NoopMetricsCollector) RecordLoad(format.Kind, time.Duration, error)     {}
func (NoopMetricsCollector) RecordInvalidate()                                {}
func (NoopMetricsCollector) RecordFinalize(int, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordTransfer(string, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	StoreCount      atomic.Int64
	StoreErrors     atomic.Int64
	StoreTotalNanos atomic.Int64
	LoadCount       atomic.Int64
	LoadMisses      atomic.Int64
	LoadErrors      atomic.Int64
	LoadTotalNanos  atomic.Int64
	InvalidateCount atomic.Int64
	FinalizeCount   atomic.Int64
	FinalizeErrors  atomic.Int64
	ArchiveEntries  atomic.Int64
	ArchiveBytes    atomic.Int64
	TransferCount   atomic.Int64
	TransferErrors  atomic.Int64
	TransferBytes   atomic.Int64
}

// RecordStore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStore(kind format.Kind, duration time.Duration, err error) {
	b.StoreCount.Add(1)
	b.StoreTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.StoreErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(kind format.Kind, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	switch {
	case err == nil:
	case err == ErrNotFound:
		b.LoadMisses.Add(1)
	default:
		b.LoadErrors.Add(1)
	}
}

// RecordInvalidate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInvalidate() {
	b.InvalidateCount.Add(1)
}

// RecordFinalize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFinalize(entries, size int, duration time.Duration, err error) {
	b.FinalizeCount.Add(1)
	if err != nil {
		b.FinalizeErrors.Add(1)
		return
	}
	b.ArchiveEntries.Store(int64(entries))
	b.ArchiveBytes.Store(int64(size))
}

// RecordTransfer implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTransfer(direction string, bytes int, duration time.Duration, err error) {
	b.TransferCount.Add(1)
	if err != nil {
		b.TransferErrors.Add(1)
		return
	}
	b.TransferBytes.Add(int64(bytes))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		StoreCount:      b.StoreCount.Load(),
		StoreErrors:     b.StoreErrors.Load(),
		StoreAvgNanos:   b.getAvgStoreNanos(),
		LoadCount:       b.LoadCount.Load(),
		LoadMisses:      b.LoadMisses.Load(),
		LoadErrors:      b.LoadErrors.Load(),
		LoadAvgNanos:    b.getAvgLoadNanos(),
		InvalidateCount: b.InvalidateCount.Load(),
		FinalizeCount:   b.FinalizeCount.Load(),
		FinalizeErrors:  b.FinalizeErrors.Load(),
		ArchiveEntries:  b.ArchiveEntries.Load(),
		ArchiveBytes:    b.ArchiveBytes.Load(),
		TransferCount:   b.TransferCount.Load(),
		TransferErrors:  b.TransferErrors.Load(),
		TransferBytes:   b.TransferBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgStoreNanos() int64 {
	count := b.StoreCount.Load()
	if count == 0 {
		return 0
	}
	return b.StoreTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgLoadNanos() int64 {
	count := b.LoadCount.Load()
	if count == 0 {
		return 0
	}
	return b.LoadTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	StoreCount      int64
	StoreErrors     int64
	StoreAvgNanos   int64
	LoadCount       int64
	LoadMisses      int64
	LoadErrors      int64
	LoadAvgNanos    int64
	InvalidateCount int64
	FinalizeCount   int64
	FinalizeErrors  int64
	ArchiveEntries  int64
	ArchiveBytes    int64
	TransferCount   int64
	TransferErrors  int64
	TransferBytes   int64
}
