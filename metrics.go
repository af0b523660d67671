package revsearch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives one call per store operation. Calls happen on
// the caller's goroutine after the operation returned.
type MetricsCollector interface {
	// RecordInsert reports a single Insert and its outcome.
	RecordInsert(duration time.Duration, err error)

	// RecordBatchInsert reports an InsertBatch of count reviews of which
	// failed were not appended.
	RecordBatchInsert(count, failed int, duration time.Duration)

	// RecordSearch reports a Search that asked for k results.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordRepair is called when Open had to reconcile the logs.
	RecordRepair(report RepairReport)
}

// NoopMetricsCollector discards everything. It is the default.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)         {}
func (NoopMetricsCollector) RecordBatchInsert(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordRepair(RepairReport)                 {}

// BasicMetricsCollector keeps atomic counters that the HTTP server exposes
// under /stats.
type BasicMetricsCollector struct {
	InsertCount       atomic.Int64
	InsertErrors      atomic.Int64
	InsertTotalNanos  atomic.Int64
	BatchInsertCount  atomic.Int64
	BatchInsertItems  atomic.Int64
	BatchInsertFailed atomic.Int64
	SearchCount       atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	RepairCount       atomic.Int64
	RepairDropped     atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordBatchInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchInsert(count, failed int, _ time.Duration) {
	b.BatchInsertCount.Add(1)
	b.BatchInsertItems.Add(int64(count))
	b.BatchInsertFailed.Add(int64(failed))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordRepair implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRepair(r RepairReport) {
	b.RepairCount.Add(1)
	b.RepairDropped.Add(int64(r.DroppedVectors + r.DroppedMetadata))
}

// GetStats loads every counter once. Counters are read independently, so
// the result may mix values from concurrent operations.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:       b.InsertCount.Load(),
		InsertErrors:      b.InsertErrors.Load(),
		InsertAvgNanos:    avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		BatchInsertCount:  b.BatchInsertCount.Load(),
		BatchInsertItems:  b.BatchInsertItems.Load(),
		BatchInsertFailed: b.BatchInsertFailed.Load(),
		SearchCount:       b.SearchCount.Load(),
		SearchErrors:      b.SearchErrors.Load(),
		SearchAvgNanos:    avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		RepairCount:       b.RepairCount.Load(),
		RepairDropped:     b.RepairDropped.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is the JSON form of BasicMetricsCollector.
type BasicMetricsStats struct {
	InsertCount       int64 `json:"insert_count"`
	InsertErrors      int64 `json:"insert_errors"`
	InsertAvgNanos    int64 `json:"insert_avg_nanos"`
	BatchInsertCount  int64 `json:"batch_insert_count"`
	BatchInsertItems  int64 `json:"batch_insert_items"`
	BatchInsertFailed int64 `json:"batch_insert_failed"`
	SearchCount       int64 `json:"search_count"`
	SearchErrors      int64 `json:"search_errors"`
	SearchAvgNanos    int64 `json:"search_avg_nanos"`
	RepairCount       int64 `json:"repair_count"`
	RepairDropped     int64 `json:"repair_dropped"`
}
