package xexport

import (
	"context"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xotel/pkg/observability/xbatch"
	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xmetrics"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
)

// Memory 在内存中保存导出的数据。
type Memory[T any] struct {
	mu       sync.Mutex
	items    []T
	batches  int
	shutdown bool
}

// NewMemory 创建内存导出器。
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{}
}

// NewMemoryLogs 日志内存导出器。
func NewMemoryLogs() *Memory[xlog.Record] { return NewMemory[xlog.Record]() }

// NewMemorySpans span 内存导出器。
func NewMemorySpans() *Memory[xtrace.SpanData] { return NewMemory[xtrace.SpanData]() }

// Export 追加 batch 的副本。
func (m *Memory[T]) Export(_ context.Context, batch []T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, batch...)
	m.batches++
	return nil
}

// Shutdown 标记已关闭，数据保留。
func (m *Memory[T]) Shutdown(context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
	return nil
}

// Items 返回已导出数据的副本。
func (m *Memory[T]) Items() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.items)
}

// Batches 返回 Export 调用次数。
func (m *Memory[T]) Batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

// IsShutdown 是否已调用 Shutdown。
func (m *Memory[T]) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

// Reset 清空数据。
func (m *Memory[T]) Reset() {
	m.mu.Lock()
	m.items = nil
	m.batches = 0
	m.mu.Unlock()
}

// MemoryMetrics 保存每次导出的指标快照。
type MemoryMetrics struct {
	mu        sync.Mutex
	snapshots []*metricdata.ResourceMetrics
	shutdown  bool
}

// NewMemoryMetrics 创建指标内存导出器。
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{}
}

// Export 保存快照。
func (m *MemoryMetrics) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	m.mu.Lock()
	m.snapshots = append(m.snapshots, rm)
	m.mu.Unlock()
	return nil
}

// Shutdown 标记已关闭。
func (m *MemoryMetrics) Shutdown(context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
	return nil
}

// Snapshots 返回全部快照。
func (m *MemoryMetrics) Snapshots() []*metricdata.ResourceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.snapshots)
}

// Last 返回最近一次快照，没有时为 nil。
func (m *MemoryMetrics) Last() *metricdata.ResourceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return nil
	}
	return m.snapshots[len(m.snapshots)-1]
}

// IsShutdown 是否已调用 Shutdown。
func (m *MemoryMetrics) IsShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown
}

var (
	_ xbatch.Exporter[xlog.Record] = (*Memory[xlog.Record])(nil)
	_ xmetrics.Exporter            = (*MemoryMetrics)(nil)
)
