package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "prism"

// Metrics holds all OTEL metric instruments for the pipeline.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// Generation task counter (partitioned by outcome: ok, error)
	GenerationTasks metric.Int64Counter

	// Response cache counters
	ResponseCacheHits   metric.Int64Counter
	ResponseCacheMisses metric.Int64Counter

	// Evaluator runs (partitioned by method)
	EvaluatorRuns metric.Int64Counter

	// Document persistence (partitioned by outcome: ok, error)
	DocumentsPersisted metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.GenerationTasks, err = meter.Int64Counter("generation.tasks",
		metric.WithDescription("Generation tasks settled, partitioned by outcome (ok, error)"))
	if err != nil {
		return nil, err
	}

	m.ResponseCacheHits, err = meter.Int64Counter("response_cache.hits",
		metric.WithDescription("Number of response cache hits (identical request served without a backend call)"))
	if err != nil {
		return nil, err
	}

	m.ResponseCacheMisses, err = meter.Int64Counter("response_cache.misses",
		metric.WithDescription("Number of response cache misses"))
	if err != nil {
		return nil, err
	}

	m.EvaluatorRuns, err = meter.Int64Counter("evaluator.runs",
		metric.WithDescription("Evaluator executions, partitioned by method name"))
	if err != nil {
		return nil, err
	}

	m.DocumentsPersisted, err = meter.Int64Counter("documents.persisted",
		metric.WithDescription("Comparison documents handed to the storage gateway, partitioned by outcome"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTask records one settled generation task with the given outcome.
func (m *Metrics) RecordTask(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.GenerationTasks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task.outcome", outcome),
	))
}

// RecordCache records response cache effectiveness counts.
func (m *Metrics) RecordCache(ctx context.Context, hits, misses int64) {
	if m == nil {
		return
	}
	if hits > 0 {
		m.ResponseCacheHits.Add(ctx, hits)
	}
	if misses > 0 {
		m.ResponseCacheMisses.Add(ctx, misses)
	}
}

// RecordEvaluator records one evaluator execution.
func (m *Metrics) RecordEvaluator(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.EvaluatorRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("evaluator.method", method),
	))
}

// RecordPersist records one persistence attempt.
func (m *Metrics) RecordPersist(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.DocumentsPersisted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("persist.outcome", outcome),
	))
}
