// Package evaluator scores generated responses after the generation phase
// has settled.
//
// An evaluator is a tagged variant behind one interface: it receives the
// full generated set (one input per prompt) and returns a partial result
// bundle. The registry selects evaluators by requested method tag and runs
// them sequentially; a failing evaluator aborts the run.
package evaluator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prismbench/prism/internal/model"
	ppotel "github.com/prismbench/prism/internal/otel"
)

var tracer = otel.Tracer("prism/evaluator")

// Method tags accepted in a run's method set.
const (
	MethodEmbeddingSimilarity = "embedding_similarity"
	MethodLLMCoverage         = "llm_coverage"
)

// Evaluator scores one run's generated responses.
type Evaluator interface {
	// MethodName returns the tag this evaluator is selected by.
	MethodName() string

	// Evaluate scores the full generated set and returns a partial bundle.
	// The inputs are read-only.
	Evaluate(ctx context.Context, inputs []model.EvalInput) (model.ResultBundle, error)
}

// Registry holds the closed set of available evaluators in configured order.
type Registry struct {
	evaluators []Evaluator
	// Metrics counts evaluator runs; nil-safe.
	Metrics *ppotel.Metrics
}

// NewRegistry creates a registry over the given evaluators. Order matters:
// when two evaluators write the same result table, the later one wins.
func NewRegistry(evaluators ...Evaluator) *Registry {
	return &Registry{evaluators: evaluators}
}

// Select returns the registered evaluators whose tag is in methods,
// preserving registration order. An unknown tag yields an error so a
// mistyped method name fails loudly instead of silently skipping.
func (r *Registry) Select(methods []string) ([]Evaluator, error) {
	byTag := make(map[string]Evaluator, len(r.evaluators))
	for _, ev := range r.evaluators {
		byTag[ev.MethodName()] = ev
	}
	requested := make(map[string]bool, len(methods))
	for _, m := range methods {
		if _, ok := byTag[m]; !ok {
			return nil, fmt.Errorf("unknown evaluation method %q", m)
		}
		requested[m] = true
	}

	var selected []Evaluator
	for _, ev := range r.evaluators {
		if requested[ev.MethodName()] {
			selected = append(selected, ev)
		}
	}
	return selected, nil
}

// Run executes the selected evaluators sequentially over inputs and merges
// each partial bundle into the running one. Evaluators are not isolated
// from each other: the first failure aborts the run and the partial bundle
// is discarded.
func (r *Registry) Run(ctx context.Context, methods []string, inputs []model.EvalInput) (model.ResultBundle, error) {
	selected, err := r.Select(methods)
	if err != nil {
		return model.ResultBundle{}, err
	}

	var bundle model.ResultBundle
	for _, ev := range selected {
		evCtx, span := tracer.Start(ctx, "evaluate",
			trace.WithAttributes(
				attribute.String("evaluator.method", ev.MethodName()),
				attribute.Int("evaluator.prompts", len(inputs)),
			))
		partial, err := ev.Evaluate(evCtx, inputs)
		span.End()
		if err != nil {
			return model.ResultBundle{}, fmt.Errorf("evaluator %s: %w", ev.MethodName(), err)
		}
		r.Metrics.RecordEvaluator(ctx, ev.MethodName())
		bundle.Merge(partial)
	}
	return bundle, nil
}
