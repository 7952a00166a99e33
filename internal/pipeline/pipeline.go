// Package pipeline orchestrates one comparison run: generation to a hard
// barrier, sequential evaluation, aggregation, and a single terminal write.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prismbench/prism/internal/aggregator"
	"github.com/prismbench/prism/internal/evaluator"
	"github.com/prismbench/prism/internal/generator"
	"github.com/prismbench/prism/internal/model"
	ppotel "github.com/prismbench/prism/internal/otel"
	"github.com/prismbench/prism/internal/runid"
	"github.com/prismbench/prism/internal/storage"
)

var tracer = otel.Tracer("prism/pipeline")

// Pipeline wires one run's collaborators together.
type Pipeline struct {
	Generator *generator.Generator
	Registry  *evaluator.Registry
	Gateway   storage.Gateway
	// Metrics counts persisted documents; nil-safe.
	Metrics *ppotel.Metrics
	Logger  *slog.Logger

	// Now supplies the run timestamp; time.Now when nil.
	Now func() time.Time
}

// Options selects per-run behavior.
type Options struct {
	// RunLabel is the user-supplied label; empty means the content hash alone.
	RunLabel string
	// Methods is the requested evaluation method set; empty skips evaluation.
	Methods []string
	// OmitHistories drops full per-turn histories from the document.
	OmitHistories bool
	// SkipPersist builds the document without writing it.
	SkipPersist bool
}

// Result is the outcome of one run. FileName is empty when the document was
// not persisted, whether by choice or because the gateway failed.
type Result struct {
	Document *model.ComparisonDocument
	FileName string
}

// Execute runs the full pipeline over a validated blueprint. Generation
// failures are absorbed into the document; an evaluator failure aborts the
// run before anything is persisted; a persistence failure is logged and the
// in-memory document is still returned.
func (p *Pipeline) Execute(ctx context.Context, bp *model.Blueprint, opts Options) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.execute",
		trace.WithAttributes(
			attribute.String("blueprint.id", bp.ID),
			attribute.String("run.label", opts.RunLabel),
		))
	defer span.End()

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	sets, err := p.Generator.Generate(ctx, bp)
	if err != nil {
		return nil, fmt.Errorf("generation phase: %w", err)
	}

	evaluations, err := p.evaluate(ctx, bp, sets, opts.Methods)
	if err != nil {
		return nil, err
	}

	label := runid.RunLabel(opts.RunLabel, bp)
	timestamp := now().UTC()
	doc, err := aggregator.Build(bp, sets, evaluations, aggregator.Options{
		RunLabel:      label,
		Timestamp:     timestamp.Format(time.RFC3339),
		OmitHistories: opts.OmitHistories,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Document: doc}
	if opts.SkipPersist {
		return result, nil
	}

	fileName := runid.OutputFileName(label, timestamp)
	if err := p.Gateway.Save(ctx, doc.ConfigID, fileName, doc); err != nil {
		// The run is still successful; the caller gets the in-memory
		// document with no file reference.
		logger.Error("persist failed", "config_id", doc.ConfigID, "file_name", fileName, "error", err)
		p.Metrics.RecordPersist(ctx, "error")
		return result, nil
	}
	p.Metrics.RecordPersist(ctx, "ok")
	logger.Info("run persisted", "config_id", doc.ConfigID, "file_name", fileName)

	result.FileName = fileName
	return result, nil
}

// evaluate runs the selected evaluators over the settled generation output.
func (p *Pipeline) evaluate(ctx context.Context, bp *model.Blueprint, sets []*model.PromptResponseSet, methods []string) (model.ResultBundle, error) {
	if len(methods) == 0 || p.Registry == nil {
		return model.ResultBundle{}, nil
	}

	inputs := make([]model.EvalInput, len(sets))
	for i, set := range sets {
		ids := make([]string, 0, len(set.Responses))
		for id := range set.Responses {
			ids = append(ids, id)
		}
		inputs[i] = model.EvalInput{Prompt: set, Blueprint: bp, EffectiveModels: ids}
	}

	bundle, err := p.Registry.Run(ctx, methods, inputs)
	if err != nil {
		return model.ResultBundle{}, fmt.Errorf("evaluation phase: %w", err)
	}
	return bundle, nil
}
