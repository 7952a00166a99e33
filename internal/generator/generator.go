// Package generator fans the blueprint's cartesian product of
// (prompt × model × temperature × system-prompt variant) out over the model
// provider under bounded concurrency, producing exactly one response record
// per combination.
package generator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/prismbench/prism/internal/model"
	"github.com/prismbench/prism/internal/modelid"
	ppotel "github.com/prismbench/prism/internal/otel"
	"github.com/prismbench/prism/internal/progress"
	"github.com/prismbench/prism/internal/provider"
	"github.com/prismbench/prism/internal/runid"
)

var tracer = otel.Tracer("prism/generator")

// DefaultConcurrency bounds in-flight provider calls when the blueprint
// does not say otherwise.
const DefaultConcurrency = 10

// Generator runs the generation phase of a comparison run.
type Generator struct {
	Provider provider.Provider
	// UseCache forwards the cache flag to every provider call.
	UseCache bool
	// Tracker receives per-task state transitions; nil disables tracking.
	Tracker *progress.Tracker
	// Metrics are the OTEL counters; nil-safe.
	Metrics *ppotel.Metrics
	// SessionID groups all spans of one run.
	SessionID string
}

// task is one cell of the cartesian product.
type task struct {
	promptIdx   int
	modelID     string
	arrayTemp   *float64 // non-nil iff the blueprint permutes temperatures
	sysVariant  *string
	sysIdx      int
	sysCount    int
	permutingSP bool
}

// taskResult pairs a settled task with its record. Each goroutine writes to
// a distinct slice slot, so no locking is needed during the fan-out.
type taskResult struct {
	promptIdx   int
	effectiveID string
	record      model.ResponseRecord
}

// Generate runs every task to completion and returns one response set per
// prompt, in blueprint prompt order. The call is a hard phase barrier: it
// returns only once all tasks have settled. Individual task failures are
// absorbed into their records and never abort the batch.
func (g *Generator) Generate(ctx context.Context, bp *model.Blueprint) ([]*model.PromptResponseSet, error) {
	temps := temperatureSet(bp)
	sysVariants, permuting := systemVariantSet(bp)

	tasks := make([]task, 0, len(bp.Prompts)*len(bp.Models)*len(temps)*len(sysVariants))
	for pi := range bp.Prompts {
		for _, m := range bp.Models {
			for _, tv := range temps {
				for si, sv := range sysVariants {
					var arrayTemp *float64
					if len(bp.Temperatures) > 0 {
						arrayTemp = tv
					}
					tasks = append(tasks, task{
						promptIdx:   pi,
						modelID:     m,
						arrayTemp:   arrayTemp,
						sysVariant:  sv,
						sysIdx:      si,
						sysCount:    len(sysVariants),
						permutingSP: permuting,
					})
				}
			}
		}
	}

	ctx, span := tracer.Start(ctx, "generate",
		trace.WithAttributes(
			attribute.String("run.session_id", g.SessionID),
			attribute.Int("blueprint.prompts", len(bp.Prompts)),
			attribute.Int("blueprint.models", len(bp.Models)),
			attribute.Int("generate.tasks", len(tasks)),
		))
	defer span.End()

	concurrency := bp.Concurrency
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if concurrency > len(tasks) {
		concurrency = len(tasks)
	}

	results := make([]taskResult, len(tasks))

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, tk := range tasks {
		wg.Add(1)
		go func(idx int, tk task) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = g.runTask(ctx, bp, tk)
		}(i, tk)
	}

	wg.Wait()

	// Fold the settled results into per-prompt containers.
	sets := make([]*model.PromptResponseSet, len(bp.Prompts))
	for i, p := range bp.Prompts {
		sets[i] = &model.PromptResponseSet{
			PromptID:      p.ID,
			InputMessages: p.InputMessages(),
			IdealText:     p.IdealResponse,
			Responses:     make(map[string]model.ResponseRecord),
		}
	}
	errored := 0
	for _, r := range results {
		sets[r.promptIdx].Responses[r.effectiveID] = r.record
		if r.record.HasError {
			errored++
		}
	}

	span.SetAttributes(
		attribute.Int("generate.errored", errored),
	)
	return sets, nil
}

// runTask resolves one task's effective parameters, invokes the provider,
// and builds the response record. Provider failures are absorbed: the
// record still carries a well-formed history ending in an assistant turn.
func (g *Generator) runTask(ctx context.Context, bp *model.Blueprint, tk task) taskResult {
	prompt := bp.Prompts[tk.promptIdx]

	sys := resolveSystemPrompt(tk.permutingSP, tk.sysVariant, prompt.System, bp.SystemPrompt)
	temp := resolveTemperature(tk.arrayTemp, prompt.Temperature, bp.Temperature)

	callTemp := DefaultTemperature
	if temp != nil {
		callTemp = *temp
	}

	var sysHash string
	if tk.permutingSP && tk.sysVariant != nil {
		sysHash = runid.SystemPromptHash(*tk.sysVariant)
	}
	effectiveID := modelid.Format(tk.modelID, temp, sysHash, tk.sysIdx, tk.sysCount)

	g.trackTask(prompt.ID, effectiveID, progress.StateRunning, "")

	// Prepend the resolved system prompt only when the prompt's own
	// conversation does not already open with one.
	messages := append([]model.Message(nil), prompt.InputMessages()...)
	if sys != nil && !model.HasSystemMessage(messages) {
		messages = append([]model.Message{{Role: model.RoleSystem, Content: *sys}}, messages...)
	}

	record := model.ResponseRecord{SystemPromptUsed: sys}

	text, err := g.Provider.GetResponse(ctx, tk.modelID, messages, callTemp, g.UseCache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s × %s: %v\n", prompt.ID, effectiveID, err)
		record.FinalText = "ERROR: " + err.Error()
		record.HasError = true
		record.ErrorMessage = err.Error()
		g.Metrics.RecordTask(ctx, "error")
		g.trackTask(prompt.ID, effectiveID, progress.StateFailed, err.Error())
	} else {
		record.FinalText = text
		if model.IsErrorMarker(text) {
			record.HasError = true
			record.ErrorMessage = text
			g.Metrics.RecordTask(ctx, "error")
			g.trackTask(prompt.ID, effectiveID, progress.StateFailed, text)
		} else {
			g.Metrics.RecordTask(ctx, "ok")
			g.trackTask(prompt.ID, effectiveID, progress.StateDone, "")
		}
	}

	// The assistant turn is appended unconditionally so every record's
	// history is well-formed, errors included.
	record.History = append(messages, model.Message{Role: model.RoleAssistant, Content: record.FinalText})

	return taskResult{promptIdx: tk.promptIdx, effectiveID: effectiveID, record: record}
}

func (g *Generator) trackTask(promptID, effectiveID, state, message string) {
	if g.Tracker == nil {
		return
	}
	g.Tracker.Record(progress.TaskEvent{
		PromptID:       promptID,
		EffectiveModel: effectiveID,
		State:          state,
		TS:             time.Now().UTC(),
		Message:        message,
	})
}
