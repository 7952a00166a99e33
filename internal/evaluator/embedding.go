package evaluator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/prismbench/prism/internal/model"
	"github.com/prismbench/prism/internal/modelid"
)

// DefaultEmbeddingModel is used when the evaluator is built without one.
const DefaultEmbeddingModel = "text-embedding-3-small"

// defaultEmbedParallel bounds concurrent embedding batches.
const defaultEmbedParallel = 4

// Embedder turns a batch of texts into vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, embedModel string, texts []string) ([][]float64, error)
}

// EmbeddingEvaluator scores response similarity with cosine distance over
// text embeddings. It produces one model×model matrix per prompt plus a
// run-wide matrix averaging each pair over the prompts where both models
// responded. The ideal response, when present, participates under the
// reserved ideal-model id.
type EmbeddingEvaluator struct {
	Embedder Embedder
	// Model is the embedding model name; DefaultEmbeddingModel when empty.
	Model string
	// Parallel bounds concurrent embed calls; defaultEmbedParallel when < 1.
	Parallel int
}

func (e *EmbeddingEvaluator) MethodName() string { return MethodEmbeddingSimilarity }

// Evaluate embeds every prompt's responses (one batch per prompt, batches
// in parallel) and builds the similarity tables. Errored responses carry
// error text, not model output, so they are excluded.
func (e *EmbeddingEvaluator) Evaluate(ctx context.Context, inputs []model.EvalInput) (model.ResultBundle, error) {
	embedModel := e.Model
	if embedModel == "" {
		embedModel = DefaultEmbeddingModel
	}
	parallel := e.Parallel
	if parallel < 1 {
		parallel = defaultEmbedParallel
	}

	perPrompt := make([]map[string]map[string]float64, len(inputs))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, in := range inputs {
		g.Go(func() error {
			ids, texts := embeddableTexts(in)
			if len(ids) < 2 {
				// Nothing to compare against.
				return nil
			}
			vectors, err := e.Embedder.Embed(gctx, embedModel, texts)
			if err != nil {
				return fmt.Errorf("embed prompt %s: %w", in.Prompt.PromptID, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("embed prompt %s: got %d vectors for %d texts", in.Prompt.PromptID, len(vectors), len(texts))
			}

			matrix := make(map[string]map[string]float64, len(ids))
			for a, idA := range ids {
				row := make(map[string]float64, len(ids))
				for b, idB := range ids {
					row[idB] = cosineSimilarity(vectors[a], vectors[b])
				}
				matrix[idA] = row
			}

			mu.Lock()
			perPrompt[i] = matrix
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.ResultBundle{}, err
	}

	bundle := model.ResultBundle{
		PerPromptSimilarities: make(map[string]map[string]map[string]float64),
	}
	for i, in := range inputs {
		if perPrompt[i] != nil {
			bundle.PerPromptSimilarities[in.Prompt.PromptID] = perPrompt[i]
		}
	}
	bundle.SimilarityMatrix = averageMatrix(perPrompt)
	return bundle, nil
}

// embeddableTexts collects (effective id, text) pairs for one prompt in a
// stable order: the prompt's effective models sorted, then the ideal.
func embeddableTexts(in model.EvalInput) (ids []string, texts []string) {
	models := append([]string(nil), in.EffectiveModels...)
	sort.Strings(models)
	for _, id := range models {
		rec, ok := in.Prompt.Responses[id]
		if !ok || rec.HasError || rec.FinalText == "" {
			continue
		}
		ids = append(ids, id)
		texts = append(texts, rec.FinalText)
	}
	if in.Prompt.IdealText != "" {
		ids = append(ids, modelid.IdealModelID)
		texts = append(texts, in.Prompt.IdealText)
	}
	return ids, texts
}

// averageMatrix folds per-prompt matrices into one run-wide matrix. Each
// (a, b) cell averages over the prompts where both models have a score.
func averageMatrix(perPrompt []map[string]map[string]float64) map[string]map[string]float64 {
	sums := make(map[string]map[string]float64)
	counts := make(map[string]map[string]int)
	for _, matrix := range perPrompt {
		for a, row := range matrix {
			if sums[a] == nil {
				sums[a] = make(map[string]float64)
				counts[a] = make(map[string]int)
			}
			for b, v := range row {
				sums[a][b] += v
				counts[a][b]++
			}
		}
	}
	if len(sums) == 0 {
		return nil
	}
	avg := make(map[string]map[string]float64, len(sums))
	for a, row := range sums {
		avg[a] = make(map[string]float64, len(row))
		for b, sum := range row {
			avg[a][b] = sum / float64(counts[a][b])
		}
	}
	return avg
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// 0 when either has zero norm or the lengths differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
