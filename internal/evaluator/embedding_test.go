package evaluator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prismbench/prism/internal/model"
	"github.com/prismbench/prism/internal/modelid"
)

// fakeEmbedder maps each text to a fixed vector.
type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, embedModel string, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, errors.New("unexpected text: " + t)
		}
		out[i] = v
	}
	return out, nil
}

func evalInput(promptID, ideal string, responses map[string]string) model.EvalInput {
	set := &model.PromptResponseSet{
		PromptID:  promptID,
		IdealText: ideal,
		Responses: make(map[string]model.ResponseRecord),
	}
	var ids []string
	for id, text := range responses {
		set.Responses[id] = model.ResponseRecord{FinalText: text}
		ids = append(ids, id)
	}
	return model.EvalInput{Prompt: set, EffectiveModels: ids}
}

func TestEmbeddingEvaluatorSimilarity(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"same a": {1, 0},
		"same b": {2, 0}, // parallel to "same a"
		"other":  {0, 1}, // orthogonal
	}}
	e := &EmbeddingEvaluator{Embedder: emb}

	in := evalInput("p1", "", map[string]string{
		"m:a": "same a",
		"m:b": "same b",
		"m:c": "other",
	})
	bundle, err := e.Evaluate(context.Background(), []model.EvalInput{in})
	if err != nil {
		t.Fatal(err)
	}

	matrix := bundle.PerPromptSimilarities["p1"]
	if matrix == nil {
		t.Fatal("missing per-prompt matrix")
	}
	if got := matrix["m:a"]["m:b"]; math.Abs(got-1) > 1e-9 {
		t.Errorf("parallel vectors: got %v, want 1", got)
	}
	if got := matrix["m:a"]["m:c"]; math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: got %v, want 0", got)
	}
	if got := matrix["m:c"]["m:c"]; math.Abs(got-1) > 1e-9 {
		t.Errorf("self similarity: got %v, want 1", got)
	}

	// Single prompt: run-wide matrix equals the per-prompt one.
	if got := bundle.SimilarityMatrix["m:a"]["m:c"]; math.Abs(got) > 1e-9 {
		t.Errorf("averaged matrix: got %v, want 0", got)
	}
}

func TestEmbeddingEvaluatorIdealColumn(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{
		"resp":  {1, 0},
		"gold":  {1, 0},
		"other": {0, 1},
	}}
	e := &EmbeddingEvaluator{Embedder: emb}

	withIdeal := evalInput("p1", "gold", map[string]string{"m:a": "resp", "m:b": "other"})
	withoutIdeal := evalInput("p2", "", map[string]string{"m:a": "resp", "m:b": "other"})

	bundle, err := e.Evaluate(context.Background(), []model.EvalInput{withIdeal, withoutIdeal})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := bundle.PerPromptSimilarities["p1"][modelid.IdealModelID]; !ok {
		t.Error("ideal column missing for prompt with an ideal response")
	}
	if _, ok := bundle.PerPromptSimilarities["p2"][modelid.IdealModelID]; ok {
		t.Error("ideal column present for prompt without an ideal response")
	}
	if got := bundle.PerPromptSimilarities["p1"]["m:a"][modelid.IdealModelID]; math.Abs(got-1) > 1e-9 {
		t.Errorf("response vs ideal: got %v, want 1", got)
	}
}

func TestEmbeddingEvaluatorSkipsErroredAndLonePrompts(t *testing.T) {
	emb := &fakeEmbedder{vectors: map[string][]float64{"ok": {1, 0}}}
	e := &EmbeddingEvaluator{Embedder: emb}

	in := evalInput("p1", "", map[string]string{"m:a": "ok"})
	in.Prompt.Responses["m:bad"] = model.ResponseRecord{FinalText: "ERROR: boom", HasError: true}
	in.EffectiveModels = append(in.EffectiveModels, "m:bad")

	bundle, err := e.Evaluate(context.Background(), []model.EvalInput{in})
	if err != nil {
		t.Fatal(err)
	}
	// One usable response left: nothing to compare, prompt is skipped.
	if _, ok := bundle.PerPromptSimilarities["p1"]; ok {
		t.Error("prompt with a single usable response should be skipped")
	}
}

func TestEmbeddingEvaluatorPropagatesErrors(t *testing.T) {
	boom := errors.New("embeddings down")
	e := &EmbeddingEvaluator{Embedder: &fakeEmbedder{err: boom}}

	in := evalInput("p1", "", map[string]string{"m:a": "x", "m:b": "y"})
	if _, err := e.Evaluate(context.Background(), []model.EvalInput{in}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestAverageMatrixSparsePairs(t *testing.T) {
	perPrompt := []map[string]map[string]float64{
		{"a": {"a": 1, "b": 0.2}, "b": {"a": 0.2, "b": 1}},
		{"a": {"a": 1, "b": 0.8}, "b": {"a": 0.8, "b": 1}},
		{"a": {"a": 1, "c": 0.5}, "c": {"a": 0.5, "c": 1}},
	}
	avg := averageMatrix(perPrompt)

	if got := avg["a"]["b"]; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("a/b average: got %v, want 0.5", got)
	}
	// c appears in a single prompt only.
	if got := avg["a"]["c"]; math.Abs(got-0.5) > 1e-9 {
		t.Errorf("a/c average: got %v, want 0.5", got)
	}
}
