package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismbench/prism/internal/evaluator"
	"github.com/prismbench/prism/internal/generator"
	"github.com/prismbench/prism/internal/model"
	"github.com/prismbench/prism/internal/storage"
)

// echoProvider answers every call with a deterministic completion.
type echoProvider struct{}

func (echoProvider) GetResponse(ctx context.Context, modelID string, messages []model.Message, temperature float64, useCache bool) (string, error) {
	return "echo:" + modelID, nil
}

// recordingGateway captures saves and can be forced to fail.
type recordingGateway struct {
	saved map[string]*model.ComparisonDocument
	err   error
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{saved: make(map[string]*model.ComparisonDocument)}
}

func (g *recordingGateway) Save(ctx context.Context, configID, fileName string, doc *model.ComparisonDocument) error {
	if g.err != nil {
		return g.err
	}
	g.saved[configID+"/"+fileName] = doc
	return nil
}

func (g *recordingGateway) GetByFileName(ctx context.Context, configID, fileName string) (*model.ComparisonDocument, error) {
	return g.saved[configID+"/"+fileName], nil
}

// tableEvaluator returns a fixed bundle or error.
type tableEvaluator struct {
	bundle model.ResultBundle
	err    error
}

func (e *tableEvaluator) MethodName() string { return "table" }

func (e *tableEvaluator) Evaluate(ctx context.Context, inputs []model.EvalInput) (model.ResultBundle, error) {
	return e.bundle, e.err
}

func testPipeline(gw storage.Gateway, evals ...evaluator.Evaluator) *Pipeline {
	return &Pipeline{
		Generator: &generator.Generator{Provider: echoProvider{}},
		Registry:  evaluator.NewRegistry(evals...),
		Gateway:   gw,
		Now:       func() time.Time { return time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC) },
	}
}

func testBlueprint() *model.Blueprint {
	return &model.Blueprint{
		ID:     "bp",
		Title:  "Blueprint",
		Models: []string{"openai:a"},
		Prompts: []model.PromptSpec{
			{ID: "p1", PromptText: "one"},
		},
	}
}

func TestExecutePersistsDocument(t *testing.T) {
	gw := newRecordingGateway()
	p := testPipeline(gw)

	result, err := p.Execute(context.Background(), testBlueprint(), Options{RunLabel: "lbl"})
	require.NoError(t, err)
	require.NotNil(t, result.Document)
	assert.NotEmpty(t, result.FileName)
	assert.Contains(t, result.FileName, "lbl_")
	assert.Contains(t, result.FileName, "_comparison.json")

	saved := gw.saved["bp/"+result.FileName]
	require.NotNil(t, saved, "document must be written under its config id")
	assert.Equal(t, result.Document, saved)
	assert.Equal(t, "echo:openai:a", saved.FinalResponses["p1"]["openai:a"])
}

func TestExecutePersistenceFailureIsNonFatal(t *testing.T) {
	gw := newRecordingGateway()
	gw.err = errors.New("disk full")
	p := testPipeline(gw)

	result, err := p.Execute(context.Background(), testBlueprint(), Options{})
	require.NoError(t, err, "a persistence failure must not fail the run")
	require.NotNil(t, result.Document)
	assert.Empty(t, result.FileName, "failed persist leaves no file reference")
}

func TestExecuteEvaluatorFailureIsFatal(t *testing.T) {
	gw := newRecordingGateway()
	boom := errors.New("evaluator down")
	p := testPipeline(gw, &tableEvaluator{err: boom})

	_, err := p.Execute(context.Background(), testBlueprint(), Options{Methods: []string{"table"}})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, gw.saved, "no partial document may be persisted after an evaluator failure")
}

func TestExecuteMergesEvaluations(t *testing.T) {
	gw := newRecordingGateway()
	bundle := model.ResultBundle{
		CoverageScores: map[string]map[string]float64{"p1": {"openai:a": 0.5}},
	}
	p := testPipeline(gw, &tableEvaluator{bundle: bundle})

	result, err := p.Execute(context.Background(), testBlueprint(), Options{Methods: []string{"table"}})
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.Document.Evaluations.CoverageScores["p1"]["openai:a"])
}

func TestExecuteDeterministicLabels(t *testing.T) {
	gw := newRecordingGateway()
	p := testPipeline(gw)

	first, err := p.Execute(context.Background(), testBlueprint(), Options{})
	require.NoError(t, err)
	second, err := p.Execute(context.Background(), testBlueprint(), Options{})
	require.NoError(t, err)
	assert.Equal(t, first.Document.RunLabel, second.Document.RunLabel,
		"identical blueprints without a user label must share a run label")

	changed := testBlueprint()
	changed.Models = []string{"openai:b"}
	third, err := p.Execute(context.Background(), changed, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, first.Document.RunLabel, third.Document.RunLabel)
}

func TestExecuteSkipPersist(t *testing.T) {
	gw := newRecordingGateway()
	p := testPipeline(gw)

	result, err := p.Execute(context.Background(), testBlueprint(), Options{SkipPersist: true})
	require.NoError(t, err)
	assert.Empty(t, result.FileName)
	assert.Empty(t, gw.saved)
}
