package evaluator

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/prismbench/prism/internal/model"
	"github.com/prismbench/prism/internal/provider"
)

// extractPromptTemplate mines key points from an ideal response.
// Loaded from prompts/extract.md at compile time.
//
//go:embed prompts/extract.md
var extractPromptTemplate string

// gradePromptTemplate grades one response against extracted key points.
// Loaded from prompts/grade.md at compile time.
//
//go:embed prompts/grade.md
var gradePromptTemplate string

// CoverageEvaluator grades how much of a prompt's ideal response each
// generated response covers. It extracts key points from the ideal once per
// prompt, then grades every response against them; the coverage extent is
// the fraction of points covered, in [0, 1]. Prompts without an ideal
// response are skipped.
type CoverageEvaluator struct {
	Provider provider.Provider
	// Model is the grading model id, in provider:model form.
	Model string
	// UseCache forwards the cache flag to every grading call.
	UseCache bool
}

func (e *CoverageEvaluator) MethodName() string { return MethodLLMCoverage }

// Evaluate runs extraction and grading sequentially. Any grading-model
// failure aborts the evaluator; partial scores are discarded by the caller.
func (e *CoverageEvaluator) Evaluate(ctx context.Context, inputs []model.EvalInput) (model.ResultBundle, error) {
	bundle := model.ResultBundle{
		CoverageScores:     make(map[string]map[string]float64),
		ExtractedKeyPoints: make(map[string][]string),
	}

	for _, in := range inputs {
		if in.Prompt.IdealText == "" {
			continue
		}

		points, err := e.extractKeyPoints(ctx, in.Prompt.IdealText)
		if err != nil {
			return model.ResultBundle{}, fmt.Errorf("extract key points for prompt %s: %w", in.Prompt.PromptID, err)
		}
		bundle.ExtractedKeyPoints[in.Prompt.PromptID] = points
		if len(points) == 0 {
			continue
		}

		scores := make(map[string]float64)
		models := append([]string(nil), in.EffectiveModels...)
		sort.Strings(models)
		for _, id := range models {
			rec, ok := in.Prompt.Responses[id]
			if !ok || rec.HasError || rec.FinalText == "" {
				continue
			}
			score, err := e.gradeResponse(ctx, points, rec.FinalText)
			if err != nil {
				return model.ResultBundle{}, fmt.Errorf("grade prompt %s model %s: %w", in.Prompt.PromptID, id, err)
			}
			scores[id] = score
		}
		bundle.CoverageScores[in.Prompt.PromptID] = scores
	}

	return bundle, nil
}

func (e *CoverageEvaluator) extractKeyPoints(ctx context.Context, idealText string) ([]string, error) {
	text, err := e.ask(ctx, fmt.Sprintf(extractPromptTemplate, idealText))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		KeyPoints []string `json:"key_points"`
	}
	if err := json.Unmarshal([]byte(stripJSONFences(text)), &parsed); err != nil {
		return nil, fmt.Errorf("parse extraction output: %w (content: %s)", err, text)
	}
	return parsed.KeyPoints, nil
}

func (e *CoverageEvaluator) gradeResponse(ctx context.Context, points []string, responseText string) (float64, error) {
	var list strings.Builder
	for i, p := range points {
		fmt.Fprintf(&list, "%d. %s\n", i+1, p)
	}

	text, err := e.ask(ctx, fmt.Sprintf(gradePromptTemplate, list.String(), responseText))
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Covered []bool `json:"covered"`
	}
	if err := json.Unmarshal([]byte(stripJSONFences(text)), &parsed); err != nil {
		return 0, fmt.Errorf("parse grading output: %w (content: %s)", err, text)
	}

	// Tolerate a grader that returns the wrong number of verdicts: excess
	// entries are ignored, missing entries count as not covered.
	covered := 0
	for i, c := range parsed.Covered {
		if i >= len(points) {
			break
		}
		if c {
			covered++
		}
	}
	return float64(covered) / float64(len(points)), nil
}

func (e *CoverageEvaluator) ask(ctx context.Context, prompt string) (string, error) {
	messages := []model.Message{{Role: model.RoleUser, Content: prompt}}
	return e.Provider.GetResponse(ctx, e.Model, messages, 0, e.UseCache)
}

// stripJSONFences peels a markdown code fence off a model response so the
// JSON inside parses. Responses without a fence pass through untouched.
func stripJSONFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
