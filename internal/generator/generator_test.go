package generator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prismbench/prism/internal/model"
	"github.com/prismbench/prism/internal/modelid"
	"github.com/prismbench/prism/internal/progress"
)

// fakeProvider records every request and can fail selected models.
type fakeProvider struct {
	mu       sync.Mutex
	requests []fakeRequest

	inFlight    int64
	maxInFlight int64

	failModels map[string]error
	respond    func(modelID string, messages []model.Message, temperature float64) string
}

type fakeRequest struct {
	ModelID     string
	Messages    []model.Message
	Temperature float64
	UseCache    bool
}

func (f *fakeProvider) GetResponse(ctx context.Context, modelID string, messages []model.Message, temperature float64, useCache bool) (string, error) {
	cur := atomic.AddInt64(&f.inFlight, 1)
	defer atomic.AddInt64(&f.inFlight, -1)
	for {
		max := atomic.LoadInt64(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt64(&f.maxInFlight, max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, fakeRequest{ModelID: modelID, Messages: messages, Temperature: temperature, UseCache: useCache})
	f.mu.Unlock()

	if err, ok := f.failModels[modelID]; ok {
		return "", err
	}
	if f.respond != nil {
		return f.respond(modelID, messages, temperature), nil
	}
	return "response from " + modelID, nil
}

func sampleBlueprint() *model.Blueprint {
	return &model.Blueprint{
		ID:     "bp",
		Title:  "Blueprint",
		Models: []string{"openai:a", "openai:b"},
		Prompts: []model.PromptSpec{
			{ID: "p1", PromptText: "one"},
			{ID: "p2", PromptText: "two"},
			{ID: "p3", PromptText: "three"},
		},
	}
}

func TestGenerateCartesianProduct(t *testing.T) {
	bp := sampleBlueprint()
	bp.Temperatures = []float64{0, 0.5}
	bp.SystemPrompts = []*string{sp("variant one"), sp("variant two")}

	fake := &fakeProvider{}
	g := &Generator{Provider: fake}

	sets, err := g.Generate(context.Background(), bp)
	if err != nil {
		t.Fatal(err)
	}

	// 3 prompts × 2 models × 2 temperatures × 2 system variants.
	if len(sets) != 3 {
		t.Fatalf("got %d sets, want 3", len(sets))
	}
	total := 0
	for _, s := range sets {
		total += len(s.Responses)
		if len(s.Responses) != 8 {
			t.Errorf("prompt %s: got %d records, want 8 distinct effective ids", s.PromptID, len(s.Responses))
		}
	}
	if total != 24 {
		t.Errorf("total records: got %d, want 24", total)
	}
	if len(fake.requests) != 24 {
		t.Errorf("provider calls: got %d, want 24", len(fake.requests))
	}

	// Every effective id decodes back to its base model once the trailing
	// variant-index tag is peeled off.
	for _, s := range sets {
		for id := range s.Responses {
			trimmed := strings.TrimSuffix(strings.TrimSuffix(id, "[sp_idx:0]"), "[sp_idx:1]")
			if trimmed == id {
				t.Errorf("id %q missing its variant-index tag", id)
			}
			p := modelid.Parse(trimmed)
			if p.BaseID != "openai:a" && p.BaseID != "openai:b" {
				t.Errorf("unexpected base id %q from %q", p.BaseID, id)
			}
			if p.Temperature == nil {
				t.Errorf("id %q lost its temperature tag", id)
			}
			if p.SystemPromptHash == "" {
				t.Errorf("id %q lost its system prompt hash", id)
			}
		}
	}
}

func TestGenerateBoundedConcurrency(t *testing.T) {
	bp := sampleBlueprint()
	bp.Models = []string{"openai:a", "openai:b", "openai:c", "openai:d"}
	bp.Concurrency = 2

	fake := &fakeProvider{}
	g := &Generator{Provider: fake}
	if _, err := g.Generate(context.Background(), bp); err != nil {
		t.Fatal(err)
	}

	if fake.maxInFlight > 2 {
		t.Errorf("max in-flight calls: got %d, want <= 2", fake.maxInFlight)
	}
}

func TestGenerateAbsorbsTaskFailures(t *testing.T) {
	bp := sampleBlueprint()
	tracker := progress.NewTracker()
	fake := &fakeProvider{failModels: map[string]error{"openai:b": errors.New("rate limited")}}
	g := &Generator{Provider: fake, Tracker: tracker}

	sets, err := g.Generate(context.Background(), bp)
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range sets {
		rec, ok := s.Responses["openai:b"]
		if !ok {
			t.Fatalf("prompt %s: no record for failing model; ids: %v", s.PromptID, keys(s.Responses))
		}
		if !rec.HasError {
			t.Error("expected HasError on failed task")
		}
		if rec.ErrorMessage != "rate limited" {
			t.Errorf("ErrorMessage: got %q", rec.ErrorMessage)
		}
		// The history must still be well-formed, ending in an assistant turn.
		if len(rec.History) == 0 || rec.History[len(rec.History)-1].Role != model.RoleAssistant {
			t.Errorf("history not well-formed: %+v", rec.History)
		}

		// The healthy model is unaffected.
		if ok := s.Responses["openai:a"].HasError; ok {
			t.Error("sibling task should not be affected by a failure")
		}
	}

	if failed := tracker.Failed(); len(failed) != 3 {
		t.Errorf("tracked failures: got %d, want 3", len(failed))
	}
}

func TestGenerateErrorMarkerPayload(t *testing.T) {
	bp := sampleBlueprint()
	bp.Prompts = bp.Prompts[:1]
	bp.Models = []string{"openai:a"}

	fake := &fakeProvider{respond: func(string, []model.Message, float64) string {
		return "ERROR: upstream refused"
	}}
	g := &Generator{Provider: fake}

	sets, err := g.Generate(context.Background(), bp)
	if err != nil {
		t.Fatal(err)
	}
	rec := sets[0].Responses["openai:a"]
	if !rec.HasError || rec.ErrorMessage == "" {
		t.Errorf("error marker payload not flagged: %+v", rec)
	}
}

func TestGenerateSystemPromptPlacement(t *testing.T) {
	bp := &model.Blueprint{
		ID:           "bp",
		Title:        "Blueprint",
		Models:       []string{"openai:a"},
		SystemPrompt: sp("global instructions"),
		Prompts: []model.PromptSpec{
			{ID: "plain", PromptText: "hello"},
			{ID: "own-system", Messages: []model.Message{
				{Role: model.RoleSystem, Content: "prompt-local instructions"},
				{Role: model.RoleUser, Content: "hello"},
			}},
		},
	}

	fake := &fakeProvider{}
	g := &Generator{Provider: fake}
	sets, err := g.Generate(context.Background(), bp)
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range sets {
		rec := s.Responses["openai:a"]
		switch s.PromptID {
		case "plain":
			if rec.History[0].Role != model.RoleSystem || rec.History[0].Content != "global instructions" {
				t.Errorf("plain prompt history: %+v", rec.History)
			}
			if rec.SystemPromptUsed == nil || *rec.SystemPromptUsed != "global instructions" {
				t.Errorf("SystemPromptUsed: %v", rec.SystemPromptUsed)
			}
		case "own-system":
			// A prompt that already opens with a system message keeps it.
			count := 0
			for _, m := range rec.History {
				if m.Role == model.RoleSystem {
					count++
				}
			}
			if count != 1 {
				t.Errorf("own-system prompt has %d system messages, want 1", count)
			}
			if rec.History[0].Content != "prompt-local instructions" {
				t.Errorf("own system message replaced: %+v", rec.History[0])
			}
		}
	}
}

func TestGenerateAppendsAssistantTurn(t *testing.T) {
	bp := sampleBlueprint()
	bp.Prompts = bp.Prompts[:1]
	bp.Models = []string{"openai:a"}

	fake := &fakeProvider{}
	g := &Generator{Provider: fake}
	sets, err := g.Generate(context.Background(), bp)
	if err != nil {
		t.Fatal(err)
	}

	rec := sets[0].Responses["openai:a"]
	last := rec.History[len(rec.History)-1]
	if last.Role != model.RoleAssistant || last.Content != rec.FinalText {
		t.Errorf("history should end with the generated turn: %+v", last)
	}
}

func keys(m map[string]model.ResponseRecord) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
