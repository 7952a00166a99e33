package model

import "strings"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// errorMarkerPrefix marks a provider response that is an error payload rather
// than a real completion. Some gateways return these with a 200 status.
const errorMarkerPrefix = "ERROR:"

// IsErrorMarker reports whether a response text is an error marker payload.
func IsErrorMarker(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), errorMarkerPrefix)
}

// HasSystemMessage reports whether any message in the sequence carries the
// system role.
func HasSystemMessage(messages []Message) bool {
	for _, m := range messages {
		if m.Role == RoleSystem {
			return true
		}
	}
	return false
}

// Blueprint is the resolved run configuration: model-collection placeholders
// already expanded to literal model ids, deduplicated, validated upstream.
// Immutable once the pipeline starts.
type Blueprint struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	Models  []string     `yaml:"models" json:"models"`
	Prompts []PromptSpec `yaml:"prompts" json:"prompts"`

	// Temperature is the global temperature, overridden per prompt or by
	// Temperatures. Nil means the fixed default (0).
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	// Temperatures, when non-empty, permutes every model over each value.
	Temperatures []float64 `yaml:"temperatures,omitempty" json:"temperatures,omitempty"`

	// SystemPrompt is the global system prompt. Nil means none.
	SystemPrompt *string `yaml:"system,omitempty" json:"system,omitempty"`
	// SystemPrompts, when non-empty, permutes every model over each variant.
	// A nil entry is a deliberate "no system prompt" variant.
	SystemPrompts []*string `yaml:"systems,omitempty" json:"systems,omitempty"`

	// Concurrency bounds the number of in-flight provider calls. Zero means
	// the default (10).
	Concurrency int `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// PromptSpec is one prompt in a blueprint.
type PromptSpec struct {
	ID string `yaml:"id" json:"id"`
	// Messages is the initial conversation. Empty when PromptText is used.
	Messages []Message `yaml:"messages,omitempty" json:"messages,omitempty"`
	// PromptText is the single-turn shorthand for a one-message conversation.
	PromptText string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	// IdealResponse is the optional reference (gold) response.
	IdealResponse string `yaml:"ideal,omitempty" json:"ideal,omitempty"`
	// Temperature overrides the blueprint's global temperature for this prompt.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	// System overrides the blueprint's global system prompt for this prompt.
	System *string `yaml:"system,omitempty" json:"system,omitempty"`
}

// InputMessages returns the prompt's conversation, synthesizing a single
// user message from PromptText when no explicit messages are given.
func (p PromptSpec) InputMessages() []Message {
	if len(p.Messages) > 0 {
		return p.Messages
	}
	if p.PromptText != "" {
		return []Message{{Role: RoleUser, Content: p.PromptText}}
	}
	return nil
}

// ResponseRecord is the outcome of one generation task. Created once by the
// generator, immutable thereafter.
type ResponseRecord struct {
	// FinalText is the generated response text (or a synthesized error text).
	FinalText string `json:"final_text"`
	// History is the full conversation including the generated assistant turn.
	History []Message `json:"history"`
	// HasError marks provider failures and error marker payloads.
	HasError bool `json:"has_error,omitempty"`
	// ErrorMessage describes the failure when HasError is set.
	ErrorMessage string `json:"error_message,omitempty"`
	// SystemPromptUsed is the system prompt actually applied, nil when none.
	SystemPromptUsed *string `json:"system_prompt_used,omitempty"`
}

// PromptResponseSet aggregates every response generated for one prompt,
// keyed by effective model id. Owned by the generator during the generation
// phase, read-only afterwards.
type PromptResponseSet struct {
	PromptID      string                    `json:"prompt_id"`
	InputMessages []Message                 `json:"input_messages,omitempty"`
	IdealText     string                    `json:"ideal_text,omitempty"`
	Responses     map[string]ResponseRecord `json:"responses"`
}

// EvalInput is the read-only view handed to every evaluator: one prompt's
// responses, the blueprint, and the effective model ids present for that
// prompt.
type EvalInput struct {
	Prompt          *PromptResponseSet
	Blueprint       *Blueprint
	EffectiveModels []string
}

// ResultBundle is the record of named evaluation result tables. Each table
// is keyed by prompt id and/or effective model id. A nil table means the
// producing evaluator did not run.
type ResultBundle struct {
	// SimilarityMatrix is the run-wide model×model average similarity.
	SimilarityMatrix map[string]map[string]float64 `json:"similarity_matrix,omitempty"`
	// PerPromptSimilarities is promptID → model × model similarity.
	PerPromptSimilarities map[string]map[string]map[string]float64 `json:"per_prompt_similarities,omitempty"`
	// CoverageScores is promptID → modelID → coverage extent in [0,1].
	CoverageScores map[string]map[string]float64 `json:"coverage_scores,omitempty"`
	// ExtractedKeyPoints is promptID → key points mined from the ideal response.
	ExtractedKeyPoints map[string][]string `json:"extracted_key_points,omitempty"`
}

// Merge overwrites each table present in partial onto b. Merging is shallow:
// a table set by a later evaluator replaces the whole table, never deep-merges
// into it.
func (b *ResultBundle) Merge(partial ResultBundle) {
	if partial.SimilarityMatrix != nil {
		b.SimilarityMatrix = partial.SimilarityMatrix
	}
	if partial.PerPromptSimilarities != nil {
		b.PerPromptSimilarities = partial.PerPromptSimilarities
	}
	if partial.CoverageScores != nil {
		b.CoverageScores = partial.CoverageScores
	}
	if partial.ExtractedKeyPoints != nil {
		b.ExtractedKeyPoints = partial.ExtractedKeyPoints
	}
}

// ComparisonDocument is the canonical, persisted aggregate of one run.
// Identified by (ConfigID, FileName); immutable once built.
type ComparisonDocument struct {
	ConfigID    string   `json:"config_id"`
	ConfigTitle string   `json:"config_title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	RunLabel  string `json:"run_label"`
	Timestamp string `json:"timestamp"`

	PromptIDs       []string `json:"prompt_ids"`
	EffectiveModels []string `json:"effective_models"`

	// PromptContexts maps prompt id to its input conversation. Never empty
	// for a listed prompt id: a missing context gets a sentinel message.
	PromptContexts map[string][]Message `json:"prompt_contexts"`
	// FinalResponses is promptID → effective model id → final text.
	FinalResponses map[string]map[string]string `json:"final_responses"`
	// FullHistories is promptID → effective model id → conversation.
	// Omitted entirely when history recording is disabled for the run.
	FullHistories map[string]map[string][]Message `json:"full_histories,omitempty"`
	// Errors is promptID → effective model id → error message. Only entries
	// that actually errored appear; omitted entirely when none did.
	Errors map[string]map[string]string `json:"errors,omitempty"`

	Evaluations ResultBundle `json:"evaluations"`
}

// MissingContextText is the sentinel used when a prompt has neither explicit
// messages nor raw prompt text.
const MissingContextText = "[no prompt context provided]"
