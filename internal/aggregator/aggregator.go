// Package aggregator folds the settled generation output and the merged
// evaluation bundle into the canonical comparison document.
package aggregator

import (
	"fmt"
	"sort"

	"github.com/prismbench/prism/internal/model"
	"github.com/prismbench/prism/internal/modelid"
)

// Options tunes document construction. The zero value is the default:
// full histories included.
type Options struct {
	// RunLabel is the run's label, already resolved upstream.
	RunLabel string
	// Timestamp is the run timestamp string stored verbatim.
	Timestamp string
	// OmitHistories drops the full per-turn histories from the document
	// entirely rather than emptying them.
	OmitHistories bool
}

// Build assembles the comparison document from the fully-populated response
// sets and the merged evaluation bundle. The blueprint's id and title are
// validated upstream; their absence here is a programming error and is
// returned as one, never defaulted.
func Build(bp *model.Blueprint, sets []*model.PromptResponseSet, evaluations model.ResultBundle, opts Options) (*model.ComparisonDocument, error) {
	if bp.ID == "" {
		return nil, fmt.Errorf("aggregate: blueprint id missing after validation")
	}
	if bp.Title == "" {
		return nil, fmt.Errorf("aggregate: blueprint title missing after validation")
	}

	doc := &model.ComparisonDocument{
		ConfigID:    bp.ID,
		ConfigTitle: bp.Title,
		Description: bp.Description,
		Tags:        bp.Tags,
		RunLabel:    opts.RunLabel,
		Timestamp:   opts.Timestamp,

		PromptContexts: make(map[string][]model.Message, len(sets)),
		FinalResponses: make(map[string]map[string]string, len(sets)),
		Evaluations:    evaluations,
	}
	if !opts.OmitHistories {
		doc.FullHistories = make(map[string]map[string][]model.Message, len(sets))
	}

	modelSet := make(map[string]bool)
	anyIdeal := false

	for _, set := range sets {
		doc.PromptIDs = append(doc.PromptIDs, set.PromptID)
		doc.PromptContexts[set.PromptID] = promptContext(set)

		finals := make(map[string]string, len(set.Responses))
		var histories map[string][]model.Message
		if !opts.OmitHistories {
			histories = make(map[string][]model.Message, len(set.Responses))
		}
		for id, rec := range set.Responses {
			modelSet[id] = true
			finals[id] = rec.FinalText
			if histories != nil {
				histories[id] = rec.History
			}
			if rec.HasError {
				if doc.Errors == nil {
					doc.Errors = make(map[string]map[string]string)
				}
				if doc.Errors[set.PromptID] == nil {
					doc.Errors[set.PromptID] = make(map[string]string)
				}
				doc.Errors[set.PromptID][id] = rec.ErrorMessage
			}
		}
		doc.FinalResponses[set.PromptID] = finals
		if histories != nil {
			doc.FullHistories[set.PromptID] = histories
		}

		if set.IdealText != "" {
			anyIdeal = true
		}
	}

	if anyIdeal {
		modelSet[modelid.IdealModelID] = true
	}
	for id := range modelSet {
		doc.EffectiveModels = append(doc.EffectiveModels, id)
	}

	// Determinism comes from sorted keys, never from completion order.
	sort.Strings(doc.PromptIDs)
	sort.Strings(doc.EffectiveModels)

	return doc, nil
}

// promptContext returns the prompt's input conversation, falling back to a
// sentinel message so no listed prompt id is ever without context.
func promptContext(set *model.PromptResponseSet) []model.Message {
	if len(set.InputMessages) > 0 {
		return set.InputMessages
	}
	return []model.Message{{Role: model.RoleUser, Content: model.MissingContextText}}
}
