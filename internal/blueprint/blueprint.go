// Package blueprint loads and validates resolved run configurations.
//
// A blueprint file is YAML. Model-collection placeholder resolution and
// JSON-schema validation happen upstream; this package only decodes the
// already-resolved shape, de-duplicates the model list, and enforces the
// structural invariants the pipeline depends on.
package blueprint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/prismbench/prism/internal/model"
)

// Load reads, normalizes, and validates a blueprint file.
func Load(path string) (*model.Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blueprint: %w", err)
	}
	bp := &model.Blueprint{}
	if err := yaml.Unmarshal(data, bp); err != nil {
		return nil, fmt.Errorf("parsing blueprint %s: %w", path, err)
	}
	Normalize(bp)
	if err := Validate(bp); err != nil {
		return nil, fmt.Errorf("invalid blueprint %s: %w", path, err)
	}
	return bp, nil
}

// Normalize de-duplicates the model list in place, keeping first occurrence
// order. Duplicate model ids are input artifacts and must not produce
// duplicate tasks.
func Normalize(bp *model.Blueprint) {
	seen := make(map[string]struct{}, len(bp.Models))
	models := bp.Models[:0]
	for _, m := range bp.Models {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		models = append(models, m)
	}
	bp.Models = models
}

// Validate checks the structural invariants of a resolved blueprint.
func Validate(bp *model.Blueprint) error {
	if bp.ID == "" {
		return fmt.Errorf("blueprint id is required")
	}
	if bp.Title == "" {
		return fmt.Errorf("blueprint title is required")
	}
	if len(bp.Models) == 0 {
		return fmt.Errorf("blueprint needs at least one model")
	}
	if len(bp.Prompts) == 0 {
		return fmt.Errorf("blueprint needs at least one prompt")
	}
	seen := make(map[string]struct{}, len(bp.Prompts))
	for i, p := range bp.Prompts {
		if p.ID == "" {
			return fmt.Errorf("prompt %d has no id", i)
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("duplicate prompt id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	if bp.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative")
	}
	return nil
}
