// Package runid derives deterministic run identity: the blueprint content
// hash, the run label, and the output file name.
package runid

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prismbench/prism/internal/model"
)

// hashLen is the number of hex characters kept from the content hash.
const hashLen = 12

// hashedBlueprint is the canonical shape fed to the content hash. Only the
// fields that change run semantics participate; display metadata and the
// concurrency limit do not. Models are sorted so input order artifacts left
// over from de-duplication cannot change the hash.
type hashedBlueprint struct {
	ID            string             `json:"id"`
	Models        []string           `json:"models"`
	Prompts       []model.PromptSpec `json:"prompts"`
	Temperature   *float64           `json:"temperature,omitempty"`
	Temperatures  []float64          `json:"temperatures,omitempty"`
	SystemPrompt  *string            `json:"system,omitempty"`
	SystemPrompts []*string          `json:"systems,omitempty"`
}

// ContentHash returns a stable hash of the resolved blueprint. Two
// byte-identical resolved configurations always hash identically.
func ContentHash(bp *model.Blueprint) string {
	models := append([]string(nil), bp.Models...)
	sort.Strings(models)

	canonical := hashedBlueprint{
		ID:            bp.ID,
		Models:        models,
		Prompts:       bp.Prompts,
		Temperature:   bp.Temperature,
		Temperatures:  bp.Temperatures,
		SystemPrompt:  bp.SystemPrompt,
		SystemPrompts: bp.SystemPrompts,
	}

	// encoding/json emits struct fields in declaration order, which makes
	// the serialization canonical without extra machinery.
	data, err := json.Marshal(canonical)
	if err != nil {
		// Marshaling a struct of strings and numbers cannot fail.
		panic(fmt.Sprintf("runid: marshal blueprint: %v", err))
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)[:hashLen]
}

// SystemPromptHash returns the short hash used in [sys:] tags for one
// system prompt variant.
func SystemPromptHash(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return fmt.Sprintf("%x", sum)[:6]
}

// RunLabel combines the user-supplied label with the content hash. Without
// a label the hash alone is the label, which makes default labels
// reproducible across runs of the same blueprint.
func RunLabel(userLabel string, bp *model.Blueprint) string {
	hash := ContentHash(bp)
	if userLabel == "" {
		return hash
	}
	return userLabel + "_" + hash
}

// SafeTimestamp renders t as a filename-safe UTC timestamp: colons and dots
// are replaced so the result survives every filesystem and URL.
func SafeTimestamp(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000Z")
	s = strings.ReplaceAll(s, ":", "-")
	return strings.ReplaceAll(s, ".", "-")
}

// OutputFileName names the persisted comparison document for one run.
func OutputFileName(runLabel string, t time.Time) string {
	return fmt.Sprintf("%s_%s_comparison.json", runLabel, SafeTimestamp(t))
}
