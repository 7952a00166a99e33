package generator

import "github.com/prismbench/prism/internal/model"

// DefaultTemperature is the fixed fallback when neither the blueprint nor
// the prompt defines one.
const DefaultTemperature = 0.0

// temperatureSet returns the list of temperatures to permute. The
// blueprint's temperature list when non-empty, else a single slot holding
// the global temperature (possibly undefined).
func temperatureSet(bp *model.Blueprint) []*float64 {
	if len(bp.Temperatures) > 0 {
		set := make([]*float64, len(bp.Temperatures))
		for i := range bp.Temperatures {
			t := bp.Temperatures[i]
			set[i] = &t
		}
		return set
	}
	return []*float64{bp.Temperature}
}

// systemVariantSet returns the list of system-prompt variants to permute
// and whether the run is actually permuting. When not permuting, the single
// slot is a placeholder and per-task resolution falls through to the
// prompt/global precedence chain.
func systemVariantSet(bp *model.Blueprint) (variants []*string, permuting bool) {
	if len(bp.SystemPrompts) > 0 {
		return bp.SystemPrompts, true
	}
	return []*string{nil}, false
}

// resolveTemperature picks the effective temperature for one task.
// Precedence: permuted array value, per-prompt override, blueprint global,
// fixed default. The returned pointer is nil only when every source is
// undefined; callers use DefaultTemperature for the actual request then.
func resolveTemperature(arrayValue, promptOverride, global *float64) *float64 {
	switch {
	case arrayValue != nil:
		return arrayValue
	case promptOverride != nil:
		return promptOverride
	case global != nil:
		return global
	default:
		return nil
	}
}

// resolveSystemPrompt picks the effective system prompt for one task. When
// the run permutes system prompts the variant value wins outright — a nil
// variant is a deliberate "no system prompt" choice, not a fall-through.
func resolveSystemPrompt(permuting bool, variant, promptOverride, global *string) *string {
	if permuting {
		return variant
	}
	if promptOverride != nil {
		return promptOverride
	}
	return global
}
