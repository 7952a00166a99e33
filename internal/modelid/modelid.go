// Package modelid encodes and decodes effective model identifiers.
//
// An effective model id names one (base model, temperature, system-prompt
// variant) combination and is used as a map key, a cache key, and a display
// label throughout the pipeline. Variant information is carried in trailing
// bracketed tags appended to the base model id, e.g.
// "openrouter:google/gemini-pro[sys:1a2b3c][temp:0.5]".
package modelid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// IdealModelID is the reserved pseudo-model id representing a
// blueprint-supplied reference (ideal) response.
const IdealModelID = "IDEAL_MODEL_ID"

// legacyIdealAlias is an older spelling of the ideal-model id that still
// appears in persisted documents. Parse maps it to IdealModelID.
const legacyIdealAlias = "IDEAL_BENCHMARK"

var (
	sysTagRe  = regexp.MustCompile(`\[sys:([^\[\]\s]+)\]$`)
	tempTagRe = regexp.MustCompile(`\[temp:(-?[0-9]+(?:\.[0-9]+)?)\]$`)
)

// Parsed is the decoded form of an effective model id.
type Parsed struct {
	// BaseID is the model id with all recognized variant tags removed.
	BaseID string
	// Temperature is the decoded [temp:] tag, nil when absent.
	Temperature *float64
	// SystemPromptHash is the decoded [sys:] tag, empty when absent.
	SystemPromptHash string
}

// Format builds an effective model id from its parts. The [sys:] tag is
// emitted when a system prompt hash is present, then [temp:] when a
// temperature is defined. The [sp_idx:] tag is appended only when the run
// permutes more than one system-prompt variant; it disambiguates ids that
// share the same base model and temperature but differ by system prompt.
func Format(base string, temperature *float64, systemPromptHash string, systemVariantIndex, systemVariantCount int) string {
	var b strings.Builder
	b.WriteString(base)
	if systemPromptHash != "" {
		fmt.Fprintf(&b, "[sys:%s]", systemPromptHash)
	}
	if temperature != nil {
		fmt.Fprintf(&b, "[temp:%s]", formatTemp(*temperature))
	}
	if systemVariantCount > 1 {
		fmt.Fprintf(&b, "[sp_idx:%d]", systemVariantIndex)
	}
	return b.String()
}

// Parse decodes an effective model id. It repeatedly inspects the tail of
// the string for one trailing [sys:] or [temp:] tag, strips it, and records
// it by tag type until the tail matches neither pattern. Extraction is
// therefore order-independent: "a[sys:X][temp:0.5]" and "a[temp:0.5][sys:X]"
// decode identically. Whatever remains is the base id.
func Parse(id string) Parsed {
	p := Parsed{}
	rest := id
	for {
		if m := sysTagRe.FindStringSubmatch(rest); m != nil {
			p.SystemPromptHash = m[1]
			rest = rest[:len(rest)-len(m[0])]
			continue
		}
		if m := tempTagRe.FindStringSubmatch(rest); m != nil {
			if t, err := strconv.ParseFloat(m[1], 64); err == nil {
				p.Temperature = &t
			}
			rest = rest[:len(rest)-len(m[0])]
			continue
		}
		break
	}
	if rest == legacyIdealAlias {
		rest = IdealModelID
	}
	p.BaseID = rest
	return p
}

// DisplayOptions controls how much of the base model id DisplayLabel keeps.
type DisplayOptions struct {
	// HideProvider drops the "provider:" prefix (up to the first colon).
	HideProvider bool
	// HideModelMaker drops the "maker/" prefix (up to the first slash).
	HideModelMaker bool
}

// DisplayLabel renders a human-readable label for an effective model id.
// Variant information is shown in a parenthetical suffix: the [sys:] tag
// verbatim, then "T:<temperature>". A temperature of exactly zero is
// suppressed from the label (parsing is unaffected). The ideal-model id is
// returned unchanged regardless of options.
func DisplayLabel(id string, opts DisplayOptions) string {
	p := Parse(id)
	if p.BaseID == IdealModelID {
		return p.BaseID
	}

	base := p.BaseID
	if opts.HideProvider {
		if i := strings.Index(base, ":"); i >= 0 {
			base = base[i+1:]
		}
	}
	if opts.HideModelMaker {
		if i := strings.Index(base, "/"); i >= 0 {
			base = base[i+1:]
		}
	}

	var parts []string
	if p.SystemPromptHash != "" {
		parts = append(parts, fmt.Sprintf("[sys:%s]", p.SystemPromptHash))
	}
	if p.Temperature != nil && *p.Temperature != 0 {
		parts = append(parts, "T:"+formatTemp(*p.Temperature))
	}
	if len(parts) == 0 {
		return base
	}
	return base + " (" + strings.Join(parts, ", ") + ")"
}

// formatTemp renders a temperature without trailing zeros: 0.5 not 0.50.
func formatTemp(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}
