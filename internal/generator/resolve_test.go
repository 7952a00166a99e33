package generator

import (
	"testing"

	"github.com/prismbench/prism/internal/model"
)

func fp(v float64) *float64 { return &v }
func sp(s string) *string   { return &s }

func TestTemperatureSet(t *testing.T) {
	permuted := &model.Blueprint{Temperatures: []float64{0, 0.5, 1}}
	set := temperatureSet(permuted)
	if len(set) != 3 {
		t.Fatalf("got %d temperatures, want 3", len(set))
	}
	for i, want := range []float64{0, 0.5, 1} {
		if set[i] == nil || *set[i] != want {
			t.Errorf("set[%d] = %v, want %v", i, set[i], want)
		}
	}

	global := &model.Blueprint{Temperature: fp(0.3)}
	set = temperatureSet(global)
	if len(set) != 1 || set[0] == nil || *set[0] != 0.3 {
		t.Errorf("global: got %v", set)
	}

	undefined := &model.Blueprint{}
	set = temperatureSet(undefined)
	if len(set) != 1 || set[0] != nil {
		t.Errorf("undefined: got %v, want single nil slot", set)
	}
}

func TestSystemVariantSet(t *testing.T) {
	permuted := &model.Blueprint{SystemPrompts: []*string{sp("a"), nil, sp("b")}}
	variants, permuting := systemVariantSet(permuted)
	if !permuting || len(variants) != 3 {
		t.Errorf("got permuting=%v, %d variants", permuting, len(variants))
	}

	plain := &model.Blueprint{SystemPrompt: sp("global")}
	variants, permuting = systemVariantSet(plain)
	if permuting || len(variants) != 1 {
		t.Errorf("got permuting=%v, %d variants", permuting, len(variants))
	}
}

func TestResolveTemperature(t *testing.T) {
	cases := []struct {
		name             string
		array, ovr, glob *float64
		want             *float64
	}{
		{name: "array wins", array: fp(0.9), ovr: fp(0.5), glob: fp(0.1), want: fp(0.9)},
		{name: "override beats global", ovr: fp(0.5), glob: fp(0.1), want: fp(0.5)},
		{name: "global when nothing else", glob: fp(0.1), want: fp(0.1)},
		{name: "all undefined", want: nil},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveTemperature(tt.array, tt.ovr, tt.glob)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("got %v, want %v", *got, *tt.want)
			}
		})
	}
}

func TestResolveSystemPrompt(t *testing.T) {
	cases := []struct {
		name      string
		permuting bool
		variant   *string
		ovr, glob *string
		want      *string
	}{
		{name: "variant wins when permuting", permuting: true, variant: sp("v"), ovr: sp("o"), glob: sp("g"), want: sp("v")},
		{name: "nil variant means none, even with fallbacks", permuting: true, ovr: sp("o"), glob: sp("g"), want: nil},
		{name: "override beats global", ovr: sp("o"), glob: sp("g"), want: sp("o")},
		{name: "global fallback", glob: sp("g"), want: sp("g")},
		{name: "nothing defined", want: nil},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveSystemPrompt(tt.permuting, tt.variant, tt.ovr, tt.glob)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("got %q, want %q", *got, *tt.want)
			}
		})
	}
}
