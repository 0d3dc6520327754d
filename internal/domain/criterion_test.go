package domain

import (
	"reflect"
	"testing"
)

func TestParseCriterion_Phrasings(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []PredicateTag
	}{
		{
			name: "explain and apply",
			raw:  "can explain forward P/E and apply it in a concrete scenario",
			want: []PredicateTag{TagExplain, TagApplyConcrete},
		},
		{
			name: "exact tag names",
			raw:  "explain, apply_concrete_scenario, identify_edge_cases, cite_diverse_sources",
			want: []PredicateTag{TagExplain, TagApplyConcrete, TagIdentifyEdges, TagCiteDiverse},
		},
		{
			name: "edge case phrasing",
			raw:  "knows the edge cases and failure modes of CAPE",
			want: []PredicateTag{TagIdentifyEdges},
		},
		{
			name: "source diversity phrasing",
			raw:  "backs claims with multiple sources",
			want: []PredicateTag{TagCiteDiverse},
		},
		{
			name: "canonical order regardless of phrasing order",
			raw:  "cite diverse sources, then apply, then explain",
			want: []PredicateTag{TagExplain, TagApplyConcrete, TagCiteDiverse},
		},
		{
			name: "empty",
			raw:  "",
			want: nil,
		},
		{
			name: "unrecognizable",
			raw:  "achieve enlightenment",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCriterion(tt.raw)
			if tt.want == nil {
				if !got.Undefined() {
					t.Fatalf("expected undefined criterion, got %v", got.Predicates)
				}
				return
			}
			if !reflect.DeepEqual(got.Predicates, tt.want) {
				t.Errorf("predicates = %v, want %v", got.Predicates, tt.want)
			}
		})
	}
}

func TestParseCriterion_Requires(t *testing.T) {
	c := ParseCriterion("can explain momentum")
	if !c.Requires(TagExplain) {
		t.Error("explain should be required")
	}
	if c.Requires(TagApplyConcrete) {
		t.Error("apply should not be required")
	}
}
