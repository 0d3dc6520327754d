package domain

import "strings"

// MasteryCriterion is the declared per-topic bar: an opaque string from
// which the recognized predicate tags are extracted.
type MasteryCriterion struct {
	Raw        string         `json:"raw"`
	Predicates []PredicateTag `json:"predicates,omitempty"`
}

// ParseCriterion extracts recognized predicates from a free-text criterion.
// Exact tag names always match; common phrasings ("can explain X", "can
// apply X in a concrete scenario") map onto the corresponding tags. An
// empty or unrecognizable criterion yields an undefined criterion, which
// the scorer degrades to baseline-only scoring.
func ParseCriterion(raw string) MasteryCriterion {
	c := MasteryCriterion{Raw: raw}
	lower := strings.ToLower(raw)

	add := func(tag PredicateTag) {
		for _, p := range c.Predicates {
			if p == tag {
				return
			}
		}
		c.Predicates = append(c.Predicates, tag)
	}

	for _, tag := range CriterionPredicates {
		if strings.Contains(lower, string(tag)) {
			add(tag)
		}
	}
	if strings.Contains(lower, "explain") {
		add(TagExplain)
	}
	if strings.Contains(lower, "apply") || strings.Contains(lower, "concrete scenario") {
		add(TagApplyConcrete)
	}
	if strings.Contains(lower, "edge case") || strings.Contains(lower, "failure mode") {
		add(TagIdentifyEdges)
	}
	if strings.Contains(lower, "diverse source") || strings.Contains(lower, "multiple source") {
		add(TagCiteDiverse)
	}

	// Keep canonical predicate order regardless of phrasing order.
	ordered := make([]PredicateTag, 0, len(c.Predicates))
	for _, tag := range CriterionPredicates {
		for _, p := range c.Predicates {
			if p == tag {
				ordered = append(ordered, tag)
			}
		}
	}
	c.Predicates = ordered
	return c
}

// Undefined reports whether the criterion is missing or unparseable.
func (c MasteryCriterion) Undefined() bool {
	return len(c.Predicates) == 0
}

// Requires reports whether the criterion demands the given predicate.
func (c MasteryCriterion) Requires(tag PredicateTag) bool {
	for _, p := range c.Predicates {
		if p == tag {
			return true
		}
	}
	return false
}
