package domain

import "sort"

// EvidenceTrail is the deduplicated, ranked set of claims backing a topic.
// Ordering is confidence descending with arrival order as the stable
// tie-break, which keeps persisted files reproducible.
type EvidenceTrail []Claim

// Sort orders the trail canonically in place.
func (t EvidenceTrail) Sort() {
	sort.SliceStable(t, func(i, j int) bool {
		if t[i].Confidence != t[j].Confidence {
			return t[i].Confidence > t[j].Confidence
		}
		return t[i].ArrivalSeq < t[j].ArrivalSeq
	})
}

// Active returns the non-superseded claims, capped at the n highest-confidence
// entries when n > 0. Claims beyond the cap are archival: they keep their
// provenance but take no part in pairing or scoring.
func (t EvidenceTrail) Active(n int) EvidenceTrail {
	active := make(EvidenceTrail, 0, len(t))
	for _, c := range t {
		if !c.Superseded {
			active = append(active, c)
		}
	}
	active.Sort()
	if n > 0 && len(active) > n {
		active = active[:n]
	}
	return active
}

// DistinctKinds counts the distinct source kinds across the trail.
func (t EvidenceTrail) DistinctKinds() int {
	kinds := make(map[SourceKind]bool)
	for _, c := range t {
		for _, s := range c.Sources {
			kinds[s.Kind] = true
		}
	}
	return len(kinds)
}

// AnyTagged reports whether any claim carries the given predicate tag.
func (t EvidenceTrail) AnyTagged(tag PredicateTag) bool {
	for _, c := range t {
		if c.HasTag(tag) {
			return true
		}
	}
	return false
}

// MaxArrivalSeq returns the highest arrival sequence in the trail, or -1
// when the trail is empty.
func (t EvidenceTrail) MaxArrivalSeq() int {
	max := -1
	for _, c := range t {
		if c.ArrivalSeq > max {
			max = c.ArrivalSeq
		}
	}
	return max
}

// SourceHeaders returns the deduplicated frontmatter source strings in
// first-appearance order.
func (t EvidenceTrail) SourceHeaders() []string {
	seen := make(map[string]bool)
	headers := []string{}
	for _, c := range t {
		for _, s := range c.Sources {
			h := s.HeaderString()
			if !seen[h] {
				seen[h] = true
				headers = append(headers, h)
			}
		}
	}
	return headers
}
