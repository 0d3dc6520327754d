package service

import (
	"sort"
	"strings"

	"github.com/topiclab/mastery/internal/domain"
	"go.uber.org/zap"
)

// DefaultPairingCap bounds the O(n²) pairwise scan to the N
// highest-confidence claims. Claims beyond the cap stay in the trail in
// archival form but are excluded from pairing.
const DefaultPairingCap = 25

// Detector scans an evidence trail pairwise for contradicting claims.
// Detection is symmetric and order-independent: the same trail in any
// order yields the same conflict set. It never resolves a conflict on its
// own; only a later correction claim removes one from the active set.
type Detector struct {
	comparators []Comparator
	pairingCap  int
	logger      *zap.Logger
}

func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{
		comparators: DefaultComparators(),
		pairingCap:  DefaultPairingCap,
		logger:      logger,
	}
}

// SetPairingCap overrides the pairing bound. A cap of 0 disables it.
func (d *Detector) SetPairingCap(n int) {
	d.pairingCap = n
}

// SetComparators replaces the opposition heuristics.
func (d *Detector) SetComparators(cs []Comparator) {
	d.comparators = cs
}

// Resolve applies correction claims: every claim opposed by a
// later-arriving claim tagged as a correction is marked superseded.
// Superseded claims keep their trail entry for provenance but leave the
// pairing set, so their conflicts disappear from the active set.
func (d *Detector) Resolve(trail domain.EvidenceTrail) domain.EvidenceTrail {
	resolved := make(domain.EvidenceTrail, len(trail))
	copy(resolved, trail)

	for _, corr := range resolved {
		if !corr.HasTag(domain.TagCorrection) {
			continue
		}
		for i, c := range resolved {
			if c.Superseded || c.ArrivalSeq >= corr.ArrivalSeq {
				continue
			}
			if d.opposes(corr, c) {
				d.logger.Debug("claim superseded by correction",
					zap.String("superseded", c.Statement),
					zap.String("correction", corr.Statement))
				resolved[i].Superseded = true
			}
		}
	}
	return resolved
}

// Detect returns the active conflict set for the trail. Only non-superseded
// claims within the pairing cap are compared, and only pairs sharing an
// inferred subject. Output order is canonical (by conflict key) so the
// result is reproducible regardless of trail ordering.
func (d *Detector) Detect(trail domain.EvidenceTrail) []domain.Conflict {
	active := trail.Active(d.pairingCap)

	seen := make(map[string]bool)
	var conflicts []domain.Conflict
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			a, b := active[i], active[j]
			if subjectOf(a) != subjectOf(b) {
				continue
			}
			for _, cmp := range d.comparators {
				if !cmp.Opposes(a, b) {
					continue
				}
				conflict := domain.NewConflict(a, b, cmp.Name())
				if !seen[conflict.Key()] {
					seen[conflict.Key()] = true
					conflicts = append(conflicts, conflict)
				}
				break
			}
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Key() < conflicts[j].Key()
	})
	return conflicts
}

// opposes runs the full comparator set against one pair, used for
// correction resolution.
func (d *Detector) opposes(a, b domain.Claim) bool {
	if subjectOf(a) != subjectOf(b) {
		return false
	}
	for _, cmp := range d.comparators {
		if cmp.Opposes(a, b) {
			return true
		}
	}
	return false
}

// subjectMarkers end the subject span when inferring a subject from the
// statement text. Copulas, direction verbs, and quantifiers all qualify.
var subjectMarkers = map[string]bool{
	"is": true, "are": true, "was": true, "were": true,
	"has": true, "have": true, "had": true,
	"can": true, "cannot": true, "should": true, "must": true,
	"leads": true, "lead": true, "causes": true, "cause": true,
	"signals": true, "signal": true, "implies": true, "imply": true,
	"always": true, "never": true,
	"does": true, "do": true, "did": true,
}

// subjectOf infers the subject a claim asserts something about. The
// upstream extractor's polarity subject wins; otherwise the leading tokens
// of the statement up to the first verb-like marker are used.
func subjectOf(c domain.Claim) string {
	if c.PolaritySubject != "" {
		return domain.NormalizeStatement(c.PolaritySubject)
	}

	words := strings.Fields(c.Normalized())
	for i, w := range words {
		if _, isDirection := directionPairs[w]; isDirection && i > 0 {
			return strings.Join(words[:i], " ")
		}
		if subjectMarkers[w] && i > 0 {
			return strings.Join(words[:i], " ")
		}
	}
	if len(words) > 2 {
		return strings.Join(words[:2], " ")
	}
	return strings.Join(words, " ")
}
