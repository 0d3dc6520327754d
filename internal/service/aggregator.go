package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/topiclab/mastery/internal/domain"
	"go.uber.org/zap"
)

// InvalidClaimError marks a claim rejected during validation. The batch
// continues with the remaining valid claims; rejection counts surface as a
// header gap, never as a silent coercion.
type InvalidClaimError struct {
	Statement string
	Reason    string
}

func (e *InvalidClaimError) Error() string {
	return fmt.Sprintf("invalid claim %q: %s", e.Statement, e.Reason)
}

// Aggregator merges incoming claims into an existing evidence trail.
type Aggregator struct {
	logger *zap.Logger
}

func NewAggregator(logger *zap.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Merge validates the incoming claims and folds them into existing,
// deduplicating by normalized statement. On a duplicate the higher
// confidence wins, source lists merge, and predicate tags union. The
// result is ordered confidence descending with arrival order as the stable
// tie-break, so repeated runs of the same batch yield an identical trail.
//
// Merge has no side effects; persistence is the writer's job. The returned
// errors are the per-claim rejections.
func (a *Aggregator) Merge(existing domain.EvidenceTrail, incoming []domain.Claim) (domain.EvidenceTrail, []error) {
	merged := make(domain.EvidenceTrail, len(existing))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, c := range merged {
		index[c.Normalized()] = i
	}

	nextSeq := merged.MaxArrivalSeq() + 1
	var rejections []error

	for _, claim := range incoming {
		if err := validateClaim(claim); err != nil {
			a.logger.Warn("rejecting claim", zap.String("statement", claim.Statement), zap.Error(err))
			rejections = append(rejections, err)
			continue
		}

		norm := claim.Normalized()
		i, dup := index[norm]
		if !dup {
			claim.ArrivalSeq = nextSeq
			nextSeq++
			merged = append(merged, claim)
			index[norm] = len(merged) - 1
			continue
		}

		merged[i] = mergeDuplicate(merged[i], claim)
	}

	merged.Sort()
	return merged, rejections
}

func validateClaim(c domain.Claim) error {
	if c.Statement == "" {
		return &InvalidClaimError{Statement: c.Statement, Reason: "empty statement"}
	}
	// The persisted evidence trail is line-oriented; an embedded line
	// break would corrupt the markdown on reload.
	if strings.ContainsAny(c.Statement, "\r\n") {
		return &InvalidClaimError{Statement: c.Statement, Reason: "statement contains a line break"}
	}
	if math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1 {
		return &InvalidClaimError{
			Statement: c.Statement,
			Reason:    fmt.Sprintf("confidence %v outside [0,1]", c.Confidence),
		}
	}
	if len(c.Sources) == 0 {
		return &InvalidClaimError{Statement: c.Statement, Reason: "missing source"}
	}
	for _, s := range c.Sources {
		if s.Label == "" {
			return &InvalidClaimError{Statement: c.Statement, Reason: "source label is empty"}
		}
		if !domain.ValidSourceKind(string(s.Kind)) {
			return &InvalidClaimError{
				Statement: c.Statement,
				Reason:    fmt.Sprintf("unknown source kind %q", s.Kind),
			}
		}
	}
	return nil
}

// mergeDuplicate folds a duplicate claim into the kept entry. The kept
// entry retains its arrival sequence so ordering stays stable.
func mergeDuplicate(kept, dup domain.Claim) domain.Claim {
	if dup.Confidence > kept.Confidence {
		kept.Confidence = dup.Confidence
		kept.Statement = dup.Statement
	}
	if kept.PolaritySubject == "" {
		kept.PolaritySubject = dup.PolaritySubject
	}

	// Clone before appending so the caller's trail is never mutated
	// through a shared backing array.
	kept.Sources = append([]domain.SourceRef(nil), kept.Sources...)
	kept.Tags = append([]domain.PredicateTag(nil), kept.Tags...)

	have := make(map[string]bool, len(kept.Sources))
	for _, s := range kept.Sources {
		have[s.Label+"|"+string(s.Kind)] = true
	}
	for _, s := range dup.Sources {
		key := s.Label + "|" + string(s.Kind)
		if !have[key] {
			have[key] = true
			kept.Sources = append(kept.Sources, s)
		}
	}

	for _, t := range dup.Tags {
		if !kept.HasTag(t) {
			kept.Tags = append(kept.Tags, t)
		}
	}
	return kept
}
