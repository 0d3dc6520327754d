package service

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/topiclab/mastery/internal/domain"
	"go.uber.org/zap"
)

const (
	BaselineAware         = 0.3
	BaselineExplain       = 0.5
	BaselineApply         = 0.7
	SourceDiversityBonus  = 0.05
	EdgeCaseBonus         = 0.05
	ConflictPenalty       = 0.05
	ConflictPenaltyCap    = 0.15
	CriterionUnmetPenalty = 0.1

	// GapCriterionUndefined is emitted when the criterion is missing or
	// unparseable and the scorer degraded to baseline-only scoring.
	GapCriterionUndefined = "criterion_undefined"
)

// rubricInput is the full evidence a rule may consult.
type rubricInput struct {
	trail     domain.EvidenceTrail
	conflicts []domain.Conflict
	criterion domain.MasteryCriterion
}

// rubricRule is one named step of the scoring rubric: a pure function from
// the inputs to a score delta and a trace line. Rules run in fixed order
// and the deltas sum, so the same inputs always produce the same score and
// the same printed rationale.
type rubricRule struct {
	name  string
	apply func(in rubricInput) (delta float64, trace string, fired bool)
}

// Scorer applies the deterministic mastery rubric.
type Scorer struct {
	rules  []rubricRule
	logger *zap.Logger
}

func NewScorer(logger *zap.Logger) *Scorer {
	return &Scorer{
		rules: []rubricRule{
			{name: "baseline", apply: baselineRule},
			{name: "source_diversity", apply: diversityRule},
			{name: "edge_cases", apply: edgeCaseRule},
			{name: "conflict_penalty", apply: conflictRule},
			{name: "criterion_penalty", apply: criterionRule},
		},
		logger: logger,
	}
}

// Score evaluates the rubric over the active trail, the unresolved conflict
// set, and the topic's criterion. The returned record carries the clamped
// score, the unsatisfied criterion predicates as gaps, and a reasoning
// trace regenerable byte-for-byte from the same inputs. Malformed upstream
// input never fails scoring; it degrades to the most conservative score.
func (s *Scorer) Score(trail domain.EvidenceTrail, conflicts []domain.Conflict, criterion domain.MasteryCriterion) domain.MasteryRecord {
	in := rubricInput{trail: trail, conflicts: conflicts, criterion: criterion}

	total := 0.0
	var traces []string
	for _, rule := range s.rules {
		delta, trace, fired := rule.apply(in)
		if !fired {
			continue
		}
		total += delta
		traces = append(traces, trace)
	}

	score := clampScore(total)
	traces = append(traces, fmt.Sprintf("final %.2f", score))

	record := domain.MasteryRecord{
		Score:     score,
		Gaps:      gapsFor(in),
		Reasoning: strings.Join(traces, "; "),
	}

	s.logger.Debug("scored trail",
		zap.Float64("score", record.Score),
		zap.Int("claims", len(trail)),
		zap.Int("conflicts", len(conflicts)),
		zap.Strings("gaps", record.Gaps))
	return record
}

// clampScore bounds the score to [0,1]. Rubric deltas are multiples of
// 0.05, so rounding to two decimals removes float drift and keeps the
// persisted header reproducible.
func clampScore(v float64) float64 {
	v = math.Round(v*100) / 100
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func baselineRule(in rubricInput) (float64, string, bool) {
	if len(in.trail) == 0 {
		return 0, "baseline 0.00 (no evidence)", true
	}
	if in.criterion.Undefined() {
		return BaselineAware, fmt.Sprintf("baseline %.2f (criterion undefined)", BaselineAware), true
	}
	if satisfies(in.trail, domain.TagApplyConcrete) {
		return BaselineApply, fmt.Sprintf("baseline %.2f (concrete application demonstrated)", BaselineApply), true
	}
	if satisfies(in.trail, domain.TagExplain) {
		return BaselineExplain, fmt.Sprintf("baseline %.2f (explanatory claims present)", BaselineExplain), true
	}
	return BaselineAware, fmt.Sprintf("baseline %.2f (topic-aware claims only)", BaselineAware), true
}

func diversityRule(in rubricInput) (float64, string, bool) {
	kinds := in.trail.DistinctKinds()
	if kinds < 2 {
		return 0, "", false
	}
	return SourceDiversityBonus,
		fmt.Sprintf("+%.2f source diversity (%d kinds)", SourceDiversityBonus, kinds), true
}

func edgeCaseRule(in rubricInput) (float64, string, bool) {
	if !in.trail.AnyTagged(domain.TagIdentifyEdges) {
		return 0, "", false
	}
	return EdgeCaseBonus, fmt.Sprintf("+%.2f edge cases identified", EdgeCaseBonus), true
}

func conflictRule(in rubricInput) (float64, string, bool) {
	n := len(in.conflicts)
	if n == 0 {
		return 0, "", false
	}
	penalty := ConflictPenalty * float64(n)
	if penalty > ConflictPenaltyCap {
		penalty = ConflictPenaltyCap
	}
	return -penalty, fmt.Sprintf("-%.2f unresolved conflicts (%d)", penalty, n), true
}

func criterionRule(in rubricInput) (float64, string, bool) {
	if in.criterion.Undefined() || len(in.trail) == 0 {
		return 0, "", false
	}
	if !in.criterion.Requires(domain.TagApplyConcrete) || satisfies(in.trail, domain.TagApplyConcrete) {
		return 0, "", false
	}
	return -CriterionUnmetPenalty,
		fmt.Sprintf("-%.2f criterion %s unmet", CriterionUnmetPenalty, domain.TagApplyConcrete), true
}

// gapsFor lists the criterion predicates not satisfied by any claim, in
// canonical predicate order.
func gapsFor(in rubricInput) []string {
	gaps := []string{}
	if in.criterion.Undefined() {
		gaps = append(gaps, GapCriterionUndefined)
		return gaps
	}
	for _, tag := range domain.CriterionPredicates {
		if in.criterion.Requires(tag) && !satisfies(in.trail, tag) {
			gaps = append(gaps, string(tag))
		}
	}
	return gaps
}

// satisfies reports whether the trail meets one criterion predicate.
func satisfies(trail domain.EvidenceTrail, tag domain.PredicateTag) bool {
	switch tag {
	case domain.TagApplyConcrete:
		// Literal, non-generic detail is required: numeric values or a
		// named worked example.
		for _, c := range trail {
			if c.HasTag(domain.TagApplyConcrete) && hasConcreteDetail(c.Statement) {
				return true
			}
		}
		return false
	case domain.TagCiteDiverse:
		return trail.DistinctKinds() >= 2
	default:
		return trail.AnyTagged(tag)
	}
}

func hasConcreteDetail(statement string) bool {
	for _, r := range statement {
		if unicode.IsDigit(r) {
			return true
		}
	}
	lower := strings.ToLower(statement)
	return strings.Contains(lower, "e.g.") || strings.Contains(lower, "example")
}
