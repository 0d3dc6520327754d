package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SourceKind string

const (
	SourceBook   SourceKind = "book"
	SourceWeb    SourceKind = "web"
	SourceMemory SourceKind = "memory"
)

func ValidSourceKind(k string) bool {
	switch SourceKind(k) {
	case SourceBook, SourceWeb, SourceMemory:
		return true
	}
	return false
}

// SourceRef identifies where a claim came from.
type SourceRef struct {
	Label   string     `json:"label"`
	Kind    SourceKind `json:"kind"`
	Locator string     `json:"locator,omitempty"`
}

// HeaderString renders the form used in the frontmatter sources list:
// the label, suffixed with "(memory)" for memory provenance or the
// locator path when one is known.
func (s SourceRef) HeaderString() string {
	if s.Kind == SourceMemory {
		return s.Label + " (memory)"
	}
	if s.Locator != "" {
		return s.Label + " (" + s.Locator + ")"
	}
	return s.Label
}

// PredicateTag is a recognized mastery-criterion predicate attached to a
// claim by the upstream extractor.
type PredicateTag string

const (
	TagExplain       PredicateTag = "explain"
	TagApplyConcrete PredicateTag = "apply_concrete_scenario"
	TagIdentifyEdges PredicateTag = "identify_edge_cases"
	TagCiteDiverse   PredicateTag = "cite_diverse_sources"
	// TagCorrection marks a claim that supersedes whatever it contradicts.
	TagCorrection PredicateTag = "correction"
)

// CriterionPredicates lists the scoreable predicates in canonical order.
// Gap lists are emitted in this order so repeated runs produce identical
// output.
var CriterionPredicates = []PredicateTag{
	TagExplain,
	TagApplyConcrete,
	TagIdentifyEdges,
	TagCiteDiverse,
}

func ValidPredicateTag(t string) bool {
	switch PredicateTag(t) {
	case TagExplain, TagApplyConcrete, TagIdentifyEdges, TagCiteDiverse, TagCorrection:
		return true
	}
	return false
}

// Claim is an atomic, confidence-scored, source-attributed statement about a
// topic. Produced once by the upstream extractor, immutable afterwards.
type Claim struct {
	ID         uuid.UUID `json:"id"`
	Statement  string    `json:"statement"`
	Confidence float64   `json:"confidence"`

	// Sources holds provenance; the first entry is the original source,
	// later entries are merged in when duplicate statements arrive.
	Sources         []SourceRef    `json:"sources"`
	PolaritySubject string         `json:"polarity_subject,omitempty"`
	Tags            []PredicateTag `json:"tags,omitempty"`

	// Superseded is set when a later correction claim contradicts this one.
	// Superseded claims stay in the trail for provenance but are excluded
	// from conflict pairing and scoring.
	Superseded bool `json:"superseded,omitempty"`

	// ArrivalSeq is the insertion order within the topic, used as the
	// stable tie-break when confidence is equal.
	ArrivalSeq int       `json:"arrival_seq"`
	IngestedAt time.Time `json:"ingested_at"`
}

func (c Claim) HasTag(tag PredicateTag) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SourceLabels joins all provenance labels for evidence-trail rendering.
func (c Claim) SourceLabels() string {
	labels := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		labels = append(labels, s.Label)
	}
	return strings.Join(labels, ", ")
}

// Normalized returns the statement in canonical comparison form.
func (c Claim) Normalized() string {
	return NormalizeStatement(c.Statement)
}

var (
	punctPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeStatement lowercases, strips punctuation, and collapses
// whitespace so near-identical statements compare equal.
func NormalizeStatement(s string) string {
	s = strings.ToLower(s)
	s = punctPattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
