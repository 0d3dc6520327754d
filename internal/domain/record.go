package domain

import "time"

// MasteryRecord is the mutable header of a topic file. The engine replaces
// it wholesale on every ingestion; it is never edited field by field.
type MasteryRecord struct {
	TopicID   string    `json:"topic_id"`
	Stage     int       `json:"stage"`
	Score     float64   `json:"score"`
	Gaps      []string  `json:"gaps"`
	Reasoning string    `json:"reasoning"`
	Sources   []string  `json:"sources"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
}

// MemoryEntry is one immutable dated section of a topic's history. Once
// written it is never mutated or removed.
type MemoryEntry struct {
	Date                time.Time     `json:"date"`
	SourceLabel         string        `json:"source_label"`
	Summary             string        `json:"summary"`
	KeyConcepts         []string      `json:"key_concepts,omitempty"`
	TradingImplications []string      `json:"trading_implications,omitempty"`
	RiskFactors         []string      `json:"risk_factors,omitempty"`
	Trail               EvidenceTrail `json:"evidence_trail,omitempty"`
	Conflicts           []Conflict    `json:"conflicts,omitempty"`
}

// TopicFile is a parsed topic: the current header plus the full history,
// newest entry first.
type TopicFile struct {
	Record  MasteryRecord `json:"record"`
	Entries []MemoryEntry `json:"entries"`
}

// MasteryState is the derived mastery stage for a score. It is never
// stored; transitions happen only by re-running the scorer.
type MasteryState string

const (
	StateUnexplored MasteryState = "unexplored"
	StateAware      MasteryState = "aware"
	StateCanExplain MasteryState = "can_explain"
	StateCanApply   MasteryState = "can_apply"
	StateMastered   MasteryState = "mastered"
)

func StateForScore(score float64) MasteryState {
	switch {
	case score >= 0.85:
		return StateMastered
	case score >= 0.7:
		return StateCanApply
	case score >= 0.5:
		return StateCanExplain
	case score >= 0.3:
		return StateAware
	default:
		return StateUnexplored
	}
}
