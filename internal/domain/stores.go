package domain

import (
	"context"
	"time"
)

// TopicStore persists topic files: the mutable header, the append-only
// entry history, and the full-fidelity claim set.
type TopicStore interface {
	// Load reads the parsed topic file. Returns store.ErrNotFound for
	// unknown topics.
	Load(ctx context.Context, topicID string) (*TopicFile, error)
	// LoadClaims reads the current evidence trail with full claim
	// fidelity (tags, subjects, superseded flags). For topics persisted
	// without a claim index it degrades to the evidence lines of the
	// newest entry.
	LoadClaims(ctx context.Context, topicID string) (EvidenceTrail, error)
	// Append atomically rewrites the header and prepends the new entry,
	// leaving all prior entry bytes untouched.
	Append(ctx context.Context, topicID string, entry MemoryEntry, record MasteryRecord, claims EvidenceTrail) error
	// ListRecords returns the current header of every persisted topic.
	ListRecords(ctx context.Context) ([]MasteryRecord, error)
}

// ArchiveStore receives claims pruned beyond the pairing cap and an
// indexed copy of each mastery record for stage-level queries.
type ArchiveStore interface {
	ArchiveClaims(ctx context.Context, topicID string, claims []Claim) error
	UpsertRecord(ctx context.Context, record MasteryRecord) error
	GapsByStage(ctx context.Context, stage int) (map[string][]string, error)
	// ListStaleRecords returns topics whose record predates cutoff,
	// candidates for re-study scheduling.
	ListStaleRecords(ctx context.Context, cutoff time.Time) ([]string, error)
}
