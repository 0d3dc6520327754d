package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/topiclab/mastery/internal/domain"
)

// PostgresArchive keeps claims pruned beyond the pairing cap and an indexed
// copy of every mastery record, so stage-level gap queries don't scan the
// file tree. It is optional; the file store remains the source of truth.
type PostgresArchive struct {
	db *pgxpool.Pool
}

func NewPostgresArchive(db *pgxpool.Pool) *PostgresArchive {
	return &PostgresArchive{db: db}
}

// Migrate creates the archive tables when they don't exist.
func (s *PostgresArchive) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS archived_claims (
			topic_id       TEXT NOT NULL,
			statement_norm TEXT NOT NULL,
			statement      TEXT NOT NULL,
			confidence     DOUBLE PRECISION NOT NULL,
			sources        JSONB NOT NULL DEFAULT '[]',
			tags           TEXT[] NOT NULL DEFAULT '{}',
			archived_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (topic_id, statement_norm)
		);
		CREATE TABLE IF NOT EXISTS mastery_records (
			topic_id  TEXT PRIMARY KEY,
			stage     INT NOT NULL,
			score     DOUBLE PRECISION NOT NULL,
			gaps      TEXT[] NOT NULL DEFAULT '{}',
			reasoning TEXT NOT NULL DEFAULT '',
			sources   TEXT[] NOT NULL DEFAULT '{}',
			created   TIMESTAMPTZ NOT NULL,
			updated   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_mastery_records_stage ON mastery_records (stage);
	`)
	if err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

func (s *PostgresArchive) ArchiveClaims(ctx context.Context, topicID string, claims []domain.Claim) error {
	for _, c := range claims {
		sources, err := json.Marshal(c.Sources)
		if err != nil {
			return fmt.Errorf("marshal claim sources: %w", err)
		}
		tags := make([]string, 0, len(c.Tags))
		for _, t := range c.Tags {
			tags = append(tags, string(t))
		}
		_, err = s.db.Exec(ctx,
			`INSERT INTO archived_claims (topic_id, statement_norm, statement, confidence, sources, tags)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (topic_id, statement_norm)
			 DO UPDATE SET confidence = GREATEST(archived_claims.confidence, EXCLUDED.confidence),
			               sources = EXCLUDED.sources,
			               tags = EXCLUDED.tags,
			               archived_at = now()`,
			topicID, c.Normalized(), c.Statement, c.Confidence, sources, tags,
		)
		if err != nil {
			return fmt.Errorf("archive claim for %s: %w", topicID, err)
		}
	}
	return nil
}

func (s *PostgresArchive) UpsertRecord(ctx context.Context, r domain.MasteryRecord) error {
	gaps := r.Gaps
	if gaps == nil {
		gaps = []string{}
	}
	sources := r.Sources
	if sources == nil {
		sources = []string{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO mastery_records (topic_id, stage, score, gaps, reasoning, sources, created, updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (topic_id)
		 DO UPDATE SET stage = EXCLUDED.stage,
		               score = EXCLUDED.score,
		               gaps = EXCLUDED.gaps,
		               reasoning = EXCLUDED.reasoning,
		               sources = EXCLUDED.sources,
		               updated = EXCLUDED.updated`,
		r.TopicID, r.Stage, r.Score, gaps, r.Reasoning, sources,
		r.Created.UTC(), r.Updated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", r.TopicID, err)
	}
	return nil
}

func (s *PostgresArchive) GapsByStage(ctx context.Context, stage int) (map[string][]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT topic_id, gaps FROM mastery_records WHERE stage = $1 ORDER BY topic_id`,
		stage,
	)
	if err != nil {
		return nil, fmt.Errorf("query gaps for stage %d: %w", stage, err)
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var topicID string
		var gaps []string
		if err := rows.Scan(&topicID, &gaps); err != nil {
			return nil, fmt.Errorf("scan gaps row: %w", err)
		}
		result[topicID] = gaps
	}
	return result, rows.Err()
}

// ListStaleRecords returns topics whose archived record predates cutoff,
// candidates for re-study scheduling.
func (s *PostgresArchive) ListStaleRecords(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT topic_id FROM mastery_records WHERE updated < $1 ORDER BY updated`,
		cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query stale records: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
