package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/topiclab/mastery/internal/domain"
	"github.com/topiclab/mastery/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrTopicBusy is returned when the per-topic lock cannot be acquired
	// within the configured timeout. The whole batch fails; the caller
	// retries. No partial write happens.
	ErrTopicBusy = errors.New("topic ingestion already in progress")

	ErrTopicIDMissing = errors.New("topic_id is required")
	// ErrNoValidClaims is returned when every claim in a batch was
	// rejected and the topic has no prior evidence to rescore.
	ErrNoValidClaims = errors.New("no valid claims in batch")
)

// DefaultLockTimeout bounds how long an ingestion waits for a topic's
// write slot before failing with ErrTopicBusy.
const DefaultLockTimeout = 5 * time.Second

// ClaimInput is one record from the upstream claim extractor.
type ClaimInput struct {
	Statement       string   `json:"statement"`
	Confidence      float64  `json:"confidence"`
	SourceLabel     string   `json:"source_label"`
	SourceKind      string   `json:"source_kind"`
	SourceLocator   string   `json:"source_locator,omitempty"`
	PolaritySubject string   `json:"polarity_subject,omitempty"`
	PredicateTags   []string `json:"predicate_tags,omitempty"`
}

// IngestBatch is one ingestion request for a topic: the claims plus the
// synthesized entry content and the topic's declared criterion.
type IngestBatch struct {
	TopicID             string       `json:"topic_id"`
	Stage               int          `json:"stage"`
	Criterion           string       `json:"criterion"`
	SourceLabel         string       `json:"source_label,omitempty"`
	Summary             string       `json:"summary,omitempty"`
	KeyConcepts         []string     `json:"key_concepts,omitempty"`
	TradingImplications []string     `json:"trading_implications,omitempty"`
	RiskFactors         []string     `json:"risk_factors,omitempty"`
	Claims              []ClaimInput `json:"claims"`
}

// IngestResult reports what one batch did.
type IngestResult struct {
	Record         domain.MasteryRecord `json:"record"`
	State          domain.MasteryState  `json:"state"`
	ClaimsAccepted int                  `json:"claims_accepted"`
	ClaimsRejected int                  `json:"claims_rejected"`
	Conflicts      int                  `json:"conflicts"`
}

// IngestService runs the aggregate → detect → score → write pipeline for
// one batch. Within a topic, batches are strictly serialized by an
// advisory lock; across topics they run fully in parallel. The trail is
// read fresh from the store at the start of every batch, never cached.
type IngestService struct {
	topics   domain.TopicStore
	archive  domain.ArchiveStore
	agg      *Aggregator
	detector *Detector
	scorer   *Scorer
	locks    *topicLocks

	lockTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewIngestService(topics domain.TopicStore, logger *zap.Logger) *IngestService {
	return &IngestService{
		topics:      topics,
		agg:         NewAggregator(logger),
		detector:    NewDetector(logger),
		scorer:      NewScorer(logger),
		locks:       newTopicLocks(),
		lockTimeout: DefaultLockTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// SetArchiveStore wires the optional archive for pruned claims and the
// record index.
func (s *IngestService) SetArchiveStore(as domain.ArchiveStore) {
	s.archive = as
}

func (s *IngestService) SetLockTimeout(d time.Duration) {
	s.lockTimeout = d
}

func (s *IngestService) SetPairingCap(n int) {
	s.detector.SetPairingCap(n)
}

func (s *IngestService) Ingest(ctx context.Context, batch IngestBatch) (*IngestResult, error) {
	if batch.TopicID == "" {
		return nil, ErrTopicIDMissing
	}

	release, err := s.locks.acquire(batch.TopicID, s.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	// Read fresh: header and trail come from the persisted state, so a
	// prior batch's write is always visible here.
	var prior *domain.MasteryRecord
	existing := domain.EvidenceTrail{}
	file, err := s.topics.Load(ctx, batch.TopicID)
	switch {
	case err == nil:
		prior = &file.Record
		existing, err = s.topics.LoadClaims(ctx, batch.TopicID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, err
	}

	now := s.now().UTC()
	incoming := make([]domain.Claim, 0, len(batch.Claims))
	for _, in := range batch.Claims {
		incoming = append(incoming, claimFromInput(in, now))
	}

	merged, rejections := s.agg.Merge(existing, incoming)
	accepted := len(incoming) - len(rejections)
	if accepted == 0 && len(existing) == 0 {
		return nil, ErrNoValidClaims
	}

	resolved := s.detector.Resolve(merged)
	conflicts := s.detector.Detect(resolved)
	active := resolved.Active(s.detector.pairingCap)

	record := s.scorer.Score(active, conflicts, domain.ParseCriterion(batch.Criterion))
	record.TopicID = batch.TopicID
	record.Stage = batch.Stage
	record.Sources = resolved.SourceHeaders()
	record.Created = now
	record.Updated = now
	if prior != nil {
		record.Created = prior.Created
		if batch.Stage == 0 {
			record.Stage = prior.Stage
		}
	}
	if n := len(rejections); n > 0 {
		record.Gaps = append(record.Gaps, fmt.Sprintf("n_claims_rejected: %d", n))
	}

	entry := domain.MemoryEntry{
		Date:                now,
		SourceLabel:         entryLabel(batch, incoming, rejections),
		Summary:             batch.Summary,
		KeyConcepts:         batch.KeyConcepts,
		TradingImplications: batch.TradingImplications,
		RiskFactors:         batch.RiskFactors,
		Trail:               active,
		Conflicts:           conflicts,
	}

	if err := s.topics.Append(ctx, batch.TopicID, entry, record, resolved); err != nil {
		return nil, err
	}

	// Archive writes are best-effort; the file store already holds the
	// authoritative state.
	if s.archive != nil {
		if pruned := prunedClaims(resolved, s.detector.pairingCap); len(pruned) > 0 {
			if err := s.archive.ArchiveClaims(ctx, batch.TopicID, pruned); err != nil {
				s.logger.Warn("failed to archive pruned claims",
					zap.String("topic_id", batch.TopicID), zap.Error(err))
			}
		}
		if err := s.archive.UpsertRecord(ctx, record); err != nil {
			s.logger.Warn("failed to index mastery record",
				zap.String("topic_id", batch.TopicID), zap.Error(err))
		}
	}

	s.logger.Info("ingested batch",
		zap.String("topic_id", batch.TopicID),
		zap.Float64("score", record.Score),
		zap.Int("claims_accepted", accepted),
		zap.Int("claims_rejected", len(rejections)),
		zap.Int("conflicts", len(conflicts)))

	return &IngestResult{
		Record:         record,
		State:          domain.StateForScore(record.Score),
		ClaimsAccepted: accepted,
		ClaimsRejected: len(rejections),
		Conflicts:      len(conflicts),
	}, nil
}

// GetTopic returns the persisted file for a topic.
func (s *IngestService) GetTopic(ctx context.Context, topicID string) (*domain.TopicFile, error) {
	if topicID == "" {
		return nil, ErrTopicIDMissing
	}
	return s.topics.Load(ctx, topicID)
}

func claimFromInput(in ClaimInput, now time.Time) domain.Claim {
	c := domain.Claim{
		ID:              uuid.New(),
		Statement:       in.Statement,
		Confidence:      in.Confidence,
		PolaritySubject: in.PolaritySubject,
		IngestedAt:      now,
	}
	if in.SourceLabel != "" || in.SourceKind != "" {
		c.Sources = []domain.SourceRef{{
			Label:   in.SourceLabel,
			Kind:    domain.SourceKind(in.SourceKind),
			Locator: in.SourceLocator,
		}}
	}
	for _, t := range in.PredicateTags {
		if domain.ValidPredicateTag(t) {
			c.Tags = append(c.Tags, domain.PredicateTag(t))
		}
	}
	return c
}

// entryLabel picks the dated section heading: the batch's label, else the
// first accepted claim's source.
func entryLabel(batch IngestBatch, incoming []domain.Claim, rejections []error) string {
	if batch.SourceLabel != "" {
		return batch.SourceLabel
	}
	rejected := make(map[string]bool, len(rejections))
	for _, err := range rejections {
		var ice *InvalidClaimError
		if errors.As(err, &ice) {
			rejected[ice.Statement] = true
		}
	}
	for _, c := range incoming {
		if !rejected[c.Statement] && len(c.Sources) > 0 {
			return c.Sources[0].Label
		}
	}
	return "synthesis"
}

// prunedClaims returns the claims outside the active pairing set:
// superseded ones and those beyond the confidence cap.
func prunedClaims(trail domain.EvidenceTrail, limit int) []domain.Claim {
	active := trail.Active(limit)
	keep := make(map[string]bool, len(active))
	for _, c := range active {
		keep[c.Normalized()] = true
	}
	var pruned []domain.Claim
	for _, c := range trail {
		if !keep[c.Normalized()] {
			pruned = append(pruned, c)
		}
	}
	return pruned
}
