package service

import (
	"context"
	"sort"
	"time"

	"github.com/topiclab/mastery/internal/domain"
	"go.uber.org/zap"
)

// CurriculumService is the read-only consumer surface: it maps topics to
// stages and exposes gap lists for re-study scheduling. It performs no
// writes.
type CurriculumService struct {
	topics  domain.TopicStore
	archive domain.ArchiveStore
	logger  *zap.Logger
}

func NewCurriculumService(topics domain.TopicStore, logger *zap.Logger) *CurriculumService {
	return &CurriculumService{topics: topics, logger: logger}
}

// SetArchiveStore wires the indexed record archive. When present, stage
// queries hit the index instead of scanning the file tree.
func (s *CurriculumService) SetArchiveStore(as domain.ArchiveStore) {
	s.archive = as
}

// GapsForStage returns the open mastery gaps per topic at the given stage.
// Topics whose gap list is empty are included with an empty slice so the
// consumer can tell "fully resolved" from "unknown topic".
func (s *CurriculumService) GapsForStage(ctx context.Context, stage int) (map[string][]string, error) {
	if s.archive != nil {
		gaps, err := s.archive.GapsByStage(ctx, stage)
		if err == nil {
			return gaps, nil
		}
		s.logger.Warn("archive stage query failed, scanning files",
			zap.Int("stage", stage), zap.Error(err))
	}

	records, err := s.topics.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	gaps := make(map[string][]string)
	for _, r := range records {
		if r.Stage != stage {
			continue
		}
		g := r.Gaps
		if g == nil {
			g = []string{}
		}
		gaps[r.TopicID] = g
	}
	return gaps, nil
}

// StaleTopics returns topics not re-scored since cutoff, ordered oldest
// first, for re-study scheduling.
func (s *CurriculumService) StaleTopics(ctx context.Context, cutoff time.Time) ([]string, error) {
	if s.archive != nil {
		ids, err := s.archive.ListStaleRecords(ctx, cutoff)
		if err == nil {
			if ids == nil {
				ids = []string{}
			}
			return ids, nil
		}
		s.logger.Warn("archive stale query failed, scanning files", zap.Error(err))
	}

	records, err := s.topics.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	stale := make([]domain.MasteryRecord, 0, len(records))
	for _, r := range records {
		if r.Updated.Before(cutoff) {
			stale = append(stale, r)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].Updated.Equal(stale[j].Updated) {
			return stale[i].Updated.Before(stale[j].Updated)
		}
		return stale[i].TopicID < stale[j].TopicID
	})
	ids := make([]string, 0, len(stale))
	for _, r := range stale {
		ids = append(ids, r.TopicID)
	}
	return ids, nil
}

// StageProgress summarizes one stage for scheduling.
type StageProgress struct {
	Stage     int                         `json:"stage"`
	Topics    int                         `json:"topics"`
	OpenGaps  int                         `json:"open_gaps"`
	States    map[domain.MasteryState]int `json:"states"`
	MeanScore float64                     `json:"mean_score"`
}

// Progress aggregates mastery state across every persisted topic, grouped
// by stage.
func (s *CurriculumService) Progress(ctx context.Context) (map[int]*StageProgress, error) {
	records, err := s.topics.ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	progress := make(map[int]*StageProgress)
	for _, r := range records {
		p, ok := progress[r.Stage]
		if !ok {
			p = &StageProgress{
				Stage:  r.Stage,
				States: make(map[domain.MasteryState]int),
			}
			progress[r.Stage] = p
		}
		p.Topics++
		p.OpenGaps += len(r.Gaps)
		p.States[domain.StateForScore(r.Score)]++
		p.MeanScore += r.Score
	}
	for _, p := range progress {
		if p.Topics > 0 {
			p.MeanScore /= float64(p.Topics)
		}
	}
	return progress, nil
}
