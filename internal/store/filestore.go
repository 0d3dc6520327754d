package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/topiclab/mastery/internal/domain"
	"go.uber.org/zap"
)

const claimIndexDir = ".claims"

// FileStore persists one markdown file per topic under root, plus a JSON
// claim index sidecar carrying the fidelity the markdown format cannot
// (predicate tags, polarity subjects, superseded flags, source kinds).
// The markdown file is the canonical human-readable record; the sidecar is
// derived data and is rebuilt on every append.
type FileStore struct {
	root   string
	logger *zap.Logger
}

func NewFileStore(root string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, claimIndexDir), 0o755); err != nil {
		return nil, fmt.Errorf("create memory root: %w", err)
	}
	return &FileStore{root: root, logger: logger}, nil
}

func (s *FileStore) topicPath(topicID string) string {
	return filepath.Join(s.root, topicID+".md")
}

func (s *FileStore) indexPath(topicID string) string {
	return filepath.Join(s.root, claimIndexDir, topicID+".json")
}

func (s *FileStore) Load(ctx context.Context, topicID string) (*domain.TopicFile, error) {
	raw, err := os.ReadFile(s.topicPath(topicID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read topic %s: %w", topicID, err)
	}

	header, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", topicID, err)
	}
	record, err := parseFrontmatter(header)
	if err != nil {
		return nil, fmt.Errorf("topic %s: %w", topicID, err)
	}

	return &domain.TopicFile{
		Record:  record,
		Entries: parseEntries(body),
	}, nil
}

func (s *FileStore) LoadClaims(ctx context.Context, topicID string) (domain.EvidenceTrail, error) {
	raw, err := os.ReadFile(s.indexPath(topicID))
	if err == nil {
		var trail domain.EvidenceTrail
		if jsonErr := json.Unmarshal(raw, &trail); jsonErr == nil {
			return trail, nil
		}
		s.logger.Warn("corrupt claim index, falling back to markdown",
			zap.String("topic_id", topicID))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read claim index %s: %w", topicID, err)
	}

	// No sidecar: degrade to the newest entry's evidence lines.
	file, err := s.Load(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if len(file.Entries) == 0 {
		return domain.EvidenceTrail{}, nil
	}
	return file.Entries[0].Trail, nil
}

func (s *FileStore) Append(ctx context.Context, topicID string, entry domain.MemoryEntry, record domain.MasteryRecord, claims domain.EvidenceTrail) error {
	if record.Score < 0 || record.Score > 1 {
		return fmt.Errorf("%w: score %v out of range for topic %s", ErrPersistence, record.Score, topicID)
	}
	if record.Updated.Before(record.Created) {
		return fmt.Errorf("%w: updated before created for topic %s", ErrPersistence, topicID)
	}

	// Prior entry bytes pass through verbatim; only the header is rebuilt.
	prevBody := ""
	raw, err := os.ReadFile(s.topicPath(topicID))
	switch {
	case err == nil:
		_, prevBody, err = splitFrontmatter(string(raw))
		if err != nil {
			return fmt.Errorf("topic %s: %w", topicID, err)
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("read topic %s: %w", topicID, err)
	}

	header, err := renderFrontmatter(record)
	if err != nil {
		return fmt.Errorf("topic %s: %w", topicID, err)
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(renderEntry(entry))
	if prevBody != "" {
		b.WriteString(prevBody)
	}

	if err := atomicWrite(s.topicPath(topicID), []byte(b.String())); err != nil {
		return fmt.Errorf("%w: topic %s: %v", ErrPersistence, topicID, err)
	}

	// The sidecar is derived data; a failure here is logged, not fatal,
	// because it is rebuilt from the markdown on the next degraded load.
	indexed, err := json.MarshalIndent(claims, "", "  ")
	if err == nil {
		err = atomicWrite(s.indexPath(topicID), indexed)
	}
	if err != nil {
		s.logger.Warn("failed to write claim index",
			zap.String("topic_id", topicID), zap.Error(err))
	}
	return nil
}

func (s *FileStore) ListRecords(ctx context.Context) ([]domain.MasteryRecord, error) {
	paths, err := filepath.Glob(filepath.Join(s.root, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	sort.Strings(paths)

	records := make([]domain.MasteryRecord, 0, len(paths))
	for _, p := range paths {
		topicID := strings.TrimSuffix(filepath.Base(p), ".md")
		file, err := s.Load(ctx, topicID)
		if err != nil {
			s.logger.Warn("skipping unreadable topic file",
				zap.String("path", p), zap.Error(err))
			continue
		}
		records = append(records, file.Record)
	}
	return records, nil
}

// atomicWrite persists via temp file and rename so a crash never leaves a
// half-written topic file behind.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
