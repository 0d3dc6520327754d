package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/topiclab/mastery/internal/domain"
	"gopkg.in/yaml.v3"
)

// Topic files are markdown with a YAML frontmatter header and one dated
// section per memory entry, newest first. The header is rewritten on every
// ingestion; entry bodies are append-only and their bytes are never edited.

const (
	frontmatterDelim = "---"
	entryDateFormat  = "2006-01-02"
	timestampFormat  = time.RFC3339
)

// frontmatter mirrors the persisted header field order exactly.
type frontmatter struct {
	Created          string   `yaml:"created"`
	MasteryGaps      []string `yaml:"mastery_gaps"`
	MasteryReasoning string   `yaml:"mastery_reasoning"`
	MasteryScore     float64  `yaml:"mastery_score"`
	Sources          []string `yaml:"sources"`
	Stage            int      `yaml:"stage"`
	TopicID          string   `yaml:"topic_id"`
	Updated          string   `yaml:"updated"`
}

func renderFrontmatter(r domain.MasteryRecord) (string, error) {
	fm := frontmatter{
		Created:          r.Created.UTC().Format(timestampFormat),
		MasteryGaps:      r.Gaps,
		MasteryReasoning: r.Reasoning,
		MasteryScore:     r.Score,
		Sources:          r.Sources,
		Stage:            r.Stage,
		TopicID:          r.TopicID,
		Updated:          r.Updated.UTC().Format(timestampFormat),
	}
	if fm.MasteryGaps == nil {
		fm.MasteryGaps = []string{}
	}
	if fm.Sources == nil {
		fm.Sources = []string{}
	}

	out, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	return frontmatterDelim + "\n" + string(out) + frontmatterDelim + "\n", nil
}

func parseFrontmatter(raw string) (domain.MasteryRecord, error) {
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return domain.MasteryRecord{}, fmt.Errorf("parse frontmatter: %w", err)
	}

	rec := domain.MasteryRecord{
		TopicID:   fm.TopicID,
		Stage:     fm.Stage,
		Score:     fm.MasteryScore,
		Gaps:      fm.MasteryGaps,
		Reasoning: fm.MasteryReasoning,
		Sources:   fm.Sources,
	}
	if t, err := time.Parse(timestampFormat, fm.Created); err == nil {
		rec.Created = t
	}
	if t, err := time.Parse(timestampFormat, fm.Updated); err == nil {
		rec.Updated = t
	}
	return rec, nil
}

// splitFrontmatter separates the header block from the entry body.
func splitFrontmatter(content string) (header, body string, err error) {
	if !strings.HasPrefix(content, frontmatterDelim+"\n") {
		return "", "", fmt.Errorf("missing frontmatter delimiter")
	}
	rest := content[len(frontmatterDelim)+1:]
	idx := strings.Index(rest, "\n"+frontmatterDelim)
	if idx == -1 {
		return "", "", fmt.Errorf("missing closing frontmatter delimiter")
	}
	header = rest[:idx]
	body = rest[idx+len(frontmatterDelim)+1:]
	body = strings.TrimPrefix(body, "\n")
	return header, body, nil
}

func renderEntry(e domain.MemoryEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s — %s\n\n", e.Date.UTC().Format(entryDateFormat), e.SourceLabel)

	if e.Summary != "" {
		b.WriteString(e.Summary)
		b.WriteString("\n\n")
	}
	if len(e.KeyConcepts) > 0 {
		fmt.Fprintf(&b, "**Key concepts:** %s\n\n", strings.Join(e.KeyConcepts, ", "))
	}
	if len(e.TradingImplications) > 0 {
		b.WriteString("**Trading implications:**\n")
		for _, t := range e.TradingImplications {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n")
	}
	if len(e.RiskFactors) > 0 {
		b.WriteString("**Risk factors:**\n")
		for _, r := range e.RiskFactors {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}
	if len(e.Trail) > 0 {
		b.WriteString("**Evidence trail:**\n")
		for _, c := range e.Trail {
			fmt.Fprintf(&b, "- [%.2f] %s *(source: %s)*\n", c.Confidence, c.Statement, c.SourceLabels())
		}
		b.WriteString("\n")
	}
	if len(e.Conflicts) > 0 {
		b.WriteString("**Unresolved conflicts:**\n")
		for _, c := range e.Conflicts {
			fmt.Fprintf(&b, "- %s\n", c.Render())
		}
		b.WriteString("\n")
	}
	return b.String()
}

var (
	entryHeadingPattern = regexp.MustCompile(`^## (\d{4}-\d{2}-\d{2}) — (.*)$`)
	evidenceLinePattern = regexp.MustCompile(`^- \[([0-9.]+)\] (.+?) \*\(source: (.+)\)\*$`)
	conflictLinePattern = regexp.MustCompile(`^- ⚠️ (.+) ↔ (.+)$`)
)

// parseEntries reads the entry history from the body. Parsing is tolerant:
// unrecognized lines inside a section are ignored rather than failing the
// load, since prior entry bytes may predate this engine.
func parseEntries(body string) []domain.MemoryEntry {
	var entries []domain.MemoryEntry
	var cur *domain.MemoryEntry
	section := ""
	var summary []string

	flush := func() {
		if cur == nil {
			return
		}
		cur.Summary = strings.TrimSpace(strings.Join(summary, "\n"))
		entries = append(entries, *cur)
		cur = nil
		summary = nil
	}

	for _, line := range strings.Split(body, "\n") {
		if m := entryHeadingPattern.FindStringSubmatch(line); m != nil {
			flush()
			date, _ := time.Parse(entryDateFormat, m[1])
			cur = &domain.MemoryEntry{Date: date, SourceLabel: m[2]}
			section = "summary"
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "**Key concepts:**"):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "**Key concepts:**"))
			for _, kc := range strings.Split(rest, ",") {
				if kc = strings.TrimSpace(kc); kc != "" {
					cur.KeyConcepts = append(cur.KeyConcepts, kc)
				}
			}
			section = ""
			continue
		case strings.HasPrefix(line, "**Trading implications:**"):
			section = "implications"
			continue
		case strings.HasPrefix(line, "**Risk factors:**"):
			section = "risks"
			continue
		case strings.HasPrefix(line, "**Evidence trail:**"):
			section = "evidence"
			continue
		case strings.HasPrefix(line, "**Unresolved conflicts:**"):
			section = "conflicts"
			continue
		}

		switch section {
		case "summary":
			if strings.TrimSpace(line) != "" {
				summary = append(summary, line)
			}
		case "implications":
			if item, ok := bulletItem(line); ok {
				cur.TradingImplications = append(cur.TradingImplications, item)
			}
		case "risks":
			if item, ok := bulletItem(line); ok {
				cur.RiskFactors = append(cur.RiskFactors, item)
			}
		case "evidence":
			if m := evidenceLinePattern.FindStringSubmatch(line); m != nil {
				conf, err := strconv.ParseFloat(m[1], 64)
				if err != nil {
					continue
				}
				cur.Trail = append(cur.Trail, domain.Claim{
					Statement:  m[2],
					Confidence: conf,
					Sources:    parseSourceLabels(m[3]),
					ArrivalSeq: len(cur.Trail),
				})
			}
		case "conflicts":
			if m := conflictLinePattern.FindStringSubmatch(line); m != nil {
				cur.Conflicts = append(cur.Conflicts, domain.NewConflict(
					domain.Claim{Statement: strings.TrimSpace(m[1])},
					domain.Claim{Statement: strings.TrimSpace(m[2])},
					"persisted",
				))
			}
		}
	}
	flush()
	return entries
}

func bulletItem(line string) (string, bool) {
	if strings.HasPrefix(line, "- ") {
		return strings.TrimSpace(line[2:]), true
	}
	return "", false
}

// parseSourceLabels rebuilds source refs from a rendered label list.
// Kind information is not carried by the markdown format; claims recovered
// this way are attributed to memory provenance, since the file itself is
// the source being re-read.
func parseSourceLabels(s string) []domain.SourceRef {
	var refs []domain.SourceRef
	for _, label := range strings.Split(s, ",") {
		if label = strings.TrimSpace(label); label != "" {
			refs = append(refs, domain.SourceRef{Label: label, Kind: domain.SourceMemory})
		}
	}
	return refs
}
