package dataset

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

// SpamIssueRatio is the share of spam-looking records above which the audit
// reports an issue rather than a warning.
const SpamIssueRatio = 0.3

// AuditReport is a data-quality report over the persisted dataset.
type AuditReport struct {
	Path             string
	Records          int
	Bytes            int64
	Perm             os.FileMode
	Newest           time.Time
	TypeCounts       map[types.BreachType]int
	SeverityCounts   map[types.Severity]int
	SpamFlagged      int
	SpamRatio        float64
	DuplicateContent int
	UnknownSource    int
	MissingTimestamp int
	Issues           []string
	Warnings         []string
	Passed           []string
}

// Audit loads the artifact and reports on its quality. A corrupt artifact
// is returned as an error, like Load.
func (s *Store) Audit(spamTerms []string) (AuditReport, error) {
	rep := AuditReport{
		Path:           s.opts.Path,
		TypeCounts:     make(map[types.BreachType]int),
		SeverityCounts: make(map[types.Severity]int),
	}

	info, err := os.Stat(s.opts.Path)
	if err != nil {
		if os.IsNotExist(err) {
			rep.Warnings = append(rep.Warnings, "dataset file does not exist yet")
			return rep, nil
		}
		return rep, errors.Wrapf(err, "stat dataset %s", s.opts.Path)
	}
	rep.Bytes = info.Size()
	rep.Perm = info.Mode().Perm()

	records, err := s.Load()
	if err != nil {
		return rep, err
	}
	rep.Records = len(records)
	rep.Newest, _ = newest(records)

	terms := make([]string, 0, len(spamTerms))
	for _, t := range spamTerms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}

	contents := make(map[string]int, len(records))
	for _, r := range records {
		rep.TypeCounts[r.Type]++
		if r.Severity != "" {
			rep.SeverityCounts[r.Severity]++
		}
		if r.Source == "unknown" {
			rep.UnknownSource++
		}
		if r.Timestamp == "" {
			rep.MissingTimestamp++
		}
		contents[r.Content]++

		lower := strings.ToLower(r.Content)
		for _, t := range terms {
			if strings.Contains(lower, t) {
				rep.SpamFlagged++
				break
			}
		}
	}
	for _, n := range contents {
		if n > 1 {
			rep.DuplicateContent += n - 1
		}
	}

	s.grade(&rep)
	return rep, nil
}

func (s *Store) grade(rep *AuditReport) {
	switch rep.Perm {
	case 0o600, 0o644:
		rep.Passed = append(rep.Passed, fmt.Sprintf("dataset permissions %#o", rep.Perm))
	default:
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("dataset has unusual permissions %#o", rep.Perm))
	}

	if rep.Records > 0 {
		rep.SpamRatio = float64(rep.SpamFlagged) / float64(rep.Records)
	}
	switch {
	case rep.SpamRatio > SpamIssueRatio:
		rep.Issues = append(rep.Issues, fmt.Sprintf("high spam content: %d/%d records", rep.SpamFlagged, rep.Records))
	case rep.SpamFlagged > 0:
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("some spam content: %d/%d records", rep.SpamFlagged, rep.Records))
	default:
		rep.Passed = append(rep.Passed, fmt.Sprintf("no spam content in %d records", rep.Records))
	}

	if rep.DuplicateContent > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d records repeat content under another source", rep.DuplicateContent))
	}
	if rep.UnknownSource > 0 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%d records have an unknown source", rep.UnknownSource))
	}

	if s.opts.MaxBytes > 0 && rep.Bytes > s.opts.MaxBytes*9/10 {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("dataset is at %d of %d bytes", rep.Bytes, s.opts.MaxBytes))
	}
	if s.opts.MaxRecords > 0 && rep.Records >= s.opts.MaxRecords {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("dataset is at the record limit of %d", s.opts.MaxRecords))
	}
}
