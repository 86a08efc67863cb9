package notify

import (
	"bytes"
	"cmp"
	"fmt"
	"html/template"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

const timeLayout = "02 Jan 2006 15:04 MST"

// RenderedMessage is a ready to send email.
type RenderedMessage struct {
	Subject string
	Text    string
	HTML    string
}

type reasonCount struct {
	Reason types.RejectReason
	Count  int
}

// emailData is what the HTML template sees.
type emailData struct {
	Summary  types.RunSummary
	Channel  string
	Duration time.Duration
	Rejected []reasonCount
	Started  string
	Finished string
}

// HTMLEmailRenderer renders run summaries as HTML emails with a plain text
// fallback.
type HTMLEmailRenderer struct {
	tmpl *template.Template
}

func NewHTMLEmailRenderer() *HTMLEmailRenderer {
	t := template.Must(template.New("email").Parse(emailHTMLTemplate))
	return &HTMLEmailRenderer{tmpl: t}
}

func (r *HTMLEmailRenderer) Render(channel string, s types.RunSummary) (*RenderedMessage, error) {
	data := newEmailData(channel, s)

	var htmlBuf bytes.Buffer
	if err := r.tmpl.Execute(&htmlBuf, data); err != nil {
		return nil, errors.Wrap(err, "failed to render HTML template")
	}

	return &RenderedMessage{
		Subject: subject(channel, s),
		Text:    renderPlainText(data),
		HTML:    htmlBuf.String(),
	}, nil
}

func newEmailData(channel string, s types.RunSummary) emailData {
	rejected := make([]reasonCount, 0, len(s.Rejected))
	for _, reason := range slices.Sorted(maps.Keys(s.Rejected)) {
		rejected = append(rejected, reasonCount{Reason: reason, Count: s.Rejected[reason]})
	}
	slices.SortStableFunc(rejected, func(a, b reasonCount) int { return cmp.Compare(b.Count, a.Count) })

	return emailData{
		Summary:  s,
		Channel:  channel,
		Duration: s.FinishedAt.Sub(s.StartedAt).Round(time.Second),
		Rejected: rejected,
		Started:  s.StartedAt.Format(timeLayout),
		Finished: s.FinishedAt.Format(timeLayout),
	}
}

func subject(channel string, s types.RunSummary) string {
	switch s.Outcome {
	case types.OutcomeFailed:
		return fmt.Sprintf("leakwatch: %s run on %s failed (%s)", s.Mode, channel, s.Failure)
	case types.OutcomePartial:
		return fmt.Sprintf("leakwatch: %s run on %s was partial, %d new records", s.Mode, channel, s.Written)
	default:
		return fmt.Sprintf("leakwatch: %s run on %s, %d new records", s.Mode, channel, s.Written)
	}
}

// renderPlainText produces a readable plain text version for email clients that don't support HTML.
func renderPlainText(d emailData) string {
	s := d.Summary
	var sb strings.Builder

	fmt.Fprintf(&sb, "leakwatch run %s\n", s.ID)
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	fmt.Fprintf(&sb, "Channel:  %s\n", d.Channel)
	fmt.Fprintf(&sb, "Mode:     %s\n", s.Mode)
	fmt.Fprintf(&sb, "Outcome:  %s\n", strings.ToUpper(string(s.Outcome)))
	if len(s.PartialReasons) > 0 {
		reasons := make([]string, len(s.PartialReasons))
		for i, r := range s.PartialReasons {
			reasons[i] = string(r)
		}
		fmt.Fprintf(&sb, "Partial:  %s\n", strings.Join(reasons, ", "))
	}
	if s.Error != "" {
		fmt.Fprintf(&sb, "Error:    %s (%s)\n", s.Error, s.Failure)
	}
	fmt.Fprintf(&sb, "Started:  %s\n", d.Started)
	fmt.Fprintf(&sb, "Duration: %s\n\n", d.Duration)

	sb.WriteString("MESSAGES\n")
	sb.WriteString(strings.Repeat("-", 20) + "\n")
	fmt.Fprintf(&sb, "Scanned:   %d\n", s.Scanned)
	fmt.Fprintf(&sb, "Extracted: %d\n", s.Extracted)
	fmt.Fprintf(&sb, "Accepted:  %d\n", s.Accepted)
	fmt.Fprintf(&sb, "Batches:   %d fetched, %d failed\n\n", s.BatchesFetched, s.BatchesFailed)

	if len(d.Rejected) > 0 {
		sb.WriteString("REJECTED\n")
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		for _, rc := range d.Rejected {
			fmt.Fprintf(&sb, "• %s: %d\n", rc.Reason, rc.Count)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("DATASET\n")
	sb.WriteString(strings.Repeat("-", 20) + "\n")
	if !s.Merged {
		sb.WriteString("Not modified.\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "New records: %d\n", s.Written)
	fmt.Fprintf(&sb, "Evicted:     %d\n", s.Evicted)
	fmt.Fprintf(&sb, "Invalid:     %d\n", s.DroppedInvalid)
	fmt.Fprintf(&sb, "Size:        %d\n", s.DatasetSize)
	if s.BackupPath != "" {
		fmt.Fprintf(&sb, "Backup:      %s\n", s.BackupPath)
	}
	return sb.String()
}
