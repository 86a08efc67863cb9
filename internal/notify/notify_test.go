package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/mail.v2"

	"github.com/shanehull/leakwatch/internal/config"
	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

func TestShouldNotify(t *testing.T) {
	tests := []struct {
		on      string
		outcome types.Outcome
		want    bool
	}{
		{"failure", types.OutcomeFailed, true},
		{"failure", types.OutcomePartial, false},
		{"failure", types.OutcomeSuccess, false},
		{"partial", types.OutcomeFailed, true},
		{"partial", types.OutcomePartial, true},
		{"partial", types.OutcomeSuccess, false},
		{"always", types.OutcomeSuccess, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldNotify(tt.on, tt.outcome), "%s/%s", tt.on, tt.outcome)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	assert.Nil(t, FromConfig(cfg, nil))

	cfg.Notify.SMTPServer = "smtp.example.com"
	cfg.Notify.SMTPUser = "bot@example.com"
	cfg.Notify.SMTPPass = "secret"
	cfg.Notify.To = "soc@example.com"

	n := FromConfig(cfg, nil)
	require.NotNil(t, n)
	en, ok := n.(*EmailNotifier)
	require.True(t, ok)
	assert.Equal(t, "bot@example.com", en.cfg.FromEmail)
}

func summary(outcome types.Outcome) types.RunSummary {
	start := time.Date(2024, time.March, 7, 10, 0, 0, 0, time.UTC)
	return types.RunSummary{
		ID:             "run-1",
		Mode:           types.ModeIncremental,
		StartedAt:      start,
		FinishedAt:     start.Add(95 * time.Second),
		Outcome:        outcome,
		Scanned:        100,
		Extracted:      40,
		Accepted:       12,
		Rejected:       map[types.RejectReason]int{types.RejectSpam: 3, types.RejectDuplicate: 25},
		BatchesFetched: 1,
		Written:        12,
		DatasetSize:    512,
		Merged:         true,
	}
}

func TestRender(t *testing.T) {
	s := summary(types.OutcomePartial)
	s.PartialReasons = []types.PartialReason{types.PartialBatchFailed}
	s.BackupPath = "backups/data_backup_20240307_100135.json"

	msg, err := NewHTMLEmailRenderer().Render("breachdetector", s)
	require.NoError(t, err)

	assert.Equal(t, "leakwatch: incremental run on breachdetector was partial, 12 new records", msg.Subject)
	assert.Contains(t, msg.Text, "Outcome:  PARTIAL")
	assert.Contains(t, msg.Text, "Partial:  batch_failed")
	assert.Contains(t, msg.Text, "Duration: 1m35s")
	assert.Contains(t, msg.Text, "• duplicate: 25\n• spam: 3\n")
	assert.Contains(t, msg.Text, "Backup:      backups/data_backup_20240307_100135.json")

	assert.Contains(t, msg.HTML, `class="header partial"`)
	assert.Contains(t, msg.HTML, "batch_failed")
	assert.Contains(t, msg.HTML, "Rejected: duplicate")
}

func TestRenderFailedEscapesError(t *testing.T) {
	s := summary(types.OutcomeFailed)
	s.Merged = false
	s.Failure = types.FailureCorrupt
	s.Error = `dataset <data.json>: not an array`

	msg, err := NewHTMLEmailRenderer().Render("breachdetector", s)
	require.NoError(t, err)

	assert.Equal(t, "leakwatch: incremental run on breachdetector failed (corrupt_dataset)", msg.Subject)
	assert.Contains(t, msg.Text, "Not modified.")
	assert.Contains(t, msg.HTML, "dataset &lt;data.json&gt;: not an array")
}

func TestEmailNotifier(t *testing.T) {
	var sent []*gomail.Message
	n := NewEmailNotifier(EmailConfig{
		FromEmail: "bot@example.com",
		ToEmail:   "soc@example.com",
		Enabled:   true,
	}, "partial", "breachdetector", nil)
	n.send = func(m *gomail.Message) error {
		sent = append(sent, m)
		return nil
	}
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, summary(types.OutcomeSuccess)))
	assert.Empty(t, sent)

	require.NoError(t, n.Notify(ctx, summary(types.OutcomeFailed)))
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"soc@example.com"}, sent[0].GetHeader("To"))
	assert.Equal(t, []string{"bot@example.com"}, sent[0].GetHeader("From"))

	var buf bytes.Buffer
	_, err := sent[0].WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/plain")
	assert.Contains(t, buf.String(), "text/html")
}

func TestEmailNotifierSendError(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{ToEmail: "soc@example.com", Enabled: true}, "always", "breachdetector", nil)
	n.send = func(*gomail.Message) error { return errors.New("connection refused") }

	err := n.Notify(context.Background(), summary(types.OutcomeSuccess))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
