package channel

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

// exportFile is the subset of a Telegram Desktop "result.json" export that
// matters here.
type exportFile struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Messages []exportMessage `json:"messages"`
}

type exportMessage struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	Date         string          `json:"date"`
	DateUnixtime string          `json:"date_unixtime"`
	From         string          `json:"from"`
	Author       string          `json:"author"`
	Text         json.RawMessage `json:"text"`
}

// ExportSession replays a channel export, for offline backfills and tests.
type ExportSession struct {
	msgs []types.Message // newest first
}

func OpenExport(path string, log *zap.SugaredLogger) (*ExportSession, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read channel export %s", path), errors.ErrInvalidConfig)
	}

	var f exportFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode channel export %s", path), errors.ErrMalformed)
	}

	msgs := make([]types.Message, 0, len(f.Messages))
	for _, m := range f.Messages {
		if m.Type != "" && m.Type != "message" {
			continue
		}
		msgs = append(msgs, types.Message{
			ID:     m.ID,
			Text:   flattenExportText(m.Text),
			Author: firstNonEmpty(m.Author, m.From),
			Date:   exportDate(m),
		})
	}

	log.Infow("Loaded channel export", "path", path, "channel", f.Name, "messages", len(msgs))
	return NewExportSession(msgs), nil
}

// NewExportSession serves msgs as if they were the channel history.
func NewExportSession(msgs []types.Message) *ExportSession {
	cp := append([]types.Message(nil), msgs...)
	return &ExportSession{msgs: sortNewestFirst(cp)}
}

func (e *ExportSession) FetchBefore(ctx context.Context, cursor int64, limit int) ([]types.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := 0
	if cursor > 0 {
		// msgs is sorted by descending id
		start = sort.Search(len(e.msgs), func(i int) bool { return e.msgs[i].ID < cursor })
	}
	end := min(start+limit, len(e.msgs))
	if start >= end {
		return nil, nil
	}
	return append([]types.Message(nil), e.msgs[start:end]...), nil
}

func (e *ExportSession) Close() error {
	return nil
}

// flattenExportText handles both text shapes of the export: a plain string,
// or an array mixing strings and {"type":...,"text":...} entities.
func flattenExportText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}

	var sb strings.Builder
	for _, p := range parts {
		var text string
		if err := json.Unmarshal(p, &text); err == nil {
			sb.WriteString(text)
			continue
		}
		var ent struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(p, &ent); err == nil {
			sb.WriteString(ent.Text)
		}
	}
	return sb.String()
}

func exportDate(m exportMessage) time.Time {
	if m.DateUnixtime != "" {
		if sec, err := strconv.ParseInt(m.DateUnixtime, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC()
		}
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", m.Date, time.UTC); err == nil {
		return t
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
