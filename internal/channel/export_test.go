package channel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanehull/leakwatch/internal/config"
	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

const exportJSON = `{
  "name": "Breach Detector",
  "type": "public_channel",
  "id": 1234567,
  "messages": [
    {"id": 1, "type": "service", "date": "2024-03-01T09:00:00", "action": "create_channel"},
    {"id": 2, "type": "message", "date": "2024-03-07T10:30:00", "date_unixtime": "1709807400", "from": "Breach Detector",
     "text": "{\"Content\":\"Database of 50000 user credentials leaked\"}"},
    {"id": 3, "type": "message", "date": "2024-03-08T11:00:00", "from": "Breach Detector",
     "text": ["{\"Content\":\"", {"type": "bold", "text": "Acme"}, " dump exposed\"}"]},
    {"id": 5, "type": "message", "date": "2024-03-09T12:00:00", "from": "Breach Detector", "author": "admin", "text": "plain"}
  ]
}`

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(path, []byte(exportJSON), 0o644))
	return path
}

func TestOpenExport(t *testing.T) {
	s, err := OpenExport(writeExport(t), nil)
	require.NoError(t, err)

	msgs, err := s.FetchBefore(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, int64(5), msgs[0].ID)
	assert.Equal(t, "admin", msgs[0].Author)

	assert.Equal(t, `{"Content":"Acme dump exposed"}`, msgs[1].Text)
	assert.Equal(t, time.Date(2024, time.March, 8, 11, 0, 0, 0, time.UTC), msgs[1].Date)

	assert.Equal(t, "Breach Detector", msgs[2].Author)
	assert.Equal(t, time.Unix(1709807400, 0).UTC(), msgs[2].Date)
}

func TestExportFetchBeforeWindows(t *testing.T) {
	var msgs []types.Message
	for id := int64(1); id <= 10; id++ {
		msgs = append(msgs, types.Message{ID: id, Text: "m"})
	}
	s := NewExportSession(msgs)
	ctx := context.Background()

	got, err := s.FetchBefore(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 9, 8}, ids(got))

	got, err = s.FetchBefore(ctx, 8, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 6, 5}, ids(got))

	got, err = s.FetchBefore(ctx, 3, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, ids(got))

	got, err = s.FetchBefore(ctx, 1, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExportFetchHonoursCancellation(t *testing.T) {
	s := NewExportSession([]types.Message{{ID: 1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FetchBefore(ctx, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenExportErrors(t *testing.T) {
	_, err := OpenExport(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err = OpenExport(path, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformed))
}

func TestOpenPicksSession(t *testing.T) {
	cfg := config.Default()

	s, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &WebSession{}, s)

	cfg.Channel.Kind = "export"
	cfg.Channel.ExportPath = writeExport(t)
	s, err = Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ExportSession{}, s)
}

func ids(msgs []types.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
