package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shanehull/leakwatch/internal/errors"
)

// previewPage renders the posts with ids in [from, to] the way the channel
// preview does, newest last.
func previewPage(channel string, from, to int64) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><main><section class="tgme_channel_history js-message_history">`)
	for id := from; id <= to; id++ {
		ts := time.Date(2024, time.March, 7, 10, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute)
		fmt.Fprintf(&sb, `
<div class="tgme_widget_message_wrap js-widget_message_wrap">
  <div class="tgme_widget_message text_not_supported_wrap js-widget_message" data-post="%s/%d">
    <div class="tgme_widget_message_author accent_color"><a class="tgme_widget_message_owner_name" href="https://t.me/%s"><span dir="auto">Breach Detector</span></a></div>
    <div class="tgme_widget_message_text js-message_text" dir="auto">{&#34;Source&#34;:&#34;Site %d&#34;,<br/>&#34;Content&#34;:&#34;Database of %d user credentials leaked&#34;}</div>
    <div class="tgme_widget_message_footer"><span class="tgme_widget_message_meta"><a class="tgme_widget_message_date" href="#"><time datetime="%s" class="time">10:00</time></a></span></div>
  </div>
</div>`, channel, id, channel, id, id*1000, ts.Format(time.RFC3339))
	}
	sb.WriteString(`</section></main></body></html>`)
	return sb.String()
}

// newPreviewServer serves a channel whose posts are numbered 1..latest in
// pages of pageSize.
func newPreviewServer(t *testing.T, channel string, latest int64, pageSize int64, seen *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = append(*seen, r.URL.RequestURI())
		}
		if r.URL.Path != "/s/"+channel {
			http.NotFound(w, r)
			return
		}
		before := latest + 1
		if b := r.URL.Query().Get("before"); b != "" {
			n, err := strconv.ParseInt(b, 10, 64)
			require.NoError(t, err)
			before = n
		}
		to := before - 1
		from := max(to-pageSize+1, 1)
		if to < 1 {
			from, to = 1, 0
		}
		_, _ = w.Write([]byte(previewPage(channel, from, to)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSessionFetchBefore(t *testing.T) {
	var seen []string
	srv := newPreviewServer(t, "breachdetector", 50, 20, &seen)
	s := NewWebSession(WebOptions{Channel: "breachdetector", BaseURL: srv.URL}, zaptest.NewLogger(t).Sugar())
	defer s.Close()

	msgs, err := s.FetchBefore(context.Background(), 0, 30)
	require.NoError(t, err)
	require.Len(t, msgs, 20, "one call is one page")

	assert.Equal(t, int64(50), msgs[0].ID)
	assert.Equal(t, int64(31), msgs[19].ID)
	for i := 1; i < len(msgs); i++ {
		assert.Greater(t, msgs[i-1].ID, msgs[i].ID)
	}

	first := msgs[0]
	assert.Equal(t, "Breach Detector", first.Author)
	assert.Equal(t, "{\"Source\":\"Site 50\",\n\"Content\":\"Database of 50000 user credentials leaked\"}", first.Text)
	assert.Equal(t, time.Date(2024, time.March, 7, 10, 50, 0, 0, time.UTC), first.Date)

	msgs, err = s.FetchBefore(context.Background(), 31, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 10)
	assert.Equal(t, int64(30), msgs[0].ID)
	assert.Equal(t, int64(21), msgs[9].ID)

	assert.Equal(t, []string{"/s/breachdetector", "/s/breachdetector?before=31"}, seen)
}

func TestWebSessionWalksToTheStart(t *testing.T) {
	srv := newPreviewServer(t, "breachdetector", 50, 20, nil)
	s := NewWebSession(WebOptions{Channel: "breachdetector", BaseURL: srv.URL}, nil)

	msgs, err := s.FetchBefore(context.Background(), 5, 100)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, int64(4), msgs[0].ID)
	assert.Equal(t, int64(1), msgs[3].ID)

	msgs, err = s.FetchBefore(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestWebSessionSendsCookie(t *testing.T) {
	var cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		_, _ = w.Write([]byte(previewPage("breachdetector", 1, 1)))
	}))
	defer srv.Close()

	s := NewWebSession(WebOptions{Channel: "breachdetector", BaseURL: srv.URL, Cookie: "stel_ssid=abc"}, nil)
	_, err := s.FetchBefore(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "stel_ssid=abc", cookie)
}

func TestWebSessionErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) }, errors.ErrAuth},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }, errors.ErrAuth},
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }, errors.ErrAuth},
		{"redirect", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/breachdetector", http.StatusFound)
		}, errors.ErrAuth},
		{"no history", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html><body><div class="tgme_page">This channel is private</div></body></html>`))
		}, errors.ErrAuth},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) }, errors.ErrTransient},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }, errors.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			s := NewWebSession(WebOptions{Channel: "breachdetector", BaseURL: srv.URL}, nil)
			_, err := s.FetchBefore(context.Background(), 0, 10)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestWebSessionNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := NewWebSession(WebOptions{Channel: "breachdetector", BaseURL: url, Timeout: time.Second}, nil)
	_, err := s.FetchBefore(context.Background(), 0, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransient))
}

func TestParsePreviewIgnoresOtherChannels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := previewPage("breachdetector", 3, 4) + previewPage("someoneelse", 9, 9)
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	s := NewWebSession(WebOptions{Channel: "breachdetector", BaseURL: srv.URL}, nil)
	msgs, err := s.FetchBefore(context.Background(), 0, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(4), msgs[0].ID)
	assert.Equal(t, int64(3), msgs[1].ID)
}
