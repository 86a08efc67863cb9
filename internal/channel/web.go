package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

const (
	defaultBaseURL = "https://t.me"
	maxPageBytes   = 8 << 20
	userAgent      = "Mozilla/5.0 (compatible; leakwatch/1.0)"
)

type WebOptions struct {
	Channel string
	BaseURL string
	Cookie  string // optional session cookie, sent as-is
	Timeout time.Duration
}

// WebSession reads the public web preview at <base>/s/<channel>.
type WebSession struct {
	opts   WebOptions
	client *http.Client
	log    *zap.SugaredLogger
}

func NewWebSession(opts WebOptions, log *zap.SugaredLogger) *WebSession {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	client := &http.Client{
		Timeout: opts.Timeout,
		// a redirect means the preview is unavailable for this channel
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &WebSession{opts: opts, client: client, log: log}
}

func (w *WebSession) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

// FetchBefore requests a single preview page, so every call is exactly one
// HTTP request and the caller's pacing applies to each of them. A page holds
// about twenty posts; callers asking for more simply get fewer and continue
// from the oldest id returned.
func (w *WebSession) FetchBefore(ctx context.Context, cursor int64, limit int) ([]types.Message, error) {
	page, err := w.fetchPage(ctx, cursor)
	if err != nil {
		return nil, err
	}

	msgs := make([]types.Message, 0, len(page))
	for _, m := range page {
		if cursor > 0 && m.ID >= cursor {
			continue
		}
		msgs = append(msgs, m)
	}

	msgs = sortNewestFirst(msgs)
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (w *WebSession) pageURL(before int64) string {
	u := fmt.Sprintf("%s/s/%s", w.opts.BaseURL, url.PathEscape(w.opts.Channel))
	if before > 0 {
		u += "?before=" + strconv.FormatInt(before, 10)
	}
	return u
}

func (w *WebSession) fetchPage(ctx context.Context, before int64) ([]types.Message, error) {
	pageURL := w.pageURL(before)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build request for %s", pageURL)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")
	if w.opts.Cookie != "" {
		req.Header.Set("Cookie", w.opts.Cookie)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, errors.Transient(err, "fetch "+pageURL)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			w.log.Warnw("Failed to close response body", "url", pageURL, "error", err)
		}
	}()

	if err := classifyStatus(resp); err != nil {
		return nil, errors.Wrapf(err, "fetch %s", pageURL)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, errors.Transient(err, "parse HTML from "+pageURL)
	}

	msgs, ok := parsePreview(doc, w.opts.Channel)
	if !ok {
		return nil, errors.Mark(
			errors.Newf("%s has no message history for channel %s", pageURL, w.opts.Channel),
			errors.ErrAuth,
		)
	}

	w.log.Debugw("Fetched preview page", "url", pageURL, "messages", len(msgs))
	return msgs, nil
}

func classifyStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusNotFound:
		return errors.Mark(errors.Newf("status %d", code), errors.ErrAuth)
	case code >= 300 && code < 400:
		return errors.Mark(errors.Newf("redirected to %q", resp.Header.Get("Location")), errors.ErrAuth)
	case code == http.StatusTooManyRequests || code >= 500:
		return errors.Mark(errors.Newf("status %d", code), errors.ErrTransient)
	default:
		return errors.Mark(errors.Newf("unexpected status %d", code), errors.ErrTransient)
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// parsePreview collects every post of channel on the page. It reports false
// when the page carries no message history at all, which is what Telegram
// serves for private, restricted or unknown channels.
func parsePreview(doc *html.Node, channel string) ([]types.Message, bool) {
	var (
		msgs       []types.Message
		hasHistory bool
		f          func(*html.Node)
	)

	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if hasClass(n, "tgme_channel_history") {
				hasHistory = true
			}
			if hasClass(n, "tgme_widget_message") {
				if m, ok := parsePost(n, channel); ok {
					msgs = append(msgs, m)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)

	return msgs, hasHistory
}

func parsePost(n *html.Node, channel string) (types.Message, bool) {
	post := attr(n, "data-post")
	name, idStr, ok := strings.Cut(post, "/")
	if !ok || !strings.EqualFold(name, channel) {
		return types.Message{}, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return types.Message{}, false
	}

	msg := types.Message{ID: id}
	var owner, signature string

	var f func(*html.Node)
	f = func(c *html.Node) {
		if c.Type == html.ElementNode {
			switch {
			case hasClass(c, "tgme_widget_message_text"):
				if msg.Text == "" {
					msg.Text = strings.TrimSpace(extractText(c))
				}
				return
			case hasClass(c, "tgme_widget_message_owner_name"):
				owner = strings.TrimSpace(extractText(c))
				return
			case hasClass(c, "tgme_widget_message_from_author"):
				signature = strings.TrimSpace(extractText(c))
				return
			case c.Data == "time" && msg.Date.IsZero():
				if t, err := time.Parse(time.RFC3339, attr(c, "datetime")); err == nil {
					msg.Date = t.UTC()
				}
			}
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			f(cc)
		}
	}
	f(n)

	msg.Author = owner
	if signature != "" {
		msg.Author = signature
	}
	return msg, true
}

// extractText flattens n to plain text, turning <br> into newlines.
func extractText(n *html.Node) string {
	var extract func(*html.Node, *strings.Builder)

	extract = func(n *html.Node, sb *strings.Builder) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
			return
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteString("\n")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c, sb)
		}
	}

	var sb strings.Builder
	extract(n, &sb)
	return sb.String()
}
