/*
Package channel reads messages from the monitored channel. A Session walks
the channel history backwards from a cursor; the core never deals with
authentication beyond receiving an opened session.
*/
package channel

import (
	"cmp"
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/shanehull/leakwatch/internal/config"
	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/types"
)

// Session is an opened, authenticated view of one channel.
//
// FetchBefore returns up to limit messages with an id strictly lower than
// cursor, newest first. A cursor of 0 means the latest message. Session
// failures are marked errors.ErrAuth, retriable ones errors.ErrTransient.
type Session interface {
	FetchBefore(ctx context.Context, cursor int64, limit int) ([]types.Message, error)
	Close() error
}

// Open picks the session implementation from channel.kind.
func Open(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (Session, error) {
	switch cfg.Channel.Kind {
	case "web", "":
		return NewWebSession(WebOptions{
			Channel: cfg.Channel.Name,
			BaseURL: cfg.Channel.BaseURL,
			Cookie:  cfg.Channel.Cookie,
			Timeout: cfg.Channel.Timeout,
		}, log), nil
	case "export":
		return OpenExport(cfg.Channel.ExportPath, log)
	default:
		return nil, errors.InvalidConfig("unknown channel kind %q", cfg.Channel.Kind)
	}
}

// sortNewestFirst orders messages by descending id, dropping repeats.
func sortNewestFirst(msgs []types.Message) []types.Message {
	seen := make(map[int64]struct{}, len(msgs))
	out := msgs[:0]
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b types.Message) int {
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}
