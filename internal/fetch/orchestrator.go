/*
Package fetch walks a channel backwards in batches and turns its posts into
a bounded, deduplicated breach dataset.

A run scans newest to oldest. Each batch is fetched with retries, decoded and
classified on a worker pool, then admitted serially against everything seen
so far. Whatever was accepted is committed once at the end, including when
the run is cut short by a time budget, a failed batch, a revoked session or
cancellation.
*/
package fetch

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shanehull/leakwatch/internal/channel"
	"github.com/shanehull/leakwatch/internal/classify"
	"github.com/shanehull/leakwatch/internal/config"
	"github.com/shanehull/leakwatch/internal/dataset"
	"github.com/shanehull/leakwatch/internal/dedup"
	"github.com/shanehull/leakwatch/internal/enrich"
	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/extract"
	"github.com/shanehull/leakwatch/internal/notify"
	"github.com/shanehull/leakwatch/internal/types"
)

const notifyTimeout = 30 * time.Second

// Store is the persistence a run needs.
type Store interface {
	Load() ([]types.BreachRecord, error)
	Commit(ctx context.Context, incoming []types.BreachRecord) (dataset.CommitResult, error)
}

// Annotator fills in missing fields of accepted records in place and returns
// how many it changed.
type Annotator interface {
	Annotate(ctx context.Context, records []types.BreachRecord) int
}

type Option func(*runner)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *runner) { r.log = log }
}

func WithStore(s Store) Option {
	return func(r *runner) { r.store = s }
}

func WithAnnotator(a Annotator) Option {
	return func(r *runner) { r.annotator = a }
}

func WithNotifier(n notify.Notifier) Option {
	return func(r *runner) { r.notifier = n }
}

// WithClock replaces time.Now for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *runner) { r.now = now }
}

type runner struct {
	cfg       *config.Config
	mode      types.Mode
	session   channel.Session
	store     Store
	annotator Annotator
	notifier  notify.Notifier
	log       *zap.SugaredLogger
	now       func() time.Time

	extractor  *extract.Extractor
	builder    *extract.Builder
	classifier *classify.Classifier
	seen       *dedup.Set
	retry      RetryPolicy

	summary  types.RunSummary
	accepted []types.BreachRecord
}

// evaluation is the outcome of one message on the worker pool.
type evaluation struct {
	candidate bool
	record    types.BreachRecord
	reason    types.RejectReason
}

// Run executes one run of mode against session and commits the result. The
// returned summary is complete for every outcome. The error is non-nil only
// when the run failed; partial runs return a nil error and list their
// reasons in the summary.
func Run(ctx context.Context, mode types.Mode, session channel.Session, cfg *config.Config, opts ...Option) (types.RunSummary, error) {
	r := newRunner(mode, session, cfg, opts)
	err := r.run(ctx)
	r.finish(ctx, err)
	return r.summary, err
}

// Fail reports a run that never reached the channel, such as one whose
// session could not be opened. Its summary is logged and notified exactly
// like a run that failed on the way.
func Fail(ctx context.Context, mode types.Mode, cfg *config.Config, err error, opts ...Option) types.RunSummary {
	r := newRunner(mode, nil, cfg, opts)
	r.finish(ctx, err)
	return r.summary
}

func newRunner(mode types.Mode, session channel.Session, cfg *config.Config, opts []Option) *runner {
	r := &runner{
		cfg:     cfg,
		mode:    mode,
		session: session,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = zap.NewNop().Sugar()
	}

	r.summary = types.RunSummary{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: r.now().UTC(),
		Rejected:  make(map[types.RejectReason]int),
	}
	r.log = r.log.With("run_id", r.summary.ID, "mode", mode)
	return r
}

func (r *runner) run(ctx context.Context) error {
	if err := r.cfg.ValidateFor(r.mode); err != nil {
		return err
	}
	if r.store == nil {
		r.store = dataset.FromConfig(r.cfg, r.log.Named("dataset"))
	}

	existing, err := r.store.Load()
	if err != nil {
		return err
	}
	r.seen = dedup.NewSet()
	r.seen.Seed(existing)

	r.extractor = extract.New(r.cfg.Extract.Watermarks)
	r.builder = extract.NewBuilder(r.cfg.Channel.Name, r.extractor)
	cc := r.cfg.ClassifierFor(r.mode)
	r.classifier = classify.New(classify.Config{
		BreachTerms:      cc.BreachTerms,
		SpamTerms:        cc.SpamTerms,
		MinBreachScore:   cc.MinBreachScore,
		MaxSpamScore:     cc.MaxSpamScore,
		MinContentLength: cc.MinContentLength,
		MaxContentLength: cc.MaxContentLength,
	})
	r.retry = retryPolicyFrom(r.cfg.Retry)

	r.log.Infow("Starting run",
		"channel", r.cfg.Channel.Name,
		"existing_records", len(existing),
		"batch_size", r.cfg.Fetch.BatchSize,
	)

	if err := r.walk(ctx); err != nil {
		return err
	}
	if r.summary.BatchesFetched == 0 {
		return errors.Mark(errors.New("the channel returned no batch before the run stopped"), errors.ErrNoBatches)
	}

	return r.commit(ctx)
}

// walk fetches batches until the limit, the oldest message, the time budget
// or cancellation. It only returns an error when nothing may be committed.
func (r *runner) walk(ctx context.Context) error {
	walkCtx := ctx
	if r.mode == types.ModeFullHistory && r.cfg.FullHistory.TimeBudget > 0 {
		var cancel context.CancelFunc
		walkCtx, cancel = context.WithTimeout(ctx, r.cfg.FullHistory.TimeBudget)
		defer cancel()
	}

	remaining := r.cfg.Fetch.MessageLimit
	if r.mode == types.ModeFullHistory {
		remaining = math.MaxInt
	}

	limiter := newLimiter(r.cfg.Fetch.PacingDelay)
	var cursor int64

	for remaining > 0 {
		if walkCtx.Err() != nil {
			r.interrupted(ctx)
			return nil
		}

		size := min(r.cfg.Fetch.BatchSize, remaining)
		var msgs []types.Message
		err := r.retry.Do(walkCtx, limiter, r.log, func(ctx context.Context) error {
			var err error
			msgs, err = r.session.FetchBefore(ctx, cursor, size)
			return err
		})

		if err != nil {
			switch {
			case walkCtx.Err() != nil:
				r.interrupted(ctx)
				return nil
			case r.summary.BatchesFetched == 0:
				r.summary.BatchesFailed++
				return errors.Mark(errors.Wrap(err, "fetch first batch"), errors.ErrFirstBatch)
			case errors.Is(err, errors.ErrAuth):
				r.summary.BatchesFailed++
				r.summary.MarkPartial(types.PartialAuth)
				r.summary.Failure = types.FailureAuth
				r.summary.Error = err.Error()
				r.log.Errorw("Channel session rejected mid-run, keeping what was collected",
					"cursor", cursor,
					"error", err,
				)
				return nil
			}

			r.summary.BatchesFailed++
			r.summary.MarkPartial(types.PartialBatchFailed)
			r.log.Warnw("Skipping batch window after retries",
				"cursor", cursor,
				"batch_size", size,
				"error", err,
			)
			cursor -= int64(size)
			remaining -= size
			if cursor <= 1 {
				return nil
			}
			continue
		}

		r.summary.BatchesFetched++
		if len(msgs) == 0 {
			return nil
		}

		r.process(msgs)
		remaining -= len(msgs)

		oldest := msgs[0].ID
		for _, m := range msgs[1:] {
			oldest = min(oldest, m.ID)
		}
		r.log.Debugw("Processed batch",
			"batch", r.summary.BatchesFetched,
			"messages", len(msgs),
			"oldest_id", oldest,
			"accepted_total", len(r.accepted),
		)
		if cursor > 0 && oldest >= cursor {
			r.log.Warnw("Channel returned no older messages, stopping", "cursor", cursor)
			return nil
		}
		cursor = oldest
		if cursor <= 1 {
			return nil
		}
	}
	return nil
}

// interrupted records why the walk stopped early: the parent context means
// cancellation, otherwise the time budget ran out.
func (r *runner) interrupted(parent context.Context) {
	if parent.Err() != nil {
		r.summary.MarkPartial(types.PartialCancelled)
		r.log.Warnw("Run cancelled, committing collected records", "accepted", len(r.accepted))
		return
	}
	r.summary.MarkPartial(types.PartialTimeBudget)
	r.log.Warnw("Time budget exhausted, committing collected records",
		"time_budget", r.cfg.FullHistory.TimeBudget,
		"accepted", len(r.accepted),
	)
}

// process evaluates msgs in parallel and admits them serially in message
// order, so the first of two identical posts wins.
func (r *runner) process(msgs []types.Message) {
	results := make([]evaluation, len(msgs))

	var g errgroup.Group
	g.SetLimit(max(r.cfg.Fetch.Workers, 1))
	for i, m := range msgs {
		g.Go(func() error {
			results[i] = r.evaluate(m)
			return nil
		})
	}
	_ = g.Wait()

	r.summary.Scanned += len(msgs)
	for _, ev := range results {
		if !ev.candidate {
			r.summary.Reject(types.RejectNotCandidate)
			continue
		}
		r.summary.Extracted++
		if ev.reason != "" {
			r.summary.Reject(ev.reason)
			continue
		}
		if !r.seen.Admit(ev.record) {
			r.summary.Reject(types.RejectDuplicate)
			continue
		}
		r.accepted = append(r.accepted, ev.record)
	}
}

func (r *runner) evaluate(m types.Message) evaluation {
	cand, ok := r.extractor.Extract(m)
	if !ok {
		return evaluation{}
	}

	rec, err := r.builder.Build(cand)
	if err != nil {
		var rej *extract.Rejection
		if errors.As(err, &rej) {
			return evaluation{candidate: true, reason: rej.Reason}
		}
		return evaluation{candidate: true, reason: types.RejectMalformed}
	}

	verdict := r.classifier.Classify(rec.Content)
	if !verdict.Accepted {
		return evaluation{candidate: true, reason: verdict.Reason}
	}

	if err := dataset.ValidateRecord(rec); err != nil {
		r.log.Debugw("Record failed schema validation", "message_id", m.ID, "error", err)
		return evaluation{candidate: true, reason: types.RejectSchema}
	}
	return evaluation{candidate: true, record: rec}
}

// commit annotates and enriches the accepted set, then persists it. It runs
// on a context detached from cancellation so an interrupted run still saves
// its work.
func (r *runner) commit(ctx context.Context) error {
	if r.annotator != nil && ctx.Err() == nil && len(r.accepted) > 0 {
		n := r.annotator.Annotate(ctx, r.accepted)
		r.log.Infow("Annotated records", "annotated", n)
	}
	for i := range r.accepted {
		r.accepted[i] = enrich.Record(r.accepted[i])
	}
	r.summary.Accepted = len(r.accepted)

	res, err := r.store.Commit(context.WithoutCancel(ctx), r.accepted)
	if err != nil {
		return errors.Wrap(err, "commit dataset")
	}

	r.summary.Merged = true
	r.summary.Written = res.Written
	r.summary.Evicted = res.Evicted
	r.summary.DroppedInvalid = res.DroppedInvalid
	r.summary.DatasetSize = res.Size
	r.summary.BackupPath = res.BackupPath
	return nil
}

func (r *runner) finish(ctx context.Context, err error) {
	r.summary.FinishedAt = r.now().UTC()

	switch {
	case err != nil:
		r.summary.Outcome = types.OutcomeFailed
		r.summary.Failure = errors.KindOf(err)
		r.summary.Error = err.Error()
	case len(r.summary.PartialReasons) > 0:
		r.summary.Outcome = types.OutcomePartial
	default:
		r.summary.Outcome = types.OutcomeSuccess
	}

	fields := []any{
		"outcome", r.summary.Outcome,
		"duration", r.summary.FinishedAt.Sub(r.summary.StartedAt),
		"scanned", r.summary.Scanned,
		"extracted", r.summary.Extracted,
		"accepted", r.summary.Accepted,
		"rejected", r.summary.RejectedTotal(),
		"batches_fetched", r.summary.BatchesFetched,
		"batches_failed", r.summary.BatchesFailed,
		"written", r.summary.Written,
		"evicted", r.summary.Evicted,
		"dataset_size", r.summary.DatasetSize,
		"merged", r.summary.Merged,
	}
	if len(r.summary.PartialReasons) > 0 {
		fields = append(fields, "partial_reasons", r.summary.PartialReasons)
	}
	if err != nil {
		r.log.Errorw("Run failed", append(fields, "failure", r.summary.Failure, "error", err)...)
	} else {
		r.log.Infow("Run finished", fields...)
	}

	if r.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if nerr := r.notifier.Notify(nctx, r.summary); nerr != nil {
		r.log.Warnw("Failed to send run notification", "error", nerr)
	}
}
