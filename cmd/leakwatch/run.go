package main

import (
	"github.com/spf13/cobra"

	"github.com/shanehull/leakwatch/internal/ai"
	"github.com/shanehull/leakwatch/internal/channel"
	"github.com/shanehull/leakwatch/internal/dataset"
	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/fetch"
	"github.com/shanehull/leakwatch/internal/logger"
	"github.com/shanehull/leakwatch/internal/notify"
	"github.com/shanehull/leakwatch/internal/types"
)

var (
	modeFlag    string
	confirmFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the channel and merge new breach reports into the dataset",
	Long: `Run walks the channel from the newest message backwards.

incremental   stops after fetch.message_limit messages (default)
full-history  walks to the first message or until full_history.time_budget;
              needs --confirm or full_history.confirm=true

Exit code is 0 on success, 2 when the run was partial and 1 on failure.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&modeFlag, "mode", "m", string(types.ModeIncremental), "incremental or full-history")
	runCmd.Flags().BoolVar(&confirmFlag, "confirm", false, "confirm a full-history run")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.Named("run")

	mode, ok := types.ParseMode(modeFlag)
	if !ok {
		return errors.InvalidConfig("unknown mode %q, want incremental or full-history", modeFlag)
	}
	if confirmFlag {
		cfg.FullHistory.Confirm = true
	}

	opts := []fetch.Option{
		fetch.WithLogger(logger.Named("fetch")),
		fetch.WithStore(dataset.FromConfig(cfg, logger.Named("dataset"))),
	}
	if n := notify.FromConfig(cfg, logger.Named("notify")); n != nil {
		opts = append(opts, fetch.WithNotifier(n))
	}
	if err := cfg.ValidateFor(mode); err != nil {
		fetch.Fail(ctx, mode, cfg, err, opts...)
		return &exitError{code: exitFailed, err: err}
	}
	if cfg.AI.Enabled {
		annotator, err := ai.NewAnnotator(ctx, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxRecords, logger.Named("ai"))
		if err != nil {
			log.Warnw("AI annotation disabled", "error", err)
		} else {
			opts = append(opts, fetch.WithAnnotator(annotator))
		}
	}

	session, err := channel.Open(ctx, cfg, logger.Named("channel"))
	if err != nil {
		err = errors.Wrap(err, "open channel session")
		fetch.Fail(ctx, mode, cfg, err, opts...)
		return &exitError{code: exitFailed, err: err}
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warnw("Failed to close channel session", "error", err)
		}
	}()

	summary, err := fetch.Run(ctx, mode, session, cfg, opts...)
	if err != nil {
		return &exitError{code: exitFailed, err: err}
	}
	if summary.Outcome == types.OutcomePartial {
		return &exitError{code: exitPartial}
	}
	return nil
}
