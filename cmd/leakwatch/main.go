package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shanehull/leakwatch/internal/config"
	"github.com/shanehull/leakwatch/internal/errors"
	"github.com/shanehull/leakwatch/internal/logger"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitPartial = 2
)

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

var (
	configPath string
	jsonLogs   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "leakwatch",
	Short: "Collect breach reports from a Telegram channel into a bounded JSON dataset",
	Long: `leakwatch walks a Telegram channel backwards, keeps the posts that look like
real breach reports and merges them into a deduplicated, size-bounded JSON file.

Examples:
  leakwatch run                             # incremental run over the newest messages
  leakwatch run --mode full-history --confirm
  leakwatch validate                        # check configuration and dataset
  leakwatch audit                           # data-quality report
  leakwatch backups                         # list dataset backups
  leakwatch restore data_backup_20240307_101500.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := logger.Initialize(jsonLogs || cfg.Log.JSON, cfg.Log.Level); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./leakwatch.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log JSON instead of console output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(restoreCmd)
}

func main() {
	os.Exit(execute())
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			printError(ee.err)
		}
		return ee.code
	}
	printError(err)
	return exitFailed
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
}
