package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shanehull/leakwatch/internal/dataset"
	"github.com/shanehull/leakwatch/internal/logger"
	"github.com/shanehull/leakwatch/internal/types"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the dataset artifact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := dataset.FromConfig(cfg, logger.Named("dataset"))
		records, err := store.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Configuration OK (channel %s, %s session)\n", cfg.Channel.Name, cfg.Channel.Kind)
		fmt.Printf("Dataset OK: %d records in %s\n", len(records), store.Path())
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Report on the quality of the persisted dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := dataset.FromConfig(cfg, logger.Named("dataset"))
		rep, err := store.Audit(cfg.Classifier.SpamTerms)
		if err != nil {
			return err
		}
		printAudit(rep)
		if len(rep.Issues) > 0 {
			return &exitError{code: exitFailed}
		}
		return nil
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List dataset backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := dataset.FromConfig(cfg, logger.Named("dataset"))
		backups, err := store.Backups()
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			fmt.Println("No backups.")
			return nil
		}
		for _, b := range backups {
			fmt.Printf("%-45s %s  %8d bytes\n", b.Name, b.Taken.Format("2006-01-02 15:04:05 MST"), b.Size)
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup>",
	Short: "Replace the dataset with a validated backup",
	Long: `Restore validates the named backup and atomically makes it the dataset.
The current dataset is backed up first, so a restore can itself be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := dataset.FromConfig(cfg, logger.Named("dataset"))
		saved, err := store.Restore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Restored %s from %s\n", store.Path(), args[0])
		if saved != "" {
			fmt.Printf("Previous dataset saved as %s\n", saved)
		}
		return nil
	},
}

func printAudit(rep dataset.AuditReport) {
	fmt.Println("Dataset Audit")
	fmt.Println(rule)
	fmt.Printf("Path:        %s\n", rep.Path)
	fmt.Printf("Records:     %d\n", rep.Records)
	fmt.Printf("Size:        %d bytes\n", rep.Bytes)
	if !rep.Newest.IsZero() {
		fmt.Printf("Newest:      %s\n", rep.Newest.Format("2006-01-02 15:04 MST"))
	}
	fmt.Printf("Spam ratio:  %.1f%%\n", rep.SpamRatio*100)
	fmt.Println()

	if len(rep.TypeCounts) > 0 {
		fmt.Println("By type:")
		for _, t := range slices.Sorted(maps.Keys(rep.TypeCounts)) {
			fmt.Printf("  %-18s %d\n", t, rep.TypeCounts[t])
		}
	}
	if len(rep.SeverityCounts) > 0 {
		fmt.Println("By severity:")
		for _, s := range types.Severities {
			if n := rep.SeverityCounts[s]; n > 0 {
				fmt.Printf("  %-18s %d\n", s, n)
			}
		}
	}
	fmt.Println()

	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Println(title)
		fmt.Println("  " + strings.Join(lines, "\n  "))
	}
	section("Issues:", rep.Issues)
	section("Warnings:", rep.Warnings)
	section("Passed:", rep.Passed)
}
