package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/pagefactory/internal/config"
	"github.com/steveyegge/pagefactory/internal/gates"
	"github.com/steveyegge/pagefactory/internal/manifest"
)

// errGateFailed makes the command exit 1 after the report is printed.
var errGateFailed = errors.New("one or more pages failed the quality gate")

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Check every stored page against the quality policy",
	Long: `Run the full quality gate over every page under the content root.

Pages that violate any rule are deleted and the manifest is updated: by
default the identifier is released so a later run may regenerate it; with
on_delete: blacklist in site.yaml it is retired for good. Every violation is
logged with its page identifier. The command exits 1 when any page failed.

Examples:
  pagefactory gate            # Check, delete failures, update manifest
  pagefactory gate --dry-run  # Report only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := runGate(ctx, runCfg, policy, dryRun)
		if err != nil {
			return err
		}
		printReport(os.Stdout, report)
		if report.Failed > 0 {
			return errGateFailed
		}
		return nil
	},
}

// runGate evaluates the store and, unless dryRun, saves the updated manifest.
func runGate(ctx context.Context, cfg *config.RunConfig, p *config.Policy, dryRun bool) (*gates.Report, error) {
	state := loadManifest(cfg.ManifestPath)

	runner, err := gates.NewRunner(&gates.Config{
		Store:   store,
		Policy:  p,
		State:   state,
		Workers: cfg.Workers,
		DryRun:  dryRun,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	report, err := runner.Run(ctx)
	if err != nil {
		return nil, err
	}
	if !dryRun && report.Deleted > 0 {
		if err := manifest.Save(cfg.ManifestPath, state); err != nil {
			return report, fmt.Errorf("failed to save manifest: %w", err)
		}
	}
	return report, nil
}

func init() {
	gateCmd.Flags().Bool("dry-run", false, "Report failures without deleting pages or touching the manifest")
	rootCmd.AddCommand(gateCmd)
}
