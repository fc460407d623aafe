package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/pagefactory/internal/document"
	"github.com/steveyegge/pagefactory/internal/importer"
	"github.com/steveyegge/pagefactory/internal/manifest"
)

var importCmd = &cobra.Command{
	Use:   "import <zip>",
	Short: "Import a zip of markdown pages",
	Long: `Import every pages/*.md file of a zip archive into the content root.

Titles come from each file's frontmatter, or from the file name when the
frontmatter has none. Imported pages get the policy's default hub and the
explainer page type, and their identifiers are marked used in the manifest.
Identifiers that already exist are skipped.

Examples:
  pagefactory import export.zip
  pagefactory import export.zip --hub work-career --date 2026-02-08`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hub, _ := cmd.Flags().GetString("hub")
		date, _ := cmd.Flags().GetString("date")
		if hub == "" {
			hub = policy.DefaultHub
		}
		if !policy.HasHub(hub) {
			return fmt.Errorf("hub %q is not in the policy's hub list", hub)
		}
		if date == "" {
			date = time.Now().Format(document.DateLayout)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := runImport(ctx, args[0], hub, date)
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s Imported %d page(s) into %s\n", green("✓"), len(res.Imported), store.Root)
		for _, s := range res.Skipped {
			fmt.Printf("  %s %s: %s\n", yellow("skipped"), s.Entry, s.Reason)
		}
		return nil
	},
}

// runImport imports zipPath and saves the manifest. An interrupted import
// still records the pages it already wrote.
func runImport(ctx context.Context, zipPath, hub, date string) (*importer.Result, error) {
	state := loadManifest(runCfg.ManifestPath)
	res, err := importer.Import(ctx, zipPath, store, state, importer.Options{
		Hub:    hub,
		Date:   date,
		Logger: logger,
	})
	if res == nil {
		return nil, err
	}
	if saveErr := manifest.Save(runCfg.ManifestPath, state); saveErr != nil {
		return nil, fmt.Errorf("failed to save manifest: %w", saveErr)
	}
	return res, err
}

func init() {
	importCmd.Flags().String("hub", "", "Hub for imported pages (default: the policy's default hub)")
	importCmd.Flags().String("date", "", "Date for imported pages, YYYY-MM-DD (default: today)")
	rootCmd.AddCommand(importCmd)
}
