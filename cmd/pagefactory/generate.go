package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/pagefactory/internal/ai"
	"github.com/steveyegge/pagefactory/internal/config"
	"github.com/steveyegge/pagefactory/internal/deduplication"
	"github.com/steveyegge/pagefactory/internal/generator"
	"github.com/steveyegge/pagefactory/internal/manifest"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new pages from the title pool",
	Long: `Generate pages for unused titles until the page target is reached, the
call or time budget runs out, or the titles are exhausted.

Each title gets a bounded number of backend calls. A title whose calls all
fail is blacklisted so later runs never retry it. The manifest is saved when
the run ends, including after Ctrl+C.

Examples:
  pagefactory generate                          # Defaults from FACTORY_* env
  pagefactory generate --pages 5 --max-calls 12 # Smaller run
  pagefactory generate --backend anthropic      # Use a different provider`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyGenerateFlags(cmd, runCfg)
		if err := runCfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := runGenerate(ctx, runCfg, policy)
		if err != nil {
			return err
		}
		printSummary(os.Stdout, summary)
		return nil
	},
}

func applyGenerateFlags(cmd *cobra.Command, cfg *config.RunConfig) {
	flags := cmd.Flags()
	if flags.Changed("titles") {
		cfg.TitlesPath, _ = flags.GetString("titles")
	}
	if flags.Changed("pages") {
		cfg.PagesPerRun, _ = flags.GetInt("pages")
	}
	if flags.Changed("max-calls") {
		cfg.MaxCalls, _ = flags.GetInt("max-calls")
	}
	if flags.Changed("max-duration") {
		cfg.MaxDuration, _ = flags.GetDuration("max-duration")
	}
	if flags.Changed("backend") {
		cfg.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("model") {
		cfg.Model, _ = flags.GetString("model")
	}
	if flags.Changed("no-shuffle") {
		noShuffle, _ := flags.GetBool("no-shuffle")
		cfg.Shuffle = !noShuffle
	}
}

// runGenerate wires the backend, store and manifest into one generation run
// and saves the manifest afterwards.
func runGenerate(ctx context.Context, cfg *config.RunConfig, p *config.Policy) (*generator.Summary, error) {
	titles, err := generator.LoadTitles(cfg.TitlesPath)
	if err != nil {
		return nil, err
	}
	dedup, err := deduplication.ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	retry := ai.DefaultRetryConfig()
	retry.Timeout = cfg.RequestTimeout
	client, err := ai.New(ctx, ai.Config{
		Backend:     cfg.Backend,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		Retry:       retry,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	state := loadManifest(cfg.ManifestPath)

	gen, err := generator.NewGenerator(&generator.Config{
		Client: client,
		Store:  store,
		Policy: p,
		Run:    cfg,
		Dedup:  dedup,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	summary, err := gen.Run(ctx, titles, state)
	if err != nil {
		return nil, err
	}
	if err := manifest.Save(cfg.ManifestPath, state); err != nil {
		return summary, fmt.Errorf("failed to save manifest: %w", err)
	}
	return summary, nil
}

// loadManifest loads the manifest. A corrupt or partial file heals to
// defaults; that is recorded at debug level only.
func loadManifest(path string) *manifest.State {
	state, info := manifest.Load(path)
	if info.Recovered || info.Healed {
		logger.Debug("manifest self-healed",
			zap.String("path", path),
			zap.Bool("recovered", info.Recovered),
			zap.Error(info.Cause))
	}
	return state
}

func init() {
	defaults := config.DefaultRunConfig()
	generateCmd.Flags().String("titles", defaults.TitlesPath, "Title pool file (one title per line)")
	generateCmd.Flags().Int("pages", defaults.PagesPerRun, "Target number of pages")
	generateCmd.Flags().Int("max-calls", defaults.MaxCalls, "Maximum backend calls")
	generateCmd.Flags().Duration("max-duration", defaults.MaxDuration, "Maximum run time (0 = unbounded)")
	generateCmd.Flags().String("backend", defaults.Backend, "Backend: openai, anthropic or gemini")
	generateCmd.Flags().String("model", "", "Model override")
	generateCmd.Flags().Bool("no-shuffle", false, "Process titles in file order")
	rootCmd.AddCommand(generateCmd)
}
