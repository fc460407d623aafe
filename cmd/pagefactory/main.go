package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/pagefactory/internal/config"
	"github.com/steveyegge/pagefactory/internal/document"
	"github.com/steveyegge/pagefactory/internal/logging"
)

var (
	runCfg *config.RunConfig
	policy *config.Policy
	store  *document.Store
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pagefactory",
	Short: "Generate, validate and curate an evergreen page collection",
	Long: `pagefactory turns a pool of titles into markdown pages with a text
generation backend, checks every page against the site's quality policy and
keeps a manifest of which identifiers have been used.

Run settings come from FACTORY_* environment variables; flags override them.
The site policy is read from site.yaml (see check-policy).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRunConfig()
		if err != nil {
			return err
		}
		applyRootFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		l, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		p, err := config.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return err
		}

		runCfg, policy, logger = cfg, p, l
		if cmd != checkPolicyCmd {
			logPolicyWarnings(l, cfg.PolicyPath, p)
		}
		store = document.NewStore(cfg.ContentRoot)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// logPolicyWarnings reports policy problems that were tolerated while
// loading. check-policy prints them itself.
func logPolicyWarnings(l *zap.Logger, path string, p *config.Policy) {
	for _, w := range p.Warnings {
		l.Warn("policy warning", zap.String("policy", path), zap.String("warning", w))
	}
}

func applyRootFlags(cmd *cobra.Command, cfg *config.RunConfig) {
	flags := cmd.Flags()
	if flags.Changed("content-root") {
		cfg.ContentRoot, _ = flags.GetString("content-root")
	}
	if flags.Changed("manifest") {
		cfg.ManifestPath, _ = flags.GetString("manifest")
	}
	if flags.Changed("policy") {
		cfg.PolicyPath, _ = flags.GetString("policy")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
}

func init() {
	defaults := config.DefaultRunConfig()
	rootCmd.PersistentFlags().String("content-root", defaults.ContentRoot, "Directory holding <slug>/index.md pages")
	rootCmd.PersistentFlags().String("manifest", defaults.ManifestPath, "Path to the manifest file")
	rootCmd.PersistentFlags().String("policy", defaults.PolicyPath, "Path to the site policy file")
	rootCmd.PersistentFlags().String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", defaults.LogFormat, "Log format (console or json)")
	rootCmd.PersistentFlags().Int("workers", defaults.Workers, "Parallel page evaluations in the gate")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
