package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/pagefactory/internal/config"
)

var checkPolicyCmd = &cobra.Command{
	Use:   "check-policy",
	Short: "Show the effective site policy",
	Long: `Load site.yaml over the built-in defaults, validate it and print the
policy the generator and the quality gate will enforce.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		printPolicy(os.Stdout, runCfg.PolicyPath, policy)
		return nil
	},
}

func printPolicy(w io.Writer, path string, p *config.Policy) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", cyan("=== Site Policy ==="))
	fmt.Fprintf(w, "Source: %s\n\n", path)

	fmt.Fprintf(w, "Hubs:            %s (default %s)\n", strings.Join(p.Hubs, ", "), p.DefaultHub)
	fmt.Fprintf(w, "Page types:      %s\n", strings.Join(p.PageTypes, ", "))
	fmt.Fprintf(w, "Required fields: %s\n", strings.Join(p.RequiredFields, ", "))
	fmt.Fprintf(w, "Outline:\n")
	for i, h := range p.Outline {
		fmt.Fprintf(w, "  %d. %s\n", i+1, h)
	}
	if p.AllowExtraSections {
		fmt.Fprintf(w, "  (extra sections allowed)\n")
	}
	fmt.Fprintf(w, "Forbidden words: %s\n", strings.Join(p.ForbiddenWords, ", "))
	if len(p.BannedPatterns) > 0 {
		fmt.Fprintf(w, "Banned patterns:\n")
		for _, re := range p.BannedPatterns {
			fmt.Fprintf(w, "  %s\n", re.String())
		}
	}
	fmt.Fprintf(w, "FAQ:             %q, %d-%d items\n", p.FAQHeading, p.FAQMin, p.FAQMax)
	fmt.Fprintf(w, "Words:           %d-%d (intro >= %d, section >= %d)\n", p.MinWords, p.MaxWords, p.MinIntroWords, p.MinSectionWords)
	fmt.Fprintf(w, "Internal links:  >= %d", p.MinInternalLinks)
	if p.MaxInternalLinks > 0 {
		fmt.Fprintf(w, ", <= %d", p.MaxInternalLinks)
	}
	fmt.Fprintf(w, "\nGeneric anchors: %s\n", strings.Join(p.GenericAnchors, ", "))
	if p.MaxSentencesPerParagraph > 0 {
		fmt.Fprintf(w, "Paragraphs:      <= %d sentences\n", p.MaxSentencesPerParagraph)
	}
	fmt.Fprintf(w, "Heading levels:  enforced=%t\n", p.EnforceHeadingLevels)
	fmt.Fprintf(w, "On delete:       %s\n", p.OnDelete)

	for _, warning := range p.Warnings {
		fmt.Fprintf(w, "%s %s\n", yellow("warning:"), warning)
	}
	fmt.Fprintln(w)
}

func init() {
	rootCmd.AddCommand(checkPolicyCmd)
}
