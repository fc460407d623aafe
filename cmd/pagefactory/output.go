package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/steveyegge/pagefactory/internal/gates"
	"github.com/steveyegge/pagefactory/internal/generator"
)

func printSummary(w io.Writer, s *generator.Summary) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", cyan("=== Generation Summary ==="))
	fmt.Fprintf(w, "Run:        %s (%s)\n", s.RunID, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Stopped:    %s\n", s.StopReason)
	fmt.Fprintf(w, "Produced:   %s\n", green(fmt.Sprintf("%d", s.Produced)))
	fmt.Fprintf(w, "Titles:     %d attempted, %d skipped, %d near-duplicates\n", s.Attempts, s.Skipped, s.Duplicates)
	fmt.Fprintf(w, "Calls:      %d (%d retries)\n", s.Calls, s.Retries)

	failures := fmt.Sprintf("%d", s.Failures)
	if s.Failures > 0 {
		failures = red(failures)
	}
	fmt.Fprintf(w, "Failures:   %s (backend %d, malformed %d, invalid %d, write %d)\n",
		failures, s.BackendFailures, s.MalformedRejects, s.InvalidRejects, s.WriteFailures)
	fmt.Fprintf(w, "Blacklisted: %d\n", s.Blacklisted)

	if len(s.Pages) > 0 {
		fmt.Fprintln(w)
		for _, p := range s.Pages {
			fmt.Fprintf(w, "  %s %s %s\n", green("✓"), p.Slug, gray("["+p.Hub+", "+p.PageType+"]"))
		}
	}
	fmt.Fprintln(w)
}

func printReport(w io.Writer, r *gates.Report) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "\n%s\n", cyan("=== Quality Gate ==="))
	if r.DryRun {
		fmt.Fprintf(w, "%s\n", yellow("DRY RUN MODE - No pages were deleted"))
	}

	for _, d := range r.Failures() {
		if d.Err != nil {
			fmt.Fprintf(w, "%s %s: %v\n", red("✗"), d.ID, d.Err)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", red("✗"), d.ID)
		for _, v := range d.Result.Violations {
			fmt.Fprintf(w, "    %s\n", v.String())
		}
	}

	status := green("✓ all pages passed")
	if r.Failed > 0 {
		status = red(fmt.Sprintf("%d page(s) failed", r.Failed))
	}
	fmt.Fprintf(w, "\nChecked %d, deleted %d: %s\n", r.Checked, r.Deleted, status)
	if r.DryRun && r.Failed > 0 {
		fmt.Fprintf(w, "Run without --dry-run to delete: %s\n", strings.Join(failedIDs(r), ", "))
	}
}

func failedIDs(r *gates.Report) []string {
	var ids []string
	for _, d := range r.Failures() {
		ids = append(ids, d.ID)
	}
	return ids
}
