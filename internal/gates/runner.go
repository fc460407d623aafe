package gates

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/pagefactory/internal/config"
	"github.com/steveyegge/pagefactory/internal/document"
	"github.com/steveyegge/pagefactory/internal/manifest"
)

// Config holds offline gate runner configuration
type Config struct {
	Store   *document.Store
	Policy  *config.Policy  // Optional: defaults to config.DefaultPolicy()
	State   *manifest.State // Optional: updated for every deleted page
	Workers int             // Parallel evaluations (default: GOMAXPROCS)
	DryRun  bool            // Report only; delete nothing and leave State alone
	Logger  *zap.Logger
}

// Runner executes the full rule set over every stored page
type Runner struct {
	store   *document.Store
	policy  *config.Policy
	state   *manifest.State
	workers int
	dryRun  bool
	logger  *zap.Logger
}

// DocumentResult is the gate outcome for one stored page
type DocumentResult struct {
	ID      string
	Result  Result
	Err     error // Set when the page could not be read; such pages are not deleted
	Deleted bool
}

// Failed reports whether the page failed the gate or could not be read
func (d DocumentResult) Failed() bool {
	return d.Err != nil || !d.Result.Passed
}

// Report summarizes an offline gate pass
type Report struct {
	Checked int
	Failed  int
	Deleted int
	DryRun  bool
	Results []DocumentResult // In identifier order
}

// Failures returns only the failed results
func (r *Report) Failures() []DocumentResult {
	var out []DocumentResult
	for _, d := range r.Results {
		if d.Failed() {
			out = append(out, d)
		}
	}
	return out
}

// NewRunner creates a new offline gate runner
func NewRunner(cfg *Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	policy := cfg.Policy
	if policy == nil {
		policy = config.DefaultPolicy()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:   cfg.Store,
		policy:  policy,
		state:   cfg.State,
		workers: workers,
		dryRun:  cfg.DryRun,
		logger:  logger,
	}, nil
}

// Run evaluates every stored page with SubsetFull, then deletes the
// failures one at a time and updates the manifest. Evaluation runs in
// parallel and only reads; all mutation happens afterwards on the calling
// goroutine.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ids, err := r.store.List()
	if err != nil {
		return nil, err
	}

	results := make([]DocumentResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = DocumentResult{ID: id}
			doc, err := r.store.Read(id)
			if err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Result = Evaluate(doc, r.policy, SubsetFull)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gate evaluation interrupted: %w", err)
	}

	report := &Report{Checked: len(ids), DryRun: r.dryRun, Results: results}
	for i := range results {
		d := &results[i]
		if !d.Failed() {
			continue
		}
		report.Failed++

		if d.Err != nil {
			r.logger.Warn("page unreadable", zap.String("slug", d.ID), zap.Error(d.Err))
			continue
		}
		for _, v := range d.Result.Violations {
			r.logger.Warn("page failed gate",
				zap.String("slug", d.ID),
				zap.String("rule", string(v.Rule)),
				zap.String("detail", v.Detail))
		}

		if r.dryRun {
			continue
		}
		if err := r.store.Delete(d.ID); err != nil {
			r.logger.Error("failed to delete page", zap.String("slug", d.ID), zap.Error(err))
			continue
		}
		d.Deleted = true
		report.Deleted++
		r.forget(d.ID)
	}

	r.logger.Info("quality gate complete",
		zap.Int("checked", report.Checked),
		zap.Int("failed", report.Failed),
		zap.Int("deleted", report.Deleted),
		zap.Bool("dry_run", r.dryRun))
	return report, nil
}

// forget updates the manifest for a deleted page according to policy
func (r *Runner) forget(id string) {
	if r.state == nil {
		return
	}
	switch r.policy.OnDelete {
	case config.DeleteBlacklist:
		r.state.Retire(id)
	default:
		r.state.Release(id)
	}
}
