// Package generator drives a generation run: it walks the title pool,
// asks the backend for each new page, recovers and validates the payload,
// and writes accepted pages while enforcing the run's budgets.
//
// Processing is sequential. One title goes end to end before the next
// begins, and all manifest updates happen on the calling goroutine.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/steveyegge/pagefactory/internal/ai"
	"github.com/steveyegge/pagefactory/internal/budget"
	"github.com/steveyegge/pagefactory/internal/config"
	"github.com/steveyegge/pagefactory/internal/deduplication"
	"github.com/steveyegge/pagefactory/internal/document"
	"github.com/steveyegge/pagefactory/internal/gates"
	"github.com/steveyegge/pagefactory/internal/manifest"
)

// ErrBudgetExhausted marks a run stopped by its call or time budget. It
// only ever appears wrapped in Summary.StopCause; Run does not return it.
var ErrBudgetExhausted = budget.ErrExhausted

// Stop reasons reported in Summary.StopReason.
const (
	StopTargetReached   = "target reached"
	StopTitlesExhausted = "titles exhausted"
	StopCallBudget      = "call budget exhausted"
	StopTimeBudget      = "time budget exhausted"
	StopCanceled        = "canceled"
)

// Completer is the backend as the generator sees it. *ai.Client
// implements it.
type Completer interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// Config holds generator configuration
type Config struct {
	Client Completer
	Store  *document.Store
	Policy *config.Policy    // Optional: defaults to config.DefaultPolicy()
	Run    *config.RunConfig // Optional: defaults to config.DefaultRunConfig()
	Dedup  deduplication.Config
	Rand   *rand.Rand       // Optional: shuffles titles and link targets
	Now    func() time.Time // Optional: defaults to time.Now
	Logger *zap.Logger
}

// Generator turns titles into validated, stored pages
type Generator struct {
	client  Completer
	store   *document.Store
	policy  *config.Policy
	run     *config.RunConfig
	dedup   deduplication.Config
	rng     *rand.Rand
	now     func() time.Time
	logger  *zap.Logger
	limiter *rate.Limiter
}

// NewGenerator creates a new generator
func NewGenerator(cfg *Config) (*Generator, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("backend client is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	policy := cfg.Policy
	if policy == nil {
		policy = config.DefaultPolicy()
	}
	run := cfg.Run
	if run == nil {
		run = config.DefaultRunConfig()
	}
	dedup := cfg.Dedup
	if dedup.Threshold == 0 {
		dedup = deduplication.DefaultConfig()
	}
	if err := dedup.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dedup config: %w", err)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Generator{
		client: cfg.Client,
		store:  cfg.Store,
		policy: policy,
		run:    run,
		dedup:  dedup,
		rng:    rng,
		now:    now,
		logger: logger,
	}
	if run.Pacing > 0 {
		g.limiter = rate.NewLimiter(rate.Every(run.Pacing), 1)
	}
	return g, nil
}

// PageRecord describes a page written during the run
type PageRecord struct {
	Slug     string
	Title    string
	Hub      string
	PageType string
}

// TitleResult is the trace of one title through the run
type TitleResult struct {
	Title       string
	Slug        string
	Outcome     Outcome
	Calls       int
	Reason      string // Why the last attempt failed or the title was skipped
	Blacklisted bool
}

// Summary reports a finished run
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Attempts         int // Titles taken from the pool
	Calls            int // Backend calls made
	Retries          int // Calls beyond the first for a title
	Skipped          int // Empty or already-used identifiers
	Duplicates       int // Near-duplicates of used identifiers
	BackendFailures  int
	MalformedRejects int
	InvalidRejects   int
	WriteFailures    int
	Blacklisted      int
	Produced         int
	Failures         int // Sum of every failure class

	StopReason string
	StopCause  error // Wraps ErrBudgetExhausted for budget stops; nil when titles ran out
	Pages      []PageRecord
	Titles     []TitleResult
}

// Run processes titles until the target is reached, a budget runs out,
// the titles are exhausted or ctx is done. state is read for identifiers
// already used and updated in place; the caller saves it.
//
// Budgets and cancellation are checked between titles and between the
// attempts of a title, never during a backend call.
func (g *Generator) Run(ctx context.Context, titles []string, state *manifest.State) (*Summary, error) {
	if state == nil {
		return nil, fmt.Errorf("manifest state is required")
	}

	start := g.now()
	summary := &Summary{RunID: uuid.NewString(), StartedAt: start}
	logger := g.logger.With(zap.String("run_id", summary.RunID))

	tracker, err := budget.NewTracker(budget.Config{
		MaxCalls:    g.run.MaxCalls,
		MaxDuration: g.run.MaxDuration,
	}, g.now, logger)
	if err != nil {
		return nil, err
	}

	state.BeginRun()

	order := slices.Clone(titles)
	if g.run.Shuffle {
		g.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	index := deduplication.NewIndex(state.UsedIdentifiers, g.dedup)
	pool := g.linkPool(logger)

	logger.Info("generation run started",
		zap.Int("titles", len(order)),
		zap.Int("target", g.run.PagesPerRun),
		zap.Int("max_calls", g.run.MaxCalls),
		zap.Int("known_identifiers", index.Len()),
		zap.Stringer("dedup", g.dedup))

	for _, title := range order {
		if stop := g.checkStop(ctx, summary, tracker); stop != nil {
			summary.stop(stop)
			break
		}
		summary.Attempts++

		tr := g.processTitle(ctx, logger, title, state, index, &pool, summary, tracker)
		summary.Titles = append(summary.Titles, tr)

		if summary.StopReason != "" {
			break
		}
	}
	if summary.StopReason == "" {
		if summary.Produced >= g.run.PagesPerRun {
			summary.StopReason = StopTargetReached
		} else {
			summary.StopReason = StopTitlesExhausted
		}
	}

	summary.Duration = g.now().Sub(start)
	logger.Info("generation run finished",
		zap.Int("produced", summary.Produced),
		zap.Int("attempts", summary.Attempts),
		zap.Int("calls", summary.Calls),
		zap.Int("failures", summary.Failures),
		zap.String("stop_reason", summary.StopReason),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// stopError says why a run stopped early.
type stopError struct {
	reason string
	err    error
}

func (e *stopError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

var errTargetReached = errors.New("page target reached")

// checkStop returns why the run must not start more work, or nil.
func (g *Generator) checkStop(ctx context.Context, s *Summary, tracker *budget.Tracker) *stopError {
	if err := ctx.Err(); err != nil {
		return &stopError{reason: StopCanceled, err: err}
	}
	if s.Produced >= g.run.PagesPerRun {
		return &stopError{reason: StopTargetReached, err: errTargetReached}
	}
	if ok, err := tracker.CanProceed(); !ok {
		reason := StopCallBudget
		var exceeded *budget.ExceededError
		if errors.As(err, &exceeded) && exceeded.Limit == budget.LimitDuration {
			reason = StopTimeBudget
		}
		return &stopError{reason: reason, err: err}
	}
	return nil
}

func (s *Summary) stop(e *stopError) {
	s.StopReason = e.reason
	s.StopCause = e
}

// processTitle runs one title through dedup, generation, validation and
// write, updating summary and state.
func (g *Generator) processTitle(ctx context.Context, logger *zap.Logger, title string, state *manifest.State,
	index *deduplication.Index, pool *[]string, summary *Summary, tracker *budget.Tracker) TitleResult {

	tr := TitleResult{Title: title, Outcome: OutcomePending}
	slug := deduplication.Canonicalize(title)
	tr.Slug = slug
	log := logger.With(zap.String("slug", slug))

	if d := index.Check(slug); d.Skip {
		g.transition(log, &tr, OutcomeSkipped)
		tr.Reason = string(d.Reason)
		if d.Reason == deduplication.SkipNearDuplicate {
			summary.Duplicates++
			tr.Reason = fmt.Sprintf("%s of %s (%.2f)", d.Reason, d.Match, d.Score)
		} else {
			summary.Skipped++
		}
		log.Debug("title skipped", zap.String("title", title), zap.String("reason", tr.Reason))
		return tr
	}

	pageType := g.nextPageType(state)
	targets := g.pickTargets(*pool)
	prompt := BuildPrompt(g.policy, title, pageType, targets)
	system := SystemPrompt(g.policy)

	var accepted *candidate
	interrupted := false
	for try := 0; try < g.run.TitleRetries; try++ {
		if stop := g.checkStop(ctx, summary, tracker); stop != nil {
			summary.stop(stop)
			interrupted = true
			break
		}

		g.transition(log, &tr, OutcomeCalling)
		tracker.RecordCall()
		summary.Calls = tracker.Calls()
		tr.Calls++
		if try > 0 {
			summary.Retries++
		}

		raw, err := g.client.Complete(ctx, system, prompt, g.run.MaxOutputTokens)
		if err != nil {
			summary.BackendFailures++
			summary.Failures++
			g.transition(log, &tr, OutcomeBackendFailed)
			tr.Reason = err.Error()
			log.Warn("backend call failed", zap.Int("attempt", try+1), zap.Error(err))
			continue
		}

		obj, err := ai.RecoverObject(raw)
		var payload Payload
		if err == nil {
			payload, err = DecodePayload(obj)
		}
		var cand *candidate
		if err == nil {
			cand, err = buildCandidate(payload, g.policy, slug, pageType, g.now().Format(document.DateLayout))
		}
		if err != nil {
			summary.MalformedRejects++
			summary.Failures++
			g.transition(log, &tr, OutcomeRejectedMalformed)
			tr.Reason = err.Error()
			log.Warn("malformed response", zap.Int("attempt", try+1), zap.Error(err))
			continue
		}

		g.transition(log, &tr, OutcomeValidating)
		res := gates.Evaluate(cand.doc, g.policy, gates.SubsetInline)
		if !res.Passed {
			summary.InvalidRejects++
			summary.Failures++
			g.transition(log, &tr, OutcomeRejectedInvalid)
			tr.Reason = res.Err().Error()
			for _, v := range res.Violations {
				log.Warn("candidate failed gate",
					zap.Int("attempt", try+1),
					zap.String("rule", string(v.Rule)),
					zap.String("detail", v.Detail))
			}
			continue
		}

		g.transition(log, &tr, OutcomeAccepted)
		accepted = cand
		break
	}

	if accepted == nil {
		// A title cut short by a budget or cancellation keeps its chance.
		if !interrupted {
			state.Blacklist(slug)
			index.Add(slug)
			summary.Blacklisted++
			tr.Blacklisted = true
			log.Warn("title blacklisted", zap.String("title", title), zap.Int("calls", tr.Calls), zap.String("reason", tr.Reason))
		}
		return tr
	}

	if err := g.store.Write(slug, accepted.raw); err != nil {
		summary.WriteFailures++
		summary.Failures++
		g.transition(log, &tr, OutcomeWriteFailed)
		tr.Reason = err.Error()
		if errors.Is(err, document.ErrExists) {
			// A page nobody recorded: claim the identifier so later runs skip it.
			state.MarkUsed(slug)
			index.Add(slug)
		}
		log.Error("failed to write page", zap.Error(err))
		return tr
	}

	g.transition(log, &tr, OutcomeWritten)
	state.MarkProduced(slug)
	index.Add(slug)
	*pool = append(*pool, slug)
	summary.Produced++
	summary.Pages = append(summary.Pages, PageRecord{
		Slug:     slug,
		Title:    accepted.doc.Header.Title,
		Hub:      accepted.doc.Header.Hub,
		PageType: accepted.doc.Header.PageType,
	})
	log.Info("page written",
		zap.Int("produced", summary.Produced),
		zap.Int("target", g.run.PagesPerRun),
		zap.String("hub", accepted.doc.Header.Hub),
		zap.String("page_type", accepted.doc.Header.PageType))

	if g.limiter != nil && summary.Produced < g.run.PagesPerRun {
		if err := g.limiter.Wait(ctx); err != nil {
			summary.stop(&stopError{reason: StopCanceled, err: err})
		}
	}
	return tr
}

func (g *Generator) transition(log *zap.Logger, tr *TitleResult, to Outcome) {
	log.Debug("title state", zap.Stringer("from", tr.Outcome), zap.Stringer("to", to))
	tr.Outcome = to
}

// nextPageType rotates through the policy's page types across runs.
func (g *Generator) nextPageType(state *manifest.State) string {
	if len(g.policy.PageTypes) == 0 {
		return ""
	}
	return g.policy.PageTypes[state.NextTemplate(len(g.policy.PageTypes))]
}

// linkPool lists existing pages grouped in hub order. A store that cannot
// be listed just means no link targets.
func (g *Generator) linkPool(logger *zap.Logger) []string {
	byHub, err := g.store.HubIndex()
	if err != nil {
		logger.Warn("cannot index existing pages; no link targets", zap.Error(err))
		return nil
	}
	hubs := make([]string, 0, len(byHub))
	for hub := range byHub {
		hubs = append(hubs, hub)
	}
	sort.Slice(hubs, func(i, j int) bool {
		pi, pj := slices.Index(g.policy.Hubs, hubs[i]), slices.Index(g.policy.Hubs, hubs[j])
		if pi != pj {
			if pi < 0 {
				return false
			}
			if pj < 0 {
				return true
			}
			return pi < pj
		}
		return hubs[i] < hubs[j]
	})
	var pool []string
	for _, hub := range hubs {
		pool = append(pool, byHub[hub]...)
	}
	return pool
}

// pickTargets returns up to LinkTargets random identifiers from pool.
func (g *Generator) pickTargets(pool []string) []string {
	n := g.run.LinkTargets
	if n <= 0 || len(pool) == 0 {
		return nil
	}
	shuffled := slices.Clone(pool)
	g.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:min(n, len(shuffled))]
}
