// Package budget tracks the backend-call and wall-clock budget of a run.
package budget

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrExhausted is wrapped by every *ExceededError.
var ErrExhausted = errors.New("budget exhausted")

// Status represents the current budget state
type Status int

const (
	// Healthy indicates normal operation - under budget limits
	Healthy Status = iota
	// Warning indicates the run is close to a limit (>80% by default)
	Warning
	// Exceeded indicates a limit has been reached; no further calls may start
	Exceeded
)

// String returns a human-readable string representation of the budget status
func (s Status) String() string {
	switch s {
	case Healthy:
		return "HEALTHY"
	case Warning:
		return "WARNING"
	case Exceeded:
		return "EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Limit names the budget dimension that ran out
type Limit string

const (
	LimitCalls    Limit = "calls"
	LimitDuration Limit = "duration"
)

// ExceededError reports which limit stopped the run
type ExceededError struct {
	Limit Limit
	Used  string
	Max   string
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s budget exhausted (%s/%s used)", e.Limit, e.Used, e.Max)
}

func (e *ExceededError) Unwrap() error { return ErrExhausted }

// Config holds the limits of one run
type Config struct {
	// MaxCalls is the hard cap on backend calls (must be positive)
	MaxCalls int
	// MaxDuration bounds the run's wall-clock time (0 = unbounded)
	MaxDuration time.Duration
	// WarningThreshold is the used fraction at which Warning is reported
	// Default: 0.8
	WarningThreshold float64
}

// DefaultWarningThreshold is used when Config.WarningThreshold is zero.
const DefaultWarningThreshold = 0.8

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.MaxCalls <= 0 {
		return fmt.Errorf("max calls must be positive (got %d)", c.MaxCalls)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration cannot be negative (got %v)", c.MaxDuration)
	}
	if c.WarningThreshold < 0 || c.WarningThreshold > 1 {
		return fmt.Errorf("warning threshold must be in [0, 1] (got %.2f)", c.WarningThreshold)
	}
	return nil
}

// Tracker counts calls against the run's limits. It is owned by the single
// goroutine driving the run and is not safe for concurrent use.
type Tracker struct {
	config Config
	now    func() time.Time
	start  time.Time
	calls  int
	logger *zap.Logger

	// Alert tracking (to avoid spamming)
	warningLogged bool
}

// NewTracker starts a budget at now(). A nil now uses time.Now.
func NewTracker(cfg Config, now func() time.Time, logger *zap.Logger) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid budget config: %w", err)
	}
	if cfg.WarningThreshold == 0 {
		cfg.WarningThreshold = DefaultWarningThreshold
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{config: cfg, now: now, start: now(), logger: logger}, nil
}

// RecordCall counts one backend call and returns the resulting status.
func (t *Tracker) RecordCall() Status {
	t.calls++
	status := t.CheckBudget()
	if status == Warning && !t.warningLogged {
		t.warningLogged = true
		t.logger.Warn("run budget nearly used",
			zap.Int("calls", t.calls),
			zap.Int("max_calls", t.config.MaxCalls),
			zap.Duration("elapsed", t.Elapsed()))
	}
	return status
}

// Calls returns the number of calls recorded so far
func (t *Tracker) Calls() int { return t.calls }

// Elapsed returns the time since the tracker started
func (t *Tracker) Elapsed() time.Duration { return t.now().Sub(t.start) }

// CheckBudget returns the current status without recording anything
func (t *Tracker) CheckBudget() Status {
	if t.exceeded() != nil {
		return Exceeded
	}
	used := float64(t.calls) / float64(t.config.MaxCalls)
	if t.config.MaxDuration > 0 {
		used = max(used, float64(t.Elapsed())/float64(t.config.MaxDuration))
	}
	if used >= t.config.WarningThreshold {
		return Warning
	}
	return Healthy
}

// CanProceed reports whether another call may start. When it may not, the
// error is an *ExceededError naming the limit.
func (t *Tracker) CanProceed() (bool, error) {
	if err := t.exceeded(); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tracker) exceeded() *ExceededError {
	if t.calls >= t.config.MaxCalls {
		return &ExceededError{
			Limit: LimitCalls,
			Used:  fmt.Sprint(t.calls),
			Max:   fmt.Sprint(t.config.MaxCalls),
		}
	}
	if t.config.MaxDuration > 0 {
		if elapsed := t.Elapsed(); elapsed >= t.config.MaxDuration {
			return &ExceededError{
				Limit: LimitDuration,
				Used:  elapsed.Round(time.Second).String(),
				Max:   t.config.MaxDuration.String(),
			}
		}
	}
	return nil
}
