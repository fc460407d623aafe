package deduplication

import "sort"

// Similarity returns the Jaccard overlap of the word sets of two identifiers.
// Either set being empty yields 0, so blank identifiers never match anything.
func Similarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

// IsNearDuplicate reports whether id overlaps any existing identifier by at
// least threshold.
func IsNearDuplicate(id string, existing []string, threshold float64) bool {
	_, _, ok := closest(id, existing, threshold)
	return ok
}

// closest returns the first existing identifier scoring at or above threshold.
func closest(id string, existing []string, threshold float64) (string, float64, bool) {
	for _, other := range existing {
		if score := Similarity(id, other); score >= threshold {
			return other, score, true
		}
	}
	return "", 0, false
}

// SkipReason explains why a title was not sent to the backend
type SkipReason string

const (
	SkipNone          SkipReason = ""
	SkipEmpty         SkipReason = "empty-identifier"
	SkipExact         SkipReason = "already-used"
	SkipNearDuplicate SkipReason = "near-duplicate"
)

// Decision is the outcome of checking one identifier against the index
type Decision struct {
	Skip   bool
	Reason SkipReason
	Match  string  // Existing identifier that caused the skip
	Score  float64 // Jaccard score against Match
}

// Index holds the identifiers the factory has already used.
// It is not safe for concurrent use; the orchestrator is its only writer.
type Index struct {
	cfg  Config
	ids  []string
	seen map[string]struct{}
}

// NewIndex creates an index seeded with existing identifiers
func NewIndex(existing []string, cfg Config) *Index {
	idx := &Index{cfg: cfg, seen: make(map[string]struct{}, len(existing))}
	for _, id := range existing {
		idx.Add(id)
	}
	return idx
}

// Add records an identifier. Adding a known identifier is a no-op.
func (x *Index) Add(id string) {
	if id == "" {
		return
	}
	if _, ok := x.seen[id]; ok {
		return
	}
	x.seen[id] = struct{}{}
	x.ids = append(x.ids, id)
}

// Contains reports whether the identifier has been recorded
func (x *Index) Contains(id string) bool {
	_, ok := x.seen[id]
	return ok
}

// Len returns the number of recorded identifiers
func (x *Index) Len() int {
	return len(x.ids)
}

// Identifiers returns the recorded identifiers in sorted order
func (x *Index) Identifiers() []string {
	out := append([]string(nil), x.ids...)
	sort.Strings(out)
	return out
}

// Check decides whether a candidate identifier should be skipped
func (x *Index) Check(id string) Decision {
	if id == "" {
		return Decision{Skip: true, Reason: SkipEmpty}
	}
	if x.Contains(id) {
		return Decision{Skip: true, Reason: SkipExact, Match: id, Score: 1}
	}
	if match, score, ok := closest(id, x.ids, x.cfg.Threshold); ok {
		return Decision{Skip: true, Reason: SkipNearDuplicate, Match: match, Score: score}
	}
	return Decision{}
}
