package manifest

import "slices"

// BeginRun clears the per-run scratch list. Used and blacklisted
// identifiers are cumulative and survive.
func (s *State) BeginRun() {
	s.ProducedThisRun = []string{}
}

// IsUsed reports whether id has ever been produced or blacklisted
func (s *State) IsUsed(id string) bool {
	return slices.Contains(s.UsedIdentifiers, id)
}

// IsBlacklisted reports whether id must never be retried
func (s *State) IsBlacklisted(id string) bool {
	return slices.Contains(s.Blacklisted, id)
}

// MarkUsed records id as used
func (s *State) MarkUsed(id string) {
	if id == "" || s.IsUsed(id) {
		return
	}
	s.UsedIdentifiers = append(s.UsedIdentifiers, id)
}

// MarkProduced records a page written during this run
func (s *State) MarkProduced(id string) {
	if id == "" {
		return
	}
	s.MarkUsed(id)
	if !slices.Contains(s.ProducedThisRun, id) {
		s.ProducedThisRun = append(s.ProducedThisRun, id)
	}
}

// Blacklist permanently retires id
func (s *State) Blacklist(id string) {
	if id == "" {
		return
	}
	s.MarkUsed(id)
	if !s.IsBlacklisted(id) {
		s.Blacklisted = append(s.Blacklisted, id)
	}
}

// Release forgets a produced page so a later run may generate it again.
// Blacklisted identifiers stay used.
func (s *State) Release(id string) {
	s.ProducedThisRun = slices.DeleteFunc(s.ProducedThisRun, func(x string) bool { return x == id })
	if s.IsBlacklisted(id) {
		return
	}
	s.UsedIdentifiers = slices.DeleteFunc(s.UsedIdentifiers, func(x string) bool { return x == id })
}

// Retire removes id from this run's output and blacklists it
func (s *State) Retire(id string) {
	s.ProducedThisRun = slices.DeleteFunc(s.ProducedThisRun, func(x string) bool { return x == id })
	s.Blacklist(id)
}

// NextTemplate returns the rotation slot for the next page and advances it
func (s *State) NextTemplate(n int) int {
	if n <= 0 {
		return 0
	}
	idx := s.TemplateIndex % n
	s.TemplateIndex = idx + 1
	return idx
}

// Clone returns a deep copy
func (s *State) Clone() *State {
	return &State{
		UsedIdentifiers: append([]string{}, s.UsedIdentifiers...),
		Blacklisted:     append([]string{}, s.Blacklisted...),
		ProducedThisRun: append([]string{}, s.ProducedThisRun...),
		TemplateIndex:   s.TemplateIndex,
	}
}
