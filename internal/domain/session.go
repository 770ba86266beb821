package domain

import "sync"

// CurrentSlot holds the latest analysis result. Last write wins, except that
// a result older than the stored one (lower Seq) is discarded.
type CurrentSlot struct {
	mu     sync.RWMutex
	result AnalysisResult
	set    bool
}

// Store saves r unless a newer result is already held. It reports whether r
// was kept.
func (s *CurrentSlot) Store(r AnalysisResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set && r.Seq < s.result.Seq {
		return false
	}
	s.result = r
	s.set = true
	return true
}

// Load returns the held result and false when nothing has been stored.
func (s *CurrentSlot) Load() (AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.set
}
