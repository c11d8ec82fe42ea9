package loadgen

import (
	"sync"

	"github.com/torosent/crankwatch/internal/testrun"
)

// sink is the append-only result channel shared by all workers. Each
// WorkerResult is fully constructed before publish, so no partial state is
// ever visible through it.
type sink struct {
	mu      sync.Mutex
	results []testrun.WorkerResult
	drained bool
}

func (s *sink) publish(r testrun.WorkerResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained {
		return
	}
	s.results = append(s.results, r)
}

// counts reports the results published so far, for progress display.
func (s *sink) counts() (total, successes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.results {
		if r.Success {
			successes++
		}
	}
	return len(s.results), successes
}

// drain hands the accumulated results over exactly once. Later publishes
// and drains are no-ops.
func (s *sink) drain() []testrun.WorkerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained {
		return nil
	}
	s.drained = true
	out := s.results
	s.results = nil
	return out
}
