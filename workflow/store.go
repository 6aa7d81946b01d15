package workflow

import (
	"sync"

	"github.com/hupe1980/procuremesh/protocol"
)

// RunStore persists workflow runs. Implementations must be safe for
// concurrent use.
type RunStore interface {
	Save(run *Run) error
	Get(runID string) (*Run, error)
	List() ([]*Run, error)
}

// InMemoryRunStore is a volatile RunStore keeping runs in a process-local
// map. Each stored and returned run is cloned to prevent external mutation
// of internal state. Best suited for tests and single-process deployments.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewInMemoryRunStore constructs an empty in-memory run store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[string]*Run)}
}

// Save stores a clone of the run snapshot, overwriting any previous state.
func (s *InMemoryRunStore) Save(run *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

// Get returns a clone of the stored run.
func (s *InMemoryRunStore) Get(runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, protocol.ErrNotFound
	}
	return run.Clone(), nil
}

// List returns clones of every stored run in unspecified order.
func (s *InMemoryRunStore) List() ([]*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Clone())
	}
	return out, nil
}
