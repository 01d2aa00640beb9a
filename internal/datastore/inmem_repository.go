package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/your-org/iris-knn/internal/learning"
)

// InMemRepository is an in-memory implementation of the Repository interface for testing.
type InMemRepository struct {
	mu       sync.RWMutex
	datasets map[string]*learning.Snapshot
}

// NewInMemRepository creates a new InMemRepository.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		datasets: make(map[string]*learning.Snapshot),
	}
}

// SaveTrainingData stores a copy of snap, replacing any previous dataset of the same name.
func (r *InMemRepository) SaveTrainingData(ctx context.Context, snap *learning.Snapshot) error {
	if snap == nil || snap.Name == "" {
		return fmt.Errorf("snapshot has no dataset name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[snap.Name] = cloneSnapshot(snap)
	return nil
}

// LoadTrainingData returns a copy of the stored snapshot.
func (r *InMemRepository) LoadTrainingData(ctx context.Context, name string) (*learning.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return cloneSnapshot(snap), nil
}

// ListTrainingData returns the stored dataset names in order.
func (r *InMemRepository) ListTrainingData(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.datasets))
	for name := range r.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Clear clears all data from the in-memory repository.
func (r *InMemRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets = make(map[string]*learning.Snapshot)
}

func cloneSnapshot(snap *learning.Snapshot) *learning.Snapshot {
	out := *snap
	out.Training = append([]learning.Sample{}, snap.Training...)
	out.Testing = append([]learning.Sample{}, snap.Testing...)
	out.Evaluations = make([]learning.Evaluation, len(snap.Evaluations))
	for i, ev := range snap.Evaluations {
		if ev.Quality != nil {
			q := *ev.Quality
			ev.Quality = &q
		}
		out.Evaluations[i] = ev
	}
	if snap.Uploaded != nil {
		t := *snap.Uploaded
		out.Uploaded = &t
	}
	if snap.Tested != nil {
		t := *snap.Tested
		out.Tested = &t
	}
	return &out
}
