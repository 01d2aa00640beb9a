package learning

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Evaluation is the plain record of one tuning entry, for reports and storage.
type Evaluation struct {
	ID       uuid.UUID `json:"id"`
	Dataset  string    `json:"dataset"`
	K        int       `json:"k"`
	Distance string    `json:"distance"`
	// Quality is nil when the test failed or has not run.
	Quality  *float64  `json:"quality,omitempty"`
	Error    string    `json:"error,omitempty"`
	TestedAt time.Time `json:"tested_at"`
}

// Succeeded reports whether the evaluation produced a quality.
func (e Evaluation) Succeeded() bool {
	return e.Error == "" && e.Quality != nil
}

// Evaluation describes the last test of h against dataset.
func (h *Hyperparameter) Evaluation(dataset string) Evaluation {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ev := Evaluation{
		ID:       h.id,
		Dataset:  dataset,
		K:        h.K,
		Distance: h.distanceName,
		TestedAt: h.testedAt,
	}
	if h.lastErr != nil {
		ev.Error = h.lastErr.Error()
	} else if h.hasQuality {
		q := h.quality
		ev.Quality = &q
	}
	return ev
}

// Evaluations returns the tuning history as records, oldest first.
func (td *TrainingData) Evaluations() []Evaluation {
	td.mu.RLock()
	defer td.mu.RUnlock()
	out := make([]Evaluation, len(td.history))
	for i, ev := range td.history {
		out[i] = ev.clone()
	}
	return out
}

func (e Evaluation) clone() Evaluation {
	if e.Quality != nil {
		q := *e.Quality
		e.Quality = &q
	}
	return e
}

// Snapshot is a self-contained copy of a TrainingData for storage.
type Snapshot struct {
	Name        string       `json:"name"`
	Uploaded    *time.Time   `json:"uploaded,omitempty"`
	Tested      *time.Time   `json:"tested,omitempty"`
	Training    []Sample     `json:"training"`
	Testing     []Sample     `json:"testing"`
	Evaluations []Evaluation `json:"evaluations"`
}

// Snapshot copies the current state. Samples are copied by value.
func (td *TrainingData) Snapshot() *Snapshot {
	snap := &Snapshot{
		Name:        td.Name,
		Training:    copySamples(td.Training()),
		Testing:     copySamples(td.Testing()),
		Evaluations: td.Evaluations(),
	}
	if t, ok := td.Uploaded(); ok {
		snap.Uploaded = &t
	}
	if t, ok := td.Tested(); ok {
		snap.Tested = &t
	}
	return snap
}

// Restore rebuilds a TrainingData from snap and registers it in reg. The
// tuning history is rebuilt as Hyperparameters bound to the new TrainingData.
func Restore(reg *Registry, snap *Snapshot, opts ...TrainingOption) (*TrainingData, error) {
	if snap == nil {
		return nil, errors.New("nil snapshot")
	}
	for i, s := range snap.Training {
		if !s.IsKnown() {
			return nil, fmt.Errorf("training sample %d of %s has no species", i, snap.Name)
		}
	}
	for i, s := range snap.Testing {
		if !s.IsKnown() {
			return nil, fmt.Errorf("testing sample %d of %s has no species", i, snap.Name)
		}
	}

	td := NewTrainingData(reg, snap.Name, opts...)
	tuning := make([]*Hyperparameter, 0, len(snap.Evaluations))
	history := make([]Evaluation, 0, len(snap.Evaluations))
	for _, ev := range snap.Evaluations {
		h, err := NewHyperparameter(ev.K, td.Ref(), WithDistance(ev.Distance))
		if err != nil {
			td.Destroy()
			return nil, fmt.Errorf("failed to restore evaluation %s: %w", ev.ID, err)
		}
		h.id = ev.ID
		h.runs = 1
		h.testedAt = ev.TestedAt
		if ev.Quality != nil {
			h.quality, h.hasQuality = *ev.Quality, true
		}
		if ev.Error != "" {
			h.lastErr = errors.New(ev.Error)
		}
		tuning = append(tuning, h)
		ev.Dataset = snap.Name
		history = append(history, ev.clone())
	}

	td.mu.Lock()
	defer td.mu.Unlock()
	td.training = samplePointers(snap.Training)
	td.testing = samplePointers(snap.Testing)
	td.tuning = tuning
	td.history = history
	if snap.Uploaded != nil {
		td.uploaded = *snap.Uploaded
		td.loaded = true
	} else {
		td.loaded = len(td.training)+len(td.testing) > 0
	}
	if snap.Tested != nil {
		td.tested = *snap.Tested
	}
	return td, nil
}

func copySamples(in []*Sample) []Sample {
	out := make([]Sample, len(in))
	for i, s := range in {
		out[i] = *s
	}
	return out
}

func samplePointers(in []Sample) []*Sample {
	out := make([]*Sample, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
