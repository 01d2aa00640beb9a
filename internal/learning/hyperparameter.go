package learning

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Progress is published after every testing sample while a Hyperparameter is
// being tested.
type Progress struct {
	EvaluationID uuid.UUID `json:"evaluation_id"`
	Dataset      string    `json:"dataset"`
	K            int       `json:"k"`
	Distance     string    `json:"distance"`
	Processed    int       `json:"processed"`
	Total        int       `json:"total"`
	Passed       int       `json:"passed"`
	Quality      float64   `json:"quality"`
	Time         time.Time `json:"time"`
}

// Done reports whether this is the last update of the pass.
func (p Progress) Done() bool {
	return p.Processed == p.Total
}

// HyperparameterOption configures a Hyperparameter.
type HyperparameterOption func(*Hyperparameter)

// WithDistance selects a registered distance by name.
func WithDistance(name string) HyperparameterOption {
	return func(h *Hyperparameter) {
		h.distanceName = name
		h.distance = nil
	}
}

// WithDistanceFunc uses a custom distance, recorded under name.
func WithDistanceFunc(name string, fn DistanceFunc) HyperparameterOption {
	return func(h *Hyperparameter) {
		h.distanceName = name
		h.distance = fn
	}
}

// WithProgress registers a callback invoked synchronously after every
// classified testing sample.
func WithProgress(fn func(Progress)) HyperparameterOption {
	return func(h *Hyperparameter) { h.onProgress = fn }
}

// WithHyperparameterClock overrides time.Now for test timestamps.
func WithHyperparameterClock(now func() time.Time) HyperparameterOption {
	return func(h *Hyperparameter) { h.now = now }
}

// Hyperparameter is one k-NN configuration bound to a TrainingData through a
// non-owning Ref.
type Hyperparameter struct {
	K int

	id           uuid.UUID
	distanceName string
	distance     DistanceFunc
	ref          Ref
	onProgress   func(Progress)
	now          func() time.Time

	mu         sync.RWMutex
	quality    float64
	hasQuality bool
	testedAt   time.Time
	lastErr    error
	runs       int
}

// NewHyperparameter creates a configuration with neighbor count k tuned
// against the TrainingData behind ref. k is validated when the configuration
// is used, not here.
func NewHyperparameter(k int, ref Ref, opts ...HyperparameterOption) (*Hyperparameter, error) {
	h := &Hyperparameter{
		K:            k,
		id:           uuid.New(),
		distanceName: DefaultDistance,
		ref:          ref,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.distance == nil {
		fn, err := DistanceByName(h.distanceName)
		if err != nil {
			return nil, err
		}
		h.distance = fn
	}
	return h, nil
}

// ID identifies the current or last Test run. Every run after the first
// gets a fresh ID.
func (h *Hyperparameter) ID() uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id
}

// DistanceName returns the name of the configured distance.
func (h *Hyperparameter) DistanceName() string { return h.distanceName }

// Ref returns the reference to the TrainingData this configuration is bound to.
func (h *Hyperparameter) Ref() Ref { return h.ref }

// Quality returns the fraction of testing samples classified correctly so
// far. ok is false until the first testing sample of a pass is processed.
// It is safe to call while Test is running.
func (h *Hyperparameter) Quality() (quality float64, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.quality, h.hasQuality
}

// TestedAt returns when the last Test call finished.
func (h *Hyperparameter) TestedAt() (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.testedAt, !h.testedAt.IsZero()
}

// Err returns the error of the last Test call, if any.
func (h *Hyperparameter) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

// Classify returns the majority species among the k training samples
// closest to sample.
func (h *Hyperparameter) Classify(sample *Sample) (string, error) {
	td, err := h.ref.Resolve()
	if err != nil {
		return "", err
	}
	training := td.Training()
	if err := h.validate(len(training)); err != nil {
		return "", err
	}
	return h.vote(featureMatrix(training), training, sample.Features()), nil
}

// Test classifies every testing sample of the bound TrainingData in order,
// overwriting each sample's classification, and keeps Quality up to date
// after every sample. Test calls on the same TrainingData are serialized.
func (h *Hyperparameter) Test() error {
	id := h.beginTest()

	td, err := h.ref.Resolve()
	if err != nil {
		return h.finishTest(err)
	}

	td.evalMu.Lock()
	defer td.evalMu.Unlock()

	training, testing := td.Training(), td.Testing()
	if err := h.validate(len(training)); err != nil {
		return h.finishTest(err)
	}
	if len(testing) == 0 {
		return h.finishTest(ErrEmptyTestingSet)
	}

	vectors := featureMatrix(training)
	passed, failed := 0, 0
	for i, s := range testing {
		s.Classify(h.vote(vectors, training, s.Features()))
		if s.Matches() {
			passed++
		} else {
			failed++
		}
		q := float64(passed) / float64(passed+failed)
		h.setQuality(q)

		if h.onProgress != nil {
			h.onProgress(Progress{
				EvaluationID: id,
				Dataset:      td.Name,
				K:            h.K,
				Distance:     h.distanceName,
				Processed:    i + 1,
				Total:        len(testing),
				Passed:       passed,
				Quality:      q,
				Time:         h.now(),
			})
		}
	}
	return h.finishTest(nil)
}

func (h *Hyperparameter) validate(trainingSize int) error {
	if h.K < 1 || h.K > trainingSize {
		return &InvalidHyperparameterError{K: h.K, TrainingSize: trainingSize}
	}
	return nil
}

// beginTest clears the previous outcome and returns the ID of this run.
func (h *Hyperparameter) beginTest() uuid.UUID {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runs > 0 {
		h.id = uuid.New()
	}
	h.runs++
	h.quality, h.hasQuality = 0, false
	h.lastErr = nil
	return h.id
}

func (h *Hyperparameter) setQuality(q float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.quality, h.hasQuality = q, true
}

func (h *Hyperparameter) finishTest(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.testedAt = h.now()
	h.lastErr = err
	return err
}

type neighbor struct {
	index    int
	distance float64
}

// vote picks the k nearest training samples (stable: earlier samples win
// distance ties) and returns their majority species, breaking label ties by
// lexicographic order.
func (h *Hyperparameter) vote(vectors [][]float64, training []*Sample, query []float64) string {
	neighbors := make([]neighbor, len(training))
	for i, v := range vectors {
		neighbors[i] = neighbor{index: i, distance: h.distance(query, v)}
	}
	sort.SliceStable(neighbors, func(a, b int) bool {
		return neighbors[a].distance < neighbors[b].distance
	})

	counts := make(map[string]int, h.K)
	for _, n := range neighbors[:h.K] {
		counts[training[n.index].Species]++
	}

	var best string
	bestCount := 0
	for label, c := range counts {
		if c > bestCount || (c == bestCount && label < best) {
			best, bestCount = label, c
		}
	}
	return best
}

func featureMatrix(samples []*Sample) [][]float64 {
	m := make([][]float64, len(samples))
	for i, s := range samples {
		m[i] = s.Features()
	}
	return m
}
