// Package learning implements the k-nearest-neighbor evaluation harness:
// samples, the training/testing partition, hyperparameters and the
// TrainingData aggregate that records every evaluation.
package learning

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the lifecycle stage of a TrainingData.
type State int

const (
	Uninitialized State = iota
	Loaded
	Evaluated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loaded:
		return "loaded"
	case Evaluated:
		return "evaluated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TrainingOption configures a TrainingData.
type TrainingOption func(*TrainingData)

// WithTestingEvery sets the partition modulus. Values below 2 are kept as
// given and make Load fail with ErrInvalidTestingEvery.
func WithTestingEvery(n int) TrainingOption {
	return func(td *TrainingData) { td.partitioner.TestingEvery = n }
}

// WithStrict makes Load fail on the first malformed record.
func WithStrict(strict bool) TrainingOption {
	return func(td *TrainingData) { td.partitioner.Strict = strict }
}

// WithLogger sets the logger used for load and test events.
func WithLogger(l *zap.Logger) TrainingOption {
	return func(td *TrainingData) { td.logger = l }
}

// WithClock overrides time.Now for the uploaded/tested timestamps.
func WithClock(now func() time.Time) TrainingOption {
	return func(td *TrainingData) { td.now = now }
}

// TrainingData owns one dataset's training and testing samples and the
// history of hyperparameters tested against it.
type TrainingData struct {
	Name string

	registry    *Registry
	handle      Handle
	partitioner Partitioner
	logger      *zap.Logger
	now         func() time.Time

	// evalMu serializes Load and Hyperparameter.Test, which write to samples.
	evalMu sync.Mutex

	mu       sync.RWMutex
	loaded   bool
	uploaded time.Time
	tested   time.Time
	training []*Sample
	testing  []*Sample
	rejected []int
	tuning   []*Hyperparameter
	// history holds one record per Test call, captured when the call ended.
	history []Evaluation
}

// NewTrainingData creates an empty TrainingData and registers it in reg.
// It stays reachable through its Ref until Destroy is called.
func NewTrainingData(reg *Registry, name string, opts ...TrainingOption) *TrainingData {
	td := &TrainingData{
		Name:        name,
		registry:    reg,
		partitioner: Partitioner{TestingEvery: DefaultTestingEvery},
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(td)
	}
	td.logger = td.logger.With(zap.String("dataset", name))
	td.partitioner.Logger = td.logger
	td.handle = reg.register(td)
	return td
}

// Ref returns a non-owning reference for Hyperparameters.
func (td *TrainingData) Ref() Ref {
	return Ref{registry: td.registry, handle: td.handle}
}

// Destroy removes the TrainingData from its registry. Every outstanding Ref
// fails with ErrBrokenReference afterwards.
func (td *TrainingData) Destroy() {
	if td.registry.release(td.handle) {
		td.logger.Debug("Training data destroyed")
	}
}

// Load parses and partitions records. It fails with ErrAlreadyLoaded if a
// partition exists; call Reset first to replace it. In strict mode a
// *MalformedRecordError aborts the load and nothing is committed.
func (td *TrainingData) Load(records []Record) error {
	td.evalMu.Lock()
	defer td.evalMu.Unlock()

	td.mu.RLock()
	loaded := td.loaded
	td.mu.RUnlock()
	if loaded {
		return ErrAlreadyLoaded
	}

	part, err := td.partitioner.Partition(records)
	if err != nil {
		td.logger.Error("Load aborted", zap.Error(err))
		return fmt.Errorf("failed to load %s: %w", td.Name, err)
	}

	td.mu.Lock()
	td.training = part.Training
	td.testing = part.Testing
	td.rejected = part.Rejected
	td.loaded = true
	td.uploaded = td.now().UTC()
	td.mu.Unlock()

	td.logger.Info("Training data loaded",
		zap.Int("training", len(part.Training)),
		zap.Int("testing", len(part.Testing)),
		zap.Int("rejected", len(part.Rejected)),
	)
	return nil
}

// Reset drops the partition so that Load can run again. The tuning history
// is kept.
func (td *TrainingData) Reset() {
	td.evalMu.Lock()
	defer td.evalMu.Unlock()
	td.mu.Lock()
	defer td.mu.Unlock()

	td.loaded = false
	td.uploaded = time.Time{}
	td.training, td.testing, td.rejected = nil, nil, nil
}

// Test runs h.Test and appends h to the tuning history whether or not the
// test succeeded. The outcome is recorded as it was when this call ended, so
// testing h again adds a new entry and leaves earlier ones untouched. The
// error from h.Test is returned unchanged.
func (td *TrainingData) Test(h *Hyperparameter) error {
	err := h.Test()
	ev := h.Evaluation(td.Name)

	td.mu.Lock()
	td.tuning = append(td.tuning, h)
	td.history = append(td.history, ev)
	td.tested = td.now().UTC()
	td.mu.Unlock()

	if err != nil {
		td.logger.Warn("Hyperparameter test failed",
			zap.Int("k", h.K), zap.String("distance", h.DistanceName()), zap.Error(err))
		return err
	}
	q, _ := h.Quality()
	td.logger.Info("Hyperparameter tested",
		zap.Int("k", h.K), zap.String("distance", h.DistanceName()), zap.Float64("quality", q))
	return nil
}

// Classify assigns h's classification to sample in place and returns it.
// The sample does not have to belong to this TrainingData.
func (td *TrainingData) Classify(h *Hyperparameter, sample *Sample) (*Sample, error) {
	if td.State() == Uninitialized {
		return nil, ErrNotLoaded
	}
	label, err := h.Classify(sample)
	if err != nil {
		return nil, err
	}
	sample.Classify(label)
	return sample, nil
}

// State reports the lifecycle stage.
func (td *TrainingData) State() State {
	td.mu.RLock()
	defer td.mu.RUnlock()
	if !td.loaded {
		return Uninitialized
	}
	for _, ev := range td.history {
		if ev.Succeeded() {
			return Evaluated
		}
	}
	return Loaded
}

// Training returns the training samples in partition order.
func (td *TrainingData) Training() []*Sample {
	td.mu.RLock()
	defer td.mu.RUnlock()
	return append([]*Sample(nil), td.training...)
}

// Testing returns the testing samples in partition order.
func (td *TrainingData) Testing() []*Sample {
	td.mu.RLock()
	defer td.mu.RUnlock()
	return append([]*Sample(nil), td.testing...)
}

// Rejected returns the input positions skipped by the last Load.
func (td *TrainingData) Rejected() []int {
	td.mu.RLock()
	defer td.mu.RUnlock()
	return append([]int(nil), td.rejected...)
}

// Tuning returns the hyperparameter of every Test call so far, oldest first.
// A hyperparameter tested twice appears twice; use Evaluations for the
// outcome of each call.
func (td *TrainingData) Tuning() []*Hyperparameter {
	td.mu.RLock()
	defer td.mu.RUnlock()
	return append([]*Hyperparameter(nil), td.tuning...)
}

// Uploaded returns when the partition was loaded.
func (td *TrainingData) Uploaded() (time.Time, bool) {
	td.mu.RLock()
	defer td.mu.RUnlock()
	return td.uploaded, !td.uploaded.IsZero()
}

// Tested returns when the last hyperparameter was tested.
func (td *TrainingData) Tested() (time.Time, bool) {
	td.mu.RLock()
	defer td.mu.RUnlock()
	return td.tested, !td.tested.IsZero()
}
