package learning

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHyperparameter_ScenarioQuality(t *testing.T) {
	reg := NewRegistry()
	td := loadedScenario(reg)

	h, err := NewHyperparameter(3, td.Ref())
	require.NoError(t, err)
	require.NoError(t, h.Test())

	held := td.Testing()
	assert.Equal(t, "A", held[0].Classification, "neighbors {A, A, B} vote A")
	assert.Equal(t, "B", held[1].Classification)
	assert.Equal(t, "C", held[2].Classification)

	q, ok := h.Quality()
	require.True(t, ok)
	assert.Equal(t, 1.0, q)
}

func TestHyperparameter_InvalidKFailsBeforeClassifying(t *testing.T) {
	for _, k := range []int{0, -1, 8} {
		reg := NewRegistry()
		td := loadedScenario(reg)

		h, err := NewHyperparameter(k, td.Ref())
		require.NoError(t, err)

		err = h.Test()
		var ihe *InvalidHyperparameterError
		require.True(t, errors.As(err, &ihe), "k=%d", k)
		assert.ErrorIs(t, err, ErrInvalidK)
		assert.Equal(t, k, ihe.K)
		assert.Equal(t, 7, ihe.TrainingSize)

		_, ok := h.Quality()
		assert.False(t, ok, "no partial quality for k=%d", k)
		for _, s := range td.Testing() {
			assert.False(t, s.IsClassified(), "k=%d mutated a testing sample", k)
		}
	}
}

func TestHyperparameter_KEqualToTrainingSize(t *testing.T) {
	td := loadedScenario(NewRegistry())
	h, err := NewHyperparameter(7, td.Ref())
	require.NoError(t, err)
	require.NoError(t, h.Test())

	// Seven neighbors: A=2, B=3, C=2 for everyone.
	for _, s := range td.Testing() {
		assert.Equal(t, "B", s.Classification)
	}
	q, _ := h.Quality()
	assert.InDelta(t, 1.0/3.0, q, 1e-12)
}

func TestHyperparameter_BrokenReference(t *testing.T) {
	reg := NewRegistry()
	td := loadedScenario(reg)
	h, err := NewHyperparameter(3, td.Ref())
	require.NoError(t, err)

	td.Destroy()

	assert.ErrorIs(t, h.Test(), ErrBrokenReference)
	_, err = h.Classify(NewUnknownSample(1, 0, 0, 0))
	assert.ErrorIs(t, err, ErrBrokenReference)
	_, ok := h.Quality()
	assert.False(t, ok)
}

func TestHyperparameter_ZeroRefIsBroken(t *testing.T) {
	h, err := NewHyperparameter(1, Ref{})
	require.NoError(t, err)
	assert.ErrorIs(t, h.Test(), ErrBrokenReference)
}

func TestHyperparameter_ClassifyStableNeighborOrder(t *testing.T) {
	reg := NewRegistry()
	td := NewTrainingData(reg, "ties", WithTestingEvery(10))
	require.NoError(t, td.Load([]Record{rec(0, "B"), rec(1, "A")}))

	query := NewUnknownSample(0.5, 0, 0, 0)

	k1, err := NewHyperparameter(1, td.Ref())
	require.NoError(t, err)
	label, err := k1.Classify(query)
	require.NoError(t, err)
	assert.Equal(t, "B", label, "equidistant neighbors: the first training sample wins")

	k2, err := NewHyperparameter(2, td.Ref())
	require.NoError(t, err)
	label, err = k2.Classify(query)
	require.NoError(t, err)
	assert.Equal(t, "A", label, "label tie: lexicographically smallest wins")

	assert.False(t, query.IsClassified(), "Hyperparameter.Classify does not mutate the sample")
}

func TestHyperparameter_Deterministic(t *testing.T) {
	td := NewTrainingData(NewRegistry(), "iris", WithTestingEvery(5))
	require.NoError(t, td.Load(irisRecords()))

	var qualities []float64
	for i := 0; i < 3; i++ {
		h, err := NewHyperparameter(3, td.Ref(), WithDistance("manhattan"))
		require.NoError(t, err)
		require.NoError(t, h.Test())
		q, ok := h.Quality()
		require.True(t, ok)
		assert.GreaterOrEqual(t, q, 0.0)
		assert.LessOrEqual(t, q, 1.0)
		qualities = append(qualities, q)
	}
	assert.Equal(t, qualities[0], qualities[1])
	assert.Equal(t, qualities[1], qualities[2])
}

func TestHyperparameter_ProgressIsRunningFraction(t *testing.T) {
	reg := NewRegistry()
	td := NewTrainingData(reg, "progress", WithTestingEvery(2))
	// Testing positions 1 and 3; the first is misclassified by k=1.
	require.NoError(t, td.Load([]Record{
		rec(0, "A"),
		rec(0.1, "B"),
		rec(10, "B"),
		rec(10.1, "B"),
	}))

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var updates []Progress
	h, err := NewHyperparameter(1, td.Ref(),
		WithHyperparameterClock(fixedClock(now)),
		WithProgress(func(p Progress) { updates = append(updates, p) }),
	)
	require.NoError(t, err)
	require.NoError(t, h.Test())

	require.Len(t, updates, 2)
	assert.Equal(t, 0.0, updates[0].Quality)
	assert.Equal(t, 1, updates[0].Processed)
	assert.False(t, updates[0].Done())
	assert.Equal(t, 0.5, updates[1].Quality)
	assert.Equal(t, 1, updates[1].Passed)
	assert.True(t, updates[1].Done())
	assert.Equal(t, "progress", updates[1].Dataset)
	assert.Equal(t, h.ID(), updates[1].EvaluationID)
	assert.Equal(t, now, updates[1].Time)

	testedAt, ok := h.TestedAt()
	assert.True(t, ok)
	assert.Equal(t, now, testedAt)
}

func TestHyperparameter_UnknownDistance(t *testing.T) {
	td := loadedScenario(NewRegistry())
	_, err := NewHyperparameter(3, td.Ref(), WithDistance("cosine"))
	assert.ErrorIs(t, err, ErrUnknownDistance)
}

func TestHyperparameter_CustomDistance(t *testing.T) {
	td := loadedScenario(NewRegistry())
	calls := 0
	h, err := NewHyperparameter(1, td.Ref(), WithDistanceFunc("counting", func(a, b []float64) float64 {
		calls++
		return Euclidean(a, b)
	}))
	require.NoError(t, err)
	require.NoError(t, h.Test())
	assert.Equal(t, "counting", h.DistanceName())
	assert.Equal(t, 3*7, calls)
}

func TestHyperparameter_EmptyTestingSet(t *testing.T) {
	td := NewTrainingData(NewRegistry(), "tiny", WithTestingEvery(5))
	require.NoError(t, td.Load([]Record{rec(1, "A"), rec(2, "B")}))

	h, err := NewHyperparameter(1, td.Ref())
	require.NoError(t, err)
	assert.ErrorIs(t, h.Test(), ErrEmptyTestingSet)
}

func TestHyperparameter_ConcurrentTestsAreSerialized(t *testing.T) {
	td := NewTrainingData(NewRegistry(), "iris", WithTestingEvery(5))
	require.NoError(t, td.Load(irisRecords()))

	var wg sync.WaitGroup
	hs := make([]*Hyperparameter, 4)
	for i := range hs {
		h, err := NewHyperparameter(2*i+1, td.Ref())
		require.NoError(t, err)
		hs[i] = h
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.Test())
			_, _ = h.Quality()
		}()
	}
	wg.Wait()

	for _, h := range hs {
		q, ok := h.Quality()
		assert.True(t, ok)
		assert.GreaterOrEqual(t, q, 0.0)
		assert.LessOrEqual(t, q, 1.0)
	}
}
