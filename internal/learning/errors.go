package learning

import (
	"errors"
	"fmt"
)

var (
	// ErrBrokenReference is returned when a Hyperparameter resolves a
	// TrainingData that has already been destroyed.
	ErrBrokenReference = errors.New("broken training data reference")
	// ErrInvalidK is matched by every InvalidHyperparameterError.
	ErrInvalidK = errors.New("k out of range for training set")
	// ErrAlreadyLoaded is returned by Load when the partition already exists.
	ErrAlreadyLoaded = errors.New("training data already loaded")
	// ErrNotLoaded is returned when an operation needs a loaded partition.
	ErrNotLoaded = errors.New("training data not loaded")
	// ErrEmptyTestingSet is returned by Test when there is nothing to test.
	ErrEmptyTestingSet = errors.New("testing set is empty")
	// ErrInvalidTestingEvery is returned by Load when the partition modulus
	// is below 2.
	ErrInvalidTestingEvery = errors.New("testing_every must be at least 2")
	// ErrUnknownDistance is returned for an unregistered distance name.
	ErrUnknownDistance = errors.New("unknown distance")
)

// InvalidHyperparameterError reports a k that cannot be used with the
// current training set.
type InvalidHyperparameterError struct {
	K            int
	TrainingSize int
}

func (e *InvalidHyperparameterError) Error() string {
	return fmt.Sprintf("invalid hyperparameter: k=%d, training set has %d samples", e.K, e.TrainingSize)
}

func (e *InvalidHyperparameterError) Is(target error) bool { return target == ErrInvalidK }

// MalformedRecordError reports a raw record that could not become a Sample.
//
// The underlying parse error (if any) can be accessed via errors.Unwrap.
type MalformedRecordError struct {
	Index int
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed record %d: field %q: %v", e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("malformed record %d: field %q", e.Index, e.Field)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }
