package learning

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Record field names.
const (
	FieldSepalLength = "sepal_length"
	FieldSepalWidth  = "sepal_width"
	FieldPetalLength = "petal_length"
	FieldPetalWidth  = "petal_width"
	FieldSpecies     = "species"
)

// DefaultTestingEvery sends every fifth record to the testing set.
const DefaultTestingEvery = 5

// Record is one raw observation keyed by field name. Values may be strings or
// numbers.
type Record map[string]any

// Partition is the result of splitting records into training and testing.
type Partition struct {
	Training []*Sample
	Testing  []*Sample
	// Rejected holds the input positions of malformed records that were skipped.
	Rejected []int
}

// Partitioner splits records by position: the record at index i goes to the
// testing set iff i%TestingEvery == TestingEvery-1.
type Partitioner struct {
	// TestingEvery must be at least 2; there is no fallback.
	TestingEvery int
	// Strict makes the first malformed record abort the whole partition.
	Strict bool
	Logger *zap.Logger
}

// IsTesting reports where the record at position index belongs. With an
// invalid TestingEvery nothing is testing.
func (p Partitioner) IsTesting(index int) bool {
	if p.TestingEvery < 2 {
		return false
	}
	return index%p.TestingEvery == p.TestingEvery-1
}

// Partition parses and routes every record. It fails with
// ErrInvalidTestingEvery before reading any record when TestingEvery is below
// 2. In strict mode the first malformed record is returned as a
// *MalformedRecordError and no partition is produced.
func (p Partitioner) Partition(records []Record) (*Partition, error) {
	if p.TestingEvery < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTestingEvery, p.TestingEvery)
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	part := &Partition{}
	for i, rec := range records {
		s, err := ParseRecord(i, rec)
		if err != nil {
			if p.Strict {
				return nil, err
			}
			log.Warn("Skipping malformed record", zap.Int("index", i), zap.Error(err))
			part.Rejected = append(part.Rejected, i)
			continue
		}
		if p.IsTesting(i) {
			part.Testing = append(part.Testing, s)
		} else {
			part.Training = append(part.Training, s)
		}
	}
	return part, nil
}

// ParseRecord builds a known Sample from rec. index is only used for error
// reporting.
func ParseRecord(index int, rec Record) (*Sample, error) {
	var features [4]float64
	for j, field := range []string{FieldSepalLength, FieldSepalWidth, FieldPetalLength, FieldPetalWidth} {
		v, err := parseFloat(rec, field)
		if err != nil {
			return nil, &MalformedRecordError{Index: index, Field: field, Err: err}
		}
		features[j] = v
	}

	species, err := parseLabel(rec, FieldSpecies)
	if err != nil {
		return nil, &MalformedRecordError{Index: index, Field: FieldSpecies, Err: err}
	}

	return NewKnownSample(features[0], features[1], features[2], features[3], species), nil
}

var errMissingField = errors.New("missing field")

func parseFloat(rec Record, field string) (float64, error) {
	raw, ok := rec[field]
	if !ok || raw == nil {
		return 0, errMissingField
	}
	var (
		v   float64
		err error
	)
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case json.Number:
		v, err = x.Float64()
	case string:
		v, err = strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %v", v)
	}
	return v, nil
}

func parseLabel(rec Record, field string) (string, error) {
	raw, ok := rec[field]
	if !ok || raw == nil {
		return "", errMissingField
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("unsupported value type %T", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("empty label")
	}
	return s, nil
}
