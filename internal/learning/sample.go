package learning

import (
	"fmt"
	"strings"
)

// Sample is one iris observation. The four measurements never change after
// construction; Classification is the only mutable field.
type Sample struct {
	SepalLength float64 `json:"sepal_length"`
	SepalWidth  float64 `json:"sepal_width"`
	PetalLength float64 `json:"petal_length"`
	PetalWidth  float64 `json:"petal_width"`
	// Species is the ground-truth label. Empty for unknown samples.
	Species string `json:"species,omitempty"`
	// Classification is the label assigned by the last classification attempt.
	Classification string `json:"classification,omitempty"`
}

// NewKnownSample creates a labeled sample.
func NewKnownSample(sepalLength, sepalWidth, petalLength, petalWidth float64, species string) *Sample {
	return &Sample{
		SepalLength: sepalLength,
		SepalWidth:  sepalWidth,
		PetalLength: petalLength,
		PetalWidth:  petalWidth,
		Species:     species,
	}
}

// NewUnknownSample creates a sample without a ground-truth label.
func NewUnknownSample(sepalLength, sepalWidth, petalLength, petalWidth float64) *Sample {
	return NewKnownSample(sepalLength, sepalWidth, petalLength, petalWidth, "")
}

// IsKnown reports whether the sample carries a ground-truth label.
func (s *Sample) IsKnown() bool {
	return s.Species != ""
}

// IsClassified reports whether a classification has been assigned.
func (s *Sample) IsClassified() bool {
	return s.Classification != ""
}

// Classify overwrites any previous classification with label.
func (s *Sample) Classify(label string) {
	s.Classification = label
}

// Matches reports whether the assigned classification equals the species.
// Unknown samples never match.
func (s *Sample) Matches() bool {
	return s.IsKnown() && s.Classification == s.Species
}

// Features returns the measurements as a vector, in a fixed order.
func (s *Sample) Features() []float64 {
	return []float64{s.SepalLength, s.SepalWidth, s.PetalLength, s.PetalWidth}
}

// Clone returns an independent copy of the sample.
func (s *Sample) Clone() *Sample {
	c := *s
	return &c
}

func (s *Sample) String() string {
	var b strings.Builder
	if s.IsKnown() {
		b.WriteString("KnownSample(")
	} else {
		b.WriteString("UnknownSample(")
	}
	fmt.Fprintf(&b, "sepal_length=%v, sepal_width=%v, petal_length=%v, petal_width=%v, species=%q",
		s.SepalLength, s.SepalWidth, s.PetalLength, s.PetalWidth, s.Species)
	if s.IsClassified() {
		fmt.Fprintf(&b, ", classification=%q", s.Classification)
	}
	b.WriteString(")")
	return b.String()
}
