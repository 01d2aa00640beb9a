package learning

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// DistanceFunc measures how far apart two feature vectors are.
// Both vectors have the same length.
type DistanceFunc func(a, b []float64) float64

// Euclidean is the L2 distance.
func Euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// Manhattan is the L1 (city block) distance.
func Manhattan(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// Chebyshev is the L-infinity distance.
func Chebyshev(a, b []float64) float64 {
	return floats.Distance(a, b, math.Inf(1))
}

// DefaultDistance is used when no distance is configured.
const DefaultDistance = "euclidean"

var distances = map[string]DistanceFunc{
	"euclidean": Euclidean,
	"manhattan": Manhattan,
	"chebyshev": Chebyshev,
}

// DistanceByName looks up a registered distance, case-insensitively.
// An empty name selects DefaultDistance.
func DistanceByName(name string) (DistanceFunc, error) {
	if name == "" {
		name = DefaultDistance
	}
	fn, ok := distances[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDistance, name)
	}
	return fn, nil
}

// DistanceNames lists the registered distances in sorted order.
func DistanceNames() []string {
	names := make([]string, 0, len(distances))
	for name := range distances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
