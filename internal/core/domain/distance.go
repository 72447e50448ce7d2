package domain

import (
	"math"
	"sort"
)

// Distance compares two vectors under the metric. Lower is nearer.
// Vectors of different lengths are compared over the shorter one;
// callers check dimensions before ranking.
func (m DistanceMetric) Distance(a, b []float32) float64 {
	n := min(len(a), len(b))
	switch m {
	case MetricEuclidean:
		var sum float64
		for i := 0; i < n; i++ {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return math.Sqrt(sum)
	case MetricDot:
		return -dot(a[:n], b[:n])
	default:
		na, nb := norm(a), norm(b)
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot(a[:n], b[:n])/(na*nb)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

// SortMatches orders matches by ascending distance. Ties keep their
// incoming order.
func SortMatches(matches []QueryMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
}
