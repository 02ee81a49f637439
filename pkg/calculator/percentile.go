package calculator

import (
	"math"
	"sort"
)

// Percentile returns the nearest-rank p-th percentile of sample, or nil when sample is empty.
// sample is not modified and does not need to be sorted.
func Percentile(sample []float64, p float64) *float64 {
	n := len(sample)
	if n == 0 {
		return nil
	}
	sorted := make([]float64, n)
	copy(sorted, sample)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	v := sorted[idx]
	return &v
}
