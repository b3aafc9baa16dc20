// Package vectormath provides embedding-vector arithmetic used by the
// clustering pipeline. All functions are pure and allocation is kept to the
// returned slices.
package vectormath

import "math"

// CosineDistance returns 1 - cosine similarity of a and b, in [0, 2].
// Vectors of different lengths or zero norm are maximally distant: the
// caller treats that as "no match" rather than an error.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}

	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// Centroid returns the arithmetic mean of the given vectors. Returns nil for
// empty input. All vectors must have the length of the first.
func Centroid(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		for i := range v {
			sum[i] += float64(v[i])
		}
	}

	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(len(vectors)))
	}
	return out
}

// IncrementalMean folds a batch of vectors into a running mean:
//
//	new = (old*oldCount + sum(batch)) / (oldCount + len(batch))
//
// The result is the exact mean of all vectors ever contributed, within
// floating-point tolerance. Returns the batch centroid when oldCount is 0
// and old unchanged when the batch is empty.
func IncrementalMean(old []float32, oldCount int, batch [][]float32) []float32 {
	if len(batch) == 0 {
		return old
	}
	if oldCount <= 0 || len(old) == 0 {
		return Centroid(batch)
	}

	dim := len(old)
	sum := make([]float64, dim)
	for i := range old {
		sum[i] = float64(old[i]) * float64(oldCount)
	}
	for _, v := range batch {
		for i := range v {
			sum[i] += float64(v[i])
		}
	}

	total := float64(oldCount + len(batch))
	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / total)
	}
	return out
}

// WeightedAverage combines two averages weighted by their counts. Used for
// merging a batch's mean impact score into an issue's running average.
func WeightedAverage(oldAvg float64, oldCount int, batchAvg float64, batchCount int) float64 {
	if oldCount <= 0 && batchCount <= 0 {
		return 0
	}
	if oldCount <= 0 {
		return batchAvg
	}
	if batchCount <= 0 {
		return oldAvg
	}
	return (oldAvg*float64(oldCount) + batchAvg*float64(batchCount)) / float64(oldCount+batchCount)
}
