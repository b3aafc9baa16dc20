package pipeline

import (
	"math"
	"time"
)

// priorityHalfLife controls how fast an issue's priority decays with age.
const priorityHalfLife = 7 * 24 * time.Hour

// PriorityScore computes an issue's priority from its accumulated metrics.
// The score is monotonic in each input: more affected users, higher average
// impact, and more recent occurrence all increase it.
func PriorityScore(distinctUsers int, avgImpact float64, lastOccurrence, now time.Time) float64 {
	if distinctUsers < 0 {
		distinctUsers = 0
	}
	if avgImpact < 0 {
		avgImpact = 0
	}

	age := now.Sub(lastOccurrence)
	if age < 0 {
		age = 0
	}
	recency := math.Exp2(-float64(age) / float64(priorityHalfLife))

	return math.Log1p(float64(distinctUsers)) * (1.0 + avgImpact) * recency
}
