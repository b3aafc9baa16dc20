package pipeline

import (
	"sort"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
	"github.com/kiranshivaraju/sessionlens/pkg/vectormath"
)

// Match pairs a run-local cluster with an existing issue.
type Match struct {
	ClusterID models.ClusterID
	IssueID   uuid.UUID
	Distance  float64
}

// Matcher assigns clusters to existing issues by centroid proximity.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a Matcher. threshold is the maximum cosine distance at
// which a cluster is considered the same issue.
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{threshold: threshold}
}

// Match compares every cluster centroid against every existing issue centroid
// and returns the greedy assignment, ascending by distance. Each cluster
// matches at most one issue and each issue absorbs at most one cluster per
// run. Ties break by earliest issue creation, then lowest cluster id, so the
// result is deterministic for identical input.
func (m *Matcher) Match(clusters []models.Cluster, existing []models.IssueCentroid) []Match {
	type candidate struct {
		Match
		issueCreatedAt int64
	}

	var candidates []candidate
	for _, cluster := range clusters {
		for _, issue := range existing {
			d := vectormath.CosineDistance(cluster.Centroid, issue.Centroid)
			if d >= m.threshold {
				continue
			}
			candidates = append(candidates, candidate{
				Match:          Match{ClusterID: cluster.ID, IssueID: issue.IssueID, Distance: d},
				issueCreatedAt: issue.CreatedAt.UnixNano(),
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		if candidates[i].issueCreatedAt != candidates[j].issueCreatedAt {
			return candidates[i].issueCreatedAt < candidates[j].issueCreatedAt
		}
		return candidates[i].ClusterID < candidates[j].ClusterID
	})

	usedClusters := make(map[models.ClusterID]bool)
	usedIssues := make(map[uuid.UUID]bool)

	var matches []Match
	for _, c := range candidates {
		if usedClusters[c.ClusterID] || usedIssues[c.IssueID] {
			continue
		}
		usedClusters[c.ClusterID] = true
		usedIssues[c.IssueID] = true
		matches = append(matches, c.Match)
	}
	return matches
}
