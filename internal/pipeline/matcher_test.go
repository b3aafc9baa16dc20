package pipeline

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

func TestMatcher_MatchesWithinThreshold(t *testing.T) {
	issueID := uuid.New()
	existing := []models.IssueCentroid{
		{IssueID: issueID, Centroid: []float32{1, 0, 0}, CreatedAt: time.Now()},
	}
	clusters := []models.Cluster{
		{ID: 0, Centroid: []float32{0.99, 0.01, 0}},
	}

	matches := NewMatcher(0.2).Match(clusters, existing)

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].IssueID != issueID {
		t.Errorf("matched wrong issue")
	}
	if matches[0].ClusterID != 0 {
		t.Errorf("matched wrong cluster")
	}
}

func TestMatcher_NoMatchBeyondThreshold(t *testing.T) {
	existing := []models.IssueCentroid{
		{IssueID: uuid.New(), Centroid: []float32{1, 0, 0}, CreatedAt: time.Now()},
	}
	clusters := []models.Cluster{
		{ID: 0, Centroid: []float32{0, 1, 0}}, // orthogonal, distance 1.0
	}

	matches := NewMatcher(0.2).Match(clusters, existing)

	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(matches))
	}
}

func TestMatcher_AtMostOneClusterPerIssue(t *testing.T) {
	issueID := uuid.New()
	existing := []models.IssueCentroid{
		{IssueID: issueID, Centroid: []float32{1, 0, 0}, CreatedAt: time.Now()},
	}
	// Both clusters are near the single issue; the closer one must win.
	clusters := []models.Cluster{
		{ID: 0, Centroid: []float32{0.9, 0.1, 0}},
		{ID: 1, Centroid: []float32{0.99, 0.01, 0}},
	}

	matches := NewMatcher(0.5).Match(clusters, existing)

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].ClusterID != 1 {
		t.Errorf("expected closer cluster 1 to win, got %d", matches[0].ClusterID)
	}
}

func TestMatcher_TieBreaksByIssueCreation(t *testing.T) {
	older := uuid.New()
	newer := uuid.New()
	created := time.Now()
	// Identical centroids: the cluster must match the older issue.
	existing := []models.IssueCentroid{
		{IssueID: newer, Centroid: []float32{1, 0, 0}, CreatedAt: created},
		{IssueID: older, Centroid: []float32{1, 0, 0}, CreatedAt: created.Add(-time.Hour)},
	}
	clusters := []models.Cluster{
		{ID: 0, Centroid: []float32{1, 0, 0}},
	}

	matches := NewMatcher(0.5).Match(clusters, existing)

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].IssueID != older {
		t.Errorf("expected tie to break toward older issue")
	}
}

func TestMatcher_EachClusterAtMostOneIssue(t *testing.T) {
	issueA := uuid.New()
	issueB := uuid.New()
	existing := []models.IssueCentroid{
		{IssueID: issueA, Centroid: []float32{1, 0, 0}, CreatedAt: time.Now().Add(-2 * time.Hour)},
		{IssueID: issueB, Centroid: []float32{0.9, 0.1, 0}, CreatedAt: time.Now().Add(-time.Hour)},
	}
	clusters := []models.Cluster{
		{ID: 0, Centroid: []float32{1, 0, 0}},
	}

	matches := NewMatcher(0.5).Match(clusters, existing)

	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(matches))
	}
	if matches[0].IssueID != issueA {
		t.Errorf("expected exact-distance issue A, got %s", matches[0].IssueID)
	}
}

func TestMatcher_EmptyInputs(t *testing.T) {
	m := NewMatcher(0.2)

	if got := m.Match(nil, nil); len(got) != 0 {
		t.Errorf("expected no matches for empty input")
	}
	if got := m.Match([]models.Cluster{{ID: 0, Centroid: []float32{1, 0}}}, nil); len(got) != 0 {
		t.Errorf("expected no matches with no existing issues")
	}
}
