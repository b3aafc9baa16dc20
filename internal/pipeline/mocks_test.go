package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sessionlens/internal/segments"
	"github.com/kiranshivaraju/sessionlens/internal/store"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

// --- mocks ---

type statusUpdate struct {
	ID     uuid.UUID
	Status string
}

type mockStore struct {
	mu            sync.Mutex
	jobs          map[uuid.UUID]*models.Job
	issues        map[uuid.UUID]*models.Issue
	links         []*models.SegmentLink
	states        map[uuid.UUID]*models.ClusteringState
	centroids     []models.IssueCentroid
	statusUpdates []statusUpdate

	createIssueErr   error
	updateIssueErr   error
	upsertLinkErr    error
	upsertStateErr   error
	listCentroidsErr error
	createJobErr     error
}

func newMockStore() *mockStore {
	return &mockStore{
		jobs:   make(map[uuid.UUID]*models.Job),
		issues: make(map[uuid.UUID]*models.Issue),
		states: make(map[uuid.UUID]*models.ClusteringState),
	}
}

func (s *mockStore) Ping(_ context.Context) error                                { return nil }
func (s *mockStore) GetDefaultTenant(_ context.Context) (*models.Tenant, error)  { return nil, nil }
func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *mockStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *mockStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *mockStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }

func (s *mockStore) ListIssueCentroids(_ context.Context, _ uuid.UUID) ([]models.IssueCentroid, error) {
	if s.listCentroidsErr != nil {
		return nil, s.listCentroidsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.IssueCentroid(nil), s.centroids...), nil
}

func (s *mockStore) CreateIssue(_ context.Context, issue *models.Issue) (bool, error) {
	if s.createIssueErr != nil {
		return false, s.createIssueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.issues[issue.ID]; exists {
		return false, nil
	}
	cp := *issue
	s.issues[issue.ID] = &cp
	return true, nil
}

func (s *mockStore) GetIssue(_ context.Context, id uuid.UUID, _ uuid.UUID) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return issue, nil
}

func (s *mockStore) UpdateIssueMetrics(_ context.Context, issue *models.Issue) error {
	if s.updateIssueErr != nil {
		return s.updateIssueErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.issues[issue.ID]
	if !ok {
		cp := *issue
		s.issues[issue.ID] = &cp
		return nil
	}
	existing.Centroid = issue.Centroid
	existing.PriorityScore = issue.PriorityScore
	existing.DistinctUserCount = issue.DistinctUserCount
	existing.OccurrenceCount = issue.OccurrenceCount
	existing.AvgImpactScore = issue.AvgImpactScore
	if issue.LastOccurrenceAt.After(existing.LastOccurrenceAt) {
		existing.LastOccurrenceAt = issue.LastOccurrenceAt
	}
	return nil
}

func (s *mockStore) ListIssues(_ context.Context, _ store.IssueFilter) ([]*models.Issue, int, error) {
	return nil, 0, nil
}

func (s *mockStore) UpsertSegmentLink(_ context.Context, link *models.SegmentLink) error {
	if s.upsertLinkErr != nil {
		return s.upsertLinkErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.links {
		if existing.IssueID == link.IssueID && existing.SessionID == link.SessionID &&
			existing.SegmentStartTime == link.SegmentStartTime && existing.SegmentEndTime == link.SegmentEndTime {
			s.links[i] = link
			return nil
		}
	}
	s.links = append(s.links, link)
	return nil
}

func (s *mockStore) ListSegmentLinks(_ context.Context, _, _ uuid.UUID, _, _ int) ([]*models.SegmentLink, int, error) {
	return nil, 0, nil
}

func (s *mockStore) GetClusteringState(_ context.Context, tenantID uuid.UUID) (*models.ClusteringState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return state, nil
}

func (s *mockStore) UpsertClusteringState(_ context.Context, state *models.ClusteringState) error {
	if s.upsertStateErr != nil {
		return s.upsertStateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.states[state.TenantID]
	if ok && existing.LastProcessedAt.After(state.LastProcessedAt) {
		existing.SegmentsProcessed = state.SegmentsProcessed
		return nil
	}
	cp := *state
	s.states[state.TenantID] = &cp
	return nil
}

func (s *mockStore) CreateJob(_ context.Context, job *models.Job) error {
	if s.createJobErr != nil {
		return s.createJobErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *mockStore) GetJob(_ context.Context, id uuid.UUID, _ uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func (s *mockStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status string, _ ...store.JobUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpdates = append(s.statusUpdates, statusUpdate{ID: id, Status: status})
	return nil
}

func (s *mockStore) lastStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statusUpdates) == 0 {
		return ""
	}
	return s.statusUpdates[len(s.statusUpdates)-1].Status
}

type mockCache struct {
	mu       sync.Mutex
	statuses map[string]string
	markers  map[string]bool
}

func newMockCache() *mockCache {
	return &mockCache{statuses: make(map[string]string), markers: make(map[string]bool)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }
func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markers, key)
	return nil
}

func (c *mockCache) SetNX(_ context.Context, key string, _ []byte, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markers[key] {
		return false, nil
	}
	c.markers[key] = true
	return true, nil
}

func (c *mockCache) SetJobStatus(_ context.Context, jobID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[jobID.String()] = status
	return nil
}

func (c *mockCache) GetJobStatus(_ context.Context, jobID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID.String()]
	return s, ok, nil
}

type mockFetcher struct {
	segments []models.Segment
	err      error
}

func (f *mockFetcher) FetchSegments(_ context.Context, _ segments.FetchRequest) ([]models.Segment, error) {
	return f.segments, f.err
}
func (f *mockFetcher) Ready(_ context.Context) error { return nil }

type mockProvider struct {
	name         string
	generateFunc func(ctx context.Context, sample []models.Segment) (models.ClusterLabel, error)
}

func (p *mockProvider) Name() string { return p.name }
func (p *mockProvider) GenerateLabel(ctx context.Context, sample []models.Segment) (models.ClusterLabel, error) {
	if p.generateFunc != nil {
		return p.generateFunc(ctx, sample)
	}
	return models.ClusterLabel{Title: "Mock issue", Description: "mock description"}, nil
}

// --- helpers ---

// embedding returns a unit-ish vector pointing mostly along axis.
func embedding(axis int, dim int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1.0
	return v
}

func testSegment(id, sessionID, distinctID string, emb []float32, ts time.Time, impact float64) models.Segment {
	return models.Segment{
		DocumentID: id,
		SessionID:  sessionID,
		DistinctID: distinctID,
		Content:    "segment " + id,
		Embedding:  emb,
		Timestamp:  ts,
		StartTime:  0,
		EndTime:    1000,
		Impact:     models.ImpactAnnotation{ImpactScore: impact},
	}
}

func waitForStatus(t *testing.T, s *mockStore, jobID uuid.UUID, terminal ...string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		last := s.lastStatus()
		for _, want := range terminal {
			if last == want {
				return
			}
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for job %s to reach %v, last status %q", jobID, terminal, last)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
