package segments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

// --- helpers ---

func storeServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(baseURL, "", "", 5*time.Second)
}

func validWireSegment(id string) wireSegment {
	return wireSegment{
		DocumentID: id,
		SessionID:  "session-1",
		DistinctID: "user-1",
		Content:    "user clicked pay three times without response",
		Embedding:  []float32{0.1, 0.2, 0.3},
		Timestamp:  "2024-06-01T10:00:00Z",
		StartTime:  12000,
		EndTime:    15000,
		Impact: wireImpact{
			ImpactScore:     0.8,
			FailureDetected: true,
		},
	}
}

// --- FetchSegments tests ---

func TestFetchSegments_ValidResponse(t *testing.T) {
	tenantID := uuid.New()

	ts := storeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/segments" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("tenant_id") != tenantID.String() {
			t.Errorf("unexpected tenant_id: %s", q.Get("tenant_id"))
		}
		if q.Get("limit") != "100" {
			t.Errorf("unexpected limit: %s", q.Get("limit"))
		}

		resp := segmentsResponse{
			Data: segmentsData{
				Segments: []wireSegment{
					validWireSegment("doc-1"),
					validWireSegment("doc-2"),
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	segments, err := c.FetchSegments(context.Background(), FetchRequest{
		TenantID: tenantID,
		Since:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Limit:    100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].DocumentID != "doc-1" {
		t.Errorf("unexpected document_id: %s", segments[0].DocumentID)
	}
	if !segments[0].Impact.FailureDetected {
		t.Error("expected failure_detected to carry through")
	}
	expected := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	if !segments[0].Timestamp.Equal(expected) {
		t.Errorf("expected timestamp %v, got %v", expected, segments[0].Timestamp)
	}
	if segments[0].StartTime != 12000 || segments[0].EndTime != 15000 {
		t.Errorf("unexpected span: %d-%d", segments[0].StartTime, segments[0].EndTime)
	}
}

func TestFetchSegments_SkipsMalformedItems(t *testing.T) {
	ts := storeServer(t, func(w http.ResponseWriter, r *http.Request) {
		noEmbedding := validWireSegment("doc-no-embedding")
		noEmbedding.Embedding = nil
		badTimestamp := validWireSegment("doc-bad-timestamp")
		badTimestamp.Timestamp = "not-a-time"
		noID := validWireSegment("")

		resp := segmentsResponse{
			Data: segmentsData{
				Segments: []wireSegment{
					validWireSegment("doc-ok"),
					noEmbedding,
					badTimestamp,
					noID,
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	segments, err := c.FetchSegments(context.Background(), FetchRequest{TenantID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(segments) != 1 {
		t.Fatalf("expected only the valid segment, got %d", len(segments))
	}
	if segments[0].DocumentID != "doc-ok" {
		t.Errorf("unexpected surviving segment: %s", segments[0].DocumentID)
	}
}

func TestFetchSegments_QueryError(t *testing.T) {
	ts := storeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.FetchSegments(context.Background(), FetchRequest{TenantID: uuid.New()})
	if !errors.Is(err, ErrStoreQueryError) {
		t.Errorf("expected ErrStoreQueryError, got %v", err)
	}
}

func TestFetchSegments_Unreachable(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.FetchSegments(context.Background(), FetchRequest{TenantID: uuid.New()})
	if !errors.Is(err, ErrStoreUnreachable) {
		t.Errorf("expected ErrStoreUnreachable, got %v", err)
	}
}

func TestFetchSegments_Timeout(t *testing.T) {
	ts := storeServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "", "", 50*time.Millisecond)
	_, err := c.FetchSegments(context.Background(), FetchRequest{TenantID: uuid.New()})
	if !errors.Is(err, ErrStoreTimeout) {
		t.Errorf("expected ErrStoreTimeout, got %v", err)
	}
}

func TestFetchSegments_SendsAuthHeaders(t *testing.T) {
	ts := storeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Scope-OrgID") != "org-7" {
			t.Errorf("unexpected org header: %s", r.Header.Get("X-Scope-OrgID"))
		}
		json.NewEncoder(w).Encode(segmentsResponse{})
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "secret", "org-7", 5*time.Second)
	if _, err := c.FetchSegments(context.Background(), FetchRequest{TenantID: uuid.New()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- Ready tests ---

func TestReady_OK(t *testing.T) {
	ts := storeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ready" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	if err := c.Ready(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestReady_NotReady(t *testing.T) {
	ts := storeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	if err := c.Ready(context.Background()); !errors.Is(err, ErrStoreUnreachable) {
		t.Errorf("expected ErrStoreUnreachable, got %v", err)
	}
}
