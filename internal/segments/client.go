// Package segments fetches embedded session segments from the upstream
// embedding store over its HTTP query API.
package segments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

// Sentinel errors for embedding-store client failures.
var (
	ErrStoreUnreachable = errors.New("embedding store unreachable")
	ErrStoreQueryError  = errors.New("embedding store query error")
	ErrStoreTimeout     = errors.New("embedding store query timeout")
)

// Client is the interface for querying the embedding store.
type Client interface {
	FetchSegments(ctx context.Context, req FetchRequest) ([]models.Segment, error)
	Ready(ctx context.Context) error
}

// FetchRequest defines parameters for a segment fetch. When Since is zero,
// the store is queried over the lookback window ending now, which bounds
// cold-start cost for tenants without a watermark.
type FetchRequest struct {
	TenantID uuid.UUID
	Since    time.Time
	Lookback time.Duration
	Limit    int
}

// HTTPClient implements Client against the embedding store's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	orgID   string
	client  *http.Client
}

// NewHTTPClient creates a new embedding store HTTP client.
func NewHTTPClient(baseURL, apiKey, orgID string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		orgID:   orgID,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) FetchSegments(ctx context.Context, req FetchRequest) ([]models.Segment, error) {
	since := req.Since
	if since.IsZero() {
		since = time.Now().UTC().Add(-req.Lookback)
	}

	params := url.Values{
		"tenant_id": {req.TenantID.String()},
		"since":     {strconv.FormatInt(since.UnixNano(), 10)},
		"order":     {"timestamp"},
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}

	u := fmt.Sprintf("%s/api/v1/segments?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrStoreQueryError, resp.StatusCode)
	}

	var storeResp segmentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&storeResp); err != nil {
		return nil, fmt.Errorf("decoding segments response: %w", err)
	}

	return parseSegments(storeResp.Data.Segments), nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	u := fmt.Sprintf("%s/ready", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: store not ready (status %d)", ErrStoreUnreachable, resp.StatusCode)
	}

	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.orgID != "" {
		req.Header.Set("X-Scope-OrgID", c.orgID)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
}

// parseSegments converts wire segments into models, dropping items with a
// missing embedding or unparseable timestamp. A malformed segment is skipped
// with a warning, never an error for the whole batch.
func parseSegments(raw []wireSegment) []models.Segment {
	segments := make([]models.Segment, 0, len(raw))
	for _, s := range raw {
		if s.DocumentID == "" {
			slog.Warn("skipping segment without document_id", "session_id", s.SessionID)
			continue
		}
		if len(s.Embedding) == 0 {
			slog.Warn("skipping segment without embedding", "document_id", s.DocumentID)
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, s.Timestamp)
		if err != nil {
			slog.Warn("skipping segment with malformed timestamp",
				"document_id", s.DocumentID, "timestamp", s.Timestamp)
			continue
		}

		segments = append(segments, models.Segment{
			DocumentID: s.DocumentID,
			SessionID:  s.SessionID,
			DistinctID: s.DistinctID,
			Content:    s.Content,
			Embedding:  s.Embedding,
			Timestamp:  ts.UTC(),
			StartTime:  s.StartTime,
			EndTime:    s.EndTime,
			Impact: models.ImpactAnnotation{
				ImpactScore:         s.Impact.ImpactScore,
				FailureDetected:     s.Impact.FailureDetected,
				ConfusionDetected:   s.Impact.ConfusionDetected,
				AbandonmentDetected: s.Impact.AbandonmentDetected,
			},
		})
	}
	return segments
}

// --- embedding store response types ---

type segmentsResponse struct {
	Data segmentsData `json:"data"`
}

type segmentsData struct {
	Segments []wireSegment `json:"segments"`
}

type wireSegment struct {
	DocumentID string     `json:"document_id"`
	SessionID  string     `json:"session_id"`
	DistinctID string     `json:"distinct_id"`
	Content    string     `json:"content"`
	Embedding  []float32  `json:"embedding"`
	Timestamp  string     `json:"timestamp"`
	StartTime  int64      `json:"start_time"`
	EndTime    int64      `json:"end_time"`
	Impact     wireImpact `json:"impact"`
}

type wireImpact struct {
	ImpactScore         float64 `json:"impact_score"`
	FailureDetected     bool    `json:"failure_detected"`
	ConfusionDetected   bool    `json:"confusion_detected"`
	AbandonmentDetected bool    `json:"abandonment_detected"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
