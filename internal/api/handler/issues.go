package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/sessionlens/internal/api/middleware"
	"github.com/kiranshivaraju/sessionlens/internal/api/response"
	"github.com/kiranshivaraju/sessionlens/internal/cache"
	"github.com/kiranshivaraju/sessionlens/internal/store"
	"github.com/kiranshivaraju/sessionlens/pkg/models"

	"github.com/go-chi/chi/v5"
)

const issueListTTL = 30 * time.Second

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// cachedIssueList is the cache payload for one list query.
type cachedIssueList struct {
	Issues []*models.Issue `json:"issues"`
	Total  int             `json:"total"`
}

// NewListIssuesHandler returns an http.HandlerFunc for GET /api/v1/issues.
// Results are cached per tenant and filter combination for a short TTL.
func NewListIssuesHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		filter, errMsg := parseIssueFilter(r, tenantID)
		if errMsg != "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", errMsg, nil)
			return
		}

		cacheKey := cache.IssueListKey(tenantID, filterHash(filter))
		if raw, found, _ := ca.Get(r.Context(), cacheKey); found {
			var cached cachedIssueList
			if err := json.Unmarshal(raw, &cached); err == nil {
				writeIssueList(w, cached.Issues, cached.Total, filter)
				return
			}
		}

		issues, total, err := st.ListIssues(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list issues", nil)
			return
		}

		if raw, err := json.Marshal(cachedIssueList{Issues: issues, Total: total}); err == nil {
			_ = ca.Set(r.Context(), cacheKey, raw, issueListTTL)
		}

		writeIssueList(w, issues, total, filter)
	}
}

// NewGetIssueHandler returns an http.HandlerFunc for GET /api/v1/issues/{issueID}.
func NewGetIssueHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		issueID, err := uuid.Parse(chi.URLParam(r, "issueID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid issue ID", nil)
			return
		}

		issue, err := st.GetIssue(r.Context(), issueID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Issue not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load issue", nil)
			return
		}

		response.JSON(w, issue)
	}
}

// NewListIssueSegmentsHandler returns an http.HandlerFunc for
// GET /api/v1/issues/{issueID}/segments.
func NewListIssueSegmentsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		issueID, err := uuid.Parse(chi.URLParam(r, "issueID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid issue ID", nil)
			return
		}

		page, limit, errMsg := parsePagination(r)
		if errMsg != "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", errMsg, nil)
			return
		}

		if _, err := st.GetIssue(r.Context(), issueID, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Issue not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load issue", nil)
			return
		}

		links, total, err := st.ListSegmentLinks(r.Context(), issueID, tenantID, page, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list segments", nil)
			return
		}

		response.Collection(w, links, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

func parseIssueFilter(r *http.Request, tenantID uuid.UUID) (store.IssueFilter, string) {
	filter := store.IssueFilter{TenantID: tenantID}

	page, limit, errMsg := parsePagination(r)
	if errMsg != "" {
		return filter, errMsg
	}
	filter.Page = page
	filter.Limit = limit

	if v := r.URL.Query().Get("min_priority"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return filter, "min_priority must be a non-negative number"
		}
		filter.MinPriority = f
	}

	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, "since must be a valid RFC3339 timestamp"
		}
		filter.Since = t
	}

	return filter, ""
}

func parsePagination(r *http.Request) (page, limit int, errMsg string) {
	page, limit = defaultPage, defaultLimit

	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, "page must be a positive integer"
		}
		page = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, "limit must be a positive integer"
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	return page, limit, ""
}

func writeIssueList(w http.ResponseWriter, issues []*models.Issue, total int, filter store.IssueFilter) {
	if issues == nil {
		issues = []*models.Issue{}
	}
	response.Collection(w, issues, response.PaginationMeta{
		Page:    filter.Page,
		Limit:   filter.Limit,
		Total:   total,
		HasNext: filter.Page*filter.Limit < total,
	})
}

// filterHash produces a short stable key component for one filter combination.
func filterHash(f store.IssueFilter) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%g|%d|%d|%d", f.MinPriority, f.Since.UnixNano(), f.Page, f.Limit)
	return strconv.FormatUint(h.Sum64(), 16)
}
