package handlers

import (
	"context"
	"net/http"
	"strconv"

	"pulseboard/pkg/backend"
	"pulseboard/pkg/errors"
	"pulseboard/pkg/httputil"
	"pulseboard/pkg/models"
	"pulseboard/pkg/services"
)

// FilterClient is the backend's filtered log endpoint.
type FilterClient interface {
	FilteredLogs(ctx context.Context, f models.ActivityFilter) (backend.LogPage, error)
}

// ActivityHandlers serves the live feed and filtered activity queries.
type ActivityHandlers struct {
	feed       *services.RecentFeed
	filters    FilterClient
	normalizer *services.Normalizer
	errHandler *errors.Handler
}

// NewActivityHandlers creates new activity handlers
func NewActivityHandlers(feed *services.RecentFeed, filters FilterClient, normalizer *services.Normalizer, errHandler *errors.Handler) *ActivityHandlers {
	return &ActivityHandlers{
		feed:       feed,
		filters:    filters,
		normalizer: normalizer,
		errHandler: errHandler,
	}
}

// GetRecent handles GET /api/activity/recent
func (ah *ActivityHandlers) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			ah.errHandler.Handle(w, errors.ValidationErrorf("INVALID_LIMIT", "limit must be a positive integer"), httputil.GetTraceID(r))
			return
		}
		limit = n
	}

	activities := ah.feed.Snapshot(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  activities,
		"total": len(activities),
	})
}

// GetFiltered handles GET /api/activity. The raw query is passed through to
// the backend and the results normalized before they leave this service. A
// data-shape error from the backend renders as an empty list.
func (ah *ActivityHandlers) GetFiltered(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := models.ActivityFilter{
		UserID:       query.Get("user_id"),
		Action:       query.Get("action"),
		ResourceType: query.Get("resource_type"),
		Severity:     query.Get("severity"),
		Status:       query.Get("status"),
		StartDate:    parseDate(query.Get("start_date")),
		EndDate:      parseDate(query.Get("end_date")),
	}
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			ah.errHandler.Handle(w, errors.ValidationErrorf("INVALID_LIMIT", "limit must be a positive integer"), httputil.GetTraceID(r))
			return
		}
		filter.Limit = n
	}
	if v := query.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			ah.errHandler.Handle(w, errors.ValidationErrorf("INVALID_SKIP", "skip must be a non-negative integer"), httputil.GetTraceID(r))
			return
		}
		filter.Skip = n
	}

	page, err := ah.filters.FilteredLogs(r.Context(), filter)
	if err != nil {
		if errors.IsType(err, errors.DataShapeError) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"data":  []models.CanonicalActivity{},
				"total": 0,
			})
			return
		}
		ah.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	activities := ah.normalizer.NormalizeAll(page.Records, nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  activities,
		"total": page.Total,
	})
}
