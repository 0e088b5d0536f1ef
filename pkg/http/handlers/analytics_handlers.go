package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pulseboard/pkg/errors"
	"pulseboard/pkg/httputil"
	"pulseboard/pkg/logging"
	"pulseboard/pkg/models"
	"pulseboard/pkg/services"
)

// RollupClient is the backend's daily-active-users endpoint.
type RollupClient interface {
	DailyActiveUsers(ctx context.Context, start, end time.Time, groupBy string) ([]models.DailyActiveUsersBucket, error)
}

// AnalyticsHandlers serves the computed dashboard aggregates.
type AnalyticsHandlers struct {
	snapshots  services.SnapshotService
	analytics  services.ActivityAnalyticsService
	rollup     RollupClient
	errHandler *errors.Handler
	logger     *logging.Logger
}

// NewAnalyticsHandlers creates new analytics handlers
func NewAnalyticsHandlers(snapshots services.SnapshotService, analytics services.ActivityAnalyticsService, rollup RollupClient, errHandler *errors.Handler, logger *logging.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		snapshots:  snapshots,
		analytics:  analytics,
		rollup:     rollup,
		errHandler: errHandler,
		logger:     logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// snapshot returns the current snapshot or writes a 404 telling the caller to
// refresh first. "No snapshot yet" is a renderable empty state, not an error.
func (ah *AnalyticsHandlers) snapshot(w http.ResponseWriter, r *http.Request) (*models.AnalyticsSnapshot, bool) {
	snap, ok := ah.snapshots.Current()
	if !ok {
		ah.errHandler.Handle(w,
			errors.NotFoundErrorf("NO_SNAPSHOT", "no analytics snapshot available yet; trigger a refresh"),
			httputil.GetTraceID(r))
		return nil, false
	}
	return snap, true
}

// GetSummary handles GET /api/analytics/summary
func (ah *AnalyticsHandlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := ah.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetEngagement handles GET /api/analytics/engagement
func (ah *AnalyticsHandlers) GetEngagement(w http.ResponseWriter, r *http.Request) {
	snap, ok := ah.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": snap.Engagement})
}

// GetFeatureUsage handles GET /api/analytics/feature-usage
func (ah *AnalyticsHandlers) GetFeatureUsage(w http.ResponseWriter, r *http.Request) {
	snap, ok := ah.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": snap.FeatureUsage})
}

// GetSessions handles GET /api/analytics/sessions
func (ah *AnalyticsHandlers) GetSessions(w http.ResponseWriter, r *http.Request) {
	snap, ok := ah.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": snap.Sessions})
}

// GetJourney handles GET /api/analytics/journey
func (ah *AnalyticsHandlers) GetJourney(w http.ResponseWriter, r *http.Request) {
	snap, ok := ah.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": snap.Journey})
}

// GetSegments handles GET /api/analytics/segments
func (ah *AnalyticsHandlers) GetSegments(w http.ResponseWriter, r *http.Request) {
	snap, ok := ah.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": snap.Segments})
}

// Refresh handles POST /api/analytics/refresh
func (ah *AnalyticsHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := ah.snapshots.Refresh(r.Context())
	if err != nil {
		ah.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetDailyActiveUsers handles GET /api/analytics/daily-active-users. The
// backend rollup is preferred; when it errors the rollup is computed locally
// from the current snapshot's records.
func (ah *AnalyticsHandlers) GetDailyActiveUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start := parseDate(query.Get("start_date"))
	end := parseDate(query.Get("end_date"))
	groupBy := query.Get("group_by")

	buckets, err := ah.rollup.DailyActiveUsers(r.Context(), start, end, groupBy)
	if err != nil {
		ah.logger.Warn("backend rollup unavailable, computing locally", zap.Error(err))
		buckets = ah.analytics.DailyActiveUsers(ah.snapshots.Activities(), start, end)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": buckets})
}

func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
