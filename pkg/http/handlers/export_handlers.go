package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pulseboard/pkg/errors"
	"pulseboard/pkg/export"
	"pulseboard/pkg/httputil"
	"pulseboard/pkg/models"
	"pulseboard/pkg/services"
)

// ExportHandlers renders snapshot aggregates as downloadable reports.
type ExportHandlers struct {
	snapshots  services.SnapshotService
	errHandler *errors.Handler
}

// NewExportHandlers creates new export handlers
func NewExportHandlers(snapshots services.SnapshotService, errHandler *errors.Handler) *ExportHandlers {
	return &ExportHandlers{snapshots: snapshots, errHandler: errHandler}
}

// Export handles GET /api/export/{report}?format=csv|html
func (eh *ExportHandlers) Export(w http.ResponseWriter, r *http.Request) {
	report := chi.URLParam(r, "report")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "html" {
		eh.errHandler.Handle(w, errors.ValidationErrorf("INVALID_FORMAT", "format must be csv or html"), httputil.GetTraceID(r))
		return
	}

	snap, ok := eh.snapshots.Current()
	if !ok {
		eh.errHandler.Handle(w, errors.NotFoundErrorf("NO_SNAPSHOT", "no analytics snapshot available yet"), httputil.GetTraceID(r))
		return
	}

	cols, rows, title, err := reportTable(report, snap)
	if err != nil {
		eh.errHandler.Handle(w, err, httputil.GetTraceID(r))
		return
	}

	filename := export.Filename(report, format, time.Now())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		if err := export.WriteCSV(w, cols, rows); err != nil {
			eh.errHandler.Handle(w, err, httputil.GetTraceID(r))
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := export.WriteHTML(w, title, cols, rows); err != nil {
		eh.errHandler.Handle(w, err, httputil.GetTraceID(r))
	}
}

// reportTable flattens one snapshot aggregate into exportable columns + rows.
func reportTable(report string, snap *models.AnalyticsSnapshot) ([]export.Column, []export.Row, string, error) {
	switch report {
	case "engagement":
		cols := []export.Column{
			{Key: "name", Label: "Metric"},
			{Key: "current", Label: "Current"},
			{Key: "previous", Label: "Previous"},
			{Key: "change_percent", Label: "Change %"},
			{Key: "trend", Label: "Trend"},
		}
		rows := make([]export.Row, 0, len(snap.Engagement))
		for _, m := range snap.Engagement {
			rows = append(rows, export.Row{
				"name":           m.Name,
				"current":        m.Current,
				"previous":       m.Previous,
				"change_percent": m.ChangePercent,
				"trend":          string(m.Trend),
			})
		}
		return cols, rows, "Engagement Metrics", nil

	case "feature-usage":
		cols := []export.Column{
			{Key: "feature", Label: "Feature"},
			{Key: "category", Label: "Category"},
			{Key: "usage_count", Label: "Usage Count"},
			{Key: "unique_users", Label: "Unique Users"},
			{Key: "success_rate", Label: "Success Rate %"},
		}
		rows := make([]export.Row, 0, len(snap.FeatureUsage))
		for _, f := range snap.FeatureUsage {
			rows = append(rows, export.Row{
				"feature":      f.FeatureLabel,
				"category":     string(f.Category),
				"usage_count":  f.UsageCount,
				"unique_users": f.UniqueUsers,
				"success_rate": f.SuccessRate,
			})
		}
		return cols, rows, "Feature Usage", nil

	case "sessions":
		cols := []export.Column{
			{Key: "date", Label: "Date"},
			{Key: "sessions", Label: "Sessions"},
			{Key: "avg_duration", Label: "Avg Duration (s)"},
			{Key: "bounce_rate", Label: "Bounce Rate %"},
			{Key: "page_views", Label: "Page Views"},
		}
		rows := make([]export.Row, 0, len(snap.Sessions))
		for _, s := range snap.Sessions {
			rows = append(rows, export.Row{
				"date":         s.Date,
				"sessions":     s.SessionCount,
				"avg_duration": s.AvgDurationSeconds,
				"bounce_rate":  s.BounceRate,
				"page_views":   s.PageViews,
			})
		}
		return cols, rows, "Session Timeline", nil

	case "journey":
		cols := []export.Column{
			{Key: "stage", Label: "Stage"},
			{Key: "users", Label: "Users"},
			{Key: "completion", Label: "Completion %"},
			{Key: "drop_off", Label: "Drop-off %"},
		}
		rows := make([]export.Row, 0, len(snap.Journey))
		for _, j := range snap.Journey {
			rows = append(rows, export.Row{
				"stage":      j.Stage,
				"users":      j.Users,
				"completion": j.CompletionPercent,
				"drop_off":   j.DropOffPercent,
			})
		}
		return cols, rows, "User Journey", nil

	case "segments":
		cols := []export.Column{
			{Key: "segment", Label: "Segment"},
			{Key: "size", Label: "Users"},
			{Key: "engagement_rate", Label: "Engagement %"},
			{Key: "retention_rate", Label: "Retention %"},
			{Key: "lifetime_value", Label: "Lifetime Value"},
		}
		rows := make([]export.Row, 0, len(snap.Segments))
		for _, s := range snap.Segments {
			rows = append(rows, export.Row{
				"segment":         string(s.Name),
				"size":            s.Size,
				"engagement_rate": s.EngagementRate,
				"retention_rate":  s.RetentionRate,
				"lifetime_value":  s.LifetimeValue,
			})
		}
		return cols, rows, "User Segments", nil

	default:
		return nil, nil, "", errors.NotFoundErrorf("UNKNOWN_REPORT", "unknown report: %s", report)
	}
}
