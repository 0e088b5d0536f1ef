package services

import (
	"context"
	"time"

	"pulseboard/pkg/backend"
	"pulseboard/pkg/models"
)

// DirectoryClient lists the known users.
type DirectoryClient interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}

// UserLogClient retrieves per-user activity-log pages.
type UserLogClient interface {
	UserActivityLogs(ctx context.Context, userID string, limit, skip int) (backend.LogPage, error)
}

// RecentLogClient retrieves records newer than a watermark.
type RecentLogClient interface {
	RecentLogs(ctx context.Context, q backend.RecentQuery) ([]models.RawLogRecord, error)
}

// LogClient is the full backend surface the pipeline needs.
type LogClient interface {
	DirectoryClient
	UserLogClient
	RecentLogClient
}

// FetchResult is the outcome of one full fetch pass.
type FetchResult struct {
	Records []models.RawLogRecord
	Users   []models.User
	// FailedUsers counts per-user fetches that errored and were skipped.
	FailedUsers int
}

// FetchService retrieves all activity records for all known users.
type FetchService interface {
	FetchAll(ctx context.Context) (*FetchResult, error)
}

// ActivityAnalyticsService computes the dashboard aggregates. Every method is
// a pure function of its input slice; an empty slice yields an empty result.
type ActivityAnalyticsService interface {
	EngagementMetrics(activities []models.CanonicalActivity) []models.EngagementMetric
	FeatureUsage(activities []models.CanonicalActivity) []models.FeatureUsageRow
	SessionTimeline(activities []models.CanonicalActivity) []models.SessionDayBucket
	UserJourney(activities []models.CanonicalActivity) []models.UserJourneyStep
	UserSegments(activities []models.CanonicalActivity) []models.UserSegment
	DailyActiveUsers(activities []models.CanonicalActivity, start, end time.Time) []models.DailyActiveUsersBucket
}

// SnapshotService owns the fetch-normalize-aggregate cycle and the current
// snapshot.
type SnapshotService interface {
	// Refresh runs a full pass. When a newer refresh finished while this one
	// was in flight, its result is discarded and the newer snapshot returned.
	Refresh(ctx context.Context) (*models.AnalyticsSnapshot, error)

	// Current returns the latest installed snapshot, if any.
	Current() (*models.AnalyticsSnapshot, bool)

	// Activities returns the normalized record set behind the current
	// snapshot.
	Activities() []models.CanonicalActivity
}

// ActivitySink receives freshly polled activities, most recent last.
type ActivitySink interface {
	PublishActivities(activities []models.CanonicalActivity)
}
