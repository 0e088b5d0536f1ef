package models

import "time"

// Trend indicates the direction of a current-vs-previous-period delta.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// EngagementMetric is a single KPI with its current and previous period value.
type EngagementMetric struct {
	Name          string  `json:"name"`
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	ChangePercent float64 `json:"change_percent"`
	Trend         Trend   `json:"trend"`
	Unit          string  `json:"unit,omitempty"`
}

// FeatureUsageRow aggregates all activity for one action code.
type FeatureUsageRow struct {
	ActionCode     string           `json:"action_code"`
	FeatureLabel   string           `json:"feature_label"`
	Category       ActivityCategory `json:"category"`
	UsageCount     int              `json:"usage_count"`
	UniqueUsers    int              `json:"unique_users"`
	SuccessRate    float64          `json:"success_rate"`
	AvgTimeSeconds float64          `json:"avg_time_seconds"`
	ChangePercent  float64          `json:"change_percent"`
	Trend          Trend            `json:"trend"`
}

// SessionDayBucket aggregates session activity for one calendar day.
type SessionDayBucket struct {
	Date               string  `json:"date"`
	SessionCount       int     `json:"session_count"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	BounceRate         float64 `json:"bounce_rate"`
	PageViews          int     `json:"page_views"`
}

// UserJourneyStep is one stage of the fixed session-start → first-action →
// sustained-use funnel.
type UserJourneyStep struct {
	Stage             string  `json:"stage"`
	Users             int     `json:"users"`
	CompletionPercent float64 `json:"completion_percent"`
	DropOffPercent    float64 `json:"drop_off_percent"`
	AvgTimeSeconds    float64 `json:"avg_time_seconds"`
}

// SegmentName identifies a user cohort.
type SegmentName string

const (
	SegmentPremium   SegmentName = "premium"
	SegmentNew       SegmentName = "new"
	SegmentReturning SegmentName = "returning"
	SegmentInactive  SegmentName = "inactive"
)

// UserSegment aggregates one cohort of users.
type UserSegment struct {
	Name           SegmentName `json:"name"`
	Size           int         `json:"size"`
	EngagementRate float64     `json:"engagement_rate"`
	RetentionRate  float64     `json:"retention_rate"`
	LifetimeValue  float64     `json:"lifetime_value"`
}

// DailyActiveUsersBucket is one row of the daily-active-users rollup.
type DailyActiveUsersBucket struct {
	Date           string `json:"date"`
	ActiveUsers    int    `json:"active_users"`
	NewUsers       int    `json:"new_users"`
	ReturningUsers int    `json:"returning_users"`
}

// AnalyticsSnapshot is one complete aggregation pass over a fetched record
// set. Generation orders snapshots so that a slow refresh finishing after a
// newer one can be discarded.
type AnalyticsSnapshot struct {
	Generation   uint64             `json:"generation"`
	GeneratedAt  time.Time          `json:"generated_at"`
	RecordCount  int                `json:"record_count"`
	UserCount    int                `json:"user_count"`
	Engagement   []EngagementMetric `json:"engagement"`
	FeatureUsage []FeatureUsageRow  `json:"feature_usage"`
	Sessions     []SessionDayBucket `json:"sessions"`
	Journey      []UserJourneyStep  `json:"journey"`
	Segments     []UserSegment      `json:"segments"`
}
