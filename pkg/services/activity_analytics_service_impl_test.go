package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pulseboard/pkg/models"
)

var analyticsNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestAnalytics() ActivityAnalyticsService {
	return NewActivityAnalyticsServiceWithClock(7, func() time.Time { return analyticsNow })
}

func activity(user, action string, age time.Duration) models.CanonicalActivity {
	ts := analyticsNow.Add(-age)
	return models.CanonicalActivity{
		ID:           fmt.Sprintf("%s-%s-%d", user, action, ts.UnixNano()),
		UserID:       user,
		ActionCode:   action,
		FeatureLabel: FeatureLabel(action),
		Category:     Categorize(action),
		Timestamp:    ts,
		Status:       models.StatusSuccess,
	}
}

// TestDeltaPercent verifies the division-by-zero policy
func TestDeltaPercent(t *testing.T) {
	cases := []struct {
		previous, current, want float64
	}{
		{0, 0, 0},
		{0, 5, 100},
		{10, 5, -50},
		{10, 20, 100},
		{4, 4, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeltaPercent(tc.previous, tc.current),
			"delta(%v, %v)", tc.previous, tc.current)
	}
}

// TestEmptyInputIsSafe verifies every aggregator handles zero records
func TestEmptyInputIsSafe(t *testing.T) {
	s := newTestAnalytics()
	var none []models.CanonicalActivity

	assert.Empty(t, s.EngagementMetrics(none))
	assert.Empty(t, s.FeatureUsage(none))
	assert.Empty(t, s.SessionTimeline(none))
	assert.Empty(t, s.UserJourney(none))
	assert.Empty(t, s.UserSegments(none))
	assert.Empty(t, s.DailyActiveUsers(none, time.Time{}, time.Time{}))
}

// TestFeatureUsageCountsSumToTotal verifies the per-category counts add up to
// the record count
func TestFeatureUsageCountsSumToTotal(t *testing.T) {
	s := newTestAnalytics()
	activities := []models.CanonicalActivity{
		activity("u1", "login", time.Hour),
		activity("u1", "settings_update", 2*time.Hour),
		activity("u2", "password_reset", 24*time.Hour),
		activity("u2", "ticket_create", 20*24*time.Hour), // outside both windows
		activity("u3", "report_export", 9*24*time.Hour),  // previous window
	}

	rows := s.FeatureUsage(activities)

	total := 0
	for _, row := range rows {
		total += row.UsageCount
	}
	assert.Equal(t, len(activities), total)
}

// TestPercentagesWithinBounds verifies all rate fields stay in [0, 100]
func TestPercentagesWithinBounds(t *testing.T) {
	s := newTestAnalytics()
	var activities []models.CanonicalActivity
	for u := 0; u < 5; u++ {
		user := fmt.Sprintf("u%d", u)
		activities = append(activities, activity(user, "login", time.Duration(u)*time.Hour))
		for i := 0; i < u; i++ {
			activities = append(activities, activity(user, "settings_update", time.Duration(u*10+i)*time.Hour))
		}
	}

	for _, row := range s.FeatureUsage(activities) {
		assert.GreaterOrEqual(t, row.SuccessRate, 0.0)
		assert.LessOrEqual(t, row.SuccessRate, 100.0)
	}
	for _, bucket := range s.SessionTimeline(activities) {
		assert.GreaterOrEqual(t, bucket.BounceRate, 0.0)
		assert.LessOrEqual(t, bucket.BounceRate, 100.0)
	}
	for _, step := range s.UserJourney(activities) {
		assert.GreaterOrEqual(t, step.CompletionPercent, 0.0)
		assert.LessOrEqual(t, step.CompletionPercent, 100.0)
		assert.GreaterOrEqual(t, step.DropOffPercent, 0.0)
		assert.LessOrEqual(t, step.DropOffPercent, 100.0)
	}
	for _, seg := range s.UserSegments(activities) {
		assert.GreaterOrEqual(t, seg.EngagementRate, 0.0)
		assert.LessOrEqual(t, seg.EngagementRate, 100.0)
		assert.GreaterOrEqual(t, seg.RetentionRate, 0.0)
		assert.LessOrEqual(t, seg.RetentionRate, 100.0)
	}
}

// TestJourneyMonotonicity verifies stage populations never increase
func TestJourneyMonotonicity(t *testing.T) {
	s := newTestAnalytics()
	var activities []models.CanonicalActivity
	for u := 0; u < 8; u++ {
		user := fmt.Sprintf("u%d", u)
		activities = append(activities, activity(user, "login", time.Duration(u+1)*time.Hour))
		for i := 0; i < u; i++ {
			activities = append(activities, activity(user, "profile_update", time.Duration(i+1)*time.Minute))
		}
	}

	steps := s.UserJourney(activities)
	if assert.Len(t, steps, 3) {
		assert.GreaterOrEqual(t, steps[0].Users, steps[1].Users)
		assert.GreaterOrEqual(t, steps[1].Users, steps[2].Users)
	}
}

// TestSustainedUseBoundary runs the three-user scenario: one login plus four
// other actions gives full feature adoption but no sustained use; a fifth
// non-login action crosses the threshold.
func TestSustainedUseBoundary(t *testing.T) {
	s := newTestAnalytics()

	var activities []models.CanonicalActivity
	for u := 1; u <= 3; u++ {
		user := fmt.Sprintf("u%d", u)
		activities = append(activities, activity(user, "login", 48*time.Hour))
		for i := 0; i < 4; i++ {
			activities = append(activities, activity(user, "settings_update", time.Duration(40-i)*time.Hour))
		}
	}

	metrics := s.EngagementMetrics(activities)
	var adoption *models.EngagementMetric
	for i := range metrics {
		if metrics[i].Name == "Feature Adoption Rate" {
			adoption = &metrics[i]
		}
	}
	if assert.NotNil(t, adoption) {
		assert.Equal(t, 100.0, adoption.Current)
	}

	steps := s.UserJourney(activities)
	assert.Equal(t, 3, steps[0].Users, "session start")
	assert.Equal(t, 3, steps[1].Users, "first action")
	assert.Equal(t, 0, steps[2].Users, "four actions must not count as sustained use")

	// A fifth non-login action pushes one user over the threshold.
	activities = append(activities, activity("u1", "profile_update", 30*time.Hour))
	steps = s.UserJourney(activities)
	assert.Equal(t, 1, steps[2].Users, "five actions must count as sustained use")
}

// TestUserSegmentsExactlyOne verifies each user lands in exactly one cohort
func TestUserSegmentsExactlyOne(t *testing.T) {
	s := newTestAnalytics()

	var activities []models.CanonicalActivity
	// inactive: last seen 20 days ago
	activities = append(activities, activity("idle", "login", 20*24*time.Hour))
	// new: first seen 2 days ago
	activities = append(activities, activity("rookie", "login", 2*24*time.Hour))
	// premium: 20+ records spanning both windows
	for i := 0; i < 25; i++ {
		activities = append(activities, activity("whale", "settings_update", time.Duration(i*10)*time.Hour))
	}
	// returning: a few records, first seen before the window
	activities = append(activities, activity("casual", "login", 9*24*time.Hour))
	activities = append(activities, activity("casual", "profile_update", 3*24*time.Hour))

	segments := s.UserSegments(activities)

	sizes := make(map[models.SegmentName]int)
	totalUsers := 0
	for _, seg := range segments {
		sizes[seg.Name] = seg.Size
		totalUsers += seg.Size
	}
	assert.Equal(t, 4, totalUsers)
	assert.Equal(t, 1, sizes[models.SegmentInactive])
	assert.Equal(t, 1, sizes[models.SegmentNew])
	assert.Equal(t, 1, sizes[models.SegmentPremium])
	assert.Equal(t, 1, sizes[models.SegmentReturning])
}

// TestRetentionRate verifies returning previous-period users are counted
func TestRetentionRate(t *testing.T) {
	s := newTestAnalytics()
	activities := []models.CanonicalActivity{
		// u1 active in both periods
		activity("u1", "login", 9*24*time.Hour),
		activity("u1", "login", 2*24*time.Hour),
		// u2 only in the previous period
		activity("u2", "login", 10*24*time.Hour),
	}

	metrics := s.EngagementMetrics(activities)
	for _, m := range metrics {
		if m.Name == "Retention Rate" {
			assert.Equal(t, 50.0, m.Current)
			return
		}
	}
	t.Fatal("retention metric missing")
}

// TestSessionDurationPairsLoginLogout verifies the login→logout pairing
func TestSessionDurationPairsLoginLogout(t *testing.T) {
	s := newTestAnalytics()
	activities := []models.CanonicalActivity{
		activity("u1", "login", 3*time.Hour),
		activity("u1", "logout", 2*time.Hour), // 1h session
	}

	metrics := s.EngagementMetrics(activities)
	for _, m := range metrics {
		if m.Name == "Avg. Session Duration" {
			assert.Equal(t, 3600.0, m.Current)
			return
		}
	}
	t.Fatal("session duration metric missing")
}

// TestDailyActiveUsersRollup verifies the local rollup splits new vs returning
func TestDailyActiveUsersRollup(t *testing.T) {
	s := newTestAnalytics()
	activities := []models.CanonicalActivity{
		activity("u1", "login", 49*time.Hour), // day -3
		activity("u1", "login", 25*time.Hour), // day -2: returning
		activity("u2", "login", 25*time.Hour), // day -2: new
	}

	buckets := s.DailyActiveUsers(activities, time.Time{}, time.Time{})
	if assert.Len(t, buckets, 2) {
		last := buckets[len(buckets)-1]
		assert.Equal(t, 2, last.ActiveUsers)
		assert.Equal(t, 1, last.NewUsers)
		assert.Equal(t, 1, last.ReturningUsers)
	}
}
