package services

import (
	"sort"
	"time"

	"pulseboard/pkg/models"
)

// Heuristic constants. The per-action time cost and lifetime-value multipliers
// are placeholder formulas pending real business definitions; only the funnel
// and segment thresholds are contractual.
const (
	actionCostSeconds = 45.0

	sustainedUseThreshold  = 5
	premiumRecordThreshold = 20
	inactiveAfterDays      = 14
	valuePerActionUSD      = 1.5
)

// sessionActions are excluded when counting "real" feature actions.
var sessionActions = map[string]bool{
	"login":  true,
	"logout": true,
}

// segmentValueMultiplier scales the lifetime-value estimate per cohort.
var segmentValueMultiplier = map[models.SegmentName]float64{
	models.SegmentPremium:   4.0,
	models.SegmentReturning: 2.0,
	models.SegmentNew:       1.0,
	models.SegmentInactive:  0.5,
}

// ActivityAnalyticsServiceImpl implements ActivityAnalyticsService.
type ActivityAnalyticsServiceImpl struct {
	windowDays int
	now        func() time.Time
}

// NewActivityAnalyticsService creates a new analytics service with the given
// current-period window length in days.
func NewActivityAnalyticsService(windowDays int) ActivityAnalyticsService {
	return NewActivityAnalyticsServiceWithClock(windowDays, time.Now)
}

// NewActivityAnalyticsServiceWithClock injects a clock for deterministic
// tests.
func NewActivityAnalyticsServiceWithClock(windowDays int, now func() time.Time) ActivityAnalyticsService {
	if windowDays < 1 {
		windowDays = 7
	}
	return &ActivityAnalyticsServiceImpl{windowDays: windowDays, now: now}
}

// DeltaPercent computes the percentage change from previous to current.
// Both zero yields 0, previous zero with a nonzero current yields 100; the
// result is never NaN or infinite.
func DeltaPercent(previous, current float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - previous) / previous * 100
}

// TrendOf maps a delta percentage onto a trend direction.
func TrendOf(delta float64) models.Trend {
	switch {
	case delta > 0:
		return models.TrendUp
	case delta < 0:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

// ClampPercent forces a percentage into [0, 100].
func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// window splits the activities into the current period (last windowDays) and
// the previous period (the windowDays before that). Records older than both
// periods are ignored by period-based metrics.
func (s *ActivityAnalyticsServiceImpl) window(activities []models.CanonicalActivity) (current, previous []models.CanonicalActivity) {
	now := s.now()
	curStart := now.AddDate(0, 0, -s.windowDays)
	prevStart := now.AddDate(0, 0, -2*s.windowDays)

	for _, a := range activities {
		switch {
		case !a.Timestamp.Before(curStart):
			current = append(current, a)
		case !a.Timestamp.Before(prevStart):
			previous = append(previous, a)
		}
	}
	return current, previous
}

func uniqueUsers(activities []models.CanonicalActivity) map[string]bool {
	users := make(map[string]bool)
	for _, a := range activities {
		if a.UserID != "" {
			users[a.UserID] = true
		}
	}
	return users
}

// EngagementMetrics computes the four KPI rows of the dashboard header.
func (s *ActivityAnalyticsServiceImpl) EngagementMetrics(activities []models.CanonicalActivity) []models.EngagementMetric {
	if len(activities) == 0 {
		return []models.EngagementMetric{}
	}

	current, previous := s.window(activities)
	curUsers := uniqueUsers(current)
	prevUsers := uniqueUsers(previous)

	metrics := make([]models.EngagementMetric, 0, 4)

	curDAU := float64(len(curUsers)) / float64(s.windowDays)
	prevDAU := float64(len(prevUsers)) / float64(s.windowDays)
	metrics = append(metrics, s.metric("Daily Active Users", curDAU, prevDAU, "users"))

	curDuration := avgSessionDuration(current)
	prevDuration := avgSessionDuration(previous)
	metrics = append(metrics, s.metric("Avg. Session Duration", curDuration, prevDuration, "seconds"))

	curAdoption := featureAdoptionRate(current, curUsers)
	prevAdoption := featureAdoptionRate(previous, prevUsers)
	metrics = append(metrics, s.metric("Feature Adoption Rate", curAdoption, prevAdoption, "%"))

	curRetention := retentionRate(prevUsers, curUsers)
	// Retention of the previous period would need the period before it; reuse
	// the same value so the delta reads as stable.
	metrics = append(metrics, s.metric("Retention Rate", curRetention, curRetention, "%"))

	return metrics
}

func (s *ActivityAnalyticsServiceImpl) metric(name string, current, previous float64, unit string) models.EngagementMetric {
	delta := DeltaPercent(previous, current)
	return models.EngagementMetric{
		Name:          name,
		Current:       current,
		Previous:      previous,
		ChangePercent: delta,
		Trend:         TrendOf(delta),
		Unit:          unit,
	}
}

// avgSessionDuration pairs each user's logins with the following logout and
// averages the deltas. Users without a single complete pair fall back to an
// action-count heuristic.
func avgSessionDuration(activities []models.CanonicalActivity) float64 {
	if len(activities) == 0 {
		return 0
	}

	byUser := make(map[string][]models.CanonicalActivity)
	for _, a := range activities {
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}

	var total float64
	var users int
	for _, recs := range byUser {
		sort.Slice(recs, func(i, j int) bool { return recs[i].Timestamp.Before(recs[j].Timestamp) })

		var durations []float64
		var loginAt time.Time
		var inSession bool
		for _, a := range recs {
			switch a.ActionCode {
			case "login":
				loginAt = a.Timestamp
				inSession = true
			case "logout":
				if inSession {
					durations = append(durations, a.Timestamp.Sub(loginAt).Seconds())
					inSession = false
				}
			}
		}

		var userAvg float64
		if len(durations) > 0 {
			for _, d := range durations {
				userAvg += d
			}
			userAvg /= float64(len(durations))
		} else {
			userAvg = float64(len(recs)) * actionCostSeconds
		}
		total += userAvg
		users++
	}

	if users == 0 {
		return 0
	}
	return total / float64(users)
}

// featureAdoptionRate is the share of active users that touched at least one
// non-login action.
func featureAdoptionRate(activities []models.CanonicalActivity, users map[string]bool) float64 {
	if len(users) == 0 {
		return 0
	}
	adopted := make(map[string]bool)
	for _, a := range activities {
		if !sessionActions[a.ActionCode] {
			adopted[a.UserID] = true
		}
	}
	return ClampPercent(float64(len(adopted)) / float64(len(users)) * 100)
}

// retentionRate is the share of previous-period users that reappeared in the
// current period.
func retentionRate(prevUsers, curUsers map[string]bool) float64 {
	if len(prevUsers) == 0 {
		return 0
	}
	retained := 0
	for id := range prevUsers {
		if curUsers[id] {
			retained++
		}
	}
	return ClampPercent(float64(retained) / float64(len(prevUsers)) * 100)
}

// FeatureUsage groups all records by action code. The per-row counts cover the
// entire input so that category sums always match the total record count; the
// trend compares the current window against the previous one.
func (s *ActivityAnalyticsServiceImpl) FeatureUsage(activities []models.CanonicalActivity) []models.FeatureUsageRow {
	if len(activities) == 0 {
		return []models.FeatureUsageRow{}
	}

	current, previous := s.window(activities)
	curCounts := countByAction(current)
	prevCounts := countByAction(previous)

	type accumulator struct {
		count   int
		success int
		users   map[string]bool
		label   string
		cat     models.ActivityCategory
	}
	byAction := make(map[string]*accumulator)

	for _, a := range activities {
		acc, ok := byAction[a.ActionCode]
		if !ok {
			acc = &accumulator{users: make(map[string]bool), label: a.FeatureLabel, cat: a.Category}
			byAction[a.ActionCode] = acc
		}
		acc.count++
		acc.users[a.UserID] = true
		if a.Status == models.StatusSuccess {
			acc.success++
		}
	}

	rows := make([]models.FeatureUsageRow, 0, len(byAction))
	for code, acc := range byAction {
		delta := DeltaPercent(float64(prevCounts[code]), float64(curCounts[code]))
		rows = append(rows, models.FeatureUsageRow{
			ActionCode:     code,
			FeatureLabel:   acc.label,
			Category:       acc.cat,
			UsageCount:     acc.count,
			UniqueUsers:    len(acc.users),
			SuccessRate:    ClampPercent(float64(acc.success) / float64(acc.count) * 100),
			AvgTimeSeconds: actionCostSeconds,
			ChangePercent:  delta,
			Trend:          TrendOf(delta),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UsageCount != rows[j].UsageCount {
			return rows[i].UsageCount > rows[j].UsageCount
		}
		return rows[i].ActionCode < rows[j].ActionCode
	})
	return rows
}

func countByAction(activities []models.CanonicalActivity) map[string]int {
	counts := make(map[string]int)
	for _, a := range activities {
		counts[a.ActionCode]++
	}
	return counts
}

// SessionTimeline groups activity by calendar day. Session counts and
// durations are approximations: a day's sessions are its login count, falling
// back to its unique-user count when no logins were recorded.
func (s *ActivityAnalyticsServiceImpl) SessionTimeline(activities []models.CanonicalActivity) []models.SessionDayBucket {
	if len(activities) == 0 {
		return []models.SessionDayBucket{}
	}

	type dayAcc struct {
		records int
		logins  int
		perUser map[string]int
	}
	days := make(map[string]*dayAcc)

	for _, a := range activities {
		key := a.Timestamp.UTC().Format("2006-01-02")
		acc, ok := days[key]
		if !ok {
			acc = &dayAcc{perUser: make(map[string]int)}
			days[key] = acc
		}
		acc.records++
		acc.perUser[a.UserID]++
		if a.ActionCode == "login" {
			acc.logins++
		}
	}

	buckets := make([]models.SessionDayBucket, 0, len(days))
	for date, acc := range days {
		sessions := acc.logins
		if sessions == 0 {
			sessions = len(acc.perUser)
		}

		// Bounce: users that did exactly one thing that day.
		bounced := 0
		for _, c := range acc.perUser {
			if c == 1 {
				bounced++
			}
		}

		buckets = append(buckets, models.SessionDayBucket{
			Date:               date,
			SessionCount:       sessions,
			AvgDurationSeconds: float64(acc.records) / float64(sessions) * actionCostSeconds,
			BounceRate:         ClampPercent(float64(bounced) / float64(len(acc.perUser)) * 100),
			PageViews:          acc.records,
		})
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	return buckets
}

// UserJourney computes the fixed three-stage funnel. Stage populations are
// nested by construction: sustained use requires at least five non-login
// actions, which implies a first action, which implies a session start.
func (s *ActivityAnalyticsServiceImpl) UserJourney(activities []models.CanonicalActivity) []models.UserJourneyStep {
	if len(activities) == 0 {
		return []models.UserJourneyStep{}
	}

	type userAcc struct {
		firstSeen   time.Time
		firstAction time.Time
		fifthAction time.Time
		actionCount int
	}
	users := make(map[string]*userAcc)

	sorted := make([]models.CanonicalActivity, len(activities))
	copy(sorted, activities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	for _, a := range sorted {
		acc, ok := users[a.UserID]
		if !ok {
			acc = &userAcc{firstSeen: a.Timestamp}
			users[a.UserID] = acc
		}
		if !sessionActions[a.ActionCode] {
			acc.actionCount++
			if acc.actionCount == 1 {
				acc.firstAction = a.Timestamp
			}
			if acc.actionCount == sustainedUseThreshold {
				acc.fifthAction = a.Timestamp
			}
		}
	}

	var (
		sessionStartCount = len(users)
		firstActionCount  int
		sustainedCount    int

		firstActionLag time.Duration
		sustainedLag   time.Duration
	)
	for _, acc := range users {
		if acc.actionCount >= 1 {
			firstActionCount++
			firstActionLag += acc.firstAction.Sub(acc.firstSeen)
		}
		if acc.actionCount >= sustainedUseThreshold {
			sustainedCount++
			sustainedLag += acc.fifthAction.Sub(acc.firstSeen)
		}
	}

	steps := []models.UserJourneyStep{
		{
			Stage:             "Session Start",
			Users:             sessionStartCount,
			CompletionPercent: 100,
		},
		funnelStep("First Action", firstActionCount, sessionStartCount, avgLagSeconds(firstActionLag, firstActionCount)),
		funnelStep("Sustained Use", sustainedCount, firstActionCount, avgLagSeconds(sustainedLag, sustainedCount)),
	}
	return steps
}

func funnelStep(stage string, users, previousUsers int, avgTimeSeconds float64) models.UserJourneyStep {
	var completion float64
	if previousUsers > 0 {
		completion = ClampPercent(float64(users) / float64(previousUsers) * 100)
	}
	return models.UserJourneyStep{
		Stage:             stage,
		Users:             users,
		CompletionPercent: completion,
		DropOffPercent:    ClampPercent(100 - completion),
		AvgTimeSeconds:    avgTimeSeconds,
	}
}

func avgLagSeconds(total time.Duration, n int) float64 {
	if n == 0 {
		return 0
	}
	return total.Seconds() / float64(n)
}

// UserSegments classifies every user into exactly one cohort and aggregates
// per-cohort rates. The classification order matters: inactivity wins over
// everything, then newness, then volume.
func (s *ActivityAnalyticsServiceImpl) UserSegments(activities []models.CanonicalActivity) []models.UserSegment {
	if len(activities) == 0 {
		return []models.UserSegment{}
	}

	now := s.now()
	windowStart := now.AddDate(0, 0, -s.windowDays)
	inactiveCutoff := now.AddDate(0, 0, -inactiveAfterDays)

	type userAcc struct {
		count     int
		firstSeen time.Time
		lastSeen  time.Time
	}
	users := make(map[string]*userAcc)
	for _, a := range activities {
		acc, ok := users[a.UserID]
		if !ok {
			acc = &userAcc{firstSeen: a.Timestamp, lastSeen: a.Timestamp}
			users[a.UserID] = acc
		}
		acc.count++
		if a.Timestamp.Before(acc.firstSeen) {
			acc.firstSeen = a.Timestamp
		}
		if a.Timestamp.After(acc.lastSeen) {
			acc.lastSeen = a.Timestamp
		}
	}

	type segAcc struct {
		size         int
		activeNow    int
		eligible     int
		retained     int
		totalRecords int
	}
	segments := map[models.SegmentName]*segAcc{
		models.SegmentPremium:   {},
		models.SegmentNew:       {},
		models.SegmentReturning: {},
		models.SegmentInactive:  {},
	}

	for _, acc := range users {
		var name models.SegmentName
		switch {
		case acc.lastSeen.Before(inactiveCutoff):
			name = models.SegmentInactive
		case !acc.firstSeen.Before(windowStart):
			name = models.SegmentNew
		case acc.count >= premiumRecordThreshold:
			name = models.SegmentPremium
		default:
			name = models.SegmentReturning
		}

		seg := segments[name]
		seg.size++
		seg.totalRecords += acc.count
		if !acc.lastSeen.Before(windowStart) {
			seg.activeNow++
		}
		// Retention only makes sense for users old enough to have had a
		// chance to come back.
		if acc.firstSeen.Before(windowStart) {
			seg.eligible++
			if !acc.lastSeen.Before(windowStart) {
				seg.retained++
			}
		}
	}

	order := []models.SegmentName{
		models.SegmentPremium,
		models.SegmentNew,
		models.SegmentReturning,
		models.SegmentInactive,
	}
	rows := make([]models.UserSegment, 0, len(order))
	for _, name := range order {
		seg := segments[name]

		var engagement, retention, ltv float64
		if seg.size > 0 {
			engagement = ClampPercent(float64(seg.activeNow) / float64(seg.size) * 100)
			avgRecords := float64(seg.totalRecords) / float64(seg.size)
			ltv = avgRecords * valuePerActionUSD * segmentValueMultiplier[name]
		}
		if seg.eligible > 0 {
			retention = ClampPercent(float64(seg.retained) / float64(seg.eligible) * 100)
		}

		rows = append(rows, models.UserSegment{
			Name:           name,
			Size:           seg.size,
			EngagementRate: engagement,
			RetentionRate:  retention,
			LifetimeValue:  ltv,
		})
	}
	return rows
}

// DailyActiveUsers computes a local per-day rollup over [start, end], used as
// the fallback when the backend's rollup endpoint is unavailable.
func (s *ActivityAnalyticsServiceImpl) DailyActiveUsers(activities []models.CanonicalActivity, start, end time.Time) []models.DailyActiveUsersBucket {
	if len(activities) == 0 {
		return []models.DailyActiveUsersBucket{}
	}

	firstSeen := make(map[string]string)
	sorted := make([]models.CanonicalActivity, len(activities))
	copy(sorted, activities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	for _, a := range sorted {
		if _, ok := firstSeen[a.UserID]; !ok {
			firstSeen[a.UserID] = a.Timestamp.UTC().Format("2006-01-02")
		}
	}

	days := make(map[string]map[string]bool)
	for _, a := range sorted {
		if !start.IsZero() && a.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && a.Timestamp.After(end) {
			continue
		}
		key := a.Timestamp.UTC().Format("2006-01-02")
		if days[key] == nil {
			days[key] = make(map[string]bool)
		}
		days[key][a.UserID] = true
	}

	buckets := make([]models.DailyActiveUsersBucket, 0, len(days))
	for date, active := range days {
		newUsers := 0
		for id := range active {
			if firstSeen[id] == date {
				newUsers++
			}
		}
		buckets = append(buckets, models.DailyActiveUsersBucket{
			Date:           date,
			ActiveUsers:    len(active),
			NewUsers:       newUsers,
			ReturningUsers: len(active) - newUsers,
		})
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	return buckets
}
