package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pulseboard/pkg/logging"
	"pulseboard/pkg/metrics"
	"pulseboard/pkg/models"
)

// SnapshotServiceImpl implements SnapshotService. Concurrent refreshes are
// ordered by a generation counter: a slow pass finishing after a newer one
// already installed its snapshot is discarded instead of overwriting it.
type SnapshotServiceImpl struct {
	fetcher    FetchService
	normalizer *Normalizer
	analytics  ActivityAnalyticsService
	logger     *logging.Logger
	metrics    *metrics.Metrics

	generation atomic.Uint64

	mu         sync.RWMutex
	current    *models.AnalyticsSnapshot
	activities []models.CanonicalActivity
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(fetcher FetchService, normalizer *Normalizer, analytics ActivityAnalyticsService, logger *logging.Logger, m *metrics.Metrics) SnapshotService {
	return &SnapshotServiceImpl{
		fetcher:    fetcher,
		normalizer: normalizer,
		analytics:  analytics,
		logger:     logger,
		metrics:    m,
	}
}

// Refresh runs one full fetch-normalize-aggregate pass.
func (s *SnapshotServiceImpl) Refresh(ctx context.Context) (*models.AnalyticsSnapshot, error) {
	generation := s.generation.Add(1)
	start := time.Now()

	result, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh snapshot: %w", err)
	}

	userIndex := make(map[string]models.User, len(result.Users))
	for _, u := range result.Users {
		userIndex[u.ID] = u
	}
	activities := s.normalizer.NormalizeAll(result.Records, userIndex)

	snapshot := &models.AnalyticsSnapshot{
		Generation:   generation,
		GeneratedAt:  time.Now(),
		RecordCount:  len(activities),
		UserCount:    len(result.Users),
		Engagement:   s.analytics.EngagementMetrics(activities),
		FeatureUsage: s.analytics.FeatureUsage(activities),
		Sessions:     s.analytics.SessionTimeline(activities),
		Journey:      s.analytics.UserJourney(activities),
		Segments:     s.analytics.UserSegments(activities),
	}

	if s.metrics != nil {
		s.metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.Generation > generation {
		if s.metrics != nil {
			s.metrics.RefreshesDiscarded.Inc()
		}
		s.logger.Warn("discarding stale refresh result",
			zap.Uint64("generation", generation),
			zap.Uint64("current_generation", s.current.Generation),
		)
		return s.current, nil
	}

	s.current = snapshot
	s.activities = activities
	s.logger.Info("installed analytics snapshot",
		zap.Uint64("generation", generation),
		zap.Int("records", len(activities)),
		zap.Int("users", len(result.Users)),
		zap.Duration("took", time.Since(start)),
	)
	return snapshot, nil
}

// Current returns the latest installed snapshot.
func (s *SnapshotServiceImpl) Current() (*models.AnalyticsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	return s.current, true
}

// Activities returns the normalized records behind the current snapshot.
func (s *SnapshotServiceImpl) Activities() []models.CanonicalActivity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CanonicalActivity, len(s.activities))
	copy(out, s.activities)
	return out
}
