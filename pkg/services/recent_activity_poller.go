package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"pulseboard/pkg/backend"
	"pulseboard/pkg/logging"
	"pulseboard/pkg/metrics"
)

// PollerState is the poller's scheduling state.
type PollerState string

const (
	PollerIdle     PollerState = "idle"
	PollerFetching PollerState = "fetching"
)

// RecentActivityPoller periodically fetches records newer than its watermark
// and publishes them to the configured sinks. Delivery is at-least-once:
// overlapping ticks may hand subscribers duplicates, which the feed tolerates
// because it only keeps the most recent items by timestamp.
type RecentActivityPoller struct {
	client     RecentLogClient
	normalizer *Normalizer
	sinks      []ActivitySink
	logger     *logging.Logger
	metrics    *metrics.Metrics

	interval  time.Duration
	batchSize int
	now       func() time.Time

	mu         sync.Mutex
	state      PollerState
	lastSeenID string
	lastSeenAt time.Time
	stop       chan struct{}
	running    bool
}

// NewRecentActivityPoller creates a new poller
func NewRecentActivityPoller(client RecentLogClient, normalizer *Normalizer, logger *logging.Logger, m *metrics.Metrics, interval time.Duration, batchSize int, sinks ...ActivitySink) *RecentActivityPoller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &RecentActivityPoller{
		client:     client,
		normalizer: normalizer,
		sinks:      sinks,
		logger:     logger,
		metrics:    m,
		interval:   interval,
		batchSize:  batchSize,
		now:        time.Now,
		state:      PollerIdle,
	}
}

// State returns the poller's current state.
func (p *RecentActivityPoller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Watermark returns the last-seen record id and timestamp.
func (p *RecentActivityPoller) Watermark() (string, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeenID, p.lastSeenAt
}

// Start begins scheduling ticks. It is a no-op when already running.
func (p *RecentActivityPoller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	p.logger.Info("recent-activity poller started", zap.Duration("interval", p.interval))

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.Stop()
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := p.PollOnce(ctx); err != nil {
					p.logger.Warn("poll tick failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop stops scheduling further ticks. In-flight work is not canceled; its
// result is still delivered.
func (p *RecentActivityPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	close(p.stop)
	p.logger.Info("recent-activity poller stopped")
}

// PollOnce runs a single tick: fetch records newer than the watermark,
// normalize and publish them. The watermark only advances on success.
func (p *RecentActivityPoller) PollOnce(ctx context.Context) error {
	p.mu.Lock()
	p.state = PollerFetching
	query := backend.RecentQuery{
		Limit:  p.batchSize,
		LastID: p.lastSeenID,
		Since:  p.lastSeenAt,
	}
	p.mu.Unlock()

	// No watermark yet: start from the last 24 hours.
	if query.Since.IsZero() {
		query.Since = p.now().Add(-24 * time.Hour)
	}

	if p.metrics != nil {
		p.metrics.PollTicks.Inc()
	}

	raws, err := p.client.RecentLogs(ctx, query)
	if err != nil {
		if p.metrics != nil {
			p.metrics.PollFailures.Inc()
		}
		p.mu.Lock()
		p.state = PollerIdle
		p.mu.Unlock()
		return fmt.Errorf("failed to poll recent activity: %w", err)
	}

	activities := p.normalizer.NormalizeAll(raws, nil)
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].Timestamp.Before(activities[j].Timestamp)
	})

	p.mu.Lock()
	// Advance the watermark to the newest record with a trustworthy timestamp.
	// Guessed timestamps are "now" and would jump Since past records the
	// backend has not returned yet.
	for i := len(activities) - 1; i >= 0; i-- {
		if activities[i].TimestampGuessed {
			continue
		}
		p.lastSeenID = activities[i].ID
		p.lastSeenAt = activities[i].Timestamp
		break
	}
	p.state = PollerIdle
	p.mu.Unlock()

	if len(activities) > 0 {
		for _, sink := range p.sinks {
			sink.PublishActivities(activities)
		}
		p.logger.Debug("published recent activities", zap.Int("count", len(activities)))
	}
	return nil
}
