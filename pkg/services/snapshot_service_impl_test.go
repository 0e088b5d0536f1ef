package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"pulseboard/pkg/logging"
	"pulseboard/pkg/metrics"
	"pulseboard/pkg/models"
)

// gatedFetcher blocks FetchAll until released, so tests can order overlapping
// refreshes deterministically.
type gatedFetcher struct {
	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
	result  *FetchResult
}

func newGatedFetcher(result *FetchResult) *gatedFetcher {
	return &gatedFetcher{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
		result:  result,
	}
}

func (f *gatedFetcher) FetchAll(ctx context.Context) (*FetchResult, error) {
	f.started <- struct{}{}
	<-f.release
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, nil
}

// instantFetcher returns immediately.
type instantFetcher struct {
	result *FetchResult
}

func (f *instantFetcher) FetchAll(ctx context.Context) (*FetchResult, error) {
	return f.result, nil
}

func fetchResult(users int, recordsPerUser int) *FetchResult {
	result := &FetchResult{}
	for u := 0; u < users; u++ {
		id := string(rune('a' + u))
		result.Users = append(result.Users, models.User{ID: id})
		for i := 0; i < recordsPerUser; i++ {
			result.Records = append(result.Records, models.RawLogRecord{
				"id":        id + "-" + string(rune('0'+i)),
				"user_id":   id,
				"action":    "login",
				"timestamp": time.Now().Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
			})
		}
	}
	return result
}

func newSnapshotServiceForTest(fetcher FetchService) SnapshotService {
	return NewSnapshotService(
		fetcher,
		NewNormalizer(),
		NewActivityAnalyticsService(7),
		logging.NewNop(),
		metrics.NewUnregistered(),
	)
}

// TestRefreshInstallsSnapshot verifies a refresh produces a queryable snapshot
func TestRefreshInstallsSnapshot(t *testing.T) {
	s := newSnapshotServiceForTest(&instantFetcher{result: fetchResult(2, 3)})

	if _, ok := s.Current(); ok {
		t.Fatal("expected no snapshot before first refresh")
	}

	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if snap.RecordCount != 6 {
		t.Errorf("expected 6 records, got %d", snap.RecordCount)
	}
	if snap.UserCount != 2 {
		t.Errorf("expected 2 users, got %d", snap.UserCount)
	}

	current, ok := s.Current()
	if !ok {
		t.Fatal("expected a current snapshot after refresh")
	}
	if current.Generation != snap.Generation {
		t.Errorf("current snapshot generation mismatch")
	}
	if len(s.Activities()) != 6 {
		t.Errorf("expected 6 normalized activities, got %d", len(s.Activities()))
	}
}

// TestStaleRefreshDiscarded verifies a slow refresh cannot overwrite the
// result of a newer one that finished first
func TestStaleRefreshDiscarded(t *testing.T) {
	fetcher := newGatedFetcher(fetchResult(1, 1))
	s := newSnapshotServiceForTest(fetcher)

	type outcome struct {
		snap *models.AnalyticsSnapshot
		err  error
	}

	// Start the slow refresh (generation 1) and wait for it to be in flight.
	slowDone := make(chan outcome, 1)
	go func() {
		snap, err := s.Refresh(context.Background())
		slowDone <- outcome{snap, err}
	}()
	<-fetcher.started

	// Start the second refresh (generation 2) and wait for it too.
	fastDone := make(chan outcome, 1)
	go func() {
		snap, err := s.Refresh(context.Background())
		fastDone <- outcome{snap, err}
	}()
	<-fetcher.started

	// Release both; whichever completes second must not downgrade the
	// installed snapshot.
	close(fetcher.release)

	first := <-slowDone
	second := <-fastDone
	if first.err != nil || second.err != nil {
		t.Fatalf("refresh failed: %v / %v", first.err, second.err)
	}

	current, ok := s.Current()
	if !ok {
		t.Fatal("expected a current snapshot")
	}
	if current.Generation != 2 {
		t.Errorf("expected generation 2 installed, got %d", current.Generation)
	}
	if first.snap.Generation > current.Generation || second.snap.Generation > current.Generation {
		t.Errorf("a refresh returned a newer generation than the installed one")
	}
}
