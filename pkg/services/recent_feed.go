package services

import (
	"sort"
	"sync"

	"pulseboard/pkg/models"
)

// RecentFeed keeps the most recent N activities for the live view. It dedupes
// by record id, so at-least-once delivery from the poller is safe.
type RecentFeed struct {
	mu       sync.RWMutex
	capacity int
	byID     map[string]models.CanonicalActivity
}

// NewRecentFeed creates a feed holding at most capacity items.
func NewRecentFeed(capacity int) *RecentFeed {
	if capacity < 1 {
		capacity = 100
	}
	return &RecentFeed{
		capacity: capacity,
		byID:     make(map[string]models.CanonicalActivity),
	}
}

// PublishActivities implements ActivitySink.
func (f *RecentFeed) PublishActivities(activities []models.CanonicalActivity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range activities {
		f.byID[a.ID] = a
	}
	if len(f.byID) <= f.capacity {
		return
	}

	// Drop the oldest entries beyond capacity.
	all := f.sortedLocked()
	for _, a := range all[f.capacity:] {
		delete(f.byID, a.ID)
	}
}

// Snapshot returns the feed's contents, most recent first.
func (f *RecentFeed) Snapshot(limit int) []models.CanonicalActivity {
	f.mu.RLock()
	defer f.mu.RUnlock()

	all := f.sortedLocked()
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (f *RecentFeed) sortedLocked() []models.CanonicalActivity {
	all := make([]models.CanonicalActivity, 0, len(f.byID))
	for _, a := range f.byID {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.After(all[j].Timestamp)
		}
		return all[i].ID > all[j].ID
	})
	return all
}
