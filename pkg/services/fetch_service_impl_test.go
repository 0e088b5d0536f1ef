package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"pulseboard/pkg/backend"
	"pulseboard/pkg/logging"
	"pulseboard/pkg/metrics"
	"pulseboard/pkg/models"
)

// mockLogBackend implements DirectoryClient and UserLogClient for fetch tests
type mockLogBackend struct {
	mu          sync.Mutex
	users       []models.User
	usersErr    error
	records     map[string][]models.RawLogRecord
	failingUser string
	pageCalls   int
}

func (m *mockLogBackend) ListUsers(ctx context.Context) ([]models.User, error) {
	if m.usersErr != nil {
		return nil, m.usersErr
	}
	return m.users, nil
}

func (m *mockLogBackend) UserActivityLogs(ctx context.Context, userID string, limit, skip int) (backend.LogPage, error) {
	m.mu.Lock()
	m.pageCalls++
	m.mu.Unlock()

	if userID == m.failingUser {
		return backend.LogPage{}, fmt.Errorf("backend exploded for %s", userID)
	}

	all := m.records[userID]
	if skip >= len(all) {
		return backend.LogPage{Total: len(all)}, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return backend.LogPage{Records: all[skip:end], Total: len(all)}, nil
}

func recordsFor(userID string, n int) []models.RawLogRecord {
	records := make([]models.RawLogRecord, n)
	for i := range records {
		records[i] = models.RawLogRecord{
			"id":      fmt.Sprintf("%s-%d", userID, i),
			"user_id": userID,
			"action":  "login",
		}
	}
	return records
}

// TestFetchAllMergesUsers verifies records from all users are merged
func TestFetchAllMergesUsers(t *testing.T) {
	mock := &mockLogBackend{
		users: []models.User{{ID: "u1"}, {ID: "u2"}},
		records: map[string][]models.RawLogRecord{
			"u1": recordsFor("u1", 3),
			"u2": recordsFor("u2", 2),
		},
	}
	s := NewFetchService(mock, mock, logging.NewNop(), metrics.NewUnregistered(), 1000, 500, 4)

	result, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(result.Records) != 5 {
		t.Errorf("expected 5 records, got %d", len(result.Records))
	}
	if result.FailedUsers != 0 {
		t.Errorf("expected no failed users, got %d", result.FailedUsers)
	}
}

// TestFetchAllPaginates verifies per-user pagination walks all pages
func TestFetchAllPaginates(t *testing.T) {
	mock := &mockLogBackend{
		users:   []models.User{{ID: "u1"}},
		records: map[string][]models.RawLogRecord{"u1": recordsFor("u1", 25)},
	}
	s := NewFetchService(mock, mock, logging.NewNop(), metrics.NewUnregistered(), 1000, 10, 2)

	result, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(result.Records) != 25 {
		t.Errorf("expected 25 records, got %d", len(result.Records))
	}
	if mock.pageCalls < 3 {
		t.Errorf("expected at least 3 page calls, got %d", mock.pageCalls)
	}
}

// TestFetchAllToleratesUserFailure verifies one failing user does not abort
// the batch
func TestFetchAllToleratesUserFailure(t *testing.T) {
	mock := &mockLogBackend{
		users: []models.User{{ID: "u1"}, {ID: "broken"}, {ID: "u3"}},
		records: map[string][]models.RawLogRecord{
			"u1": recordsFor("u1", 2),
			"u3": recordsFor("u3", 2),
		},
		failingUser: "broken",
	}
	s := NewFetchService(mock, mock, logging.NewNop(), metrics.NewUnregistered(), 1000, 500, 4)

	result, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll must not fail on a per-user error: %v", err)
	}
	if len(result.Records) != 4 {
		t.Errorf("expected 4 records from healthy users, got %d", len(result.Records))
	}
	if result.FailedUsers != 1 {
		t.Errorf("expected 1 failed user, got %d", result.FailedUsers)
	}
}

// TestFetchAllDirectoryFailure verifies an unreachable directory fails the
// whole batch
func TestFetchAllDirectoryFailure(t *testing.T) {
	mock := &mockLogBackend{usersErr: fmt.Errorf("directory down")}
	s := NewFetchService(mock, mock, logging.NewNop(), metrics.NewUnregistered(), 1000, 500, 4)

	if _, err := s.FetchAll(context.Background()); err == nil {
		t.Fatal("expected error when user directory is unreachable")
	}
}

// TestFetchAllRespectsCap verifies the global record cap
func TestFetchAllRespectsCap(t *testing.T) {
	mock := &mockLogBackend{
		users:   []models.User{{ID: "u1"}},
		records: map[string][]models.RawLogRecord{"u1": recordsFor("u1", 500)},
	}
	s := NewFetchService(mock, mock, logging.NewNop(), metrics.NewUnregistered(), 100, 50, 2)

	result, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(result.Records) > 100 {
		t.Errorf("cap exceeded: got %d records", len(result.Records))
	}
}

// TestFetchAllEmptyDirectory verifies zero users yields an empty result
func TestFetchAllEmptyDirectory(t *testing.T) {
	mock := &mockLogBackend{}
	s := NewFetchService(mock, mock, logging.NewNop(), metrics.NewUnregistered(), 1000, 500, 4)

	result, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(result.Records) != 0 {
		t.Errorf("expected no records, got %d", len(result.Records))
	}
}
