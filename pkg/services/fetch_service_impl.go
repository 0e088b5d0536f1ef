package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"pulseboard/pkg/logging"
	"pulseboard/pkg/metrics"
	"pulseboard/pkg/models"
)

// FetchServiceImpl implements FetchService against the log backend.
type FetchServiceImpl struct {
	directory DirectoryClient
	logs      UserLogClient
	logger    *logging.Logger
	metrics   *metrics.Metrics

	maxRecords int
	pageSize   int
	parallel   int
}

// NewFetchService creates a new fetch service
func NewFetchService(directory DirectoryClient, logs UserLogClient, logger *logging.Logger, m *metrics.Metrics, maxRecords, pageSize, parallel int) FetchService {
	if maxRecords < 1 {
		maxRecords = 10000
	}
	if pageSize < 1 {
		pageSize = 500
	}
	if parallel < 1 {
		parallel = 10
	}
	return &FetchServiceImpl{
		directory:  directory,
		logs:       logs,
		logger:     logger,
		metrics:    m,
		maxRecords: maxRecords,
		pageSize:   pageSize,
		parallel:   parallel,
	}
}

// FetchAll retrieves all activity records for all known users. Per-user
// failures are logged and skipped; only an unreachable user directory fails
// the whole batch.
func (s *FetchServiceImpl) FetchAll(ctx context.Context) (*FetchResult, error) {
	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := &FetchResult{Users: users}
	if len(users) == 0 {
		return result, nil
	}

	perUser := s.maxRecords / len(users)
	if perUser < s.pageSize {
		perUser = s.pageSize
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.parallel)
	)

	for _, user := range users {
		wg.Add(1)
		go func(u models.User) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			records, err := s.fetchUser(ctx, u.ID, perUser)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailedUsers++
				if s.metrics != nil {
					s.metrics.FetchUserFailures.Inc()
				}
				s.logger.Warn("skipping user after failed log fetch",
					zap.String("user_id", u.ID),
					zap.Error(err),
				)
				return
			}
			if remaining := s.maxRecords - len(result.Records); len(records) > remaining {
				records = records[:remaining]
			}
			result.Records = append(result.Records, records...)
		}(user)
	}
	wg.Wait()

	if s.metrics != nil {
		s.metrics.FetchRecords.Add(float64(len(result.Records)))
	}
	s.logger.Info("fetched activity logs",
		zap.Int("users", len(users)),
		zap.Int("failed_users", result.FailedUsers),
		zap.Int("records", len(result.Records)),
	)

	return result, nil
}

// fetchUser paginates one user's logs until the backend is exhausted or the
// per-user cap is reached.
func (s *FetchServiceImpl) fetchUser(ctx context.Context, userID string, maxRecords int) ([]models.RawLogRecord, error) {
	var records []models.RawLogRecord
	skip := 0

	for len(records) < maxRecords {
		limit := s.pageSize
		if remaining := maxRecords - len(records); remaining < limit {
			limit = remaining
		}

		page, err := s.logs.UserActivityLogs(ctx, userID, limit, skip)
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.FetchPages.Inc()
		}

		records = append(records, page.Records...)
		skip += len(page.Records)

		// A short page means the backend has no more records.
		if len(page.Records) < limit {
			break
		}
		if page.Total > 0 && skip >= page.Total {
			break
		}
	}

	return records, nil
}
