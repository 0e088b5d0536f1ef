// Package backend is the HTTP client for the activity-log backend. It is the
// only place that talks to the wire; everything past it works on typed models.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "pulseboard/pkg/errors"
	"pulseboard/pkg/models"
)

// Client calls the log backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// LogPage is one page of raw activity records plus the backend's total count
// when it reported one (zero otherwise).
type LogPage struct {
	Records []models.RawLogRecord
	Total   int
}

// RecentQuery selects records for the live feed. Zero values are omitted from
// the request.
type RecentQuery struct {
	Limit  int
	Since  time.Time
	LastID string
	UserID string
}

// NewClient creates a backend client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// envelope is the backend's standard list response. Endpoints occasionally
// return a bare JSON array instead; decodeList accepts both.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Skip    int             `json:"skip"`
}

// ListUsers retrieves the user directory.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	body, err := c.get(ctx, "/users", nil)
	if err != nil {
		return nil, err
	}

	rows, _, err := decodeList(body)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(rows))
	for _, row := range rows {
		u := models.User{
			ID:       stringField(row, "id", "_id", "user_id"),
			Username: stringField(row, "username"),
			Name:     stringField(row, "name", "full_name"),
			Email:    stringField(row, "email"),
			Role:     stringField(row, "role"),
			Status:   stringField(row, "status"),
		}
		if u.ID == "" {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// UserActivityLogs retrieves one page of a user's activity logs.
func (c *Client) UserActivityLogs(ctx context.Context, userID string, limit, skip int) (LogPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("skip", strconv.Itoa(skip))

	body, err := c.get(ctx, "/users/activity-logs/user/"+url.PathEscape(userID), params)
	if err != nil {
		return LogPage{}, err
	}
	return decodeLogPage(body)
}

// RecentLogs retrieves records newer than the query's watermark.
func (c *Client) RecentLogs(ctx context.Context, q RecentQuery) ([]models.RawLogRecord, error) {
	params := url.Values{}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if !q.Since.IsZero() {
		params.Set("since", q.Since.UTC().Format(time.RFC3339))
	}
	if q.LastID != "" {
		params.Set("last_id", q.LastID)
	}
	if q.UserID != "" {
		params.Set("user_id", q.UserID)
	}

	body, err := c.get(ctx, "/users/activity-logs/recent", params)
	if err != nil {
		return nil, err
	}

	page, err := decodeLogPage(body)
	if err != nil {
		return nil, err
	}
	return page.Records, nil
}

// FilteredLogs retrieves records matching the filter.
func (c *Client) FilteredLogs(ctx context.Context, f models.ActivityFilter) (LogPage, error) {
	params := url.Values{}
	if f.UserID != "" {
		params.Set("user_id", f.UserID)
	}
	if f.Action != "" {
		params.Set("action", f.Action)
	}
	if f.ResourceType != "" {
		params.Set("resource_type", f.ResourceType)
	}
	if f.Severity != "" {
		params.Set("severity", f.Severity)
	}
	if f.Status != "" {
		params.Set("status", f.Status)
	}
	if !f.StartDate.IsZero() {
		params.Set("start_date", f.StartDate.UTC().Format(time.RFC3339))
	}
	if !f.EndDate.IsZero() {
		params.Set("end_date", f.EndDate.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Skip > 0 {
		params.Set("skip", strconv.Itoa(f.Skip))
	}

	body, err := c.get(ctx, "/users/activity-logs", params)
	if err != nil {
		return LogPage{}, err
	}
	return decodeLogPage(body)
}

// DailyActiveUsers retrieves the backend's per-day active-user rollup.
func (c *Client) DailyActiveUsers(ctx context.Context, start, end time.Time, groupBy string) ([]models.DailyActiveUsersBucket, error) {
	params := url.Values{}
	if !start.IsZero() {
		params.Set("start_date", start.UTC().Format("2006-01-02"))
	}
	if !end.IsZero() {
		params.Set("end_date", end.UTC().Format("2006-01-02"))
	}
	if groupBy != "" {
		params.Set("group_by", groupBy)
	}

	body, err := c.get(ctx, "/users/activity-logs/daily-active-users", params)
	if err != nil {
		return nil, err
	}

	rows, _, err := decodeList(body)
	if err != nil {
		return nil, err
	}

	buckets := make([]models.DailyActiveUsersBucket, 0, len(rows))
	for _, row := range rows {
		buckets = append(buckets, models.DailyActiveUsersBucket{
			Date:           stringField(row, "date", "day"),
			ActiveUsers:    intField(row, "active_users", "active"),
			NewUsers:       intField(row, "new_users", "new"),
			ReturningUsers: intField(row, "returning_users", "returning"),
		})
	}
	return buckets, nil
}

// get issues the request and maps failures onto the error taxonomy: transport
// errors when no response arrived, backend-status errors for non-2xx replies.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperrors.InternalErrorf("BUILD_REQUEST", "failed to build request for %s", path).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.TransportErrorf("BACKEND_UNREACHABLE", "no response from log backend").Wrap(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.TransportErrorf("BACKEND_READ", "failed to read backend response").Wrap(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := extractErrorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("backend returned status %d", resp.StatusCode)
		}
		return nil, apperrors.BackendStatusErrorf(resp.StatusCode, "BACKEND_STATUS", "%s", msg)
	}

	return body, nil
}

// extractErrorMessage pulls a human message out of an error body when the
// backend sent one.
func extractErrorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

// decodeList accepts either the standard envelope or a bare JSON array and
// returns the rows plus the reported total.
func decodeList(body []byte) ([]map[string]interface{}, int, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Data != nil {
		var rows []map[string]interface{}
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			return nil, 0, apperrors.DataShapeErrorf("BAD_ENVELOPE", "envelope data is not a record list").Wrap(err)
		}
		total := env.Total
		if total == 0 {
			total = len(rows)
		}
		return rows, total, nil
	}

	var rows []map[string]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, 0, apperrors.DataShapeErrorf("BAD_SHAPE", "response is neither an envelope nor a record list").Wrap(err)
	}
	return rows, len(rows), nil
}

func decodeLogPage(body []byte) (LogPage, error) {
	rows, total, err := decodeList(body)
	if err != nil {
		return LogPage{}, err
	}

	records := make([]models.RawLogRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.RawLogRecord(row))
	}
	return LogPage{Records: records, Total: total}, nil
}

// stringField returns the first present key rendered as a string.
func stringField(row map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case json.Number:
			return t.String()
		}
	}
	return ""
}

// intField returns the first present key rendered as an int.
func intField(row map[string]interface{}, keys ...string) int {
	for _, key := range keys {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return int(t)
		case string:
			if n, err := strconv.Atoi(t); err == nil {
				return n
			}
		case json.Number:
			if n, err := t.Int64(); err == nil {
				return int(n)
			}
		}
	}
	return 0
}
