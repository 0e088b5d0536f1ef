package services

import (
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pulseboard/pkg/models"
)

// Normalizer maps heterogeneous raw log records into canonical activities.
// It never fails: every field-level parse problem degrades to a safe default.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewNormalizerWithClock creates a normalizer with an injected clock, for
// deterministic tests.
func NewNormalizerWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// featureLabels maps well-known action codes to human-friendly names. Codes
// outside the table fall back to a formatted version of the code itself.
var featureLabels = map[string]string{
	"login":               "Sign In",
	"logout":              "Sign Out",
	"password_change":     "Password Change",
	"password_reset":      "Password Reset",
	"profile_update":      "Profile Update",
	"settings_update":     "Settings Update",
	"notification_create": "Notification Composer",
	"notification_send":   "Notification Delivery",
	"survey_create":       "Survey Builder",
	"survey_submit":       "Survey Response",
	"report_export":       "Report Export",
	"user_create":         "User Creation",
	"user_update":         "User Management",
	"user_delete":         "User Removal",
	"ticket_create":       "Support Ticket",
	"ticket_reply":        "Support Reply",
}

// categoryKeywords drive keyword matching on action codes, checked in order so
// a code matching several buckets lands deterministically.
var categoryKeywords = []struct {
	category models.ActivityCategory
	keywords []string
}{
	{models.CategorySecurity, []string{"password", "auth", "permission", "role", "security", "token", "2fa"}},
	{models.CategoryConfiguration, []string{"settings", "config", "setup", "preference", "integration"}},
	{models.CategorySupport, []string{"ticket", "support", "help", "feedback", "survey"}},
	{models.CategoryAccount, []string{"login", "logout", "profile", "account", "user", "register", "signup"}},
}

// NormalizeAll maps every raw record, resolving display names against the
// given user directory.
func (n *Normalizer) NormalizeAll(raws []models.RawLogRecord, users map[string]models.User) []models.CanonicalActivity {
	activities := make([]models.CanonicalActivity, 0, len(raws))
	for _, raw := range raws {
		activities = append(activities, n.Normalize(raw, users))
	}
	return activities
}

// Normalize maps one raw record into a canonical activity. Deterministic for
// a given input except for the generated-id and guessed-timestamp fallbacks.
func (n *Normalizer) Normalize(raw models.RawLogRecord, users map[string]models.User) models.CanonicalActivity {
	id := rawString(raw, "id", "_id", "log_id")
	if id == "" {
		id = uuid.New().String()
	}

	userID := rawString(raw, "user_id", "userId", "uid", "user")
	actionCode := strings.ToLower(strings.TrimSpace(rawString(raw, "action", "action_code", "event", "event_type")))
	if actionCode == "" {
		actionCode = "unknown"
	}

	timestamp, guessed := n.parseTimestamp(raw)

	return models.CanonicalActivity{
		ID:               id,
		UserID:           userID,
		UserDisplayName:  n.displayName(raw, userID, users),
		ActionCode:       actionCode,
		FeatureLabel:     FeatureLabel(actionCode),
		Category:         Categorize(actionCode),
		Timestamp:        timestamp,
		TimestampGuessed: guessed,
		DeviceType:       DeviceTypeFromUserAgent(rawString(raw, "user_agent", "userAgent", "ua")),
		Status:           normalizeStatus(raw),
		SourceLocation:   sourceLocation(rawString(raw, "ip_address", "ip", "remote_addr")),
	}
}

func (n *Normalizer) displayName(raw models.RawLogRecord, userID string, users map[string]models.User) string {
	if u, ok := users[userID]; ok {
		return u.DisplayName()
	}
	inline := models.User{
		ID:       userID,
		Username: rawString(raw, "username"),
		Email:    rawString(raw, "email", "user_email"),
	}
	return inline.DisplayName()
}

// timestampLayouts are tried in order against string timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp returns a valid timestamp in every case; the flag reports
// that the source value was missing or unparseable and "now" was substituted.
func (n *Normalizer) parseTimestamp(raw models.RawLogRecord) (time.Time, bool) {
	for _, key := range []string{"timestamp", "created_at", "createdAt", "time", "date"} {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			for _, layout := range timestampLayouts {
				if ts, err := time.Parse(layout, t); err == nil {
					return ts, false
				}
			}
		case float64:
			// Epoch seconds, or milliseconds for values too large to be
			// plausible seconds.
			if t > 1e12 {
				return time.UnixMilli(int64(t)).UTC(), false
			}
			if t > 0 {
				return time.Unix(int64(t), 0).UTC(), false
			}
		case json.Number:
			if f, err := t.Float64(); err == nil && f > 0 {
				if f > 1e12 {
					return time.UnixMilli(int64(f)).UTC(), false
				}
				return time.Unix(int64(f), 0).UTC(), false
			}
		case time.Time:
			return t, false
		}
	}
	return n.now(), true
}

// FeatureLabel returns the human-friendly name for an action code.
func FeatureLabel(actionCode string) string {
	if label, ok := featureLabels[actionCode]; ok {
		return label
	}
	// snake/kebab case to title case
	parts := strings.FieldsFunc(actionCode, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, " ")
}

// Categorize buckets an action code by keyword matching; no match is "other".
func Categorize(actionCode string) models.ActivityCategory {
	code := strings.ToLower(actionCode)
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(code, kw) {
				return entry.category
			}
		}
	}
	return models.CategoryOther
}

// DeviceTypeFromUserAgent classifies a user-agent string by substring
// matching. Tablets are checked before phones because tablet agents usually
// also contain "mobile".
func DeviceTypeFromUserAgent(userAgent string) models.DeviceType {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return models.DeviceUnknown
	}
	switch {
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		return models.DeviceTablet
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return models.DeviceMobile
	case strings.Contains(ua, "windows") || strings.Contains(ua, "macintosh") ||
		strings.Contains(ua, "linux") || strings.Contains(ua, "mozilla"):
		return models.DeviceDesktop
	default:
		return models.DeviceUnknown
	}
}

func normalizeStatus(raw models.RawLogRecord) models.ActivityStatus {
	value := strings.ToLower(rawString(raw, "status", "severity", "outcome"))
	switch value {
	case "failed", "failure", "error", "critical", "denied":
		return models.StatusFailed
	case "pending", "in_progress", "queued":
		return models.StatusPending
	default:
		return models.StatusSuccess
	}
}

// sourceLocation derives a coarse location tag from an IP address. No real
// geolocation: private and loopback ranges are "Internal Network", everything
// else "External".
func sourceLocation(ip string) string {
	if ip == "" {
		return "Unknown"
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "Unknown"
	}
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return "Internal Network"
	}
	return "External"
}

// rawString returns the first present key of the raw record as a string.
func rawString(raw models.RawLogRecord, keys ...string) string {
	for _, key := range keys {
		v, ok := raw[key]
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
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}
