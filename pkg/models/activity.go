package models

import "time"

// RawLogRecord is one backend-recorded user action as the log backend returns
// it. The backend does not guarantee a schema: fields may be absent, renamed
// (timestamp vs created_at) or carry unexpected types, so everything here is
// optional and nothing downstream of the normalizer may touch it.
type RawLogRecord map[string]interface{}

// DeviceType is the coarse device class inferred from a user-agent string.
type DeviceType string

const (
	DeviceMobile  DeviceType = "Mobile"
	DeviceTablet  DeviceType = "Tablet"
	DeviceDesktop DeviceType = "Desktop"
	DeviceUnknown DeviceType = "Unknown"
)

// ActivityCategory buckets an action code by keyword matching.
type ActivityCategory string

const (
	CategoryConfiguration ActivityCategory = "configuration"
	CategorySecurity      ActivityCategory = "security"
	CategorySupport       ActivityCategory = "support"
	CategoryAccount       ActivityCategory = "account"
	CategoryOther         ActivityCategory = "other"
)

// ActivityStatus is the outcome of a logged action.
type ActivityStatus string

const (
	StatusSuccess ActivityStatus = "success"
	StatusFailed  ActivityStatus = "failed"
	StatusPending ActivityStatus = "pending"
)

// CanonicalActivity is the normalized, type-safe form of a raw log record.
// Every aggregator consumes only this type; it is created fresh on each
// fetch-and-normalize cycle and never persisted.
type CanonicalActivity struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	UserDisplayName  string           `json:"user_display_name"`
	ActionCode       string           `json:"action_code"`
	FeatureLabel     string           `json:"feature_label"`
	Category         ActivityCategory `json:"category"`
	Timestamp        time.Time        `json:"timestamp"`
	TimestampGuessed bool             `json:"timestamp_guessed,omitempty"`
	DeviceType       DeviceType       `json:"device_type"`
	Status           ActivityStatus   `json:"status"`
	SourceLocation   string           `json:"source_location"`
}

// ActivityFilter mirrors the query parameters of the backend's filtered log
// endpoint.
type ActivityFilter struct {
	UserID       string
	Action       string
	ResourceType string
	Severity     string
	Status       string
	StartDate    time.Time
	EndDate      time.Time
	Limit        int
	Skip         int
}
