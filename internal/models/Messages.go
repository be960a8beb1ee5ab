package models

import "time"

const (
	// TimestampLayout is the key format of the message file. It is fixed
	// width and zero padded, so string order matches chronological order.
	TimestampLayout = "2006-01-02 15:04:05.000000"

	// DisplayTimestampLayout is ISO-8601 with an explicit UTC offset.
	DisplayTimestampLayout = "2006-01-02T15:04:05.000000-07:00"

	FreshnessWindow = 300 * time.Second

	DefaultUsername = "Anonymous user"
	DefaultMessage  = "No message"
)

// Entry is a validated form post, and the value stored under its
// timestamp key in the message file.
type Entry struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// Message is a persisted entry together with its key.
type Message struct {
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	Message   string `json:"message"`
}

// DisplayMessage is what templates and the live feed receive.
type DisplayMessage struct {
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	IsNew     bool   `json:"is_new"`
}

// ParseTimestamp parses a storage key as a UTC time.
func ParseTimestamp(key string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, key, time.UTC)
}

// FormatTimestamp renders t in the storage key format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
