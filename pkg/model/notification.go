package model

import "time"

const (
	NotificationNewListing  = "new-listing"
	NotificationReservation = "reservation"
	NotificationCompleted   = "completed"
)

// Notification is never persisted; it is pushed at most once per live handle.
type Notification struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
