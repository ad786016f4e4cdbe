package models

import "time"

// EventType names a domain event emitted after a lifecycle commit.
type EventType string

const (
	EventComplaintCreated       EventType = "complaint.created"
	EventComplaintStatusChanged EventType = "complaint.status_changed"
)

// ComplaintEvent is published on the event bus and pushed to live subscribers.
type ComplaintEvent struct {
	Type           EventType       `json:"type"`
	ComplaintID    string          `json:"complaint_id"`
	TrackingNumber string          `json:"tracking_number"`
	UserID         string          `json:"user_id"`
	EntityID       string          `json:"entity_id"`
	OldStatus      ComplaintStatus `json:"old_status,omitempty"`
	NewStatus      ComplaintStatus `json:"new_status"`
	Version        int             `json:"version"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// NotificationKind selects the message template of a notification.
type NotificationKind string

const (
	NotificationComplaintCreated NotificationKind = "complaint_created"
	NotificationStatusChanged    NotificationKind = "status_changed"
	NotificationInfoRequested    NotificationKind = "info_requested"
)

// Notification is the payload handed to the notification sender.
type Notification struct {
	Kind           NotificationKind
	TrackingNumber string
	OldStatus      ComplaintStatus
	NewStatus      ComplaintStatus
	Message        string
}
