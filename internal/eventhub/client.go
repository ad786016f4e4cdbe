package eventhub

import "complaints/backend/internal/models"

// Client is one live subscriber of complaint events, e.g. a WebSocket
// connection of a dashboard.
type Client interface {
	// GetUserID returns the id of the authenticated user behind the client.
	GetUserID() string
	// Wants reports whether the event concerns this client.
	Wants(event models.ComplaintEvent) bool

	// GetSendChannel returns the channel the hub delivers events on.
	GetSendChannel() chan<- models.ComplaintEvent

	// Run starts the client's pumps.
	Run()
	// Close stops the client. The hub calls it once, on unregister.
	Close()
}

// Audience is who a client acts as. It decides which events reach it:
// admins see every event, employees those of their entity, citizens those
// of their own complaints.
type Audience struct {
	UserID   string
	Role     models.UserRole
	EntityID string
}

// Wants implements the visibility rule for the audience.
func (a Audience) Wants(event models.ComplaintEvent) bool {
	switch a.Role {
	case models.RoleAdmin:
		return true
	case models.RoleEmployee:
		return a.EntityID != "" && event.EntityID == a.EntityID
	default:
		return event.UserID == a.UserID
	}
}
