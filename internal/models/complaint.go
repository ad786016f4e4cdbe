package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ComplaintStatus is the workflow state of a complaint.
type ComplaintStatus string

const (
	StatusNew        ComplaintStatus = "new"
	StatusInProgress ComplaintStatus = "in_progress"
	StatusFinished   ComplaintStatus = "finished"
	StatusDeclined   ComplaintStatus = "declined"
)

// Valid reports whether s is one of the known statuses.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusFinished, StatusDeclined:
		return true
	}
	return false
}

// IsTerminal returns true for finished and declined. A declined complaint can
// still be revived by its owner.
func (s ComplaintStatus) IsTerminal() bool {
	return s == StatusFinished || s == StatusDeclined
}

// Complaint is a citizen's complaint against an entity.
// The embedded lock fields implement a time-boxed claim by a single employee;
// Version is the optimistic-concurrency counter.
type Complaint struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	TrackingNumber string `gorm:"uniqueIndex;not null" json:"tracking_number"`
	UserID         string `gorm:"type:uuid;not null;index" json:"user_id"`
	EntityID       string `gorm:"type:uuid;not null;index" json:"entity_id"`

	ComplaintKind string `gorm:"type:text;not null" json:"complaint_kind"`
	Description   string `gorm:"type:text;not null" json:"description"`
	Location      string `gorm:"type:text;not null" json:"location"`

	Status ComplaintStatus `gorm:"type:varchar(32);not null;default:'new';index" json:"status"`

	AssignedTo    *string    `gorm:"type:uuid;index" json:"assigned_to"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	LockExpiresAt *time.Time `gorm:"index" json:"lock_expires_at,omitempty"`

	InfoRequested      bool       `gorm:"not null;default:false" json:"info_requested"`
	InfoRequestMessage string     `gorm:"type:text" json:"info_request_message,omitempty"`
	InfoRequestedAt    *time.Time `json:"info_requested_at,omitempty"`

	Version int `gorm:"not null;default:1" json:"version"`

	AdminNotes string     `gorm:"type:text" json:"admin_notes,omitempty"`
	Resolution string     `gorm:"type:text" json:"resolution,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at"`
	ResolvedAt *time.Time `json:"resolved_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Attachments []ComplaintAttachment `gorm:"foreignKey:ComplaintID;constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// BeforeCreate fills in the id and the initial workflow values.
func (c *Complaint) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusNew
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return
}

// IsLocked reports whether a claim is active at now: locked_at is set and the
// expiry is either absent or still in the future.
func (c *Complaint) IsLocked(now time.Time) bool {
	if c.LockedAt == nil {
		return false
	}
	if c.LockExpiresAt != nil && !c.LockExpiresAt.After(now) {
		return false
	}
	return true
}

// IsAssignedTo reports whether employeeID holds the assignment.
func (c *Complaint) IsAssignedTo(employeeID string) bool {
	return c.AssignedTo != nil && *c.AssignedTo == employeeID
}

// LockedByOther reports whether an active claim is held by someone other than employeeID.
func (c *Complaint) LockedByOther(employeeID string, now time.Time) bool {
	return c.IsLocked(now) && !c.IsAssignedTo(employeeID)
}

// Lock claims the complaint for employeeID for d, starting at now.
func (c *Complaint) Lock(employeeID string, d time.Duration, now time.Time) {
	lockedAt := now
	expiresAt := now.Add(d)
	assignee := employeeID

	c.LockedAt = &lockedAt
	c.LockExpiresAt = &expiresAt
	c.AssignedTo = &assignee
}

// Unlock clears the lock timestamps. AssignedTo is left untouched; callers
// that detach the employee must clear it themselves.
func (c *Complaint) Unlock() {
	c.LockedAt = nil
	c.LockExpiresAt = nil
}

// CheckAndUnlockIfExpired releases a stored lock whose expiry has passed and
// reports whether it did so.
func (c *Complaint) CheckAndUnlockIfExpired(now time.Time) bool {
	if c.LockedAt == nil || c.LockExpiresAt == nil {
		return false
	}
	if c.LockExpiresAt.After(now) {
		return false
	}
	c.Unlock()
	return true
}

// RequestInfo records a pending request for more information from the citizen.
func (c *Complaint) RequestInfo(message string, now time.Time) {
	requestedAt := now
	c.InfoRequested = true
	c.InfoRequestMessage = message
	c.InfoRequestedAt = &requestedAt
}

// ClearInfoRequest drops any pending info request.
func (c *Complaint) ClearInfoRequest() {
	c.InfoRequested = false
	c.InfoRequestMessage = ""
	c.InfoRequestedAt = nil
}

// IncrementVersion bumps the optimistic-concurrency counter.
func (c *Complaint) IncrementVersion() {
	c.Version++
}

// CountAttachments returns how many loaded attachments are of the given type.
func (c *Complaint) CountAttachments(fileType FileType) int {
	n := 0
	for _, a := range c.Attachments {
		if a.FileType == fileType {
			n++
		}
	}
	return n
}
