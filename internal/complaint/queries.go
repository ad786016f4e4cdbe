package complaint

import (
	"complaints/backend/internal/config"
	"complaints/backend/internal/models"
	"complaints/backend/internal/storage"
	"context"
	"log"
)

// Page selects a slice of a listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = config.DefaultPageSize
	}
	if p.Size > config.MaxPageSize {
		p.Size = config.MaxPageSize
	}
	return p
}

func (p Page) apply(f storage.ComplaintFilter) storage.ComplaintFilter {
	p = p.normalize()
	f.Limit = p.Size
	f.Offset = (p.Number - 1) * p.Size
	return f
}

// GetByTrackingNumber loads a complaint and releases its lock if it has
// expired. The release does not bump the version.
func (s *Service) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Complaint, error) {
	complaint, err := s.Storage.FindComplaintByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, infrastructureError("failed to load complaint", err)
	}
	if complaint == nil {
		return nil, notFoundError("tracking_number", "Complaint not found.")
	}

	now := s.now()
	if complaint.CheckAndUnlockIfExpired(now) {
		released, err := s.Storage.ReleaseExpiredLock(ctx, complaint.ID, now)
		if err != nil {
			// The caller still sees the complaint as unlocked; the sweeper
			// will persist the release.
			log.Printf("WARN: Failed to release expired lock of %s: %v", trackingNumber, err)
		} else if released {
			s.Metrics.AddLocksReleased("read", 1)
			log.Printf("INFO: Expired lock released on read: tracking_number=%s", trackingNumber)
		}
	}
	return complaint, nil
}

// ViewComplaint loads a complaint on behalf of viewer. Citizens see their own
// complaints, employees those of their entity, admins everything.
func (s *Service) ViewComplaint(ctx context.Context, trackingNumber string, viewer *models.User) (*models.Complaint, error) {
	complaint, err := s.GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if !CanView(complaint, viewer) {
		return nil, authorizationError("complaint", "You are not allowed to view this complaint.")
	}
	return complaint, nil
}

// CanView reports whether viewer may read c.
func CanView(c *models.Complaint, viewer *models.User) bool {
	if viewer == nil {
		return false
	}
	switch viewer.Role {
	case models.RoleAdmin:
		return true
	case models.RoleEmployee:
		return viewer.BelongsToEntity(c.EntityID)
	default:
		return c.UserID == viewer.ID
	}
}

// ListUserComplaints lists the complaints filed by userID, newest first.
func (s *Service) ListUserComplaints(ctx context.Context, userID string, page Page) ([]models.Complaint, error) {
	return s.list(ctx, page.apply(storage.ComplaintFilter{UserID: userID}))
}

// ListEntityComplaints lists complaints of the employee's entity, optionally
// narrowed to statuses.
func (s *Service) ListEntityComplaints(ctx context.Context, employee *models.User, statuses []models.ComplaintStatus, page Page) ([]models.Complaint, error) {
	if employee == nil || !employee.IsEmployee() || employee.EntityID == nil {
		return nil, authorizationError("entity", "Only employees of an entity can list its complaints.")
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, validationError("status", "Unknown status: "+string(st))
		}
	}
	return s.list(ctx, page.apply(storage.ComplaintFilter{
		EntityID: *employee.EntityID,
		Statuses: statuses,
	}))
}

// ListAvailableComplaints lists the entity complaints an employee could
// accept right now: new ones and in_progress ones without an active claim.
func (s *Service) ListAvailableComplaints(ctx context.Context, employee *models.User, page Page) ([]models.Complaint, error) {
	if employee == nil || !employee.IsEmployee() || employee.EntityID == nil {
		return nil, authorizationError("entity", "Only employees of an entity can list its complaints.")
	}
	now := s.now()
	return s.list(ctx, page.apply(storage.ComplaintFilter{
		EntityID:   *employee.EntityID,
		Statuses:   []models.ComplaintStatus{models.StatusNew, models.StatusInProgress},
		UnlockedAt: &now,
	}))
}

// ListAssignedComplaints lists complaints assigned to the employee.
func (s *Service) ListAssignedComplaints(ctx context.Context, employee *models.User, page Page) ([]models.Complaint, error) {
	if employee == nil || !employee.IsEmployee() {
		return nil, authorizationError("role", "Only employees have assigned complaints.")
	}
	return s.list(ctx, page.apply(storage.ComplaintFilter{AssignedTo: employee.ID}))
}

func (s *Service) list(ctx context.Context, filter storage.ComplaintFilter) ([]models.Complaint, error) {
	complaints, err := s.Storage.ListComplaints(ctx, filter)
	if err != nil {
		return nil, infrastructureError("failed to list complaints", err)
	}
	return complaints, nil
}

// UnlockExpiredComplaints releases every expired claim on an in_progress
// complaint and returns how many were released. Status and assignment stay.
func (s *Service) UnlockExpiredComplaints(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.Storage.FindExpiredLocks(ctx, now)
	if err != nil {
		return 0, infrastructureError("failed to query expired locks", err)
	}

	count := 0
	for i := range expired {
		c := &expired[i]
		released, err := s.Storage.ReleaseExpiredLock(ctx, c.ID, now)
		if err != nil {
			log.Printf("ERROR: Failed to unlock expired complaint %s: %v", c.TrackingNumber, err)
			continue
		}
		if released {
			count++
			log.Printf("INFO: Unlocked expired complaint: tracking_number=%s", c.TrackingNumber)
		}
	}

	s.Metrics.AddLocksReleased("sweeper", count)
	return count, nil
}
