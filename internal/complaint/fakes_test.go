package complaint

import (
	"complaints/backend/internal/models"
	"complaints/backend/internal/storage"
	"complaints/backend/internal/upload"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory storage.Storage with snapshot rollback and the
// same compare-and-swap semantics as the postgres implementation.
type memStore struct {
	mu          sync.Mutex
	complaints  map[string]models.Complaint
	attachments []models.ComplaintAttachment
	users       map[string]models.User
	entities    map[string]models.Entity
	events      []models.ComplaintEvent
	seq         int

	// failUpdate, when set, is returned by UpdateComplaint.
	failUpdate error
	// failAttachments, when set, is returned by CreateAttachments.
	failAttachments error
}

func newMemStore() *memStore {
	return &memStore{
		complaints: make(map[string]models.Complaint),
		users:      make(map[string]models.User),
		entities:   make(map[string]models.Entity),
	}
}

type memSnapshot struct {
	complaints  map[string]models.Complaint
	attachments []models.ComplaintAttachment
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		complaints:  make(map[string]models.Complaint, len(m.complaints)),
		attachments: append([]models.ComplaintAttachment(nil), m.attachments...),
	}
	for k, v := range m.complaints {
		snap.complaints[k] = v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.complaints = snap.complaints
	m.attachments = snap.attachments
}

func (m *memStore) Transaction(ctx context.Context, fn func(tx storage.Storage) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.complaints {
		if existing.TrackingNumber == c.TrackingNumber {
			return fmt.Errorf("duplicate tracking number %s", c.TrackingNumber)
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	m.seq++
	c.CreatedAt = time.Date(2025, 1, 1, 0, 0, m.seq, 0, time.UTC)
	stored := *c
	stored.Attachments = nil
	m.complaints[c.ID] = stored
	return nil
}

func (m *memStore) UpdateComplaint(ctx context.Context, c *models.Complaint, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	stored, ok := m.complaints[c.ID]
	if !ok || stored.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	next := *c
	next.TrackingNumber = stored.TrackingNumber
	next.UserID = stored.UserID
	next.EntityID = stored.EntityID
	next.CreatedAt = stored.CreatedAt
	next.Attachments = nil
	m.complaints[c.ID] = next
	return nil
}

func (m *memStore) FindComplaintByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.complaints {
		if c.TrackingNumber == trackingNumber {
			found := c
			for _, a := range m.attachments {
				if a.ComplaintID == c.ID {
					found.Attachments = append(found.Attachments, a)
				}
			}
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListComplaints(ctx context.Context, f storage.ComplaintFilter) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Complaint
	for _, c := range m.complaints {
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, c.Status) {
			continue
		}
		if f.EntityID != "" && c.EntityID != f.EntityID {
			continue
		}
		if f.UserID != "" && c.UserID != f.UserID {
			continue
		}
		if f.AssignedTo != "" && (c.AssignedTo == nil || *c.AssignedTo != f.AssignedTo) {
			continue
		}
		if f.UnlockedAt != nil && c.LockedAt != nil && c.LockExpiresAt != nil && c.LockExpiresAt.After(*f.UnlockedAt) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func containsStatus(statuses []models.ComplaintStatus, s models.ComplaintStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func lockExpired(c models.Complaint, now time.Time) bool {
	return c.LockedAt != nil && c.LockExpiresAt != nil && !c.LockExpiresAt.After(now)
}

func (m *memStore) FindExpiredLocks(ctx context.Context, now time.Time) ([]models.Complaint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Complaint
	for _, c := range m.complaints {
		if c.Status == models.StatusInProgress && lockExpired(c, now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ReleaseExpiredLock(ctx context.Context, complaintID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.complaints[complaintID]
	if !ok || !lockExpired(c, now) {
		return false, nil
	}
	c.LockedAt = nil
	c.LockExpiresAt = nil
	m.complaints[complaintID] = c
	return true, nil
}

func (m *memStore) CountAttachments(ctx context.Context, complaintID string, fileType models.FileType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.attachments {
		if a.ComplaintID == complaintID && a.FileType == fileType {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateAttachments(ctx context.Context, attachments []models.ComplaintAttachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAttachments != nil {
		return m.failAttachments
	}
	for i := range attachments {
		if attachments[i].ID == "" {
			attachments[i].ID = uuid.New().String()
		}
		m.attachments = append(m.attachments, attachments[i])
	}
	return nil
}

func (m *memStore) FindAttachment(ctx context.Context, complaintID, attachmentID string) (*models.ComplaintAttachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attachments {
		if a.ID == attachmentID && a.ComplaintID == complaintID {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memStore) DeleteAttachment(ctx context.Context, attachmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.attachments {
		if a.ID == attachmentID {
			m.attachments = append(m.attachments[:i], m.attachments[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) SaveUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) SaveEntity(ctx context.Context, e *models.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	m.entities[e.ID] = *e
	return nil
}

func (m *memStore) GetEntityByID(ctx context.Context, entityID string) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entityID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

func (m *memStore) PublishEvent(ctx context.Context, event models.ComplaintEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// stored returns the persisted row for a tracking number.
func (m *memStore) stored(trackingNumber string) models.Complaint {
	c, _ := m.FindComplaintByTrackingNumber(context.Background(), trackingNumber)
	if c == nil {
		return models.Complaint{}
	}
	return *c
}

// MockPublisher is a testify mock of EventPublisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishEvent(ctx context.Context, event models.ComplaintEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockNotifier is a testify mock of Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, recipient *models.User, n models.Notification) error {
	args := m.Called(ctx, recipient, n)
	return args.Error(0)
}

// fakeUploader stores nothing; it records paths and can be told to fail.
type fakeUploader struct {
	mu       sync.Mutex
	uploaded []string
	removed  []string
	failOn   string
}

var errDiskFull = errors.New("disk full")

func (u *fakeUploader) Upload(ctx context.Context, f upload.File, destination string, fileType models.FileType) (*upload.Result, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if f.Name == u.failOn {
		return nil, errDiskFull
	}
	mimeType := "image/png"
	if fileType == models.FileTypePDF {
		mimeType = "application/pdf"
	}
	path := destination + "/" + f.Name
	u.uploaded = append(u.uploaded, path)
	return &upload.Result{
		FileName: f.Name,
		FilePath: path,
		FileType: fileType,
		MimeType: mimeType,
		FileSize: 4,
	}, nil
}

func (u *fakeUploader) Remove(ctx context.Context, path string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.removed = append(u.removed, path)
	return nil
}

type sequenceTracking struct {
	mu sync.Mutex
	n  int
}

func (g *sequenceTracking) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("CMP-20250101-%032d", g.n), nil
}

func files(prefix string, n int) []upload.File {
	out := make([]upload.File, n)
	for i := range out {
		out[i] = upload.File{Name: fmt.Sprintf("%s-%d", prefix, i), Content: strings.NewReader("fake")}
	}
	return out
}
