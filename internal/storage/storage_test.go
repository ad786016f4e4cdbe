package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"complaints/backend/internal/models"
	"complaints/backend/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB starts a PostgreSQL container and migrates the schema.
func setupTestDB(t *testing.T) *storage.Service {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("complaints_test"),
		tcpostgres.WithUsername("complaints"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrate(db))

	return storage.NewStorageService(db, nil)
}

func seedComplaint(t *testing.T, s *storage.Service, mutate func(c *models.Complaint)) *models.Complaint {
	t.Helper()

	c := &models.Complaint{
		TrackingNumber: "CMP-" + uuid.NewString(),
		UserID:         uuid.NewString(),
		EntityID:       uuid.NewString(),
		ComplaintKind:  "road",
		Description:    "Pothole on main street",
		Location:       "Main St 1",
	}
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, s.CreateComplaint(context.Background(), c))
	return c
}

func TestStorage_CreateAndFind(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	created := seedComplaint(t, s, nil)

	found, err := s.FindComplaintByTrackingNumber(ctx, created.TrackingNumber)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, models.StatusNew, found.Status)
	assert.Equal(t, 1, found.Version)

	missing, err := s.FindComplaintByTrackingNumber(ctx, "CMP-does-not-exist")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStorage_UpdateComplaintIsCompareAndSwap(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c := seedComplaint(t, s, nil)

	first := *c
	first.Description = "first writer"
	first.IncrementVersion()
	require.NoError(t, s.UpdateComplaint(ctx, &first, 1))

	second := *c
	second.Description = "second writer"
	second.IncrementVersion()
	err := s.UpdateComplaint(ctx, &second, 1)
	assert.ErrorIs(t, err, storage.ErrVersionConflict, "stale writer must not clobber the first")

	stored, err := s.FindComplaintByTrackingNumber(ctx, c.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, "first writer", stored.Description)
	assert.Equal(t, 2, stored.Version)
}

func TestStorage_UpdateComplaintClearsNullableColumns(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	employee := uuid.NewString()
	c := seedComplaint(t, s, func(c *models.Complaint) {
		c.Status = models.StatusInProgress
		c.Lock(employee, time.Hour, now)
	})

	next := *c
	next.Unlock()
	next.AssignedTo = nil
	next.Status = models.StatusDeclined
	next.IncrementVersion()
	require.NoError(t, s.UpdateComplaint(ctx, &next, c.Version))

	stored, err := s.FindComplaintByTrackingNumber(ctx, c.TrackingNumber)
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedTo)
	assert.Nil(t, stored.LockedAt)
	assert.Nil(t, stored.LockExpiresAt)
}

func TestStorage_ExpiredLocks(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	expired := seedComplaint(t, s, func(c *models.Complaint) {
		c.Status = models.StatusInProgress
		c.Lock(uuid.NewString(), time.Hour, now.Add(-2*time.Hour))
	})
	seedComplaint(t, s, func(c *models.Complaint) {
		c.Status = models.StatusInProgress
		c.Lock(uuid.NewString(), time.Hour, now)
	})

	found, err := s.FindExpiredLocks(ctx, now)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, expired.ID, found[0].ID)

	released, err := s.ReleaseExpiredLock(ctx, expired.ID, now)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = s.ReleaseExpiredLock(ctx, expired.ID, now)
	require.NoError(t, err)
	assert.False(t, released, "already released")

	stored, err := s.FindComplaintByTrackingNumber(ctx, expired.TrackingNumber)
	require.NoError(t, err)
	assert.Nil(t, stored.LockedAt)
	assert.NotNil(t, stored.AssignedTo, "release keeps the assignment")
	assert.Equal(t, models.StatusInProgress, stored.Status)
}

func TestStorage_ListComplaintsFilters(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	entityID := uuid.NewString()
	now := time.Now().UTC()

	seedComplaint(t, s, func(c *models.Complaint) { c.EntityID = entityID })
	seedComplaint(t, s, func(c *models.Complaint) {
		c.EntityID = entityID
		c.Status = models.StatusDeclined
	})
	seedComplaint(t, s, func(c *models.Complaint) {
		c.EntityID = entityID
		c.Status = models.StatusInProgress
		c.Lock(uuid.NewString(), time.Hour, now)
	})
	seedComplaint(t, s, nil)

	all, err := s.ListComplaints(ctx, storage.ComplaintFilter{EntityID: entityID})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	open, err := s.ListComplaints(ctx, storage.ComplaintFilter{
		EntityID: entityID,
		Statuses: []models.ComplaintStatus{models.StatusNew, models.StatusInProgress},
	})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	unlocked, err := s.ListComplaints(ctx, storage.ComplaintFilter{EntityID: entityID, UnlockedAt: &now})
	require.NoError(t, err)
	assert.Len(t, unlocked, 2)
}

func TestStorage_SoftDeletedComplaintsAreHidden(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c := seedComplaint(t, s, nil)

	require.NoError(t, s.DB.Delete(&models.Complaint{}, "id = ?", c.ID).Error)

	found, err := s.FindComplaintByTrackingNumber(ctx, c.TrackingNumber)
	assert.NoError(t, err)
	assert.Nil(t, found)

	var raw models.Complaint
	require.NoError(t, s.DB.Unscoped().First(&raw, "id = ?", c.ID).Error, "row is retained for audit")
}

func TestStorage_TransactionRollsBack(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	c := seedComplaint(t, s, nil)

	err := s.Transaction(ctx, func(tx storage.Storage) error {
		require.NoError(t, tx.CreateAttachments(ctx, []models.ComplaintAttachment{
			{ComplaintID: c.ID, FileName: "a.png", FilePath: "x/a.png", FileType: models.FileTypeImage},
		}))
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	count, err := s.CountAttachments(ctx, c.ID, models.FileTypeImage)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStorage_PublishEventWithoutRedis(t *testing.T) {
	s := storage.NewStorageService(nil, nil)

	err := s.PublishEvent(context.Background(), models.ComplaintEvent{Type: models.EventComplaintCreated})

	assert.Error(t, err)
}
