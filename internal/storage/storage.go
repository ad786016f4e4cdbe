package storage

import (
	"complaints/backend/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventsChannel is the Redis Pub/Sub channel complaint events are published on.
const EventsChannel = "complaints:events"

var (
	// ErrVersionConflict is returned when a conditional update finds a
	// different version than the caller read.
	ErrVersionConflict = errors.New("complaint was modified concurrently")
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("record not found")
)

// ComplaintFilter narrows complaint listings. Zero values are ignored.
type ComplaintFilter struct {
	Statuses   []models.ComplaintStatus
	EntityID   string
	UserID     string
	AssignedTo string
	// UnlockedAt keeps only complaints without an active lock at that instant.
	UnlockedAt *time.Time
	Limit      int
	Offset     int
}

type Storage interface {
	// Transaction runs fn against a transactional view of the store. Any
	// error returned by fn rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx Storage) error) error

	CreateComplaint(ctx context.Context, complaint *models.Complaint) error
	// UpdateComplaint persists every mutable field of complaint, but only if
	// the stored version still equals expectedVersion.
	UpdateComplaint(ctx context.Context, complaint *models.Complaint, expectedVersion int) error
	FindComplaintByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Complaint, error)
	ListComplaints(ctx context.Context, filter ComplaintFilter) ([]models.Complaint, error)
	FindExpiredLocks(ctx context.Context, now time.Time) ([]models.Complaint, error)
	// ReleaseExpiredLock clears the lock timestamps if the lock is still
	// expired at now, reporting whether a row changed.
	ReleaseExpiredLock(ctx context.Context, complaintID string, now time.Time) (bool, error)

	CountAttachments(ctx context.Context, complaintID string, fileType models.FileType) (int64, error)
	CreateAttachments(ctx context.Context, attachments []models.ComplaintAttachment) error
	FindAttachment(ctx context.Context, complaintID, attachmentID string) (*models.ComplaintAttachment, error)
	DeleteAttachment(ctx context.Context, attachmentID string) error

	SaveUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	SaveEntity(ctx context.Context, entity *models.Entity) error
	GetEntityByID(ctx context.Context, entityID string) (*models.Entity, error)

	PublishEvent(ctx context.Context, event models.ComplaintEvent) error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Entity{},
		&models.User{},
		&models.Complaint{},
		&models.ComplaintAttachment{},
	)
}

// Transaction opens a gorm transaction; fn receives a Service bound to it.
func (s *Service) Transaction(ctx context.Context, fn func(tx Storage) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Service{DB: tx, Redis: s.Redis})
	})
}

func (s *Service) CreateComplaint(ctx context.Context, complaint *models.Complaint) error {
	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(complaint).Error; err != nil {
		log.Printf("ERROR: Failed to create complaint %s: %v", complaint.TrackingNumber, err)
		return err
	}
	return nil
}

// UpdateComplaint is a compare-and-swap on the version column. Identity and
// ownership columns are never rewritten.
func (s *Service) UpdateComplaint(ctx context.Context, complaint *models.Complaint, expectedVersion int) error {
	result := s.DB.WithContext(ctx).
		Model(complaint).
		Where("version = ?", expectedVersion).
		Select("*").
		Omit("id", "tracking_number", "user_id", "entity_id", "created_at", "deleted_at", clause.Associations).
		Updates(complaint)

	if result.Error != nil {
		log.Printf("ERROR: Failed to update complaint %s: %v", complaint.TrackingNumber, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// FindComplaintByTrackingNumber returns nil without error when no complaint matches.
func (s *Service) FindComplaintByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Complaint, error) {
	var complaint models.Complaint

	err := s.DB.WithContext(ctx).
		Preload("Attachments").
		Where("tracking_number = ?", trackingNumber).
		First(&complaint).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		log.Printf("ERROR: Failed to find complaint %s: %v", trackingNumber, err)
		return nil, err
	}
	return &complaint, nil
}

func (s *Service) ListComplaints(ctx context.Context, filter ComplaintFilter) ([]models.Complaint, error) {
	var complaints []models.Complaint

	q := s.DB.WithContext(ctx).Model(&models.Complaint{})
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status = ANY(?)", pq.Array(statuses))
	}
	if filter.EntityID != "" {
		q = q.Where("entity_id = ?", filter.EntityID)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.AssignedTo != "" {
		q = q.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.UnlockedAt != nil {
		q = q.Where("(locked_at IS NULL OR lock_expires_at <= ?)", *filter.UnlockedAt)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	if err := q.Order("created_at desc").Find(&complaints).Error; err != nil {
		log.Printf("ERROR: Failed to list complaints: %v", err)
		return nil, err
	}
	return complaints, nil
}

func (s *Service) FindExpiredLocks(ctx context.Context, now time.Time) ([]models.Complaint, error) {
	var complaints []models.Complaint

	err := s.DB.WithContext(ctx).
		Where("status = ?", models.StatusInProgress).
		Where("locked_at IS NOT NULL").
		Where("lock_expires_at <= ?", now).
		Find(&complaints).Error
	if err != nil {
		log.Printf("ERROR: Failed to query expired locks: %v", err)
		return nil, err
	}
	return complaints, nil
}

func (s *Service) ReleaseExpiredLock(ctx context.Context, complaintID string, now time.Time) (bool, error) {
	result := s.DB.WithContext(ctx).
		Model(&models.Complaint{}).
		Where("id = ?", complaintID).
		Where("locked_at IS NOT NULL AND lock_expires_at <= ?", now).
		Updates(map[string]interface{}{
			"locked_at":       nil,
			"lock_expires_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) CountAttachments(ctx context.Context, complaintID string, fileType models.FileType) (int64, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.ComplaintAttachment{}).
		Where("complaint_id = ? AND file_type = ?", complaintID, fileType).
		Count(&count).Error
	return count, err
}

func (s *Service) CreateAttachments(ctx context.Context, attachments []models.ComplaintAttachment) error {
	if len(attachments) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Create(&attachments).Error
}

func (s *Service) FindAttachment(ctx context.Context, complaintID, attachmentID string) (*models.ComplaintAttachment, error) {
	var attachment models.ComplaintAttachment

	err := s.DB.WithContext(ctx).
		Where("id = ? AND complaint_id = ?", attachmentID, complaintID).
		First(&attachment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (s *Service) DeleteAttachment(ctx context.Context, attachmentID string) error {
	result := s.DB.WithContext(ctx).Delete(&models.ComplaintAttachment{}, "id = ?", attachmentID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveUser зберігає користувача в PostgreSQL
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return s.DB.WithContext(ctx).Save(user).Error
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User

	err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get user %s: %v", userID, err)
		return nil, err
	}
	return &user, nil
}

func (s *Service) SaveEntity(ctx context.Context, entity *models.Entity) error {
	return s.DB.WithContext(ctx).Save(entity).Error
}

func (s *Service) GetEntityByID(ctx context.Context, entityID string) (*models.Entity, error) {
	var entity models.Entity

	err := s.DB.WithContext(ctx).Where("id = ?", entityID).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// PublishEvent публікує подію в Redis Pub/Sub
func (s *Service) PublishEvent(ctx context.Context, event models.ComplaintEvent) error {
	if s.Redis == nil {
		return fmt.Errorf("publish %s: redis is not configured", event.Type)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.Redis.Publish(ctx, EventsChannel, string(payload)).Err()
}

// SubscribeEvents subscribes to the complaint events channel.
func (s *Service) SubscribeEvents(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, EventsChannel)
}
