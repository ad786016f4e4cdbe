// Package complaint provides the core logic of the complaint lifecycle:
// the state policy, the claim (lock) rules, and the transactional operations
// citizens and employees perform on a complaint.
package complaint

import (
	"complaints/backend/internal/config"
	"complaints/backend/internal/metrics"
	"complaints/backend/internal/models"
	"complaints/backend/internal/storage"
	"complaints/backend/internal/upload"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// TrackingGenerator issues public tracking numbers.
type TrackingGenerator interface {
	Generate() (string, error)
}

// Uploader stores attachment files.
type Uploader interface {
	Upload(ctx context.Context, f upload.File, destination string, fileType models.FileType) (*upload.Result, error)
	Remove(ctx context.Context, path string) error
}

// EventPublisher emits domain events after commit.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event models.ComplaintEvent) error
}

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, recipient *models.User, n models.Notification) error
}

// Options tune the lifecycle. NotificationsBypass is the dev-mode switch: when
// set, every notification is skipped and the skip is logged.
type Options struct {
	NotificationsBypass bool
	LockDuration        time.Duration
	MaxImages           int
	MaxPdfs             int
}

// DefaultOptions returns the production limits.
func DefaultOptions() Options {
	return Options{
		LockDuration: config.LockDuration,
		MaxImages:    config.MaxImagesPerComplaint,
		MaxPdfs:      config.MaxPdfsPerComplaint,
	}
}

// Dependencies are the collaborators of the Service.
type Dependencies struct {
	Storage  storage.Storage
	Tracking TrackingGenerator
	Uploader Uploader
	Events   EventPublisher
	Notifier Notifier
	Metrics  *metrics.Metrics
}

// Service handles the business logic for complaints.
type Service struct {
	Storage  storage.Storage
	Tracking TrackingGenerator
	Uploader Uploader
	Events   EventPublisher
	Notifier Notifier
	Metrics  *metrics.Metrics

	opts Options
	now  func() time.Time
}

// NewService creates a new complaint service.
func NewService(deps Dependencies, opts Options) *Service {
	return &Service{
		Storage:  deps.Storage,
		Tracking: deps.Tracking,
		Uploader: deps.Uploader,
		Events:   deps.Events,
		Notifier: deps.Notifier,
		Metrics:  deps.Metrics,
		opts:     opts,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateInput carries the citizen-supplied fields of a new complaint.
type CreateInput struct {
	UserID        string
	EntityID      string
	ComplaintKind string
	Description   string
	Location      string
}

// UpdateInput carries the citizen-editable fields; nil means unchanged.
type UpdateInput struct {
	ComplaintKind *string
	Description   *string
	Location      *string
}

// CreateComplaint files a new complaint with status new and version 1.
func (s *Service) CreateComplaint(ctx context.Context, in CreateInput, images, pdfs []upload.File) (*models.Complaint, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	if err := s.validateFileLimits(len(images), len(pdfs)); err != nil {
		return nil, err
	}

	trackingNumber, err := s.Tracking.Generate()
	if err != nil {
		return nil, infrastructureError("failed to generate tracking number", err)
	}

	complaint := &models.Complaint{
		TrackingNumber: trackingNumber,
		UserID:         in.UserID,
		EntityID:       in.EntityID,
		ComplaintKind:  strings.TrimSpace(in.ComplaintKind),
		Description:    strings.TrimSpace(in.Description),
		Location:       strings.TrimSpace(in.Location),
		Status:         models.StatusNew,
		Version:        1,
	}

	var uploaded []string
	err = s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		if _, err := tx.GetEntityByID(ctx, in.EntityID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return validationError("entity_id", "The selected entity does not exist.")
			}
			return err
		}
		if err := tx.CreateComplaint(ctx, complaint); err != nil {
			return err
		}
		attachments, err := s.storeAttachments(ctx, tx, complaint.ID, images, pdfs, &uploaded)
		if err != nil {
			return err
		}
		complaint.Attachments = attachments
		return nil
	})
	if err != nil {
		s.discardFiles(ctx, uploaded)
		log.Printf("ERROR: Failed to create complaint %s: %v", trackingNumber, err)
		return nil, s.finish("create", classify(err))
	}
	s.finish("create", nil)

	s.emit(ctx, complaint, models.EventComplaintCreated, "")
	s.sendNotification(ctx, complaint.UserID, models.Notification{
		Kind:           models.NotificationComplaintCreated,
		TrackingNumber: complaint.TrackingNumber,
		NewStatus:      complaint.Status,
	})

	log.Printf("INFO: Complaint created: tracking_number=%s", trackingNumber)
	return complaint, nil
}

// UpdateComplaint applies a citizen edit. A declined complaint goes back to
// new with its assignment and lock cleared, in the same write as the edit.
func (s *Service) UpdateComplaint(ctx context.Context, complaint *models.Complaint, in UpdateInput, user *models.User, images, pdfs []upload.File) (*models.Complaint, error) {
	now := s.now()
	if err := CheckTransition(complaint, TransitionCitizenEdit, user, now); err != nil {
		return nil, s.finish("update", err)
	}

	next := *complaint
	if in.ComplaintKind != nil {
		next.ComplaintKind = strings.TrimSpace(*in.ComplaintKind)
	}
	if in.Description != nil {
		next.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		next.Location = strings.TrimSpace(*in.Location)
	}
	if err := validateEditable(&next); err != nil {
		return nil, s.finish("update", err)
	}

	oldStatus := complaint.Status
	if complaint.Status == models.StatusDeclined {
		next.Status = models.StatusNew
		next.AssignedTo = nil
		next.Unlock()
	}
	next.ClearInfoRequest()
	next.IncrementVersion()

	var uploaded []string
	err := s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		if err := s.validateCombinedLimits(ctx, tx, complaint.ID, len(images), len(pdfs)); err != nil {
			return err
		}
		if err := tx.UpdateComplaint(ctx, &next, complaint.Version); err != nil {
			return err
		}
		added, err := s.storeAttachments(ctx, tx, complaint.ID, images, pdfs, &uploaded)
		if err != nil {
			return err
		}
		next.Attachments = append(append([]models.ComplaintAttachment(nil), complaint.Attachments...), added...)
		return nil
	})
	if err != nil {
		s.discardFiles(ctx, uploaded)
		log.Printf("ERROR: Failed to update complaint %s: %v", complaint.TrackingNumber, err)
		return nil, s.finish("update", classify(err))
	}
	s.finish("update", nil)

	if oldStatus != next.Status {
		s.emit(ctx, &next, models.EventComplaintStatusChanged, oldStatus)
		s.sendNotification(ctx, next.UserID, statusChanged(&next, oldStatus))
	}

	log.Printf("INFO: Complaint updated: tracking_number=%s user_id=%s", complaint.TrackingNumber, user.ID)
	return &next, nil
}

// AcceptComplaint claims the complaint for the employee and moves it to in_progress.
func (s *Service) AcceptComplaint(ctx context.Context, complaint *models.Complaint, employee *models.User) (*models.Complaint, error) {
	now := s.now()
	if err := CheckTransition(complaint, TransitionAccept, employee, now); err != nil {
		return nil, s.finish(string(TransitionAccept), err)
	}

	next := *complaint
	next.Lock(employee.ID, s.opts.LockDuration, now)
	next.IncrementVersion()
	next.Status = models.StatusInProgress
	if next.ReviewedAt == nil {
		next.ReviewedAt = &now
	}

	if err := s.commit(ctx, &next, complaint.Version); err != nil {
		log.Printf("ERROR: Failed to accept complaint %s: %v", complaint.TrackingNumber, err)
		return nil, s.finish(string(TransitionAccept), err)
	}
	s.finish(string(TransitionAccept), nil)

	if complaint.Status != next.Status {
		s.emit(ctx, &next, models.EventComplaintStatusChanged, complaint.Status)
		s.sendNotification(ctx, next.UserID, statusChanged(&next, complaint.Status))
	}

	log.Printf("INFO: Complaint accepted: tracking_number=%s employee_id=%s", complaint.TrackingNumber, employee.ID)
	return &next, nil
}

// FinishComplaint resolves the complaint and releases the claim.
func (s *Service) FinishComplaint(ctx context.Context, complaint *models.Complaint, employee *models.User, resolution string) (*models.Complaint, error) {
	now := s.now()
	if err := CheckTransition(complaint, TransitionFinish, employee, now); err != nil {
		return nil, s.finish(string(TransitionFinish), err)
	}
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, s.finish(string(TransitionFinish), validationError("resolution", "A resolution is required."))
	}

	next := *complaint
	next.Unlock()
	next.IncrementVersion()
	next.ClearInfoRequest()
	next.Status = models.StatusFinished
	next.Resolution = resolution
	next.ResolvedAt = &now

	if err := s.commit(ctx, &next, complaint.Version); err != nil {
		log.Printf("ERROR: Failed to finish complaint %s: %v", complaint.TrackingNumber, err)
		return nil, s.finish(string(TransitionFinish), err)
	}
	s.finish(string(TransitionFinish), nil)

	s.emit(ctx, &next, models.EventComplaintStatusChanged, complaint.Status)
	s.sendNotification(ctx, next.UserID, statusChanged(&next, complaint.Status))

	log.Printf("INFO: Complaint finished: tracking_number=%s employee_id=%s", complaint.TrackingNumber, employee.ID)
	return &next, nil
}

// DeclineComplaint rejects the complaint and detaches the employee.
func (s *Service) DeclineComplaint(ctx context.Context, complaint *models.Complaint, employee *models.User, reason string) (*models.Complaint, error) {
	now := s.now()
	if err := CheckTransition(complaint, TransitionDecline, employee, now); err != nil {
		return nil, s.finish(string(TransitionDecline), err)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, s.finish(string(TransitionDecline), validationError("reason", "A reason is required."))
	}

	next := *complaint
	next.Unlock()
	next.IncrementVersion()
	next.ClearInfoRequest()
	next.Status = models.StatusDeclined
	next.AdminNotes = reason
	next.AssignedTo = nil

	if err := s.commit(ctx, &next, complaint.Version); err != nil {
		log.Printf("ERROR: Failed to decline complaint %s: %v", complaint.TrackingNumber, err)
		return nil, s.finish(string(TransitionDecline), err)
	}
	s.finish(string(TransitionDecline), nil)

	s.emit(ctx, &next, models.EventComplaintStatusChanged, complaint.Status)
	s.sendNotification(ctx, next.UserID, statusChanged(&next, complaint.Status))

	log.Printf("INFO: Complaint declined: tracking_number=%s employee_id=%s", complaint.TrackingNumber, employee.ID)
	return &next, nil
}

// ReleaseClaim lets the assignee give up an active claim. The complaint stays
// in_progress and keeps assigned_to so another employee can accept it.
func (s *Service) ReleaseClaim(ctx context.Context, complaint *models.Complaint, employee *models.User) (*models.Complaint, error) {
	if err := CheckTransition(complaint, TransitionRelease, employee, s.now()); err != nil {
		return nil, s.finish(string(TransitionRelease), err)
	}

	next := *complaint
	next.Unlock()
	next.IncrementVersion()

	if err := s.commit(ctx, &next, complaint.Version); err != nil {
		log.Printf("ERROR: Failed to release complaint %s: %v", complaint.TrackingNumber, err)
		return nil, s.finish(string(TransitionRelease), err)
	}
	s.finish(string(TransitionRelease), nil)

	log.Printf("INFO: Complaint released: tracking_number=%s employee_id=%s", complaint.TrackingNumber, employee.ID)
	return &next, nil
}

// RequestMoreInfo asks the citizen for more details. The status does not
// change, so no status event is emitted.
func (s *Service) RequestMoreInfo(ctx context.Context, complaint *models.Complaint, employee *models.User, message string) (*models.Complaint, error) {
	now := s.now()
	if err := CheckTransition(complaint, TransitionRequestInfo, employee, now); err != nil {
		return nil, s.finish(string(TransitionRequestInfo), err)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, s.finish(string(TransitionRequestInfo), validationError("message", "A message is required."))
	}

	next := *complaint
	next.RequestInfo(message, now)
	next.IncrementVersion()

	if err := s.commit(ctx, &next, complaint.Version); err != nil {
		log.Printf("ERROR: Failed to request info for complaint %s: %v", complaint.TrackingNumber, err)
		return nil, s.finish(string(TransitionRequestInfo), err)
	}
	s.finish(string(TransitionRequestInfo), nil)

	s.sendNotification(ctx, next.UserID, models.Notification{
		Kind:           models.NotificationInfoRequested,
		TrackingNumber: next.TrackingNumber,
		NewStatus:      next.Status,
		Message:        message,
	})

	log.Printf("INFO: Info requested for complaint: tracking_number=%s employee_id=%s", complaint.TrackingNumber, employee.ID)
	return &next, nil
}

// DeleteAttachment removes one attachment of a complaint its owner may still
// edit. The stored file is removed after the row deletion commits.
func (s *Service) DeleteAttachment(ctx context.Context, complaint *models.Complaint, attachmentID string, user *models.User) (*models.Complaint, error) {
	if err := CheckTransition(complaint, TransitionCitizenEdit, user, s.now()); err != nil {
		return nil, s.finish("delete_attachment", err)
	}

	next := *complaint
	next.IncrementVersion()

	var removed *models.ComplaintAttachment
	err := s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		attachment, err := tx.FindAttachment(ctx, complaint.ID, attachmentID)
		if err != nil {
			return err
		}
		if attachment == nil {
			return notFoundError("attachment", "Attachment not found.")
		}
		if err := tx.DeleteAttachment(ctx, attachment.ID); err != nil {
			return err
		}
		if err := tx.UpdateComplaint(ctx, &next, complaint.Version); err != nil {
			return err
		}
		removed = attachment
		return nil
	})
	if err != nil {
		log.Printf("ERROR: Failed to delete attachment %s of complaint %s: %v", attachmentID, complaint.TrackingNumber, err)
		return nil, s.finish("delete_attachment", classify(err))
	}
	s.finish("delete_attachment", nil)

	next.Attachments = nil
	for _, a := range complaint.Attachments {
		if a.ID != removed.ID {
			next.Attachments = append(next.Attachments, a)
		}
	}
	s.discardFiles(ctx, []string{removed.FilePath})

	log.Printf("INFO: Attachment deleted: tracking_number=%s attachment_id=%s", complaint.TrackingNumber, removed.ID)
	return &next, nil
}

// commit writes next inside a transaction, conditioned on expectedVersion.
func (s *Service) commit(ctx context.Context, next *models.Complaint, expectedVersion int) error {
	err := s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		return tx.UpdateComplaint(ctx, next, expectedVersion)
	})
	return classify(err)
}

func (s *Service) finish(operation string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	s.Metrics.IncrementTransition(operation, outcome)
	return err
}

// classify turns store errors into domain errors; domain errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, storage.ErrVersionConflict) {
		return conflictError("version", "The complaint was modified by someone else. Reload it and try again.", err)
	}
	return infrastructureError("complaint store operation failed", err)
}

func (s *Service) validateFileLimits(images, pdfs int) error {
	if images > s.opts.MaxImages {
		return validationError("images", fmt.Sprintf("You can upload a maximum of %d images.", s.opts.MaxImages))
	}
	if pdfs > s.opts.MaxPdfs {
		return validationError("pdfs", fmt.Sprintf("You can upload a maximum of %d PDFs.", s.opts.MaxPdfs))
	}
	return nil
}

func (s *Service) validateCombinedLimits(ctx context.Context, tx storage.Storage, complaintID string, newImages, newPdfs int) error {
	if newImages > 0 {
		current, err := tx.CountAttachments(ctx, complaintID, models.FileTypeImage)
		if err != nil {
			return err
		}
		if int(current)+newImages > s.opts.MaxImages {
			return validationError("images", fmt.Sprintf("Total images cannot exceed %d.", s.opts.MaxImages))
		}
	}
	if newPdfs > 0 {
		current, err := tx.CountAttachments(ctx, complaintID, models.FileTypePDF)
		if err != nil {
			return err
		}
		if int(current)+newPdfs > s.opts.MaxPdfs {
			return validationError("pdfs", fmt.Sprintf("Total PDFs cannot exceed %d.", s.opts.MaxPdfs))
		}
	}
	return nil
}

// storeAttachments uploads the files and inserts their rows through tx. Paths
// of files written so far are appended to uploaded even on failure so the
// caller can clean them up after a rollback.
func (s *Service) storeAttachments(ctx context.Context, tx storage.Storage, complaintID string, images, pdfs []upload.File, uploaded *[]string) ([]models.ComplaintAttachment, error) {
	if len(images) == 0 && len(pdfs) == 0 {
		return nil, nil
	}
	if s.Uploader == nil {
		return nil, infrastructureError("attachment uploads are not configured", nil)
	}

	batches := []struct {
		files    []upload.File
		fileType models.FileType
		dir      string
	}{
		{images, models.FileTypeImage, "complaints/" + complaintID + "/images"},
		{pdfs, models.FileTypePDF, "complaints/" + complaintID + "/pdfs"},
	}

	var attachments []models.ComplaintAttachment
	for _, batch := range batches {
		for _, f := range batch.files {
			res, err := s.Uploader.Upload(ctx, f, batch.dir, batch.fileType)
			if err != nil {
				if errors.Is(err, upload.ErrUnsupportedType) || errors.Is(err, upload.ErrFileTooLarge) {
					field := "images"
					if batch.fileType == models.FileTypePDF {
						field = "pdfs"
					}
					return nil, &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf("File %q was rejected.", f.Name), Err: err}
				}
				return nil, infrastructureError("failed to upload "+f.Name, err)
			}
			*uploaded = append(*uploaded, res.FilePath)
			attachments = append(attachments, models.ComplaintAttachment{
				ComplaintID: complaintID,
				FileName:    res.FileName,
				FilePath:    res.FilePath,
				FileType:    res.FileType,
				MimeType:    res.MimeType,
				FileSize:    res.FileSize,
			})
		}
	}

	if err := tx.CreateAttachments(ctx, attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (s *Service) discardFiles(ctx context.Context, paths []string) {
	if s.Uploader == nil {
		return
	}
	for _, p := range paths {
		if err := s.Uploader.Remove(ctx, p); err != nil {
			log.Printf("WARN: Failed to remove stored file %s: %v", p, err)
		}
	}
}

// emit publishes an event; failures are logged and never returned.
func (s *Service) emit(ctx context.Context, c *models.Complaint, eventType models.EventType, oldStatus models.ComplaintStatus) {
	if s.Events == nil {
		return
	}
	event := models.ComplaintEvent{
		Type:           eventType,
		ComplaintID:    c.ID,
		TrackingNumber: c.TrackingNumber,
		UserID:         c.UserID,
		EntityID:       c.EntityID,
		OldStatus:      oldStatus,
		NewStatus:      c.Status,
		Version:        c.Version,
		OccurredAt:     s.now().UTC(),
	}
	if err := s.Events.PublishEvent(ctx, event); err != nil {
		s.Metrics.IncrementEvent(string(eventType), "failed")
		log.Printf("ERROR: Failed to publish %s for complaint %s: %v", eventType, c.TrackingNumber, err)
		return
	}
	s.Metrics.IncrementEvent(string(eventType), "published")
}

// sendNotification delivers n to the user unless notifications are bypassed.
// Failures are logged and never returned.
func (s *Service) sendNotification(ctx context.Context, userID string, n models.Notification) {
	if s.opts.NotificationsBypass {
		s.Metrics.IncrementNotification("skipped")
		log.Printf("INFO: Notification skipped (dev mode): kind=%s tracking_number=%s recipient=%s", n.Kind, n.TrackingNumber, userID)
		return
	}
	if s.Notifier == nil {
		return
	}

	recipient, err := s.Storage.GetUserByID(ctx, userID)
	if err != nil {
		s.Metrics.IncrementNotification("failed")
		log.Printf("WARN: Cannot notify user %s about %s: %v", userID, n.TrackingNumber, err)
		return
	}
	if err := s.Notifier.Notify(ctx, recipient, n); err != nil {
		s.Metrics.IncrementNotification("failed")
		log.Printf("ERROR: Failed to send %s notification for %s: %v", n.Kind, n.TrackingNumber, err)
		return
	}
	s.Metrics.IncrementNotification("sent")
}

func statusChanged(c *models.Complaint, oldStatus models.ComplaintStatus) models.Notification {
	return models.Notification{
		Kind:           models.NotificationStatusChanged,
		TrackingNumber: c.TrackingNumber,
		OldStatus:      oldStatus,
		NewStatus:      c.Status,
	}
}

func validateCreate(in CreateInput) error {
	if in.UserID == "" {
		return validationError("user_id", "The user is required.")
	}
	if in.EntityID == "" {
		return validationError("entity_id", "The entity is required.")
	}
	return validateEditable(&models.Complaint{
		ComplaintKind: strings.TrimSpace(in.ComplaintKind),
		Description:   strings.TrimSpace(in.Description),
		Location:      strings.TrimSpace(in.Location),
	})
}

func validateEditable(c *models.Complaint) error {
	if c.ComplaintKind == "" {
		return validationError("complaint_kind", "The complaint kind is required.")
	}
	if c.Description == "" {
		return validationError("description", "The description is required.")
	}
	if c.Location == "" {
		return validationError("location", "The location is required.")
	}
	return nil
}
