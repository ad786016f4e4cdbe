package handler

import (
	"complaints/backend/internal/complaint"
	"complaints/backend/internal/models"
	"complaints/backend/internal/upload"
	"context"

	"github.com/stretchr/testify/mock"
)

// MockComplaintService is a mock implementation of the ComplaintService interface
type MockComplaintService struct {
	mock.Mock
}

func complaintResult(args mock.Arguments) (*models.Complaint, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Complaint), args.Error(1)
}

func listResult(args mock.Arguments) ([]models.Complaint, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Complaint), args.Error(1)
}

func (m *MockComplaintService) CreateComplaint(ctx context.Context, in complaint.CreateInput, images, pdfs []upload.File) (*models.Complaint, error) {
	return complaintResult(m.Called(ctx, in, images, pdfs))
}

func (m *MockComplaintService) UpdateComplaint(ctx context.Context, c *models.Complaint, in complaint.UpdateInput, user *models.User, images, pdfs []upload.File) (*models.Complaint, error) {
	return complaintResult(m.Called(ctx, c, in, user, images, pdfs))
}

func (m *MockComplaintService) DeleteAttachment(ctx context.Context, c *models.Complaint, attachmentID string, user *models.User) (*models.Complaint, error) {
	return complaintResult(m.Called(ctx, c, attachmentID, user))
}

func (m *MockComplaintService) AcceptComplaint(ctx context.Context, c *models.Complaint, employee *models.User) (*models.Complaint, error) {
	return complaintResult(m.Called(ctx, c, employee))
}

func (m *MockComplaintService) FinishComplaint(ctx context.Context, c *models.Complaint, employee *models.User, resolution string) (*models.Complaint, error) {
	return complaintResult(m.Called(ctx, c, employee, resolution))
}

func (m *MockComplaintService) DeclineComplaint(ctx context.Context, c *models.Complaint, employee *models.User, reason string) (*models.Complaint, error) {
	return complaintResult(m.Called(ctx, c, employee, reason))
}

func (m *MockComplaintService) RequestMoreInfo(ctx context.Context, c *models.Complaint, employee *models.User, message string) (*models.Complaint, error) {
	return complaintResult(m.Called(ctx, c, employee, message))
}

func (m *MockComplaintService) ReleaseClaim(ctx context.Context, c *models.Complaint, employee *models.User) (*models.Complaint, error) {
	return complaintResult(m.Called(ctx, c, employee))
}

func (m *MockComplaintService) ViewComplaint(ctx context.Context, trackingNumber string, viewer *models.User) (*models.Complaint, error) {
	return complaintResult(m.Called(ctx, trackingNumber, viewer))
}

func (m *MockComplaintService) ListUserComplaints(ctx context.Context, userID string, page complaint.Page) ([]models.Complaint, error) {
	return listResult(m.Called(ctx, userID, page))
}

func (m *MockComplaintService) ListEntityComplaints(ctx context.Context, employee *models.User, statuses []models.ComplaintStatus, page complaint.Page) ([]models.Complaint, error) {
	return listResult(m.Called(ctx, employee, statuses, page))
}

func (m *MockComplaintService) ListAvailableComplaints(ctx context.Context, employee *models.User, page complaint.Page) ([]models.Complaint, error) {
	return listResult(m.Called(ctx, employee, page))
}

func (m *MockComplaintService) ListAssignedComplaints(ctx context.Context, employee *models.User, page complaint.Page) ([]models.Complaint, error) {
	return listResult(m.Called(ctx, employee, page))
}

// MockUserStore is a mock implementation of the UserStore interface
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
