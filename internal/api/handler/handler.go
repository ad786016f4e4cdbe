package handler

import (
	"complaints/backend/internal/auth"
	"complaints/backend/internal/complaint"
	"complaints/backend/internal/eventhub"
	"complaints/backend/internal/models"
	"complaints/backend/internal/upload"
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ComplaintService is the lifecycle API the handlers drive.
type ComplaintService interface {
	CreateComplaint(ctx context.Context, in complaint.CreateInput, images, pdfs []upload.File) (*models.Complaint, error)
	UpdateComplaint(ctx context.Context, c *models.Complaint, in complaint.UpdateInput, user *models.User, images, pdfs []upload.File) (*models.Complaint, error)
	DeleteAttachment(ctx context.Context, c *models.Complaint, attachmentID string, user *models.User) (*models.Complaint, error)

	AcceptComplaint(ctx context.Context, c *models.Complaint, employee *models.User) (*models.Complaint, error)
	FinishComplaint(ctx context.Context, c *models.Complaint, employee *models.User, resolution string) (*models.Complaint, error)
	DeclineComplaint(ctx context.Context, c *models.Complaint, employee *models.User, reason string) (*models.Complaint, error)
	RequestMoreInfo(ctx context.Context, c *models.Complaint, employee *models.User, message string) (*models.Complaint, error)
	ReleaseClaim(ctx context.Context, c *models.Complaint, employee *models.User) (*models.Complaint, error)

	ViewComplaint(ctx context.Context, trackingNumber string, viewer *models.User) (*models.Complaint, error)
	ListUserComplaints(ctx context.Context, userID string, page complaint.Page) ([]models.Complaint, error)
	ListEntityComplaints(ctx context.Context, employee *models.User, statuses []models.ComplaintStatus, page complaint.Page) ([]models.Complaint, error)
	ListAvailableComplaints(ctx context.Context, employee *models.User, page complaint.Page) ([]models.Complaint, error)
	ListAssignedComplaints(ctx context.Context, employee *models.User, page complaint.Page) ([]models.Complaint, error)
}

// UserStore resolves the authenticated user.
type UserStore interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// Handler holds the dependencies of the HTTP API.
type Handler struct {
	Complaints ComplaintService
	Users      UserStore
	Tokens     *auth.TokenService
	Hub        *eventhub.Hub
	Metrics    http.Handler
}

func NewHandler(complaints ComplaintService, users UserStore, tokens *auth.TokenService, hub *eventhub.Hub) *Handler {
	return &Handler{
		Complaints: complaints,
		Users:      users,
		Tokens:     tokens,
		Hub:        hub,
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	api := r.Group("/api", h.Authenticate())
	{
		citizen := api.Group("/complaints")
		citizen.POST("", h.CreateComplaint)
		citizen.GET("/my", h.MyComplaints)
		citizen.GET("/track/:trackingNumber", h.TrackComplaint)
		citizen.POST("/:trackingNumber/update", h.UpdateComplaint)
		citizen.DELETE("/:trackingNumber/attachments/:attachmentId", h.DeleteAttachment)

		employee := api.Group("/employee", RequireRole(models.RoleEmployee))
		employee.GET("/complaints", h.EntityComplaints)
		employee.GET("/complaints/assigned", h.AssignedComplaints)
		employee.GET("/complaints/:trackingNumber", h.TrackComplaint)
		employee.POST("/complaints/:trackingNumber/accept", h.AcceptComplaint)
		employee.POST("/complaints/:trackingNumber/finish", h.FinishComplaint)
		employee.POST("/complaints/:trackingNumber/decline", h.DeclineComplaint)
		employee.POST("/complaints/:trackingNumber/request-info", h.RequestMoreInfo)
		employee.POST("/complaints/:trackingNumber/unlock", h.ReleaseClaim)
	}

	if h.Hub != nil {
		r.GET("/ws", h.Authenticate(), h.ServeWebSocket)
	}
}

var statusByKind = map[complaint.Kind]int{
	complaint.KindValidation:     http.StatusUnprocessableEntity,
	complaint.KindAuthorization:  http.StatusForbidden,
	complaint.KindStateViolation: http.StatusConflict,
	complaint.KindConflict:       http.StatusConflict,
	complaint.KindNotFound:       http.StatusNotFound,
}

// writeError maps a domain error to its response. Anything else is a 500
// with a generic body; the details are only logged.
func writeError(c *gin.Context, err error) {
	var domainErr *complaint.Error
	status, ok := 0, false
	if errors.As(err, &domainErr) {
		status, ok = statusByKind[domainErr.Kind]
	}
	if !ok {
		log.Printf("ERROR: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	body := gin.H{"error": domainErr.Message, "kind": domainErr.Kind.String()}
	if domainErr.Field != "" {
		body["field"] = domainErr.Field
	}
	c.JSON(status, body)
}
