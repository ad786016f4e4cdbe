package handler

import (
	"complaints/backend/internal/models"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type resolutionRequest struct {
	Resolution string `json:"resolution"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type messageRequest struct {
	Message string `json:"message"`
}

// EntityComplaints lists the employee's entity complaints. ?status=a,b narrows
// by status; ?available=true lists only the ones that can be accepted now.
func (h *Handler) EntityComplaints(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	var (
		list []models.Complaint
		err  error
	)
	if c.Query("available") == "true" {
		list, err = h.Complaints.ListAvailableComplaints(ctx, user, pageParam(c))
	} else {
		list, err = h.Complaints.ListEntityComplaints(ctx, user, statusParam(c), pageParam(c))
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// AssignedComplaints lists complaints assigned to the employee.
func (h *Handler) AssignedComplaints(c *gin.Context) {
	list, err := h.Complaints.ListAssignedComplaints(c.Request.Context(), currentUser(c), pageParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func (h *Handler) AcceptComplaint(c *gin.Context) {
	h.employeeAction(c, func(target *models.Complaint, user *models.User) (*models.Complaint, error) {
		return h.Complaints.AcceptComplaint(c.Request.Context(), target, user)
	})
}

func (h *Handler) FinishComplaint(c *gin.Context) {
	var req resolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.employeeAction(c, func(target *models.Complaint, user *models.User) (*models.Complaint, error) {
		return h.Complaints.FinishComplaint(c.Request.Context(), target, user, req.Resolution)
	})
}

func (h *Handler) DeclineComplaint(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.employeeAction(c, func(target *models.Complaint, user *models.User) (*models.Complaint, error) {
		return h.Complaints.DeclineComplaint(c.Request.Context(), target, user, req.Reason)
	})
}

func (h *Handler) RequestMoreInfo(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.employeeAction(c, func(target *models.Complaint, user *models.User) (*models.Complaint, error) {
		return h.Complaints.RequestMoreInfo(c.Request.Context(), target, user, req.Message)
	})
}

// ReleaseClaim gives up the employee's claim without finishing the complaint.
func (h *Handler) ReleaseClaim(c *gin.Context) {
	h.employeeAction(c, func(target *models.Complaint, user *models.User) (*models.Complaint, error) {
		return h.Complaints.ReleaseClaim(c.Request.Context(), target, user)
	})
}

// employeeAction loads the addressed complaint (which also releases an
// expired lock) and runs action on it.
func (h *Handler) employeeAction(c *gin.Context, action func(target *models.Complaint, user *models.User) (*models.Complaint, error)) {
	user := currentUser(c)

	target, err := h.Complaints.ViewComplaint(c.Request.Context(), c.Param("trackingNumber"), user)
	if err != nil {
		writeError(c, err)
		return
	}

	updated, err := action(target, user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func statusParam(c *gin.Context) []models.ComplaintStatus {
	raw := c.Query("status")
	if raw == "" {
		return nil
	}
	var out []models.ComplaintStatus
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, models.ComplaintStatus(s))
		}
	}
	return out
}
