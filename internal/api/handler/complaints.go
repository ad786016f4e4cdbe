package handler

import (
	"complaints/backend/internal/complaint"
	"complaints/backend/internal/upload"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// maxMultipartMemory bounds the part of an upload kept in memory.
const maxMultipartMemory = 32 << 20

// CreateComplaint files a complaint for the current user. Attachments come as
// multipart files under "images[]" and "pdfs[]".
func (h *Handler) CreateComplaint(c *gin.Context) {
	user := currentUser(c)

	images, pdfs, cleanup, err := formAttachments(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	defer cleanup()

	created, err := h.Complaints.CreateComplaint(c.Request.Context(), complaint.CreateInput{
		UserID:        user.ID,
		EntityID:      c.PostForm("entity_id"),
		ComplaintKind: c.PostForm("complaint_kind"),
		Description:   c.PostForm("description"),
		Location:      c.PostForm("location"),
	}, images, pdfs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// MyComplaints lists the current user's complaints.
func (h *Handler) MyComplaints(c *gin.Context) {
	list, err := h.Complaints.ListUserComplaints(c.Request.Context(), currentUser(c).ID, pageParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// TrackComplaint shows one complaint to anyone allowed to see it.
func (h *Handler) TrackComplaint(c *gin.Context) {
	found, err := h.Complaints.ViewComplaint(c.Request.Context(), c.Param("trackingNumber"), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// UpdateComplaint applies a citizen edit. Absent form fields stay unchanged.
func (h *Handler) UpdateComplaint(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	images, pdfs, cleanup, err := formAttachments(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	defer cleanup()

	target, err := h.Complaints.ViewComplaint(ctx, c.Param("trackingNumber"), user)
	if err != nil {
		writeError(c, err)
		return
	}

	updated, err := h.Complaints.UpdateComplaint(ctx, target, complaint.UpdateInput{
		ComplaintKind: optionalForm(c, "complaint_kind"),
		Description:   optionalForm(c, "description"),
		Location:      optionalForm(c, "location"),
	}, user, images, pdfs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteAttachment removes one attachment of the current user's complaint.
func (h *Handler) DeleteAttachment(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	target, err := h.Complaints.ViewComplaint(ctx, c.Param("trackingNumber"), user)
	if err != nil {
		writeError(c, err)
		return
	}

	updated, err := h.Complaints.DeleteAttachment(ctx, target, c.Param("attachmentId"), user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func optionalForm(c *gin.Context, key string) *string {
	if v, ok := c.GetPostForm(key); ok {
		return &v
	}
	return nil
}

func pageParam(c *gin.Context) complaint.Page {
	number, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("per_page"))
	return complaint.Page{Number: number, Size: size}
}

// formAttachments opens the uploaded files. A request that is not multipart
// simply has no attachments. cleanup closes every opened file.
func formAttachments(c *gin.Context) (images, pdfs []upload.File, cleanup func(), err error) {
	var opened []multipart.File
	cleanup = func() {
		for _, f := range opened {
			f.Close()
		}
	}

	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, cleanup, nil
		}
		return nil, nil, cleanup, err
	}
	form := c.Request.MultipartForm

	collect := func(field string) ([]upload.File, error) {
		headers := append(form.File[field+"[]"], form.File[field]...)
		files := make([]upload.File, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			opened = append(opened, f)
			files = append(files, upload.File{Name: fh.Filename, Content: f})
		}
		return files, nil
	}

	if images, err = collect("images"); err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}
	if pdfs, err = collect("pdfs"); err != nil {
		cleanup()
		return nil, nil, func() {}, err
	}
	return images, pdfs, cleanup, nil
}
