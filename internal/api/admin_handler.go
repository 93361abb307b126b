package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sunilgawai/pitchreel/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminHandler holds dependencies for the admin review endpoints.
type AdminHandler struct {
	submissionService service.SubmissionService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(submissionService service.SubmissionService) *AdminHandler {
	return &AdminHandler{submissionService: submissionService}
}

// DeleteVideoRequest identifies which video of a submission to delete.
type DeleteVideoRequest struct {
	VideoURL string `json:"videoUrl" binding:"required"`
}

// GetSubmission handles GET /admin/submissions/:id.
func (h *AdminHandler) GetSubmission(c *gin.Context) {
	id, ok := submissionIDFromPath(c)
	if !ok {
		return
	}

	submission, err := h.submissionService.GetSubmission(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to retrieve submission.")
		}
		return
	}

	c.JSON(http.StatusOK, MapSubmissionToResponse(submission))
}

// DeleteVideo handles DELETE /admin/submissions/:id/delete-video. The remote
// blob is destroyed first; the submission record only changes once the remote
// store confirms the object is gone.
func (h *AdminHandler) DeleteVideo(c *gin.Context) {
	id, ok := submissionIDFromPath(c)
	if !ok {
		return
	}

	var req DeleteVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	err := h.submissionService.DeleteVideo(c.Request.Context(), id, req.VideoURL, adminActor(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubmissionNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrRemoteOperation):
			// Surface the remote error verbatim to aid support diagnosis.
			abortWithError(c, http.StatusInternalServerError, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to delete video.")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DownloadVideo handles GET /admin/submissions/:id/download-video?url=...
// and streams the bytes back as an attachment.
func (h *AdminHandler) DownloadVideo(c *gin.Context) {
	id, ok := submissionIDFromPath(c)
	if !ok {
		return
	}

	videoURL := c.Query("url")
	if videoURL == "" {
		abortWithError(c, http.StatusBadRequest, "Query parameter 'url' is required.")
		return
	}

	video, err := h.submissionService.DownloadVideo(c.Request.Context(), id, videoURL, adminActor(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubmissionNotFound), errors.Is(err, service.ErrVideoNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrRemoteOperation):
			abortWithError(c, http.StatusInternalServerError, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to download video.")
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", video.FileName))
	c.Data(http.StatusOK, video.ContentType, video.Data)
}

// adminActor names the audit-log actor. The admin surface is a shared-token
// gate with no per-user identity.
func adminActor(c *gin.Context) string {
	return "admin"
}
