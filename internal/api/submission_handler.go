package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/sunilgawai/pitchreel/internal/domain"
	"github.com/sunilgawai/pitchreel/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionHandler holds the submission service dependency.
type SubmissionHandler struct {
	submissionService service.SubmissionService
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionService service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService}
}

// --- DTOs for API (Data Transfer Objects) ---

// CreateSubmissionRequest defines the expected JSON for creating a submission
// after an order is paid.
type CreateSubmissionRequest struct {
	OrderID     string `json:"orderId" binding:"required"`
	ScriptText  string `json:"scriptText" binding:"required"`
	GreenScreen bool   `json:"greenScreen"`
}

// FinalizeUploadRequest carries a completed upload's result metadata.
type FinalizeUploadRequest struct {
	UploadResult service.UploadResult `json:"uploadResult" binding:"required"`
	FileName     string               `json:"fileName" binding:"required"`
	FileSize     int64                `json:"fileSize"`
}

// VideoResponse is the DTO for returning video entry details.
type VideoResponse struct {
	URL        string    `json:"url"`
	RemoteID   string    `json:"remoteId"`
	FileName   string    `json:"fileName"`
	Size       int64     `json:"size"`
	Duration   float64   `json:"duration,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// SubmissionResponse is the DTO for returning submission details.
type SubmissionResponse struct {
	ID           string                    `json:"id"`
	OrderID      string                    `json:"orderId"`
	ScriptText   string                    `json:"scriptText"`
	GreenScreen  bool                      `json:"greenScreen"`
	Status       domain.SubmissionStatus   `json:"status"`
	Videos       []VideoResponse           `json:"videos"`
	ActivityLogs []domain.ActivityLogEntry `json:"activityLogs"`
	CreatedAt    time.Time                 `json:"createdAt"`
	UpdatedAt    time.Time                 `json:"updatedAt"`
}

// MapVideoToResponse converts a domain.VideoEntry to VideoResponse DTO.
func MapVideoToResponse(v *domain.VideoEntry) VideoResponse {
	if v == nil {
		return VideoResponse{}
	}
	return VideoResponse{
		URL:        v.URL,
		RemoteID:   v.RemoteID,
		FileName:   v.FileName,
		Size:       v.Size,
		Duration:   v.Duration,
		Width:      v.Width,
		Height:     v.Height,
		UploadedAt: v.UploadedAt,
	}
}

// MapSubmissionToResponse converts a domain.Submission to SubmissionResponse DTO.
func MapSubmissionToResponse(s *domain.Submission) SubmissionResponse {
	if s == nil {
		return SubmissionResponse{}
	}
	videos := make([]VideoResponse, len(s.Videos))
	for i, v := range s.Videos {
		videos[i] = MapVideoToResponse(&v)
	}
	return SubmissionResponse{
		ID:           s.ID.Hex(),
		OrderID:      s.OrderID,
		ScriptText:   s.ScriptText,
		GreenScreen:  s.GreenScreen,
		Status:       s.Status,
		Videos:       videos,
		ActivityLogs: s.ActivityLogs,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// submissionIDFromPath parses the :id path parameter.
func submissionIDFromPath(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid submission ID format.")
		return primitive.NilObjectID, false
	}
	return id, true
}

// --- Handler Methods ---

// CreateSubmission handles POST /submissions.
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	var req CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	submission, err := h.submissionService.CreateSubmission(c.Request.Context(), req.OrderID, req.ScriptText, req.GreenScreen)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrDuplicateOrder):
			abortWithError(c, http.StatusConflict, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to create submission.")
		}
		return
	}

	c.JSON(http.StatusCreated, MapSubmissionToResponse(submission))
}

// SignUpload handles POST /submissions/:id/sign-upload. It returns the
// pre-signed parameters the client attaches to every chunk request.
func (h *SubmissionHandler) SignUpload(c *gin.Context) {
	id, ok := submissionIDFromPath(c)
	if !ok {
		return
	}

	params, err := h.submissionService.SignUpload(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubmissionNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "Failed to sign upload.")
		}
		return
	}

	c.JSON(http.StatusOK, params)
}

// FinalizeUpload handles POST /submissions/:id/finalize-upload. Called once
// per physical upload after the remote store acknowledged the final chunk.
func (h *SubmissionHandler) FinalizeUpload(c *gin.Context) {
	id, ok := submissionIDFromPath(c)
	if !ok {
		return
	}

	var req FinalizeUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	video, err := h.submissionService.FinalizeUpload(c.Request.Context(), id, req.UploadResult, req.FileName, req.FileSize)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubmissionNotFound):
			abortWithError(c, http.StatusNotFound, err.Error())
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to finalize upload.")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "video": MapVideoToResponse(video)})
}
