package api

import (
	"net/http"

	"github.com/sunilgawai/pitchreel/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the HTTP surface: the public submission/upload endpoints
// consumed by the client uploader, and the token-guarded admin review group.
func SetupRoutes(
	router *gin.Engine,
	adminToken string,
	submissionService service.SubmissionService,
) {
	submissionHandler := NewSubmissionHandler(submissionService)
	adminHandler := NewAdminHandler(submissionService)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		submissionGroup := apiV1.Group("/submissions")
		{
			// POST /api/v1/submissions - created once per paid order
			submissionGroup.POST("", submissionHandler.CreateSubmission)
			// POST /api/v1/submissions/{id}/sign-upload
			submissionGroup.POST("/:id/sign-upload", submissionHandler.SignUpload)
			// POST /api/v1/submissions/{id}/finalize-upload
			submissionGroup.POST("/:id/finalize-upload", submissionHandler.FinalizeUpload)
		}

		adminGroup := apiV1.Group("/admin")
		adminGroup.Use(AdminAuthMiddleware(adminToken))
		{
			// GET /api/v1/admin/submissions/{id}
			adminGroup.GET("/submissions/:id", adminHandler.GetSubmission)
			// DELETE /api/v1/admin/submissions/{id}/delete-video
			adminGroup.DELETE("/submissions/:id/delete-video", adminHandler.DeleteVideo)
			// GET /api/v1/admin/submissions/{id}/download-video?url=...
			adminGroup.GET("/submissions/:id/download-video", adminHandler.DownloadVideo)
		}
	}
}
