package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sunilgawai/pitchreel/internal/domain"
	"github.com/sunilgawai/pitchreel/internal/service"
	"github.com/sunilgawai/pitchreel/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testAdminToken = "test-admin-token"

// stubSubmissionService scripts each service method per test case.
type stubSubmissionService struct {
	createFn   func(ctx context.Context, orderID, scriptText string, greenScreen bool) (*domain.Submission, error)
	getFn      func(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error)
	signFn     func(ctx context.Context, id primitive.ObjectID) (*storage.UploadParams, error)
	finalizeFn func(ctx context.Context, id primitive.ObjectID, result service.UploadResult, fileName string, fileSize int64) (*domain.VideoEntry, error)
	deleteFn   func(ctx context.Context, id primitive.ObjectID, videoURL, performedBy string) error
	downloadFn func(ctx context.Context, id primitive.ObjectID, videoURL, performedBy string) (*service.DownloadedVideo, error)
}

func (s *stubSubmissionService) CreateSubmission(ctx context.Context, orderID, scriptText string, greenScreen bool) (*domain.Submission, error) {
	return s.createFn(ctx, orderID, scriptText, greenScreen)
}

func (s *stubSubmissionService) GetSubmission(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error) {
	return s.getFn(ctx, id)
}

func (s *stubSubmissionService) SignUpload(ctx context.Context, id primitive.ObjectID) (*storage.UploadParams, error) {
	return s.signFn(ctx, id)
}

func (s *stubSubmissionService) FinalizeUpload(ctx context.Context, id primitive.ObjectID, result service.UploadResult, fileName string, fileSize int64) (*domain.VideoEntry, error) {
	return s.finalizeFn(ctx, id, result, fileName, fileSize)
}

func (s *stubSubmissionService) DeleteVideo(ctx context.Context, id primitive.ObjectID, videoURL, performedBy string) error {
	return s.deleteFn(ctx, id, videoURL, performedBy)
}

func (s *stubSubmissionService) DownloadVideo(ctx context.Context, id primitive.ObjectID, videoURL, performedBy string) (*service.DownloadedVideo, error) {
	return s.downloadFn(ctx, id, videoURL, performedBy)
}

func newTestRouter(svc service.SubmissionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, testAdminToken, svc)
	return router
}

func doRequest(router *gin.Engine, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAdminToken}
}

func submissionFixture() *domain.Submission {
	return &domain.Submission{
		ID:         primitive.NewObjectID(),
		OrderID:    "order-1",
		ScriptText: "say hello",
		Status:     domain.StatusUploaded,
		Videos: []domain.VideoEntry{{
			URL:        "https://cdn.example/v/take1.mp4",
			RemoteID:   "submissions/abc/take1",
			FileName:   "take1.mp4",
			Size:       1000,
			UploadedAt: time.Now().UTC(),
		}},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

// --- Public endpoints ---

func TestCreateSubmissionEndpoint(t *testing.T) {
	svc := &stubSubmissionService{
		createFn: func(ctx context.Context, orderID, scriptText string, greenScreen bool) (*domain.Submission, error) {
			assert.Equal(t, "order-1", orderID)
			assert.True(t, greenScreen)
			return &domain.Submission{
				ID:          primitive.NewObjectID(),
				OrderID:     orderID,
				ScriptText:  scriptText,
				GreenScreen: greenScreen,
				Status:      domain.StatusAwaitingUpload,
			}, nil
		},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/submissions",
		gin.H{"orderId": "order-1", "scriptText": "say hello", "greenScreen": true}, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.OrderID)
	assert.Equal(t, domain.StatusAwaitingUpload, resp.Status)
}

func TestCreateSubmissionEndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantCode   int
	}{
		{"validation", service.ErrValidation, http.StatusBadRequest},
		{"duplicate order", service.ErrDuplicateOrder, http.StatusConflict},
		{"internal", fmt.Errorf("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubSubmissionService{
				createFn: func(ctx context.Context, orderID, scriptText string, greenScreen bool) (*domain.Submission, error) {
					return nil, tt.serviceErr
				},
			}
			router := newTestRouter(svc)

			w := doRequest(router, http.MethodPost, "/api/v1/submissions",
				gin.H{"orderId": "order-1", "scriptText": "s"}, nil)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestCreateSubmissionEndpointMissingFields(t *testing.T) {
	router := newTestRouter(&stubSubmissionService{})

	w := doRequest(router, http.MethodPost, "/api/v1/submissions", gin.H{"orderId": "order-1"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "scriptText is required at the binding layer")
}

func TestSignUploadEndpoint(t *testing.T) {
	id := primitive.NewObjectID()
	svc := &stubSubmissionService{
		signFn: func(ctx context.Context, gotID primitive.ObjectID) (*storage.UploadParams, error) {
			assert.Equal(t, id, gotID)
			return &storage.UploadParams{
				UploadURL: "https://media.example/upload",
				APIKey:    "key",
				Signature: "sig",
				Timestamp: 1700000000,
				Folder:    "submissions/" + gotID.Hex(),
				TargetID:  "target-1",
			}, nil
		},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/submissions/"+id.Hex()+"/sign-upload", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var params storage.UploadParams
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &params))
	assert.Equal(t, "https://media.example/upload", params.UploadURL)
	assert.Equal(t, "target-1", params.TargetID)
}

func TestSignUploadEndpointBadID(t *testing.T) {
	router := newTestRouter(&stubSubmissionService{})

	w := doRequest(router, http.MethodPost, "/api/v1/submissions/not-a-hex-id/sign-upload", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignUploadEndpointNotFound(t *testing.T) {
	svc := &stubSubmissionService{
		signFn: func(ctx context.Context, id primitive.ObjectID) (*storage.UploadParams, error) {
			return nil, service.ErrSubmissionNotFound
		},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/submissions/"+primitive.NewObjectID().Hex()+"/sign-upload", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFinalizeUploadEndpoint(t *testing.T) {
	id := primitive.NewObjectID()
	svc := &stubSubmissionService{
		finalizeFn: func(ctx context.Context, gotID primitive.ObjectID, result service.UploadResult, fileName string, fileSize int64) (*domain.VideoEntry, error) {
			assert.Equal(t, id, gotID)
			assert.Equal(t, "take1.mp4", fileName)
			assert.Equal(t, int64(5000), fileSize)
			assert.Equal(t, "remote-1", result.RemoteID)
			return &domain.VideoEntry{
				URL:      result.URL,
				RemoteID: result.RemoteID,
				FileName: fileName,
				Size:     fileSize,
			}, nil
		},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodPost, "/api/v1/submissions/"+id.Hex()+"/finalize-upload", gin.H{
		"uploadResult": gin.H{"url": "https://cdn.example/v.mp4", "remoteId": "remote-1", "bytes": 5000},
		"fileName":     "take1.mp4",
		"fileSize":     5000,
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool          `json:"success"`
		Video   VideoResponse `json:"video"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "take1.mp4", resp.Video.FileName)
}

func TestFinalizeUploadEndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantCode   int
	}{
		{"validation", service.ErrValidation, http.StatusBadRequest},
		{"not found", service.ErrSubmissionNotFound, http.StatusNotFound},
		{"internal", fmt.Errorf("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubSubmissionService{
				finalizeFn: func(ctx context.Context, id primitive.ObjectID, result service.UploadResult, fileName string, fileSize int64) (*domain.VideoEntry, error) {
					return nil, tt.serviceErr
				},
			}
			router := newTestRouter(svc)

			w := doRequest(router, http.MethodPost, "/api/v1/submissions/"+primitive.NewObjectID().Hex()+"/finalize-upload", gin.H{
				"uploadResult": gin.H{"url": "u", "remoteId": "r"},
				"fileName":     "f.mp4",
			}, nil)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

// --- Admin auth ---

func TestAdminEndpointsRequireToken(t *testing.T) {
	submission := submissionFixture()
	svc := &stubSubmissionService{
		getFn: func(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error) {
			return submission, nil
		},
	}
	router := newTestRouter(svc)
	target := "/api/v1/admin/submissions/" + submission.ID.Hex()

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"no header", nil},
		{"malformed header", map[string]string{"Authorization": "token-without-scheme"}},
		{"wrong scheme", map[string]string{"Authorization": "Basic " + testAdminToken}},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, target, nil, tt.headers)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	w := doRequest(router, http.MethodGet, target, nil, adminHeaders())
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuthRefusesWhenUnconfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, "", &stubSubmissionService{})

	w := doRequest(router, http.MethodGet, "/api/v1/admin/submissions/"+primitive.NewObjectID().Hex(), nil,
		map[string]string{"Authorization": "Bearer anything"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Admin endpoints ---

func TestAdminGetSubmission(t *testing.T) {
	submission := submissionFixture()
	svc := &stubSubmissionService{
		getFn: func(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error) {
			assert.Equal(t, submission.ID, id)
			return submission, nil
		},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet, "/api/v1/admin/submissions/"+submission.ID.Hex(), nil, adminHeaders())

	require.Equal(t, http.StatusOK, w.Code)
	var resp SubmissionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, submission.ID.Hex(), resp.ID)
	require.Len(t, resp.Videos, 1)
	assert.Equal(t, "take1.mp4", resp.Videos[0].FileName)
}

func TestAdminDeleteVideo(t *testing.T) {
	id := primitive.NewObjectID()
	svc := &stubSubmissionService{
		deleteFn: func(ctx context.Context, gotID primitive.ObjectID, videoURL, performedBy string) error {
			assert.Equal(t, id, gotID)
			assert.Equal(t, "https://cdn.example/v/take1.mp4", videoURL)
			assert.Equal(t, "admin", performedBy)
			return nil
		},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodDelete, "/api/v1/admin/submissions/"+id.Hex()+"/delete-video",
		gin.H{"videoUrl": "https://cdn.example/v/take1.mp4"}, adminHeaders())

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success": true}`, w.Body.String())
}

func TestAdminDeleteVideoRemoteFailureSurfaced(t *testing.T) {
	svc := &stubSubmissionService{
		deleteFn: func(ctx context.Context, id primitive.ObjectID, videoURL, performedBy string) error {
			return fmt.Errorf("%w: provider exploded", service.ErrRemoteOperation)
		},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodDelete, "/api/v1/admin/submissions/"+primitive.NewObjectID().Hex()+"/delete-video",
		gin.H{"videoUrl": "https://cdn.example/v/take1.mp4"}, adminHeaders())

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "provider exploded")
}

func TestAdminDownloadVideo(t *testing.T) {
	id := primitive.NewObjectID()
	svc := &stubSubmissionService{
		downloadFn: func(ctx context.Context, gotID primitive.ObjectID, videoURL, performedBy string) (*service.DownloadedVideo, error) {
			assert.Equal(t, "https://cdn.example/v/take1.mp4", videoURL)
			return &service.DownloadedVideo{
				Data:        []byte("video bytes"),
				FileName:    "take1.mp4",
				ContentType: "video/mp4",
			}, nil
		},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet,
		"/api/v1/admin/submissions/"+id.Hex()+"/download-video?url=https%3A%2F%2Fcdn.example%2Fv%2Ftake1.mp4",
		nil, adminHeaders())

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="take1.mp4"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))
	assert.Equal(t, "video bytes", w.Body.String())
}

func TestAdminDownloadVideoMissingURL(t *testing.T) {
	router := newTestRouter(&stubSubmissionService{})

	w := doRequest(router, http.MethodGet,
		"/api/v1/admin/submissions/"+primitive.NewObjectID().Hex()+"/download-video", nil, adminHeaders())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminDownloadVideoNotFound(t *testing.T) {
	svc := &stubSubmissionService{
		downloadFn: func(ctx context.Context, id primitive.ObjectID, videoURL, performedBy string) (*service.DownloadedVideo, error) {
			return nil, service.ErrVideoNotFound
		},
	}
	router := newTestRouter(svc)

	w := doRequest(router, http.MethodGet,
		"/api/v1/admin/submissions/"+primitive.NewObjectID().Hex()+"/download-video?url=x", nil, adminHeaders())
	assert.Equal(t, http.StatusNotFound, w.Code)
}
