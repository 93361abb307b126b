package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/sunilgawai/pitchreel/internal/domain"
	"github.com/sunilgawai/pitchreel/internal/repository"
	"github.com/sunilgawai/pitchreel/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrValidation         = errors.New("validation failed")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrVideoNotFound      = errors.New("video not found in submission")
	ErrDuplicateOrder     = errors.New("submission already exists for this order")
	ErrRemoteOperation    = errors.New("remote storage operation failed")
)

// UploadResult is the completed upload's metadata as reported by the client
// after the remote store acknowledged the final chunk.
type UploadResult struct {
	URL      string  `json:"url"`
	RemoteID string  `json:"remoteId"`
	Bytes    int64   `json:"bytes"`
	Duration float64 `json:"duration,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
}

// DownloadedVideo carries the bytes and metadata of an admin download.
type DownloadedVideo struct {
	Data        []byte
	FileName    string
	ContentType string
}

// SubmissionService covers the submission lifecycle this system owns:
// creation per paid order, the finalize/commit step of the upload pipeline,
// and the admin review operations with their audit trail.
type SubmissionService interface {
	CreateSubmission(ctx context.Context, orderID, scriptText string, greenScreen bool) (*domain.Submission, error)
	GetSubmission(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error)

	// Upload pipeline
	SignUpload(ctx context.Context, submissionID primitive.ObjectID) (*storage.UploadParams, error)
	FinalizeUpload(ctx context.Context, submissionID primitive.ObjectID, result UploadResult, fileName string, fileSize int64) (*domain.VideoEntry, error)

	// Admin review
	DeleteVideo(ctx context.Context, submissionID primitive.ObjectID, videoURL, performedBy string) error
	DownloadVideo(ctx context.Context, submissionID primitive.ObjectID, videoURL, performedBy string) (*DownloadedVideo, error)
}

// submissionService implements the SubmissionService interface.
type submissionService struct {
	submissionRepo repository.SubmissionRepository
	blobStore      storage.BlobStore
	uploadFolder   string
}

// NewSubmissionService creates a new instance of submissionService.
func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	blobStore storage.BlobStore,
	uploadFolder string,
) SubmissionService {
	if uploadFolder == "" {
		uploadFolder = "submissions"
	}
	return &submissionService{
		submissionRepo: submissionRepo,
		blobStore:      blobStore,
		uploadFolder:   uploadFolder,
	}
}

// CreateSubmission records one submission per paid order, awaiting its upload.
func (s *submissionService) CreateSubmission(ctx context.Context, orderID, scriptText string, greenScreen bool) (*domain.Submission, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrValidation)
	}
	if scriptText == "" {
		return nil, fmt.Errorf("%w: scriptText is required", ErrValidation)
	}

	submission := &domain.Submission{
		OrderID:     orderID,
		ScriptText:  scriptText,
		GreenScreen: greenScreen,
		Status:      domain.StatusAwaitingUpload,
	}

	id, err := s.submissionRepo.Create(ctx, submission)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			return nil, ErrDuplicateOrder
		}
		return nil, err
	}
	submission.ID = id

	return submission, nil
}

// GetSubmission retrieves a submission for the admin review screen.
func (s *submissionService) GetSubmission(ctx context.Context, id primitive.ObjectID) (*domain.Submission, error) {
	submission, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}

// SignUpload issues pre-signed parameters for a direct chunked upload
// targeting this submission's folder in the remote store.
func (s *submissionService) SignUpload(ctx context.Context, submissionID primitive.ObjectID) (*storage.UploadParams, error) {
	submission, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	folder := path.Join(s.uploadFolder, submission.ID.Hex())
	targetID := uuid.NewString()

	return s.blobStore.SignUpload(ctx, folder, targetID)
}

// FinalizeUpload attaches a completed upload's metadata to the submission as
// a video entry, appends a success activity log and moves the status to
// uploaded, all in a single record update. Not idempotent: re-finalizing the
// same result appends a duplicate entry, so each physical upload must be
// finalized exactly once.
func (s *submissionService) FinalizeUpload(ctx context.Context, submissionID primitive.ObjectID, result UploadResult, fileName string, fileSize int64) (*domain.VideoEntry, error) {
	if result.URL == "" || result.RemoteID == "" {
		return nil, fmt.Errorf("%w: upload result with url and remoteId is required", ErrValidation)
	}
	if fileName == "" {
		return nil, fmt.Errorf("%w: fileName is required", ErrValidation)
	}

	submission, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	size := fileSize
	if size == 0 {
		size = result.Bytes
	}

	entry := domain.VideoEntry{
		URL:        result.URL,
		RemoteID:   result.RemoteID,
		FileName:   fileName,
		Size:       size,
		Duration:   result.Duration,
		Width:      result.Width,
		Height:     result.Height,
		UploadedAt: time.Now().UTC(),
	}

	submission.Videos = append(submission.Videos, entry)
	submission.Status = domain.StatusUploaded
	submission.AppendLog(domain.ActivityLogEntry{
		Action:        domain.ActionUpload,
		VideoURL:      entry.URL,
		VideoFileName: entry.FileName,
		RemoteID:      entry.RemoteID,
		Status:        domain.LogSuccess,
		Message:       fmt.Sprintf("Video %q uploaded (%d bytes)", entry.FileName, entry.Size),
	})

	if err := s.submissionRepo.Save(ctx, submission); err != nil {
		return nil, err
	}

	return &entry, nil
}

// DeleteVideo removes a video from the submission after the remote blob is
// confirmed deleted. "deleted" and "already absent" both count as success.
// The outcome is recorded in the activity log on both branches; on failure
// the video list is left untouched and the caller receives the error.
func (s *submissionService) DeleteVideo(ctx context.Context, submissionID primitive.ObjectID, videoURL, performedBy string) error {
	if videoURL == "" {
		return fmt.Errorf("%w: videoUrl is required", ErrValidation)
	}

	submission, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	video, idx := submission.VideoByURL(videoURL)
	if idx < 0 || video.RemoteID == "" {
		return fmt.Errorf("%w: no remote identifier resolvable for video %q", ErrValidation, videoURL)
	}

	result, destroyErr := s.blobStore.Destroy(ctx, video.RemoteID)
	if destroyErr != nil || !result.Removed() {
		failure := destroyErr
		if failure == nil {
			failure = fmt.Errorf("unexpected destroy result %q", result)
		}

		submission.AppendLog(domain.ActivityLogEntry{
			Action:        domain.ActionDelete,
			VideoURL:      video.URL,
			VideoFileName: video.FileName,
			RemoteID:      video.RemoteID,
			Status:        domain.LogFailed,
			Message:       "Failed to delete video from remote storage",
			Error:         failure.Error(),
			PerformedBy:   performedBy,
		})
		// Audit completeness over response latency: the failed attempt is
		// persisted, but a log-save failure must not mask the real error.
		if saveErr := s.submissionRepo.Save(ctx, submission); saveErr != nil {
			log.Printf("ERROR: could not persist failed delete log for submission %s: %v", submissionID.Hex(), saveErr)
		}

		return fmt.Errorf("%w: %v", ErrRemoteOperation, failure)
	}

	submission.RemoveVideoAt(idx)
	submission.AppendLog(domain.ActivityLogEntry{
		Action:        domain.ActionDelete,
		VideoURL:      video.URL,
		VideoFileName: video.FileName,
		RemoteID:      video.RemoteID,
		Status:        domain.LogSuccess,
		Message:       fmt.Sprintf("Video %q deleted", video.FileName),
		Response:      string(result),
		PerformedBy:   performedBy,
	})

	return s.submissionRepo.Save(ctx, submission)
}

// DownloadVideo fetches the video bytes through the remote store for an admin
// to save locally. Download never mutates the video list; only the activity
// log records the attempt.
func (s *submissionService) DownloadVideo(ctx context.Context, submissionID primitive.ObjectID, videoURL, performedBy string) (*DownloadedVideo, error) {
	if videoURL == "" {
		return nil, fmt.Errorf("%w: videoUrl is required", ErrValidation)
	}

	submission, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	video, idx := submission.VideoByURL(videoURL)
	if idx < 0 {
		return nil, ErrVideoNotFound
	}

	data, contentType, fetchErr := s.blobStore.Download(ctx, video.RemoteID)
	if fetchErr != nil {
		submission.AppendLog(domain.ActivityLogEntry{
			Action:        domain.ActionDownload,
			VideoURL:      video.URL,
			VideoFileName: video.FileName,
			RemoteID:      video.RemoteID,
			Status:        domain.LogFailed,
			Message:       "Failed to download video from remote storage",
			Error:         fetchErr.Error(),
			PerformedBy:   performedBy,
		})
		if saveErr := s.submissionRepo.Save(ctx, submission); saveErr != nil {
			log.Printf("ERROR: could not persist failed download log for submission %s: %v", submissionID.Hex(), saveErr)
		}

		return nil, fmt.Errorf("%w: %v", ErrRemoteOperation, fetchErr)
	}

	submission.AppendLog(domain.ActivityLogEntry{
		Action:        domain.ActionDownload,
		VideoURL:      video.URL,
		VideoFileName: video.FileName,
		RemoteID:      video.RemoteID,
		Status:        domain.LogSuccess,
		Message:       fmt.Sprintf("Video %q downloaded (%d bytes)", video.FileName, len(data)),
		PerformedBy:   performedBy,
	})
	if saveErr := s.submissionRepo.Save(ctx, submission); saveErr != nil {
		// The bytes are already in hand; a failed log write is logged, not
		// surfaced as a download failure.
		log.Printf("ERROR: could not persist download log for submission %s: %v", submissionID.Hex(), saveErr)
	}

	return &DownloadedVideo{
		Data:        data,
		FileName:    video.FileName,
		ContentType: contentType,
	}, nil
}
