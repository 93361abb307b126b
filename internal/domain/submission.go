package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionStatus tracks where a paid order sits in the upload lifecycle.
type SubmissionStatus string

const (
	StatusAwaitingUpload SubmissionStatus = "awaiting_upload"
	StatusUploaded       SubmissionStatus = "uploaded"
)

// LogAction identifies which media operation an activity log entry records.
type LogAction string

const (
	ActionUpload   LogAction = "upload"
	ActionDownload LogAction = "download"
	ActionDelete   LogAction = "delete"
)

// LogStatus is the outcome recorded on an activity log entry.
type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogFailed  LogStatus = "failed"
)

// VideoEntry stores metadata about one uploaded recording.
// The actual media resides in the remote blob store.
type VideoEntry struct {
	URL        string    `bson:"url" json:"url"`                               // Secure URL returned by the remote store
	RemoteID   string    `bson:"remoteId" json:"remoteId"`                     // Provider-side object identifier
	FileName   string    `bson:"fileName" json:"fileName"`                     // Original filename provided by the client
	Size       int64     `bson:"size" json:"size"`                             // File size in bytes
	Duration   float64   `bson:"duration,omitempty" json:"duration,omitempty"` // Seconds, when the provider reports it
	Width      int       `bson:"width,omitempty" json:"width,omitempty"`
	Height     int       `bson:"height,omitempty" json:"height,omitempty"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
}

// ActivityLogEntry is one append-only audit record. Entries are written for
// every attempted upload/download/delete, including failed attempts, and are
// never mutated or removed.
type ActivityLogEntry struct {
	Action        LogAction `bson:"action" json:"action"`
	VideoURL      string    `bson:"videoUrl" json:"videoUrl"`
	VideoFileName string    `bson:"videoFileName" json:"videoFileName"`
	RemoteID      string    `bson:"remoteId" json:"remoteId"`
	Status        LogStatus `bson:"status" json:"status"`
	Message       string    `bson:"message" json:"message"`
	Response      string    `bson:"response,omitempty" json:"response,omitempty"`
	Error         string    `bson:"error,omitempty" json:"error,omitempty"`
	PerformedBy   string    `bson:"performedBy,omitempty" json:"performedBy,omitempty"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
}

// Submission is the per-order record: the customer's script plus every
// uploaded recording and the audit trail of operations against them.
// Invariant: Status == StatusUploaded iff Videos is non-empty.
type Submission struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID      string             `bson:"orderId" json:"orderId"`
	ScriptText   string             `bson:"scriptText" json:"scriptText"`
	GreenScreen  bool               `bson:"greenScreen" json:"greenScreen"`
	Status       SubmissionStatus   `bson:"status" json:"status"`
	Videos       []VideoEntry       `bson:"videos" json:"videos"`
	ActivityLogs []ActivityLogEntry `bson:"activityLogs" json:"activityLogs"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// VideoByURL returns the entry whose URL matches, with its index in Videos.
// Index is -1 when no entry matches.
func (s *Submission) VideoByURL(url string) (VideoEntry, int) {
	for i, v := range s.Videos {
		if v.URL == url {
			return v, i
		}
	}
	return VideoEntry{}, -1
}

// RemoveVideoAt drops the entry at index i and re-evaluates the status
// invariant: an empty video list reverts the submission to awaiting_upload.
func (s *Submission) RemoveVideoAt(i int) {
	if i < 0 || i >= len(s.Videos) {
		return
	}
	s.Videos = append(s.Videos[:i], s.Videos[i+1:]...)
	if len(s.Videos) == 0 {
		s.Status = StatusAwaitingUpload
	}
}

// AppendLog appends one audit entry, stamping it if the caller did not.
func (s *Submission) AppendLog(entry ActivityLogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.ActivityLogs = append(s.ActivityLogs, entry)
}
