package storage

import (
	"context"
	"time"
)

// Default expiry duration for signed URLs
const DefaultSignedURLExpiry = 15 * time.Minute

// UploadParams are the pre-signed parameters a client attaches to every chunk
// request so the remote store can authenticate the direct upload.
type UploadParams struct {
	UploadURL string `json:"uploadUrl"`
	APIKey    string `json:"apiKey,omitempty"`
	Signature string `json:"signature,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Folder    string `json:"folder,omitempty"`
	TargetID  string `json:"targetId"`
}

// DestroyResult is the remote store's verdict on a delete request.
// Anything other than "ok" or "not found" is a failure.
type DestroyResult string

const (
	DestroyOK       DestroyResult = "ok"
	DestroyNotFound DestroyResult = "not found"
)

// Removed reports whether the object is gone after the destroy call,
// treating "already absent" the same as a fresh delete.
func (r DestroyResult) Removed() bool {
	return r == DestroyOK || r == DestroyNotFound
}

// BlobStore defines the interface for the remote media-hosting provider.
// Implementations are constructed explicitly with their configuration and
// injected; there is no process-wide SDK singleton.
type BlobStore interface {
	// SignUpload issues the pre-signed parameters for a direct client upload
	// targeting folder/targetID.
	SignUpload(ctx context.Context, folder, targetID string) (*UploadParams, error)

	// Destroy removes the remote object. "not found" is reported as such so
	// callers can treat an already-absent object as deleted.
	Destroy(ctx context.Context, remoteID string) (DestroyResult, error)

	// SignedDownloadURL creates a time-limited URL for fetching the object,
	// optionally forcing attachment disposition.
	SignedDownloadURL(ctx context.Context, remoteID string, attachment bool) (string, error)

	// Download fetches the object bytes and their content type.
	Download(ctx context.Context, remoteID string) ([]byte, string, error)
}
