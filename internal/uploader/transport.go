package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sunilgawai/pitchreel/internal/storage"
)

// DefaultAttemptTimeout bounds a single chunk HTTP exchange. Exceeding it
// counts as a failed attempt subject to retry.
const DefaultAttemptTimeout = 5 * time.Minute

// Result is the remote store's JSON reply to a chunk request. Intermediate
// chunks return a mostly empty body; the final chunk of a session returns the
// complete-object metadata, which is the sole source of the upload's outcome.
type Result struct {
	RemoteID  string  `json:"public_id"`
	SecureURL string  `json:"secure_url"`
	Bytes     int64   `json:"bytes"`
	Duration  float64 `json:"duration,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	Done      bool    `json:"done,omitempty"`
}

// FileMeta identifies the file a chunk belongs to.
type FileMeta struct {
	Name string
	Size int64
}

// ChunkUploadError reports a chunk whose transfer exhausted its retries.
type ChunkUploadError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("chunk %d failed after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *ChunkUploadError) Unwrap() error { return e.Err }

// ChunkTransport uploads single chunks to the remote store with a bounded
// exponential-backoff retry policy.
type ChunkTransport struct {
	Client         *http.Client
	MaxRetries     int           // additional attempts after the first
	RetryDelay     time.Duration // first backoff; doubles per attempt
	AttemptTimeout time.Duration
}

// progressReader reports bytes as the HTTP client consumes the request body.
// The callback is telemetry only; it may fire zero or many times per chunk.
type progressReader struct {
	r       io.Reader
	onBytes func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.onBytes != nil {
		p.onBytes(int64(n))
	}
	return n, err
}

// UploadChunk sends one chunk, retrying transport failures (network error,
// timeout, non-2xx status) up to MaxRetries additional times with exponential
// backoff. The terminal failure surfaces as *ChunkUploadError; it is never
// silently dropped. offset is the chunk's first byte position within the file.
func (t *ChunkTransport) UploadChunk(
	ctx context.Context,
	chunk []byte,
	offset int64,
	index, totalChunks int,
	meta FileMeta,
	params *storage.UploadParams,
	sessionID string,
	onBytes func(int64),
) (*Result, error) {
	body, contentType, err := buildChunkBody(chunk, meta, params)
	if err != nil {
		return nil, err
	}

	timeout := t.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	rangeHeader := fmt.Sprintf("bytes %d-%d/%d", offset, offset+int64(len(chunk))-1, meta.Size)

	delay := t.RetryDelay
	var lastErr error
	attempts := t.MaxRetries + 1

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &ChunkUploadError{Index: index, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}

		result, err := t.attempt(ctx, timeout, client, body, contentType, rangeHeader, params.UploadURL, sessionID, onBytes)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// The caller's cancellation is terminal; only transport failures retry.
		if ctx.Err() != nil {
			return nil, &ChunkUploadError{Index: index, Attempts: attempt + 1, Err: ctx.Err()}
		}
	}

	return nil, &ChunkUploadError{Index: index, Attempts: attempts, Err: lastErr}
}

func (t *ChunkTransport) attempt(
	ctx context.Context,
	timeout time.Duration,
	client *http.Client,
	body []byte,
	contentType, rangeHeader, uploadURL, sessionID string,
	onBytes func(int64),
) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, uploadURL,
		&progressReader{r: bytes.NewReader(body), onBytes: onBytes})
	if err != nil {
		return nil, err
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Content-Range", rangeHeader)
	req.Header.Set("X-Unique-Upload-Id", sessionID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	result := &Result{}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("unparsable response: %w", err)
		}
	}
	return result, nil
}

// buildChunkBody assembles the multipart form carrying the chunk bytes plus
// the pre-signed parameters the remote store authenticates against.
func buildChunkBody(chunk []byte, meta FileMeta, params *storage.UploadParams) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"api_key":   params.APIKey,
		"timestamp": fmt.Sprintf("%d", params.Timestamp),
		"signature": params.Signature,
		"folder":    params.Folder,
		"public_id": params.TargetID,
	}
	for k, v := range fields {
		if v == "" || v == "0" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	part, err := mw.CreateFormFile("file", meta.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(chunk); err != nil {
		return nil, "", err
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
