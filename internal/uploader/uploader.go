// Package uploader implements the client side of the chunked, resumable
// upload pipeline: a file is split into fixed-size chunks which are sent to
// the remote store strictly in index order under one session id, with
// progress persisted after every committed chunk so an interrupted upload
// resumes without re-sending committed bytes.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sunilgawai/pitchreel/internal/storage"

	"github.com/google/uuid"
)

// ErrEmptyResult means the chunk loop finished without capturing the remote
// store's final metadata. The caller must restart the whole upload.
var ErrEmptyResult = errors.New("upload completed with no final result from the remote store")

// Progress is a telemetry snapshot delivered to the OnProgress callback.
type Progress struct {
	BytesUploaded  int64
	TotalBytes     int64
	Percent        float64
	ChunkIndex     int
	TotalChunks    int
	BytesPerSecond float64
	ETA            time.Duration
}

// Config tunes one Uploader. Zero values fall back to defaults.
type Config struct {
	ChunkSize       int64
	MaxRetries      int
	RetryDelay      time.Duration
	AttemptTimeout  time.Duration
	HTTPClient      *http.Client
	Store           SessionStore // nil disables resumability
	OnProgress      func(Progress)
	OnChunkComplete func(index, totalChunks int)
}

// Uploader drives the splitter, session store and chunk transport together.
// One Uploader must not run concurrent Uploads of the same file: the session
// store holds no lock, so callers serialize per fingerprint themselves.
type Uploader struct {
	cfg       Config
	transport *ChunkTransport
}

// New creates an Uploader from cfg.
func New(cfg Config) *Uploader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Uploader{
		cfg: cfg,
		transport: &ChunkTransport{
			Client:         cfg.HTTPClient,
			MaxRetries:     cfg.MaxRetries,
			RetryDelay:     cfg.RetryDelay,
			AttemptTimeout: cfg.AttemptTimeout,
		},
	}
}

// newSessionID builds a session identifier shared by every chunk of one
// logical upload: time-based with a random suffix.
func newSessionID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), strings.SplitN(uuid.NewString(), "-", 2)[0])
}

// Upload transfers the file at path in chunks and returns the remote store's
// final metadata. On a chunk failure the whole operation stops with a
// *ChunkUploadError; committed progress stays persisted, so retrying the call
// resumes from the first uncommitted chunk.
func (u *Uploader) Upload(ctx context.Context, path string, params *storage.UploadParams) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("could not stat %v: %w", path, err)
	}

	meta := FileMeta{Name: filepath.Base(path), Size: info.Size()}
	fp := Fingerprint(meta.Name, meta.Size, info.ModTime())
	totalChunks := ChunkCount(meta.Size, u.cfg.ChunkSize)
	if totalChunks == 0 {
		return nil, ErrEmptyResult
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %v: %w", path, err)
	}
	defer file.Close()

	session := u.loadSession(fp)
	resumed := session != nil && session.SessionID != ""
	if !resumed {
		session = &UploadSession{
			Fingerprint: fp,
			SessionID:   newSessionID(),
			StartedAt:   time.Now().UTC(),
		}
	}

	// A resumed session with every chunk already committed means the final
	// chunk's response was never captured. The remote store accepts a chunk
	// re-sent under the same session id, so re-issue the last chunk instead
	// of failing closed.
	resendLast := resumed && allCommitted(session, totalChunks)

	tracker := newProgressTracker(meta.Size)
	var committedBytes int64
	if resumed {
		for _, i := range session.CommittedChunks {
			start, end := ChunkRange(i, u.cfg.ChunkSize, meta.Size)
			committedBytes += end - start
		}
	}

	var result *Result

	for i := 0; i < totalChunks; i++ {
		if session.Committed(i) && !(resendLast && i == totalChunks-1) {
			continue
		}

		start, end := ChunkRange(i, u.cfg.ChunkSize, meta.Size)
		chunk := make([]byte, end-start)
		if _, err := file.ReadAt(chunk, start); err != nil {
			return nil, fmt.Errorf("could not read chunk %d of %v: %w", i, path, err)
		}

		var inflight int64
		chunkIndex := i
		res, err := u.transport.UploadChunk(ctx, chunk, start, i, totalChunks, meta, params, session.SessionID, func(n int64) {
			inflight += n
			// The wire count includes multipart overhead; clamp to payload.
			if inflight > int64(len(chunk)) {
				inflight = int64(len(chunk))
			}
			u.emitProgress(tracker, committedBytes+inflight, chunkIndex, totalChunks)
		})
		if err != nil {
			return nil, err
		}

		result = res
		alreadyCommitted := session.Committed(i)
		session.MarkCommitted(i)
		if !alreadyCommitted {
			committedBytes += int64(len(chunk))
		}
		u.saveSession(session)

		if u.cfg.OnChunkComplete != nil {
			u.cfg.OnChunkComplete(i, totalChunks)
		}
		u.emitProgress(tracker, committedBytes, i, totalChunks)
	}

	if result == nil || result.RemoteID == "" {
		return nil, ErrEmptyResult
	}

	u.clearSession(fp)
	return result, nil
}

func allCommitted(session *UploadSession, totalChunks int) bool {
	for i := 0; i < totalChunks; i++ {
		if !session.Committed(i) {
			return false
		}
	}
	return true
}

// Session store failures degrade to non-resumable instead of aborting the
// upload: log and carry on.

func (u *Uploader) loadSession(fp string) *UploadSession {
	if u.cfg.Store == nil {
		return nil
	}
	session, err := u.cfg.Store.Load(fp)
	if err != nil {
		log.Printf("WARN: could not load upload session: %v", err)
		return nil
	}
	return session
}

func (u *Uploader) saveSession(session *UploadSession) {
	if u.cfg.Store == nil {
		return
	}
	if err := u.cfg.Store.Save(session); err != nil {
		log.Printf("WARN: could not persist upload session: %v", err)
	}
}

func (u *Uploader) clearSession(fp string) {
	if u.cfg.Store == nil {
		return
	}
	if err := u.cfg.Store.Clear(fp); err != nil {
		log.Printf("WARN: could not clear upload session: %v", err)
	}
}

func (u *Uploader) emitProgress(t *progressTracker, bytesDone int64, chunkIndex, totalChunks int) {
	if u.cfg.OnProgress == nil {
		return
	}
	if bytesDone > t.total {
		bytesDone = t.total
	}

	rate, eta := t.update(bytesDone)
	percent := 0.0
	if t.total > 0 {
		percent = float64(bytesDone) / float64(t.total) * 100
	}

	u.cfg.OnProgress(Progress{
		BytesUploaded:  bytesDone,
		TotalBytes:     t.total,
		Percent:        percent,
		ChunkIndex:     chunkIndex,
		TotalChunks:    totalChunks,
		BytesPerSecond: rate,
		ETA:            eta,
	})
}

// progressTracker smooths instantaneous throughput over windows of at least
// 100ms so the reported rate does not jitter per Read call.
type progressTracker struct {
	total      int64
	rate       float64
	windowAt   time.Time
	windowBase int64
}

func newProgressTracker(total int64) *progressTracker {
	return &progressTracker{total: total, windowAt: time.Now()}
}

func (t *progressTracker) update(bytesDone int64) (rate float64, eta time.Duration) {
	elapsed := time.Since(t.windowAt)
	if elapsed >= 100*time.Millisecond {
		t.rate = float64(bytesDone-t.windowBase) / elapsed.Seconds()
		t.windowAt = time.Now()
		t.windowBase = bytesDone
	}

	if t.rate > 0 {
		remaining := float64(t.total - bytesDone)
		eta = time.Duration(remaining / t.rate * float64(time.Second))
	}
	return t.rate, eta
}
