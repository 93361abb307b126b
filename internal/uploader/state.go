package uploader

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultSessionTTL is how long a persisted session stays resumable. Anything
// older is treated as absent and forces a full restart under a new session id.
const DefaultSessionTTL = 24 * time.Hour

// Persisted session records are namespaced under this prefix so they can be
// told apart from anything else sharing the directory.
const sessionKeyPrefix = "upload_session_"

// UploadSession is the resumable progress for one file fingerprint: which
// chunk indices the remote store has committed, under which session id.
type UploadSession struct {
	Fingerprint     string    `json:"fingerprint"`
	SessionID       string    `json:"sessionId"`
	CommittedChunks []int     `json:"committedChunks"`
	StartedAt       time.Time `json:"startedAt"`
}

// Committed reports whether chunk index has already been committed.
func (s *UploadSession) Committed(index int) bool {
	for _, c := range s.CommittedChunks {
		if c == index {
			return true
		}
	}
	return false
}

// MarkCommitted records a committed chunk index. Idempotent.
func (s *UploadSession) MarkCommitted(index int) {
	if !s.Committed(index) {
		s.CommittedChunks = append(s.CommittedChunks, index)
	}
}

// SessionStore persists resumable upload state keyed by file fingerprint.
// Implementations degrade rather than fail: a broken store costs resumability,
// never the upload itself.
type SessionStore interface {
	// Load returns the session for fingerprint, or nil when absent,
	// unparsable, or expired (stale records are purged as a side effect).
	Load(fingerprint string) (*UploadSession, error)

	// Save overwrites the session unconditionally and synchronously, so a
	// crash right after a chunk commit loses at most the in-flight chunk.
	Save(session *UploadSession) error

	// Clear removes the session. Idempotent; absent is not an error.
	Clear(fingerprint string) error
}

// fileSessionStore keeps one JSON file per fingerprint under a directory.
// It is local to the initiating process and not shared: two uploads of the
// same file from different processes race on the persisted session.
type fileSessionStore struct {
	dir string
	ttl time.Duration
}

// NewFileSessionStore creates a file-backed session store rooted at dir.
// A non-positive ttl falls back to DefaultSessionTTL.
func NewFileSessionStore(dir string, ttl time.Duration) (SessionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create session dir %v: %w", dir, err)
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &fileSessionStore{dir: dir, ttl: ttl}, nil
}

// path maps a fingerprint to its file. Fingerprints carry filenames, so the
// on-disk key is a hash rather than the raw value.
func (f *fileSessionStore) path(fingerprint string) string {
	sum := sha1.Sum([]byte(fingerprint))
	return filepath.Join(f.dir, sessionKeyPrefix+hex.EncodeToString(sum[:])+".json")
}

func (f *fileSessionStore) Load(fingerprint string) (*UploadSession, error) {
	data, err := os.ReadFile(f.path(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading session file: %w", err)
	}

	var session UploadSession
	if err := json.Unmarshal(data, &session); err != nil {
		// Unparsable state is as good as none; purge it.
		_ = os.Remove(f.path(fingerprint))
		return nil, nil
	}

	if time.Since(session.StartedAt) > f.ttl {
		_ = os.Remove(f.path(fingerprint))
		return nil, nil
	}

	return &session, nil
}

func (f *fileSessionStore) Save(session *UploadSession) error {
	if session.Fingerprint == "" {
		return fmt.Errorf("cannot save session %+v, fingerprint is empty", session)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("error marshaling session: %w", err)
	}

	if err := os.WriteFile(f.path(session.Fingerprint), data, 0o644); err != nil {
		return fmt.Errorf("error writing session file: %w", err)
	}
	return nil
}

func (f *fileSessionStore) Clear(fingerprint string) error {
	err := os.Remove(f.path(fingerprint))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error removing session file: %w", err)
	}
	return nil
}
