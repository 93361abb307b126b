package uploader

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sunilgawai/pitchreel/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkRecord is one chunk request the fake remote store accepted.
type chunkRecord struct {
	index     int
	size      int64
	sessionID string
}

// fakeRemote emulates the provider's chunked upload endpoint: chunks sharing
// an X-Unique-Upload-Id belong to one session, and only the final byte range
// yields the complete-object metadata.
type fakeRemote struct {
	mu         sync.Mutex
	chunkSize  int64
	received   []chunkRecord
	failures   map[int]int // chunk index -> failures left to inject
	emptyFinal bool        // final chunk answers with an empty body
}

func newFakeRemote(chunkSize int64) *fakeRemote {
	return &fakeRemote{chunkSize: chunkSize, failures: map[int]int{}}
}

func (f *fakeRemote) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var start, end, total int64
		_, err := fmt.Sscanf(r.Header.Get("Content-Range"), "bytes %d-%d/%d", &start, &end, &total)
		require.NoError(t, err, "every chunk request carries a byte range")

		index := int(start / f.chunkSize)

		f.mu.Lock()
		if left := f.failures[index]; left > 0 {
			f.failures[index] = left - 1
			f.mu.Unlock()
			http.Error(w, "injected failure", http.StatusBadGateway)
			return
		}
		f.received = append(f.received, chunkRecord{
			index:     index,
			size:      end - start + 1,
			sessionID: r.Header.Get("X-Unique-Upload-Id"),
		})
		f.mu.Unlock()

		if end+1 == total {
			if f.emptyFinal {
				w.Write([]byte(`{}`))
				return
			}
			json.NewEncoder(w).Encode(Result{
				RemoteID:  "remote-final",
				SecureURL: "https://cdn.example/remote-final.mp4",
				Bytes:     total,
				Done:      true,
			})
			return
		}
		w.Write([]byte(`{"done":false}`))
	}
}

func (f *fakeRemote) records() []chunkRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chunkRecord, len(f.received))
	copy(out, f.received)
	return out
}

func writeTestFile(t *testing.T, size int64) string {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "recording.mp4")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestUploader(t *testing.T, chunkSize int64, store SessionStore) *Uploader {
	t.Helper()
	return New(Config{
		ChunkSize:  chunkSize,
		MaxRetries: 0,
		RetryDelay: time.Millisecond,
		Store:      store,
	})
}

func TestUploadEndToEnd(t *testing.T) {
	const chunkSize = 1024
	const fileSize = 5000 // 5 chunks, last one 904 bytes

	remote := newFakeRemote(chunkSize)
	server := httptest.NewServer(remote.handler(t))
	defer server.Close()

	store, _ := newTestStore(t, 0)
	path := writeTestFile(t, fileSize)

	var completed []int
	var lastProgress Progress
	up := New(Config{
		ChunkSize:  chunkSize,
		RetryDelay: time.Millisecond,
		Store:      store,
		OnChunkComplete: func(index, total int) {
			completed = append(completed, index)
			assert.Equal(t, 5, total)
		},
		OnProgress: func(p Progress) { lastProgress = p },
	})

	result, err := up.Upload(context.Background(), path, &storage.UploadParams{UploadURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "remote-final", result.RemoteID)
	assert.Equal(t, int64(fileSize), result.Bytes)

	// Chunks arrive strictly in index order under one session id.
	records := remote.records()
	require.Len(t, records, 5)
	var gotBytes int64
	for i, rec := range records {
		assert.Equal(t, i, rec.index)
		assert.Equal(t, records[0].sessionID, rec.sessionID)
		gotBytes += rec.size
	}
	assert.Equal(t, int64(fileSize), gotBytes)
	assert.Equal(t, int64(904), records[4].size)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, completed)
	assert.Equal(t, int64(fileSize), lastProgress.BytesUploaded)
	assert.InDelta(t, 100.0, lastProgress.Percent, 0.01)

	// Completed uploads leave no resumable state behind.
	info, err := os.Stat(path)
	require.NoError(t, err)
	session, err := store.Load(Fingerprint(filepath.Base(path), info.Size(), info.ModTime()))
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestUploadResumesAfterCrash(t *testing.T) {
	const chunkSize = 1024
	const fileSize = 5000

	remote := newFakeRemote(chunkSize)
	remote.failures[2] = 1000 // chunk 2 fails for the whole first run

	server := httptest.NewServer(remote.handler(t))
	defer server.Close()

	store, _ := newTestStore(t, 0)
	path := writeTestFile(t, fileSize)
	up := newTestUploader(t, chunkSize, store)

	_, err := up.Upload(context.Background(), path, &storage.UploadParams{UploadURL: server.URL})
	require.Error(t, err)
	var chunkErr *ChunkUploadError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, 2, chunkErr.Index)

	// Chunks 0 and 1 committed and persisted before the failure.
	info, err := os.Stat(path)
	require.NoError(t, err)
	fp := Fingerprint(filepath.Base(path), info.Size(), info.ModTime())
	session, err := store.Load(fp)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.ElementsMatch(t, []int{0, 1}, session.CommittedChunks)
	firstSessionID := session.SessionID

	// Second run: remote recovered. Only the uncommitted tail is uploaded.
	remote.mu.Lock()
	remote.failures = map[int]int{}
	alreadySent := len(remote.received)
	remote.mu.Unlock()

	result, err := up.Upload(context.Background(), path, &storage.UploadParams{UploadURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, int64(fileSize), result.Bytes)

	records := remote.records()[alreadySent:]
	require.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, i+2, rec.index)
		assert.Equal(t, firstSessionID, rec.sessionID, "resume keeps the original session id")
	}
}

func TestUploadIgnoresStaleSession(t *testing.T) {
	const chunkSize = 1024
	const fileSize = 3000

	remote := newFakeRemote(chunkSize)
	server := httptest.NewServer(remote.handler(t))
	defer server.Close()

	store, _ := newTestStore(t, 24*time.Hour)
	path := writeTestFile(t, fileSize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	fp := Fingerprint(filepath.Base(path), info.Size(), info.ModTime())

	// A day-old session claiming chunks 0 and 1 must not be honored.
	require.NoError(t, store.Save(&UploadSession{
		Fingerprint:     fp,
		SessionID:       "stale-session",
		CommittedChunks: []int{0, 1},
		StartedAt:       time.Now().Add(-25 * time.Hour),
	}))

	up := newTestUploader(t, chunkSize, store)
	_, err = up.Upload(context.Background(), path, &storage.UploadParams{UploadURL: server.URL})
	require.NoError(t, err)

	records := remote.records()
	require.Len(t, records, 3, "full restart from chunk 0")
	for i, rec := range records {
		assert.Equal(t, i, rec.index)
		assert.NotEqual(t, "stale-session", rec.sessionID)
	}
}

func TestUploadResendsFinalChunkWhenAllCommitted(t *testing.T) {
	const chunkSize = 1024
	const fileSize = 3000

	remote := newFakeRemote(chunkSize)
	server := httptest.NewServer(remote.handler(t))
	defer server.Close()

	store, _ := newTestStore(t, 0)
	path := writeTestFile(t, fileSize)

	info, err := os.Stat(path)
	require.NoError(t, err)
	fp := Fingerprint(filepath.Base(path), info.Size(), info.ModTime())

	// Crash after marking the last chunk committed but before reading its
	// response: every chunk committed, no result captured.
	require.NoError(t, store.Save(&UploadSession{
		Fingerprint:     fp,
		SessionID:       "interrupted-session",
		CommittedChunks: []int{0, 1, 2},
		StartedAt:       time.Now(),
	}))

	up := newTestUploader(t, chunkSize, store)
	result, err := up.Upload(context.Background(), path, &storage.UploadParams{UploadURL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "remote-final", result.RemoteID)

	records := remote.records()
	require.Len(t, records, 1, "only the final chunk is re-sent")
	assert.Equal(t, 2, records[0].index)
	assert.Equal(t, "interrupted-session", records[0].sessionID)

	session, err := store.Load(fp)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestUploadEmptyFinalResponse(t *testing.T) {
	const chunkSize = 1024

	remote := newFakeRemote(chunkSize)
	remote.emptyFinal = true
	server := httptest.NewServer(remote.handler(t))
	defer server.Close()

	store, _ := newTestStore(t, 0)
	path := writeTestFile(t, 2000)

	up := newTestUploader(t, chunkSize, store)
	_, err := up.Upload(context.Background(), path, &storage.UploadParams{UploadURL: server.URL})
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestUploadEmptyFile(t *testing.T) {
	store, _ := newTestStore(t, 0)
	path := writeTestFile(t, 0)

	up := newTestUploader(t, 1024, store)
	_, err := up.Upload(context.Background(), path, &storage.UploadParams{UploadURL: "http://unused.invalid"})
	require.ErrorIs(t, err, ErrEmptyResult)
}
