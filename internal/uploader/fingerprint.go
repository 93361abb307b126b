package uploader

import (
	"fmt"
	"time"
)

// DefaultChunkSize matches the remote provider's recommended chunk
// granularity and keeps each HTTP request well under gateway timeouts.
const DefaultChunkSize int64 = 6 * 1024 * 1024

// Fingerprint derives a stable, non-cryptographic identity for a local file
// from its name, size and modification time. The key is only used to look up
// resumable upload state; two distinct files producing the same triple are
// treated as the same upload.
func Fingerprint(name string, size int64, modTime time.Time) string {
	return fmt.Sprintf("%s-%d-%d", name, size, modTime.UnixMilli())
}

// ChunkCount returns ceil(fileSize / chunkSize). A zero-byte file has zero
// chunks.
func ChunkCount(fileSize, chunkSize int64) int {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return int((fileSize + chunkSize - 1) / chunkSize)
}

// ChunkRange returns the half-open byte range [start, end) of chunk index.
// The last chunk is always at most chunkSize long.
func ChunkRange(index int, chunkSize, fileSize int64) (start, end int64) {
	start = int64(index) * chunkSize
	end = start + chunkSize
	if end > fileSize {
		end = fileSize
	}
	return start, end
}
