package uploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintStable(t *testing.T) {
	mod := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	a := Fingerprint("clip.mp4", 1024, mod)
	b := Fingerprint("clip.mp4", 1024, mod)
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, Fingerprint("clip.mp4", 2048, mod))
	assert.NotEqual(t, a, Fingerprint("other.mp4", 1024, mod))
	assert.NotEqual(t, a, Fingerprint("clip.mp4", 1024, mod.Add(time.Second)))
}

func TestFingerprintZeroByteFile(t *testing.T) {
	// Best-effort key even for empty files.
	assert.NotEmpty(t, Fingerprint("empty.mp4", 0, time.Now()))
}

func TestChunkCount(t *testing.T) {
	const mb = 1024 * 1024

	tests := []struct {
		name      string
		fileSize  int64
		chunkSize int64
		want      int
	}{
		{"exact multiple", 12 * mb, 6 * mb, 2},
		{"with remainder", 50 * mb, 6 * mb, 9},
		{"smaller than one chunk", 100, 6 * mb, 1},
		{"zero-byte file", 0, 6 * mb, 0},
		{"one byte over", 6*mb + 1, 6 * mb, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkCount(tt.fileSize, tt.chunkSize))
		})
	}
}

func TestChunkRange(t *testing.T) {
	const mb int64 = 1024 * 1024
	fileSize := 50 * mb
	chunkSize := 6 * mb
	total := ChunkCount(fileSize, chunkSize)

	var covered int64
	for i := 0; i < total; i++ {
		start, end := ChunkRange(i, chunkSize, fileSize)
		assert.Equal(t, int64(i)*chunkSize, start)
		assert.LessOrEqual(t, end-start, chunkSize)
		assert.Greater(t, end, start, "chunk %d must be non-empty", i)
		covered += end - start
	}
	assert.Equal(t, fileSize, covered)

	// Last chunk of a 50 MB file at 6 MB chunks is exactly 2 MB.
	start, end := ChunkRange(total-1, chunkSize, fileSize)
	assert.Equal(t, 2*mb, end-start)
	assert.Equal(t, fileSize, end)
}
